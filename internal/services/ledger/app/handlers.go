package app

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/louisbranch/papertrade.space/internal/platform/authtoken"
	"github.com/louisbranch/papertrade.space/internal/platform/money"
	"github.com/louisbranch/papertrade.space/internal/services/ledger/chart"
	"github.com/louisbranch/papertrade.space/internal/services/ledger/domain"
	"github.com/louisbranch/papertrade.space/internal/services/ledger/service"
	"github.com/louisbranch/papertrade.space/internal/services/ledger/storage"
)

const maxRequestBodyBytes = 64 * 1024

type handler struct {
	service *service.Service
}

// NewHandler builds the ledger API routes. When minter is nil the API runs
// without authentication.
func NewHandler(ledgerService *service.Service, minter *authtoken.Minter) http.Handler {
	h := &handler{service: ledgerService}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", h.health)
	mux.HandleFunc("GET /v1/users/{user_id}/balance", h.balance)
	mux.HandleFunc("GET /v1/users/{user_id}/portfolio", h.portfolio)
	mux.HandleFunc("GET /v1/users/{user_id}/snapshots", h.snapshots)
	mux.HandleFunc("GET /v1/users/{user_id}/chart.svg", h.chart)
	mux.HandleFunc("POST /v1/users/{user_id}/orders", h.createOrder)
	mux.HandleFunc("POST /v1/gifts", h.createGift)
	mux.HandleFunc("GET /v1/securities/{name}/price", h.securityPrice)
	mux.HandleFunc("GET /v1/securities/{name}/history", h.securityHistory)

	var wrapped http.Handler = mux
	if minter != nil {
		wrapped = requireAuth(minter, wrapped)
	}
	return withRequestLog(wrapped)
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type balanceResponse struct {
	UserID       string `json:"user_id"`
	BalanceCents int64  `json:"balance_cents"`
	Balance      string `json:"balance"`
}

func (h *handler) balance(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")
	balance, err := h.service.Balance(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{
		UserID:       userID,
		BalanceCents: balance.Cents(),
		Balance:      balance.String(),
	})
}

type portfolioResponse struct {
	UserID  string                  `json:"user_id"`
	Entries []domain.PortfolioEntry `json:"entries"`
}

func (h *handler) portfolio(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")
	entries, err := h.service.Portfolio(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, portfolioResponse{UserID: userID, Entries: entries})
}

type snapshotResponse struct {
	CreatedAt       string                  `json:"created_at"`
	NetBalanceCents int64                   `json:"net_balance_cents"`
	Entries         []domain.PortfolioEntry `json:"entries"`
}

func (h *handler) snapshots(w http.ResponseWriter, r *http.Request) {
	snapshots, err := h.service.Snapshots(r.Context(), r.PathValue("user_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]snapshotResponse, 0, len(snapshots))
	for _, snapshot := range snapshots {
		out = append(out, snapshotResponse{
			CreatedAt:       snapshot.CreatedAt.Format("2006-01-02"),
			NetBalanceCents: snapshot.NetBalance().Cents(),
			Entries:         snapshot.Entries,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"snapshots": out})
}

func (h *handler) chart(w http.ResponseWriter, r *http.Request) {
	snapshots, err := h.service.Snapshots(r.Context(), r.PathValue("user_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	if err := chart.Render(w, snapshots); err != nil {
		log.Printf("render chart: %v", err)
	}
}

type createOrderRequest struct {
	Type         string `json:"type"`
	SecurityName string `json:"security_name"`
	Quantity     int64  `json:"quantity"`
}

type orderResponse struct {
	ID                 int64  `json:"id"`
	UserID             string `json:"user_id"`
	Type               string `json:"type"`
	SecurityName       string `json:"security_name"`
	SecurityPriceCents int64  `json:"security_price_cents"`
	Quantity           int64  `json:"quantity"`
	TotalCents         int64  `json:"total_cents"`
}

func (h *handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	orderType, err := domain.ParseOrderType(req.Type)
	if err != nil {
		writeErrorStatus(w, http.StatusBadRequest, err)
		return
	}

	request := service.CreateOrderRequest{
		UserID:       r.PathValue("user_id"),
		SecurityName: req.SecurityName,
		Quantity:     req.Quantity,
	}
	var order domain.Order
	if orderType == domain.OrderBuy {
		order, err = h.service.Buy(r.Context(), request)
	} else {
		order, err = h.service.Sell(r.Context(), request)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, orderResponse{
		ID:                 order.ID,
		UserID:             order.UserID,
		Type:               string(order.Type),
		SecurityName:       order.SecurityName,
		SecurityPriceCents: order.SecurityPrice.Cents(),
		Quantity:           order.Quantity,
		TotalCents:         order.SecurityPrice.Mul(order.Quantity).Cents(),
	})
}

type createGiftRequest struct {
	FromUserID  string `json:"from_user_id"`
	ToUserID    string `json:"to_user_id"`
	AmountCents int64  `json:"amount_cents"`
}

func (h *handler) createGift(w http.ResponseWriter, r *http.Request) {
	var req createGiftRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	err := h.service.Gift(r.Context(), req.FromUserID, req.ToUserID, money.FromCents(req.AmountCents))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "ok"})
}

type priceResponse struct {
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
	Price      string `json:"price"`
}

func (h *handler) securityPrice(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	price, err := h.service.SecurityPrice(r.Context(), name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, priceResponse{
		Name:       name,
		PriceCents: price.Cents(),
		Price:      price.String(),
	})
}

type pricePointResponse struct {
	CreatedAt  string `json:"created_at"`
	PriceCents int64  `json:"price_cents"`
}

func (h *handler) securityHistory(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	points, err := h.service.SecurityPriceHistory(r.Context(), name)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]pricePointResponse, 0, len(points))
	for _, point := range points {
		out = append(out, pricePointResponse{
			CreatedAt:  point.CreatedAt.Format("2006-01-02 15:04:05"),
			PriceCents: point.Price.Cents(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"name": name, "history": out})
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode response: %v", err)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, target any) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		writeErrorStatus(w, http.StatusBadRequest, err)
		return false
	}
	return true
}

// writeError maps domain and storage failures to HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	var insufficientFunds *domain.InsufficientFundsError
	var insufficientQuantity *domain.InsufficientQuantityError
	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		writeErrorStatus(w, http.StatusBadRequest, err)
	case errors.As(err, &insufficientFunds), errors.As(err, &insufficientQuantity):
		writeErrorStatus(w, http.StatusUnprocessableEntity, err)
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, storage.ErrUnknownUser), errors.Is(err, chart.ErrNoSnapshots):
		writeErrorStatus(w, http.StatusNotFound, err)
	case errors.Is(err, storage.ErrAlreadyExists):
		writeErrorStatus(w, http.StatusConflict, err)
	default:
		log.Printf("ledger request failed: %v", err)
		writeErrorStatus(w, http.StatusInternalServerError, errors.New("internal error"))
	}
}

func writeErrorStatus(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
