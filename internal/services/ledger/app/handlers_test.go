package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/louisbranch/papertrade.space/internal/platform/authtoken"
	"github.com/louisbranch/papertrade.space/internal/platform/money"
	"github.com/louisbranch/papertrade.space/internal/services/ledger/service"
	"github.com/louisbranch/papertrade.space/internal/services/ledger/storage/sqlite"
)

type fixedQuoter struct {
	prices map[string]money.Amount
}

func (q fixedQuoter) Quote(ctx context.Context, name string) (money.Amount, error) {
	price, ok := q.prices[name]
	if !ok {
		return 0, fmt.Errorf("no quote for %s", name)
	}
	return price, nil
}

func (q fixedQuoter) Quotes(ctx context.Context, names []string) (map[string]money.Amount, error) {
	quotes := make(map[string]money.Amount, len(names))
	for _, name := range names {
		price, err := q.Quote(ctx, name)
		if err != nil {
			return nil, err
		}
		quotes[name] = price
	}
	return quotes, nil
}

func newTestHandler(t *testing.T, minter *authtoken.Minter) http.Handler {
	t.Helper()

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})

	quoter := fixedQuoter{prices: map[string]money.Amount{
		"GOOG": money.FromCents(10000),
		"AMZN": money.FromCents(5000),
	}}
	ledgerService := service.New(store, quoter, service.Config{
		StartingBalance: money.FromCents(100000),
		WeeklyAllowance: money.FromCents(10000),
	})
	return NewHandler(ledgerService, minter)
}

func doJSON(t *testing.T, handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), target); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
}

func TestHealthz(t *testing.T) {
	handler := newTestHandler(t, nil)
	rec := doJSON(t, handler, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestBalanceProvisionsNewUser(t *testing.T) {
	handler := newTestHandler(t, nil)
	rec := doJSON(t, handler, http.MethodGet, "/v1/users/100/balance", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		BalanceCents int64  `json:"balance_cents"`
		Balance      string `json:"balance"`
	}
	decodeBody(t, rec, &resp)
	if resp.BalanceCents != 100000 {
		t.Fatalf("balance = %d, want starting balance 100000", resp.BalanceCents)
	}
	if resp.Balance != "$1,000.00" {
		t.Fatalf("formatted balance = %q, want $1,000.00", resp.Balance)
	}
}

func TestCreateOrderBuyAndSell(t *testing.T) {
	handler := newTestHandler(t, nil)

	rec := doJSON(t, handler, http.MethodPost, "/v1/users/100/orders",
		`{"type":"BUY","security_name":"GOOG","quantity":3}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("buy status = %d, body %s", rec.Code, rec.Body.String())
	}
	var order struct {
		Type       string `json:"type"`
		TotalCents int64  `json:"total_cents"`
	}
	decodeBody(t, rec, &order)
	if order.Type != "BUY" || order.TotalCents != 30000 {
		t.Fatalf("order = %+v, want BUY for 30000 cents", order)
	}

	rec = doJSON(t, handler, http.MethodPost, "/v1/users/100/orders",
		`{"type":"SELL","security_name":"GOOG","quantity":2}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("sell status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodGet, "/v1/users/100/balance", "")
	var balance struct {
		BalanceCents int64 `json:"balance_cents"`
	}
	decodeBody(t, rec, &balance)
	if balance.BalanceCents != 90000 {
		t.Fatalf("balance = %d, want 90000 after buy 3 sell 2", balance.BalanceCents)
	}
}

func TestCreateOrderRejectsUnknownType(t *testing.T) {
	handler := newTestHandler(t, nil)
	rec := doJSON(t, handler, http.MethodPost, "/v1/users/100/orders",
		`{"type":"SHORT","security_name":"GOOG","quantity":1}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestCreateOrderInsufficientFunds(t *testing.T) {
	handler := newTestHandler(t, nil)
	rec := doJSON(t, handler, http.MethodPost, "/v1/users/100/orders",
		`{"type":"BUY","security_name":"GOOG","quantity":100}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422, body %s", rec.Code, rec.Body.String())
	}
}

func TestCreateGiftMovesFunds(t *testing.T) {
	handler := newTestHandler(t, nil)
	rec := doJSON(t, handler, http.MethodPost, "/v1/gifts",
		`{"from_user_id":"100","to_user_id":"200","amount_cents":25000}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var balance struct {
		BalanceCents int64 `json:"balance_cents"`
	}
	rec = doJSON(t, handler, http.MethodGet, "/v1/users/200/balance", "")
	decodeBody(t, rec, &balance)
	if balance.BalanceCents != 125000 {
		t.Fatalf("recipient balance = %d, want 125000", balance.BalanceCents)
	}
}

func TestCreateGiftRejectsSelf(t *testing.T) {
	handler := newTestHandler(t, nil)
	rec := doJSON(t, handler, http.MethodPost, "/v1/gifts",
		`{"from_user_id":"100","to_user_id":"100","amount_cents":1000}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestPortfolioValuesHoldings(t *testing.T) {
	handler := newTestHandler(t, nil)
	doJSON(t, handler, http.MethodPost, "/v1/users/100/orders",
		`{"type":"BUY","security_name":"GOOG","quantity":2}`)

	rec := doJSON(t, handler, http.MethodGet, "/v1/users/100/portfolio", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Entries []struct {
			SecurityName string `json:"security_name"`
			BalanceCents int64  `json:"balance_cents"`
			Quantity     int64  `json:"quantity"`
		} `json:"entries"`
	}
	decodeBody(t, rec, &resp)
	if len(resp.Entries) != 1 {
		t.Fatalf("entries = %+v, want one holding", resp.Entries)
	}
	if resp.Entries[0].SecurityName != "GOOG" || resp.Entries[0].BalanceCents != 20000 {
		t.Fatalf("entry = %+v, want GOOG valued at 20000", resp.Entries[0])
	}
}

func TestSnapshotsIncludeLiveTail(t *testing.T) {
	handler := newTestHandler(t, nil)
	rec := doJSON(t, handler, http.MethodGet, "/v1/users/100/snapshots", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Snapshots []struct {
			CreatedAt string `json:"created_at"`
		} `json:"snapshots"`
	}
	decodeBody(t, rec, &resp)
	if len(resp.Snapshots) != 1 {
		t.Fatalf("snapshots = %+v, want the synthetic current entry", resp.Snapshots)
	}
}

func TestChartReturnsSVG(t *testing.T) {
	handler := newTestHandler(t, nil)
	rec := doJSON(t, handler, http.MethodGet, "/v1/users/100/chart.svg", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); got != "image/svg+xml" {
		t.Fatalf("content type = %q, want image/svg+xml", got)
	}
	if !strings.Contains(rec.Body.String(), "<svg ") {
		t.Fatal("expected svg payload")
	}
}

func TestSecurityPriceAndHistory(t *testing.T) {
	handler := newTestHandler(t, nil)

	rec := doJSON(t, handler, http.MethodGet, "/v1/securities/GOOG/price", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("price status = %d, body %s", rec.Code, rec.Body.String())
	}
	var price struct {
		PriceCents int64 `json:"price_cents"`
	}
	decodeBody(t, rec, &price)
	if price.PriceCents != 10000 {
		t.Fatalf("price = %d, want 10000", price.PriceCents)
	}

	rec = doJSON(t, handler, http.MethodGet, "/v1/securities/GOOG/history", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("history status = %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestRequestIDHeaderIsSet(t *testing.T) {
	handler := newTestHandler(t, nil)
	rec := doJSON(t, handler, http.MethodGet, "/healthz", "")
	if rec.Header().Get("X-Request-Id") == "" {
		t.Fatal("expected a request id header")
	}
}

func TestAuthRequiredWhenConfigured(t *testing.T) {
	minter, err := authtoken.New([]byte("test-secret"), "papertrade", time.Hour, nil)
	if err != nil {
		t.Fatalf("new minter: %v", err)
	}
	handler := newTestHandler(t, minter)

	rec := doJSON(t, handler, http.MethodGet, "/v1/users/100/balance", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}

	// Health stays open for probes.
	rec = doJSON(t, handler, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status = %d, want 200", rec.Code)
	}

	token, err := minter.Mint("100")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/users/100/balance", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	authed := httptest.NewRecorder()
	handler.ServeHTTP(authed, req)
	if authed.Code != http.StatusOK {
		t.Fatalf("authed status = %d, body %s", authed.Code, authed.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/users/999/balance", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	forbidden := httptest.NewRecorder()
	handler.ServeHTTP(forbidden, req)
	if forbidden.Code != http.StatusForbidden {
		t.Fatalf("cross-user status = %d, want 403", forbidden.Code)
	}
}
