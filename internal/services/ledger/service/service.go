// Package service implements ledger business operations: trading, gifting,
// allowances, and portfolio valuation.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/louisbranch/papertrade.space/internal/platform/money"
	"github.com/louisbranch/papertrade.space/internal/services/ledger/domain"
	"github.com/louisbranch/papertrade.space/internal/services/ledger/storage"
)

const defaultAllowanceWindowDays = 7

// ErrInvalidRequest marks caller mistakes, as opposed to storage or quoting
// failures.
var ErrInvalidRequest = errors.New("invalid request")

// Quoter resolves current security prices.
type Quoter interface {
	Quote(ctx context.Context, name string) (money.Amount, error)
	Quotes(ctx context.Context, names []string) (map[string]money.Amount, error)
}

// Config holds the ledger's standing amounts.
type Config struct {
	// StartingBalance is credited when a user is first seen.
	StartingBalance money.Amount
	// WeeklyAllowance is credited by each allowance grant.
	WeeklyAllowance money.Amount
	// AllowanceWindowDays is the minimum gap between grants (default 7).
	AllowanceWindowDays int
}

// CreateOrderRequest describes a buy or sell request.
type CreateOrderRequest struct {
	UserID       string
	SecurityName string
	Quantity     int64
}

// Service coordinates ledger storage and price quoting.
type Service struct {
	store  storage.Store
	quoter Quoter
	cfg    Config
	clock  func() time.Time
}

// New creates a ledger service.
func New(store storage.Store, quoter Quoter, cfg Config) *Service {
	if cfg.AllowanceWindowDays <= 0 {
		cfg.AllowanceWindowDays = defaultAllowanceWindowDays
	}
	return &Service{
		store:  store,
		quoter: quoter,
		cfg:    cfg,
		clock:  time.Now,
	}
}

// Balance returns a user's available funds, provisioning the user on first
// contact.
func (s *Service) Balance(ctx context.Context, userID string) (money.Amount, error) {
	if err := s.ensureUser(ctx, userID); err != nil {
		return 0, err
	}
	return s.store.UserBalance(ctx, userID)
}

// Buy purchases shares at the current price, debiting the user's balance and
// recording the order atomically.
func (s *Service) Buy(ctx context.Context, req CreateOrderRequest) (domain.Order, error) {
	if err := validateOrderRequest(req); err != nil {
		return domain.Order{}, err
	}
	if err := s.ensureUser(ctx, req.UserID); err != nil {
		return domain.Order{}, err
	}

	price, err := s.quoter.Quote(ctx, req.SecurityName)
	if err != nil {
		return domain.Order{}, fmt.Errorf("quote %s: %w", req.SecurityName, err)
	}
	debit := price.Mul(req.Quantity)

	var order domain.Order
	err = s.store.WithTx(ctx, func(ledger storage.Ledger) error {
		balance, err := ledger.UserBalance(ctx, req.UserID)
		if err != nil {
			return err
		}
		if debit > balance {
			return &domain.InsufficientFundsError{Available: balance, Required: debit}
		}
		tx, err := ledger.CreateTransaction(ctx, domain.TransactionInsert{
			UserID:  req.UserID,
			Type:    domain.TransactionDebit,
			Amount:  debit,
			Comment: fmt.Sprintf("Buy for %d of $%s", req.Quantity, req.SecurityName),
		})
		if err != nil {
			return err
		}
		order, err = ledger.CreateOrder(ctx, domain.OrderInsert{
			UserID:        req.UserID,
			TransactionID: tx.ID,
			Type:          domain.OrderBuy,
			SecurityName:  req.SecurityName,
			SecurityPrice: price,
			Quantity:      req.Quantity,
		})
		return err
	})
	if err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

// Sell disposes shares at the current price, crediting the proceeds and
// recording the order atomically.
func (s *Service) Sell(ctx context.Context, req CreateOrderRequest) (domain.Order, error) {
	if err := validateOrderRequest(req); err != nil {
		return domain.Order{}, err
	}
	if err := s.ensureUser(ctx, req.UserID); err != nil {
		return domain.Order{}, err
	}

	price, err := s.quoter.Quote(ctx, req.SecurityName)
	if err != nil {
		return domain.Order{}, fmt.Errorf("quote %s: %w", req.SecurityName, err)
	}
	credit := price.Mul(req.Quantity)

	var order domain.Order
	err = s.store.WithTx(ctx, func(ledger storage.Ledger) error {
		quantity, err := ledger.UserSecurityQuantity(ctx, req.UserID, req.SecurityName)
		if err != nil {
			return err
		}
		if quantity < req.Quantity {
			return &domain.InsufficientQuantityError{Available: quantity}
		}
		tx, err := ledger.CreateTransaction(ctx, domain.TransactionInsert{
			UserID:  req.UserID,
			Type:    domain.TransactionCredit,
			Amount:  credit,
			Comment: fmt.Sprintf("Sell for %d of $%s", req.Quantity, req.SecurityName),
		})
		if err != nil {
			return err
		}
		order, err = ledger.CreateOrder(ctx, domain.OrderInsert{
			UserID:        req.UserID,
			TransactionID: tx.ID,
			Type:          domain.OrderSell,
			SecurityName:  req.SecurityName,
			SecurityPrice: price,
			Quantity:      req.Quantity,
		})
		return err
	})
	if err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

// Gift moves funds between two users as a paired debit and credit.
func (s *Service) Gift(ctx context.Context, fromUserID, toUserID string, amount money.Amount) error {
	fromUserID = strings.TrimSpace(fromUserID)
	toUserID = strings.TrimSpace(toUserID)
	if fromUserID == "" || toUserID == "" {
		return fmt.Errorf("%w: both user ids are required", ErrInvalidRequest)
	}
	if fromUserID == toUserID {
		return fmt.Errorf("%w: cannot gift to yourself", ErrInvalidRequest)
	}
	if amount.Cents() <= 0 {
		return fmt.Errorf("%w: gift amount must be positive", ErrInvalidRequest)
	}
	if err := s.ensureUser(ctx, fromUserID); err != nil {
		return err
	}
	if err := s.ensureUser(ctx, toUserID); err != nil {
		return err
	}

	return s.store.WithTx(ctx, func(ledger storage.Ledger) error {
		balance, err := ledger.UserBalance(ctx, fromUserID)
		if err != nil {
			return err
		}
		if amount > balance {
			return &domain.InsufficientFundsError{Available: balance, Required: amount}
		}
		if _, err := ledger.CreateTransaction(ctx, domain.TransactionInsert{
			UserID:  fromUserID,
			Type:    domain.TransactionDebit,
			Amount:  amount,
			Comment: fmt.Sprintf("Gift to @%s", toUserID),
		}); err != nil {
			return err
		}
		_, err = ledger.CreateTransaction(ctx, domain.TransactionInsert{
			UserID:  toUserID,
			Type:    domain.TransactionCredit,
			Amount:  amount,
			Comment: fmt.Sprintf("Gift from @%s", fromUserID),
		})
		return err
	})
}

// Portfolio values a user's holdings at current prices.
func (s *Service) Portfolio(ctx context.Context, userID string) ([]domain.PortfolioEntry, error) {
	if err := s.ensureUser(ctx, userID); err != nil {
		return nil, err
	}
	return s.portfolioFor(ctx, s.store, userID)
}

// GrantAllowances credits the weekly allowance to every user whose last
// grant is outside the configured window.
func (s *Service) GrantAllowances(ctx context.Context) error {
	log.Printf("granting user allowances")
	return s.store.WithTx(ctx, func(ledger storage.Ledger) error {
		userIDs, err := ledger.AllowanceEligibleUsers(ctx, s.cfg.AllowanceWindowDays)
		if err != nil {
			return err
		}
		for _, userID := range userIDs {
			if err := ledger.CreateAllowance(ctx, userID); err != nil {
				return err
			}
			if _, err := ledger.CreateTransaction(ctx, domain.TransactionInsert{
				UserID:  userID,
				Type:    domain.TransactionCredit,
				Amount:  s.cfg.WeeklyAllowance,
				Comment: "Weekly allowance",
			}); err != nil {
				return err
			}
		}
		if len(userIDs) > 0 {
			log.Printf("granted allowances to %d users", len(userIDs))
		}
		return nil
	})
}

// TakeSnapshots records today's portfolio valuation for every user. Users
// who already have a snapshot for today are skipped so a restarted run stays
// idempotent.
func (s *Service) TakeSnapshots(ctx context.Context) error {
	log.Printf("taking portfolio snapshots")
	return s.store.WithTx(ctx, func(ledger storage.Ledger) error {
		userIDs, err := ledger.AllUsers(ctx)
		if err != nil {
			return err
		}
		for _, userID := range userIDs {
			entries, err := s.portfolioFor(ctx, ledger, userID)
			if err != nil {
				return err
			}
			err = ledger.CreatePortfolioSnapshot(ctx, userID, entries)
			if errors.Is(err, storage.ErrAlreadyExists) {
				continue
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// Snapshots returns a user's stored snapshots plus a synthetic entry for the
// current valuation.
func (s *Service) Snapshots(ctx context.Context, userID string) ([]domain.PortfolioSnapshot, error) {
	latest, err := s.Portfolio(ctx, userID)
	if err != nil {
		return nil, err
	}
	snapshots, err := s.store.UserPortfolioSnapshots(ctx, userID)
	if err != nil {
		return nil, err
	}
	return append(snapshots, domain.PortfolioSnapshot{
		CreatedAt: s.clock().UTC(),
		Entries:   latest,
	}), nil
}

// SecurityPrice resolves the current price for one security.
func (s *Service) SecurityPrice(ctx context.Context, name string) (money.Amount, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, fmt.Errorf("%w: security name is required", ErrInvalidRequest)
	}
	return s.quoter.Quote(ctx, name)
}

// SecurityPriceHistory returns recorded price ticks for one security, oldest
// first.
func (s *Service) SecurityPriceHistory(ctx context.Context, name string) ([]domain.PricePoint, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: security name is required", ErrInvalidRequest)
	}
	return s.store.SecurityPriceHistory(ctx, name)
}

// ensureUser provisions a first-time user with an allowance marker and the
// starting balance.
func (s *Service) ensureUser(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidRequest)
	}
	return s.store.WithTx(ctx, func(ledger storage.Ledger) error {
		isNew, err := ledger.CreateUser(ctx, userID)
		if err != nil {
			return err
		}
		if !isNew {
			return nil
		}
		log.Printf("new user %s created, granting starting balance of %s", userID, s.cfg.StartingBalance)
		if err := ledger.CreateAllowance(ctx, userID); err != nil {
			return err
		}
		_, err = ledger.CreateTransaction(ctx, domain.TransactionInsert{
			UserID:  userID,
			Type:    domain.TransactionCredit,
			Amount:  s.cfg.StartingBalance,
			Comment: "Initial credit",
		})
		return err
	})
}

// portfolioFor builds portfolio entries from holdings in ledger, priced by
// the quoter.
func (s *Service) portfolioFor(ctx context.Context, ledger storage.Ledger, userID string) ([]domain.PortfolioEntry, error) {
	owned, err := ledger.OwnedSecurities(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(owned) == 0 {
		return []domain.PortfolioEntry{}, nil
	}

	names := make([]string, 0, len(owned))
	for _, security := range owned {
		names = append(names, security.Name)
	}
	prices, err := s.quoter.Quotes(ctx, names)
	if err != nil {
		return nil, fmt.Errorf("quote portfolio securities: %w", err)
	}

	entries := make([]domain.PortfolioEntry, 0, len(owned))
	for _, security := range owned {
		price, ok := prices[security.Name]
		if !ok {
			return nil, fmt.Errorf("missing price for security %s", security.Name)
		}
		value := price.Mul(security.Quantity)
		entries = append(entries, domain.PortfolioEntry{
			SecurityName:   security.Name,
			Balance:        value,
			Quantity:       security.Quantity,
			TotalPricePaid: security.TotalPricePaid,
			ReturnRate:     money.ReturnRate(security.TotalPricePaid, value),
		})
	}
	return entries, nil
}

func validateOrderRequest(req CreateOrderRequest) error {
	if strings.TrimSpace(req.UserID) == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidRequest)
	}
	if strings.TrimSpace(req.SecurityName) == "" {
		return fmt.Errorf("%w: security name is required", ErrInvalidRequest)
	}
	if req.Quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive", ErrInvalidRequest)
	}
	return nil
}
