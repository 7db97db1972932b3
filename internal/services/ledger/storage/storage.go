// Package storage defines persistence contracts for ledger state.
package storage

import (
	"context"
	"errors"

	"github.com/louisbranch/papertrade.space/internal/platform/money"
	"github.com/louisbranch/papertrade.space/internal/services/ledger/domain"
)

var (
	// ErrNotFound indicates a requested record is missing.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists indicates a uniqueness-constrained record already exists.
	ErrAlreadyExists = errors.New("record already exists")
	// ErrUnknownUser indicates a write referenced a user that was never created.
	ErrUnknownUser = errors.New("unknown user")
)

// Ledger is the set of ledger reads and writes. All tables are append-only;
// there are no update or delete operations.
type Ledger interface {
	// CreateUser inserts a user if absent and reports whether the row is new.
	CreateUser(ctx context.Context, userID string) (bool, error)
	// AllUsers lists every known user id.
	AllUsers(ctx context.Context) ([]string, error)

	// CreateTransaction appends one CREDIT or DEBIT transaction.
	CreateTransaction(ctx context.Context, insert domain.TransactionInsert) (domain.Transaction, error)
	// UserBalance sums a user's transactions (credits minus debits).
	UserBalance(ctx context.Context, userID string) (money.Amount, error)

	// CreateOrder appends one trade order tied to its funding transaction.
	CreateOrder(ctx context.Context, insert domain.OrderInsert) (domain.Order, error)
	// OwnedSecurities aggregates net positions with quantity above zero.
	OwnedSecurities(ctx context.Context, userID string) ([]domain.OwnedSecurity, error)
	// UserSecurityQuantity returns the net held quantity of one security.
	UserSecurityQuantity(ctx context.Context, userID, securityName string) (int64, error)

	// CreateAllowance marks today's allowance grant for a user.
	CreateAllowance(ctx context.Context, userID string) error
	// AllowanceEligibleUsers lists users with no allowance in the last
	// windowDays days.
	AllowanceEligibleUsers(ctx context.Context, windowDays int) ([]string, error)

	// CreatePortfolioSnapshot stores today's portfolio valuation for a user.
	CreatePortfolioSnapshot(ctx context.Context, userID string, entries []domain.PortfolioEntry) error
	// UserPortfolioSnapshots lists a user's snapshots in ascending date order.
	UserPortfolioSnapshots(ctx context.Context, userID string) ([]domain.PortfolioSnapshot, error)

	// RecordSecurityPrice appends one price observation for a security.
	RecordSecurityPrice(ctx context.Context, name string, price money.Amount) error
	// SecurityPriceHistory lists price observations in ascending time order.
	SecurityPriceHistory(ctx context.Context, name string) ([]domain.PricePoint, error)
}

// Store is a ledger with transactional grouping and a lifecycle.
type Store interface {
	Ledger
	// WithTx runs fn against a ledger view bound to a single database
	// transaction, committing when fn returns nil.
	WithTx(ctx context.Context, fn func(Ledger) error) error
	Close() error
}
