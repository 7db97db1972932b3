// Package pricing resolves current security prices from Alpha Vantage and
// records observed quotes into the ledger's price history.
package pricing

import (
	"context"

	"github.com/louisbranch/papertrade.space/internal/platform/money"
)

// Quoter resolves current security prices.
type Quoter interface {
	// Quote returns the current price of one security.
	Quote(ctx context.Context, name string) (money.Amount, error)
	// Quotes resolves prices for several securities at once.
	Quotes(ctx context.Context, names []string) (map[string]money.Amount, error)
}

// HistoryStore appends observed price ticks.
type HistoryStore interface {
	RecordSecurityPrice(ctx context.Context, name string, price money.Amount) error
}
