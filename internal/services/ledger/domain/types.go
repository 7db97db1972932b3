// Package domain defines ledger record types shared by storage, the service
// layer, and the API surface.
package domain

import (
	"fmt"
	"time"

	"github.com/louisbranch/papertrade.space/internal/platform/money"
)

// TransactionType is the direction of a ledger transaction.
type TransactionType string

const (
	// TransactionCredit adds funds to a user's balance.
	TransactionCredit TransactionType = "CREDIT"
	// TransactionDebit removes funds from a user's balance.
	TransactionDebit TransactionType = "DEBIT"
)

// OrderType is the side of a trade order.
type OrderType string

const (
	// OrderBuy acquires shares of a security.
	OrderBuy OrderType = "BUY"
	// OrderSell disposes shares of a security.
	OrderSell OrderType = "SELL"
)

// ParseOrderType validates an order side literal.
func ParseOrderType(value string) (OrderType, error) {
	switch OrderType(value) {
	case OrderBuy:
		return OrderBuy, nil
	case OrderSell:
		return OrderSell, nil
	}
	return "", fmt.Errorf("unknown order type %q", value)
}

// TransactionInsert is the caller-supplied portion of a transaction row.
type TransactionInsert struct {
	UserID  string
	Type    TransactionType
	Amount  money.Amount
	Comment string
}

// Transaction is one persisted ledger transaction.
type Transaction struct {
	ID        int64
	CreatedAt time.Time
	UserID    string
	Type      TransactionType
	Amount    money.Amount
	Comment   string
}

// OrderInsert is the caller-supplied portion of an order row.
type OrderInsert struct {
	UserID        string
	TransactionID int64
	Type          OrderType
	SecurityName  string
	SecurityPrice money.Amount
	Quantity      int64
}

// Order is one persisted trade order together with its funding transaction.
type Order struct {
	ID            int64
	CreatedAt     time.Time
	UserID        string
	TransactionID int64
	Type          OrderType
	SecurityName  string
	SecurityPrice money.Amount
	Quantity      int64
}

// OwnedSecurity aggregates a user's net position in one security.
type OwnedSecurity struct {
	Name           string
	Quantity       int64
	TotalPricePaid money.Amount
}

// PortfolioEntry values one held security at current prices.
type PortfolioEntry struct {
	SecurityName   string       `json:"security_name"`
	Balance        money.Amount `json:"balance_cents"`
	Quantity       int64        `json:"quantity"`
	TotalPricePaid money.Amount `json:"total_price_paid_cents"`
	ReturnRate     float64      `json:"return_rate"`
}

// PortfolioSnapshot is one day's portfolio valuation for a user.
type PortfolioSnapshot struct {
	CreatedAt time.Time
	Entries   []PortfolioEntry
}

// PricePoint is one recorded security price observation.
type PricePoint struct {
	Name      string
	CreatedAt time.Time
	Price     money.Amount
}

// NetBalance is the snapshot's total unrealized gain: the sum of each
// entry's current value minus what was paid for it.
func (s PortfolioSnapshot) NetBalance() money.Amount {
	var total money.Amount
	for _, entry := range s.Entries {
		total = total.Add(entry.Balance.Sub(entry.TotalPricePaid))
	}
	return total
}
