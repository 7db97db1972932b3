// Package money represents currency amounts as integer counts of cents.
//
// Ledger tables store amount_cents columns; this package keeps arithmetic on
// the integer representation and confines decimal math to parsing and
// display.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// Amount is a USD amount in cents.
type Amount int64

// FromCents wraps a cent count.
func FromCents(cents int64) Amount {
	return Amount(cents)
}

// ParsePrice converts a decimal price string such as "123.4500" into cents,
// rounding half up at the second decimal place.
func ParsePrice(value string) (Amount, error) {
	price, err := decimal.NewFromString(value)
	if err != nil {
		return 0, fmt.Errorf("parse price %q: %w", value, err)
	}
	cents := price.Mul(decimal.NewFromInt(100)).Round(0)
	if !cents.IsInteger() {
		return 0, fmt.Errorf("parse price %q: not representable in cents", value)
	}
	return Amount(cents.IntPart()), nil
}

// Cents returns the raw cent count.
func (a Amount) Cents() int64 {
	return int64(a)
}

// Mul scales the amount by an integer quantity.
func (a Amount) Mul(quantity int64) Amount {
	return Amount(int64(a) * quantity)
}

// Add returns the sum of two amounts.
func (a Amount) Add(other Amount) Amount {
	return a + other
}

// Sub returns the difference of two amounts.
func (a Amount) Sub(other Amount) Amount {
	return a - other
}

// Abs returns the magnitude of the amount.
func (a Amount) Abs() Amount {
	if a < 0 {
		return -a
	}
	return a
}

// IsNegative reports whether the amount is below zero.
func (a Amount) IsNegative() bool {
	return a < 0
}

// Decimal returns the amount in whole currency units.
func (a Amount) Decimal() decimal.Decimal {
	return decimal.New(int64(a), -2)
}

// String formats the amount as grouped dollars, e.g. "$1,234.56".
func (a Amount) String() string {
	cents := int64(a)
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return printer.Sprintf("%s$%d.%02d", sign, cents/100, cents%100)
}

// ReturnRate computes the percentage gain of current value over cost.
// A zero cost yields zero to keep empty positions flat.
func ReturnRate(cost, current Amount) float64 {
	if cost == 0 {
		return 0
	}
	rate, _ := current.Decimal().
		Sub(cost.Decimal()).
		Div(cost.Decimal()).
		Mul(decimal.NewFromInt(100)).
		Float64()
	return rate
}
