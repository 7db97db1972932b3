package domain

import (
	"fmt"

	"github.com/louisbranch/papertrade.space/internal/platform/money"
)

// InsufficientFundsError reports a debit larger than the available balance.
type InsufficientFundsError struct {
	Available money.Amount
	Required  money.Amount
}

// Error implements the error interface.
func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: have %s, need %s", e.Available, e.Required)
}

// InsufficientQuantityError reports a sell larger than the held position.
type InsufficientQuantityError struct {
	Available int64
}

// Error implements the error interface.
func (e *InsufficientQuantityError) Error() string {
	return fmt.Sprintf("insufficient quantity: have %d shares", e.Available)
}
