package shop

import (
	"fmt"

	"bot-loja/internal/money"
	"bot-loja/internal/store"
)

// InsufficientFundsError reports a purchase attempt the buyer cannot afford,
// with the exact shortfall for display.
type InsufficientFundsError struct {
	Price   int64
	Balance int64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: price %s, balance %s", money.Format(e.Price), money.Format(e.Balance))
}

// Unwrap lets callers match with errors.Is(err, store.ErrInsufficientFunds).
func (e *InsufficientFundsError) Unwrap() error {
	return store.ErrInsufficientFunds
}

// Shortfall is the amount missing to complete the purchase.
func (e *InsufficientFundsError) Shortfall() int64 {
	return e.Price - e.Balance
}
