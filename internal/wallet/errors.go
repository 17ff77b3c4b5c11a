package wallet

import (
	"errors"
	"fmt"

	"bot-loja/internal/money"
)

var (
	// ErrInvalidAmount signals unparseable deposit amount input.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrGatewayUnavailable signals a checkout-creation failure at the payment
	// provider. No transaction row exists when this is returned.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
)

// BelowMinimumError reports a deposit under the configured minimum.
type BelowMinimumError struct {
	Minimum int64
	Amount  int64
}

func (e *BelowMinimumError) Error() string {
	return fmt.Sprintf("deposit %s below minimum %s", money.Format(e.Amount), money.Format(e.Minimum))
}

// Shortfall is how much is missing to reach the minimum.
func (e *BelowMinimumError) Shortfall() int64 {
	return e.Minimum - e.Amount
}
