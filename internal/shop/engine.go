// Package shop is the order fulfillment engine: it validates affordability
// and availability, issues credentials and hands the atomic
// stock-debit-order unit to the store.
package shop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"bot-loja/internal/metrics"
	"bot-loja/internal/store"
)

// Engine orchestrates purchases over the ledger store.
type Engine struct {
	store   store.Store
	issuer  CredentialIssuer
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates the fulfillment engine.
func New(st store.Store, issuer CredentialIssuer, metricRegistry *metrics.Metrics, logger *slog.Logger) *Engine {
	if issuer == nil {
		issuer = SerialIssuer{}
	}
	return &Engine{
		store:   st,
		issuer:  issuer,
		metrics: metricRegistry,
		logger:  logger.With("component", "shop"),
	}
}

// Purchase exchanges wallet balance for product credentials. On success the
// returned order carries the credentials for one-time display; they are not
// shown again anywhere else.
//
// Rejections come back as store.ErrProductUnavailable (missing, inactive or
// sold out) or *InsufficientFundsError. Neither leaves any mutation behind.
func (e *Engine) Purchase(ctx context.Context, userID string, productID int64) (*store.Order, error) {
	user, err := e.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	product, err := e.store.GetProduct(ctx, productID)
	if errors.Is(err, store.ErrNotFound) {
		e.count("unavailable")
		return nil, fmt.Errorf("product %d: %w", productID, store.ErrProductUnavailable)
	}
	if err != nil {
		return nil, err
	}
	if !product.Active || product.Stock <= 0 {
		e.count("unavailable")
		return nil, fmt.Errorf("product %d: %w", productID, store.ErrProductUnavailable)
	}

	if user.Balance < product.Price {
		e.count("insufficient_funds")
		return nil, &InsufficientFundsError{Price: product.Price, Balance: user.Balance}
	}

	credentials, err := e.issuer.Issue(ctx, product, userID)
	if err != nil {
		e.count("error")
		return nil, fmt.Errorf("issue credentials: %w", err)
	}

	order, err := e.store.PlaceOrder(ctx, userID, productID, credentials)
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrProductUnavailable):
		// The product vanished or sold out between the read and the write.
		e.count("unavailable")
		return nil, fmt.Errorf("product %d: %w", productID, store.ErrProductUnavailable)
	case errors.Is(err, store.ErrInsufficientFunds):
		// A concurrent debit won the race; report the shortfall as of now.
		e.count("insufficient_funds")
		if current, getErr := e.store.GetUser(ctx, userID); getErr == nil {
			return nil, &InsufficientFundsError{Price: product.Price, Balance: current.Balance}
		}
		return nil, &InsufficientFundsError{Price: product.Price, Balance: user.Balance}
	case err != nil:
		e.count("error")
		return nil, err
	}

	e.count("fulfilled")
	e.logger.Info("order fulfilled",
		"order_id", order.ID, "user_id", userID, "product_id", productID, "price", order.Price)
	return order, nil
}

func (e *Engine) count(outcome string) {
	if e.metrics != nil {
		e.metrics.Purchases.WithLabelValues(outcome).Inc()
	}
}
