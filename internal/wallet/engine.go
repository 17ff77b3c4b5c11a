// Package wallet is the deposit reconciliation engine: it turns a deposit
// request into an external checkout session plus a pending transaction, and
// on confirmation credits the balance exactly once.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"bot-loja/internal/metrics"
	"bot-loja/internal/money"
	"bot-loja/internal/pay"
	"bot-loja/internal/store"
)

// Config tunes the engine.
type Config struct {
	// MinDeposit is the smallest accepted deposit in centavos.
	MinDeposit int64
	// BonusPercent is recognised configuration that no code path applies yet.
	BonusPercent float64
	// DepositExpiry is how long a pending transaction may linger before the
	// sweep marks it expired.
	DepositExpiry time.Duration
}

// Engine orchestrates deposits over the store and the payment gateway.
type Engine struct {
	store   store.Store
	gateway pay.Gateway
	cfg     Config
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates the reconciliation engine.
func New(st store.Store, gateway pay.Gateway, cfg Config, metricRegistry *metrics.Metrics, logger *slog.Logger) *Engine {
	if cfg.DepositExpiry <= 0 {
		cfg.DepositExpiry = 24 * time.Hour
	}
	return &Engine{
		store:   st,
		gateway: gateway,
		cfg:     cfg,
		metrics: metricRegistry,
		logger:  logger.With("component", "wallet"),
	}
}

// MinDeposit exposes the configured minimum for rendering.
func (e *Engine) MinDeposit() int64 {
	return e.cfg.MinDeposit
}

// DepositIntent is a created checkout session plus its pending transaction.
type DepositIntent struct {
	SessionID   string
	CheckoutURL string
	Amount      int64
	Transaction *store.Transaction
}

// SettlementStatus enumerates poll outcomes.
type SettlementStatus string

const (
	StatusPending        SettlementStatus = "pending"
	StatusSettled        SettlementStatus = "settled"
	StatusAlreadySettled SettlementStatus = "already_settled"
)

// Settlement is the result of polling a checkout session.
type Settlement struct {
	Status     SettlementStatus
	UserID     string
	Amount     int64
	NewBalance int64
}

// InitiateDeposit parses amountText, validates the minimum, opens a checkout
// session and only then records the pending transaction. The ordering matters:
// a transaction row never exists without a provider session behind it.
func (e *Engine) InitiateDeposit(ctx context.Context, userID, amountText string) (*DepositIntent, error) {
	amount, err := money.Parse(amountText)
	if err != nil {
		e.countDeposit("invalid_amount")
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, amountText)
	}
	if amount < e.cfg.MinDeposit {
		e.countDeposit("below_minimum")
		return nil, &BelowMinimumError{Minimum: e.cfg.MinDeposit, Amount: amount}
	}

	session, err := e.gateway.CreateCheckout(ctx, pay.CheckoutRequest{
		Amount:      amount,
		Description: fmt.Sprintf("Recarga de saldo %s", money.Format(amount)),
		UserID:      userID,
	})
	if err != nil {
		e.countDeposit("gateway_error")
		e.logger.Error("checkout creation failed", "error", err, "user_id", userID, "amount", amount)
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	trx, err := e.store.RecordDepositIntent(ctx, userID, amount, session.SessionID)
	if err != nil {
		e.countDeposit("storage_error")
		return nil, fmt.Errorf("record deposit intent: %w", err)
	}

	e.countDeposit("initiated")
	e.logger.Info("deposit initiated", "user_id", userID, "amount", amount, "session_id", session.SessionID)
	return &DepositIntent{
		SessionID:   session.SessionID,
		CheckoutURL: session.CheckoutURL,
		Amount:      amount,
		Transaction: trx,
	}, nil
}

// PollSettlement checks the provider and, when paid, settles the transaction.
// Safe to call any number of times, concurrently included: the store's
// conditional status flip makes the credit happen at most once. A gateway
// failure reads as unpaid (fail-closed) rather than an error to the caller.
func (e *Engine) PollSettlement(ctx context.Context, sessionID string) (*Settlement, error) {
	paid, err := e.gateway.IsPaid(ctx, sessionID)
	if err != nil {
		e.logger.Warn("payment status check failed, treating as unpaid", "error", err, "session_id", sessionID)
	}
	if !paid {
		e.countSettlement("pending")
		return &Settlement{Status: StatusPending}, nil
	}

	res, err := e.store.SettleDeposit(ctx, sessionID)
	if err != nil {
		e.countSettlement("storage_error")
		return nil, fmt.Errorf("settle deposit: %w", err)
	}
	if !res.Credited {
		e.countSettlement("already_settled")
		return &Settlement{Status: StatusAlreadySettled, UserID: res.UserID, Amount: res.Amount}, nil
	}

	e.countSettlement("settled")
	e.logger.Info("deposit settled",
		"session_id", sessionID, "user_id", res.UserID, "amount", res.Amount, "new_balance", res.NewBalance)
	return &Settlement{
		Status:     StatusSettled,
		UserID:     res.UserID,
		Amount:     res.Amount,
		NewBalance: res.NewBalance,
	}, nil
}

// RunExpirySweep periodically marks stale pending transactions as expired,
// so abandoned checkouts reach a terminal state. Blocks until ctx is done.
func (e *Engine) RunExpirySweep(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-e.cfg.DepositExpiry)
			n, err := e.store.ExpireStaleDeposits(ctx, cutoff)
			if err != nil && !errors.Is(err, context.Canceled) {
				e.logger.Error("expiry sweep failed", "error", err)
				continue
			}
			if n > 0 {
				e.logger.Info("expired stale deposits", "count", n, "cutoff", cutoff)
			}
		}
	}
}

func (e *Engine) countDeposit(outcome string) {
	if e.metrics != nil {
		e.metrics.Deposits.WithLabelValues(outcome).Inc()
	}
}

func (e *Engine) countSettlement(result string) {
	if e.metrics != nil {
		e.metrics.Settlements.WithLabelValues(result).Inc()
	}
}
