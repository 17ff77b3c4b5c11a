// Package pay isolates every call to the payment provider behind a small
// Gateway interface: create a hosted checkout session, ask whether it was
// paid. It holds no state of its own.
package pay

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"bot-loja/internal/metrics"
	"bot-loja/internal/money"

	stripe "github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/client"
)

// Gateway abstracts the payment provider for the engines and for tests.
type Gateway interface {
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	IsPaid(ctx context.Context, sessionID string) (bool, error)
}

// CheckoutRequest describes one hosted payment attempt. Amount is centavos;
// UserID travels as provider metadata for reconciliation.
type CheckoutRequest struct {
	Amount      int64
	Description string
	UserID      string
}

// CheckoutSession is the provider-side representation of the attempt.
type CheckoutSession struct {
	SessionID   string
	CheckoutURL string
}

// Config holds Stripe client configuration.
type Config struct {
	APIKey     string
	Currency   string
	SuccessURL string
	CancelURL  string
	Timeout    time.Duration
}

// Stripe implements Gateway on top of stripe-go. The client.API instance is
// owned here rather than configured through the package-global stripe.Key.
type Stripe struct {
	api      *client.API
	logger   *slog.Logger
	metrics  *metrics.Metrics
	currency string
	success  string
	cancel   string
}

// NewStripe builds the gateway with a bounded HTTP client.
func NewStripe(cfg Config, logger *slog.Logger, metricRegistry *metrics.Metrics) *Stripe {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	currency := cfg.Currency
	if currency == "" {
		currency = "brl"
	}

	backends := stripe.NewBackends(&http.Client{Timeout: timeout})
	api := &client.API{}
	api.Init(cfg.APIKey, backends)

	return &Stripe{
		api:      api,
		logger:   logger.With("component", "stripe"),
		metrics:  metricRegistry,
		currency: currency,
		success:  cfg.SuccessURL,
		cancel:   cfg.CancelURL,
	}
}

// CreateCheckout opens a hosted checkout session denominated in centavos.
func (s *Stripe) CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	name := fmt.Sprintf("Recarga - %s", money.Format(req.Amount))
	params := &stripe.CheckoutSessionParams{
		Params:             stripe.Params{Context: ctx},
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:         stripe.String(s.success),
		CancelURL:          stripe.String(s.cancel),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(s.currency),
				UnitAmount: stripe.Int64(req.Amount),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name:        stripe.String(name),
					Description: stripe.String(req.Description),
				},
			},
		}},
	}
	params.AddMetadata("user_id", req.UserID)
	params.AddMetadata("amount", fmt.Sprintf("%d", req.Amount))

	start := time.Now()
	sess, err := s.api.CheckoutSessions.New(params)
	s.observe("checkout_create", start, err)
	if err != nil {
		s.logger.Error("create checkout failed", "error", err, "user_id", req.UserID, "amount", req.Amount)
		return nil, fmt.Errorf("create checkout: %w", err)
	}

	s.logger.Info("checkout session created", "session_id", sess.ID, "user_id", req.UserID, "amount", req.Amount)
	return &CheckoutSession{SessionID: sess.ID, CheckoutURL: sess.URL}, nil
}

// IsPaid reports whether the session reached an explicit paid status. Any
// other status, and any provider error, reads as unpaid.
func (s *Stripe) IsPaid(ctx context.Context, sessionID string) (bool, error) {
	params := &stripe.CheckoutSessionParams{Params: stripe.Params{Context: ctx}}
	start := time.Now()
	sess, err := s.api.CheckoutSessions.Get(sessionID, params)
	s.observe("checkout_get", start, err)
	if err != nil {
		s.logger.Warn("checkout status lookup failed", "error", err, "session_id", sessionID)
		return false, fmt.Errorf("get checkout session: %w", err)
	}
	return sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid, nil
}

func (s *Stripe) observe(endpoint string, start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	s.metrics.StripeRequests.WithLabelValues(endpoint, status).Inc()
	s.metrics.StripeLatency.WithLabelValues(endpoint, status).Observe(time.Since(start).Seconds())
}
