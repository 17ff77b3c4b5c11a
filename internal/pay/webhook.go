package pay

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"bot-loja/internal/metrics"

	"github.com/stripe/stripe-go/v72/webhook"
)

const maxWebhookBody = 64 << 10

// WebhookEvent carries a verified provider event to the processor.
type WebhookEvent struct {
	Type       string
	SessionID  string
	Payload    json.RawMessage
	ReceivedAt time.Time
}

// WebhookProcessor handles verified Stripe events.
type WebhookProcessor interface {
	HandleStripeEvent(ctx context.Context, event WebhookEvent) error
}

// WebhookHandler verifies Stripe webhook signatures and forwards checkout
// events. Settlement stays idempotent downstream, so replayed deliveries are
// harmless.
type WebhookHandler struct {
	logger    *slog.Logger
	metrics   *metrics.Metrics
	secret    string
	processor WebhookProcessor
}

// NewWebhookHandler creates the HTTP handler for /webhook/stripe.
func NewWebhookHandler(logger *slog.Logger, metricRegistry *metrics.Metrics, signingSecret string, processor WebhookProcessor) *WebhookHandler {
	return &WebhookHandler{
		logger:    logger.With("component", "stripe_webhook"),
		metrics:   metricRegistry,
		secret:    signingSecret,
		processor: processor,
	}
}

// ServeHTTP satisfies http.Handler.
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		h.metrics.Errors.WithLabelValues("stripe_webhook").Inc()
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	event, err := webhook.ConstructEvent(body, r.Header.Get("Stripe-Signature"), h.secret)
	if err != nil {
		h.logger.Warn("webhook signature rejected", "error", err)
		h.metrics.Errors.WithLabelValues("stripe_webhook_auth").Inc()
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	var object struct {
		ID string `json:"id"`
	}
	if len(event.Data.Raw) > 0 {
		if err := json.Unmarshal(event.Data.Raw, &object); err != nil {
			h.logger.Warn("webhook payload not decodable", "error", err, "event", event.Type)
		}
	}

	if h.processor != nil {
		evt := WebhookEvent{
			Type:       event.Type,
			SessionID:  object.ID,
			Payload:    event.Data.Raw,
			ReceivedAt: time.Now(),
		}
		if err := h.processor.HandleStripeEvent(r.Context(), evt); err != nil {
			h.logger.Error("failed processing webhook", "error", err, "event", event.Type, "session_id", object.ID)
			h.metrics.Errors.WithLabelValues("stripe_webhook_process").Inc()
			http.Error(w, "failed to process", http.StatusInternalServerError)
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
