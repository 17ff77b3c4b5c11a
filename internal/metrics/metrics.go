package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics stores Prometheus collectors used across the service.
type Metrics struct {
	WAIncomingMessages *prometheus.CounterVec
	WAOutgoingMessages *prometheus.CounterVec
	StripeRequests     *prometheus.CounterVec
	StripeLatency      *prometheus.HistogramVec
	Purchases          *prometheus.CounterVec
	Deposits           *prometheus.CounterVec
	Settlements        *prometheus.CounterVec
	Errors             *prometheus.CounterVec
}

var (
	regOnce         sync.Once
	metricsInstance *Metrics
)

// Registry builds and registers the metrics singleton with optional namespace.
func Registry(namespace string) *Metrics {
	regOnce.Do(func() {
		metricsInstance = &Metrics{
			WAIncomingMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "wa_incoming_messages_total",
				Help:      "Total incoming WhatsApp messages processed.",
			}, []string{"type"}),
			WAOutgoingMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "wa_outgoing_messages_total",
				Help:      "Total outgoing WhatsApp messages sent.",
			}, []string{"type"}),
			StripeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stripe_requests_total",
				Help:      "Total Stripe API requests by endpoint and status.",
			}, []string{"endpoint", "status"}),
			StripeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stripe_request_duration_seconds",
				Help:      "Latency distribution for Stripe API requests.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"endpoint", "status"}),
			Purchases: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "purchases_total",
				Help:      "Purchase attempts by outcome.",
			}, []string{"outcome"}),
			Deposits: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "deposits_total",
				Help:      "Deposit initiations by outcome.",
			}, []string{"outcome"}),
			Settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "settlements_total",
				Help:      "Deposit settlement polls by result.",
			}, []string{"result"}),
			Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total errors grouped by component.",
			}, []string{"component"}),
		}

		prometheus.MustRegister(
			metricsInstance.WAIncomingMessages,
			metricsInstance.WAOutgoingMessages,
			metricsInstance.StripeRequests,
			metricsInstance.StripeLatency,
			metricsInstance.Purchases,
			metricsInstance.Deposits,
			metricsInstance.Settlements,
			metricsInstance.Errors,
		)
	})
	return metricsInstance
}
