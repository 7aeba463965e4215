package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	Completions       *prometheus.CounterVec
	CompletionLatency prometheus.Histogram
	HistoryResets     prometheus.Counter
	LockWaits         *prometheus.CounterVec
	AuthEvents        *prometheus.CounterVec
}

// NewMetrics registers the instruments on reg. Tests pass a fresh registry.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Completions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_completions_total",
			Help:      "Chat completions by outcome (ok, fallback, error).",
		}, []string{"outcome"}),
		CompletionLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "chat_completion_latency_ms",
			Help:      "Model call latency in milliseconds.",
			Buckets:   []float64{250, 500, 1000, 2000, 4000, 8000, 16000, 32000},
		}),
		HistoryResets: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_history_resets_total",
			Help:      "Chat histories cleared by their owner.",
		}),
		LockWaits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_lock_acquisitions_total",
			Help:      "Per-user conversation lock acquisitions by result.",
		}, []string{"result"}),
		AuthEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_events_total",
			Help:      "Authentication events by type.",
		}, []string{"event"}),
	}
}

func (m *Metrics) ObserveCompletion(outcome string, d time.Duration) {
	m.Completions.WithLabelValues(outcome).Inc()
	m.CompletionLatency.Observe(float64(d.Milliseconds()))
}

func MetricsHandler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
