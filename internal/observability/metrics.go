package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service. A nil
// *Metrics is valid and records nothing, so the pipeline can run without
// the metrics surface wired.
type Metrics struct {
	TurnsTotal         *prometheus.CounterVec
	StageLatency       *prometheus.HistogramVec
	ProviderErrors     *prometheus.CounterVec
	RecallSize         *prometheus.HistogramVec
	MemorizedFragments prometheus.Counter
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		TurnsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Handled turns by outcome.",
		}, []string{"outcome"}),
		StageLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_latency_ms",
			Help:      "Per-stage latency of the turn pipeline in milliseconds.",
			Buckets:   []float64{10, 50, 100, 250, 500, 1000, 2500, 5000, 15000, 60000},
		}, []string{"stage"}),
		ProviderErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_errors_total",
			Help:      "Upstream provider errors by stage.",
		}, []string{"stage"}),
		RecallSize: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "recall_size",
			Help:      "Items recalled per turn by source.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		}, []string{"source"}),
		MemorizedFragments: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memorized_fragments_total",
			Help:      "Fragments committed to the semantic store.",
		}),
	}
}

func (m *Metrics) IncTurn(outcome string) {
	if m == nil {
		return
	}
	m.TurnsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.StageLatency.WithLabelValues(stage).Observe(float64(d.Milliseconds()))
}

func (m *Metrics) IncProviderError(stage string) {
	if m == nil {
		return
	}
	m.ProviderErrors.WithLabelValues(stage).Inc()
}

func (m *Metrics) ObserveRecall(source string, n int) {
	if m == nil {
		return
	}
	m.RecallSize.WithLabelValues(source).Observe(float64(n))
}

func (m *Metrics) AddMemorized(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.MemorizedFragments.Add(float64(n))
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
