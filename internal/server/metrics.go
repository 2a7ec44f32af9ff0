package server

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "slime"

// Metrics holds the Prometheus instruments for the HTTP mode.
type Metrics struct {
	RequestsTotal          *prometheus.CounterVec
	ExplainDurationSeconds *prometheus.HistogramVec
	FeaturesEliminated     prometheus.Counter
	DatasetReloadsTotal    prometheus.Counter
}

// NewMetrics registers the instruments on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "requests_total",
				Help:      "Total HTTP requests by endpoint and status",
			},
			[]string{"endpoint", "status"},
		),
		ExplainDurationSeconds: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "explain_duration_seconds",
				Help:      "End-to-end explanation latency in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"endpoint"},
		),
		FeaturesEliminated: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "features_eliminated_total",
				Help:      "Features removed by the stability filter",
			},
		),
		DatasetReloadsTotal: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "dataset_reloads_total",
				Help:      "Background dataset hot reloads",
			},
		),
	}
}

var (
	metricsOnce    sync.Once
	defaultMetrics *Metrics
)

// InitMetrics registers on the process default registry once; repeated
// calls return the same instance so tests can build multiple servers.
func InitMetrics() *Metrics {
	metricsOnce.Do(func() {
		defaultMetrics = NewMetrics(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}
