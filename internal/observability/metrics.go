// Package observability holds the Prometheus metrics of the FD2W pipeline.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "fd2w"

// Metrics holds the Prometheus counters, histograms, and gauges for the pipeline.
type Metrics struct {
	Runs          *prometheus.CounterVec   // labels: outcome={success,error,cached}
	StageDuration *prometheus.HistogramVec // labels: stage
	Records       *prometheus.CounterVec   // labels: kind={cells,records,aggregated,locations,points}
	CoercedCells  prometheus.Counter
	LastSuccess   prometheus.Gauge

	// Geocoding metrics.
	GeocodeOutcomes    *prometheus.CounterVec // labels: source={registry,primary,fallback,not_found,failed,skipped}
	GeocodeRequests    *prometheus.CounterVec // labels: outcome={success,empty,error,retry}
	GeocodeCache       *prometheus.CounterVec // labels: layer={memory,sqlite}, result={hit,miss}
	GeocodeAPIDuration prometheus.Histogram
	GeocodeEnabled     prometheus.Gauge

	MessagesProduced prometheus.Counter
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.Runs,
		m.StageDuration,
		m.Records,
		m.CoercedCells,
		m.LastSuccess,
		m.GeocodeOutcomes,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.GeocodeAPIDuration,
		m.GeocodeEnabled,
		m.MessagesProduced,
	)
	return m
}

// NewLocalMetrics creates Metrics registered nowhere, for one-shot commands
// that never serve /metrics.
func NewLocalMetrics() *Metrics {
	return newMetrics()
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Pipeline runs by outcome.",
		}, []string{"outcome"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30, 120},
		}, []string{"stage"}),
		Records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_total",
			Help:      "Records produced by each stage.",
		}, []string{"kind"}),
		CoercedCells: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coerced_cells_total",
			Help:      "Non-numeric volume cells read as zero.",
		}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run.",
		}),
		GeocodeOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_outcomes_total",
			Help:      "Location entries by coordinate source after geocoding.",
		}, []string{"source"}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_requests_total",
			Help:      "Outbound geocoding requests by outcome.",
		}, []string{"outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_total",
			Help:      "Geocoding cache lookups by layer and result.",
		}, []string{"layer", "result"}),
		GeocodeAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "geocode_api_duration_seconds",
			Help:      "Geocoding API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		GeocodeEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "geocode_enabled",
			Help:      "1 when geocoding is enabled, 0 otherwise.",
		}),
		MessagesProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_produced_total",
			Help:      "Total messages written to the Kafka topic.",
		}),
	}
}
