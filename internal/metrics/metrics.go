package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// AnalysesTotal counts analyzed images by result (success or error kind).
	AnalysesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "upcycle",
		Subsystem: "vision",
		Name:      "analyses_total",
		Help:      "Total number of image analyses, labeled by result.",
	}, []string{"result"})

	// AnalysisDurationSeconds is the time spent per image, retries included.
	AnalysisDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "upcycle",
		Subsystem: "vision",
		Name:      "analysis_duration_seconds",
		Help:      "Time to analyze one image including retries and recommendations.",
		Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60, 120, 240},
	}, []string{"result"})

	ProviderAttemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "upcycle",
		Subsystem: "vision",
		Name:      "provider_attempts_total",
		Help:      "Total number of provider calls, labeled by outcome.",
	}, []string{"outcome"})

	ProviderRetriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "upcycle",
		Subsystem: "vision",
		Name:      "provider_retries_total",
		Help:      "Total number of provider retries after a transient failure.",
	})

	CacheLookupsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "upcycle",
		Subsystem: "vision",
		Name:      "cache_lookups_total",
		Help:      "Result cache lookups, labeled by hit, miss or error.",
	}, []string{"result"})

	EventsPublishedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "upcycle",
		Subsystem: "vision",
		Name:      "events_published_total",
		Help:      "Analysis events handed to the broker, labeled by result.",
	}, []string{"result"})

	// InFlight is the number of images currently being analyzed.
	InFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "upcycle",
		Subsystem: "vision",
		Name:      "analyses_in_flight",
		Help:      "Current number of images being analyzed.",
	})

	BatchSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "upcycle",
		Subsystem: "vision",
		Name:      "batch_size",
		Help:      "Number of entries submitted per batch request.",
		Buckets:   []float64{0, 1, 2, 3, 5, 8, 10, 15, 20},
	})
)

// Register registers metrics with the default Prometheus registry.
// Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			AnalysesTotal,
			AnalysisDurationSeconds,
			ProviderAttemptsTotal,
			ProviderRetriesTotal,
			CacheLookupsTotal,
			EventsPublishedTotal,
			InFlight,
			BatchSize,
		)
	})
}
