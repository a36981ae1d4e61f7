package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the transcription pipeline.
type Metrics struct {
	ItemsProcessed prometheus.Counter
	ItemsSucceeded prometheus.Counter
	ItemsFailed    *prometheus.CounterVec

	Submissions        prometheus.Counter
	RateLimitRejects   prometheus.Counter
	PollIterations     prometheus.Counter
	ProcessingDuration prometheus.Histogram
	ItemsInFlight      prometheus.Gauge
}

// New creates and registers all pipeline metrics. A nil registerer uses
// the default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		ItemsProcessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "transcription_items_processed_total",
			Help: "Total number of work items processed",
		}),
		ItemsSucceeded: factory.NewCounter(prometheus.CounterOpts{
			Name: "transcription_items_succeeded_total",
			Help: "Total number of work items that produced a stored transcript",
		}),
		ItemsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "transcription_items_failed_total",
			Help: "Total number of failed work items by reason",
		}, []string{"reason"}),
		Submissions: factory.NewCounter(prometheus.CounterOpts{
			Name: "transcription_submissions_total",
			Help: "Total number of transcription jobs submitted upstream",
		}),
		RateLimitRejects: factory.NewCounter(prometheus.CounterOpts{
			Name: "transcription_rate_limit_rejects_total",
			Help: "Total number of submissions rejected upstream with HTTP 429",
		}),
		PollIterations: factory.NewCounter(prometheus.CounterOpts{
			Name: "transcription_poll_iterations_total",
			Help: "Total number of status poll iterations performed",
		}),
		ProcessingDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "transcription_item_duration_seconds",
			Help:    "Wall-clock time spent processing one work item",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
		ItemsInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "transcription_items_in_flight",
			Help: "Number of work items currently being processed (0 or 1)",
		}),
	}
}
