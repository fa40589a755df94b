package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the outreach pipeline
type Metrics struct {
	// Verification metrics
	ClientsVerified prometheus.Counter
	ClientsFlagged  prometheus.Counter

	// Queue metrics
	EmailsQueued prometheus.Counter
	TextsQueued  prometheus.Counter

	// Dispatch metrics
	EmailsSent   prometheus.Counter
	TextsSent    prometheus.Counter
	SendFailures *prometheus.CounterVec

	// Job metrics
	BuildDuration prometheus.Histogram
	PeriodsBuilt  prometheus.Counter
}

// New creates a new Metrics instance with all metrics registered
func New() *Metrics {
	return &Metrics{
		ClientsVerified: promauto.NewCounter(prometheus.CounterOpts{
			Name: "clients_verified_total",
			Help: "Total number of clients run through the verification gate",
		}),
		ClientsFlagged: promauto.NewCounter(prometheus.CounterOpts{
			Name: "clients_flagged_total",
			Help: "Total number of clients routed to the review list",
		}),
		EmailsQueued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "emails_queued_total",
			Help: "Total number of email queue entries created",
		}),
		TextsQueued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "texts_queued_total",
			Help: "Total number of text queue entries created",
		}),
		EmailsSent: promauto.NewCounter(prometheus.CounterOpts{
			Name: "emails_sent_total",
			Help: "Total number of emails dispatched",
		}),
		TextsSent: promauto.NewCounter(prometheus.CounterOpts{
			Name: "texts_sent_total",
			Help: "Total number of texts dispatched",
		}),
		SendFailures: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "send_failures_total",
				Help: "Total number of failed dispatch attempts by channel",
			},
			[]string{"channel"},
		),
		BuildDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "daily_build_duration_seconds",
			Help:    "Daily queue build latency in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		PeriodsBuilt: promauto.NewCounter(prometheus.CounterOpts{
			Name: "periods_built_total",
			Help: "Total number of campaign periods created",
		}),
	}
}
