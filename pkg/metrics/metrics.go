package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all dispatch engine metrics
type Metrics struct {
	// Scheduled message metrics
	MessagesSent        prometheus.Counter
	MessagesFailed      prometheus.Counter
	MessageRetries      prometheus.Counter
	MessageBatchLatency prometheus.Histogram

	// Campaign metrics
	RecipientsSent       prometheus.Counter
	RecipientsFailed     prometheus.Counter
	CampaignBatchLatency prometheus.Histogram

	// Database metrics
	DatabaseOperations *prometheus.CounterVec
}

// NewMetrics creates and registers all dispatch metrics with the default
// registry. Use New in tests to avoid duplicate registration.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		MessagesSent: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduled_messages_sent_total",
			Help:      "Total number of scheduled messages delivered",
		}),
		MessagesFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduled_messages_failed_total",
			Help:      "Total number of scheduled messages that reached terminal failure",
		}),
		MessageRetries: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduled_message_retries_total",
			Help:      "Total number of retry attempts scheduled",
		}),
		MessageBatchLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "message_batch_duration_seconds",
			Help:      "Time spent processing one batch of due scheduled messages",
			Buckets:   []float64{.01, .05, .1, .5, 1, 5, 10, 30, 60},
		}),
		RecipientsSent: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "campaign_recipients_sent_total",
			Help:      "Total number of campaign recipients delivered",
		}),
		RecipientsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "campaign_recipients_failed_total",
			Help:      "Total number of campaign recipients that failed",
		}),
		CampaignBatchLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "campaign_batch_duration_seconds",
			Help:      "Time spent processing one batch of active campaigns",
			Buckets:   []float64{.01, .05, .1, .5, 1, 5, 10, 30, 60},
		}),
		DatabaseOperations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "database_operations_total",
			Help:      "Total number of database operations",
		}, []string{"operation", "status"}),
	}
}

// New creates unregistered dispatch metrics, safe to construct repeatedly.
func New(namespace string) *Metrics {
	return &Metrics{
		MessagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduled_messages_sent_total",
			Help:      "Total number of scheduled messages delivered",
		}),
		MessagesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduled_messages_failed_total",
			Help:      "Total number of scheduled messages that reached terminal failure",
		}),
		MessageRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduled_message_retries_total",
			Help:      "Total number of retry attempts scheduled",
		}),
		MessageBatchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "message_batch_duration_seconds",
			Help:      "Time spent processing one batch of due scheduled messages",
		}),
		RecipientsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "campaign_recipients_sent_total",
			Help:      "Total number of campaign recipients delivered",
		}),
		RecipientsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "campaign_recipients_failed_total",
			Help:      "Total number of campaign recipients that failed",
		}),
		CampaignBatchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "campaign_batch_duration_seconds",
			Help:      "Time spent processing one batch of active campaigns",
		}),
		DatabaseOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "database_operations_total",
			Help:      "Total number of database operations",
		}, []string{"operation", "status"}),
	}
}
