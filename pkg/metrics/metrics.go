// Package metrics provides Prometheus metrics for the Dahlia service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestsTotal tracks inbound HTTP requests by route and status
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dahlia",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of inbound HTTP requests",
		},
		[]string{"method", "route", "status_code"},
	)

	// HTTPRequestDuration tracks inbound HTTP request duration
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dahlia",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of inbound HTTP requests in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "route"},
	)

	// ImportRowsTotal tracks bulk-import row outcomes
	ImportRowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dahlia",
			Subsystem: "import",
			Name:      "rows_total",
			Help:      "Total number of imported rows by outcome",
		},
		[]string{"outcome"},
	)

	// ImportDuration tracks end-to-end import reconciliation duration
	ImportDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "dahlia",
			Subsystem: "import",
			Name:      "duration_seconds",
			Help:      "Duration of import reconciliation runs in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
	)

	// ChangeLogWriteFailures tracks swallowed audit-write failures
	ChangeLogWriteFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "dahlia",
			Subsystem: "changelog",
			Name:      "write_failures_total",
			Help:      "Total number of change-log writes that failed and were swallowed",
		},
	)

	// ScopeResolutions tracks visibility scope resolutions by role
	ScopeResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dahlia",
			Subsystem: "scope",
			Name:      "resolutions_total",
			Help:      "Total number of visibility scope resolutions",
		},
		[]string{"role", "empty"},
	)

	// RateLimitHits tracks import rate limit rejections
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dahlia",
			Subsystem: "ratelimit",
			Name:      "hits_total",
			Help:      "Total number of rate limit rejections",
		},
		[]string{"route"},
	)

	// KafkaMessagesPublished tracks Kafka messages published
	KafkaMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dahlia",
			Subsystem: "kafka",
			Name:      "messages_published_total",
			Help:      "Total number of messages published to Kafka",
		},
		[]string{"topic", "status"},
	)
)

// RecordImportRow records one import row outcome
func RecordImportRow(outcome string) {
	ImportRowsTotal.WithLabelValues(outcome).Inc()
}

// RecordScopeResolution records a scope resolution
func RecordScopeResolution(role string, empty bool) {
	emptyLabel := "false"
	if empty {
		emptyLabel = "true"
	}
	ScopeResolutions.WithLabelValues(role, emptyLabel).Inc()
}
