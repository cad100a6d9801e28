// Package metrics holds the process-wide Prometheus collectors exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingestion
	IngestBatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulse_ingest_batches_total",
			Help: "Batches received on the ingestion endpoint, by outcome",
		},
		[]string{"outcome"}, // "accepted", "rejected", "faulted"
	)

	IngestEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulse_ingest_events_total",
			Help: "Individual events received, by outcome",
		},
		[]string{"outcome"}, // "accepted", "rejected"
	)

	WriterQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pulse_writer_queue_depth",
			Help: "Batches waiting for a background writer",
		},
	)

	WriterBatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulse_writer_batches_total",
			Help: "Batches handled by the background writer, by result",
		},
		[]string{"result"}, // "written", "failed", "dropped", "breaker_open"
	)

	WriterEvents = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pulse_writer_events_written_total",
			Help: "Events durably written to the event store",
		},
	)

	WriteDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pulse_writer_write_duration_seconds",
			Help:    "Duration of event store batch inserts",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Admission
	RateLimitRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulse_ratelimit_rejections_total",
			Help: "Requests rejected by the admission limiter",
		},
		[]string{"policy"},
	)

	RateLimitErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulse_ratelimit_errors_total",
			Help: "Admission checks that failed and were let through",
		},
		[]string{"policy"},
	)

	// Aggregation
	AggregationQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulse_aggregation_requests_total",
			Help: "Aggregation endpoint calls, by metric and result",
		},
		[]string{"metric", "result"},
	)

	// Retention
	RetentionPurged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pulse_retention_purged_events_total",
			Help: "Events deleted after their retention period",
		},
	)
)
