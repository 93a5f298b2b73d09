// Package metrics defines the pipeline's prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Coordinator metrics
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "etl_notifications_total",
			Help: "Landing notifications processed, by outcome",
		},
		[]string{"outcome"}, // dispatched, skipped, duplicate
	)

	JobsDispatched = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "etl_jobs_dispatched_total",
			Help: "Bulk extraction jobs accepted by the execution service",
		},
	)

	// Bus metrics
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "etl_events_published_total",
			Help: "Lifecycle events published to the bus, by detail type",
		},
		[]string{"detail_type"},
	)

	// Task-runner metrics
	RowsExtracted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "etl_rows_extracted_total",
			Help: "Data rows read from landed objects",
		},
	)

	// Transformer metrics
	TransformErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "etl_transform_errors_total",
			Help: "Rows rejected by the transformer",
		},
	)

	// Loader metrics
	RecordsLoaded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "etl_records_loaded_total",
			Help: "Records upserted into the persistent store",
		},
	)

	// Observer metrics
	EventsObserved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "etl_events_observed_total",
			Help: "Events seen by the observer, by detail type",
		},
		[]string{"detail_type"},
	)
)

// Handler returns the HTTP handler exposing the collectors.
func Handler() http.Handler {
	return promhttp.Handler()
}
