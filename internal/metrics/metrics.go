// Package metrics provides Prometheus metrics for folder browsing sessions.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Fetch results.
const (
	FetchCompleted = "completed"
	FetchCancelled = "cancelled"
	FetchFailed    = "error"
)

var (
	// Fetch metrics
	fetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "folderview_fetches_total",
			Help: "Total fetch sessions by result",
		},
		[]string{"result"},
	)

	fetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "folderview_fetch_duration_seconds",
			Help:    "Time from fetch start until completion or cancellation",
			Buckets: prometheus.DefBuckets,
		},
	)

	recordsStreamed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "folderview_records_streamed_total",
			Help: "Total records appended to fetch buffers",
		},
	)

	fetchesActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "folderview_fetches_active",
			Help: "Number of fetch sessions currently running",
		},
	)

	// Hierarchy metrics
	aggregationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "folderview_aggregation_duration_seconds",
			Help:    "Time to aggregate a record buffer into folders",
			Buckets: prometheus.DefBuckets,
		},
	)

	subfolderCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "folderview_subfolders",
			Help: "Number of subfolders in the most recent aggregation",
		},
	)

	historyMismatchTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "folderview_history_mismatch_total",
			Help: "Back navigations refused because the path history was inconsistent",
		},
	)

	// Source metrics
	sourceOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "folderview_source_operation_duration_seconds",
			Help:    "Record source operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source", "operation"},
	)

	sourceOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "folderview_source_operations_total",
			Help: "Total record source operations",
		},
		[]string{"source", "operation", "status"},
	)

	// Deletion metrics
	deletionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "folderview_deletions_total",
			Help: "Total records deleted by strategy and status",
		},
		[]string{"strategy", "status"},
	)

	confirmationsPending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "folderview_confirmations_pending",
			Help: "Bulk deletion confirmations awaiting a caller decision",
		},
	)

	confirmationsResolved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "folderview_confirmations_resolved_total",
			Help: "Bulk deletion confirmations by resolution",
		},
		[]string{"resolution"},
	)

	// Event metrics
	subscribersActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "folderview_subscribers_active",
			Help: "Number of active event subscribers",
		},
		[]string{"stream"},
	)

	eventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "folderview_events_dropped_total",
			Help: "Events dropped for slow subscribers",
		},
		[]string{"stream"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// FetchStarted marks a fetch session as running.
func FetchStarted() {
	fetchesActive.Inc()
}

// FetchFinished records the end of a fetch session.
func FetchFinished(result string, duration time.Duration) {
	fetchesActive.Dec()
	fetchesTotal.WithLabelValues(result).Inc()
	fetchDuration.Observe(duration.Seconds())
}

// RecordStreamed counts one record appended to a buffer.
func RecordStreamed() {
	recordsStreamed.Inc()
}

// RecordAggregation records an aggregation pass.
func RecordAggregation(duration time.Duration, folders int) {
	aggregationDuration.Observe(duration.Seconds())
	subfolderCount.Set(float64(folders))
}

// RecordHistoryMismatch counts a refused back navigation.
func RecordHistoryMismatch() {
	historyMismatchTotal.Inc()
}

// RecordSourceOperation records a record source call.
func RecordSourceOperation(source, operation string, duration time.Duration, success bool) {
	sourceOperationDuration.WithLabelValues(source, operation).Observe(duration.Seconds())
	status := "success"
	if !success {
		status = "error"
	}
	sourceOperationsTotal.WithLabelValues(source, operation, status).Inc()
}

// RecordDeletion records one record deletion attempt.
func RecordDeletion(strategy string, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	deletionsTotal.WithLabelValues(strategy, status).Inc()
}

// SetConfirmationsPending sets the number of pending bulk confirmations.
func SetConfirmationsPending(count int) {
	confirmationsPending.Set(float64(count))
}

// RecordConfirmationResolved records how a bulk confirmation ended.
func RecordConfirmationResolved(resolution string) {
	confirmationsResolved.WithLabelValues(resolution).Inc()
}

// SetSubscribersActive sets the subscriber count for an event stream.
func SetSubscribersActive(stream string, count int) {
	subscribersActive.WithLabelValues(stream).Set(float64(count))
}

// RecordEventDropped counts an event dropped for a slow subscriber.
func RecordEventDropped(stream string) {
	eventsDropped.WithLabelValues(stream).Inc()
}
