// Package metrics provides Prometheus metrics for metaguard runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds every metaguard collector. It is separate from the default
// registry so a run only exports its own series.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	entriesCompared = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "metaguard_diff_entries_compared_total",
			Help: "Total number of path pairs compared by diff",
		},
	)

	diffRecords = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metaguard_diff_records_total",
			Help: "Total number of diff records emitted",
		},
		[]string{"side"},
	)

	entriesImported = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metaguard_import_entries_total",
			Help: "Total number of entries inserted by import",
		},
		[]string{"kind"},
	)

	ancestorsCreated = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "metaguard_import_ancestors_created_total",
			Help: "Total number of missing ancestor directories created by import",
		},
	)

	entriesPruned = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "metaguard_prune_entries_total",
			Help: "Total number of metadata entries removed by prune",
		},
	)

	storeOpDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "metaguard_store_operation_duration_seconds",
			Help:    "Metadata store operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	storeOpErrors = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metaguard_store_operation_errors_total",
			Help: "Total number of failed metadata store operations",
		},
		[]string{"operation"},
	)

	remoteOpDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "metaguard_remote_operation_duration_seconds",
			Help:    "Remote tree operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	remoteOpErrors = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metaguard_remote_operation_errors_total",
			Help: "Total number of failed remote tree operations",
		},
		[]string{"operation"},
	)
)

// RecordCompared counts one compared path pair.
func RecordCompared() {
	entriesCompared.Inc()
}

// RecordDiff counts one emitted diff record for side ("S3" or "MS").
func RecordDiff(side string) {
	diffRecords.WithLabelValues(side).Inc()
}

// RecordImported counts one imported entry of the given kind.
func RecordImported(kind string) {
	entriesImported.WithLabelValues(kind).Inc()
}

// RecordAncestorCreated counts one ancestor directory created during import.
func RecordAncestorCreated() {
	ancestorsCreated.Inc()
}

// RecordPruned adds n pruned entries.
func RecordPruned(n int64) {
	if n > 0 {
		entriesPruned.Add(float64(n))
	}
}

// ObserveStoreOp records the duration and outcome of a store operation.
func ObserveStoreOp(op string, start time.Time, err error) {
	storeOpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		storeOpErrors.WithLabelValues(op).Inc()
	}
}

// ObserveRemoteOp records the duration and outcome of a remote tree operation.
func ObserveRemoteOp(op string, start time.Time, err error) {
	remoteOpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		remoteOpErrors.WithLabelValues(op).Inc()
	}
}

// WriteTextfile writes the current values of all collectors to path in the
// node exporter textfile format.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, Registry)
}
