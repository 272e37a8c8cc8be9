// Package metrics holds the prometheus collectors for backup and restore runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	OpExport = "export"
	OpImport = "import"
)

const (
	OutcomeOK     = "ok"
	OutcomeFailed = "failed"
)

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "backup_runs_total",
		Help: "Backup engine runs by operation and outcome",
	}, []string{"op", "outcome"})

	runDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "backup_run_duration_seconds",
		Help:    "Wall time of one export or import",
		Buckets: []float64{0.05, 0.25, 1, 5, 15, 60, 300},
	}, []string{"op"})

	archiveBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "backup_archive_bytes",
		Help:    "Size of produced archives",
		Buckets: prometheus.ExponentialBuckets(1<<10, 4, 10),
	})

	rowsRestored = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "backup_rows_restored_total",
		Help: "Rows recreated by imports, per entity kind",
	}, []string{"kind"})

	rowsDegraded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "backup_rows_degraded_total",
		Help: "Rows skipped or failed during imports",
	}, []string{"reason"})

	filesFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "backup_files_failed_total",
		Help: "Attachment bytes that could not be fetched or stored",
	}, []string{"op"})
)

// ObserveRun records the outcome and duration of one run started at start.
func ObserveRun(op string, start time.Time, err error) {
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeFailed
	}
	runsTotal.WithLabelValues(op, outcome).Inc()
	runDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func ObserveArchive(size int64) {
	archiveBytes.Observe(float64(size))
}

// AddRestored adds n restored rows of the given kind. Zero counts are ignored.
func AddRestored(kind string, n int) {
	if n > 0 {
		rowsRestored.WithLabelValues(kind).Add(float64(n))
	}
}

func AddDegraded(reason string, n int) {
	if n > 0 {
		rowsDegraded.WithLabelValues(reason).Add(float64(n))
	}
}

func AddFilesFailed(op string, n int) {
	if n > 0 {
		filesFailed.WithLabelValues(op).Add(float64(n))
	}
}
