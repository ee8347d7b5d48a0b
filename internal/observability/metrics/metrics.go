package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "ridership_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	ingestRequests *prometheus.CounterVec
	ingestRows     *prometheus.CounterVec
	ingestLatency  *prometheus.HistogramVec

	runTotal   *prometheus.CounterVec
	runLatency *prometheus.HistogramVec

	derivedAnomalies *prometheus.CounterVec
	staleSnapshots   prometheus.Counter

	aggregatesWritten *prometheus.CounterVec

	exportTotal   *prometheus.CounterVec
	exportLatency *prometheus.HistogramVec
)

// Init registers observability metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		ingestRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_requests_total",
				Help: "Total ingest requests by kind and result",
			},
			[]string{"kind", "result"},
		)
		ingestRows = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_rows_total",
				Help: "Total ingested rows by kind and disposition",
			},
			[]string{"kind", "disposition"},
		)
		ingestLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "ingest_latency_seconds",
				Help:    "Ingest latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind", "result"},
		)

		runTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "run_total",
				Help: "Total derivation and rollup runs by kind and result",
			},
			[]string{"kind", "result"},
		)
		runLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "run_latency_seconds",
				Help:    "Derivation and rollup run latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind", "result"},
		)

		derivedAnomalies = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "derived_rejected_intervals_total",
				Help: "Counter intervals rejected during derivation by reason",
			},
			[]string{"reason"},
		)
		staleSnapshots = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "derived_stale_snapshots_total",
				Help: "Dock-station snapshots flagged stale during derivation",
			},
		)

		aggregatesWritten = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "aggregates_written_total",
				Help: "Aggregate rows written by granularity",
			},
			[]string{"granularity"},
		)

		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "export_total",
				Help: "Total aggregate export operations by format and result",
			},
			[]string{"format", "result"},
		)
		exportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "export_latency_seconds",
				Help:    "Aggregate export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		prometheus.MustRegister(
			ingestRequests,
			ingestRows,
			ingestLatency,
			runTotal,
			runLatency,
			derivedAnomalies,
			staleSnapshots,
			aggregatesWritten,
			exportTotal,
			exportLatency,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveIngest records ingest request duration and result.
func ObserveIngest(kind, result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if ingestRequests != nil {
		ingestRequests.WithLabelValues(kind, result).Inc()
	}
	if ingestLatency != nil {
		ingestLatency.WithLabelValues(kind, result).Observe(duration.Seconds())
	}
}

// AddIngestRows adds to the per-disposition row counter. Dispositions are
// inserted, duplicate, skipped and malformed.
func AddIngestRows(kind, disposition string, count int) {
	if count <= 0 {
		return
	}
	if ingestRows != nil {
		ingestRows.WithLabelValues(kind, disposition).Add(float64(count))
	}
}

// ObserveRun records a derivation + rollup run duration and result.
func ObserveRun(kind, result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if runTotal != nil {
		runTotal.WithLabelValues(kind, result).Inc()
	}
	if runLatency != nil {
		runLatency.WithLabelValues(kind, result).Observe(duration.Seconds())
	}
}

// AddRejectedIntervals counts counter intervals the derivation declined.
func AddRejectedIntervals(reason string, count int) {
	if count <= 0 {
		return
	}
	if reason == "" {
		reason = "unknown"
	}
	if derivedAnomalies != nil {
		derivedAnomalies.WithLabelValues(reason).Add(float64(count))
	}
}

// AddStaleSnapshots counts snapshots flagged stale.
func AddStaleSnapshots(count int) {
	if count <= 0 {
		return
	}
	if staleSnapshots != nil {
		staleSnapshots.Add(float64(count))
	}
}

// AddAggregatesWritten counts persisted aggregate rows.
func AddAggregatesWritten(granularity string, count int) {
	if count <= 0 {
		return
	}
	if aggregatesWritten != nil {
		aggregatesWritten.WithLabelValues(granularity).Add(float64(count))
	}
}

// ObserveExport records export latency and result.
func ObserveExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if exportTotal != nil {
		exportTotal.WithLabelValues(format, result).Inc()
	}
	if exportLatency != nil {
		exportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError

	DispositionInserted  = "inserted"
	DispositionDuplicate = "duplicate"
	DispositionSkipped   = "skipped"
	DispositionMalformed = "malformed"
)
