package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	versioncollector "github.com/prometheus/client_golang/prometheus/collectors/version"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "greenflow"

var (
	// ReadingsIngested counts enriched readings by ingestion path
	ReadingsIngested = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readings_ingested_total",
			Help:      "Number of readings enriched, by ingestion path",
		},
		[]string{"path"}, // "api", "pipeline"
	)

	// ReadingsBySeverity counts enriched readings by severity label
	ReadingsBySeverity = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readings_severity_total",
			Help:      "Number of readings enriched, by severity",
		},
		[]string{"severity"},
	)

	// AlertsEmitted counts persisted alerts by type
	AlertsEmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_emitted_total",
			Help:      "Number of alerts committed, by alert type",
		},
		[]string{"type"},
	)

	// PipelineFilesProcessed counts batch files handled by the watcher
	PipelineFilesProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "files_processed_total",
			Help:      "Number of batch files handled, by result",
		},
		[]string{"result"}, // "appended", "empty", "missing", "append_error"
	)

	// PipelineRecordsSkipped counts malformed batch lines
	PipelineRecordsSkipped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "records_skipped_total",
			Help:      "Number of batch lines skipped because they could not be parsed",
		},
	)

	// PipelineRecordsAppended counts records written to the output log
	PipelineRecordsAppended = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "records_appended_total",
			Help:      "Number of enriched records appended to the output log",
		},
	)

	// PipelineDeleteFailures counts consumed files that could not be removed
	PipelineDeleteFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "file_delete_failures_total",
			Help:      "Number of consumed batch files that could not be deleted",
		},
	)

	// PipelineScanDuration measures one full directory scan
	PipelineScanDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "scan_duration_seconds",
			Help:      "Duration of one scan of the input directory",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		},
	)

	// StreamSubscribers tracks connected live tail subscribers
	StreamSubscribers = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "subscribers",
			Help:      "Number of connected live tail subscribers, by transport",
		},
		[]string{"transport"}, // "sse", "websocket"
	)

	// StreamMessages counts messages pushed to subscribers
	StreamMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "messages_total",
			Help:      "Number of live tail messages published, by kind",
		},
		[]string{"kind"}, // "log", "fallback", "error"
	)

	// RAGQueries counts answered questions by outcome
	RAGQueries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rag",
			Name:      "queries_total",
			Help:      "Number of questions answered, by result",
		},
		[]string{"result"}, // "answered", "unavailable", "error"
	)

	// RAGQueryDuration measures end to end question latency
	RAGQueryDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rag",
			Name:      "query_duration_seconds",
			Help:      "Latency of question answering including retrieval",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 14),
		},
	)

	// RAGCacheRequests counts retrieval cache lookups
	RAGCacheRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rag",
			Name:      "cache_requests_total",
			Help:      "Retrieval cache lookups, by result",
		},
		[]string{"result"}, // "hit", "miss"
	)

	// TaskRestarts counts supervised task restarts
	TaskRestarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "supervisor",
			Name:      "task_restarts_total",
			Help:      "Number of times a supervised task was restarted after failure",
		},
		[]string{"task"},
	)

	registerOnce sync.Once
)

// Register adds every collector and the build info collector to the default
// registry. Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			ReadingsIngested,
			ReadingsBySeverity,
			AlertsEmitted,
			PipelineFilesProcessed,
			PipelineRecordsSkipped,
			PipelineRecordsAppended,
			PipelineDeleteFailures,
			PipelineScanDuration,
			StreamSubscribers,
			StreamMessages,
			RAGQueries,
			RAGQueryDuration,
			RAGCacheRequests,
			TaskRestarts,
			versioncollector.NewCollector(namespace),
		)
	})
}

// Handler serves the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}
