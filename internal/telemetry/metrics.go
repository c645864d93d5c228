// Package telemetry owns the process's Prometheus registry and the
// collectors shared across the HTTP pipeline and the lesson engine.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// latencyBuckets is the explicit histogram bucket vector used for every
// latency metric in the process: 5ms..10s plus +Inf.
var latencyBuckets = []float64{
	0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// HTTPRequestsTotal counts every HTTP response by method, normalized path,
// and status code.
var HTTPRequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests processed.",
	},
	[]string{"method", "path", "status"},
)

// HTTPRequestDuration tracks HTTP request latency by method and normalized path.
var HTTPRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request duration in seconds.",
		Buckets: latencyBuckets,
	},
	[]string{"method", "path"},
)

// LessonsSavedTotal counts successful lesson creations and imports.
var LessonsSavedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "lore",
		Name:      "lessons_saved_total",
		Help:      "Total number of lessons created or imported.",
	},
)

// RecallQueriesTotal counts recall/search requests.
var RecallQueriesTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "lore",
		Name:      "recall_queries_total",
		Help:      "Total number of recall (search) queries executed.",
	},
)

// EmbeddingLatency is reserved for embedding-adjacent latency measured by the
// caller-supplied vector path. The core never computes embeddings itself, and
// no code path in this process observes this histogram; it is registered and
// exported empty.
var EmbeddingLatency = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: "lore",
		Name:      "embedding_latency_seconds",
		Help:      "Time spent validating and encoding a supplied embedding vector.",
		Buckets:   latencyBuckets,
	},
)

// VectorSearchLatency tracks the duration of the scored recall SQL query.
var VectorSearchLatency = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: "lore",
		Name:      "vector_search_latency_seconds",
		Help:      "Duration of the vector similarity recall query.",
		Buckets:   latencyBuckets,
	},
)

// DBPoolSize reports the configured maximum size of the database pool.
var DBPoolSize = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "lore",
		Name:      "db_pool_size",
		Help:      "Configured maximum size of the database connection pool.",
	},
)

// DBPoolAvailable is registered for the number of idle database connections;
// no code path in this process sets it, so it reads 0.
var DBPoolAvailable = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "lore",
		Name:      "db_pool_available",
		Help:      "Number of idle database connections currently available.",
	},
)

// All returns every lore-specific business metric for registration.
func All() []prometheus.Collector {
	return []prometheus.Collector{
		LessonsSavedTotal,
		RecallQueriesTotal,
		EmbeddingLatency,
		VectorSearchLatency,
		DBPoolSize,
		DBPoolAvailable,
	}
}

// NewMetricsRegistry creates a Prometheus registry with Go/process
// collectors, the shared HTTP metrics, and any additional service-specific
// collectors passed as arguments.
func NewMetricsRegistry(extra ...prometheus.Collector) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		HTTPRequestsTotal,
		HTTPRequestDuration,
	)
	for _, c := range extra {
		reg.MustRegister(c)
	}
	return reg
}
