package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	QueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "course_rag_query_duration_seconds",
			Help:    "Query processing duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"tool_used"},
	)

	QueryTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "course_rag_query_total",
			Help: "Total number of queries processed",
		},
		[]string{"status"},
	)

	ToolInvocations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "course_rag_tool_invocations_total",
			Help: "Total tool executions requested by the model",
		},
		[]string{"tool"},
	)

	CoursesIndexed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "course_rag_courses_indexed_total",
			Help: "Total courses ingested into the vector store",
		},
	)

	ChunksIndexed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "course_rag_chunks_indexed_total",
			Help: "Total content chunks ingested into the vector store",
		},
	)

	SearchResultsCount = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "course_rag_search_results_count",
			Help:    "Number of content hits per retrieval",
			Buckets: []float64{0, 1, 2, 5, 10, 20},
		},
	)

	EmbeddingCacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "course_rag_embedding_cache_total",
			Help: "Embedding cache lookups by outcome",
		},
		[]string{"outcome"},
	)
)

func Init() {
	prometheus.MustRegister(QueryDuration)
	prometheus.MustRegister(QueryTotal)
	prometheus.MustRegister(ToolInvocations)
	prometheus.MustRegister(CoursesIndexed)
	prometheus.MustRegister(ChunksIndexed)
	prometheus.MustRegister(SearchResultsCount)
	prometheus.MustRegister(EmbeddingCacheHits)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
