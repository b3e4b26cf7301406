package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrors counts failed Redis commands by command name.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fixmystuff_redis_errors_total",
		Help: "Total number of failed Redis commands",
	}, []string{"command"})

	// CacheLookups counts cache-aside lookups by key family and result (hit, miss, error).
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fixmystuff_cache_lookups_total",
		Help: "Cache lookups by key family and result",
	}, []string{"family", "result"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fixmystuff_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// SolutionsGenerated counts solution generations by provider and outcome.
	SolutionsGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fixmystuff_solutions_generated_total",
		Help: "Repair solutions generated by provider and outcome",
	}, []string{"provider", "outcome"})

	// SolutionLatency records how long each provider takes to produce a solution.
	SolutionLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fixmystuff_solution_latency_seconds",
		Help:    "Solution generation latency in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"provider"})

	// ImageUploads counts image uploads by kind and outcome.
	ImageUploads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fixmystuff_image_uploads_total",
		Help: "Image uploads by kind and outcome",
	}, []string{"kind", "outcome"})

	// ImageProcessing counts background variant jobs by result.
	ImageProcessing = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fixmystuff_image_processing_total",
		Help: "Background image processing jobs by result",
	}, []string{"result"})

	// FixRequests counts submitted fix requests by final status.
	FixRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fixmystuff_fix_requests_total",
		Help: "Fix requests submitted by final status",
	}, []string{"status"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}

// ObserveSolution records one generation attempt.
func ObserveSolution(provider string, start time.Time, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	SolutionsGenerated.WithLabelValues(provider, outcome).Inc()
	SolutionLatency.WithLabelValues(provider).Observe(time.Since(start).Seconds())
}
