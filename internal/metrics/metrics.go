// internal/metrics/metrics.go
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	StageEmbed    = "embed"
	StageSearch   = "search"
	StagePrompt   = "prompt"
	StageGenerate = "generate"

	OutcomeSuccess          = "success"
	OutcomeMethodNotAllowed = "method_not_allowed"
	OutcomeInvalid          = "invalid"
	OutcomeFailed           = "failed"
)

var (
	AnalysisRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analysis_requests_total",
			Help: "Total number of analysis requests by outcome",
		},
		[]string{"outcome"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "analysis_stage_duration_seconds",
			Help:    "Duration of each analysis pipeline stage in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"stage"},
	)

	StageFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analysis_stage_failures_total",
			Help: "Total number of pipeline stage failures",
		},
		[]string{"stage"},
	)

	RetrievedDocuments = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "analysis_retrieved_documents",
			Help:    "Number of knowledge-base passages returned per search",
			Buckets: []float64{0, 1, 2, 3, 5, 7, 10},
		},
	)

	IngestedChunks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "knowledge_ingested_chunks_total",
			Help: "Total number of knowledge-base chunks written by source",
		},
		[]string{"source"},
	)
)

// ObserveStage records the duration of a pipeline stage and counts it as failed when err is non-nil.
func ObserveStage(stage string, start time.Time, err error) {
	StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	if err != nil {
		StageFailures.WithLabelValues(stage).Inc()
	}
}
