package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Pipeline stage names used as the "stage" label.
const (
	StageExpand       = "expand"
	StageRetrieve     = "retrieve"
	StageSummary      = "summary"
	StageRelated      = "related"
	StageLearningPath = "learning_path"
	StageChat         = "chat"
)

// Pipeline Prometheus metrics.
var (
	StageOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_stage_outcomes_total",
			Help:      "Pipeline stage executions by outcome (ok, fallback, error, empty)",
		},
		[]string{"stage", "outcome"},
	)

	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_stage_duration_seconds",
			Help:      "Pipeline stage duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"stage"},
	)

	RetrievalFilteredMatches = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieval_filtered_matches",
			Help:      "Passage matches kept after the score floor",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 30, 50, 100},
		},
	)

	ExpansionCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expansion_cache_total",
			Help:      "Query expansion cache hits and misses",
		},
		[]string{"result"},
	)

	ChatSessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "chat_ws_sessions_active",
			Help:      "Open chat WebSocket sessions",
		},
	)
)

var pipelineMetricsOnce sync.Once

// RegisterPipelineMetrics registers Prometheus pipeline metrics. Safe to call more than once.
func RegisterPipelineMetrics() {
	pipelineMetricsOnce.Do(func() {
		prometheus.MustRegister(
			StageOutcomesTotal,
			StageDuration,
			RetrievalFilteredMatches,
			ExpansionCacheTotal,
			ChatSessionsActive,
		)
	})
}

// ObserveStage records a stage outcome and its duration in seconds.
func ObserveStage(stage, outcome string, seconds float64) {
	StageOutcomesTotal.WithLabelValues(stage, outcome).Inc()
	StageDuration.WithLabelValues(stage).Observe(seconds)
}
