// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DeliberationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deliberations_total",
			Help: "Total number of deliberation requests by mode and outcome",
		},
		[]string{"mode", "status"},
	)

	DeliberationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "deliberation_duration_seconds",
			Help: "End-to-end deliberation duration in seconds",
		},
		[]string{"mode"},
	)

	ExpertCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "expert_calls_total",
			Help: "Total number of expert model calls by role and outcome",
		},
		[]string{"role", "status"},
	)

	ExpertCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "expert_call_duration_seconds",
			Help: "Duration of individual expert model calls in seconds",
		},
		[]string{"role"},
	)

	SearchQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_queries_total",
			Help: "Total number of vector search queries by collection and outcome",
		},
		[]string{"collection", "status"},
	)

	AnswerTokensEmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "answer_fragments_emitted_total",
			Help: "Total number of answer fragments emitted by the stream splitter",
		},
	)
)
