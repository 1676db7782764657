package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Gemini call latency (ms)
	ModelCallLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gemini_call_latency_ms",
			Help:    "Gemini generateContent call latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(100, 2, 10), // 100ms to ~100s
		},
		[]string{"model", "status"},
	)

	// HTTP request latency (s)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 16), // 1ms to ~65s
		},
		[]string{"method", "path", "status"},
	)

	GenerateCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "generate_requests_total",
			Help: "Total number of /generate requests by input category and outcome",
		},
		[]string{"category", "outcome"}, // outcome: text, xlsx, or an error kind
	)

	RecoveryStageCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "json_recovery_stage_total",
			Help: "Which recovery stage produced the records of a tabular reply",
		},
		[]string{"stage"},
	)

	ReplyCacheCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reply_cache_total",
			Help: "Reply cache lookups",
		},
		[]string{"result"}, // hit, miss, error
	)
)

func RecordModelCallLatency(model, status string, duration time.Duration) {
	ModelCallLatency.WithLabelValues(model, status).Observe(float64(duration.Milliseconds()))
}

func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

func IncrementGenerate(category, outcome string) {
	GenerateCount.WithLabelValues(category, outcome).Inc()
}

func IncrementRecoveryStage(stage string) {
	RecoveryStageCount.WithLabelValues(stage).Inc()
}

func IncrementReplyCache(result string) {
	ReplyCacheCount.WithLabelValues(result).Inc()
}
