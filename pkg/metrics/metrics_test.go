package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(GenerateCount.WithLabelValues("pdf", "xlsx"))
	IncrementGenerate("pdf", "xlsx")
	assert.Equal(t, before+1, testutil.ToFloat64(GenerateCount.WithLabelValues("pdf", "xlsx")))

	before = testutil.ToFloat64(RecoveryStageCount.WithLabelValues("raw_text"))
	IncrementRecoveryStage("raw_text")
	assert.Equal(t, before+1, testutil.ToFloat64(RecoveryStageCount.WithLabelValues("raw_text")))

	before = testutil.ToFloat64(ReplyCacheCount.WithLabelValues("hit"))
	IncrementReplyCache("hit")
	assert.Equal(t, before+1, testutil.ToFloat64(ReplyCacheCount.WithLabelValues("hit")))
}

func TestHistograms(t *testing.T) {
	RecordModelCallLatency("gemini-test", "success", 250*time.Millisecond)
	RecordHTTPRequestDuration("POST", "/generate", "200", time.Second)

	assert.GreaterOrEqual(t, testutil.CollectAndCount(ModelCallLatency, "gemini_call_latency_ms"), 1)
	assert.GreaterOrEqual(t, testutil.CollectAndCount(HTTPRequestDuration, "http_request_duration_seconds"), 1)
}
