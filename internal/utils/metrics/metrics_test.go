package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

// createTestMetrics creates metrics with a private registry for testing.
func createTestMetrics() *Metrics {
	return New("test", prometheus.NewRegistry())
}

func TestNew(t *testing.T) {
	m := createTestMetrics()

	assert.NotNil(t, m.HTTPRequestsTotal)
	assert.NotNil(t, m.TasksSubmittedTotal)
	assert.NotNil(t, m.TasksFinishedTotal)
	assert.NotNil(t, m.QueueDepth)
	assert.NotNil(t, m.SlotBusy)
	assert.NotNil(t, m.PollAttempts)
	assert.NotNil(t, m.ProviderHealth)
	assert.NotNil(t, m.AssetsDeletedTotal)
}

func TestMetrics_RecordHTTPRequest(t *testing.T) {
	m := createTestMetrics()

	t.Run("success request", func(t *testing.T) {
		m.RecordHTTPRequest("GET", "/api/v1/tasks", 200, 100*time.Millisecond)
		count := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/api/v1/tasks", "2xx"))
		assert.Equal(t, float64(1), count)
	})

	t.Run("client error", func(t *testing.T) {
		m.RecordHTTPRequest("POST", "/api/v1/tasks", 422, 10*time.Millisecond)
		count := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("POST", "/api/v1/tasks", "4xx"))
		assert.Equal(t, float64(1), count)
	})
}

func TestMetrics_Scheduler(t *testing.T) {
	m := createTestMetrics()

	m.RecordTaskSubmitted("fal", "nano-banana")
	m.RecordTaskSubmitted("fal", "nano-banana")
	m.RecordTaskFinished("fal", "nano-banana", "success", 3*time.Second)
	m.SetQueue(2, true)
	m.RecordPollAttempts("ppio", 12)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.TasksSubmittedTotal.WithLabelValues("fal", "nano-banana")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.TasksFinishedTotal.WithLabelValues("fal", "nano-banana", "success")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.QueueDepth))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SlotBusy))

	m.SetQueue(0, false)
	assert.Equal(t, float64(0), testutil.ToFloat64(m.SlotBusy))
}

func TestMetrics_Provider(t *testing.T) {
	m := createTestMetrics()

	m.RecordProviderRequest("ppio", "generate", nil)
	m.RecordProviderRequest("ppio", "generate", errors.New("502"))
	m.SetProviderHealth("ppio", false)
	m.RecordAssetsDeleted(3)
	m.RecordAssetsDeleted(0)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.ProviderRequestsTotal.WithLabelValues("ppio", "generate", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ProviderRequestsTotal.WithLabelValues("ppio", "generate", "error")))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.ProviderHealth.WithLabelValues("ppio")))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.AssetsDeletedTotal))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordHTTPRequest("GET", "/", 200, time.Millisecond)
		m.RecordTaskSubmitted("a", "b")
		m.RecordTaskFinished("a", "b", "error", time.Second)
		m.SetQueue(1, true)
		m.RecordPollAttempts("a", 1)
		m.RecordProviderRequest("a", "b", nil)
		m.SetProviderHealth("a", true)
		m.RecordAssetsDeleted(1)
	})
}

func TestStatusCodeToString(t *testing.T) {
	assert.Equal(t, "2xx", statusCodeToString(201))
	assert.Equal(t, "3xx", statusCodeToString(304))
	assert.Equal(t, "4xx", statusCodeToString(404))
	assert.Equal(t, "5xx", statusCodeToString(502))
	assert.Equal(t, "unknown", statusCodeToString(100))
}
