package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Scheduler metrics
	TasksSubmittedTotal *prometheus.CounterVec
	TasksFinishedTotal  *prometheus.CounterVec
	TaskDuration        *prometheus.HistogramVec
	QueueDepth          prometheus.Gauge
	SlotBusy            prometheus.Gauge
	PollAttempts        *prometheus.HistogramVec

	// Provider metrics
	ProviderRequestsTotal *prometheus.CounterVec
	ProviderHealth        *prometheus.GaugeVec

	// Asset metrics
	AssetsDeletedTotal prometheus.Counter
}

// New creates a Metrics instance registered with reg. A nil reg uses the default
// Prometheus registerer.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "henji"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_in_flight",
				Help:      "Current number of HTTP requests being processed",
			},
		),

		TasksSubmittedTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "scheduler",
				Name:      "tasks_submitted_total",
				Help:      "Total number of accepted generation tasks",
			},
			[]string{"provider", "model"},
		),
		TasksFinishedTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "scheduler",
				Name:      "tasks_finished_total",
				Help:      "Total number of tasks that left the execution slot",
			},
			[]string{"provider", "model", "status"}, // status: success, error, timeout
		),
		TaskDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "scheduler",
				Name:      "task_duration_seconds",
				Help:      "Time a task held the execution slot",
				Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
			},
			[]string{"provider", "model"},
		),
		QueueDepth: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "scheduler",
				Name:      "queue_depth",
				Help:      "Number of queued tasks",
			},
		),
		SlotBusy: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "scheduler",
				Name:      "slot_busy",
				Help:      "Whether the execution slot is held (1) or free (0)",
			},
		),
		PollAttempts: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "scheduler",
				Name:      "poll_attempts",
				Help:      "Poll attempts per completed poll cycle",
				Buckets:   []float64{1, 5, 10, 20, 40, 80, 120},
			},
			[]string{"provider"},
		),

		ProviderRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "provider",
				Name:      "requests_total",
				Help:      "Total number of provider API calls",
			},
			[]string{"provider", "operation", "status"},
		),
		ProviderHealth: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "provider",
				Name:      "health",
				Help:      "Provider circuit state (1=closed, 0=open)",
			},
			[]string{"provider"},
		),

		AssetsDeletedTotal: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "assets",
				Name:      "deleted_total",
				Help:      "Total number of unlinked asset files",
			},
		),
	}
}

// --- Convenience methods ---

// RecordHTTPRequest records an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	statusStr := statusCodeToString(status)
	m.HTTPRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordTaskSubmitted counts an accepted task.
func (m *Metrics) RecordTaskSubmitted(provider, model string) {
	if m == nil {
		return
	}
	m.TasksSubmittedTotal.WithLabelValues(provider, model).Inc()
}

// RecordTaskFinished records a task leaving the slot.
func (m *Metrics) RecordTaskFinished(provider, model, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.TasksFinishedTotal.WithLabelValues(provider, model, status).Inc()
	m.TaskDuration.WithLabelValues(provider, model).Observe(duration.Seconds())
}

// SetQueue publishes the queue depth and slot state.
func (m *Metrics) SetQueue(depth int, busy bool) {
	if m == nil {
		return
	}
	m.QueueDepth.Set(float64(depth))
	m.SlotBusy.Set(boolToFloat(busy))
}

// RecordPollAttempts records the attempts one poll cycle used.
func (m *Metrics) RecordPollAttempts(provider string, attempts int) {
	if m == nil {
		return
	}
	m.PollAttempts.WithLabelValues(provider).Observe(float64(attempts))
}

// RecordProviderRequest counts a provider API call.
func (m *Metrics) RecordProviderRequest(provider, operation string, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.ProviderRequestsTotal.WithLabelValues(provider, operation, status).Inc()
}

// SetProviderHealth sets the health status of a provider.
func (m *Metrics) SetProviderHealth(provider string, healthy bool) {
	if m == nil {
		return
	}
	m.ProviderHealth.WithLabelValues(provider).Set(boolToFloat(healthy))
}

// RecordAssetsDeleted counts unlinked asset files.
func (m *Metrics) RecordAssetsDeleted(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.AssetsDeletedTotal.Add(float64(n))
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// statusCodeToString converts an HTTP status code to a string category.
func statusCodeToString(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
