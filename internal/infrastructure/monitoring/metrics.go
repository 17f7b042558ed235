package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "livedemo"

// Metrics holds all Prometheus metrics. A nil *Metrics records nothing.
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestSize     *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Demo metrics
	DemosActive    prometheus.Gauge
	TasksStarted   *prometheus.CounterVec
	TasksSettled   *prometheus.CounterVec
	TaskFailures   *prometheus.CounterVec
	TaskDuration   *prometheus.HistogramVec
	LoadingShown   *prometheus.CounterVec
	EditsThrottled *prometheus.CounterVec

	// Frame metrics
	FrameConnections prometheus.Gauge
	FrameMessages    *prometheus.CounterVec

	// Dependency metrics
	BreakerState *prometheus.GaugeVec

	// System metrics
	Uptime prometheus.GaugeFunc
}

// NewMetrics registers the collectors on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	start := time.Now()

	return &Metrics{
		// HTTP metrics
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		RequestSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_size_bytes",
				Help:      "HTTP request size in bytes",
				Buckets:   []float64{100, 1000, 10000, 100000, 1000000},
			},
			[]string{"method", "path"},
		),
		ResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_response_size_bytes",
				Help:      "HTTP response size in bytes",
				Buckets:   []float64{100, 1000, 10000, 100000, 1000000},
			},
			[]string{"method", "path"},
		),

		// Demo metrics
		DemosActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "demos_active",
				Help:      "Number of demos with a live controller",
			},
		),
		TasksStarted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tasks_started_total",
				Help:      "Total number of scheduled demo tasks",
			},
			[]string{"target"},
		),
		TasksSettled: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tasks_settled_total",
				Help:      "Demo tasks by outcome: committed, failed or stale",
			},
			[]string{"target", "outcome"},
		),
		TaskFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "task_failures_total",
				Help:      "Failed demo tasks by error kind",
			},
			[]string{"kind"},
		),
		TaskDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "task_duration_seconds",
				Help:      "Time from task start to settle",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"target"},
		),
		LoadingShown: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "loading_shown_total",
				Help:      "Tasks slow enough to show the loading indicator",
			},
			[]string{"target"},
		),
		EditsThrottled: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "edits_throttled_total",
				Help:      "Source edits coalesced by the throttle",
			},
			[]string{"target"},
		),

		// Frame metrics
		FrameConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "frame_connections",
				Help:      "Number of attached frame peers",
			},
		),
		FrameMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "frame_messages_total",
				Help:      "Messages exchanged with frames",
			},
			[]string{"direction", "type"},
		),

		// Dependency metrics
		BreakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "breaker_state",
				Help:      "Circuit breaker state: 0 closed, 1 half-open, 2 open",
			},
			[]string{"name"},
		),

		// System metrics
		Uptime: factory.NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "uptime_seconds",
				Help:      "Service uptime in seconds",
			},
			func() float64 { return time.Since(start).Seconds() },
		),
	}
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, reqSize, respSize int64) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.RequestSize.WithLabelValues(method, path).Observe(float64(reqSize))
	m.ResponseSize.WithLabelValues(method, path).Observe(float64(respSize))
}

// RecordTaskStarted counts a scheduled task
func (m *Metrics) RecordTaskStarted(target string) {
	if m == nil {
		return
	}
	m.TasksStarted.WithLabelValues(target).Inc()
}

// RecordTaskSettled records how a task ended and how long it took
func (m *Metrics) RecordTaskSettled(target, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.TasksSettled.WithLabelValues(target, outcome).Inc()
	m.TaskDuration.WithLabelValues(target).Observe(duration.Seconds())
}

// RecordTaskFailure counts a failure by kind
func (m *Metrics) RecordTaskFailure(kind string) {
	if m == nil {
		return
	}
	m.TaskFailures.WithLabelValues(kind).Inc()
}

// RecordLoadingShown counts a loading indicator that became visible
func (m *Metrics) RecordLoadingShown(target string) {
	if m == nil {
		return
	}
	m.LoadingShown.WithLabelValues(target).Inc()
}

// RecordEditThrottled counts an edit that was coalesced
func (m *Metrics) RecordEditThrottled(target string) {
	if m == nil {
		return
	}
	m.EditsThrottled.WithLabelValues(target).Inc()
}

// RecordFrameMessage records a frame message
func (m *Metrics) RecordFrameMessage(direction, msgType string) {
	if m == nil {
		return
	}
	m.FrameMessages.WithLabelValues(direction, msgType).Inc()
}

// IncDemosActive increments the live controller gauge
func (m *Metrics) IncDemosActive() {
	if m == nil {
		return
	}
	m.DemosActive.Inc()
}

// DecDemosActive decrements the live controller gauge
func (m *Metrics) DecDemosActive() {
	if m == nil {
		return
	}
	m.DemosActive.Dec()
}

// IncFrameConnections increments attached frame peers
func (m *Metrics) IncFrameConnections() {
	if m == nil {
		return
	}
	m.FrameConnections.Inc()
}

// DecFrameConnections decrements attached frame peers
func (m *Metrics) DecFrameConnections() {
	if m == nil {
		return
	}
	m.FrameConnections.Dec()
}

// SetBreakerState records a circuit breaker transition
func (m *Metrics) SetBreakerState(name string, state int) {
	if m == nil {
		return
	}
	m.BreakerState.WithLabelValues(name).Set(float64(state))
}
