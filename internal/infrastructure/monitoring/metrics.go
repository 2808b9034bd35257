package monitoring

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "chanbridge"

// Open results used as the "result" label of OpensTotal.
const (
	ResultOK        = "ok"
	ResultNotFound  = "not_found"
	ResultExhausted = "exhausted"
	ResultError     = "error"
	ResultShared    = "shared"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Lifecycle metrics
	OpensTotal    *prometheus.CounterVec
	ClosesTotal   *prometheus.CounterVec
	OpenInstances prometheus.Gauge
	Hangups       *prometheus.CounterVec

	// Data path metrics
	RxBytes        *prometheus.CounterVec
	TxBytes        *prometheus.CounterVec
	TxTruncated    *prometheus.CounterVec
	PumpRuns       *prometheus.CounterVec
	PumpDuration   prometheus.Histogram
	ProtocolFaults *prometheus.CounterVec
	ThrottleStops  *prometheus.CounterVec

	// Breaker metrics
	BreakerTransitions *prometheus.CounterVec

	startTime time.Time

	// Snapshot for JSON API - track current values
	snapshot MetricsSnapshot

	mu sync.RWMutex
}

// MetricsSnapshot holds current metric values for JSON API
type MetricsSnapshot struct {
	TotalRequests  int64   `json:"total_requests"`
	TotalErrors    int64   `json:"total_errors"`
	OpenInstances  int64   `json:"open_instances"`
	RxBytes        int64   `json:"rx_bytes"`
	TxBytes        int64   `json:"tx_bytes"`
	ProtocolFaults int64   `json:"protocol_faults"`
	Hangups        int64   `json:"hangups"`
	UptimeSeconds  float64 `json:"uptime_seconds"`
}

// NewMetrics creates a metrics collector on its own registry, so several
// bridges (or tests) never collide on the global one.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of admin HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Admin HTTP request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"method", "path"},
		),

		OpensTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "opens_total",
				Help:      "Channel open calls by result",
			},
			[]string{"channel", "result"},
		),
		ClosesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "closes_total",
				Help:      "Channel close calls",
			},
			[]string{"channel"},
		),
		OpenInstances: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "open_instances",
				Help:      "Instances with at least one opener",
			},
		),
		Hangups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "hangups_total",
				Help:      "Peer hangups signalled to sinks",
			},
			[]string{"channel"},
		),

		RxBytes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rx_bytes_total",
				Help:      "Bytes delivered from channels to sinks",
			},
			[]string{"channel"},
		),
		TxBytes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tx_bytes_total",
				Help:      "Bytes accepted for writing to channels",
			},
			[]string{"channel"},
		),
		TxTruncated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tx_truncated_total",
				Help:      "Writes clamped to the channel's write capacity",
			},
			[]string{"channel"},
		),
		PumpRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pump_runs_total",
				Help:      "Drain pump invocations",
			},
			[]string{"channel"},
		),
		PumpDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "pump_duration_seconds",
				Help:      "Drain pump invocation duration in seconds",
				Buckets:   []float64{.00001, .0001, .001, .005, .01, .05, .1, .5},
			},
		),
		ProtocolFaults: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "protocol_faults_total",
				Help:      "Reads that returned less than the reported availability",
			},
			[]string{"channel"},
		),
		ThrottleStops: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "throttle_stops_total",
				Help:      "Pump runs stopped by a throttled sink",
			},
			[]string{"channel"},
		),

		BreakerTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "breaker_transitions_total",
				Help:      "Open circuit breaker state changes",
			},
			[]string{"channel", "to"},
		),
	}

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Process uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// Registry returns the registry all metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.TotalRequests++
	if status[0] == '4' || status[0] == '5' {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordOpen records an open call and its result
func (m *Metrics) RecordOpen(channel, result string) {
	m.OpensTotal.WithLabelValues(channel, result).Inc()
}

// RecordClose records a close call
func (m *Metrics) RecordClose(channel string) {
	m.ClosesTotal.WithLabelValues(channel).Inc()
}

// IncOpenInstances marks an instance going from zero openers to one
func (m *Metrics) IncOpenInstances() {
	m.OpenInstances.Inc()
	m.mu.Lock()
	m.snapshot.OpenInstances++
	m.mu.Unlock()
}

// DecOpenInstances marks an instance losing its last opener
func (m *Metrics) DecOpenInstances() {
	m.OpenInstances.Dec()
	m.mu.Lock()
	m.snapshot.OpenInstances--
	m.mu.Unlock()
}

// RecordHangup records a hangup delivered to a sink
func (m *Metrics) RecordHangup(channel string) {
	m.Hangups.WithLabelValues(channel).Inc()
	m.mu.Lock()
	m.snapshot.Hangups++
	m.mu.Unlock()
}

// RecordRx records bytes delivered to a sink
func (m *Metrics) RecordRx(channel string, n int) {
	m.RxBytes.WithLabelValues(channel).Add(float64(n))
	m.mu.Lock()
	m.snapshot.RxBytes += int64(n)
	m.mu.Unlock()
}

// RecordTx records bytes accepted by a write and whether it was clamped
func (m *Metrics) RecordTx(channel string, n int, truncated bool) {
	m.TxBytes.WithLabelValues(channel).Add(float64(n))
	if truncated {
		m.TxTruncated.WithLabelValues(channel).Inc()
	}
	m.mu.Lock()
	m.snapshot.TxBytes += int64(n)
	m.mu.Unlock()
}

// RecordPump records one pump invocation
func (m *Metrics) RecordPump(channel string, duration time.Duration) {
	m.PumpRuns.WithLabelValues(channel).Inc()
	m.PumpDuration.Observe(duration.Seconds())
}

// RecordProtocolFault records a short read
func (m *Metrics) RecordProtocolFault(channel string) {
	m.ProtocolFaults.WithLabelValues(channel).Inc()
	m.mu.Lock()
	m.snapshot.ProtocolFaults++
	m.mu.Unlock()
}

// RecordThrottleStop records a pump run stopped by back-pressure
func (m *Metrics) RecordThrottleStop(channel string) {
	m.ThrottleStops.WithLabelValues(channel).Inc()
}

// RecordBreakerTransition records a circuit breaker state change
func (m *Metrics) RecordBreakerTransition(channel, to string) {
	m.BreakerTransitions.WithLabelValues(channel, to).Inc()
}

// Snapshot returns the current values for the JSON API
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := m.snapshot
	s.UptimeSeconds = time.Since(m.startTime).Seconds()
	return s
}
