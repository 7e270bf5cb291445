// Package metrics provides the kernel process's Prometheus collectors.
package metrics

import (
	"os"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v3/process"
)

// Metrics holds all Prometheus metrics exposed by the kernel process.
type Metrics struct {
	// HTTP metrics
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	// Error metrics
	ErrorsTotal *prometheus.CounterVec

	// Transport-order lifecycle metrics
	TransportOrdersTotal  *prometheus.CounterVec
	DispatchDuration      *prometheus.HistogramVec
	TransportOrdersActive prometheus.Gauge

	// Model-store metrics
	ModelStoreQueriesTotal  *prometheus.CounterVec
	ModelStoreQueryDuration *prometheus.HistogramVec
	ModelStoreConnsOpen     prometheus.Gauge

	// Kernel health
	ServiceUptime      prometheus.Gauge
	ServiceInfo        *prometheus.GaugeVec
	ProcessCPUPercent  prometheus.Gauge
	ProcessMemoryBytes prometheus.Gauge

	// Object pool metrics
	ObjectPoolMutationsTotal *prometheus.CounterVec
}

// New creates a new Metrics instance registered against the default registerer.
func New(serviceName string) *Metrics {
	return NewWithRegistry(serviceName, prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a new Metrics instance registered against registerer.
// A nil registerer skips registration, useful for tests that build multiple
// Metrics instances in the same process.
func NewWithRegistry(serviceName string, registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "opentcs_http_requests_total",
				Help: "Total number of HTTP requests handled by the kernel.",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "opentcs_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds.",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		RequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "opentcs_http_requests_in_flight",
				Help: "Current number of HTTP requests being processed.",
			},
		),

		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "opentcs_errors_total",
				Help: "Total number of kernel errors, by error code and operation.",
			},
			[]string{"code", "operation"},
		),

		TransportOrdersTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "opentcs_transport_orders_total",
				Help: "Total number of transport orders reaching a given state.",
			},
			[]string{"state"},
		),
		DispatchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "opentcs_dispatch_duration_seconds",
				Help:    "Duration of a single dispatcher sweep.",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"outcome"},
		),
		TransportOrdersActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "opentcs_transport_orders_active",
				Help: "Current number of transport orders not yet in a final state.",
			},
		),

		ModelStoreQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "opentcs_modelstore_queries_total",
				Help: "Total number of model-store queries.",
			},
			[]string{"operation", "status"},
		),
		ModelStoreQueryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "opentcs_modelstore_query_duration_seconds",
				Help:    "Model-store query duration in seconds.",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"operation"},
		),
		ModelStoreConnsOpen: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "opentcs_modelstore_connections_open",
				Help: "Current number of open model-store database connections.",
			},
		),

		ServiceUptime: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "opentcs_kernel_uptime_seconds",
				Help: "Kernel process uptime in seconds.",
			},
		),
		ServiceInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "opentcs_kernel_info",
				Help: "Kernel build/runtime information.",
			},
			[]string{"service", "version"},
		),
		ProcessCPUPercent: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "opentcs_kernel_process_cpu_percent",
				Help: "Kernel process CPU usage percentage, sampled periodically.",
			},
		),
		ProcessMemoryBytes: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "opentcs_kernel_process_memory_bytes",
				Help: "Kernel process resident memory in bytes, sampled periodically.",
			},
		),

		ObjectPoolMutationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kernel_object_pool_mutations_total",
				Help: "Total number of object pool mutations, by operation and entity type.",
			},
			[]string{"op", "type"},
		),
	}

	if registerer != nil {
		registerer.MustRegister(
			m.RequestsTotal,
			m.RequestDuration,
			m.RequestsInFlight,
			m.ErrorsTotal,
			m.TransportOrdersTotal,
			m.DispatchDuration,
			m.TransportOrdersActive,
			m.ModelStoreQueriesTotal,
			m.ModelStoreQueryDuration,
			m.ModelStoreConnsOpen,
			m.ServiceUptime,
			m.ServiceInfo,
			m.ProcessCPUPercent,
			m.ProcessMemoryBytes,
			m.ObjectPoolMutationsTotal,
		)
	}

	m.ServiceInfo.WithLabelValues(serviceName, "1.0.0").Set(1)
	return m
}

// RecordHTTPRequest records an HTTP request's outcome and duration.
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordError records a kernel error by code and the operation that raised it.
func (m *Metrics) RecordError(code, operation string) {
	m.ErrorsTotal.WithLabelValues(code, operation).Inc()
}

// RecordTransportOrderState records a transport order reaching state.
func (m *Metrics) RecordTransportOrderState(state string) {
	m.TransportOrdersTotal.WithLabelValues(state).Inc()
}

// RecordDispatch records one dispatcher sweep's duration and outcome.
func (m *Metrics) RecordDispatch(outcome string, duration time.Duration) {
	m.DispatchDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// SetActiveTransportOrders sets the current count of non-final transport orders.
func (m *Metrics) SetActiveTransportOrders(count int) {
	m.TransportOrdersActive.Set(float64(count))
}

// RecordModelStoreQuery records a model-store query's outcome and duration.
func (m *Metrics) RecordModelStoreQuery(operation, status string, duration time.Duration) {
	m.ModelStoreQueriesTotal.WithLabelValues(operation, status).Inc()
	m.ModelStoreQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// SetModelStoreConnections sets the number of open model-store connections.
func (m *Metrics) SetModelStoreConnections(count int) {
	m.ModelStoreConnsOpen.Set(float64(count))
}

// RecordObjectPoolMutation records one object pool add/remove/rename/
// setProperty mutation, by operation and the mutated entity's kind.
func (m *Metrics) RecordObjectPoolMutation(op, entityType string) {
	m.ObjectPoolMutationsTotal.WithLabelValues(op, entityType).Inc()
}

// UpdateUptime updates the uptime gauge from startTime.
func (m *Metrics) UpdateUptime(startTime time.Time) {
	m.ServiceUptime.Set(time.Since(startTime).Seconds())
}

// SampleProcessStats refreshes the process CPU and memory gauges. It is
// cheap enough to call on a multi-second ticker but does its own syscalls,
// so callers should not invoke it per-request.
func (m *Metrics) SampleProcessStats() {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return
	}
	if cpuPct, err := proc.CPUPercent(); err == nil {
		m.ProcessCPUPercent.Set(cpuPct)
	}
	if memInfo, err := proc.MemoryInfo(); err == nil && memInfo != nil {
		m.ProcessMemoryBytes.Set(float64(memInfo.RSS))
	}
}

// IncrementInFlight increments the in-flight HTTP request gauge.
func (m *Metrics) IncrementInFlight() { m.RequestsInFlight.Inc() }

// DecrementInFlight decrements the in-flight HTTP request gauge.
func (m *Metrics) DecrementInFlight() { m.RequestsInFlight.Dec() }

// Enabled reports whether Prometheus metrics should be exposed, controlled
// by METRICS_ENABLED (defaults to enabled).
func Enabled() bool {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv("METRICS_ENABLED")))
	if raw == "" {
		return true
	}
	switch raw {
	case "0", "false", "no", "off":
		return false
	default:
		return true
	}
}

var (
	globalMetrics *Metrics
	globalMu      sync.Mutex
)

// Init initializes (once) and returns the global Metrics instance.
func Init(serviceName string) *Metrics {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalMetrics == nil {
		globalMetrics = New(serviceName)
	}
	return globalMetrics
}

// Global returns the global Metrics instance, initializing it if necessary.
func Global() *Metrics {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalMetrics == nil {
		globalMetrics = New("opentcs-kernel")
	}
	return globalMetrics
}
