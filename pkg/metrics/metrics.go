// Package metrics provides the small atomics-backed counters struct
// named by spec §6/§9: a single object passed explicitly wherever an
// engine needs to record activity, never global package-level state
// (spec §9's "provide a small metrics struct with atomics and a
// pluggable sink" redesign note).
//
// Grounded on pkg/bufpool's buffer_pool_prometheus.go pattern: atomics
// are the source of truth on the request path, and a prometheus.Collector
// reads them at scrape time so there is no double bookkeeping and no
// lock contention.
package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is the counters entity from spec §6's built-in /metrics route:
// connection/request/response/error totals shared by every engine, plus
// engine-specific gauges (event-loop iteration/event counts, worker-pool
// utilization) that only the engine producing them ever sets.
type Metrics struct {
	TotalConnections  atomic.Int64
	ActiveConnections atomic.Int64
	TotalRequests     atomic.Int64
	TotalResponses    atomic.Int64
	TotalErrors       atomic.Int64

	// EventLoopIterations/EventLoopEvents are set by HybridEngine and
	// EventLoopEngine from their shared eventloop.Stats snapshot.
	EventLoopIterations atomic.Int64
	EventLoopEvents     atomic.Int64

	// PoolIOInUse/PoolCPUInUse/PoolFastInUse are HybridEngine's
	// (and, for PoolCPUInUse, EventLoopEngine's) point-in-time worker
	// counts, sampled from the ants.Pool each scrape. ThreadedEngine,
	// which has only one pool, reports its utilization into
	// PoolIOInUse too — a process only ever runs one engine at a time,
	// so the field is never ambiguous in practice.
	PoolIOInUse   atomic.Int64
	PoolCPUInUse  atomic.Int64
	PoolFastInUse atomic.Int64

	// BackpressureRejections counts HybridEngine's 503 admissions over
	// the AsyncContext ceiling (spec §4.6).
	BackpressureRejections atomic.Int64

	// TimeoutResponses counts 408s emitted by Hybrid/EventLoop engines
	// when a handler future does not complete within its deadline.
	TimeoutResponses atomic.Int64
}

// New returns a zeroed Metrics ready to be passed to an engine
// constructor.
func New() *Metrics {
	return &Metrics{}
}

// ConnectionOpened records a newly accepted connection.
func (m *Metrics) ConnectionOpened() {
	m.TotalConnections.Add(1)
	m.ActiveConnections.Add(1)
}

// ConnectionClosed records a connection's closure.
func (m *Metrics) ConnectionClosed() {
	m.ActiveConnections.Add(-1)
}

// RequestReceived records one parsed request.
func (m *Metrics) RequestReceived() { m.TotalRequests.Add(1) }

// ResponseSent records one fully written response.
func (m *Metrics) ResponseSent() { m.TotalResponses.Add(1) }

// ErrorOccurred records any error that terminated a connection or
// request (parse failure, I/O error, handler error, backpressure
// rejection), per spec §7's "increment totalErrors" rule.
func (m *Metrics) ErrorOccurred() { m.TotalErrors.Add(1) }

// Snapshot is a point-in-time copy suitable for JSON encoding on the
// built-in /metrics route.
type Snapshot struct {
	TotalConnections        int64 `json:"totalConnections"`
	ActiveConnections       int64 `json:"activeConnections"`
	TotalRequests           int64 `json:"totalRequests"`
	TotalResponses          int64 `json:"totalResponses"`
	TotalErrors             int64 `json:"totalErrors"`
	EventLoopIterations     int64 `json:"eventLoopIterations"`
	EventLoopEvents         int64 `json:"eventLoopEvents"`
	PoolIOInUse             int64 `json:"poolIoInUse"`
	PoolCPUInUse            int64 `json:"poolCpuInUse"`
	PoolFastInUse           int64 `json:"poolFastInUse"`
	BackpressureRejections  int64 `json:"backpressureRejections"`
	TimeoutResponses        int64 `json:"timeoutResponses"`
}

// Snapshot reads every counter once, non-atomically-as-a-whole (each
// individual field read is atomic; the snapshot is not a single
// consistent point across fields, matching spec §5's "may be read
// concurrently" allowance for metrics counters).
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		TotalConnections:       m.TotalConnections.Load(),
		ActiveConnections:      m.ActiveConnections.Load(),
		TotalRequests:          m.TotalRequests.Load(),
		TotalResponses:         m.TotalResponses.Load(),
		TotalErrors:            m.TotalErrors.Load(),
		EventLoopIterations:    m.EventLoopIterations.Load(),
		EventLoopEvents:        m.EventLoopEvents.Load(),
		PoolIOInUse:            m.PoolIOInUse.Load(),
		PoolCPUInUse:           m.PoolCPUInUse.Load(),
		PoolFastInUse:          m.PoolFastInUse.Load(),
		BackpressureRejections: m.BackpressureRejections.Load(),
		TimeoutResponses:       m.TimeoutResponses.Load(),
	}
}

// PrometheusCollector adapts Metrics to prometheus.Collector so it can
// be registered with a *prometheus.Registry alongside pkg/bufpool's
// collector, per SPEC_FULL.md's expansion of spec §6's /metrics route.
type PrometheusCollector struct {
	m *Metrics

	totalConnections  *prometheus.Desc
	activeConnections *prometheus.Desc
	totalRequests     *prometheus.Desc
	totalResponses    *prometheus.Desc
	totalErrors       *prometheus.Desc
	loopIterations    *prometheus.Desc
	loopEvents        *prometheus.Desc
	poolIOInUse       *prometheus.Desc
	poolCPUInUse      *prometheus.Desc
	poolFastInUse     *prometheus.Desc
	backpressure      *prometheus.Desc
	timeouts          *prometheus.Desc
}

// NewPrometheusCollector wraps m for registration with a
// prometheus.Registerer.
func NewPrometheusCollector(m *Metrics) *PrometheusCollector {
	return &PrometheusCollector{
		m:                 m,
		totalConnections:  prometheus.NewDesc("serverarch_connections_total", "Total accepted connections.", nil, nil),
		activeConnections: prometheus.NewDesc("serverarch_connections_active", "Currently open connections.", nil, nil),
		totalRequests:     prometheus.NewDesc("serverarch_requests_total", "Total parsed requests.", nil, nil),
		totalResponses:    prometheus.NewDesc("serverarch_responses_total", "Total written responses.", nil, nil),
		totalErrors:       prometheus.NewDesc("serverarch_errors_total", "Total errors across all engines.", nil, nil),
		loopIterations:    prometheus.NewDesc("serverarch_eventloop_iterations_total", "Total event loop main-cycle iterations.", nil, nil),
		loopEvents:        prometheus.NewDesc("serverarch_eventloop_events_total", "Total readiness events dispatched.", nil, nil),
		poolIOInUse:       prometheus.NewDesc("serverarch_pool_io_in_use", "Hybrid engine IO pool goroutines in use.", nil, nil),
		poolCPUInUse:      prometheus.NewDesc("serverarch_pool_cpu_in_use", "CPU offload pool goroutines in use.", nil, nil),
		poolFastInUse:     prometheus.NewDesc("serverarch_pool_fast_in_use", "Hybrid engine fast pool goroutines in use.", nil, nil),
		backpressure:      prometheus.NewDesc("serverarch_backpressure_rejections_total", "Total 503 admissions rejected over the AsyncContext ceiling.", nil, nil),
		timeouts:          prometheus.NewDesc("serverarch_handler_timeouts_total", "Total 408 responses emitted for handlers exceeding their deadline.", nil, nil),
	}
}

func (c *PrometheusCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.totalConnections
	ch <- c.activeConnections
	ch <- c.totalRequests
	ch <- c.totalResponses
	ch <- c.totalErrors
	ch <- c.loopIterations
	ch <- c.loopEvents
	ch <- c.poolIOInUse
	ch <- c.poolCPUInUse
	ch <- c.poolFastInUse
	ch <- c.backpressure
	ch <- c.timeouts
}

func (c *PrometheusCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.m.Snapshot()
	ch <- prometheus.MustNewConstMetric(c.totalConnections, prometheus.CounterValue, float64(s.TotalConnections))
	ch <- prometheus.MustNewConstMetric(c.activeConnections, prometheus.GaugeValue, float64(s.ActiveConnections))
	ch <- prometheus.MustNewConstMetric(c.totalRequests, prometheus.CounterValue, float64(s.TotalRequests))
	ch <- prometheus.MustNewConstMetric(c.totalResponses, prometheus.CounterValue, float64(s.TotalResponses))
	ch <- prometheus.MustNewConstMetric(c.totalErrors, prometheus.CounterValue, float64(s.TotalErrors))
	ch <- prometheus.MustNewConstMetric(c.loopIterations, prometheus.CounterValue, float64(s.EventLoopIterations))
	ch <- prometheus.MustNewConstMetric(c.loopEvents, prometheus.CounterValue, float64(s.EventLoopEvents))
	ch <- prometheus.MustNewConstMetric(c.poolIOInUse, prometheus.GaugeValue, float64(s.PoolIOInUse))
	ch <- prometheus.MustNewConstMetric(c.poolCPUInUse, prometheus.GaugeValue, float64(s.PoolCPUInUse))
	ch <- prometheus.MustNewConstMetric(c.poolFastInUse, prometheus.GaugeValue, float64(s.PoolFastInUse))
	ch <- prometheus.MustNewConstMetric(c.backpressure, prometheus.CounterValue, float64(s.BackpressureRejections))
	ch <- prometheus.MustNewConstMetric(c.timeouts, prometheus.CounterValue, float64(s.TimeoutResponses))
}
