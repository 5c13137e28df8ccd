package bufpool

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus metrics for the buffer pool, mirroring the sync/atomic
// counters kept by BufferPool itself. Registered as a Collector rather
// than promauto globals so multiple BufferPool instances (as used in
// tests) don't collide on metric names.
type PrometheusCollector struct {
	pool *BufferPool

	gets      *prometheus.Desc
	puts      *prometheus.Desc
	hitRate   *prometheus.Desc
	allocated *prometheus.Desc
	reused    *prometheus.Desc
}

// NewPrometheusCollector wraps pool for registration with a
// prometheus.Registerer.
func NewPrometheusCollector(pool *BufferPool) *PrometheusCollector {
	return &PrometheusCollector{
		pool: pool,
		gets: prometheus.NewDesc(
			"serverarch_bufpool_gets_total", "Total buffer pool Get calls.", nil, nil),
		puts: prometheus.NewDesc(
			"serverarch_bufpool_puts_total", "Total buffer pool Put calls.", nil, nil),
		hitRate: prometheus.NewDesc(
			"serverarch_bufpool_hit_rate", "Current buffer pool hit rate, 0-100.", nil, nil),
		allocated: prometheus.NewDesc(
			"serverarch_bufpool_bytes_allocated_total", "Total bytes allocated across all size classes.", nil, nil),
		reused: prometheus.NewDesc(
			"serverarch_bufpool_bytes_reused_total", "Total bytes reused across all size classes.", nil, nil),
	}
}

func (pc *PrometheusCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- pc.gets
	ch <- pc.puts
	ch <- pc.hitRate
	ch <- pc.allocated
	ch <- pc.reused
}

func (pc *PrometheusCollector) Collect(ch chan<- prometheus.Metric) {
	m := pc.pool.GetMetrics()
	ch <- prometheus.MustNewConstMetric(pc.gets, prometheus.CounterValue, float64(m.TotalGets))
	ch <- prometheus.MustNewConstMetric(pc.puts, prometheus.CounterValue, float64(m.TotalPuts))
	ch <- prometheus.MustNewConstMetric(pc.hitRate, prometheus.GaugeValue, m.GlobalHitRate)
	ch <- prometheus.MustNewConstMetric(pc.allocated, prometheus.CounterValue, float64(m.BytesAllocated))
	ch <- prometheus.MustNewConstMetric(pc.reused, prometheus.CounterValue, float64(m.BytesReused))
}
