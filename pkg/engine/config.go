// Package engine provides the three concurrency architectures described
// in spec §4.5-4.7 behind one Server interface: ThreadedEngine (a worker
// per connection, blocking I/O), HybridEngine (a selector thread plus
// io/cpu/fast worker pools and an AsyncContext handoff), and
// EventLoopEngine (a single readiness-driven loop with CPU offload).
//
// Grounded on the teacher's server_combined.go / server_shockwave.go
// split — one package, several Server implementations selected by name —
// but rebuilt around pkg/router's Future-returning Handler contract
// instead of the teacher's net/http-shaped adapters.
package engine

import (
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/junhyeong9812/serverarch/pkg/bufpool"
	"github.com/junhyeong9812/serverarch/pkg/metrics"
	"github.com/junhyeong9812/serverarch/pkg/router"
	"github.com/junhyeong9812/serverarch/pkg/socket"
)

// Config is passed explicitly to every engine constructor, per spec §9's
// redesign note against transport-wide state built up from globals.
type Config struct {
	// Name identifies the engine for logging and the /info route.
	Name string
	// ListenAddr is the full "host:port" address to bind, already
	// resolved from the CLI/environment layer.
	ListenAddr string
	// Backlog is the listen backlog passed to the platform listener.
	Backlog int

	Router  *router.Router
	Logger  *zap.Logger
	Metrics *metrics.Metrics
	Pool    *bufpool.BufferPool
	Socket  *socket.Options

	// ThreadPoolMax sizes ThreadedEngine's worker pool (spec §4.5:
	// default max 200). ThreadPoolCore is defaulted to 50 but not read by
	// the pool, which has no separate core size.
	ThreadPoolCore int
	ThreadPoolMax  int
	// IdleTimeout bounds how long ThreadedEngine waits for the next
	// request on a keep-alive connection (spec §4.5 default 30s).
	IdleTimeout time.Duration

	// IOPoolSize/CPUPoolSize/FastPoolSize size HybridEngine's three
	// pools (spec §4.6 defaults: 256 / NumCPU / 32).
	IOPoolSize   int
	CPUPoolSize  int
	FastPoolSize int
	// AsyncContextCeiling bounds HybridEngine's outstanding AsyncContext
	// count (spec §4.6 default 10,000).
	AsyncContextCeiling int64
	// RequestTimeout bounds how long Hybrid/EventLoop wait for a
	// handler's future before emitting 408 (spec §5 default 30s).
	RequestTimeout time.Duration

	// EventLoopCPUPoolSize sizes EventLoopEngine's dedicated CPU offload
	// pool (spec §4.7); distinct from HybridEngine's CPUPoolSize since
	// the two engines never share a process.
	EventLoopCPUPoolSize int

	// ShutdownTimeout bounds how long Stop waits for in-flight
	// connections to finish before they are forcibly closed (spec §5
	// default 5s).
	ShutdownTimeout time.Duration

	// Registerer receives the engine's and the shared pkg/bufpool's
	// Prometheus collectors. Nil disables registration.
	Registerer prometheus.Registerer
}

// setDefaults fills zero-valued fields with the spec's documented
// defaults, leaving explicit caller choices untouched.
func (c *Config) setDefaults() {
	if c.Backlog == 0 {
		c.Backlog = 1024
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	if c.Metrics == nil {
		c.Metrics = metrics.New()
	}
	if c.Pool == nil {
		c.Pool = bufpool.Global
	}
	if c.Socket == nil {
		c.Socket = socket.Defaults()
	}

	if c.ThreadPoolCore == 0 {
		c.ThreadPoolCore = 50
	}
	if c.ThreadPoolMax == 0 {
		c.ThreadPoolMax = 200
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 30 * time.Second
	}

	if c.IOPoolSize == 0 {
		c.IOPoolSize = 256
	}
	if c.CPUPoolSize == 0 {
		c.CPUPoolSize = runtime.NumCPU()
	}
	if c.FastPoolSize == 0 {
		c.FastPoolSize = 32
	}
	if c.AsyncContextCeiling == 0 {
		c.AsyncContextCeiling = 10000
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 30 * time.Second
	}

	if c.EventLoopCPUPoolSize == 0 {
		c.EventLoopCPUPoolSize = runtime.NumCPU()
	}

	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 5 * time.Second
	}
}
