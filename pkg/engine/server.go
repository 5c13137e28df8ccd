package engine

import (
	"context"
	"net"
	"time"

	"github.com/junhyeong9812/serverarch/pkg/bufpool"
	"github.com/junhyeong9812/serverarch/pkg/connection"
	"github.com/junhyeong9812/serverarch/pkg/httpcodec"
	"github.com/junhyeong9812/serverarch/pkg/metrics"
)

// Server is the common interface spec §9 asks for in place of the
// source's inheritance hierarchy: engines are distinct types, selected
// by name, behind one small interface.
type Server interface {
	// Start binds the listener and begins serving. It returns once the
	// listener is bound and the accept path is running; it does not
	// block for the server's lifetime.
	Start() error
	// Stop stops accepting new connections and closes the remaining ones
	// within a budget bounded by ctx (spec §5's shutdown semantics).
	// ThreadedEngine first lets in-flight connections finish on their own
	// until ctx is done; HybridEngine and EventLoopEngine stop their event
	// loop and then close every connection still open.
	Stop(ctx context.Context) error
	// Addr returns the bound listener's address. Valid only after a
	// successful Start.
	Addr() net.Addr
}

// MetricsRefresher is implemented by engines that maintain extra
// gauges (event-loop activity, pool utilization) lazily rather than on
// every request; RegisterBuiltinRoutes calls RefreshMetrics just before
// serving each /metrics read when the engine satisfies this interface.
type MetricsRefresher interface {
	RefreshMetrics()
}

// New constructs the named engine ("threaded", "hybrid", or
// "eventloop") from cfg, filling unset fields with spec defaults. When
// cfg.Registerer is set, the engine's counters and the buffer pool's
// activity metrics are registered with it before the engine is built,
// so scrapes see them from the first request on.
func New(kind string, cfg Config) (Server, error) {
	cfg.setDefaults()
	if cfg.Registerer != nil {
		cfg.Registerer.MustRegister(
			metrics.NewPrometheusCollector(cfg.Metrics),
			bufpool.NewPrometheusCollector(cfg.Pool),
		)
	}
	switch kind {
	case "threaded":
		return newThreadedEngine(cfg)
	case "hybrid":
		return newHybridEngine(cfg)
	case "eventloop":
		return newEventLoopEngine(cfg)
	default:
		return nil, ErrInvalidEngineKind
	}
}

// newSerializer builds the engine's response serializer with the Server
// header value derived from cfg.Name.
func newSerializer(cfg Config) *httpcodec.Serializer {
	s := httpcodec.NewSerializer()
	if cfg.Name != "" {
		s.ServerName = cfg.Name + "/1.0"
	}
	return s
}

// stampConnection sets the response's Connection header from the
// connection's keep-alive decision (spec §6: responses carry Connection
// reflecting that decision; the request's Connection header, not the
// response's, is what governed it).
func stampConnection(cc *connection.ConnectionContext, resp *httpcodec.Response) {
	if resp.Header.Has("Connection") {
		return
	}
	if cc.KeepAlive {
		resp.Header.Set("Connection", "keep-alive")
	} else {
		resp.Header.Set("Connection", "close")
	}
}

// stopTimeout derives a shutdown budget from ctx's deadline when it has
// one, falling back to cfg.ShutdownTimeout otherwise.
func stopTimeout(cfg Config, ctx context.Context) time.Duration {
	if dl, ok := ctx.Deadline(); ok {
		if d := time.Until(dl); d > 0 {
			return d
		}
	}
	return cfg.ShutdownTimeout
}
