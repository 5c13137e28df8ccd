package engine

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/junhyeong9812/serverarch/pkg/connection"
	"github.com/junhyeong9812/serverarch/pkg/eventloop"
	"github.com/junhyeong9812/serverarch/pkg/future"
	"github.com/junhyeong9812/serverarch/pkg/httpcodec"
	"github.com/junhyeong9812/serverarch/pkg/socket"
)

// hybridMaxConnections bounds the slot table backing HybridEngine's
// live ConnectionContexts (spec §9's arena/slot-table redesign note).
// It is sized well above any realistic AsyncContextCeiling so the
// backpressure limit, not the slot table, is normally what rejects
// load.
const hybridMaxConnections = 65536

// HybridEngine is the readiness-based acceptance engine from spec
// §4.6: a selector thread (pkg/eventloop's loop goroutine) owns accept,
// read, and write readiness; handler execution and response framing happen on
// two of three pooled goroutine sets (io, fast), with a third (cpu)
// published to handlers for CPU-bound offload.
//
// Grounded on the teacher's server_combined.go selector-plus-pool
// shape, restructured around Future-based completion (pkg/future)
// instead of callback registries, and a closure-per-registration
// ReadinessHandler in place of a lookup keyed by connection: each
// registration's handler already has cc and its slot index bound in,
// so the hot path never touches a map (spec §9's redesign note against
// "a concurrent map keyed by channel").
type HybridEngine struct {
	cfg        Config
	serializer *httpcodec.Serializer

	loop        *eventloop.EventLoop
	io          *ants.Pool
	cpu         *ants.Pool
	fast        *ants.Pool
	sem         *semaphore.Weighted
	slots       *connection.SlotTable
	offload     OffloadFunc

	listener    net.Listener
	listenerKey eventloop.RegistrationKey
}

func newHybridEngine(cfg Config) (*HybridEngine, error) {
	ioPool, err := ants.NewPool(cfg.IOPoolSize, ants.WithNonblocking(true), ants.WithPreAlloc(true))
	if err != nil {
		return nil, err
	}
	cpuPool, err := ants.NewPool(cfg.CPUPoolSize, ants.WithNonblocking(true), ants.WithPreAlloc(true))
	if err != nil {
		return nil, err
	}
	fastPool, err := ants.NewPool(cfg.FastPoolSize, ants.WithNonblocking(true), ants.WithPreAlloc(true))
	if err != nil {
		return nil, err
	}

	e := &HybridEngine{
		cfg:        cfg,
		serializer: newSerializer(cfg),
		io:         ioPool,
		cpu:        cpuPool,
		fast:       fastPool,
		sem:        semaphore.NewWeighted(cfg.AsyncContextCeiling),
		slots:      connection.NewSlotTable(hybridMaxConnections),
	}
	e.offload = submitOffload(e.cpu)
	return e, nil
}

// Start binds the listener, brings up the event loop, and registers
// the listener fd for accept readiness.
func (e *HybridEngine) Start() error {
	ln, err := net.Listen("tcp", e.cfg.ListenAddr)
	if err != nil {
		return err
	}
	_ = socket.ApplyListener(ln, e.cfg.Socket)
	e.listener = ln

	loop, err := eventloop.New()
	if err != nil {
		_ = ln.Close()
		return err
	}
	e.loop = loop
	go e.loop.Run()

	lnFd, err := socket.ExtractFD(ln.(*net.TCPListener))
	if err != nil {
		_ = ln.Close()
		return err
	}

	key, err := e.loop.Register(lnFd, eventloop.InterestRead, e.onListenerReady)
	if err != nil {
		_ = ln.Close()
		return err
	}
	e.listenerKey = key
	return nil
}

func (e *HybridEngine) Addr() net.Addr { return e.listener.Addr() }

func (e *HybridEngine) onListenerReady(key eventloop.RegistrationKey, readable, writable bool) {
	if tcpLn, ok := e.listener.(*net.TCPListener); ok {
		_ = tcpLn.SetDeadline(time.Now().Add(time.Millisecond))
	}
	conn, err := e.listener.Accept()
	if err != nil {
		return
	}
	e.onAccept(conn)
}

// onAccept runs on the loop thread (as the listener's readiness
// handler), so it registers the new connection with RegisterDirect
// rather than the blocking, deferred Register.
func (e *HybridEngine) onAccept(conn net.Conn) {
	_ = socket.Apply(conn, e.cfg.Socket)
	cc := connection.New(conn, e.cfg.Pool)

	idx, ok := e.slots.Acquire(cc)
	if !ok {
		e.cfg.Logger.Warn("hybrid: connection slot table full, rejecting")
		_ = cc.Close()
		return
	}

	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		e.slots.Release(idx)
		_ = cc.Close()
		return
	}
	fd, err := socket.ExtractFD(tcpConn)
	if err != nil {
		e.slots.Release(idx)
		_ = cc.Close()
		return
	}

	key, err := e.loop.RegisterDirect(fd, eventloop.InterestRead, func(k eventloop.RegistrationKey, readable, writable bool) {
		e.onConnReady(cc, idx, readable, writable)
	})
	if err != nil {
		e.slots.Release(idx)
		_ = cc.Close()
		return
	}
	cc.Registration = key
	e.cfg.Metrics.ConnectionOpened()
}

func (e *HybridEngine) onConnReady(cc *connection.ConnectionContext, idx int, readable, writable bool) {
	if readable {
		e.onReadReady(cc, idx)
	}
	if writable {
		e.onWriteReady(cc, idx)
	}
}

func (e *HybridEngine) onReadReady(cc *connection.ConnectionContext, idx int) {
	n, err := cc.ReadAvailable(time.Millisecond)
	if err != nil {
		if errors.Is(err, connection.ErrRequestTooLarge) {
			e.sendAndClose(cc, idx, httpcodec.TextResponse(413, "Payload Too Large"))
			return
		}
		e.closeConn(cc, idx)
		return
	}
	if n == 0 {
		return
	}

	res := cc.TryParse()
	switch res.Kind {
	case httpcodec.NeedMoreData:
		return
	case httpcodec.Malformed:
		e.sendAndClose(cc, idx, httpcodec.TextResponse(res.Err.StatusCode(), res.Err.Error()))
	case httpcodec.Complete:
		e.cfg.Metrics.RequestReceived()
		e.beginHandling(cc, idx)
	}
}

// beginHandling disarms read interest (no pipelining: the next request
// on this connection is only read after this one's response is fully
// written), admits the request against the AsyncContext ceiling, and
// submits the handler invocation to the io pool.
func (e *HybridEngine) beginHandling(cc *connection.ConnectionContext, idx int) {
	_ = e.loop.ModifyInterest(cc.Registration, 0)

	if !e.sem.TryAcquire(1) {
		e.cfg.Metrics.BackpressureRejections.Add(1)
		e.cfg.Logger.Warn("hybrid: rejecting request",
			zap.Error(errBackpressureRejected), zap.String("conn", cc.ID.String()))
		resp := httpcodec.TextResponse(503, "Service Unavailable")
		resp.Header.Set("Retry-After", "1")
		e.sendAndClose(cc, idx, resp)
		return
	}

	req := cc.Request
	req.SetAttr(AttrAsyncOffload, e.offload)

	ac := &AsyncContext{
		Request:      req,
		Registration: cc.Registration,
		Deadline:     time.Now().Add(e.cfg.RequestTimeout),
	}
	fut := future.New[*httpcodec.Response]()
	ac.Cancel = func() { fut.Fail(errHandlerTimedOut) }

	ioErr := e.io.Submit(func() {
		e.cfg.Router.Dispatch(req).Then(func(resp *httpcodec.Response, err error) {
			if err != nil {
				fut.Fail(err)
				return
			}
			fut.Complete(resp)
		})
	})
	if ioErr != nil {
		e.sem.Release(1)
		e.sendAndClose(cc, idx, httpcodec.TextResponse(503, "Service Unavailable"))
		return
	}

	e.loop.Schedule(e.cfg.RequestTimeout, func() {
		if !fut.IsDone() {
			ac.Cancel()
		}
	})

	fut.Then(func(resp *httpcodec.Response, err error) {
		finish := func() {
			e.sem.Release(1)
			e.completeHandling(cc, idx, resp, err)
		}
		if fastErr := e.fast.Submit(finish); fastErr != nil {
			finish()
		}
	})
}

// completeHandling runs on the fast pool: it turns the handler's
// result into wire bytes and arms write-readiness so the selector
// thread takes over the flush.
func (e *HybridEngine) completeHandling(cc *connection.ConnectionContext, idx int, resp *httpcodec.Response, err error) {
	if err != nil {
		status := 500
		if errors.Is(err, errHandlerTimedOut) {
			status = 408
			e.cfg.Metrics.TimeoutResponses.Add(1)
			// A timed-out handler may still be running and could write a
			// stale response later; the connection cannot be reused.
			cc.KeepAlive = false
		}
		e.cfg.Metrics.ErrorOccurred()
		e.cfg.Logger.Error("hybrid: handler error",
			zap.Error(err), zap.String("conn", cc.ID.String()))
		resp = httpcodec.TextResponse(status, err.Error())
	}

	stampConnection(cc, resp)
	cc.PrepareResponse(e.serializer.Serialize(resp))

	if modErr := e.loop.ModifyInterest(cc.Registration, eventloop.InterestWrite); modErr != nil {
		e.closeConn(cc, idx)
	}
}

func (e *HybridEngine) onWriteReady(cc *connection.ConnectionContext, idx int) {
	drained, err := cc.WritePending(time.Millisecond)
	if err != nil {
		e.cfg.Metrics.ErrorOccurred()
		e.closeConn(cc, idx)
		return
	}
	if !drained {
		// Partial write: leave write-interest armed (spec §9's
		// resolution of the hybrid partial-write open question).
		return
	}

	e.cfg.Metrics.ResponseSent()
	_ = socket.Requick(cc.Conn)

	if !cc.KeepAlive {
		e.closeConn(cc, idx)
		return
	}

	cc.ResetForNextRequest()
	if modErr := e.loop.ModifyInterest(cc.Registration, eventloop.InterestRead); modErr != nil {
		e.closeConn(cc, idx)
	}
}

// sendAndClose serializes resp, disarms interest, makes one best-effort
// flush attempt, and closes — used for the error paths (oversized
// request, malformed request, backpressure rejection) that the spec
// says must close after responding rather than waiting on further
// write-readiness.
func (e *HybridEngine) sendAndClose(cc *connection.ConnectionContext, idx int, resp *httpcodec.Response) {
	e.cfg.Metrics.ErrorOccurred()
	cc.KeepAlive = false
	stampConnection(cc, resp)
	cc.PrepareResponse(e.serializer.Serialize(resp))
	_ = e.loop.ModifyInterest(cc.Registration, 0)
	_, _ = cc.WritePending(50 * time.Millisecond)
	e.closeConn(cc, idx)
}

func (e *HybridEngine) closeConn(cc *connection.ConnectionContext, idx int) {
	_ = e.loop.Unregister(cc.Registration)
	_ = cc.Close()
	e.slots.Release(idx)
	e.cfg.Metrics.ConnectionClosed()
}

// RefreshMetrics samples the event loop's activity counters and all
// three pools' current utilization into the shared Metrics struct.
func (e *HybridEngine) RefreshMetrics() {
	stats := e.loop.Stats()
	e.cfg.Metrics.EventLoopIterations.Store(int64(stats.Iterations))
	e.cfg.Metrics.EventLoopEvents.Store(int64(stats.EventsDispatched))
	e.cfg.Metrics.PoolIOInUse.Store(int64(e.io.Running()))
	e.cfg.Metrics.PoolCPUInUse.Store(int64(e.cpu.Running()))
	e.cfg.Metrics.PoolFastInUse.Store(int64(e.fast.Running()))
}

// Stop closes the listener, stops the event loop, and closes every
// connection still held in the slot table.
func (e *HybridEngine) Stop(ctx context.Context) error {
	_ = e.listener.Close()
	_ = e.loop.Stop(stopTimeout(e.cfg, ctx))
	for i := 0; i < e.slots.Cap(); i++ {
		if cc := e.slots.Get(i); cc != nil {
			_ = cc.Conn.Close()
		}
	}
	e.io.Release()
	e.cpu.Release()
	e.fast.Release()
	return nil
}
