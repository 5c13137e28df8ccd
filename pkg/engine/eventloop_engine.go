package engine

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/junhyeong9812/serverarch/pkg/connection"
	"github.com/junhyeong9812/serverarch/pkg/eventloop"
	"github.com/junhyeong9812/serverarch/pkg/httpcodec"
	"github.com/junhyeong9812/serverarch/pkg/socket"
)

// eventLoopMaxConnections bounds EventLoopEngine's connection slot
// table, the same redesign applied to HybridEngine's hybridMaxConnections.
const eventLoopMaxConnections = 65536

// EventLoopEngine is spec §4.7's single-threaded, end-to-end engine:
// one EventLoop drives accept, read, and write readiness for every
// connection, handlers are invoked inline on the loop thread and must
// return a future, and CPU-bound work is offloaded to a dedicated pool
// whose completion re-enters the loop via Submit.
//
// Grounded the same way as HybridEngine (the teacher's selector-driven
// server shape), but collapsed to a single pool and no AsyncContext
// ceiling, since there is only ever one thread touching connection
// state and nothing else to apply backpressure against.
type EventLoopEngine struct {
	cfg        Config
	serializer *httpcodec.Serializer

	loop    *eventloop.EventLoop
	cpu     *ants.Pool
	offload OffloadFunc
	slots   *connection.SlotTable

	listener    net.Listener
	listenerKey eventloop.RegistrationKey
}

func newEventLoopEngine(cfg Config) (*EventLoopEngine, error) {
	cpuPool, err := ants.NewPool(cfg.EventLoopCPUPoolSize, ants.WithNonblocking(true), ants.WithPreAlloc(true))
	if err != nil {
		return nil, err
	}
	e := &EventLoopEngine{
		cfg:        cfg,
		serializer: newSerializer(cfg),
		cpu:        cpuPool,
		slots:      connection.NewSlotTable(eventLoopMaxConnections),
	}
	e.offload = submitOffload(e.cpu)
	return e, nil
}

func (e *EventLoopEngine) Start() error {
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

func (e *EventLoopEngine) Addr() net.Addr { return e.listener.Addr() }

func (e *EventLoopEngine) onListenerReady(key eventloop.RegistrationKey, readable, writable bool) {
	if tcpLn, ok := e.listener.(*net.TCPListener); ok {
		_ = tcpLn.SetDeadline(time.Now().Add(time.Millisecond))
	}
	conn, err := e.listener.Accept()
	if err != nil {
		return
	}
	e.onAccept(conn)
}

func (e *EventLoopEngine) onAccept(conn net.Conn) {
	_ = socket.Apply(conn, e.cfg.Socket)
	cc := connection.New(conn, e.cfg.Pool)

	idx, ok := e.slots.Acquire(cc)
	if !ok {
		e.cfg.Logger.Warn("eventloop: connection slot table full, rejecting")
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

func (e *EventLoopEngine) onConnReady(cc *connection.ConnectionContext, idx int, readable, writable bool) {
	if readable {
		e.onReadReady(cc, idx)
	}
	if writable {
		e.onWriteReady(cc, idx)
	}
}

func (e *EventLoopEngine) onReadReady(cc *connection.ConnectionContext, idx int) {
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

// beginHandling invokes the matched handler inline on the loop thread,
// per spec §4.7: the call itself never blocks (it only ever returns a
// Future), so other connections' readiness keeps being serviced while
// this one is in flight. The completion callback always re-enters the
// loop thread through Submit before touching cc, even when the future
// was already complete when Then was called.
func (e *EventLoopEngine) beginHandling(cc *connection.ConnectionContext, idx int) {
	_ = e.loop.ModifyInterest(cc.Registration, 0)

	req := cc.Request
	req.SetAttr(AttrAsyncOffload, e.offload)

	fut := e.cfg.Router.Dispatch(req)

	e.loop.Schedule(e.cfg.RequestTimeout, func() {
		if !fut.IsDone() {
			fut.Fail(errHandlerTimedOut)
		}
	})

	fut.Then(func(resp *httpcodec.Response, err error) {
		e.loop.Submit(func() {
			e.completeHandling(cc, idx, resp, err)
		})
	})
}

func (e *EventLoopEngine) completeHandling(cc *connection.ConnectionContext, idx int, resp *httpcodec.Response, err error) {
	if err != nil {
		status := 500
		if errors.Is(err, errHandlerTimedOut) {
			status = 408
			e.cfg.Metrics.TimeoutResponses.Add(1)
			cc.KeepAlive = false
		}
		e.cfg.Metrics.ErrorOccurred()
		e.cfg.Logger.Error("eventloop: handler error",
			zap.Error(err), zap.String("conn", cc.ID.String()))
		resp = httpcodec.TextResponse(status, err.Error())
	}

	stampConnection(cc, resp)
	cc.PrepareResponse(e.serializer.Serialize(resp))

	if modErr := e.loop.ModifyInterest(cc.Registration, eventloop.InterestWrite); modErr != nil {
		e.closeConn(cc, idx)
	}
}

func (e *EventLoopEngine) onWriteReady(cc *connection.ConnectionContext, idx int) {
	drained, err := cc.WritePending(time.Millisecond)
	if err != nil {
		e.cfg.Metrics.ErrorOccurred()
		e.closeConn(cc, idx)
		return
	}
	if !drained {
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

func (e *EventLoopEngine) sendAndClose(cc *connection.ConnectionContext, idx int, resp *httpcodec.Response) {
	e.cfg.Metrics.ErrorOccurred()
	cc.KeepAlive = false
	stampConnection(cc, resp)
	cc.PrepareResponse(e.serializer.Serialize(resp))
	_ = e.loop.ModifyInterest(cc.Registration, 0)
	_, _ = cc.WritePending(50 * time.Millisecond)
	e.closeConn(cc, idx)
}

func (e *EventLoopEngine) closeConn(cc *connection.ConnectionContext, idx int) {
	_ = e.loop.Unregister(cc.Registration)
	_ = cc.Close()
	e.slots.Release(idx)
	e.cfg.Metrics.ConnectionClosed()
}

// RefreshMetrics samples the event loop's activity counters and the
// CPU offload pool's current utilization into the shared Metrics struct.
func (e *EventLoopEngine) RefreshMetrics() {
	stats := e.loop.Stats()
	e.cfg.Metrics.EventLoopIterations.Store(int64(stats.Iterations))
	e.cfg.Metrics.EventLoopEvents.Store(int64(stats.EventsDispatched))
	e.cfg.Metrics.PoolCPUInUse.Store(int64(e.cpu.Running()))
}

func (e *EventLoopEngine) Stop(ctx context.Context) error {
	_ = e.listener.Close()
	_ = e.loop.Stop(stopTimeout(e.cfg, ctx))
	for i := 0; i < e.slots.Cap(); i++ {
		if cc := e.slots.Get(i); cc != nil {
			_ = cc.Conn.Close()
		}
	}
	e.cpu.Release()
	return nil
}
