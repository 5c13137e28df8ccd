// Package socket tunes the TCP sockets behind the engines' listeners
// and accepted connections. Its tuning is applied through three calls
// wired into pkg/engine: ApplyListener at bind time, Apply at accept
// time, and Requick after each response is written.
//
// Portable options are set here; everything platform-specific goes
// through the tuneConn/tuneListener/setQuickAck hooks in
// tuning_linux.go, tuning_darwin.go, and tuning_other.go, the same
// split pkg/eventloop uses for its pollers.
package socket

import (
	"net"
	"syscall"
	"time"
)

// Options selects which TCP-level knobs the engines turn on. The zero
// value changes nothing; Defaults returns the tuning the engines start
// from. Options a platform cannot honor are silently skipped.
type Options struct {
	// NoDelay disables Nagle's algorithm. A small HTTP response should
	// leave as soon as it is written, not wait to be coalesced with the
	// next one.
	NoDelay bool

	// ReadBuffer/WriteBuffer set SO_RCVBUF/SO_SNDBUF in bytes. Zero
	// keeps the system default.
	ReadBuffer  int
	WriteBuffer int

	// QuickAck arms TCP_QUICKACK at accept time (Linux only). The
	// kernel clears the flag after each ACK it sends, so Requick
	// re-arms it once per request on keep-alive connections.
	QuickAck bool

	// DeferAccept holds a new connection in the kernel until request
	// bytes arrive, so accept readiness implies there is something to
	// read (Linux only). DeferAcceptSeconds bounds the wait.
	DeferAccept        bool
	DeferAcceptSeconds int

	// FastOpen lets clients carry data in the SYN, saving one RTT on
	// connection setup. FastOpenQueue is the listener's pending-TFO
	// backlog.
	FastOpen      bool
	FastOpenQueue int

	// KeepAlive enables SO_KEEPALIVE. On Linux the probe schedule is
	// tightened to KeepAliveIdle/KeepAliveInterval/KeepAliveCount;
	// Darwin honors only the idle time.
	KeepAlive         bool
	KeepAliveIdle     time.Duration
	KeepAliveInterval time.Duration
	KeepAliveCount    int
}

// Defaults is the engines' starting point: latency-leaning, sized for
// the keep-alive-heavy, small-response traffic HTTP serving produces.
func Defaults() *Options {
	return &Options{
		NoDelay:            true,
		ReadBuffer:         256 << 10,
		WriteBuffer:        256 << 10,
		QuickAck:           true,
		DeferAccept:        true,
		DeferAcceptSeconds: 5,
		FastOpen:           true,
		FastOpenQueue:      256,
		KeepAlive:          true,
		KeepAliveIdle:      60 * time.Second,
		KeepAliveInterval:  10 * time.Second,
		KeepAliveCount:     3,
	}
}

// Apply tunes one accepted connection. A TCP_NODELAY failure is
// reported — it is the one option the engines' latency depends on —
// while everything else is best-effort, since kernel support varies.
// Non-TCP conns are left untouched.
func Apply(conn net.Conn, o *Options) error {
	if o == nil {
		o = Defaults()
	}
	tcp, ok := conn.(*net.TCPConn)
	if !ok {
		return nil
	}
	return control(tcp, func(fd int) error {
		if o.NoDelay {
			if err := syscall.SetsockoptInt(fd, syscall.IPPROTO_TCP, syscall.TCP_NODELAY, 1); err != nil {
				return err
			}
		}
		if o.ReadBuffer > 0 {
			_ = syscall.SetsockoptInt(fd, syscall.SOL_SOCKET, syscall.SO_RCVBUF, o.ReadBuffer)
		}
		if o.WriteBuffer > 0 {
			_ = syscall.SetsockoptInt(fd, syscall.SOL_SOCKET, syscall.SO_SNDBUF, o.WriteBuffer)
		}
		if o.KeepAlive {
			_ = syscall.SetsockoptInt(fd, syscall.SOL_SOCKET, syscall.SO_KEEPALIVE, 1)
		}
		tuneConn(fd, o)
		return nil
	})
}

// ApplyListener tunes the listening socket before the engines start
// accepting. TCP_DEFER_ACCEPT and TCP_FASTOPEN only take effect when
// set on the listener, which is why this is separate from Apply.
// Best-effort on every option.
func ApplyListener(ln net.Listener, o *Options) error {
	if o == nil {
		o = Defaults()
	}
	tcp, ok := ln.(*net.TCPListener)
	if !ok {
		return nil
	}
	return control(tcp, func(fd int) error {
		return tuneListener(fd, o)
	})
}

// Requick re-arms TCP_QUICKACK on conn after a response. The kernel
// clears the flag each time it sends an ACK, so a keep-alive connection
// that wants immediate ACKs on every request must set it once per
// cycle. No-op on platforms without an equivalent, and on non-TCP
// conns.
func Requick(conn net.Conn) error {
	tcp, ok := conn.(*net.TCPConn)
	if !ok {
		return nil
	}
	return control(tcp, setQuickAck)
}
