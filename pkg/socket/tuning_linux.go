//go:build linux

package socket

import "golang.org/x/sys/unix"

// Linux carries the full knob set: QUICKACK, DEFER_ACCEPT, FASTOPEN,
// USER_TIMEOUT, and the keepalive probe schedule.

// userTimeoutMillis bounds how long unacknowledged data may sit in the
// retransmit queue before the kernel declares the peer dead. Without
// it, a vanished peer can pin a worker (threaded engine) or a slot
// (hybrid/event-loop) until the much longer keepalive cycle gives up.
const userTimeoutMillis = 10_000

func tuneConn(fd int, o *Options) {
	if o.QuickAck {
		_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_QUICKACK, 1)
	}
	_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_USER_TIMEOUT, userTimeoutMillis)
	if o.KeepAlive {
		if s := int(o.KeepAliveIdle.Seconds()); s > 0 {
			_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_KEEPIDLE, s)
		}
		if s := int(o.KeepAliveInterval.Seconds()); s > 0 {
			_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_KEEPINTVL, s)
		}
		if o.KeepAliveCount > 0 {
			_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_KEEPCNT, o.KeepAliveCount)
		}
	}
}

func tuneListener(fd int, o *Options) error {
	var lastErr error
	if o.DeferAccept {
		secs := o.DeferAcceptSeconds
		if secs <= 0 {
			secs = 1
		}
		if err := unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_DEFER_ACCEPT, secs); err != nil {
			lastErr = err
		}
	}
	if o.FastOpen {
		queue := o.FastOpenQueue
		if queue <= 0 {
			queue = 16
		}
		// Fails when the kernel has TFO disabled; the listener works
		// fine without it.
		if err := unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_FASTOPEN, queue); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

func setQuickAck(fd int) error {
	return unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_QUICKACK, 1)
}
