//go:build darwin

package socket

import "golang.org/x/sys/unix"

// Darwin exposes a smaller knob set: no QUICKACK or DEFER_ACCEPT, a
// keepalive idle time but no probe schedule, and FASTOPEN under its
// own option number.

func tuneConn(fd int, o *Options) {
	// A write to a peer-closed socket should surface as an error the
	// engines count, not a process-wide SIGPIPE.
	_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_NOSIGPIPE, 1)
	if o.KeepAlive {
		if s := int(o.KeepAliveIdle.Seconds()); s > 0 {
			_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_KEEPALIVE, s)
		}
	}
}

func tuneListener(fd int, o *Options) error {
	if !o.FastOpen {
		return nil
	}
	queue := o.FastOpenQueue
	if queue <= 0 {
		queue = 16
	}
	return unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_FASTOPEN, queue)
}

// setQuickAck is a no-op: Darwin has no TCP_QUICKACK equivalent, and
// Requick's call sites run unconditionally on every platform.
func setQuickAck(int) error { return nil }
