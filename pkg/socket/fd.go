package socket

import (
	"fmt"
	"syscall"
)

// ExtractFD returns the raw file descriptor backing sc (a *net.TCPConn
// or *net.TCPListener, both of which implement syscall.Conn) without
// duplicating it, for direct registration with a readiness multiplexer
// (pkg/eventloop's epoll/kqueue poller). The returned fd remains owned
// by sc; callers must not close it directly — closing sc (or its
// conn/listener) closes the fd.
func ExtractFD(sc syscall.Conn) (int, error) {
	rawConn, err := sc.SyscallConn()
	if err != nil {
		return 0, err
	}
	var fd int
	err = rawConn.Control(func(f uintptr) {
		fd = int(f)
	})
	if err != nil {
		return 0, err
	}
	if fd == 0 {
		return 0, fmt.Errorf("socket: could not extract file descriptor")
	}
	return fd, nil
}

// control runs fn over sc's raw descriptor through the runtime's
// SyscallConn bridge, returning fn's error (or the bridge's own).
// Apply, ApplyListener, and Requick all funnel through here.
func control(sc syscall.Conn, fn func(fd int) error) error {
	rawConn, err := sc.SyscallConn()
	if err != nil {
		return err
	}
	var opErr error
	if err := rawConn.Control(func(fd uintptr) { opErr = fn(int(fd)) }); err != nil {
		return err
	}
	return opErr
}
