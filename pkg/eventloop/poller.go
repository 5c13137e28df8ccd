package eventloop

import "time"

// Interest is a bitmask of readiness conditions a registration cares
// about, per spec §4.3's "interest mask" concept (also reused by
// ConnectionContext's read/write buffer flips, spec §4.4).
type Interest uint8

const (
	InterestRead Interest = 1 << iota
	InterestWrite
)

// Has reports whether i includes other.
func (i Interest) Has(other Interest) bool { return i&other != 0 }

// readyEvent is one fd's readiness report from a poller.wait call.
type readyEvent struct {
	fd       int
	readable bool
	writable bool
}

// poller is the platform-specific readiness multiplexer behind
// EventLoop's main cycle. Implementations: poller_linux.go (epoll),
// poller_darwin.go (kqueue), poller_other.go (portable fallback for
// every other GOOS).
type poller interface {
	add(fd int, interest Interest) error
	modify(fd int, interest Interest) error
	remove(fd int) error
	wait(timeout time.Duration) ([]readyEvent, error)
	close() error
}
