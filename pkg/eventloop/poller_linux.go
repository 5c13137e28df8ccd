//go:build linux

package eventloop

import (
	"time"

	"golang.org/x/sys/unix"
)

// epollPoller is the Linux readiness multiplexer, grounded loosely on
// the raw-syscall style of pkg/socket/tuning_linux.go (direct
// golang.org/x/sys/unix calls, best-effort error handling on
// non-critical paths).
type epollPoller struct {
	epfd int
}

func newPoller() (poller, error) {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &epollPoller{epfd: fd}, nil
}

func toEpollEvents(interest Interest) uint32 {
	var events uint32
	if interest.Has(InterestRead) {
		events |= unix.EPOLLIN
	}
	if interest.Has(InterestWrite) {
		events |= unix.EPOLLOUT
	}
	return events
}

func (p *epollPoller) add(fd int, interest Interest) error {
	ev := unix.EpollEvent{Events: toEpollEvents(interest), Fd: int32(fd)}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev)
}

func (p *epollPoller) modify(fd int, interest Interest) error {
	ev := unix.EpollEvent{Events: toEpollEvents(interest), Fd: int32(fd)}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, &ev)
}

func (p *epollPoller) remove(fd int) error {
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

func (p *epollPoller) wait(timeout time.Duration) ([]readyEvent, error) {
	events := make([]unix.EpollEvent, 256)
	ms := int(timeout / time.Millisecond)
	n, err := unix.EpollWait(p.epfd, events, ms)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, err
	}
	out := make([]readyEvent, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, readyEvent{
			fd:       int(events[i].Fd),
			readable: events[i].Events&(unix.EPOLLIN|unix.EPOLLHUP|unix.EPOLLERR) != 0,
			writable: events[i].Events&unix.EPOLLOUT != 0,
		})
	}
	return out, nil
}

func (p *epollPoller) close() error {
	return unix.Close(p.epfd)
}
