//go:build darwin

package eventloop

import (
	"time"

	"golang.org/x/sys/unix"
)

// kqueuePoller is the Darwin/BSD readiness multiplexer, mirroring
// epollPoller's shape one-for-one so EventLoop stays platform-agnostic.
type kqueuePoller struct {
	kq int
}

func newPoller() (poller, error) {
	fd, err := unix.Kqueue()
	if err != nil {
		return nil, err
	}
	return &kqueuePoller{kq: fd}, nil
}

func (p *kqueuePoller) changeFor(fd int, interest Interest, flag uint16) []unix.Kevent_t {
	var changes []unix.Kevent_t
	readFlags := flag
	writeFlags := flag
	if !interest.Has(InterestRead) {
		readFlags = unix.EV_DELETE
	}
	if !interest.Has(InterestWrite) {
		writeFlags = unix.EV_DELETE
	}
	changes = append(changes, unix.Kevent_t{
		Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: readFlags,
	})
	changes = append(changes, unix.Kevent_t{
		Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: writeFlags,
	})
	return changes
}

func (p *kqueuePoller) add(fd int, interest Interest) error {
	changes := p.changeFor(fd, interest, unix.EV_ADD|unix.EV_ENABLE)
	_, err := unix.Kevent(p.kq, changes, nil, nil)
	return err
}

func (p *kqueuePoller) modify(fd int, interest Interest) error {
	return p.add(fd, interest)
}

func (p *kqueuePoller) remove(fd int) error {
	changes := []unix.Kevent_t{
		{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: unix.EV_DELETE},
		{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: unix.EV_DELETE},
	}
	_, _ = unix.Kevent(p.kq, changes, nil, nil)
	return nil
}

func (p *kqueuePoller) wait(timeout time.Duration) ([]readyEvent, error) {
	events := make([]unix.Kevent_t, 256)
	ts := unix.NsecToTimespec(timeout.Nanoseconds())
	n, err := unix.Kevent(p.kq, nil, events, &ts)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, err
	}

	byFd := make(map[int]*readyEvent, n)
	order := make([]int, 0, n)
	for i := 0; i < n; i++ {
		fd := int(events[i].Ident)
		re, ok := byFd[fd]
		if !ok {
			re = &readyEvent{fd: fd}
			byFd[fd] = re
			order = append(order, fd)
		}
		switch events[i].Filter {
		case unix.EVFILT_READ:
			re.readable = true
		case unix.EVFILT_WRITE:
			re.writable = true
		}
	}
	out := make([]readyEvent, 0, len(order))
	for _, fd := range order {
		out = append(out, *byFd[fd])
	}
	return out, nil
}

func (p *kqueuePoller) close() error {
	return unix.Close(p.kq)
}
