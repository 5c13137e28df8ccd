//go:build !linux && !darwin

package eventloop

import (
	"sync"
	"time"
)

// fallbackPoller is the portable readiness multiplexer used on any
// GOOS other than linux/darwin, where we have no epoll/kqueue binding.
// It trades efficiency for portability: every registered fd is
// reported ready (for whichever directions it registered interest in)
// on each wait call, on the fixed cadence callers already poll at.
// This is correct, not merely approximate, because ConnectionContext's
// ReadAvailable/WritePending read and write through net.Conn with a
// short deadline and treat a timeout as "no progress, try again next
// cycle" regardless of which poller reported readiness — the fallback
// just reports more often than strictly necessary.
type fallbackPoller struct {
	mu    sync.Mutex
	fds   map[int]Interest
	order []int
}

func newPoller() (poller, error) {
	return &fallbackPoller{fds: make(map[int]Interest)}, nil
}

func (p *fallbackPoller) add(fd int, interest Interest) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.fds[fd]; !exists {
		p.order = append(p.order, fd)
	}
	p.fds[fd] = interest
	return nil
}

func (p *fallbackPoller) modify(fd int, interest Interest) error {
	return p.add(fd, interest)
}

func (p *fallbackPoller) remove(fd int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.fds, fd)
	for i, v := range p.order {
		if v == fd {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
	return nil
}

func (p *fallbackPoller) wait(timeout time.Duration) ([]readyEvent, error) {
	time.Sleep(timeout)

	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]readyEvent, 0, len(p.order))
	for _, fd := range p.order {
		interest := p.fds[fd]
		out = append(out, readyEvent{
			fd:       fd,
			readable: interest.Has(InterestRead),
			writable: interest.Has(InterestWrite),
		})
	}
	return out, nil
}

func (p *fallbackPoller) close() error {
	return nil
}
