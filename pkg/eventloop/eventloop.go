// Package eventloop implements the readiness-driven event loop shared
// by HybridEngine (accept, read, and write readiness, with handlers run
// on pools) and EventLoopEngine (accept, read, and write readiness, end
// to end on the loop thread), per spec §4.3.
//
// A single loop goroutine owns the poller, the registration table, and
// the timer queue; external goroutines may only reach it through
// Submit, Schedule, and the deferred path of Register.
package eventloop

import (
	"container/heap"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/junhyeong9812/serverarch/pkg/future"
)

// RegistrationKey identifies one registered file descriptor.
type RegistrationKey uint64

// ReadinessHandler is invoked on the loop thread when a registered fd
// becomes readable and/or writable. A panic escaping the handler is
// recovered by the loop, which then removes the registration — the
// handler itself is responsible for closing any resources it owns
// before or during that panic unwind (spec §4.3: "handler exceptions
// cancel the key, close the channel, and remove its registration").
type ReadinessHandler func(key RegistrationKey, readable, writable bool)

var (
	// ErrUnknownRegistration is returned by operations referencing a
	// RegistrationKey that is not (or no longer) registered.
	ErrUnknownRegistration = errors.New("eventloop: unknown registration")
	// ErrStopped is returned by Register/Submit-dependent calls once
	// the loop has been asked to stop.
	ErrStopped = errors.New("eventloop: loop is stopped")
)

const (
	// maxIterationWait bounds the poller.wait call so task/timer
	// processing latency never exceeds the spec's 1-second ceiling;
	// we pick a tighter default so Submit/Schedule feel responsive
	// without needing a self-pipe wake mechanism.
	maxIterationWait = 250 * time.Millisecond

	// maxTasksPerIteration bounds how many externally submitted tasks
	// run per loop iteration (spec §4.3 step 4).
	maxTasksPerIteration = 1000

	// defaultRegisterTimeout bounds how long an external-thread
	// Register call waits for the loop thread to apply it.
	defaultRegisterTimeout = 5 * time.Second
)

type registration struct {
	key      RegistrationKey
	fd       int
	interest Interest
	handler  ReadinessHandler
}

// EventLoop is the single-threaded cooperative scheduler described in
// spec §4.3.
type EventLoop struct {
	p poller

	mu            sync.Mutex
	registrations map[RegistrationKey]*registration
	byFd          map[int]RegistrationKey
	nextKey       uint64

	taskMu sync.Mutex
	tasks  []func()

	timers timerQueue // owned exclusively by the loop goroutine

	running   atomic.Bool
	stopCh    chan struct{}
	doneCh    chan struct{}

	iterations       atomic.Uint64
	eventsDispatched atomic.Uint64
}

// New constructs an EventLoop bound to the platform poller (epoll on
// Linux, kqueue on Darwin, a portable fallback elsewhere).
func New() (*EventLoop, error) {
	p, err := newPoller()
	if err != nil {
		return nil, err
	}
	return &EventLoop{
		p:             p,
		registrations: make(map[RegistrationKey]*registration),
		byFd:          make(map[int]RegistrationKey),
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}, nil
}

// Run drives the main cycle until Stop is called. It must be invoked
// on the goroutine that is to become "the loop thread" — every
// ReadinessHandler and every Submit/Schedule callback executes here.
func (el *EventLoop) Run() {
	if !el.running.CompareAndSwap(false, true) {
		return
	}
	defer close(el.doneCh)
	for el.running.Load() {
		el.iterateOnce()
	}
}

func (el *EventLoop) iterateOnce() {
	events, err := el.p.wait(maxIterationWait)
	el.iterations.Add(1)
	if err == nil {
		for _, ev := range events {
			el.dispatch(ev)
		}
	}

	now := time.Now().UnixNano()
	for _, due := range el.timers.drainDue(now) {
		el.runGuarded(due.Task)
	}

	el.taskMu.Lock()
	n := len(el.tasks)
	if n > maxTasksPerIteration {
		n = maxTasksPerIteration
	}
	batch := el.tasks[:n]
	el.tasks = el.tasks[n:]
	el.taskMu.Unlock()

	for _, fn := range batch {
		el.runGuarded(fn)
	}
}

func (el *EventLoop) dispatch(ev readyEvent) {
	el.mu.Lock()
	key, ok := el.byFd[ev.fd]
	var reg *registration
	if ok {
		reg = el.registrations[key]
	}
	el.mu.Unlock()
	if reg == nil {
		return
	}

	el.eventsDispatched.Add(1)
	func() {
		defer func() {
			if rec := recover(); rec != nil {
				el.unregisterLocked(reg.key)
			}
		}()
		reg.handler(reg.key, ev.readable, ev.writable)
	}()
}

func (el *EventLoop) runGuarded(fn func()) {
	defer func() { _ = recover() }()
	fn()
}

// RegisterDirect registers fd for interest and handler, applying it
// immediately. Callers on the loop thread (readiness handlers
// themselves, e.g. an accept callback registering the new client fd)
// must use this rather than Register to avoid deadlocking on a task
// queue that only drains between iterations of the very goroutine
// that would be blocked awaiting it.
func (el *EventLoop) RegisterDirect(fd int, interest Interest, handler ReadinessHandler) (RegistrationKey, error) {
	el.mu.Lock()
	el.nextKey++
	key := RegistrationKey(el.nextKey)
	el.registrations[key] = &registration{key: key, fd: fd, interest: interest, handler: handler}
	el.byFd[fd] = key
	el.mu.Unlock()

	if err := el.p.add(fd, interest); err != nil {
		el.unregisterLocked(key)
		return 0, err
	}
	return key, nil
}

// Register defers registration onto the loop thread and blocks the
// calling goroutine until it is applied or defaultRegisterTimeout
// elapses, per spec §4.3. Use this from any goroutine other than the
// loop thread itself.
func (el *EventLoop) Register(fd int, interest Interest, handler ReadinessHandler) (RegistrationKey, error) {
	fut := future.New[RegistrationKey]()
	if !el.Submit(func() {
		key, err := el.RegisterDirect(fd, interest, handler)
		if err != nil {
			fut.Fail(err)
			return
		}
		fut.Complete(key)
	}) {
		return 0, ErrStopped
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultRegisterTimeout)
	defer cancel()
	return fut.Await(ctx)
}

// ModifyInterest changes the interest mask for an existing
// registration — used to arm/disarm write-readiness as a connection's
// write buffer fills and drains (spec §4.4, §4.6).
func (el *EventLoop) ModifyInterest(key RegistrationKey, interest Interest) error {
	el.mu.Lock()
	reg, ok := el.registrations[key]
	if ok {
		reg.interest = interest
	}
	el.mu.Unlock()
	if !ok {
		return ErrUnknownRegistration
	}
	return el.p.modify(reg.fd, interest)
}

// Unregister removes a registration and its poller entry.
func (el *EventLoop) Unregister(key RegistrationKey) error {
	return el.unregisterLocked(key)
}

func (el *EventLoop) unregisterLocked(key RegistrationKey) error {
	el.mu.Lock()
	reg, ok := el.registrations[key]
	if ok {
		delete(el.registrations, key)
		delete(el.byFd, reg.fd)
	}
	el.mu.Unlock()
	if !ok {
		return ErrUnknownRegistration
	}
	return el.p.remove(reg.fd)
}

// Submit enqueues fn to run on the loop thread during the next
// iteration's task-drain phase. Safe to call from any goroutine.
// Returns false if the loop has already stopped.
func (el *EventLoop) Submit(fn func()) bool {
	if el.stopRequested() {
		return false
	}
	el.taskMu.Lock()
	el.tasks = append(el.tasks, fn)
	el.taskMu.Unlock()
	return true
}

func (el *EventLoop) stopRequested() bool {
	select {
	case <-el.stopCh:
		return true
	default:
		return false
	}
}

// Schedule runs fn on the loop thread no earlier than delay from now,
// per spec §3's ScheduledTask entity. The heap push itself happens on
// the loop thread (via Submit), so the timer queue never needs its own
// lock.
func (el *EventLoop) Schedule(delay time.Duration, fn func()) bool {
	deadline := time.Now().Add(delay).UnixNano()
	return el.Submit(func() {
		heap.Push(&el.timers, &ScheduledTask{Deadline: deadline, Task: fn})
	})
}

// Stats is a point-in-time snapshot for the built-in /metrics route.
type Stats struct {
	Iterations       uint64
	EventsDispatched uint64
	Registrations    int
}

// Stats returns current loop activity counters.
func (el *EventLoop) Stats() Stats {
	el.mu.Lock()
	n := len(el.registrations)
	el.mu.Unlock()
	return Stats{
		Iterations:       el.iterations.Load(),
		EventsDispatched: el.eventsDispatched.Load(),
		Registrations:    n,
	}
}

// Stop asks the loop to exit after its current iteration, closes all
// registered fds' poller entries, and waits (up to timeout) for Run to
// return. Pending task and timer queues are discarded, per spec §4.3's
// cancellation semantics.
func (el *EventLoop) Stop(timeout time.Duration) error {
	if !el.running.CompareAndSwap(true, false) {
		return nil
	}
	close(el.stopCh)

	select {
	case <-el.doneCh:
	case <-time.After(timeout):
	}

	el.mu.Lock()
	el.registrations = make(map[RegistrationKey]*registration)
	el.byFd = make(map[int]RegistrationKey)
	el.mu.Unlock()

	el.taskMu.Lock()
	el.tasks = nil
	el.taskMu.Unlock()
	el.timers = nil

	return el.p.close()
}
