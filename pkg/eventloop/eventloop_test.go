package eventloop

import (
	"testing"
	"time"
)

func TestSubmitRunsOnLoopThread(t *testing.T) {
	el, err := New()
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	go el.Run()
	defer el.Stop(time.Second)

	done := make(chan struct{})
	el.Submit(func() { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("submitted task never ran")
	}
}

func TestScheduleFiresAfterDelay(t *testing.T) {
	el, err := New()
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	go el.Run()
	defer el.Stop(time.Second)

	start := time.Now()
	done := make(chan time.Time, 1)
	el.Schedule(50*time.Millisecond, func() { done <- time.Now() })

	select {
	case fired := <-done:
		if fired.Sub(start) < 40*time.Millisecond {
			t.Errorf("scheduled task fired too early: %v after submit", fired.Sub(start))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("scheduled task never fired")
	}
}

func TestStopDiscardsPendingWork(t *testing.T) {
	el, err := New()
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	go el.Run()

	if err := el.Stop(time.Second); err != nil {
		t.Fatalf("Stop() error: %v", err)
	}

	ran := false
	el.Submit(func() { ran = true })
	time.Sleep(50 * time.Millisecond)
	if ran {
		t.Errorf("task submitted after Stop should not run")
	}
}

func TestStatsReflectsIterations(t *testing.T) {
	el, err := New()
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	go el.Run()
	defer el.Stop(time.Second)

	// An iteration is counted once its poller wait returns, which with no
	// registrations takes the full maxIterationWait.
	time.Sleep(maxIterationWait + 100*time.Millisecond)
	if el.Stats().Iterations == 0 {
		t.Errorf("expected at least one loop iteration")
	}
}
