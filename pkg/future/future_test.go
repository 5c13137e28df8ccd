package future

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCompletedAwaitsImmediately(t *testing.T) {
	f := Completed(42)
	v, err := f.Await(context.Background())
	if err != nil || v != 42 {
		t.Fatalf("Await = (%d, %v), want (42, nil)", v, err)
	}
}

func TestFailedAwaitsError(t *testing.T) {
	wantErr := errors.New("boom")
	f := Failed[int](wantErr)
	_, err := f.Await(context.Background())
	if err != wantErr {
		t.Fatalf("Await err = %v, want %v", err, wantErr)
	}
}

func TestCompleteFromAnotherGoroutine(t *testing.T) {
	f := New[string]()
	go func() {
		time.Sleep(5 * time.Millisecond)
		f.Complete("done")
	}()
	v, err := f.Await(context.Background())
	if err != nil || v != "done" {
		t.Fatalf("Await = (%q, %v), want (done, nil)", v, err)
	}
}

func TestAwaitRespectsContextCancellation(t *testing.T) {
	f := New[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	_, err := f.Await(ctx)
	if err != context.DeadlineExceeded {
		t.Fatalf("Await err = %v, want DeadlineExceeded", err)
	}
}

func TestThenRunsSynchronouslyWhenAlreadyDone(t *testing.T) {
	f := Completed("x")
	called := false
	f.Then(func(v string, err error) {
		called = true
		if v != "x" {
			t.Errorf("Then value = %q, want x", v)
		}
	})
	if !called {
		t.Errorf("Then callback did not run for an already-completed future")
	}
}

func TestThenRunsOnComplete(t *testing.T) {
	f := New[int]()
	result := make(chan int, 1)
	f.Then(func(v int, err error) { result <- v })
	f.Complete(7)
	select {
	case v := <-result:
		if v != 7 {
			t.Errorf("Then callback got %d, want 7", v)
		}
	case <-time.After(time.Second):
		t.Fatal("Then callback never ran")
	}
}

func TestCompleteIsAtMostOnce(t *testing.T) {
	f := New[int]()
	f.Complete(1)
	f.Complete(2)
	v, _ := f.Await(context.Background())
	if v != 1 {
		t.Errorf("second Complete overwrote first result: got %d, want 1", v)
	}
}

func TestIsDone(t *testing.T) {
	f := New[int]()
	if f.IsDone() {
		t.Errorf("new future should not be done")
	}
	f.Complete(1)
	if !f.IsDone() {
		t.Errorf("future should be done after Complete")
	}
}
