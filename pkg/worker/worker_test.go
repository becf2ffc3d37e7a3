package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pion/transport/v3/test"
)

func TestWorker_RunsInOrder(t *testing.T) {
	defer test.CheckRoutines(t)()
	lim := test.TimeOut(5 * time.Second)
	defer lim.Stop()

	w := New(Config{QueueSize: 100})
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	var got []int
	for i := 0; i < 50; i++ {
		if err := w.Submit(func() { got = append(got, i) }); err != nil {
			t.Fatalf("Submit %d failed: %v", i, err)
		}
	}

	// Call is queued behind the submitted items, so got is complete after it.
	var n int
	if err := w.Call(context.Background(), func() { n = len(got) }); err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if n != 50 {
		t.Fatalf("expected 50 items, got %d", n)
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("item %d ran out of order: %d", i, v)
		}
	}
}

func TestWorker_NoConcurrentItems(t *testing.T) {
	defer test.CheckRoutines(t)()

	w := New(Config{QueueSize: 64})
	_ = w.Start()
	defer w.Stop()

	var active, maxActive int32
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				_ = w.Post(context.Background(), func() {
					n := atomic.AddInt32(&active, 1)
					if n > atomic.LoadInt32(&maxActive) {
						atomic.StoreInt32(&maxActive, n)
					}
					atomic.AddInt32(&active, -1)
				})
			}
		}()
	}
	wg.Wait()
	_ = w.Call(context.Background(), func() {})

	if maxActive != 1 {
		t.Errorf("expected at most one item running, saw %d", maxActive)
	}
}

func TestWorker_QueueFull(t *testing.T) {
	w := New(Config{QueueSize: 2})

	// Not started: items stay queued.
	if err := w.Submit(func() {}); err != nil {
		t.Fatalf("Submit 1 failed: %v", err)
	}
	if err := w.Submit(func() {}); err != nil {
		t.Fatalf("Submit 2 failed: %v", err)
	}
	if err := w.Submit(func() {}); err != ErrQueueFull {
		t.Errorf("expected ErrQueueFull, got %v", err)
	}
	if w.Len() != 2 {
		t.Errorf("expected 2 queued, got %d", w.Len())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := w.Post(ctx, func() {}); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
	w.Stop()
}

func TestWorker_Stop(t *testing.T) {
	defer test.CheckRoutines(t)()

	w := New(Config{})
	_ = w.Start()

	if err := w.Start(); err != ErrAlreadyStarted {
		t.Errorf("expected ErrAlreadyStarted, got %v", err)
	}

	w.Stop()
	w.Stop()

	select {
	case <-w.Done():
	default:
		t.Error("Done should be closed after Stop")
	}

	if err := w.Submit(func() {}); err != ErrStopped {
		t.Errorf("Submit: expected ErrStopped, got %v", err)
	}
	if err := w.Post(context.Background(), func() {}); err != ErrStopped {
		t.Errorf("Post: expected ErrStopped, got %v", err)
	}
	if err := w.Call(context.Background(), func() {}); err != ErrStopped {
		t.Errorf("Call: expected ErrStopped, got %v", err)
	}
	if err := w.Start(); err != ErrStopped {
		t.Errorf("Start after Stop: expected ErrStopped, got %v", err)
	}
}

func TestWorker_PanicDoesNotKillLoop(t *testing.T) {
	defer test.CheckRoutines(t)()

	w := New(Config{})
	_ = w.Start()
	defer w.Stop()

	_ = w.Submit(func() { panic("bad item") })

	ran := false
	if err := w.Call(context.Background(), func() { ran = true }); err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if !ran {
		t.Error("worker stopped running items after a panic")
	}
}
