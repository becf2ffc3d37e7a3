// Package worker runs work items one at a time on a single goroutine.
//
// Every dispatch, connect callback and report callback of the controller is
// a work item on one Worker, so none of them run concurrently with each
// other. Code on other goroutines (shell, input, transport callbacks) hands
// work over with Submit or Post instead of calling into the controller.
package worker

import (
	"context"
	"errors"
	"sync"

	"github.com/pion/logging"
)

// Worker errors.
var (
	ErrStopped        = errors.New("worker: stopped")
	ErrQueueFull      = errors.New("worker: queue full")
	ErrAlreadyStarted = errors.New("worker: already started")
)

// DefaultQueueSize is the number of work items that can wait in the queue.
const DefaultQueueSize = 10

// Config configures a Worker.
type Config struct {
	// QueueSize bounds the number of queued items. Default: DefaultQueueSize.
	QueueSize int

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Worker is a single cooperative execution context.
type Worker struct {
	queue  chan func()
	stopCh chan struct{}
	doneCh chan struct{}

	mu       sync.Mutex
	started  bool
	stopOnce sync.Once

	log logging.LeveledLogger
}

// New creates a worker. Items may be queued before Start.
func New(config Config) *Worker {
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultQueueSize
	}

	w := &Worker{
		queue:  make(chan func(), config.QueueSize),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	if config.LoggerFactory != nil {
		w.log = config.LoggerFactory.NewLogger("worker")
	}
	return w
}

// Start launches the worker goroutine.
func (w *Worker) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	select {
	case <-w.stopCh:
		return ErrStopped
	default:
	}
	if w.started {
		return ErrAlreadyStarted
	}
	w.started = true

	go w.loop()
	return nil
}

func (w *Worker) loop() {
	defer close(w.doneCh)

	for {
		select {
		case <-w.stopCh:
			if n := len(w.queue); n > 0 && w.log != nil {
				w.log.Warnf("dropping %d queued work items on stop", n)
			}
			return
		case fn := <-w.queue:
			w.run(fn)
		}
	}
}

func (w *Worker) run(fn func()) {
	defer func() {
		if r := recover(); r != nil && w.log != nil {
			w.log.Errorf("work item panicked: %v", r)
		}
	}()
	fn()
}

// Submit queues fn without blocking.
//
// Returns ErrQueueFull if the queue is at capacity and ErrStopped after Stop.
func (w *Worker) Submit(fn func()) error {
	select {
	case <-w.stopCh:
		return ErrStopped
	default:
	}

	select {
	case w.queue <- fn:
		return nil
	default:
		if w.log != nil {
			w.log.Warn("failed to post work item: queue full")
		}
		return ErrQueueFull
	}
}

// Post queues fn, waiting for queue space until ctx is done or the worker
// stops. Transport callbacks use Post so completions are never dropped for
// lack of queue space.
func (w *Worker) Post(ctx context.Context, fn func()) error {
	select {
	case <-w.stopCh:
		return ErrStopped
	default:
	}

	select {
	case w.queue <- fn:
		return nil
	case <-w.stopCh:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Call runs fn on the worker and waits for it to return.
// It must not be called from a work item; that would deadlock.
func (w *Worker) Call(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	if err := w.Post(ctx, func() {
		defer close(done)
		fn()
	}); err != nil {
		return err
	}

	select {
	case <-done:
		return nil
	case <-w.doneCh:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Len returns the number of queued items.
func (w *Worker) Len() int {
	return len(w.queue)
}

// Stop stops the worker and waits for the running item, if any, to finish.
// Items still queued are dropped. Stop is idempotent.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})

	w.mu.Lock()
	started := w.started
	w.mu.Unlock()

	if started {
		<-w.doneCh
	}
}

// Done is closed once the worker goroutine has exited.
func (w *Worker) Done() <-chan struct{} {
	return w.doneCh
}
