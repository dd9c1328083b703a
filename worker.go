package jobline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/google/uuid"
)

// Handler processes a single job's payload. A nil return marks the job
// Done; any other return value marks it Failed with the error's text.
type Handler func(ctx context.Context, job *Job) error

// Worker repeatedly claims jobs of one type from a Queue and runs them
// through a Handler. At most one handler invocation is in flight per
// Worker; run several Workers (in one process or many) for concurrency.
type Worker struct {
	queue   *Queue
	jobType string
	handler Handler
	hooks   *Hooks

	mu      sync.Mutex
	running bool
	stopc   chan struct{}
	donec   chan struct{}
}

// WorkerOption configures a Worker constructed via NewWorker.
type WorkerOption func(*Worker)

// WithWorkerHooks installs per-worker lifecycle callbacks, independent of
// any hooks configured on the Queue itself.
func WithWorkerHooks(h *Hooks) WorkerOption {
	return func(w *Worker) {
		w.hooks = h
	}
}

// NewWorker creates a Worker bound to jobType and handler. Call Start to
// begin processing.
func NewWorker(q *Queue, jobType string, handler Handler, options ...WorkerOption) *Worker {
	w := &Worker{
		queue:   q,
		jobType: jobType,
		handler: handler,
	}
	for _, opt := range options {
		opt(w)
	}
	return w
}

// Start begins the worker's background claim loop. It is a no-op if the
// worker is already running.
func (w *Worker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return
	}
	w.running = true
	w.stopc = make(chan struct{})
	w.donec = make(chan struct{})
	go w.run()
}

// Stop cooperatively stops the worker, blocking until the in-flight
// handler invocation (if any) returns.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	stopc, donec := w.stopc, w.donec
	w.mu.Unlock()

	select {
	case <-stopc:
	default:
		close(stopc)
	}
	<-donec

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()
}

func (w *Worker) run() {
	defer close(w.donec)

	b := newIdleBackoff()
	for {
		select {
		case <-w.stopc:
			return
		case <-w.queue.closing():
			return
		default:
		}

		job, err := w.queue.Claim(context.Background(), w.jobType)
		if err != nil {
			w.queue.logger.Printf("jobline: worker(%s): claim failed: %v", w.jobType, err)
			w.sleep(b)
			continue
		}
		if job == nil {
			w.sleep(b)
			continue
		}
		b.Reset()
		w.process(job)
	}
}

func (w *Worker) sleep(b *backoff.ExponentialBackOff) {
	d := b.NextBackOff()
	select {
	case <-time.After(d):
	case <-w.stopc:
	case <-w.queue.closing():
	}
}

func (w *Worker) process(job *Job) {
	attemptID := uuid.NewString()
	ctx := context.Background()

	w.hooks.processing(job)
	w.queue.hooks.processing(job)

	err := w.invokeHandler(ctx, job)
	if err != nil {
		w.queue.logger.Printf("jobline: worker(%s): attempt %s: job %d failed: %v", w.jobType, attemptID, job.ID, err)
		if markErr := w.queue.MarkFailed(ctx, job.ID, err.Error()); markErr != nil {
			w.queue.logger.Printf("jobline: worker(%s): attempt %s: job %d: mark failed failed: %v", w.jobType, attemptID, job.ID, markErr)
		}
		w.hooks.failed(job, err)
		w.queue.hooks.failed(job, err)
		return
	}
	if markErr := w.queue.MarkDone(ctx, job.ID); markErr != nil {
		w.queue.logger.Printf("jobline: worker(%s): attempt %s: job %d: mark done failed: %v", w.jobType, attemptID, job.ID, markErr)
	}
	w.hooks.completed(job)
	w.queue.hooks.completed(job)
}

// invokeHandler runs the handler, converting a panic into an error so a
// misbehaving handler can never take down the worker goroutine or leave a
// job stuck past its processing timeout.
func (w *Worker) invokeHandler(ctx context.Context, job *Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in handler: %v", r)
		}
	}()
	return w.handler(ctx, job)
}
