package jobline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Queue is the public entry point to the job queue. Create one with New,
// register workers against it, and Close it when done. A Queue is safe
// for concurrent use by many goroutines.
type Queue struct {
	store      Store
	serializer Serializer
	logger     Logger
	hooks      *Hooks

	timeout                time.Duration
	maintenanceInterval    time.Duration
	maintenanceIntervalSet bool
	reapDoneAfter          time.Duration
	reapFailedAfter        time.Duration

	mu       sync.Mutex
	closed   bool
	stopOnce sync.Once
	stopc    chan struct{}
	donec    chan struct{}
}

// New creates a Queue and starts its maintenance loop. Call Close to stop
// it and release the underlying store.
func New(options ...Option) *Queue {
	q := &Queue{
		serializer: jsonSerializer{},
		logger:     stdLogger{},
		timeout:    defaultTimeout,
		stopc:      make(chan struct{}),
		donec:      make(chan struct{}),
	}
	for _, opt := range options {
		opt(q)
	}
	if q.store == nil {
		q.store = NewMemStore()
	}
	if !q.maintenanceIntervalSet {
		q.maintenanceInterval = q.timeout
	}
	go q.maintain()
	return q
}

// Add serializes payload and inserts a new Pending job of the given type,
// returning its assigned ID.
func (q *Queue) Add(ctx context.Context, jobType string, payload interface{}) (int64, error) {
	ids, err := q.AddMany(ctx, jobType, []interface{}{payload})
	if err != nil {
		return 0, err
	}
	return ids[0], nil
}

// AddMany serializes each of payloads and inserts them as Pending jobs of
// the given type in a single atomic batch. Returned ids are in input
// order.
func (q *Queue) AddMany(ctx context.Context, jobType string, payloads []interface{}) ([]int64, error) {
	if err := q.checkOpen(); err != nil {
		return nil, err
	}
	if jobType == "" {
		return nil, errors.New("jobline: no job type specified")
	}
	now := nowMillis()
	jobs := make([]*Job, len(payloads))
	for i, p := range payloads {
		data, err := q.serializer.Serialize(p)
		if err != nil {
			return nil, fmt.Errorf("jobline: serialize payload: %w", err)
		}
		jobs[i] = &Job{
			Type:      jobType,
			Data:      data,
			Status:    Pending,
			CreatedAt: now,
		}
	}
	if err := q.store.CreateJobs(ctx, jobs); err != nil {
		return nil, err
	}
	ids := make([]int64, len(jobs))
	for i, j := range jobs {
		ids[i] = j.ID
		q.hooks.jobAdded(j)
	}
	return ids, nil
}

// Claim atomically claims the oldest pending job of the given type,
// marking it Processing. It returns (nil, nil) if none is available.
func (q *Queue) Claim(ctx context.Context, jobType string) (*Job, error) {
	if err := q.checkOpen(); err != nil {
		return nil, err
	}
	return q.store.ClaimJob(ctx, jobType)
}

// MarkDone marks the job as Done. The job must currently be Processing;
// otherwise ErrNotProcessing is returned.
func (q *Queue) MarkDone(ctx context.Context, id int64) error {
	job, err := q.store.GetJob(ctx, id)
	if err != nil {
		return err
	}
	if job.Status != Processing {
		return ErrNotProcessing
	}
	job.Status = Done
	job.DoneAt = nowMillis()
	return q.store.UpdateJob(ctx, job)
}

// MarkFailed marks the job as Failed, recording errText. The job must
// currently be Processing; otherwise ErrNotProcessing is returned.
func (q *Queue) MarkFailed(ctx context.Context, id int64, errText string) error {
	job, err := q.store.GetJob(ctx, id)
	if err != nil {
		return err
	}
	if job.Status != Processing {
		return ErrNotProcessing
	}
	job.Status = Failed
	job.FailedAt = nowMillis()
	job.Error = errText
	return q.store.UpdateJob(ctx, job)
}

// GetJobByID returns the job with the given id, or ErrNotFound.
func (q *Queue) GetJobByID(ctx context.Context, id int64) (*Job, error) {
	return q.store.GetJob(ctx, id)
}

// CountJobs counts jobs matching filter.
func (q *Queue) CountJobs(ctx context.Context, filter JobFilter) (int, error) {
	return q.store.CountJobs(ctx, filter)
}

// GetJobTypes returns the distinct set of job types among the jobs
// currently stored; types whose jobs have all been removed are not listed.
func (q *Queue) GetJobTypes(ctx context.Context) ([]string, error) {
	return q.store.JobTypes(ctx)
}

// Schedule registers (or updates) a cron-driven schedule for jobType.
// Calling Schedule again for a type that is already scheduled updates the
// expression in place and returns the original ID.
func (q *Queue) Schedule(ctx context.Context, jobType string, cronExpr string) (int64, error) {
	if err := q.checkOpen(); err != nil {
		return 0, err
	}
	if jobType == "" {
		return 0, errors.New("jobline: no job type specified")
	}
	nextRun, err := nextFireAfter(cronExpr, time.Now())
	if err != nil {
		return 0, err
	}
	sched := &ScheduledJob{
		Type:           jobType,
		CronExpression: cronExpr,
		Status:         Idle,
		NextRun:        nextRun.UnixNano() / int64(time.Millisecond),
	}
	return q.store.UpsertSchedule(ctx, sched)
}

// GetScheduledJobs returns all scheduled jobs in insertion order.
func (q *Queue) GetScheduledJobs(ctx context.Context) ([]*ScheduledJob, error) {
	return q.store.ListSchedules(ctx)
}

// GetScheduledJobByID returns the scheduled job with the given id, or
// ErrNotFound.
func (q *Queue) GetScheduledJobByID(ctx context.Context, id int64) (*ScheduledJob, error) {
	return q.store.GetSchedule(ctx, id)
}

// ClaimDueScheduledJob atomically claims an Idle schedule whose NextRun
// has passed, marking it SchedProcessing. It returns (nil, nil) if none
// is due.
func (q *Queue) ClaimDueScheduledJob(ctx context.Context) (*ScheduledJob, error) {
	return q.store.ClaimDueSchedule(ctx, nowMillis())
}

// MarkScheduledJobIdle returns a schedule to Idle with the given next run
// time.
func (q *Queue) MarkScheduledJobIdle(ctx context.Context, id int64, nextRun time.Time) error {
	return q.store.MarkScheduleIdle(ctx, id, nextRun.UnixNano()/int64(time.Millisecond))
}

// RemoveDoneJobs deletes Done jobs older than olderThan, returning the
// number removed.
func (q *Queue) RemoveDoneJobs(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := nowMillis() - olderThan.Milliseconds()
	n, err := q.store.DeleteTerminalJobs(ctx, Done, cutoff)
	if err != nil {
		return 0, err
	}
	q.hooks.doneJobsRemoved(n)
	return n, nil
}

// RemoveFailedJobs deletes Failed jobs older than olderThan, returning the
// number removed.
func (q *Queue) RemoveFailedJobs(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := nowMillis() - olderThan.Milliseconds()
	n, err := q.store.DeleteTerminalJobs(ctx, Failed, cutoff)
	if err != nil {
		return 0, err
	}
	q.hooks.failedJobsRemoved(n)
	return n, nil
}

// RequeueTimedOutJobs requeues every Processing job whose processing_at is
// older than timeout, returning the number requeued.
func (q *Queue) RequeueTimedOutJobs(ctx context.Context, timeout time.Duration) (int, error) {
	cutoff := nowMillis() - timeout.Milliseconds()
	n, err := q.store.RequeueTimedOut(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	q.hooks.processingJobsRequeued(n)
	return n, nil
}

// Close stops the maintenance loop and closes the backing store. Close is
// idempotent.
func (q *Queue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	q.mu.Unlock()

	q.stopOnce.Do(func() { close(q.stopc) })
	<-q.donec
	return q.store.Close()
}

func (q *Queue) checkOpen() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}
	return nil
}

// closing exposes the queue's stop signal so a Worker can tear itself
// down when the owning Queue is closed.
func (q *Queue) closing() <-chan struct{} {
	return q.stopc
}
