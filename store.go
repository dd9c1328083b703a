package jobline

import "context"

// Store implements persistent storage of jobs and scheduled jobs over a
// transactional SQL database. Implementations must make ClaimJob and
// ClaimDueSchedule atomic: concurrent callers must never observe the
// same row transition out of Pending/Idle more than once.
type Store interface {
	// Close releases resources held by the store (e.g. the underlying
	// *sql.DB). Close is idempotent.
	Close() error

	// CreateJob inserts a new Pending job and assigns its ID.
	CreateJob(ctx context.Context, job *Job) error
	// CreateJobs inserts all of jobs in a single transaction, in order,
	// assigning each job's ID.
	CreateJobs(ctx context.Context, jobs []*Job) error
	// ClaimJob atomically selects the oldest Pending job of type and
	// transitions it to Processing, returning the updated row. Returns
	// (nil, nil) if none is available.
	ClaimJob(ctx context.Context, jobType string) (*Job, error)
	// UpdateJob persists a job's full mutable state (status, timestamps,
	// error) as given; it performs no state-machine validation itself.
	// Callers (see Queue.MarkDone/MarkFailed) are responsible for checking
	// preconditions before calling it.
	UpdateJob(ctx context.Context, job *Job) error
	// GetJob returns the job with the given id, or ErrNotFound.
	GetJob(ctx context.Context, id int64) (*Job, error)
	// CountJobs counts jobs matching filter.
	CountJobs(ctx context.Context, filter JobFilter) (int, error)
	// JobTypes returns the distinct set of job types among the jobs
	// currently stored.
	JobTypes(ctx context.Context) ([]string, error)
	// RequeueTimedOut moves every Processing job whose ProcessingAt is
	// older than olderThan back to Pending, clearing ProcessingAt. It
	// returns the number of rows touched.
	RequeueTimedOut(ctx context.Context, olderThan int64) (int, error)
	// DeleteTerminalJobs deletes jobs in the given terminal status whose
	// corresponding terminal timestamp is older than olderThan. It
	// returns the number of rows deleted. status must be Done or Failed.
	DeleteTerminalJobs(ctx context.Context, status string, olderThan int64) (int, error)

	// UpsertSchedule inserts a new ScheduledJob row for type, or updates
	// the existing row's CronExpression/NextRun in place if one already
	// exists, returning that row's (possibly pre-existing) ID.
	UpsertSchedule(ctx context.Context, sched *ScheduledJob) (int64, error)
	// ListSchedules returns all ScheduledJob rows in insertion order.
	ListSchedules(ctx context.Context) ([]*ScheduledJob, error)
	// GetSchedule returns the scheduled job with the given id, or
	// ErrNotFound.
	GetSchedule(ctx context.Context, id int64) (*ScheduledJob, error)
	// ClaimDueSchedule atomically selects an Idle schedule with
	// NextRun <= now and transitions it to SchedProcessing, returning the
	// updated row. Returns (nil, nil) if none is due.
	ClaimDueSchedule(ctx context.Context, now int64) (*ScheduledJob, error)
	// MarkScheduleIdle transitions a schedule back to Idle with the given
	// next run time.
	MarkScheduleIdle(ctx context.Context, id int64, nextRun int64) error
}
