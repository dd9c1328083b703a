package jobline

// Scheduled-job status values, stored verbatim in the scheduled_jobs.status
// column.
const (
	// Idle means the schedule is waiting for its next_run to come due.
	Idle string = "idle"
	// SchedProcessing means the maintenance loop currently owns the
	// schedule row while it materialises a Job from it.
	SchedProcessing string = "processing"
)

// ScheduledJob is a cron-driven template that periodically materialises a
// Job of the same type. There is at most one ScheduledJob per Type.
type ScheduledJob struct {
	ID             int64  // opaque identifier, assigned at insertion
	Type           string // job type materialised on each fire
	CronExpression string // validated cron expression
	Status         string // one of Idle, SchedProcessing
	NextRun        int64  // millisecond Unix timestamp of the next fire
}
