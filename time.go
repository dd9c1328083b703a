package jobline

import "time"

// nowMillis returns the current time as a millisecond-resolution Unix
// timestamp, the resolution used throughout the jobs and scheduled_jobs
// tables.
func nowMillis() int64 {
	return time.Now().UnixNano() / int64(time.Millisecond)
}
