// Package sqlitestore is the default persistent jobline.Store backend. It
// stores jobs and scheduled jobs in a local SQLite database file via the
// pure-Go modernc.org/sqlite driver, so a jobline.Queue can be embedded in
// a process with no external database dependency.
package sqlitestore

import (
	"strings"

	_ "modernc.org/sqlite"

	"github.com/jobline/jobline/internal/sqlstore"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS jobs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		type TEXT NOT NULL,
		data TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		processing_at INTEGER,
		done_at INTEGER,
		failed_at INTEGER,
		error TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS ix_jobs_type_status ON jobs (type, status)`,
	`CREATE INDEX IF NOT EXISTS ix_jobs_status_processing_at ON jobs (status, processing_at)`,
	`CREATE TABLE IF NOT EXISTS scheduled_jobs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		type TEXT NOT NULL UNIQUE,
		cron_expression TEXT NOT NULL,
		status TEXT NOT NULL,
		next_run INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS ix_scheduled_jobs_status_next_run ON scheduled_jobs (status, next_run)`,
}

func isBusy(err error) bool {
	return err != nil && strings.Contains(err.Error(), "SQLITE_BUSY")
}

// New opens (creating if necessary) the SQLite database at path and
// applies the jobs/scheduled_jobs schema. path may be a filesystem path
// or ":memory:" for a transient, process-local database.
func New(path string) (*sqlstore.Store, error) {
	dsn := path
	if !strings.Contains(dsn, "?") && dsn != ":memory:" {
		// busy_timeout makes SQLite wait up to 5s for a lock instead of
		// failing at once with SQLITE_BUSY; the single connection set
		// below and the store's retry handle the rest.
		dsn += "?_pragma=busy_timeout(5000)"
	}
	st, err := sqlstore.Open(sqlstore.Dialect{
		DriverName:   "sqlite",
		Schema:       schema,
		IsRetryable:  isBusy,
		MaxOpenConns: 1,
	}, dsn)
	if err != nil {
		return nil, err
	}
	return st, nil
}
