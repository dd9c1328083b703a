// Package mysqlstore is an alternate jobline.Store backend for
// deployments that already run MySQL and want the job queue to share it,
// rather than embedding a SQLite file. It implements the same schema and
// claim protocol as sqlitestore, over github.com/go-sql-driver/mysql.
package mysqlstore

import (
	mysqldriver "github.com/go-sql-driver/mysql"

	"github.com/jobline/jobline/internal/sqlstore"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS jobs (
		id BIGINT PRIMARY KEY AUTO_INCREMENT,
		type VARCHAR(255) NOT NULL,
		data TEXT NOT NULL,
		status VARCHAR(30) NOT NULL,
		created_at BIGINT NOT NULL,
		processing_at BIGINT,
		done_at BIGINT,
		failed_at BIGINT,
		error TEXT,
		INDEX ix_jobs_type_status (type, status),
		INDEX ix_jobs_status_processing_at (status, processing_at)
	)`,
	`CREATE TABLE IF NOT EXISTS scheduled_jobs (
		id BIGINT PRIMARY KEY AUTO_INCREMENT,
		type VARCHAR(255) NOT NULL UNIQUE,
		cron_expression VARCHAR(255) NOT NULL,
		status VARCHAR(30) NOT NULL,
		next_run BIGINT NOT NULL,
		INDEX ix_scheduled_jobs_status_next_run (status, next_run)
	)`,
}

// isDeadlockOrBusy mirrors the teacher's mysql/internal.IsDeadlock check:
// MySQL error 1213 is a deadlock, 1205 a lock-wait timeout. Both are worth
// a retry under the queue's single-writer-ish workload.
func isDeadlockOrBusy(err error) bool {
	me, ok := err.(*mysqldriver.MySQLError)
	if !ok {
		return false
	}
	return me.Number == 1213 || me.Number == 1205
}

// New opens the MySQL database described by dsn (see
// github.com/go-sql-driver/mysql's DSN format) and applies the
// jobs/scheduled_jobs schema. The target database must already exist.
func New(dsn string) (*sqlstore.Store, error) {
	return sqlstore.Open(sqlstore.Dialect{
		DriverName:  "mysql",
		Schema:      schema,
		IsRetryable: isDeadlockOrBusy,
	}, dsn)
}
