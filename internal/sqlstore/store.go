// Package sqlstore implements jobline.Store once, over plain
// database/sql, for any driver that speaks parameterised "?" placeholders
// (SQLite and MySQL both do). sqlitestore and mysqlstore are thin
// constructors around this shared implementation, supplying only the
// driver name, DSN and a Dialect (schema DDL, retry predicate and
// connection cap).
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/cenkalti/backoff"

	"github.com/jobline/jobline"
)

const (
	jobsTable      = "jobs"
	scheduledTable = "scheduled_jobs"
)

// Dialect supplies the handful of details that differ between supported
// SQL engines: the driver name to open, the DDL to create the schema, and
// how aggressively to retry a write that failed because the database was
// momentarily busy (SQLite's single-writer lock, primarily).
type Dialect struct {
	DriverName  string
	Schema      []string // executed in order, each idempotent
	IsRetryable func(error) bool
	// MaxOpenConns caps the connection pool. SQLite's single-writer
	// model needs exactly one connection (a second connection against an
	// in-memory DSN would otherwise see an empty database); MySQL wants
	// the driver's normal pooling, so it leaves this at zero (unlimited).
	MaxOpenConns int
}

// Store is a jobline.Store backed by database/sql.
type Store struct {
	db      *sql.DB
	builder sq.StatementBuilderType
	retry   func(error) bool
}

// Open opens dsn with the given dialect, applies its schema, and returns
// a ready-to-use Store.
func Open(dialect Dialect, dsn string) (*Store, error) {
	db, err := sql.Open(dialect.DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open: %w", err)
	}
	if dialect.MaxOpenConns > 0 {
		db.SetMaxOpenConns(dialect.MaxOpenConns)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlstore: ping: %w", err)
	}
	for _, stmt := range dialect.Schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlstore: applying schema: %w", err)
		}
	}
	retry := dialect.IsRetryable
	if retry == nil {
		retry = func(error) bool { return false }
	}
	return &Store{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Question),
		retry:   retry,
	}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// runWithRetry retries fn with exponential backoff while s.retry(err) is
// true, mirroring the MySQL backoff-and-retry helper this package is
// grounded on.
func (s *Store) runWithRetry(fn func() error) error {
	b := backoff.NewExponentialBackOff()
	b.MaxInterval = 2 * time.Second
	b.MaxElapsedTime = 10 * time.Second
	return backoff.Retry(func() error {
		err := fn()
		if err != nil && !s.retry(err) {
			return backoff.Permanent(err)
		}
		return err
	}, b)
}

// runInTx runs fn inside a transaction, committing on success and rolling
// back otherwise. fn must use only the supplied *sql.Tx for data access.
func (s *Store) runInTx(ctx context.Context, fn func(context.Context, *sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback()
			panic(r)
		}
	}()
	if err = fn(ctx, tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// -- Jobs --

func (s *Store) CreateJob(ctx context.Context, job *jobline.Job) error {
	return s.runWithRetry(func() error {
		return s.runInTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
			return s.insertJob(ctx, tx, job)
		})
	})
}

func (s *Store) CreateJobs(ctx context.Context, jobs []*jobline.Job) error {
	return s.runWithRetry(func() error {
		return s.runInTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
			for _, job := range jobs {
				if err := s.insertJob(ctx, tx, job); err != nil {
					return err
				}
			}
			return nil
		})
	})
}

func (s *Store) insertJob(ctx context.Context, tx *sql.Tx, job *jobline.Job) error {
	query, args, err := s.builder.Insert(jobsTable).
		Columns("type", "data", "status", "created_at").
		Values(job.Type, job.Data, job.Status, job.CreatedAt).
		ToSql()
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	job.ID = id
	return nil
}

// ClaimJob implements the claim protocol: select the oldest pending
// candidate, conditionally update it, and verify exactly one row was
// touched before returning it.
func (s *Store) ClaimJob(ctx context.Context, jobType string) (*jobline.Job, error) {
	var claimed *jobline.Job
	err := s.runWithRetry(func() error {
		return s.runInTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
			claimed = nil

			selQuery, selArgs, err := s.builder.Select("id").From(jobsTable).
				Where(sq.Eq{"type": jobType, "status": jobline.Pending}).
				OrderBy("created_at ASC", "id ASC").
				Limit(1).
				ToSql()
			if err != nil {
				return err
			}
			var id int64
			err = tx.QueryRowContext(ctx, selQuery, selArgs...).Scan(&id)
			if err == sql.ErrNoRows {
				return nil
			}
			if err != nil {
				return err
			}

			now := nowMillis()
			updQuery, updArgs, err := s.builder.Update(jobsTable).
				Set("status", jobline.Processing).
				Set("processing_at", now).
				Where(sq.Eq{"id": id, "status": jobline.Pending}).
				ToSql()
			if err != nil {
				return err
			}
			res, err := tx.ExecContext(ctx, updQuery, updArgs...)
			if err != nil {
				return err
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if n == 0 {
				// Lost the race to another claimant; this tick finds
				// nothing.
				return nil
			}

			job, err := s.getJobTx(ctx, tx, id)
			if err != nil {
				return err
			}
			claimed = job
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (s *Store) UpdateJob(ctx context.Context, job *jobline.Job) error {
	return s.runWithRetry(func() error {
		query, args, err := s.builder.Update(jobsTable).
			Set("status", job.Status).
			Set("processing_at", nullableInt(job.ProcessingAt)).
			Set("done_at", nullableInt(job.DoneAt)).
			Set("failed_at", nullableInt(job.FailedAt)).
			Set("error", nullableString(job.Error)).
			Where(sq.Eq{"id": job.ID}).
			ToSql()
		if err != nil {
			return err
		}
		_, err = s.db.ExecContext(ctx, query, args...)
		return err
	})
}

func (s *Store) GetJob(ctx context.Context, id int64) (*jobline.Job, error) {
	return s.getJobTx(ctx, s.db, id)
}

// queryRower is satisfied by both *sql.DB and *sql.Tx.
type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func (s *Store) getJobTx(ctx context.Context, q queryRower, id int64) (*jobline.Job, error) {
	query, args, err := s.builder.Select(
		"id", "type", "data", "status", "created_at", "processing_at", "done_at", "failed_at", "error",
	).From(jobsTable).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, err
	}
	row := q.QueryRowContext(ctx, query, args...)
	return scanJob(row)
}

func scanJob(row *sql.Row) (*jobline.Job, error) {
	var (
		j                              jobline.Job
		processingAt, doneAt, failedAt sql.NullInt64
		errField                       sql.NullString
	)
	err := row.Scan(&j.ID, &j.Type, &j.Data, &j.Status, &j.CreatedAt, &processingAt, &doneAt, &failedAt, &errField)
	if err == sql.ErrNoRows {
		return nil, jobline.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	j.ProcessingAt = processingAt.Int64
	j.DoneAt = doneAt.Int64
	j.FailedAt = failedAt.Int64
	j.Error = errField.String
	return &j, nil
}

func (s *Store) CountJobs(ctx context.Context, filter jobline.JobFilter) (int, error) {
	qb := s.builder.Select("COUNT(*)").From(jobsTable)
	if filter.Type != "" {
		qb = qb.Where(sq.Eq{"type": filter.Type})
	}
	if filter.Status != "" {
		qb = qb.Where(sq.Eq{"status": filter.Status})
	}
	query, args, err := qb.ToSql()
	if err != nil {
		return 0, err
	}
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Store) JobTypes(ctx context.Context) ([]string, error) {
	query, args, err := s.builder.Select("DISTINCT type").From(jobsTable).OrderBy("type ASC").ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var types []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	return types, rows.Err()
}

func (s *Store) RequeueTimedOut(ctx context.Context, olderThan int64) (int, error) {
	var n int64
	err := s.runWithRetry(func() error {
		query, args, err := s.builder.Update(jobsTable).
			Set("status", jobline.Pending).
			Set("processing_at", nil).
			Where(sq.Eq{"status": jobline.Processing}).
			Where(sq.Lt{"processing_at": olderThan}).
			ToSql()
		if err != nil {
			return err
		}
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	return int(n), err
}

func (s *Store) DeleteTerminalJobs(ctx context.Context, status string, olderThan int64) (int, error) {
	column := "done_at"
	if status == jobline.Failed {
		column = "failed_at"
	}
	var n int64
	err := s.runWithRetry(func() error {
		query, args, err := s.builder.Delete(jobsTable).
			Where(sq.Eq{"status": status}).
			Where(sq.Lt{column: olderThan}).
			ToSql()
		if err != nil {
			return err
		}
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	return int(n), err
}

// -- Scheduled jobs --

func (s *Store) UpsertSchedule(ctx context.Context, sched *jobline.ScheduledJob) (int64, error) {
	var id int64
	err := s.runWithRetry(func() error {
		return s.runInTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
			selQuery, selArgs, err := s.builder.Select("id").From(scheduledTable).
				Where(sq.Eq{"type": sched.Type}).ToSql()
			if err != nil {
				return err
			}
			err = tx.QueryRowContext(ctx, selQuery, selArgs...).Scan(&id)
			if err != nil && err != sql.ErrNoRows {
				return err
			}
			if err == nil {
				updQuery, updArgs, err := s.builder.Update(scheduledTable).
					Set("cron_expression", sched.CronExpression).
					Set("next_run", sched.NextRun).
					Where(sq.Eq{"id": id}).
					ToSql()
				if err != nil {
					return err
				}
				_, err = tx.ExecContext(ctx, updQuery, updArgs...)
				return err
			}

			insQuery, insArgs, err := s.builder.Insert(scheduledTable).
				Columns("type", "cron_expression", "status", "next_run").
				Values(sched.Type, sched.CronExpression, jobline.Idle, sched.NextRun).
				ToSql()
			if err != nil {
				return err
			}
			res, err := tx.ExecContext(ctx, insQuery, insArgs...)
			if err != nil {
				return err
			}
			id, err = res.LastInsertId()
			return err
		})
	})
	return id, err
}

func (s *Store) ListSchedules(ctx context.Context) ([]*jobline.ScheduledJob, error) {
	query, args, err := s.builder.Select("id", "type", "cron_expression", "status", "next_run").
		From(scheduledTable).OrderBy("id ASC").ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*jobline.ScheduledJob
	for rows.Next() {
		var sc jobline.ScheduledJob
		if err := rows.Scan(&sc.ID, &sc.Type, &sc.CronExpression, &sc.Status, &sc.NextRun); err != nil {
			return nil, err
		}
		out = append(out, &sc)
	}
	return out, rows.Err()
}

func (s *Store) GetSchedule(ctx context.Context, id int64) (*jobline.ScheduledJob, error) {
	query, args, err := s.builder.Select("id", "type", "cron_expression", "status", "next_run").
		From(scheduledTable).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, err
	}
	var sc jobline.ScheduledJob
	err = s.db.QueryRowContext(ctx, query, args...).
		Scan(&sc.ID, &sc.Type, &sc.CronExpression, &sc.Status, &sc.NextRun)
	if err == sql.ErrNoRows {
		return nil, jobline.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sc, nil
}

func (s *Store) ClaimDueSchedule(ctx context.Context, now int64) (*jobline.ScheduledJob, error) {
	var claimed *jobline.ScheduledJob
	err := s.runWithRetry(func() error {
		return s.runInTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
			claimed = nil

			selQuery, selArgs, err := s.builder.Select("id").From(scheduledTable).
				Where(sq.Eq{"status": jobline.Idle}).
				Where(sq.LtOrEq{"next_run": now}).
				OrderBy("next_run ASC").
				Limit(1).
				ToSql()
			if err != nil {
				return err
			}
			var id int64
			err = tx.QueryRowContext(ctx, selQuery, selArgs...).Scan(&id)
			if err == sql.ErrNoRows {
				return nil
			}
			if err != nil {
				return err
			}

			updQuery, updArgs, err := s.builder.Update(scheduledTable).
				Set("status", jobline.SchedProcessing).
				Where(sq.Eq{"id": id, "status": jobline.Idle}).
				ToSql()
			if err != nil {
				return err
			}
			res, err := tx.ExecContext(ctx, updQuery, updArgs...)
			if err != nil {
				return err
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if n == 0 {
				return nil
			}

			selQuery2, selArgs2, err := s.builder.Select("id", "type", "cron_expression", "status", "next_run").
				From(scheduledTable).Where(sq.Eq{"id": id}).ToSql()
			if err != nil {
				return err
			}
			var sc jobline.ScheduledJob
			if err := tx.QueryRowContext(ctx, selQuery2, selArgs2...).
				Scan(&sc.ID, &sc.Type, &sc.CronExpression, &sc.Status, &sc.NextRun); err != nil {
				return err
			}
			claimed = &sc
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (s *Store) MarkScheduleIdle(ctx context.Context, id int64, nextRun int64) error {
	return s.runWithRetry(func() error {
		query, args, err := s.builder.Update(scheduledTable).
			Set("status", jobline.Idle).
			Set("next_run", nextRun).
			Where(sq.Eq{"id": id}).
			ToSql()
		if err != nil {
			return err
		}
		_, err = s.db.ExecContext(ctx, query, args...)
		return err
	})
}

func nullableInt(v int64) interface{} {
	if v == 0 {
		return nil
	}
	return v
}

func nullableString(v string) interface{} {
	if v == "" {
		return nil
	}
	return v
}

func nowMillis() int64 {
	return time.Now().UnixNano() / int64(time.Millisecond)
}
