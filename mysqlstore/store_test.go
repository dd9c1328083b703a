package mysqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"

	mysqldriver "github.com/go-sql-driver/mysql"

	"github.com/jobline/jobline"
	"github.com/jobline/jobline/internal/sqlstore"
)

const testDSN = "root@tcp(127.0.0.1:3306)/jobline_test?loc=UTC&parseTime=true"

func TestMain(m *testing.M) {
	cfg, err := mysqldriver.ParseDSN(testDSN)
	if err != nil {
		panic(fmt.Sprintf("unable to parse dsn %q: %v", testDSN, err))
	}
	dbname := cfg.DBName
	cfg.DBName = ""
	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		panic(fmt.Sprintf("unable to open %q: %v", cfg.FormatDSN(), err))
	}
	if _, err := db.Exec(fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s`", dbname)); err != nil {
		db.Close()
		panic(fmt.Sprintf("unable to create database %q: %v", dbname, err))
	}
	db.Close()

	code := m.Run()

	db, err = sql.Open("mysql", cfg.FormatDSN())
	if err == nil {
		db.Exec(fmt.Sprintf("DROP DATABASE IF EXISTS `%s`", dbname))
		db.Close()
	}
	os.Exit(code)
}

func newTestStore(t *testing.T) *sqlstore.Store {
	t.Helper()
	st, err := New(testDSN)
	if err != nil {
		t.Skipf("mysql not available at %s: %v", testDSN, err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestMySQLStoreCreateAndGetJob(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	job := &jobline.Job{Type: "t", Data: `{"a":1}`, Status: jobline.Pending, CreatedAt: 1000}
	if err := st.CreateJob(ctx, job); err != nil {
		t.Fatalf("CreateJob failed with %v", err)
	}
	if job.ID == 0 {
		t.Fatal("expected a non-zero id")
	}

	got, err := st.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob failed with %v", err)
	}
	if have, want := got.Data, job.Data; have != want {
		t.Fatalf("Data = %q, want %q", have, want)
	}
}

func TestMySQLStoreClaimJobIsExclusive(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		job := &jobline.Job{Type: "claimtest", Data: "{}", Status: jobline.Pending, CreatedAt: int64(i)}
		if err := st.CreateJob(ctx, job); err != nil {
			t.Fatalf("CreateJob failed with %v", err)
		}
	}

	seen := make(map[int64]bool)
	for i := 0; i < 5; i++ {
		job, err := st.ClaimJob(ctx, "claimtest")
		if err != nil {
			t.Fatalf("ClaimJob failed with %v", err)
		}
		if job == nil {
			t.Fatalf("expected a job on claim %d", i)
		}
		if seen[job.ID] {
			t.Fatalf("job %d claimed twice", job.ID)
		}
		seen[job.ID] = true
	}

	job, err := st.ClaimJob(ctx, "claimtest")
	if err != nil {
		t.Fatalf("ClaimJob failed with %v", err)
	}
	if job != nil {
		t.Fatalf("expected no more jobs, got %d", job.ID)
	}
}

func TestMySQLStoreUpsertScheduleKeepsID(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	id1, err := st.UpsertSchedule(ctx, &jobline.ScheduledJob{Type: "sched", CronExpression: "0 * * * *", Status: jobline.Idle, NextRun: 10})
	if err != nil {
		t.Fatalf("UpsertSchedule failed with %v", err)
	}
	id2, err := st.UpsertSchedule(ctx, &jobline.ScheduledJob{Type: "sched", CronExpression: "*/5 * * * *", Status: jobline.Idle, NextRun: 20})
	if err != nil {
		t.Fatalf("UpsertSchedule failed with %v", err)
	}
	if id1 != id2 {
		t.Fatalf("id changed: %d != %d", id1, id2)
	}

	sc, err := st.GetSchedule(ctx, id1)
	if err != nil {
		t.Fatalf("GetSchedule failed with %v", err)
	}
	if have, want := sc.CronExpression, "*/5 * * * *"; have != want {
		t.Fatalf("CronExpression = %q, want %q", have, want)
	}
}

func TestMySQLStoreDeleteTerminalJobs(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	job := &jobline.Job{Type: "reaptest", Data: "{}", Status: jobline.Pending, CreatedAt: 1}
	if err := st.CreateJob(ctx, job); err != nil {
		t.Fatalf("CreateJob failed with %v", err)
	}
	claimed, err := st.ClaimJob(ctx, "reaptest")
	if err != nil {
		t.Fatalf("ClaimJob failed with %v", err)
	}
	claimed.Status = jobline.Done
	claimed.DoneAt = 5000
	if err := st.UpdateJob(ctx, claimed); err != nil {
		t.Fatalf("UpdateJob failed with %v", err)
	}

	n, err := st.DeleteTerminalJobs(ctx, jobline.Done, 10000)
	if err != nil {
		t.Fatalf("DeleteTerminalJobs failed with %v", err)
	}
	if have, want := n, 1; have != want {
		t.Fatalf("deleted = %d, want %d", have, want)
	}
	if _, err := st.GetJob(ctx, job.ID); err != jobline.ErrNotFound {
		t.Fatalf("GetJob after delete = %v, want %v", err, jobline.ErrNotFound)
	}
}
