package sqlitestore

import (
	"context"
	"testing"

	"github.com/jobline/jobline"
	"github.com/jobline/jobline/internal/sqlstore"
)

func newTestStore(t *testing.T) *sqlstore.Store {
	t.Helper()
	st, err := New(":memory:")
	if err != nil {
		t.Fatalf("New failed with %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestSQLiteStoreCreateAndGetJob(t *testing.T) {
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

func TestSQLiteStoreClaimJobIsExclusive(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		job := &jobline.Job{Type: "t", Data: "{}", Status: jobline.Pending, CreatedAt: int64(i)}
		if err := st.CreateJob(ctx, job); err != nil {
			t.Fatalf("CreateJob failed with %v", err)
		}
	}

	seen := make(map[int64]bool)
	for i := 0; i < 5; i++ {
		job, err := st.ClaimJob(ctx, "t")
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

	job, err := st.ClaimJob(ctx, "t")
	if err != nil {
		t.Fatalf("ClaimJob failed with %v", err)
	}
	if job != nil {
		t.Fatalf("expected no more jobs, got %d", job.ID)
	}
}

func TestSQLiteStoreUpsertScheduleKeepsID(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	id1, err := st.UpsertSchedule(ctx, &jobline.ScheduledJob{Type: "s", CronExpression: "0 * * * *", Status: jobline.Idle, NextRun: 10})
	if err != nil {
		t.Fatalf("UpsertSchedule failed with %v", err)
	}
	id2, err := st.UpsertSchedule(ctx, &jobline.ScheduledJob{Type: "s", CronExpression: "*/5 * * * *", Status: jobline.Idle, NextRun: 20})
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

func TestSQLiteStoreDeleteTerminalJobs(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	job := &jobline.Job{Type: "t", Data: "{}", Status: jobline.Pending, CreatedAt: 1}
	if err := st.CreateJob(ctx, job); err != nil {
		t.Fatalf("CreateJob failed with %v", err)
	}
	claimed, err := st.ClaimJob(ctx, "t")
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
