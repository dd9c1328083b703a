// Command jobline-demo exercises the jobline library end to end: it
// starts a queue, schedules a recurring job, runs a worker against it,
// and periodically logs stats. It exists purely to drive the library
// manually; it is not part of jobline's API contract.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jobline/jobline"
	"github.com/jobline/jobline/sqlitestore"
)

func main() {
	var (
		dbpath      = flag.String("db", "", "path to a SQLite database file; empty uses an in-memory store")
		cronExpr    = flag.String("cron", "*/5 * * * * *", "cron expression for the recurring demo job (seconds optional)")
		runTime     = flag.Duration("run-time", 200*time.Millisecond, "simulated handler run time")
		failureRate = flag.Float64("failure-rate", 0.1, "fraction of jobs that the demo handler fails on purpose")
		timeout     = flag.Duration("timeout", 2*time.Second, "processing timeout before a job is requeued")
		logInterval = flag.Duration("log-interval", 1*time.Second, "interval between stats log lines")
	)
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lshortfile)

	var opts []jobline.Option
	if *dbpath != "" {
		store, err := sqlitestore.New(*dbpath)
		if err != nil {
			log.Fatal(err)
		}
		opts = append(opts, jobline.WithStore(store))
	}
	opts = append(opts,
		jobline.WithTimeout(*timeout),
		jobline.WithHooks(&jobline.Hooks{
			OnFailed: func(job *jobline.Job, err error) {
				log.Printf("job %d failed: %v", job.ID, err)
			},
		}),
	)

	q := jobline.New(opts...)
	defer q.Close()

	ctx := context.Background()
	if _, err := q.Schedule(ctx, "demo", *cronExpr); err != nil {
		log.Fatal(err)
	}

	handler := func(ctx context.Context, job *jobline.Job) error {
		time.Sleep(*runTime)
		if rand.Float64() < *failureRate {
			return fmt.Errorf("simulated failure")
		}
		return nil
	}
	w := jobline.NewWorker(q, "demo", handler)
	w.Start()
	defer w.Stop()

	ticker := time.NewTicker(*logInterval)
	defer ticker.Stop()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-ticker.C:
			pending, _ := q.CountJobs(ctx, jobline.JobFilter{Status: jobline.Pending})
			done, _ := q.CountJobs(ctx, jobline.JobFilter{Status: jobline.Done})
			failed, _ := q.CountJobs(ctx, jobline.JobFilter{Status: jobline.Failed})
			log.Printf("pending=%d done=%d failed=%d", pending, done, failed)
		case <-sigc:
			return
		}
	}
}
