package jobline

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser accepts the standard 5-field form (minute hour dom month dow)
// optionally prefixed with a seconds field, matching the grammar described
// for Schedule.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// parseCron validates expr and returns a schedule that can compute the
// next fire time after any reference instant. Invalid expressions are
// reported as ErrInvalidCron.
func parseCron(expr string) (cron.Schedule, error) {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidCron, expr, err)
	}
	return sched, nil
}

// nextFireAfter returns the next millisecond-resolution fire time for expr
// strictly after ref.
func nextFireAfter(expr string, ref time.Time) (time.Time, error) {
	sched, err := parseCron(expr)
	if err != nil {
		return time.Time{}, err
	}
	return sched.Next(ref), nil
}
