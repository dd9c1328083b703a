package jobline

import (
	"testing"
	"time"
)

func TestParseCronRejectsGarbage(t *testing.T) {
	if _, err := parseCron("not a cron expression"); err == nil {
		t.Fatal("expected an error for a malformed expression")
	}
}

func TestNextFireAfterFiveField(t *testing.T) {
	ref := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	next, err := nextFireAfter("0 * * * *", ref)
	if err != nil {
		t.Fatalf("nextFireAfter failed with %v", err)
	}
	if !next.After(ref) {
		t.Fatalf("next fire %v is not after %v", next, ref)
	}
	if have, want := next.Minute(), 0; have != want {
		t.Fatalf("Minute = %d, want %d", have, want)
	}
}

func TestNextFireAfterWithSecondsPrefix(t *testing.T) {
	ref := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	next, err := nextFireAfter("*/5 * * * * *", ref)
	if err != nil {
		t.Fatalf("nextFireAfter failed with %v", err)
	}
	if next.Sub(ref) > 5*time.Second {
		t.Fatalf("next fire %v too far from %v", next, ref)
	}
}
