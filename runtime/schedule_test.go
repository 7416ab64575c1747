package runtime

import (
	"testing"
	"time"
)

func TestParseScheduleDuration(t *testing.T) {
	sched, err := ParseSchedule("12h")
	if err != nil {
		t.Fatalf("parse duration: %v", err)
	}

	base := time.Date(2025, 7, 14, 9, 0, 0, 0, time.UTC)
	next := sched.Next(base)
	if want := base.Add(12 * time.Hour); !next.Equal(want) {
		t.Errorf("expected %v, got %v", want, next)
	}
}

func TestParseScheduleCron(t *testing.T) {
	// Five fields: daily at 03:30.
	sched, err := ParseSchedule("30 3 * * *")
	if err != nil {
		t.Fatalf("parse cron: %v", err)
	}

	base := time.Date(2025, 7, 14, 9, 0, 0, 0, time.UTC)
	next := sched.Next(base)
	if next.Hour() != 3 || next.Minute() != 30 {
		t.Errorf("expected next run at 03:30, got %v", next)
	}
	if !next.After(base) {
		t.Errorf("next run must be after the base time, got %v", next)
	}
}

func TestParseScheduleCronWithSeconds(t *testing.T) {
	sched, err := ParseSchedule("0 30 3 * * *")
	if err != nil {
		t.Fatalf("parse 6-field cron: %v", err)
	}

	base := time.Date(2025, 7, 14, 9, 0, 0, 0, time.UTC)
	next := sched.Next(base)
	if next.Hour() != 3 || next.Minute() != 30 || next.Second() != 0 {
		t.Errorf("expected next run at 03:30:00, got %v", next)
	}
}

func TestParseScheduleInvalid(t *testing.T) {
	for _, spec := range []string{"", "not a schedule", "99 99 * * *"} {
		if _, err := ParseSchedule(spec); err == nil {
			t.Errorf("expected error for %q", spec)
		}
	}
}
