package runtime

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Schedule yields successive run times.
type Schedule interface {
	Next(time.Time) time.Time
}

// cronSchedule wraps cron.Schedule.
type cronSchedule struct {
	schedule cron.Schedule
}

func (cs *cronSchedule) Next(t time.Time) time.Time {
	return cs.schedule.Next(t)
}

// ParseSchedule parses a schedule string into a Schedule.
// Supports:
//   - Cron expressions: "0 30 3 * * *" (6-field) or "30 3 * * *" (5-field)
//   - Go duration strings: "15m", "12h", "1h30m"
func ParseSchedule(schedule string) (Schedule, error) {
	if schedule == "" {
		return nil, fmt.Errorf("schedule string is empty")
	}

	// Cron first, with an optional seconds field.
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	cronSched, err := parser.Parse(schedule)
	if err == nil {
		return &cronSchedule{schedule: cronSched}, nil
	}

	duration, err := time.ParseDuration(schedule)
	if err != nil {
		return nil, fmt.Errorf("failed to parse schedule as cron expression or duration: %w", err)
	}

	return &cronSchedule{schedule: cron.ConstantDelaySchedule{Delay: duration}}, nil
}
