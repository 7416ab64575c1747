package runtime

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/hearthlabs/hearth/profiler"
)

// refreshTimeout bounds one full refresh sweep across all users.
const refreshTimeout = 10 * time.Minute

// ProfileJob rebuilds every user's preference profile on a schedule.
type ProfileJob struct {
	profiler *profiler.Profiler
	schedule Schedule
	spec     string
	logger   zerolog.Logger
}

// NewProfileJob parses the schedule string (cron expression or Go duration)
// and returns the job. Callers skip construction entirely when the schedule
// is empty in config.
func NewProfileJob(p *profiler.Profiler, spec string, logger zerolog.Logger) (*ProfileJob, error) {
	schedule, err := ParseSchedule(spec)
	if err != nil {
		return nil, err
	}
	return &ProfileJob{
		profiler: p,
		schedule: schedule,
		spec:     spec,
		logger:   logger.With().Str("component", "profile_job").Logger(),
	}, nil
}

// Start runs refreshes at each scheduled time until ctx is cancelled.
func (j *ProfileJob) Start(ctx context.Context) {
	j.logger.Info().Str("schedule", j.spec).Msg("Starting profile refresh job")

	for {
		next := j.schedule.Next(time.Now())
		timer := time.NewTimer(time.Until(next))

		select {
		case <-ctx.Done():
			timer.Stop()
			j.logger.Info().Msg("Profile refresh job stopped: context cancelled")
			return
		case <-timer.C:
			j.refresh(ctx)
		}
	}
}

func (j *ProfileJob) refresh(ctx context.Context) {
	j.logger.Info().Msg("Running scheduled profile refresh")

	runCtx, cancel := context.WithTimeout(ctx, refreshTimeout)
	defer cancel()

	if err := j.profiler.RefreshAll(runCtx); err != nil {
		j.logger.Error().Err(err).Msg("Scheduled profile refresh failed")
		return
	}

	j.logger.Info().Msg("Scheduled profile refresh complete")
}
