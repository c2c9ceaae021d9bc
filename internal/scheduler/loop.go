package scheduler

import (
	"context"
	"time"

	"PriceForecaster/internal/logger"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
)

// Loop runs Job back to back, starting a new run every Interval.
// The wait after a run is max(0, Interval - run duration). A failed run is logged
// and does not stop the loop. With Interval <= 0 the job runs exactly once.
type Loop struct {
	Interval time.Duration
	Job      Job

	log   zerolog.Logger
	now   func() time.Time
	after func(time.Duration) <-chan time.Time
}

func NewLoop(interval time.Duration, job Job, log zerolog.Logger) *Loop {
	return &Loop{
		Interval: interval,
		Job:      job,
		log:      logger.Component(log, "retrain-loop"),
		now:      time.Now,
		after:    time.After,
	}
}

// Run blocks until ctx is cancelled. Cancellation is observed between runs;
// a run in progress always completes. In single-shot mode the job's error is returned.
func (l *Loop) Run(ctx context.Context) error {
	runCtx := context.WithoutCancel(ctx)
	if l.Interval <= 0 {
		return l.Job(runCtx)
	}

	l.log.Info().Dur("interval", l.Interval).Msg("auto-training enabled")
	for {
		start := l.now()
		if err := l.Job(runCtx); err != nil {
			l.log.Error().Err(err).Msg("training run failed, will retry next interval")
		}
		if ctx.Err() != nil {
			l.log.Info().Msg("auto-training stopped")
			return nil
		}

		wait := max(0, l.Interval-l.now().Sub(start))
		l.log.Info().
			Dur("sleep", wait).
			Str("next_run", humanize.Time(l.now().Add(wait))).
			Msg("sleeping until next run")
		select {
		case <-ctx.Done():
			l.log.Info().Msg("auto-training stopped")
			return nil
		case <-l.after(wait):
		}
	}
}
