// Package scheduler repeats training runs, either on a fixed interval or on a cron spec.
package scheduler

import (
	"context"
	"fmt"

	"PriceForecaster/internal/logger"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job is one unit of scheduled work, typically a training run.
type Job func(ctx context.Context) error

// Scheduler runs jobs on cron specs (six fields, seconds first).
// A job still running when its next tick fires is skipped for that tick.
type Scheduler struct {
	Cron *cron.Cron
	log  zerolog.Logger
}

// NewScheduler creates a new Scheduler.
func NewScheduler(log zerolog.Logger) *Scheduler {
	log = logger.Component(log, "scheduler")
	cl := cronLogger{log}
	return &Scheduler{
		Cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		log: log,
	}
}

// Register adds job under spec. The job context is detached from ctx cancellation
// so a stop request never interrupts a run halfway through.
func (s *Scheduler) Register(ctx context.Context, name, spec string, job Job) error {
	runCtx := context.WithoutCancel(ctx)
	_, err := s.Cron.AddFunc(spec, func() {
		s.log.Info().Str("job", name).Msg("running scheduled job")
		if err := job(runCtx); err != nil {
			s.log.Error().Err(err).Str("job", name).Msg("scheduled job failed")
		}
	})
	if err != nil {
		return fmt.Errorf("register %s task: %w", name, err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.log.Info().Int("jobs", len(s.Cron.Entries())).Msg("scheduler started")
}

// Stop stops the scheduler and waits for a running job to return.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.log.Info().Msg("scheduler stopped")
}

// Run starts the scheduler, blocks until ctx is done, then stops it.
func (s *Scheduler) Run(ctx context.Context) error {
	s.Start()
	<-ctx.Done()
	s.Stop()
	return nil
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
