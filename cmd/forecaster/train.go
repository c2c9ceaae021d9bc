package main

import (
	"context"
	"errors"

	"PriceForecaster/internal/notifier"
	"PriceForecaster/internal/pipeline"
	"PriceForecaster/internal/scheduler"

	"github.com/spf13/cobra"
)

func newTrainCmd(opts *rootOptions) *cobra.Command {
	var (
		interval   float64
		cronSpec   string
		runOnStart bool
	)
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train and publish a model, once or on a schedule",
		Long: `Train fetches the configured history, fits the scaler and the model, and publishes both.
With --interval it retrains every N hours; with --cron it retrains on a six-field cron spec.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			if cmd.Flags().Changed("interval") {
				a.cfg.Training.IntervalHours = interval
			}
			if cronSpec != "" {
				a.cfg.Training.RetrainCron = cronSpec
			}
			return runTraining(ctx, a, runOnStart)
		},
	}
	cmd.Flags().Float64Var(&interval, "interval", 0, "retrain every N hours (0 trains once)")
	cmd.Flags().StringVar(&cronSpec, "cron", "", "retrain on a cron spec with seconds, e.g. \"0 30 18 * * 1-5\"")
	cmd.Flags().BoolVar(&runOnStart, "run-on-start", false, "with --cron, also train immediately")
	return cmd
}

// runTraining blocks until ctx is done in scheduled modes; otherwise it returns the single run's error.
func runTraining(ctx context.Context, a *app, runOnStart bool) error {
	t := a.trainer()
	job := func(ctx context.Context) error {
		sum, err := t.Run(ctx)
		if !errors.Is(err, pipeline.ErrRunInProgress) {
			a.notify(ctx, notifier.FormatTrainingRun(a.cfg.DataSource.Symbol, sum, err))
		}
		return err
	}

	if spec := a.cfg.Training.RetrainCron; spec != "" {
		sched := scheduler.NewScheduler(a.log)
		if err := sched.Register(ctx, "retrain", spec, job); err != nil {
			return err
		}
		if runOnStart {
			a.log.Info().Msg("run-on-start enabled, training now")
			if err := job(context.WithoutCancel(ctx)); err != nil {
				a.log.Error().Err(err).Msg("initial training run failed")
			}
		}
		return sched.Run(ctx)
	}

	return scheduler.NewLoop(a.cfg.Training.Interval(), job, a.log).Run(ctx)
}

func retrainEnabled(a *app) bool {
	return a.cfg.Training.RetrainCron != "" || a.cfg.Training.Interval() > 0
}
