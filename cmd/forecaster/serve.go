package main

import (
	"PriceForecaster/internal/server"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var retrain bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve forecasts over HTTP, optionally retraining in the background",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.Close()

			predictor := a.predictor()
			srv := server.New(server.Config{
				Addr:            a.cfg.Server.Addr(),
				AllowedOrigins:  a.cfg.Server.AllowedOrigins,
				DefaultSymbol:   a.cfg.DataSource.Symbol,
				MetricsPath:     a.cfg.Metrics.Path,
				ReadTimeout:     a.cfg.Server.ReadTimeout,
				WriteTimeout:    a.cfg.Server.WriteTimeout,
				ShutdownTimeout: a.cfg.Server.ShutdownTimeout,
			}, predictor, a.metrics, a.log)

			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error { return srv.Run(ctx) })
			if retrain && retrainEnabled(a) {
				g.Go(func() error { return runTraining(ctx, a, true) })
			} else if retrain {
				a.log.Warn().Msg("--retrain ignored: set training.interval_hours or training.retrain_cron")
			}

			if a.telegram != nil && a.cfg.Telegram.Polling {
				g.Go(func() error {
					a.telegram.StartPolling(ctx, commandHandler(a, predictor))
					return nil
				})
			}

			a.log.Info().Msg("forecaster is running. Press Ctrl+C to stop.")
			err = g.Wait()
			a.log.Info().Msg("forecaster stopped")
			return err
		},
	}
	cmd.Flags().BoolVar(&retrain, "retrain", false, "run the configured retrain schedule alongside the server")
	return cmd
}
