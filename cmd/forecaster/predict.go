package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"PriceForecaster/internal/calculator"
	"PriceForecaster/internal/model"
	"PriceForecaster/internal/notifier"
	"PriceForecaster/internal/pipeline"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newPredictCmd(opts *rootOptions) *cobra.Command {
	var asJSON, notify bool
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Forecast the next trading session from the last published model",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			res := a.predictor().Predict(ctx, a.cfg.DataSource.Symbol)
			if notify {
				a.notify(ctx, notifier.FormatForecast(res))
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(res); err != nil {
					return err
				}
			} else if res.OK() {
				printForecast(out, res, a.cfg.Pipeline.ShortWindow)
			}
			if !res.OK() {
				return errors.New(res.Error)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	cmd.Flags().BoolVar(&notify, "notify", false, "also send the result to the configured Telegram chat")
	return cmd
}

// printForecast writes a human summary. The moving average line appears when the
// result's trailing closes cover maWindow sessions.
func printForecast(w io.Writer, res model.ForecastResult, maWindow int) {
	s, ok := pipeline.Summarize(res)
	if !ok {
		return
	}
	f := s.Forecast
	fmt.Fprintf(w, "%s next session %s (model %s)\n", res.Symbol, f.Date.Format(model.DateLayout), res.ModelVersion)
	fmt.Fprintf(w, "  last close  %s on %s\n", price(s.LastClose), s.LastDate.Format(model.DateLayout))
	if ma, err := calculator.CalculateSMA(res.Historical.Prices, maWindow); err == nil {
		fmt.Fprintf(w, "  ma%-9d %s\n", maWindow, price(ma))
	}
	fmt.Fprintf(w, "  open        %s\n", price(f.Open))
	fmt.Fprintf(w, "  high        %s\n", price(f.High))
	fmt.Fprintf(w, "  low         %s\n", price(f.Low))
	fmt.Fprintf(w, "  close       %s\n", price(f.Close))
	fmt.Fprintf(w, "  volume      %s\n", humanize.Comma(res.Predicted.Volume))
	fmt.Fprintf(w, "  change      %+.2f (%+.2f%%) %s\n", s.Change, s.ChangePercent, s.Direction)
}

func price(v float64) string {
	return humanize.FormatFloat("#,###.##", v)
}
