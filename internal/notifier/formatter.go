package notifier

import (
	"fmt"
	"html"
	"strings"
	"time"

	"PriceForecaster/internal/model"
	"PriceForecaster/internal/pipeline"

	"github.com/dustin/go-humanize"
)

// FormatForecast renders a forecast result, successful or not, as a chat message.
func FormatForecast(res model.ForecastResult) string {
	var b strings.Builder
	symbol := html.EscapeString(res.Symbol)

	s, ok := pipeline.Summarize(res)
	if !ok {
		fmt.Fprintf(&b, "⚠️ <b>%s forecast failed</b>\n%s", symbol, html.EscapeString(res.Error))
		return b.String()
	}

	icon := "📈"
	if s.Direction == model.Bearish {
		icon = "📉"
	}
	f := s.Forecast
	fmt.Fprintf(&b, "%s <b>%s</b> | %s\n\n", icon, symbol, f.Date.Format(model.DateLayout))
	fmt.Fprintf(&b, "Last close: %.2f (%s)\n", s.LastClose, s.LastDate.Format(model.DateLayout))
	fmt.Fprintf(&b, "Open: %.2f | High: %.2f\n", f.Open, f.High)
	fmt.Fprintf(&b, "Low: %.2f | Close: %.2f\n", f.Low, f.Close)
	fmt.Fprintf(&b, "Volume: %s\n", humanize.Comma(res.Predicted.Volume))
	fmt.Fprintf(&b, "Change: %+.2f (%+.2f%%) <b>%s</b>\n", s.Change, s.ChangePercent, s.Direction)
	fmt.Fprintf(&b, "\nModel: <code>%s</code>", html.EscapeString(res.ModelVersion))
	return b.String()
}

// FormatTrainingRun renders the outcome of a training run.
func FormatTrainingRun(symbol string, sum *pipeline.RunSummary, err error) string {
	var b strings.Builder
	if err != nil {
		fmt.Fprintf(&b, "❌ <b>%s training failed</b>\n%s", html.EscapeString(symbol), html.EscapeString(err.Error()))
		return b.String()
	}
	fmt.Fprintf(&b, "✅ <b>%s model published</b>\n\n", html.EscapeString(sum.Symbol))
	fmt.Fprintf(&b, "Run: <code>%s</code>\n", sum.RunID)
	fmt.Fprintf(&b, "Data: %s to %s (%d rows)\n",
		sum.FirstDate.Format(model.DateLayout), sum.LastDate.Format(model.DateLayout), sum.Rows)
	fmt.Fprintf(&b, "Samples: %d train / %d validation\n", sum.TrainSamples, sum.ValSamples)
	fmt.Fprintf(&b, "Loss: %.6f train / %.6f validation\n", sum.TrainLoss, sum.ValLoss)
	fmt.Fprintf(&b, "Took %s", sum.Duration.Round(time.Millisecond))
	if len(sum.Degenerate) > 0 {
		fmt.Fprintf(&b, "\nConstant features: %s", strings.Join(sum.Degenerate, ", "))
	}
	return b.String()
}

// HelpText lists the chat commands.
const HelpText = `<b>Commands</b>
/predict [SYMBOL] - next-session forecast
/status - training state
/help - this message`
