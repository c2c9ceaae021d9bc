package main

import (
	"context"
	"fmt"
	"strings"

	"PriceForecaster/internal/notifier"
	"PriceForecaster/internal/server"
)

// commandHandler answers chat commands with the same predictor the HTTP server uses.
func commandHandler(a *app, f server.Forecaster) notifier.CommandHandler {
	return func(ctx context.Context, command string) string {
		fields := strings.Fields(command)
		if len(fields) == 0 {
			return ""
		}
		// Group chats address commands as /cmd@botname.
		name, _, _ := strings.Cut(fields[0], "@")

		switch name {
		case "/predict":
			symbol := a.cfg.DataSource.Symbol
			if len(fields) > 1 {
				symbol = strings.ToUpper(fields[1])
			}
			return notifier.FormatForecast(f.Predict(ctx, symbol))
		case "/status":
			return fmt.Sprintf("Symbol: <b>%s</b>\nTraining stage: %s", a.cfg.DataSource.Symbol, a.trainer().Stage())
		case "/help", "/start":
			return notifier.HelpText
		default:
			return "Unknown command. Send /help for the list."
		}
	}
}
