package notifier

import (
	"context"
	"strconv"
	"strings"
	"time"
)

// CommandHandler is called when a user command is received.
type CommandHandler func(ctx context.Context, command string) string

// telegramUpdate represents a Telegram update from long polling.
type telegramUpdate struct {
	UpdateID int `json:"update_id"`
	Message  *struct {
		Text string `json:"text"`
	} `json:"message"`
}

type updatesResponse struct {
	OK     bool             `json:"ok"`
	Result []telegramUpdate `json:"result"`
}

// StartPolling long-polls for chat commands and replies with handler's answer.
// Blocks until ctx is cancelled.
func (t *TelegramNotifier) StartPolling(ctx context.Context, handler CommandHandler) {
	t.poll(ctx, handler, 30, 5*time.Second)
}

func (t *TelegramNotifier) poll(ctx context.Context, handler CommandHandler, timeoutSec int, retryWait time.Duration) {
	offset := 0
	wait := func() bool {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(retryWait):
			return true
		}
	}

	for ctx.Err() == nil {
		var result updatesResponse
		resp, err := t.client.R().
			SetContext(ctx).
			SetPathParam("token", t.token).
			SetQueryParam("offset", strconv.Itoa(offset)).
			SetQueryParam("timeout", strconv.Itoa(timeoutSec)).
			SetResult(&result).
			ForceContentType("application/json").
			Get("/bot{token}/getUpdates")
		if err != nil || resp.IsError() {
			if ctx.Err() != nil {
				break
			}
			if err != nil {
				t.log.Warn().Err(err).Msg("polling request failed")
			} else {
				t.log.Warn().Int("status", resp.StatusCode()).Msg("polling request rejected")
			}
			if !wait() {
				break
			}
			continue
		}

		for _, update := range result.Result {
			offset = update.UpdateID + 1
			if update.Message == nil || update.Message.Text == "" {
				continue
			}
			text := strings.TrimSpace(update.Message.Text)
			t.log.Info().Str("command", text).Msg("received command")
			if reply := handler(ctx, text); reply != "" {
				if err := t.Send(ctx, reply); err != nil {
					t.log.Error().Err(err).Msg("send reply")
				}
			}
		}
	}
	t.log.Info().Msg("telegram polling stopped")
}
