// Package notifier pushes forecast and training reports to a chat and answers chat commands.
package notifier

import "context"

// Notifier delivers a formatted message.
type Notifier interface {
	Send(ctx context.Context, text string) error
}

// NoopNotifier discards messages. Used when no chat is configured.
type NoopNotifier struct{}

func (NoopNotifier) Send(context.Context, string) error { return nil }
