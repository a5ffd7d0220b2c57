// Package notify delivers out-of-band messages to channel accounts.
// Delivery is fire-and-forget; correctness never depends on it.
package notify

import (
	"context"
	"log/slog"
)

// Message describes a notification payload addressed to a channel account.
type Message struct {
	ChannelID string
	Body      string
}

// Notifier delivers notifications to downstream systems.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier is a stub implementation that writes notifications to the
// logger. Used in tests and when no bot token is configured.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier stub.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification", "channel_id", message.ChannelID, "body", message.Body)
	return nil
}
