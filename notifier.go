package regionpulse

import (
	"context"
	"log/slog"
	"time"

	"github.com/jpalmerr/regionpulse/internal/notify"
)

// Notifier is told when the main endpoint transitions from offline to
// online. It is called in the background with a bounded context; errors are
// logged and otherwise ignored.
type Notifier interface {
	NotifyRecovery(ctx context.Context, title, message string) error
}

// NotifierFunc adapts an ordinary function to the [Notifier] interface.
type NotifierFunc func(ctx context.Context, title, message string) error

// NotifyRecovery calls f.
func (f NotifierFunc) NotifyRecovery(ctx context.Context, title, message string) error {
	return f(ctx, title, message)
}

// NewLogNotifier returns a [Notifier] that writes recoveries to logger at
// Info level.
func NewLogNotifier(logger *slog.Logger) Notifier {
	return notify.LogNotifier{Logger: logger}
}

// NewWebhookNotifier returns a [Notifier] that POSTs a JSON body
// {"title","message","sent_at"} to url.
//
// After failureThreshold consecutive failures the webhook is skipped until
// breakerDelay has elapsed. Zero values use defaults of 3 and one minute.
func NewWebhookNotifier(url string, failureThreshold uint, breakerDelay time.Duration, logger *slog.Logger) Notifier {
	return notify.NewWebhook(url, logger, notify.WithBreaker(failureThreshold, breakerDelay))
}

// NewCommandNotifier returns a [Notifier] that runs name with args followed
// by the title and message. NewCommandNotifier("notify-send") raises a
// desktop notification on most Linux systems.
func NewCommandNotifier(name string, args ...string) Notifier {
	return notify.Command{Name: name, Args: args}
}
