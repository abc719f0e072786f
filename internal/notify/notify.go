// Package notify delivers main-endpoint recovery notifications.
//
// Every type here implements the NotifyRecovery method expected by the
// aggregator. Delivery is best effort: callers log errors and move on.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os/exec"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"
)

// Notifier is told when the main endpoint comes back online.
type Notifier interface {
	NotifyRecovery(ctx context.Context, title, message string) error
}

// LogNotifier writes recovery notifications to a structured logger.
type LogNotifier struct {
	Logger *slog.Logger
}

// NotifyRecovery logs the notification at Info level.
func (n LogNotifier) NotifyRecovery(ctx context.Context, title, message string) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "recovery notification", "title", title, "message", message)
	return nil
}

// Multi fans a notification out to every wrapped notifier and joins their
// errors. One failing notifier does not stop the others.
type Multi []Notifier

// NotifyRecovery calls each notifier in order.
func (m Multi) NotifyRecovery(ctx context.Context, title, message string) error {
	var errs []error
	for _, n := range m {
		if err := n.NotifyRecovery(ctx, title, message); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Payload is the JSON body posted by [Webhook].
type Payload struct {
	Title   string    `json:"title"`
	Message string    `json:"message"`
	SentAt  time.Time `json:"sent_at"`
}

// Circuit breaker defaults for [Webhook].
const (
	DefaultFailureThreshold = 3
	DefaultBreakerDelay     = time.Minute
)

// ErrBreakerOpen is returned by [Webhook.NotifyRecovery] while the circuit
// breaker is open and deliveries are being skipped.
var ErrBreakerOpen = circuitbreaker.ErrOpen

// Webhook posts recovery notifications as JSON to a URL.
//
// Deliveries go through a circuit breaker: after a run of consecutive
// failures the webhook is not called again until the breaker delay has
// elapsed.
type Webhook struct {
	url     string
	client  *http.Client
	breaker circuitbreaker.CircuitBreaker[any]
	logger  *slog.Logger
}

// WebhookOption configures a [Webhook].
type WebhookOption func(*Webhook)

// WithHTTPClient sets the client used for deliveries.
func WithHTTPClient(c *http.Client) WebhookOption {
	return func(w *Webhook) {
		w.client = c
	}
}

// WithBreaker replaces the default circuit breaker settings.
func WithBreaker(failureThreshold uint, delay time.Duration) WebhookOption {
	return func(w *Webhook) {
		w.breaker = newBreaker(failureThreshold, delay, w.logger)
	}
}

// NewWebhook creates a webhook notifier posting to url.
func NewWebhook(url string, logger *slog.Logger, opts ...WebhookOption) *Webhook {
	if logger == nil {
		logger = slog.Default()
	}
	w := &Webhook{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}
	w.breaker = newBreaker(DefaultFailureThreshold, DefaultBreakerDelay, logger)
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func newBreaker(failureThreshold uint, delay time.Duration, logger *slog.Logger) circuitbreaker.CircuitBreaker[any] {
	if failureThreshold == 0 {
		failureThreshold = DefaultFailureThreshold
	}
	if delay <= 0 {
		delay = DefaultBreakerDelay
	}
	return circuitbreaker.NewBuilder[any]().
		WithFailureThreshold(failureThreshold).
		WithDelay(delay).
		OnStateChanged(func(event circuitbreaker.StateChangedEvent) {
			logger.Warn("webhook circuit breaker state change",
				"from", stateName(event.OldState),
				"to", stateName(event.NewState),
			)
		}).
		Build()
}

func stateName(s circuitbreaker.State) string {
	switch s {
	case circuitbreaker.ClosedState:
		return "closed"
	case circuitbreaker.HalfOpenState:
		return "half-open"
	case circuitbreaker.OpenState:
		return "open"
	default:
		return "unknown"
	}
}

// NotifyRecovery posts the notification. A non-2xx response is an error.
func (w *Webhook) NotifyRecovery(ctx context.Context, title, message string) error {
	body, err := json.Marshal(Payload{Title: title, Message: message, SentAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}

	_, err = failsafe.With(w.breaker).Get(func() (any, error) {
		return nil, w.post(ctx, body)
	})
	if err != nil {
		return fmt.Errorf("webhook %s: %w", w.url, err)
	}
	return nil
}

// IsOpen reports whether the circuit breaker is currently rejecting deliveries.
func (w *Webhook) IsOpen() bool {
	return w.breaker.IsOpen()
}

func (w *Webhook) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

// Command runs an external program for each notification, passing the
// title and message as the final two arguments. With Name "notify-send"
// this raises a desktop notification.
type Command struct {
	Name string
	Args []string
}

// NotifyRecovery runs the command and returns its combined output on failure.
func (c Command) NotifyRecovery(ctx context.Context, title, message string) error {
	if c.Name == "" {
		return errors.New("command name is required")
	}
	args := append(append([]string{}, c.Args...), title, message)
	out, err := exec.CommandContext(ctx, c.Name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("run %s: %w: %s", c.Name, err, bytes.TrimSpace(out))
	}
	return nil
}
