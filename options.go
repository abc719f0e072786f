package regionpulse

import (
	"errors"
	"log/slog"
	"time"
)

// rpConfig holds mutable state during Monitor construction.
type rpConfig struct {
	title             string
	mainURL           string
	regions           []Region
	pollingInterval   time.Duration
	probeTimeout      time.Duration
	port              int
	logger            *slog.Logger
	notifiers         []Notifier
	snapshotCallbacks []func(Snapshot)
	metrics           bool
}

// Option is a function that configures a [Monitor] instance during construction.
//
// Option implements the functional options pattern, allowing optional
// configuration to be passed to [New] in a type-safe, extensible way.
// Options return an error if validation fails.
type Option func(*rpConfig) error

// WithMainURL sets the primary endpoint whose recovery triggers notifications.
//
// Required. Returns an error if the URL is not an absolute http or https URL.
func WithMainURL(rawURL string) Option {
	return func(cfg *rpConfig) error {
		if err := validateURL(rawURL); err != nil {
			return err
		}
		cfg.mainURL = rawURL
		return nil
	}
}

// WithRegion adds a single [Region] to monitor.
//
// Can be called multiple times. Region codes must be unique.
//
// Example:
//
//	m, err := regionpulse.New(
//	    regionpulse.WithMainURL("https://example.com"),
//	    regionpulse.WithRegion(eu),
//	    regionpulse.WithRegion(na),
//	)
func WithRegion(r Region) Option {
	return func(cfg *rpConfig) error {
		cfg.regions = append(cfg.regions, r)
		return nil
	}
}

// WithRegions adds multiple [Region] values. Equivalent to calling
// [WithRegion] for each.
func WithRegions(regions ...Region) Option {
	return func(cfg *rpConfig) error {
		cfg.regions = append(cfg.regions, regions...)
		return nil
	}
}

// WithPollingInterval sets how often a polling cycle runs.
// Defaults to 10 seconds.
//
// Returns an error if the duration is zero or negative.
func WithPollingInterval(d time.Duration) Option {
	return func(cfg *rpConfig) error {
		if d <= 0 {
			return errors.New("polling interval must be positive")
		}
		cfg.pollingInterval = d
		return nil
	}
}

// WithProbeTimeout bounds each individual health probe. An endpoint that
// has not answered within the timeout is considered offline.
// Defaults to 5 seconds.
//
// Returns an error if the duration is zero or negative.
func WithProbeTimeout(d time.Duration) Option {
	return func(cfg *rpConfig) error {
		if d <= 0 {
			return errors.New("probe timeout must be positive")
		}
		cfg.probeTimeout = d
		return nil
	}
}

// WithPort sets the HTTP port for the dashboard server.
// Defaults to 3000.
//
// Returns an error if the port is outside the valid range (1-65535).
func WithPort(port int) Option {
	return func(cfg *rpConfig) error {
		if port < 1 || port > 65535 {
			return errors.New("port must be between 1 and 65535")
		}
		cfg.port = port
		return nil
	}
}

// WithLogger sets a custom [slog.Logger]. If not specified, [slog.Default]
// is used.
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *rpConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithTitle sets the dashboard title. The title is also used as the title
// of recovery notifications. Defaults to "RegionPulse".
func WithTitle(title string) Option {
	return func(cfg *rpConfig) error {
		cfg.title = title
		return nil
	}
}

// WithNotifier registers a [Notifier] for main endpoint recoveries.
//
// Multiple notifiers may be registered; every one is called on each
// recovery. Nil notifiers are silently ignored.
func WithNotifier(n Notifier) Option {
	return func(cfg *rpConfig) error {
		if n == nil {
			return nil
		}
		cfg.notifiers = append(cfg.notifiers, n)
		return nil
	}
}

// WithSnapshotCallback registers a function called with every published
// [Snapshot], after it is visible to dashboard clients.
//
// Callbacks run synchronously on the polling goroutine, in registration
// order, and must not block. Panics are recovered and logged.
// Nil callbacks are silently ignored.
func WithSnapshotCallback(cb func(Snapshot)) Option {
	return func(cfg *rpConfig) error {
		if cb == nil {
			return nil
		}
		cfg.snapshotCallbacks = append(cfg.snapshotCallbacks, cb)
		return nil
	}
}

// WithMetrics enables or disables the Prometheus endpoint at /metrics.
// Enabled by default.
func WithMetrics(enabled bool) Option {
	return func(cfg *rpConfig) error {
		cfg.metrics = enabled
		return nil
	}
}
