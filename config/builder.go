package config

import (
	"log/slog"

	"github.com/jpalmerr/regionpulse"
)

// BuildRegions converts parsed region entries into SDK Region values,
// preserving file order.
func BuildRegions(cfg *Config) ([]regionpulse.Region, error) {
	regions := make([]regionpulse.Region, 0, len(cfg.Regions))
	for _, rc := range cfg.Regions {
		r, err := regionpulse.NewRegion(rc.Code, rc.URL)
		if err != nil {
			return nil, err
		}
		regions = append(regions, r)
	}
	return regions, nil
}

// BuildNotifiers converts the notify section into SDK notifiers.
// Returns nil when no sink is configured.
func BuildNotifiers(cfg *Config, logger *slog.Logger) []regionpulse.Notifier {
	if logger == nil {
		logger = slog.Default()
	}

	var notifiers []regionpulse.Notifier
	if cfg.Notify.Log {
		notifiers = append(notifiers, regionpulse.NewLogNotifier(logger))
	}

	if cmd := cfg.Notify.Command; len(cmd) > 0 {
		notifiers = append(notifiers, regionpulse.NewCommandNotifier(cmd[0], cmd[1:]...))
	}

	if wh := cfg.Notify.Webhook; wh != nil {
		notifiers = append(notifiers, regionpulse.NewWebhookNotifier(
			wh.URL,
			wh.FailureThreshold,
			wh.BreakerDelay.Duration(),
			logger,
		))
	}

	return notifiers
}

// BuildOptions converts a parsed configuration into options for
// [regionpulse.New].
func BuildOptions(cfg *Config, logger *slog.Logger) ([]regionpulse.Option, error) {
	regions, err := BuildRegions(cfg)
	if err != nil {
		return nil, err
	}

	opts := []regionpulse.Option{
		regionpulse.WithMainURL(cfg.MainURL),
		regionpulse.WithRegions(regions...),
		regionpulse.WithPort(cfg.Port),
		regionpulse.WithPollingInterval(cfg.PollInterval.Duration()),
		regionpulse.WithProbeTimeout(cfg.ProbeTimeout.Duration()),
		regionpulse.WithMetrics(cfg.MetricsEnabled()),
	}
	if logger != nil {
		opts = append(opts, regionpulse.WithLogger(logger))
	}
	if cfg.Title != "" {
		opts = append(opts, regionpulse.WithTitle(cfg.Title))
	}
	for _, n := range BuildNotifiers(cfg, logger) {
		opts = append(opts, regionpulse.WithNotifier(n))
	}

	return opts, nil
}
