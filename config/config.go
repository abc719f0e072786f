// Package config provides YAML configuration parsing for RegionPulse.
//
// This package enables running RegionPulse as a standalone binary with a
// configuration file, as an alternative to the programmatic SDK approach.
//
// Example configuration:
//
//	title: Lumine Proxy
//	port: 3000
//	poll_interval: 10s
//	probe_timeout: 5s
//
//	main_url: https://lumineproxy.org
//
//	regions:
//	  EU: http://eu.lumineproxy.org:1456/healthz
//	  NA: http://na.lumineproxy.org:1456/healthz
//	  AS: http://as.lumineproxy.org:1456/healthz
//
//	notify:
//	  log: true
//	  command: [notify-send]
//	  webhook:
//	    url: ${WEBHOOK_URL}
//	    failure_threshold: 3
//	    breaker_delay: 1m
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// minPollInterval is the minimum allowed polling interval for production configs.
// This prevents accidental DoS of endpoints with overly aggressive polling.
const minPollInterval = 1 * time.Second

const (
	defaultPort         = 3000
	defaultPollInterval = 10 * time.Second
	defaultProbeTimeout = 5 * time.Second
)

// Config is the root configuration structure for RegionPulse.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// Title is the dashboard title and the title of recovery
	// notifications. Defaults to "RegionPulse" if not set.
	Title string `yaml:"title"`

	// Port is the HTTP server port. Defaults to 3000.
	Port int `yaml:"port"`

	// PollInterval is the time between polling cycles.
	// Accepts duration strings like "10s", "1m", "500ms".
	// Defaults to 10s.
	PollInterval Duration `yaml:"poll_interval"`

	// ProbeTimeout bounds each health probe. Defaults to 5s.
	ProbeTimeout Duration `yaml:"probe_timeout"`

	// MainURL is the primary endpoint whose recovery triggers notifications.
	// Supports environment variable substitution: ${VAR} or ${VAR:-default}
	MainURL string `yaml:"main_url"`

	// Regions maps region codes to health URLs, in file order.
	Regions Regions `yaml:"regions"`

	// Metrics toggles the Prometheus endpoint. Defaults to true.
	Metrics *bool `yaml:"metrics"`

	Notify NotifyConfig `yaml:"notify"`
}

// RegionConfig is a single region entry.
type RegionConfig struct {
	Code string
	URL  string
}

// Regions is an ordered region-code to URL mapping.
type Regions []RegionConfig

// NotifyConfig selects the sinks told when the main endpoint recovers.
type NotifyConfig struct {
	// Log writes recoveries to the server log.
	Log bool `yaml:"log"`

	// Command is run with the title and message appended as the final
	// two arguments, e.g. [notify-send].
	Command []string `yaml:"command"`

	Webhook *WebhookConfig `yaml:"webhook"`
}

// WebhookConfig configures the JSON webhook notifier.
type WebhookConfig struct {
	// URL receives a POST per recovery. Supports environment variable
	// substitution.
	URL string `yaml:"url"`

	// FailureThreshold is the number of consecutive failures that open
	// the circuit breaker. Defaults to 3.
	FailureThreshold uint `yaml:"failure_threshold"`

	// BreakerDelay is how long the breaker stays open. Defaults to 1m.
	BreakerDelay Duration `yaml:"breaker_delay"`
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// UnmarshalYAML implements yaml.Unmarshaler for Regions, keeping the
// order in which codes appear in the file.
func (r *Regions) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: regions must be a mapping of code to url", node.Line)
	}

	seen := make(map[string]int, len(node.Content)/2)
	out := make(Regions, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]

		var code, rawURL string
		if err := key.Decode(&code); err != nil {
			return err
		}
		if err := val.Decode(&rawURL); err != nil {
			return fmt.Errorf("regions[%s]: %w", code, err)
		}
		if line, dup := seen[code]; dup {
			return fmt.Errorf("line %d: duplicate region code %q (first defined at line %d)", key.Line, code, line)
		}
		seen[code] = key.Line
		out = append(out, RegionConfig{Code: code, URL: rawURL})
	}

	*r = out
	return nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a YAML configuration file.
//
// Environment variables in URLs are expanded after parsing.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data.
//
// Environment variables are expanded in main_url, region URLs and the
// webhook URL. Defaults are applied for Port (3000), PollInterval (10s)
// and ProbeTimeout (5s).
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = Duration(defaultPollInterval)
	}
	if cfg.ProbeTimeout == 0 {
		cfg.ProbeTimeout = Duration(defaultProbeTimeout)
	}

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// MetricsEnabled reports whether /metrics should be served.
func (c *Config) MetricsEnabled() bool {
	return c.Metrics == nil || *c.Metrics
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	if c.PollInterval.Duration() < minPollInterval {
		return fmt.Errorf("poll_interval must be at least %s, got %s", minPollInterval, c.PollInterval.Duration())
	}
	if c.ProbeTimeout.Duration() < 0 {
		return fmt.Errorf("probe_timeout cannot be negative, got %s", c.ProbeTimeout.Duration())
	}

	if c.MainURL == "" {
		return errors.New("main_url is required")
	}
	expanded, err := expandAndCheckURL(c.MainURL)
	if err != nil {
		return fmt.Errorf("main_url: %w", err)
	}
	c.MainURL = expanded

	for i := range c.Regions {
		r := &c.Regions[i]

		if r.Code == "" {
			return fmt.Errorf("regions[%d]: code is required", i)
		}
		if r.URL == "" {
			return fmt.Errorf("regions[%s]: url is required", r.Code)
		}
		expanded, err := expandAndCheckURL(r.URL)
		if err != nil {
			return fmt.Errorf("regions[%s]: %w", r.Code, err)
		}
		r.URL = expanded
	}

	if len(c.Notify.Command) > 0 && c.Notify.Command[0] == "" {
		return errors.New("notify.command: program name is required")
	}

	if wh := c.Notify.Webhook; wh != nil {
		if wh.URL == "" {
			return errors.New("notify.webhook: url is required")
		}
		expanded, err := expandAndCheckURL(wh.URL)
		if err != nil {
			return fmt.Errorf("notify.webhook: %w", err)
		}
		wh.URL = expanded

		if wh.BreakerDelay.Duration() < 0 {
			return fmt.Errorf("notify.webhook: breaker_delay cannot be negative, got %s", wh.BreakerDelay.Duration())
		}
	}

	return nil
}

// expandAndCheckURL expands environment variables in raw and checks that
// the result is an absolute http or https URL.
func expandAndCheckURL(raw string) (string, error) {
	expanded, err := expandEnvVars(raw)
	if err != nil {
		return "", err
	}

	parsedURL, err := url.Parse(expanded)
	if err != nil {
		return "", fmt.Errorf("invalid url: %w", err)
	}
	if parsedURL.Scheme == "" {
		return "", errors.New("url must have a scheme (http:// or https://)")
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return "", fmt.Errorf("url scheme must be http or https, got %q", parsedURL.Scheme)
	}
	if parsedURL.Host == "" {
		return "", errors.New("url must have a host")
	}
	return expanded, nil
}
