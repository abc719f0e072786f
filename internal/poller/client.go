package poller

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultProbeTimeout bounds a single probe when no timeout is configured.
const DefaultProbeTimeout = 5 * time.Second

const maxDrainSize = 1 << 20 // 1MB

// connection pooling limits so a small fixed set of hosts keeps warm connections
const (
	defaultMaxIdleConns        = 100
	defaultMaxIdleConnsPerHost = 10
	defaultMaxConnsPerHost     = 10
	defaultIdleConnTimeout     = 60 * time.Second // conservative: matches common ALB defaults
)

// Result is the outcome of a single probe made by [Client].
//
// Reachable and LatencyMs are the only fields that feed endpoint state.
// StatusCode and Err are carried for logging and metrics.
type Result struct {
	// Reachable is true iff a response with a 2xx status was received
	// within the timeout.
	Reachable bool

	// LatencyMs is the wall-clock time from request start to response in
	// whole milliseconds. Always 0 when Reachable is false.
	LatencyMs int64

	// StatusCode is the HTTP status code, or 0 if no response arrived.
	StatusCode int

	// Err describes why the probe failed. nil when Reachable is true.
	Err error
}

// Client performs health probes over HTTP.
//
// Client uses per-request timeouts via context rather than a global timeout,
// so the caller controls the bound of each probe. It holds no per-probe
// state and is safe for concurrent use.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a new probing [Client].
//
// Connection pooling configuration:
//   - MaxIdleConns: 100 total idle connections
//   - MaxIdleConnsPerHost: 10 idle connections per host
//   - MaxConnsPerHost: 10 concurrent connections per host
//   - IdleConnTimeout: 60 seconds before closing idle connections
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{
			// no default timeout - we use per-request timeouts via context
			Transport: &http.Transport{
				MaxIdleConns:        defaultMaxIdleConns,
				MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
				MaxConnsPerHost:     defaultMaxConnsPerHost,
				IdleConnTimeout:     defaultIdleConnTimeout,
				DisableKeepAlives:   false,
			},
		},
	}
}

// Probe issues a single GET against url and reports reachability.
//
// The timeout is applied via context cancellation; a non-positive timeout
// uses [DefaultProbeTimeout]. Timeouts, transport errors, and non-2xx
// statuses all collapse to an unreachable Result with zero latency. Probe
// never retries.
func (c *Client) Probe(ctx context.Context, url string, timeout time.Duration) Result {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Result{Err: fmt.Errorf("failed to create request: %w", err)}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{Err: fmt.Errorf("request failed: %w", err)}
	}
	latency := time.Since(start)

	// drain a bounded amount so the connection can be reused
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainSize))
	_ = resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	return Result{
		Reachable:  true,
		LatencyMs:  latency.Milliseconds(),
		StatusCode: resp.StatusCode,
	}
}

// Close closes all idle connections in the client's connection pool.
//
// Safe to call multiple times. After Close, the client remains usable but
// new connections will be established as needed.
func (c *Client) Close() {
	if c == nil || c.httpClient == nil {
		return
	}
	if transport, ok := c.httpClient.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
}
