package regionpulse

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jpalmerr/regionpulse/dashboard"
	"github.com/jpalmerr/regionpulse/internal/aggregate"
	"github.com/jpalmerr/regionpulse/internal/metrics"
	"github.com/jpalmerr/regionpulse/internal/notify"
	"github.com/jpalmerr/regionpulse/internal/poller"
	"github.com/jpalmerr/regionpulse/internal/server"
	"github.com/jpalmerr/regionpulse/internal/store"
)

const (
	defaultTitle           = "RegionPulse"
	defaultPollingInterval = poller.DefaultInterval
	defaultProbeTimeout    = poller.DefaultProbeTimeout
	defaultPort            = 3000
)

// Monitor is the main orchestrator for health polling and dashboard serving.
//
// Monitor probes a main endpoint and a set of regions on a fixed interval,
// keeps per-region uptime and an activity log, notifies on main endpoint
// recovery, and serves a real-time dashboard. It is created using [New]
// with functional options and started with [Monitor.Start].
//
// The typical lifecycle is:
//
//	m, err := regionpulse.New(
//	    regionpulse.WithMainURL("https://example.com"),
//	    regionpulse.WithRegion(eu),
//	)
//	if err != nil {
//	    slog.Error("failed to create monitor", "error", err)
//	    os.Exit(1)
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//
//	m.Start(ctx) // blocks until context cancelled
type Monitor struct {
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

	mu  sync.Mutex
	run *running
}

// running holds the components of a started Monitor.
type running struct {
	agg     *aggregate.Aggregator
	sched   *poller.Scheduler
	store   *store.MemoryStore
	trigger server.TriggerFunc
}

// New creates a new [Monitor] with the given options.
//
// A main URL must be configured via [WithMainURL]. Regions are optional.
// Other options have defaults:
//   - Polling interval: 10 seconds
//   - Probe timeout: 5 seconds
//   - Port: 3000
//   - Metrics: enabled
//
// Returns an error if no main URL is configured, region codes repeat, or any
// option is invalid.
func New(opts ...Option) (*Monitor, error) {
	cfg := &rpConfig{
		title:           defaultTitle,
		pollingInterval: defaultPollingInterval,
		probeTimeout:    defaultProbeTimeout,
		port:            defaultPort,
		metrics:         true,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.mainURL == "" {
		return nil, errors.New("main URL is required")
	}

	seen := make(map[string]bool, len(cfg.regions))
	for _, r := range cfg.regions {
		if r.code == "" {
			return nil, errors.New("region must be created with NewRegion")
		}
		if seen[r.code] {
			return nil, fmt.Errorf("duplicate region code: %q", r.code)
		}
		seen[r.code] = true
	}

	if cfg.title == "" {
		cfg.title = defaultTitle
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Monitor{
		title:             cfg.title,
		mainURL:           cfg.mainURL,
		regions:           cfg.regions,
		pollingInterval:   cfg.pollingInterval,
		probeTimeout:      cfg.probeTimeout,
		port:              cfg.port,
		logger:            logger,
		notifiers:         cfg.notifiers,
		snapshotCallbacks: cfg.snapshotCallbacks,
		metrics:           cfg.metrics,
	}, nil
}

// Start begins polling and serving the dashboard.
//
// Start is a blocking call that runs until the provided context is cancelled.
// During execution:
//
//   - A polling cycle runs immediately, then at the configured interval
//   - The HTTP server starts on the configured port
//   - The dashboard is available at http://localhost:<port>
//
// Returns nil on graceful shutdown. Returns an error if the HTTP server
// fails to start or the Monitor is already running.
func (m *Monitor) Start(ctx context.Context) error {
	m.logger.Info("regionpulse starting", "main_url", m.mainURL, "region_count", len(m.regions))
	m.logger.Info("polling configured", "interval", m.pollingInterval.String(), "probe_timeout", m.probeTimeout.String())

	// check if context already cancelled
	if ctx.Err() != nil {
		return nil
	}

	var collector *metrics.Collector
	var recorder aggregate.Recorder
	var inst server.Instrumentation
	if m.metrics {
		collector = metrics.New()
		recorder = collector
		inst = collector
	}

	client := poller.NewClient()
	defer client.Close()

	pub := &publisher{callbacks: m.snapshotCallbacks, logger: m.logger}
	agg, err := m.newAggregator(client, pub, recorder)
	if err != nil {
		return err
	}
	pub.store = store.NewMemoryStore(agg.Initial())

	sched := poller.NewScheduler(m.pollingInterval, func(ctx context.Context, source poller.Source) {
		m.logger.Debug("polling cycle starting", "source", string(source))
		if _, err := agg.RunCycle(ctx); err != nil && !errors.Is(err, context.Canceled) {
			m.logger.Warn("polling cycle abandoned", "source", string(source), "error", err)
		}
	}, m.logger)

	trigger := func(source string) bool {
		queued := sched.Trigger()
		if collector != nil {
			collector.ObserveTrigger(source, queued)
		}
		return queued
	}

	httpServer := server.NewServer(pub.store, trigger, server.Config{
		Port:     m.port,
		Title:    m.title,
		Interval: m.pollingInterval,
		Assets:   dashboard.Assets,
		Metrics:  inst,
	}, m.logger)

	m.mu.Lock()
	if m.run != nil {
		m.mu.Unlock()
		return errors.New("monitor is already running")
	}
	m.run = &running{agg: agg, sched: sched, store: pub.store, trigger: trigger}
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.run = nil
		m.mu.Unlock()
	}()

	if err := httpServer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	m.logger.Info("dashboard available", "url", fmt.Sprintf("http://localhost:%d", m.port))

	sched.Start(ctx)

	<-ctx.Done()
	sched.Stop()
	agg.Wait()
	m.logger.Info("regionpulse stopped")
	return nil
}

// ForceCheck requests an immediate polling cycle, as the dashboard's
// "Sync Now" button does.
//
// If a cycle is in flight, one follow-up cycle is queued. Returns false when
// the request was coalesced into an already pending cycle or the Monitor is
// not running.
func (m *Monitor) ForceCheck() bool {
	m.mu.Lock()
	run := m.run
	m.mu.Unlock()

	if run == nil {
		return false
	}
	return run.trigger("api")
}

// Check runs a single polling cycle and returns its snapshot.
//
// While the Monitor is running, Check shares the running state: if a cycle
// is in flight it waits for that cycle instead of starting another. When
// the Monitor is not running, Check probes every endpoint once with fresh
// state, so no transitions or notifications occur.
func (m *Monitor) Check(ctx context.Context) (Snapshot, error) {
	m.mu.Lock()
	run := m.run
	m.mu.Unlock()

	if run != nil {
		return run.agg.RunCycle(ctx)
	}

	client := poller.NewClient()
	defer client.Close()

	agg, err := m.newAggregator(client, nil, nil)
	if err != nil {
		return Snapshot{}, err
	}
	return agg.RunCycle(ctx)
}

// Latest returns the most recently published snapshot and true, or a zero
// Snapshot and false when the Monitor is not running.
func (m *Monitor) Latest() (Snapshot, bool) {
	m.mu.Lock()
	run := m.run
	m.mu.Unlock()

	if run == nil {
		return Snapshot{}, false
	}
	return run.store.Latest(), true
}

func (m *Monitor) newAggregator(prober aggregate.Prober, sink aggregate.BroadcastSink, rec aggregate.Recorder) (*aggregate.Aggregator, error) {
	regions := make([]aggregate.Region, len(m.regions))
	for i, r := range m.regions {
		regions[i] = aggregate.Region{Code: r.code, URL: r.url}
	}

	var notifier aggregate.NotificationSink
	switch len(m.notifiers) {
	case 0:
	case 1:
		notifier = m.notifiers[0]
	default:
		multi := make(notify.Multi, len(m.notifiers))
		for i, n := range m.notifiers {
			multi[i] = n
		}
		notifier = multi
	}

	agg, err := aggregate.New(aggregate.Config{
		MainURL:      m.mainURL,
		Regions:      regions,
		ProbeTimeout: m.probeTimeout,
		NotifyTitle:  m.title,
		Prober:       prober,
		Sink:         sink,
		Notifier:     notifier,
		Recorder:     rec,
		Logger:       m.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("invalid monitor configuration: %w", err)
	}
	return agg, nil
}

// Title returns the dashboard and notification title.
func (m *Monitor) Title() string {
	return m.title
}

// MainURL returns the primary endpoint URL.
func (m *Monitor) MainURL() string {
	return m.mainURL
}

// Regions returns a copy of the configured regions.
func (m *Monitor) Regions() []Region {
	cp := make([]Region, len(m.regions))
	copy(cp, m.regions)
	return cp
}

// Port returns the configured HTTP port for the dashboard server.
func (m *Monitor) Port() int {
	return m.port
}

// PollingInterval returns the configured interval between polling cycles.
func (m *Monitor) PollingInterval() time.Duration {
	return m.pollingInterval
}

// ProbeTimeout returns the per-probe timeout.
func (m *Monitor) ProbeTimeout() time.Duration {
	return m.probeTimeout
}

// publisher is the aggregator's broadcast sink: it hands each snapshot to
// the store first, then to user callbacks.
type publisher struct {
	store     *store.MemoryStore
	callbacks []func(Snapshot)
	logger    *slog.Logger
}

func (p *publisher) Publish(snap Snapshot) {
	p.store.Publish(snap)
	for _, cb := range p.callbacks {
		invokeCallbackSafe(cb, snap, p.logger)
	}
}

// invokeCallbackSafe calls a snapshot callback with panic recovery.
// Panics are logged with a correlation ID but do not propagate.
func invokeCallbackSafe(cb func(Snapshot), snap Snapshot, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("snapshot callback panicked",
				"panic", r,
				"cycle", snap.Cycle,
				"correlation_id", uuid.NewString(),
			)
		}
	}()
	cb(snap)
}
