// Package aggregate owns per-endpoint health state and runs polling cycles.
//
// An [Aggregator] probes the main endpoint, then every region in parallel,
// records transitions in the activity log, and publishes one consistent
// [Snapshot] per completed cycle. Cycle execution is single-flight:
// concurrent callers of [Aggregator.RunCycle] share the in-flight run
// instead of starting a second one.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/jpalmerr/regionpulse/internal/eventlog"
	"github.com/jpalmerr/regionpulse/internal/poller"
)

// MainEndpoint is the name used for the primary endpoint in logs and metrics.
const MainEndpoint = "main"

const (
	defaultNotifyTitle = "RegionPulse"
	recoveryMessage    = "Main site is back online!"
	notifyTimeout      = 10 * time.Second
	cycleKey           = "cycle"
)

// Prober checks a single URL. Implementations must be safe for concurrent use.
type Prober interface {
	Probe(ctx context.Context, url string, timeout time.Duration) poller.Result
}

// BroadcastSink receives one snapshot per completed cycle.
type BroadcastSink interface {
	Publish(snap Snapshot)
}

// NotificationSink is told when the main endpoint recovers.
type NotificationSink interface {
	NotifyRecovery(ctx context.Context, title, message string) error
}

// Recorder observes probe outcomes and cycles, typically for metrics.
type Recorder interface {
	ObserveProbe(endpoint string, res poller.Result)
	ObserveTransition(endpoint string, online bool)
	ObserveCycle(d time.Duration, snap Snapshot)
}

// Region is a regional node to monitor.
type Region struct {
	Code string
	URL  string
}

// Config configures an [Aggregator]. Only MainURL and Prober are required.
type Config struct {
	MainURL      string
	Regions      []Region
	ProbeTimeout time.Duration

	// NotifyTitle is the title passed to the notification sink.
	NotifyTitle string

	// LogCapacity bounds the activity log; non-positive uses the default of 10.
	LogCapacity int

	Prober   Prober
	Sink     BroadcastSink
	Notifier NotificationSink
	Recorder Recorder
	Logger   *slog.Logger

	// Clock overrides time.Now, for tests.
	Clock func() time.Time
}

type mainState struct {
	online         bool
	responseTimeMs int64
	lastCheckAt    *time.Time
}

type regionState struct {
	url            string
	online         bool
	responseTimeMs int64
	checks         int
	successes      int
	uptimePct      float64
	lastCheckAt    *time.Time
}

// cycleCall is the context of the in-flight cycle and the number of
// callers still waiting on it.
type cycleCall struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

// Aggregator owns the health state of the main endpoint and every region.
//
// State is mutated only when a cycle commits. Region results are collected
// in probe completion order and applied together under mu.
type Aggregator struct {
	cfg     Config
	prober  Prober
	sink    BroadcastSink
	notify  NotificationSink
	rec     Recorder
	logger  *slog.Logger
	now     func() time.Time
	log     *eventlog.Log
	notifWG sync.WaitGroup

	flightMu sync.Mutex
	flight   singleflight.Group
	inflight *cycleCall

	mu      sync.Mutex
	main    mainState
	regions map[string]*regionState
	cycle   uint64
}

// New validates cfg and creates an [Aggregator] with zeroed state.
//
// Every endpoint URL must be an absolute http or https URL and region codes
// must be unique and non-empty. Nil sinks, recorder, and logger are replaced
// with no-op implementations.
func New(cfg Config) (*Aggregator, error) {
	if cfg.Prober == nil {
		return nil, errors.New("prober is required")
	}
	if err := validateURL(cfg.MainURL); err != nil {
		return nil, fmt.Errorf("main url: %w", err)
	}

	regions := make(map[string]*regionState, len(cfg.Regions))
	for i, r := range cfg.Regions {
		if r.Code == "" {
			return nil, fmt.Errorf("regions[%d]: code is required", i)
		}
		if _, dup := regions[r.Code]; dup {
			return nil, fmt.Errorf("duplicate region code: %q", r.Code)
		}
		if err := validateURL(r.URL); err != nil {
			return nil, fmt.Errorf("region %s url: %w", r.Code, err)
		}
		regions[r.Code] = &regionState{url: r.URL}
	}

	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = poller.DefaultProbeTimeout
	}
	if cfg.NotifyTitle == "" {
		cfg.NotifyTitle = defaultNotifyTitle
	}

	a := &Aggregator{
		cfg:     cfg,
		prober:  cfg.Prober,
		sink:    cfg.Sink,
		notify:  cfg.Notifier,
		rec:     cfg.Recorder,
		logger:  cfg.Logger,
		now:     cfg.Clock,
		log:     eventlog.New(cfg.LogCapacity),
		regions: regions,
	}
	if a.sink == nil {
		a.sink = nopSink{}
	}
	if a.rec == nil {
		a.rec = nopRecorder{}
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	if a.now == nil {
		a.now = time.Now
	}
	return a, nil
}

// Initial returns the pre-probe snapshot (cycle 0) so observers that connect
// before the first cycle completes still get a well-formed view.
func (a *Aggregator) Initial() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshotLocked(time.Time{})
}

// RunCycle runs one polling cycle and returns the published snapshot.
//
// If a cycle is already in flight, RunCycle waits for it and returns its
// snapshot instead of starting another. The shared cycle is not bound to
// any single caller: it is abandoned only once every waiting caller has
// given up. A caller whose ctx ends first returns the context error without
// affecting the others. An abandoned cycle leaves state untouched and
// publishes nothing.
func (a *Aggregator) RunCycle(ctx context.Context) (Snapshot, error) {
	a.flightMu.Lock()
	call := a.inflight
	if call == nil || call.ctx.Err() != nil {
		if call != nil {
			// the running cycle is being abandoned; start a fresh one
			a.flight.Forget(cycleKey)
		}
		cctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		call = &cycleCall{ctx: cctx, cancel: cancel}
		a.inflight = call
	}
	call.waiters++
	ch := a.flight.DoChan(cycleKey, func() (any, error) {
		defer a.finishFlight(call)
		return a.runCycle(call.ctx)
	})
	a.flightMu.Unlock()

	select {
	case r := <-ch:
		if r.Shared {
			a.logger.Debug("cycle request joined in-flight cycle")
		}
		snap, _ := r.Val.(Snapshot)
		return snap, r.Err
	case <-ctx.Done():
		a.leaveFlight(call)
		return Snapshot{}, ctx.Err()
	}
}

// leaveFlight drops one waiter and cancels the cycle when none remain.
func (a *Aggregator) leaveFlight(call *cycleCall) {
	a.flightMu.Lock()
	call.waiters--
	last := call.waiters == 0
	a.flightMu.Unlock()
	if last {
		call.cancel()
	}
}

// finishFlight retires call so the next RunCycle starts a new cycle.
func (a *Aggregator) finishFlight(call *cycleCall) {
	a.flightMu.Lock()
	if a.inflight == call {
		a.inflight = nil
		a.flight.Forget(cycleKey)
	}
	a.flightMu.Unlock()
	call.cancel()
}

// Wait blocks until all in-flight recovery notifications have returned.
func (a *Aggregator) Wait() {
	a.notifWG.Wait()
}

// probeOutcome is one finished probe waiting to be applied.
type probeOutcome struct {
	endpoint string
	res      poller.Result
	at       time.Time
}

func (a *Aggregator) runCycle(ctx context.Context) (Snapshot, error) {
	start := time.Now()

	res := a.prober.Probe(ctx, a.cfg.MainURL, a.cfg.ProbeTimeout)
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	mainOut := probeOutcome{endpoint: MainEndpoint, res: res, at: a.now()}
	a.logProbe(MainEndpoint, a.cfg.MainURL, res)

	var (
		g       errgroup.Group
		doneMu  sync.Mutex
		regions = make([]probeOutcome, 0, len(a.cfg.Regions))
	)
	for _, r := range a.cfg.Regions {
		g.Go(func() error {
			res := a.prober.Probe(ctx, r.URL, a.cfg.ProbeTimeout)
			if ctx.Err() != nil {
				// abandoned probe: not a completed check
				return nil
			}
			a.logProbe(r.Code, r.URL, res)
			doneMu.Lock()
			regions = append(regions, probeOutcome{endpoint: r.Code, res: res, at: a.now()})
			doneMu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	// an abandoned cycle applies nothing
	a.mu.Lock()
	if err := ctx.Err(); err != nil {
		a.mu.Unlock()
		return Snapshot{}, err
	}
	recovered := a.applyMainLocked(mainOut)
	for _, out := range regions {
		a.applyRegionLocked(out)
	}
	a.cycle++
	snap := a.snapshotLocked(a.now())
	a.mu.Unlock()

	a.rec.ObserveProbe(MainEndpoint, mainOut.res)
	for _, out := range regions {
		a.rec.ObserveProbe(out.endpoint, out.res)
	}
	if recovered {
		a.notifyRecovery()
	}

	a.rec.ObserveCycle(time.Since(start), snap)
	a.publish(snap)

	return snap, nil
}

// applyMainLocked records the main probe result and reports whether the
// endpoint just recovered from OFFLINE to ONLINE. Caller must hold a.mu.
func (a *Aggregator) applyMainLocked(out probeOutcome) bool {
	res := out.res
	recovered := false
	if a.main.lastCheckAt != nil && res.Reachable != a.main.online {
		state, severity := "OFFLINE", eventlog.SeverityError
		if res.Reachable {
			state, severity = "ONLINE", eventlog.SeveritySuccess
			recovered = true
		}
		a.log.Append(fmt.Sprintf("Main system transitioned to %s", state), severity)
		a.rec.ObserveTransition(MainEndpoint, res.Reachable)
		a.logger.Info("endpoint transition", "endpoint", MainEndpoint, "online", res.Reachable)
	}

	at := out.at
	a.main = mainState{
		online:         res.Reachable,
		responseTimeMs: res.LatencyMs,
		lastCheckAt:    &at,
	}
	return recovered
}

// applyRegionLocked folds one region result into its counters. Caller must
// hold a.mu.
func (a *Aggregator) applyRegionLocked(out probeOutcome) {
	code, res := out.endpoint, out.res

	st := a.regions[code]
	if st.checks > 0 && res.Reachable != st.online {
		state, severity := "Down", eventlog.SeverityError
		if res.Reachable {
			state, severity = "Operational", eventlog.SeveritySuccess
		}
		a.log.Append(fmt.Sprintf("%s node is now %s", code, state), severity)
		a.rec.ObserveTransition(code, res.Reachable)
		a.logger.Info("endpoint transition", "endpoint", code, "online", res.Reachable)
	}

	at := out.at
	st.online = res.Reachable
	st.responseTimeMs = res.LatencyMs
	st.checks++
	if res.Reachable {
		st.successes++
	}
	st.uptimePct = uptimePercent(st.successes, st.checks)
	st.lastCheckAt = &at
}

// snapshotLocked deep-copies current state. Caller must hold a.mu.
func (a *Aggregator) snapshotLocked(completedAt time.Time) Snapshot {
	snap := Snapshot{
		Cycle:       a.cycle,
		CompletedAt: completedAt,
		Main: MainStatus{
			URL:            a.cfg.MainURL,
			Online:         a.main.online,
			ResponseTimeMs: a.main.responseTimeMs,
			LastCheckAt:    copyTime(a.main.lastCheckAt),
		},
		Regions: make(map[string]RegionStatus, len(a.regions)),
		Logs:    a.log.Entries(),
	}
	for code, st := range a.regions {
		snap.Regions[code] = RegionStatus{
			URL:            st.url,
			Online:         st.online,
			ResponseTimeMs: st.responseTimeMs,
			Checks:         st.checks,
			Successes:      st.successes,
			UptimePct:      st.uptimePct,
			LastCheckAt:    copyTime(st.lastCheckAt),
		}
	}
	return snap
}

// publish hands the snapshot to the broadcast sink. A panicking sink is
// logged and does not affect the cycle.
func (a *Aggregator) publish(snap Snapshot) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("broadcast sink panicked", "panic", r, "cycle", snap.Cycle)
		}
	}()
	a.sink.Publish(snap)
}

// notifyRecovery fires the notification sink in the background.
// Failures are logged and otherwise ignored.
func (a *Aggregator) notifyRecovery() {
	if a.notify == nil {
		return
	}

	a.notifWG.Add(1)
	go func() {
		defer a.notifWG.Done()
		defer func() {
			if r := recover(); r != nil {
				a.logger.Error("notification sink panicked", "panic", r)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()

		if err := a.notify.NotifyRecovery(ctx, a.cfg.NotifyTitle, recoveryMessage); err != nil {
			a.logger.Warn("recovery notification failed", "error", err)
		}
	}()
}

func (a *Aggregator) logProbe(endpoint, target string, res poller.Result) {
	attrs := []any{
		"endpoint", endpoint,
		"url", target,
		"online", res.Reachable,
		"latency_ms", res.LatencyMs,
	}
	if res.Err != nil {
		a.logger.Debug("probe failed", append(attrs, "error", res.Err.Error())...)
		return
	}
	a.logger.Debug("probe completed", attrs...)
}

func validateURL(raw string) error {
	if raw == "" {
		return errors.New("url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("url must have a host")
	}
	return nil
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

type nopSink struct{}

func (nopSink) Publish(Snapshot) {}

type nopRecorder struct{}

func (nopRecorder) ObserveProbe(string, poller.Result)   {}
func (nopRecorder) ObserveTransition(string, bool)       {}
func (nopRecorder) ObserveCycle(time.Duration, Snapshot) {}
