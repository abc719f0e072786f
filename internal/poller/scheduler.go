package poller

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultInterval is the polling period used when none is configured.
const DefaultInterval = 10 * time.Second

// Source identifies what started a cycle.
type Source string

const (
	// SourceStartup is the immediate cycle run when the scheduler starts.
	SourceStartup Source = "startup"

	// SourceTimer is a cycle run by the periodic ticker.
	SourceTimer Source = "timer"

	// SourceManual is a cycle run in response to [Scheduler.Trigger].
	SourceManual Source = "manual"
)

// RunFunc executes one polling cycle. It is never called concurrently with
// itself by a single [Scheduler].
type RunFunc func(ctx context.Context, source Source)

// Scheduler drives polling cycles on a fixed interval and on demand.
//
// The scheduler runs one cycle immediately on start, then one per tick.
// All cycles run on a single goroutine, so timer-driven and manual cycles
// can never overlap. A manual trigger that arrives while a cycle is in
// flight is queued and runs as soon as that cycle finishes; at most one
// trigger is queued, further triggers are coalesced into it.
//
// All lifecycle methods (Start, Stop, Trigger) are safe for concurrent use.
type Scheduler struct {
	interval time.Duration
	run      RunFunc
	logger   *slog.Logger
	trigger  chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	started bool
	stopped bool
}

// NewScheduler creates a new [Scheduler].
//
// Parameters:
//   - interval: Time between timer-driven cycles (non-positive uses [DefaultInterval])
//   - run: The cycle to execute
//   - logger: Logger for scheduler events (panic recovery, etc.)
//
// The scheduler must be started with [Scheduler.Start] and stopped with
// [Scheduler.Stop].
func NewScheduler(interval time.Duration, run RunFunc, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		interval: interval,
		run:      run,
		logger:   logger,
		trigger:  make(chan struct{}, 1),
	}
}

// Interval returns the period between timer-driven cycles.
func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

// Start begins the cycle loop in a background goroutine.
//
// Start is non-blocking. The loop runs a startup cycle, then runs a cycle
// on every tick and every accepted trigger until [Scheduler.Stop] is called
// or ctx is cancelled.
//
// If ctx is nil, context.Background() is used as the parent context.
// Start is idempotent; subsequent calls after the first are no-ops.
// If Stop was called before Start, Start is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started || s.stopped {
		s.mu.Unlock()
		return
	}
	s.started = true

	if ctx == nil {
		ctx = context.Background()
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	loopCtx := s.ctx // capture under lock to avoid race

	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()

		s.safeRun(loopCtx, SourceStartup)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				s.safeRun(loopCtx, SourceTimer)
			case <-s.trigger:
				s.safeRun(loopCtx, SourceManual)
			}
		}
	}()
}

// Stop halts the scheduler and waits for the in-flight cycle to finish.
//
// Stop is idempotent and safe to call multiple times. Calling Stop before
// Start is a safe no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.stopped {
		s.stopped = true
		if s.cancel != nil {
			s.cancel()
		}
	}
	s.mu.Unlock()

	s.wg.Wait()
}

// Trigger requests an immediate cycle.
//
// Trigger never blocks. It returns true if the request was queued and false
// if it was coalesced into an already-pending request or the scheduler has
// been stopped.
func (s *Scheduler) Trigger() bool {
	s.mu.Lock()
	stopped := s.stopped
	s.mu.Unlock()
	if stopped {
		return false
	}

	select {
	case s.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// safeRun calls the cycle with panic recovery.
// A panicking cycle is logged with a correlation ID and the loop continues.
func (s *Scheduler) safeRun(ctx context.Context, source Source) {
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			s.logger.Error("cycle panic",
				"correlation_id", correlationID,
				"source", string(source),
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
		}
	}()

	if ctx.Err() != nil {
		return
	}
	s.run(ctx, source)
}
