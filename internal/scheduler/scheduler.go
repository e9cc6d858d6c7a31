// Package scheduler drives the observer polling loop: sequential runs
// under per-run deadlines, fault containment with a consecutive-failure
// ceiling, a serialized reporting phase, and a stop protocol that clears
// every active warning before the agent goes quiet.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/minhvu/warden/internal/observer"
	"github.com/minhvu/warden/internal/sink"
	"github.com/minhvu/warden/internal/telemetry"
)

// State is the scheduler lifecycle state.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateDraining
	StateStopped
	StateFatal
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	case StateFatal:
		return "fatal"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

var (
	// ErrRunTimeout marks an observer run that exceeded its deadline.
	ErrRunTimeout = errors.New("observer run timed out")

	// ErrFaultCeiling marks the process-fatal escalation after too many
	// consecutive faults of one observer.
	ErrFaultCeiling = errors.New("consecutive fault ceiling crossed")

	// ErrNotRestartable is returned when Run is called on a scheduler that
	// already ran. Build a fresh instance instead.
	ErrNotRestartable = errors.New("scheduler is not restartable")
)

// Config holds the polling loop settings.
type Config struct {
	// Interval is the sleep between cycles.
	Interval time.Duration
	// RunTimeout bounds one observer run.
	RunTimeout time.Duration
	// MaxConsecutiveFaults escalates to fatal once one observer faults
	// this many cycles in a row. 0 disables escalation.
	MaxConsecutiveFaults int
	// DrainTimeout bounds the clear-on-stop publication.
	DrainTimeout time.Duration
}

// Scheduler owns the ordered observer list and the polling loop.
type Scheduler struct {
	cfg       Config
	observers []observer.Observer
	sink      sink.Sink
	log       *slog.Logger

	state    atomic.Int32
	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}

	faults map[string]int
}

// ObserverStatus is one observer's run record for the health snapshot.
type ObserverStatus struct {
	Name          string        `json:"name"`
	Enabled       bool          `json:"enabled"`
	LastRun       time.Time     `json:"last_run"`
	LastDuration  time.Duration `json:"last_duration"`
	ActiveWarning bool          `json:"active_warning"`
	Faulted       bool          `json:"faulted"`
}

func New(cfg Config, observers []observer.Observer, s sink.Sink, log *slog.Logger) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 60 * time.Second
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = 10 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		cfg:       cfg,
		observers: observers,
		sink:      s,
		log:       log.With("component", "scheduler"),
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
		faults:    make(map[string]int),
	}
}

// State returns the current lifecycle state.
func (s *Scheduler) State() State { return State(s.state.Load()) }

// Snapshot returns the per-observer run records.
func (s *Scheduler) Snapshot() []ObserverStatus {
	out := make([]ObserverStatus, 0, len(s.observers))
	for _, ob := range s.observers {
		out = append(out, ObserverStatus{
			Name:          ob.Name(),
			Enabled:       ob.Enabled(),
			LastRun:       ob.LastRun(),
			LastDuration:  ob.LastRunDuration(),
			ActiveWarning: ob.HasActiveWarning(),
			Faulted:       ob.Faulted(),
		})
	}
	return out
}

// Run drives the polling loop until the context is cancelled, Stop is
// called, or the fault ceiling is crossed. It returns nil on a clean stop
// and the escalation error on the fatal path. A scheduler runs once.
func (s *Scheduler) Run(ctx context.Context) error {
	if !s.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return ErrNotRestartable
	}
	defer close(s.done)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-s.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	s.log.Info("Scheduler started",
		"observers", len(s.observers),
		"interval", s.cfg.Interval,
		"run_timeout", s.cfg.RunTimeout)

	for {
		if err := s.cycle(ctx); err != nil {
			if ctx.Err() != nil {
				s.state.Store(int32(StateDraining))
				s.drain()
				s.state.Store(int32(StateStopped))
				s.log.Info("Scheduler stopped")
				return nil
			}
			// Fault-ceiling escalation: the state goes straight to
			// fatal, then everyone's resource warnings are cleared.
			s.state.Store(int32(StateFatal))
			s.drain()
			s.log.Error("Scheduler fatal", "error", err)
			return err
		}

		select {
		case <-ctx.Done():
			s.state.Store(int32(StateDraining))
			s.drain()
			s.state.Store(int32(StateStopped))
			s.log.Info("Scheduler stopped")
			return nil
		case <-time.After(s.cfg.Interval):
		}
	}
}

// Stop requests cancellation of any in-flight run and waits for the loop
// to finish draining, bounded by ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.stopCh) })
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler stop: %w", ctx.Err())
	}
}

// cycle executes one run phase and one report phase. The only error it
// returns besides cancellation is the fault-ceiling escalation; every
// other fault is contained per observer.
func (s *Scheduler) cycle(ctx context.Context) error {
	for _, ob := range s.observers {
		if !ob.Enabled() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		err := s.runOne(ctx, ob)
		switch {
		case err == nil:
			s.faults[ob.Name()] = 0
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.Is(err, ErrRunTimeout):
			// A slow run is recorded and abandoned; it never feeds the
			// ceiling, so a persistently hung observer cannot take the
			// process down.
			telemetry.ObserverFaults.WithLabelValues(ob.Name(), "timeout").Inc()
			s.log.Error("Observer run timed out",
				"observer", ob.Name(), "error", err)
		default:
			telemetry.ObserverFaults.WithLabelValues(ob.Name(), "fault").Inc()
			s.faults[ob.Name()]++
			s.log.Error("Observer run failed",
				"observer", ob.Name(),
				"consecutive", s.faults[ob.Name()],
				"error", err)

			if s.cfg.MaxConsecutiveFaults > 0 && s.faults[ob.Name()] >= s.cfg.MaxConsecutiveFaults {
				return fmt.Errorf("%w: observer %s failed %d consecutive runs: %v",
					ErrFaultCeiling, ob.Name(), s.faults[ob.Name()], err)
			}
		}
	}

	// Reporting phase: sequential so sink writes never interleave and
	// per-source ordering holds. Sink trouble is logged, never fatal.
	for _, ob := range s.observers {
		if !ob.Enabled() {
			continue
		}
		if err := ob.Report(ctx, s.sink); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			telemetry.SinkErrors.WithLabelValues(s.sink.Name()).Inc()
			s.log.Warn("Report failed, will retry next cycle",
				"observer", ob.Name(), "error", err)
		}
	}

	telemetry.SchedulerCycles.Inc()
	return nil
}

// runOne invokes a single observer run under the configured deadline. On
// timeout the run is cancelled cooperatively and the loop moves on; a hung
// run keeps its goroutine until it honors the context, and its eventual
// ledger commits surface in a later reporting phase.
func (s *Scheduler) runOne(ctx context.Context, ob observer.Observer) error {
	runCtx, cancel := context.WithTimeout(ctx, s.cfg.RunTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- ob.Run(runCtx) }()

	select {
	case err := <-done:
		if err != nil && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return fmt.Errorf("%w: %s", ErrRunTimeout, ob.Name())
		}
		return err
	case <-runCtx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w after %s: %s", ErrRunTimeout, s.cfg.RunTimeout, ob.Name())
	}
}

// drain publishes Ok clears for every active source so no warning outlives
// the agent. The caller sets the lifecycle state first; drain uses a fresh
// bounded context because the loop context is already cancelled by the time
// the stop path gets here.
func (s *Scheduler) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.DrainTimeout)
	defer cancel()

	for _, ob := range s.observers {
		if !ob.Enabled() {
			continue
		}
		ob.ClearActive()
		if err := ob.Report(ctx, s.sink); err != nil {
			telemetry.SinkErrors.WithLabelValues(s.sink.Name()).Inc()
			s.log.Warn("Clear-on-stop publish failed",
				"observer", ob.Name(), "error", err)
		}
	}
}
