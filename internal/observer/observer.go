// Package observer contains the pluggable resource checks. Each observer
// owns its metric histories and its health ledger; a run samples, evaluates
// thresholds and commits verdicts, while publication happens separately in
// the scheduler's reporting phase.
package observer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/minhvu/warden/internal/core/domain"
	"github.com/minhvu/warden/internal/health"
	"github.com/minhvu/warden/internal/sink"
	"github.com/minhvu/warden/internal/telemetry"
)

// Observer is the capability contract every concrete check implements.
type Observer interface {
	Name() string
	Enabled() bool

	// Initialize finishes setup after construction: opening metric
	// sources, loading side-files, building series. A degraded setting is
	// handled internally; an error means the observer cannot run at all.
	Initialize() error

	// Run samples, evaluates and commits verdicts to the ledger. It must
	// honor ctx at every blocking boundary and never publishes itself.
	Run(ctx context.Context) error

	// Report drains committed transitions to the sink. Publish failures
	// restage the remaining events for the next reporting phase.
	Report(ctx context.Context, s sink.Sink) error

	// ClearActive commits Ok counterparts for every active source, used by
	// the scheduler's stop protocol so no warning outlives the observer.
	ClearActive()

	LastRun() time.Time
	LastRunDuration() time.Duration
	HasActiveWarning() bool
	Faulted() bool
}

// tracker carries the run bookkeeping shared by all observers. Concrete
// observers embed it; there is no type hierarchy beyond this composition.
type tracker struct {
	name    string
	enabled bool
	log     *slog.Logger
	ledger  *health.Ledger

	mu      sync.Mutex
	lastRun time.Time
	lastDur time.Duration
	faulted bool
}

func newTracker(name string, enabled bool) tracker {
	return tracker{
		name:    name,
		enabled: enabled,
		log:     slog.Default().With("observer", name),
		ledger:  health.NewLedger(),
	}
}

func (t *tracker) Name() string  { return t.name }
func (t *tracker) Enabled() bool { return t.enabled }

func (t *tracker) LastRun() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastRun
}

func (t *tracker) LastRunDuration() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastDur
}

func (t *tracker) HasActiveWarning() bool { return t.ledger.HasActive() }

func (t *tracker) Faulted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.faulted
}

// beginRun stamps the run start.
func (t *tracker) beginRun() time.Time {
	start := time.Now()
	t.mu.Lock()
	t.lastRun = start
	t.mu.Unlock()
	return start
}

// endRun records duration and the internal-fault flag. Cancellation is not
// a fault; a detected resource warning is not a fault either.
func (t *tracker) endRun(start time.Time, err error) {
	dur := time.Since(start)
	t.mu.Lock()
	t.lastDur = dur
	t.faulted = err != nil &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded)
	t.mu.Unlock()

	telemetry.ObserverRuns.WithLabelValues(t.name).Inc()
	telemetry.RunDuration.WithLabelValues(t.name).Observe(dur.Seconds())
}

// commit builds an event and records it in the ledger, logging transitions.
func (t *tracker) commit(src domain.SourceID, kind domain.EntityKind, sev domain.Severity, value float64, msg string) {
	ev := domain.NewHealthEvent(src, kind, sev, value, msg)
	if t.ledger.Commit(ev) {
		t.log.Debug("Health transition committed",
			"source", src.String(), "severity", sev.String(), "value", value)
	}
}

// Report drains the ledger into the sink in commit order. On a publish
// failure the undelivered tail is restaged and the error returned; the
// caller logs it and retries next phase.
func (t *tracker) Report(ctx context.Context, s sink.Sink) error {
	events := t.ledger.Drain()
	for i, ev := range events {
		if err := ctx.Err(); err != nil {
			t.ledger.Restage(events[i:])
			return err
		}
		if err := s.Publish(ctx, ev); err != nil {
			t.ledger.Restage(events[i:])
			return fmt.Errorf("publish %s: %w", ev.Source, err)
		}
		telemetry.HealthEvents.WithLabelValues(t.name, ev.Severity.String()).Inc()
	}
	telemetry.ActiveWarnings.WithLabelValues(t.name).Set(float64(t.ledger.ActiveCount()))
	return nil
}

// ClearActive synthesizes Ok events for every active source. The clears go
// through the normal commit path so ordering against pending raises holds.
func (t *tracker) ClearActive() {
	for _, ev := range t.ledger.ActiveEvents() {
		t.ledger.Commit(domain.OkFor(ev, "monitoring stopped"))
	}
}
