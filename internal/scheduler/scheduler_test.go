package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/minhvu/warden/internal/core/domain"
	"github.com/minhvu/warden/internal/health"
	"github.com/minhvu/warden/internal/observer"
	"github.com/minhvu/warden/internal/sink"
)

// =============================================================================
// Stubs
// =============================================================================

type stubObserver struct {
	name    string
	enabled bool
	ledger  *health.Ledger
	runFn   func(ctx context.Context) error
	runs    atomic.Int32
	cleared atomic.Int32
}

func newStubObserver(name string, runFn func(ctx context.Context) error) *stubObserver {
	return &stubObserver{name: name, enabled: true, ledger: health.NewLedger(), runFn: runFn}
}

func (s *stubObserver) Name() string  { return s.name }
func (s *stubObserver) Enabled() bool { return s.enabled }

func (s *stubObserver) Initialize() error { return nil }

func (s *stubObserver) Run(ctx context.Context) error {
	s.runs.Add(1)
	if s.runFn != nil {
		return s.runFn(ctx)
	}
	return nil
}

func (s *stubObserver) Report(ctx context.Context, snk sink.Sink) error {
	events := s.ledger.Drain()
	for i, ev := range events {
		if err := snk.Publish(ctx, ev); err != nil {
			s.ledger.Restage(events[i:])
			return err
		}
	}
	return nil
}

func (s *stubObserver) ClearActive() {
	s.cleared.Add(1)
	for _, ev := range s.ledger.ActiveEvents() {
		s.ledger.Commit(domain.OkFor(ev, "monitoring stopped"))
	}
}

func (s *stubObserver) LastRun() time.Time             { return time.Time{} }
func (s *stubObserver) LastRunDuration() time.Duration { return 0 }
func (s *stubObserver) HasActiveWarning() bool         { return s.ledger.HasActive() }
func (s *stubObserver) Faulted() bool                  { return false }

type fakeSink struct {
	mu      sync.Mutex
	events  []domain.HealthEvent
	publish func(ev domain.HealthEvent) // optional observation hook
}

func (f *fakeSink) Name() string { return "fake" }

func (f *fakeSink) Publish(_ context.Context, ev domain.HealthEvent) error {
	f.mu.Lock()
	f.events = append(f.events, ev)
	hook := f.publish
	f.mu.Unlock()
	if hook != nil {
		hook(ev)
	}
	return nil
}

func (f *fakeSink) Close() error { return nil }

func (f *fakeSink) snapshot() []domain.HealthEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.HealthEvent{}, f.events...)
}

func (f *fakeSink) count(sev domain.Severity) int {
	n := 0
	for _, ev := range f.snapshot() {
		if ev.Severity == sev {
			n++
		}
	}
	return n
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

// =============================================================================
// Tests
// =============================================================================

func TestTimeoutDoesNotBlockNextObserver(t *testing.T) {
	slow := newStubObserver("slow", func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(10 * time.Second):
			return nil
		}
	})
	next := newStubObserver("next", nil)
	snk := &fakeSink{}

	s := New(Config{
		Interval:   time.Hour,
		RunTimeout: 50 * time.Millisecond,
	}, []observer.Observer{slow, next}, snk, nil)

	go func() { _ = s.Run(context.Background()) }()

	start := time.Now()
	waitFor(t, 2*time.Second, func() bool { return next.runs.Load() >= 1 })
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("next observer waited %s behind a hung run", elapsed)
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Stop(stopCtx); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if s.State() != StateStopped {
		t.Errorf("expected stopped, got %s", s.State())
	}
}

func TestConsecutiveTimeoutsNeverEscalate(t *testing.T) {
	slow := newStubObserver("slow", func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(10 * time.Second):
			return nil
		}
	})
	snk := &fakeSink{}

	s := New(Config{
		Interval:             time.Millisecond,
		RunTimeout:           20 * time.Millisecond,
		MaxConsecutiveFaults: 2,
	}, []observer.Observer{slow}, snk, nil)

	go func() { _ = s.Run(context.Background()) }()

	// Well past the ceiling if timeouts counted toward it.
	waitFor(t, 5*time.Second, func() bool { return slow.runs.Load() >= 4 })
	if got := s.State(); got != StateRunning {
		t.Fatalf("expected scheduler still running after repeated timeouts, got %s", got)
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Stop(stopCtx); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if s.State() != StateStopped {
		t.Errorf("expected stopped, got %s", s.State())
	}
}

func TestFaultCeilingEscalatesToFatal(t *testing.T) {
	boom := newStubObserver("boom", func(ctx context.Context) error {
		return errors.New("sampler exploded")
	})

	// A healthy observer carrying an already-published warning; the fatal
	// path must still clear it.
	src := domain.SourceID{Observer: "steady", Entity: "host-1", Property: "cpu"}
	steady := newStubObserver("steady", nil)
	steady.ledger.Commit(domain.NewHealthEvent(src, domain.EntityNode, domain.SeverityWarning, 90, "raised"))
	steady.ledger.Drain() // raise already delivered in an earlier phase

	snk := &fakeSink{}
	s := New(Config{
		Interval:             time.Millisecond,
		RunTimeout:           time.Second,
		MaxConsecutiveFaults: 2,
	}, []observer.Observer{boom, steady}, snk, nil)

	err := s.Run(context.Background())
	if !errors.Is(err, ErrFaultCeiling) {
		t.Fatalf("expected fault ceiling error, got %v", err)
	}
	if s.State() != StateFatal {
		t.Errorf("expected fatal, got %s", s.State())
	}
	if steady.cleared.Load() == 0 {
		t.Error("expected steady observer's warnings cleared on fatal")
	}

	found := false
	for _, ev := range snk.snapshot() {
		if ev.Source == src && ev.Severity == domain.SeverityOk {
			found = true
		}
	}
	if !found {
		t.Error("expected Ok clear for the active warning after fatal escalation")
	}
}

func TestFatalEscalationGoesStraightToFatal(t *testing.T) {
	boom := newStubObserver("boom", func(ctx context.Context) error {
		return errors.New("sampler exploded")
	})

	src := domain.SourceID{Observer: "steady", Entity: "host-1", Property: "cpu"}
	steady := newStubObserver("steady", nil)
	steady.ledger.Commit(domain.NewHealthEvent(src, domain.EntityNode, domain.SeverityWarning, 90, "raised"))
	steady.ledger.Drain()

	var seen []State
	var mu sync.Mutex
	snk := &fakeSink{}
	s := New(Config{
		Interval:             time.Millisecond,
		RunTimeout:           time.Second,
		MaxConsecutiveFaults: 1,
	}, []observer.Observer{boom, steady}, snk, nil)
	snk.publish = func(ev domain.HealthEvent) {
		if ev.Severity == domain.SeverityOk {
			mu.Lock()
			seen = append(seen, s.State())
			mu.Unlock()
		}
	}

	if err := s.Run(context.Background()); !errors.Is(err, ErrFaultCeiling) {
		t.Fatalf("expected fault ceiling error, got %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) == 0 {
		t.Fatal("expected a clear publish during escalation")
	}
	for _, st := range seen {
		if st != StateFatal {
			t.Errorf("clear published while state was %s, want %s", st, StateFatal)
		}
	}
}

func TestStopClearsActiveWarnings(t *testing.T) {
	src := domain.SourceID{Observer: "node", Entity: "host-1", Property: "cpu"}
	warning := newStubObserver("node", nil)
	warning.runFn = func(ctx context.Context) error {
		warning.ledger.Commit(domain.NewHealthEvent(src, domain.EntityNode, domain.SeverityWarning, 92, "cpu high"))
		return nil
	}
	snk := &fakeSink{}

	s := New(Config{Interval: time.Hour, RunTimeout: time.Second}, []observer.Observer{warning}, snk, nil)
	go func() { _ = s.Run(context.Background()) }()

	waitFor(t, 2*time.Second, func() bool { return snk.count(domain.SeverityWarning) == 1 })

	stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Stop(stopCtx); err != nil {
		t.Fatalf("stop failed: %v", err)
	}

	if warning.HasActiveWarning() {
		t.Error("expected no active warnings after stop")
	}

	events := snk.snapshot()
	if len(events) != 2 {
		t.Fatalf("expected raise + clear, got %d events", len(events))
	}
	if events[0].Severity != domain.SeverityWarning || events[1].Severity != domain.SeverityOk {
		t.Errorf("expected warning then ok, got %s then %s", events[0].Severity, events[1].Severity)
	}
	if events[1].Source != src {
		t.Errorf("clear source %s does not match raise source %s", events[1].Source, src)
	}
}

func TestRepeatedVerdictPublishesOnce(t *testing.T) {
	src := domain.SourceID{Observer: "node", Entity: "host-1", Property: "memory"}
	ob := newStubObserver("node", nil)
	ob.runFn = func(ctx context.Context) error {
		// Same stable environment every cycle.
		ob.ledger.Commit(domain.NewHealthEvent(src, domain.EntityNode, domain.SeverityWarning, 88, "memory high"))
		return nil
	}
	snk := &fakeSink{}

	s := New(Config{Interval: time.Millisecond, RunTimeout: time.Second}, []observer.Observer{ob}, snk, nil)
	go func() { _ = s.Run(context.Background()) }()

	waitFor(t, 2*time.Second, func() bool { return ob.runs.Load() >= 3 })

	stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Stop(stopCtx); err != nil {
		t.Fatalf("stop failed: %v", err)
	}

	if got := snk.count(domain.SeverityWarning); got != 1 {
		t.Errorf("expected exactly 1 raise across cycles, got %d", got)
	}
	if got := snk.count(domain.SeverityOk); got != 1 {
		t.Errorf("expected exactly 1 clear on stop, got %d", got)
	}
}

func TestSchedulerIsNotRestartable(t *testing.T) {
	s := New(Config{Interval: time.Hour, RunTimeout: time.Second}, nil, &fakeSink{}, nil)
	go func() { _ = s.Run(context.Background()) }()

	stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Stop(stopCtx); err != nil {
		t.Fatalf("stop failed: %v", err)
	}

	if err := s.Run(context.Background()); !errors.Is(err, ErrNotRestartable) {
		t.Errorf("expected ErrNotRestartable, got %v", err)
	}
}

func TestDisabledObserverIsSkipped(t *testing.T) {
	off := newStubObserver("off", nil)
	off.enabled = false
	snk := &fakeSink{}

	s := New(Config{Interval: time.Millisecond, RunTimeout: time.Second}, []observer.Observer{off}, snk, nil)
	go func() { _ = s.Run(context.Background()) }()

	time.Sleep(50 * time.Millisecond)

	stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Stop(stopCtx); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if off.runs.Load() != 0 {
		t.Errorf("disabled observer ran %d times", off.runs.Load())
	}
}
