package observer

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/minhvu/warden/internal/core/config"
	"github.com/minhvu/warden/internal/core/domain"
)

// =============================================================================
// Stubs
// =============================================================================

type stubSampler struct {
	value float64
	err   error
}

func (s *stubSampler) Sample(ctx context.Context, _ string) (float64, error) {
	return s.value, s.err
}

type captureSink struct {
	mu     sync.Mutex
	events []domain.HealthEvent
}

func (c *captureSink) Name() string { return "capture" }

func (c *captureSink) Publish(_ context.Context, ev domain.HealthEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return nil
}

func (c *captureSink) Close() error { return nil }

func (c *captureSink) bySeverity(sev domain.Severity) []domain.HealthEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []domain.HealthEvent
	for _, ev := range c.events {
		if ev.Severity == sev {
			out = append(out, ev)
		}
	}
	return out
}

// =============================================================================
// Tests
// =============================================================================

func TestNodeObserverRaisesWarningOnce(t *testing.T) {
	cfg := config.NodeConfig{
		Enabled:    true,
		CPUWarning: 80,
		CPUError:   95,
	}
	ob := NewNodeObserverWith(cfg, &stubSampler{value: 90}, &stubSampler{value: 10})
	if err := ob.Initialize(); err != nil {
		t.Fatalf("initialize failed: %v", err)
	}

	snk := &captureSink{}
	ctx := context.Background()

	// Two runs with the same stable environment.
	for i := 0; i < 2; i++ {
		if err := ob.Run(ctx); err != nil {
			t.Fatalf("run %d failed: %v", i, err)
		}
		if err := ob.Report(ctx, snk); err != nil {
			t.Fatalf("report %d failed: %v", i, err)
		}
	}

	warnings := snk.bySeverity(domain.SeverityWarning)
	if len(warnings) != 1 {
		t.Fatalf("expected exactly 1 warning event, got %d", len(warnings))
	}
	if warnings[0].Source.Property != "cpu" {
		t.Errorf("expected cpu source, got %s", warnings[0].Source)
	}
	if !ob.HasActiveWarning() {
		t.Error("expected active warning")
	}
	if ob.Faulted() {
		t.Error("a resource warning is not an internal fault")
	}
}

func TestNodeObserverErrorVerdict(t *testing.T) {
	cfg := config.NodeConfig{Enabled: true, CPUWarning: 80, CPUError: 95}
	ob := NewNodeObserverWith(cfg, &stubSampler{value: 97}, &stubSampler{value: 10})
	if err := ob.Initialize(); err != nil {
		t.Fatalf("initialize failed: %v", err)
	}

	snk := &captureSink{}
	if err := ob.Run(context.Background()); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if err := ob.Report(context.Background(), snk); err != nil {
		t.Fatalf("report failed: %v", err)
	}

	if got := snk.bySeverity(domain.SeverityError); len(got) != 1 {
		t.Fatalf("expected 1 error event, got %d", len(got))
	}
}

func TestNodeObserverNegativeThresholdNeverRaises(t *testing.T) {
	cfg := config.NodeConfig{
		Enabled:       true,
		CPUWarning:    -1000,
		CPUError:      -1,
		MemoryWarning: -50,
	}
	ob := NewNodeObserverWith(cfg, &stubSampler{value: 99}, &stubSampler{value: 99})
	if err := ob.Initialize(); err != nil {
		t.Fatalf("initialize failed: %v", err)
	}

	if err := ob.Run(context.Background()); err != nil {
		t.Fatalf("expected no fault from bad config, got %v", err)
	}
	if ob.HasActiveWarning() {
		t.Error("disabled thresholds must never raise")
	}
	if ob.Faulted() {
		t.Error("bad config is not a fault")
	}
}

func TestNodeObserverClearsWhenConditionResolves(t *testing.T) {
	cpu := &stubSampler{value: 90}
	cfg := config.NodeConfig{Enabled: true, CPUWarning: 80, CPUError: 95, SampleWindow: 1}
	ob := NewNodeObserverWith(cfg, cpu, &stubSampler{value: 10})
	if err := ob.Initialize(); err != nil {
		t.Fatalf("initialize failed: %v", err)
	}

	snk := &captureSink{}
	ctx := context.Background()

	if err := ob.Run(ctx); err != nil {
		t.Fatal(err)
	}
	_ = ob.Report(ctx, snk)

	cpu.value = 20 // condition resolves
	if err := ob.Run(ctx); err != nil {
		t.Fatal(err)
	}
	_ = ob.Report(ctx, snk)

	if len(snk.bySeverity(domain.SeverityWarning)) != 1 {
		t.Error("expected one raise")
	}
	oks := snk.bySeverity(domain.SeverityOk)
	if len(oks) != 1 {
		t.Fatalf("expected one clear, got %d", len(oks))
	}
	if ob.HasActiveWarning() {
		t.Error("expected ledger cleared after Ok verdict")
	}
}

func TestNodeObserverSamplerFailureIsRecoverable(t *testing.T) {
	cfg := config.NodeConfig{Enabled: true, CPUWarning: 80}
	ob := NewNodeObserverWith(cfg,
		&stubSampler{err: errors.New("proc unavailable")},
		&stubSampler{value: 10})
	if err := ob.Initialize(); err != nil {
		t.Fatalf("initialize failed: %v", err)
	}

	if err := ob.Run(context.Background()); err != nil {
		t.Fatalf("sampler failure must not fault the run: %v", err)
	}
	if ob.Faulted() {
		t.Error("sampler failure must not set the fault flag")
	}
}

func TestNodeObserverHonorsCancellation(t *testing.T) {
	cfg := config.NodeConfig{Enabled: true, CPUWarning: 80}
	ob := NewNodeObserverWith(cfg, &stubSampler{value: 90}, &stubSampler{value: 10})
	if err := ob.Initialize(); err != nil {
		t.Fatalf("initialize failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := ob.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if ob.Faulted() {
		t.Error("cancellation is not an internal fault")
	}
}
