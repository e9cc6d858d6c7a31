package health

import (
	"sort"
	"sync"

	"github.com/minhvu/warden/internal/core/domain"
)

// Ledger tracks the currently-active (non-Ok) health events of one
// observer and stages verdict transitions for publication. It guarantees
// raise-once / clear-once semantics: committing the same severity for a
// source again stages nothing, and an Ok commit stages a clear only when
// that source was active.
type Ledger struct {
	mu      sync.Mutex
	active  map[string]domain.HealthEvent
	pending []domain.HealthEvent
}

func NewLedger() *Ledger {
	return &Ledger{active: make(map[string]domain.HealthEvent)}
}

// Commit records a verdict atomically for its source. It returns true when
// the verdict is a transition that was staged for publication.
func (l *Ledger) Commit(ev domain.HealthEvent) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := ev.Source.String()
	prev, wasActive := l.active[key]

	if ev.Severity == domain.SeverityOk {
		if !wasActive {
			return false
		}
		delete(l.active, key)
		l.pending = append(l.pending, ev)
		return true
	}

	if wasActive && prev.Severity == ev.Severity {
		// Same condition still holding; the raise was already published.
		l.active[key] = ev
		return false
	}
	l.active[key] = ev
	l.pending = append(l.pending, ev)
	return true
}

// Drain returns staged events in commit order and clears the stage.
func (l *Ledger) Drain() []domain.HealthEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := l.pending
	l.pending = nil
	return out
}

// Restage puts events back at the front of the stage after a failed
// publish, preserving their original order.
func (l *Ledger) Restage(events []domain.HealthEvent) {
	if len(events) == 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pending = append(append([]domain.HealthEvent{}, events...), l.pending...)
}

// HasActive reports whether any non-Ok entry is currently tracked.
func (l *Ledger) HasActive() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.active) > 0
}

// ActiveCount returns the number of active entries.
func (l *Ledger) ActiveCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.active)
}

// ActiveEvents returns the last-committed event per active source, ordered
// by source ID for deterministic publication.
func (l *Ledger) ActiveEvents() []domain.HealthEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.HealthEvent, 0, len(l.active))
	for _, ev := range l.active {
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Source.String() < out[j].Source.String()
	})
	return out
}
