package sysmetric

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/procfs"
)

// ProcessStats samples CPU percent and resident memory for processes
// resolved by comm name. CPU percent is computed over the interval since
// the previous reading for the same name; the first reading returns 0.
type ProcessStats struct {
	fs   procfs.FS
	mu   sync.Mutex
	prev map[string]procReading
}

type procReading struct {
	cpuSeconds float64
	at         time.Time
}

func NewProcessStats() (*ProcessStats, error) {
	fs, err := procfs.NewDefaultFS()
	if err != nil {
		return nil, fmt.Errorf("failed to open procfs: %w", err)
	}
	return &ProcessStats{fs: fs, prev: make(map[string]procReading)}, nil
}

// CPUPercent returns the aggregate CPU percent of all processes whose comm
// matches name.
func (p *ProcessStats) CPUPercent(ctx context.Context, name string) (float64, error) {
	total, _, err := p.collect(ctx, name)
	if err != nil {
		return 0, err
	}

	now := time.Now()
	p.mu.Lock()
	defer p.mu.Unlock()

	prev, ok := p.prev[name]
	p.prev[name] = procReading{cpuSeconds: total, at: now}
	if !ok {
		return 0, nil
	}

	wall := now.Sub(prev.at).Seconds()
	if wall <= 0 {
		return 0, nil
	}
	busy := (total - prev.cpuSeconds) / wall * 100
	if busy < 0 {
		busy = 0
	}
	return busy, nil
}

// ResidentMB returns the aggregate resident memory in megabytes of all
// processes whose comm matches name.
func (p *ProcessStats) ResidentMB(ctx context.Context, name string) (float64, error) {
	_, rssBytes, err := p.collect(ctx, name)
	if err != nil {
		return 0, err
	}
	return float64(rssBytes) / (1024 * 1024), nil
}

// collect walks /proc once and sums CPU seconds and resident bytes for
// matching processes. A name with no matches is an error so the observer
// can surface a missing application.
func (p *ProcessStats) collect(ctx context.Context, name string) (float64, int, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}

	procs, err := p.fs.AllProcs()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to list processes: %w", err)
	}

	var cpuSeconds float64
	var rssBytes int
	matched := false
	for _, proc := range procs {
		comm, err := proc.Comm()
		if err != nil || comm != name {
			continue
		}
		stat, err := proc.Stat()
		if err != nil {
			// Process exited between listing and reading; skip it.
			continue
		}
		matched = true
		cpuSeconds += stat.CPUTime()
		rssBytes += stat.ResidentMemory()
	}
	if !matched {
		return 0, 0, fmt.Errorf("no process matches %q", name)
	}
	return cpuSeconds, rssBytes, nil
}
