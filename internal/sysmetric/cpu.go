package sysmetric

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/procfs"
)

// CPUSampler reads node-wide CPU busy percent from /proc/stat. Readings
// are computed over the interval since the previous call; the first call
// covers the interval since boot.
type CPUSampler struct {
	fs        procfs.FS
	mu        sync.Mutex
	prevIdle  float64
	prevTotal float64
	seeded    bool
}

func NewCPUSampler() (*CPUSampler, error) {
	fs, err := procfs.NewDefaultFS()
	if err != nil {
		return nil, fmt.Errorf("failed to open procfs: %w", err)
	}
	return &CPUSampler{fs: fs}, nil
}

func (s *CPUSampler) Sample(ctx context.Context, _ string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	stat, err := s.fs.Stat()
	if err != nil {
		return 0, fmt.Errorf("failed to read /proc/stat: %w", err)
	}

	c := stat.CPUTotal
	idle := c.Idle + c.Iowait
	total := idle + c.User + c.Nice + c.System + c.IRQ + c.SoftIRQ + c.Steal

	s.mu.Lock()
	defer s.mu.Unlock()

	idleDelta := idle - s.prevIdle
	totalDelta := total - s.prevTotal
	seeded := s.seeded
	s.prevIdle = idle
	s.prevTotal = total
	s.seeded = true

	if !seeded || totalDelta <= 0 {
		if total <= 0 {
			return 0, nil
		}
		return (total - idle) / total * 100, nil
	}
	busy := (totalDelta - idleDelta) / totalDelta * 100
	if busy < 0 {
		busy = 0
	}
	return busy, nil
}
