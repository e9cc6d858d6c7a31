package sysmetric

import (
	"context"
	"fmt"

	"github.com/prometheus/procfs"
)

// MemorySampler reads node memory-in-use percent from /proc/meminfo.
type MemorySampler struct {
	fs procfs.FS
}

func NewMemorySampler() (*MemorySampler, error) {
	fs, err := procfs.NewDefaultFS()
	if err != nil {
		return nil, fmt.Errorf("failed to open procfs: %w", err)
	}
	return &MemorySampler{fs: fs}, nil
}

func (s *MemorySampler) Sample(ctx context.Context, _ string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	info, err := s.fs.Meminfo()
	if err != nil {
		return 0, fmt.Errorf("failed to read /proc/meminfo: %w", err)
	}
	if info.MemTotal == nil || *info.MemTotal == 0 {
		return 0, fmt.Errorf("meminfo reported no total memory")
	}

	var available uint64
	if info.MemAvailable != nil {
		available = *info.MemAvailable
	} else if info.MemFree != nil {
		available = *info.MemFree
	}

	total := float64(*info.MemTotal)
	return (total - float64(available)) / total * 100, nil
}
