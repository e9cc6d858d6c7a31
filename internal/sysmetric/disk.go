package sysmetric

import (
	"context"
	"fmt"

	"golang.org/x/sys/unix"
)

// DiskSampler reads space-used percent for a mount point via statfs.
type DiskSampler struct{}

func NewDiskSampler() *DiskSampler { return &DiskSampler{} }

func (s *DiskSampler) Sample(ctx context.Context, mount string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var st unix.Statfs_t
	if err := unix.Statfs(mount, &st); err != nil {
		return 0, fmt.Errorf("statfs %s: %w", mount, err)
	}
	if st.Blocks == 0 {
		return 0, fmt.Errorf("statfs %s: no blocks reported", mount)
	}

	// Bavail counts blocks available to unprivileged users, matching df.
	used := float64(st.Blocks-st.Bavail) / float64(st.Blocks) * 100
	return used, nil
}
