package observer

import (
	"context"

	"github.com/minhvu/warden/internal/core/config"
	"github.com/minhvu/warden/internal/core/domain"
	"github.com/minhvu/warden/internal/core/series"
	"github.com/minhvu/warden/internal/sysmetric"
)

const DiskObserverName = "disk"

// DiskObserver watches space-used percent per configured mount point. Each
// mount is its own health source.
type DiskObserver struct {
	tracker
	cfg     config.DiskConfig
	sampler sysmetric.Sampler
}

func NewDiskObserver(cfg config.DiskConfig) *DiskObserver {
	return &DiskObserver{
		tracker: newTracker(DiskObserverName, cfg.Enabled),
		cfg:     cfg,
	}
}

// NewDiskObserverWith injects the metric source, used by tests.
func NewDiskObserverWith(cfg config.DiskConfig, sampler sysmetric.Sampler) *DiskObserver {
	o := NewDiskObserver(cfg)
	o.sampler = sampler
	return o
}

func (o *DiskObserver) Initialize() error {
	if o.sampler == nil {
		o.sampler = sysmetric.NewDiskSampler()
	}
	return nil
}

func (o *DiskObserver) Run(ctx context.Context) error {
	start := o.beginRun()
	err := o.observe(ctx)
	o.endRun(start, err)
	return err
}

func (o *DiskObserver) observe(ctx context.Context) error {
	thresholds := series.Thresholds{Warning: o.cfg.SpaceWarning, Error: o.cfg.SpaceError}

	for _, mount := range o.cfg.Mounts {
		if err := ctx.Err(); err != nil {
			return err
		}

		used, err := o.sampler.Sample(ctx, mount)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			o.log.Warn("Sample failed, skipping", "mount", mount, "error", err)
			continue
		}

		src := domain.SourceID{Observer: o.name, Entity: mount, Property: "space"}
		sev := series.Evaluate(used, thresholds, series.PercentCeiling)
		o.commit(src, domain.EntityNode, sev, used, usageMessage("disk space", used, sev, thresholds))
	}
	return nil
}
