package observer

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/minhvu/warden/internal/core/config"
	"github.com/minhvu/warden/internal/core/domain"
	"github.com/minhvu/warden/internal/core/series"
	"github.com/minhvu/warden/internal/sysmetric"
)

const AppObserverName = "application"

// ProcessSource is the per-process metric collaborator the app observer
// samples from.
type ProcessSource interface {
	CPUPercent(ctx context.Context, name string) (float64, error)
	ResidentMB(ctx context.Context, name string) (float64, error)
}

// AppObserver watches per-application process CPU and resident memory.
// Sampling fans out across targets bounded by the configured concurrency;
// each target owns its own series, and ledger commits are serialized by
// the ledger itself.
type AppObserver struct {
	tracker
	cfg config.AppConfig

	source    ProcessSource
	overrides map[string]config.AppOverride

	cpuSeries map[string]*series.Series
	memSeries map[string]*series.Series
}

func NewAppObserver(cfg config.AppConfig) *AppObserver {
	return &AppObserver{
		tracker: newTracker(AppObserverName, cfg.Enabled),
		cfg:     cfg,
	}
}

// NewAppObserverWith injects the process source, used by tests.
func NewAppObserverWith(cfg config.AppConfig, source ProcessSource) *AppObserver {
	o := NewAppObserver(cfg)
	o.source = source
	return o
}

func (o *AppObserver) Initialize() error {
	if o.source == nil {
		s, err := sysmetric.NewProcessStats()
		if err != nil {
			return fmt.Errorf("app observer: %w", err)
		}
		o.source = s
	}

	overrides, err := config.LoadAppOverrides(o.cfg.OverridesFile)
	if err != nil {
		// Bad side-file degrades to base thresholds rather than failing
		// the observer.
		o.log.Warn("Overrides file unusable, using base thresholds", "error", err)
		overrides = make(map[string]config.AppOverride)
	}
	o.overrides = overrides

	o.cpuSeries = make(map[string]*series.Series, len(o.cfg.Targets))
	o.memSeries = make(map[string]*series.Series, len(o.cfg.Targets))
	for _, t := range o.cfg.Targets {
		o.cpuSeries[t.Name] = series.New("cpu_percent", o.cfg.SampleWindow)
		o.memSeries[t.Name] = series.New("memory_mb", o.cfg.SampleWindow)
	}
	return nil
}

func (o *AppObserver) Run(ctx context.Context) error {
	start := o.beginRun()
	err := o.observe(ctx)
	o.endRun(start, err)
	return err
}

func (o *AppObserver) observe(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	limit := o.cfg.MaxConcurrency
	if limit < 1 {
		limit = 1
	}
	g.SetLimit(limit)

	for _, target := range o.cfg.Targets {
		target := target
		g.Go(func() error {
			return o.observeTarget(ctx, target)
		})
	}
	return g.Wait()
}

func (o *AppObserver) observeTarget(ctx context.Context, target config.AppTarget) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cpuT, memT := o.thresholdsFor(target.Name)

	cpu, err := o.source.CPUPercent(ctx, target.Process)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		o.log.Warn("CPU sample failed, skipping", "app", target.Name, "error", err)
	} else {
		ser := o.cpuSeries[target.Name]
		ser.Append(cpu)
		if avg, err := ser.Average(); err == nil {
			src := domain.SourceID{Observer: o.name, Entity: target.Name, Property: "cpu"}
			sev := series.Evaluate(avg, cpuT, series.PercentCeiling)
			o.commit(src, domain.EntityApplication, sev, avg, usageMessage("cpu", avg, sev, cpuT))
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	mem, err := o.source.ResidentMB(ctx, target.Process)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		o.log.Warn("Memory sample failed, skipping", "app", target.Name, "error", err)
		return nil
	}
	ser := o.memSeries[target.Name]
	ser.Append(mem)
	if avg, err := ser.Average(); err == nil {
		src := domain.SourceID{Observer: o.name, Entity: target.Name, Property: "memory"}
		sev := series.Evaluate(avg, memT, 0)
		o.commit(src, domain.EntityApplication, sev, avg, memoryMessage(avg, sev, memT))
	}
	return nil
}

// thresholdsFor resolves the effective thresholds for one application,
// applying the side-file override where present.
func (o *AppObserver) thresholdsFor(app string) (cpu, mem series.Thresholds) {
	cpu = series.Thresholds{Warning: o.cfg.CPUWarning, Error: o.cfg.CPUError}
	mem = series.Thresholds{Warning: o.cfg.MemoryWarningMB, Error: o.cfg.MemoryErrorMB}

	ov, ok := o.overrides[app]
	if !ok {
		return cpu, mem
	}
	if ov.CPUWarning != nil {
		cpu.Warning = *ov.CPUWarning
	}
	if ov.CPUError != nil {
		cpu.Error = *ov.CPUError
	}
	if ov.MemoryWarningMB != nil {
		mem.Warning = *ov.MemoryWarningMB
	}
	if ov.MemoryErrorMB != nil {
		mem.Error = *ov.MemoryErrorMB
	}
	return cpu, mem
}

func memoryMessage(value float64, sev domain.Severity, t series.Thresholds) string {
	switch sev {
	case domain.SeverityError:
		return fmt.Sprintf("resident memory %.1f MB is at or above error threshold %.1f MB", value, t.Error)
	case domain.SeverityWarning:
		return fmt.Sprintf("resident memory %.1f MB is at or above warning threshold %.1f MB", value, t.Warning)
	default:
		return fmt.Sprintf("resident memory %.1f MB is within limits", value)
	}
}
