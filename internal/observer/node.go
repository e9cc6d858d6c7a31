package observer

import (
	"context"
	"fmt"
	"os"

	"github.com/minhvu/warden/internal/core/config"
	"github.com/minhvu/warden/internal/core/domain"
	"github.com/minhvu/warden/internal/core/series"
	"github.com/minhvu/warden/internal/sysmetric"
)

const NodeObserverName = "node"

// NodeObserver watches node-wide CPU and memory usage. Each quantity keeps
// a rolling series and the verdict is taken over the window average, so a
// single spike does not flap the health state.
type NodeObserver struct {
	tracker
	cfg config.NodeConfig

	cpu sysmetric.Sampler
	mem sysmetric.Sampler

	cpuSeries *series.Series
	memSeries *series.Series
	node      string
}

func NewNodeObserver(cfg config.NodeConfig) *NodeObserver {
	return &NodeObserver{
		tracker: newTracker(NodeObserverName, cfg.Enabled),
		cfg:     cfg,
	}
}

// NewNodeObserverWith injects the metric sources, used by tests.
func NewNodeObserverWith(cfg config.NodeConfig, cpu, mem sysmetric.Sampler) *NodeObserver {
	o := NewNodeObserver(cfg)
	o.cpu = cpu
	o.mem = mem
	return o
}

func (o *NodeObserver) Initialize() error {
	if o.cpu == nil {
		s, err := sysmetric.NewCPUSampler()
		if err != nil {
			return fmt.Errorf("node observer: %w", err)
		}
		o.cpu = s
	}
	if o.mem == nil {
		s, err := sysmetric.NewMemorySampler()
		if err != nil {
			return fmt.Errorf("node observer: %w", err)
		}
		o.mem = s
	}

	host, err := os.Hostname()
	if err != nil {
		host = "localhost"
	}
	o.node = host
	o.cpuSeries = series.New("cpu_percent", o.cfg.SampleWindow)
	o.memSeries = series.New("memory_percent", o.cfg.SampleWindow)
	return nil
}

func (o *NodeObserver) Run(ctx context.Context) error {
	start := o.beginRun()
	err := o.observe(ctx)
	o.endRun(start, err)
	return err
}

func (o *NodeObserver) observe(ctx context.Context) error {
	cpuThresholds := series.Thresholds{Warning: o.cfg.CPUWarning, Error: o.cfg.CPUError}
	if err := o.check(ctx, o.cpu, o.cpuSeries, "cpu", cpuThresholds); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	memThresholds := series.Thresholds{Warning: o.cfg.MemoryWarning, Error: o.cfg.MemoryError}
	return o.check(ctx, o.mem, o.memSeries, "memory", memThresholds)
}

// check takes one sample, folds it into the series and commits the verdict
// for the window average. A sampler failure skips the sample and the run
// continues; the source keeps its previous verdict.
func (o *NodeObserver) check(ctx context.Context, sampler sysmetric.Sampler, ser *series.Series, property string, t series.Thresholds) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	value, err := sampler.Sample(ctx, "")
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		o.log.Warn("Sample failed, skipping", "property", property, "error", err)
		return nil
	}

	ser.Append(value)
	avg, err := ser.Average()
	if err != nil {
		return nil
	}

	src := domain.SourceID{Observer: o.name, Entity: o.node, Property: property}
	sev := series.Evaluate(avg, t, series.PercentCeiling)
	o.commit(src, domain.EntityNode, sev, avg, usageMessage(property, avg, sev, t))
	return nil
}

func usageMessage(property string, value float64, sev domain.Severity, t series.Thresholds) string {
	switch sev {
	case domain.SeverityError:
		return fmt.Sprintf("%s usage %.1f%% is at or above error threshold %.1f%%", property, value, t.Error)
	case domain.SeverityWarning:
		return fmt.Sprintf("%s usage %.1f%% is at or above warning threshold %.1f%%", property, value, t.Warning)
	default:
		return fmt.Sprintf("%s usage %.1f%% is within limits", property, value)
	}
}
