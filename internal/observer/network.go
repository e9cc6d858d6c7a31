package observer

import (
	"context"
	"fmt"
	"net"

	"github.com/minhvu/warden/internal/core/config"
	"github.com/minhvu/warden/internal/core/domain"
)

const NetworkObserverName = "network"

// NetworkObserver checks TCP reachability of configured endpoints. A single
// failed dial is a recoverable sample; the warning raises only after the
// configured number of consecutive failures.
type NetworkObserver struct {
	tracker
	cfg config.NetworkConfig

	// dial is injectable for tests.
	dial func(ctx context.Context, addr string) error

	failures map[string]int
}

func NewNetworkObserver(cfg config.NetworkConfig) *NetworkObserver {
	o := &NetworkObserver{
		tracker:  newTracker(NetworkObserverName, cfg.Enabled),
		cfg:      cfg,
		failures: make(map[string]int),
	}
	o.dial = o.tcpDial
	return o
}

func (o *NetworkObserver) Initialize() error { return nil }

func (o *NetworkObserver) tcpDial(ctx context.Context, addr string) error {
	dialCtx, cancel := context.WithTimeout(ctx, o.cfg.DialTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		return err
	}
	return conn.Close()
}

func (o *NetworkObserver) Run(ctx context.Context) error {
	start := o.beginRun()
	err := o.observe(ctx)
	o.endRun(start, err)
	return err
}

func (o *NetworkObserver) observe(ctx context.Context) error {
	threshold := o.cfg.FailureThreshold
	if threshold < 1 {
		threshold = 1
	}

	for _, ep := range o.cfg.Endpoints {
		if err := ctx.Err(); err != nil {
			return err
		}

		src := domain.SourceID{Observer: o.name, Entity: ep, Property: "reachability"}
		if err := o.dial(ctx, ep); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			o.failures[ep]++
			o.log.Warn("Endpoint unreachable", "endpoint", ep, "consecutive", o.failures[ep], "error", err)
			if o.failures[ep] >= threshold {
				msg := fmt.Sprintf("endpoint %s unreachable for %d consecutive checks", ep, o.failures[ep])
				o.commit(src, domain.EntityService, domain.SeverityWarning, float64(o.failures[ep]), msg)
			}
			continue
		}

		o.failures[ep] = 0
		o.commit(src, domain.EntityService, domain.SeverityOk, 0,
			fmt.Sprintf("endpoint %s reachable", ep))
	}
	return nil
}
