// Package control wires configuration into observers, sinks, the
// scheduler and the serving surfaces, and owns the agent lifecycle.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/minhvu/warden/internal/core/config"
	"github.com/minhvu/warden/internal/observer"
	"github.com/minhvu/warden/internal/scheduler"
	"github.com/minhvu/warden/internal/sink"
	"github.com/minhvu/warden/internal/sink/postgres"
)

// Warden is the main application struct that manages the agent lifecycle.
type Warden struct {
	cfg       *config.Config
	sched     *scheduler.Scheduler
	observers []observer.Observer
	sinks     *sink.Multi
	httpSrv   *Server
	grpcSrv   *GRPCServer
	log       *slog.Logger

	runErr chan error
}

// New creates a Warden with all dependencies initialized.
func New(cfg *config.Config) (*Warden, error) {
	log := slog.Default()

	// 1. Sinks. The log sink is always present; Redis and the Postgres
	// archive join when configured.
	sinks := []sink.Sink{sink.NewLogSink(log)}

	if cfg.Redis.URL != "" {
		rs, err := sink.NewRedisSink(sink.RedisConfig{
			URL:      cfg.Redis.URL,
			Password: cfg.Redis.Password,
		})
		if err != nil {
			// A down reporting backend must not stop data collection.
			log.Warn("Redis sink unavailable, continuing without it", "error", err)
		} else {
			sinks = append(sinks, rs)
			log.Info("Redis health sink enabled")
		}
	}

	if cfg.Database.URL != "" {
		archive, err := postgres.NewArchive(context.Background(), postgres.Config{
			URL:      cfg.Database.URL,
			MaxConns: cfg.Database.MaxConns,
			MinConns: cfg.Database.MinConns,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to init archive: %w", err)
		}
		if err := archive.Migrate(cfg.Database.MigrationsDir); err != nil {
			return nil, err
		}
		sinks = append(sinks, archive)
		log.Info("Postgres health archive enabled")
	}
	multi := sink.NewMulti(sinks...)

	// 2. Observers, in fixed list order so health-report ordering is
	// deterministic.
	candidates := []observer.Observer{
		observer.NewNodeObserver(cfg.Observers.Node),
		observer.NewDiskObserver(cfg.Observers.Disk),
		observer.NewCertificateObserver(cfg.Observers.Certificate),
		observer.NewNetworkObserver(cfg.Observers.Network),
		observer.NewAppObserver(cfg.Observers.App),
	}

	observers := make([]observer.Observer, 0, len(candidates))
	for _, ob := range candidates {
		if !ob.Enabled() {
			log.Info("Observer disabled", "observer", ob.Name())
			continue
		}
		if err := ob.Initialize(); err != nil {
			// Initialization trouble disables the observer; it never
			// takes the agent down.
			log.Warn("Observer initialization failed, disabling",
				"observer", ob.Name(), "error", err)
			continue
		}
		observers = append(observers, ob)
		log.Info("Observer initialized", "observer", ob.Name())
	}

	// 3. Scheduler.
	sched := scheduler.New(scheduler.Config{
		Interval:             cfg.Scheduler.Interval,
		RunTimeout:           cfg.Scheduler.RunTimeout,
		MaxConsecutiveFaults: cfg.Scheduler.MaxConsecutiveFaults,
	}, observers, multi, log)

	w := &Warden{
		cfg:       cfg,
		sched:     sched,
		observers: observers,
		sinks:     multi,
		httpSrv:   NewServer(sched, cfg.Server.Port),
		log:       log,
		runErr:    make(chan error, 1),
	}
	if cfg.GRPC.Port > 0 {
		w.grpcSrv = NewGRPCServer(sched, cfg.GRPC.Port)
	}
	return w, nil
}

// Start starts the serving surfaces and the scheduler loop.
func (w *Warden) Start(ctx context.Context) error {
	go func() {
		if err := w.httpSrv.Start(); err != nil {
			w.log.Error("Health server failed", "error", err)
		}
	}()

	if w.grpcSrv != nil {
		go func() {
			if err := w.grpcSrv.Start(ctx); err != nil {
				w.log.Error("gRPC health server failed", "error", err)
			}
		}()
	}

	go func() {
		w.runErr <- w.sched.Run(ctx)
	}()

	return nil
}

// Fatal delivers the scheduler's terminal error, if any. It yields once
// the loop exits.
func (w *Warden) Fatal() <-chan error { return w.runErr }

// Stop drains the scheduler (clearing all active warnings), then shuts
// down the serving surfaces and sinks.
func (w *Warden) Stop(ctx context.Context) error {
	w.log.Info("Stopping warden...")

	var errs []error
	if err := w.sched.Stop(ctx); err != nil {
		errs = append(errs, err)
	}
	if w.grpcSrv != nil {
		w.grpcSrv.Stop()
	}
	if err := w.httpSrv.Stop(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := w.sinks.Close(); err != nil {
		w.log.Warn("Failed to close sinks", "error", err)
	}
	return errors.Join(errs...)
}
