package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ObserverRuns tracks completed observer runs per observer
	ObserverRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warden_observer_runs_total",
			Help: "Total number of observer runs",
		},
		[]string{"observer"},
	)

	// ObserverFaults tracks run faults per observer and fault kind
	ObserverFaults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warden_observer_faults_total",
			Help: "Total number of observer run faults",
		},
		[]string{"observer", "kind"},
	)

	// RunDuration tracks observer run duration
	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "warden_observer_run_duration_seconds",
			Help:    "Observer run duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"observer"},
	)

	// HealthEvents tracks published health events per observer and severity
	HealthEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warden_health_events_total",
			Help: "Total number of published health events",
		},
		[]string{"observer", "severity"},
	)

	// ActiveWarnings tracks currently active non-Ok sources per observer
	ActiveWarnings = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "warden_active_warnings",
			Help: "Number of currently active warning or error sources",
		},
		[]string{"observer"},
	)

	// SchedulerCycles tracks completed scheduler cycles
	SchedulerCycles = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "warden_scheduler_cycles_total",
			Help: "Total number of completed scheduler cycles",
		},
	)

	// SinkErrors tracks publish failures per sink
	SinkErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warden_sink_errors_total",
			Help: "Total number of health sink publish failures",
		},
		[]string{"sink"},
	)
)
