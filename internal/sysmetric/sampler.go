// Package sysmetric implements the metric-source collaborators observers
// sample from: procfs readers for CPU, memory and per-process usage, and a
// statfs reader for disk space. Failures here are recoverable by contract;
// observers skip the sample and continue the run.
package sysmetric

import "context"

// Sampler provides one numeric reading for a target. The meaning of the
// target string is sampler-specific (mount point, process name); samplers
// for node-wide quantities ignore it.
type Sampler interface {
	Sample(ctx context.Context, target string) (float64, error)
}
