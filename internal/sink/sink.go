// Package sink contains the health report surfaces events are published
// to. Sink failures are always recoverable: the caller logs them and
// retries on the next reporting phase.
package sink

import (
	"context"
	"errors"
	"log/slog"

	"github.com/minhvu/warden/internal/core/domain"
)

// Sink publishes health events to an external health surface. Events for a
// given source ID arrive in emission order; the scheduler serializes the
// reporting phase.
type Sink interface {
	Name() string
	Publish(ctx context.Context, ev domain.HealthEvent) error
	Close() error
}

// LogSink writes every event to the structured log. It is always present
// so transitions remain visible with no external surface configured.
type LogSink struct {
	log *slog.Logger
}

func NewLogSink(log *slog.Logger) *LogSink {
	if log == nil {
		log = slog.Default()
	}
	return &LogSink{log: log}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Publish(_ context.Context, ev domain.HealthEvent) error {
	attrs := []any{
		"source", ev.Source.String(),
		"kind", string(ev.Kind),
		"severity", ev.Severity.String(),
		"value", ev.Value,
		"message", ev.Message,
	}
	switch ev.Severity {
	case domain.SeverityError:
		s.log.Error("Health event", attrs...)
	case domain.SeverityWarning:
		s.log.Warn("Health event", attrs...)
	default:
		s.log.Info("Health event", attrs...)
	}
	return nil
}

func (s *LogSink) Close() error { return nil }

// Multi fans out to several sinks. A failure in one sink does not stop
// delivery to the others; errors are joined.
type Multi struct {
	sinks []Sink
}

func NewMulti(sinks ...Sink) *Multi { return &Multi{sinks: sinks} }

func (m *Multi) Name() string { return "multi" }

func (m *Multi) Publish(ctx context.Context, ev domain.HealthEvent) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Multi) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
