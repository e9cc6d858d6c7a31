package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Severity is the verdict level of a health event.
type Severity int

const (
	SeverityOk Severity = iota
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityOk:
		return "ok"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// EntityKind classifies the target of a health verdict.
type EntityKind string

const (
	EntityNode        EntityKind = "node"
	EntityApplication EntityKind = "application"
	EntityService     EntityKind = "service"
	EntityPackage     EntityKind = "package"
)

// SourceID identifies one monitored condition. It stays stable across
// repeated raises so that a later Ok event clears exactly the matching
// prior event in the sink.
type SourceID struct {
	Observer string
	Entity   string
	Property string
}

func (s SourceID) String() string {
	return s.Observer + ":" + s.Entity + ":" + s.Property
}

// HealthEvent is a single health verdict tied to a stable source identity.
type HealthEvent struct {
	ID        uuid.UUID
	Source    SourceID
	Kind      EntityKind
	Severity  Severity
	Value     float64
	Message   string
	Timestamp time.Time
}

// NewHealthEvent builds an event with a fresh ID and the current time.
func NewHealthEvent(src SourceID, kind EntityKind, sev Severity, value float64, msg string) HealthEvent {
	return HealthEvent{
		ID:        uuid.New(),
		Source:    src,
		Kind:      kind,
		Severity:  sev,
		Value:     value,
		Message:   msg,
		Timestamp: time.Now(),
	}
}

// OkFor returns the clearing counterpart of an active event: same source
// and entity kind, Ok severity.
func OkFor(ev HealthEvent, msg string) HealthEvent {
	return NewHealthEvent(ev.Source, ev.Kind, SeverityOk, 0, msg)
}
