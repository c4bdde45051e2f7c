package auditlog

import "time"

// MaxEvents bounds a single Query.
const MaxEvents = 500

// Logger records connection events and reads them back. Emit never fails
// the caller: a lost audit row must not break a connect or sync.
type Logger interface {
	Emit(Event)
	Query(QueryFilter) ([]Event, error)
	Close() error
}

// QueryFilter narrows Query. Zero fields match everything.
type QueryFilter struct {
	Project    string
	ResourceID string
	Kinds      []EventKind
	Since      time.Time // inclusive
	Until      time.Time // exclusive
	Limit      int       // <= 0 or above MaxEvents means MaxEvents
}

func (f QueryFilter) limit() int {
	if f.Limit <= 0 || f.Limit > MaxEvents {
		return MaxEvents
	}
	return f.Limit
}

type EventOption func(*Event)

// WithResource names the team, channel or plan the event is about.
func WithResource(id string) EventOption {
	return func(e *Event) { e.ResourceID = id }
}

func WithDetail(detail string) EventOption {
	return func(e *Event) { e.Detail = detail }
}

// WithLevel overrides the default "info" level.
func WithLevel(level string) EventOption {
	return func(e *Event) { e.Level = level }
}

func NewEvent(kind EventKind, project, message string, opts ...EventOption) Event {
	e := Event{Kind: kind, Project: project, Message: message}
	for _, opt := range opts {
		opt(&e)
	}
	return e
}

// NopLogger returns a Logger that keeps nothing.
func NopLogger() Logger { return discard{} }

type discard struct{}

func (discard) Emit(Event)                         {}
func (discard) Query(QueryFilter) ([]Event, error) { return nil, nil }
func (discard) Close() error                       { return nil }
