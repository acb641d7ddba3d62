// Package simsource defines the capability interface between the bridge and
// a simulated-vehicle state provider, plus the provider registry used to
// select a concrete implementation at startup.
package simsource

import (
	"context"
	"errors"
	"time"
)

// ErrNotReady is returned by providers when the simulator is disconnected
// or no flight session is active.
var ErrNotReady = errors.New("simsource: source not ready")

// Reading is one raw sample of named simulator variables. Values are keyed
// by the variable names in vars.go. A Reading is immutable once returned.
type Reading struct {
	Values     map[string]float64
	CapturedAt time.Time
}

// Value returns the named variable, or 0 when the provider did not report it.
func (r *Reading) Value(name string) float64 {
	if r == nil {
		return 0
	}
	return r.Values[name]
}

// Has reports whether the provider reported the named variable.
func (r *Reading) Has(name string) bool {
	if r == nil {
		return false
	}
	_, ok := r.Values[name]
	return ok
}

// EventKind identifies a session event delivered by a provider.
type EventKind string

const (
	EventOpen         EventKind = "open"
	EventQuit         EventKind = "quit"
	EventSessionStart EventKind = "session.start"
	EventSessionStop  EventKind = "session.stop"
	EventData         EventKind = "data"
)

// Event is one inbound provider notification. Providers deliver events on a
// single ordered channel so shared state is never mutated re-entrantly from
// multiple callback contexts.
type Event struct {
	Kind EventKind
	At   time.Time
}

// Source is the capability a simulated-vehicle state provider exposes to the
// bridge. Implementations must be safe for concurrent use: Sample and
// WriteValue may be called from different cadences.
type Source interface {
	// Name identifies the provider, matching its registry key.
	Name() string

	// Connect establishes the provider's connection to the simulator.
	// A failed Connect is retried by the caller at a fixed delay.
	Connect(ctx context.Context) error

	// Close tears the connection down. Safe to call more than once.
	Close() error

	// Ready reports whether the simulator is connected and a flight
	// session is active. Command batches are dropped while not ready.
	Ready() bool

	// Sample reads the current set of named values. Returns ErrNotReady
	// (possibly wrapped) when no data is available.
	Sample(ctx context.Context) (*Reading, error)

	// WriteValue sets a named simulator variable. This is the primary
	// write target for inbound commands.
	WriteValue(ctx context.Context, name string, value float64) error

	// SendEvent triggers a named simulator event with an encoded value.
	// This is the fallback write target when WriteValue fails.
	SendEvent(ctx context.Context, name string, value int64) error

	// Events returns the ordered session-event channel. The channel is
	// closed when the source is closed.
	Events() <-chan Event
}
