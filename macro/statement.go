// Package macro implements the time-sequenced event/action playback
// model: statements, macros, the macro library, the macro stack, and
// the async macro publisher that ticks through them.
package macro

import (
	"github.com/kros-robotics/kros/event"
)

// Statement is an immutable record pairing a label with either a
// publishable event or a callable, optional (Direction, Speed)
// arguments, and a derived duration in milliseconds. Equality is by
// label, duration, event ID and whether a callable is attached, not by
// direction/speed or by which callable it is.
type Statement struct {
	label      string
	event      event.Event
	function   func()
	direction  *event.Direction
	speed      *event.Speed
	durationMs int64
}

// NewEventStatement constructs a Statement that publishes evt after
// waiting durationMs.
func NewEventStatement(label string, evt event.Event, durationMs int64) Statement {
	return Statement{label: label, event: evt, durationMs: durationMs}
}

// NewLambdaStatement constructs a Statement that invokes fn instead of
// publishing an event. As in the original, supplying a function forces
// the statement's event to the LAMBDA marker regardless of any event
// value the caller might otherwise have supplied.
func NewLambdaStatement(label string, fn func(), durationMs int64) Statement {
	return Statement{label: label, event: event.LAMBDA, function: fn, durationMs: durationMs}
}

// WithDirectionSpeed attaches a (Direction, Speed) argument pair to a
// copy of s, used by chadburn-driving statements.
func (s Statement) WithDirectionSpeed(d event.Direction, sp event.Speed) Statement {
	s.direction = &d
	s.speed = &sp
	return s
}

func (s Statement) Label() string       { return s.label }
func (s Statement) IsLambda() bool      { return s.event.ID == event.LAMBDA.ID }
func (s Statement) Event() event.Event  { return s.event }
func (s Statement) Function() func()    { return s.function }
func (s Statement) DurationMs() int64   { return s.durationMs }

// Direction returns the statement's attached direction and whether one
// was set.
func (s Statement) Direction() (event.Direction, bool) {
	if s.direction == nil {
		return 0, false
	}
	return *s.direction, true
}

// Speed returns the statement's attached speed and whether one was set.
func (s Statement) Speed() (event.Speed, bool) {
	if s.speed == nil {
		return event.Speed{}, false
	}
	return *s.speed, true
}

// Equal reports whether s and other have the same label, duration and
// event ID and either both or neither carry a callable. Go function
// values are not comparable, so callable identity is not checked: two
// lambda statements with different closures but the same label,
// duration and event compare equal.
func (s Statement) Equal(other Statement) bool {
	if s.label != other.label || s.durationMs != other.durationMs || s.event.ID != other.event.ID {
		return false
	}
	return (s.function == nil) == (other.function == nil)
}
