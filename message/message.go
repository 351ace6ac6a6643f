// Package message implements the envelope carried on the bus: a unique
// id, a creation timestamp, an event, an optional scalar value, an
// expiry flag, and the per-subscriber ack set used to guarantee
// exactly-once-per-interested-subscriber delivery.
package message

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kros-robotics/kros/event"
)

// Value is the optional scalar a message carries: a distance in cm, a
// velocity setpoint, a (Direction, Speed) pair, or a timestamp. Exactly
// one field is meaningful per message; which one is a convention of the
// publisher that created it.
type Value struct {
	Number    float64
	Direction event.Direction
	Speed     event.Speed
	Time      time.Time
}

// Payload is a message's body: event, value and priority, independent of
// the ack-tracking envelope. It is what the arbitrator queues and what
// controllers receive.
type Payload struct {
	Event    event.Event
	Value    Value
	Priority int
}

// Message is the full envelope placed on the bus queue.
type Message struct {
	ID        string
	CreatedAt time.Time
	Payload   Payload

	mu      sync.Mutex
	expired bool
	acked   map[string]bool
}

// New constructs a Message for evt carrying value, stamped with the
// current time and a fresh UUID.
func New(evt event.Event, value Value) *Message {
	return &Message{
		ID:        uuid.NewString(),
		CreatedAt: time.Now(),
		Payload:   Payload{Event: evt, Value: value, Priority: evt.Priority},
		acked:     make(map[string]bool),
	}
}

// Event is a convenience accessor for m.Payload.Event.
func (m *Message) Event() event.Event { return m.Payload.Event }

// Age returns how long ago the message was created, in milliseconds.
// Age is monotonic by construction: it is derived from CreatedAt, which
// never changes.
func (m *Message) Age() int64 {
	return time.Since(m.CreatedAt).Milliseconds()
}

// Expire marks the message expired. Once set, it never clears: a
// message's expired flag only ever moves from false to true.
func (m *Message) Expire() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expired = true
}

// IsExpired reports m.expired || m.Age() > maxAgeMs.
func (m *Message) IsExpired(maxAgeMs int64) bool {
	m.mu.Lock()
	expired := m.expired
	m.mu.Unlock()
	return expired || m.Age() > maxAgeMs
}

// Ack records that subscriberName has processed this message. Acking is
// idempotent: acking twice from the same subscriber has no additional
// effect.
func (m *Message) Ack(subscriberName string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.acked[subscriberName] = true
}

// Acked reports whether subscriberName has already acked this message.
func (m *Message) Acked(subscriberName string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.acked[subscriberName]
}

// FullyAcked reports whether every name in interested has acked the
// message, meaning a cleanup subscriber may sink it.
func (m *Message) FullyAcked(interested []string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, name := range interested {
		if !m.acked[name] {
			return false
		}
	}
	return true
}

// Factory constructs Messages from (event, duration) pairs, the form
// used by the macro publisher when a statement's event fires. The
// duration becomes the message's Value.Number so downstream consumers
// (e.g. a chadburn handler needing "how long to hold this speed") can
// read it back.
type Factory struct{}

// NewFactory returns a message factory. It carries no state; it exists
// as a named collaborator because the specification's process lifecycle
// names message-factory construction as an explicit startup step.
func NewFactory() *Factory { return &Factory{} }

// CreateMessage builds a Message for evt, stashing durationMs in the
// message's scalar value. Returns nil if evt is the LAMBDA marker, which
// is never itself publishable.
func (f *Factory) CreateMessage(evt event.Event, durationMs int64) *Message {
	if evt.ID == event.LAMBDA.ID {
		return nil
	}
	return New(evt, Value{Number: float64(durationMs)})
}
