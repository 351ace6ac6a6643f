package macro

import (
	"sync"

	"github.com/kros-robotics/kros/event"
	"github.com/kros-robotics/kros/message"
	"github.com/kros-robotics/kros/queue"
)

// Macro is a named, optionally described, ordered queue of statements.
// It may carry an attached payload to be published on completion.
// Statement order is preserved from insertion: the statement queue is a
// FIFO-mode, unbounded queue.DeQueue, the generic bounded container
// spec §3 names for exactly this use.
type Macro struct {
	mu          sync.Mutex
	name        string
	description string
	statements  *queue.DeQueue[Statement]
	payload     *message.Payload
}

// New constructs an empty Macro.
func New(name, description string) *Macro {
	return &Macro{name: name, description: description, statements: queue.NewDeQueue[Statement](queue.FIFO, 0)}
}

func (m *Macro) Name() string { return m.name }

func (m *Macro) Description() string { return m.description }

// Size returns the number of statements still queued.
func (m *Macro) Size() int {
	return m.statements.Size()
}

// Empty reports whether the statement queue is exhausted.
func (m *Macro) Empty() bool {
	return m.statements.Empty()
}

// SetPayload attaches payload, to be published when the macro completes.
func (m *Macro) SetPayload(p *message.Payload) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payload = p
}

// Payload returns the macro's attached payload, or nil.
func (m *Macro) Payload() *message.Payload {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.payload
}

// AddStatement appends a pre-built Statement to the queue.
func (m *Macro) AddStatement(s Statement) {
	m.statements.Put(s)
}

// AddEvent auto-labels and appends a publishable-event statement,
// mirroring the original's add_event convenience method.
func (m *Macro) AddEvent(evt event.Event, durationMs int64) {
	label := m.autoLabel()
	m.statements.Put(NewEventStatement(label, evt, durationMs))
}

// AddFunction auto-labels and appends a lambda statement, mirroring the
// original's add_function convenience method.
func (m *Macro) AddFunction(fn func(), durationMs int64) {
	label := m.autoLabel()
	m.statements.Put(NewLambdaStatement(label, fn, durationMs))
}

// Poll removes and returns the head statement, and whether one was
// present.
func (m *Macro) Poll() (Statement, bool) {
	return m.statements.Poll()
}

// autoLabel mirrors the original's add_event/add_function auto-labeling
// scheme: 'stmt-a', 'stmt-b', 'stmt-c', ... keyed off the current queue
// size at the moment of insertion.
func (m *Macro) autoLabel() string {
	n := m.statements.Size()
	return "stmt-" + string(rune('a'+n))
}

// Clone performs a deep copy: statements are value types and are copied
// element by element via the underlying DeQueue's own Clone, so the
// source and the copy never share backing storage; callables inside
// lambda statements are shared by reference, matching the original's
// __deepcopy__. The clone's payload is intentionally NOT copied from
// the source macro -- the original's deepcopy constructor does not
// carry it over either, and the only path that attaches a payload to a
// queued copy is the publisher's queue_macro_by_name equivalent.
func (m *Macro) Clone() *Macro {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := &Macro{name: m.name, description: m.description}
	clone.statements = m.statements.Clone()
	return clone
}

// Equal compares two macros the way the original does: by
// (name, description, size), not by a deep statement-by-statement
// comparison.
func (m *Macro) Equal(other *Macro) bool {
	if m == other {
		return true
	}
	m.mu.Lock()
	name, desc := m.name, m.description
	size := m.statements.Size()
	m.mu.Unlock()
	return name == other.name && desc == other.description && size == other.Size()
}
