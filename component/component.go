// Package component implements the lifecycle contract shared by every
// core subsystem (buses, limiters, motors, macro publishers, the
// external clock): three orthogonal booleans (enabled, suppressed,
// closed) and a name-keyed, insertion-ordered registry.
package component

import (
	"fmt"
	"sync"

	"github.com/kros-robotics/kros/internal/kerrors"
	"github.com/kros-robotics/kros/internal/logging"
)

// Lifecycle is the contract every core component implements. Enable,
// Disable, Suppress, Release and Close are idempotent and return true so
// callers can chain without checking for a no-op.
type Lifecycle interface {
	Enable() bool
	Disable() bool
	Suppress() bool
	Release() bool
	Close() bool
	Enabled() bool
	Suppressed() bool
	Closed() bool
	Active() bool
	ClassName() string
}

// Base is embedded by every concrete component to provide the Lifecycle
// contract. NewBase takes the starting enabled and suppressed state
// explicitly from each concrete type's constructor (arbitrators and
// controllers construct with enabled=true, suppressed=false; most others
// start disabled).
type Base struct {
	mu         sync.Mutex
	name       string
	enabled    bool
	suppressed bool
	closed     bool
	log        logging.Logger
}

// NewBase constructs a Base with the given starting enabled/suppressed
// state. classname is returned from ClassName() and used in log lines.
func NewBase(classname string, log logging.Logger, enabled, suppressed bool) Base {
	if log == nil {
		log = logging.Nop{}
	}
	return Base{name: classname, enabled: enabled, suppressed: suppressed, log: log}
}

func (b *Base) ClassName() string { return b.name }

// Enable transitions to enabled unless the component is closed, in which
// case it logs a warning and leaves the component disabled. Idempotent.
func (b *Base) Enable() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		b.log.Warn("cannot enable a closed component", "component", b.name)
		return true
	}
	b.enabled = true
	return true
}

// Disable is idempotent and always succeeds.
func (b *Base) Disable() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.enabled = false
	return true
}

// Suppress marks the component suppressed without disabling it.
func (b *Base) Suppress() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.suppressed = true
	return true
}

// Release clears suppression.
func (b *Base) Release() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.suppressed = false
	return true
}

// Close disables the component and marks it permanently closed. Once
// closed, Enable is a no-op forever.
func (b *Base) Close() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.enabled = false
	b.closed = true
	return true
}

func (b *Base) Enabled() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.enabled
}

func (b *Base) Suppressed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.suppressed
}

func (b *Base) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Active reports enabled && !suppressed && !closed.
func (b *Base) Active() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.enabled && !b.suppressed && !b.closed
}

// MissingComponentError is raised when a caller asks the registry for a
// name that was never registered.
type MissingComponentError struct {
	Name string
}

func (e *MissingComponentError) Error() string {
	return fmt.Sprintf("kros: no component registered under name %q", e.Name)
}

func (e *MissingComponentError) Unwrap() error { return kerrors.ErrMissingComponent }

// Registry is an insertion-ordered, unique-name map of components. It is
// append-only: there is no Remove, matching the "append-only until
// process exit" policy in the specification's resource model.
type Registry struct {
	mu    sync.RWMutex
	order []string
	byKey map[string]Lifecycle
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byKey: make(map[string]Lifecycle)}
}

// Add registers c under name. Returns ErrDuplicateComponentName (a
// configuration error, fatal at startup) if the name is already taken.
func (r *Registry) Add(name string, c Lifecycle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byKey[name]; exists {
		return fmt.Errorf("%w: %q", kerrors.ErrDuplicateComponentName, name)
	}
	r.byKey[name] = c
	r.order = append(r.order, name)
	return nil
}

// Get returns the component registered under name, or a
// *MissingComponentError if absent.
func (r *Registry) Get(name string) (Lifecycle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byKey[name]
	if !ok {
		return nil, &MissingComponentError{Name: name}
	}
	return c, nil
}

// Names returns every registered name in insertion order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of registered components.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Snapshot returns a printable listing, one line per component in
// insertion order, grounded on the Python registry's print_registry().
func (r *Registry) Snapshot() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	lines := make([]string, 0, len(r.order))
	for _, name := range r.order {
		c := r.byKey[name]
		lines = append(lines, fmt.Sprintf("%-24s enabled=%-5t suppressed=%-5t closed=%-5t",
			name, c.Enabled(), c.Suppressed(), c.Closed()))
	}
	return lines
}
