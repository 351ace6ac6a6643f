// Package globals holds the process-wide named singletons: the
// component registry, the message bus, the motor controller, and the
// macro publisher. Each key may be written exactly once.
package globals

import (
	"sync"

	"github.com/kros-robotics/kros/internal/kerrors"
)

// Registry is the process-wide singleton map. There is exactly one
// instance per process, returned by Instance().
type Registry struct {
	mu   sync.Mutex
	vals map[string]any
}

var (
	once     sync.Once
	instance *Registry
)

// Instance returns the single process-wide globals registry, creating it
// on first use.
func Instance() *Registry {
	once.Do(func() {
		instance = &Registry{vals: make(map[string]any)}
	})
	return instance
}

// Put stores value under key. A second Put for a key that already holds
// a non-nil value is a configuration error: the globals map is
// write-once-per-key.
func (r *Registry) Put(key string, value any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.vals[key]; ok && existing != nil {
		return kerrors.ErrGlobalAlreadySet
	}
	r.vals[key] = value
	return nil
}

// Get returns the value stored under key and whether it was present.
func (r *Registry) Get(key string) (any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.vals[key]
	return v, ok
}

// reset clears the singleton; reached only through the ResetForTest
// helper below, never used by production code.
func (r *Registry) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vals = make(map[string]any)
}

// ResetForTest clears all stored globals. Intended for use between test
// cases only; production code should never call it.
func ResetForTest() {
	Instance().reset()
}

// Well-known keys for the singletons named in the specification.
const (
	KeyComponentRegistry = "component-registry"
	KeyMessageBus        = "message-bus"
	KeyMotorController   = "motor-controller"
	KeyMacroPublisher    = "macro-publisher"
)
