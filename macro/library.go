package macro

import (
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/kros-robotics/kros/internal/kerrors"
	"github.com/kros-robotics/kros/internal/logging"
	"github.com/kros-robotics/kros/queue"
)

// Library is a name -> Macro map. Names are unique by overwrite: a
// re-insertion replaces the previous entry, matching the original's
// library semantics.
type Library struct {
	mu   sync.RWMutex
	byID map[string]*Macro
}

// NewLibrary returns an empty Library.
func NewLibrary() *Library {
	return &Library{byID: make(map[string]*Macro)}
}

// Add inserts or overwrites m under its own name.
func (l *Library) Add(m *Macro) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.byID[m.Name()] = m
}

// Has reports whether name is present in the library.
func (l *Library) Has(name string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.byID[name]
	return ok
}

// Get returns the macro registered under name, or ErrMacroNotFound.
func (l *Library) Get(name string) (*Macro, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	m, ok := l.byID[name]
	if !ok {
		return nil, kerrors.ErrMacroNotFound
	}
	return m, nil
}

// Names returns every registered macro name, sorted for deterministic
// diagnostics output.
func (l *Library) Names() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, 0, len(l.byID))
	for name := range l.byID {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// stepFile is the on-disk shape of one loaded macro file, matching the
// statement fields a YAML-authored macro script can specify.
type stepFile struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Statements  []struct {
		Label      string `yaml:"label"`
		Event      string `yaml:"event"`
		DurationMs int64  `yaml:"duration_ms"`
	} `yaml:"statements"`
}

// LoadFiles enumerates every file in dir and loads it as a macro
// script, overwriting any library entry with a matching name. It is
// tolerant of a missing directory (returns nil, nothing to load).
func (l *Library) LoadFiles(dir string, resolve func(name string) (Statement, bool), log logging.Logger) error {
	if log == nil {
		log = logging.Nop{}
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			log.Warn("failed to read macro file", "path", path, "error", err)
			continue
		}
		var sf stepFile
		if err := yaml.Unmarshal(data, &sf); err != nil {
			log.Warn("failed to parse macro file", "path", path, "error", err)
			continue
		}
		m := New(sf.Name, sf.Description)
		for _, st := range sf.Statements {
			if stmt, ok := resolve(st.Event); ok {
				m.AddStatement(NewEventStatement(firstNonEmpty(st.Label, stmt.Label()), stmt.Event(), st.DurationMs))
			}
		}
		l.Add(m)
		log.Info("loaded macro", "name", sf.Name, "path", path)
	}
	return nil
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

// Stack is the FIFO of queued macro copies awaiting execution, spec
// §3's "Macros stack". Despite the name (kept for fidelity with the
// original), it pops in FIFO order: first queued, first run. Built on
// the same queue.DeQueue generic container the statement queue uses,
// in FIFO mode and unbounded.
type Stack struct {
	items *queue.DeQueue[*Macro]
}

// NewStack returns an empty stack.
func NewStack() *Stack { return &Stack{items: queue.NewDeQueue[*Macro](queue.FIFO, 0)} }

// Push appends m to the tail.
func (s *Stack) Push(m *Macro) {
	s.items.Put(m)
}

// Pop removes and returns the head macro, and whether one was present.
func (s *Stack) Pop() (*Macro, bool) {
	return s.items.Get()
}

// Empty reports whether the stack holds no macros.
func (s *Stack) Empty() bool {
	return s.items.Empty()
}
