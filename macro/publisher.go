package macro

import (
	"context"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/kros-robotics/kros/component"
	"github.com/kros-robotics/kros/internal/logging"
	"github.com/kros-robotics/kros/message"
)

// Bus is the slice of bus.Bus the publisher needs: publish a message,
// and (for a raw-payload attached-on-completion dispatch) build+publish
// one from an event+value pair. Declared as an interface here so macro
// does not import bus, avoiding an import cycle (bus already imports
// arbitrate, not macro, but this keeps the dependency direction clean).
type Bus interface {
	Publish(ctx context.Context, m *message.Message)
	Republish(m *message.Message)
}

// PublisherConfig holds the publisher.macro YAML section.
type PublisherConfig struct {
	LoopFreqHz          float64
	QuiescentLoopFreqHz float64
	WaitLimitMs         int64
	LoadMacros          bool
	MacroPath           string
}

// DefaultPublisherConfig returns a 20Hz active loop, 2Hz idle loop.
func DefaultPublisherConfig() PublisherConfig {
	return PublisherConfig{LoopFreqHz: 20, QuiescentLoopFreqHz: 2, WaitLimitMs: 5000}
}

// Publisher is the macro scheduler component: it loads macros, queues
// them on a stack, and ticks through the current macro's statements,
// honoring per-statement durations, publishing events or invoking
// callables as each statement's wait elapses.
type Publisher struct {
	component.Base

	cfg     PublisherConfig
	log     logging.Logger
	bus     Bus
	factory *message.Factory
	library *Library
	stack   *Stack

	mu              sync.Mutex
	current         *Macro
	statement       *Statement
	statementStart  time.Time
	completionCBs   []func()
	watcher         *fsnotify.Watcher

	cancel context.CancelFunc
	done   chan struct{}
}

// New constructs a macro Publisher. It starts disabled and
// unsuppressed.
func New(cfg PublisherConfig, bus Bus, factory *message.Factory, library *Library, log logging.Logger) *Publisher {
	if log == nil {
		log = logging.Nop{}
	}
	p := &Publisher{cfg: cfg, log: log, bus: bus, factory: factory, library: library, stack: NewStack()}
	p.Base = component.NewBase("MacroPublisher", log, false, false)
	return p
}

// CreateMacro creates and returns a new empty macro; it is the caller's
// responsibility to add it to the library via AddMacroToLibrary.
func (p *Publisher) CreateMacro(name, description string) *Macro {
	return New(name, description)
}

// AddMacroToLibrary registers m in the publisher's library.
func (p *Publisher) AddMacroToLibrary(m *Macro) {
	p.library.Add(m)
}

// HasMacro reports whether name is registered in the library.
func (p *Publisher) HasMacro(name string) bool {
	return p.library.Has(name)
}

// QueueMacroByName looks up name in the library, deep-copies it so the
// library entry remains untouched and reusable, optionally attaches
// payload to the copy, and pushes the copy onto the execution stack.
func (p *Publisher) QueueMacroByName(name string, payload *message.Payload) error {
	m, err := p.library.Get(name)
	if err != nil {
		return err
	}
	clone := m.Clone()
	if payload != nil {
		clone.SetPayload(payload)
	}
	p.stack.Push(clone)
	return nil
}

// QueueMacro pushes an already-constructed macro directly onto the
// stack, bypassing the library.
func (p *Publisher) QueueMacro(m *Macro) {
	p.stack.Push(m)
}

// AddCallback registers fn to run once, when the currently executing
// macro completes; the callback list is cleared after running.
func (p *Publisher) AddCallback(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.completionCBs = append(p.completionCBs, fn)
}

// GetExecutingMacro returns the macro currently being stepped through,
// or nil if idle.
func (p *Publisher) GetExecutingMacro() *Macro {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// LoadMacroFiles loads every macro script in the configured macro path
// into the library, and (if configured) starts an fsnotify watch so new
// or changed files hot-reload without a restart.
func (p *Publisher) LoadMacroFiles(resolve func(name string) (Statement, bool)) error {
	if p.cfg.MacroPath == "" {
		return nil
	}
	if err := p.library.LoadFiles(p.cfg.MacroPath, resolve, p.log); err != nil {
		return err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		p.log.Warn("macro directory watch unavailable", "error", err)
		return nil
	}
	if err := watcher.Add(p.cfg.MacroPath); err != nil {
		p.log.Warn("failed to watch macro directory", "path", p.cfg.MacroPath, "error", err)
		watcher.Close()
		return nil
	}
	p.mu.Lock()
	p.watcher = watcher
	p.mu.Unlock()
	go p.watchLoop(resolve)
	return nil
}

func (p *Publisher) watchLoop(resolve func(name string) (Statement, bool)) {
	for {
		p.mu.Lock()
		w := p.watcher
		p.mu.Unlock()
		if w == nil {
			return
		}
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				if err := p.library.LoadFiles(p.cfg.MacroPath, resolve, p.log); err != nil {
					p.log.Warn("macro hot-reload failed", "error", err)
				}
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			p.log.Warn("macro directory watch error", "error", err)
		}
	}
}

// Enable starts the tick loop goroutine.
func (p *Publisher) Enable() bool {
	started := p.Base.Enable()
	p.mu.Lock()
	alreadyRunning := p.cancel != nil
	p.mu.Unlock()
	if !alreadyRunning {
		ctx, cancel := context.WithCancel(context.Background())
		p.mu.Lock()
		p.cancel = cancel
		p.done = make(chan struct{})
		p.mu.Unlock()
		go p.loop(ctx)
	}
	return started
}

// Disable stops the tick loop goroutine and waits for it to exit.
func (p *Publisher) Disable() bool {
	p.mu.Lock()
	cancel := p.cancel
	done := p.done
	p.cancel = nil
	watcher := p.watcher
	p.watcher = nil
	p.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
	if watcher != nil {
		watcher.Close()
	}
	return p.Base.Disable()
}

// loop is the tick loop described in spec §4.11.
func (p *Publisher) loop(ctx context.Context) {
	defer close(p.done)
	p.log.Info("starting macro listener loop.")
	for p.Base.Enabled() {
		active := p.tick(ctx)
		var delay time.Duration
		if active {
			delay = time.Duration(1.0 / p.cfg.LoopFreqHz * float64(time.Second))
		} else {
			delay = time.Duration(1.0 / p.cfg.QuiescentLoopFreqHz * float64(time.Second))
		}
		select {
		case <-ctx.Done():
			p.log.Info("macro publish loop complete.")
			return
		case <-time.After(delay):
		}
	}
}

// tick performs one loop iteration and reports whether it was an
// "active" iteration (current macro present) as opposed to idle.
func (p *Publisher) tick(ctx context.Context) bool {
	p.mu.Lock()
	if p.current == nil && !p.stack.Empty() {
		p.current, _ = p.stack.Pop()
	}
	if p.current == nil {
		p.mu.Unlock()
		return false
	}
	if p.statement == nil && !p.current.Empty() {
		s, ok := p.current.Poll()
		if ok {
			p.statement = &s
			p.statementStart = time.Now()
		}
	}
	stmt := p.statement
	start := p.statementStart
	p.mu.Unlock()

	if stmt != nil {
		elapsedMs := time.Since(start).Milliseconds()
		if elapsedMs < stmt.DurationMs() && elapsedMs < p.cfg.WaitLimitMs {
			return true // still waiting this tick
		}
		p.execute(ctx, *stmt)
		p.mu.Lock()
		p.statement = nil
		p.mu.Unlock()
	}

	p.mu.Lock()
	done := p.statement == nil && p.current.Empty()
	p.mu.Unlock()
	if done {
		p.onMacroComplete(ctx)
	}
	return true
}

func (p *Publisher) execute(ctx context.Context, stmt Statement) {
	if stmt.IsLambda() {
		if fn := stmt.Function(); fn != nil {
			fn()
		}
		return
	}
	msg := p.factory.CreateMessage(stmt.Event(), stmt.DurationMs())
	if msg != nil {
		p.bus.Publish(ctx, msg)
	}
}

// onMacroComplete runs registered completion callbacks, dispatches the
// macro's attached payload (if any), and clears current-macro state.
func (p *Publisher) onMacroComplete(ctx context.Context) {
	p.mu.Lock()
	cbs := p.completionCBs
	p.completionCBs = nil
	macro := p.current
	p.current = nil
	p.mu.Unlock()

	for _, cb := range cbs {
		cb()
	}

	if macro == nil {
		return
	}
	payload := macro.Payload()
	if payload == nil {
		return
	}
	// Supplemented beyond the original (which left the raw-Payload
	// branch as a TODO stub): wrap and republish regardless of whether
	// the attachment started life as a bare payload or a full message.
	msg := message.New(payload.Event, payload.Value)
	p.bus.Republish(msg)
}
