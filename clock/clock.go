// Package clock implements the external periodic tick source driving
// control loops and matrix animations: a configurable-frequency ticker
// whose callbacks all run synchronously, in registration order, on
// every tick.
package clock

import (
	"context"
	"sync"
	"time"

	"github.com/kros-robotics/kros/component"
	"github.com/kros-robotics/kros/internal/logging"
)

// Mode selects how ticks are generated.
type Mode int

const (
	// ModeThreadDriven fires callbacks from a background goroutine at
	// the configured frequency. This is the fallback used whenever no
	// hardware GPIO edge source is wired up.
	ModeThreadDriven Mode = iota
	// ModeHardwareDriven expects ticks to arrive via Fire, called by an
	// external GPIO edge handler; Clock itself runs no internal ticker
	// in this mode.
	ModeHardwareDriven
)

// Config holds the publisher.external_clock YAML section plus the
// tick frequency (not itself part of that section in the original,
// which reads frequency from a sibling key, but grouped here for a
// single config struct).
type Config struct {
	Mode        Mode
	FrequencyHz float64
	Pin         int
}

// DefaultConfig returns the specification's default: 20Hz,
// thread-driven.
func DefaultConfig() Config {
	return Config{Mode: ModeThreadDriven, FrequencyHz: 20}
}

// Clock is the external tick source component.
type Clock struct {
	component.Base

	cfg Config
	log logging.Logger

	mu        sync.Mutex
	callbacks []func()

	cancel context.CancelFunc
	done   chan struct{}
}

// New constructs a Clock. It starts disabled and unsuppressed.
func New(cfg Config, log logging.Logger) *Clock {
	if log == nil {
		log = logging.Nop{}
	}
	c := &Clock{cfg: cfg, log: log}
	c.Base = component.NewBase("ExternalClock", log, false, false)
	return c
}

// AddCallback registers fn to run on every tick, in registration order.
func (c *Clock) AddCallback(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.callbacks = append(c.callbacks, fn)
}

// Enable starts the internal ticker goroutine when in thread-driven
// mode; in hardware-driven mode it only flips the enabled flag, since
// ticks arrive externally via Fire.
func (c *Clock) Enable() bool {
	started := c.Base.Enable()
	if c.cfg.Mode != ModeThreadDriven {
		return started
	}
	c.mu.Lock()
	alreadyRunning := c.cancel != nil
	c.mu.Unlock()
	if !alreadyRunning {
		ctx, cancel := context.WithCancel(context.Background())
		c.mu.Lock()
		c.cancel = cancel
		c.done = make(chan struct{})
		c.mu.Unlock()
		go c.run(ctx)
	}
	return started
}

// Disable stops the internal ticker goroutine, if one is running, and
// waits for it to exit.
func (c *Clock) Disable() bool {
	c.mu.Lock()
	cancel := c.cancel
	done := c.done
	c.cancel = nil
	c.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
	return c.Base.Disable()
}

func (c *Clock) run(ctx context.Context) {
	defer close(c.done)
	period := time.Duration(1.0 / c.cfg.FrequencyHz * float64(time.Second))
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Fire()
		}
	}
}

// Fire invokes every registered callback synchronously, in registration
// order. In hardware-driven mode this is called by the external GPIO
// edge handler; in thread-driven mode the internal ticker calls it.
func (c *Clock) Fire() {
	if !c.Active() {
		return
	}
	c.mu.Lock()
	callbacks := make([]func(), len(c.callbacks))
	copy(callbacks, c.callbacks)
	c.mu.Unlock()
	for _, cb := range callbacks {
		cb()
	}
}
