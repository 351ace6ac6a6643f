// Package motor implements the slew limiter, jerk limiter, PID
// controller, per-side motor abstraction and the motor controller that
// pairs port and starboard motors into high-level maneuvers.
package motor

import (
	"math"
	"sync"
	"time"

	"github.com/kros-robotics/kros/component"
	"github.com/kros-robotics/kros/internal/logging"
)

// Orientation identifies which side of the robot a motor drives.
type Orientation int

const (
	Port Orientation = iota
	Stbd
)

func (o Orientation) String() string {
	if o == Stbd {
		return "stbd"
	}
	return "port"
}

// Rate is a named slew-rate preset. Each preset carries a ratio (used in
// ratio mode, the fraction of the remaining error applied per call), a
// pid factor (informational, mirrors the original's per-rate PID
// scaling hint), and a per-millisecond limit (used in elapsed-time
// mode).
type Rate struct {
	Label string
	Ratio float64
	PID   float64
	Limit float64
}

// Named slew-rate presets, values taken directly from the original's
// SlewRate enum.
var (
	ExtremelySlow = Rate{"EXTREMELY_SLOW", 0.009, 0.16, 0.0001}
	VerySlow      = Rate{"VERY_SLOW", 0.02, 0.22, 0.0002}
	Slower        = Rate{"SLOWER", 0.05, 0.38, 0.0005}
	Slow          = Rate{"SLOW", 0.08, 0.48, 0.0010}
	Normal        = Rate{"NORMAL", 0.10, 0.58, 0.0050}
	Fast          = Rate{"FAST", 0.25, 0.68, 0.0100}
	VeryFast      = Rate{"VERY_FAST", 0.40, 0.90, 0.0200}
)

var ratesByLabel = map[string]Rate{
	ExtremelySlow.Label: ExtremelySlow,
	VerySlow.Label:      VerySlow,
	Slower.Label:        Slower,
	Slow.Label:          Slow,
	Normal.Label:        Normal,
	Fast.Label:          Fast,
	VeryFast.Label:      VeryFast,
}

// RateFromString looks up a named preset, defaulting to Normal on a
// miss, matching the original SlewRate.from_string's lenient behavior.
func RateFromString(s string) Rate {
	if r, ok := ratesByLabel[s]; ok {
		return r
	}
	return Normal
}

// SlewConfig holds the motors.slew YAML section.
type SlewConfig struct {
	MinimumOutput  float64
	MaximumOutput  float64
	UseElapsedTime bool
	Rate           Rate
	Hysteresis     float64
}

// DefaultSlewConfig returns sensible defaults for a velocity in
// [-100, 100].
func DefaultSlewConfig() SlewConfig {
	return SlewConfig{MinimumOutput: -100, MaximumOutput: 100, UseElapsedTime: false, Rate: Normal, Hysteresis: 0.5}
}

// SlewLimiter bounds the rate of change of a scalar target (typically a
// velocity setpoint). It starts disabled and unsuppressed; enabling it
// resets its elapsed-time baseline.
type SlewLimiter struct {
	component.Base
	name string

	mu        sync.Mutex
	cfg       SlewConfig
	startTime time.Time
}

// NewSlewLimiter constructs a SlewLimiter for the given orientation tag
// (used only for logging/naming).
func NewSlewLimiter(name string, cfg SlewConfig, log logging.Logger) *SlewLimiter {
	s := &SlewLimiter{name: name, cfg: cfg}
	s.Base = component.NewBase("SlewLimiter:"+name, log, false, false)
	return s
}

// SetRateLimit overrides the configured rate preset.
func (s *SlewLimiter) SetRateLimit(r Rate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.Rate = r
}

// Enable resets the elapsed-time baseline before delegating to Base.
func (s *SlewLimiter) Enable() bool {
	s.mu.Lock()
	s.startTime = time.Now()
	s.mu.Unlock()
	return s.Base.Enable()
}

// Reset resets the elapsed-time baseline to now. value is accepted for
// interface symmetry with the original's reset(value) signature but is
// not otherwise used: the limiter holds no prior-value state of its
// own, the caller's motor does.
func (s *SlewLimiter) Reset(value float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startTime = time.Now()
}

// clip symmetrically bounds v to [min, max], preserving sign around
// zero via the original's negate-clip-negate trick for negative values.
func clip(v, min, max float64) float64 {
	if v < 0 {
		return -1 * clipPositive(-v, min, max)
	}
	return clipPositive(v, min, max)
}

func clipPositive(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// Limit moves current toward target by at most the configured rate and
// clamps the result to [MinimumOutput, MaximumOutput]. If current is
// already within the hysteresis band of target it returns current
// unchanged; if the step lands within the band it snaps to target.
func (s *SlewLimiter) Limit(current, target float64) float64 {
	if !s.Active() {
		return target
	}
	s.mu.Lock()
	cfg := s.cfg
	start := s.startTime
	s.mu.Unlock()

	if math.Abs(target-current) < cfg.Hysteresis {
		return current
	}

	var value float64
	if cfg.UseElapsedTime {
		elapsedMs := float64(time.Since(start).Milliseconds())
		lo := current - cfg.Rate.Limit*elapsedMs
		hi := current + cfg.Rate.Limit*elapsedMs
		value = clipPositive(target, lo, hi)
	} else if target > current {
		diff := cfg.Rate.Ratio * (target - current)
		if diff < cfg.Hysteresis {
			diff = cfg.Hysteresis
		}
		value = current + diff
	} else {
		diff := cfg.Rate.Ratio * (current - target)
		if diff < cfg.Hysteresis {
			diff = cfg.Hysteresis
		}
		value = current - diff
	}

	if value > target-cfg.Hysteresis && value < target+cfg.Hysteresis {
		return target
	}
	return clip(value, cfg.MinimumOutput, cfg.MaximumOutput)
}
