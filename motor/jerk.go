package motor

import (
	"math"

	"github.com/kros-robotics/kros/component"
	"github.com/kros-robotics/kros/internal/logging"
)

// JerkConfig holds the fixed per-call delta cap applied to motor power.
type JerkConfig struct {
	MaxDeltaPerCall float64
}

// DefaultJerkConfig returns a conservative cap suitable for a
// [-1.0, 1.0] power range.
func DefaultJerkConfig() JerkConfig {
	return JerkConfig{MaxDeltaPerCall: 0.05}
}

// JerkLimiter bounds the per-call change in motor power, i.e. it limits
// the derivative of the already slew-limited velocity's resulting
// power, making it equivalent to a jerk limiter. Same shape as
// SlewLimiter but with a single fixed cap rather than a rate table.
type JerkLimiter struct {
	component.Base
	cfg JerkConfig
}

// NewJerkLimiter constructs a JerkLimiter for the given orientation tag.
func NewJerkLimiter(name string, cfg JerkConfig, log logging.Logger) *JerkLimiter {
	j := &JerkLimiter{cfg: cfg}
	j.Base = component.NewBase("JerkLimiter:"+name, log, false, false)
	return j
}

// Limit returns a value whose distance from currentPower is at most the
// configured cap, moving toward targetPower. Disabled is a pass-through.
func (j *JerkLimiter) Limit(currentPower, targetPower float64) float64 {
	if !j.Active() {
		return targetPower
	}
	delta := targetPower - currentPower
	if math.Abs(delta) <= j.cfg.MaxDeltaPerCall {
		return targetPower
	}
	if delta > 0 {
		return currentPower + j.cfg.MaxDeltaPerCall
	}
	return currentPower - j.cfg.MaxDeltaPerCall
}
