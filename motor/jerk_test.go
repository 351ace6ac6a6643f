package motor

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJerkLimiterBoundsStepByCap(t *testing.T) {
	cfg := JerkConfig{MaxDeltaPerCall: 0.05}
	j := NewJerkLimiter("test", cfg, nil)
	j.Enable()

	next := j.Limit(0.0, 1.0)
	assert.InDelta(t, 0.05, next, 1e-9)
	assert.LessOrEqual(t, math.Abs(next-0.0), cfg.MaxDeltaPerCall+1e-9, "invariant 7: step bounded by cap")
}

func TestJerkLimiterResultLiesBetweenCurrentAndTarget(t *testing.T) {
	cfg := JerkConfig{MaxDeltaPerCall: 0.05}
	j := NewJerkLimiter("test", cfg, nil)
	j.Enable()

	current, target := 0.2, -0.6
	next := j.Limit(current, target)
	assert.GreaterOrEqual(t, current, next, "moving toward a lower target should not overshoot past current")
	assert.LessOrEqual(t, target, next, "nor undershoot past target")
}

func TestJerkLimiterPassesThroughWithinCap(t *testing.T) {
	cfg := JerkConfig{MaxDeltaPerCall: 0.05}
	j := NewJerkLimiter("test", cfg, nil)
	j.Enable()

	next := j.Limit(0.5, 0.52)
	assert.Equal(t, 0.52, next, "a delta within the cap passes through unshaped")
}

func TestJerkLimiterDisabledIsPassThrough(t *testing.T) {
	j := NewJerkLimiter("test", JerkConfig{MaxDeltaPerCall: 0.05}, nil)
	assert.Equal(t, 1.0, j.Limit(0.0, 1.0))
}
