package motor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPIDWithZeroGainsOutputsZero(t *testing.T) {
	cfg := PIDConfig{Kp: 0, Ki: 0, Kd: 0, MinimumOutput: -100, MaximumOutput: 100, SampleFreqHz: 100}
	p := NewPID(cfg, nil)
	p.SetSetpoint(42)

	for i := 0; i < 10; i++ {
		out := p.Update(float64(i))
		assert.Zero(t, out, "invariant 8: kp=ki=kd=0 must output 0 regardless of input")
	}
}

func TestPIDWithPositiveKiConvergesMonotonicallyToClamp(t *testing.T) {
	cfg := PIDConfig{Kp: 0, Ki: 50, Kd: 0, MinimumOutput: -100, MaximumOutput: 100, SampleFreqHz: 100, HystQueueLen: 0}
	p := NewPID(cfg, nil)
	p.SetSetpoint(10) // constant nonzero error against measured=0 every call

	// Update integrates Ki*error over the actual wall-clock dt between
	// calls, so a short sleep keeps each step's contribution comfortably
	// above timer-resolution noise: 150 steps of >=2ms accumulate at
	// least 0.3s, against the ~0.2s needed to reach the 100 clamp.
	var prev float64
	for i := 0; i < 150; i++ {
		time.Sleep(2 * time.Millisecond)
		out := p.Update(0)
		assert.GreaterOrEqual(t, out, prev-1e-9, "output must not decrease while error stays constant and positive")
		prev = out
	}
	assert.InDelta(t, 100.0, prev, 1e-6, "sustained positive error with ki>0 converges to the maximum clamp")
}

func TestPIDIntegratorNeverEscapesOutputBounds(t *testing.T) {
	cfg := PIDConfig{Kp: 0, Ki: 1000, Kd: 0, MinimumOutput: -100, MaximumOutput: 100, SampleFreqHz: 100}
	p := NewPID(cfg, nil)
	p.SetSetpoint(1000)

	for i := 0; i < 100; i++ {
		p.Update(0)
	}
	comp := p.ComponentsSnapshot()
	assert.GreaterOrEqual(t, comp.Ci, cfg.MinimumOutput)
	assert.LessOrEqual(t, comp.Ci, cfg.MaximumOutput)
}

func TestPIDResetClearsState(t *testing.T) {
	cfg := DefaultPIDConfig()
	p := NewPID(cfg, nil)
	p.SetSetpoint(50)
	p.Update(0)
	p.Update(0)

	p.Reset()
	comp := p.ComponentsSnapshot()
	assert.Zero(t, comp.Cp)
	assert.Zero(t, comp.Ci)
	assert.Zero(t, comp.Cd)
}

func TestPIDSetLimitClampsSetpoint(t *testing.T) {
	p := NewPID(DefaultPIDConfig(), nil)
	limit := 10.0
	p.SetLimit(&limit)
	p.SetSetpoint(100)
	assert.Equal(t, 10.0, p.Setpoint())
	p.SetSetpoint(-100)
	assert.Equal(t, -10.0, p.Setpoint())
}
