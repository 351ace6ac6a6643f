package motor

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDriver is an in-memory Driver recording the last power written per
// orientation, standing in for the real hardware controller under test.
type fakeDriver struct {
	mu    sync.Mutex
	power map[Orientation]float64
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{power: make(map[Orientation]float64)}
}

func (d *fakeDriver) SetMotor(o Orientation, signedPower float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.power[o] = signedPower
	return nil
}

func (d *fakeDriver) GetMotor(o Orientation) (float64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.power[o], nil
}

func newTestMotor(cfg Config) (*Motor, *fakeDriver) {
	drv := newFakeDriver()
	// A generous jerk cap so a single SetMotorPower call passes the
	// requested power through unshaped, exercising the power-limit
	// bound in isolation from jerk shaping.
	m := New(Port, cfg, DefaultSlewConfig(), JerkConfig{MaxDeltaPerCall: 10.0}, drv, nil)
	m.Enable()
	return m, drv
}

func TestSetMotorPowerZeroLeavesMotorStopped(t *testing.T) {
	m, _ := newTestMotor(DefaultConfig())
	m.SetMotorPower(0)
	assert.True(t, m.Stopped(), "invariant 9: after set_motor_power(0), stopped holds")
	assert.False(t, m.IsInMotion())
}

func TestSetMotorPowerBoundsDrivingPowerByLimitAndRatio(t *testing.T) {
	cfg := Config{MotorPowerLimit: 0.5, MaxPowerRatio: 0.8}
	m, drv := newTestMotor(cfg)
	// No jerk shaping across this single large request: MaxDeltaPerCall=10.0
	// already exceeds the target, so the request passes through whole.
	m.SetMotorPower(5.0) // |p| = 5 >> motor_power_limit = 0.5

	driving, err := drv.GetMotor(Port)
	require.NoError(t, err)
	bound := cfg.MotorPowerLimit * cfg.MaxPowerRatio
	assert.LessOrEqual(t, math.Abs(driving), bound+1e-9,
		"invariant 9: |driving| must not exceed motor_power_limit * max_power_ratio")
}

func TestSetMotorPowerNegativeRequestAlsoBounded(t *testing.T) {
	cfg := Config{MotorPowerLimit: 0.5, MaxPowerRatio: 0.8}
	m, drv := newTestMotor(cfg)
	m.SetMotorPower(-5.0)

	driving, err := drv.GetMotor(Port)
	require.NoError(t, err)
	bound := cfg.MotorPowerLimit * cfg.MaxPowerRatio
	assert.LessOrEqual(t, math.Abs(driving), bound+1e-9)
}

func TestSetMotorPowerRefusesPositivePowerWhenDisabled(t *testing.T) {
	drv := newFakeDriver()
	m := New(Port, DefaultConfig(), DefaultSlewConfig(), JerkConfig{MaxDeltaPerCall: 10.0}, drv, nil)
	// m starts disabled; never call Enable().
	m.SetMotorPower(1.0)

	driving, err := drv.GetMotor(Port)
	require.NoError(t, err)
	assert.Zero(t, driving, "a disabled motor refuses a positive power request")
}

func TestOnEncoderPulseDirectionBySide(t *testing.T) {
	portDrv := newFakeDriver()
	port := New(Port, DefaultConfig(), DefaultSlewConfig(), JerkConfig{MaxDeltaPerCall: 10.0}, portDrv, nil)
	port.OnEncoderPulse(3)
	assert.Equal(t, int64(-3), port.Steps(), "port motors count down")

	stbdDrv := newFakeDriver()
	stbd := New(Stbd, DefaultConfig(), DefaultSlewConfig(), JerkConfig{MaxDeltaPerCall: 10.0}, stbdDrv, nil)
	stbd.OnEncoderPulse(3)
	assert.Equal(t, int64(3), stbd.Steps(), "starboard motors count up")
}

func TestMaxObservedPowerTracksLargestMagnitude(t *testing.T) {
	m, _ := newTestMotor(Config{MotorPowerLimit: 1.0, MaxPowerRatio: 1.0})
	m.SetMotorPower(0.3)
	m.SetMotorPower(0.1)
	assert.InDelta(t, 0.3, m.MaxObservedPower(), 1e-9, "the running max must not fall back down on a smaller request")
}
