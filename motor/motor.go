package motor

import (
	"math"
	"sync"
	"time"

	"github.com/kros-robotics/kros/component"
	"github.com/kros-robotics/kros/internal/logging"
)

// Driver is the hardware abstraction a Motor writes signed power to and
// reads signed power back from. Concrete implementations wrap a
// specific motor controller chip; a mock implementation is adequate for
// testing.
type Driver interface {
	SetMotor(o Orientation, signedPower float64) error
	GetMotor(o Orientation) (float64, error)
}

// Config holds the motors YAML section fields relevant to a single
// motor: the overall power limit and the max-power ratio scaling
// battery voltage to motor voltage (1.0 when mocked).
type Config struct {
	MotorPowerLimit float64
	MaxPowerRatio   float64
}

// DefaultConfig returns MotorPowerLimit=1.0, MaxPowerRatio=1.0.
func DefaultConfig() Config {
	return Config{MotorPowerLimit: 1.0, MaxPowerRatio: 1.0}
}

// Motor owns one side's slew limiter, jerk limiter, step counter, and
// hardware driver handle, and converts a target velocity into bounded
// power.
type Motor struct {
	component.Base

	orientation Orientation
	log         logging.Logger
	cfg         Config
	driver      Driver
	slew        *SlewLimiter
	jerk        *JerkLimiter

	mu              sync.Mutex
	steps           int64
	targetVelocity  float64
	velocity        float64
	currentPower    float64
	maxPower        float64
	maxDrivingPower float64
}

// New constructs a Motor for the given orientation, wiring a slew
// limiter and jerk limiter the motor owns and cascades enable/disable
// to.
func New(orientation Orientation, cfg Config, slewCfg SlewConfig, jerkCfg JerkConfig, driver Driver, log logging.Logger) *Motor {
	if log == nil {
		log = logging.Nop{}
	}
	name := orientation.String()
	m := &Motor{
		orientation: orientation,
		log:         log,
		cfg:         cfg,
		driver:      driver,
		slew:        NewSlewLimiter(name, slewCfg, log),
		jerk:        NewJerkLimiter(name, jerkCfg, log),
	}
	m.Base = component.NewBase("Motor:"+name, log, false, false)
	return m
}

// Orientation returns port or stbd.
func (m *Motor) Orientation() Orientation { return m.orientation }

// Enable cascades to both limiters.
func (m *Motor) Enable() bool {
	m.slew.Enable()
	m.jerk.Enable()
	return m.Base.Enable()
}

// Disable cascades to both limiters.
func (m *Motor) Disable() bool {
	m.slew.Disable()
	m.jerk.Disable()
	return m.Base.Disable()
}

// Close forces power to zero on the motor regardless of prior state,
// then closes both limiters and itself.
func (m *Motor) Close() bool {
	_ = m.driver.SetMotor(m.orientation, 0)
	m.mu.Lock()
	m.currentPower = 0
	m.mu.Unlock()
	m.slew.Close()
	m.jerk.Close()
	return m.Base.Close()
}

// Steps returns the encoder step count; port decrements, starboard
// increments, so the sign of the step delta encodes direction uniformly
// across both sides.
func (m *Motor) Steps() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.steps
}

// OnEncoderPulse applies one encoder pulse. Port motors count down,
// starboard motors count up.
func (m *Motor) OnEncoderPulse(count int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.orientation == Port {
		m.steps -= count
	} else {
		m.steps += count
	}
}

// TargetVelocity returns the velocity this motor is steering toward.
func (m *Motor) TargetVelocity() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.targetVelocity
}

// SetTargetVelocity sets the velocity the control loop steers toward on
// its next tick; it does not itself move the motor.
func (m *Motor) SetTargetVelocity(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.targetVelocity = v
}

// Velocity returns the motor's current (slew-shaped) velocity.
func (m *Motor) Velocity() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.velocity
}

// velocityToPower linearly maps a velocity in [-100, 100] to a power in
// [-limit, +limit].
func velocityToPower(v, limit float64) float64 {
	return (v / 100.0) * limit
}

// SetMotorVelocity slew-limits the transition from the motor's current
// velocity to target, converts the result to a bounded power, and
// writes it through SetMotorPower.
func (m *Motor) SetMotorVelocity(target float64) {
	m.mu.Lock()
	current := m.velocity
	m.mu.Unlock()

	shaped := m.slew.Limit(current, target)

	m.mu.Lock()
	m.velocity = shaped
	m.mu.Unlock()

	power := velocityToPower(shaped, m.cfg.MotorPowerLimit)
	m.SetMotorPower(power)
}

// SetMotorPower clamps targetPower to ±MotorPowerLimit, jerk-limits the
// transition from the motor's current power to it, scales by
// MaxPowerRatio, and writes the result
// to the hardware driver. A disabled motor refuses any positive power
// request (logged, not erroring the caller).
func (m *Motor) SetMotorPower(targetPower float64) {
	if !m.Active() && targetPower > 0 {
		m.log.Warn("refusing to drive a disabled motor", "orientation", m.orientation.String(), "requested", targetPower)
		return
	}

	m.mu.Lock()
	current := m.currentPower
	m.mu.Unlock()

	if limit := m.cfg.MotorPowerLimit; targetPower > limit {
		targetPower = limit
	} else if targetPower < -limit {
		targetPower = -limit
	}
	shaped := m.jerk.Limit(current, targetPower)
	driving := shaped * m.cfg.MaxPowerRatio

	if err := m.driver.SetMotor(m.orientation, driving); err != nil {
		m.log.Error("failed to write motor power", "orientation", m.orientation.String(), "error", err)
	}

	m.mu.Lock()
	m.currentPower = shaped
	if math.Abs(shaped) > m.maxPower {
		m.maxPower = math.Abs(shaped)
	}
	if math.Abs(driving) > m.maxDrivingPower {
		m.maxDrivingPower = math.Abs(driving)
	}
	m.mu.Unlock()
}

// CurrentPower reads back the driver's reported power, retrying up to
// 20 times at 5ms intervals on a transient read failure before giving
// up and reporting zero, matching the original's IR-read retry policy
// reused here for encoder/power reads.
func (m *Motor) CurrentPower() float64 {
	for attempt := 0; attempt < 20; attempt++ {
		p, err := m.driver.GetMotor(m.orientation)
		if err == nil {
			return p
		}
		time.Sleep(5 * time.Millisecond)
	}
	m.log.Warn("persistent motor read failure, reporting zero", "orientation", m.orientation.String())
	return 0
}

// Stopped reports whether CurrentPower() == 0.
func (m *Motor) Stopped() bool { return m.CurrentPower() == 0 }

// IsInMotion reports whether CurrentPower() > 0.
func (m *Motor) IsInMotion() bool { return m.CurrentPower() > 0 }

// MaxObservedPower and MaxObservedDrivingPower return the largest
// magnitudes seen so far, for diagnostics.
func (m *Motor) MaxObservedPower() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxPower
}

func (m *Motor) MaxObservedDrivingPower() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxDrivingPower
}
