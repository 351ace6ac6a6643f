package motor

import (
	"sync"
	"time"

	"github.com/kros-robotics/kros/component"
	"github.com/kros-robotics/kros/internal/logging"
)

// PIDConfig holds the motor.pid_controller YAML section.
type PIDConfig struct {
	Kp, Ki, Kd    float64
	MinimumOutput float64
	MaximumOutput float64
	SampleFreqHz  float64
	HystQueueLen  int
}

// DefaultPIDConfig returns the nominal 100Hz-sample-rate defaults
// referenced by the specification.
func DefaultPIDConfig() PIDConfig {
	return PIDConfig{Kp: 0.15, Ki: 0.05, Kd: 0.01, MinimumOutput: -100, MaximumOutput: 100, SampleFreqHz: 100, HystQueueLen: 20}
}

// Components are the three PID term contributions, exposed for
// telemetry (the original's `components` accessor).
type Components struct{ Cp, Ci, Cd float64 }

// PID is a discrete-time PID controller with clamped output and
// integrator anti-windup, plus a short running-average hysteresis zone
// around zero to suppress jitter.
type PID struct {
	component.Base

	mu         sync.Mutex
	cfg        PIDConfig
	setpoint   float64
	limit      *float64
	lastError  float64
	integrator float64
	components Components
	lastTick   time.Time

	hystWindow []float64
	hystMean   float64
	hystCount  int
}

// NewPID constructs a PID controller. It starts disabled and
// unsuppressed.
func NewPID(cfg PIDConfig, log logging.Logger) *PID {
	p := &PID{cfg: cfg}
	p.Base = component.NewBase("PIDController", log, false, false)
	return p
}

// Setpoint returns the current target value.
func (p *PID) Setpoint() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.setpoint
}

// SetSetpoint sets the target value, clamped by SetLimit if one is
// configured.
func (p *PID) SetSetpoint(v float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.limit != nil {
		lim := *p.limit
		if v > lim {
			v = lim
		}
		if v < -lim {
			v = -lim
		}
	}
	p.setpoint = v
}

// SetLimit applies (or clears, with nil) an optional symmetric setpoint
// clamp.
func (p *PID) SetLimit(limit *float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.limit = limit
}

// Constants returns (kp, ki, kd).
func (p *PID) Constants() (kp, ki, kd float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg.Kp, p.cfg.Ki, p.cfg.Kd
}

// SetConstants updates the PID gains in place.
func (p *PID) SetConstants(kp, ki, kd float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cfg.Kp, p.cfg.Ki, p.cfg.Kd = kp, ki, kd
}

// ComponentsSnapshot returns the most recent (cp, ci, cd) contributions.
func (p *PID) ComponentsSnapshot() Components {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.components
}

// Reset zeros the integrator, last-error, and hysteresis window.
func (p *PID) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastError = 0
	p.integrator = 0
	p.components = Components{}
	p.hystWindow = nil
	p.hystMean = 0
	p.hystCount = 0
	p.lastTick = time.Time{}
}

func clampF(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// Update runs one discrete PID step against measured, using the
// elapsed wall-clock time since the previous Update call as dt (falling
// back to 1/SampleFreqHz on the first call). Returns the clamped
// output.
func (p *PID) Update(measured float64) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	dt := 1.0 / p.cfg.SampleFreqHz
	if !p.lastTick.IsZero() {
		if d := now.Sub(p.lastTick).Seconds(); d > 0 {
			dt = d
		}
	}
	p.lastTick = now

	errVal := p.setpoint - measured
	cp := p.cfg.Kp * errVal

	p.integrator += p.cfg.Ki * errVal * dt
	p.integrator = clampF(p.integrator, p.cfg.MinimumOutput, p.cfg.MaximumOutput)
	ci := p.integrator

	var cd float64
	if dt > 0 {
		cd = p.cfg.Kd * (errVal - p.lastError) / dt
	}

	output := clampF(cp+ci+cd, p.cfg.MinimumOutput, p.cfg.MaximumOutput)
	p.lastError = errVal
	p.components = Components{Cp: cp, Ci: ci, Cd: cd}

	p.pushHysteresis(errVal)
	if p.cfg.HystQueueLen > 0 && p.hystCount >= p.cfg.HystQueueLen {
		tol := 1e-2
		if p.hystMean > -tol && p.hystMean < tol {
			return 0
		}
	}
	return output
}

// pushHysteresis recomputes the plain mean of the last HystQueueLen
// error samples each call, mirroring the original's
// _get_mean_setpoint bounded-deque average.
func (p *PID) pushHysteresis(v float64) {
	if p.cfg.HystQueueLen <= 0 {
		return
	}
	p.hystWindow = append(p.hystWindow, v)
	if len(p.hystWindow) > p.cfg.HystQueueLen {
		p.hystWindow = p.hystWindow[1:]
	}
	var sum float64
	for _, x := range p.hystWindow {
		sum += x
	}
	p.hystCount = len(p.hystWindow)
	p.hystMean = sum / float64(p.hystCount)
}
