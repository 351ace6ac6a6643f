package motor

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/kros-robotics/kros/arbitrate"
	"github.com/kros-robotics/kros/component"
	"github.com/kros-robotics/kros/event"
	"github.com/kros-robotics/kros/internal/logging"
	"github.com/kros-robotics/kros/message"
)

// ControllerConfig holds the motors YAML section fields consumed by the
// motor controller itself (as opposed to the per-motor Config).
type ControllerConfig struct {
	MaxVelocity          float64
	AccelIncrement       float64
	DecelIncrement       float64
	HaltRatio            float64
	BrakeRatio           float64
	SpinSpeed            float64
	LoopDelaySec         float64
	StepsPerRotation     float64
	WheelCircumferenceMm float64
}

// DefaultControllerConfig returns nominal values consistent with a 20Hz
// control loop.
func DefaultControllerConfig() ControllerConfig {
	return ControllerConfig{
		MaxVelocity: 100, AccelIncrement: 5, DecelIncrement: 8,
		HaltRatio: 0.90, BrakeRatio: 0.97, SpinSpeed: 30,
		LoopDelaySec: 0.05, StepsPerRotation: 494, WheelCircumferenceMm: 215,
	}
}

// StepsPerCm derives the travel-geometry constant used by Travel.
func (c ControllerConfig) StepsPerCm() float64 {
	circumferenceCm := c.WheelCircumferenceMm / 10.0
	return c.StepsPerRotation / circumferenceCm
}

// Controller pairs a port and starboard Motor behind the command
// primitives described in spec §4.10: velocity nudges, chadburn speed
// commands, theta steering, stop/halt/brake, and closed-loop travel.
type Controller struct {
	arbitrate.BaseController

	cfg  ControllerConfig
	log  logging.Logger
	port *Motor
	stbd *Motor

	mu         sync.Mutex
	decelRatio float64 // 0 means inactive
	cancelLoop context.CancelFunc
	loopDone   chan struct{}
}

// NewController pairs port and stbd behind the motor controller
// primitives.
func NewController(cfg ControllerConfig, port, stbd *Motor, log logging.Logger) *Controller {
	if log == nil {
		log = logging.Nop{}
	}
	return &Controller{
		BaseController: arbitrate.NewBaseController("MotorController", log),
		cfg:            cfg,
		log:            log,
		port:           port,
		stbd:           stbd,
	}
}

// Start launches the periodic control-loop tick as a background
// goroutine at the configured LoopDelaySec cadence. It may instead be
// driven externally by wiring Tick to a clock.Clock callback, in which
// case Start should not be called.
func (c *Controller) Start(ctx context.Context) {
	loopCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancelLoop = cancel
	c.loopDone = make(chan struct{})
	c.mu.Unlock()

	go func() {
		defer close(c.loopDone)
		ticker := time.NewTicker(time.Duration(c.cfg.LoopDelaySec * float64(time.Second)))
		defer ticker.Stop()
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				c.Tick()
			}
		}
	}()
}

// Stop cancels the background control loop goroutine, if one was
// started via Start, and waits for it to exit.
func (c *Controller) Stop() {
	c.mu.Lock()
	cancel := c.cancelLoop
	done := c.loopDone
	c.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Tick performs one control-loop iteration: apply any active
// deceleration ratio, then steer each motor toward its target velocity.
// Port is updated before starboard (a stable tie-break with no
// externally observable ordering effect).
func (c *Controller) Tick() {
	c.mu.Lock()
	ratio := c.decelRatio
	c.mu.Unlock()

	if ratio > 0 {
		pt := c.port.TargetVelocity() * ratio
		st := c.stbd.TargetVelocity() * ratio
		if math.Abs(pt) < 1.0 && math.Abs(st) < 1.0 {
			pt, st = 0, 0
			c.mu.Lock()
			c.decelRatio = 0
			c.mu.Unlock()
		}
		c.port.SetTargetVelocity(pt)
		c.stbd.SetTargetVelocity(st)
	}

	if c.port.Velocity() != c.port.TargetVelocity() {
		c.port.SetMotorVelocity(c.port.TargetVelocity())
	}
	if c.stbd.Velocity() != c.stbd.TargetVelocity() {
		c.stbd.SetMotorVelocity(c.stbd.TargetVelocity())
	}
}

func clampVelocity(v, max float64) float64 {
	if v > max {
		return max
	}
	if v < -max {
		return -max
	}
	return v
}

// Callback implements arbitrate.Controller: it dispatches an arbitrated
// payload to the matching command group handler.
func (c *Controller) Callback(payload message.Payload) {
	c.RecordEvent()
	c.Dispatch(payload.Event, payload.Value)
}

// Dispatch routes evt to its command-group handler. It is exported so
// non-arbitrated callers (tests, direct command injection) can drive the
// controller without going through the arbitrator.
func (c *Controller) Dispatch(evt event.Event, val message.Value) {
	switch evt.Group {
	case event.GroupVelocity:
		c.dispatchVelocity(evt)
	case event.GroupChadburn:
		c.dispatchChadburn(evt)
	case event.GroupTheta:
		c.dispatchTheta(evt)
	case event.GroupStop:
		c.dispatchStop(evt)
	case event.GroupBumper, event.GroupInfrared:
		c.dispatchReactive(evt)
	}
}

func (c *Controller) dispatchVelocity(evt event.Event) {
	max := c.cfg.MaxVelocity
	switch evt.ID {
	case event.VELOCITY_PORT_INCREMENT.ID:
		c.port.SetTargetVelocity(clampVelocity(c.port.TargetVelocity()+c.cfg.AccelIncrement, max))
	case event.VELOCITY_PORT_DECREMENT.ID:
		c.port.SetTargetVelocity(clampVelocity(c.port.TargetVelocity()-c.cfg.DecelIncrement, max))
	case event.VELOCITY_STBD_INCREMENT.ID:
		c.stbd.SetTargetVelocity(clampVelocity(c.stbd.TargetVelocity()+c.cfg.AccelIncrement, max))
	case event.VELOCITY_STBD_DECREMENT.ID:
		c.stbd.SetTargetVelocity(clampVelocity(c.stbd.TargetVelocity()-c.cfg.DecelIncrement, max))
	case event.VELOCITY_INCREMENT.ID:
		c.port.SetTargetVelocity(clampVelocity(c.port.TargetVelocity()+c.cfg.AccelIncrement, max))
		c.stbd.SetTargetVelocity(clampVelocity(c.stbd.TargetVelocity()+c.cfg.AccelIncrement, max))
	case event.VELOCITY_DECREMENT.ID:
		c.port.SetTargetVelocity(clampVelocity(c.port.TargetVelocity()-c.cfg.DecelIncrement, max))
		c.stbd.SetTargetVelocity(clampVelocity(c.stbd.TargetVelocity()-c.cfg.DecelIncrement, max))
	}
	c.RecordStateChange()
}

func (c *Controller) dispatchChadburn(evt event.Event) {
	pair, ok := event.ChadburnFor(evt)
	if !ok {
		return
	}
	target := pair.Direction.Sign() * pair.Speed.Value
	c.port.SetTargetVelocity(target)
	c.stbd.SetTargetVelocity(target)
	c.RecordStateChange()
}

func (c *Controller) dispatchTheta(evt event.Event) {
	switch evt.ID {
	case event.THETA_EVEN.ID:
		avg := (c.port.TargetVelocity() + c.stbd.TargetVelocity()) / 2.0
		c.port.SetTargetVelocity(avg)
		c.stbd.SetTargetVelocity(avg)
	case event.THETA_SPIN_PORT.ID:
		c.port.SetTargetVelocity(-c.cfg.SpinSpeed)
		c.stbd.SetTargetVelocity(c.cfg.SpinSpeed)
	case event.THETA_SPIN_STBD.ID:
		c.port.SetTargetVelocity(c.cfg.SpinSpeed)
		c.stbd.SetTargetVelocity(-c.cfg.SpinSpeed)
	}
	c.RecordStateChange()
}

func (c *Controller) dispatchStop(evt event.Event) {
	c.mu.Lock()
	c.decelRatio = 0
	c.mu.Unlock()

	switch evt.ID {
	case event.STOP.ID:
		c.port.SetTargetVelocity(0)
		c.stbd.SetTargetVelocity(0)
		c.port.SetMotorVelocity(0)
		c.stbd.SetMotorVelocity(0)
	case event.HALT.ID:
		c.mu.Lock()
		c.decelRatio = c.cfg.HaltRatio
		c.mu.Unlock()
	case event.BRAKE.ID:
		c.mu.Lock()
		c.decelRatio = c.cfg.BrakeRatio
		c.mu.Unlock()
	}
	c.RecordStateChange()
}

// dispatchReactive is a hook for bumper/infrared-triggered stops;
// concrete reaction policy is a deployment concern left to the
// subscriber that decides whether to forward these events to the
// arbitrator at all.
func (c *Controller) dispatchReactive(evt event.Event) {
	c.dispatchStop(event.HALT)
}

// TravelPhase names the four phases of a closed-loop distance maneuver,
// plus the terminal PhaseDone.
type TravelPhase int

const (
	PhaseAccel TravelPhase = iota
	PhaseCruise
	PhaseDecel
	PhaseHold
	PhaseDone
)

// Travel drives both motors toward a target step count computed from
// distanceCm using the configured travel geometry, honoring the
// accelerate/cruise/decelerate/hold phase shape from spec §4.10. It
// blocks until the target step count is reached, then calls onComplete
// if non-nil; if ctx is cancelled first it returns without calling
// onComplete.
func (c *Controller) Travel(ctx context.Context, direction event.Direction, distanceCm float64, cruiseSpeed, targetingSpeed float64, onComplete func()) {
	stepsPerCm := c.cfg.StepsPerCm()
	targetSteps := int64(math.Round(distanceCm * stepsPerCm))

	accelRangeSteps := int64(c.cfg.StepsPerRotation) // one rotation's worth, per spec's "final wheel rotation" decel window
	if float64(targetSteps) < 2*float64(accelRangeSteps) {
		accelRangeSteps = int64(float64(targetSteps) / 4.0)
	}

	startPort := c.port.Steps()
	startStbd := c.stbd.Steps()
	sign := direction.Sign()

	ticker := time.NewTicker(time.Duration(c.cfg.LoopDelaySec * float64(time.Second)))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		portProgress := absInt64(c.port.Steps() - startPort)
		stbdProgress := absInt64(c.stbd.Steps() - startStbd)
		progress := (portProgress + stbdProgress) / 2

		if progress >= targetSteps {
			c.port.SetTargetVelocity(0)
			c.stbd.SetTargetVelocity(0)
			if onComplete != nil {
				onComplete()
			}
			return
		}

		var speed float64
		switch {
		case progress < accelRangeSteps:
			speed = cruiseSpeed
		case progress < targetSteps-accelRangeSteps:
			speed = cruiseSpeed
		case progress < targetSteps-int64(c.cfg.StepsPerRotation):
			speed = targetingSpeed
		default:
			speed = targetingSpeed
		}

		target := sign * speed
		c.port.SetTargetVelocity(target)
		c.stbd.SetTargetVelocity(target)
	}
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

var _ component.Lifecycle = (*Controller)(nil)
