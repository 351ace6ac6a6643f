package motor

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kros-robotics/kros/event"
	"github.com/kros-robotics/kros/message"
)

func newTestController(cfg ControllerConfig) (*Controller, *Motor, *Motor) {
	portDrv := newFakeDriver()
	stbdDrv := newFakeDriver()
	port := New(Port, DefaultConfig(), DefaultSlewConfig(), JerkConfig{MaxDeltaPerCall: 1000}, portDrv, nil)
	stbd := New(Stbd, DefaultConfig(), DefaultSlewConfig(), JerkConfig{MaxDeltaPerCall: 1000}, stbdDrv, nil)
	port.Enable()
	stbd.Enable()
	c := NewController(cfg, port, stbd, nil)
	return c, port, stbd
}

func TestDispatchVelocityIncrementClampsAtMaxVelocity(t *testing.T) {
	cfg := DefaultControllerConfig()
	cfg.MaxVelocity = 100
	cfg.AccelIncrement = 60
	c, port, stbd := newTestController(cfg)

	c.Dispatch(event.VELOCITY_INCREMENT, message.Value{})
	c.Dispatch(event.VELOCITY_INCREMENT, message.Value{})

	assert.Equal(t, 100.0, port.TargetVelocity(), "two 60-unit increments clamp at max_velocity")
	assert.Equal(t, 100.0, stbd.TargetVelocity())
}

func TestDispatchVelocityPortOnlyLeavesStbdUnaffected(t *testing.T) {
	cfg := DefaultControllerConfig()
	c, port, stbd := newTestController(cfg)

	c.Dispatch(event.VELOCITY_PORT_INCREMENT, message.Value{})
	assert.Equal(t, cfg.AccelIncrement, port.TargetVelocity())
	assert.Zero(t, stbd.TargetVelocity())
}

func TestDispatchChadburnSetsBothMotorsFromTable(t *testing.T) {
	cfg := DefaultControllerConfig()
	c, port, stbd := newTestController(cfg)

	c.Dispatch(event.HALF_ASTERN, message.Value{})

	assert.Equal(t, -70.0, port.TargetVelocity(), "HALF_ASTERN maps to (ASTERN, HALF=70)")
	assert.Equal(t, -70.0, stbd.TargetVelocity())
}

func TestDispatchThetaSpinDrivesMotorsOpposingDirections(t *testing.T) {
	cfg := DefaultControllerConfig()
	cfg.SpinSpeed = 30
	c, port, stbd := newTestController(cfg)

	c.Dispatch(event.THETA_SPIN_STBD, message.Value{})
	assert.Equal(t, 30.0, port.TargetVelocity())
	assert.Equal(t, -30.0, stbd.TargetVelocity())
}

func TestDispatchThetaEvenAveragesTargets(t *testing.T) {
	cfg := DefaultControllerConfig()
	c, port, stbd := newTestController(cfg)
	port.SetTargetVelocity(40)
	stbd.SetTargetVelocity(20)

	c.Dispatch(event.THETA_EVEN, message.Value{})
	assert.Equal(t, 30.0, port.TargetVelocity())
	assert.Equal(t, 30.0, stbd.TargetVelocity())
}

func TestDispatchStopZeroesTargetsImmediately(t *testing.T) {
	cfg := DefaultControllerConfig()
	c, port, stbd := newTestController(cfg)
	port.SetTargetVelocity(50)
	stbd.SetTargetVelocity(50)

	c.Dispatch(event.STOP, message.Value{})
	assert.Zero(t, port.TargetVelocity())
	assert.Zero(t, stbd.TargetVelocity())
}

func TestDispatchHaltDecaysTargetVelocityAcrossTicks(t *testing.T) {
	cfg := DefaultControllerConfig()
	cfg.HaltRatio = 0.5
	c, port, stbd := newTestController(cfg)
	port.SetTargetVelocity(50)
	stbd.SetTargetVelocity(50)

	c.Dispatch(event.HALT, message.Value{})
	for i := 0; i < 10 && port.TargetVelocity() >= 1.0; i++ {
		c.Tick()
	}

	assert.Less(t, math.Abs(port.TargetVelocity()), 1.0, "repeated ticks under halt ratio decay target velocity toward zero")
}

func TestDispatchReactiveAppliesHalt(t *testing.T) {
	cfg := DefaultControllerConfig()
	cfg.HaltRatio = 0.5
	c, _, _ := newTestController(cfg)

	c.Dispatch(event.BUMPER_PORT, message.Value{})
	// dispatchReactive routes through dispatchStop(HALT), which arms the
	// deceleration ratio rather than zeroing velocity outright.
	c.mu.Lock()
	ratio := c.decelRatio
	c.mu.Unlock()
	assert.Equal(t, cfg.HaltRatio, ratio)
}

func TestCallbackRecordsEventAndDispatches(t *testing.T) {
	cfg := DefaultControllerConfig()
	c, port, _ := newTestController(cfg)

	c.Callback(message.Payload{Event: event.VELOCITY_PORT_INCREMENT})
	assert.Equal(t, cfg.AccelIncrement, port.TargetVelocity())
	assert.Contains(t, c.PrintStatistics(), "1 events")
}

// TestTravelReachesTargetStepsAndZerosVelocity drives a synthetic encoder
// simulator off each motor's commanded target velocity so Travel's
// progress tracking has real step counts to observe, mirroring S4: a
// 10cm port-side travel completes once accumulated steps reach the
// geometry-derived target, and both motors are left at zero velocity.
func TestTravelReachesTargetStepsAndZerosVelocity(t *testing.T) {
	cfg := DefaultControllerConfig()
	cfg.LoopDelaySec = 0.01
	cfg.StepsPerRotation = 494
	cfg.WheelCircumferenceMm = 215
	c, port, stbd := newTestController(cfg)

	distanceCm := 10.0
	targetSteps := int64(math.Round(distanceCm * cfg.StepsPerCm()))
	require.Greater(t, targetSteps, int64(0))

	const simGain = 10.0 // synthetic steps per velocity-unit per second
	simCtx, cancelSim := context.WithCancel(context.Background())
	defer cancelSim()
	go func() {
		ticker := time.NewTicker(5 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-simCtx.Done():
				return
			case <-ticker.C:
				v := math.Abs(port.TargetVelocity())
				delta := int64(math.Round(v * simGain * 0.005))
				if delta > 0 {
					port.OnEncoderPulse(delta)
					stbd.OnEncoderPulse(delta)
				}
			}
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	completed := false
	start := time.Now()
	c.Travel(ctx, event.AHEAD, distanceCm, 50, 20, func() { completed = true })
	elapsed := time.Since(start)
	cancelSim()

	assert.True(t, completed, "onComplete must fire when Travel finishes normally")
	assert.Zero(t, port.TargetVelocity(), "S4: target_velocity is 0 on completion")
	assert.Zero(t, stbd.TargetVelocity())

	portProgress := absInt64(port.Steps())
	assert.GreaterOrEqual(t, portProgress, targetSteps, "Travel only returns once accumulated steps reach the target")

	expected := time.Duration(float64(targetSteps) / (50 * simGain) * float64(time.Second))
	assert.LessOrEqual(t, elapsed, 2*expected+500*time.Millisecond,
		"S4: travel completes within 200%% of the expected duration")
}

func TestTravelUnblocksOnContextCancellation(t *testing.T) {
	cfg := DefaultControllerConfig()
	cfg.LoopDelaySec = 0.01
	c, _, _ := newTestController(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Travel(ctx, event.AHEAD, 1000, 50, 20, nil)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Travel did not return after context cancellation")
	}
}
