// Command krosd assembles and runs the KROS core: load configuration,
// create the message bus, the message factory, and the macro
// publisher, register built-in publishers and subscribers, enable the
// bus, and block until a shutdown signal arrives.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/kros-robotics/kros/bus"
	"github.com/kros-robotics/kros/clock"
	"github.com/kros-robotics/kros/component"
	"github.com/kros-robotics/kros/config"
	"github.com/kros-robotics/kros/diagnostics"
	"github.com/kros-robotics/kros/event"
	"github.com/kros-robotics/kros/globals"
	"github.com/kros-robotics/kros/internal/kerrors"
	"github.com/kros-robotics/kros/internal/logging"
	"github.com/kros-robotics/kros/macro"
	"github.com/kros-robotics/kros/message"
	"github.com/kros-robotics/kros/motor"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.StringP("config", "c", "kros.yaml", "path to the kros: YAML configuration document")
	verbose := flag.BoolP("verbose", "v", false, "enable debug-level logging")
	macroPath := flag.String("macro-path", "", "override publisher.macro.macro_path from the config file")
	httpAddr := flag.String("diagnostics-addr", "", "if set, serve /status, /registry and /macros on this address")
	flag.Parse()

	level := "info"
	if *verbose {
		level = "debug"
	}
	log := logging.New("krosd", level)

	root, err := config.Load(*configPath, log)
	if err != nil {
		log.Error("failed to load configuration", "error", err)
		return kerrors.ExitCodeFor(kerrors.Classify(kerrors.ClassConfiguration, err))
	}
	doc := root.Kros
	if *macroPath != "" {
		doc.PublisherMacro.Macro.MacroPath = *macroPath
	}

	registry := component.NewRegistry()
	if err := globals.Instance().Put(globals.KeyComponentRegistry, registry); err != nil {
		log.Error("failed to install component registry", "error", err)
		return kerrors.ExitOther
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	messageBus := bus.New(bus.Config{
		MaxAgeMs:        doc.MessageBus.MaxAgeMs,
		PublishDelaySec: doc.MessageBus.PublishDelaySec,
		ClipEventList:   doc.MessageBus.ClipEventList,
		ClipLength:      doc.MessageBus.ClipLength,
	}, log.Named("bus"))
	if err := registry.Add("message-bus", &messageBus.Base); err != nil {
		log.Error("duplicate component registration", "error", err)
		return kerrors.ExitOther
	}
	if err := globals.Instance().Put(globals.KeyMessageBus, messageBus); err != nil {
		log.Error("failed to install message bus global", "error", err)
		return kerrors.ExitOther
	}

	factory := message.NewFactory()

	mockDriver := newMockDriver()
	portMotor := motor.New(motor.Port, motor.Config{MotorPowerLimit: doc.Motors.MotorPowerLimit, MaxPowerRatio: 1.0},
		config.ToSlewConfig(doc.Motors.Slew), motor.DefaultJerkConfig(), mockDriver, log.Named("motor.port"))
	stbdMotor := motor.New(motor.Stbd, motor.Config{MotorPowerLimit: doc.Motors.MotorPowerLimit, MaxPowerRatio: 1.0},
		config.ToSlewConfig(doc.Motors.Slew), motor.DefaultJerkConfig(), mockDriver, log.Named("motor.stbd"))
	portMotor.Enable()
	stbdMotor.Enable()

	controllerCfg := motor.ControllerConfig{
		MaxVelocity: doc.Motors.MaxVelocity, AccelIncrement: doc.Motors.AccelIncrement,
		DecelIncrement: doc.Motors.DecelIncrement, HaltRatio: doc.Motors.HaltRatio,
		BrakeRatio: doc.Motors.BrakeRatio, SpinSpeed: doc.Motors.SpinSpeed,
		LoopDelaySec:         doc.Motors.LoopDelaySec,
		StepsPerRotation:     doc.Motors.StepsPerRotation,
		WheelCircumferenceMm: doc.Motors.WheelCircumferenceMm,
	}
	if controllerCfg.LoopDelaySec <= 0 {
		controllerCfg.LoopDelaySec = 0.05
	}
	if controllerCfg.StepsPerRotation <= 0 {
		controllerCfg.StepsPerRotation = 494
	}
	if controllerCfg.WheelCircumferenceMm <= 0 {
		controllerCfg.WheelCircumferenceMm = 215
	}
	motorController := motor.NewController(controllerCfg, portMotor, stbdMotor, log.Named("motor.controller"))
	if err := registry.Add("motor-controller", motorController); err != nil {
		log.Error("duplicate component registration", "error", err)
		return kerrors.ExitOther
	}
	if err := globals.Instance().Put(globals.KeyMotorController, motorController); err != nil {
		log.Error("failed to install motor controller global", "error", err)
		return kerrors.ExitOther
	}
	messageBus.Arbitrator().RegisterController(motorController)

	library := macro.NewLibrary()
	macroPublisher := macro.New(macro.PublisherConfig{
		LoopFreqHz: doc.PublisherMacro.Macro.LoopFreqHz, QuiescentLoopFreqHz: doc.PublisherMacro.Macro.QuiescentLoopFreqHz,
		WaitLimitMs: doc.PublisherMacro.Macro.WaitLimitMs, LoadMacros: doc.PublisherMacro.Macro.LoadMacros,
		MacroPath: doc.PublisherMacro.Macro.MacroPath,
	}, messageBus, factory, library, log.Named("macro"))
	if err := registry.Add("macro-publisher", &macroPublisher.Base); err != nil {
		log.Error("duplicate component registration", "error", err)
		return kerrors.ExitOther
	}
	if err := globals.Instance().Put(globals.KeyMacroPublisher, macroPublisher); err != nil {
		log.Error("failed to install macro publisher global", "error", err)
		return kerrors.ExitOther
	}
	if doc.PublisherMacro.Macro.LoadMacros {
		if err := macroPublisher.LoadMacroFiles(eventByName); err != nil {
			log.Warn("failed to load macro files", "error", err)
		}
	}
	macroPublisher.Enable()
	defer macroPublisher.Disable()

	extClock := clock.New(clock.Config{Mode: clock.ModeThreadDriven, FrequencyHz: 20, Pin: doc.PublisherMacro.ExternalClock.Pin}, log.Named("clock"))
	if err := registry.Add("external-clock", &extClock.Base); err != nil {
		log.Error("duplicate component registration", "error", err)
		return kerrors.ExitOther
	}
	extClock.AddCallback(motorController.Tick)
	extClock.Enable()
	defer extClock.Disable()

	messageBus.RegisterSubscriber(newCleanupSubscriber("cleanup"))
	if err := messageBus.Start(ctx); err != nil {
		log.Error("failed to start message bus", "error", err)
		return kerrors.ExitOther
	}
	defer messageBus.Shutdown(context.Background(), 2*time.Second)

	if *httpAddr != "" {
		srv := diagnostics.NewServer(diagnostics.Source{
			Registry:  registry,
			QueueSize: messageBus.QueueSize,
			Tasks:     messageBus.GetAllTasks,
			Macros:    library.Names,
		}, log.Named("diagnostics"))
		go func() {
			if err := (&http.Server{Addr: *httpAddr, Handler: srv.Handler()}).ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Warn("diagnostics server stopped", "error", err)
			}
		}()
	}

	return waitForShutdown(log)
}

// waitForShutdown blocks until HUP, TERM, or INT is received, then
// returns the exit code the specification assigns to each signal.
func waitForShutdown(log logging.Logger) int {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigCh
	log.Info("received shutdown signal", "signal", sig.String())
	if sig == syscall.SIGINT {
		return kerrors.ExitKeyboardInterrupt
	}
	return kerrors.ExitNormal
}

// eventByName resolves a macro-file event name string to a Statement
// template, used by macro.Library.LoadFiles.
func eventByName(name string) (macro.Statement, bool) {
	e, ok := eventTable[name]
	if !ok {
		return macro.Statement{}, false
	}
	return macro.NewEventStatement(name, e, 0), true
}

var eventTable = map[string]event.Event{
	"STOP": event.STOP, "HALT": event.HALT, "BRAKE": event.BRAKE,
	"FULL_AHEAD": event.FULL_AHEAD, "HALF_AHEAD": event.HALF_AHEAD,
	"SLOW_AHEAD": event.SLOW_AHEAD, "DEAD_SLOW_AHEAD": event.DEAD_SLOW_AHEAD,
	"FULL_ASTERN": event.FULL_ASTERN, "HALF_ASTERN": event.HALF_ASTERN,
	"SLOW_ASTERN": event.SLOW_ASTERN, "DEAD_SLOW_ASTERN": event.DEAD_SLOW_ASTERN,
	"THETA_EVEN": event.THETA_EVEN, "THETA_SPIN_PORT": event.THETA_SPIN_PORT, "THETA_SPIN_STBD": event.THETA_SPIN_STBD,
}

// mockDriver is the in-process hardware stand-in used when no real
// motor controller chip is wired up; max_power_ratio is 1.0 when
// mocked, per spec §4.9.
type mockDriver struct {
	mu     sync.Mutex
	power  map[motor.Orientation]float64
}

func newMockDriver() *mockDriver {
	return &mockDriver{power: make(map[motor.Orientation]float64)}
}

func (d *mockDriver) SetMotor(o motor.Orientation, signedPower float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.power[o] = signedPower
	return nil
}

func (d *mockDriver) GetMotor(o motor.Orientation) (float64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.power[o], nil
}

// cleanupSubscriber is the bus's terminal sink: it discards messages
// once every interested subscriber has acked them, and otherwise
// republishes.
type cleanupSubscriber struct {
	component.Base
	name string
}

func newCleanupSubscriber(name string) *cleanupSubscriber {
	s := &cleanupSubscriber{name: name}
	s.Base = component.NewBase("CleanupSubscriber", nil, true, false)
	return s
}

func (s *cleanupSubscriber) Name() string                        { return s.name }
func (s *cleanupSubscriber) Start(ctx context.Context)            {}
func (s *cleanupSubscriber) Accepts(e event.Event) bool           { return false }
func (s *cleanupSubscriber) IsCleanup() bool                      { return true }
func (s *cleanupSubscriber) Consume(ctx context.Context, m *message.Message) error {
	return nil
}
