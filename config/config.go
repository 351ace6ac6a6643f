// Package config loads the kros: YAML document and coerces its scalars
// into the typed structs the rest of the module consumes, grounded on
// the teacher's feeders/yaml.go Feeder pattern: read a path, unmarshal
// into a destination struct via gopkg.in/yaml.v3.
package config

import (
	"fmt"
	"os"

	"github.com/golobby/cast"
	"gopkg.in/yaml.v3"

	"github.com/kros-robotics/kros/internal/logging"
	"github.com/kros-robotics/kros/motor"
)

// Root is the top-level kros: document.
type Root struct {
	Kros Document `yaml:"kros"`
}

// Document holds every recognized section from spec §6.
type Document struct {
	MessageBus            MessageBusSection     `yaml:"message_bus"`
	Motors                MotorsSection         `yaml:"motors"`
	Motor                 MotorSection          `yaml:"motor"`
	PublisherMacro        PublisherMacroSection `yaml:"publisher"`
	IntegratedFrontSensor map[string]any        `yaml:"integrated_front_sensor"`
	Devices               map[int]string        `yaml:"devices"`
}

type MessageBusSection struct {
	MaxAgeMs        int64   `yaml:"max_age_ms"`
	PublishDelaySec float64 `yaml:"publish_delay_sec"`
	ClipEventList   bool    `yaml:"clip_event_list"`
	ClipLength      int     `yaml:"clip_length"`
}

type SlewSection struct {
	MinimumOutput  float64 `yaml:"minimum_output"`
	MaximumOutput  float64 `yaml:"maximum_output"`
	UseElapsedTime bool    `yaml:"use_elapsed_time"`
	Rate           string  `yaml:"rate"`
	Hysteresis     float64 `yaml:"hysteresis"`
}

type MotorsSection struct {
	MotorPowerLimit      float64     `yaml:"motor_power_limit"`
	SuppressSlewLimiter  bool        `yaml:"suppress_slew_limiter"`
	EnableSlewLimiter    bool        `yaml:"enable_slew_limiter"`
	SuppressJerkLimiter  bool        `yaml:"suppress_jerk_limiter"`
	EnableJerkLimiter    bool        `yaml:"enable_jerk_limiter"`
	Slew                 SlewSection `yaml:"slew"`
	MaxVelocity          float64     `yaml:"max_velocity"`
	AccelIncrement       float64     `yaml:"accel_increment"`
	DecelIncrement       float64     `yaml:"decel_increment"`
	HaltRatio            float64     `yaml:"halt_ratio"`
	BrakeRatio           float64     `yaml:"brake_ratio"`
	SpinSpeed            float64     `yaml:"spin_speed"`
	LoopDelaySec         float64     `yaml:"loop_delay_sec"`
	StepsPerRotation     float64     `yaml:"steps_per_rotation"`
	WheelCircumferenceMm float64     `yaml:"wheel_circumference_mm"`
}

type PIDControllerSection struct {
	Kp            float64 `yaml:"kp"`
	Ki            float64 `yaml:"ki"`
	Kd            float64 `yaml:"kd"`
	MinimumOutput float64 `yaml:"minimum_output"`
	MaximumOutput float64 `yaml:"maximum_output"`
	SampleFreqHz  float64 `yaml:"sample_freq_hz"`
	HystQueueLen  int     `yaml:"hyst_queue_len"`
}

type MotorSection struct {
	PIDController PIDControllerSection `yaml:"pid_controller"`
}

type MacroSection struct {
	LoopFreqHz          float64 `yaml:"loop_freq_hz"`
	QuiescentLoopFreqHz float64 `yaml:"quiescent_loop_freq_hz"`
	WaitLimitMs         int64   `yaml:"wait_limit_ms"`
	LoadMacros          bool    `yaml:"load_macros"`
	MacroPath           string  `yaml:"macro_path"`
}

type ExternalClockSection struct {
	Pin int `yaml:"pin"`
}

type PublisherMacroSection struct {
	Macro         MacroSection         `yaml:"macro"`
	ExternalClock ExternalClockSection `yaml:"external_clock"`
}

// Load reads path and unmarshals it into a Root, matching the teacher's
// YamlFeeder behavior (read the whole file, unmarshal with yaml.v3,
// surface the error unchanged to the caller).
func Load(path string, log logging.Logger) (*Root, error) {
	if log == nil {
		log = logging.Nop{}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	var root Root
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	log.Info("loaded configuration", "path", path)
	return &root, nil
}

// RateFromCoerced coerces an arbitrary YAML scalar (string or number)
// read for a slew rate key into its named preset, using golobby/cast
// for the string coercion the original's implicit Python dict lookup
// performed for free.
func RateFromCoerced(v any) motor.Rate {
	s, err := cast.ToString(v)
	if err != nil {
		return motor.Normal
	}
	return motor.RateFromString(s)
}

// ToSlewConfig converts the YAML slew section into a motor.SlewConfig.
func ToSlewConfig(s SlewSection) motor.SlewConfig {
	return motor.SlewConfig{
		MinimumOutput:  s.MinimumOutput,
		MaximumOutput:  s.MaximumOutput,
		UseElapsedTime: s.UseElapsedTime,
		Rate:           motor.RateFromString(s.Rate),
		Hysteresis:     s.Hysteresis,
	}
}

// ToPIDConfig converts the YAML pid_controller section into a
// motor.PIDConfig, deriving the sample period from sample_freq_hz.
func ToPIDConfig(s PIDControllerSection) motor.PIDConfig {
	freq := s.SampleFreqHz
	if freq <= 0 {
		freq = 100
	}
	return motor.PIDConfig{
		Kp: s.Kp, Ki: s.Ki, Kd: s.Kd,
		MinimumOutput: s.MinimumOutput,
		MaximumOutput: s.MaximumOutput,
		SampleFreqHz:  freq,
		HystQueueLen:  s.HystQueueLen,
	}
}
