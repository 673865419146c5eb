// Package config provides the configuration schema, loader, and validation
// for the ppmjoy PPM decoder.
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// LogLevel controls log verbosity for the ppmjoy process.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Polarity selects which edge direction carries the PPM timing information.
// Transmitters and sound-card wiring differ on this, so it is configuration.
type Polarity string

const (
	PolarityRising  Polarity = "rising"
	PolarityFalling Polarity = "falling"
)

// IsValid reports whether p is a recognised polarity.
func (p Polarity) IsValid() bool {
	return p == PolarityRising || p == PolarityFalling
}

// Duration wraps time.Duration so YAML values can be written as Go duration
// strings ("1500us", "22.5ms").
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// Config is the root configuration structure for ppmjoy.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Input      InputConfig      `yaml:"input"`
	Controller ControllerConfig `yaml:"controller"`
	Decoder    DecoderConfig    `yaml:"decoder"`
	Output     OutputConfig     `yaml:"output"`
}

// ServerConfig holds the optional debug/metrics HTTP listener and logging
// settings. When ListenAddr is empty no HTTP server is started.
type ServerConfig struct {
	// ListenAddr is the TCP address for /metrics, /healthz, /readyz and
	// /scope (e.g., ":9810"). Empty disables the server.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// InputConfig selects and parameterises the audio capture device.
type InputConfig struct {
	// Device is matched case-insensitively as a substring against the
	// enumerated capture device names. Empty selects the system default.
	Device string `yaml:"device"`

	// SampleRate is the capture rate in Hz. Edge timing is derived from it,
	// so it must match what the capture device actually delivers.
	SampleRate int `yaml:"sample_rate"`

	// Batch is the number of samples delivered per capture callback.
	// Smaller batches lower latency at the cost of more wakeups.
	Batch int `yaml:"batch"`

	// QueueDepth bounds the sample queue between the capture callback and
	// the decode loop, counted in batches. On saturation the oldest batch
	// is dropped with a warning.
	QueueDepth int `yaml:"queue_depth"`
}

// ControllerConfig describes the PPM timing convention of the transmitter.
// These vary between controllers, so none of them are hardcoded.
type ControllerConfig struct {
	// Polarity selects the timing edge direction.
	Polarity Polarity `yaml:"polarity"`

	// Channels is the number of channel pulses expected per frame.
	Channels int `yaml:"channels"`

	// ChannelTolerance widens the accepted pulse count per frame to
	// Channels ± ChannelTolerance.
	ChannelTolerance int `yaml:"channel_tolerance"`

	// PulseMin and PulseMax bound the valid channel pulse range, inclusive.
	PulseMin Duration `yaml:"pulse_min"`
	PulseMax Duration `yaml:"pulse_max"`

	// FramePeriod is the nominal full-frame period of the transmitter.
	FramePeriod Duration `yaml:"frame_period"`

	// SyncMultiplier scales the derived sync-gap threshold:
	// threshold = SyncMultiplier × FramePeriod / Channels.
	SyncMultiplier float64 `yaml:"sync_multiplier"`
}

// DecoderConfig tunes the sample-level decoding stages.
type DecoderConfig struct {
	// Threshold is the hysteresis threshold as a fraction of int16 full
	// scale (0 < t < 1), mirrored around zero. Microphone gain and cable
	// attenuation vary, so this is a tunable.
	Threshold float64 `yaml:"threshold"`

	// Average is the per-channel smoothing window size (1 = no smoothing).
	Average int `yaml:"average"`
}

// OutputConfig parameterises the virtual joystick and the pulse-width →
// axis-value mapping.
type OutputConfig struct {
	// Name is the device name registered with the virtual-input facility.
	Name string `yaml:"name"`

	// MapMin and MapMax define the pulse-width domain of the linear axis
	// mapping (center ≈ midpoint). Values outside are clamped.
	MapMin Duration `yaml:"map_min"`
	MapMax Duration `yaml:"map_max"`

	// AxisMin and AxisMax define the reported axis value range.
	AxisMin int32 `yaml:"axis_min"`
	AxisMax int32 `yaml:"axis_max"`

	// Epsilon suppresses axis updates whose mapped value differs from the
	// last emitted value by no more than this many axis units.
	Epsilon int32 `yaml:"epsilon"`

	// Buffer is the frame-buffer depth: the number of decoded frames
	// batched per output emission. 1 updates on every valid frame.
	Buffer int `yaml:"buffer"`
}
