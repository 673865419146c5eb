package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default timing values follow the common PPM convention (1–2 ms pulses,
// 22.5 ms frames, 6 channels). They are starting points, not assumptions:
// every one of them can be overridden per controller.
const (
	DefaultChannels       = 6
	DefaultSampleRate     = 48000
	DefaultBatch          = 64
	DefaultQueueDepth     = 32
	DefaultThreshold      = 0.05
	DefaultSyncMultiplier = 1.0
	DefaultDeviceName     = "ppmjoy"
)

// Default returns a Config populated with defaults for every field that has
// one. Loading merges the file on top of this.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			LogLevel: LogInfo,
		},
		Input: InputConfig{
			SampleRate: DefaultSampleRate,
			Batch:      DefaultBatch,
			QueueDepth: DefaultQueueDepth,
		},
		Controller: ControllerConfig{
			Polarity:         PolarityRising,
			Channels:         DefaultChannels,
			ChannelTolerance: 1,
			PulseMin:         Duration(700 * time.Microsecond),
			PulseMax:         Duration(2300 * time.Microsecond),
			FramePeriod:      Duration(22500 * time.Microsecond),
			SyncMultiplier:   DefaultSyncMultiplier,
		},
		Decoder: DecoderConfig{
			Threshold: DefaultThreshold,
			Average:   1,
		},
		Output: OutputConfig{
			Name:    DefaultDeviceName,
			MapMin:  Duration(1000 * time.Microsecond),
			MapMax:  Duration(2000 * time.Microsecond),
			AxisMin: -512,
			AxisMax: 512,
			Epsilon: 1,
			Buffer:  1,
		},
	}
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r on top of [Default] and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if cfg.Input.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("input.sample_rate %d must be positive", cfg.Input.SampleRate))
	}
	if cfg.Input.Batch <= 0 {
		errs = append(errs, fmt.Errorf("input.batch %d must be positive", cfg.Input.Batch))
	}
	if cfg.Input.QueueDepth <= 0 {
		errs = append(errs, fmt.Errorf("input.queue_depth %d must be positive", cfg.Input.QueueDepth))
	}

	ctrl := cfg.Controller
	if !ctrl.Polarity.IsValid() {
		errs = append(errs, fmt.Errorf("controller.polarity %q is invalid; valid values: rising, falling", ctrl.Polarity))
	}
	if ctrl.Channels < 1 || ctrl.Channels > 16 {
		errs = append(errs, fmt.Errorf("controller.channels %d is out of range [1, 16]", ctrl.Channels))
	}
	if ctrl.ChannelTolerance < 0 {
		errs = append(errs, fmt.Errorf("controller.channel_tolerance %d must not be negative", ctrl.ChannelTolerance))
	}
	if ctrl.PulseMin <= 0 || ctrl.PulseMax <= 0 {
		errs = append(errs, fmt.Errorf("controller.pulse_min and pulse_max must be positive"))
	} else if ctrl.PulseMin >= ctrl.PulseMax {
		errs = append(errs, fmt.Errorf("controller.pulse_min %s must be below pulse_max %s", ctrl.PulseMin.Std(), ctrl.PulseMax.Std()))
	}
	if ctrl.FramePeriod <= 0 {
		errs = append(errs, fmt.Errorf("controller.frame_period must be positive"))
	}
	if ctrl.SyncMultiplier <= 0 {
		errs = append(errs, fmt.Errorf("controller.sync_multiplier %.2f must be positive", ctrl.SyncMultiplier))
	}

	// The sync threshold must sit above the valid pulse range, otherwise
	// legitimate channel pulses would be taken for frame boundaries.
	if ctrl.Channels > 0 && ctrl.FramePeriod > 0 && ctrl.SyncMultiplier > 0 && ctrl.PulseMax > 0 {
		threshold := time.Duration(ctrl.SyncMultiplier * float64(ctrl.FramePeriod.Std()) / float64(ctrl.Channels))
		if threshold <= ctrl.PulseMax.Std() {
			errs = append(errs, fmt.Errorf(
				"derived sync threshold %s is not above controller.pulse_max %s; raise sync_multiplier or frame_period",
				threshold, ctrl.PulseMax.Std()))
		}
	}

	if cfg.Decoder.Threshold <= 0 || cfg.Decoder.Threshold >= 1 {
		errs = append(errs, fmt.Errorf("decoder.threshold %.3f is out of range (0, 1)", cfg.Decoder.Threshold))
	}
	if cfg.Decoder.Average < 1 {
		errs = append(errs, fmt.Errorf("decoder.average %d must be at least 1", cfg.Decoder.Average))
	}

	out := cfg.Output
	if out.Name == "" {
		errs = append(errs, fmt.Errorf("output.name is required"))
	}
	if out.MapMin <= 0 || out.MapMax <= 0 || out.MapMin >= out.MapMax {
		errs = append(errs, fmt.Errorf("output.map_min %s must be positive and below map_max %s", out.MapMin.Std(), out.MapMax.Std()))
	}
	if out.AxisMin >= out.AxisMax {
		errs = append(errs, fmt.Errorf("output.axis_min %d must be below axis_max %d", out.AxisMin, out.AxisMax))
	}
	if out.Epsilon < 0 {
		errs = append(errs, fmt.Errorf("output.epsilon %d must not be negative", out.Epsilon))
	}
	if out.Buffer < 1 {
		errs = append(errs, fmt.Errorf("output.buffer %d must be at least 1", out.Buffer))
	}

	return errors.Join(errs...)
}
