package config_test

import (
	"strings"
	"testing"
	"time"

	"github.com/ppmjoy/ppmjoy/internal/config"
)

func TestLoadFromReader_Defaults(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader(""))
	if err != nil {
		t.Fatalf("empty config should load defaults, got: %v", err)
	}
	if cfg.Controller.Channels != config.DefaultChannels {
		t.Errorf("channels = %d, want %d", cfg.Controller.Channels, config.DefaultChannels)
	}
	if cfg.Controller.Polarity != config.PolarityRising {
		t.Errorf("polarity = %q, want rising", cfg.Controller.Polarity)
	}
	if cfg.Output.Buffer != 1 {
		t.Errorf("output buffer = %d, want 1", cfg.Output.Buffer)
	}
}

func TestLoadFromReader_Durations(t *testing.T) {
	t.Parallel()
	yaml := `
controller:
  pulse_min: 800us
  pulse_max: 2.2ms
  frame_period: 20ms
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := cfg.Controller.PulseMin.Std(); got != 800*time.Microsecond {
		t.Errorf("pulse_min = %s, want 800µs", got)
	}
	if got := cfg.Controller.PulseMax.Std(); got != 2200*time.Microsecond {
		t.Errorf("pulse_max = %s, want 2.2ms", got)
	}
}

func TestLoadFromReader_UnknownFieldRejected(t *testing.T) {
	t.Parallel()
	_, err := config.LoadFromReader(strings.NewReader("controler:\n  channels: 6\n"))
	if err == nil {
		t.Fatal("expected error for misspelled section, got nil")
	}
}

func TestValidate_SyncThresholdMustClearPulseMax(t *testing.T) {
	t.Parallel()
	// 22.5ms / 16 channels = ~1.4ms threshold, below a 2.3ms pulse_max:
	// every long channel pulse would read as a sync gap.
	yaml := `
controller:
  channels: 16
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for sync threshold below pulse_max, got nil")
	}
	if !strings.Contains(err.Error(), "sync threshold") {
		t.Errorf("error should mention sync threshold, got: %v", err)
	}
}

func TestValidate_CollectsAllFailures(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: loud
controller:
  polarity: sideways
decoder:
  threshold: 1.5
  average: 0
output:
  buffer: 0
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected joined validation error, got nil")
	}
	for _, want := range []string{"log_level", "polarity", "threshold", "average", "buffer"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error should mention %s, got: %v", want, err)
		}
	}
}

func TestValidate_BadDuration(t *testing.T) {
	t.Parallel()
	_, err := config.LoadFromReader(strings.NewReader("controller:\n  pulse_min: fast\n"))
	if err == nil {
		t.Fatal("expected error for unparseable duration, got nil")
	}
	if !strings.Contains(err.Error(), "invalid duration") {
		t.Errorf("error should mention invalid duration, got: %v", err)
	}
}
