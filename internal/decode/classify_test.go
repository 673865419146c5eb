package decode

import (
	"testing"
	"time"
)

func TestClassifier_ThresholdDerivation(t *testing.T) {
	t.Parallel()
	c := NewClassifier(22500*time.Microsecond, 6, 1.0)
	if want := 3750 * time.Microsecond; c.SyncThreshold != want {
		t.Fatalf("sync threshold = %s, want %s", c.SyncThreshold, want)
	}
}

func TestClassifier_Classify(t *testing.T) {
	t.Parallel()
	c := NewClassifier(12*time.Millisecond, 4, 1.0) // threshold 3ms
	cases := []struct {
		name string
		d    time.Duration
		want Kind
	}{
		{"channel pulse", 1500 * time.Microsecond, Pulse},
		{"exactly at threshold", 3 * time.Millisecond, Pulse},
		{"just above threshold", 3*time.Millisecond + time.Microsecond, SyncGap},
		{"frame gap", 6 * time.Millisecond, SyncGap},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			iv := c.Classify(10*time.Millisecond, 10*time.Millisecond+tc.d)
			if iv.Kind != tc.want {
				t.Errorf("kind = %s, want %s", iv.Kind, tc.want)
			}
			if iv.Duration != tc.d {
				t.Errorf("duration = %s, want %s", iv.Duration, tc.d)
			}
		})
	}
}
