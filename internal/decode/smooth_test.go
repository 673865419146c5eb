package decode

import (
	"testing"
	"time"
)

func TestSmoother_UnsetChannelReportsNothing(t *testing.T) {
	t.Parallel()
	s := NewSmoother(4)
	if _, ok := s.Value(0); ok {
		t.Fatal("channel with no data reported a value")
	}
	s.Push(1, 1500*time.Microsecond)
	if _, ok := s.Value(0); ok {
		t.Fatal("pushing channel 1 must not create channel 0")
	}
	if v, ok := s.Value(1); !ok || v != 1500*time.Microsecond {
		t.Fatalf("channel 1 = %s (%v), want 1.5ms", v, ok)
	}
}

func TestSmoother_RepeatedValueIsIdentity(t *testing.T) {
	t.Parallel()
	// Pushing the same value N times (window ≥ N) yields that value.
	s := NewSmoother(8)
	const v = 1234 * time.Microsecond
	for i := 0; i < 8; i++ {
		if got := s.Push(0, v); got != v {
			t.Fatalf("push %d: got %s, want %s", i, got, v)
		}
	}
}

func TestSmoother_WindowMean(t *testing.T) {
	t.Parallel()
	s := NewSmoother(4)
	s.Push(0, 1000*time.Microsecond)
	got := s.Push(0, 2000*time.Microsecond)
	if want := 1500 * time.Microsecond; got != want {
		t.Fatalf("partial window mean = %s, want %s", got, want)
	}
}

func TestSmoother_OldValuesRollOff(t *testing.T) {
	t.Parallel()
	s := NewSmoother(2)
	s.Push(0, 1000*time.Microsecond)
	s.Push(0, 2000*time.Microsecond)
	got := s.Push(0, 2000*time.Microsecond)
	if want := 2000 * time.Microsecond; got != want {
		t.Fatalf("after roll-off mean = %s, want %s", got, want)
	}
}

func TestSmoother_WindowOneDisablesAveraging(t *testing.T) {
	t.Parallel()
	s := NewSmoother(1)
	s.Push(0, 1000*time.Microsecond)
	if got := s.Push(0, 2000*time.Microsecond); got != 2000*time.Microsecond {
		t.Fatalf("window 1 should track input exactly, got %s", got)
	}
}
