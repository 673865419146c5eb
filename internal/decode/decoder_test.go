package decode

import (
	"testing"
	"time"
)

// waveform synthesises a PPM audio signal the way a sound card would sample
// it: a short mark at the start of every timing interval, low for the rest.
// Segment boundaries are tracked in nanoseconds so rounding never drifts.
type waveform struct {
	rate    int
	samples []int16
	nowNS   int64
}

const (
	synthHigh = int16(12000)
	synthLow  = int16(-12000)
	synthMark = 300 * time.Microsecond
)

func (w *waveform) level(v int16, d time.Duration) {
	end := w.nowNS + d.Nanoseconds()
	for {
		tNS := int64(len(w.samples)) * int64(time.Second) / int64(w.rate)
		if tNS >= end {
			break
		}
		w.samples = append(w.samples, v)
	}
	w.nowNS = end
}

// interval emits one timing interval of total duration d: the distance
// between consecutive rising edges encodes the value.
func (w *waveform) interval(d time.Duration) {
	w.level(synthHigh, synthMark)
	w.level(synthLow, d-synthMark)
}

func (w *waveform) frame(values []time.Duration, gap time.Duration) {
	for _, v := range values {
		w.interval(v)
	}
	w.interval(gap)
}

// finish appends a final mark so the last gap has a closing edge.
func (w *waveform) finish() []int16 {
	w.level(synthHigh, synthMark)
	return w.samples
}

func testConfig(channels, window int) Config {
	return Config{
		SampleRate:     48000,
		Polarity:       Rising,
		Threshold:      0.05,
		PulseMin:       700 * time.Microsecond,
		PulseMax:       2300 * time.Microsecond,
		FramePeriod:    time.Duration(channels) * 3 * time.Millisecond,
		Channels:       channels,
		SyncMultiplier: 1.0, // sync threshold 3ms regardless of channel count
		Window:         window,
	}
}

const synthGap = 6 * time.Millisecond

// jitterTolerance covers one sample period at 48 kHz plus rounding.
const jitterTolerance = 30 * time.Microsecond

func TestDecoder_ReproducesChannelVector(t *testing.T) {
	t.Parallel()
	values := []time.Duration{
		1000 * time.Microsecond,
		1250 * time.Microsecond,
		1500 * time.Microsecond,
		2000 * time.Microsecond,
	}
	w := &waveform{rate: 48000}
	for i := 0; i < 5; i++ {
		w.frame(values, synthGap)
	}

	d := NewDecoder(testConfig(4, 1))
	vectors := d.Feed(w.finish())

	// The rising edge at t=0 is unobservable, so the first generated frame
	// only provides the opening sync gap.
	if len(vectors) != 4 {
		t.Fatalf("decoded %d frames, want 4", len(vectors))
	}
	last := vectors[len(vectors)-1]
	if len(last) != len(values) {
		t.Fatalf("vector has %d channels, want %d", len(last), len(values))
	}
	for ch, want := range values {
		if diff := (last[ch] - want).Abs(); diff > jitterTolerance {
			t.Errorf("channel %d = %s, want %s ± %s", ch, last[ch], want, jitterTolerance)
		}
	}
}

func TestDecoder_CorruptedPulseLosesExactlyOneFrame(t *testing.T) {
	t.Parallel()
	good := []time.Duration{1100, 1300, 1700, 1900}
	bad := []time.Duration{1100, 2400, 1700, 1900} // 2400µs exceeds PulseMax
	corrupt := make([]time.Duration, 4)
	goodUS := make([]time.Duration, 4)
	for i := range good {
		goodUS[i] = good[i] * time.Microsecond
		corrupt[i] = bad[i] * time.Microsecond
	}

	w := &waveform{rate: 48000}
	w.frame(goodUS, synthGap)  // frame 1: opening sync only (t=0 edge unseen)
	w.frame(corrupt, synthGap) // frame 2: must be discarded
	w.frame(goodUS, synthGap)  // frame 3: must decode — no multi-frame outage
	w.frame(goodUS, synthGap)  // frame 4: must decode

	d := NewDecoder(testConfig(4, 1))
	vectors := d.Feed(w.finish())

	if len(vectors) != 2 {
		t.Fatalf("decoded %d frames, want 2", len(vectors))
	}
	stats := d.Stats()
	if stats.DiscardRange != 1 {
		t.Errorf("DiscardRange = %d, want 1", stats.DiscardRange)
	}
	for ch, want := range goodUS {
		if diff := (vectors[0][ch] - want).Abs(); diff > jitterTolerance {
			t.Errorf("first frame after corruption: channel %d = %s, want %s", ch, vectors[0][ch], want)
		}
	}
}

func TestDecoder_CenteredScenario(t *testing.T) {
	t.Parallel()
	// Four channels at 1500µs with a 6000µs sync gap at 48 kHz: everything
	// must read centered within one frame period of the first full frame.
	center := 1500 * time.Microsecond
	values := []time.Duration{center, center, center, center}
	w := &waveform{rate: 48000}
	for i := 0; i < 6; i++ {
		w.frame(values, synthGap)
	}

	d := NewDecoder(testConfig(4, 1))
	vectors := d.Feed(w.finish())
	if len(vectors) == 0 {
		t.Fatal("no frames decoded")
	}
	for i, vec := range vectors {
		for ch, v := range vec {
			if diff := (v - center).Abs(); diff > jitterTolerance {
				t.Errorf("frame %d channel %d = %s, want centered", i, ch, v)
			}
		}
	}
	if _, ok := d.Value(3); !ok {
		t.Error("channel 3 should report a value after valid frames")
	}
	if _, ok := d.Value(4); ok {
		t.Error("channel 4 was never transmitted and must stay unset")
	}
}

func TestDecoder_SmoothingSettlesWithinWindow(t *testing.T) {
	t.Parallel()
	low := []time.Duration{1000 * time.Microsecond}
	high := []time.Duration{2000 * time.Microsecond}

	w := &waveform{rate: 48000}
	w.frame(low, synthGap)
	w.frame(low, synthGap)
	w.frame(high, synthGap)
	w.frame(high, synthGap)
	w.frame(high, synthGap)

	d := NewDecoder(testConfig(1, 2))
	vectors := d.Feed(w.finish())
	if len(vectors) != 4 {
		t.Fatalf("decoded %d frames, want 4", len(vectors))
	}
	// Decoded frames: low, high, high, high with a window of 2: the step
	// passes through one midpoint sample, then settles.
	mid := 1500 * time.Microsecond
	if diff := (vectors[1][0] - mid).Abs(); diff > jitterTolerance {
		t.Errorf("step frame = %s, want %s (window mean)", vectors[1][0], mid)
	}
	if diff := (vectors[3][0] - 2000*time.Microsecond).Abs(); diff > jitterTolerance {
		t.Errorf("settled frame = %s, want 2ms", vectors[3][0])
	}
}

func TestDecoder_FeedSpansBatchBoundaries(t *testing.T) {
	t.Parallel()
	values := []time.Duration{1500 * time.Microsecond, 1500 * time.Microsecond}
	w := &waveform{rate: 48000}
	for i := 0; i < 4; i++ {
		w.frame(values, synthGap)
	}
	samples := w.finish()

	whole := NewDecoder(testConfig(2, 1))
	want := whole.Feed(samples)

	// Same stream chopped into capture-sized batches must decode the same.
	split := NewDecoder(testConfig(2, 1))
	var got []Vector
	for i := 0; i < len(samples); i += 64 {
		end := i + 64
		if end > len(samples) {
			end = len(samples)
		}
		got = append(got, split.Feed(samples[i:end])...)
	}
	if len(got) != len(want) {
		t.Fatalf("batched decode produced %d frames, whole-stream %d", len(got), len(want))
	}
	for i := range got {
		for ch := range got[i] {
			if got[i][ch] != want[i][ch] {
				t.Errorf("frame %d channel %d: batched %s != whole %s", i, ch, got[i][ch], want[i][ch])
			}
		}
	}
}
