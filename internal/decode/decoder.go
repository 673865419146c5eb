package decode

import "time"

// Config holds every tunable of the decode pipeline. The PPM timing
// convention (polarity, pulse range, frame period, channel count) varies
// between controllers and is therefore configuration, not constants.
type Config struct {
	// SampleRate is the capture rate in Hz.
	SampleRate int

	// Polarity selects which edge direction carries timing.
	Polarity Direction

	// Threshold is the hysteresis magnitude as a fraction of full scale.
	Threshold float64

	// PulseMin and PulseMax bound the valid channel pulse range, inclusive.
	PulseMin time.Duration
	PulseMax time.Duration

	// FramePeriod is the nominal full-frame period.
	FramePeriod time.Duration

	// Channels is the expected pulse count per frame; ChannelTolerance
	// widens the accepted count to Channels ± ChannelTolerance.
	Channels         int
	ChannelTolerance int

	// SyncMultiplier scales the derived sync-gap threshold.
	SyncMultiplier float64

	// Window is the per-channel smoothing window size.
	Window int
}

// Vector is one smoothed channel snapshot produced per valid frame. Index i
// is channel i; a vector shorter than the configured channel count updates
// only the channels it covers.
type Vector []time.Duration

// Stats counts decode events since the decoder was created.
type Stats struct {
	Edges        uint64 // timing edges observed
	Frames       uint64 // valid frames emitted
	DiscardRange uint64 // frames dropped for an out-of-range pulse
	DiscardCount uint64 // frames dropped for a wrong pulse count
}

// Decoder composes edge detection, interval classification, frame assembly
// and smoothing into a single sample-driven pipeline.
//
// Not safe for concurrent use; feed it from a single goroutine.
type Decoder struct {
	edges    *EdgeDetector
	cls      Classifier
	asm      *Assembler
	smooth   *Smoother
	polarity Direction
	channels int

	lastEdge time.Duration
	haveEdge bool
	stats    Stats
}

// NewDecoder creates a decoder for the given configuration. The caller is
// expected to pass validated values (see the config package).
func NewDecoder(cfg Config) *Decoder {
	return &Decoder{
		edges:    NewEdgeDetector(cfg.SampleRate, cfg.Threshold),
		cls:      NewClassifier(cfg.FramePeriod, cfg.Channels, cfg.SyncMultiplier),
		asm:      NewAssembler(cfg.PulseMin, cfg.PulseMax, cfg.Channels, cfg.ChannelTolerance),
		smooth:   NewSmoother(cfg.Window),
		polarity: cfg.Polarity,
		channels: cfg.Channels,
	}
}

// Feed consumes a batch of samples and returns one smoothed vector per valid
// frame completed within the batch. The sample index persists across calls,
// so batches must arrive in stream order.
func (d *Decoder) Feed(samples []int16) []Vector {
	var out []Vector
	for _, s := range samples {
		edge, ok := d.edges.Process(s)
		if !ok || edge.Dir != d.polarity {
			continue
		}
		d.stats.Edges++

		if !d.haveEdge {
			d.lastEdge = edge.Time
			d.haveEdge = true
			continue
		}

		iv := d.cls.Classify(d.lastEdge, edge.Time)
		d.lastEdge = edge.Time

		frame, res := d.asm.Push(iv)
		switch res {
		case PushFrame:
			d.stats.Frames++
			out = append(out, d.smoothed(frame))
		case PushDiscardRange:
			d.stats.DiscardRange++
		case PushDiscardCount:
			d.stats.DiscardCount++
		}
	}
	return out
}

// Stats returns a snapshot of the decode counters.
func (d *Decoder) Stats() Stats { return d.stats }

// Value returns the current smoothed value for a channel, or false if the
// channel has not yet been observed in any valid frame.
func (d *Decoder) Value(ch int) (time.Duration, bool) { return d.smooth.Value(ch) }

// smoothed pushes the frame's pulses through the per-channel windows. Pulses
// beyond the configured channel count are counted toward frame validity but
// drive no channel.
func (d *Decoder) smoothed(frame Frame) Vector {
	n := len(frame)
	if n > d.channels {
		n = d.channels
	}
	vec := make(Vector, n)
	for ch := 0; ch < n; ch++ {
		vec[ch] = d.smooth.Push(ch, frame[ch])
	}
	return vec
}
