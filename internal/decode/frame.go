package decode

import "time"

// Frame is one complete cycle of raw channel pulse durations bounded by two
// sync gaps, in transmission order.
type Frame []time.Duration

// PushResult tags the outcome of feeding one interval to the [Assembler].
type PushResult int

const (
	// PushNone means the interval was consumed without closing a frame.
	PushNone PushResult = iota

	// PushFrame means a valid frame was emitted.
	PushFrame

	// PushDiscardRange means a pulse fell outside the valid channel range;
	// the partial frame was dropped and the assembler is reacquiring sync.
	PushDiscardRange

	// PushDiscardCount means a frame closed with a pulse count outside the
	// accepted tolerance and was dropped.
	PushDiscardCount
)

type assemblerState int

const (
	seekingSync assemblerState = iota
	inFrame
)

// Assembler groups classified intervals into frames. It is a two-state
// machine with no terminal state: a single bad frame costs at most one frame
// period, after which the next sync gap restarts accumulation.
//
// Not safe for concurrent use.
type Assembler struct {
	pulseMin time.Duration
	pulseMax time.Duration
	want     int // expected channel count
	tol      int // accepted count is want ± tol

	state  assemblerState
	pulses Frame
}

// NewAssembler creates an assembler accepting pulses in [pulseMin, pulseMax]
// (inclusive) and frames holding channels ± tolerance pulses.
func NewAssembler(pulseMin, pulseMax time.Duration, channels, tolerance int) *Assembler {
	return &Assembler{
		pulseMin: pulseMin,
		pulseMax: pulseMax,
		want:     channels,
		tol:      tolerance,
		state:    seekingSync,
		pulses:   make(Frame, 0, channels+tolerance),
	}
}

// Push feeds one classified interval into the state machine. When the result
// is [PushFrame] the returned frame is a copy owned by the caller.
func (a *Assembler) Push(iv Interval) (Frame, PushResult) {
	switch a.state {
	case seekingSync:
		// Pulses before the first sync gap are noise; a gap both closes
		// the unknown stretch and opens the first frame.
		if iv.Kind == SyncGap {
			a.state = inFrame
			a.pulses = a.pulses[:0]
		}
		return nil, PushNone

	case inFrame:
		if iv.Kind == Pulse {
			if iv.Duration < a.pulseMin || iv.Duration > a.pulseMax {
				// The data is untrustworthy; do not guess at a
				// truncated frame.
				a.state = seekingSync
				a.pulses = a.pulses[:0]
				return nil, PushDiscardRange
			}
			a.pulses = append(a.pulses, iv.Duration)
			return nil, PushNone
		}

		// A sync gap closes the current frame and opens the next one.
		n := len(a.pulses)
		var frame Frame
		result := PushDiscardCount
		if n >= a.want-a.tol && n <= a.want+a.tol {
			frame = make(Frame, n)
			copy(frame, a.pulses)
			result = PushFrame
		}
		a.pulses = a.pulses[:0]
		return frame, result
	}
	return nil, PushNone
}
