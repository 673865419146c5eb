package decode

import "time"

// Kind distinguishes channel pulses from frame-boundary gaps.
type Kind int

const (
	// Pulse is an interval short enough to encode a channel value.
	Pulse Kind = iota

	// SyncGap is an interval long enough to mark a frame boundary.
	SyncGap
)

// String returns the human-readable name of the kind.
func (k Kind) String() string {
	switch k {
	case Pulse:
		return "pulse"
	case SyncGap:
		return "sync-gap"
	default:
		return "unknown"
	}
}

// Interval is the classified duration between two consecutive timing edges.
type Interval struct {
	Duration time.Duration
	Kind     Kind
}

// Classifier labels edge-to-edge intervals. It is pure: configuration is read
// at construction and nothing mutates afterwards.
type Classifier struct {
	// SyncThreshold is the duration above which an interval counts as a
	// frame boundary rather than a channel pulse.
	SyncThreshold time.Duration
}

// NewClassifier derives the sync threshold from the nominal frame period and
// channel count: threshold = multiplier × framePeriod / channels. The
// multiplier is a controller-dependent tunable; config validation guarantees
// the result sits above the valid pulse range, so the inter-frame gap is
// unambiguous.
func NewClassifier(framePeriod time.Duration, channels int, multiplier float64) Classifier {
	return Classifier{
		SyncThreshold: time.Duration(multiplier * float64(framePeriod) / float64(channels)),
	}
}

// Classify labels the interval between two consecutive timing-edge instants.
func (c Classifier) Classify(prev, curr time.Duration) Interval {
	d := curr - prev
	kind := Pulse
	if d > c.SyncThreshold {
		kind = SyncGap
	}
	return Interval{Duration: d, Kind: kind}
}
