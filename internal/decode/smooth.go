package decode

import "time"

// Smoother maintains one moving-average window per channel to suppress
// sample-level jitter. Larger windows trade responsiveness for stability;
// the size is the externally configured "average" option.
//
// Channel state is created lazily on the first value for that channel and
// lives for the process lifetime. A channel that has never received a value
// reports nothing — "unset" is deliberately distinct from "centered" so that
// startup never fabricates control input.
//
// Not safe for concurrent use.
type Smoother struct {
	size  int
	chans map[int]*window
}

type window struct {
	values []time.Duration
	next   int
	filled int
	sum    time.Duration
}

// NewSmoother creates a smoother with the given window size. Size 1 disables
// averaging.
func NewSmoother(size int) *Smoother {
	if size < 1 {
		size = 1
	}
	return &Smoother{
		size:  size,
		chans: make(map[int]*window),
	}
}

// Push adds a raw value to the channel's window and returns the arithmetic
// mean of the current window contents.
func (s *Smoother) Push(ch int, v time.Duration) time.Duration {
	w, ok := s.chans[ch]
	if !ok {
		w = &window{values: make([]time.Duration, s.size)}
		s.chans[ch] = w
	}

	if w.filled == len(w.values) {
		w.sum -= w.values[w.next]
	} else {
		w.filled++
	}
	w.values[w.next] = v
	w.sum += v
	w.next = (w.next + 1) % len(w.values)

	return w.sum / time.Duration(w.filled)
}

// Value returns the current smoothed value for the channel, or false if the
// channel has not yet received any value.
func (s *Smoother) Value(ch int) (time.Duration, bool) {
	w, ok := s.chans[ch]
	if !ok || w.filled == 0 {
		return 0, false
	}
	return w.sum / time.Duration(w.filled), true
}
