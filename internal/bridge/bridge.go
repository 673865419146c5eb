// Package bridge maps smoothed pulse widths onto virtual joystick axes.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/ppmjoy/ppmjoy/internal/decode"
	"github.com/ppmjoy/ppmjoy/internal/joystick"
	"github.com/ppmjoy/ppmjoy/internal/observe"
)

// Config holds the pulse-width → axis mapping parameters.
type Config struct {
	// MapMin and MapMax define the pulse-width domain of the linear map.
	// Inputs outside the domain are clamped, never propagated unbounded.
	MapMin time.Duration
	MapMax time.Duration

	// AxisMin and AxisMax define the output axis range.
	AxisMin int32
	AxisMax int32

	// Epsilon suppresses updates whose mapped value moved by no more than
	// this many axis units, so a steady stick does not saturate the
	// output device with no-op reports.
	Epsilon int32

	// Buffer is the frame-buffer depth: emission happens once per Buffer
	// decoded frames. Depth 1 updates immediately; larger depths trade
	// latency for smoother perceived motion.
	Buffer int

	// Axes caps how many channels drive the device.
	Axes int
}

// Bridge owns the axis values that cross the system boundary. It is driven
// from the single decode goroutine; only Neutral may additionally be called
// once during shutdown.
type Bridge struct {
	cfg Config
	dev joystick.Device

	staged    []int32 // mapped value per axis from the buffered frames
	stagedSet []bool
	last      []int32 // last value actually emitted per axis
	emitted   []bool
	pending   int // frames accumulated since the last emission

	// devErr holds the message of the last failed device write, "" while
	// healthy. Written from the decode goroutine, read by health probes.
	devErr atomic.Value

	metrics *observe.Metrics
}

// Option configures optional Bridge behaviour.
type Option func(*Bridge)

// WithMetrics wires axis update counters into the given metrics instance.
func WithMetrics(m *observe.Metrics) Option {
	return func(b *Bridge) { b.metrics = m }
}

// New creates a bridge writing to dev.
func New(dev joystick.Device, cfg Config, opts ...Option) *Bridge {
	if cfg.Buffer < 1 {
		cfg.Buffer = 1
	}
	b := &Bridge{
		cfg:       cfg,
		dev:       dev,
		staged:    make([]int32, cfg.Axes),
		stagedSet: make([]bool, cfg.Axes),
		last:      make([]int32, cfg.Axes),
		emitted:   make([]bool, cfg.Axes),
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// PushFrame stages one decoded frame and emits to the device once the
// frame-buffer depth is reached. Channels beyond the device's axis count are
// ignored; channels missing from a short frame keep their previous staging.
func (b *Bridge) PushFrame(vec decode.Vector) error {
	for ch, v := range vec {
		if ch >= b.cfg.Axes {
			break
		}
		b.staged[ch] = b.mapValue(v)
		b.stagedSet[ch] = true
	}
	b.pending++
	if b.pending < b.cfg.Buffer {
		return nil
	}
	b.pending = 0
	return b.flush()
}

// Neutral drives every axis to the center of the output range and syncs.
// Called during shutdown so the device never lingers in a stale deflection.
func (b *Bridge) Neutral() error {
	center := b.cfg.AxisMin + (b.cfg.AxisMax-b.cfg.AxisMin)/2
	for axis := 0; axis < b.cfg.Axes; axis++ {
		if err := b.dev.MoveAxis(axis, center); err != nil {
			return b.fail(fmt.Errorf("bridge: neutral axis %d: %w", axis, err))
		}
		b.last[axis] = center
		b.emitted[axis] = true
		b.stagedSet[axis] = false
	}
	if err := b.dev.Sync(); err != nil {
		return b.fail(fmt.Errorf("bridge: neutral sync: %w", err))
	}
	return nil
}

// Healthy reports the output device state as last observed by the writing
// goroutine. It never touches the device itself, so health probes can call
// it from any goroutine without interleaving events into an in-progress
// report.
func (b *Bridge) Healthy() error {
	if msg, ok := b.devErr.Load().(string); ok && msg != "" {
		return errors.New(msg)
	}
	return nil
}

// fail records a device write failure for Healthy and returns err unchanged.
func (b *Bridge) fail(err error) error {
	b.devErr.Store(err.Error())
	return err
}

// Snapshot returns a copy of the last emitted value per axis. Axes that have
// never emitted read as zero.
func (b *Bridge) Snapshot() []int32 {
	out := make([]int32, len(b.last))
	copy(out, b.last)
	return out
}

// flush writes staged values that moved beyond epsilon and syncs once if
// anything changed.
func (b *Bridge) flush() error {
	ctx := context.Background()
	changed := false
	for axis := 0; axis < b.cfg.Axes; axis++ {
		if !b.stagedSet[axis] {
			continue
		}
		v := b.staged[axis]
		if b.emitted[axis] && abs32(v-b.last[axis]) <= b.cfg.Epsilon {
			if b.metrics != nil {
				b.metrics.AxisSuppressed.Add(ctx, 1)
			}
			continue
		}
		if err := b.dev.MoveAxis(axis, v); err != nil {
			return b.fail(fmt.Errorf("bridge: axis %d: %w", axis, err))
		}
		b.last[axis] = v
		b.emitted[axis] = true
		changed = true
		if b.metrics != nil {
			b.metrics.AxisUpdates.Add(ctx, 1)
		}
	}
	if !changed {
		return nil
	}
	if err := b.dev.Sync(); err != nil {
		return b.fail(fmt.Errorf("bridge: sync: %w", err))
	}
	return nil
}

// mapValue applies the linear pulse-width → axis transform with clamping.
func (b *Bridge) mapValue(d time.Duration) int32 {
	if d <= b.cfg.MapMin {
		return b.cfg.AxisMin
	}
	if d >= b.cfg.MapMax {
		return b.cfg.AxisMax
	}
	frac := float64(d-b.cfg.MapMin) / float64(b.cfg.MapMax-b.cfg.MapMin)
	return b.cfg.AxisMin + int32(math.Round(frac*float64(b.cfg.AxisMax-b.cfg.AxisMin)))
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}
