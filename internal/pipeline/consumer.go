package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ppmjoy/ppmjoy/internal/decode"
	"github.com/ppmjoy/ppmjoy/internal/observe"
)

// dropWarnInterval rate-limits the queue saturation warning.
const dropWarnInterval = time.Second

// Sink receives one smoothed channel vector per valid frame.
type Sink interface {
	PushFrame(decode.Vector) error
}

// Consumer drains the sample queue and drives decoder and sink sequentially,
// strictly in sample order. Nothing in this loop blocks on I/O except the
// sink's device writes; a sink error aborts the run (output device failures
// are fatal, transient decode errors are not).
type Consumer struct {
	queue *Queue
	dec   *decode.Decoder
	sink  Sink

	tap     func(decode.Vector)
	metrics *observe.Metrics

	lastStats    decode.Stats
	lastDropped  uint64
	lastDropWarn time.Time
}

// ConsumerOption configures optional Consumer behaviour.
type ConsumerOption func(*Consumer)

// WithTap registers a presentation-only callback invoked with every decoded
// vector after the sink has accepted it, so the tap observes the state the
// sink produced for that frame. The callback must not block.
func WithTap(fn func(decode.Vector)) ConsumerOption {
	return func(c *Consumer) { c.tap = fn }
}

// WithMetrics wires decode counters into the given metrics instance.
func WithMetrics(m *observe.Metrics) ConsumerOption {
	return func(c *Consumer) { c.metrics = m }
}

// NewConsumer creates a consumer for the given queue, decoder and sink.
func NewConsumer(queue *Queue, dec *decode.Decoder, sink Sink, opts ...ConsumerOption) *Consumer {
	c := &Consumer{queue: queue, dec: dec, sink: sink}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Run processes batches until ctx is cancelled or the sink fails.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case batch := <-c.queue.C():
			vectors := c.dec.Feed(batch)
			c.publish(ctx)
			for _, vec := range vectors {
				if err := c.sink.PushFrame(vec); err != nil {
					return fmt.Errorf("pipeline: push frame: %w", err)
				}
				if c.tap != nil {
					c.tap(vec)
				}
			}
		}
	}
}

// publish forwards decode counter deltas to metrics and the debug log.
// Transient decode errors are invisible outside debug verbosity.
func (c *Consumer) publish(ctx context.Context) {
	stats := c.dec.Stats()
	defer func() { c.lastStats = stats }()

	if d := stats.DiscardRange - c.lastStats.DiscardRange; d > 0 {
		slog.Debug("discarded frame: pulse out of range", "count", d)
		if c.metrics != nil {
			c.metrics.RecordDiscard(ctx, observe.ReasonPulseRange, int64(d))
		}
	}
	if d := stats.DiscardCount - c.lastStats.DiscardCount; d > 0 {
		slog.Debug("discarded frame: wrong pulse count", "count", d)
		if c.metrics != nil {
			c.metrics.RecordDiscard(ctx, observe.ReasonPulseCount, int64(d))
		}
	}

	if dropped := c.queue.Dropped(); dropped > c.lastDropped {
		// The warning lives here, not in Push, so the audio callback thread
		// never does logging I/O.
		if now := time.Now(); now.Sub(c.lastDropWarn) >= dropWarnInterval {
			c.lastDropWarn = now
			slog.Warn("sample queue saturated, dropping oldest batches",
				"dropped_total", dropped,
			)
		}
		if c.metrics != nil {
			c.metrics.DroppedBatches.Add(ctx, int64(dropped-c.lastDropped))
		}
		c.lastDropped = dropped
	}

	if c.metrics == nil {
		return
	}
	if d := stats.Frames - c.lastStats.Frames; d > 0 {
		c.metrics.FramesDecoded.Add(ctx, int64(d))
	}
	if d := stats.Edges - c.lastStats.Edges; d > 0 {
		c.metrics.Edges.Add(ctx, int64(d))
	}
}
