// Package observe provides observability primitives for ppmjoy: OpenTelemetry
// metrics with a Prometheus exporter bridge and helpers for recording decoder
// events.
//
// Metrics are recorded through the OpenTelemetry Metrics API and exported via
// the standard /metrics endpoint. A package-level default [Metrics] instance
// ([DefaultMetrics]) is provided for convenience; tests should use
// [NewMetrics] with a custom [metric.MeterProvider] to avoid cross-test
// pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all ppmjoy metrics.
const meterName = "github.com/ppmjoy/ppmjoy"

// Discard reasons used as the "reason" attribute on FramesDiscarded.
const (
	ReasonPulseRange = "pulse_range"
	ReasonPulseCount = "pulse_count"
)

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// FramesDecoded counts valid frames that reached the output stage.
	FramesDecoded metric.Int64Counter

	// FramesDiscarded counts frames dropped by the assembler. Use with
	// attribute.String("reason", ...) — see Reason* constants.
	FramesDiscarded metric.Int64Counter

	// Edges counts timing edges observed by the edge detector.
	Edges metric.Int64Counter

	// DroppedBatches counts sample batches evicted from the capture queue
	// because the decode loop fell behind.
	DroppedBatches metric.Int64Counter

	// AxisUpdates counts axis events written to the virtual device.
	AxisUpdates metric.Int64Counter

	// AxisSuppressed counts axis updates withheld by epsilon suppression.
	AxisSuppressed metric.Int64Counter

	// ScopeClients tracks the number of attached debug scope clients.
	ScopeClients metric.Int64UpDownCounter

	meter metric.Meter
}

// ObserveQueueDepth registers a gauge that samples the capture queue depth at
// collection time. fn must be safe to call from the exporter goroutine.
func (m *Metrics) ObserveQueueDepth(fn func() int) error {
	_, err := m.meter.Int64ObservableGauge("ppmjoy.queue.depth",
		metric.WithDescription("Sample batches currently waiting in the capture queue."),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(int64(fn()))
			return nil
		}),
	)
	return err
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{meter: m}

	if met.FramesDecoded, err = m.Int64Counter("ppmjoy.frames.decoded",
		metric.WithDescription("Valid PPM frames decoded."),
	); err != nil {
		return nil, err
	}
	if met.FramesDiscarded, err = m.Int64Counter("ppmjoy.frames.discarded",
		metric.WithDescription("PPM frames discarded by reason."),
	); err != nil {
		return nil, err
	}
	if met.Edges, err = m.Int64Counter("ppmjoy.edges",
		metric.WithDescription("Timing edges observed in the capture stream."),
	); err != nil {
		return nil, err
	}
	if met.DroppedBatches, err = m.Int64Counter("ppmjoy.queue.dropped_batches",
		metric.WithDescription("Sample batches evicted from the saturated capture queue."),
	); err != nil {
		return nil, err
	}
	if met.AxisUpdates, err = m.Int64Counter("ppmjoy.axis.updates",
		metric.WithDescription("Axis events written to the virtual joystick."),
	); err != nil {
		return nil, err
	}
	if met.AxisSuppressed, err = m.Int64Counter("ppmjoy.axis.suppressed",
		metric.WithDescription("Axis updates withheld by epsilon suppression."),
	); err != nil {
		return nil, err
	}
	if met.ScopeClients, err = m.Int64UpDownCounter("ppmjoy.scope.clients",
		metric.WithDescription("Currently attached debug scope clients."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordDiscard records a discarded frame with the given reason attribute.
func (m *Metrics) RecordDiscard(ctx context.Context, reason string, n int64) {
	if n == 0 {
		return
	}
	m.FramesDiscarded.Add(ctx, n,
		metric.WithAttributes(attribute.String("reason", reason)),
	)
}
