// Package app wires the capture, decode, and output subsystems into a
// running application.
//
// New creates and connects all subsystems, Run executes the pipeline until
// the context is cancelled, and Shutdown tears everything down in order:
// capture stops first, axes are driven to neutral, then the output device is
// released.
//
// For testing, inject fakes via functional options (WithSource, WithDevice).
// When an option is not provided, New creates the real implementation.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/ppmjoy/ppmjoy/internal/bridge"
	"github.com/ppmjoy/ppmjoy/internal/capture"
	"github.com/ppmjoy/ppmjoy/internal/config"
	"github.com/ppmjoy/ppmjoy/internal/decode"
	"github.com/ppmjoy/ppmjoy/internal/health"
	"github.com/ppmjoy/ppmjoy/internal/joystick"
	"github.com/ppmjoy/ppmjoy/internal/observe"
	"github.com/ppmjoy/ppmjoy/internal/pipeline"
	"github.com/ppmjoy/ppmjoy/internal/scope"
)

// App owns all subsystem lifetimes and drives samples from the capture
// device through the decoder onto the virtual joystick.
type App struct {
	cfg *config.Config

	// Subsystems — initialised in New, torn down in Shutdown.
	source   capture.Source
	device   joystick.Device
	stream   capture.Stream
	queue    *pipeline.Queue
	consumer *pipeline.Consumer
	bridge   *bridge.Bridge
	hub      *scope.Hub
	plotter  *scope.Plotter
	metrics  *observe.Metrics
	httpSrv  *http.Server

	// lastBatch holds the unix-nano arrival time of the newest sample batch,
	// written from the audio callback and read by the readiness check.
	lastBatch atomic.Int64

	plotOut io.Writer

	// closers are called in order during Shutdown.
	closers []func() error

	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithSource injects a capture source instead of opening the miniaudio
// backend.
func WithSource(s capture.Source) Option {
	return func(a *App) { a.source = s }
}

// WithDevice injects an output device instead of creating a uinput one.
func WithDevice(d joystick.Device) Option {
	return func(a *App) { a.device = d }
}

// WithMetrics injects a metrics instance instead of the global default.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithPlot enables the terminal plot, rendered to out.
func WithPlot(out io.Writer) Option {
	return func(a *App) { a.plotOut = out }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. Initialisation is
// synchronous: the output device is created and the capture stream opened
// before New returns, so configuration and device problems fail fast.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		// Only export metrics when there is a server to scrape them from.
		if cfg.Server.ListenAddr != "" {
			shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{})
			if err != nil {
				return nil, fmt.Errorf("app: init metrics provider: %w", err)
			}
			a.closers = append(a.closers, func() error {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return shutdown(shutdownCtx)
			})
		}
		a.metrics = observe.DefaultMetrics()
	}

	// ── 1. Output device ─────────────────────────────────────────────────
	if err := a.initDevice(); err != nil {
		return nil, fmt.Errorf("app: init output device: %w", err)
	}

	// ── 2. Decode pipeline ───────────────────────────────────────────────
	a.initPipeline()

	// ── 3. Capture stream ────────────────────────────────────────────────
	if err := a.initCapture(ctx); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init capture: %w", err)
	}

	return a, nil
}

// initDevice creates the virtual joystick unless one was injected.
func (a *App) initDevice() error {
	if a.device == nil {
		dev, err := joystick.Open(joystick.Config{
			Name: a.cfg.Output.Name,
			Axes: a.axes(),
			Min:  a.cfg.Output.AxisMin,
			Max:  a.cfg.Output.AxisMax,
		})
		if err != nil {
			return err
		}
		a.device = dev
	}
	// The device is closed explicitly at the end of Shutdown, after Neutral,
	// so it is not on the closer list.
	return nil
}

// initPipeline builds queue → decoder → bridge and the debug surfaces.
func (a *App) initPipeline() {
	a.queue = pipeline.NewQueue(a.cfg.Input.QueueDepth)
	if err := a.metrics.ObserveQueueDepth(a.queue.Len); err != nil {
		slog.Warn("queue depth gauge unavailable", "err", err)
	}

	dec := decode.NewDecoder(decode.Config{
		SampleRate:       a.cfg.Input.SampleRate,
		Polarity:         decodePolarity(a.cfg.Controller.Polarity),
		Threshold:        a.cfg.Decoder.Threshold,
		PulseMin:         a.cfg.Controller.PulseMin.Std(),
		PulseMax:         a.cfg.Controller.PulseMax.Std(),
		FramePeriod:      a.cfg.Controller.FramePeriod.Std(),
		Channels:         a.cfg.Controller.Channels,
		ChannelTolerance: a.cfg.Controller.ChannelTolerance,
		SyncMultiplier:   a.cfg.Controller.SyncMultiplier,
		Window:           a.cfg.Decoder.Average,
	})

	a.bridge = bridge.New(a.device, bridge.Config{
		MapMin:  a.cfg.Output.MapMin.Std(),
		MapMax:  a.cfg.Output.MapMax.Std(),
		AxisMin: a.cfg.Output.AxisMin,
		AxisMax: a.cfg.Output.AxisMax,
		Epsilon: a.cfg.Output.Epsilon,
		Buffer:  a.cfg.Output.Buffer,
		Axes:    a.axes(),
	}, bridge.WithMetrics(a.metrics))

	a.hub = scope.NewHub(scope.WithMetrics(a.metrics))
	if a.plotOut != nil {
		a.plotter = scope.NewPlotter(a.cfg.Controller.Channels, 120, a.plotOut)
	}

	a.consumer = pipeline.NewConsumer(a.queue, dec, a.bridge,
		pipeline.WithMetrics(a.metrics),
		pipeline.WithTap(a.tapFrame),
	)
}

// tapFrame feeds the presentation surfaces. It runs on the decode goroutine
// and must stay cheap.
func (a *App) tapFrame(vec decode.Vector) {
	if a.plotter != nil {
		a.plotter.Record(vec)
	}
	if a.hub.Clients() == 0 {
		return
	}
	ev := scope.Event{
		Time:     time.Now(),
		Channels: make([]float64, len(vec)),
		Axes:     a.bridge.Snapshot(),
	}
	for ch, v := range vec {
		ev.Channels[ch] = float64(v) / float64(time.Microsecond)
	}
	a.hub.Publish(ev)
}

// initCapture opens the backend (unless injected) and the configured stream.
func (a *App) initCapture(_ context.Context) error {
	if a.source == nil {
		src, err := capture.NewMiniaudio()
		if err != nil {
			return err
		}
		a.source = src
		a.closers = append(a.closers, src.Close)
	}

	stream, err := a.source.Open(a.cfg.Input.Device, capture.Config{
		SampleRate: a.cfg.Input.SampleRate,
		Batch:      a.cfg.Input.Batch,
	}, a.onSamples)
	if err != nil {
		return err
	}
	a.stream = stream
	return nil
}

// onSamples runs on the audio callback thread: record arrival, enqueue, out.
func (a *App) onSamples(batch []int16) {
	a.lastBatch.Store(time.Now().UnixNano())
	a.queue.Push(batch)
}

// axes caps the configured channel count at what the output device supports.
func (a *App) axes() int {
	if a.cfg.Controller.Channels > joystick.MaxAxes {
		return joystick.MaxAxes
	}
	return a.cfg.Controller.Channels
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run starts capture and the decode loop and blocks until ctx is cancelled
// or a subsystem fails. A clean cancellation returns context.Canceled.
func (a *App) Run(ctx context.Context) error {
	if err := a.stream.Start(); err != nil {
		return fmt.Errorf("app: start capture: %w", err)
	}
	slog.Info("pipeline running",
		"channels", a.cfg.Controller.Channels,
		"axes", a.axes(),
		"buffer", a.cfg.Output.Buffer)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.consumer.Run(ctx) })
	if a.plotter != nil {
		g.Go(func() error {
			a.plotter.Run(ctx, 250*time.Millisecond)
			return nil
		})
	}
	if a.cfg.Server.ListenAddr != "" {
		a.startHTTP(ctx, g)
	}
	return g.Wait()
}

// healthHandler builds the readiness checks. Both are passive: they read
// state the pipeline goroutines publish and never touch the capture stream
// or the output device, which only the decode goroutine may drive.
func (a *App) healthHandler() *health.Handler {
	return health.New(
		health.StreamChecker("capture", a.lastBatchTime, 2*time.Second),
		health.DeviceChecker("device", a.bridge.Healthy),
	)
}

// startHTTP serves /healthz, /readyz, /metrics, and /scope.
func (a *App) startHTTP(ctx context.Context, g *errgroup.Group) {
	mux := http.NewServeMux()
	a.healthHandler().Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.Handle("GET /scope", a.hub)

	a.httpSrv = &http.Server{
		Addr:              a.cfg.Server.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	g.Go(func() error {
		slog.Info("http server listening", "addr", a.cfg.Server.ListenAddr)
		if err := a.httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("app: http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return a.httpSrv.Shutdown(shutdownCtx)
	})
}

func (a *App) lastBatchTime() time.Time {
	ns := a.lastBatch.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown stops capture, neutralizes the axes, releases the output device,
// and runs the remaining closers. It honors the ctx deadline and is
// idempotent.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down")

		// Capture first so no new batches arrive while we park the axes.
		if a.stream != nil {
			if err := a.stream.Close(); err != nil {
				slog.Warn("capture stream close error", "err", err)
			}
		}

		if err := a.bridge.Neutral(); err != nil {
			slog.Warn("neutral on shutdown failed", "err", err)
		}
		if err := a.device.Close(); err != nil {
			slog.Warn("output device close error", "err", err)
		}

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}
		slog.Info("shutdown complete", "dropped_batches", a.queue.Dropped())
	})
	return shutdownErr
}

// closeAll is the error path out of New: release whatever exists so a failed
// startup never leaks the uinput device.
func (a *App) closeAll() {
	if a.device != nil {
		if err := a.device.Close(); err != nil {
			slog.Warn("output device close error", "err", err)
		}
	}
	for _, closer := range a.closers {
		if err := closer(); err != nil {
			slog.Warn("closer error", "err", err)
		}
	}
}

// decodePolarity maps the config enum onto the decoder's edge direction.
func decodePolarity(p config.Polarity) decode.Direction {
	if p == config.PolarityFalling {
		return decode.Falling
	}
	return decode.Rising
}
