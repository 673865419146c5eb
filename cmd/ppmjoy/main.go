// Command ppmjoy decodes a PPM radio-control signal from an audio input and
// republishes it as a virtual joystick.
//
// Usage:
//
//	ppmjoy inputs            list candidate capture devices
//	ppmjoy run [flags]       decode and publish (default)
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ppmjoy/ppmjoy/internal/app"
	"github.com/ppmjoy/ppmjoy/internal/capture"
	"github.com/ppmjoy/ppmjoy/internal/config"
)

func main() {
	os.Exit(run())
}

func run() int {
	args := os.Args[1:]
	command := "run"
	if len(args) > 0 && args[0] == "inputs" {
		command = "inputs"
		args = args[1:]
	} else if len(args) > 0 && args[0] == "run" {
		args = args[1:]
	}

	// ── CLI flags ──────────────────────────────────────────────────────────────
	fs := flag.NewFlagSet("ppmjoy "+command, flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "path to the YAML configuration file")
	inputDevice := fs.String("i", "", "capture device name substring (overrides input.device)")
	average := fs.Int("average", 0, "smoothing window in frames (overrides decoder.average)")
	buffer := fs.Int("buffer", 0, "frame-buffer depth (overrides output.buffer)")
	debug := fs.Bool("debug", false, "force debug logging")
	plot := fs.Bool("plot", false, "render decoded channels as a terminal graph")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	if command == "inputs" {
		return listInputs()
	}

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "ppmjoy: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "ppmjoy: %v\n", err)
		}
		return 1
	}

	// ── Flag overrides ────────────────────────────────────────────────────────
	if *inputDevice != "" {
		cfg.Input.Device = *inputDevice
	}
	if *average > 0 {
		cfg.Decoder.Average = *average
	}
	if *buffer > 0 {
		cfg.Output.Buffer = *buffer
	}
	if *debug {
		cfg.Server.LogLevel = config.LogDebug
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	slog.SetDefault(newLogger(cfg.Server.LogLevel))
	slog.Info("ppmjoy starting",
		"config", *configPath,
		"device", cfg.Input.Device,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	printStartupSummary(cfg)

	var opts []app.Option
	if *plot {
		opts = append(opts, app.WithPlot(os.Stdout))
	}
	application, err := app.New(ctx, cfg, opts...)
	if err != nil {
		slog.Error("failed to initialise", "err", err)
		return 1
	}

	slog.Info("decoding — press Ctrl+C to stop")

	runErr := application.Run(ctx)

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		slog.Error("run error", "err", runErr)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── inputs subcommand ─────────────────────────────────────────────────────────

// listInputs enumerates capture devices so the operator can pick a -i value.
func listInputs() int {
	src, err := capture.NewMiniaudio()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ppmjoy: %v\n", err)
		return 1
	}
	defer src.Close()

	devices, err := src.Devices()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ppmjoy: %v\n", err)
		return 1
	}
	if len(devices) == 0 {
		fmt.Println("no capture devices found")
		return 0
	}
	for _, d := range devices {
		marker := " "
		if d.Default {
			marker = "*"
		}
		fmt.Printf("%s %s\n", marker, d.Name)
	}
	return 0
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════════╗")
	fmt.Println("║          ppmjoy — startup summary         ║")
	fmt.Println("╠═══════════════════════════════════════════╣")
	device := cfg.Input.Device
	if device == "" {
		device = "(default)"
	}
	fmt.Printf("║  Input device  : %-24s ║\n", truncate(device, 24))
	fmt.Printf("║  Sample rate   : %-24d ║\n", cfg.Input.SampleRate)
	fmt.Printf("║  Channels      : %-24d ║\n", cfg.Controller.Channels)
	fmt.Printf("║  Polarity      : %-24s ║\n", cfg.Controller.Polarity)
	fmt.Printf("║  Pulse range   : %-24s ║\n", fmt.Sprintf("%s – %s", cfg.Controller.PulseMin, cfg.Controller.PulseMax))
	fmt.Printf("║  Smoothing     : %-24d ║\n", cfg.Decoder.Average)
	fmt.Printf("║  Frame buffer  : %-24d ║\n", cfg.Output.Buffer)
	fmt.Printf("║  Device name   : %-24s ║\n", truncate(cfg.Output.Name, 24))
	if cfg.Server.ListenAddr != "" {
		fmt.Printf("║  Listen addr   : %-24s ║\n", cfg.Server.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════════╝")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
