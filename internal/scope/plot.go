package scope

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/guptarohit/asciigraph"

	"github.com/ppmjoy/ppmjoy/internal/decode"
)

// Plotter renders recent per-channel pulse widths as a terminal graph.
type Plotter struct {
	mu      sync.Mutex
	history [][]float64
	width   int
	out     io.Writer
}

// NewPlotter keeps the most recent width values for each of channels series.
func NewPlotter(channels, width int, out io.Writer) *Plotter {
	if width < 8 {
		width = 8
	}
	return &Plotter{
		history: make([][]float64, channels),
		width:   width,
		out:     out,
	}
}

// Record appends one decoded frame to the plot history. Safe to call from the
// pipeline tap.
func (p *Plotter) Record(vec decode.Vector) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for ch := range p.history {
		v := p.lastLocked(ch)
		if ch < len(vec) {
			v = float64(vec[ch]) / float64(time.Microsecond)
		}
		p.history[ch] = append(p.history[ch], v)
		if len(p.history[ch]) > p.width {
			p.history[ch] = p.history[ch][1:]
		}
	}
}

func (p *Plotter) lastLocked(ch int) float64 {
	if n := len(p.history[ch]); n > 0 {
		return p.history[ch][n-1]
	}
	return 0
}

// Run redraws the plot every interval until ctx is cancelled.
func (p *Plotter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fmt.Fprint(p.out, "\033[H\033[2J"+p.render())
		}
	}
}

// render draws all channel series in one graph. Empty history renders a
// placeholder so the screen does not flicker between states.
func (p *Plotter) render() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	series := make([][]float64, 0, len(p.history))
	for _, h := range p.history {
		if len(h) > 0 {
			series = append(series, h)
		}
	}
	if len(series) == 0 {
		return "waiting for frames...\n"
	}
	return asciigraph.PlotMany(series,
		asciigraph.Height(12),
		asciigraph.Width(p.width),
		asciigraph.Caption("channel pulse width (µs)"),
	) + "\n"
}
