package scope

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/ppmjoy/ppmjoy/internal/decode"
)

func TestPlotter_RendersRecordedFrames(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	p := NewPlotter(2, 16, &buf)
	for i := 0; i < 20; i++ {
		p.Record(decode.Vector{1500 * time.Microsecond, 1200 * time.Microsecond})
	}
	out := p.render()
	if !strings.Contains(out, "channel pulse width") {
		t.Errorf("render output missing caption:\n%s", out)
	}
	for _, h := range p.history {
		if len(h) != 16 {
			t.Errorf("history length %d, want capped at 16", len(h))
		}
	}
}

func TestPlotter_EmptyHistoryPlaceholder(t *testing.T) {
	t.Parallel()
	p := NewPlotter(2, 16, &bytes.Buffer{})
	if out := p.render(); !strings.Contains(out, "waiting") {
		t.Errorf("empty plot rendered %q", out)
	}
}

func TestPlotter_ShortFrameRepeatsLastValue(t *testing.T) {
	t.Parallel()
	p := NewPlotter(2, 16, &bytes.Buffer{})
	p.Record(decode.Vector{1500 * time.Microsecond, 1800 * time.Microsecond})
	p.Record(decode.Vector{1500 * time.Microsecond}) // channel 1 missing
	if got := p.history[1][len(p.history[1])-1]; got != 1800 {
		t.Errorf("channel 1 = %v after short frame, want held 1800", got)
	}
}
