// Package scope provides presentation-only views of the decoded stream: a
// WebSocket event feed and a terminal plot. Nothing here feeds back into
// decoding.
package scope

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/ppmjoy/ppmjoy/internal/observe"
)

// Event is one decoded frame as published to attached scope clients.
type Event struct {
	// Time the frame was published.
	Time time.Time `json:"time"`
	// Channels holds the smoothed pulse widths in microseconds.
	Channels []float64 `json:"channels_us"`
	// Axes holds the mapped axis values, when an output device is attached.
	Axes []int32 `json:"axes,omitempty"`
}

// Hub fans decoded frame events out to WebSocket clients. Publishing never
// blocks: a client that cannot keep up with the frame rate is disconnected
// rather than back-pressuring the pipeline.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	metrics *observe.Metrics

	writeTimeout time.Duration
}

type client struct {
	events chan Event
}

// clientBuffer is how many frames a client may fall behind before it is
// dropped. At typical PPM frame rates (~45 Hz) this is well under a second.
const clientBuffer = 32

// Option configures optional Hub behaviour.
type Option func(*Hub)

// WithMetrics wires the connected-clients gauge into the given metrics.
func WithMetrics(m *observe.Metrics) Option {
	return func(h *Hub) { h.metrics = m }
}

// WithWriteTimeout bounds how long a single client write may stall before the
// connection is dropped.
func WithWriteTimeout(d time.Duration) Option {
	return func(h *Hub) { h.writeTimeout = d }
}

// NewHub creates an empty hub.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		clients:      make(map[*client]struct{}),
		writeTimeout: 5 * time.Second,
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Publish delivers ev to every attached client. Clients whose buffer is full
// are detached immediately.
func (h *Hub) Publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.events <- ev:
		default:
			delete(h.clients, c)
			close(c.events)
			slog.Warn("scope client too slow, disconnecting")
		}
	}
}

// ServeHTTP upgrades the request to a WebSocket and streams events until the
// client disconnects or falls behind.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Debug("scope accept failed", "error", err)
		return
	}

	c := &client{events: make(chan Event, clientBuffer)}
	h.attach(c)
	defer h.detach(c)
	slog.Info("scope client connected", "remote", r.RemoteAddr)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusGoingAway, "server shutting down")
			return
		case ev, ok := <-c.events:
			if !ok {
				conn.Close(websocket.StatusPolicyViolation, "client too slow")
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, h.writeTimeout)
			err := wsjson.Write(writeCtx, conn, ev)
			cancel()
			if err != nil {
				slog.Debug("scope client write failed", "error", err)
				conn.Close(websocket.StatusNormalClosure, "write failed")
				return
			}
		}
	}
}

func (h *Hub) attach(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	if h.metrics != nil {
		h.metrics.ScopeClients.Add(context.Background(), 1)
	}
}

// detach runs once per connection even when Publish already removed the
// client from the map, so the gauge stays balanced.
func (h *Hub) detach(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	if h.metrics != nil {
		h.metrics.ScopeClients.Add(context.Background(), -1)
	}
}

// Clients reports how many clients are currently attached.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
