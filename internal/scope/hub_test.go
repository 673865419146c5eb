package scope_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/ppmjoy/ppmjoy/internal/scope"
)

// wsURL converts an httptest server HTTP URL to a WebSocket URL.
func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func startHub(t *testing.T) (*scope.Hub, *httptest.Server) {
	t.Helper()
	hub := scope.NewHub()
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeHTTP))
	t.Cleanup(srv.Close)
	return hub, srv
}

func TestHub_StreamsEventsToClient(t *testing.T) {
	t.Parallel()
	hub, srv := startHub(t)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, wsURL(srv), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	waitForClients(t, hub, 1)
	want := scope.Event{
		Time:     time.Now().UTC(),
		Channels: []float64{1500, 1200},
		Axes:     []int32{0, -307},
	}
	hub.Publish(want)

	var got scope.Event
	if err := wsjson.Read(ctx, conn, &got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got.Channels) != 2 || got.Channels[0] != 1500 || got.Channels[1] != 1200 {
		t.Errorf("channels = %v, want %v", got.Channels, want.Channels)
	}
	if len(got.Axes) != 2 || got.Axes[1] != -307 {
		t.Errorf("axes = %v, want %v", got.Axes, want.Axes)
	}
}

func TestHub_SlowClientIsDetached(t *testing.T) {
	t.Parallel()
	hub := scope.NewHub(scope.WithWriteTimeout(50 * time.Millisecond))
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeHTTP))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, wsURL(srv), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")
	waitForClients(t, hub, 1)

	// Never read from the connection and flood with payloads large enough to
	// overrun kernel socket buffers. Publish must never block and the hub
	// must eventually shed the client.
	payload := make([]float64, 16384)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			hub.Publish(scope.Event{Channels: payload})
		}
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a slow client")
	}
	waitForClients(t, hub, 0)
}

func TestHub_PublishWithoutClients(t *testing.T) {
	t.Parallel()
	hub := scope.NewHub()
	hub.Publish(scope.Event{Channels: []float64{1500}})
	if hub.Clients() != 0 {
		t.Errorf("Clients() = %d, want 0", hub.Clients())
	}
}

func waitForClients(t *testing.T, hub *scope.Hub, want int) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for hub.Clients() != want {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %d clients, have %d", want, hub.Clients())
		case <-time.After(5 * time.Millisecond):
		}
	}
}
