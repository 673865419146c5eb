package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ppmjoy/ppmjoy/internal/health"
)

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) (string, map[string]string) {
	t.Helper()
	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return body.Status, body.Checks
}

func TestHealthz_AlwaysOK(t *testing.T) {
	t.Parallel()
	h := health.New(health.Checker{
		Name:  "broken",
		Check: func(context.Context) error { return errors.New("down") },
	})
	rec := httptest.NewRecorder()
	h.Healthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz = %d, want 200", rec.Code)
	}
	status, _ := decodeBody(t, rec)
	if status != "ok" {
		t.Errorf("status = %q, want ok", status)
	}
}

func TestReadyz_ReportsEachCheck(t *testing.T) {
	t.Parallel()
	h := health.New(
		health.Checker{Name: "capture", Check: func(context.Context) error { return nil }},
		health.Checker{Name: "device", Check: func(context.Context) error { return errors.New("gone") }},
	)
	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz = %d, want 503", rec.Code)
	}
	status, checks := decodeBody(t, rec)
	if status != "fail" {
		t.Errorf("status = %q, want fail", status)
	}
	if checks["capture"] != "ok" {
		t.Errorf("capture = %q, want ok", checks["capture"])
	}
	if !strings.HasPrefix(checks["device"], "fail:") {
		t.Errorf("device = %q, want fail prefix", checks["device"])
	}
}

func TestStreamChecker(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		last    time.Time
		wantErr bool
	}{
		{name: "fresh batch", last: time.Now()},
		{name: "stale batch", last: time.Now().Add(-time.Minute), wantErr: true},
		{name: "never received", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			c := health.StreamChecker("capture", func() time.Time { return tc.last }, 2*time.Second)
			err := c.Check(context.Background())
			if (err != nil) != tc.wantErr {
				t.Errorf("Check() = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestDeviceChecker(t *testing.T) {
	t.Parallel()
	probeErr := errors.New("write failed")
	c := health.DeviceChecker("device", func() error { return probeErr })
	if err := c.Check(context.Background()); !errors.Is(err, probeErr) {
		t.Errorf("Check() = %v, want probe error", err)
	}
}

func TestRegister_Routes(t *testing.T) {
	t.Parallel()
	mux := http.NewServeMux()
	health.New().Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	for _, path := range []string{"/healthz", "/readyz"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, resp.StatusCode)
		}
	}
}
