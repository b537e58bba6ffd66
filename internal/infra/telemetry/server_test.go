package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestStartHTTPServer_Disabled(t *testing.T) {
	err := StartHTTPServer(context.Background(), HTTPServerOptions{}, zap.NewNop())
	require.NoError(t, err)
}

func TestStartHTTPServer_MetricsAndShutdown(t *testing.T) {
	listener := mustListen(t)
	port := listener.Addr().(*net.TCPAddr).Port
	listener.Close()

	registry := prometheus.NewRegistry()
	NewPrometheusMetrics(registry).ObserveFilter(2, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		errChan <- StartHTTPServer(ctx, HTTPServerOptions{
			Addr:          fmt.Sprintf("127.0.0.1:%d", port),
			EnableMetrics: true,
			Registry:      registry,
		}, zap.NewNop())
	}()

	url := fmt.Sprintf("http://127.0.0.1:%d/metrics", port)
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return resp.StatusCode == http.StatusOK && len(body) > 0
	}, 2*time.Second, 25*time.Millisecond)

	cancel()

	select {
	case err := <-errChan:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop in time")
	}
}

func TestStartHTTPServer_PortInUse(t *testing.T) {
	listener := mustListen(t)
	defer listener.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	err := StartHTTPServer(ctx, HTTPServerOptions{
		Addr:          listener.Addr().String(),
		EnableMetrics: true,
	}, zap.NewNop())
	if err == nil {
		t.Skip("listener address reusable on this platform")
	}
	assert.False(t, errors.Is(err, context.DeadlineExceeded))
}

func TestObservabilityMux_Healthz(t *testing.T) {
	tracker := NewHealthTracker()
	mux := newObservabilityMux(HTTPServerOptions{EnableHealthz: true, Health: tracker})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	tracker.Set("catalog", errors.New("reload failed"))
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var report HealthReport
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&report))
	assert.Equal(t, "degraded", report.Status)
	assert.Equal(t, "reload failed", report.Components["catalog"].Error)

	tracker.Set("catalog", nil)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestObservabilityMux_Catalog(t *testing.T) {
	mux := newObservabilityMux(HTTPServerOptions{
		Catalog: func() any { return map[string]any{"ids": []string{"add", "echo"}} },
	})
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/catalog", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ids":["add","echo"]}`, rec.Body.String())

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthTracker_NilSafe(t *testing.T) {
	var tracker *HealthTracker
	tracker.Set("x", nil)
	assert.Equal(t, "ok", tracker.Report().Status)
}

func mustListen(t *testing.T) net.Listener {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("skip test due to listen error: %v", err)
	}
	return listener
}
