package webserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mmiles2012/Virgin-AI-OPS-prototype-sub003/internal/analysis"
	"github.com/mmiles2012/Virgin-AI-OPS-prototype-sub003/internal/insights"
	"github.com/mmiles2012/Virgin-AI-OPS-prototype-sub003/internal/webapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDeps() webapi.Deps {
	agg := insights.New(nil)
	return webapi.Deps{
		Analyzer: analysis.NewDispatcher(analysis.NewRuleBasedAnalyzer(nil), analysis.WithRecorder(agg)),
		Insights: agg,
	}
}

func newTestServer(t *testing.T, origins ...string) *Server {
	t.Helper()
	srv, err := New(Config{Addr: "127.0.0.1:0", Deps: testDeps(), CORSOrigins: origins})
	require.NoError(t, err)
	return srv
}

func TestNew_RequiresDeps(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
}

func TestHealthEndpoint(t *testing.T) {
	handler := newTestServer(t).Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Contains(t, body, "capabilities")
}

func TestUnknownAPIRouteIsJSON404(t *testing.T) {
	handler := newTestServer(t).Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/runs", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestIndexListsEndpoints(t *testing.T) {
	handler := newTestServer(t).Handler()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "POST /api/analyze")
}

func TestCORSIsApplied(t *testing.T) {
	handler := newTestServer(t, "http://localhost:5173").Handler()

	req := httptest.NewRequest(http.MethodOptions, "/api/analyze", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestServe_GracefulShutdown(t *testing.T) {
	srv := newTestServer(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ctx, ln) }()

	url := fmt.Sprintf("http://%s/api/analyze", ln.Addr().String())
	resp, err := http.Post(url, "application/json", strings.NewReader(`{"type":"diversion","options":[{"id":"EGKK"}]}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
}
