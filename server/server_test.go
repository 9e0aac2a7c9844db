package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erni-gruppe/building-agents/orchestrate"
)

type stubHandler struct {
	resp *orchestrate.TurnResponse
	err  error
	got  orchestrate.TurnRequest
}

func (s *stubHandler) HandleTurn(ctx context.Context, req orchestrate.TurnRequest) (*orchestrate.TurnResponse, error) {
	s.got = req
	if s.err != nil {
		return nil, s.err
	}
	return s.resp, nil
}

func newTestServer(h TurnHandler, optFns ...func(o *Options)) *Server {
	return New(":0", h, optFns...)
}

func TestChat(t *testing.T) {
	h := &stubHandler{resp: &orchestrate.TurnResponse{
		ConversationID: "conv-1",
		CurrentAgent:   "Triage Agent",
		Messages:       []orchestrate.Message{{Content: "Hello!", Agent: "Triage Agent"}},
	}}
	srv := newTestServer(h)

	req := httptest.NewRequest(http.MethodPost, "/chat",
		strings.NewReader(`{"conversation_id": "conv-1", "message": "Hi"}`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "conv-1", h.got.ConversationID)
	assert.Equal(t, "Hi", h.got.Message)

	var resp orchestrate.TurnResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Triage Agent", resp.CurrentAgent)
	require.Len(t, resp.Messages, 1)
	assert.Equal(t, "Hello!", resp.Messages[0].Content)
}

func TestChat_InvalidBody(t *testing.T) {
	srv := newTestServer(&stubHandler{})

	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChat_HandlerFailure(t *testing.T) {
	srv := newTestServer(&stubHandler{err: errors.New("model endpoint down")})

	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"message": "Hi"}`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "agent execution failed")
}

func TestChat_MethodNotAllowed(t *testing.T) {
	srv := newTestServer(&stubHandler{})

	req := httptest.NewRequest(http.MethodGet, "/chat", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHealth(t *testing.T) {
	srv := newTestServer(&stubHandler{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, serviceName, body["service"])
	assert.Equal(t, serviceVersion, body["version"])
	assert.NotEmpty(t, body["environment"])
}

func TestReadiness(t *testing.T) {
	t.Run("ready", func(t *testing.T) {
		srv := newTestServer(&stubHandler{}, func(o *Options) {
			o.ReadinessChecks = map[string]ReadinessCheck{
				"environment_configured": func(context.Context) bool { return true },
			}
		})

		req := httptest.NewRequest(http.MethodGet, "/readiness", nil)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "ready", body["status"])
	})

	t.Run("not ready", func(t *testing.T) {
		srv := newTestServer(&stubHandler{}, func(o *Options) {
			o.ReadinessChecks = map[string]ReadinessCheck{
				"environment_configured": func(context.Context) bool { return false },
			}
		})

		req := httptest.NewRequest(http.MethodGet, "/readiness", nil)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestMetricsEndpoint(t *testing.T) {
	registry := prometheus.NewRegistry()
	srv := newTestServer(&stubHandler{}, func(o *Options) {
		o.MetricsRegistry = registry
	})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORS(t *testing.T) {
	srv := newTestServer(&stubHandler{}, func(o *Options) {
		o.AllowedOrigins = []string{"http://localhost:3000"}
	})

	t.Run("allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/chat", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("disallowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/chat", nil)
		req.Header.Set("Origin", "https://evil.example")
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)

		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})
}
