package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/systemshift/contextengine/internal/core"
	"github.com/systemshift/contextengine/internal/graph"
	"github.com/systemshift/contextengine/internal/observe"
	"github.com/systemshift/contextengine/internal/orchestrator"
)

func newTestServer(t *testing.T) (*Server, *orchestrator.Orchestrator) {
	t.Helper()
	cfg := core.DefaultConfig()
	cfg.MinIntervalMS = 1
	store := graph.New(cfg, core.SystemClock{})
	orch := orchestrator.New(cfg, core.SystemClock{}, store, nil, nil, observe.NewTestLogger(t), nil)
	orch.Bootstrap()
	t.Cleanup(orch.Shutdown)
	return New(orch, observe.NewTestLogger(t)), orch
}

func TestHandleAnalyzeRejectsEmptyURL(t *testing.T) {
	s, _ := newTestServer(t)
	body, _ := json.Marshal(map[string]any{"url": "", "timestamp": 1})
	req := httptest.NewRequest(http.MethodPost, "/api/analyze", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	s.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleAnalyzeAcceptsValidVisit(t *testing.T) {
	s, orch := newTestServer(t)
	body, _ := json.Marshal(map[string]any{
		"url":       "https://example.com/a",
		"title":     "Example",
		"content":   "go concurrency channels",
		"timestamp": 1,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/analyze", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	s.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Eventually(t, func() bool {
		_, ok := orch.GetContext()
		return ok
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHandleGetGraphHonorsLimit(t *testing.T) {
	s, orch := newTestServer(t)
	require.NoError(t, orch.Submit(orchestrator.Visit{URL: "https://example.com/a", Text: "go channels", Timestamp: 1}))
	require.Eventually(t, func() bool {
		_, ok := orch.GetContext()
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	req := httptest.NewRequest(http.MethodGet, "/api/graph?limit=1", nil)
	rec := httptest.NewRecorder()

	s.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var snap orchestrator.GraphSnapshot
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&snap))
	require.Len(t, snap.Nodes, 1)
}

func TestHandleGetGraphRejectsInvalidLimit(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/graph?limit=-1", nil)
	rec := httptest.NewRecorder()

	s.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleGetStats(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	rec := httptest.NewRecorder()

	s.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var stats orchestrator.Stats
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&stats))
	require.True(t, stats.ExtractorOK)
}
