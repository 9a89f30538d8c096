package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/katanaquant/ragengine/internal/config"
	"github.com/katanaquant/ragengine/internal/domain"
	"github.com/katanaquant/ragengine/internal/orchestrator"
)

func newTestServer(t *testing.T) (*Server, *orchestrator.AppState) {
	t.Helper()
	cfg := config.Default()
	cfg.Embedding.Dim = 256
	cfg.Embedding.Provider = "static"
	cfg.Paths.KnowledgeBase = t.TempDir()
	cfg.Paths.DataDir = t.TempDir()
	cfg.Watcher.DebounceMS = 20
	cfg.Logging.Level = "error"

	state, err := orchestrator.New(context.Background(), cfg)
	require.NoError(t, err)
	require.NoError(t, state.Start(context.Background()))
	t.Cleanup(func() { _ = state.Stop() })

	return New(state, nil), state
}

func TestHandleQueryRejectsEmptyText(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(`{"text":""}`))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleQueryReturnsResultsAfterIndexing(t *testing.T) {
	srv, state := newTestServer(t)

	path := filepath.Join(state.Config.Paths.KnowledgeBase, "note.md")
	require.NoError(t, os.WriteFile(path, []byte("# alpha beta gamma"), 0o644))
	state.IndexPath(path, domain.PriorityHigh, false)

	require.Eventually(t, func() bool {
		docs, err := state.Backend.QueryDocumentsWithChunks(context.Background())
		return err == nil && len(docs) == 1
	}, 3*time.Second, 20*time.Millisecond)

	req := httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(`{"text":"alpha","top_k":5}`))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp queryResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.NotEmpty(t, resp.Results)
}

func TestHandleIndexingPauseAndResume(t *testing.T) {
	srv, state := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/indexing/pause", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, state.Queue.IsPaused())

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/indexing/resume", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, state.Queue.IsPaused())
}

func TestHandleDeleteDocumentNotFoundReturns404(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodDelete, "/document/missing.md", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleHealthReportsStats(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp healthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestHandleSecurityScanRoundTrip(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/security/scan", nil))
	require.Equal(t, http.StatusAccepted, rec.Code)

	var started map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&started))
	jobID := started["job_id"]
	require.NotEmpty(t, jobID)

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/security/scan/"+jobID, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleRebuildHNSWPrunesOrphans(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/maintenance/rebuild-hnsw", strings.NewReader(`{"dry_run":false}`))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
