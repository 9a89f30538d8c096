package mcp

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/katanaquant/ragengine/internal/config"
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

	return New(state, "test", nil), state
}

func TestSearchHandlerRejectsEmptyQuery(t *testing.T) {
	srv, _ := newTestServer(t)

	_, _, err := srv.searchHandler(context.Background(), nil, SearchInput{})
	require.Error(t, err)
	assert.Equal(t, ErrCodeInvalidParams, err.(*MCPError).Code)
}

func TestSearchHandlerReturnsIndexedResults(t *testing.T) {
	srv, state := newTestServer(t)

	path := filepath.Join(state.Config.Paths.KnowledgeBase, "note.md")
	require.NoError(t, os.WriteFile(path, []byte("# alpha beta gamma"), 0o644))

	_, _, err := srv.indexHandler(context.Background(), nil, IndexInput{Path: path})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		docs, err := state.Backend.QueryDocumentsWithChunks(context.Background())
		return err == nil && len(docs) == 1
	}, 3*time.Second, 20*time.Millisecond)

	_, out, err := srv.searchHandler(context.Background(), nil, SearchInput{Query: "alpha", TopK: 5})
	require.NoError(t, err)
	assert.NotEmpty(t, out.Results)
}

func TestIndexHandlerRejectsEmptyPath(t *testing.T) {
	srv, _ := newTestServer(t)

	_, _, err := srv.indexHandler(context.Background(), nil, IndexInput{})
	require.Error(t, err)
}

func TestStatusHandlerReportsQueueState(t *testing.T) {
	srv, state := newTestServer(t)

	state.Queue.Pause()
	_, out, err := srv.statusHandler(context.Background(), nil, StatusInput{})
	require.NoError(t, err)
	assert.True(t, out.Paused)
}
