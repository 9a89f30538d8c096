package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/katanaquant/ragengine/internal/config"
	"github.com/katanaquant/ragengine/internal/domain"
)

func testConfig(t *testing.T, knowledgeBase string) config.Settings {
	t.Helper()
	cfg := config.Default()
	cfg.Embedding.Dim = 256
	cfg.Embedding.Provider = "static"
	cfg.Paths.KnowledgeBase = knowledgeBase
	cfg.Paths.DataDir = t.TempDir()
	cfg.Watcher.DebounceMS = 20
	cfg.Logging.Level = "error"
	return cfg
}

func TestNewWiresEveryComponent(t *testing.T) {
	cfg := testConfig(t, t.TempDir())
	state, err := New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = state.Stop() })

	assert.NotNil(t, state.Backend)
	assert.NotNil(t, state.Queue)
	assert.NotNil(t, state.Embedder)
	assert.NotNil(t, state.Sanitizer)
	assert.NotNil(t, state.Coordinator)
	assert.NotNil(t, state.Worker)
	assert.NotNil(t, state.Searcher)
	assert.NotNil(t, state.Query)
	assert.NotNil(t, state.Watcher)
	assert.NotNil(t, state.Metrics)
}

func TestStartRunsSanitizerAndBringsUpWatcher(t *testing.T) {
	root := t.TempDir()
	cfg := testConfig(t, root)
	state, err := New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = state.Stop() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, state.Start(ctx))

	require.NoError(t, os.WriteFile(filepath.Join(root, "note.md"), []byte("# hello world"), 0o644))

	require.Eventually(t, func() bool {
		docs, err := state.Backend.QueryDocumentsWithChunks(ctx)
		return err == nil && len(docs) == 1
	}, 3*time.Second, 20*time.Millisecond, "watcher-admitted file never finished indexing")
}

func TestIndexPathAdmitsFileBypassingWatcher(t *testing.T) {
	root := t.TempDir()
	cfg := testConfig(t, root)
	state, err := New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = state.Stop() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, state.Start(ctx))

	path := filepath.Join(root, "direct.md")
	require.NoError(t, os.WriteFile(path, []byte("# direct admission"), 0o644))
	state.IndexPath(path, domain.PriorityHigh, false)

	require.Eventually(t, func() bool {
		docs, err := state.Backend.QueryDocumentsWithChunks(ctx)
		return err == nil && len(docs) == 1 && docs[0].FilePath == path
	}, 3*time.Second, 20*time.Millisecond, "direct admission never finished indexing")
}

func TestStopIsIdempotent(t *testing.T) {
	cfg := testConfig(t, t.TempDir())
	state, err := New(context.Background(), cfg)
	require.NoError(t, err)

	require.NoError(t, state.Start(context.Background()))
	require.NoError(t, state.Stop())
	require.NoError(t, state.Stop())
}

func TestStopWithoutStartDoesNotPanic(t *testing.T) {
	cfg := testConfig(t, t.TempDir())
	state, err := New(context.Background(), cfg)
	require.NoError(t, err)

	assert.NotPanics(t, func() { _ = state.Stop() })
}
