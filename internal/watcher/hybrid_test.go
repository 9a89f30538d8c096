package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHybridWatcherUsesFsnotifyAndDetectsCreate(t *testing.T) {
	root := t.TempDir()
	w := NewHybridWatcher(Options{DebounceWindow: 20 * time.Millisecond}, nil, nil)
	require.NoError(t, w.Start(root))
	defer func() { _ = w.Stop() }()

	assert.Equal(t, "fsnotify", w.Mode())

	require.NoError(t, os.WriteFile(filepath.Join(root, "new.md"), []byte("hello"), 0o644))

	select {
	case batch := <-w.Events():
		require.Len(t, batch, 1)
		assert.Equal(t, OpCreate, batch[0].Operation)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for create event")
	}
}

func TestHybridWatcherIgnoresDefaultPatterns(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git"), 0o755))

	w := NewHybridWatcher(Options{DebounceWindow: 20 * time.Millisecond}, nil, nil)
	require.NoError(t, w.Start(root))
	defer func() { _ = w.Stop() }()

	require.NoError(t, os.WriteFile(filepath.Join(root, ".git", "HEAD"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "visible.md"), []byte("x"), 0o644))

	select {
	case batch := <-w.Events():
		require.Len(t, batch, 1)
		assert.Equal(t, filepath.Join(root, "visible.md"), batch[0].Path)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for create event")
	}
}

func TestHybridWatcherStopIsIdempotent(t *testing.T) {
	root := t.TempDir()
	w := NewHybridWatcher(Options{}, nil, nil)
	require.NoError(t, w.Start(root))
	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())
}
