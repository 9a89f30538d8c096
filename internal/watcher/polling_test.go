package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/katanaquant/ragengine/internal/ignore"
)

func startPolling(t *testing.T, root string, interval time.Duration) *PollingWatcher {
	t.Helper()
	d := NewDebouncer(20*time.Millisecond, 16, 0)
	p := NewPollingWatcher(interval, ignore.New(), d)
	go func() { _ = p.Start(root) }()
	t.Cleanup(func() { _ = p.Stop() })
	return p
}

func TestPollingWatcherDetectsCreatedFile(t *testing.T) {
	root := t.TempDir()
	p := startPolling(t, root, 20*time.Millisecond)

	time.Sleep(30 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(root, "new.md"), []byte("hello"), 0o644))

	select {
	case batch := <-p.Events():
		require.Len(t, batch, 1)
		assert.Equal(t, OpCreate, batch[0].Operation)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for create event")
	}
}

func TestPollingWatcherDetectsModifiedFile(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "doc.md")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))

	p := startPolling(t, root, 20*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("v2, now longer"), 0o644))

	select {
	case batch := <-p.Events():
		require.Len(t, batch, 1)
		assert.Equal(t, OpModify, batch[0].Operation)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for modify event")
	}
}

func TestPollingWatcherDetectsDeletedFile(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "doc.md")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))

	p := startPolling(t, root, 20*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	require.NoError(t, os.Remove(path))

	select {
	case batch := <-p.Events():
		require.Len(t, batch, 1)
		assert.Equal(t, OpDelete, batch[0].Operation)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delete event")
	}
}

func TestPollingWatcherSkipsIgnoredPaths(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git"), 0o755))

	d := NewDebouncer(20*time.Millisecond, 16, 0)
	p := NewPollingWatcher(20*time.Millisecond, ignore.New(), d)
	go func() { _ = p.Start(root) }()
	t.Cleanup(func() { _ = p.Stop() })

	time.Sleep(30 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(root, ".git", "HEAD"), []byte("ref: refs/heads/main"), 0o644))

	select {
	case batch := <-p.Events():
		t.Fatalf("expected ignored path to produce no event, got %v", batch)
	case <-time.After(200 * time.Millisecond):
	}
}
