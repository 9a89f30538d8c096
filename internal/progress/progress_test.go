package progress

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/katanaquant/ragengine/internal/domain"
	"github.com/katanaquant/ragengine/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	store.ProgressStore
	rows map[string]domain.Progress
}

func (f *fakeBackend) GetProgress(_ context.Context, path string) (domain.Progress, error) {
	p, ok := f.rows[path]
	if !ok {
		return domain.Progress{}, store.ErrNotFound
	}
	return p, nil
}

func TestEvaluateStartsFreshWhenNoProgressExists(t *testing.T) {
	tr := New(&fakeBackend{rows: map[string]domain.Progress{}})
	d, err := tr.Evaluate(context.Background(), "a.md", "hash1")
	require.NoError(t, err)
	assert.Equal(t, ActionStartFresh, d.Action)
}

func TestEvaluateSkipsCompletedUnchangedFile(t *testing.T) {
	tr := New(&fakeBackend{rows: map[string]domain.Progress{
		"a.md": {FilePath: "a.md", FileHash: "hash1", Status: domain.StatusCompleted},
	}})
	d, err := tr.Evaluate(context.Background(), "a.md", "hash1")
	require.NoError(t, err)
	assert.Equal(t, ActionSkip, d.Action)
}

func TestEvaluateStartsFreshWhenCompletedButHashChanged(t *testing.T) {
	tr := New(&fakeBackend{rows: map[string]domain.Progress{
		"a.md": {FilePath: "a.md", FileHash: "old", Status: domain.StatusCompleted},
	}})
	d, err := tr.Evaluate(context.Background(), "a.md", "new")
	require.NoError(t, err)
	assert.Equal(t, ActionStartFresh, d.Action)
}

func TestEvaluateResumesInProgressSameHash(t *testing.T) {
	tr := New(&fakeBackend{rows: map[string]domain.Progress{
		"a.md": {FilePath: "a.md", FileHash: "hash1", Status: domain.StatusInProgress, LastChunkEnd: 7,
			LastUpdated: time.Now()},
	}})
	d, err := tr.Evaluate(context.Background(), "a.md", "hash1")
	require.NoError(t, err)
	assert.Equal(t, ActionResume, d.Action)
	assert.Equal(t, 7, d.ResumeFromChunk)
}

func TestEvaluateRetriesFailedFile(t *testing.T) {
	tr := New(&fakeBackend{rows: map[string]domain.Progress{
		"a.md": {FilePath: "a.md", FileHash: "hash1", Status: domain.StatusFailed},
	}})
	d, err := tr.Evaluate(context.Background(), "a.md", "hash1")
	require.NoError(t, err)
	assert.Equal(t, ActionRetry, d.Action)
}

func TestEvaluateRetriesRejectedFile(t *testing.T) {
	tr := New(&fakeBackend{rows: map[string]domain.Progress{
		"a.md": {FilePath: "a.md", FileHash: "hash1", Status: domain.StatusRejected},
	}})
	d, err := tr.Evaluate(context.Background(), "a.md", "hash1")
	require.NoError(t, err)
	assert.Equal(t, ActionRetry, d.Action)
}

func TestEvaluatePropagatesUnexpectedBackendError(t *testing.T) {
	tr := New(failingBackend{})
	_, err := tr.Evaluate(context.Background(), "a.md", "hash1")
	assert.Error(t, err)
}

type failingBackend struct{ store.ProgressStore }

func (failingBackend) GetProgress(context.Context, string) (domain.Progress, error) {
	return domain.Progress{}, errors.New("boom")
}
