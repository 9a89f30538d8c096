package watcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebouncerCoalescesCreateThenModifyIntoCreate(t *testing.T) {
	d := NewDebouncer(20*time.Millisecond, 4, 0)
	d.Add(FileEvent{Path: "a.md", Operation: OpCreate})
	d.Add(FileEvent{Path: "a.md", Operation: OpModify})

	select {
	case batch := <-d.Output():
		require.Len(t, batch, 1)
		assert.Equal(t, OpCreate, batch[0].Operation)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for batch")
	}
}

func TestDebouncerCancelsCreateThenDelete(t *testing.T) {
	d := NewDebouncer(20*time.Millisecond, 4, 0)
	d.Add(FileEvent{Path: "a.md", Operation: OpCreate})
	d.Add(FileEvent{Path: "a.md", Operation: OpDelete})

	select {
	case batch := <-d.Output():
		t.Fatalf("expected no batch, got %v", batch)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestDebouncerCoalescesModifyThenDeleteIntoDelete(t *testing.T) {
	d := NewDebouncer(20*time.Millisecond, 4, 0)
	d.Add(FileEvent{Path: "a.md", Operation: OpModify})
	d.Add(FileEvent{Path: "a.md", Operation: OpDelete})

	batch := <-d.Output()
	require.Len(t, batch, 1)
	assert.Equal(t, OpDelete, batch[0].Operation)
}

func TestDebouncerCoalescesDeleteThenCreateIntoModify(t *testing.T) {
	d := NewDebouncer(20*time.Millisecond, 4, 0)
	d.Add(FileEvent{Path: "a.md", Operation: OpDelete})
	d.Add(FileEvent{Path: "a.md", Operation: OpCreate})

	batch := <-d.Output()
	require.Len(t, batch, 1)
	assert.Equal(t, OpModify, batch[0].Operation)
}

func TestDebouncerBatchesDistinctPathsTogether(t *testing.T) {
	d := NewDebouncer(20*time.Millisecond, 4, 0)
	d.Add(FileEvent{Path: "a.md", Operation: OpCreate})
	d.Add(FileEvent{Path: "b.md", Operation: OpCreate})

	batch := <-d.Output()
	assert.Len(t, batch, 2)
}

func TestDebouncerDropsBatchWhenOutputFull(t *testing.T) {
	d := NewDebouncer(10*time.Millisecond, 1, 0)
	d.Add(FileEvent{Path: "a.md", Operation: OpCreate})
	time.Sleep(50 * time.Millisecond)
	d.Add(FileEvent{Path: "b.md", Operation: OpCreate})
	time.Sleep(50 * time.Millisecond)
	d.Add(FileEvent{Path: "c.md", Operation: OpCreate})
	time.Sleep(50 * time.Millisecond)

	assert.Positive(t, d.DroppedBatches())
}
