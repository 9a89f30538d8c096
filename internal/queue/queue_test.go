package queue

import (
	"context"
	"testing"
	"time"

	"github.com/katanaquant/ragengine/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddDedupsInFlightPath(t *testing.T) {
	q := New()
	for i := 0; i < 100; i++ {
		q.Add("notes/a.txt", domain.PriorityNormal, false)
	}
	assert.Equal(t, 1, q.Size())

	item, ok := q.Get(context.Background(), 10*time.Millisecond)
	require.True(t, ok)
	assert.Equal(t, "notes/a.txt", item.Path)

	// Still in flight until MarkComplete, so re-adding is a no-op.
	q.Add("notes/a.txt", domain.PriorityNormal, false)
	assert.Equal(t, 0, q.Size())

	q.MarkComplete("notes/a.txt")
	q.Add("notes/a.txt", domain.PriorityNormal, false)
	assert.Equal(t, 1, q.Size())
}

func TestGetOrdersByPriorityThenFIFO(t *testing.T) {
	q := New()
	q.Add("low1", domain.PriorityLow, false)
	q.Add("normal1", domain.PriorityNormal, false)
	q.Add("urgent1", domain.PriorityUrgent, false)
	q.Add("normal2", domain.PriorityNormal, false)
	q.Add("high1", domain.PriorityHigh, false)

	var order []string
	for i := 0; i < 5; i++ {
		item, ok := q.Get(context.Background(), 10*time.Millisecond)
		require.True(t, ok)
		order = append(order, item.Path)
	}
	assert.Equal(t, []string{"urgent1", "high1", "normal1", "normal2", "low1"}, order)
}

func TestGetReturnsFalseWhenPaused(t *testing.T) {
	q := New()
	q.Add("a", domain.PriorityNormal, false)
	q.Pause()
	_, ok := q.Get(context.Background(), 10*time.Millisecond)
	assert.False(t, ok)
	assert.True(t, q.IsPaused())

	q.Resume()
	item, ok := q.Get(context.Background(), 10*time.Millisecond)
	require.True(t, ok)
	assert.Equal(t, "a", item.Path)
}

func TestGetTimesOutOnEmptyQueue(t *testing.T) {
	q := New()
	start := time.Now()
	_, ok := q.Get(context.Background(), 20*time.Millisecond)
	assert.False(t, ok)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestClearDropsHeapAndInFlightSet(t *testing.T) {
	q := New()
	q.Add("a", domain.PriorityNormal, false)
	q.Add("b", domain.PriorityNormal, false)
	q.Clear()
	assert.Equal(t, 0, q.Size())
	assert.Equal(t, 0, q.InFlight())

	// Previously in-flight path is addable again immediately.
	q.Add("a", domain.PriorityNormal, false)
	assert.Equal(t, 1, q.Size())
}

func TestForceDoesNotBypassDedup(t *testing.T) {
	q := New()
	q.Add("a", domain.PriorityNormal, false)
	q.Add("a", domain.PriorityUrgent, true)
	assert.Equal(t, 1, q.Size())
}

func TestCloseUnblocksWaitersAndStopsAdmission(t *testing.T) {
	q := New()
	done := make(chan bool, 1)
	go func() {
		_, ok := q.Get(context.Background(), time.Second)
		done <- ok
	}()
	time.Sleep(5 * time.Millisecond)
	q.Close()
	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Get did not unblock after Close")
	}

	q.Add("after-close", domain.PriorityNormal, false)
	assert.Equal(t, 0, q.Size())
}

func TestGetUnblocksOnContextCancellation(t *testing.T) {
	q := New()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan bool, 1)
	go func() {
		_, ok := q.Get(ctx, time.Second)
		done <- ok
	}()
	time.Sleep(5 * time.Millisecond)
	cancel()
	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Get did not unblock after context cancellation")
	}
}
