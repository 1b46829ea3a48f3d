package queue

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnqueueFullAndClosed(t *testing.T) {
	q := NewJobQueue(1)

	require.NoError(t, q.Enqueue(&HealthProbeJob{ServerID: "s1"}))
	assert.ErrorIs(t, q.Enqueue(&HealthProbeJob{ServerID: "s2"}), ErrQueueFull)
	assert.Equal(t, 1, q.Len())

	q.Close()
	q.Close()
	assert.ErrorIs(t, q.Enqueue(&HealthProbeJob{ServerID: "s3"}), ErrQueueClosed)
}

func TestWorkerPoolDrainsQueue(t *testing.T) {
	q := NewJobQueue(10)
	for _, id := range []string{"s1", "s2", "s3", "s4"} {
		require.NoError(t, q.Enqueue(&HealthProbeJob{ServerID: id, Reason: "schedule"}))
	}
	q.Close()

	var mu sync.Mutex
	seen := map[string]bool{}
	pool := NewWorkerPool(q, 2)
	pool.Start(context.Background(), func(_ context.Context, job *HealthProbeJob) error {
		mu.Lock()
		seen[job.ServerID] = true
		mu.Unlock()
		return nil
	})
	pool.Wait()

	assert.Len(t, seen, 4)
}

func TestWorkerPoolStop(t *testing.T) {
	q := NewJobQueue(1)
	pool := NewWorkerPool(q, 3)
	pool.Start(context.Background(), func(context.Context, *HealthProbeJob) error { return nil })

	pool.Stop()

	// Stopped workers leave queued jobs alone
	require.NoError(t, q.Enqueue(&HealthProbeJob{ServerID: "s1"}))
	assert.Equal(t, 1, q.Len())
}
