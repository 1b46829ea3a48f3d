package queue

import (
	"context"
	"sync"

	"github.com/imyashkale/mcpgateway/internal/logger"
)

// HealthProbeJob asks a worker to probe one tool server
type HealthProbeJob struct {
	ServerID string
	Reason   string // "schedule" or "manual"
}

// JobQueue manages the job queue with a channel-based system
type JobQueue struct {
	jobs   chan *HealthProbeJob
	closed bool
	mu     sync.Mutex
}

// NewJobQueue creates a new job queue with the specified buffer size
func NewJobQueue(bufferSize int) *JobQueue {
	return &JobQueue{
		jobs: make(chan *HealthProbeJob, bufferSize),
	}
}

// Enqueue adds a job to the queue without blocking. A full queue means the
// previous round is still being worked through, so the job is dropped.
func (jq *JobQueue) Enqueue(job *HealthProbeJob) error {
	jq.mu.Lock()
	defer jq.mu.Unlock()

	if jq.closed {
		logger.WithField("server_id", job.ServerID).Warn("Failed to enqueue probe: queue is closed")
		return ErrQueueClosed
	}

	select {
	case jq.jobs <- job:
		logger.WithFields(map[string]interface{}{
			"server_id": job.ServerID,
			"reason":    job.Reason,
		}).Debug("Health probe enqueued")
		return nil
	default:
		logger.WithField("server_id", job.ServerID).Warn("Failed to enqueue probe: queue is full")
		return ErrQueueFull
	}
}

// Jobs returns the underlying channel for job consumption
func (jq *JobQueue) Jobs() <-chan *HealthProbeJob {
	return jq.jobs
}

// Len returns the number of queued jobs
func (jq *JobQueue) Len() int {
	return len(jq.jobs)
}

// Close closes the queue
func (jq *JobQueue) Close() {
	jq.mu.Lock()
	defer jq.mu.Unlock()

	if jq.closed {
		return
	}
	jq.closed = true
	close(jq.jobs)
}

// Handler processes a single job
type Handler func(ctx context.Context, job *HealthProbeJob) error

// WorkerPool manages multiple workers processing jobs
type WorkerPool struct {
	queue   *JobQueue
	workers int
	wg      sync.WaitGroup
	cancel  context.CancelFunc
}

// NewWorkerPool creates a new worker pool
func NewWorkerPool(queue *JobQueue, numWorkers int) *WorkerPool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	return &WorkerPool{
		queue:   queue,
		workers: numWorkers,
	}
}

// Start starts all workers. Cancelling ctx or calling Stop ends them.
func (wp *WorkerPool) Start(ctx context.Context, handler Handler) {
	ctx, wp.cancel = context.WithCancel(ctx)
	for i := 0; i < wp.workers; i++ {
		wp.wg.Add(1)
		go wp.worker(ctx, handler)
	}
}

// worker processes jobs from the queue
func (wp *WorkerPool) worker(ctx context.Context, handler Handler) {
	defer wp.wg.Done()

	for {
		select {
		case job, ok := <-wp.queue.Jobs():
			if !ok {
				logger.Debug("Worker exiting: jobs channel closed")
				return
			}
			if job == nil {
				continue
			}

			if err := handler(ctx, job); err != nil {
				logger.WithFields(map[string]interface{}{
					"server_id": job.ServerID,
					"error":     err.Error(),
				}).Warn("Worker failed to process health probe")
			}
		case <-ctx.Done():
			logger.Debug("Worker exiting: stop signal received")
			return
		}
	}
}

// Stop stops all workers and waits for in-flight jobs
func (wp *WorkerPool) Stop() {
	if wp.cancel != nil {
		wp.cancel()
	}
	wp.wg.Wait()
}

// Wait waits for all workers to finish
func (wp *WorkerPool) Wait() {
	wp.wg.Wait()
}
