package inmemory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dvloznov/balance-indicators/internal/jobs"
	"github.com/dvloznov/balance-indicators/internal/logger"
)

// Queue is an in-memory implementation of job publisher and consumer.
// A single worker drains the channel, so actions run one at a time in
// publish order. Failed jobs are not retried.
type Queue struct {
	jobChan   chan *jobs.ActionJob
	closeChan chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
	mu        sync.RWMutex
	store     jobs.JobStore
	closed    bool
	started   bool
}

// NewQueue creates a new in-memory job queue.
// bufferSize determines how many jobs can be queued before Publish blocks.
func NewQueue(bufferSize int, store jobs.JobStore) *Queue {
	return &Queue{
		jobChan:   make(chan *jobs.ActionJob, bufferSize),
		closeChan: make(chan struct{}),
		store:     store,
	}
}

// Publish implements the Publisher interface.
// It enqueues an action job for asynchronous processing.
func (q *Queue) Publish(ctx context.Context, job *jobs.ActionJob) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return fmt.Errorf("queue is closed")
	}

	if job.JobID == "" {
		job.JobID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = jobs.JobStatusPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}

	if q.store != nil {
		if err := q.store.SaveJob(ctx, job); err != nil {
			return fmt.Errorf("failed to save job: %w", err)
		}
	}

	select {
	case q.jobChan <- job:
		return nil
	case <-ctx.Done():
		q.abandon(job, "job was not enqueued: "+ctx.Err().Error())
		return ctx.Err()
	case <-q.closeChan:
		q.abandon(job, "job was not enqueued: queue is closed")
		return fmt.Errorf("queue is closed")
	}
}

// abandon marks a saved job that will never run as failed.
func (q *Queue) abandon(job *jobs.ActionJob, reason string) {
	if q.store == nil {
		return
	}
	// The caller's context may already be done.
	if err := q.store.UpdateJobStatus(context.Background(), job.JobID, jobs.JobStatusFailed, reason); err != nil {
		log := logger.FromContext(context.Background())
		log.Warn().Err(err).Str("job_id", job.JobID).Msg("Marking abandoned job failed")
	}
}

// Start implements the Consumer interface.
// It starts the worker that processes jobs with handler.
func (q *Queue) Start(ctx context.Context, handler jobs.JobHandler) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return fmt.Errorf("queue is closed")
	}
	if q.started {
		return fmt.Errorf("queue already started")
	}
	q.started = true

	q.wg.Add(1)
	go q.worker(ctx, handler)
	return nil
}

// worker processes jobs from the queue.
func (q *Queue) worker(ctx context.Context, handler jobs.JobHandler) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.closeChan:
			return
		case job := <-q.jobChan:
			if job == nil {
				return
			}
			q.processJob(ctx, job, handler)
		}
	}
}

// processJob executes a single job once.
func (q *Queue) processJob(ctx context.Context, job *jobs.ActionJob, handler jobs.JobHandler) {
	log := logger.FromContext(ctx).With().
		Str("job_id", job.JobID).
		Str("job_type", string(job.Type)).
		Logger()

	job.Status = jobs.JobStatusRunning
	now := time.Now()
	job.StartedAt = &now
	q.save(ctx, job)

	err := runHandler(logger.WithContext(ctx, log), job, handler)

	completedAt := time.Now()
	job.CompletedAt = &completedAt
	job.Payload = nil

	if err != nil {
		job.Status = jobs.JobStatusFailed
		job.Error = err.Error()
		log.Error().Err(err).Msg("Job failed")
	} else {
		job.Status = jobs.JobStatusCompleted
		job.Error = ""
		log.Info().
			Str("warning", job.Warning).
			Dur("duration", completedAt.Sub(now)).
			Msg("Job completed")
	}

	q.save(ctx, job)
}

func runHandler(ctx context.Context, job *jobs.ActionJob, handler jobs.JobHandler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return handler(ctx, job)
}

func (q *Queue) save(ctx context.Context, job *jobs.ActionJob) {
	if q.store == nil {
		return
	}
	if err := q.store.SaveJob(ctx, job); err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Str("job_id", job.JobID).Msg("Saving job state failed")
	}
}

// Stop implements the Consumer interface.
// It stops the queue and waits for the in-flight job to complete. Jobs still
// waiting in the buffer are marked failed.
func (q *Queue) Stop(ctx context.Context) error {
	// Publishers blocked on a full buffer hold the read lock until closeChan
	// is closed.
	q.closeOnce.Do(func() { close(q.closeChan) })

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.drain()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) drain() {
	for {
		select {
		case job := <-q.jobChan:
			if job != nil {
				q.abandon(job, "queue stopped before the job ran")
			}
		default:
			return
		}
	}
}

// Close implements the Publisher interface.
func (q *Queue) Close() error {
	return q.Stop(context.Background())
}

// Ensure Queue implements both Publisher and Consumer interfaces.
var _ jobs.Publisher = (*Queue)(nil)
var _ jobs.Consumer = (*Queue)(nil)
