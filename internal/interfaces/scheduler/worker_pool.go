package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	jobTracer          = otel.Tracer("budget-master/scheduler")
	jobMeter           = otel.Meter("budget-master/scheduler")
	jobDuration, _     = jobMeter.Float64Histogram("scheduler.job.duration", metric.WithDescription("Job execution duration in seconds"), metric.WithUnit("s"))
	jobTotal, _        = jobMeter.Int64Counter("scheduler.job.total", metric.WithDescription("Total jobs executed by status"))
	jobQueueDropped, _ = jobMeter.Int64Counter("scheduler.job.queue_dropped", metric.WithDescription("Jobs dropped due to full queue"))
	jobRetries, _      = jobMeter.Int64Counter("scheduler.job.retries", metric.WithDescription("Job attempts repeated after a retryable failure"))
)

const (
	jobTimeout     = 120 * time.Second
	maxJobAttempts = 3
)

// WorkerPool runs jobs on a fixed number of goroutines. Jobs failing with
// ErrRetryable are attempted up to maxJobAttempts times.
type WorkerPool struct {
	workerCount int
	jobDelay    time.Duration
	jobs        chan Job
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc

	mu     sync.RWMutex
	closed bool
}

// NewWorkerPool creates a pool of workerCount goroutines that pause jobDelay
// between jobs and buffer up to queueSize queued jobs.
func NewWorkerPool(workerCount int, jobDelay time.Duration, queueSize int) *WorkerPool {
	ctx, cancel := context.WithCancel(context.Background())

	return &WorkerPool{
		workerCount: workerCount,
		jobDelay:    jobDelay,
		jobs:        make(chan Job, queueSize),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start() {
	log.Printf("Starting worker pool with %d workers", wp.workerCount)

	for i := 1; i <= wp.workerCount; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	log.Printf("Worker %d started", id)

	for {
		select {
		case <-wp.ctx.Done():
			log.Printf("Worker %d shutting down", id)
			return

		case job, ok := <-wp.jobs:
			if !ok {
				log.Printf("Worker %d: job channel closed", id)
				return
			}

			wp.processJob(id, job)

			if !wp.pause() {
				log.Printf("Worker %d shutting down during delay", id)
				return
			}
		}
	}
}

// pause waits jobDelay and reports false when the pool was cancelled meanwhile.
func (wp *WorkerPool) pause() bool {
	if wp.jobDelay <= 0 {
		return true
	}
	select {
	case <-time.After(wp.jobDelay):
		return true
	case <-wp.ctx.Done():
		return false
	}
}

// processJob executes a job with tracing and metrics, repeating attempts
// that fail with ErrRetryable.
func (wp *WorkerPool) processJob(workerID int, job Job) {
	log.Printf("Worker %d: Processing %s for user %s", workerID, job.Description(), job.UserID())

	for attempt := 1; ; attempt++ {
		err := wp.runAttempt(workerID, job, attempt)
		if err == nil {
			log.Printf("Worker %d: Successfully completed %s for user %s",
				workerID, job.Description(), job.UserID())
			return
		}

		log.Printf("Worker %d: Error processing %s for user %s (attempt %d/%d): %v",
			workerID, job.Description(), job.UserID(), attempt, maxJobAttempts, err)
		if !errors.Is(err, ErrRetryable) || attempt == maxJobAttempts {
			return
		}

		jobRetries.Add(wp.ctx, 1)
		if !wp.pause() {
			return
		}
	}
}

func (wp *WorkerPool) runAttempt(workerID int, job Job, attempt int) error {
	ctx, cancel := context.WithTimeout(wp.ctx, jobTimeout)
	defer cancel()

	ctx, span := jobTracer.Start(ctx, "job.execute",
		trace.WithAttributes(
			attribute.Int("worker.id", workerID),
			attribute.Int("job.attempt", attempt),
			attribute.String("job.description", job.Description()),
			attribute.String("job.user_id", job.UserID()),
		),
	)
	defer span.End()

	start := time.Now()
	err := job.Execute(ctx)
	jobDuration.Record(ctx, time.Since(start).Seconds())

	status := "success"
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		status = "error"
	}
	jobTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
	return err
}

// Submit queues a job without blocking. A full queue drops the job and
// returns an error, as does a pool that is shutting down.
func (wp *WorkerPool) Submit(job Job) error {
	wp.mu.RLock()
	defer wp.mu.RUnlock()
	if wp.closed {
		return fmt.Errorf("worker pool is shut down, dropping job for user %s", job.UserID())
	}

	select {
	case <-wp.ctx.Done():
		return wp.ctx.Err()
	case wp.jobs <- job:
		return nil
	default:
		jobQueueDropped.Add(context.Background(), 1)
		log.Printf("Warning: Job queue full, dropping job for user %s", job.UserID())
		return fmt.Errorf("job queue full, dropping job for user %s", job.UserID())
	}
}

// SubmitBatch queues jobs and returns how many were accepted.
func (wp *WorkerPool) SubmitBatch(jobs []Job) int {
	submitted := 0
	for _, job := range jobs {
		if err := wp.Submit(job); err != nil {
			log.Printf("Failed to submit job for user %s: %v", job.UserID(), err)
			continue
		}
		submitted++
	}
	log.Printf("Submitted %d/%d jobs to worker pool", submitted, len(jobs))
	return submitted
}

// closeQueue stops accepting jobs. It is safe to call more than once.
func (wp *WorkerPool) closeQueue() {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	if !wp.closed {
		wp.closed = true
		close(wp.jobs)
	}
}

// Shutdown stops accepting jobs, drains the queue, then cancels the pool context.
func (wp *WorkerPool) Shutdown() {
	log.Println("Worker pool: Initiating graceful shutdown")

	wp.closeQueue()

	log.Println("Worker pool: Waiting for workers to finish...")
	wp.wg.Wait()

	wp.cancel()

	log.Println("Worker pool: Shutdown complete")
}

// ShutdownWithTimeout is Shutdown bounded by timeout; running jobs see their
// context cancelled when it expires.
func (wp *WorkerPool) ShutdownWithTimeout(timeout time.Duration) {
	log.Printf("Worker pool: Initiating graceful shutdown with %v timeout", timeout)

	wp.closeQueue()

	done := make(chan struct{})
	go func() {
		wp.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("Worker pool: All workers finished gracefully")
	case <-time.After(timeout):
		log.Println("Worker pool: Timeout reached, forcing shutdown")
	}
	wp.cancel()

	log.Println("Worker pool: Shutdown complete")
}
