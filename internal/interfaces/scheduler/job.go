package scheduler

import (
	"context"
	"errors"
)

// ErrRetryable marks a job failure worth another attempt. Jobs wrap it with
// fmt.Errorf("%w: ...", ErrRetryable).
var ErrRetryable = errors.New("retryable job failure")

// Job is a unit of work executed by the worker pool.
type Job interface {
	// Execute runs the job. Implementations must respect ctx cancellation.
	Execute(ctx context.Context) error

	// UserID identifies whose data the job touches, for logs and spans.
	UserID() string

	Description() string
}

// JobProvider builds the batch submitted on each scheduled run.
type JobProvider func(ctx context.Context) ([]Job, error)
