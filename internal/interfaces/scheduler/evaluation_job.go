package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"cloud.google.com/go/civil"

	"github.com/liamhowell4/budget-master-sub001/internal/domain/evaluation"
	"github.com/liamhowell4/budget-master-sub001/internal/domain/recurring"
)

// UserEvaluator reconciles one user's templates for a day.
type UserEvaluator interface {
	EvaluateUser(ctx context.Context, userID string, today civil.Date) (*evaluation.Result, error)
}

// TemplateLister lists templates the scheduler should visit.
type TemplateLister interface {
	ListActiveTemplates(ctx context.Context) ([]*recurring.Template, error)
}

// RecurringEvaluationJob runs one evaluation pass for a single user.
type RecurringEvaluationJob struct {
	userID    string
	evaluator UserEvaluator
	location  *time.Location
	now       func() time.Time
}

func NewRecurringEvaluationJob(userID string, evaluator UserEvaluator, location *time.Location) *RecurringEvaluationJob {
	return &RecurringEvaluationJob{
		userID:    userID,
		evaluator: evaluator,
		location:  location,
		now:       time.Now,
	}
}

// Execute evaluates the user's templates as of today in the job's location.
// Template failures that may succeed on a later attempt are reported as
// ErrRetryable so the pool tries again; the pass itself is idempotent.
func (j *RecurringEvaluationJob) Execute(ctx context.Context) error {
	today := civil.DateOf(j.now().In(j.location))

	result, err := j.evaluator.EvaluateUser(ctx, j.userID, today)
	if err != nil {
		if recurring.IsRetryable(err) {
			return fmt.Errorf("%w: evaluation failed: %v", ErrRetryable, err)
		}
		return fmt.Errorf("evaluation failed: %w", err)
	}

	if len(result.Errors) > 0 {
		log.Printf("Recurring evaluation for user %s completed with errors: Evaluated=%d, Created=%d, Errors=%d",
			j.userID, result.Evaluated, len(result.Created), len(result.Errors))
		if result.HasRetryableErrors() {
			return fmt.Errorf("%w: %d templates failed", ErrRetryable, len(result.Errors))
		}
		return nil
	}

	log.Printf("Recurring evaluation for user %s completed: Evaluated=%d, Created=%d",
		j.userID, result.Evaluated, len(result.Created))
	return nil
}

func (j *RecurringEvaluationJob) UserID() string {
	return j.userID
}

func (j *RecurringEvaluationJob) Description() string {
	return fmt.Sprintf("Recurring evaluation for user %s", j.userID)
}

// EvaluationJobProvider returns one job per user owning at least one active
// template, in the order users first appear.
func EvaluationJobProvider(templates TemplateLister, evaluator UserEvaluator, location *time.Location) JobProvider {
	return func(ctx context.Context) ([]Job, error) {
		active, err := templates.ListActiveTemplates(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list active templates: %w", err)
		}

		seen := make(map[string]struct{})
		var jobs []Job
		for _, t := range active {
			if _, ok := seen[t.UserID]; ok {
				continue
			}
			seen[t.UserID] = struct{}{}
			jobs = append(jobs, NewRecurringEvaluationJob(t.UserID, evaluator, location))
		}
		return jobs, nil
	}
}
