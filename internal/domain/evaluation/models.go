package evaluation

import (
	"context"
	"time"

	"cloud.google.com/go/civil"

	"github.com/liamhowell4/budget-master-sub001/internal/domain/budget"
	"github.com/liamhowell4/budget-master-sub001/internal/domain/recurring"
)

// Event types published after evaluation passes and ledger writes.
const (
	EventPendingCreated = "pending.created"
	EventExpenseWritten = "expense.recorded"
	EventBudgetWarning  = "budget.warning"
)

// Event is a domain event for downstream consumers.
type Event struct {
	Type       string    `json:"type"`
	UserID     string    `json:"userId"`
	OccurredAt time.Time `json:"occurredAt"`
	Payload    any       `json:"payload"`
}

// EventPublisher delivers domain events. Implemented by the Kafka publisher.
type EventPublisher interface {
	Publish(ctx context.Context, events ...Event) error
}

// Notifier surfaces new pending instances and budget warnings to the user.
type Notifier interface {
	NotifyPending(ctx context.Context, p *recurring.PendingExpense) error
	NotifyWarnings(ctx context.Context, userID string, warnings []budget.Warning) error
}

// TemplateError records a template whose reconciliation failed.
type TemplateError struct {
	TemplateID string `json:"templateId"`
	UserID     string `json:"-"`
	Err        error  `json:"-"`
	Message    string `json:"error"`
	Retryable  bool   `json:"retryable"`
}

// Result aggregates one evaluation pass.
type Result struct {
	Date      civil.Date                  `json:"date"`
	Evaluated int                         `json:"evaluated"`
	Outcomes  map[recurring.Outcome]int   `json:"outcomes"`
	Created   []*recurring.PendingExpense `json:"created"`
	Errors    []TemplateError             `json:"errors,omitempty"`
}

// HasRetryableErrors reports whether any failure in the pass is worth retrying.
func (r *Result) HasRetryableErrors() bool {
	for _, e := range r.Errors {
		if e.Retryable {
			return true
		}
	}
	return false
}
