package evaluation

import (
	"context"
	"log"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/liamhowell4/budget-master-sub001/internal/domain/budget"
	"github.com/liamhowell4/budget-master-sub001/internal/domain/expense"
	"github.com/liamhowell4/budget-master-sub001/internal/domain/recurring"
)

var (
	evalTracer         = otel.Tracer("budget-master/evaluation")
	evalMeter          = otel.Meter("budget-master/evaluation")
	pendingCreated, _  = evalMeter.Int64Counter("recurring.pending.created", metric.WithDescription("Pending instances materialized"))
	reconcileFails, _  = evalMeter.Int64Counter("recurring.reconcile.failed", metric.WithDescription("Template reconciliations that returned an error"))
	warningsEmitted, _ = evalMeter.Int64Counter("budget.warnings.emitted", metric.WithDescription("Budget warnings emitted by scope kind and level"))
)

// Service is the evaluation orchestrator. It owns no state: templates are
// reconciled independently and every ledger write is followed by exactly one
// budget evaluation.
type Service struct {
	recurring *recurring.Service
	expenses  *expense.Service
	tracker   *budget.Tracker
	notifier  Notifier
	events    EventPublisher
	now       func() time.Time
}

// NewService creates a new evaluation orchestrator
func NewService(rec *recurring.Service, expenses *expense.Service, tracker *budget.Tracker) *Service {
	return &Service{recurring: rec, expenses: expenses, tracker: tracker, now: time.Now}
}

// SetNotifier enables push notifications for new pending instances and warnings.
func (s *Service) SetNotifier(n Notifier) {
	s.notifier = n
}

// SetEventPublisher enables domain event publishing.
func (s *Service) SetEventPublisher(p EventPublisher) {
	s.events = p
}

// EvaluateAll reconciles every active template once for today.
func (s *Service) EvaluateAll(ctx context.Context, today civil.Date) (*Result, error) {
	ctx, span := evalTracer.Start(ctx, "evaluation.all")
	defer span.End()

	templates, err := s.recurring.ListActiveTemplates(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return s.evaluate(ctx, templates, today), nil
}

// EvaluateUser reconciles one user's active templates.
func (s *Service) EvaluateUser(ctx context.Context, userID string, today civil.Date) (*Result, error) {
	ctx, span := evalTracer.Start(ctx, "evaluation.user")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	templates, err := s.recurring.ListTemplates(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	var active []*recurring.Template
	for _, t := range templates {
		if t.Active {
			active = append(active, t)
		}
	}
	return s.evaluate(ctx, active, today), nil
}

func (s *Service) evaluate(ctx context.Context, templates []*recurring.Template, today civil.Date) *Result {
	result := &Result{
		Date:     today,
		Outcomes: make(map[recurring.Outcome]int),
		Created:  []*recurring.PendingExpense{},
	}

	var events []Event
	for _, t := range templates {
		result.Evaluated++

		res, err := s.recurring.Reconcile(ctx, t, today)
		if err != nil {
			log.Printf("Evaluation: failed to reconcile template %s for user %s: %v", t.ID, t.UserID, err)
			reconcileFails.Add(ctx, 1)
			result.Errors = append(result.Errors, TemplateError{
				TemplateID: t.ID,
				UserID:     t.UserID,
				Err:        err,
				Message:    err.Error(),
				Retryable:  recurring.IsRetryable(err),
			})
			continue
		}

		result.Outcomes[res.Outcome]++
		if res.Outcome != recurring.OutcomeCreated {
			continue
		}

		result.Created = append(result.Created, res.Pending)
		pendingCreated.Add(ctx, 1)
		events = append(events, Event{Type: EventPendingCreated, UserID: t.UserID, OccurredAt: s.now().UTC(), Payload: res.Pending})

		if s.notifier != nil {
			if err := s.notifier.NotifyPending(ctx, res.Pending); err != nil {
				log.Printf("Evaluation: failed to notify user %s about pending %s: %v", t.UserID, res.Pending.ID, err)
			}
		}
	}

	s.publish(ctx, events...)
	log.Printf("Evaluation for %s: %d templates, %d created, %d errors", today, result.Evaluated, len(result.Created), len(result.Errors))
	return result
}

// RecordExpense writes a manual expense or refund and evaluates the budget.
func (s *Service) RecordExpense(ctx context.Context, params expense.CreateParams) (*expense.Expense, []budget.Warning, error) {
	ctx, span := evalTracer.Start(ctx, "evaluation.record_expense")
	defer span.End()

	exp, err := s.expenses.Record(ctx, params)
	if err != nil {
		span.RecordError(err)
		return nil, nil, err
	}
	return exp, s.afterLedgerWrite(ctx, exp), nil
}

// ConfirmPending confirms a pending instance and evaluates the budget for
// its ledger entry. A replayed confirm whose entry an earlier attempt already
// wrote is evaluated too, since that attempt may have failed before reaching
// the tracker; the TOTAL record keeps 50/90/95 from repeating. Already-handled
// and unknown ids produce no warnings.
func (s *Service) ConfirmPending(ctx context.Context, userID, pendingID string, adjusted *decimal.Decimal, today civil.Date) (*recurring.ConfirmResult, []budget.Warning, error) {
	ctx, span := evalTracer.Start(ctx, "evaluation.confirm_pending")
	defer span.End()

	res, err := s.recurring.Confirm(ctx, userID, pendingID, adjusted, today)
	if err != nil {
		span.RecordError(err)
		return nil, nil, err
	}
	span.SetAttributes(attribute.String("resolution", string(res.Resolution)))
	if res.Resolution != recurring.ResolutionConfirmed {
		return res, nil, nil
	}
	return res, s.afterLedgerWrite(ctx, res.Expense), nil
}

// EvaluateLedgerEntry runs the budget tracker for an entry another writer
// already stored in the ledger.
func (s *Service) EvaluateLedgerEntry(ctx context.Context, exp *expense.Expense) []budget.Warning {
	ctx, span := evalTracer.Start(ctx, "evaluation.ledger_entry")
	defer span.End()
	return s.afterLedgerWrite(ctx, exp)
}

// afterLedgerWrite runs the threshold tracker for the entry's category and
// the TOTAL scope. Tracker failures are logged: the entry is already written.
func (s *Service) afterLedgerWrite(ctx context.Context, exp *expense.Expense) []budget.Warning {
	events := []Event{{Type: EventExpenseWritten, UserID: exp.UserID, OccurredAt: s.now().UTC(), Payload: exp}}

	warnings, err := s.tracker.Evaluate(ctx, exp.UserID, exp.Category, budget.PeriodOf(exp.Date))
	if err != nil {
		log.Printf("Evaluation: budget evaluation failed for user %s: %v", exp.UserID, err)
	}

	for _, w := range warnings {
		kind := "category"
		if w.Scope.IsTotal() {
			kind = "total"
		}
		warningsEmitted.Add(ctx, 1, metric.WithAttributes(
			attribute.String("scope", kind),
			attribute.Int("level", int(w.Level)),
		))
		events = append(events, Event{Type: EventBudgetWarning, UserID: exp.UserID, OccurredAt: s.now().UTC(), Payload: w})
	}

	if len(warnings) > 0 && s.notifier != nil {
		if err := s.notifier.NotifyWarnings(ctx, exp.UserID, warnings); err != nil {
			log.Printf("Evaluation: failed to notify user %s about budget warnings: %v", exp.UserID, err)
		}
	}
	s.publish(ctx, events...)
	return warnings
}

func (s *Service) publish(ctx context.Context, events ...Event) {
	if s.events == nil || len(events) == 0 {
		return
	}
	if err := s.events.Publish(ctx, events...); err != nil {
		log.Printf("Evaluation: failed to publish %d events: %v", len(events), err)
	}
}
