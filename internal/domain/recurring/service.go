package recurring

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/liamhowell4/budget-master-sub001/internal/domain/expense"
)

// maxCASAttempts bounds re-read-and-retry loops on version conflicts.
const maxCASAttempts = 5

// Ledger is the part of the expense ledger the confirm flow writes to.
type Ledger interface {
	CreateIdempotent(ctx context.Context, params expense.CreateParams) (*expense.Expense, bool, error)
	GetByPendingID(ctx context.Context, pendingID string) (*expense.Expense, error)
}

// Service reconciles templates into pending instances and resolves them.
type Service struct {
	repo   Repository
	ledger Ledger
	now    func() time.Time
}

// NewService creates a new recurring service
func NewService(repo Repository, ledger Ledger) *Service {
	return &Service{repo: repo, ledger: ledger, now: time.Now}
}

// CreateTemplate validates and stores a new template. BIWEEKLY parity is
// anchored on AnchorDate, defaulting to the creation date.
func (s *Service) CreateTemplate(ctx context.Context, params CreateTemplateParams) (*Template, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if !params.AnchorDate.IsValid() {
		params.AnchorDate = civil.DateOf(s.now())
	}
	return s.repo.CreateTemplate(ctx, params)
}

// GetTemplate retrieves a template and verifies user ownership
func (s *Service) GetTemplate(ctx context.Context, userID, id string) (*Template, error) {
	t, err := s.repo.GetTemplate(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.UserID != userID {
		return nil, ErrForbidden
	}
	return t, nil
}

func (s *Service) ListTemplates(ctx context.Context, userID string) ([]*Template, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	return s.repo.ListTemplatesByUser(ctx, userID)
}

func (s *Service) ListActiveTemplates(ctx context.Context) ([]*Template, error) {
	return s.repo.ListActiveTemplates(ctx)
}

func (s *Service) ListPending(ctx context.Context, userID string) ([]*PendingExpense, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	return s.repo.ListPendingByUser(ctx, userID)
}

// Reconcile compares tmpl against today and materializes the most recent due
// occurrence if no reminder has been issued for it yet. Repeated calls with
// an unchanged due date create nothing. A losing concurrent writer re-reads
// the template and retries the whole step.
func (s *Service) Reconcile(ctx context.Context, tmpl *Template, today civil.Date) (ReconcileResult, error) {
	current := tmpl
	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		if attempt > 0 {
			fresh, err := s.repo.GetTemplate(ctx, tmpl.ID)
			if err != nil {
				return ReconcileResult{TemplateID: tmpl.ID}, err
			}
			current = fresh
		}

		result, err := s.reconcileOnce(ctx, *current, today)
		if errors.Is(err, ErrPendingExists) {
			result, err = s.adoptPending(ctx, tmpl.ID, today)
		}
		if errors.Is(err, ErrVersionConflict) {
			continue
		}
		return result, err
	}
	return ReconcileResult{TemplateID: tmpl.ID}, ErrVersionConflict
}

// adoptPending handles a pending instance that already exists for the due
// date. When the stored template has caught up, a concurrent writer created
// it and the normal outcome applies. Otherwise the template lost track of
// its own reminder: last_reminded is moved forward and the instance reported
// as already pending.
func (s *Service) adoptPending(ctx context.Context, templateID string, today civil.Date) (ReconcileResult, error) {
	t, err := s.repo.GetTemplate(ctx, templateID)
	if err != nil {
		return ReconcileResult{TemplateID: templateID}, err
	}
	due := DueDate(*t, today)
	if !t.Active || (t.LastReminded != nil && !t.LastReminded.Before(due)) {
		return s.reconcileOnce(ctx, *t, today)
	}

	pending, err := s.repo.GetPending(ctx, PendingID(t.ID, due))
	if errors.Is(err, ErrPendingNotFound) {
		// Resolved in the meantime; the next attempt can materialize again.
		return ReconcileResult{TemplateID: templateID, DueDate: due}, ErrVersionConflict
	}
	if err != nil {
		return ReconcileResult{TemplateID: templateID, DueDate: due}, err
	}

	updated := *t
	updated.LastReminded = &due
	if err := s.repo.UpdateTemplate(ctx, &updated); err != nil {
		return ReconcileResult{TemplateID: templateID, DueDate: due}, err
	}
	log.Printf("Recurring: template %s had pending %s without last_reminded, advanced to %s", t.ID, pending.ID, due)

	return ReconcileResult{
		TemplateID: templateID,
		DueDate:    due,
		Outcome:    OutcomeAlreadyPending,
		Template:   &updated,
	}, nil
}

func (s *Service) reconcileOnce(ctx context.Context, t Template, today civil.Date) (ReconcileResult, error) {
	due := DueDate(t, today)
	result := ReconcileResult{TemplateID: t.ID, DueDate: due, Template: &t}

	if !t.Active {
		result.Outcome = OutcomeSkipped
		return result, nil
	}

	if t.LastReminded == nil || t.LastReminded.Before(due) {
		pending := &PendingExpense{
			ID:                   PendingID(t.ID, due),
			UserID:               t.UserID,
			TemplateID:           t.ID,
			Name:                 t.Name,
			Amount:               t.Amount,
			Category:             t.Category,
			DueDate:              due,
			AwaitingConfirmation: true,
			CreatedAt:            s.now().UTC(),
		}
		updated := t
		updated.LastReminded = &due
		if err := s.repo.MaterializePending(ctx, &updated, pending); err != nil {
			return ReconcileResult{TemplateID: t.ID, DueDate: due}, err
		}
		result.Outcome = OutcomeCreated
		result.Pending = pending
		result.Template = &updated
		return result, nil
	}

	if t.LastUserAction != nil && t.LastUserAction.After(*t.LastReminded) {
		result.Outcome = OutcomeAlreadyHandled
		return result, nil
	}
	result.Outcome = OutcomeAlreadyPending
	return result, nil
}

// Confirm turns a pending instance into a ledger entry. The ledger write is
// keyed by the pending id, so a retried call never writes twice. The pending
// instance is deleted last: until then a retry replays every step.
func (s *Service) Confirm(ctx context.Context, userID, pendingID string, adjusted *decimal.Decimal, today civil.Date) (*ConfirmResult, error) {
	if adjusted != nil {
		if err := expense.CheckAmount(*adjusted); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
	}

	pending, err := s.repo.GetPending(ctx, pendingID)
	if errors.Is(err, ErrPendingNotFound) {
		resolution, exp, err := s.resolveMissing(ctx, userID, pendingID)
		if err != nil {
			return nil, err
		}
		return &ConfirmResult{Resolution: resolution, Expense: exp}, nil
	}
	if err != nil {
		return nil, err
	}
	if pending.UserID != userID {
		return nil, ErrForbidden
	}

	amount := pending.Amount
	if adjusted != nil {
		amount = *adjusted
	}
	templateID := pending.TemplateID
	pid := pending.ID
	exp, created, err := s.ledger.CreateIdempotent(ctx, expense.CreateParams{
		UserID:     pending.UserID,
		Name:       pending.Name,
		Amount:     amount,
		Category:   pending.Category,
		Date:       pending.DueDate,
		TemplateID: &templateID,
		PendingID:  &pid,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to write ledger entry: %w", err)
	}

	if err := s.recordUserAction(ctx, templateID, today); err != nil {
		return nil, err
	}
	if err := s.repo.DeletePending(ctx, pending.ID); err != nil && !errors.Is(err, ErrPendingNotFound) {
		return nil, fmt.Errorf("failed to delete pending expense: %w", err)
	}

	return &ConfirmResult{Resolution: ResolutionConfirmed, Expense: exp, Created: created}, nil
}

// Skip dismisses a pending instance without writing to the ledger.
func (s *Service) Skip(ctx context.Context, userID, pendingID string, today civil.Date) (*SkipResult, error) {
	pending, err := s.repo.GetPending(ctx, pendingID)
	if errors.Is(err, ErrPendingNotFound) {
		resolution, _, err := s.resolveMissing(ctx, userID, pendingID)
		if err != nil {
			return nil, err
		}
		return &SkipResult{Resolution: resolution}, nil
	}
	if err != nil {
		return nil, err
	}
	if pending.UserID != userID {
		return nil, ErrForbidden
	}

	if err := s.recordUserAction(ctx, pending.TemplateID, today); err != nil {
		return nil, err
	}
	if err := s.repo.DeletePending(ctx, pending.ID); err != nil {
		if errors.Is(err, ErrPendingNotFound) {
			return &SkipResult{Resolution: ResolutionAlreadyHandled, Pending: pending}, nil
		}
		return nil, fmt.Errorf("failed to delete pending expense: %w", err)
	}
	return &SkipResult{Resolution: ResolutionSkipped, Pending: pending}, nil
}

// AdjustPending changes the amount a pending instance will be confirmed with.
func (s *Service) AdjustPending(ctx context.Context, userID, pendingID string, amount decimal.Decimal) (*PendingExpense, error) {
	if err := expense.CheckAmount(amount); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	pending, err := s.repo.GetPending(ctx, pendingID)
	if err != nil {
		return nil, err
	}
	if pending.UserID != userID {
		return nil, ErrForbidden
	}
	return s.repo.UpdatePendingAmount(ctx, pendingID, amount)
}

// Deactivate retires a template. Later reconciliations return OutcomeSkipped.
func (s *Service) Deactivate(ctx context.Context, userID, templateID string) (*Template, error) {
	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		t, err := s.GetTemplate(ctx, userID, templateID)
		if err != nil {
			return nil, err
		}
		if !t.Active {
			return t, nil
		}
		t.Active = false
		t.UpdatedAt = s.now().UTC()
		err = s.repo.UpdateTemplate(ctx, t)
		if errors.Is(err, ErrVersionConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return t, nil
	}
	return nil, ErrVersionConflict
}

// resolveMissing classifies a pending id that no longer exists: a ledger
// entry carrying it means an earlier call already confirmed it.
func (s *Service) resolveMissing(ctx context.Context, userID, pendingID string) (Resolution, *expense.Expense, error) {
	exp, err := s.ledger.GetByPendingID(ctx, pendingID)
	if errors.Is(err, expense.ErrExpenseNotFound) {
		return ResolutionNotFound, nil, nil
	}
	if err != nil {
		return "", nil, err
	}
	if exp.UserID != userID {
		return ResolutionNotFound, nil, nil
	}
	return ResolutionAlreadyHandled, exp, nil
}

// recordUserAction advances last_user_action to today. It never moves the
// date backwards and tolerates a template that no longer exists.
func (s *Service) recordUserAction(ctx context.Context, templateID string, today civil.Date) error {
	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		t, err := s.repo.GetTemplate(ctx, templateID)
		if errors.Is(err, ErrTemplateNotFound) {
			log.Printf("Recurring: template %s missing while recording user action", templateID)
			return nil
		}
		if err != nil {
			return err
		}
		if t.LastUserAction != nil && !t.LastUserAction.Before(today) {
			return nil
		}
		action := today
		t.LastUserAction = &action
		t.UpdatedAt = s.now().UTC()
		err = s.repo.UpdateTemplate(ctx, t)
		if errors.Is(err, ErrVersionConflict) {
			continue
		}
		return err
	}
	return ErrVersionConflict
}

// IsRetryable reports whether err is transient: a lost CAS race or a store
// failure, as opposed to a validation, ownership or not-found outcome.
func IsRetryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrVersionConflict), errors.Is(err, context.DeadlineExceeded):
		return true
	case errors.Is(err, ErrTemplateNotFound),
		errors.Is(err, ErrPendingNotFound),
		errors.Is(err, ErrForbidden),
		errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrInvalidSchedule),
		errors.Is(err, ErrInvalidFrequency),
		errors.Is(err, expense.ErrInvalidInput),
		errors.Is(err, context.Canceled):
		return false
	default:
		return true
	}
}
