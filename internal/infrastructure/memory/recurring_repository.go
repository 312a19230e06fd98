package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/liamhowell4/budget-master-sub001/internal/domain/recurring"
)

// RecurringRepository keeps templates and pending instances in process.
// Reads return copies so callers never alias stored state.
type RecurringRepository struct {
	mu        sync.Mutex
	templates map[string]recurring.Template
	pending   map[string]recurring.PendingExpense
}

func NewRecurringRepository() *RecurringRepository {
	return &RecurringRepository{
		templates: make(map[string]recurring.Template),
		pending:   make(map[string]recurring.PendingExpense),
	}
}

func (r *RecurringRepository) CreateTemplate(ctx context.Context, params recurring.CreateTemplateParams) (*recurring.Template, error) {
	now := time.Now().UTC()
	t := recurring.Template{
		ID:          uuid.NewString(),
		UserID:      params.UserID,
		Name:        params.Name,
		Amount:      params.Amount,
		Category:    params.Category,
		Frequency:   params.Frequency,
		DayOfMonth:  params.DayOfMonth,
		DayOfWeek:   params.DayOfWeek,
		MonthOfYear: params.MonthOfYear,
		LastOfMonth: params.LastOfMonth,
		AnchorDate:  params.AnchorDate,
		Active:      true,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.templates[t.ID] = t
	return &t, nil
}

// PutTemplate stores t as-is. Used to seed state.
func (r *RecurringRepository) PutTemplate(t recurring.Template) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t.Version == 0 {
		t.Version = 1
	}
	r.templates[t.ID] = t
}

func (r *RecurringRepository) GetTemplate(ctx context.Context, id string) (*recurring.Template, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.templates[id]
	if !ok {
		return nil, recurring.ErrTemplateNotFound
	}
	return &t, nil
}

func (r *RecurringRepository) ListTemplatesByUser(ctx context.Context, userID string) ([]*recurring.Template, error) {
	return r.listTemplates(func(t recurring.Template) bool { return t.UserID == userID }), nil
}

func (r *RecurringRepository) ListActiveTemplates(ctx context.Context) ([]*recurring.Template, error) {
	return r.listTemplates(func(t recurring.Template) bool { return t.Active }), nil
}

func (r *RecurringRepository) listTemplates(match func(recurring.Template) bool) []*recurring.Template {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := []*recurring.Template{}
	for _, t := range r.templates {
		if match(t) {
			t := t
			out = append(out, &t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (r *RecurringRepository) UpdateTemplate(ctx context.Context, t *recurring.Template) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkVersion(t); err != nil {
		return err
	}
	r.storeTemplate(t)
	return nil
}

func (r *RecurringRepository) MaterializePending(ctx context.Context, t *recurring.Template, p *recurring.PendingExpense) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkVersion(t); err != nil {
		return err
	}
	if _, ok := r.pending[p.ID]; ok {
		return recurring.ErrPendingExists
	}
	r.pending[p.ID] = *p
	r.storeTemplate(t)
	return nil
}

func (r *RecurringRepository) checkVersion(t *recurring.Template) error {
	stored, ok := r.templates[t.ID]
	if !ok {
		return recurring.ErrTemplateNotFound
	}
	if stored.Version != t.Version {
		return recurring.ErrVersionConflict
	}
	return nil
}

func (r *RecurringRepository) storeTemplate(t *recurring.Template) {
	t.Version++
	t.UpdatedAt = time.Now().UTC()
	r.templates[t.ID] = *t
}

func (r *RecurringRepository) GetPending(ctx context.Context, id string) (*recurring.PendingExpense, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pending[id]
	if !ok {
		return nil, recurring.ErrPendingNotFound
	}
	return &p, nil
}

func (r *RecurringRepository) ListPendingByUser(ctx context.Context, userID string) ([]*recurring.PendingExpense, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := []*recurring.PendingExpense{}
	for _, p := range r.pending {
		if p.UserID == userID {
			p := p
			out = append(out, &p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DueDate == out[j].DueDate {
			return out[i].ID < out[j].ID
		}
		return out[i].DueDate.Before(out[j].DueDate)
	})
	return out, nil
}

func (r *RecurringRepository) UpdatePendingAmount(ctx context.Context, id string, amount decimal.Decimal) (*recurring.PendingExpense, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pending[id]
	if !ok {
		return nil, recurring.ErrPendingNotFound
	}
	p.Amount = amount
	r.pending[id] = p
	return &p, nil
}

func (r *RecurringRepository) DeletePending(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.pending[id]; !ok {
		return recurring.ErrPendingNotFound
	}
	delete(r.pending, id)
	return nil
}
