package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/liamhowell4/budget-master-sub001/internal/domain/expense"
)

// ExpenseRepository is an append-only in-process ledger.
type ExpenseRepository struct {
	mu        sync.Mutex
	entries   map[string]expense.Expense
	byPending map[string]string
}

func NewExpenseRepository() *ExpenseRepository {
	return &ExpenseRepository{
		entries:   make(map[string]expense.Expense),
		byPending: make(map[string]string),
	}
}

func (r *ExpenseRepository) Create(ctx context.Context, params expense.CreateParams) (*expense.Expense, error) {
	exp, _, err := r.CreateIdempotent(ctx, params)
	return exp, err
}

func (r *ExpenseRepository) CreateIdempotent(ctx context.Context, params expense.CreateParams) (*expense.Expense, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if params.PendingID != nil {
		if id, ok := r.byPending[*params.PendingID]; ok {
			existing := r.entries[id]
			return &existing, false, nil
		}
	}

	exp := expense.Expense{
		ID:         uuid.NewString(),
		UserID:     params.UserID,
		Name:       params.Name,
		Amount:     params.Amount,
		Category:   params.Category,
		Date:       params.Date,
		TemplateID: params.TemplateID,
		PendingID:  params.PendingID,
		CreatedAt:  time.Now().UTC(),
	}
	r.entries[exp.ID] = exp
	if exp.PendingID != nil {
		r.byPending[*exp.PendingID] = exp.ID
	}
	return &exp, true, nil
}

func (r *ExpenseRepository) GetByID(ctx context.Context, id string) (*expense.Expense, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	exp, ok := r.entries[id]
	if !ok {
		return nil, expense.ErrExpenseNotFound
	}
	return &exp, nil
}

func (r *ExpenseRepository) GetByPendingID(ctx context.Context, pendingID string) (*expense.Expense, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byPending[pendingID]
	if !ok {
		return nil, expense.ErrExpenseNotFound
	}
	exp := r.entries[id]
	return &exp, nil
}

func (r *ExpenseRepository) ListByMonth(ctx context.Context, userID string, year int, month time.Month) ([]*expense.Expense, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := []*expense.Expense{}
	for _, exp := range r.entries {
		if exp.UserID == userID && exp.Date.Year == year && exp.Date.Month == month {
			exp := exp
			out = append(out, &exp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date == out[j].Date {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Date.Before(out[j].Date)
	})
	return out, nil
}

func (r *ExpenseRepository) SumByMonth(ctx context.Context, userID string, category *expense.Category, year int, month time.Month) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sum := decimal.Zero
	for _, exp := range r.entries {
		if exp.UserID != userID || exp.Date.Year != year || exp.Date.Month != month {
			continue
		}
		if category != nil && exp.Category != *category {
			continue
		}
		sum = sum.Add(exp.Amount)
	}
	return sum, nil
}

// Len returns the number of ledger entries.
func (r *ExpenseRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
