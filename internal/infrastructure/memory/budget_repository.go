package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/liamhowell4/budget-master-sub001/internal/domain/budget"
)

type capKey struct {
	userID string
	scope  budget.Scope
}

type recordKey struct {
	userID string
	period budget.Period
}

// BudgetRepository keeps caps and aggregate alert records in process.
type BudgetRepository struct {
	mu      sync.Mutex
	caps    map[capKey]budget.Cap
	records map[recordKey]budget.AlertRecord
}

func NewBudgetRepository() *BudgetRepository {
	return &BudgetRepository{
		caps:    make(map[capKey]budget.Cap),
		records: make(map[recordKey]budget.AlertRecord),
	}
}

func (r *BudgetRepository) GetCap(ctx context.Context, userID string, scope budget.Scope) (*budget.Cap, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.caps[capKey{userID, scope}]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (r *BudgetRepository) ListCaps(ctx context.Context, userID string) ([]*budget.Cap, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := []*budget.Cap{}
	for k, c := range r.caps {
		if k.userID == userID {
			c := c
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		// TOTAL first, then categories alphabetically.
		if out[i].Scope.IsTotal() != out[j].Scope.IsTotal() {
			return out[i].Scope.IsTotal()
		}
		return out[i].Scope < out[j].Scope
	})
	return out, nil
}

func (r *BudgetRepository) UpsertCap(ctx context.Context, params budget.SetCapParams) (*budget.Cap, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := budget.Cap{
		UserID:    params.UserID,
		Scope:     params.Scope,
		Amount:    params.Amount,
		UpdatedAt: time.Now().UTC(),
	}
	r.caps[capKey{params.UserID, params.Scope}] = c
	return &c, nil
}

func (r *BudgetRepository) DeleteCap(ctx context.Context, userID string, scope budget.Scope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.caps, capKey{userID, scope})
	return nil
}

func (r *BudgetRepository) GetAlertRecord(ctx context.Context, userID string, period budget.Period) (*budget.AlertRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[recordKey{userID, period}]
	if !ok {
		return nil, nil
	}
	rec.ThresholdsWarned = append([]budget.Level(nil), rec.ThresholdsWarned...)
	return &rec, nil
}

func (r *BudgetRepository) SaveAlertRecord(ctx context.Context, rec *budget.AlertRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := recordKey{rec.UserID, rec.Period}
	stored, ok := r.records[key]
	switch {
	case !ok && rec.Version != 0:
		return budget.ErrVersionConflict
	case ok && stored.Version != rec.Version:
		return budget.ErrVersionConflict
	}

	rec.Version++
	saved := *rec
	saved.ThresholdsWarned = append([]budget.Level(nil), rec.ThresholdsWarned...)
	r.records[key] = saved
	return nil
}
