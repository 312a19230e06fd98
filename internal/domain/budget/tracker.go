package budget

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/liamhowell4/budget-master-sub001/internal/domain/expense"
)

const maxCASAttempts = 5

var hundred = decimal.NewFromInt(100)

// thresholds in descending order.
var thresholds = []Level{Level100, Level95, Level90, Level50}

// WarningLevel returns the highest threshold at or below pct, or LevelNone.
func WarningLevel(pct decimal.Decimal) Level {
	for _, l := range thresholds {
		if pct.GreaterThanOrEqual(decimal.NewFromInt(int64(l))) {
			return l
		}
	}
	return LevelNone
}

// Percentage is spent / cap * 100 on the raw signed total. Callers must
// ensure the cap is positive.
func Percentage(spent, cap decimal.Decimal) decimal.Decimal {
	return spent.Div(cap).Mul(hundred)
}

// Tracker decides which budget warnings a ledger change produces.
// Category scopes warn on every evaluation at or above 50%. The TOTAL scope
// announces 50/90/95 once per period and 100 on every evaluation.
type Tracker struct {
	repo     Repository
	spending SpendingReader
	now      func() time.Time
}

// NewTracker creates a new budget threshold tracker
func NewTracker(repo Repository, spending SpendingReader) *Tracker {
	return &Tracker{repo: repo, spending: spending, now: time.Now}
}

// Evaluate runs the category scope and then the TOTAL scope for a ledger
// change in category during period.
func (t *Tracker) Evaluate(ctx context.Context, userID string, category expense.Category, period Period) ([]Warning, error) {
	var warnings []Warning

	w, err := t.evaluateCategory(ctx, userID, category, period)
	if err != nil {
		return nil, err
	}
	if w != nil {
		warnings = append(warnings, *w)
	}

	w, err = t.evaluateTotal(ctx, userID, period)
	if err != nil {
		return warnings, err
	}
	if w != nil {
		warnings = append(warnings, *w)
	}
	return warnings, nil
}

func (t *Tracker) evaluateCategory(ctx context.Context, userID string, category expense.Category, period Period) (*Warning, error) {
	cp, err := t.repo.GetCap(ctx, userID, CategoryScope(category))
	if err != nil {
		return nil, fmt.Errorf("failed to load cap for %s: %w", category, err)
	}
	if !cp.Enabled() {
		return nil, nil
	}
	spent, err := t.spending.SumByMonth(ctx, userID, &category, period.Year, period.Month)
	if err != nil {
		return nil, fmt.Errorf("failed to sum spending for %s: %w", category, err)
	}
	return newWarning(CategoryScope(category), spent, cp.Amount, period), nil
}

func (t *Tracker) evaluateTotal(ctx context.Context, userID string, period Period) (*Warning, error) {
	cp, err := t.repo.GetCap(ctx, userID, ScopeTotal)
	if err != nil {
		return nil, fmt.Errorf("failed to load total cap: %w", err)
	}
	if !cp.Enabled() {
		return nil, nil
	}
	spent, err := t.spending.SumByMonth(ctx, userID, nil, period.Year, period.Month)
	if err != nil {
		return nil, fmt.Errorf("failed to sum total spending: %w", err)
	}

	w := newWarning(ScopeTotal, spent, cp.Amount, period)
	if w == nil || w.Level == Level100 {
		return w, nil
	}

	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		rec, err := t.repo.GetAlertRecord(ctx, userID, period)
		if err != nil {
			return nil, fmt.Errorf("failed to load alert record: %w", err)
		}
		if rec == nil {
			rec = &AlertRecord{UserID: userID, Period: period}
		}
		if rec.HasWarned(w.Level) {
			return nil, nil
		}
		rec.markWarned(w.Level)
		rec.UpdatedAt = t.now().UTC()

		err = t.repo.SaveAlertRecord(ctx, rec)
		if errors.Is(err, ErrVersionConflict) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to save alert record: %w", err)
		}
		return w, nil
	}
	return nil, ErrVersionConflict
}

// newWarning returns nil when spending is below the first threshold.
func newWarning(scope Scope, spent, cap decimal.Decimal, period Period) *Warning {
	pct := Percentage(spent, cap)
	level := WarningLevel(pct)
	if level == LevelNone {
		return nil
	}
	return &Warning{
		Scope:      scope,
		Level:      level,
		Percentage: pct.Round(2),
		Spent:      spent,
		Cap:        cap,
		Remaining:  cap.Sub(spent),
		Period:     period,
	}
}

// Status reports spending against every enabled cap for the period.
func (t *Tracker) Status(ctx context.Context, userID string, period Period) ([]ScopeStatus, error) {
	caps, err := t.repo.ListCaps(ctx, userID)
	if err != nil {
		return nil, err
	}

	statuses := make([]ScopeStatus, 0, len(caps))
	for _, cp := range caps {
		if !cp.Enabled() {
			continue
		}
		var category *expense.Category
		if !cp.Scope.IsTotal() {
			c := expense.Category(cp.Scope)
			category = &c
		}
		spent, err := t.spending.SumByMonth(ctx, userID, category, period.Year, period.Month)
		if err != nil {
			return nil, err
		}
		pct := Percentage(spent, cp.Amount)
		statuses = append(statuses, ScopeStatus{
			Scope:      cp.Scope,
			Spent:      spent,
			Cap:        cp.Amount,
			Percentage: pct.Round(2),
			Remaining:  cp.Amount.Sub(spent),
			Level:      WarningLevel(pct),
		})
	}
	return statuses, nil
}

// SetCap creates or replaces a cap. An amount of zero disables tracking
// for the scope without deleting it.
func (t *Tracker) SetCap(ctx context.Context, params SetCapParams) (*Cap, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return t.repo.UpsertCap(ctx, params)
}

func (t *Tracker) ListCaps(ctx context.Context, userID string) ([]*Cap, error) {
	return t.repo.ListCaps(ctx, userID)
}

func (t *Tracker) DeleteCap(ctx context.Context, userID string, scope Scope) error {
	return t.repo.DeleteCap(ctx, userID, scope)
}
