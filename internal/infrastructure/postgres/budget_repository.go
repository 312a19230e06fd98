package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"slices"

	"github.com/lib/pq"

	"github.com/liamhowell4/budget-master-sub001/internal/domain/budget"
)

type BudgetRepository struct {
	db *DB
}

func NewBudgetRepository(db *DB) *BudgetRepository {
	return &BudgetRepository{db: db}
}

func (r *BudgetRepository) GetCap(ctx context.Context, userID string, scope budget.Scope) (*budget.Cap, error) {
	query := `
		SELECT user_id, scope, amount, updated_at
		FROM budget_caps
		WHERE user_id = $1 AND scope = $2
	`

	c, err := scanCap(r.db.QueryRowContext(ctx, query, userID, string(scope)))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get budget cap: %w", err)
	}
	return c, nil
}

// ListCaps returns TOTAL first, then categories alphabetically.
func (r *BudgetRepository) ListCaps(ctx context.Context, userID string) ([]*budget.Cap, error) {
	query := `
		SELECT user_id, scope, amount, updated_at
		FROM budget_caps
		WHERE user_id = $1
		ORDER BY scope <> $2, scope
	`

	rows, err := r.db.QueryContext(ctx, query, userID, string(budget.ScopeTotal))
	if err != nil {
		return nil, fmt.Errorf("failed to list budget caps: %w", err)
	}
	defer rows.Close()

	var caps []*budget.Cap
	for rows.Next() {
		c, err := scanCap(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan budget cap: %w", err)
		}
		caps = append(caps, c)
	}
	return caps, rows.Err()
}

func (r *BudgetRepository) UpsertCap(ctx context.Context, params budget.SetCapParams) (*budget.Cap, error) {
	query := `
		INSERT INTO budget_caps (user_id, scope, amount)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, scope) DO UPDATE
			SET amount = EXCLUDED.amount,
			    updated_at = NOW()
		RETURNING user_id, scope, amount, updated_at
	`

	c, err := scanCap(r.db.QueryRowContext(ctx, query, params.UserID, string(params.Scope), params.Amount))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert budget cap: %w", err)
	}
	return c, nil
}

func (r *BudgetRepository) DeleteCap(ctx context.Context, userID string, scope budget.Scope) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM budget_caps WHERE user_id = $1 AND scope = $2`,
		userID, string(scope),
	)
	if err != nil {
		return fmt.Errorf("failed to delete budget cap: %w", err)
	}
	return nil
}

func (r *BudgetRepository) GetAlertRecord(ctx context.Context, userID string, period budget.Period) (*budget.AlertRecord, error) {
	query := `
		SELECT thresholds_warned, version, updated_at
		FROM budget_alert_tracking
		WHERE user_id = $1 AND period = $2
	`

	rec := budget.AlertRecord{UserID: userID, Period: period}
	var warned []int64
	err := r.db.QueryRowContext(ctx, query, userID, period.String()).Scan(
		pq.Array(&warned), &rec.Version, &rec.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alert record: %w", err)
	}
	for _, l := range warned {
		rec.ThresholdsWarned = append(rec.ThresholdsWarned, budget.Level(l))
	}
	return &rec, nil
}

// SaveAlertRecord inserts a first record (Version 0) or updates an existing
// one at the expected version. Losing either race yields ErrVersionConflict.
func (r *BudgetRepository) SaveAlertRecord(ctx context.Context, rec *budget.AlertRecord) error {
	warned := make([]int64, 0, len(rec.ThresholdsWarned))
	for _, l := range rec.ThresholdsWarned {
		warned = append(warned, int64(l))
	}
	slices.Sort(warned)

	var query string
	args := []any{rec.UserID, rec.Period.String(), pq.Array(warned), rec.UpdatedAt}
	if rec.Version == 0 {
		query = `
			INSERT INTO budget_alert_tracking (user_id, period, thresholds_warned, updated_at, version)
			VALUES ($1, $2, $3, $4, 1)
			ON CONFLICT (user_id, period) DO NOTHING
			RETURNING version
		`
	} else {
		query = `
			UPDATE budget_alert_tracking
			SET thresholds_warned = $3,
			    updated_at = $4,
			    version = version + 1
			WHERE user_id = $1 AND period = $2 AND version = $5
			RETURNING version
		`
		args = append(args, rec.Version)
	}

	var version int64
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&version)
	if err == sql.ErrNoRows {
		return budget.ErrVersionConflict
	}
	if err != nil {
		return fmt.Errorf("failed to save alert record: %w", err)
	}
	rec.Version = version
	return nil
}

func scanCap(row rowScanner) (*budget.Cap, error) {
	var c budget.Cap
	var scope string
	if err := row.Scan(&c.UserID, &scope, &c.Amount, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.Scope = budget.Scope(scope)
	return &c, nil
}
