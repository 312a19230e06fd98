package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/liamhowell4/budget-master-sub001/internal/domain/expense"
	"github.com/liamhowell4/budget-master-sub001/internal/domain/recurring"
)

const templateColumns = `
	id, user_id, name, amount, category, frequency, day_of_month, day_of_week,
	month_of_year, last_of_month, anchor_date, last_reminded, last_user_action,
	active, version, created_at, updated_at`

const pendingColumns = `
	id, user_id, template_id, name, amount, category, due_date,
	awaiting_confirmation, created_at`

type RecurringRepository struct {
	db *DB
}

func NewRecurringRepository(db *DB) *RecurringRepository {
	return &RecurringRepository{db: db}
}

func (r *RecurringRepository) CreateTemplate(ctx context.Context, params recurring.CreateTemplateParams) (*recurring.Template, error) {
	query := `
		INSERT INTO recurring_templates (
			id, user_id, name, amount, category, frequency, day_of_month,
			day_of_week, month_of_year, last_of_month, anchor_date
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING` + templateColumns

	t, err := scanTemplate(r.db.QueryRowContext(ctx, query,
		uuid.NewString(),
		params.UserID,
		params.Name,
		params.Amount,
		string(params.Category),
		string(params.Frequency),
		nullableInt(params.DayOfMonth),
		nullableWeekday(params.DayOfWeek),
		nullableMonth(params.MonthOfYear),
		params.LastOfMonth,
		params.AnchorDate.String(),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create template: %w", err)
	}
	return t, nil
}

func (r *RecurringRepository) GetTemplate(ctx context.Context, id string) (*recurring.Template, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, recurring.ErrTemplateNotFound
	}
	query := `SELECT` + templateColumns + ` FROM recurring_templates WHERE id = $1`

	t, err := scanTemplate(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, recurring.ErrTemplateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get template: %w", err)
	}
	return t, nil
}

func (r *RecurringRepository) ListTemplatesByUser(ctx context.Context, userID string) ([]*recurring.Template, error) {
	query := `SELECT` + templateColumns + `
		FROM recurring_templates
		WHERE user_id = $1
		ORDER BY created_at, id`
	return r.listTemplates(ctx, query, userID)
}

func (r *RecurringRepository) ListActiveTemplates(ctx context.Context) ([]*recurring.Template, error) {
	query := `SELECT` + templateColumns + `
		FROM recurring_templates
		WHERE active = true
		ORDER BY user_id, created_at, id`
	return r.listTemplates(ctx, query)
}

func (r *RecurringRepository) listTemplates(ctx context.Context, query string, args ...any) ([]*recurring.Template, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	defer rows.Close()

	var templates []*recurring.Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan template: %w", err)
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

// UpdateTemplate writes t when the stored version still equals t.Version.
func (r *RecurringRepository) UpdateTemplate(ctx context.Context, t *recurring.Template) error {
	next := *t
	err := r.db.WithTx(ctx, "UpdateTemplate", func(tx *sql.Tx) error {
		return r.updateTemplate(ctx, tx, &next)
	})
	if err != nil {
		return err
	}
	*t = next
	return nil
}

// MaterializePending inserts the pending row and advances the template in
// one transaction.
func (r *RecurringRepository) MaterializePending(ctx context.Context, t *recurring.Template, p *recurring.PendingExpense) error {
	next := *t
	err := r.db.WithTx(ctx, "MaterializePending", func(tx *sql.Tx) error {
		if err := r.updateTemplate(ctx, tx, &next); err != nil {
			return err
		}

		query := `
			INSERT INTO pending_expenses (
				id, user_id, template_id, name, amount, category, due_date, awaiting_confirmation
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING created_at`

		err := tx.QueryRowContext(ctx, query,
			p.ID, p.UserID, p.TemplateID, p.Name, p.Amount, string(p.Category),
			p.DueDate.String(), p.AwaitingConfirmation,
		).Scan(&p.CreatedAt)
		if isUniqueViolation(err) {
			return recurring.ErrPendingExists
		}
		return err
	})
	if err != nil {
		return err
	}
	*t = next
	return nil
}

func (r *RecurringRepository) updateTemplate(ctx context.Context, tx *sql.Tx, t *recurring.Template) error {
	query := `
		UPDATE recurring_templates
		SET name = $3,
		    amount = $4,
		    category = $5,
		    last_reminded = $6,
		    last_user_action = $7,
		    active = $8,
		    version = version + 1,
		    updated_at = NOW()
		WHERE id = $1 AND version = $2
		RETURNING version, updated_at`

	err := tx.QueryRowContext(ctx, query,
		t.ID, t.Version, t.Name, t.Amount, string(t.Category),
		nullableDate(t.LastReminded), nullableDate(t.LastUserAction), t.Active,
	).Scan(&t.Version, &t.UpdatedAt)
	if err == nil {
		return nil
	}
	if err != sql.ErrNoRows {
		return fmt.Errorf("failed to update template: %w", err)
	}

	var exists bool
	if err := tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM recurring_templates WHERE id = $1)`, t.ID,
	).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check template: %w", err)
	}
	if !exists {
		return recurring.ErrTemplateNotFound
	}
	return recurring.ErrVersionConflict
}

func (r *RecurringRepository) GetPending(ctx context.Context, id string) (*recurring.PendingExpense, error) {
	query := `SELECT` + pendingColumns + ` FROM pending_expenses WHERE id = $1`

	p, err := scanPending(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, recurring.ErrPendingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pending expense: %w", err)
	}
	return p, nil
}

func (r *RecurringRepository) ListPendingByUser(ctx context.Context, userID string) ([]*recurring.PendingExpense, error) {
	query := `SELECT` + pendingColumns + `
		FROM pending_expenses
		WHERE user_id = $1
		ORDER BY due_date, id`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending expenses: %w", err)
	}
	defer rows.Close()

	var pending []*recurring.PendingExpense
	for rows.Next() {
		p, err := scanPending(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pending expense: %w", err)
		}
		pending = append(pending, p)
	}
	return pending, rows.Err()
}

func (r *RecurringRepository) UpdatePendingAmount(ctx context.Context, id string, amount decimal.Decimal) (*recurring.PendingExpense, error) {
	query := `UPDATE pending_expenses SET amount = $2 WHERE id = $1 RETURNING` + pendingColumns

	p, err := scanPending(r.db.QueryRowContext(ctx, query, id, amount))
	if err == sql.ErrNoRows {
		return nil, recurring.ErrPendingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update pending amount: %w", err)
	}
	return p, nil
}

func (r *RecurringRepository) DeletePending(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM pending_expenses WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete pending expense: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if n == 0 {
		return recurring.ErrPendingNotFound
	}
	return nil
}

func scanTemplate(row rowScanner) (*recurring.Template, error) {
	var (
		t                            recurring.Template
		category, frequency          string
		dayOfMonth, dow, month       sql.NullInt16
		anchor                       time.Time
		lastReminded, lastUserAction sql.NullTime
	)
	err := row.Scan(
		&t.ID, &t.UserID, &t.Name, &t.Amount, &category, &frequency,
		&dayOfMonth, &dow, &month, &t.LastOfMonth, &anchor,
		&lastReminded, &lastUserAction, &t.Active, &t.Version, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.Category = expense.Category(category)
	t.Frequency = recurring.Frequency(frequency)
	if dayOfMonth.Valid {
		d := int(dayOfMonth.Int16)
		t.DayOfMonth = &d
	}
	if dow.Valid {
		wd := time.Weekday(dow.Int16)
		t.DayOfWeek = &wd
	}
	if month.Valid {
		m := time.Month(month.Int16)
		t.MonthOfYear = &m
	}
	t.AnchorDate = civil.DateOf(anchor)
	t.LastReminded = dateOf(lastReminded)
	t.LastUserAction = dateOf(lastUserAction)
	return &t, nil
}

func scanPending(row rowScanner) (*recurring.PendingExpense, error) {
	var (
		p        recurring.PendingExpense
		category string
		due      time.Time
	)
	err := row.Scan(
		&p.ID, &p.UserID, &p.TemplateID, &p.Name, &p.Amount, &category, &due,
		&p.AwaitingConfirmation, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Category = expense.Category(category)
	p.DueDate = civil.DateOf(due)
	return &p, nil
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableWeekday(v *time.Weekday) any {
	if v == nil {
		return nil
	}
	return int(*v)
}

func nullableMonth(v *time.Month) any {
	if v == nil {
		return nil
	}
	return int(*v)
}

// nullableDate passes dates as ISO strings; Postgres casts them to DATE.
func nullableDate(d *civil.Date) any {
	if d == nil {
		return nil
	}
	return d.String()
}

// dateOf reads a DATE column. lib/pq returns dates as midnight UTC.
func dateOf(t sql.NullTime) *civil.Date {
	if !t.Valid {
		return nil
	}
	d := civil.DateOf(t.Time)
	return &d
}
