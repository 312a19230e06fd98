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
)

// SourceCore marks ledger rows written by this service. The ledger listener
// ignores them since the write path already evaluated budgets.
const SourceCore = "core"

const expenseColumns = `
	id, user_id, name, amount, category, expense_date, template_id, pending_id, created_at`

type ExpenseRepository struct {
	db *DB
}

func NewExpenseRepository(db *DB) *ExpenseRepository {
	return &ExpenseRepository{db: db}
}

func (r *ExpenseRepository) Create(ctx context.Context, params expense.CreateParams) (*expense.Expense, error) {
	exp, _, err := r.CreateIdempotent(ctx, params)
	return exp, err
}

// CreateIdempotent relies on the unique pending_id constraint: a second
// insert for the same pending instance inserts nothing and the existing row
// is returned instead.
func (r *ExpenseRepository) CreateIdempotent(ctx context.Context, params expense.CreateParams) (*expense.Expense, bool, error) {
	query := `
		INSERT INTO expenses (
			id, user_id, name, amount, category, expense_date, template_id, pending_id, source
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (pending_id) DO NOTHING
		RETURNING` + expenseColumns

	exp, err := scanExpense(r.db.QueryRowContext(ctx, query,
		uuid.NewString(),
		params.UserID,
		params.Name,
		params.Amount,
		string(params.Category),
		params.Date.String(),
		params.TemplateID,
		params.PendingID,
		SourceCore,
	))
	if err == nil {
		return exp, true, nil
	}
	if err != sql.ErrNoRows || params.PendingID == nil {
		return nil, false, fmt.Errorf("failed to create expense: %w", err)
	}

	existing, err := r.GetByPendingID(ctx, *params.PendingID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *ExpenseRepository) GetByID(ctx context.Context, id string) (*expense.Expense, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, expense.ErrExpenseNotFound
	}
	return r.getOne(ctx, `SELECT`+expenseColumns+` FROM expenses WHERE id = $1`, id)
}

func (r *ExpenseRepository) GetByPendingID(ctx context.Context, pendingID string) (*expense.Expense, error) {
	return r.getOne(ctx, `SELECT`+expenseColumns+` FROM expenses WHERE pending_id = $1`, pendingID)
}

func (r *ExpenseRepository) getOne(ctx context.Context, query string, arg string) (*expense.Expense, error) {
	exp, err := scanExpense(r.db.QueryRowContext(ctx, query, arg))
	if err == sql.ErrNoRows {
		return nil, expense.ErrExpenseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}
	return exp, nil
}

func (r *ExpenseRepository) ListByMonth(ctx context.Context, userID string, year int, month time.Month) ([]*expense.Expense, error) {
	first, last := expense.MonthBounds(year, month)
	query := `SELECT` + expenseColumns + `
		FROM expenses
		WHERE user_id = $1 AND expense_date BETWEEN $2 AND $3
		ORDER BY expense_date, created_at`

	rows, err := r.db.QueryContext(ctx, query, userID, first.String(), last.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	defer rows.Close()

	var expenses []*expense.Expense
	for rows.Next() {
		exp, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, exp)
	}
	return expenses, rows.Err()
}

func (r *ExpenseRepository) SumByMonth(ctx context.Context, userID string, category *expense.Category, year int, month time.Month) (decimal.Decimal, error) {
	first, last := expense.MonthBounds(year, month)

	var categoryArg any
	if category != nil {
		categoryArg = string(*category)
	}

	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM expenses
		WHERE user_id = $1
		  AND expense_date BETWEEN $2 AND $3
		  AND ($4::text IS NULL OR category = $4::text)`

	var total decimal.Decimal
	err := r.db.QueryRowContext(ctx, query, userID, first.String(), last.String(), categoryArg).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum expenses: %w", err)
	}
	return total, nil
}

func scanExpense(row rowScanner) (*expense.Expense, error) {
	var (
		exp                   expense.Expense
		category              string
		date                  time.Time
		templateID, pendingID sql.NullString
	)
	err := row.Scan(
		&exp.ID, &exp.UserID, &exp.Name, &exp.Amount, &category, &date,
		&templateID, &pendingID, &exp.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	exp.Category = expense.Category(category)
	exp.Date = civil.DateOf(date)
	if templateID.Valid {
		exp.TemplateID = &templateID.String
	}
	if pendingID.Valid {
		exp.PendingID = &pendingID.String
	}
	return &exp, nil
}
