package firestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	fs "cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/liamhowell4/budget-master-sub001/internal/domain/expense"
)

type expenseDoc struct {
	UserID     string    `firestore:"user_id"`
	Name       string    `firestore:"name"`
	Amount     string    `firestore:"amount"`
	Category   string    `firestore:"category"`
	Date       string    `firestore:"date"`
	TemplateID *string   `firestore:"template_id"`
	PendingID  *string   `firestore:"pending_id"`
	CreatedAt  time.Time `firestore:"created_at"`
}

func (d expenseDoc) toExpense(id string) (*expense.Expense, error) {
	amount, err := parseAmount("amount", d.Amount)
	if err != nil {
		return nil, err
	}
	date, err := civil.ParseDate(d.Date)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", d.Date, err)
	}
	return &expense.Expense{
		ID:         id,
		UserID:     d.UserID,
		Name:       d.Name,
		Amount:     amount,
		Category:   expense.Category(d.Category),
		Date:       date,
		TemplateID: d.TemplateID,
		PendingID:  d.PendingID,
		CreatedAt:  d.CreatedAt,
	}, nil
}

// ledgerDocID derives the document id from the pending id so a repeated
// confirm targets the same document.
func ledgerDocID(params expense.CreateParams) string {
	if params.PendingID != nil {
		return "pending_" + *params.PendingID
	}
	return uuid.NewString()
}

type ExpenseRepository struct {
	client *fs.Client
	now    func() time.Time
}

func (r *ExpenseRepository) expenses() *fs.CollectionRef {
	return r.client.Collection(colExpenses)
}

func (r *ExpenseRepository) Create(ctx context.Context, params expense.CreateParams) (*expense.Expense, error) {
	exp, _, err := r.CreateIdempotent(ctx, params)
	return exp, err
}

func (r *ExpenseRepository) CreateIdempotent(ctx context.Context, params expense.CreateParams) (*expense.Expense, bool, error) {
	ref := r.expenses().Doc(ledgerDocID(params))
	doc := expenseDoc{
		UserID:     params.UserID,
		Name:       params.Name,
		Amount:     params.Amount.String(),
		Category:   string(params.Category),
		Date:       params.Date.String(),
		TemplateID: params.TemplateID,
		PendingID:  params.PendingID,
		CreatedAt:  r.now().UTC(),
	}

	var (
		result  *expense.Expense
		created bool
	)
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *fs.Transaction) error {
		snap, err := tx.Get(ref)
		if err == nil {
			existing, err := decodeExpense(snap)
			if err != nil {
				return err
			}
			result, created = existing, false
			return nil
		}
		if !isNotFound(err) {
			return err
		}
		exp, err := doc.toExpense(ref.ID)
		if err != nil {
			return err
		}
		result, created = exp, true
		return tx.Create(ref, doc)
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to create expense: %w", err)
	}
	return result, created, nil
}

func decodeExpense(snap *fs.DocumentSnapshot) (*expense.Expense, error) {
	var doc expenseDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode expense %s: %w", snap.Ref.ID, err)
	}
	return doc.toExpense(snap.Ref.ID)
}

func (r *ExpenseRepository) GetByID(ctx context.Context, id string) (*expense.Expense, error) {
	snap, err := r.expenses().Doc(id).Get(ctx)
	if isNotFound(err) {
		return nil, expense.ErrExpenseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}
	return decodeExpense(snap)
}

func (r *ExpenseRepository) GetByPendingID(ctx context.Context, pendingID string) (*expense.Expense, error) {
	return r.GetByID(ctx, ledgerDocID(expense.CreateParams{PendingID: &pendingID}))
}

func (r *ExpenseRepository) monthQuery(userID string, year int, month time.Month) fs.Query {
	first, last := expense.MonthBounds(year, month)
	return r.expenses().
		Where("user_id", "==", userID).
		Where("date", ">=", first.String()).
		Where("date", "<=", last.String()).
		OrderBy("date", fs.Asc)
}

func (r *ExpenseRepository) ListByMonth(ctx context.Context, userID string, year int, month time.Month) ([]*expense.Expense, error) {
	snaps, err := r.monthQuery(userID, year, month).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	expenses := make([]*expense.Expense, 0, len(snaps))
	for _, snap := range snaps {
		exp, err := decodeExpense(snap)
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, exp)
	}
	return expenses, nil
}

// SumByMonth adds amounts client side; amounts are stored as decimal strings.
func (r *ExpenseRepository) SumByMonth(ctx context.Context, userID string, category *expense.Category, year int, month time.Month) (decimal.Decimal, error) {
	q := r.monthQuery(userID, year, month)
	if category != nil {
		q = q.Where("category", "==", string(*category))
	}
	snaps, err := q.Select("amount").Documents(ctx).GetAll()
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum expenses: %w", err)
	}

	total := decimal.Zero
	for _, snap := range snaps {
		raw, err := snap.DataAt("amount")
		if err != nil {
			return decimal.Zero, fmt.Errorf("failed to read amount of %s: %w", snap.Ref.ID, err)
		}
		s, ok := raw.(string)
		if !ok {
			return decimal.Zero, fmt.Errorf("amount of %s is %T, want string", snap.Ref.ID, raw)
		}
		amount, err := parseAmount("amount", s)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(amount)
	}
	return total, nil
}
