package expense

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Repository defines the interface for ledger persistence
type Repository interface {
	Create(ctx context.Context, params CreateParams) (*Expense, error)
	// CreateIdempotent writes params unless an entry with the same PendingID
	// already exists, in which case it returns that entry and false.
	CreateIdempotent(ctx context.Context, params CreateParams) (*Expense, bool, error)
	GetByID(ctx context.Context, id string) (*Expense, error)
	GetByPendingID(ctx context.Context, pendingID string) (*Expense, error)
	ListByMonth(ctx context.Context, userID string, year int, month time.Month) ([]*Expense, error)
	// SumByMonth sums amounts in the month; a nil category sums every category.
	SumByMonth(ctx context.Context, userID string, category *Category, year int, month time.Month) (decimal.Decimal, error)
}
