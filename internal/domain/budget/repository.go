package budget

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/liamhowell4/budget-master-sub001/internal/domain/expense"
)

// Repository defines the interface for caps and aggregate alert tracking
type Repository interface {
	// GetCap returns nil, nil when no cap is configured for the scope.
	GetCap(ctx context.Context, userID string, scope Scope) (*Cap, error)
	ListCaps(ctx context.Context, userID string) ([]*Cap, error)
	UpsertCap(ctx context.Context, params SetCapParams) (*Cap, error)
	DeleteCap(ctx context.Context, userID string, scope Scope) error

	// GetAlertRecord returns nil, nil when the period has no record yet.
	GetAlertRecord(ctx context.Context, userID string, period Period) (*AlertRecord, error)
	// SaveAlertRecord writes rec if the stored version equals rec.Version
	// (zero meaning "must not exist yet"), then increments rec.Version.
	SaveAlertRecord(ctx context.Context, rec *AlertRecord) error
}

// SpendingReader sums ledger amounts for a month.
type SpendingReader interface {
	SumByMonth(ctx context.Context, userID string, category *expense.Category, year int, month time.Month) (decimal.Decimal, error)
}
