package recurring

import (
	"context"

	"github.com/shopspring/decimal"
)

// Repository defines the interface for template and pending-instance persistence.
// Template writes are compare-and-swap on Template.Version: the write succeeds
// only when the stored version equals the given one, after which the given
// template carries the new version. A losing writer gets ErrVersionConflict.
type Repository interface {
	// CreateTemplate stores a new active template with version 1.
	CreateTemplate(ctx context.Context, params CreateTemplateParams) (*Template, error)
	GetTemplate(ctx context.Context, id string) (*Template, error)
	ListTemplatesByUser(ctx context.Context, userID string) ([]*Template, error)
	ListActiveTemplates(ctx context.Context) ([]*Template, error)
	UpdateTemplate(ctx context.Context, t *Template) error

	// MaterializePending inserts p and persists t in one atomic write.
	// Returns ErrPendingExists if p.ID is taken and ErrVersionConflict if t is stale.
	MaterializePending(ctx context.Context, t *Template, p *PendingExpense) error
	GetPending(ctx context.Context, id string) (*PendingExpense, error)
	ListPendingByUser(ctx context.Context, userID string) ([]*PendingExpense, error)
	UpdatePendingAmount(ctx context.Context, id string, amount decimal.Decimal) (*PendingExpense, error)
	DeletePending(ctx context.Context, id string) error
}
