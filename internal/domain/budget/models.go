package budget

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/liamhowell4/budget-master-sub001/internal/domain/expense"
)

var (
	ErrInvalidCap      = errors.New("invalid budget cap")
	ErrInvalidPeriod   = errors.New("invalid budget period")
	ErrVersionConflict = errors.New("concurrent modification, version conflict")
)

// Scope is either a category key or ScopeTotal.
type Scope string

const ScopeTotal Scope = expense.TotalKey

func CategoryScope(c expense.Category) Scope {
	return Scope(c)
}

func (s Scope) IsTotal() bool {
	return s == ScopeTotal
}

// Level is a percent-of-cap checkpoint. Level100 means at or over cap.
type Level int

const (
	LevelNone Level = 0
	Level50   Level = 50
	Level90   Level = 90
	Level95   Level = 95
	Level100  Level = 100
)

// Period is a budget month.
type Period struct {
	Year  int
	Month time.Month
}

func PeriodOf(d civil.Date) Period {
	return Period{Year: d.Year, Month: d.Month}
}

func ParsePeriod(s string) (Period, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Period{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
	}
	return Period{Year: t.Year(), Month: t.Month()}, nil
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

func (p Period) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Period) UnmarshalText(b []byte) error {
	parsed, err := ParsePeriod(string(b))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Cap is a monthly spending ceiling for a scope.
type Cap struct {
	UserID    string          `json:"-"`
	Scope     Scope           `json:"scope"`
	Amount    decimal.Decimal `json:"amount"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Enabled reports whether the cap tracks spending; a cap of zero or less disables it.
func (c *Cap) Enabled() bool {
	return c != nil && c.Amount.IsPositive()
}

type SetCapParams struct {
	UserID string
	Scope  Scope
	Amount decimal.Decimal
}

func (p SetCapParams) Validate() error {
	if p.UserID == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidCap)
	}
	if p.Scope == "" {
		return fmt.Errorf("%w: scope is required", ErrInvalidCap)
	}
	if p.Amount.IsNegative() {
		return fmt.Errorf("%w: amount must not be negative", ErrInvalidCap)
	}
	if err := expense.CheckPrecision(p.Amount); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCap, err)
	}
	return nil
}

// AlertRecord tracks which aggregate thresholds were already announced in a
// period. It only grows; a new period gets a new record.
type AlertRecord struct {
	UserID           string
	Period           Period
	ThresholdsWarned []Level
	Version          int64
	UpdatedAt        time.Time
}

func (r *AlertRecord) HasWarned(l Level) bool {
	return slices.Contains(r.ThresholdsWarned, l)
}

func (r *AlertRecord) markWarned(l Level) {
	if r.HasWarned(l) {
		return
	}
	r.ThresholdsWarned = append(r.ThresholdsWarned, l)
	slices.Sort(r.ThresholdsWarned)
}

// Warning is a structured threshold decision; presentation happens elsewhere.
type Warning struct {
	Scope      Scope           `json:"scope"`
	Level      Level           `json:"level"`
	Percentage decimal.Decimal `json:"percentage"`
	Spent      decimal.Decimal `json:"spent"`
	Cap        decimal.Decimal `json:"cap"`
	Remaining  decimal.Decimal `json:"remaining"`
	Period     Period          `json:"period"`
}

// ScopeStatus is a point-in-time spending snapshot for one scope.
type ScopeStatus struct {
	Scope      Scope           `json:"scope"`
	Spent      decimal.Decimal `json:"spent"`
	Cap        decimal.Decimal `json:"cap"`
	Percentage decimal.Decimal `json:"percentage"`
	Remaining  decimal.Decimal `json:"remaining"`
	Level      Level           `json:"level"`
}
