package recurring

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/liamhowell4/budget-master-sub001/internal/domain/expense"
)

var (
	ErrTemplateNotFound = errors.New("recurring template not found")
	ErrPendingNotFound  = errors.New("pending expense not found")
	ErrPendingExists    = errors.New("pending expense already exists for this due date")
	ErrVersionConflict  = errors.New("concurrent modification, version conflict")
	ErrForbidden        = errors.New("access denied")
	ErrInvalidFrequency = errors.New("invalid frequency")
	ErrInvalidSchedule  = errors.New("invalid schedule")
	ErrInvalidInput     = errors.New("invalid input")
)

// Frequency is how often a template comes due.
type Frequency string

const (
	FrequencyMonthly  Frequency = "MONTHLY"
	FrequencyWeekly   Frequency = "WEEKLY"
	FrequencyBiweekly Frequency = "BIWEEKLY"
	FrequencyYearly   Frequency = "YEARLY"
)

func ParseFrequency(s string) (Frequency, error) {
	switch f := Frequency(strings.ToUpper(strings.TrimSpace(s))); f {
	case FrequencyMonthly, FrequencyWeekly, FrequencyBiweekly, FrequencyYearly:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidFrequency, s)
	}
}

// Template is a user's standing recurring obligation. Templates are never
// hard-deleted; Active=false retires them.
type Template struct {
	ID             string           `json:"id"`
	UserID         string           `json:"-"`
	Name           string           `json:"name"`
	Amount         decimal.Decimal  `json:"amount"`
	Category       expense.Category `json:"category"`
	Frequency      Frequency        `json:"frequency"`
	DayOfMonth     *int             `json:"dayOfMonth,omitempty"`
	DayOfWeek      *time.Weekday    `json:"dayOfWeek,omitempty"`
	MonthOfYear    *time.Month      `json:"monthOfYear,omitempty"`
	LastOfMonth    bool             `json:"lastOfMonth"`
	AnchorDate     civil.Date       `json:"anchorDate"`
	LastReminded   *civil.Date      `json:"lastReminded,omitempty"`
	LastUserAction *civil.Date      `json:"lastUserAction,omitempty"`
	Active         bool             `json:"active"`
	Version        int64            `json:"version"`
	CreatedAt      time.Time        `json:"createdAt"`
	UpdatedAt      time.Time        `json:"updatedAt"`
}

// PendingExpense is a materialized occurrence awaiting confirm or skip.
type PendingExpense struct {
	ID                   string           `json:"id"`
	UserID               string           `json:"-"`
	TemplateID           string           `json:"templateId"`
	Name                 string           `json:"name"`
	Amount               decimal.Decimal  `json:"amount"`
	Category             expense.Category `json:"category"`
	DueDate              civil.Date       `json:"dueDate"`
	AwaitingConfirmation bool             `json:"awaitingConfirmation"`
	CreatedAt            time.Time        `json:"createdAt"`
}

// PendingID is the deterministic id of the occurrence of templateID due on due.
// At most one pending instance can therefore exist per (template, due date).
func PendingID(templateID string, due civil.Date) string {
	return templateID + "_" + due.String()
}

type CreateTemplateParams struct {
	UserID      string
	Name        string
	Amount      decimal.Decimal
	Category    expense.Category
	Frequency   Frequency
	DayOfMonth  *int
	DayOfWeek   *time.Weekday
	MonthOfYear *time.Month
	LastOfMonth bool
	// AnchorDate fixes BIWEEKLY parity; defaults to the creation date.
	AnchorDate civil.Date
}

// Validate enforces the schedule invariant: exactly one of day-of-month
// (or last-of-month) and day-of-week is meaningful for the frequency, and
// YEARLY needs a month.
func (p CreateTemplateParams) Validate() error {
	if p.UserID == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if err := expense.CheckAmount(p.Amount); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if p.Category == "" {
		return fmt.Errorf("%w: category is required", ErrInvalidInput)
	}
	if p.DayOfMonth != nil && (*p.DayOfMonth < 1 || *p.DayOfMonth > 31) {
		return fmt.Errorf("%w: day_of_month must be between 1 and 31", ErrInvalidSchedule)
	}
	if p.DayOfWeek != nil && (*p.DayOfWeek < time.Sunday || *p.DayOfWeek > time.Saturday) {
		return fmt.Errorf("%w: day_of_week must be between 0 and 6", ErrInvalidSchedule)
	}
	if p.MonthOfYear != nil && (*p.MonthOfYear < time.January || *p.MonthOfYear > time.December) {
		return fmt.Errorf("%w: month_of_year must be between 1 and 12", ErrInvalidSchedule)
	}

	monthDay := p.DayOfMonth != nil || p.LastOfMonth
	switch p.Frequency {
	case FrequencyMonthly, FrequencyYearly:
		if !monthDay {
			return fmt.Errorf("%w: %s requires day_of_month or last_of_month", ErrInvalidSchedule, p.Frequency)
		}
		if p.DayOfMonth != nil && p.LastOfMonth {
			return fmt.Errorf("%w: day_of_month and last_of_month are mutually exclusive", ErrInvalidSchedule)
		}
		if p.DayOfWeek != nil {
			return fmt.Errorf("%w: %s does not use day_of_week", ErrInvalidSchedule, p.Frequency)
		}
		if p.Frequency == FrequencyYearly && p.MonthOfYear == nil {
			return fmt.Errorf("%w: YEARLY requires month_of_year", ErrInvalidSchedule)
		}
		if p.Frequency == FrequencyMonthly && p.MonthOfYear != nil {
			return fmt.Errorf("%w: month_of_year is only valid for YEARLY", ErrInvalidSchedule)
		}
	case FrequencyWeekly, FrequencyBiweekly:
		if p.DayOfWeek == nil {
			return fmt.Errorf("%w: %s requires day_of_week", ErrInvalidSchedule, p.Frequency)
		}
		if monthDay || p.MonthOfYear != nil {
			return fmt.Errorf("%w: %s only uses day_of_week", ErrInvalidSchedule, p.Frequency)
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidFrequency, p.Frequency)
	}
	return nil
}

// Outcome is the result of reconciling one template.
type Outcome string

const (
	OutcomeCreated        Outcome = "created"
	OutcomeAlreadyPending Outcome = "already_pending"
	OutcomeAlreadyHandled Outcome = "already_handled"
	OutcomeSkipped        Outcome = "skipped"
)

type ReconcileResult struct {
	TemplateID string
	Outcome    Outcome
	DueDate    civil.Date
	// Pending is set only for OutcomeCreated.
	Pending *PendingExpense
	// Template is the template state after reconciliation.
	Template *Template
}

// Resolution describes what a confirm or skip call did.
type Resolution string

const (
	ResolutionConfirmed      Resolution = "confirmed"
	ResolutionSkipped        Resolution = "skipped"
	ResolutionNotFound       Resolution = "not_found"
	ResolutionAlreadyHandled Resolution = "already_handled"
)

type ConfirmResult struct {
	Resolution Resolution       `json:"resolution"`
	Expense    *expense.Expense `json:"expense,omitempty"`
	// Created is false when the ledger entry already existed from an earlier attempt.
	Created bool `json:"created"`
}

type SkipResult struct {
	Resolution Resolution      `json:"resolution"`
	Pending    *PendingExpense `json:"pending,omitempty"`
}
