package expense

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

var (
	ErrExpenseNotFound = errors.New("expense not found")
	ErrInvalidCategory = errors.New("invalid expense category")
	ErrInvalidInput    = errors.New("invalid expense input")
)

// AmountPlaces is the number of decimal places a stored amount may carry.
const AmountPlaces = 2

// maxAmount bounds the magnitude of a stored amount: 12 integer digits.
var maxAmount = decimal.New(1, 12)

// CheckPrecision reports an amount that cannot be stored exactly.
func CheckPrecision(amount decimal.Decimal) error {
	if !amount.Equal(amount.Round(AmountPlaces)) {
		return fmt.Errorf("amount %s has more than %d decimal places", amount, AmountPlaces)
	}
	if amount.Abs().GreaterThanOrEqual(maxAmount) {
		return fmt.Errorf("amount %s is too large", amount)
	}
	return nil
}

// CheckAmount is CheckPrecision for amounts that must also be non-zero.
func CheckAmount(amount decimal.Decimal) error {
	if amount.IsZero() {
		return errors.New("amount must be non-zero")
	}
	return CheckPrecision(amount)
}

// Expense is a ledger entry. Refunds carry a negative amount.
type Expense struct {
	ID         string          `json:"id"`
	UserID     string          `json:"-"`
	Name       string          `json:"name"`
	Amount     decimal.Decimal `json:"amount"`
	Category   Category        `json:"category"`
	Date       civil.Date      `json:"date"`
	TemplateID *string         `json:"templateId,omitempty"`
	PendingID  *string         `json:"pendingId,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
}

type CreateParams struct {
	UserID     string
	Name       string
	Amount     decimal.Decimal
	Category   Category
	Date       civil.Date
	TemplateID *string
	PendingID  *string
}

func (p CreateParams) Validate() error {
	if p.UserID == "" {
		return errors.Join(ErrInvalidInput, errors.New("user id is required"))
	}
	if strings.TrimSpace(p.Name) == "" {
		return errors.Join(ErrInvalidInput, errors.New("name is required"))
	}
	if err := CheckAmount(p.Amount); err != nil {
		return errors.Join(ErrInvalidInput, err)
	}
	if p.Category == "" {
		return errors.Join(ErrInvalidInput, ErrInvalidCategory)
	}
	if !p.Date.IsValid() {
		return errors.Join(ErrInvalidInput, errors.New("date is invalid"))
	}
	return nil
}

// MonthBounds returns the first and last day of the month.
func MonthBounds(year int, month time.Month) (civil.Date, civil.Date) {
	first := civil.Date{Year: year, Month: month, Day: 1}
	last := civil.DateOf(time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC))
	return first, last
}
