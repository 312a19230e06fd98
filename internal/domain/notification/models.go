package notification

import (
	"errors"
	"time"
)

// Notification categories
const (
	CategoryBudgets   = "budgets"
	CategoryRecurring = "recurring"
	CategoryGeneral   = "general"
)

// Page size bounds for notification history.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

var validCategories = map[string]struct{}{
	CategoryBudgets:   {},
	CategoryRecurring: {},
	CategoryGeneral:   {},
}

var validDeviceTypes = map[string]struct{}{
	"ios":     {},
	"android": {},
	"web":     {},
}

// Domain errors
var (
	ErrNotificationNotFound = errors.New("notification not found")
	ErrPreferencesNotFound  = errors.New("notification preferences not found")
	ErrInvalidCategory      = errors.New("invalid notification category")
	ErrInvalidDeviceType    = errors.New("device type must be 'ios', 'android' or 'web'")
	ErrInvalidToken         = errors.New("device token is required")
	ErrInvalidUser          = errors.New("user id is required")
)

// DeviceToken is a registered FCM device token
type DeviceToken struct {
	ID         string    `json:"id"`
	UserID     string    `json:"-"`
	Token      string    `json:"token"`
	DeviceType string    `json:"deviceType"`
	IsActive   bool      `json:"isActive"`
	CreatedAt  time.Time `json:"createdAt"`
	LastUsed   time.Time `json:"lastUsed"`
}

// Preferences stores per-category notification toggles for a user
type Preferences struct {
	UserID           string    `json:"-"`
	BudgetsEnabled   bool      `json:"budgets_enabled"`
	RecurringEnabled bool      `json:"recurring_enabled"`
	GeneralEnabled   bool      `json:"general_enabled"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// DefaultPreferences enables every category.
func DefaultPreferences(userID string) *Preferences {
	return &Preferences{
		UserID:           userID,
		BudgetsEnabled:   true,
		RecurringEnabled: true,
		GeneralEnabled:   true,
	}
}

// Apply overlays the non-nil fields of params.
func (p *Preferences) Apply(params UpdatePreferenceParams) {
	if params.BudgetsEnabled != nil {
		p.BudgetsEnabled = *params.BudgetsEnabled
	}
	if params.RecurringEnabled != nil {
		p.RecurringEnabled = *params.RecurringEnabled
	}
	if params.GeneralEnabled != nil {
		p.GeneralEnabled = *params.GeneralEnabled
	}
}

// Notification is a stored notification record
type Notification struct {
	ID        string            `json:"id"`
	UserID    string            `json:"-"`
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	Category  string            `json:"category"`
	Data      map[string]string `json:"data"`
	OpenedAt  *time.Time        `json:"opened_at"`
	CreatedAt time.Time         `json:"created_at"`
}

type CreateDeviceTokenParams struct {
	UserID     string
	Token      string
	DeviceType string
}

func (p CreateDeviceTokenParams) Validate() error {
	if p.UserID == "" {
		return ErrInvalidUser
	}
	if p.Token == "" {
		return ErrInvalidToken
	}
	if !IsValidDeviceType(p.DeviceType) {
		return ErrInvalidDeviceType
	}
	return nil
}

// UpdatePreferenceParams contains fields for updating notification preferences
type UpdatePreferenceParams struct {
	BudgetsEnabled   *bool
	RecurringEnabled *bool
	GeneralEnabled   *bool
}

type CreateNotificationParams struct {
	UserID   string
	Title    string
	Message  string
	Category string
	Data     map[string]string
}

func (p CreateNotificationParams) Validate() error {
	if p.UserID == "" {
		return ErrInvalidUser
	}
	if p.Title == "" {
		return errors.New("notification title is required")
	}
	if p.Message == "" {
		return errors.New("notification message is required")
	}
	if !IsValidCategory(p.Category) {
		return ErrInvalidCategory
	}
	return nil
}

func IsValidCategory(c string) bool {
	_, ok := validCategories[c]
	return ok
}

func IsValidDeviceType(dt string) bool {
	_, ok := validDeviceTypes[dt]
	return ok
}

// IsCategoryEnabled checks if a specific category is enabled in preferences
func (p *Preferences) IsCategoryEnabled(category string) bool {
	switch category {
	case CategoryBudgets:
		return p.BudgetsEnabled
	case CategoryRecurring:
		return p.RecurringEnabled
	case CategoryGeneral:
		return p.GeneralEnabled
	default:
		return false
	}
}
