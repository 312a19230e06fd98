// Package firestore stores templates, pending instances, the ledger, budget
// caps and notifications in Cloud Firestore. Compare-and-swap writes run
// inside RunTransaction so they serialise against concurrent writers.
package firestore

import (
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	fs "cloud.google.com/go/firestore"
	"github.com/shopspring/decimal"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	colTemplates     = "recurring_templates"
	colPending       = "pending_expenses"
	colExpenses      = "expenses"
	colCaps          = "budget_caps"
	colAlerts        = "budget_alert_tracking"
	colDeviceTokens  = "fcm_device_tokens"
	colPreferences   = "fcm_notification_preferences"
	colNotifications = "fcm_notifications"
)

// Store groups the repositories sharing one client.
type Store struct {
	client        *fs.Client
	Recurring     *RecurringRepository
	Expenses      *ExpenseRepository
	Budget        *BudgetRepository
	Notifications *NotificationRepository
}

func NewStore(client *fs.Client) *Store {
	return &Store{
		client:        client,
		Recurring:     &RecurringRepository{client: client, now: time.Now},
		Expenses:      &ExpenseRepository{client: client, now: time.Now},
		Budget:        &BudgetRepository{client: client, now: time.Now},
		Notifications: &NotificationRepository{client: client, now: time.Now},
	}
}

func (s *Store) Close() error {
	return s.client.Close()
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

func isAlreadyExists(err error) bool {
	return status.Code(err) == codes.AlreadyExists
}

func dateString(d *civil.Date) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

func parseOptionalDate(s *string) (*civil.Date, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	d, err := civil.ParseDate(*s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func parseAmount(field, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s %q: %w", field, s, err)
	}
	return d, nil
}
