// Package memory provides in-process repositories for local development and
// tests. Every repository serializes access with its own mutex.
package memory

// Store bundles one repository per domain.
type Store struct {
	Recurring     *RecurringRepository
	Expenses      *ExpenseRepository
	Budget        *BudgetRepository
	Notifications *NotificationRepository
}

func NewStore() *Store {
	return &Store{
		Recurring:     NewRecurringRepository(),
		Expenses:      NewExpenseRepository(),
		Budget:        NewBudgetRepository(),
		Notifications: NewNotificationRepository(),
	}
}
