package evaluation

import (
	"context"
	"errors"
	"strconv"

	"github.com/liamhowell4/budget-master-sub001/internal/domain/budget"
	"github.com/liamhowell4/budget-master-sub001/internal/domain/notification"
	"github.com/liamhowell4/budget-master-sub001/internal/domain/recurring"
	"github.com/liamhowell4/budget-master-sub001/internal/shared/messages"
)

// PushNotifier formats orchestrator output with the message templates and
// sends it through the notification service.
type PushNotifier struct {
	notifications *notification.Service
	messages      *messages.Messages
}

func NewPushNotifier(notifications *notification.Service, msgs *messages.Messages) *PushNotifier {
	return &PushNotifier{notifications: notifications, messages: msgs}
}

func (n *PushNotifier) NotifyPending(ctx context.Context, p *recurring.PendingExpense) error {
	title, body := n.messages.FormatPending(p)
	return n.notifications.SendToUser(ctx, p.UserID, title, body, notification.CategoryRecurring, map[string]string{
		"route":      "pending",
		"pending_id": p.ID,
		"due_date":   p.DueDate.String(),
	})
}

func (n *PushNotifier) NotifyWarnings(ctx context.Context, userID string, warnings []budget.Warning) error {
	var errs []error
	for _, w := range warnings {
		title, body := n.messages.FormatWarning(w)
		if title == "" {
			continue
		}
		err := n.notifications.SendToUser(ctx, userID, title, body, notification.CategoryBudgets, map[string]string{
			"scope":  string(w.Scope),
			"level":  strconv.Itoa(int(w.Level)),
			"period": w.Period.String(),
		})
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
