package firestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	fs "cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"

	"github.com/liamhowell4/budget-master-sub001/internal/domain/notification"
)

type deviceTokenDoc struct {
	UserID     string    `firestore:"user_id"`
	DeviceType string    `firestore:"device_type"`
	IsActive   bool      `firestore:"is_active"`
	CreatedAt  time.Time `firestore:"created_at"`
	LastUsed   time.Time `firestore:"last_used"`
}

func (d deviceTokenDoc) toToken(token string) *notification.DeviceToken {
	return &notification.DeviceToken{
		ID:         token,
		UserID:     d.UserID,
		Token:      token,
		DeviceType: d.DeviceType,
		IsActive:   d.IsActive,
		CreatedAt:  d.CreatedAt,
		LastUsed:   d.LastUsed,
	}
}

type preferencesDoc struct {
	BudgetsEnabled   bool      `firestore:"budgets_enabled"`
	RecurringEnabled bool      `firestore:"recurring_enabled"`
	GeneralEnabled   bool      `firestore:"general_enabled"`
	UpdatedAt        time.Time `firestore:"updated_at"`
}

type notificationDoc struct {
	UserID    string            `firestore:"user_id"`
	Title     string            `firestore:"title"`
	Message   string            `firestore:"message"`
	Category  string            `firestore:"category"`
	Data      map[string]string `firestore:"data"`
	OpenedAt  *time.Time        `firestore:"opened_at"`
	CreatedAt time.Time         `firestore:"created_at"`
}

func (d notificationDoc) toNotification(id string) *notification.Notification {
	return &notification.Notification{
		ID:        id,
		UserID:    d.UserID,
		Title:     d.Title,
		Message:   d.Message,
		Category:  d.Category,
		Data:      d.Data,
		OpenedAt:  d.OpenedAt,
		CreatedAt: d.CreatedAt,
	}
}

// NotificationRepository keys device tokens by the token itself, so
// registering a token another user held moves it to the new user.
type NotificationRepository struct {
	client *fs.Client
	now    func() time.Time
}

func (r *NotificationRepository) tokens() *fs.CollectionRef {
	return r.client.Collection(colDeviceTokens)
}

func (r *NotificationRepository) UpsertDeviceToken(ctx context.Context, params notification.CreateDeviceTokenParams) (*notification.DeviceToken, error) {
	ref := r.tokens().Doc(params.Token)
	now := r.now().UTC()
	doc := deviceTokenDoc{
		UserID:     params.UserID,
		DeviceType: params.DeviceType,
		IsActive:   true,
		CreatedAt:  now,
		LastUsed:   now,
	}

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *fs.Transaction) error {
		snap, err := tx.Get(ref)
		if err == nil {
			var existing deviceTokenDoc
			if err := snap.DataTo(&existing); err != nil {
				return err
			}
			doc.CreatedAt = existing.CreatedAt
		} else if !isNotFound(err) {
			return err
		}
		return tx.Set(ref, doc)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upsert device token: %w", err)
	}
	return doc.toToken(params.Token), nil
}

func (r *NotificationRepository) GetActiveTokensByUserID(ctx context.Context, userID string) ([]*notification.DeviceToken, error) {
	return r.listTokens(ctx, r.tokens().Where("user_id", "==", userID).Where("is_active", "==", true))
}

func (r *NotificationRepository) GetAllActiveTokens(ctx context.Context) ([]*notification.DeviceToken, error) {
	return r.listTokens(ctx, r.tokens().Where("is_active", "==", true))
}

func (r *NotificationRepository) listTokens(ctx context.Context, q fs.Query) ([]*notification.DeviceToken, error) {
	snaps, err := q.Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to get device tokens: %w", err)
	}
	tokens := make([]*notification.DeviceToken, 0, len(snaps))
	for _, snap := range snaps {
		var doc deviceTokenDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode device token: %w", err)
		}
		tokens = append(tokens, doc.toToken(snap.Ref.ID))
	}
	return tokens, nil
}

func (r *NotificationRepository) DeactivateToken(ctx context.Context, token string) error {
	_, err := r.tokens().Doc(token).Update(ctx, []fs.Update{{Path: "is_active", Value: false}})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to deactivate token: %w", err)
	}
	return nil
}

func (r *NotificationRepository) GetPreferences(ctx context.Context, userID string) (*notification.Preferences, error) {
	snap, err := r.client.Collection(colPreferences).Doc(userID).Get(ctx)
	if isNotFound(err) {
		return nil, notification.ErrPreferencesNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get notification preferences: %w", err)
	}
	var doc preferencesDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode notification preferences: %w", err)
	}
	return &notification.Preferences{
		UserID:           userID,
		BudgetsEnabled:   doc.BudgetsEnabled,
		RecurringEnabled: doc.RecurringEnabled,
		GeneralEnabled:   doc.GeneralEnabled,
		UpdatedAt:        doc.UpdatedAt,
	}, nil
}

func (r *NotificationRepository) UpsertPreferences(ctx context.Context, userID string, params notification.UpdatePreferenceParams) (*notification.Preferences, error) {
	ref := r.client.Collection(colPreferences).Doc(userID)
	pref := notification.DefaultPreferences(userID)

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *fs.Transaction) error {
		pref = notification.DefaultPreferences(userID)
		snap, err := tx.Get(ref)
		if err == nil {
			var doc preferencesDoc
			if err := snap.DataTo(&doc); err != nil {
				return err
			}
			pref.BudgetsEnabled = doc.BudgetsEnabled
			pref.RecurringEnabled = doc.RecurringEnabled
			pref.GeneralEnabled = doc.GeneralEnabled
		} else if !isNotFound(err) {
			return err
		}

		pref.Apply(params)
		pref.UpdatedAt = r.now().UTC()
		return tx.Set(ref, preferencesDoc{
			BudgetsEnabled:   pref.BudgetsEnabled,
			RecurringEnabled: pref.RecurringEnabled,
			GeneralEnabled:   pref.GeneralEnabled,
			UpdatedAt:        pref.UpdatedAt,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upsert notification preferences: %w", err)
	}
	return pref, nil
}

func (r *NotificationRepository) notifications() *fs.CollectionRef {
	return r.client.Collection(colNotifications)
}

func (r *NotificationRepository) CreateNotification(ctx context.Context, params notification.CreateNotificationParams) (*notification.Notification, error) {
	ref := r.notifications().NewDoc()
	doc := notificationDoc{
		UserID:    params.UserID,
		Title:     params.Title,
		Message:   params.Message,
		Category:  params.Category,
		Data:      params.Data,
		CreatedAt: r.now().UTC(),
	}
	if _, err := ref.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}
	return doc.toNotification(ref.ID), nil
}

func (r *NotificationRepository) ListByUserID(ctx context.Context, userID string, page, perPage int) ([]*notification.Notification, int, error) {
	q := r.notifications().Where("user_id", "==", userID)

	res, err := q.NewAggregationQuery().WithCount("total").Get(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count notifications: %w", err)
	}
	var total int
	if v, ok := res["total"].(*firestorepb.Value); ok {
		total = int(v.GetIntegerValue())
	}

	snaps, err := q.OrderBy("created_at", fs.Desc).
		Offset((page - 1) * perPage).
		Limit(perPage).
		Documents(ctx).GetAll()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list notifications: %w", err)
	}

	notifications := make([]*notification.Notification, 0, len(snaps))
	for _, snap := range snaps {
		var doc notificationDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, 0, fmt.Errorf("failed to decode notification: %w", err)
		}
		notifications = append(notifications, doc.toNotification(snap.Ref.ID))
	}
	return notifications, total, nil
}

func (r *NotificationRepository) MarkOpened(ctx context.Context, notificationID string, userID string) error {
	ref := r.notifications().Doc(notificationID)
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *fs.Transaction) error {
		snap, err := tx.Get(ref)
		if isNotFound(err) {
			return notification.ErrNotificationNotFound
		}
		if err != nil {
			return err
		}
		var doc notificationDoc
		if err := snap.DataTo(&doc); err != nil {
			return err
		}
		if doc.UserID != userID {
			return notification.ErrNotificationNotFound
		}
		if doc.OpenedAt != nil {
			return nil
		}
		return tx.Update(ref, []fs.Update{{Path: "opened_at", Value: r.now().UTC()}})
	})
	if errors.Is(err, notification.ErrNotificationNotFound) {
		return err
	}
	if err != nil {
		return fmt.Errorf("failed to mark notification as opened: %w", err)
	}
	return nil
}
