package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/liamhowell4/budget-master-sub001/internal/domain/notification"
)

// NotificationRepository keeps device tokens, preferences and history in process.
type NotificationRepository struct {
	mu            sync.Mutex
	tokens        map[string]notification.DeviceToken
	preferences   map[string]notification.Preferences
	notifications []notification.Notification
}

func NewNotificationRepository() *NotificationRepository {
	return &NotificationRepository{
		tokens:      make(map[string]notification.DeviceToken),
		preferences: make(map[string]notification.Preferences),
	}
}

func (r *NotificationRepository) UpsertDeviceToken(ctx context.Context, params notification.CreateDeviceTokenParams) (*notification.DeviceToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	t, ok := r.tokens[params.Token]
	if !ok {
		t = notification.DeviceToken{ID: uuid.NewString(), Token: params.Token, CreatedAt: now}
	}
	t.UserID = params.UserID
	t.DeviceType = params.DeviceType
	t.IsActive = true
	t.LastUsed = now
	r.tokens[params.Token] = t
	return &t, nil
}

func (r *NotificationRepository) GetActiveTokensByUserID(ctx context.Context, userID string) ([]*notification.DeviceToken, error) {
	return r.activeTokens(func(t notification.DeviceToken) bool { return t.UserID == userID }), nil
}

func (r *NotificationRepository) GetAllActiveTokens(ctx context.Context) ([]*notification.DeviceToken, error) {
	return r.activeTokens(func(notification.DeviceToken) bool { return true }), nil
}

func (r *NotificationRepository) activeTokens(match func(notification.DeviceToken) bool) []*notification.DeviceToken {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := []*notification.DeviceToken{}
	for _, t := range r.tokens {
		if t.IsActive && match(t) {
			t := t
			out = append(out, &t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Token < out[j].Token })
	return out
}

func (r *NotificationRepository) DeactivateToken(ctx context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tokens[token]; ok {
		t.IsActive = false
		r.tokens[token] = t
	}
	return nil
}

func (r *NotificationRepository) GetPreferences(ctx context.Context, userID string) (*notification.Preferences, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.preferences[userID]
	if !ok {
		return nil, notification.ErrPreferencesNotFound
	}
	return &p, nil
}

func (r *NotificationRepository) UpsertPreferences(ctx context.Context, userID string, params notification.UpdatePreferenceParams) (*notification.Preferences, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.preferences[userID]
	if !ok {
		p = *notification.DefaultPreferences(userID)
	}
	p.Apply(params)
	p.UpdatedAt = time.Now().UTC()
	r.preferences[userID] = p
	return &p, nil
}

func (r *NotificationRepository) CreateNotification(ctx context.Context, params notification.CreateNotificationParams) (*notification.Notification, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	n := notification.Notification{
		ID:        uuid.NewString(),
		UserID:    params.UserID,
		Title:     params.Title,
		Message:   params.Message,
		Category:  params.Category,
		Data:      params.Data,
		CreatedAt: time.Now().UTC(),
	}
	r.notifications = append(r.notifications, n)
	return &n, nil
}

// ListByUserID returns newest first.
func (r *NotificationRepository) ListByUserID(ctx context.Context, userID string, page, perPage int) ([]*notification.Notification, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var mine []*notification.Notification
	for i := len(r.notifications) - 1; i >= 0; i-- {
		if r.notifications[i].UserID == userID {
			n := r.notifications[i]
			mine = append(mine, &n)
		}
	}

	total := len(mine)
	start := (page - 1) * perPage
	if start >= total {
		return []*notification.Notification{}, total, nil
	}
	end := min(start+perPage, total)
	return mine[start:end], total, nil
}

func (r *NotificationRepository) MarkOpened(ctx context.Context, notificationID string, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.notifications {
		n := &r.notifications[i]
		if n.ID != notificationID || n.UserID != userID {
			continue
		}
		if n.OpenedAt == nil {
			now := time.Now().UTC()
			n.OpenedAt = &now
		}
		return nil
	}
	return notification.ErrNotificationNotFound
}
