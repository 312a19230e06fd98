package notification

import "context"

// Repository defines the interface for notification data access.
type Repository interface {
	// UpsertDeviceToken registers a token, reassigning it if another user held it.
	UpsertDeviceToken(ctx context.Context, params CreateDeviceTokenParams) (*DeviceToken, error)
	GetActiveTokensByUserID(ctx context.Context, userID string) ([]*DeviceToken, error)
	GetAllActiveTokens(ctx context.Context) ([]*DeviceToken, error)
	DeactivateToken(ctx context.Context, token string) error

	// GetPreferences returns ErrPreferencesNotFound when the user has none stored.
	GetPreferences(ctx context.Context, userID string) (*Preferences, error)
	UpsertPreferences(ctx context.Context, userID string, params UpdatePreferenceParams) (*Preferences, error)

	CreateNotification(ctx context.Context, params CreateNotificationParams) (*Notification, error)
	ListByUserID(ctx context.Context, userID string, page, perPage int) ([]*Notification, int, error)
	MarkOpened(ctx context.Context, notificationID string, userID string) error
}
