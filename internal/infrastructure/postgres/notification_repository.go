package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/liamhowell4/budget-master-sub001/internal/domain/notification"
)

const (
	tokenColumns = `
	id, user_id, token, device_type, is_active, created_at, last_used`
	preferenceColumns = `
	user_id, budgets_enabled, recurring_enabled, general_enabled, updated_at`
	notificationColumns = `
	id, user_id, title, message, category, data, opened_at, created_at`
)

type NotificationRepository struct {
	db *DB
}

func NewNotificationRepository(db *DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// UpsertDeviceToken moves a token to params.UserID when another user held
// it and reactivates it.
func (r *NotificationRepository) UpsertDeviceToken(ctx context.Context, params notification.CreateDeviceTokenParams) (*notification.DeviceToken, error) {
	query := `
		INSERT INTO fcm_device_tokens (user_id, token, device_type)
		VALUES ($1, $2, $3)
		ON CONFLICT (token) DO UPDATE
			SET user_id = EXCLUDED.user_id,
			    device_type = EXCLUDED.device_type,
			    is_active = true,
			    last_used = NOW()
		RETURNING` + tokenColumns

	dt, err := scanToken(r.db.QueryRowContext(ctx, query, params.UserID, params.Token, params.DeviceType))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert device token: %w", err)
	}
	return dt, nil
}

func (r *NotificationRepository) GetActiveTokensByUserID(ctx context.Context, userID string) ([]*notification.DeviceToken, error) {
	return r.listTokens(ctx, `SELECT`+tokenColumns+`
		FROM fcm_device_tokens
		WHERE user_id = $1 AND is_active
		ORDER BY last_used DESC`, userID)
}

func (r *NotificationRepository) GetAllActiveTokens(ctx context.Context) ([]*notification.DeviceToken, error) {
	return r.listTokens(ctx, `SELECT`+tokenColumns+`
		FROM fcm_device_tokens
		WHERE is_active
		ORDER BY user_id`)
}

func (r *NotificationRepository) listTokens(ctx context.Context, query string, args ...any) ([]*notification.DeviceToken, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list device tokens: %w", err)
	}
	defer rows.Close()
	return collect(rows, scanToken)
}

// DeactivateToken is a no-op for unknown tokens.
func (r *NotificationRepository) DeactivateToken(ctx context.Context, token string) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE fcm_device_tokens SET is_active = false WHERE token = $1 AND is_active`, token,
	); err != nil {
		return fmt.Errorf("failed to deactivate token: %w", err)
	}
	return nil
}

func (r *NotificationRepository) GetPreferences(ctx context.Context, userID string) (*notification.Preferences, error) {
	pref, err := scanPreferences(r.db.QueryRowContext(ctx,
		`SELECT`+preferenceColumns+` FROM fcm_notification_preferences WHERE user_id = $1`, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notification.ErrPreferencesNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get notification preferences: %w", err)
	}
	return pref, nil
}

// UpsertPreferences applies only the fields set in params. A first write
// fills the rest with true.
func (r *NotificationRepository) UpsertPreferences(ctx context.Context, userID string, params notification.UpdatePreferenceParams) (*notification.Preferences, error) {
	query := `
		INSERT INTO fcm_notification_preferences (user_id, budgets_enabled, recurring_enabled, general_enabled)
		VALUES ($1, COALESCE($2::boolean, true), COALESCE($3::boolean, true), COALESCE($4::boolean, true))
		ON CONFLICT (user_id) DO UPDATE
			SET budgets_enabled = COALESCE($2::boolean, fcm_notification_preferences.budgets_enabled),
			    recurring_enabled = COALESCE($3::boolean, fcm_notification_preferences.recurring_enabled),
			    general_enabled = COALESCE($4::boolean, fcm_notification_preferences.general_enabled),
			    updated_at = NOW()
		RETURNING` + preferenceColumns

	pref, err := scanPreferences(r.db.QueryRowContext(ctx, query, userID,
		nullableBool(params.BudgetsEnabled),
		nullableBool(params.RecurringEnabled),
		nullableBool(params.GeneralEnabled),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert notification preferences: %w", err)
	}
	return pref, nil
}

func (r *NotificationRepository) CreateNotification(ctx context.Context, params notification.CreateNotificationParams) (*notification.Notification, error) {
	data, err := json.Marshal(params.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal notification data: %w", err)
	}

	query := `
		INSERT INTO fcm_notifications (user_id, title, message, category, data)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING` + notificationColumns

	n, err := scanNotification(r.db.QueryRowContext(ctx, query,
		params.UserID, params.Title, params.Message, params.Category, data))
	if err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}
	return n, nil
}

// ListByUserID pages newest first. The total comes from a window count on
// the same query; a page past the end falls back to a plain count.
func (r *NotificationRepository) ListByUserID(ctx context.Context, userID string, page, perPage int) ([]*notification.Notification, int, error) {
	query := `SELECT` + notificationColumns + `, COUNT(*) OVER ()
		FROM fcm_notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.QueryContext(ctx, query, userID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	var total int
	items, err := collect(rows, func(row rowScanner) (*notification.Notification, error) {
		return scanNotification(row, &total)
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list notifications: %w", err)
	}

	if len(items) == 0 && page > 1 {
		if err := r.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM fcm_notifications WHERE user_id = $1`, userID,
		).Scan(&total); err != nil {
			return nil, 0, fmt.Errorf("failed to count notifications: %w", err)
		}
	}
	return items, total, nil
}

// MarkOpened keeps the first opened_at. Ids owned by other users report
// ErrNotificationNotFound.
func (r *NotificationRepository) MarkOpened(ctx context.Context, notificationID string, userID string) error {
	if _, err := uuid.Parse(notificationID); err != nil {
		return notification.ErrNotificationNotFound
	}
	result, err := r.db.ExecContext(ctx, `
		UPDATE fcm_notifications
		SET opened_at = COALESCE(opened_at, NOW())
		WHERE id = $1 AND user_id = $2`,
		notificationID, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark notification as opened: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if n == 0 {
		return notification.ErrNotificationNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// collect scans every row with scan and reports the iteration error.
func collect[T any](rows *sql.Rows, scan func(rowScanner) (T, error)) ([]T, error) {
	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func scanToken(row rowScanner) (*notification.DeviceToken, error) {
	var dt notification.DeviceToken
	if err := row.Scan(&dt.ID, &dt.UserID, &dt.Token, &dt.DeviceType, &dt.IsActive, &dt.CreatedAt, &dt.LastUsed); err != nil {
		return nil, err
	}
	return &dt, nil
}

func scanPreferences(row rowScanner) (*notification.Preferences, error) {
	var p notification.Preferences
	if err := row.Scan(&p.UserID, &p.BudgetsEnabled, &p.RecurringEnabled, &p.GeneralEnabled, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// scanNotification reads notificationColumns, plus a trailing count column
// when extra is given.
func scanNotification(row rowScanner, extra ...any) (*notification.Notification, error) {
	var n notification.Notification
	var data []byte
	var openedAt sql.NullTime

	dest := append([]any{&n.ID, &n.UserID, &n.Title, &n.Message, &n.Category, &data, &openedAt, &n.CreatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	if openedAt.Valid {
		n.OpenedAt = &openedAt.Time
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &n.Data); err != nil {
			return nil, fmt.Errorf("failed to unmarshal notification data: %w", err)
		}
	}
	return &n, nil
}

func nullableBool(v *bool) any {
	if v == nil {
		return nil
	}
	return *v
}
