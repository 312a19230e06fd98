package notification

import (
	"context"
	"errors"
	"log"
	"maps"
)

// Service contains the business logic for notification operations
type Service struct {
	repo      Repository
	messenger Messenger
}

// NewService creates a new notification service. A nil messenger stores
// notifications without pushing them.
func NewService(repo Repository, messenger Messenger) *Service {
	return &Service{repo: repo, messenger: messenger}
}

// RegisterDevice registers a device token for the authenticated user and
// makes sure default preferences exist.
func (s *Service) RegisterDevice(ctx context.Context, params CreateDeviceTokenParams) (*DeviceToken, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	token, err := s.repo.UpsertDeviceToken(ctx, params)
	if err != nil {
		return nil, err
	}

	if _, err := s.repo.GetPreferences(ctx, params.UserID); errors.Is(err, ErrPreferencesNotFound) {
		if _, err := s.repo.UpsertPreferences(ctx, params.UserID, UpdatePreferenceParams{}); err != nil {
			log.Printf("Warning: failed to create default notification preferences for user %s: %v", params.UserID, err)
		}
	}

	return token, nil
}

// GetPreferences returns the user's preferences, or all-enabled defaults.
func (s *Service) GetPreferences(ctx context.Context, userID string) (*Preferences, error) {
	if userID == "" {
		return nil, ErrInvalidUser
	}

	prefs, err := s.repo.GetPreferences(ctx, userID)
	if errors.Is(err, ErrPreferencesNotFound) {
		return DefaultPreferences(userID), nil
	}
	if err != nil {
		return nil, err
	}
	return prefs, nil
}

func (s *Service) UpdatePreferences(ctx context.Context, userID string, params UpdatePreferenceParams) (*Preferences, error) {
	if userID == "" {
		return nil, ErrInvalidUser
	}
	return s.repo.UpsertPreferences(ctx, userID, params)
}

// ListNotifications returns paginated notifications for a user
func (s *Service) ListNotifications(ctx context.Context, userID string, page, perPage int) ([]*Notification, int, error) {
	if userID == "" {
		return nil, 0, ErrInvalidUser
	}
	page = max(page, 1)
	if perPage < 1 || perPage > MaxPageSize {
		perPage = DefaultPageSize
	}
	return s.repo.ListByUserID(ctx, userID, page, perPage)
}

func (s *Service) MarkNotificationOpened(ctx context.Context, notificationID string, userID string) error {
	if notificationID == "" {
		return errors.New("notification ID is required")
	}
	if userID == "" {
		return ErrInvalidUser
	}
	return s.repo.MarkOpened(ctx, notificationID, userID)
}

// SendToUser pushes a notification to every active device of the user and
// stores a record of it. Disabled categories are skipped silently.
func (s *Service) SendToUser(ctx context.Context, userID string, title, body, category string, data map[string]string) error {
	if !IsValidCategory(category) {
		return ErrInvalidCategory
	}

	prefs, err := s.GetPreferences(ctx, userID)
	if err != nil {
		return err
	}
	if !prefs.IsCategoryEnabled(category) {
		log.Printf("Notification skipped for user %s: category %q disabled", userID, category)
		return nil
	}

	data = withRoute(data, category)

	tokens, err := s.repo.GetActiveTokensByUserID(ctx, userID)
	if err != nil {
		return err
	}
	if len(tokens) > 0 && s.messenger != nil {
		if err := s.messenger.SendMulticast(ctx, tokenValues(tokens), title, body, data); err != nil {
			log.Printf("Error sending notification to user %s: %v", userID, err)
		}
	}

	_, err = s.repo.CreateNotification(ctx, CreateNotificationParams{
		UserID:   userID,
		Title:    title,
		Message:  body,
		Category: category,
		Data:     data,
	})
	if err != nil {
		log.Printf("Error storing notification for user %s: %v", userID, err)
	}
	return nil
}

// SendToAll pushes a notification to every active device. Operator use only.
func (s *Service) SendToAll(ctx context.Context, title, body, category string, data map[string]string) (int, error) {
	if !IsValidCategory(category) {
		return 0, ErrInvalidCategory
	}

	allTokens, err := s.repo.GetAllActiveTokens(ctx)
	if err != nil {
		return 0, err
	}
	if len(allTokens) == 0 {
		log.Println("SendToAll: no active device tokens found")
		return 0, nil
	}
	if s.messenger == nil {
		return 0, nil
	}

	if err := s.messenger.SendMulticast(ctx, tokenValues(allTokens), title, body, withRoute(data, category)); err != nil {
		return 0, err
	}
	return len(allTokens), nil
}

func tokenValues(tokens []*DeviceToken) []string {
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = t.Token
	}
	return out
}

// withRoute copies data, tagging it with the preference category and a
// default client route.
func withRoute(data map[string]string, category string) map[string]string {
	out := make(map[string]string, len(data)+2)
	maps.Copy(out, data)
	if _, ok := out["route"]; !ok {
		out["route"] = category
	}
	out["category"] = category
	return out
}
