package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/liamhowell4/budget-master-sub001/internal/domain/notification"
)

// MockNotificationService implements NotificationService for testing
type MockNotificationService struct {
	RegisterDeviceFunc         func(ctx context.Context, params notification.CreateDeviceTokenParams) (*notification.DeviceToken, error)
	GetPreferencesFunc         func(ctx context.Context, userID string) (*notification.Preferences, error)
	UpdatePreferencesFunc      func(ctx context.Context, userID string, params notification.UpdatePreferenceParams) (*notification.Preferences, error)
	ListNotificationsFunc      func(ctx context.Context, userID string, page, perPage int) ([]*notification.Notification, int, error)
	MarkNotificationOpenedFunc func(ctx context.Context, notificationID string, userID string) error
}

func (m *MockNotificationService) RegisterDevice(ctx context.Context, params notification.CreateDeviceTokenParams) (*notification.DeviceToken, error) {
	if m.RegisterDeviceFunc != nil {
		return m.RegisterDeviceFunc(ctx, params)
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &notification.DeviceToken{Token: params.Token}, nil
}

func (m *MockNotificationService) GetPreferences(ctx context.Context, userID string) (*notification.Preferences, error) {
	if m.GetPreferencesFunc != nil {
		return m.GetPreferencesFunc(ctx, userID)
	}
	return notification.DefaultPreferences(userID), nil
}

func (m *MockNotificationService) UpdatePreferences(ctx context.Context, userID string, params notification.UpdatePreferenceParams) (*notification.Preferences, error) {
	if m.UpdatePreferencesFunc != nil {
		return m.UpdatePreferencesFunc(ctx, userID, params)
	}
	prefs := notification.DefaultPreferences(userID)
	prefs.Apply(params)
	return prefs, nil
}

func (m *MockNotificationService) ListNotifications(ctx context.Context, userID string, page, perPage int) ([]*notification.Notification, int, error) {
	if m.ListNotificationsFunc != nil {
		return m.ListNotificationsFunc(ctx, userID, page, perPage)
	}
	return nil, 0, nil
}

func (m *MockNotificationService) MarkNotificationOpened(ctx context.Context, notificationID string, userID string) error {
	if m.MarkNotificationOpenedFunc != nil {
		return m.MarkNotificationOpenedFunc(ctx, notificationID, userID)
	}
	return nil
}

func TestHandleRegisterDevice(t *testing.T) {
	tests := []struct {
		name           string
		body           any
		expectedStatus int
	}{
		{name: "Success", body: map[string]string{"token": "fcm-abc", "device_type": "ios"}, expectedStatus: http.StatusCreated},
		{name: "Missing token", body: map[string]string{"device_type": "ios"}, expectedStatus: http.StatusBadRequest},
		{name: "Bad device type", body: map[string]string{"token": "fcm-abc", "device_type": "fridge"}, expectedStatus: http.StatusBadRequest},
		{name: "Malformed body", body: "not json", expectedStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewNotificationHandler(&MockNotificationService{})

			rr := httptest.NewRecorder()
			handler.HandleRegisterDevice(rr, newRequest(t, http.MethodPost, "/api/notifications/register-device", tt.body))

			if rr.Code != tt.expectedStatus {
				t.Errorf("status = %d, want %d (body %q)", rr.Code, tt.expectedStatus, rr.Body.String())
			}
		})
	}
}

func TestHandleUpdatePreferences_PartialUpdate(t *testing.T) {
	handler := NewNotificationHandler(&MockNotificationService{})

	rr := httptest.NewRecorder()
	handler.HandleUpdatePreferences(rr, newRequest(t, http.MethodPut, "/api/notifications/preferences",
		map[string]bool{"budgets_enabled": false}))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var resp PreferencesResponse
	decodeBody(t, rr, &resp)
	if resp.Data.BudgetsEnabled || !resp.Data.RecurringEnabled || !resp.Data.GeneralEnabled {
		t.Errorf("preferences = %+v, want only budgets disabled", *resp.Data)
	}
}

func TestHandleNotifications_Pagination(t *testing.T) {
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc := &MockNotificationService{
		ListNotificationsFunc: func(ctx context.Context, userID string, page, perPage int) ([]*notification.Notification, int, error) {
			if page != 2 || perPage != 20 {
				t.Errorf("page/perPage = %d/%d, want 2/20", page, perPage)
			}
			return []*notification.Notification{{ID: "n1", Title: "Rent is due", CreatedAt: created}}, 41, nil
		},
	}
	handler := NewNotificationHandler(svc)

	rr := httptest.NewRecorder()
	handler.HandleNotifications(rr, newRequest(t, http.MethodGet, "/api/notifications?page=2&per_page=500", nil))

	var resp NotificationListResponse
	decodeBody(t, rr, &resp)
	if resp.Pagination.Pages != 3 || resp.Pagination.Total != 41 {
		t.Errorf("pagination = %+v, want 3 pages of 41", resp.Pagination)
	}
	if len(resp.Notifications) != 1 || resp.Notifications[0].Data == nil {
		t.Errorf("notifications = %+v", resp.Notifications)
	}
}

func TestHandleMarkOpened_NotFound(t *testing.T) {
	svc := &MockNotificationService{
		MarkNotificationOpenedFunc: func(ctx context.Context, notificationID string, userID string) error {
			return notification.ErrNotificationNotFound
		},
	}
	handler := NewNotificationHandler(svc)

	rr := httptest.NewRecorder()
	handler.HandleMarkOpened(rr, newRequest(t, http.MethodPut, "/api/notifications/n1", nil, "id", "n1"))

	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
}
