package http

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/liamhowell4/budget-master-sub001/internal/domain/notification"
)

// NotificationService is the device, preference and history API used by the handler.
type NotificationService interface {
	RegisterDevice(ctx context.Context, params notification.CreateDeviceTokenParams) (*notification.DeviceToken, error)
	GetPreferences(ctx context.Context, userID string) (*notification.Preferences, error)
	UpdatePreferences(ctx context.Context, userID string, params notification.UpdatePreferenceParams) (*notification.Preferences, error)
	ListNotifications(ctx context.Context, userID string, page, perPage int) ([]*notification.Notification, int, error)
	MarkNotificationOpened(ctx context.Context, notificationID string, userID string) error
}

type NotificationHandler struct {
	notificationService NotificationService
}

func NewNotificationHandler(notificationService NotificationService) *NotificationHandler {
	return &NotificationHandler{notificationService: notificationService}
}

// --- Request/Response types ---

type RegisterDeviceRequest struct {
	Token      string `json:"token"`
	DeviceType string `json:"device_type"`
}

type UpdatePreferencesRequest struct {
	BudgetsEnabled   *bool `json:"budgets_enabled"`
	RecurringEnabled *bool `json:"recurring_enabled"`
	GeneralEnabled   *bool `json:"general_enabled"`
}

type PreferencesResponse struct {
	Success bool                     `json:"success"`
	Data    *PreferencesDataResponse `json:"data"`
}

type PreferencesDataResponse struct {
	BudgetsEnabled   bool `json:"budgets_enabled"`
	RecurringEnabled bool `json:"recurring_enabled"`
	GeneralEnabled   bool `json:"general_enabled"`
}

type NotificationResponse struct {
	ID        string            `json:"id"`
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	Category  string            `json:"category"`
	OpenedAt  *string           `json:"opened_at"`
	CreatedAt string            `json:"created_at"`
	Data      map[string]string `json:"data"`
}

type NotificationListResponse struct {
	Notifications []NotificationResponse `json:"notifications"`
	Pagination    PaginationResponse     `json:"pagination"`
}

type PaginationResponse struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
	Total   int `json:"total"`
	Pages   int `json:"pages"`
}

type OpenNotificationRequest struct {
	NotificationID string `json:"notification_id"`
}

// --- Handlers ---

// HandleNotifications handles GET /api/notifications?page=&per_page=
func (h *NotificationHandler) HandleNotifications(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	page, perPage := pageParams(r.URL.Query(), notification.DefaultPageSize, notification.MaxPageSize)
	notifications, total, err := h.notificationService.ListNotifications(r.Context(), userID, page, perPage)
	if err != nil {
		writeError(w, err, "Failed to list notifications")
		return
	}

	resp := NotificationListResponse{
		Notifications: make([]NotificationResponse, len(notifications)),
		Pagination:    newPagination(page, perPage, total),
	}
	for i, n := range notifications {
		resp.Notifications[i] = toNotificationResponse(n)
	}
	writeJSON(w, http.StatusOK, resp)
}

// pageParams reads page and per_page. Missing or out of range values fall
// back to the first page and defaultSize.
func pageParams(q url.Values, defaultSize, maxSize int) (page, perPage int) {
	page, err := strconv.Atoi(q.Get("page"))
	if err != nil || page < 1 {
		page = 1
	}
	perPage, err = strconv.Atoi(q.Get("per_page"))
	if err != nil || perPage < 1 || perPage > maxSize {
		perPage = defaultSize
	}
	return page, perPage
}

func newPagination(page, perPage, total int) PaginationResponse {
	return PaginationResponse{
		Page:    page,
		PerPage: perPage,
		Total:   total,
		Pages:   (total + perPage - 1) / perPage,
	}
}

// HandleMarkOpened handles PUT /api/notifications/{id}
func (h *NotificationHandler) HandleMarkOpened(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	h.markOpened(w, r, urlParam(r, "id"), userID)
}

// HandleOpen handles POST /api/notifications/open
func (h *NotificationHandler) HandleOpen(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req OpenNotificationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.NotificationID == "" {
		http.Error(w, "notification_id is required", http.StatusBadRequest)
		return
	}
	h.markOpened(w, r, req.NotificationID, userID)
}

func (h *NotificationHandler) markOpened(w http.ResponseWriter, r *http.Request, notificationID, userID string) {
	if err := h.notificationService.MarkNotificationOpened(r.Context(), notificationID, userID); err != nil {
		writeError(w, err, "Failed to mark notification as opened")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// HandleGetPreferences handles GET /api/notifications/preferences
func (h *NotificationHandler) HandleGetPreferences(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	prefs, err := h.notificationService.GetPreferences(r.Context(), userID)
	if err != nil {
		writeError(w, err, "Failed to get preferences")
		return
	}
	writeJSON(w, http.StatusOK, toPreferencesResponse(prefs))
}

// HandleUpdatePreferences handles PUT /api/notifications/preferences.
// Omitted fields keep their current value.
func (h *NotificationHandler) HandleUpdatePreferences(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req UpdatePreferencesRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	prefs, err := h.notificationService.UpdatePreferences(r.Context(), userID, notification.UpdatePreferenceParams{
		BudgetsEnabled:   req.BudgetsEnabled,
		RecurringEnabled: req.RecurringEnabled,
		GeneralEnabled:   req.GeneralEnabled,
	})
	if err != nil {
		writeError(w, err, "Failed to update preferences")
		return
	}
	writeJSON(w, http.StatusOK, toPreferencesResponse(prefs))
}

// HandleRegisterDevice handles POST /api/notifications/register-device
func (h *NotificationHandler) HandleRegisterDevice(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req RegisterDeviceRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	token, err := h.notificationService.RegisterDevice(r.Context(), notification.CreateDeviceTokenParams{
		UserID:     userID,
		Token:      req.Token,
		DeviceType: req.DeviceType,
	})
	if err != nil {
		writeError(w, err, "Failed to register device")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"token":   token.Token,
	})
}

// --- Helpers ---

func toPreferencesResponse(prefs *notification.Preferences) PreferencesResponse {
	return PreferencesResponse{Success: true, Data: &PreferencesDataResponse{
		BudgetsEnabled:   prefs.BudgetsEnabled,
		RecurringEnabled: prefs.RecurringEnabled,
		GeneralEnabled:   prefs.GeneralEnabled,
	}}
}

func toNotificationResponse(n *notification.Notification) NotificationResponse {
	var openedAt *string
	if n.OpenedAt != nil {
		formatted := n.OpenedAt.Format(time.RFC3339)
		openedAt = &formatted
	}

	data := n.Data
	if data == nil {
		data = make(map[string]string)
	}

	return NotificationResponse{
		ID:        n.ID,
		Title:     n.Title,
		Message:   n.Message,
		Category:  n.Category,
		OpenedAt:  openedAt,
		CreatedAt: n.CreatedAt.Format(time.RFC3339),
		Data:      data,
	}
}
