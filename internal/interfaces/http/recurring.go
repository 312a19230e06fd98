package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/liamhowell4/budget-master-sub001/internal/domain/budget"
	"github.com/liamhowell4/budget-master-sub001/internal/domain/expense"
	"github.com/liamhowell4/budget-master-sub001/internal/domain/recurring"
)

// RecurringService is the template and pending-instance API used by the handler.
type RecurringService interface {
	CreateTemplate(ctx context.Context, params recurring.CreateTemplateParams) (*recurring.Template, error)
	GetTemplate(ctx context.Context, userID, id string) (*recurring.Template, error)
	ListTemplates(ctx context.Context, userID string) ([]*recurring.Template, error)
	Deactivate(ctx context.Context, userID, templateID string) (*recurring.Template, error)
	ListPending(ctx context.Context, userID string) ([]*recurring.PendingExpense, error)
	AdjustPending(ctx context.Context, userID, pendingID string, amount decimal.Decimal) (*recurring.PendingExpense, error)
	Skip(ctx context.Context, userID, pendingID string, today civil.Date) (*recurring.SkipResult, error)
}

// PendingConfirmer confirms a pending instance and evaluates the budget.
type PendingConfirmer interface {
	ConfirmPending(ctx context.Context, userID, pendingID string, adjusted *decimal.Decimal, today civil.Date) (*recurring.ConfirmResult, []budget.Warning, error)
}

type RecurringHandler struct {
	recurring  RecurringService
	confirmer  PendingConfirmer
	categories *expense.CategorySet
	today      Clock
}

func NewRecurringHandler(rec RecurringService, confirmer PendingConfirmer, categories *expense.CategorySet, today Clock) *RecurringHandler {
	return &RecurringHandler{recurring: rec, confirmer: confirmer, categories: categories, today: today}
}

// --- Request/Response types ---

type CreateTemplateRequest struct {
	Name        string      `json:"name"`
	Amount      json.Number `json:"amount"`
	Category    string      `json:"category"`
	Frequency   string      `json:"frequency"`
	DayOfMonth  *int        `json:"dayOfMonth,omitempty"`
	DayOfWeek   *int        `json:"dayOfWeek,omitempty"`
	MonthOfYear *int        `json:"monthOfYear,omitempty"`
	LastOfMonth bool        `json:"lastOfMonth"`
	AnchorDate  string      `json:"anchorDate,omitempty"`
}

type AdjustPendingRequest struct {
	Amount json.Number `json:"amount"`
}

type ConfirmPendingRequest struct {
	// Amount overrides the pending amount for this confirmation only.
	Amount json.Number `json:"amount,omitempty"`
}

type ConfirmPendingResponse struct {
	*recurring.ConfirmResult
	Warnings []budget.Warning `json:"warnings"`
}

func (req CreateTemplateRequest) toParams(userID string, categories *expense.CategorySet) (recurring.CreateTemplateParams, error) {
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return recurring.CreateTemplateParams{}, err
	}
	category, err := categories.Parse(req.Category)
	if err != nil {
		return recurring.CreateTemplateParams{}, err
	}
	frequency, err := recurring.ParseFrequency(req.Frequency)
	if err != nil {
		return recurring.CreateTemplateParams{}, err
	}

	params := recurring.CreateTemplateParams{
		UserID:      userID,
		Name:        req.Name,
		Amount:      amount,
		Category:    category,
		Frequency:   frequency,
		DayOfMonth:  req.DayOfMonth,
		LastOfMonth: req.LastOfMonth,
	}
	if req.DayOfWeek != nil {
		wd := time.Weekday(*req.DayOfWeek)
		params.DayOfWeek = &wd
	}
	if req.MonthOfYear != nil {
		m := time.Month(*req.MonthOfYear)
		params.MonthOfYear = &m
	}
	if req.AnchorDate != "" {
		if params.AnchorDate, err = civil.ParseDate(req.AnchorDate); err != nil {
			return recurring.CreateTemplateParams{}, err
		}
	}
	return params, nil
}

// --- Template handlers ---

// HandleListTemplates handles GET /api/recurring
func (h *RecurringHandler) HandleListTemplates(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	templates, err := h.recurring.ListTemplates(r.Context(), userID)
	if err != nil {
		writeError(w, err, "Failed to list recurring expenses")
		return
	}
	if templates == nil {
		templates = []*recurring.Template{}
	}
	writeJSON(w, http.StatusOK, templates)
}

// HandleCreateTemplate handles POST /api/recurring
func (h *RecurringHandler) HandleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req CreateTemplateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	params, err := req.toParams(userID, h.categories)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	t, err := h.recurring.CreateTemplate(r.Context(), params)
	if err != nil {
		writeError(w, err, "Failed to create recurring expense")
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// HandleGetTemplate handles GET /api/recurring/{id}
func (h *RecurringHandler) HandleGetTemplate(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	t, err := h.recurring.GetTemplate(r.Context(), userID, urlParam(r, "id"))
	if err != nil {
		writeError(w, err, "Failed to get recurring expense")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// HandleDeactivateTemplate handles DELETE /api/recurring/{id}. Templates are
// retired, never removed.
func (h *RecurringHandler) HandleDeactivateTemplate(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	t, err := h.recurring.Deactivate(r.Context(), userID, urlParam(r, "id"))
	if err != nil {
		writeError(w, err, "Failed to deactivate recurring expense")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// --- Pending handlers ---

// HandleListPending handles GET /api/pending
func (h *RecurringHandler) HandleListPending(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	pending, err := h.recurring.ListPending(r.Context(), userID)
	if err != nil {
		writeError(w, err, "Failed to list pending expenses")
		return
	}
	if pending == nil {
		pending = []*recurring.PendingExpense{}
	}
	writeJSON(w, http.StatusOK, pending)
}

// HandleAdjustPending handles PATCH /api/pending/{id}
func (h *RecurringHandler) HandleAdjustPending(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req AdjustPendingRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		http.Error(w, "Invalid amount", http.StatusBadRequest)
		return
	}

	p, err := h.recurring.AdjustPending(r.Context(), userID, urlParam(r, "id"), amount)
	if err != nil {
		writeError(w, err, "Failed to adjust pending expense")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleConfirmPending handles POST /api/pending/{id}/confirm. The body is
// optional. Repeating the call never writes a second ledger entry.
func (h *RecurringHandler) HandleConfirmPending(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req ConfirmPendingRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	var adjusted *decimal.Decimal
	if req.Amount != "" {
		amount, err := parseAmount(req.Amount)
		if err != nil {
			http.Error(w, "Invalid amount", http.StatusBadRequest)
			return
		}
		adjusted = &amount
	}

	res, warnings, err := h.confirmer.ConfirmPending(r.Context(), userID, urlParam(r, "id"), adjusted, h.today())
	if err != nil {
		writeError(w, err, "Failed to confirm pending expense")
		return
	}
	if warnings == nil {
		warnings = []budget.Warning{}
	}
	writeJSON(w, http.StatusOK, ConfirmPendingResponse{ConfirmResult: res, Warnings: warnings})
}

// HandleSkipPending handles POST /api/pending/{id}/skip
func (h *RecurringHandler) HandleSkipPending(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	res, err := h.recurring.Skip(r.Context(), userID, urlParam(r, "id"), h.today())
	if err != nil {
		writeError(w, err, "Failed to skip pending expense")
		return
	}
	writeJSON(w, http.StatusOK, res)
}
