package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/liamhowell4/budget-master-sub001/internal/domain/budget"
	"github.com/liamhowell4/budget-master-sub001/internal/domain/expense"
)

// BudgetService manages caps and reports spending against them.
type BudgetService interface {
	ListCaps(ctx context.Context, userID string) ([]*budget.Cap, error)
	SetCap(ctx context.Context, params budget.SetCapParams) (*budget.Cap, error)
	DeleteCap(ctx context.Context, userID string, scope budget.Scope) error
	Status(ctx context.Context, userID string, period budget.Period) ([]budget.ScopeStatus, error)
}

type BudgetHandler struct {
	budgets    BudgetService
	categories *expense.CategorySet
	today      Clock
}

func NewBudgetHandler(budgets BudgetService, categories *expense.CategorySet, today Clock) *BudgetHandler {
	return &BudgetHandler{budgets: budgets, categories: categories, today: today}
}

type SetCapRequest struct {
	// Scope is a category key or TOTAL.
	Scope  string      `json:"scope"`
	Amount json.Number `json:"amount"`
}

type BudgetStatusResponse struct {
	Month  budget.Period        `json:"month"`
	Scopes []budget.ScopeStatus `json:"scopes"`
}

// parseScope accepts TOTAL or a configured category, case-insensitively.
func (h *BudgetHandler) parseScope(raw string) (budget.Scope, error) {
	if strings.EqualFold(strings.TrimSpace(raw), string(budget.ScopeTotal)) {
		return budget.ScopeTotal, nil
	}
	category, err := h.categories.Parse(raw)
	if err != nil {
		return "", err
	}
	return budget.CategoryScope(category), nil
}

// HandleListCaps handles GET /api/budget/caps
func (h *BudgetHandler) HandleListCaps(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	caps, err := h.budgets.ListCaps(r.Context(), userID)
	if err != nil {
		writeError(w, err, "Failed to list budget caps")
		return
	}
	if caps == nil {
		caps = []*budget.Cap{}
	}
	writeJSON(w, http.StatusOK, caps)
}

// HandleSetCap handles PUT /api/budget/caps. An amount of 0 disables the
// scope without deleting it.
func (h *BudgetHandler) HandleSetCap(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req SetCapRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	scope, err := h.parseScope(req.Scope)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		http.Error(w, "Invalid amount", http.StatusBadRequest)
		return
	}

	c, err := h.budgets.SetCap(r.Context(), budget.SetCapParams{UserID: userID, Scope: scope, Amount: amount})
	if err != nil {
		writeError(w, err, "Failed to set budget cap")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// HandleDeleteCap handles DELETE /api/budget/caps/{scope}
func (h *BudgetHandler) HandleDeleteCap(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	scope, err := h.parseScope(urlParam(r, "scope"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.budgets.DeleteCap(r.Context(), userID, scope); err != nil {
		writeError(w, err, "Failed to delete budget cap")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleStatus handles GET /api/budget/status?month=YYYY-MM
func (h *BudgetHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	period, err := parsePeriod(r, h.today())
	if err != nil {
		http.Error(w, "Invalid month, expected YYYY-MM", http.StatusBadRequest)
		return
	}

	statuses, err := h.budgets.Status(r.Context(), userID, period)
	if err != nil {
		writeError(w, err, "Failed to get budget status")
		return
	}
	writeJSON(w, http.StatusOK, BudgetStatusResponse{Month: period, Scopes: statuses})
}
