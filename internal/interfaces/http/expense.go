package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"cloud.google.com/go/civil"

	"github.com/liamhowell4/budget-master-sub001/internal/domain/budget"
	"github.com/liamhowell4/budget-master-sub001/internal/domain/expense"
)

// ExpenseRecorder writes ledger entries and evaluates the budget afterwards.
type ExpenseRecorder interface {
	RecordExpense(ctx context.Context, params expense.CreateParams) (*expense.Expense, []budget.Warning, error)
}

// ExpenseReader reads the ledger.
type ExpenseReader interface {
	ListMonth(ctx context.Context, userID string, year int, month time.Month) ([]*expense.Expense, error)
	Get(ctx context.Context, userID, id string) (*expense.Expense, error)
}

type ExpenseHandler struct {
	recorder   ExpenseRecorder
	reader     ExpenseReader
	categories *expense.CategorySet
	today      Clock
}

func NewExpenseHandler(recorder ExpenseRecorder, reader ExpenseReader, categories *expense.CategorySet, today Clock) *ExpenseHandler {
	return &ExpenseHandler{recorder: recorder, reader: reader, categories: categories, today: today}
}

type RecordExpenseRequest struct {
	Name     string      `json:"name"`
	Amount   json.Number `json:"amount"`
	Category string      `json:"category"`
	// Date defaults to today. Format YYYY-MM-DD.
	Date string `json:"date,omitempty"`
}

type RecordExpenseResponse struct {
	Expense  *expense.Expense `json:"expense"`
	Warnings []budget.Warning `json:"warnings"`
}

type ExpenseListResponse struct {
	Month    budget.Period      `json:"month"`
	Expenses []*expense.Expense `json:"expenses"`
}

// HandleRecord handles POST /api/expenses. Negative amounts record refunds.
func (h *ExpenseHandler) HandleRecord(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req RecordExpenseRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	amount, err := parseAmount(req.Amount)
	if err != nil {
		http.Error(w, "Invalid amount", http.StatusBadRequest)
		return
	}
	category, err := h.categories.Parse(req.Category)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	date := h.today()
	if req.Date != "" {
		if date, err = civil.ParseDate(req.Date); err != nil {
			http.Error(w, "Invalid date, expected YYYY-MM-DD", http.StatusBadRequest)
			return
		}
	}

	exp, warnings, err := h.recorder.RecordExpense(r.Context(), expense.CreateParams{
		UserID:   userID,
		Name:     req.Name,
		Amount:   amount,
		Category: category,
		Date:     date,
	})
	if err != nil {
		writeError(w, err, "Failed to record expense")
		return
	}

	if warnings == nil {
		warnings = []budget.Warning{}
	}
	writeJSON(w, http.StatusCreated, RecordExpenseResponse{Expense: exp, Warnings: warnings})
}

// HandleList handles GET /api/expenses?month=YYYY-MM
func (h *ExpenseHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	period, err := parsePeriod(r, h.today())
	if err != nil {
		http.Error(w, "Invalid month, expected YYYY-MM", http.StatusBadRequest)
		return
	}

	expenses, err := h.reader.ListMonth(r.Context(), userID, period.Year, period.Month)
	if err != nil {
		writeError(w, err, "Failed to list expenses")
		return
	}
	if expenses == nil {
		expenses = []*expense.Expense{}
	}
	writeJSON(w, http.StatusOK, ExpenseListResponse{Month: period, Expenses: expenses})
}

// HandleGet handles GET /api/expenses/{id}
func (h *ExpenseHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	exp, err := h.reader.Get(r.Context(), userID, urlParam(r, "id"))
	if err != nil {
		writeError(w, err, "Failed to get expense")
		return
	}
	writeJSON(w, http.StatusOK, exp)
}
