package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/liamhowell4/budget-master-sub001/internal/domain/budget"
)

// MockBudgetService implements BudgetService for testing
type MockBudgetService struct {
	ListCapsFunc  func(ctx context.Context, userID string) ([]*budget.Cap, error)
	SetCapFunc    func(ctx context.Context, params budget.SetCapParams) (*budget.Cap, error)
	DeleteCapFunc func(ctx context.Context, userID string, scope budget.Scope) error
	StatusFunc    func(ctx context.Context, userID string, period budget.Period) ([]budget.ScopeStatus, error)
}

func (m *MockBudgetService) ListCaps(ctx context.Context, userID string) ([]*budget.Cap, error) {
	if m.ListCapsFunc != nil {
		return m.ListCapsFunc(ctx, userID)
	}
	return nil, nil
}

func (m *MockBudgetService) SetCap(ctx context.Context, params budget.SetCapParams) (*budget.Cap, error) {
	if m.SetCapFunc != nil {
		return m.SetCapFunc(ctx, params)
	}
	return &budget.Cap{UserID: params.UserID, Scope: params.Scope, Amount: params.Amount}, nil
}

func (m *MockBudgetService) DeleteCap(ctx context.Context, userID string, scope budget.Scope) error {
	if m.DeleteCapFunc != nil {
		return m.DeleteCapFunc(ctx, userID, scope)
	}
	return nil
}

func (m *MockBudgetService) Status(ctx context.Context, userID string, period budget.Period) ([]budget.ScopeStatus, error) {
	if m.StatusFunc != nil {
		return m.StatusFunc(ctx, userID, period)
	}
	return []budget.ScopeStatus{}, nil
}

func TestHandleSetCap(t *testing.T) {
	tests := []struct {
		name           string
		body           any
		setErr         error
		expectedStatus int
		wantScope      budget.Scope
	}{
		{name: "Total scope", body: map[string]any{"scope": "total", "amount": "3000"}, expectedStatus: http.StatusOK, wantScope: budget.ScopeTotal},
		{name: "Category scope", body: map[string]any{"scope": "groceries", "amount": 400}, expectedStatus: http.StatusOK, wantScope: "GROCERIES"},
		{name: "Zero disables", body: map[string]any{"scope": "COFFEE", "amount": "0"}, expectedStatus: http.StatusOK, wantScope: "COFFEE"},
		{name: "Unknown scope", body: map[string]any{"scope": "YACHTS", "amount": "10"}, expectedStatus: http.StatusBadRequest},
		{name: "Negative rejected by tracker", body: map[string]any{"scope": "TOTAL", "amount": "-1"}, setErr: budget.ErrInvalidCap, expectedStatus: http.StatusBadRequest},
		{name: "Store error", body: map[string]any{"scope": "TOTAL", "amount": "10"}, setErr: errors.New("db error"), expectedStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got budget.SetCapParams
			svc := &MockBudgetService{
				SetCapFunc: func(ctx context.Context, params budget.SetCapParams) (*budget.Cap, error) {
					got = params
					if tt.setErr != nil {
						return nil, tt.setErr
					}
					return &budget.Cap{Scope: params.Scope, Amount: params.Amount}, nil
				},
			}
			handler := NewBudgetHandler(svc, testCategories, fixedClock("2026-03-20"))

			rr := httptest.NewRecorder()
			handler.HandleSetCap(rr, newRequest(t, http.MethodPut, "/api/budget/caps", tt.body))

			if rr.Code != tt.expectedStatus {
				t.Fatalf("status = %d, want %d (body %q)", rr.Code, tt.expectedStatus, rr.Body.String())
			}
			if tt.wantScope != "" && (got.Scope != tt.wantScope || got.UserID != testUser) {
				t.Errorf("params = %+v, want scope %s for %s", got, tt.wantScope, testUser)
			}
		})
	}
}

func TestHandleDeleteCap(t *testing.T) {
	var gotScope budget.Scope
	svc := &MockBudgetService{
		DeleteCapFunc: func(ctx context.Context, userID string, scope budget.Scope) error {
			gotScope = scope
			return nil
		},
	}
	handler := NewBudgetHandler(svc, testCategories, fixedClock("2026-03-20"))

	rr := httptest.NewRecorder()
	handler.HandleDeleteCap(rr, newRequest(t, http.MethodDelete, "/api/budget/caps/rent", nil, "scope", "rent"))

	if rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rr.Code)
	}
	if gotScope != "RENT" {
		t.Errorf("scope = %q, want RENT", gotScope)
	}
}

func TestHandleBudgetStatus(t *testing.T) {
	tests := []struct {
		name           string
		target         string
		expectedStatus int
		wantPeriod     budget.Period
	}{
		{name: "Current month", target: "/api/budget/status", expectedStatus: http.StatusOK, wantPeriod: budget.Period{Year: 2026, Month: time.March}},
		{name: "Given month", target: "/api/budget/status?month=2026-01", expectedStatus: http.StatusOK, wantPeriod: budget.Period{Year: 2026, Month: time.January}},
		{name: "Bad month", target: "/api/budget/status?month=January", expectedStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotPeriod budget.Period
			svc := &MockBudgetService{
				StatusFunc: func(ctx context.Context, userID string, period budget.Period) ([]budget.ScopeStatus, error) {
					gotPeriod = period
					return []budget.ScopeStatus{{
						Scope: budget.ScopeTotal, Spent: decimal.NewFromInt(950), Cap: decimal.NewFromInt(1000),
						Percentage: decimal.NewFromInt(95), Remaining: decimal.NewFromInt(50), Level: budget.Level95,
					}}, nil
				},
			}
			handler := NewBudgetHandler(svc, testCategories, fixedClock("2026-03-20"))

			rr := httptest.NewRecorder()
			handler.HandleStatus(rr, newRequest(t, http.MethodGet, tt.target, nil))

			if rr.Code != tt.expectedStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tt.expectedStatus)
			}
			if tt.expectedStatus != http.StatusOK {
				return
			}
			if gotPeriod != tt.wantPeriod {
				t.Errorf("period = %s, want %s", gotPeriod, tt.wantPeriod)
			}
			var resp struct {
				Month  string               `json:"month"`
				Scopes []budget.ScopeStatus `json:"scopes"`
			}
			decodeBody(t, rr, &resp)
			if resp.Month != tt.wantPeriod.String() || len(resp.Scopes) != 1 || resp.Scopes[0].Level != budget.Level95 {
				t.Errorf("response = %+v", resp)
			}
		})
	}
}
