package firestore

import (
	"errors"
	"slices"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/liamhowell4/budget-master-sub001/internal/domain/budget"
	"github.com/liamhowell4/budget-master-sub001/internal/domain/expense"
	"github.com/liamhowell4/budget-master-sub001/internal/domain/recurring"
)

func TestTemplateDoc_PreservesSchedule(t *testing.T) {
	day := 15
	reminded := civil.Date{Year: 2025, Month: 12, Day: 15}
	in := &recurring.Template{
		ID:           "tpl-1",
		UserID:       "u-1",
		Name:         "Rent",
		Amount:       decimal.RequireFromString("1400.00"),
		Category:     "RENT",
		Frequency:    recurring.FrequencyMonthly,
		DayOfMonth:   &day,
		AnchorDate:   civil.Date{Year: 2025, Month: 1, Day: 1},
		LastReminded: &reminded,
		Active:       true,
		Version:      3,
	}

	out, err := newTemplateDoc(in).toTemplate(in.ID)
	if err != nil {
		t.Fatalf("toTemplate() error = %v", err)
	}
	if out.DayOfMonth == nil || *out.DayOfMonth != 15 {
		t.Errorf("DayOfMonth = %v, want 15", out.DayOfMonth)
	}
	if out.DayOfWeek != nil || out.MonthOfYear != nil {
		t.Errorf("unexpected weekday/month: %v %v", out.DayOfWeek, out.MonthOfYear)
	}
	if out.LastReminded == nil || *out.LastReminded != reminded {
		t.Errorf("LastReminded = %v, want %v", out.LastReminded, reminded)
	}
	if out.LastUserAction != nil {
		t.Errorf("LastUserAction = %v, want nil", out.LastUserAction)
	}
	if !out.Amount.Equal(in.Amount) {
		t.Errorf("Amount = %s, want %s", out.Amount, in.Amount)
	}
	if out.Version != 3 {
		t.Errorf("Version = %d, want 3", out.Version)
	}
}

func TestTemplateDoc_RejectsCorruptAmount(t *testing.T) {
	doc := templateDoc{Amount: "lots", AnchorDate: "2025-01-01"}
	if _, err := doc.toTemplate("tpl-1"); err == nil {
		t.Fatal("expected error for corrupt amount")
	}
}

func TestPendingDoc_DueDate(t *testing.T) {
	p := &recurring.PendingExpense{
		ID:         "tpl-1_2025-12-15",
		TemplateID: "tpl-1",
		Amount:     decimal.NewFromInt(1400),
		DueDate:    civil.Date{Year: 2025, Month: 12, Day: 15},
	}
	doc := newPendingDoc(p)
	if doc.DueDate != "2025-12-15" {
		t.Errorf("DueDate = %q", doc.DueDate)
	}
	out, err := doc.toPending(p.ID)
	if err != nil {
		t.Fatalf("toPending() error = %v", err)
	}
	if out.DueDate != p.DueDate {
		t.Errorf("DueDate = %v, want %v", out.DueDate, p.DueDate)
	}
}

func TestLedgerDocID(t *testing.T) {
	pendingID := "tpl-1_2025-12-15"
	withPending := expense.CreateParams{PendingID: &pendingID}

	if got := ledgerDocID(withPending); got != "pending_tpl-1_2025-12-15" {
		t.Errorf("ledgerDocID() = %q", got)
	}
	if ledgerDocID(withPending) != ledgerDocID(withPending) {
		t.Error("ledger id for a pending instance must be stable")
	}
	if ledgerDocID(expense.CreateParams{}) == ledgerDocID(expense.CreateParams{}) {
		t.Error("manual entries must get distinct ids")
	}
}

func TestDocIDs(t *testing.T) {
	if got := capDocID("u-1", budget.ScopeTotal); got != "u-1_TOTAL" {
		t.Errorf("capDocID() = %q", got)
	}
	if got := alertDocID("u-1", budget.Period{Year: 2025, Month: time.March}); got != "u-1_2025-03" {
		t.Errorf("alertDocID() = %q", got)
	}
}

func TestCompareCaps(t *testing.T) {
	caps := []*budget.Cap{
		{Scope: "RENT"},
		{Scope: budget.ScopeTotal},
		{Scope: "FOOD_OUT"},
	}
	slices.SortFunc(caps, compareCaps)

	var got []budget.Scope
	for _, c := range caps {
		got = append(got, c.Scope)
	}
	want := []budget.Scope{budget.ScopeTotal, "FOOD_OUT", "RENT"}
	if !slices.Equal(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		notFound      bool
		alreadyExists bool
	}{
		{"not found", status.Error(codes.NotFound, "missing"), true, false},
		{"already exists", status.Error(codes.AlreadyExists, "dup"), false, true},
		{"other", errors.New("boom"), false, false},
		{"nil", nil, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isNotFound(tt.err); got != tt.notFound {
				t.Errorf("isNotFound() = %v, want %v", got, tt.notFound)
			}
			if got := isAlreadyExists(tt.err); got != tt.alreadyExists {
				t.Errorf("isAlreadyExists() = %v, want %v", got, tt.alreadyExists)
			}
		})
	}
}
