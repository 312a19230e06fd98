package messages

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/liamhowell4/budget-master-sub001/internal/domain/budget"
	"github.com/liamhowell4/budget-master-sub001/internal/domain/recurring"
)

func TestFormatWarning(t *testing.T) {
	msgs := Default()
	period := budget.Period{Year: 2025, Month: time.December}

	tests := []struct {
		name      string
		warning   budget.Warning
		wantTitle string
		wantBody  string
	}{
		{
			name: "category at 90",
			warning: budget.Warning{
				Scope:      "FOOD_OUT",
				Level:      budget.Level90,
				Percentage: decimal.NewFromInt(92),
				Spent:      decimal.NewFromInt(184),
				Cap:        decimal.NewFromInt(200),
				Remaining:  decimal.NewFromInt(16),
				Period:     period,
			},
			wantTitle: "food out budget at 92%",
			wantBody:  "You've spent $184.00 of $200.00 on food out budget in 2025-12. $16.00 left.",
		},
		{
			name: "total over cap",
			warning: budget.Warning{
				Scope:      budget.ScopeTotal,
				Level:      budget.Level100,
				Percentage: decimal.NewFromInt(110),
				Spent:      decimal.NewFromInt(1100),
				Cap:        decimal.NewFromInt(1000),
				Remaining:  decimal.NewFromInt(-100),
				Period:     period,
			},
			wantTitle: "Over budget on total budget",
			wantBody:  "You've spent $1100.00 against a $1000.00 cap on total budget in 2025-12.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			title, body := msgs.FormatWarning(tt.warning)
			if title != tt.wantTitle {
				t.Errorf("title = %q, want %q", title, tt.wantTitle)
			}
			if body != tt.wantBody {
				t.Errorf("body = %q, want %q", body, tt.wantBody)
			}
		})
	}

	if title, body := msgs.FormatWarning(budget.Warning{Level: budget.LevelNone}); title != "" || body != "" {
		t.Errorf("expected empty text for LevelNone, got %q %q", title, body)
	}
}

func TestFormatPending(t *testing.T) {
	p := &recurring.PendingExpense{
		Name:     "Rent",
		Amount:   decimal.NewFromInt(1400),
		Category: "RENT",
		DueDate:  civil.Date{Year: 2025, Month: time.December, Day: 1},
	}
	title, body := Default().FormatPending(p)
	if title != "Rent is due" {
		t.Errorf("unexpected title %q", title)
	}
	if body != "Rent ($1400.00) was due on 2025-12-01. Confirm or skip it." {
		t.Errorf("unexpected body %q", body)
	}
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "messages.toml")
	content := `
currency = "R$"

[warning_100]
title = "Estourou: {scope}"
body = "Gasto {spent} de {cap}"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	msgs, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msgs.Currency != "R$" {
		t.Errorf("expected currency override, got %q", msgs.Currency)
	}
	if msgs.Warning100.Title != "Estourou: {scope}" {
		t.Errorf("expected title override, got %q", msgs.Warning100.Title)
	}
	if msgs.Warning50.Title != Default().Warning50.Title {
		t.Errorf("expected default warning_50 to be kept, got %q", msgs.Warning50.Title)
	}

	_, body := msgs.FormatWarning(budget.Warning{
		Scope: budget.ScopeTotal, Level: budget.Level100,
		Spent: decimal.NewFromInt(10), Cap: decimal.NewFromInt(5), Remaining: decimal.NewFromInt(-5),
	})
	if body != "Gasto R$10.00 de R$5.00" {
		t.Errorf("unexpected body %q", body)
	}
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	msgs, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msgs.Currency != "$" {
		t.Errorf("expected default currency, got %q", msgs.Currency)
	}
}

func TestLoad_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte("currency = "), 0o600); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}
