package messages

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/shopspring/decimal"

	"github.com/liamhowell4/budget-master-sub001/internal/domain/budget"
	"github.com/liamhowell4/budget-master-sub001/internal/domain/recurring"
)

type MessageText struct {
	Title string `toml:"title"`
	Body  string `toml:"body"`
}

// Messages holds user-facing notification templates. Placeholders are
// written as {name} and filled by the Format methods.
type Messages struct {
	Currency        string      `toml:"currency"`
	TotalScopeLabel string      `toml:"total_scope_label"`
	PendingReminder MessageText `toml:"pending_reminder"`
	Warning50       MessageText `toml:"warning_50"`
	Warning90       MessageText `toml:"warning_90"`
	Warning95       MessageText `toml:"warning_95"`
	Warning100      MessageText `toml:"warning_100"`
}

// Default returns the built-in English templates.
func Default() *Messages {
	return &Messages{
		Currency:        "$",
		TotalScopeLabel: "total budget",
		PendingReminder: MessageText{
			Title: "{name} is due",
			Body:  "{name} ({amount}) was due on {due_date}. Confirm or skip it.",
		},
		Warning50: MessageText{
			Title: "Halfway through your {scope}",
			Body:  "You've used {percent}% of your {scope} for {month}. {remaining} left.",
		},
		Warning90: MessageText{
			Title: "{scope} at {percent}%",
			Body:  "You've spent {spent} of {cap} on {scope} in {month}. {remaining} left.",
		},
		Warning95: MessageText{
			Title: "{scope} almost used up",
			Body:  "Only {remaining} of your {scope} remains for {month}.",
		},
		Warning100: MessageText{
			Title: "Over budget on {scope}",
			Body:  "You've spent {spent} against a {cap} cap on {scope} in {month}.",
		},
	}
}

// Load reads a TOML messages file. Keys missing from the file keep their
// built-in defaults.
func Load(path string) (*Messages, error) {
	msgs := Default()
	if path == "" {
		return msgs, nil
	}
	if _, err := toml.DecodeFile(path, msgs); err != nil {
		return nil, fmt.Errorf("failed to parse messages file: %w", err)
	}
	return msgs, nil
}

// FormatPending renders the reminder for a newly created pending instance.
func (m *Messages) FormatPending(p *recurring.PendingExpense) (string, string) {
	r := strings.NewReplacer(
		"{name}", p.Name,
		"{amount}", m.money(p.Amount),
		"{category}", string(p.Category),
		"{due_date}", p.DueDate.String(),
	)
	return r.Replace(m.PendingReminder.Title), r.Replace(m.PendingReminder.Body)
}

// FormatWarning renders a budget warning. Unknown levels render empty strings.
func (m *Messages) FormatWarning(w budget.Warning) (string, string) {
	var text MessageText
	switch w.Level {
	case budget.Level50:
		text = m.Warning50
	case budget.Level90:
		text = m.Warning90
	case budget.Level95:
		text = m.Warning95
	case budget.Level100:
		text = m.Warning100
	default:
		return "", ""
	}

	remaining := w.Remaining
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}
	r := strings.NewReplacer(
		"{scope}", m.scopeLabel(w.Scope),
		"{percent}", w.Percentage.Round(0).String(),
		"{spent}", m.money(w.Spent),
		"{cap}", m.money(w.Cap),
		"{remaining}", m.money(remaining),
		"{month}", w.Period.String(),
	)
	return r.Replace(text.Title), r.Replace(text.Body)
}

func (m *Messages) scopeLabel(s budget.Scope) string {
	if s.IsTotal() {
		return m.TotalScopeLabel
	}
	return strings.ToLower(strings.ReplaceAll(string(s), "_", " ")) + " budget"
}

func (m *Messages) money(d decimal.Decimal) string {
	if d.IsNegative() {
		return "-" + m.Currency + d.Abs().StringFixed(2)
	}
	return m.Currency + d.StringFixed(2)
}
