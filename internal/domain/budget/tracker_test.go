package budget

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/liamhowell4/budget-master-sub001/internal/domain/expense"
)

// MockRepository is a mock implementation of Repository
type MockRepository struct {
	GetCapFunc          func(ctx context.Context, userID string, scope Scope) (*Cap, error)
	ListCapsFunc        func(ctx context.Context, userID string) ([]*Cap, error)
	UpsertCapFunc       func(ctx context.Context, params SetCapParams) (*Cap, error)
	DeleteCapFunc       func(ctx context.Context, userID string, scope Scope) error
	GetAlertRecordFunc  func(ctx context.Context, userID string, period Period) (*AlertRecord, error)
	SaveAlertRecordFunc func(ctx context.Context, rec *AlertRecord) error
}

func (m *MockRepository) GetCap(ctx context.Context, userID string, scope Scope) (*Cap, error) {
	if m.GetCapFunc != nil {
		return m.GetCapFunc(ctx, userID, scope)
	}
	return nil, nil
}

func (m *MockRepository) ListCaps(ctx context.Context, userID string) ([]*Cap, error) {
	if m.ListCapsFunc != nil {
		return m.ListCapsFunc(ctx, userID)
	}
	return nil, nil
}

func (m *MockRepository) UpsertCap(ctx context.Context, params SetCapParams) (*Cap, error) {
	if m.UpsertCapFunc != nil {
		return m.UpsertCapFunc(ctx, params)
	}
	return &Cap{UserID: params.UserID, Scope: params.Scope, Amount: params.Amount}, nil
}

func (m *MockRepository) DeleteCap(ctx context.Context, userID string, scope Scope) error {
	if m.DeleteCapFunc != nil {
		return m.DeleteCapFunc(ctx, userID, scope)
	}
	return nil
}

func (m *MockRepository) GetAlertRecord(ctx context.Context, userID string, period Period) (*AlertRecord, error) {
	if m.GetAlertRecordFunc != nil {
		return m.GetAlertRecordFunc(ctx, userID, period)
	}
	return nil, nil
}

func (m *MockRepository) SaveAlertRecord(ctx context.Context, rec *AlertRecord) error {
	if m.SaveAlertRecordFunc != nil {
		return m.SaveAlertRecordFunc(ctx, rec)
	}
	rec.Version++
	return nil
}

// MockSpending returns fixed sums keyed by category ("" for the total).
type MockSpending struct {
	sums map[string]decimal.Decimal
}

func (m *MockSpending) SumByMonth(ctx context.Context, userID string, category *expense.Category, year int, month time.Month) (decimal.Decimal, error) {
	key := ""
	if category != nil {
		key = string(*category)
	}
	return m.sums[key], nil
}

func (m *MockSpending) set(key string, v string) {
	m.sums[key] = decimal.RequireFromString(v)
}

// capsRepo returns a MockRepository with the given caps and an in-memory
// alert record store.
func capsRepo(caps map[Scope]string) *MockRepository {
	records := map[string]AlertRecord{}
	return &MockRepository{
		GetCapFunc: func(ctx context.Context, userID string, scope Scope) (*Cap, error) {
			amount, ok := caps[scope]
			if !ok {
				return nil, nil
			}
			return &Cap{UserID: userID, Scope: scope, Amount: decimal.RequireFromString(amount)}, nil
		},
		ListCapsFunc: func(ctx context.Context, userID string) ([]*Cap, error) {
			var out []*Cap
			for _, scope := range []Scope{ScopeTotal, "FOOD_OUT", "RENT"} {
				if amount, ok := caps[scope]; ok {
					out = append(out, &Cap{UserID: userID, Scope: scope, Amount: decimal.RequireFromString(amount)})
				}
			}
			return out, nil
		},
		GetAlertRecordFunc: func(ctx context.Context, userID string, period Period) (*AlertRecord, error) {
			rec, ok := records[userID+period.String()]
			if !ok {
				return nil, nil
			}
			rec.ThresholdsWarned = append([]Level(nil), rec.ThresholdsWarned...)
			return &rec, nil
		},
		SaveAlertRecordFunc: func(ctx context.Context, rec *AlertRecord) error {
			key := rec.UserID + rec.Period.String()
			if stored, ok := records[key]; ok && stored.Version != rec.Version {
				return ErrVersionConflict
			}
			rec.Version++
			records[key] = *rec
			return nil
		},
	}
}

var december = Period{Year: 2025, Month: time.December}

func TestWarningLevel(t *testing.T) {
	tests := []struct {
		pct  string
		want Level
	}{
		{"-10", LevelNone},
		{"0", LevelNone},
		{"49.99", LevelNone},
		{"50", Level50},
		{"89.99", Level50},
		{"90", Level90},
		{"94.999", Level90},
		{"95", Level95},
		{"99.99", Level95},
		{"100", Level100},
		{"250", Level100},
	}
	for _, tt := range tests {
		if got := WarningLevel(decimal.RequireFromString(tt.pct)); got != tt.want {
			t.Errorf("WarningLevel(%s) = %d, want %d", tt.pct, got, tt.want)
		}
	}
}

func TestTracker_CategoryAlwaysEmits(t *testing.T) {
	spending := &MockSpending{sums: map[string]decimal.Decimal{}}
	tracker := NewTracker(capsRepo(map[Scope]string{"FOOD_OUT": "200"}), spending)
	ctx := context.Background()

	steps := []struct {
		spent string
		want  Level
	}{
		{"184", Level90},
		{"194", Level95},
		{"196", Level95},
	}
	for i, step := range steps {
		spending.set("FOOD_OUT", step.spent)
		warnings, err := tracker.Evaluate(ctx, "user-1", "FOOD_OUT", december)
		if err != nil {
			t.Fatalf("step %d: unexpected error: %v", i, err)
		}
		if len(warnings) != 1 {
			t.Fatalf("step %d: expected one warning, got %d", i, len(warnings))
		}
		if warnings[0].Scope != "FOOD_OUT" || warnings[0].Level != step.want {
			t.Errorf("step %d: expected FOOD_OUT at %d, got %s at %d", i, step.want, warnings[0].Scope, warnings[0].Level)
		}
	}
}

func TestTracker_CategoryWarningFields(t *testing.T) {
	spending := &MockSpending{sums: map[string]decimal.Decimal{}}
	spending.set("FOOD_OUT", "184")
	tracker := NewTracker(capsRepo(map[Scope]string{"FOOD_OUT": "200"}), spending)

	warnings, err := tracker.Evaluate(context.Background(), "user-1", "FOOD_OUT", december)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	w := warnings[0]
	if !w.Percentage.Equal(decimal.NewFromInt(92)) {
		t.Errorf("expected 92%%, got %s", w.Percentage)
	}
	if !w.Remaining.Equal(decimal.NewFromInt(16)) {
		t.Errorf("expected 16 remaining, got %s", w.Remaining)
	}
	if w.Period != december {
		t.Errorf("expected period %s, got %s", december, w.Period)
	}
}

func TestTracker_AggregateOncePolicy(t *testing.T) {
	spending := &MockSpending{sums: map[string]decimal.Decimal{}}
	tracker := NewTracker(capsRepo(map[Scope]string{ScopeTotal: "1000"}), spending)
	ctx := context.Background()

	steps := []struct {
		name  string
		spent string
		want  Level
	}{
		{"crosses 50", "550", Level50},
		{"stays between 50 and 89", "700", LevelNone},
		{"crosses 90", "920", Level90},
		{"refund drops below 90", "850", LevelNone},
		{"re-crosses 90 in same month", "930", LevelNone},
		{"crosses 95", "960", Level95},
		{"crosses 100", "1000", Level100},
		{"still over cap", "1100", Level100},
		{"still over cap again", "1050", Level100},
	}

	for _, step := range steps {
		t.Run(step.name, func(t *testing.T) {
			spending.set("", step.spent)
			warnings, err := tracker.Evaluate(ctx, "user-1", "GROCERIES", december)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if step.want == LevelNone {
				if len(warnings) != 0 {
					t.Fatalf("expected no warning, got %+v", warnings)
				}
				return
			}
			if len(warnings) != 1 {
				t.Fatalf("expected one warning, got %d", len(warnings))
			}
			if warnings[0].Scope != ScopeTotal || warnings[0].Level != step.want {
				t.Errorf("expected TOTAL at %d, got %s at %d", step.want, warnings[0].Scope, warnings[0].Level)
			}
		})
	}
}

func TestTracker_NewPeriodStartsFresh(t *testing.T) {
	spending := &MockSpending{sums: map[string]decimal.Decimal{}}
	tracker := NewTracker(capsRepo(map[Scope]string{ScopeTotal: "1000"}), spending)
	ctx := context.Background()
	spending.set("", "600")

	if w, _ := tracker.Evaluate(ctx, "user-1", "OTHER", december); len(w) != 1 {
		t.Fatalf("expected warning in december, got %d", len(w))
	}
	if w, _ := tracker.Evaluate(ctx, "user-1", "OTHER", december); len(w) != 0 {
		t.Fatalf("expected suppression in december, got %d", len(w))
	}
	january := Period{Year: 2026, Month: time.January}
	if w, _ := tracker.Evaluate(ctx, "user-1", "OTHER", january); len(w) != 1 {
		t.Fatalf("expected warning in january, got %d", len(w))
	}
}

func TestTracker_DisabledCaps(t *testing.T) {
	tests := []struct {
		name string
		caps map[Scope]string
	}{
		{"no caps", map[Scope]string{}},
		{"zero caps", map[Scope]string{"RENT": "0", ScopeTotal: "0"}},
		{"negative caps", map[Scope]string{"RENT": "-100", ScopeTotal: "-1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spending := &MockSpending{sums: map[string]decimal.Decimal{}}
			spending.set("RENT", "5000")
			spending.set("", "5000")
			tracker := NewTracker(capsRepo(tt.caps), spending)

			warnings, err := tracker.Evaluate(context.Background(), "user-1", "RENT", december)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(warnings) != 0 {
				t.Errorf("expected no warnings, got %+v", warnings)
			}
		})
	}
}

func TestTracker_NegativeSpendingNeverWarns(t *testing.T) {
	spending := &MockSpending{sums: map[string]decimal.Decimal{}}
	spending.set("RENT", "-50")
	spending.set("", "-50")
	tracker := NewTracker(capsRepo(map[Scope]string{"RENT": "100", ScopeTotal: "100"}), spending)

	warnings, err := tracker.Evaluate(context.Background(), "user-1", "RENT", december)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("expected no warnings, got %+v", warnings)
	}
}

func TestTracker_AlertRecordConflictRetries(t *testing.T) {
	spending := &MockSpending{sums: map[string]decimal.Decimal{}}
	spending.set("", "600")
	repo := capsRepo(map[Scope]string{ScopeTotal: "1000"})
	save := repo.SaveAlertRecordFunc
	conflicts := 1
	repo.SaveAlertRecordFunc = func(ctx context.Context, rec *AlertRecord) error {
		if conflicts > 0 {
			conflicts--
			return ErrVersionConflict
		}
		return save(ctx, rec)
	}
	tracker := NewTracker(repo, spending)

	warnings, err := tracker.Evaluate(context.Background(), "user-1", "OTHER", december)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(warnings) != 1 || warnings[0].Level != Level50 {
		t.Errorf("expected one 50%% warning, got %+v", warnings)
	}
}

func TestTracker_ConcurrentWriterAlreadyWarned(t *testing.T) {
	spending := &MockSpending{sums: map[string]decimal.Decimal{}}
	spending.set("", "600")
	repo := capsRepo(map[Scope]string{ScopeTotal: "1000"})
	save := repo.SaveAlertRecordFunc
	raced := false
	repo.SaveAlertRecordFunc = func(ctx context.Context, rec *AlertRecord) error {
		if !raced {
			raced = true
			// Another evaluation records the same threshold first.
			other := &AlertRecord{UserID: rec.UserID, Period: rec.Period, ThresholdsWarned: []Level{Level50}}
			if err := save(ctx, other); err != nil {
				return err
			}
			return ErrVersionConflict
		}
		return save(ctx, rec)
	}
	tracker := NewTracker(repo, spending)

	warnings, err := tracker.Evaluate(context.Background(), "user-1", "OTHER", december)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("expected the losing writer to stay silent, got %+v", warnings)
	}
}

func TestTracker_Status(t *testing.T) {
	spending := &MockSpending{sums: map[string]decimal.Decimal{}}
	spending.set("", "450")
	spending.set("FOOD_OUT", "190")
	tracker := NewTracker(capsRepo(map[Scope]string{ScopeTotal: "1000", "FOOD_OUT": "200", "RENT": "0"}), spending)

	statuses, err := tracker.Status(context.Background(), "user-1", december)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(statuses) != 2 {
		t.Fatalf("expected 2 enabled scopes, got %d", len(statuses))
	}
	if statuses[0].Scope != ScopeTotal || statuses[0].Level != LevelNone || !statuses[0].Percentage.Equal(decimal.NewFromInt(45)) {
		t.Errorf("unexpected total status %+v", statuses[0])
	}
	if statuses[1].Scope != "FOOD_OUT" || statuses[1].Level != Level95 {
		t.Errorf("unexpected FOOD_OUT status %+v", statuses[1])
	}
}

func TestTracker_SetCap(t *testing.T) {
	tracker := NewTracker(&MockRepository{}, &MockSpending{})

	if _, err := tracker.SetCap(context.Background(), SetCapParams{UserID: "user-1", Scope: ScopeTotal, Amount: decimal.NewFromInt(-1)}); !errors.Is(err, ErrInvalidCap) {
		t.Errorf("expected ErrInvalidCap, got %v", err)
	}
	if _, err := tracker.SetCap(context.Background(), SetCapParams{UserID: "user-1", Scope: ScopeTotal, Amount: decimal.RequireFromString("2000.001")}); !errors.Is(err, ErrInvalidCap) {
		t.Errorf("expected ErrInvalidCap for a third decimal place, got %v", err)
	}
	cp, err := tracker.SetCap(context.Background(), SetCapParams{UserID: "user-1", Scope: ScopeTotal, Amount: decimal.NewFromInt(2000)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cp.Enabled() {
		t.Error("expected cap to be enabled")
	}
}

func TestParsePeriod(t *testing.T) {
	p, err := ParsePeriod("2025-02")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Year != 2025 || p.Month != time.February || p.String() != "2025-02" {
		t.Errorf("unexpected period %+v", p)
	}
	if _, err := ParsePeriod("2025-13"); !errors.Is(err, ErrInvalidPeriod) {
		t.Errorf("expected ErrInvalidPeriod, got %v", err)
	}

	var decoded Period
	if err := decoded.UnmarshalText([]byte(p.String())); err != nil || decoded != p {
		t.Errorf("UnmarshalText(%q) = %+v, %v", p.String(), decoded, err)
	}
}
