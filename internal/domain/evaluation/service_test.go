package evaluation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/liamhowell4/budget-master-sub001/internal/domain/budget"
	"github.com/liamhowell4/budget-master-sub001/internal/domain/expense"
	"github.com/liamhowell4/budget-master-sub001/internal/domain/recurring"
	"github.com/liamhowell4/budget-master-sub001/internal/infrastructure/memory"
)

type fixture struct {
	store     *memory.Store
	recurring *recurring.Service
	expenses  *expense.Service
	tracker   *budget.Tracker
	svc       *Service
	notifier  *recordingNotifier
	events    *recordingPublisher
}

func newFixture() *fixture {
	store := memory.NewStore()
	rec := recurring.NewService(store.Recurring, store.Expenses)
	exp := expense.NewService(store.Expenses, expense.MustCategorySet(expense.DefaultCategories))
	tracker := budget.NewTracker(store.Budget, store.Expenses)
	svc := NewService(rec, exp, tracker)

	f := &fixture{
		store:     store,
		recurring: rec,
		expenses:  exp,
		tracker:   tracker,
		svc:       svc,
		notifier:  &recordingNotifier{},
		events:    &recordingPublisher{},
	}
	svc.SetNotifier(f.notifier)
	svc.SetEventPublisher(f.events)
	return f
}

type recordingNotifier struct {
	mu       sync.Mutex
	pending  []*recurring.PendingExpense
	warnings []budget.Warning
}

func (n *recordingNotifier) NotifyPending(ctx context.Context, p *recurring.PendingExpense) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.pending = append(n.pending, p)
	return nil
}

func (n *recordingNotifier) NotifyWarnings(ctx context.Context, userID string, warnings []budget.Warning) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.warnings = append(n.warnings, warnings...)
	return errors.New("push service unavailable")
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (p *recordingPublisher) Publish(ctx context.Context, events ...Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

func (p *recordingPublisher) count(eventType string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

func date(s string) civil.Date {
	d, err := civil.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (f *fixture) createRent(t *testing.T) *recurring.Template {
	t.Helper()
	dom := 1
	tmpl, err := f.recurring.CreateTemplate(context.Background(), recurring.CreateTemplateParams{
		UserID:     "user-1",
		Name:       "Rent",
		Amount:     decimal.NewFromInt(1400),
		Category:   "RENT",
		Frequency:  recurring.FrequencyMonthly,
		DayOfMonth: &dom,
	})
	if err != nil {
		t.Fatalf("CreateTemplate: %v", err)
	}
	return tmpl
}

func (f *fixture) setCap(t *testing.T, scope budget.Scope, amount int64) {
	t.Helper()
	if _, err := f.tracker.SetCap(context.Background(), budget.SetCapParams{UserID: "user-1", Scope: scope, Amount: decimal.NewFromInt(amount)}); err != nil {
		t.Fatalf("SetCap: %v", err)
	}
}

func (f *fixture) record(t *testing.T, amount string, category expense.Category, on string) []budget.Warning {
	t.Helper()
	_, warnings, err := f.svc.RecordExpense(context.Background(), expense.CreateParams{
		UserID:   "user-1",
		Name:     "entry",
		Amount:   decimal.RequireFromString(amount),
		Category: category,
		Date:     date(on),
	})
	if err != nil {
		t.Fatalf("RecordExpense: %v", err)
	}
	return warnings
}

func TestEndToEnd_RentConfirmedOnce(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	tmpl := f.createRent(t)
	today := date("2025-12-15")

	result, err := f.svc.EvaluateAll(ctx, today)
	if err != nil {
		t.Fatalf("EvaluateAll: %v", err)
	}
	if len(result.Created) != 1 || result.Outcomes[recurring.OutcomeCreated] != 1 {
		t.Fatalf("expected one created instance, got %+v", result)
	}
	pending := result.Created[0]
	if pending.DueDate.String() != "2025-12-01" {
		t.Errorf("expected due 2025-12-01, got %s", pending.DueDate)
	}
	if len(f.notifier.pending) != 1 {
		t.Errorf("expected one pending notification, got %d", len(f.notifier.pending))
	}
	if f.events.count(EventPendingCreated) != 1 {
		t.Errorf("expected one pending.created event, got %d", f.events.count(EventPendingCreated))
	}

	confirmed, _, err := f.svc.ConfirmPending(ctx, "user-1", pending.ID, nil, today)
	if err != nil {
		t.Fatalf("ConfirmPending: %v", err)
	}
	if confirmed.Resolution != recurring.ResolutionConfirmed {
		t.Fatalf("expected confirmed, got %s", confirmed.Resolution)
	}
	if !confirmed.Expense.Amount.Equal(decimal.NewFromInt(1400)) || confirmed.Expense.Category != "RENT" {
		t.Errorf("unexpected ledger entry %+v", confirmed.Expense)
	}

	stored, _ := f.store.Recurring.GetTemplate(ctx, tmpl.ID)
	if stored.LastUserAction == nil || stored.LastUserAction.String() != "2025-12-15" {
		t.Errorf("expected last_user_action 2025-12-15, got %v", stored.LastUserAction)
	}

	retry, warnings, err := f.svc.ConfirmPending(ctx, "user-1", pending.ID, nil, today)
	if err != nil {
		t.Fatalf("retried ConfirmPending: %v", err)
	}
	if retry.Resolution != recurring.ResolutionAlreadyHandled || len(warnings) != 0 {
		t.Errorf("expected already_handled without warnings, got %s %v", retry.Resolution, warnings)
	}
	if f.store.Expenses.Len() != 1 {
		t.Errorf("expected exactly one ledger entry, got %d", f.store.Expenses.Len())
	}

	second, err := f.svc.EvaluateAll(ctx, today)
	if err != nil {
		t.Fatalf("EvaluateAll: %v", err)
	}
	if len(second.Created) != 0 || second.Outcomes[recurring.OutcomeAlreadyHandled] != 1 {
		t.Errorf("expected already_handled on the next pass, got %+v", second.Outcomes)
	}
}

func TestEvaluateAll_Idempotent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.createRent(t)
	today := date("2025-12-15")

	for i := 0; i < 3; i++ {
		result, err := f.svc.EvaluateAll(ctx, today)
		if err != nil {
			t.Fatalf("pass %d: %v", i, err)
		}
		wantCreated := 0
		if i == 0 {
			wantCreated = 1
		}
		if len(result.Created) != wantCreated {
			t.Errorf("pass %d: expected %d created, got %d", i, wantCreated, len(result.Created))
		}
		if i > 0 && result.Outcomes[recurring.OutcomeAlreadyPending] != 1 {
			t.Errorf("pass %d: expected already_pending, got %+v", i, result.Outcomes)
		}
	}

	pending, _ := f.recurring.ListPending(ctx, "user-1")
	if len(pending) != 1 {
		t.Errorf("expected one pending instance, got %d", len(pending))
	}
}

func TestEvaluateAll_TwoMonthsStale(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	tmpl := f.createRent(t)

	stale := *tmpl
	lastReminded := date("2025-10-01")
	stale.LastReminded = &lastReminded
	if err := f.store.Recurring.UpdateTemplate(ctx, &stale); err != nil {
		t.Fatalf("UpdateTemplate: %v", err)
	}

	result, err := f.svc.EvaluateAll(ctx, date("2025-12-15"))
	if err != nil {
		t.Fatalf("EvaluateAll: %v", err)
	}
	if len(result.Created) != 1 || result.Created[0].DueDate.String() != "2025-12-01" {
		t.Fatalf("expected one instance for 2025-12-01, got %+v", result.Created)
	}
	pending, _ := f.recurring.ListPending(ctx, "user-1")
	if len(pending) != 1 {
		t.Errorf("expected exactly one pending instance, got %d", len(pending))
	}
}

func TestEvaluateAll_SkipsInactiveAndIsolatesUsers(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	rent := f.createRent(t)
	if _, err := f.recurring.Deactivate(ctx, "user-1", rent.ID); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}

	monday := time.Monday
	if _, err := f.recurring.CreateTemplate(ctx, recurring.CreateTemplateParams{
		UserID:    "user-2",
		Name:      "Cleaner",
		Amount:    decimal.NewFromInt(80),
		Category:  "OTHER",
		Frequency: recurring.FrequencyWeekly,
		DayOfWeek: &monday,
	}); err != nil {
		t.Fatalf("CreateTemplate: %v", err)
	}

	result, err := f.svc.EvaluateAll(ctx, date("2025-12-18"))
	if err != nil {
		t.Fatalf("EvaluateAll: %v", err)
	}
	if result.Evaluated != 1 || len(result.Created) != 1 {
		t.Fatalf("expected only the active template to be evaluated, got %+v", result)
	}
	if result.Created[0].UserID != "user-2" || result.Created[0].DueDate.String() != "2025-12-15" {
		t.Errorf("unexpected pending %+v", result.Created[0])
	}

	userOne, err := f.svc.EvaluateUser(ctx, "user-1", date("2025-12-18"))
	if err != nil {
		t.Fatalf("EvaluateUser: %v", err)
	}
	if userOne.Evaluated != 0 {
		t.Errorf("expected no active templates for user-1, got %d", userOne.Evaluated)
	}
}

func TestRecordExpense_CategoryAlwaysWarns(t *testing.T) {
	f := newFixture()
	f.setCap(t, "FOOD_OUT", 200)

	first := f.record(t, "184", "FOOD_OUT", "2025-12-03")
	if len(first) != 1 || first[0].Level != budget.Level90 {
		t.Fatalf("expected 90%% warning, got %+v", first)
	}
	second := f.record(t, "10", "FOOD_OUT", "2025-12-04")
	if len(second) != 1 || second[0].Level != budget.Level95 {
		t.Fatalf("expected 95%% warning, got %+v", second)
	}
	third := f.record(t, "1", "FOOD_OUT", "2025-12-05")
	if len(third) != 1 || third[0].Level != budget.Level95 {
		t.Fatalf("expected repeated 95%% warning, got %+v", third)
	}
	if len(f.notifier.warnings) != 3 {
		t.Errorf("expected 3 warnings pushed, got %d", len(f.notifier.warnings))
	}
}

func TestRecordExpense_AggregateOncePolicy(t *testing.T) {
	f := newFixture()
	f.setCap(t, budget.ScopeTotal, 1000)

	total := func(ws []budget.Warning) []budget.Level {
		var levels []budget.Level
		for _, w := range ws {
			if w.Scope.IsTotal() {
				levels = append(levels, w.Level)
			}
		}
		return levels
	}

	steps := []struct {
		name     string
		amount   string
		category expense.Category
		want     []budget.Level
	}{
		{"crosses 50", "550", "GROCERIES", []budget.Level{budget.Level50}},
		{"stays under 90", "200", "GROCERIES", nil},
		{"crosses 90", "170", "TECH", []budget.Level{budget.Level90}},
		{"refund drops under 90", "-100", "TECH", nil},
		{"re-crosses 90", "120", "TECH", nil},
		{"crosses 100", "80", "OTHER", []budget.Level{budget.Level100}},
		{"still over cap", "5", "COFFEE", []budget.Level{budget.Level100}},
		{"still over cap again", "5", "COFFEE", []budget.Level{budget.Level100}},
	}
	for _, step := range steps {
		got := total(f.record(t, step.amount, step.category, "2025-12-10"))
		if len(got) != len(step.want) || (len(got) == 1 && got[0] != step.want[0]) {
			t.Errorf("%s: expected %v, got %v", step.name, step.want, got)
		}
	}

	if n := f.events.count(EventExpenseWritten); n != len(steps) {
		t.Errorf("expected %d expense events, got %d", len(steps), n)
	}
	if n := f.events.count(EventBudgetWarning); n != 5 {
		t.Errorf("expected 5 warning events, got %d", n)
	}
}

func TestRecordExpense_PeriodFollowsExpenseDate(t *testing.T) {
	f := newFixture()
	f.setCap(t, budget.ScopeTotal, 1000)

	if w := f.record(t, "600", "RENT", "2025-11-30"); len(w) != 1 || w[0].Period.String() != "2025-11" {
		t.Fatalf("expected november warning, got %+v", w)
	}
	if w := f.record(t, "100", "RENT", "2025-12-01"); len(w) != 0 {
		t.Fatalf("expected no warning for december at 10%%, got %+v", w)
	}
	if w := f.record(t, "450", "RENT", "2025-12-02"); len(w) != 1 || w[0].Period.String() != "2025-12" {
		t.Fatalf("expected fresh december 50%% warning, got %+v", w)
	}
}

func TestRecordExpense_InvalidInput(t *testing.T) {
	f := newFixture()

	_, _, err := f.svc.RecordExpense(context.Background(), expense.CreateParams{
		UserID:   "user-1",
		Name:     "Unknown",
		Amount:   decimal.NewFromInt(5),
		Category: "PETS",
		Date:     date("2025-12-01"),
	})
	if !errors.Is(err, expense.ErrInvalidCategory) {
		t.Fatalf("expected ErrInvalidCategory, got %v", err)
	}
	if f.store.Expenses.Len() != 0 {
		t.Error("expected nothing written")
	}
}

func TestConfirmPending_FeedsTracker(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.createRent(t)
	f.setCap(t, "RENT", 1400)
	f.setCap(t, budget.ScopeTotal, 2000)
	today := date("2025-12-15")

	result, _ := f.svc.EvaluateAll(ctx, today)
	_, warnings, err := f.svc.ConfirmPending(ctx, "user-1", result.Created[0].ID, nil, today)
	if err != nil {
		t.Fatalf("ConfirmPending: %v", err)
	}
	if len(warnings) != 2 {
		t.Fatalf("expected category and total warnings, got %+v", warnings)
	}
	if warnings[0].Scope != "RENT" || warnings[0].Level != budget.Level100 {
		t.Errorf("unexpected category warning %+v", warnings[0])
	}
	if !warnings[1].Scope.IsTotal() || warnings[1].Level != budget.Level50 {
		t.Errorf("unexpected total warning %+v", warnings[1])
	}
}

func TestConfirmPending_ReplayAfterLedgerWriteStillEvaluates(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.createRent(t)
	f.setCap(t, "RENT", 1400)
	f.setCap(t, budget.ScopeTotal, 2000)
	today := date("2025-12-15")

	result, _ := f.svc.EvaluateAll(ctx, today)
	pending := result.Created[0]

	// An earlier attempt stored the ledger entry and stopped before the tracker ran.
	templateID, pendingID := pending.TemplateID, pending.ID
	if _, _, err := f.store.Expenses.CreateIdempotent(ctx, expense.CreateParams{
		UserID:     pending.UserID,
		Name:       pending.Name,
		Amount:     pending.Amount,
		Category:   pending.Category,
		Date:       pending.DueDate,
		TemplateID: &templateID,
		PendingID:  &pendingID,
	}); err != nil {
		t.Fatalf("CreateIdempotent: %v", err)
	}

	res, warnings, err := f.svc.ConfirmPending(ctx, "user-1", pending.ID, nil, today)
	if err != nil {
		t.Fatalf("ConfirmPending: %v", err)
	}
	if res.Resolution != recurring.ResolutionConfirmed || res.Created {
		t.Fatalf("expected a confirmed replay, got %+v", res)
	}
	if len(warnings) != 2 || !warnings[1].Scope.IsTotal() || warnings[1].Level != budget.Level50 {
		t.Fatalf("expected category and total warnings on replay, got %+v", warnings)
	}

	again := f.svc.EvaluateLedgerEntry(ctx, res.Expense)
	if len(again) != 1 || again[0].Scope != "RENT" {
		t.Errorf("expected only the category warning after TOTAL 50 was sent, got %+v", again)
	}
}

func TestConfirmPending_UnknownID(t *testing.T) {
	f := newFixture()

	res, warnings, err := f.svc.ConfirmPending(context.Background(), "user-1", "nope", nil, date("2025-12-15"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Resolution != recurring.ResolutionNotFound || warnings != nil {
		t.Errorf("expected not_found without warnings, got %s %v", res.Resolution, warnings)
	}
}

func TestResult_HasRetryableErrors(t *testing.T) {
	r := &Result{Errors: []TemplateError{{Retryable: false}}}
	if r.HasRetryableErrors() {
		t.Error("expected no retryable errors")
	}
	r.Errors = append(r.Errors, TemplateError{Retryable: true})
	if !r.HasRetryableErrors() {
		t.Error("expected retryable errors")
	}
}
