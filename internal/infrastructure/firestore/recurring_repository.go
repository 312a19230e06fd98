package firestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	fs "cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/liamhowell4/budget-master-sub001/internal/domain/expense"
	"github.com/liamhowell4/budget-master-sub001/internal/domain/recurring"
)

type templateDoc struct {
	UserID         string    `firestore:"user_id"`
	Name           string    `firestore:"name"`
	Amount         string    `firestore:"amount"`
	Category       string    `firestore:"category"`
	Frequency      string    `firestore:"frequency"`
	DayOfMonth     *int64    `firestore:"day_of_month"`
	DayOfWeek      *int64    `firestore:"day_of_week"`
	MonthOfYear    *int64    `firestore:"month_of_year"`
	LastOfMonth    bool      `firestore:"last_of_month"`
	AnchorDate     string    `firestore:"anchor_date"`
	LastReminded   *string   `firestore:"last_reminded"`
	LastUserAction *string   `firestore:"last_user_action"`
	Active         bool      `firestore:"active"`
	Version        int64     `firestore:"version"`
	CreatedAt      time.Time `firestore:"created_at"`
	UpdatedAt      time.Time `firestore:"updated_at"`
}

func newTemplateDoc(t *recurring.Template) templateDoc {
	doc := templateDoc{
		UserID:         t.UserID,
		Name:           t.Name,
		Amount:         t.Amount.String(),
		Category:       string(t.Category),
		Frequency:      string(t.Frequency),
		LastOfMonth:    t.LastOfMonth,
		AnchorDate:     t.AnchorDate.String(),
		LastReminded:   dateString(t.LastReminded),
		LastUserAction: dateString(t.LastUserAction),
		Active:         t.Active,
		Version:        t.Version,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}
	if t.DayOfMonth != nil {
		v := int64(*t.DayOfMonth)
		doc.DayOfMonth = &v
	}
	if t.DayOfWeek != nil {
		v := int64(*t.DayOfWeek)
		doc.DayOfWeek = &v
	}
	if t.MonthOfYear != nil {
		v := int64(*t.MonthOfYear)
		doc.MonthOfYear = &v
	}
	return doc
}

func (d templateDoc) toTemplate(id string) (*recurring.Template, error) {
	amount, err := parseAmount("amount", d.Amount)
	if err != nil {
		return nil, err
	}
	anchor, err := civil.ParseDate(d.AnchorDate)
	if err != nil {
		return nil, fmt.Errorf("invalid anchor_date %q: %w", d.AnchorDate, err)
	}
	lastReminded, err := parseOptionalDate(d.LastReminded)
	if err != nil {
		return nil, fmt.Errorf("invalid last_reminded: %w", err)
	}
	lastUserAction, err := parseOptionalDate(d.LastUserAction)
	if err != nil {
		return nil, fmt.Errorf("invalid last_user_action: %w", err)
	}

	t := &recurring.Template{
		ID:             id,
		UserID:         d.UserID,
		Name:           d.Name,
		Amount:         amount,
		Category:       expense.Category(d.Category),
		Frequency:      recurring.Frequency(d.Frequency),
		LastOfMonth:    d.LastOfMonth,
		AnchorDate:     anchor,
		LastReminded:   lastReminded,
		LastUserAction: lastUserAction,
		Active:         d.Active,
		Version:        d.Version,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
	if d.DayOfMonth != nil {
		v := int(*d.DayOfMonth)
		t.DayOfMonth = &v
	}
	if d.DayOfWeek != nil {
		v := time.Weekday(*d.DayOfWeek)
		t.DayOfWeek = &v
	}
	if d.MonthOfYear != nil {
		v := time.Month(*d.MonthOfYear)
		t.MonthOfYear = &v
	}
	return t, nil
}

type pendingDoc struct {
	UserID               string    `firestore:"user_id"`
	TemplateID           string    `firestore:"template_id"`
	Name                 string    `firestore:"name"`
	Amount               string    `firestore:"amount"`
	Category             string    `firestore:"category"`
	DueDate              string    `firestore:"due_date"`
	AwaitingConfirmation bool      `firestore:"awaiting_confirmation"`
	CreatedAt            time.Time `firestore:"created_at"`
}

func newPendingDoc(p *recurring.PendingExpense) pendingDoc {
	return pendingDoc{
		UserID:               p.UserID,
		TemplateID:           p.TemplateID,
		Name:                 p.Name,
		Amount:               p.Amount.String(),
		Category:             string(p.Category),
		DueDate:              p.DueDate.String(),
		AwaitingConfirmation: p.AwaitingConfirmation,
		CreatedAt:            p.CreatedAt,
	}
}

func (d pendingDoc) toPending(id string) (*recurring.PendingExpense, error) {
	amount, err := parseAmount("amount", d.Amount)
	if err != nil {
		return nil, err
	}
	due, err := civil.ParseDate(d.DueDate)
	if err != nil {
		return nil, fmt.Errorf("invalid due_date %q: %w", d.DueDate, err)
	}
	return &recurring.PendingExpense{
		ID:                   id,
		UserID:               d.UserID,
		TemplateID:           d.TemplateID,
		Name:                 d.Name,
		Amount:               amount,
		Category:             expense.Category(d.Category),
		DueDate:              due,
		AwaitingConfirmation: d.AwaitingConfirmation,
		CreatedAt:            d.CreatedAt,
	}, nil
}

type RecurringRepository struct {
	client *fs.Client
	now    func() time.Time
}

func (r *RecurringRepository) templates() *fs.CollectionRef {
	return r.client.Collection(colTemplates)
}

func (r *RecurringRepository) pending() *fs.CollectionRef {
	return r.client.Collection(colPending)
}

func (r *RecurringRepository) CreateTemplate(ctx context.Context, params recurring.CreateTemplateParams) (*recurring.Template, error) {
	now := r.now().UTC()
	t := &recurring.Template{
		ID:          uuid.NewString(),
		UserID:      params.UserID,
		Name:        params.Name,
		Amount:      params.Amount,
		Category:    params.Category,
		Frequency:   params.Frequency,
		DayOfMonth:  params.DayOfMonth,
		DayOfWeek:   params.DayOfWeek,
		MonthOfYear: params.MonthOfYear,
		LastOfMonth: params.LastOfMonth,
		AnchorDate:  params.AnchorDate,
		Active:      true,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := r.templates().Doc(t.ID).Create(ctx, newTemplateDoc(t)); err != nil {
		return nil, fmt.Errorf("failed to create template: %w", err)
	}
	return t, nil
}

func (r *RecurringRepository) GetTemplate(ctx context.Context, id string) (*recurring.Template, error) {
	snap, err := r.templates().Doc(id).Get(ctx)
	if isNotFound(err) {
		return nil, recurring.ErrTemplateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get template: %w", err)
	}
	return decodeTemplate(snap)
}

func decodeTemplate(snap *fs.DocumentSnapshot) (*recurring.Template, error) {
	var doc templateDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode template %s: %w", snap.Ref.ID, err)
	}
	return doc.toTemplate(snap.Ref.ID)
}

func (r *RecurringRepository) ListTemplatesByUser(ctx context.Context, userID string) ([]*recurring.Template, error) {
	q := r.templates().Where("user_id", "==", userID).OrderBy("created_at", fs.Asc)
	return r.listTemplates(ctx, q)
}

func (r *RecurringRepository) ListActiveTemplates(ctx context.Context) ([]*recurring.Template, error) {
	q := r.templates().Where("active", "==", true).OrderBy("user_id", fs.Asc)
	return r.listTemplates(ctx, q)
}

func (r *RecurringRepository) listTemplates(ctx context.Context, q fs.Query) ([]*recurring.Template, error) {
	snaps, err := q.Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	templates := make([]*recurring.Template, 0, len(snaps))
	for _, snap := range snaps {
		t, err := decodeTemplate(snap)
		if err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}
	return templates, nil
}

func (r *RecurringRepository) UpdateTemplate(ctx context.Context, t *recurring.Template) error {
	next := *t
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *fs.Transaction) error {
		return r.casTemplate(tx, &next)
	})
	if err != nil {
		return err
	}
	*t = next
	return nil
}

// MaterializePending creates the pending document and advances the template
// in one transaction. Both reads happen before any write.
func (r *RecurringRepository) MaterializePending(ctx context.Context, t *recurring.Template, p *recurring.PendingExpense) error {
	next := *t
	pendingRef := r.pending().Doc(p.ID)
	created := r.now().UTC()

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *fs.Transaction) error {
		_, err := tx.Get(pendingRef)
		if err == nil {
			return recurring.ErrPendingExists
		}
		if !isNotFound(err) {
			return fmt.Errorf("failed to check pending expense: %w", err)
		}

		attempt := next
		if err := r.casTemplate(tx, &attempt); err != nil {
			return err
		}
		doc := newPendingDoc(p)
		doc.CreatedAt = created
		if err := tx.Create(pendingRef, doc); err != nil {
			return err
		}
		next = attempt
		return nil
	})
	if isAlreadyExists(err) {
		return recurring.ErrPendingExists
	}
	if err != nil {
		return err
	}
	p.CreatedAt = created
	*t = next
	return nil
}

// casTemplate reads the stored template and writes t at version+1 when the
// stored version matches.
func (r *RecurringRepository) casTemplate(tx *fs.Transaction, t *recurring.Template) error {
	ref := r.templates().Doc(t.ID)
	snap, err := tx.Get(ref)
	if isNotFound(err) {
		return recurring.ErrTemplateNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to read template: %w", err)
	}

	var stored templateDoc
	if err := snap.DataTo(&stored); err != nil {
		return fmt.Errorf("failed to decode template %s: %w", t.ID, err)
	}
	if stored.Version != t.Version {
		return recurring.ErrVersionConflict
	}

	t.Version++
	t.UpdatedAt = r.now().UTC()
	return tx.Set(ref, newTemplateDoc(t))
}

func (r *RecurringRepository) GetPending(ctx context.Context, id string) (*recurring.PendingExpense, error) {
	snap, err := r.pending().Doc(id).Get(ctx)
	if isNotFound(err) {
		return nil, recurring.ErrPendingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pending expense: %w", err)
	}
	return decodePending(snap)
}

func decodePending(snap *fs.DocumentSnapshot) (*recurring.PendingExpense, error) {
	var doc pendingDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode pending expense %s: %w", snap.Ref.ID, err)
	}
	return doc.toPending(snap.Ref.ID)
}

func (r *RecurringRepository) ListPendingByUser(ctx context.Context, userID string) ([]*recurring.PendingExpense, error) {
	snaps, err := r.pending().Where("user_id", "==", userID).OrderBy("due_date", fs.Asc).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to list pending expenses: %w", err)
	}
	pending := make([]*recurring.PendingExpense, 0, len(snaps))
	for _, snap := range snaps {
		p, err := decodePending(snap)
		if err != nil {
			return nil, err
		}
		pending = append(pending, p)
	}
	return pending, nil
}

func (r *RecurringRepository) UpdatePendingAmount(ctx context.Context, id string, amount decimal.Decimal) (*recurring.PendingExpense, error) {
	ref := r.pending().Doc(id)
	var updated *recurring.PendingExpense
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *fs.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		p, err := decodePending(snap)
		if err != nil {
			return err
		}
		p.Amount = amount
		updated = p
		return tx.Update(ref, []fs.Update{{Path: "amount", Value: amount.String()}})
	})
	if isNotFound(err) {
		return nil, recurring.ErrPendingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update pending amount: %w", err)
	}
	return updated, nil
}

func (r *RecurringRepository) DeletePending(ctx context.Context, id string) error {
	_, err := r.pending().Doc(id).Delete(ctx, fs.Exists)
	if isNotFound(err) {
		return recurring.ErrPendingNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete pending expense: %w", err)
	}
	return nil
}
