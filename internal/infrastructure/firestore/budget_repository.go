package firestore

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	fs "cloud.google.com/go/firestore"

	"github.com/liamhowell4/budget-master-sub001/internal/domain/budget"
)

type capDoc struct {
	UserID    string    `firestore:"user_id"`
	Scope     string    `firestore:"scope"`
	Amount    string    `firestore:"amount"`
	UpdatedAt time.Time `firestore:"updated_at"`
}

func (d capDoc) toCap() (*budget.Cap, error) {
	amount, err := parseAmount("amount", d.Amount)
	if err != nil {
		return nil, err
	}
	return &budget.Cap{
		UserID:    d.UserID,
		Scope:     budget.Scope(d.Scope),
		Amount:    amount,
		UpdatedAt: d.UpdatedAt,
	}, nil
}

type alertDoc struct {
	UserID           string    `firestore:"user_id"`
	Period           string    `firestore:"period"`
	ThresholdsWarned []int64   `firestore:"thresholds_warned"`
	Version          int64     `firestore:"version"`
	UpdatedAt        time.Time `firestore:"updated_at"`
}

func capDocID(userID string, scope budget.Scope) string {
	return userID + "_" + string(scope)
}

func alertDocID(userID string, period budget.Period) string {
	return userID + "_" + period.String()
}

type BudgetRepository struct {
	client *fs.Client
	now    func() time.Time
}

func (r *BudgetRepository) caps() *fs.CollectionRef {
	return r.client.Collection(colCaps)
}

func (r *BudgetRepository) alerts() *fs.CollectionRef {
	return r.client.Collection(colAlerts)
}

func (r *BudgetRepository) GetCap(ctx context.Context, userID string, scope budget.Scope) (*budget.Cap, error) {
	snap, err := r.caps().Doc(capDocID(userID, scope)).Get(ctx)
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get budget cap: %w", err)
	}
	return decodeCap(snap)
}

func decodeCap(snap *fs.DocumentSnapshot) (*budget.Cap, error) {
	var doc capDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode budget cap %s: %w", snap.Ref.ID, err)
	}
	return doc.toCap()
}

// ListCaps returns TOTAL first, then categories alphabetically.
func (r *BudgetRepository) ListCaps(ctx context.Context, userID string) ([]*budget.Cap, error) {
	snaps, err := r.caps().Where("user_id", "==", userID).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to list budget caps: %w", err)
	}
	caps := make([]*budget.Cap, 0, len(snaps))
	for _, snap := range snaps {
		c, err := decodeCap(snap)
		if err != nil {
			return nil, err
		}
		caps = append(caps, c)
	}
	slices.SortFunc(caps, compareCaps)
	return caps, nil
}

func compareCaps(a, b *budget.Cap) int {
	switch {
	case a.Scope.IsTotal() && !b.Scope.IsTotal():
		return -1
	case b.Scope.IsTotal() && !a.Scope.IsTotal():
		return 1
	case a.Scope < b.Scope:
		return -1
	case a.Scope > b.Scope:
		return 1
	}
	return 0
}

func (r *BudgetRepository) UpsertCap(ctx context.Context, params budget.SetCapParams) (*budget.Cap, error) {
	doc := capDoc{
		UserID:    params.UserID,
		Scope:     string(params.Scope),
		Amount:    params.Amount.String(),
		UpdatedAt: r.now().UTC(),
	}
	if _, err := r.caps().Doc(capDocID(params.UserID, params.Scope)).Set(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to upsert budget cap: %w", err)
	}
	return doc.toCap()
}

func (r *BudgetRepository) DeleteCap(ctx context.Context, userID string, scope budget.Scope) error {
	if _, err := r.caps().Doc(capDocID(userID, scope)).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete budget cap: %w", err)
	}
	return nil
}

func (r *BudgetRepository) GetAlertRecord(ctx context.Context, userID string, period budget.Period) (*budget.AlertRecord, error) {
	snap, err := r.alerts().Doc(alertDocID(userID, period)).Get(ctx)
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alert record: %w", err)
	}

	var doc alertDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode alert record %s: %w", snap.Ref.ID, err)
	}
	rec := &budget.AlertRecord{
		UserID:    userID,
		Period:    period,
		Version:   doc.Version,
		UpdatedAt: doc.UpdatedAt,
	}
	for _, l := range doc.ThresholdsWarned {
		rec.ThresholdsWarned = append(rec.ThresholdsWarned, budget.Level(l))
	}
	return rec, nil
}

// SaveAlertRecord compares the stored version inside a transaction; a
// missing document counts as version 0.
func (r *BudgetRepository) SaveAlertRecord(ctx context.Context, rec *budget.AlertRecord) error {
	ref := r.alerts().Doc(alertDocID(rec.UserID, rec.Period))
	doc := alertDoc{
		UserID:    rec.UserID,
		Period:    rec.Period.String(),
		Version:   rec.Version + 1,
		UpdatedAt: rec.UpdatedAt,
	}
	for _, l := range rec.ThresholdsWarned {
		doc.ThresholdsWarned = append(doc.ThresholdsWarned, int64(l))
	}
	slices.Sort(doc.ThresholdsWarned)

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *fs.Transaction) error {
		var stored int64
		snap, err := tx.Get(ref)
		switch {
		case isNotFound(err):
		case err != nil:
			return err
		default:
			v, err := snap.DataAt("version")
			if err != nil {
				return err
			}
			stored, _ = v.(int64)
		}
		if stored != rec.Version {
			return budget.ErrVersionConflict
		}
		return tx.Set(ref, doc)
	})
	if errors.Is(err, budget.ErrVersionConflict) {
		return err
	}
	if err != nil {
		return fmt.Errorf("failed to save alert record: %w", err)
	}
	rec.Version = doc.Version
	return nil
}
