package expense

import (
	"context"
	"errors"
	"time"
)

// Service contains the business logic for ledger writes and reads
type Service struct {
	repo       Repository
	categories *CategorySet
}

// NewService creates a new expense service
func NewService(repo Repository, categories *CategorySet) *Service {
	return &Service{repo: repo, categories: categories}
}

// Categories returns the configured category set.
func (s *Service) Categories() *CategorySet {
	return s.categories
}

// Record writes a manual or refund entry to the ledger.
func (s *Service) Record(ctx context.Context, params CreateParams) (*Expense, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if !s.categories.Contains(params.Category) {
		return nil, errors.Join(ErrInvalidInput, ErrInvalidCategory)
	}
	return s.repo.Create(ctx, params)
}

func (s *Service) Get(ctx context.Context, userID, id string) (*Expense, error) {
	exp, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if exp.UserID != userID {
		return nil, ErrExpenseNotFound
	}
	return exp, nil
}

// ListMonth returns a user's entries dated within the month.
func (s *Service) ListMonth(ctx context.Context, userID string, year int, month time.Month) ([]*Expense, error) {
	if userID == "" {
		return nil, errors.Join(ErrInvalidInput, errors.New("user id is required"))
	}
	if month < time.January || month > time.December {
		return nil, errors.Join(ErrInvalidInput, errors.New("month must be between 1 and 12"))
	}
	return s.repo.ListByMonth(ctx, userID, year, month)
}
