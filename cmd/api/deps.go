package main

import (
	"context"
	"log"
	"net/http"

	"github.com/liamhowell4/budget-master-sub001/internal/app"
	"github.com/liamhowell4/budget-master-sub001/internal/infrastructure/firebase"
	httphandlers "github.com/liamhowell4/budget-master-sub001/internal/interfaces/http"
	"github.com/liamhowell4/budget-master-sub001/internal/shared/config"
	"github.com/liamhowell4/budget-master-sub001/internal/shared/middleware"
)

// Dependencies holds all initialized application components.
type Dependencies struct {
	*app.App

	// Handlers
	ExpenseHandler      *httphandlers.ExpenseHandler
	RecurringHandler    *httphandlers.RecurringHandler
	BudgetHandler       *httphandlers.BudgetHandler
	EvaluateHandler     *httphandlers.EvaluateHandler
	NotificationHandler *httphandlers.NotificationHandler

	// AuthMiddleware guards every /api route.
	AuthMiddleware func(http.Handler) http.Handler
}

// NewDependencies initializes all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config) (*Dependencies, error) {
	a, err := app.New(ctx, cfg, app.Options{LedgerListener: true})
	if err != nil {
		return nil, err
	}
	deps := &Dependencies{App: a}

	if cfg.Auth.Disabled {
		log.Printf("WARNING: authentication disabled, all requests act as %s", cfg.Auth.DevUserID)
		deps.AuthMiddleware = middleware.DevAuth(cfg.Auth.DevUserID)
	} else {
		verifier, err := firebase.NewAuthVerifier(ctx, a.Firebase)
		if err != nil {
			a.Close()
			return nil, err
		}
		deps.AuthMiddleware = middleware.Auth(verifier)
	}

	today := httphandlers.ClockIn(cfg.Budget.Location)
	deps.ExpenseHandler = httphandlers.NewExpenseHandler(a.Evaluation, a.Expenses, a.Categories, today)
	deps.RecurringHandler = httphandlers.NewRecurringHandler(a.Recurring, a.Evaluation, a.Categories, today)
	deps.BudgetHandler = httphandlers.NewBudgetHandler(a.Tracker, a.Categories, today)
	deps.EvaluateHandler = httphandlers.NewEvaluateHandler(a.Evaluation, today)
	deps.NotificationHandler = httphandlers.NewNotificationHandler(a.Notifications)

	return deps, nil
}
