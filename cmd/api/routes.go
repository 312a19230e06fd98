package main

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	httphandlers "github.com/liamhowell4/budget-master-sub001/internal/interfaces/http"
	"github.com/liamhowell4/budget-master-sub001/internal/shared/config"
	"github.com/liamhowell4/budget-master-sub001/internal/shared/middleware"
)

// SetupRoutes configures all HTTP routes and returns the final handler with middleware.
func SetupRoutes(deps *Dependencies, cfg *config.Config) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Logging)
	if cfg.Telemetry.Enabled {
		r.Use(middleware.Telemetry(cfg.Telemetry.ServiceName))
		r.Use(middleware.Tracing)
	}
	r.Use(middleware.CORS(cfg.Server.AllowedHosts))

	// Apply security middleware when TLS is enabled
	if cfg.TLS.Enabled {
		r.Use(middleware.HSTS)
		log.Println("TLS security middleware enabled (HSTS)")
	}

	// Health check
	r.Get("/health", httphandlers.HandleHealth)

	// Protected routes
	r.Route("/api", func(r chi.Router) {
		r.Use(deps.AuthMiddleware)

		r.Route("/expenses", func(r chi.Router) {
			r.Get("/", deps.ExpenseHandler.HandleList)
			r.Post("/", deps.ExpenseHandler.HandleRecord)
			r.Get("/{id}", deps.ExpenseHandler.HandleGet)
		})

		r.Route("/recurring", func(r chi.Router) {
			r.Get("/", deps.RecurringHandler.HandleListTemplates)
			r.Post("/", deps.RecurringHandler.HandleCreateTemplate)
			r.Get("/{id}", deps.RecurringHandler.HandleGetTemplate)
			r.Delete("/{id}", deps.RecurringHandler.HandleDeactivateTemplate)
		})

		r.Route("/pending", func(r chi.Router) {
			r.Get("/", deps.RecurringHandler.HandleListPending)
			r.Patch("/{id}", deps.RecurringHandler.HandleAdjustPending)
			r.Post("/{id}/confirm", deps.RecurringHandler.HandleConfirmPending)
			r.Post("/{id}/skip", deps.RecurringHandler.HandleSkipPending)
		})

		r.Route("/budget", func(r chi.Router) {
			r.Get("/caps", deps.BudgetHandler.HandleListCaps)
			r.Put("/caps", deps.BudgetHandler.HandleSetCap)
			r.Delete("/caps/{scope}", deps.BudgetHandler.HandleDeleteCap)
			r.Get("/status", deps.BudgetHandler.HandleStatus)
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", deps.NotificationHandler.HandleNotifications)
			r.Post("/register-device", deps.NotificationHandler.HandleRegisterDevice)
			r.Get("/preferences", deps.NotificationHandler.HandleGetPreferences)
			r.Put("/preferences", deps.NotificationHandler.HandleUpdatePreferences)
			r.Post("/open", deps.NotificationHandler.HandleOpen)
			r.Put("/{id}", deps.NotificationHandler.HandleMarkOpened)
		})

		r.Post("/admin/evaluate", deps.EvaluateHandler.HandleEvaluate)
	})

	return r
}
