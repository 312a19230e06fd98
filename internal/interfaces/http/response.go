package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"cloud.google.com/go/civil"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/liamhowell4/budget-master-sub001/internal/domain/budget"
	"github.com/liamhowell4/budget-master-sub001/internal/domain/expense"
	"github.com/liamhowell4/budget-master-sub001/internal/domain/notification"
	"github.com/liamhowell4/budget-master-sub001/internal/domain/recurring"
	"github.com/liamhowell4/budget-master-sub001/internal/shared/middleware"
)

const maxBodySize = 1 << 20 // 1 MiB

// Clock returns the current calendar date in the user-facing timezone.
type Clock func() civil.Date

// ClockIn returns a Clock reading the wall time in loc.
func ClockIn(loc *time.Location) Clock {
	return func() civil.Date {
		return civil.DateOf(time.Now().In(loc))
	}
}

// HandleHealth returns a simple health check response.
func HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

func urlParam(r *http.Request, key string) string {
	return chi.URLParam(r, key)
}

// requireUser reads the authenticated user or writes 401.
func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return "", false
	}
	return userID, true
}

// writeError maps domain errors to status codes. Anything unrecognized is
// logged and reported as 500 with the given message.
func writeError(w http.ResponseWriter, err error, message string) {
	switch {
	case errors.Is(err, recurring.ErrTemplateNotFound),
		errors.Is(err, recurring.ErrPendingNotFound),
		errors.Is(err, expense.ErrExpenseNotFound),
		errors.Is(err, notification.ErrNotificationNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, recurring.ErrForbidden):
		http.Error(w, "Forbidden", http.StatusForbidden)
	case errors.Is(err, recurring.ErrVersionConflict),
		errors.Is(err, budget.ErrVersionConflict),
		errors.Is(err, recurring.ErrPendingExists):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, recurring.ErrInvalidInput),
		errors.Is(err, recurring.ErrInvalidSchedule),
		errors.Is(err, recurring.ErrInvalidFrequency),
		errors.Is(err, expense.ErrInvalidInput),
		errors.Is(err, expense.ErrInvalidCategory),
		errors.Is(err, budget.ErrInvalidCap),
		errors.Is(err, budget.ErrInvalidPeriod),
		errors.Is(err, notification.ErrInvalidCategory),
		errors.Is(err, notification.ErrInvalidDeviceType),
		errors.Is(err, notification.ErrInvalidToken),
		errors.Is(err, notification.ErrInvalidUser):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		log.Printf("Error: %s: %v", message, err)
		http.Error(w, message, http.StatusInternalServerError)
	}
}

// parseAmount accepts a JSON string or number. Amounts never travel as floats.
func parseAmount(raw json.Number) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, errors.New("amount is required")
	}
	return decimal.NewFromString(raw.String())
}

// parsePeriod reads ?month=YYYY-MM, defaulting to the month of today.
func parsePeriod(r *http.Request, today civil.Date) (budget.Period, error) {
	raw := r.URL.Query().Get("month")
	if raw == "" {
		return budget.PeriodOf(today), nil
	}
	return budget.ParsePeriod(raw)
}
