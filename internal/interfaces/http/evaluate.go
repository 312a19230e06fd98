package http

import (
	"context"
	"net/http"

	"cloud.google.com/go/civil"

	"github.com/liamhowell4/budget-master-sub001/internal/domain/evaluation"
)

// Evaluator runs an evaluation pass over one user's templates.
type Evaluator interface {
	EvaluateUser(ctx context.Context, userID string, today civil.Date) (*evaluation.Result, error)
}

type EvaluateHandler struct {
	evaluator Evaluator
	today     Clock
}

func NewEvaluateHandler(evaluator Evaluator, today Clock) *EvaluateHandler {
	return &EvaluateHandler{evaluator: evaluator, today: today}
}

// HandleEvaluate handles POST /api/admin/evaluate?date=YYYY-MM-DD. It runs
// the same pass the scheduler runs, for the caller's templates only. The pass
// is idempotent, so repeating it for the same date creates nothing new.
func (h *EvaluateHandler) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	today := h.today()
	if raw := r.URL.Query().Get("date"); raw != "" {
		d, err := civil.ParseDate(raw)
		if err != nil {
			http.Error(w, "Invalid date, expected YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		today = d
	}

	result, err := h.evaluator.EvaluateUser(r.Context(), userID, today)
	if err != nil {
		writeError(w, err, "Failed to evaluate recurring expenses")
		return
	}
	writeJSON(w, http.StatusOK, result)
}
