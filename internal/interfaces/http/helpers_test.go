package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/go-chi/chi/v5"

	"github.com/liamhowell4/budget-master-sub001/internal/domain/expense"
	"github.com/liamhowell4/budget-master-sub001/internal/shared/middleware"
)

const testUser = "user-1"

var testCategories = expense.MustCategorySet(expense.DefaultCategories)

func fixedClock(s string) Clock {
	d, err := civil.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return func() civil.Date { return d }
}

// newRequest builds an authenticated request. params are chi URL params as
// key/value pairs.
func newRequest(t *testing.T, method, target string, body any, params ...string) *http.Request {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		buf, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(buf)
	}

	req := httptest.NewRequest(method, target, reader)
	rctx := chi.NewRouteContext()
	for i := 0; i+1 < len(params); i += 2 {
		rctx.URLParams.Add(params[i], params[i+1])
	}
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	ctx = middleware.WithUserID(ctx, testUser)
	return req.WithContext(ctx)
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rr.Body.String())
	}
}
