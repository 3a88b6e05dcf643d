package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func recordingMiddleware(name string, order *[]string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			*order = append(*order, name+"-before")
			next.ServeHTTP(w, r)
			*order = append(*order, name+"-after")
		})
	}
}

func TestBuilderOrder(t *testing.T) {
	var order []string

	handler := NewBuilder().
		Use(recordingMiddleware("request-id", &order)).
		Use(recordingMiddleware("recovery", &order)).
		HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			order = append(order, "docs")
			w.WriteHeader(http.StatusOK)
		})

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/swagger/docs/v1/orders", nil))

	expected := []string{"request-id-before", "recovery-before", "docs", "recovery-after", "request-id-after"}
	if len(order) != len(expected) {
		t.Fatalf("expected %d calls, got %d: %v", len(expected), len(order), order)
	}
	for i, v := range expected {
		if order[i] != v {
			t.Errorf("at index %d: expected %s, got %s", i, v, order[i])
		}
	}
}

func TestBuilderUseIf(t *testing.T) {
	var order []string

	b := NewBuilder().
		UseIf(true, recordingMiddleware("tracing", &order)).
		UseIf(false, recordingMiddleware("rate-limit", &order))

	if b.Len() != 1 {
		t.Fatalf("expected 1 middleware, got %d", b.Len())
	}

	handler := b.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

	if len(order) != 2 || order[0] != "tracing-before" {
		t.Errorf("expected only tracing to run, got %v", order)
	}
}

func TestBuilderNilHandler(t *testing.T) {
	handler := NewBuilder().Handler(nil)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/missing", nil))

	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rr.Code)
	}
}

func TestBuilderNilHandlerFunc(t *testing.T) {
	handler := NewBuilder().HandlerFunc(nil)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/missing", nil))

	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rr.Code)
	}
}

func TestEmptyBuilder(t *testing.T) {
	handler := NewBuilder().HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))

	if rr.Code != http.StatusTeapot {
		t.Errorf("expected status 418, got %d", rr.Code)
	}
}
