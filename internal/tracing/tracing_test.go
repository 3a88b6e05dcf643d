package tracing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/wudi/docgateway/internal/config"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newTestTracer(t *testing.T) (*Tracer, *tracetest.InMemoryExporter) {
	t.Helper()
	exp := tracetest.NewInMemoryExporter()
	tr, err := newWithProcessor(config.TracingConfig{
		Enabled:     true,
		ServiceName: "docgateway-test",
		SampleRate:  1.0,
	}, sdktrace.NewSimpleSpanProcessor(exp))
	if err != nil {
		t.Fatalf("newWithProcessor: %v", err)
	}
	t.Cleanup(func() { tr.Shutdown(context.Background()) })
	return tr, exp
}

func TestTracerMiddleware(t *testing.T) {
	tr, exp := newTestTracer(t)

	var injected string
	handler := tr.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := http.Header{}
		tr.propagator.Inject(r.Context(), propagation.HeaderCarrier(h))
		injected = h.Get("traceparent")
		w.WriteHeader(http.StatusOK)
	}))

	r := httptest.NewRequest("GET", "/swagger/docs/v1/orders", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	// 00-{32hex}-{16hex}-01
	if len(injected) != 55 {
		t.Errorf("expected 55 char traceparent, got %q", injected)
	}
	if w.Header().Get("X-Trace-ID") == "" {
		t.Error("expected X-Trace-ID response header")
	}

	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Name != "GET /swagger/docs/v1/orders" {
		t.Errorf("unexpected span name %q", spans[0].Name)
	}
}

func TestTracerMiddlewarePropagation(t *testing.T) {
	tr, exp := newTestTracer(t)

	const parent = "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"
	handler := tr.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("traceparent", parent)
	handler.ServeHTTP(httptest.NewRecorder(), r)

	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if got := spans[0].SpanContext.TraceID().String(); got != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Errorf("expected trace id to be continued, got %s", got)
	}
}

func TestTracerMiddlewareServerError(t *testing.T) {
	tr, exp := newTestTracer(t)

	handler := tr.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Status.Code != codes.Error {
		t.Errorf("expected error status, got %v", spans[0].Status.Code)
	}
}

func TestTracerDisabled(t *testing.T) {
	tr, err := New(config.TracingConfig{Enabled: false})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tr.IsEnabled() {
		t.Error("expected tracer to be disabled")
	}

	handler := tr.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))

	if w.Header().Get("X-Trace-ID") != "" {
		t.Error("disabled tracer should not set X-Trace-ID")
	}
	if err := tr.Shutdown(context.Background()); err != nil {
		t.Errorf("unexpected shutdown error: %v", err)
	}
}
