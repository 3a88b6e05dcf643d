package swagger

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/wudi/docgateway/internal/errors"
)

type fakeFetcher struct {
	mu    sync.Mutex
	calls []string
	body  []byte
	err   error
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, url)
	f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f.body, f.err
}

func (f *fakeFetcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type recordingTransformer struct {
	routes []RouteEntry
	host   string
	doc    []byte
}

func (r *recordingTransformer) Transform(_ context.Context, doc []byte, routes []RouteEntry, host string) ([]byte, error) {
	r.routes = routes
	r.host = host
	r.doc = doc
	return append([]byte("transformed:"), doc...), nil
}

type observation struct {
	key, version, outcome string
}

type recordingObserver struct {
	obs []observation
}

func (r *recordingObserver) ObserveDocument(key, version, outcome string, _ time.Duration) {
	r.obs = append(r.obs, observation{key, version, outcome})
}

func newTestPipeline(f Fetcher, tr Transformer, opts ...Option) *Pipeline {
	endpoints := []Endpoint{
		{
			Key:                "orders",
			VersionPlaceholder: "{v}",
			Versions: []DocEntry{
				{Version: "v1", URL: "http://svc/v1/swagger.json"},
				{Version: "v2", URL: "http://svc/v2/swagger.json"},
			},
		},
		{
			Key:          "billing",
			HostOverride: "docs.example.com",
			Versions:     []DocEntry{{Version: "v1", URL: "http://billing/swagger.json"}},
		},
	}
	routes := []RouteEntry{
		{ServiceKey: "orders", UpstreamMethod: "GET", UpstreamPathTemplate: "/api/{v}/orders", DownstreamPathTemplate: "/{v}/orders"},
		{ServiceKey: "orders", UpstreamMethod: "GET", UpstreamPathTemplate: "/api/status", DownstreamPathTemplate: "/status"},
		{ServiceKey: "billing", UpstreamPathTemplate: "/api/billing", DownstreamPathTemplate: "/billing"},
	}
	return NewPipeline(routes, endpoints, f, tr, opts...)
}

func TestPipelineHandle(t *testing.T) {
	f := &fakeFetcher{body: []byte(`{"swagger":"2.0"}`)}
	tr := &recordingTransformer{}
	obs := &recordingObserver{}
	p := newTestPipeline(f, tr, WithObserver(obs))

	body, err := p.Handle(context.Background(), Request{Path: "/v2/orders", Host: "gateway.local"})
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	if string(body) != `transformed:{"swagger":"2.0"}` {
		t.Errorf("unexpected body %s", body)
	}
	if f.count() != 1 || f.calls[0] != "http://svc/v2/swagger.json" {
		t.Errorf("expected one fetch of v2 document, got %v", f.calls)
	}
	if tr.host != "gateway.local" {
		t.Errorf("expected request host, got %s", tr.host)
	}
	if len(tr.routes) != 3 {
		t.Fatalf("expected 1 static + 2 expanded routes, got %+v", tr.routes)
	}
	if tr.routes[1].UpstreamPathTemplate != "/api/v1/orders" || tr.routes[2].UpstreamPathTemplate != "/api/v2/orders" {
		t.Errorf("unexpected expanded routes %+v", tr.routes)
	}
	if len(obs.obs) != 1 || obs.obs[0] != (observation{"orders", "v2", "done"}) {
		t.Errorf("unexpected observations %+v", obs.obs)
	}
}

func TestPipelineHostOverride(t *testing.T) {
	tr := &recordingTransformer{}
	p := newTestPipeline(&fakeFetcher{body: []byte("{}")}, tr)

	if _, err := p.Handle(context.Background(), Request{Path: "/v1/billing", Host: "gateway.local"}); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if tr.host != "docs.example.com" {
		t.Errorf("expected host override, got %s", tr.host)
	}
	if len(tr.routes) != 1 {
		t.Errorf("expected billing route only, got %+v", tr.routes)
	}
}

func TestPipelineFailures(t *testing.T) {
	tests := []struct {
		name        string
		path        string
		fetchErr    error
		wantFetches int
		wantOutcome string
		check       func(t *testing.T, err error)
	}{
		{
			name:        "malformed path",
			path:        "/orders",
			wantOutcome: "resolving",
			check: func(t *testing.T, err error) {
				var target *errors.MalformedPathError
				if !stderrors.As(err, &target) {
					t.Errorf("expected MalformedPathError, got %v", err)
				}
			},
		},
		{
			name:        "unknown key",
			path:        "/v1/payments",
			wantOutcome: "resolving",
			check: func(t *testing.T, err error) {
				var target *errors.UnknownServiceKeyError
				if !stderrors.As(err, &target) {
					t.Errorf("expected UnknownServiceKeyError, got %v", err)
				}
			},
		},
		{
			name:        "unresolved version",
			path:        "/v3/orders",
			wantOutcome: "resolving",
			check: func(t *testing.T, err error) {
				var target *errors.UnresolvedVersionError
				if !stderrors.As(err, &target) {
					t.Fatalf("expected UnresolvedVersionError, got %v", err)
				}
				if target.Key != "orders" || target.Version != "v3" {
					t.Errorf("unexpected error fields %+v", target)
				}
			},
		},
		{
			name:        "fetch failure",
			path:        "/v1/orders",
			fetchErr:    fmt.Errorf("connection refused"),
			wantFetches: 1,
			wantOutcome: "fetching",
			check: func(t *testing.T, err error) {
				var target *errors.FetchError
				if !stderrors.As(err, &target) {
					t.Fatalf("expected FetchError, got %v", err)
				}
				if target.URL != "http://svc/v1/swagger.json" {
					t.Errorf("expected url on error, got %s", target.URL)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeFetcher{body: []byte("{}"), err: tt.fetchErr}
			obs := &recordingObserver{}
			p := newTestPipeline(f, &recordingTransformer{}, WithObserver(obs))

			_, err := p.Handle(context.Background(), Request{Path: tt.path, Host: "h"})
			if err == nil {
				t.Fatal("expected error")
			}
			tt.check(t, err)

			if f.count() != tt.wantFetches {
				t.Errorf("expected %d fetches, got %d", tt.wantFetches, f.count())
			}
			if len(obs.obs) != 1 || obs.obs[0].outcome != tt.wantOutcome {
				t.Errorf("expected outcome %s, got %+v", tt.wantOutcome, obs.obs)
			}
		})
	}
}

func TestPipelineHooksMutuallyExclusive(t *testing.T) {
	f := &fakeFetcher{body: []byte("{}")}
	hooks := Hooks{
		Reconfigure: func(_ *RequestContext, doc []byte) []byte { return doc },
		ReconfigureAsync: func(_ context.Context, _ *RequestContext, doc []byte) ([]byte, error) {
			return doc, nil
		},
	}
	p := newTestPipeline(f, &recordingTransformer{}, WithHooks(hooks))

	_, err := p.Handle(context.Background(), Request{Path: "/v1/orders", Host: "h"})

	var target *errors.ConfigurationError
	if !stderrors.As(err, &target) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
	if f.count() != 0 {
		t.Errorf("expected no fetch, got %d", f.count())
	}
}

func TestPipelineSyncHook(t *testing.T) {
	req := httptest.NewRequest("GET", "/swagger/docs/v1/orders", nil)
	var seen *RequestContext
	hooks := Hooks{
		Reconfigure: func(rc *RequestContext, doc []byte) []byte {
			seen = rc
			return append(doc, []byte("+sync")...)
		},
	}
	p := newTestPipeline(&fakeFetcher{body: []byte("doc")}, &recordingTransformer{}, WithHooks(hooks))

	body, err := p.Handle(context.Background(), Request{Path: "/v1/orders", Host: "h", HTTP: req})
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if string(body) != "transformed:doc+sync" {
		t.Errorf("unexpected body %s", body)
	}
	if seen == nil || seen.Request != req || seen.Version != "v1" || seen.Endpoint.Key != "orders" {
		t.Errorf("unexpected request context %+v", seen)
	}
}

func TestPipelineAsyncHook(t *testing.T) {
	hooks := Hooks{
		ReconfigureAsync: func(ctx context.Context, _ *RequestContext, doc []byte) ([]byte, error) {
			return append(doc, []byte("+async")...), ctx.Err()
		},
	}
	p := newTestPipeline(&fakeFetcher{body: []byte("doc")}, &recordingTransformer{}, WithHooks(hooks))

	body, err := p.Handle(context.Background(), Request{Path: "/v1/orders", Host: "h"})
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if string(body) != "transformed:doc+async" {
		t.Errorf("unexpected body %s", body)
	}
}

func TestPipelineAsyncHookError(t *testing.T) {
	hookErr := fmt.Errorf("hook exploded")
	hooks := Hooks{
		ReconfigureAsync: func(context.Context, *RequestContext, []byte) ([]byte, error) {
			return nil, hookErr
		},
	}
	obs := &recordingObserver{}
	p := newTestPipeline(&fakeFetcher{body: []byte("doc")}, &recordingTransformer{}, WithHooks(hooks), WithObserver(obs))

	_, err := p.Handle(context.Background(), Request{Path: "/v1/orders", Host: "h"})
	if !stderrors.Is(err, hookErr) {
		t.Fatalf("expected hook error, got %v", err)
	}
	if obs.obs[0].outcome != "hooking" {
		t.Errorf("expected hooking outcome, got %s", obs.obs[0].outcome)
	}
}

func TestPipelineCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := newTestPipeline(&fakeFetcher{body: []byte("doc")}, &recordingTransformer{})

	_, err := p.Handle(ctx, Request{Path: "/v1/orders", Host: "h"})
	if !stderrors.Is(err, context.Canceled) {
		t.Errorf("expected cancellation to propagate, got %v", err)
	}
}

func TestPipelineTransformError(t *testing.T) {
	tr := TransformerFunc(func(context.Context, []byte, []RouteEntry, string) ([]byte, error) {
		return nil, fmt.Errorf("not a document")
	})
	p := newTestPipeline(&fakeFetcher{body: []byte("doc")}, tr)

	if _, err := p.Handle(context.Background(), Request{Path: "/v1/orders", Host: "h"}); err == nil {
		t.Error("expected transform error")
	}
}

func TestStageString(t *testing.T) {
	if StageTransforming.String() != "transforming" {
		t.Errorf("unexpected stage name %s", StageTransforming)
	}
	if Stage(99).String() != "unknown" {
		t.Errorf("unexpected stage name %s", Stage(99))
	}
}

func TestPipelineObservesUnresolvedVersionWithoutLabel(t *testing.T) {
	obs := &recordingObserver{}
	p := newTestPipeline(&fakeFetcher{body: []byte("doc")}, &recordingTransformer{}, WithObserver(obs))

	if _, err := p.Handle(context.Background(), Request{Path: "/v9/orders"}); err == nil {
		t.Fatal("expected unresolved version error")
	}
	if len(obs.obs) != 1 || obs.obs[0] != (observation{"orders", "", "resolving"}) {
		t.Errorf("expected unlabelled resolving observation, got %+v", obs.obs)
	}
}
