package swagger

import (
	stderrors "errors"
	"sync"
	"testing"

	"github.com/wudi/docgateway/internal/errors"
)

func testEndpoints() []Endpoint {
	return []Endpoint{
		{
			Key: "orders",
			Versions: []DocEntry{
				{Version: "v1", URL: "http://svc/v1/swagger.json"},
				{Version: "v2", URL: "http://svc/v2/swagger.json"},
			},
		},
		{
			Key:      "billing.api",
			Versions: []DocEntry{{Version: "v1", URL: "http://billing/swagger.json"}},
		},
		{
			Key:         "users",
			PathSegment: "people",
			Versions:    []DocEntry{{Version: "v1", URL: "http://users/swagger.json"}},
		},
	}
}

func TestResolve(t *testing.T) {
	r := NewResolver(testEndpoints())

	res, err := r.Resolve("/v2/orders")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if res.URL != "http://svc/v2/swagger.json" {
		t.Errorf("expected v2 url, got %s", res.URL)
	}
	if res.Endpoint == nil || res.Endpoint.Key != "orders" {
		t.Errorf("expected orders endpoint, got %+v", res.Endpoint)
	}
	if res.Version != "v2" {
		t.Errorf("expected version v2, got %s", res.Version)
	}
}

func TestResolvePathSegments(t *testing.T) {
	r := NewResolver(testEndpoints())

	tests := []struct {
		path    string
		wantKey string
	}{
		{"/v1/billing-api", "billing.api"},
		{"/v1/people", "users"},
		{"/v1/orders/extra/segments", "orders"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			res, err := r.Resolve(tt.path)
			if err != nil {
				t.Fatalf("Resolve(%q) failed: %v", tt.path, err)
			}
			if res.Endpoint.Key != tt.wantKey {
				t.Errorf("expected key %s, got %s", tt.wantKey, res.Endpoint.Key)
			}
		})
	}
}

func TestResolveUnknownVersion(t *testing.T) {
	r := NewResolver(testEndpoints())

	res, err := r.Resolve("/v3/orders")
	if err != nil {
		t.Fatalf("expected no error for unknown version, got %v", err)
	}
	if res.URL != "" {
		t.Errorf("expected empty url, got %s", res.URL)
	}
	if res.Endpoint == nil || res.Endpoint.Key != "orders" {
		t.Errorf("expected orders endpoint, got %+v", res.Endpoint)
	}
}

func TestResolveErrors(t *testing.T) {
	r := NewResolver(testEndpoints())

	var malformed *errors.MalformedPathError
	for _, p := range []string{"/orders", "", "orders"} {
		if _, err := r.Resolve(p); !stderrors.As(err, &malformed) {
			t.Errorf("Resolve(%q): expected MalformedPathError, got %v", p, err)
		}
	}

	var unknown *errors.UnknownServiceKeyError
	if _, err := r.Resolve("/v1/payments"); !stderrors.As(err, &unknown) {
		t.Fatalf("expected UnknownServiceKeyError, got %v", err)
	}
	if unknown.Key != "payments" {
		t.Errorf("expected key payments, got %s", unknown.Key)
	}

	// users is only addressable through its override
	if _, err := r.Resolve("/v1/users"); !stderrors.As(err, &unknown) {
		t.Errorf("expected UnknownServiceKeyError for overridden segment, got %v", err)
	}
}

func TestResolveSegmentCollisionLastWins(t *testing.T) {
	r := NewResolver([]Endpoint{
		{Key: "a", PathSegment: "shared", Versions: []DocEntry{{Version: "v1", URL: "http://first"}}},
		{Key: "b", PathSegment: "shared", Versions: []DocEntry{{Version: "v1", URL: "http://second"}}},
	})

	res, err := r.Resolve("/v1/shared")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if res.Endpoint.Key != "b" || res.URL != "http://second" {
		t.Errorf("expected last registration to win, got %+v", res)
	}
}

func TestResolveConcurrentFirstUse(t *testing.T) {
	r := NewResolver(testEndpoints())

	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := r.Resolve("/v1/orders")
			if err != nil {
				errs <- err
				return
			}
			if res.URL != "http://svc/v1/swagger.json" {
				errs <- stderrors.New("unexpected url " + res.URL)
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}

func TestResolverCopiesEndpoints(t *testing.T) {
	eps := testEndpoints()
	r := NewResolver(eps)
	eps[0].Key = "mutated"

	if _, err := r.Resolve("/v1/orders"); err != nil {
		t.Errorf("resolver should not observe caller mutations: %v", err)
	}
}

func TestResolverEndpointsReturnsCopy(t *testing.T) {
	r := NewResolver(testEndpoints())
	eps := r.Endpoints()
	eps[0].Key = "mutated"
	eps[0].Versions = nil

	res, err := r.Resolve("/v1/orders")
	if err != nil {
		t.Fatalf("expected orders to resolve after caller mutation: %v", err)
	}
	if res.Key != "orders" || res.URL == "" {
		t.Errorf("expected resolver state untouched, got %+v", res)
	}
}
