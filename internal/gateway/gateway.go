// Package gateway serves aggregated API documentation over HTTP.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/wudi/docgateway/internal/config"
	"github.com/wudi/docgateway/internal/errors"
	"github.com/wudi/docgateway/internal/fetch"
	"github.com/wudi/docgateway/internal/logging"
	"github.com/wudi/docgateway/internal/metrics"
	"github.com/wudi/docgateway/internal/middleware"
	"github.com/wudi/docgateway/internal/swagger"
	"github.com/wudi/docgateway/internal/swagger/transform"
	"github.com/wudi/docgateway/internal/tracing"
	"go.uber.org/zap"
)

const healthPath = "/healthz"

// Gateway owns the documentation pipeline and its HTTP surface. The
// config-derived state is swapped atomically on reload; requests in flight
// finish against the snapshot they started with.
type Gateway struct {
	state   atomic.Pointer[gatewayState]
	metrics *metrics.Collector
	tracer  *tracing.Tracer
	hooks   swagger.Hooks
	handler http.Handler
	started time.Time
}

// gatewayState holds everything rebuilt from a config.
type gatewayState struct {
	config   *config.Config
	pipeline *swagger.Pipeline
	router   *httprouter.Router
	prefix   string
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithHooks installs document reconfiguration hooks.
func WithHooks(h swagger.Hooks) Option {
	return func(g *Gateway) { g.hooks = h }
}

// New creates a gateway from cfg.
func New(cfg *config.Config, opts ...Option) (*Gateway, error) {
	g := &Gateway{
		metrics: metrics.NewCollector(),
		started: time.Now(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.hooks.Reconfigure != nil && g.hooks.ReconfigureAsync != nil {
		logging.Warn("both reconfigure hooks are set; documentation requests will fail")
	}

	tracer, err := tracing.New(cfg.Tracing)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	g.tracer = tracer

	st, err := g.buildState(cfg)
	if err != nil {
		return nil, err
	}
	g.state.Store(st)

	skip := []string{healthPath}
	if cfg.Metrics.Enabled {
		skip = append(skip, cfg.Metrics.Path)
	}
	g.handler = middleware.NewBuilder().
		Use(middleware.RequestID()).
		Use(middleware.Recovery()).
		UseIf(g.tracer.IsEnabled(), g.tracer.Middleware()).
		Use(middleware.LoggingWithConfig(middleware.LoggingConfig{SkipPaths: skip})).
		HandlerFunc(g.dispatch)

	return g, nil
}

// Handler returns the gateway's HTTP handler.
func (g *Gateway) Handler() http.Handler {
	return g.handler
}

// Metrics returns the gateway's metrics collector.
func (g *Gateway) Metrics() *metrics.Collector {
	return g.metrics
}

// Config returns the config currently being served.
func (g *Gateway) Config() *config.Config {
	return g.state.Load().config
}

// Close releases tracing resources.
func (g *Gateway) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.tracer.Shutdown(ctx)
}

func (g *Gateway) dispatch(w http.ResponseWriter, r *http.Request) {
	g.state.Load().router.ServeHTTP(w, r)
}

// buildState builds the pipeline and router for cfg.
func (g *Gateway) buildState(cfg *config.Config) (*gatewayState, error) {
	prefix := strings.TrimSuffix(cfg.Swagger.PathPrefix, "/")
	if !strings.HasPrefix(prefix, "/") {
		return nil, fmt.Errorf("swagger.path_prefix %q must start with / and not be the root", cfg.Swagger.PathPrefix)
	}
	reserved := []string{healthPath}
	if cfg.Metrics.Enabled {
		reserved = append(reserved, cfg.Metrics.Path)
	}
	for _, p := range reserved {
		if p == prefix || strings.HasPrefix(p, prefix+"/") {
			return nil, fmt.Errorf("path %q collides with swagger.path_prefix %q", p, prefix)
		}
	}

	fetcher := fetch.New(fetchOptions(cfg, g.metrics))
	transformer := transform.New(transform.Options{Scheme: cfg.Transform.Scheme})
	pipeline := swagger.NewPipeline(
		routeEntries(cfg.Routes),
		endpoints(cfg.Swagger.Endpoints),
		fetcher,
		transformer,
		swagger.WithHooks(g.hooks),
		swagger.WithObserver(g.metrics),
	)

	st := &gatewayState{
		config:   cfg,
		pipeline: pipeline,
		prefix:   prefix,
	}
	st.router = g.newRouter(st)
	return st, nil
}

func (g *Gateway) newRouter(st *gatewayState) *httprouter.Router {
	cfg := st.config

	r := httprouter.New()
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false
	r.HandleMethodNotAllowed = true
	r.NotFound = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, errors.ErrNotFound)
	})
	r.MethodNotAllowed = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, errors.ErrMethodNotAllowed)
	})

	var docs http.Handler = documentHandler(st.pipeline)
	if rl := cfg.Server.RateLimit; rl.Enabled {
		docs = middleware.RateLimit(rl.Rate, rl.Burst)(docs)
	}
	r.Handler(http.MethodGet, st.prefix+"/*path", docs)
	r.GET(st.prefix+"-endpoints", endpointsHandler(st))
	r.GET(healthPath, g.handleHealth)
	if cfg.Metrics.Enabled {
		r.Handler(http.MethodGet, cfg.Metrics.Path, g.metrics.Handler())
	}
	return r
}

func documentHandler(p *swagger.Pipeline) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ps := httprouter.ParamsFromContext(r.Context())
		body, err := p.Handle(r.Context(), swagger.Request{
			Path: ps.ByName("path"),
			Host: r.Host,
			HTTP: r,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(body)
	})
}

// endpointInfo is one entry of the documentation index consumed by UIs.
type endpointInfo struct {
	Key     string `json:"key"`
	Name    string `json:"name"`
	Version string `json:"version"`
	URL     string `json:"url"`
}

func endpointsHandler(st *gatewayState) httprouter.Handle {
	eps := st.pipeline.Resolver().Endpoints()
	list := make([]endpointInfo, 0, len(eps))
	for i := range eps {
		ep := &eps[i]
		for _, doc := range ep.Versions {
			name := doc.Name
			if name == "" {
				name = ep.Key
			}
			list = append(list, endpointInfo{
				Key:     ep.Key,
				Name:    name,
				Version: doc.Version,
				URL:     st.prefix + "/" + doc.Version + "/" + ep.Segment(),
			})
		}
	}
	body, _ := json.Marshal(list)

	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(body)
	}
}

func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	st := g.state.Load()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(g.started).String(),
		"endpoints": len(st.config.Swagger.Endpoints),
		"routes":    len(st.config.Routes),
		"tracing":   g.tracer.IsEnabled(),
	})
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	httpErr := errors.FromError(err)
	if id := middleware.GetRequestID(r); id != "" {
		httpErr = httpErr.WithRequestID(id)
	}
	if httpErr.Code >= http.StatusInternalServerError {
		logging.FromContext(r.Context()).Debug("documentation request failed",
			zap.Int("status", httpErr.Code),
			zap.Error(err),
		)
	}
	httpErr.WriteJSON(w)
}

func fetchOptions(cfg *config.Config, m fetch.Metrics) fetch.Options {
	headers := make([]fetch.Header, 0, len(cfg.Swagger.Headers))
	for _, h := range cfg.Swagger.Headers {
		headers = append(headers, fetch.Header{Name: h.Name, Value: h.Value})
	}
	cb := cfg.Transport.CircuitBreaker
	return fetch.Options{
		Timeout:         cfg.Transport.Timeout,
		Headers:         headers,
		MaxRetries:      cfg.Transport.MaxRetries,
		InitialInterval: cfg.Transport.InitialInterval,
		MaxInterval:     cfg.Transport.MaxInterval,
		Coalesce:        cfg.Transport.Coalesce,
		Breaker: fetch.BreakerOptions{
			Enabled:          cb.Enabled,
			FailureThreshold: uint32(cb.FailureThreshold),
			MaxRequests:      uint32(cb.MaxRequests),
			Interval:         cb.Interval,
			Timeout:          cb.Timeout,
		},
		Metrics: m,
	}
}

func routeEntries(routes []config.RouteConfig) []swagger.RouteEntry {
	out := make([]swagger.RouteEntry, 0, len(routes))
	for _, r := range routes {
		out = append(out, swagger.RouteEntry{
			ServiceKey:             r.ServiceKey,
			UpstreamMethod:         r.UpstreamMethod,
			UpstreamPathTemplate:   r.UpstreamPath,
			DownstreamPathTemplate: r.DownstreamPath,
			VirtualDirectory:       r.VirtualDirectory,
		})
	}
	return out
}

func endpoints(eps []config.EndpointConfig) []swagger.Endpoint {
	out := make([]swagger.Endpoint, 0, len(eps))
	for _, ep := range eps {
		versions := make([]swagger.DocEntry, 0, len(ep.Versions))
		for _, v := range ep.Versions {
			versions = append(versions, swagger.DocEntry{
				Version: v.Version,
				URL:     v.URL,
				Name:    v.Name,
			})
		}
		out = append(out, swagger.Endpoint{
			Key:                ep.Key,
			PathSegment:        ep.PathSegment,
			Versions:           versions,
			VersionPlaceholder: ep.VersionPlaceholder,
			HostOverride:       ep.HostOverride,
		})
	}
	return out
}
