package swagger

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"time"

	"github.com/wudi/docgateway/internal/errors"
	"github.com/wudi/docgateway/internal/logging"
	"go.uber.org/zap"
)

// Stage is the step a documentation request is in.
type Stage int

const (
	StageIdle Stage = iota
	StageResolving
	StageFetching
	StageExpanding
	StageTransforming
	StageHooking
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageResolving:
		return "resolving"
	case StageFetching:
		return "fetching"
	case StageExpanding:
		return "expanding"
	case StageTransforming:
		return "transforming"
	case StageHooking:
		return "hooking"
	case StageDone:
		return "done"
	default:
		return "unknown"
	}
}

// Fetcher retrieves a downstream document. Implementations own transport
// concerns such as headers, retries and timeouts.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Transformer rewrites a downstream document so that its paths and host
// describe the upstream surface implied by routes and host.
type Transformer interface {
	Transform(ctx context.Context, doc []byte, routes []RouteEntry, host string) ([]byte, error)
}

// TransformerFunc adapts a function to Transformer.
type TransformerFunc func(ctx context.Context, doc []byte, routes []RouteEntry, host string) ([]byte, error)

func (f TransformerFunc) Transform(ctx context.Context, doc []byte, routes []RouteEntry, host string) ([]byte, error) {
	return f(ctx, doc, routes, host)
}

// Observer receives one call per handled request. outcome is "done" on
// success, otherwise the name of the stage that failed.
type Observer interface {
	ObserveDocument(key, version, outcome string, d time.Duration)
}

// Request is an inbound documentation request.
type Request struct {
	// Path has the shape /{version}/{key}.
	Path string
	// Host is shown in the rewritten document unless the endpoint overrides it.
	Host string
	HTTP *http.Request
}

// Pipeline serves documentation requests over an immutable snapshot of the
// route table and endpoint registry.
type Pipeline struct {
	resolver    *Resolver
	routes      []RouteEntry
	fetcher     Fetcher
	transformer Transformer
	hooks       Hooks
	observer    Observer
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithHooks installs the application's reconfiguration hooks.
func WithHooks(h Hooks) Option {
	return func(p *Pipeline) { p.hooks = h }
}

// WithObserver reports per-request outcomes to o.
func WithObserver(o Observer) Option {
	return func(p *Pipeline) { p.observer = o }
}

// NewPipeline creates a pipeline. routes and endpoints are copied.
func NewPipeline(routes []RouteEntry, endpoints []Endpoint, fetcher Fetcher, transformer Transformer, opts ...Option) *Pipeline {
	owned := make([]RouteEntry, len(routes))
	copy(owned, routes)

	p := &Pipeline{
		resolver:    NewResolver(endpoints),
		routes:      owned,
		fetcher:     fetcher,
		transformer: transformer,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Resolver exposes the pipeline's resolver.
func (p *Pipeline) Resolver() *Resolver {
	return p.resolver
}

// Handle resolves, fetches, expands, transforms and reconfigures the document
// addressed by req. Steps run strictly in that order and nothing is retried.
func (p *Pipeline) Handle(ctx context.Context, req Request) (body []byte, err error) {
	start := time.Now()
	stage := StageIdle
	var res Resolution

	defer func() {
		outcome := StageDone.String()
		if err != nil {
			outcome = stage.String()
			log := logging.FromContext(ctx)
			fields := []zap.Field{
				zap.String("path", req.Path),
				zap.Stringer("stage", stage),
				zap.Error(err),
			}
			var cfgErr *errors.ConfigurationError
			if stderrors.As(err, &cfgErr) {
				log.Error("documentation pipeline misconfigured", fields...)
			} else {
				log.Warn("documentation request failed", fields...)
			}
		}
		if p.observer != nil {
			// Only registered versions become label values.
			version := ""
			if res.URL != "" {
				version = res.Version
			}
			p.observer.ObserveDocument(res.Key, version, outcome, time.Since(start))
		}
	}()

	hook, err := p.hooks.compile()
	if err != nil {
		return nil, err
	}

	stage = StageResolving
	res, err = p.resolver.Resolve(req.Path)
	if err != nil {
		return nil, err
	}
	if res.URL == "" {
		return nil, &errors.UnresolvedVersionError{Key: res.Endpoint.Key, Version: res.Version}
	}

	stage = StageFetching
	doc, err := p.fetcher.Fetch(ctx, res.URL)
	if err != nil {
		var fe *errors.FetchError
		if !stderrors.As(err, &fe) {
			err = &errors.FetchError{URL: res.URL, Err: err}
		}
		return nil, err
	}

	host := req.Host
	if res.Endpoint.HostOverride != "" {
		host = res.Endpoint.HostOverride
	}

	stage = StageExpanding
	routes := Expand(res.Endpoint, p.routes)
	if len(routes) == 0 {
		logging.FromContext(ctx).Debug("no routes documented for service",
			zap.String("key", res.Endpoint.Key),
		)
	}

	stage = StageTransforming
	doc, err = p.transformer.Transform(ctx, doc, routes, host)
	if err != nil {
		return nil, fmt.Errorf("transform %s: %w", res.URL, err)
	}

	stage = StageHooking
	rc := &RequestContext{
		Request:  req.HTTP,
		Endpoint: res.Endpoint,
		Version:  res.Version,
		Host:     host,
	}
	doc, err = hook.apply(ctx, rc, doc)
	if err != nil {
		return nil, fmt.Errorf("reconfigure hook: %w", err)
	}

	stage = StageDone
	return doc, nil
}
