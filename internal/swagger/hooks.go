package swagger

import (
	"context"
	"net/http"

	"github.com/wudi/docgateway/internal/errors"
)

// RequestContext is what reconfiguration hooks see about the current request.
type RequestContext struct {
	// Request is the inbound HTTP request; nil when the pipeline is driven
	// without one.
	Request  *http.Request
	Endpoint *Endpoint
	Version  string
	Host     string
}

// ReconfigureFunc rewrites the transformed document synchronously.
type ReconfigureFunc func(rc *RequestContext, doc []byte) []byte

// ReconfigureAsyncFunc rewrites the transformed document and may block; it
// must honour ctx cancellation.
type ReconfigureAsyncFunc func(ctx context.Context, rc *RequestContext, doc []byte) ([]byte, error)

// Hooks holds the application-supplied reconfiguration callbacks. At most one
// of the two may be set.
type Hooks struct {
	Reconfigure      ReconfigureFunc
	ReconfigureAsync ReconfigureAsyncFunc
}

// reconfigurer is the compiled form of Hooks: exactly one of none, sync or async.
type reconfigurer interface {
	apply(ctx context.Context, rc *RequestContext, doc []byte) ([]byte, error)
}

type noReconfigure struct{}

func (noReconfigure) apply(_ context.Context, _ *RequestContext, doc []byte) ([]byte, error) {
	return doc, nil
}

type syncReconfigure ReconfigureFunc

func (f syncReconfigure) apply(_ context.Context, rc *RequestContext, doc []byte) ([]byte, error) {
	return f(rc, doc), nil
}

type asyncReconfigure ReconfigureAsyncFunc

func (f asyncReconfigure) apply(ctx context.Context, rc *RequestContext, doc []byte) ([]byte, error) {
	return f(ctx, rc, doc)
}

func (h Hooks) compile() (reconfigurer, error) {
	switch {
	case h.Reconfigure != nil && h.ReconfigureAsync != nil:
		return nil, &errors.ConfigurationError{
			Reason: "both Reconfigure and ReconfigureAsync are set; configure at most one",
		}
	case h.Reconfigure != nil:
		return syncReconfigure(h.Reconfigure), nil
	case h.ReconfigureAsync != nil:
		return asyncReconfigure(h.ReconfigureAsync), nil
	default:
		return noReconfigure{}, nil
	}
}
