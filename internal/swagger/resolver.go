package swagger

import (
	"slices"
	"strings"
	"sync"

	"github.com/wudi/docgateway/internal/errors"
	"github.com/wudi/docgateway/internal/logging"
	"go.uber.org/zap"
)

// Resolution is the outcome of resolving a documentation path.
// URL is empty when the endpoint has no document for Version.
type Resolution struct {
	URL      string
	Version  string
	Key      string
	Endpoint *Endpoint
}

// Resolver maps /{version}/{key} paths onto registered endpoints.
//
// The segment index is built on first use and never rebuilt; the endpoints
// handed to NewResolver must not change afterwards. Endpoints sharing a path
// segment collide and the one registered last wins.
type Resolver struct {
	endpoints []Endpoint

	once  sync.Once
	index map[string]*Endpoint
}

// NewResolver creates a resolver over a private copy of endpoints.
func NewResolver(endpoints []Endpoint) *Resolver {
	owned := make([]Endpoint, len(endpoints))
	copy(owned, endpoints)
	return &Resolver{endpoints: owned}
}

// Endpoints returns the registered endpoints in registration order.
func (r *Resolver) Endpoints() []Endpoint {
	return slices.Clone(r.endpoints)
}

func (r *Resolver) buildIndex() {
	index := make(map[string]*Endpoint, len(r.endpoints))
	for i := range r.endpoints {
		ep := &r.endpoints[i]
		key := "/" + ep.Segment()
		if prev, ok := index[key]; ok {
			logging.Warn("documentation path segment registered twice, last one wins",
				zap.String("segment", key),
				zap.String("replaced", prev.Key),
				zap.String("key", ep.Key),
			)
		}
		index[key] = ep
	}
	r.index = index
}

// Resolve parses path as /{version}/{key} and returns the endpoint and
// document URL it addresses. Segments after the key are ignored.
//
// A registered key with an unknown version is not an error here: the
// returned Resolution has an empty URL and the caller decides.
func (r *Resolver) Resolve(path string) (Resolution, error) {
	segments := strings.Split(path, "/")
	if len(segments) < 3 {
		return Resolution{}, &errors.MalformedPathError{Path: path}
	}
	version, key := segments[1], segments[2]

	r.once.Do(r.buildIndex)

	ep, ok := r.index["/"+key]
	if !ok {
		return Resolution{}, &errors.UnknownServiceKeyError{Key: key}
	}

	res := Resolution{Version: version, Key: key, Endpoint: ep}
	if doc, ok := ep.Version(version); ok {
		res.URL = doc.URL
	}
	return res, nil
}
