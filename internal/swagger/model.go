package swagger

import "strings"

// RouteEntry is one gateway route as far as documentation is concerned.
// Templates are opaque; only placeholder substitution touches them.
type RouteEntry struct {
	ServiceKey             string
	UpstreamMethod         string
	UpstreamPathTemplate   string
	DownstreamPathTemplate string
	VirtualDirectory       string
}

// DocEntry is one version of a service's documentation source.
type DocEntry struct {
	Version string
	URL     string
	Name    string
}

// Endpoint is a documentation registration keyed by service key.
type Endpoint struct {
	Key                string
	PathSegment        string
	Versions           []DocEntry
	VersionPlaceholder string
	HostOverride       string
}

// Segment returns the path component clients use to address the endpoint.
func (e *Endpoint) Segment() string {
	if e.PathSegment != "" {
		return e.PathSegment
	}
	return KeyToPath(e.Key)
}

// Version returns the document registered for version, if any.
func (e *Endpoint) Version(version string) (DocEntry, bool) {
	for _, d := range e.Versions {
		if d.Version == version {
			return d, true
		}
	}
	return DocEntry{}, false
}

// KeyToPath derives the default path segment for a service key.
func KeyToPath(key string) string {
	return strings.ReplaceAll(key, ".", "-")
}
