package errors

import "fmt"

// MalformedPathError is returned when a documentation path does not carry
// both a version and a service key segment.
type MalformedPathError struct {
	Path string
}

func (e *MalformedPathError) Error() string {
	return fmt.Sprintf("malformed documentation path %q: expected /{version}/{key}", e.Path)
}

// UnknownServiceKeyError is returned when no registered endpoint answers to
// the requested key.
type UnknownServiceKeyError struct {
	Key string
}

func (e *UnknownServiceKeyError) Error() string {
	return fmt.Sprintf("unknown service key %q", e.Key)
}

// UnresolvedVersionError is returned when the endpoint exists but has no
// document registered for the requested version.
type UnresolvedVersionError struct {
	Key     string
	Version string
}

func (e *UnresolvedVersionError) Error() string {
	return fmt.Sprintf("service %q has no documentation for version %q", e.Key, e.Version)
}

// FetchError is returned when a downstream document could not be retrieved.
// StatusCode is zero for transport-level failures.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ConfigurationError signals an operator or programmer mistake detected while
// serving a request.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Reason
}
