package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
)

// StatusClientClosedRequest is reported when the caller went away before the
// document could be produced.
const StatusClientClosedRequest = 499

// HTTPError is the JSON envelope written back to documentation clients.
type HTTPError struct {
	Code       int    `json:"code"`
	Message    string `json:"message"`
	Details    string `json:"details,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
	underlying error
}

func (e *HTTPError) Error() string {
	if e.underlying != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.underlying)
	}
	return e.Message
}

func (e *HTTPError) Unwrap() error {
	return e.underlying
}

// WriteJSON writes the error as JSON to the response.
func (e *HTTPError) WriteJSON(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.Code)
	if pre, ok := preSerialized[e]; ok {
		w.Write(pre)
		return
	}
	json.NewEncoder(w).Encode(e)
}

// Common errors
var (
	ErrNotFound = &HTTPError{
		Code:    http.StatusNotFound,
		Message: "Not Found",
	}

	ErrMethodNotAllowed = &HTTPError{
		Code:    http.StatusMethodNotAllowed,
		Message: "Method Not Allowed",
	}

	ErrTooManyRequests = &HTTPError{
		Code:    http.StatusTooManyRequests,
		Message: "Too Many Requests",
	}

	ErrGatewayTimeout = &HTTPError{
		Code:    http.StatusGatewayTimeout,
		Message: "Gateway Timeout",
	}

	ErrBadRequest = &HTTPError{
		Code:    http.StatusBadRequest,
		Message: "Bad Request",
	}

	ErrInternalServer = &HTTPError{
		Code:    http.StatusInternalServerError,
		Message: "Internal Server Error",
	}

	ErrClientClosed = &HTTPError{
		Code:    StatusClientClosedRequest,
		Message: "Client Closed Request",
	}
)

// preSerialized holds JSON-encoded bytes for base error singletons.
var preSerialized map[*HTTPError][]byte

func init() {
	bases := []*HTTPError{
		ErrNotFound, ErrMethodNotAllowed, ErrTooManyRequests,
		ErrGatewayTimeout, ErrBadRequest, ErrInternalServer, ErrClientClosed,
	}
	preSerialized = make(map[*HTTPError][]byte, len(bases))
	for _, e := range bases {
		b, _ := json.Marshal(e)
		b = append(b, '\n') // match json.Encoder behavior
		preSerialized[e] = b
	}
}

// New creates a new HTTPError
func New(code int, message string) *HTTPError {
	return &HTTPError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, code int, message string) *HTTPError {
	return &HTTPError{
		Code:       code,
		Message:    message,
		underlying: err,
	}
}

// WithDetails adds details to the error
func (e *HTTPError) WithDetails(details string) *HTTPError {
	return &HTTPError{
		Code:       e.Code,
		Message:    e.Message,
		Details:    details,
		RequestID:  e.RequestID,
		underlying: e.underlying,
	}
}

// WithRequestID adds a request ID to the error
func (e *HTTPError) WithRequestID(requestID string) *HTTPError {
	return &HTTPError{
		Code:       e.Code,
		Message:    e.Message,
		Details:    e.Details,
		RequestID:  requestID,
		underlying: e.underlying,
	}
}

// FromError maps any error produced while serving a document onto the
// envelope sent to the client. Unknown errors become a 500.
func FromError(err error) *HTTPError {
	if err == nil {
		return nil
	}

	var he *HTTPError
	if stderrors.As(err, &he) {
		return he
	}

	var (
		malformed  *MalformedPathError
		unknown    *UnknownServiceKeyError
		unresolved *UnresolvedVersionError
		fetch      *FetchError
		cfgErr     *ConfigurationError
	)
	switch {
	case stderrors.As(err, &malformed):
		return Wrap(err, http.StatusBadRequest, "Bad Request").WithDetails(malformed.Error())
	case stderrors.As(err, &unknown):
		return Wrap(err, http.StatusNotFound, "Not Found").WithDetails(unknown.Error())
	case stderrors.As(err, &unresolved):
		return Wrap(err, http.StatusNotFound, "Not Found").WithDetails(unresolved.Error())
	case stderrors.As(err, &cfgErr):
		return Wrap(err, http.StatusInternalServerError, "Internal Server Error").WithDetails(cfgErr.Error())
	case stderrors.Is(err, context.Canceled):
		return ErrClientClosed
	case stderrors.Is(err, context.DeadlineExceeded):
		return ErrGatewayTimeout
	case stderrors.As(err, &fetch):
		return Wrap(err, http.StatusBadGateway, "Bad Gateway").WithDetails(fetch.Error())
	}
	return Wrap(err, http.StatusInternalServerError, "Internal Server Error")
}
