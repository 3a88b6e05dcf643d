package middleware

import "net/http"

// Middleware wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

// Builder collects middlewares in the order requests pass through them.
type Builder struct {
	middlewares []Middleware
}

// NewBuilder creates an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Use appends m to the chain.
func (b *Builder) Use(m Middleware) *Builder {
	b.middlewares = append(b.middlewares, m)
	return b
}

// UseIf appends m only when condition holds.
func (b *Builder) UseIf(condition bool, m Middleware) *Builder {
	if condition {
		b.middlewares = append(b.middlewares, m)
	}
	return b
}

// Len returns the number of middlewares collected so far.
func (b *Builder) Len() int {
	return len(b.middlewares)
}

// Handler wraps h so the first middleware added is the outermost.
func (b *Builder) Handler(h http.Handler) http.Handler {
	if h == nil {
		h = http.NotFoundHandler()
	}
	for i := len(b.middlewares) - 1; i >= 0; i-- {
		h = b.middlewares[i](h)
	}
	return h
}

// HandlerFunc is Handler for a plain function.
func (b *Builder) HandlerFunc(fn http.HandlerFunc) http.Handler {
	if fn == nil {
		return b.Handler(nil)
	}
	return b.Handler(fn)
}
