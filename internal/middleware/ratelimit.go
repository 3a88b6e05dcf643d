package middleware

import (
	"math"
	"net/http"
	"strconv"

	"github.com/wudi/docgateway/internal/errors"
	"golang.org/x/time/rate"
)

// RateLimit caps documentation traffic with a single token bucket.
// rps is requests per second; burst defaults to ceil(rps).
func RateLimit(rps float64, burst int) Middleware {
	if burst <= 0 {
		burst = int(math.Max(1, math.Ceil(rps)))
	}
	limiter := rate.NewLimiter(rate.Limit(rps), burst)
	burstStr := strconv.Itoa(burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-RateLimit-Limit", burstStr)
			if !limiter.Allow() {
				w.Header().Set("Retry-After", "1")
				errors.ErrTooManyRequests.WriteJSON(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
