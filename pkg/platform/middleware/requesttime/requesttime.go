// Package requesttime pins one "now" per request so every timestamp taken
// while serving it agrees.
package requesttime

import (
	"net/http"

	"pulsegate/pkg/platform/clock"
	"pulsegate/pkg/requestcontext"
)

// Middleware stamps the request with the real clock.
func Middleware(next http.Handler) http.Handler {
	return WithClock(clock.Real())(next)
}

// WithClock stamps requests with c.
func WithClock(c clock.Clock) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := requestcontext.WithTime(r.Context(), c.Now())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
