package ratelimit

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	dErrors "pulsegate/pkg/domain-errors"
	"pulsegate/pkg/platform/httputil"
	"pulsegate/pkg/requestcontext"
)

// Limiter applies a policy to a store.
type Limiter struct {
	store  Store
	policy Policy
	logger *slog.Logger
}

// New builds a limiter.
func New(store Store, policy Policy, logger *slog.Logger) *Limiter {
	return &Limiter{store: store, policy: policy, logger: logger}
}

// Key identifies the caller: the device id when the gateway sent one,
// otherwise the client IP.
func Key(r *http.Request) string {
	if device := requestcontext.DeviceID(r.Context()); device != "" {
		return "device:" + device
	}
	return "ip:" + requestcontext.ClientIP(r.Context())
}

// Allow checks key against the policy. Store errors fail open.
func (l *Limiter) Allow(ctx context.Context, key string) (Result, bool) {
	res, err := l.store.Allow(ctx, key, l.policy.Limit, l.policy.Window)
	if err != nil {
		l.logger.WarnContext(ctx, "rate limit check failed, allowing", "key", key, "error", err)
		return Result{Allowed: true, Limit: l.policy.Limit}, true
	}
	return res, res.Allowed
}

// Middleware rejects callers over budget with 429.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res, ok := l.Allow(r.Context(), Key(r))
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		if !ok {
			retry := int(math.Ceil(time.Until(res.ResetAt).Seconds()))
			if retry < 1 {
				retry = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retry))
			httputil.WriteError(w, dErrors.New(dErrors.CodeRateLimited, "telemetry rate limit exceeded"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
