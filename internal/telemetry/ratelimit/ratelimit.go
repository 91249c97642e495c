// Package ratelimit throttles telemetry ingress per device so a stuck sensor
// cannot flood a session.
package ratelimit

import (
	"context"
	"time"
)

// Result is the outcome of one Allow call.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Store counts events in a sliding window per key.
type Store interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (Result, error)
	Reset(ctx context.Context, key string) error
}

// Policy is the per-key budget.
type Policy struct {
	Limit  int
	Window time.Duration
}

// DefaultPolicy allows ten samples a second, well above any strap's rate.
func DefaultPolicy() Policy {
	return Policy{Limit: 10, Window: time.Second}
}
