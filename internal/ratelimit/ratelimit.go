// Package ratelimit throttles repeated attempts, such as logins, per key
// within a fixed window.
package ratelimit

import (
	"context"
	"time"
)

// Decision is the outcome of a single Allow call.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Limiter counts attempts per key within a window. A limit <= 0 disables
// limiting. Attempts made after the limit is reached are refused without
// being counted, and Reset forgets a key, for example after a successful login.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (Decision, error)
	Reset(ctx context.Context, key string) error
}

func unlimited(limit int) Decision {
	return Decision{Allowed: true, Limit: limit, Remaining: limit}
}
