package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"
)

const defaultMaxKeys = 10000

var ErrCapacity = errors.New("too many tracked keys")

// MemoryLimiter keeps attempt counters in process. It serves single-instance
// deployments without Redis.
type MemoryLimiter struct {
	mu       sync.Mutex
	now      func() time.Time
	attempts map[string]attempts
	maxKeys  int
}

type attempts struct {
	count   int
	resetAt time.Time
}

func NewMemoryLimiter(now func() time.Time, maxKeys int) *MemoryLimiter {
	if now == nil {
		now = time.Now
	}
	if maxKeys <= 0 {
		maxKeys = defaultMaxKeys
	}
	return &MemoryLimiter{
		now:      now,
		attempts: make(map[string]attempts),
		maxKeys:  maxKeys,
	}
}

func (m *MemoryLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (Decision, error) {
	if limit <= 0 {
		return unlimited(limit), nil
	}
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.attempts[key]
	if ok && !now.Before(a.resetAt) {
		ok = false
	}
	if !ok {
		if len(m.attempts) >= m.maxKeys && !m.evictExpired(now) {
			return Decision{}, ErrCapacity
		}
		a = attempts{resetAt: now.Add(window)}
	}

	d := Decision{Limit: limit, ResetAt: a.resetAt}
	if a.count < limit {
		a.count++
		m.attempts[key] = a
		d.Allowed = true
	}
	d.Remaining = limit - a.count
	return d, nil
}

func (m *MemoryLimiter) Reset(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.attempts, key)
	m.mu.Unlock()
	return nil
}

// evictExpired drops finished windows and reports whether room was made.
func (m *MemoryLimiter) evictExpired(now time.Time) bool {
	for key, a := range m.attempts {
		if !now.Before(a.resetAt) {
			delete(m.attempts, key)
		}
	}
	return len(m.attempts) < m.maxKeys
}

var _ Limiter = (*MemoryLimiter)(nil)
