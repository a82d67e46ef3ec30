package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// NewLocalRateLimiter creates a rate limiter that keeps its state in
// process memory, for deployments without Redis.
func NewLocalRateLimiter(logger zerolog.Logger, cfg RateLimiterConfig) *RateLimiter {
	return NewRateLimiter(&LimiterPool{}, NewLocalBlocker(), DefaultLimits(), logger, cfg)
}

// LimiterPool keeps one token bucket per key. A bucket refills limit tokens
// per window and holds at most limit.
type LimiterPool struct {
	mu sync.Mutex
	m  map[string]*rate.Limiter
}

func (p *LimiterPool) get(key string, limit int, window time.Duration) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.m == nil {
		p.m = make(map[string]*rate.Limiter)
	}
	if l, ok := p.m[key]; ok {
		return l
	}
	l := rate.NewLimiter(rate.Limit(float64(limit)/window.Seconds()), limit)
	p.m[key] = l
	return l
}

// CheckAndIncrement takes a token for key. Returns (allowed, remaining, resetAt).
func (p *LimiterPool) CheckAndIncrement(ctx context.Context, key string, limit int, window time.Duration) (bool, int, time.Time) {
	l := p.get(key, limit, window)
	now := time.Now()
	allowed := l.AllowN(now, 1)

	remaining := int(l.TokensAt(now))
	if remaining < 0 {
		remaining = 0
	}

	// Time until one token is available again.
	perToken := time.Duration(float64(window) / float64(limit))
	resetAt := now
	if remaining == 0 {
		resetAt = now.Add(perToken)
	}
	return allowed, remaining, resetAt
}

// LocalBlocker keeps IP blocks and violation counts in memory.
type LocalBlocker struct {
	mu         sync.Mutex
	blocked    map[string]time.Time
	violations map[string][]time.Time
}

// NewLocalBlocker creates an empty LocalBlocker.
func NewLocalBlocker() *LocalBlocker {
	return &LocalBlocker{
		blocked:    make(map[string]time.Time),
		violations: make(map[string][]time.Time),
	}
}

// IsBlocked checks if an IP is blocked.
func (b *LocalBlocker) IsBlocked(ctx context.Context, ip string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	until, ok := b.blocked[ip]
	if !ok {
		return false
	}
	if time.Now().After(until) {
		delete(b.blocked, ip)
		return false
	}
	return true
}

// Block blocks an IP for the specified duration.
func (b *LocalBlocker) Block(ctx context.Context, ip string, duration time.Duration, reason string) {
	b.mu.Lock()
	b.blocked[ip] = time.Now().Add(duration)
	b.mu.Unlock()
}

// Unblock removes an IP block.
func (b *LocalBlocker) Unblock(ctx context.Context, ip string) {
	b.mu.Lock()
	delete(b.blocked, ip)
	b.mu.Unlock()
}

// RecordViolation counts a violation for the last hour and returns the total.
func (b *LocalBlocker) RecordViolation(ctx context.Context, ip string) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-time.Hour)
	kept := b.violations[ip][:0]
	for _, t := range b.violations[ip] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	kept = append(kept, now)
	b.violations[ip] = kept
	return int64(len(kept))
}
