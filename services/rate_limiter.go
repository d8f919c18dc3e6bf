package services

import (
	"sync"
	"time"
)

// RateLimitState mirrors the check_rate_limit RPC payload.
type RateLimitState struct {
	CanValidate               bool      `json:"can_validate"`
	ValidationsRemainingToday int       `json:"validations_remaining_today"`
	ValidationsRemainingHour  int       `json:"validations_remaining_hour"`
	ResetTime                 time.Time `json:"reset_time"`
}

// ValidationRateLimiter is a local cache of the backend's validation quota.
// Local changes only ever decrement; the next authoritative read overwrites.
type ValidationRateLimiter struct {
	mu    sync.Mutex
	state RateLimitState
	stale bool
}

func NewValidationRateLimiter() *ValidationRateLimiter {
	return &ValidationRateLimiter{stale: true}
}

func (l *ValidationRateLimiter) CanValidate() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state.CanValidate && l.state.ValidationsRemainingToday > 0 && l.state.ValidationsRemainingHour > 0
}

func (l *ValidationRateLimiter) RemainingToday() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state.ValidationsRemainingToday
}

func (l *ValidationRateLimiter) RemainingThisHour() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state.ValidationsRemainingHour
}

// Consume books one accepted vote locally and marks the cache stale.
func (l *ValidationRateLimiter) Consume() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state.ValidationsRemainingToday > 0 {
		l.state.ValidationsRemainingToday--
	}
	if l.state.ValidationsRemainingHour > 0 {
		l.state.ValidationsRemainingHour--
	}
	if l.state.ValidationsRemainingToday == 0 || l.state.ValidationsRemainingHour == 0 {
		l.state.CanValidate = false
	}
	l.stale = true
}

// Reconcile replaces the cached state with an authoritative one.
func (l *ValidationRateLimiter) Reconcile(state RateLimitState) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = state
	l.stale = false
}

// MarkExhausted records a backend rejection for an exhausted quota.
func (l *ValidationRateLimiter) MarkExhausted() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state.CanValidate = false
	l.state.ValidationsRemainingHour = 0
	l.stale = true
}

// NeedsRefresh is true after any local change or once the reset time passed.
func (l *ValidationRateLimiter) NeedsRefresh(now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stale {
		return true
	}
	return !l.state.ResetTime.IsZero() && !now.Before(l.state.ResetTime)
}

func (l *ValidationRateLimiter) State() RateLimitState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// RateLimiterCache keeps one limiter per validator.
type RateLimiterCache struct {
	mu       sync.Mutex
	limiters map[string]*ValidationRateLimiter
}

func NewRateLimiterCache() *RateLimiterCache {
	return &RateLimiterCache{limiters: make(map[string]*ValidationRateLimiter)}
}

func (c *RateLimiterCache) For(userID string) *ValidationRateLimiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.limiters[userID]
	if !ok {
		l = NewValidationRateLimiter()
		c.limiters[userID] = l
	}
	return l
}
