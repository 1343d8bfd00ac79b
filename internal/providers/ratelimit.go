package providers

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a token bucket refilled at requestsPerMinute. A reported
// 429 drains the bucket and, with a retry-after hint, holds every waiter
// until the hint expires.
type RateLimiter struct {
	mu sync.Mutex

	requestsPerMinute int
	windowSeconds     float64

	tokens       float64
	lastUpdate   time.Time
	blockedUntil time.Time

	// Statistics
	totalConsumed int64
	totalWaited   time.Duration
	last429Time   time.Time

	now func() time.Time
}

// RateLimiterStatus reports current limiter state.
type RateLimiterStatus struct {
	TokensAvailable int
	TokensLimit     int
	TimeUntilToken  time.Duration
	TotalConsumed   int64
	TotalWaited     time.Duration
	Last429Time     time.Time
	BlockedUntil    time.Time
}

// NewRateLimiter creates a limiter with a full bucket.
func NewRateLimiter(requestsPerMinute int) *RateLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 15 // Gemini free tier
	}
	return &RateLimiter{
		requestsPerMinute: requestsPerMinute,
		windowSeconds:     60.0,
		tokens:            float64(requestsPerMinute),
		lastUpdate:        time.Now(),
		now:               time.Now,
	}
}

// Wait blocks until a token is available or context is cancelled.
func (r *RateLimiter) Wait(ctx context.Context) error {
	for {
		r.mu.Lock()
		now := r.now()
		r.refill(now)

		var waitTime time.Duration
		switch {
		case now.Before(r.blockedUntil):
			waitTime = r.blockedUntil.Sub(now)
		case r.tokens >= 1.0:
			r.tokens--
			r.totalConsumed++
			r.mu.Unlock()
			return nil
		default:
			waitTime = r.untilNextToken()
		}
		r.mu.Unlock()

		timer := time.NewTimer(waitTime)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			r.mu.Lock()
			r.totalWaited += waitTime
			r.mu.Unlock()
		}
	}
}

// TryConsume takes a token without blocking.
func (r *RateLimiter) TryConsume() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.refill(now)
	if now.Before(r.blockedUntil) || r.tokens < 1.0 {
		return false
	}
	r.tokens--
	r.totalConsumed++
	return true
}

// Record429 drains the bucket after the service rejected a call for quota.
func (r *RateLimiter) Record429(retryAfter time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.last429Time = now
	r.tokens = 0
	r.lastUpdate = now
	if retryAfter > 0 {
		if until := now.Add(retryAfter); until.After(r.blockedUntil) {
			r.blockedUntil = until
		}
	}
}

// Status returns current limiter status.
func (r *RateLimiter) Status() RateLimiterStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.refill(r.now())

	var timeUntilToken time.Duration
	if r.tokens < 1.0 {
		timeUntilToken = r.untilNextToken()
	}

	return RateLimiterStatus{
		TokensAvailable: int(r.tokens),
		TokensLimit:     r.requestsPerMinute,
		TimeUntilToken:  timeUntilToken,
		TotalConsumed:   r.totalConsumed,
		TotalWaited:     r.totalWaited,
		Last429Time:     r.last429Time,
		BlockedUntil:    r.blockedUntil,
	}
}

// untilNextToken must be called with lock held.
func (r *RateLimiter) untilNextToken() time.Duration {
	tokensNeeded := 1.0 - r.tokens
	refillRate := float64(r.requestsPerMinute) / r.windowSeconds
	return time.Duration(tokensNeeded/refillRate*1000) * time.Millisecond
}

// refill adds tokens based on elapsed time. Must be called with lock held.
func (r *RateLimiter) refill(now time.Time) {
	elapsed := now.Sub(r.lastUpdate).Seconds()
	if elapsed <= 0 {
		return
	}
	r.lastUpdate = now

	refillRate := float64(r.requestsPerMinute) / r.windowSeconds
	r.tokens += elapsed * refillRate
	if r.tokens > float64(r.requestsPerMinute) {
		r.tokens = float64(r.requestsPerMinute)
	}
}
