package batch

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackzampolin/critique/internal/providers"
)

// DefaultDelay is the pause after each successful file.
const DefaultDelay = 4 * time.Second

// Pacer spaces out generation calls. The fixed delay follows successes
// only; the optional limiter gates every call and is drained by a 429.
// A nil Pacer does nothing.
type Pacer struct {
	delay   time.Duration
	limiter *providers.RateLimiter
	logger  *slog.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

// NewPacer creates a pacer. requestsPerMinute <= 0 disables the limiter.
func NewPacer(delay time.Duration, requestsPerMinute int, logger *slog.Logger) *Pacer {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pacer{
		delay:  delay,
		logger: logger,
		sleep:  sleepContext,
	}
	if requestsPerMinute > 0 {
		p.limiter = providers.NewRateLimiter(requestsPerMinute)
	}
	return p
}

// Delay returns the post-success delay.
func (p *Pacer) Delay() time.Duration {
	if p == nil {
		return 0
	}
	return p.delay
}

// Before blocks until the limiter admits a call.
func (p *Pacer) Before(ctx context.Context) error {
	if p == nil || p.limiter == nil {
		return nil
	}
	if p.limiter.TryConsume() {
		return nil
	}
	status := p.limiter.Status()
	p.logger.Info("waiting for rate limiter",
		"wait", status.TimeUntilToken,
		"blocked_until", status.BlockedUntil)
	return p.limiter.Wait(ctx)
}

// Observe feeds a generation error back to the limiter.
func (p *Pacer) Observe(err error) {
	if p == nil || p.limiter == nil {
		return
	}
	if apiErr, ok := providers.AsRateLimit(err); ok {
		p.logger.Warn("service reported rate limit", "retry_after", apiErr.RetryAfter)
		p.limiter.Record429(apiErr.RetryAfter)
	}
}

// AfterSuccess pauses for the fixed delay.
func (p *Pacer) AfterSuccess(ctx context.Context) error {
	if p == nil || p.delay <= 0 {
		return nil
	}
	p.logger.Info("pausing briefly to respect API rate limits", "delay", p.delay)
	return p.sleep(ctx, p.delay)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
