package collector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	apperrors "github.com/kurihiro0119/syscope/internal/errors"
	"github.com/kurihiro0119/syscope/internal/metrics"
)

// RateLimiter manages GitHub API rate limiting
type RateLimiter interface {
	Wait(ctx context.Context) error
	CheckLimit() (remaining int, resetTime time.Time, err error)
	UpdateLimit(remaining int, resetTime time.Time)
}

const (
	// defaultRateLimit is GitHub's hourly limit for authenticated requests.
	defaultRateLimit = 5000

	// lowWaterMark is the remaining count below which calls wait for the reset.
	lowWaterMark = 10

	// DefaultMinDelay is the minimum delay between two GitHub calls.
	DefaultMinDelay = 100 * time.Millisecond

	// DefaultMaxWait is the longest a call waits for a rate limit reset
	// before failing with RATE_LIMITED.
	DefaultMaxWait = 5 * time.Second
)

// githubRateLimiter implements RateLimiter for GitHub API
type githubRateLimiter struct {
	mu        sync.Mutex
	remaining int
	resetTime time.Time
	minDelay  time.Duration
	maxWait   time.Duration
	lastCall  time.Time
	logger    *log.Logger
}

// NewRateLimiter creates a new rate limiter spacing calls by at least
// minDelay. When the limit is nearly used up, calls wait for the reset only
// if it is at most maxWait away and fail with RATE_LIMITED otherwise.
func NewRateLimiter(logger *log.Logger, minDelay, maxWait time.Duration) RateLimiter {
	return &githubRateLimiter{
		remaining: defaultRateLimit,
		resetTime: time.Now().Add(time.Hour),
		minDelay:  minDelay,
		maxWait:   maxWait,
		logger:    logger,
	}
}

// Wait waits until it's safe to make another API call
func (r *githubRateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.remaining <= lowWaterMark {
		waitDuration := time.Until(r.resetTime)
		if waitDuration > r.maxWait {
			r.logger.Warn("rate limit low, reset too far away",
				"remaining", r.remaining,
				"reset", r.resetTime.Format(time.RFC3339))
			return apperrors.NewRateLimitedError(fmt.Sprintf("GitHub rate limit nearly exhausted, resets at %s", r.resetTime.Format(time.RFC3339)))
		}
		if waitDuration > 0 {
			r.logger.Warn("rate limit low, waiting for reset",
				"remaining", r.remaining,
				"wait", waitDuration.Round(time.Second))
			if err := r.sleep(ctx, waitDuration); err != nil {
				return err
			}
			r.logger.Info("rate limit reset, continuing")
		}
		r.remaining = defaultRateLimit
		r.resetTime = time.Now().Add(time.Hour)
	}

	elapsed := time.Since(r.lastCall)
	if elapsed < r.minDelay {
		if err := r.sleep(ctx, r.minDelay-elapsed); err != nil {
			return err
		}
	}

	r.lastCall = time.Now()
	return nil
}

// sleep releases the lock while waiting for d or ctx cancellation.
// Callers must hold r.mu.
func (r *githubRateLimiter) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Unlock()
	defer r.mu.Lock()

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// CheckLimit returns the current rate limit status
func (r *githubRateLimiter) CheckLimit() (remaining int, resetTime time.Time, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.remaining, r.resetTime, nil
}

// UpdateLimit updates the rate limit from API response headers
func (r *githubRateLimiter) UpdateLimit(remaining int, resetTime time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.remaining = remaining
	r.resetTime = resetTime
	metrics.GitHubRateRemaining.Set(float64(remaining))
}
