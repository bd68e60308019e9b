// Package retry decides when a failed fetch is worth another attempt.
package retry

import (
	"context"
	"crypto/rand"
	"errors"
	"math"
	"math/big"
	"net"
	"time"

	"github.com/JakeFAU/dice-jobs-crawler/internal/crawler"
)

// Config tunes the exponential policy.
type Config struct {
	// MaxRetries is the number of attempts after the first one.
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// Exponential implements crawler.RetryPolicy with jittered backoff.
type Exponential struct {
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// New builds a policy. Zero delays fall back to 250ms base and 5s cap.
func New(cfg Config) *Exponential {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 250 * time.Millisecond
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 5 * time.Second
	}
	return &Exponential{
		maxRetries: cfg.MaxRetries,
		baseDelay:  cfg.BaseDelay,
		maxDelay:   cfg.MaxDelay,
	}
}

// ShouldRetry reports whether attempt (1-based count of attempts made so far)
// may be followed by another one.
func (p *Exponential) ShouldRetry(err error, attempt int) bool {
	if err == nil || attempt > p.maxRetries {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var statusErr *crawler.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Retryable()
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return true
}

// Backoff returns the wait before the next attempt: half of the exponential
// delay plus up to another half of random jitter.
func (p *Exponential) Backoff(attempt int) time.Duration {
	delay := float64(p.baseDelay) * math.Pow(2, float64(attempt))
	if delay > float64(p.maxDelay) {
		delay = float64(p.maxDelay)
	}
	return time.Duration(delay/2) + jitter(time.Duration(delay)/2)
}

func jitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(limit)))
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}
