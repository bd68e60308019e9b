package retry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/dice-jobs-crawler/internal/crawler"
)

type timeoutErr struct{ timeout bool }

func (e timeoutErr) Error() string   { return "net" }
func (e timeoutErr) Timeout() bool   { return e.timeout }
func (e timeoutErr) Temporary() bool { return false }

func TestShouldRetry(t *testing.T) {
	t.Parallel()

	p := New(Config{MaxRetries: 2})
	status := func(code int) error {
		return fmt.Errorf("fetch: %w", &crawler.StatusError{URL: "https://x", StatusCode: code})
	}

	testCases := []struct {
		name    string
		err     error
		attempt int
		want    bool
	}{
		{"nil error", nil, 1, false},
		{"generic error", errors.New("boom"), 1, true},
		{"last retry", errors.New("boom"), 2, true},
		{"exhausted", errors.New("boom"), 3, false},
		{"canceled", fmt.Errorf("wrap: %w", context.Canceled), 1, false},
		{"deadline", context.DeadlineExceeded, 1, false},
		{"server error", status(http.StatusBadGateway), 1, true},
		{"too many requests", status(http.StatusTooManyRequests), 1, true},
		{"request timeout", status(http.StatusRequestTimeout), 1, true},
		{"not found", status(http.StatusNotFound), 1, false},
		{"forbidden", status(http.StatusForbidden), 1, false},
		{"net timeout", timeoutErr{timeout: true}, 1, true},
		{"net refused", timeoutErr{timeout: false}, 1, false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, p.ShouldRetry(tc.err, tc.attempt))
		})
	}
}

func TestZeroRetriesNeverRetries(t *testing.T) {
	t.Parallel()

	p := New(Config{})
	require.False(t, p.ShouldRetry(errors.New("boom"), 1))
}

func TestBackoffBounds(t *testing.T) {
	t.Parallel()

	p := New(Config{MaxRetries: 5, BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second})
	for attempt := 0; attempt < 8; attempt++ {
		full := 100 * time.Millisecond * time.Duration(1<<attempt)
		if full > time.Second {
			full = time.Second
		}
		for i := 0; i < 20; i++ {
			d := p.Backoff(attempt)
			require.GreaterOrEqual(t, d, full/2)
			require.LessOrEqual(t, d, full)
		}
	}
}
