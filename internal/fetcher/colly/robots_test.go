package collyfetcher

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/dice-jobs-crawler/internal/metrics"
)

func newTestRobotsTransport(results ...roundTripResult) (*robotsTransport, *stubRoundTripper) {
	base := &stubRoundTripper{results: results}
	rt := newRobotsTransport(base)
	rt.backoff = []time.Duration{0, 0, 0}
	return rt, base
}

func TestRobotsProbeFallsBackToAllowAll(t *testing.T) {
	t.Parallel()
	metrics.Init()

	rt, base := newTestRobotsTransport(roundTripResult{err: context.DeadlineExceeded})

	req := httptest.NewRequest(http.MethodGet, "https://www.dice.com/robots.txt", nil)
	resp, err := rt.RoundTrip(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, allowAllRobots, string(body))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, int64(1), rt.fallbacks.Load())
	require.Equal(t, 4, base.calls)
}

func TestRobotsProbeStopsAfterSuccess(t *testing.T) {
	t.Parallel()
	metrics.Init()

	rt, base := newTestRobotsTransport(
		roundTripResult{err: errors.New("net/http: TLS handshake timeout")},
		roundTripResult{resp: httptest.NewRecorder().Result()},
	)

	req := httptest.NewRequest(http.MethodGet, "https://www.dice.com/ROBOTS.TXT", nil)
	resp, err := rt.RoundTrip(req)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, 2, base.calls)
	require.Zero(t, rt.fallbacks.Load())
}

func TestRobotsProbeFailsOnOtherErrors(t *testing.T) {
	t.Parallel()

	rt, base := newTestRobotsTransport(roundTripResult{err: errors.New("connection refused")})

	req := httptest.NewRequest(http.MethodGet, "https://www.dice.com/robots.txt", nil)
	_, err := rt.RoundTrip(req)
	require.ErrorContains(t, err, "robots.txt probe")
	require.Equal(t, 1, base.calls)
}

func TestRobotsProbeHonorsCancel(t *testing.T) {
	t.Parallel()

	rt, base := newTestRobotsTransport(roundTripResult{err: context.DeadlineExceeded})
	rt.backoff = []time.Duration{time.Hour}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, "https://www.dice.com/robots.txt", nil).WithContext(ctx)
	_, err := rt.RoundTrip(req)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, base.calls)
}

func TestListingRequestsPassThrough(t *testing.T) {
	t.Parallel()

	rt, base := newTestRobotsTransport(roundTripResult{err: context.DeadlineExceeded})

	req := httptest.NewRequest(http.MethodGet, "https://www.dice.com/jobs", nil)
	_, err := rt.RoundTrip(req)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, 1, base.calls)
}

type roundTripResult struct {
	resp *http.Response
	err  error
}

type stubRoundTripper struct {
	results []roundTripResult
	calls   int
}

func (s *stubRoundTripper) RoundTrip(_ *http.Request) (*http.Response, error) {
	defer func() { s.calls++ }()
	if len(s.results) == 0 {
		return nil, context.DeadlineExceeded
	}
	res := s.results[min(s.calls, len(s.results)-1)]
	return res.resp, res.err
}
