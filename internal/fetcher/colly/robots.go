package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/JakeFAU/dice-jobs-crawler/internal/metrics"
)

const allowAllRobots = "User-agent: *\nAllow: /"

var defaultRobotsBackoff = []time.Duration{
	250 * time.Millisecond,
	500 * time.Millisecond,
	time.Second,
}

// robotsTransport sits under the collector. robots.txt probes that time out
// are retried, and when every try times out an allow-all file is served so the
// listing fetch behind the probe still runs. Other requests pass through.
type robotsTransport struct {
	next      http.RoundTripper
	backoff   []time.Duration
	fallbacks atomic.Int64
}

func newRobotsTransport(next http.RoundTripper) *robotsTransport {
	return &robotsTransport{next: next, backoff: defaultRobotsBackoff}
}

func (t *robotsTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil || req.URL == nil {
		return nil, errors.New("robots transport: nil request")
	}
	if !strings.EqualFold(req.URL.Path, "/robots.txt") {
		resp, err := t.next.RoundTrip(req)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", req.URL.Host, err)
		}
		return resp, nil
	}
	return t.probe(req)
}

func (t *robotsTransport) probe(req *http.Request) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		resp, err := t.next.RoundTrip(req.Clone(req.Context()))
		if err == nil {
			return resp, nil
		}
		if !timedOut(err) {
			return nil, fmt.Errorf("robots.txt probe %s: %w", req.URL.Host, err)
		}
		if attempt >= len(t.backoff) {
			t.fallbacks.Add(1)
			metrics.ObserveRobotsFallback()
			return allowAll(req), nil
		}
		if err := wait(req.Context(), t.backoff[attempt]); err != nil {
			return nil, err
		}
	}
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("robots.txt probe canceled: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

func allowAll(req *http.Request) *http.Response {
	return &http.Response{
		StatusCode:    http.StatusOK,
		Status:        "200 OK",
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        http.Header{"Content-Type": {"text/plain"}},
		Body:          io.NopCloser(strings.NewReader(allowAllRobots)),
		ContentLength: int64(len(allowAllRobots)),
		Request:       req,
	}
}

// timedOut matches dial, TLS handshake and deadline timeouts.
func timedOut(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return strings.Contains(err.Error(), "handshake timeout")
}
