// Package collyfetcher implements Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/gocolly/colly/v2/proxy"

	"github.com/JakeFAU/dice-jobs-crawler/internal/crawler"
	"github.com/JakeFAU/dice-jobs-crawler/internal/metrics"
)

// DefaultUserAgent is sent when Config.UserAgent is empty.
const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

const defaultTimeout = 15 * time.Second

// Config controls collector behavior.
type Config struct {
	UserAgent     string
	RespectRobots bool
	Timeout       time.Duration
	// ProxyURLs are rotated round robin. Empty means direct connections
	// (or the environment's proxy).
	ProxyURLs []string
}

// Fetcher implements crawler.Fetcher using the Colly collector. Each Fetch
// runs on a clone of one configured collector, so clones share the transport
// and its connection pool.
type Fetcher struct {
	cfg    Config
	robots *robotsTransport
	base   *colly.Collector
}

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher. It fails only when a proxy URL cannot be parsed.
func New(cfg Config) (*Fetcher, error) {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	metrics.Init()

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
	if len(cfg.ProxyURLs) > 0 {
		switcher, err := proxy.RoundRobinProxySwitcher(cfg.ProxyURLs...)
		if err != nil {
			return nil, fmt.Errorf("configure proxies: %w", err)
		}
		transport.Proxy = switcher
		// Rotation happens per connection, so pooled connections would pin one proxy.
		transport.DisableKeepAlives = true
	}
	robots := newRobotsTransport(transport)

	base := colly.NewCollector(colly.Async(false))
	base.WithTransport(robots)
	base.UserAgent = cfg.UserAgent
	base.IgnoreRobotsTxt = !cfg.RespectRobots
	base.AllowURLRevisit = true
	base.ParseHTTPErrorResponse = true
	base.SetRequestTimeout(cfg.Timeout)

	return &Fetcher{cfg: cfg, robots: robots, base: base}, nil
}

// Fetch executes a single HTTP GET. Responses outside the 2xx range are
// returned along with a *crawler.StatusError.
func (f *Fetcher) Fetch(ctx context.Context, request crawler.FetchRequest) (crawler.FetchResponse, error) {
	c := f.base.Clone()
	c.Context = ctx
	v := &visit{request: request, start: time.Now()}
	v.bind(c)

	done := make(chan error, 1)
	go func() { done <- c.Visit(request.URL) }()

	select {
	case <-ctx.Done():
		return crawler.FetchResponse{}, fmt.Errorf("fetch %s canceled: %w", request.URL, ctx.Err())
	case err := <-done:
		if err != nil {
			return crawler.FetchResponse{}, fmt.Errorf("visit %s: %w", request.URL, err)
		}
	}
	if v.err != nil {
		return crawler.FetchResponse{}, fmt.Errorf("response %s: %w", request.URL, v.err)
	}
	if code := v.resp.StatusCode; code < 200 || code > 299 {
		return v.resp, &crawler.StatusError{URL: request.URL, StatusCode: code}
	}
	return v.resp, nil
}

// RobotsFallbacks reports how many robots.txt probes timed out and were
// treated as allow-all.
func (f *Fetcher) RobotsFallbacks() int64 {
	return f.robots.fallbacks.Load()
}

// visit collects the outcome of one collector run.
type visit struct {
	request crawler.FetchRequest
	start   time.Time
	resp    crawler.FetchResponse
	err     error
}

func (v *visit) bind(hooks collectorHooks) {
	hooks.OnRequest(func(r *colly.Request) {
		for key, values := range v.request.Headers {
			r.Headers.Del(key)
			for _, value := range values {
				r.Headers.Add(key, value)
			}
		}
	})
	hooks.OnResponse(func(r *colly.Response) {
		v.resp = crawler.FetchResponse{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Headers:    r.Headers.Clone(),
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(v.start),
		}
	})
	hooks.OnError(func(_ *colly.Response, err error) {
		v.err = err
	})
}
