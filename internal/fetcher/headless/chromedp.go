// Package headless renders pages in headless Chrome for search and detail
// pages whose listings are filled in by client-side scripts.
package headless

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/JakeFAU/dice-jobs-crawler/internal/crawler"
)

// DefaultReadySelector matches the first element that only exists once the
// listing markup has rendered: a search card, a detail title, or any h1.
const DefaultReadySelector = `[data-cy="search-card"], [data-cy="jobTitle"], h1`

const (
	defaultNavTimeout  = 45 * time.Second
	defaultSettleDelay = 500 * time.Millisecond
)

// Config controls the behavior of the headless fetcher.
type Config struct {
	// MaxParallel caps concurrent tabs. Zero means unbounded.
	MaxParallel       int
	UserAgent         string
	NavigationTimeout time.Duration
	// ReadySelector is awaited before the DOM is captured.
	ReadySelector string
	// ScrollPasses scrolls to the bottom this many times so lazily loaded
	// search cards render.
	ScrollPasses int
	SettleDelay  time.Duration
	// ProxyServer is passed to Chrome as --proxy-server when set.
	ProxyServer string
}

// Fetcher implements crawler.Fetcher using chromedp and headless Chrome.
type Fetcher struct {
	cfg         Config
	slots       chan struct{}
	allocator   context.Context
	allocCancel context.CancelFunc
}

// NewChromedp starts a Chrome allocator. The browser process itself is
// launched lazily on the first Fetch.
func NewChromedp(cfg Config) (*Fetcher, error) {
	if cfg.MaxParallel < 0 {
		return nil, errors.New("headless max parallel must be >= 0")
	}
	cfg = withDefaults(cfg)

	var slots chan struct{}
	if cfg.MaxParallel > 0 {
		slots = make(chan struct{}, cfg.MaxParallel)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("blink-settings", "imagesEnabled=false"),
		chromedp.Flag("enable-automation", false),
		chromedp.WindowSize(1366, 900),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	if cfg.ProxyServer != "" {
		opts = append(opts, chromedp.ProxyServer(cfg.ProxyServer))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Fetcher{
		cfg:         cfg,
		slots:       slots,
		allocator:   allocCtx,
		allocCancel: allocCancel,
	}, nil
}

func withDefaults(cfg Config) Config {
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = defaultNavTimeout
	}
	if cfg.ReadySelector == "" {
		cfg.ReadySelector = DefaultReadySelector
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = defaultSettleDelay
	}
	if cfg.ScrollPasses < 0 {
		cfg.ScrollPasses = 0
	}
	return cfg
}

// Close shuts the browser down.
func (f *Fetcher) Close() {
	f.allocCancel()
}

// Fetch opens request.URL in a new tab and returns the rendered document.
func (f *Fetcher) Fetch(ctx context.Context, request crawler.FetchRequest) (crawler.FetchResponse, error) {
	if err := f.acquire(ctx); err != nil {
		return crawler.FetchResponse{}, err
	}
	defer f.release()

	tabCtx, closeTab := chromedp.NewContext(f.allocator)
	defer closeTab()
	// Tie the tab to the caller's context as well as the navigation timeout.
	stop := context.AfterFunc(ctx, closeTab)
	defer stop()
	tabCtx, cancel := context.WithTimeout(tabCtx, f.cfg.NavigationTimeout)
	defer cancel()

	doc := &documentWatcher{}
	chromedp.ListenTarget(tabCtx, doc.observe)

	start := time.Now()
	var html, location string
	if err := chromedp.Run(tabCtx, f.actions(request, &html, &location)...); err != nil {
		return crawler.FetchResponse{}, fmt.Errorf("render %s: %w", request.URL, err)
	}
	status, headers, finalURL := doc.result(request.URL, location)

	return crawler.FetchResponse{
		URL:          finalURL,
		StatusCode:   status,
		Headers:      headers,
		Body:         []byte(html),
		Duration:     time.Since(start),
		UsedHeadless: true,
	}, nil
}

func (f *Fetcher) actions(request crawler.FetchRequest, html, location *string) []chromedp.Action {
	actions := []chromedp.Action{
		f.prepareTab(request.Headers),
		chromedp.Navigate(request.URL),
		chromedp.WaitReady(f.cfg.ReadySelector, chromedp.ByQuery),
	}
	for range f.cfg.ScrollPasses {
		actions = append(actions,
			chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
			chromedp.Sleep(f.cfg.SettleDelay),
		)
	}
	return append(actions,
		chromedp.Sleep(f.cfg.SettleDelay),
		chromedp.Location(location),
		chromedp.OuterHTML("html", html, chromedp.ByQuery),
	)
}

// prepareTab enables network events so the document response is observed,
// and applies the user agent and request headers to the tab.
func (f *Fetcher) prepareTab(headers http.Header) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network events: %w", err)
		}
		if f.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(f.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("override user agent: %w", err)
			}
		}
		if extra := networkHeaders(headers); len(extra) > 0 {
			if err := network.SetExtraHTTPHeaders(extra).Do(ctx); err != nil {
				return fmt.Errorf("set request headers: %w", err)
			}
		}
		return nil
	})
}

func (f *Fetcher) acquire(ctx context.Context) error {
	if f.slots == nil {
		return nil
	}
	select {
	case f.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for headless tab: %w", ctx.Err())
	}
}

func (f *Fetcher) release() {
	if f.slots != nil {
		<-f.slots
	}
}

// documentWatcher keeps the last top-level document response seen by a tab.
// Redirects produce several; the last one is the page that rendered.
type documentWatcher struct {
	mu   sync.Mutex
	resp *network.Response
}

func (w *documentWatcher) observe(ev any) {
	e, ok := ev.(*network.EventResponseReceived)
	if !ok || e.Type != network.ResourceTypeDocument || e.Response == nil {
		return
	}
	w.mu.Lock()
	w.resp = e.Response
	w.mu.Unlock()
}

// result reports status, headers and URL of the rendered document. A tab
// that never reported a document response is treated as a 200 for the
// browser's final location.
func (w *documentWatcher) result(requestURL, location string) (int, http.Header, string) {
	w.mu.Lock()
	resp := w.resp
	w.mu.Unlock()

	finalURL := location
	if finalURL == "" {
		finalURL = requestURL
	}
	if resp == nil {
		return http.StatusOK, http.Header{}, finalURL
	}
	status := int(resp.Status)
	if status == 0 {
		status = http.StatusOK
	}
	if resp.URL != "" {
		finalURL = resp.URL
	}
	return status, httpHeaders(resp.Headers), finalURL
}

func httpHeaders(src network.Headers) http.Header {
	dst := http.Header{}
	for key, value := range src {
		switch v := value.(type) {
		case string:
			dst.Add(key, v)
		case []string:
			for _, s := range v {
				dst.Add(key, s)
			}
		case []any:
			for _, s := range v {
				dst.Add(key, fmt.Sprint(s))
			}
		default:
			dst.Add(key, fmt.Sprint(v))
		}
	}
	return dst
}

// networkHeaders flattens h for the DevTools protocol, which takes one value
// per header name.
func networkHeaders(h http.Header) network.Headers {
	out := network.Headers{}
	for key, values := range h {
		switch len(values) {
		case 0:
		case 1:
			out[key] = values[0]
		default:
			joined := values[0]
			for _, v := range values[1:] {
				joined += ", " + v
			}
			out[key] = joined
		}
	}
	return out
}
