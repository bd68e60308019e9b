// Package metrics exposes Prometheus collectors for the crawler.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	crawlerRequestsTotal          *prometheus.CounterVec
	crawlerListingsTotal          *prometheus.CounterVec
	crawlerFetchBytesTotal        *prometheus.CounterVec
	crawlerFetchDurationSeconds   *prometheus.HistogramVec
	crawlerHeadlessPromotions     prometheus.Counter
	crawlerRobotsFallbacks        prometheus.Counter
	httpRequestsTotal             *prometheus.CounterVec
	httpRequestDurationSeconds    *prometheus.HistogramVec
	crawlerActiveWorkers          prometheus.Gauge
	crawlerQueueDepth             prometheus.Gauge
	crawlerRateLimitDelaysSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init registers the collectors with the default registry.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		crawlerRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dice_crawler_requests_total",
				Help: "Handled crawl requests, labeled by request label and outcome.",
			},
			[]string{"label", "outcome"},
		)

		crawlerListingsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dice_crawler_listings_total",
				Help: "Listings reaching the sink, labeled by source and outcome.",
			},
			[]string{"source", "outcome"},
		)

		crawlerFetchBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dice_crawler_fetch_bytes_total",
				Help: "Total number of bytes fetched, labeled by site.",
			},
			[]string{"site"},
		)

		crawlerFetchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dice_crawler_fetch_duration_seconds",
				Help:    "Fetch latency, labeled by request label and whether a headless browser was used.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"label", "headless"},
		)

		crawlerHeadlessPromotions = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "dice_crawler_headless_promotions_total",
				Help: "Fetches re-run in a headless browser after the detector flagged the plain response.",
			},
		)

		crawlerRobotsFallbacks = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "dice_crawler_robots_fallbacks_total",
				Help: "robots.txt probes that kept timing out and were treated as allow-all.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dice_crawler_api_requests_total",
				Help: "Monitoring API requests, labeled by method, route pattern and status code.",
			},
			[]string{"method", "route", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dice_crawler_api_request_duration_seconds",
				Help:    "Monitoring API latency, labeled by method and route pattern.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)

		crawlerActiveWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "dice_crawler_active_workers",
				Help: "Number of workers currently processing a request.",
			},
		)

		crawlerQueueDepth = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "dice_crawler_queue_depth",
				Help: "Requests waiting in the crawl frontier.",
			},
		)

		crawlerRateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dice_crawler_rate_limit_delays_seconds",
				Help:    "Histogram of rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"domain"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Observer mirrors run statistics into Prometheus. It satisfies stats.Observer.
type Observer struct{}

// NewObserver initializes the collectors and returns an Observer.
func NewObserver() Observer {
	Init()
	return Observer{}
}

// ObserveRequest counts a handled request.
func (Observer) ObserveRequest(label, outcome string) {
	crawlerRequestsTotal.WithLabelValues(label, outcome).Inc()
}

// ObserveListing counts a listing outcome at the sink.
func (Observer) ObserveListing(source, outcome string) {
	crawlerListingsTotal.WithLabelValues(source, outcome).Inc()
}

// ObserveFetch records one completed fetch.
func ObserveFetch(label, rawURL string, headless bool, bytesFetched int, duration time.Duration) {
	crawlerFetchDurationSeconds.WithLabelValues(label, strconv.FormatBool(headless)).Observe(duration.Seconds())
	if bytesFetched > 0 {
		crawlerFetchBytesTotal.WithLabelValues(SanitizeSite(rawURL)).Add(float64(bytesFetched))
	}
}

// ObserveHeadlessPromotion counts a detector-triggered headless refetch.
func ObserveHeadlessPromotion() {
	crawlerHeadlessPromotions.Inc()
}

// ObserveRobotsFallback counts a robots.txt probe answered with the allow-all fallback.
func ObserveRobotsFallback() {
	crawlerRobotsFallbacks.Inc()
}

// ObserveHTTPRequest records one monitoring API request.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	crawlerActiveWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	crawlerActiveWorkers.Dec()
}

// SetQueueDepth records the number of queued requests.
func SetQueueDepth(n int) {
	crawlerQueueDepth.Set(float64(n))
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	crawlerRateLimitDelaysSeconds.WithLabelValues(domain).Observe(duration.Seconds())
}
