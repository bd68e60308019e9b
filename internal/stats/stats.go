// Package stats accumulates per-run crawl counters and renders the final
// run summary.
package stats

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/JakeFAU/dice-jobs-crawler/internal/crawler"
)

// Request outcomes reported to an Observer.
const (
	OutcomeSuccess = "success"
	OutcomeFailed  = "failed"
	OutcomeRetry   = "retry"
)

// Listing outcomes reported to an Observer.
const (
	ListingPersisted = "persisted"
	ListingDuplicate = "duplicate"
	ListingRejected  = "rejected"
	ListingDegraded  = "degraded"
)

// Observer mirrors counter updates elsewhere, for example into Prometheus.
type Observer interface {
	ObserveRequest(label, outcome string)
	ObserveListing(source, outcome string)
}

// Writer persists the final summary of a run.
type Writer interface {
	WriteStats(ctx context.Context, summary Summary) error
}

// Summary is the statistics report for one run.
type Summary struct {
	RunID             string           `json:"runId"`
	StartedAt         time.Time        `json:"startedAt"`
	FinishedAt        time.Time        `json:"finishedAt"`
	DurationMs        int64            `json:"durationMs"`
	Requests          int64            `json:"requests"`
	Errors            int64            `json:"errors"`
	Retries           int64            `json:"retries"`
	JobsScraped       int64            `json:"jobsScraped"`
	ListingsPersisted int64            `json:"listingsPersisted"`
	Duplicates        int64            `json:"duplicates"`
	Rejected          int64            `json:"rejected"`
	DetailFailures    int64            `json:"detailFailures"`
	Pages             map[string]int64 `json:"pages"`
}

// Collector is a concurrency-safe set of run counters. A nil *Collector
// discards every update.
type Collector struct {
	runID    string
	observer Observer

	requests       atomic.Int64
	errors         atomic.Int64
	retries        atomic.Int64
	jobsScraped    atomic.Int64
	persisted      atomic.Int64
	duplicates     atomic.Int64
	rejected       atomic.Int64
	detailFailures atomic.Int64

	mu         sync.Mutex
	pages      map[crawler.Label]int64
	startedAt  time.Time
	finishedAt time.Time
}

// NewCollector returns a Collector for runID. observer may be nil.
func NewCollector(runID string, observer Observer) *Collector {
	return &Collector{
		runID:    runID,
		observer: observer,
		pages:    make(map[crawler.Label]int64),
	}
}

// Start records the run start time.
func (c *Collector) Start(now time.Time) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.startedAt = now
}

// Finish records the run end time.
func (c *Collector) Finish(now time.Time) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.finishedAt = now
}

// Started reports whether Start has been called.
func (c *Collector) Started() bool {
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.startedAt.IsZero()
}

// RequestSucceeded counts a fetched and handled request.
func (c *Collector) RequestSucceeded(label crawler.Label) {
	if c == nil {
		return
	}
	c.requests.Add(1)
	c.mu.Lock()
	c.pages[label]++
	c.mu.Unlock()
	c.observeRequest(label, OutcomeSuccess)
}

// RequestFailed counts a request that exhausted its retries.
func (c *Collector) RequestFailed(label crawler.Label) {
	if c == nil {
		return
	}
	c.requests.Add(1)
	c.errors.Add(1)
	c.observeRequest(label, OutcomeFailed)
}

// Retried counts one retry attempt.
func (c *Collector) Retried(label crawler.Label) {
	if c == nil {
		return
	}
	c.retries.Add(1)
	c.observeRequest(label, OutcomeRetry)
}

// JobScraped counts one basic record admitted under the job cap.
func (c *Collector) JobScraped() {
	if c == nil {
		return
	}
	c.jobsScraped.Add(1)
}

// ListingPersisted counts an accepted record.
func (c *Collector) ListingPersisted(source crawler.ListingSource) {
	if c == nil {
		return
	}
	c.persisted.Add(1)
	c.observeListing(source, ListingPersisted)
}

// ListingDuplicate counts a record dropped as a duplicate.
func (c *Collector) ListingDuplicate(source crawler.ListingSource) {
	if c == nil {
		return
	}
	c.duplicates.Add(1)
	c.observeListing(source, ListingDuplicate)
}

// ListingRejected counts a record that failed validation or storage.
func (c *Collector) ListingRejected(source crawler.ListingSource) {
	if c == nil {
		return
	}
	c.rejected.Add(1)
	c.observeListing(source, ListingRejected)
}

// DetailFailed counts a detail page that degraded to its basic record.
func (c *Collector) DetailFailed() {
	if c == nil {
		return
	}
	c.detailFailures.Add(1)
	c.observeListing(crawler.SourceDetail, ListingDegraded)
}

// Errors returns the run error count.
func (c *Collector) Errors() int64 {
	if c == nil {
		return 0
	}
	return c.errors.Load()
}

// Summary snapshots the counters. Before Finish, the duration runs up to now.
func (c *Collector) Summary(now time.Time) Summary {
	if c == nil {
		return Summary{Pages: map[string]int64{}}
	}
	c.mu.Lock()
	pages := make(map[string]int64, len(c.pages))
	for label, n := range c.pages {
		pages[string(label)] = n
	}
	started, finished := c.startedAt, c.finishedAt
	c.mu.Unlock()

	end := finished
	if end.IsZero() {
		end = now
	}
	var duration int64
	if !started.IsZero() {
		duration = end.Sub(started).Milliseconds()
	}
	return Summary{
		RunID:             c.runID,
		StartedAt:         started,
		FinishedAt:        finished,
		DurationMs:        duration,
		Requests:          c.requests.Load(),
		Errors:            c.errors.Load(),
		Retries:           c.retries.Load(),
		JobsScraped:       c.jobsScraped.Load(),
		ListingsPersisted: c.persisted.Load(),
		Duplicates:        c.duplicates.Load(),
		Rejected:          c.rejected.Load(),
		DetailFailures:    c.detailFailures.Load(),
		Pages:             pages,
	}
}

func (c *Collector) observeRequest(label crawler.Label, outcome string) {
	if c.observer != nil {
		c.observer.ObserveRequest(string(label), outcome)
	}
}

func (c *Collector) observeListing(source crawler.ListingSource, outcome string) {
	if c.observer != nil {
		c.observer.ObserveListing(string(source), outcome)
	}
}
