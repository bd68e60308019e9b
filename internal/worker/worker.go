// Package worker implements the crawl pipeline execution loop.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/dice-jobs-crawler/internal/crawler"
	"github.com/JakeFAU/dice-jobs-crawler/internal/metrics"
	"github.com/JakeFAU/dice-jobs-crawler/internal/stats"
)

// Config controls Worker behavior.
type Config struct {
	// Headless enables detector-driven promotion of HTML requests.
	Headless bool
}

// Worker consumes queued requests: rate limit, fetch, optional headless
// promotion, then hand the response to the router.
type Worker struct {
	id              int
	queue           crawler.Queue
	handler         crawler.Handler
	probeFetcher    crawler.Fetcher
	headlessFetcher crawler.Fetcher
	detector        crawler.HeadlessDetector
	limiter         crawler.RateLimiter
	retry           crawler.RetryPolicy
	collector       *stats.Collector
	cfg             Config
	logger          *zap.Logger
}

// New constructs a Worker. headless, detector, limiter, retry and collector
// may be nil.
func New(
	id int,
	queue crawler.Queue,
	handler crawler.Handler,
	probe crawler.Fetcher,
	headless crawler.Fetcher,
	detector crawler.HeadlessDetector,
	limiter crawler.RateLimiter,
	retry crawler.RetryPolicy,
	collector *stats.Collector,
	cfg Config,
	logger *zap.Logger,
) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	return &Worker{
		id:              id,
		queue:           queue,
		handler:         handler,
		probeFetcher:    probe,
		headlessFetcher: headless,
		detector:        detector,
		limiter:         limiter,
		retry:           retry,
		collector:       collector,
		cfg:             cfg,
		logger:          logger.Named("worker").With(zap.Int("worker", id)),
	}
}

// Run blocks, consuming requests until the queue closes or the context finishes.
func (w *Worker) Run(ctx context.Context) {
	for {
		req, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, crawler.ErrQueueClosed) {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		w.logger.Debug("dequeued request",
			zap.String("label", string(req.Label())),
			zap.String("url", req.Target()),
		)
		w.process(ctx, req)
	}
}

func (w *Worker) process(ctx context.Context, req crawler.Request) {
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()
	defer w.queue.Done()

	label := req.Label()
	logger := w.logger.With(zap.String("label", string(label)), zap.String("url", req.Target()))

	var lastErr error
	for attempt := 1; ; attempt++ {
		err := w.attempt(ctx, req)
		if err == nil {
			w.collector.RequestSucceeded(label)
			return
		}
		lastErr = err
		if w.retry == nil || !w.retry.ShouldRetry(err, attempt) {
			break
		}
		w.collector.Retried(label)
		delay := w.retry.Backoff(attempt)
		logger.Warn("request failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)
		if err := sleep(ctx, delay); err != nil {
			lastErr = err
			break
		}
	}

	w.collector.RequestFailed(label)
	if ctx.Err() != nil {
		logger.Info("request abandoned on shutdown", zap.Error(lastErr))
		return
	}
	w.handler.Failed(ctx, req, lastErr)
}

func (w *Worker) attempt(ctx context.Context, req crawler.Request) error {
	if w.probeFetcher == nil {
		return errors.New("no probe fetcher configured")
	}
	if w.limiter != nil {
		if err := w.limiter.Wait(ctx, req.Target()); err != nil {
			return err
		}
	}

	resp, err := w.probeFetcher.Fetch(ctx, crawler.FetchRequest{URL: req.Target(), Headers: req.Headers()})
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	metrics.ObserveFetch(string(req.Label()), req.Target(), false, len(resp.Body), resp.Duration)

	if promoted, ok := w.maybePromote(ctx, req, resp); ok {
		resp = promoted
	}
	if err := w.handler.Handle(ctx, req, resp); err != nil {
		return fmt.Errorf("handle: %w", err)
	}
	return nil
}

// maybePromote re-fetches HTML surfaces in a headless browser when the
// detector judges the plain response to be an unrendered shell. The JSON API
// is never promoted.
func (w *Worker) maybePromote(
	ctx context.Context,
	req crawler.Request,
	resp crawler.FetchResponse,
) (crawler.FetchResponse, bool) {
	if !w.cfg.Headless || w.detector == nil || w.headlessFetcher == nil {
		return resp, false
	}
	if req.Label() == crawler.LabelSearchAPI || !w.detector.ShouldPromote(resp) {
		return resp, false
	}

	headlessResp, err := w.headlessFetcher.Fetch(ctx, crawler.FetchRequest{
		URL:         req.Target(),
		Headers:     req.Headers(),
		UseHeadless: true,
	})
	if err != nil {
		w.logger.Warn("headless promotion failed", zap.String("url", req.Target()), zap.Error(err))
		return resp, false
	}
	headlessResp.UsedHeadless = true
	metrics.ObserveHeadlessPromotion()
	metrics.ObserveFetch(string(req.Label()), req.Target(), true, len(headlessResp.Body), headlessResp.Duration)
	w.logger.Debug("headless promotion applied", zap.String("url", req.Target()))
	return headlessResp, true
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("backoff canceled: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
