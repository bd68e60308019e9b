// Package app wires one crawl run: configuration in, listings and a run
// summary out. It owns every long-lived dependency of the run and closes
// them when the run ends.
package app

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/dice-jobs-crawler/internal/api"
	"github.com/JakeFAU/dice-jobs-crawler/internal/clock/system"
	"github.com/JakeFAU/dice-jobs-crawler/internal/config"
	"github.com/JakeFAU/dice-jobs-crawler/internal/crawler"
	"github.com/JakeFAU/dice-jobs-crawler/internal/dispatcher"
	collyfetcher "github.com/JakeFAU/dice-jobs-crawler/internal/fetcher/colly"
	headlessfetcher "github.com/JakeFAU/dice-jobs-crawler/internal/fetcher/headless"
	"github.com/JakeFAU/dice-jobs-crawler/internal/hash/sha256"
	"github.com/JakeFAU/dice-jobs-crawler/internal/headless/detector"
	"github.com/JakeFAU/dice-jobs-crawler/internal/id/uuid"
	"github.com/JakeFAU/dice-jobs-crawler/internal/logging"
	"github.com/JakeFAU/dice-jobs-crawler/internal/metrics"
	"github.com/JakeFAU/dice-jobs-crawler/internal/policy/ratelimit"
	"github.com/JakeFAU/dice-jobs-crawler/internal/policy/retry"
	gcppublisher "github.com/JakeFAU/dice-jobs-crawler/internal/publisher/pubsub"
	queueMemory "github.com/JakeFAU/dice-jobs-crawler/internal/queue/memory"
	"github.com/JakeFAU/dice-jobs-crawler/internal/router"
	"github.com/JakeFAU/dice-jobs-crawler/internal/searchapi"
	"github.com/JakeFAU/dice-jobs-crawler/internal/sink"
	"github.com/JakeFAU/dice-jobs-crawler/internal/stats"
	"github.com/JakeFAU/dice-jobs-crawler/internal/storage/export"
	gcsstorage "github.com/JakeFAU/dice-jobs-crawler/internal/storage/gcs"
	localstorage "github.com/JakeFAU/dice-jobs-crawler/internal/storage/local"
	memoryStorage "github.com/JakeFAU/dice-jobs-crawler/internal/storage/memory"
	pgstore "github.com/JakeFAU/dice-jobs-crawler/internal/storage/postgres"
	"github.com/JakeFAU/dice-jobs-crawler/internal/worker"
)

const statsWriteTimeout = 30 * time.Second

// Deps overrides the infrastructure New would otherwise build from config.
// Zero fields get the production implementation.
type Deps struct {
	RunID     string
	Clock     crawler.Clock
	Fetcher   crawler.Fetcher
	Headless  crawler.Fetcher
	Publisher crawler.Publisher
	// Stores replaces the configured local, Postgres and GCS stores.
	Stores []crawler.ListingStore
	// Writers replaces the configured stats writers. The log writer is
	// always added.
	Writers []stats.Writer
}

// Runner executes a single crawl.
type Runner struct {
	cfg       config.Config
	runID     string
	clock     crawler.Clock
	logger    *zap.Logger
	collector *stats.Collector
	queue     *queueMemory.Queue
	dispatch  *dispatcher.Dispatcher
	listings  *memoryStorage.ListingStore
	artifacts *memoryStorage.BlobStore
	writers   []stats.Writer
	server    *api.Server
	closers   []func() error
}

// New builds a Runner from cfg. Infrastructure that fails to initialize is a
// fatal error; everything after New is best effort.
func New(ctx context.Context, cfg config.Config, deps Deps, logger *zap.Logger) (*Runner, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	runID := deps.RunID
	if runID == "" {
		id, err := uuid.New().NewID()
		if err != nil {
			return nil, err
		}
		runID = id
	}
	clock := deps.Clock
	if clock == nil {
		clock = system.New()
	}
	logger = logging.ForRun(logger, runID)

	r := &Runner{
		cfg:       cfg,
		runID:     runID,
		clock:     clock,
		logger:    logger,
		collector: stats.NewCollector(runID, metrics.NewObserver()),
		queue:     queueMemory.NewQueue(),
		listings:  memoryStorage.NewListingStore(),
	}

	stores, writers, err := r.buildStores(ctx, deps)
	if err != nil {
		r.Close()
		return nil, err
	}
	r.writers = append(writers, stats.NewLogWriter(logger))

	publisher := deps.Publisher
	if publisher == nil && cfg.PubSub.TopicName != "" {
		p, err := gcppublisher.Open(ctx, gcppublisher.Config{
			ProjectID: cfg.PubSub.ProjectID,
			TopicName: cfg.PubSub.TopicName,
		})
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("init publisher: %w", err)
		}
		r.closers = append(r.closers, p.Close)
		publisher = p
	}

	dedup := sink.NewDedup(
		append([]crawler.ListingStore{r.listings}, stores...),
		publisher,
		sha256.New(),
		clock,
		r.collector,
		sink.Config{RunID: runID, Topic: cfg.PubSub.TopicName},
		logger,
	)

	handler := router.New(
		router.NewRunState(cfg.Crawler.MaxJobs, cfg.Crawler.ScrapeJobDetails),
		r.queue,
		dedup,
		clock,
		r.collector,
		router.Config{
			BaseURL:  cfg.Site.BaseURL,
			Endpoint: searchapi.Endpoint{URL: cfg.Site.APIEndpoint, APIKey: cfg.Site.APIKey},
		},
		logger,
	)

	probe, headless, err := r.buildFetchers(deps)
	if err != nil {
		r.Close()
		return nil, err
	}
	var detect crawler.HeadlessDetector
	if cfg.Headless.Enabled {
		detect = detector.NewHeuristic(cfg.Headless.PromotionThreshold)
	}
	limiter := ratelimit.New(ratelimit.Config{RPS: cfg.Crawler.RateLimitRPS, Burst: cfg.Crawler.RateLimitBurst})
	retryPolicy := retry.New(retry.Config{MaxRetries: cfg.Crawler.MaxRetries})

	workers := make([]*worker.Worker, 0, cfg.Crawler.MaxConcurrency)
	for i := range cfg.Crawler.MaxConcurrency {
		workers = append(workers, worker.New(
			i,
			r.queue,
			handler,
			probe,
			headless,
			detect,
			limiter,
			retryPolicy,
			r.collector,
			worker.Config{Headless: cfg.Headless.Enabled},
			logger,
		))
	}
	r.dispatch = dispatcher.New(r.queue, workers, logger)

	if cfg.Server.Port > 0 {
		r.server = api.NewServer(r.collector, clock, logger)
	}
	return r, nil
}

// RunID identifies the run in logs, output paths and published messages.
func (r *Runner) RunID() string {
	return r.runID
}

// Listings returns every listing persisted so far.
func (r *Runner) Listings() []crawler.JobListingFull {
	return r.listings.Listings()
}

// Artifact returns an exported object, such as stats.json, when the run had
// no durable output and exported to memory instead.
func (r *Runner) Artifact(name string) ([]byte, bool) {
	if r.artifacts == nil {
		return nil, false
	}
	return r.artifacts.Object(path.Join(r.runID, name))
}

// Seeds returns the initial requests: the custom start URLs when configured,
// otherwise page 1 of both the search API and the HTML results.
func (r *Runner) Seeds() []crawler.Request {
	if len(r.cfg.Crawler.StartURLs) > 0 {
		seeds := make([]crawler.Request, 0, len(r.cfg.Crawler.StartURLs))
		for _, u := range r.cfg.Crawler.StartURLs {
			seeds = append(seeds, router.RequestForURL(u))
		}
		return seeds
	}
	params := r.cfg.SearchParams()
	endpoint := searchapi.Endpoint{URL: r.cfg.Site.APIEndpoint, APIKey: r.cfg.Site.APIKey}
	return []crawler.Request{
		endpoint.Request(params),
		searchapi.HTMLRequest(r.cfg.Site.BaseURL, params, 1),
	}
}

// Run crawls until the frontier drains or ctx ends, then writes the run
// summary. The summary is returned even when ctx was canceled.
func (r *Runner) Run(ctx context.Context) (stats.Summary, error) {
	r.collector.Start(r.clock.Now())
	r.logger.Info("crawl started",
		zap.Int("max_jobs", r.cfg.Crawler.MaxJobs),
		zap.Int("max_concurrency", r.cfg.Crawler.MaxConcurrency),
		zap.Bool("scrape_job_details", r.cfg.Crawler.ScrapeJobDetails),
		zap.Bool("headless", r.cfg.Headless.Enabled),
	)

	stopServer := r.startServer(ctx)

	seeds := r.Seeds()
	added, err := r.dispatch.Enqueue(ctx, seeds...)
	if err != nil {
		return r.finish(ctx, stopServer), fmt.Errorf("seed queue: %w", err)
	}
	r.logger.Info("queue seeded", zap.Int("seeds", added))

	r.dispatch.Run(ctx)

	summary := r.finish(ctx, stopServer)
	if err := ctx.Err(); err != nil {
		r.logger.Warn("crawl interrupted", zap.Error(err))
		return summary, fmt.Errorf("crawl interrupted: %w", err)
	}
	return summary, nil
}

// Close releases every client opened by New.
func (r *Runner) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			r.logger.Warn("close failed", zap.Error(err))
		}
	}
	r.closers = nil
}

func (r *Runner) finish(ctx context.Context, stopServer func()) stats.Summary {
	now := r.clock.Now()
	r.collector.Finish(now)
	summary := r.collector.Summary(now)

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), statsWriteTimeout)
	defer cancel()
	var errs []error
	for _, w := range r.writers {
		if err := w.WriteStats(writeCtx, summary); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		r.logger.Error("write stats failed", zap.Error(err))
	}
	stopServer()
	return summary
}

// startServer runs the monitoring server for the lifetime of the crawl. The
// returned func stops it and waits for shutdown.
func (r *Runner) startServer(ctx context.Context) func() {
	if r.server == nil {
		return func() {}
	}
	srvCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := r.server.Serve(srvCtx, r.cfg.Server.Port); err != nil {
			r.logger.Error("monitoring server failed", zap.Error(err))
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

func (r *Runner) buildStores(ctx context.Context, deps Deps) ([]crawler.ListingStore, []stats.Writer, error) {
	if deps.Stores != nil || deps.Writers != nil {
		return deps.Stores, deps.Writers, nil
	}
	var (
		stores  []crawler.ListingStore
		writers []stats.Writer
	)

	if dir := r.cfg.Storage.OutputDir; dir != "" {
		dataset, err := localstorage.NewJSONLStore(localstorage.Config{BaseDir: dir}, r.runID)
		if err != nil {
			return nil, nil, fmt.Errorf("init local dataset: %w", err)
		}
		r.closers = append(r.closers, dataset.Close)
		blobs, err := localstorage.New(localstorage.Config{BaseDir: dir})
		if err != nil {
			return nil, nil, fmt.Errorf("init local blob store: %w", err)
		}
		statsFile, err := export.New(blobs, export.Config{RunID: r.runID}, r.logger)
		if err != nil {
			return nil, nil, fmt.Errorf("init local stats: %w", err)
		}
		stores = append(stores, dataset)
		writers = append(writers, statsFile)
		r.logger.Info("writing dataset", zap.String("path", dataset.Path()))
	}

	if r.cfg.DB.DSN != "" {
		pg, err := pgstore.New(ctx, pgstore.Config{
			DSN:      r.cfg.DB.DSN,
			Table:    r.cfg.DB.Table,
			MaxConns: r.cfg.DB.MaxConns,
		}, r.runID)
		if err != nil {
			return nil, nil, fmt.Errorf("init postgres store: %w", err)
		}
		r.closers = append(r.closers, func() error { pg.Close(); return nil })
		stores = append(stores, pg)
		writers = append(writers, pg)
	}

	if r.cfg.Storage.GCSBucket != "" {
		bucket, err := gcsstorage.Open(ctx, gcsstorage.Config{
			Bucket:   r.cfg.Storage.GCSBucket,
			Metadata: map[string]string{"run_id": r.runID},
		})
		if err != nil {
			return nil, nil, fmt.Errorf("init gcs: %w", err)
		}
		r.closers = append(r.closers, bucket.Close)
		exporter, err := export.New(bucket, export.Config{
			Prefix:         r.cfg.Storage.Prefix,
			RunID:          r.runID,
			BufferListings: true,
		}, r.logger)
		if err != nil {
			return nil, nil, fmt.Errorf("init gcs export: %w", err)
		}
		stores = append(stores, exporter)
		writers = append(writers, exporter)
	}

	if r.cfg.Storage.OutputDir == "" && r.cfg.Storage.GCSBucket == "" {
		r.artifacts = memoryStorage.NewBlobStore()
		exporter, err := export.New(r.artifacts, export.Config{RunID: r.runID}, r.logger)
		if err != nil {
			return nil, nil, fmt.Errorf("init memory export: %w", err)
		}
		writers = append(writers, exporter)
		r.logger.Warn("no durable output configured, exporting stats to memory")
	}
	return stores, writers, nil
}

func (r *Runner) buildFetchers(deps Deps) (crawler.Fetcher, crawler.Fetcher, error) {
	probe := deps.Fetcher
	if probe == nil {
		f, err := collyfetcher.New(collyfetcher.Config{
			UserAgent:     r.cfg.Crawler.UserAgent,
			RespectRobots: r.cfg.Crawler.RespectRobots,
			Timeout:       r.cfg.RequestTimeout(),
			ProxyURLs:     r.cfg.Proxy.URLs,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("init fetcher: %w", err)
		}
		probe = f
	}

	if !r.cfg.Headless.Enabled {
		return probe, nil, nil
	}
	if deps.Headless != nil {
		return probe, deps.Headless, nil
	}
	var proxyServer string
	if len(r.cfg.Proxy.URLs) > 0 {
		proxyServer = r.cfg.Proxy.URLs[0]
	}
	userAgent := r.cfg.Crawler.UserAgent
	if userAgent == "" {
		userAgent = collyfetcher.DefaultUserAgent
	}
	chrome, err := headlessfetcher.NewChromedp(headlessfetcher.Config{
		MaxParallel:       r.cfg.Headless.MaxParallel,
		UserAgent:         userAgent,
		NavigationTimeout: r.cfg.NavTimeout(),
		ScrollPasses:      1,
		ProxyServer:       proxyServer,
	})
	if err != nil {
		r.logger.Warn("headless fetcher unavailable, promotions disabled", zap.Error(err))
		return probe, headlessfetcher.NewNoop(), nil
	}
	r.closers = append(r.closers, func() error { chrome.Close(); return nil })
	return probe, chrome, nil
}
