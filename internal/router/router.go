// Package router turns fetched responses into listings and follow-up requests.
// It is the crawler.Handler behind the worker pool: one handler per request
// label, pagination decisions, and the job cap.
package router

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/dice-jobs-crawler/internal/crawler"
	"github.com/JakeFAU/dice-jobs-crawler/internal/extract"
	"github.com/JakeFAU/dice-jobs-crawler/internal/normalize"
	"github.com/JakeFAU/dice-jobs-crawler/internal/searchapi"
	"github.com/JakeFAU/dice-jobs-crawler/internal/stats"
)

// ErrUnexpectedStatus is returned for responses outside the 2xx range.
var ErrUnexpectedStatus = errors.New("unexpected status")

// Config carries the site endpoints the router needs to build follow-up requests.
type Config struct {
	BaseURL  string
	Endpoint searchapi.Endpoint
}

// detailExtractor turns a parsed detail page into a full listing.
type detailExtractor func(doc *goquery.Document, basic *crawler.JobListingBasic, pageURL string, now time.Time) (crawler.JobListingFull, error)

// Router implements crawler.Handler.
type Router struct {
	state     *RunState
	scheduler crawler.Scheduler
	sink      crawler.Sink
	clock     crawler.Clock
	collector *stats.Collector
	extractor detailExtractor
	cfg       Config
	logger    *zap.Logger
}

// New constructs a Router. clock and collector may be nil.
func New(
	state *RunState,
	scheduler crawler.Scheduler,
	sink crawler.Sink,
	clock crawler.Clock,
	collector *stats.Collector,
	cfg Config,
	logger *zap.Logger,
) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		state:     state,
		scheduler: scheduler,
		sink:      sink,
		clock:     clock,
		collector: collector,
		extractor: extract.ExtractJobDetails,
		cfg:       cfg,
		logger:    logger.Named("router"),
	}
}

// Handle dispatches resp to the handler for req's variant.
func (r *Router) Handle(ctx context.Context, req crawler.Request, resp crawler.FetchResponse) error {
	if resp.StatusCode != 0 && (resp.StatusCode < 200 || resp.StatusCode > 299) {
		return fmt.Errorf("%w: %w", ErrUnexpectedStatus, &crawler.StatusError{URL: req.Target(), StatusCode: resp.StatusCode})
	}
	switch req := req.(type) {
	case crawler.SearchAPIRequest:
		return r.handleSearchAPI(ctx, req, resp)
	case crawler.SearchHTMLRequest:
		return r.handleSearch(ctx, req, resp)
	case crawler.JobDetailRequest:
		return r.handleDetail(ctx, req, resp)
	default:
		r.logger.Warn("unrouted request", zap.String("label", string(req.Label())), zap.String("url", req.Target()))
		return nil
	}
}

// Failed is called once req has exhausted its retries. A detail request that
// carried a search record still yields that record, marked with the error.
func (r *Router) Failed(ctx context.Context, req crawler.Request, err error) {
	r.logger.Error("request abandoned",
		zap.String("label", string(req.Label())),
		zap.String("url", req.Target()),
		zap.Error(err),
	)
	detail, ok := req.(crawler.JobDetailRequest)
	if !ok || detail.Basic == nil {
		return
	}
	r.collector.DetailFailed()
	full := extract.FromBasic(*detail.Basic)
	full.DetailError = fmt.Sprintf("fetch failed: %v", err)
	r.persist(ctx, full)
}

func (r *Router) handleSearchAPI(ctx context.Context, req crawler.SearchAPIRequest, resp crawler.FetchResponse) error {
	page := req.Params.Page
	logger := r.logger.With(zap.String("label", string(crawler.LabelSearchAPI)), zap.Int("page", page))
	if !r.state.ShouldContinue() {
		logger.Debug("job cap reached, skipping page")
		return nil
	}

	result, err := searchapi.DecodeSearchResponse(resp.Body)
	if err != nil {
		logger.Warn("search response unusable, page exhausted", zap.String("url", req.URL), zap.Error(err))
		return nil
	}

	now := r.now()
	emitted := 0
	for _, job := range result.Data {
		if !r.state.Reserve() {
			break
		}
		basic := searchapi.ParseJobFromAPI(job, r.cfg.BaseURL, now)
		r.emit(ctx, basic)
		emitted++
	}

	current := result.Meta.CurrentPageOr(page)
	logger.Info("search page processed",
		zap.Int("jobs", len(result.Data)),
		zap.Int("emitted", emitted),
		zap.Int("total_pages", result.Meta.TotalPages),
	)
	if !r.state.ShouldContinue() || current >= result.Meta.TotalPages {
		return nil
	}
	params := req.Params
	params.Page = current
	next := r.cfg.Endpoint.Request(params.NextPage())
	r.schedule(ctx, next)
	return nil
}

func (r *Router) handleSearch(ctx context.Context, req crawler.SearchHTMLRequest, resp crawler.FetchResponse) error {
	page := max(req.Page, 1)
	logger := r.logger.With(zap.String("label", string(crawler.LabelSearch)), zap.Int("page", page))
	if !r.state.ShouldContinue() {
		logger.Debug("job cap reached, skipping page")
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return fmt.Errorf("parse search page %s: %w", req.URL, err)
	}

	cards := extract.ParseSearchCards(doc, req.URL, r.now())
	if len(cards) == 0 {
		logger.Warn("no job cards found", zap.String("url", req.URL))
		return nil
	}
	emitted := 0
	for _, basic := range cards {
		if !r.state.Reserve() {
			break
		}
		r.emit(ctx, basic)
		emitted++
	}
	logger.Info("search page processed", zap.Int("jobs", len(cards)), zap.Int("emitted", emitted))

	if !r.state.ShouldContinue() {
		return nil
	}
	if next, ok := extract.NextPageURL(doc, req.URL, page); ok {
		r.schedule(ctx, crawler.SearchHTMLRequest{URL: next, Page: page + 1})
	}
	return nil
}

func (r *Router) handleDetail(ctx context.Context, req crawler.JobDetailRequest, resp crawler.FetchResponse) error {
	if req.Basic == nil {
		// Custom start URLs are not reserved upstream.
		if !r.state.Reserve() {
			r.logger.Debug("job cap reached, skipping detail", zap.String("url", req.URL))
			return nil
		}
		r.collector.JobScraped()
	}

	now := r.now()
	full, err := r.extractDetail(req, resp.Body, now)
	if err != nil {
		r.degrade(ctx, req, now, err)
		return nil
	}
	r.persist(ctx, full)
	return nil
}

func (r *Router) extractDetail(req crawler.JobDetailRequest, body []byte, now time.Time) (full crawler.JobListingFull, err error) {
	defer func() {
		if p := recover(); p != nil {
			full = crawler.JobListingFull{}
			err = fmt.Errorf("detail extraction panicked: %v", p)
		}
	}()
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return crawler.JobListingFull{}, fmt.Errorf("parse detail page: %w", err)
	}
	return r.extractor(doc, req.Basic, req.URL, now)
}

// degrade persists what is known about a listing whose detail page could not
// be extracted.
func (r *Router) degrade(ctx context.Context, req crawler.JobDetailRequest, now time.Time, cause error) {
	r.collector.DetailFailed()
	r.logger.Warn("detail extraction failed, keeping search record",
		zap.String("url", req.URL),
		zap.Error(cause),
	)
	var basic crawler.JobListingBasic
	if req.Basic != nil {
		basic = *req.Basic
	} else {
		basic = crawler.JobListingBasic{
			URL:        req.URL,
			Title:      extract.UnknownTitle,
			Company:    extract.UnknownCompany,
			Location:   extract.UnknownLocation,
			PostedDate: extract.UnknownPosted,
			Source:     crawler.SourceDetail,
		}
		if id, ok := normalize.ExtractJobIDFromURL(req.URL); ok {
			basic.ID = id
		} else {
			basic.ID = fmt.Sprintf("job-%d", now.UnixMilli())
		}
	}
	full := extract.FromBasic(basic)
	full.DetailError = cause.Error()
	r.persist(ctx, full)
}

// emit queues a detail visit for basic, or persists it directly when detail
// scraping is off.
func (r *Router) emit(ctx context.Context, basic crawler.JobListingBasic) {
	r.collector.JobScraped()
	if r.state.ScrapeJobDetails() && basic.URL != "" {
		carried := basic
		r.schedule(ctx, crawler.JobDetailRequest{URL: basic.URL, Basic: &carried})
		return
	}
	basic.Stamp(r.now())
	r.persist(ctx, extract.FromBasic(basic))
}

func (r *Router) schedule(ctx context.Context, req crawler.Request) {
	added, err := r.scheduler.Schedule(ctx, req)
	if err != nil {
		r.logger.Warn("schedule failed",
			zap.String("label", string(req.Label())),
			zap.String("url", req.Target()),
			zap.Error(err),
		)
		return
	}
	if added == 0 {
		r.logger.Debug("request already scheduled", zap.String("url", req.Target()))
	}
}

func (r *Router) persist(ctx context.Context, listing crawler.JobListingFull) {
	if err := r.sink.Persist(ctx, listing); err != nil {
		r.logger.Error("persist listing failed",
			zap.String("job_id", listing.ID),
			zap.String("url", listing.URL),
			zap.Error(err),
		)
	}
}

func (r *Router) now() time.Time {
	if r.clock == nil {
		return time.Now().UTC()
	}
	return r.clock.Now()
}
