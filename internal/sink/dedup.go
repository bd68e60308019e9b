// Package sink is the single persistence boundary for finalized listings. It
// drops duplicates produced by the API and HTML pipelines and fans accepted
// records out to the configured stores and publisher.
package sink

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/dice-jobs-crawler/internal/crawler"
	"github.com/JakeFAU/dice-jobs-crawler/internal/stats"
)

// syntheticPrefix marks IDs the crawler made up because the source had none.
const syntheticPrefix = "job-"

// Config controls Dedup behavior.
type Config struct {
	RunID string
	// Topic is the publish topic. Publishing is off when empty.
	Topic string
}

// Dedup is a de-duplicating crawler.Sink. The first record for a key wins,
// even when a later duplicate carries more fields: stores are append-only.
type Dedup struct {
	stores    []crawler.ListingStore
	publisher crawler.Publisher
	hasher    crawler.Hasher
	clock     crawler.Clock
	collector *stats.Collector
	cfg       Config
	logger    *zap.Logger

	mu   sync.Mutex
	seen map[string]struct{}
}

// NewDedup constructs a Dedup. publisher, hasher and collector may be nil.
func NewDedup(
	stores []crawler.ListingStore,
	publisher crawler.Publisher,
	hasher crawler.Hasher,
	clock crawler.Clock,
	collector *stats.Collector,
	cfg Config,
	logger *zap.Logger,
) *Dedup {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dedup{
		stores:    stores,
		publisher: publisher,
		hasher:    hasher,
		clock:     clock,
		collector: collector,
		cfg:       cfg,
		logger:    logger.Named("sink"),
		seen:      make(map[string]struct{}),
	}
}

// Key returns the de-duplication key for a listing: its ID, or its URL when
// the ID was synthesized.
func Key(listing crawler.JobListingFull) string {
	id := strings.TrimSpace(listing.ID)
	if id == "" || strings.HasPrefix(id, syntheticPrefix) {
		return "url:" + strings.TrimSpace(listing.URL)
	}
	return "id:" + id
}

// Persist stamps, validates and stores listing. Duplicates are counted and
// dropped without error.
func (d *Dedup) Persist(ctx context.Context, listing crawler.JobListingFull) error {
	listing.Stamp(d.now())
	if err := listing.Validate(); err != nil {
		d.collector.ListingRejected(listing.Source)
		return fmt.Errorf("reject listing: %w", err)
	}

	first, err := d.claim(Key(listing))
	if err != nil {
		d.collector.ListingRejected(listing.Source)
		return err
	}
	if !first {
		d.collector.ListingDuplicate(listing.Source)
		d.logger.Debug("duplicate listing dropped",
			zap.String("job_id", listing.ID),
			zap.String("url", listing.URL),
			zap.String("source", string(listing.Source)),
		)
		return nil
	}

	var errs []error
	for _, store := range d.stores {
		if err := store.SaveListing(ctx, listing); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		d.collector.ListingRejected(listing.Source)
		return fmt.Errorf("save listing %s: %w", listing.ID, err)
	}
	d.collector.ListingPersisted(listing.Source)
	d.publish(ctx, listing)
	return nil
}

func (d *Dedup) claim(key string) (bool, error) {
	if d.hasher != nil {
		sum, err := d.hasher.Hash([]byte(key))
		if err != nil {
			return false, fmt.Errorf("hash key: %w", err)
		}
		key = sum
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.seen[key]; ok {
		return false, nil
	}
	d.seen[key] = struct{}{}
	return true, nil
}

func (d *Dedup) publish(ctx context.Context, listing crawler.JobListingFull) {
	if d.cfg.Topic == "" || d.publisher == nil {
		return
	}
	payload := map[string]any{
		"id":        listing.ID,
		"url":       listing.URL,
		"title":     listing.Title,
		"company":   listing.Company,
		"source":    string(listing.Source),
		"scrapedAt": listing.ScrapedAt.Format(time.RFC3339),
		"run_id":    d.cfg.RunID,
	}
	if _, err := d.publisher.Publish(ctx, d.cfg.Topic, payload); err != nil {
		d.logger.Warn("publish listing failed", zap.String("job_id", listing.ID), zap.Error(err))
	}
}

func (d *Dedup) now() time.Time {
	if d.clock == nil {
		return time.Now().UTC()
	}
	return d.clock.Now()
}
