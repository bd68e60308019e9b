// Package export uploads a run's dataset and statistics to any blob store
// (GCS, local disk, memory) once the run has finished.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/dice-jobs-crawler/internal/crawler"
	"github.com/JakeFAU/dice-jobs-crawler/internal/stats"
)

// Object names written under <prefix>/<run id>/.
const (
	ListingsObject = "listings.jsonl"
	StatsObject    = "stats.json"
)

// Config controls what the Exporter writes and where.
type Config struct {
	Prefix string
	RunID  string
	// BufferListings makes the Exporter a ListingStore that uploads the
	// dataset alongside stats.json. Leave it off when another store already
	// writes the dataset.
	BufferListings bool
}

// Exporter buffers listings and writes them plus the run summary on WriteStats.
type Exporter struct {
	blobs  crawler.BlobStore
	cfg    Config
	logger *zap.Logger

	mu    sync.Mutex
	buf   bytes.Buffer
	count int
}

// New constructs an Exporter over blobs.
func New(blobs crawler.BlobStore, cfg Config, logger *zap.Logger) (*Exporter, error) {
	if blobs == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	if strings.TrimSpace(cfg.RunID) == "" {
		return nil, fmt.Errorf("run id is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{blobs: blobs, cfg: cfg, logger: logger.Named("export")}, nil
}

// SaveListing buffers listing for upload. It is a no-op unless BufferListings is set.
func (e *Exporter) SaveListing(_ context.Context, listing crawler.JobListingFull) error {
	if !e.cfg.BufferListings {
		return nil
	}
	line, err := json.Marshal(listing)
	if err != nil {
		return fmt.Errorf("marshal listing %s: %w", listing.ID, err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.buf.Write(line)
	e.buf.WriteByte('\n')
	e.count++
	return nil
}

// WriteStats uploads the buffered dataset (when enabled) and stats.json.
func (e *Exporter) WriteStats(ctx context.Context, summary stats.Summary) error {
	if e.cfg.BufferListings {
		e.mu.Lock()
		data := append([]byte(nil), e.buf.Bytes()...)
		count := e.count
		e.mu.Unlock()

		uri, err := e.blobs.PutObject(ctx, e.objectPath(ListingsObject), "application/x-ndjson", bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("upload dataset: %w", err)
		}
		e.logger.Info("dataset exported", zap.String("uri", uri), zap.Int("listings", count))
	}

	body, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal stats: %w", err)
	}
	uri, err := e.blobs.PutObject(ctx, e.objectPath(StatsObject), "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("upload stats: %w", err)
	}
	e.logger.Info("stats exported", zap.String("uri", uri), zap.String("run_id", summary.RunID))
	return nil
}

func (e *Exporter) objectPath(name string) string {
	return path.Join(strings.Trim(e.cfg.Prefix, "/"), e.cfg.RunID, name)
}
