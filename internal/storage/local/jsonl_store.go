package local

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/JakeFAU/dice-jobs-crawler/internal/crawler"
)

// ListingsFile is the dataset file name inside a run directory.
const ListingsFile = "listings.jsonl"

// JSONLStore appends each saved listing as one JSON line to
// BaseDir/<run id>/listings.jsonl, so partial runs keep their output.
type JSONLStore struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
	path string
}

// NewJSONLStore opens (or creates) the dataset file for runID.
func NewJSONLStore(cfg Config, runID string) (*JSONLStore, error) {
	if err := ensureDir(cfg.BaseDir); err != nil {
		return nil, err
	}
	path, err := resolve(cfg.BaseDir, filepath.Join(runID, ListingsFile))
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create run directory: %w", err)
	}
	// #nosec G304 -- path is confined to BaseDir by resolve.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	return &JSONLStore{file: f, enc: json.NewEncoder(f), path: path}, nil
}

// SaveListing writes listing as a single line.
func (s *JSONLStore) SaveListing(_ context.Context, listing crawler.JobListingFull) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return fmt.Errorf("dataset %s is closed", s.path)
	}
	if err := s.enc.Encode(listing); err != nil {
		return fmt.Errorf("write listing %s: %w", listing.ID, err)
	}
	return nil
}

// Path returns the dataset file path.
func (s *JSONLStore) Path() string {
	return s.path
}

// Close flushes and closes the dataset file.
func (s *JSONLStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	if err != nil {
		return fmt.Errorf("close dataset: %w", err)
	}
	return nil
}
