package memory

import (
	"context"
	"sync"

	"github.com/JakeFAU/dice-jobs-crawler/internal/crawler"
)

// ListingStore keeps persisted listings in insertion order.
type ListingStore struct {
	mu       sync.RWMutex
	listings []crawler.JobListingFull
}

// NewListingStore constructs an empty ListingStore.
func NewListingStore() *ListingStore {
	return &ListingStore{}
}

// SaveListing appends listing.
func (s *ListingStore) SaveListing(_ context.Context, listing crawler.JobListingFull) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listings = append(s.listings, listing)
	return nil
}

// Listings returns a copy of everything saved so far.
func (s *ListingStore) Listings() []crawler.JobListingFull {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]crawler.JobListingFull, len(s.listings))
	copy(out, s.listings)
	return out
}

// Len reports how many listings were saved.
func (s *ListingStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.listings)
}
