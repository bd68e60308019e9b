package sink

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/dice-jobs-crawler/internal/crawler"
	"github.com/JakeFAU/dice-jobs-crawler/internal/hash/sha256"
	pubmemory "github.com/JakeFAU/dice-jobs-crawler/internal/publisher/memory"
	"github.com/JakeFAU/dice-jobs-crawler/internal/stats"
	"github.com/JakeFAU/dice-jobs-crawler/internal/storage/memory"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

var testNow = time.Date(2025, time.March, 20, 12, 0, 0, 0, time.UTC)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) SaveListing(ctx context.Context, listing crawler.JobListingFull) error {
	args := m.Called(ctx, listing)
	return args.Error(0)
}

func listing(id, url string, source crawler.ListingSource) crawler.JobListingFull {
	return crawler.JobListingFull{JobListingBasic: crawler.JobListingBasic{ID: id, URL: url, Title: "Go", Source: source}}
}

func TestKey(t *testing.T) {
	t.Parallel()

	require.Equal(t, "id:abc", Key(listing("abc", "https://x/1", crawler.SourceAPI)))
	require.Equal(t, "url:https://x/1", Key(listing("job-1742472000000-3", "https://x/1", crawler.SourceHTML)))
	require.Equal(t, "url:https://x/2", Key(listing("", "https://x/2", crawler.SourceHTML)))
}

func TestDedupFirstRecordWins(t *testing.T) {
	t.Parallel()

	store := memory.NewListingStore()
	pub := pubmemory.New()
	collector := stats.NewCollector("run-1", nil)
	d := NewDedup([]crawler.ListingStore{store}, pub, sha256.New(), fixedClock{testNow}, collector,
		Config{RunID: "run-1", Topic: "listings"}, zap.NewNop())

	ctx := context.Background()
	first := listing("abc", "https://www.dice.com/job-detail/abc", crawler.SourceAPI)
	first.Title = "From API"
	second := listing("abc", "https://www.dice.com/job-detail/abc", crawler.SourceHTML)
	second.Title = "From HTML"

	require.NoError(t, d.Persist(ctx, first))
	require.NoError(t, d.Persist(ctx, second))

	saved := store.Listings()
	require.Len(t, saved, 1)
	require.Equal(t, "From API", saved[0].Title)
	require.Equal(t, testNow, saved[0].ScrapedAt)

	s := collector.Summary(testNow)
	require.Equal(t, int64(1), s.ListingsPersisted)
	require.Equal(t, int64(1), s.Duplicates)

	msgs := pub.Topic("listings")
	require.Len(t, msgs, 1)
	payload := msgs[0].(map[string]any)
	require.Equal(t, "abc", payload["id"])
	require.Equal(t, "run-1", payload["run_id"])
	require.Equal(t, "2025-03-20T12:00:00Z", payload["scrapedAt"])
}

// Stores are append-only, so a later record with more fields cannot replace
// the one already saved.
func TestDedupRicherDuplicateIsDropped(t *testing.T) {
	t.Parallel()

	store := memory.NewListingStore()
	collector := stats.NewCollector("run-1", nil)
	d := NewDedup([]crawler.ListingStore{store}, nil, nil, fixedClock{testNow}, collector, Config{RunID: "run-1"}, zap.NewNop())

	ctx := context.Background()
	degraded := listing("abc", "https://www.dice.com/job-detail/abc", crawler.SourceHTML)
	degraded.DetailError = "fetch failed: timeout"
	richer := listing("abc", "https://www.dice.com/job-detail/abc", crawler.SourceDetail)
	lo, hi := 100000.0, 120000.0
	richer.SalaryDetails = &crawler.SalaryDetails{Min: &lo, Max: &hi, Currency: "USD", Period: "year"}

	require.NoError(t, d.Persist(ctx, degraded))
	require.NoError(t, d.Persist(ctx, richer))

	saved := store.Listings()
	require.Len(t, saved, 1)
	require.Equal(t, crawler.SourceHTML, saved[0].Source)
	require.Nil(t, saved[0].SalaryDetails)
	require.NotEmpty(t, saved[0].DetailError)
	require.Equal(t, int64(1), collector.Summary(testNow).Duplicates)
}

func TestDedupSyntheticIDsUseURL(t *testing.T) {
	t.Parallel()

	store := memory.NewListingStore()
	d := NewDedup([]crawler.ListingStore{store}, nil, nil, fixedClock{testNow}, nil, Config{}, nil)

	ctx := context.Background()
	require.NoError(t, d.Persist(ctx, listing("job-1-0", "https://x/a", crawler.SourceHTML)))
	require.NoError(t, d.Persist(ctx, listing("job-2-0", "https://x/a", crawler.SourceHTML)))
	require.NoError(t, d.Persist(ctx, listing("job-2-1", "https://x/b", crawler.SourceHTML)))
	require.Equal(t, 2, store.Len())
}

func TestDedupKeepsExistingScrapedAt(t *testing.T) {
	t.Parallel()

	store := memory.NewListingStore()
	d := NewDedup([]crawler.ListingStore{store}, nil, nil, fixedClock{testNow}, nil, Config{}, nil)

	l := listing("abc", "https://x/a", crawler.SourceDetail)
	earlier := testNow.Add(-time.Minute)
	l.ScrapedAt = earlier
	require.NoError(t, d.Persist(context.Background(), l))
	require.Equal(t, earlier, store.Listings()[0].ScrapedAt)
}

func TestDedupRejectsInvalid(t *testing.T) {
	t.Parallel()

	store := &mockStore{}
	collector := stats.NewCollector("run", nil)
	d := NewDedup([]crawler.ListingStore{store}, nil, nil, fixedClock{testNow}, collector, Config{}, nil)

	require.Error(t, d.Persist(context.Background(), listing("", "", crawler.SourceAPI)))
	require.Error(t, d.Persist(context.Background(), listing("abc", "", crawler.SourceAPI)))
	require.Equal(t, int64(2), collector.Summary(testNow).Rejected)
	store.AssertNotCalled(t, "SaveListing", mock.Anything, mock.Anything)
}

func TestDedupStoreFailure(t *testing.T) {
	t.Parallel()

	good := &mockStore{}
	bad := &mockStore{}
	good.On("SaveListing", mock.Anything, mock.AnythingOfType("crawler.JobListingFull")).Return(nil).Once()
	bad.On("SaveListing", mock.Anything, mock.AnythingOfType("crawler.JobListingFull")).Return(errors.New("disk full")).Once()

	collector := stats.NewCollector("run", nil)
	d := NewDedup([]crawler.ListingStore{good, bad}, nil, nil, fixedClock{testNow}, collector, Config{}, nil)

	err := d.Persist(context.Background(), listing("abc", "https://x/a", crawler.SourceAPI))
	require.ErrorContains(t, err, "disk full")
	require.Equal(t, int64(1), collector.Summary(testNow).Rejected)
	good.AssertExpectations(t)
	bad.AssertExpectations(t)
}

func TestDedupConcurrentPersist(t *testing.T) {
	t.Parallel()

	store := memory.NewListingStore()
	d := NewDedup([]crawler.ListingStore{store}, nil, sha256.New(), fixedClock{testNow}, nil, Config{}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = d.Persist(context.Background(), listing("same", "https://x/a", crawler.SourceAPI))
		}()
	}
	wg.Wait()
	require.Equal(t, 1, store.Len())
}

func TestDedupPublishFailureKeepsListing(t *testing.T) {
	t.Parallel()

	store := memory.NewListingStore()
	pub := pubmemory.New()
	pub.FailWith(errors.New("pubsub unavailable"))
	collector := stats.NewCollector("run-1", nil)
	d := NewDedup([]crawler.ListingStore{store}, pub, nil, fixedClock{testNow}, collector,
		Config{RunID: "run-1", Topic: "listings"}, zap.NewNop())

	require.NoError(t, d.Persist(context.Background(), listing("abc", "https://www.dice.com/job-detail/abc", crawler.SourceAPI)))
	require.Equal(t, 1, store.Len())
	require.Equal(t, int64(1), collector.Summary(testNow).ListingsPersisted)
	require.Empty(t, pub.Messages())
}
