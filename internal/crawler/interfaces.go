package crawler

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	// ErrQueueClosed is returned by Queue.Dequeue once the queue is closed and empty.
	ErrQueueClosed = errors.New("queue closed")
	// ErrDuplicateRequest marks a request whose key was already scheduled.
	ErrDuplicateRequest = errors.New("duplicate request")
)

// Fetcher fetches a URL and returns the body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// HeadlessDetector decides whether a headless fetch is warranted.
type HeadlessDetector interface {
	ShouldPromote(probe FetchResponse) bool
}

// Queue provides de-duplicating enqueue/dequeue semantics for requests.
type Queue interface {
	// Enqueue adds req unless its key was seen before. It reports whether req was added.
	Enqueue(ctx context.Context, req Request) (bool, error)
	Dequeue(ctx context.Context) (Request, error)
	// Done marks a dequeued request as fully handled, including any follow-up
	// requests it scheduled.
	Done()
	Len() int
	Close()
}

// Scheduler is the narrow view handlers get of the queue.
type Scheduler interface {
	Schedule(ctx context.Context, reqs ...Request) (int, error)
}

// Handler processes a fetched request.
type Handler interface {
	Handle(ctx context.Context, req Request, resp FetchResponse) error
	// Failed is called once a request has exhausted its retries.
	Failed(ctx context.Context, req Request, err error)
}

// Sink accepts finalized listings.
type Sink interface {
	Persist(ctx context.Context, listing JobListingFull) error
}

// ListingStore is a persistence backend behind the sink.
type ListingStore interface {
	SaveListing(ctx context.Context, listing JobListingFull) error
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Publisher pushes listing notifications to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// RetryPolicy decides whether and when to retry a failed request.
type RetryPolicy interface {
	ShouldRetry(err error, attempt int) bool
	Backoff(attempt int) time.Duration
}

// RateLimiter blocks until a fetch to url is permitted.
type RateLimiter interface {
	Wait(ctx context.Context, url string) error
}

// Hasher computes digests for deduplication keys.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
