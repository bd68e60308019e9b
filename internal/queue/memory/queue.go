// Package memory provides the in-process crawl frontier.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/JakeFAU/dice-jobs-crawler/internal/crawler"
)

// Queue is an unbounded FIFO that ignores requests whose key it has already
// seen. It closes itself once every enqueued request has been dequeued and
// marked Done, which is how a crawl run knows it has drained.
type Queue struct {
	mu          sync.Mutex
	items       []crawler.Request
	seen        map[string]struct{}
	outstanding int
	closed      bool

	notify   chan struct{}
	closedCh chan struct{}
}

// NewQueue constructs an empty queue.
func NewQueue() *Queue {
	return &Queue{
		seen:     make(map[string]struct{}),
		notify:   make(chan struct{}, 1),
		closedCh: make(chan struct{}),
	}
}

// Enqueue appends req. A request with an already seen key is dropped and
// reported as not added.
func (q *Queue) Enqueue(ctx context.Context, req crawler.Request) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("enqueue canceled: %w", err)
	}
	err := q.push(req)
	if errors.Is(err, crawler.ErrDuplicateRequest) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Schedule enqueues reqs and returns how many were new. It satisfies
// crawler.Scheduler.
func (q *Queue) Schedule(ctx context.Context, reqs ...crawler.Request) (int, error) {
	added := 0
	for _, req := range reqs {
		ok, err := q.Enqueue(ctx, req)
		if err != nil {
			return added, err
		}
		if ok {
			added++
		}
	}
	return added, nil
}

func (q *Queue) push(req crawler.Request) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return crawler.ErrQueueClosed
	}
	key := req.Key()
	if _, ok := q.seen[key]; ok {
		return crawler.ErrDuplicateRequest
	}
	q.seen[key] = struct{}{}
	q.items = append(q.items, req)
	q.outstanding++
	q.signal()
	return nil
}

// Dequeue pops the oldest request, blocking until one is available, the
// queue closes, or ctx ends.
func (q *Queue) Dequeue(ctx context.Context) (crawler.Request, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			req := q.items[0]
			q.items[0] = nil
			q.items = q.items[1:]
			if len(q.items) > 0 {
				q.signal()
			}
			q.mu.Unlock()
			return req, nil
		}
		if q.closed {
			q.mu.Unlock()
			return nil, crawler.ErrQueueClosed
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("dequeue canceled: %w", ctx.Err())
		case <-q.closedCh:
		case <-q.notify:
		}
	}
}

// Done marks one dequeued request as handled. When nothing is queued or in
// flight afterwards, the queue closes.
func (q *Queue) Done() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.outstanding > 0 {
		q.outstanding--
	}
	if q.outstanding == 0 {
		q.closeLocked()
	}
}

// Len returns the number of queued, not yet dequeued, requests.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Seen returns the number of distinct keys ever enqueued.
func (q *Queue) Seen() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.seen)
}

// Close stops accepting requests and wakes blocked Dequeue calls. Requests
// already queued can still be dequeued.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closeLocked()
}

func (q *Queue) closeLocked() {
	if q.closed {
		return
	}
	q.closed = true
	close(q.closedCh)
}

func (q *Queue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}
