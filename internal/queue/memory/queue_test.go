package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/dice-jobs-crawler/internal/crawler"
)

func detail(u string) crawler.Request {
	return crawler.JobDetailRequest{URL: u}
}

func TestQueueFIFOAndDedup(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	ctx := context.Background()

	added, err := q.Schedule(ctx, detail("https://x/a"), detail("https://x/b"), detail("https://x/a"))
	require.NoError(t, err)
	require.Equal(t, 2, added)

	ok, err := q.Enqueue(ctx, detail("https://x/b"))
	require.NoError(t, err)
	require.False(t, ok)

	// Same URL under a different label is a different key.
	ok, err = q.Enqueue(ctx, crawler.SearchHTMLRequest{URL: "https://x/a", Page: 1})
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 3, q.Len())
	require.Equal(t, 3, q.Seen())

	first, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.Equal(t, "https://x/a", first.Target())
	require.Equal(t, crawler.LabelJobDetail, first.Label())
	second, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.Equal(t, "https://x/b", second.Target())
}

func TestQueueDequeueBlocksUntilEnqueue(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	result := make(chan crawler.Request, 1)
	go func() {
		req, err := q.Dequeue(context.Background())
		if err == nil {
			result <- req
		}
	}()

	time.Sleep(10 * time.Millisecond)
	_, err := q.Enqueue(context.Background(), detail("https://x/late"))
	require.NoError(t, err)

	select {
	case got := <-result:
		require.Equal(t, "https://x/late", got.Target())
	case <-time.After(time.Second):
		t.Fatal("dequeue did not return request")
	}
}

func TestQueueCancelation(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := q.Dequeue(ctx)
	require.ErrorIs(t, err, context.Canceled)
	_, err = q.Enqueue(ctx, detail("https://x/a"))
	require.ErrorIs(t, err, context.Canceled)
}

func TestQueueCloseWakesWaiters(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	errs := make(chan error, 3)
	for i := 0; i < 3; i++ {
		go func() {
			_, err := q.Dequeue(context.Background())
			errs <- err
		}()
	}
	time.Sleep(10 * time.Millisecond)
	q.Close()
	q.Close()

	for i := 0; i < 3; i++ {
		select {
		case err := <-errs:
			require.ErrorIs(t, err, crawler.ErrQueueClosed)
		case <-time.After(time.Second):
			t.Fatal("waiter not woken by Close")
		}
	}
	_, err := q.Enqueue(context.Background(), detail("https://x/a"))
	require.ErrorIs(t, err, crawler.ErrQueueClosed)
}

func TestQueueClosesWhenDrained(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	ctx := context.Background()
	_, err := q.Enqueue(ctx, detail("https://x/seed"))
	require.NoError(t, err)

	seed, err := q.Dequeue(ctx)
	require.NoError(t, err)
	// Handling the seed schedules follow-up work before it is marked done.
	_, err = q.Schedule(ctx, detail(seed.Target()+"/next"))
	require.NoError(t, err)
	q.Done()

	next, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.Equal(t, "https://x/seed/next", next.Target())
	q.Done()

	_, err = q.Dequeue(ctx)
	require.ErrorIs(t, err, crawler.ErrQueueClosed)
}

func TestQueueConcurrentConsumers(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	ctx := context.Background()
	const total = 200
	for i := 0; i < total; i++ {
		_, err := q.Enqueue(ctx, detail(fmt.Sprintf("https://x/%d", i)))
		require.NoError(t, err)
	}

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		got = make(map[string]int)
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				req, err := q.Dequeue(ctx)
				if err != nil {
					return
				}
				mu.Lock()
				got[req.Target()]++
				mu.Unlock()
				q.Done()
			}
		}()
	}
	wg.Wait()

	require.Len(t, got, total)
	for _, n := range got {
		require.Equal(t, 1, n)
	}
}
