// Package dispatcher manages worker fan-out over the request queue.
package dispatcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/dice-jobs-crawler/internal/crawler"
	"github.com/JakeFAU/dice-jobs-crawler/internal/metrics"
	"github.com/JakeFAU/dice-jobs-crawler/internal/worker"
)

const depthInterval = time.Second

// Dispatcher fans out queue work to a pool of workers.
type Dispatcher struct {
	queue   crawler.Queue
	workers []*worker.Worker
	logger  *zap.Logger
}

// New creates a Dispatcher.
func New(queue crawler.Queue, workers []*worker.Worker, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	return &Dispatcher{
		queue:   queue,
		workers: workers,
		logger:  logger.Named("dispatcher"),
	}
}

// Run starts all workers and blocks until they exit, which happens when the
// queue drains or ctx finishes. Seeds must be enqueued before Run.
func (d *Dispatcher) Run(ctx context.Context) {
	if d.queue.Len() == 0 {
		d.logger.Warn("nothing to crawl, queue is empty")
		d.queue.Close()
	}

	depthCtx, stopDepth := context.WithCancel(ctx)
	defer stopDepth()
	go d.reportDepth(depthCtx)

	d.logger.Info("starting workers", zap.Int("workers", len(d.workers)))
	var wg sync.WaitGroup
	for _, w := range d.workers {
		wg.Add(1)
		go func(wk *worker.Worker) {
			defer wg.Done()
			wk.Run(ctx)
		}(w)
	}
	wg.Wait()
	metrics.SetQueueDepth(d.queue.Len())
	d.logger.Info("workers stopped")
}

// Enqueue adds seed requests and returns how many were new.
func (d *Dispatcher) Enqueue(ctx context.Context, reqs ...crawler.Request) (int, error) {
	added := 0
	for _, req := range reqs {
		ok, err := d.queue.Enqueue(ctx, req)
		if err != nil {
			return added, fmt.Errorf("queue enqueue: %w", err)
		}
		if ok {
			added++
		}
	}
	return added, nil
}

func (d *Dispatcher) reportDepth(ctx context.Context) {
	ticker := time.NewTicker(depthInterval)
	defer ticker.Stop()
	for {
		metrics.SetQueueDepth(d.queue.Len())
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
