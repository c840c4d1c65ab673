package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/example/shiftdesk/internal/ports/primary"
	"github.com/example/shiftdesk/internal/telemetry"
)

// ExitBatchApplier applies a batch of exit updates.
type ExitBatchApplier interface {
	ApplyExitBatch(ctx context.Context, reqs []primary.ExitStatsRequest) ([]*primary.LinkResult, error)
}

// ExitStatsQueue coalesces bursty exit updates. Updates for the same session
// collapse into one; the queue flushes when it reaches maxBatch or on every
// interval tick. Counters stay idempotent without it.
type ExitStatsQueue struct {
	applier  ExitBatchApplier
	interval time.Duration
	maxBatch int
	logger   *slog.Logger

	mu      sync.Mutex
	pending map[string]primary.ExitStatsRequest
	order   []string
	kick    chan struct{}
}

// NewExitStatsQueue creates a queue. Non-positive values fall back to one
// second and 100 updates.
func NewExitStatsQueue(applier ExitBatchApplier, interval time.Duration, maxBatch int, logger *slog.Logger) *ExitStatsQueue {
	if interval <= 0 {
		interval = time.Second
	}
	if maxBatch <= 0 {
		maxBatch = 100
	}
	return &ExitStatsQueue{
		applier:  applier,
		interval: interval,
		maxBatch: maxBatch,
		logger:   logger,
		pending:  make(map[string]primary.ExitStatsRequest),
		kick:     make(chan struct{}, 1),
	}
}

// Enqueue adds an update. It returns false when the session is already queued.
func (q *ExitStatsQueue) Enqueue(req primary.ExitStatsRequest) bool {
	q.mu.Lock()
	if _, dup := q.pending[req.SessionID]; dup {
		q.mu.Unlock()
		return false
	}
	q.pending[req.SessionID] = req
	q.order = append(q.order, req.SessionID)
	full := len(q.order) >= q.maxBatch
	depth := len(q.order)
	q.mu.Unlock()

	telemetry.ExitQueueDepth.Set(float64(depth))
	if full {
		select {
		case q.kick <- struct{}{}:
		default:
		}
	}
	return true
}

// Pending returns the number of queued updates.
func (q *ExitStatsQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.order)
}

// Flush applies everything queued so far and returns the number applied.
func (q *ExitStatsQueue) Flush(ctx context.Context) (int, error) {
	q.mu.Lock()
	batch := make([]primary.ExitStatsRequest, 0, len(q.order))
	for _, id := range q.order {
		batch = append(batch, q.pending[id])
	}
	q.pending = make(map[string]primary.ExitStatsRequest)
	q.order = nil
	q.mu.Unlock()

	telemetry.ExitQueueDepth.Set(0)
	if len(batch) == 0 {
		return 0, nil
	}
	if _, err := q.applier.ApplyExitBatch(ctx, batch); err != nil {
		q.requeue(batch)
		return 0, err
	}
	return len(batch), nil
}

// requeue puts a failed batch back in front of anything queued meanwhile.
func (q *ExitStatsQueue) requeue(batch []primary.ExitStatsRequest) {
	q.mu.Lock()
	defer q.mu.Unlock()
	order := make([]string, 0, len(batch)+len(q.order))
	for _, req := range batch {
		if _, dup := q.pending[req.SessionID]; dup {
			continue
		}
		q.pending[req.SessionID] = req
		order = append(order, req.SessionID)
	}
	q.order = append(order, q.order...)
	telemetry.ExitQueueDepth.Set(float64(len(q.order)))
}

// Run flushes on every tick or when the queue fills, until ctx is done.
// Remaining updates are flushed before it returns.
func (q *ExitStatsQueue) Run(ctx context.Context) error {
	ticker := time.NewTicker(q.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if _, err := q.Flush(context.WithoutCancel(ctx)); err != nil {
				q.logger.Warn("final exit stats flush failed", "err", err)
			}
			return nil
		case <-ticker.C:
		case <-q.kick:
		}
		if n, err := q.Flush(ctx); err != nil {
			q.logger.Warn("exit stats flush failed", "err", err)
		} else if n > 0 {
			q.logger.Debug("exit stats flushed", "count", n)
		}
	}
}
