package worker

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"
	"todoTree/internal/date"
	"todoTree/internal/hierarchy"
	"todoTree/internal/logger"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

const (
	defaultInterval    = 15 * time.Minute
	defaultConcurrency = 4
)

// Source is the read side of the task service the worker needs.
type Source interface {
	Owners(ctx context.Context) ([]uuid.UUID, error)
	Snapshot(ctx context.Context, userID uuid.UUID) (*hierarchy.Snapshot, error)
}

// Notifier receives the open tasks of one user that are due today or
// tomorrow. It is only called when tasks is not empty.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, today date.Date, tasks []*hierarchy.Node) error
}

type DueSoonWorker struct {
	source      Source
	notifier    Notifier
	interval    time.Duration
	concurrency int
}

type Option func(*DueSoonWorker)

func WithInterval(d time.Duration) Option {
	return func(w *DueSoonWorker) {
		if d > 0 {
			w.interval = d
		}
	}
}

func WithConcurrency(n int) Option {
	return func(w *DueSoonWorker) {
		if n > 0 {
			w.concurrency = n
		}
	}
}

func NewDueSoonWorker(source Source, notifier Notifier, opts ...Option) *DueSoonWorker {
	w := &DueSoonWorker{
		source:      source,
		notifier:    notifier,
		interval:    defaultInterval,
		concurrency: defaultConcurrency,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start runs a check immediately and then on every tick until ctx is done.
func (w *DueSoonWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	logger.Info("Worker: due-soon check started", zap.Duration("interval", w.interval))
	w.Check(ctx)

	for {
		select {
		case <-ticker.C:
			w.Check(ctx)
		case <-ctx.Done():
			logger.Info("Worker: due-soon check stopping")
			return
		}
	}
}

// Report summarizes one Check.
type Report struct {
	Owners   int
	Notified int
	Tasks    int
	Failed   int
}

// Check scans every owner once. A failure for one owner is logged and does
// not stop the others.
func (w *DueSoonWorker) Check(ctx context.Context) Report {
	start := time.Now()

	owners, err := w.source.Owners(ctx)
	if err != nil {
		logger.Warn("Worker: failed to list owners", zap.Error(err))
		return Report{Failed: 1}
	}

	var notified, tasks, failed atomic.Int64
	// failures are counted per owner so one bad owner does not stop the rest
	p := pool.New().WithMaxGoroutines(w.concurrency)
	for _, owner := range owners {
		p.Go(func() {
			n, err := w.checkOwner(ctx, owner)
			if err != nil {
				failed.Add(1)
				logger.Warn("Worker: owner check failed",
					zap.String("user_id", owner.String()),
					zap.Error(err))
				return
			}
			if n > 0 {
				notified.Add(1)
				tasks.Add(int64(n))
			}
		})
	}
	p.Wait()

	report := Report{
		Owners:   len(owners),
		Notified: int(notified.Load()),
		Tasks:    int(tasks.Load()),
		Failed:   int(failed.Load()),
	}
	logger.Info("Worker: due-soon check finished",
		zap.Duration("ms", time.Since(start)),
		zap.Int("owners", report.Owners),
		zap.Int("notified", report.Notified),
		zap.Int("tasks", report.Tasks),
		zap.Int("failed", report.Failed))

	return report
}

func (w *DueSoonWorker) checkOwner(ctx context.Context, owner uuid.UUID) (int, error) {
	snap, err := w.source.Snapshot(ctx, owner)
	if err != nil {
		return 0, fmt.Errorf("snapshot: %w", err)
	}

	open := make([]*hierarchy.Node, 0, len(snap.DueSoon))
	for _, n := range snap.DueSoon {
		if !n.Completed {
			open = append(open, n)
		}
	}
	if len(open) == 0 {
		return 0, nil
	}

	if err := w.notifier.Notify(ctx, owner, snap.Today, open); err != nil {
		return 0, fmt.Errorf("notify: %w", err)
	}
	return len(open), nil
}
