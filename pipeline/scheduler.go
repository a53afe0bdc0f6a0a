package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/veridian/atomforge/storage"
)

const defaultSweepInterval = 15 * time.Minute

// SourceLister enumerates the source URLs that should be ingested.
type SourceLister interface {
	ListSources(ctx context.Context) ([]string, error)
}

// SourceListerFunc adapts a function to the SourceLister interface.
type SourceListerFunc func(ctx context.Context) ([]string, error)

// ListSources calls the wrapped function.
func (f SourceListerFunc) ListSources(ctx context.Context) ([]string, error) {
	return f(ctx)
}

// StaticSources is a fixed URL list as a SourceLister.
func StaticSources(urls ...string) SourceLister {
	return SourceListerFunc(func(context.Context) ([]string, error) {
		return urls, nil
	})
}

// Scheduler periodically sweeps a source lister and enqueues every URL it
// returns. Re-enqueueing an already-ingested source is harmless: ingestion
// is idempotent at the atom level through upsert.
type Scheduler struct {
	queue    storage.JobQueue
	lister   SourceLister
	interval time.Duration
	logger   *slog.Logger
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler) error

// WithSweepInterval sets the time between sweeps.
func WithSweepInterval(interval time.Duration) SchedulerOption {
	return func(s *Scheduler) error {
		if interval > 0 {
			s.interval = interval
		}
		return nil
	}
}

// WithSchedulerLogger sets the logger.
func WithSchedulerLogger(logger *slog.Logger) SchedulerOption {
	return func(s *Scheduler) error {
		if logger != nil {
			s.logger = logger
		}
		return nil
	}
}

// NewScheduler creates a scheduler over the given queue and lister.
func NewScheduler(queue storage.JobQueue, lister SourceLister, opts ...SchedulerOption) (*Scheduler, error) {
	if queue == nil {
		return nil, ErrQueueRequired
	}
	if lister == nil {
		return nil, ErrListerRequired
	}

	s := &Scheduler{
		queue:    queue,
		lister:   lister,
		interval: defaultSweepInterval,
		logger:   slog.Default().With("component", "scheduler"),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Run sweeps immediately, then on every tick until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.sweep(ctx); err != nil {
		s.logger.Error("sweep failed", "err", err)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.sweep(ctx); err != nil {
				s.logger.Error("sweep failed", "err", err)
			}
		}
	}
}

// EnqueueNow pushes the given URLs immediately, outside the sweep cycle.
func (s *Scheduler) EnqueueNow(ctx context.Context, urls ...string) error {
	for _, url := range urls {
		if _, err := s.queue.Enqueue(ctx, url); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scheduler) sweep(ctx context.Context) error {
	urls, err := s.lister.ListSources(ctx)
	if err != nil {
		return err
	}
	for _, url := range urls {
		if _, err := s.queue.Enqueue(ctx, url); err != nil {
			return err
		}
	}
	s.logger.Info("sweep complete", "sources", len(urls))
	return nil
}
