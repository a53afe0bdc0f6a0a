package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/veridian/atomforge/core"
	"github.com/veridian/atomforge/storage"
)

const (
	defaultWorkerCount = 4
	defaultLease       = 5 * time.Minute
	ackTimeout         = 10 * time.Second
)

// WorkerPool pulls jobs off the durable queue and runs each one to a
// terminal state through the orchestrator. One worker owns one job at a
// time; parallelism across external services is governed by the
// orchestrator's shared ServiceLimits, not by the worker count.
type WorkerPool struct {
	queue   storage.JobQueue
	orch    *Orchestrator
	pool    *ants.Pool
	workers int
	lease   time.Duration
	logger  *slog.Logger
	wg      sync.WaitGroup
}

// WorkerOption configures a WorkerPool.
type WorkerOption func(*WorkerPool) error

// WithWorkers sets how many jobs run concurrently.
func WithWorkers(n int) WorkerOption {
	return func(w *WorkerPool) error {
		if n > 0 {
			w.workers = n
		}
		return nil
	}
}

// WithLease sets the visibility timeout taken on each dequeued job. It must
// comfortably exceed the longest expected job so leases do not expire under
// live workers.
func WithLease(lease time.Duration) WorkerOption {
	return func(w *WorkerPool) error {
		if lease > 0 {
			w.lease = lease
		}
		return nil
	}
}

// WithWorkerLogger sets the logger.
func WithWorkerLogger(logger *slog.Logger) WorkerOption {
	return func(w *WorkerPool) error {
		if logger != nil {
			w.logger = logger
		}
		return nil
	}
}

// NewWorkerPool creates a stopped pool; call Start to begin consuming.
func NewWorkerPool(queue storage.JobQueue, orch *Orchestrator, opts ...WorkerOption) (*WorkerPool, error) {
	if queue == nil {
		return nil, ErrQueueRequired
	}
	if orch == nil {
		return nil, ErrOrchestratorRequired
	}

	w := &WorkerPool{
		queue:   queue,
		orch:    orch,
		workers: defaultWorkerCount,
		lease:   defaultLease,
		logger:  slog.Default().With("component", "worker-pool"),
	}
	for _, opt := range opts {
		if err := opt(w); err != nil {
			return nil, err
		}
	}

	pool, err := ants.NewPool(w.workers)
	if err != nil {
		return nil, err
	}
	w.pool = pool
	return w, nil
}

// Start launches the worker loops. They run until ctx is canceled.
func (w *WorkerPool) Start(ctx context.Context) error {
	for i := 0; i < w.workers; i++ {
		workerID := i
		w.wg.Add(1)
		if err := w.pool.Submit(func() {
			defer w.wg.Done()
			w.loop(ctx, workerID)
		}); err != nil {
			w.wg.Done()
			return err
		}
	}
	w.logger.Info("worker pool started", "workers", w.workers, "lease", w.lease)
	return nil
}

// Wait blocks until every worker loop has exited.
func (w *WorkerPool) Wait() {
	w.wg.Wait()
}

// Release frees the pool. Call after Wait.
func (w *WorkerPool) Release() {
	w.pool.Release()
}

func (w *WorkerPool) loop(ctx context.Context, workerID int) {
	logger := w.logger.With("worker", workerID)
	for {
		delivered, err := w.queue.Dequeue(ctx, w.lease)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				logger.Debug("worker stopping")
				return
			}
			logger.Error("dequeue failed", "err", err)
			return
		}

		job := core.NewIngestionJob(delivered.SourceURL)
		job.Attempts = delivered.Attempts
		job.EnqueuedAt = delivered.EnqueuedAt

		if err := w.orch.Run(ctx, job); err != nil {
			// Canceled mid-job: leave the lease to expire so another
			// worker redelivers the message.
			logger.Warn("job interrupted, lease left to expire",
				"jobID", job.JobID, "messageID", delivered.MessageID, "err", err)
			return
		}

		// The job reached a terminal state; ack even if the surrounding
		// context was canceled meanwhile.
		ackCtx, cancel := context.WithTimeout(context.Background(), ackTimeout)
		if err := w.queue.Ack(ackCtx, delivered.MessageID); err != nil {
			logger.Error("ack failed, job may be redelivered",
				"jobID", job.JobID, "messageID", delivered.MessageID, "err", err)
		}
		cancel()

		logger.Info("job processed",
			"jobID", job.JobID,
			"status", job.Status,
			"attempt", job.Attempts,
			"atomsIndexed", job.AtomsIndexed,
			"errors", len(job.Errors))
	}
}
