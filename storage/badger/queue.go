// Copyright 2025 Veridian Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package badger

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/veridian/atomforge/storage"
)

const defaultPollInterval = 100 * time.Millisecond

// queueMessage is the stored form of one queued job.
type queueMessage struct {
	SourceURL     string    `json:"source_url"`
	Attempts      int       `json:"attempts"`
	EnqueuedAt    time.Time `json:"enqueued_at"`
	LeaseDeadline time.Time `json:"lease_deadline,omitempty"`
}

// JobQueue implements storage.JobQueue on BadgerDB.
//
// Pending messages live under sequence-numbered keys so iteration order is
// FIFO. Dequeue moves a message to a lease record carrying a deadline;
// expired leases are redelivered ahead of new messages. Ack deletes the
// lease. A crashed worker therefore loses nothing: its lease expires and the
// message comes back.
type JobQueue struct {
	backend      *Backend
	seq          *badger.Sequence
	pollInterval time.Duration
	logger       *slog.Logger
}

var _ storage.JobQueue = (*JobQueue)(nil)

// QueueOption configures a JobQueue.
type QueueOption func(*JobQueue)

// WithPollInterval sets how often a blocked Dequeue re-checks the queue.
func WithPollInterval(interval time.Duration) QueueOption {
	return func(q *JobQueue) {
		if interval > 0 {
			q.pollInterval = interval
		}
	}
}

// NewJobQueue creates a queue on top of an open backend.
//
// Returns storage.JobQueue interface to enforce abstraction.
func NewJobQueue(backend *Backend, opts ...QueueOption) (storage.JobQueue, error) {
	seq, err := backend.GetSequence(queueSeqName)
	if err != nil {
		return nil, err
	}
	q := &JobQueue{
		backend:      backend,
		seq:          seq,
		pollInterval: defaultPollInterval,
		logger:       slog.Default().With("component", "job-queue"),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q, nil
}

// Close releases the queue's badger sequence.
func (q *JobQueue) Close() error {
	return q.seq.Release()
}

// Enqueue appends a source URL to the queue. URLs are not deduplicated;
// duplicate sources resolve at the atom level through idempotent upsert.
func (q *JobQueue) Enqueue(ctx context.Context, sourceURL string) (uint64, error) {
	if q.backend.IsClosed() {
		return 0, storage.ErrStorageClosed
	}
	seq, err := q.seq.Next()
	if err != nil {
		return 0, err
	}

	msg := queueMessage{
		SourceURL:  sourceURL,
		EnqueuedAt: time.Now().UTC(),
	}
	value, err := json.Marshal(msg)
	if err != nil {
		return 0, storage.ErrSerializationFailed
	}

	err = q.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set(makePendingKey(seq), value); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return 0, err
	}

	q.logger.Debug("enqueued job", "messageID", seq, "url", sourceURL)
	return seq, nil
}

// Dequeue blocks until a message is deliverable or ctx is done. The caller
// receives a lease of leaseFor; redelivered messages carry an incremented
// attempt count.
func (q *JobQueue) Dequeue(ctx context.Context, leaseFor time.Duration) (*storage.QueuedJob, error) {
	for {
		job, err := q.tryDequeue(leaseFor)
		if err == nil {
			return job, nil
		}
		if !errors.Is(err, storage.ErrQueueEmpty) && !errors.Is(err, badger.ErrConflict) {
			return nil, err
		}

		timer := time.NewTimer(q.pollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// tryDequeue attempts one delivery without blocking. Expired leases are
// redelivered before pending messages since they are older work.
func (q *JobQueue) tryDequeue(leaseFor time.Duration) (*storage.QueuedJob, error) {
	if q.backend.IsClosed() {
		return nil, storage.ErrStorageClosed
	}

	var delivered *storage.QueuedJob
	now := time.Now().UTC()

	err := q.backend.WithTx(func(tx *badger.Txn) error {
		// 1. Redeliver the oldest expired lease, if any.
		seq, msg, err := q.firstExpiredLease(tx, now)
		if err != nil {
			return err
		}

		// 2. Otherwise take the head of the pending queue.
		if msg == nil {
			seq, msg, err = q.firstPending(tx)
			if err != nil {
				return err
			}
			if msg == nil {
				return storage.ErrQueueEmpty
			}
			if err := tx.Delete(makePendingKey(seq)); err != nil {
				return err
			}
		}

		msg.Attempts++
		msg.LeaseDeadline = now.Add(leaseFor)
		value, err := json.Marshal(msg)
		if err != nil {
			return storage.ErrSerializationFailed
		}
		if err := tx.Set(makeLeaseKey(seq), value); err != nil {
			return err
		}

		delivered = &storage.QueuedJob{
			MessageID:     seq,
			SourceURL:     msg.SourceURL,
			Attempts:      msg.Attempts,
			EnqueuedAt:    msg.EnqueuedAt,
			LeaseDeadline: msg.LeaseDeadline,
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}
	return delivered, nil
}

// Ack acknowledges a leased message, removing it permanently.
func (q *JobQueue) Ack(ctx context.Context, messageID uint64) error {
	return q.backend.WithTx(func(tx *badger.Txn) error {
		key := makeLeaseKey(messageID)
		if _, err := tx.Get(key); err != nil {
			if err == badger.ErrKeyNotFound {
				return storage.ErrLeaseExpired
			}
			return err
		}
		if err := tx.Delete(key); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// Extend pushes the lease deadline of a message out by leaseFor.
func (q *JobQueue) Extend(ctx context.Context, messageID uint64, leaseFor time.Duration) error {
	return q.backend.WithTx(func(tx *badger.Txn) error {
		key := makeLeaseKey(messageID)
		msg, err := readQueueMessage(tx, key)
		if err != nil {
			return err
		}
		if msg == nil {
			return storage.ErrLeaseExpired
		}
		msg.LeaseDeadline = time.Now().UTC().Add(leaseFor)
		value, err := json.Marshal(msg)
		if err != nil {
			return storage.ErrSerializationFailed
		}
		if err := tx.Set(key, value); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// Len returns the number of pending plus leased messages.
func (q *JobQueue) Len(ctx context.Context) (int, error) {
	count := 0
	err := q.backend.WithTx(func(tx *badger.Txn) error {
		for _, prefix := range []string{queuePendingPrefix + ":", queueLeasePrefix + ":"} {
			opts := badger.DefaultIteratorOptions
			opts.Prefix = []byte(prefix)
			opts.PrefetchValues = false
			iter := tx.NewIterator(opts)
			for iter.Rewind(); iter.Valid(); iter.Next() {
				count++
			}
			iter.Close()
		}
		return nil
	}, false)
	return count, err
}

// firstPending returns the head of the pending queue, or nil when empty.
func (q *JobQueue) firstPending(tx *badger.Txn) (uint64, *queueMessage, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(queuePendingPrefix + ":")
	iter := tx.NewIterator(opts)
	defer iter.Close()

	iter.Rewind()
	if !iter.Valid() {
		return 0, nil, nil
	}
	item := iter.Item()
	seq := seqFromKey(item.Key())
	msg, err := readQueueMessageItem(item)
	return seq, msg, err
}

// firstExpiredLease returns the oldest lease whose deadline has passed, or
// nil when none has.
func (q *JobQueue) firstExpiredLease(tx *badger.Txn, now time.Time) (uint64, *queueMessage, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(queueLeasePrefix + ":")
	iter := tx.NewIterator(opts)
	defer iter.Close()

	for iter.Rewind(); iter.Valid(); iter.Next() {
		item := iter.Item()
		msg, err := readQueueMessageItem(item)
		if err != nil {
			return 0, nil, err
		}
		if msg.LeaseDeadline.Before(now) {
			return seqFromKey(item.Key()), msg, nil
		}
	}
	return 0, nil, nil
}

func readQueueMessage(tx *badger.Txn, key []byte) (*queueMessage, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}
	return readQueueMessageItem(item)
}

func readQueueMessageItem(item *badger.Item) (*queueMessage, error) {
	var msg queueMessage
	err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &msg)
	})
	if err != nil {
		return nil, storage.ErrSerializationFailed
	}
	return &msg, nil
}
