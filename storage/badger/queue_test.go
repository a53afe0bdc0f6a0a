package badger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/veridian/atomforge/storage"
)

func TestQueueEnqueueDequeueFIFO(t *testing.T) {
	atoms, queue, backend, err := NewMemoryStore()
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer func() { queue.Close(); atoms.Close(); backend.Close() }()

	ctx := context.Background()

	first, err := queue.Enqueue(ctx, "https://example.com/manual-a.pdf")
	if err != nil {
		t.Fatalf("Failed to enqueue: %v", err)
	}
	second, err := queue.Enqueue(ctx, "https://example.com/manual-b.pdf")
	if err != nil {
		t.Fatalf("Failed to enqueue: %v", err)
	}
	if second <= first {
		t.Fatalf("Expected increasing message ids, got %d then %d", first, second)
	}

	job, err := queue.Dequeue(ctx, time.Minute)
	if err != nil {
		t.Fatalf("Failed to dequeue: %v", err)
	}
	if job.SourceURL != "https://example.com/manual-a.pdf" {
		t.Fatalf("Expected FIFO order, got %s first", job.SourceURL)
	}
	if job.Attempts != 1 {
		t.Fatalf("Expected first delivery attempt 1, got %d", job.Attempts)
	}

	job, err = queue.Dequeue(ctx, time.Minute)
	if err != nil {
		t.Fatalf("Failed to dequeue: %v", err)
	}
	if job.SourceURL != "https://example.com/manual-b.pdf" {
		t.Fatalf("Expected second message, got %s", job.SourceURL)
	}
}

func TestQueueAckRemovesMessage(t *testing.T) {
	atoms, queue, backend, err := NewMemoryStore()
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer func() { queue.Close(); atoms.Close(); backend.Close() }()

	ctx := context.Background()
	if _, err := queue.Enqueue(ctx, "https://example.com/manual.pdf"); err != nil {
		t.Fatalf("Failed to enqueue: %v", err)
	}

	job, err := queue.Dequeue(ctx, time.Minute)
	if err != nil {
		t.Fatalf("Failed to dequeue: %v", err)
	}
	if err := queue.Ack(ctx, job.MessageID); err != nil {
		t.Fatalf("Failed to ack: %v", err)
	}

	length, err := queue.Len(ctx)
	if err != nil {
		t.Fatalf("Failed to get length: %v", err)
	}
	if length != 0 {
		t.Fatalf("Expected empty queue after ack, got %d", length)
	}

	// Acking again is a lease error, not a crash.
	if err := queue.Ack(ctx, job.MessageID); !errors.Is(err, storage.ErrLeaseExpired) {
		t.Fatalf("Expected ErrLeaseExpired on double ack, got %v", err)
	}
}

func TestQueueLeaseExpiryRedelivers(t *testing.T) {
	atoms, q, backend, err := NewMemoryStore()
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer func() { q.Close(); atoms.Close(); backend.Close() }()

	ctx := context.Background()
	if _, err := q.Enqueue(ctx, "https://example.com/manual.pdf"); err != nil {
		t.Fatalf("Failed to enqueue: %v", err)
	}

	// Take a very short lease and let it lapse without acking, simulating a
	// crashed worker.
	job, err := q.Dequeue(ctx, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("Failed to dequeue: %v", err)
	}
	time.Sleep(30 * time.Millisecond)

	redelivered, err := q.Dequeue(ctx, time.Minute)
	if err != nil {
		t.Fatalf("Failed to redeliver: %v", err)
	}
	if redelivered.SourceURL != job.SourceURL {
		t.Fatalf("Expected same message redelivered, got %s", redelivered.SourceURL)
	}
	if redelivered.Attempts != 2 {
		t.Fatalf("Expected attempt count 2 on redelivery, got %d", redelivered.Attempts)
	}

	// Acking the redelivered message drains the queue.
	if err := q.Ack(ctx, redelivered.MessageID); err != nil {
		t.Fatalf("Failed to ack redelivered message: %v", err)
	}
	length, err := q.Len(ctx)
	if err != nil {
		t.Fatalf("Failed to get length: %v", err)
	}
	if length != 0 {
		t.Fatalf("Expected empty queue, got %d", length)
	}
}

func TestQueueExtendKeepsLeaseAlive(t *testing.T) {
	atoms, q, backend, err := NewMemoryStore()
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer func() { q.Close(); atoms.Close(); backend.Close() }()

	ctx := context.Background()
	if _, err := q.Enqueue(ctx, "https://example.com/manual.pdf"); err != nil {
		t.Fatalf("Failed to enqueue: %v", err)
	}

	job, err := q.Dequeue(ctx, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("Failed to dequeue: %v", err)
	}
	if err := q.Extend(ctx, job.MessageID, time.Minute); err != nil {
		t.Fatalf("Failed to extend lease: %v", err)
	}
	time.Sleep(40 * time.Millisecond)

	// The message must not be redeliverable while the extended lease holds.
	shortCtx, cancel := context.WithTimeout(ctx, 150*time.Millisecond)
	defer cancel()
	if _, err := q.Dequeue(shortCtx, time.Minute); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Expected dequeue to block on extended lease, got %v", err)
	}

	if err := q.Ack(ctx, job.MessageID); err != nil {
		t.Fatalf("Failed to ack extended lease: %v", err)
	}
}

func TestQueueDequeueBlocksUntilEnqueue(t *testing.T) {
	atoms, q, backend, err := NewMemoryStore()
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer func() { q.Close(); atoms.Close(); backend.Close() }()

	ctx := context.Background()

	done := make(chan *storage.QueuedJob, 1)
	go func() {
		job, err := q.Dequeue(ctx, time.Minute)
		if err != nil {
			t.Errorf("Dequeue failed: %v", err)
			done <- nil
			return
		}
		done <- job
	}()

	time.Sleep(50 * time.Millisecond)
	if _, err := q.Enqueue(ctx, "https://example.com/late.pdf"); err != nil {
		t.Fatalf("Failed to enqueue: %v", err)
	}

	select {
	case job := <-done:
		if job == nil || job.SourceURL != "https://example.com/late.pdf" {
			t.Fatalf("Expected the late message, got %v", job)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Dequeue did not wake up after enqueue")
	}
}

func TestQueueDequeueHonorsContext(t *testing.T) {
	atoms, q, backend, err := NewMemoryStore()
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer func() { q.Close(); atoms.Close(); backend.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = q.Dequeue(ctx, time.Minute)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Expected context deadline error, got %v", err)
	}
}

func TestQueueLenCountsPendingAndLeased(t *testing.T) {
	atoms, q, backend, err := NewMemoryStore()
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer func() { q.Close(); atoms.Close(); backend.Close() }()

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := q.Enqueue(ctx, "https://example.com/manual.pdf"); err != nil {
			t.Fatalf("Failed to enqueue: %v", err)
		}
	}

	if _, err := q.Dequeue(ctx, time.Minute); err != nil {
		t.Fatalf("Failed to dequeue: %v", err)
	}

	length, err := q.Len(ctx)
	if err != nil {
		t.Fatalf("Failed to get length: %v", err)
	}
	if length != 3 {
		t.Fatalf("Expected 3 (2 pending + 1 leased), got %d", length)
	}
}
