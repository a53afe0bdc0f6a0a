package storage

import (
	"context"
	"time"

	"github.com/veridian/atomforge/core"
)

// AtomFilter is a conjunctive set of metadata predicates. Zero-valued fields
// are ignored. Filters narrow the candidate set before ranking, so a top-K
// query returns the best K among matching atoms, not the global best K.
type AtomFilter struct {
	Manufacturer  string
	ProductFamily string
	AtomType      core.AtomType
	Difficulty    core.Difficulty
	Status        core.AtomStatus
	MinConfidence float64
}

// Matches reports whether the atom satisfies every set predicate.
// A nil filter matches everything.
func (f *AtomFilter) Matches(atom *core.KnowledgeAtom) bool {
	if f == nil {
		return true
	}
	if f.Manufacturer != "" && atom.Manufacturer != f.Manufacturer {
		return false
	}
	if f.ProductFamily != "" && atom.ProductFamily != f.ProductFamily {
		return false
	}
	if f.AtomType != "" && atom.AtomType != f.AtomType {
		return false
	}
	if f.Difficulty != "" && atom.Difficulty != f.Difficulty {
		return false
	}
	if f.Status != "" && atom.Status != f.Status {
		return false
	}
	if f.MinConfidence > 0 && atom.ConfidenceScore < f.MinConfidence {
		return false
	}
	return true
}

// AtomRepository is the knowledge store contract exposed to the pipeline and
// to search.
type AtomRepository interface {
	// UpsertAtoms writes atoms keyed by atom_id. Upsert is idempotent: the
	// same id overwrites, and concurrent writers to the same id resolve
	// last-write-wins. DateCreated is preserved from an existing record;
	// DateModified is set on every write.
	UpsertAtoms(ctx context.Context, atoms ...*core.KnowledgeAtom) error

	// GetAtom retrieves a single atom by id. Returns ErrNotFound if absent.
	GetAtom(ctx context.Context, atomID string) (*core.KnowledgeAtom, error)

	// GetAtoms retrieves multiple atoms by id. Missing ids are skipped
	// without error.
	GetAtoms(ctx context.Context, atomIDs ...string) ([]*core.KnowledgeAtom, error)

	// DeleteAtoms removes atoms by id. Returns ErrNotFound if any id is
	// absent.
	DeleteAtoms(ctx context.Context, atomIDs ...string) error

	// CountAtoms returns the number of stored atoms.
	CountAtoms(ctx context.Context) (int, error)

	// FindSimilar returns atoms ranked by cosine similarity to the query
	// vector, strictly descending. Atoms failing the filter or scoring below
	// minSimilarity are excluded before top-K selection. Atoms without an
	// embedding never match.
	FindSimilar(ctx context.Context, vector []float32, minSimilarity float32, limit int, filter *AtomFilter) ([]*core.SearchResult, error)

	// Close releases resources held by the repository.
	Close() error
}

// QueuedJob is one delivered queue message. MessageID identifies the lease
// for Ack and Extend; Attempts counts deliveries including this one.
type QueuedJob struct {
	MessageID     uint64
	SourceURL     string
	Attempts      int
	EnqueuedAt    time.Time
	LeaseDeadline time.Time
}

// JobQueue is a durable FIFO of ingestion jobs with at-least-once delivery.
//
// Dequeue leases a message: it becomes invisible to other consumers until
// the lease deadline, then is redelivered unless acknowledged. Paired with
// the store's idempotent upsert, redelivery after a worker crash is safe.
// Enqueue does not deduplicate URLs; duplicate sources are resolved at the
// atom level.
type JobQueue interface {
	// Enqueue appends a source URL and returns its message id.
	Enqueue(ctx context.Context, sourceURL string) (uint64, error)

	// Dequeue blocks until a message is deliverable or ctx is done, then
	// leases it for leaseFor. Expired leases are redelivered before new
	// messages. Returns ctx.Err() on cancellation.
	Dequeue(ctx context.Context, leaseFor time.Duration) (*QueuedJob, error)

	// Ack acknowledges a leased message, removing it permanently.
	// Returns ErrLeaseExpired if the lease is no longer held.
	Ack(ctx context.Context, messageID uint64) error

	// Extend pushes the lease deadline of a message out by leaseFor.
	// Returns ErrLeaseExpired if the lease is no longer held.
	Extend(ctx context.Context, messageID uint64, leaseFor time.Duration) error

	// Len returns the number of pending plus leased messages.
	Len(ctx context.Context) (int, error)

	// Close releases resources held by the queue.
	Close() error
}
