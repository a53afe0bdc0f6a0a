package badger

import (
	"context"
	"math"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/veridian/atomforge/core"
	"github.com/veridian/atomforge/storage"
)

// AtomRepository implements storage.AtomRepository for BadgerDB.
type AtomRepository struct {
	backend *Backend
}

var _ storage.AtomRepository = (*AtomRepository)(nil)

// NewAtomRepository creates a repository on top of an open backend.
//
// Returns storage.AtomRepository interface to enforce abstraction.
func NewAtomRepository(backend *Backend) (storage.AtomRepository, error) {
	return &AtomRepository{backend: backend}, nil
}

// Close releases resources. AtomRepository has no resources of its own.
func (r *AtomRepository) Close() error {
	return nil
}

// UpsertAtoms writes atoms keyed by atom_id. The same id overwrites;
// DateCreated survives from an existing record, DateModified is refreshed.
func (r *AtomRepository) UpsertAtoms(ctx context.Context, atoms ...*core.KnowledgeAtom) error {
	if r.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	return r.backend.WithTx(func(tx *badger.Txn) error {
		now := time.Now().UTC()
		for _, atom := range atoms {
			key := makeAtomKey(atom.AtomID)

			old, err := readAtom(tx, key)
			if err != nil {
				return err
			}
			if old != nil && !old.DateCreated.IsZero() {
				atom.DateCreated = old.DateCreated
			} else if atom.DateCreated.IsZero() {
				atom.DateCreated = now
			}
			atom.DateModified = now

			value, err := storage.MarshalAtom(atom)
			if err != nil {
				return err
			}
			if err := tx.Set(key, value); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// GetAtom retrieves a single atom by id.
func (r *AtomRepository) GetAtom(ctx context.Context, atomID string) (*core.KnowledgeAtom, error) {
	var atom *core.KnowledgeAtom
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		atom, err = readAtom(tx, makeAtomKey(atomID))
		return err
	}, false)
	if err != nil {
		return nil, err
	}
	if atom == nil {
		return nil, storage.ErrNotFound
	}
	return atom, nil
}

// GetAtoms retrieves multiple atoms by id. Missing ids are skipped.
func (r *AtomRepository) GetAtoms(ctx context.Context, atomIDs ...string) ([]*core.KnowledgeAtom, error) {
	atoms := make([]*core.KnowledgeAtom, 0, len(atomIDs))
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range atomIDs {
			atom, err := readAtom(tx, makeAtomKey(id))
			if err != nil {
				return err
			}
			if atom != nil {
				atoms = append(atoms, atom)
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return atoms, nil
}

// DeleteAtoms removes atoms by id.
func (r *AtomRepository) DeleteAtoms(ctx context.Context, atomIDs ...string) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range atomIDs {
			key := makeAtomKey(id)
			atom, err := readAtom(tx, key)
			if err != nil {
				return err
			}
			if atom == nil {
				return storage.ErrNotFound
			}
			if err := tx.Delete(key); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// CountAtoms returns the number of stored atoms.
func (r *AtomRepository) CountAtoms(ctx context.Context) (int, error) {
	count := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(atomRecordPrefix + ":")
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)
	return count, err
}

// FindSimilar scans all stored atoms, applies the metadata filter before
// ranking, and returns up to limit results with cosine similarity >=
// minSimilarity, ordered by similarity descending.
func (r *AtomRepository) FindSimilar(ctx context.Context, vector []float32, minSimilarity float32, limit int, filter *storage.AtomFilter) ([]*core.SearchResult, error) {
	if limit <= 0 || len(vector) == 0 {
		return nil, storage.ErrInvalidQuery
	}

	var results []*core.SearchResult
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(atomRecordPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			var atom *core.KnowledgeAtom
			err := iter.Item().Value(func(val []byte) error {
				var err error
				atom, err = storage.UnmarshalAtom(val)
				return err
			})
			if err != nil {
				return err
			}
			if atom == nil || len(atom.Embedding) == 0 {
				continue
			}

			// Filter narrows the candidate set before ranking.
			if !filter.Matches(atom) {
				continue
			}

			similarity := cosineSimilarity(vector, atom.Embedding)
			if similarity >= minSimilarity {
				results = append(results, &core.SearchResult{
					Atom:       atom,
					Similarity: similarity,
				})
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	// Sort by similarity descending
	slices.SortFunc(results, func(a, b *core.SearchResult) int {
		if a.Similarity > b.Similarity {
			return -1
		}
		if a.Similarity < b.Similarity {
			return 1
		}
		return 0
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// readAtom reads and unmarshals an atom, returning nil when the key is
// absent.
func readAtom(tx *badger.Txn, key []byte) (*core.KnowledgeAtom, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}
	var atom *core.KnowledgeAtom
	err = item.Value(func(val []byte) error {
		var err error
		atom, err = storage.UnmarshalAtom(val)
		return err
	})
	return atom, err
}

// cosineSimilarity computes 1 - cosine distance with explicit
// normalization. Zero-length or zero-norm vectors score 0.
func cosineSimilarity(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
