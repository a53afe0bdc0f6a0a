package badger

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/veridian/atomforge/core"
	"github.com/veridian/atomforge/storage"
)

func testAtom(id string) *core.KnowledgeAtom {
	now := time.Now().UTC()
	return &core.KnowledgeAtom{
		AtomID:          id,
		AtomType:        core.AtomTypeFault,
		Title:           "Pump cavitation under low inlet pressure",
		Summary:         "Describes the audible and vibration symptoms of cavitation in the X200 pump and its root cause.",
		Content:         strings.Repeat("Cavitation occurs when inlet pressure drops below vapor pressure. ", 6),
		Manufacturer:    "acme",
		ProductFamily:   "x200",
		Keywords:        []string{"cavitation", "pump", "pressure"},
		Difficulty:      core.DifficultyIntermediate,
		SourceTier:      core.SourceTierOfficial,
		ConfidenceScore: 0.90,
		Status:          core.AtomStatusValidated,
		DateCreated:     now,
		DateModified:    now,
	}
}

func TestAtomUpsertAndGet(t *testing.T) {
	atoms, queue, backend, err := NewMemoryStore()
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer func() { queue.Close(); atoms.Close(); backend.Close() }()

	ctx := context.Background()
	atom := testAtom("fault:acme-x200-pump-cavitation")

	if err := atoms.UpsertAtoms(ctx, atom); err != nil {
		t.Fatalf("Failed to upsert atom: %v", err)
	}

	retrieved, err := atoms.GetAtom(ctx, atom.AtomID)
	if err != nil {
		t.Fatalf("Failed to get atom: %v", err)
	}
	if retrieved.Title != atom.Title {
		t.Fatalf("Expected title %q, got %q", atom.Title, retrieved.Title)
	}
	if retrieved.AtomType != core.AtomTypeFault {
		t.Fatalf("Expected atom type fault, got %s", retrieved.AtomType)
	}
}

func TestAtomGetMissing(t *testing.T) {
	atoms, queue, backend, err := NewMemoryStore()
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer func() { queue.Close(); atoms.Close(); backend.Close() }()

	_, err = atoms.GetAtom(context.Background(), "fault:does-not-exist")
	if err != storage.ErrNotFound {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func TestAtomUpsertIsIdempotent(t *testing.T) {
	atoms, queue, backend, err := NewMemoryStore()
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer func() { queue.Close(); atoms.Close(); backend.Close() }()

	ctx := context.Background()
	atom := testAtom("fault:acme-x200-pump-cavitation")
	if err := atoms.UpsertAtoms(ctx, atom); err != nil {
		t.Fatalf("Failed to upsert atom: %v", err)
	}

	first, err := atoms.GetAtom(ctx, atom.AtomID)
	if err != nil {
		t.Fatalf("Failed to get atom: %v", err)
	}

	// Re-ingest the same atom with a different title; same id overwrites.
	update := testAtom(atom.AtomID)
	update.Title = "Pump cavitation (revised)"
	update.DateCreated = time.Now().UTC().Add(time.Hour) // must be ignored
	if err := atoms.UpsertAtoms(ctx, update); err != nil {
		t.Fatalf("Failed to re-upsert atom: %v", err)
	}

	count, err := atoms.CountAtoms(ctx)
	if err != nil {
		t.Fatalf("Failed to count atoms: %v", err)
	}
	if count != 1 {
		t.Fatalf("Expected 1 atom after re-upsert, got %d", count)
	}

	second, err := atoms.GetAtom(ctx, atom.AtomID)
	if err != nil {
		t.Fatalf("Failed to get atom: %v", err)
	}
	if second.Title != "Pump cavitation (revised)" {
		t.Fatalf("Expected updated title, got %q", second.Title)
	}
	if !second.DateCreated.Equal(first.DateCreated) {
		t.Fatalf("Expected DateCreated preserved (%v), got %v", first.DateCreated, second.DateCreated)
	}
	if !second.DateModified.After(first.DateModified) && !second.DateModified.Equal(first.DateModified) {
		t.Fatalf("Expected DateModified refreshed, got %v (was %v)", second.DateModified, first.DateModified)
	}
}

func TestAtomGetAtomsSkipsMissing(t *testing.T) {
	atoms, queue, backend, err := NewMemoryStore()
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer func() { queue.Close(); atoms.Close(); backend.Close() }()

	ctx := context.Background()
	if err := atoms.UpsertAtoms(ctx, testAtom("fault:a-one"), testAtom("fault:a-two")); err != nil {
		t.Fatalf("Failed to upsert atoms: %v", err)
	}

	results, err := atoms.GetAtoms(ctx, "fault:a-one", "fault:missing", "fault:a-two")
	if err != nil {
		t.Fatalf("Failed to get atoms: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Expected 2 atoms, got %d", len(results))
	}
}

func TestAtomDelete(t *testing.T) {
	atoms, queue, backend, err := NewMemoryStore()
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer func() { queue.Close(); atoms.Close(); backend.Close() }()

	ctx := context.Background()
	atom := testAtom("fault:acme-x200-pump-cavitation")
	if err := atoms.UpsertAtoms(ctx, atom); err != nil {
		t.Fatalf("Failed to upsert atom: %v", err)
	}

	if err := atoms.DeleteAtoms(ctx, atom.AtomID); err != nil {
		t.Fatalf("Failed to delete atom: %v", err)
	}
	if _, err := atoms.GetAtom(ctx, atom.AtomID); err != storage.ErrNotFound {
		t.Fatalf("Expected ErrNotFound after delete, got %v", err)
	}
	if err := atoms.DeleteAtoms(ctx, atom.AtomID); err != storage.ErrNotFound {
		t.Fatalf("Expected ErrNotFound deleting missing atom, got %v", err)
	}
}

func TestFindSimilarRankingAndFloor(t *testing.T) {
	atoms, queue, backend, err := NewMemoryStore()
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer func() { queue.Close(); atoms.Close(); backend.Close() }()

	ctx := context.Background()

	exact := testAtom("fault:exact-match")
	exact.Embedding = []float32{1, 0}
	near := testAtom("fault:near-match")
	near.Embedding = []float32{0.6, 0.8}
	far := testAtom("fault:far-match")
	far.Embedding = []float32{0, 1}
	noVector := testAtom("fault:no-vector")

	if err := atoms.UpsertAtoms(ctx, exact, near, far, noVector); err != nil {
		t.Fatalf("Failed to upsert atoms: %v", err)
	}

	results, err := atoms.FindSimilar(ctx, []float32{1, 0}, 0.5, 10, nil)
	if err != nil {
		t.Fatalf("FindSimilar failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Expected 2 results above floor, got %d", len(results))
	}
	if results[0].Atom.AtomID != "fault:exact-match" {
		t.Fatalf("Expected exact match first, got %s", results[0].Atom.AtomID)
	}
	if results[1].Atom.AtomID != "fault:near-match" {
		t.Fatalf("Expected near match second, got %s", results[1].Atom.AtomID)
	}
	if results[0].Similarity < results[1].Similarity {
		t.Fatalf("Results not in descending similarity order: %v then %v",
			results[0].Similarity, results[1].Similarity)
	}

	// Limit is applied after ranking.
	results, err = atoms.FindSimilar(ctx, []float32{1, 0}, 0.0, 1, nil)
	if err != nil {
		t.Fatalf("FindSimilar failed: %v", err)
	}
	if len(results) != 1 || results[0].Atom.AtomID != "fault:exact-match" {
		t.Fatalf("Expected single best result, got %v", results)
	}
}

func TestFindSimilarFilterBeforeRanking(t *testing.T) {
	atoms, queue, backend, err := NewMemoryStore()
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer func() { queue.Close(); atoms.Close(); backend.Close() }()

	ctx := context.Background()

	best := testAtom("fault:best-but-wrong-vendor")
	best.Manufacturer = "other"
	best.Embedding = []float32{1, 0}

	match := testAtom("fault:acme-match")
	match.Embedding = []float32{0.8, 0.6}

	if err := atoms.UpsertAtoms(ctx, best, match); err != nil {
		t.Fatalf("Failed to upsert atoms: %v", err)
	}

	filter := &storage.AtomFilter{Manufacturer: "acme"}
	results, err := atoms.FindSimilar(ctx, []float32{1, 0}, 0.0, 1, filter)
	if err != nil {
		t.Fatalf("FindSimilar failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Expected 1 result, got %d", len(results))
	}
	// The limit slot goes to the eligible atom, not the globally closest one.
	if results[0].Atom.AtomID != "fault:acme-match" {
		t.Fatalf("Expected filtered match, got %s", results[0].Atom.AtomID)
	}
}

func TestFindSimilarConfidenceFilter(t *testing.T) {
	atoms, queue, backend, err := NewMemoryStore()
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer func() { queue.Close(); atoms.Close(); backend.Close() }()

	ctx := context.Background()

	high := testAtom("fault:high-confidence")
	high.Embedding = []float32{1, 0}
	low := testAtom("fault:low-confidence")
	low.ConfidenceScore = 0.40
	low.Embedding = []float32{1, 0}

	if err := atoms.UpsertAtoms(ctx, high, low); err != nil {
		t.Fatalf("Failed to upsert atoms: %v", err)
	}

	filter := &storage.AtomFilter{MinConfidence: 0.8}
	results, err := atoms.FindSimilar(ctx, []float32{1, 0}, 0.0, 10, filter)
	if err != nil {
		t.Fatalf("FindSimilar failed: %v", err)
	}
	if len(results) != 1 || results[0].Atom.AtomID != "fault:high-confidence" {
		t.Fatalf("Expected only the high-confidence atom, got %v", results)
	}
}
