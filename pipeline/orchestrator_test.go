package pipeline

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridian/atomforge/ai"
	"github.com/veridian/atomforge/ai/mock"
	"github.com/veridian/atomforge/core"
	"github.com/veridian/atomforge/fetch"
	"github.com/veridian/atomforge/storage"
	badgerstore "github.com/veridian/atomforge/storage/badger"
	"github.com/veridian/atomforge/validate"
)

// stubFetcher returns a canned document or error.
type stubFetcher struct {
	doc *fetch.Document
	err error
}

func (s *stubFetcher) Fetch(ctx context.Context, sourceURL string) (*fetch.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.doc, nil
}

func htmlDoc(text string) *fetch.Document {
	return &fetch.Document{Text: text, ContentType: core.ContentTypeHTML}
}

// goodRecord returns an extraction record that survives validation.
func goodRecord(title string) ai.ExtractedAtom {
	return ai.ExtractedAtom{
		AtomType: "fault",
		Vendor:   "Acme",
		Product:  "X200",
		Title:    title,
		Summary:  "Describes the audible and vibration symptoms of cavitation in the X200 pump and its root cause.",
		Content: strings.Repeat("Cavitation occurs when inlet pressure drops below vapor pressure. ", 8) +
			"Inspect the suction line for restrictions before replacing the impeller.",
		Keywords:   []string{"cavitation", "pump", "pressure"},
		Difficulty: "intermediate",
	}
}

type testHarness struct {
	orch    *Orchestrator
	store   storage.AtomRepository
	cleanup func()
}

func newTestHarness(t *testing.T, fetcher fetch.Fetcher, extract func(ctx context.Context, text string) ([]ai.ExtractedAtom, error)) *testHarness {
	t.Helper()

	atoms, queue, backend, err := badgerstore.NewMemoryStore()
	require.NoError(t, err)

	extractor := mock.NewAtomExtractor()
	if extract != nil {
		extractor.ExtractAtomsFunc = extract
	}
	provider := mock.NewProviderWithServices(mock.NewEmbedder(), extractor)

	limits, err := NewServiceLimits(LimitsConfig{})
	require.NoError(t, err)

	orch, err := NewOrchestrator(atoms, fetcher, provider, validate.NewEngine(), limits,
		WithSourceTier(core.SourceTierOfficial),
		WithRetry(2, 1))
	require.NoError(t, err)

	return &testHarness{
		orch:  orch,
		store: atoms,
		cleanup: func() {
			limits.Release()
			queue.Close()
			atoms.Close()
			backend.Close()
		},
	}
}

func TestRunPartialSurvival(t *testing.T) {
	// Three candidates: two valid, one with content far below the minimum.
	bad := goodRecord("Broken candidate")
	bad.Content = "way too short"

	h := newTestHarness(t,
		&stubFetcher{doc: htmlDoc("service manual text")},
		func(ctx context.Context, text string) ([]ai.ExtractedAtom, error) {
			return []ai.ExtractedAtom{
				goodRecord("Pump cavitation under low inlet pressure"),
				bad,
				goodRecord("Impeller wear inspection intervals"),
			}, nil
		})
	defer h.cleanup()

	ctx := context.Background()
	job := core.NewIngestionJob("https://example.com/x200-manual.html")
	require.NoError(t, h.orch.Run(ctx, job))

	assert.Equal(t, core.JobDone, job.Status, "a job with at least one indexed atom succeeds")
	assert.Equal(t, 2, job.AtomsIndexed)
	assert.NotEmpty(t, job.Errors, "the rejected candidate must be on the error trail")
	assert.NotEmpty(t, job.Logs)
	assert.Len(t, job.Atoms, 2)

	count, err := h.store.CountAtoms(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// Stored atoms carry embedding, hash and validated status.
	stored, err := h.store.GetAtom(ctx, "fault:acme-x200-pump-cavitation-under-low-inlet-pressure")
	require.NoError(t, err)
	assert.NotEmpty(t, stored.Embedding)
	assert.Equal(t, core.AtomStatusValidated, stored.Status)
	require.NoError(t, validate.VerifyStored(stored))
	assert.Equal(t, "https://example.com/x200-manual.html", stored.SourceDocument)
	assert.Equal(t, core.SourceTierOfficial, stored.SourceTier)
}

func TestRunFetchFailure(t *testing.T) {
	h := newTestHarness(t,
		&stubFetcher{err: core.ErrFetch},
		nil)
	defer h.cleanup()

	job := core.NewIngestionJob("https://unreachable.invalid/manual.pdf")
	require.NoError(t, h.orch.Run(context.Background(), job))

	assert.Equal(t, core.JobFailed, job.Status)
	assert.Equal(t, 0, job.AtomsIndexed)
	require.NotEmpty(t, job.Errors)
	assert.Contains(t, job.Errors[0], core.ErrFetch.Error())
}

func TestRunMissingSourceURL(t *testing.T) {
	h := newTestHarness(t, &stubFetcher{doc: htmlDoc("text")}, nil)
	defer h.cleanup()

	job := core.NewIngestionJob("   ")
	require.NoError(t, h.orch.Run(context.Background(), job))

	assert.Equal(t, core.JobFailed, job.Status)
	require.NotEmpty(t, job.Errors)
	assert.Contains(t, job.Errors[0], core.ErrDiscovery.Error())
}

func TestRunExtractionParseFailureYieldsZeroAtoms(t *testing.T) {
	h := newTestHarness(t,
		&stubFetcher{doc: htmlDoc("service manual text")},
		func(ctx context.Context, text string) ([]ai.ExtractedAtom, error) {
			return nil, ai.ErrParseFailed
		})
	defer h.cleanup()

	ctx := context.Background()
	job := core.NewIngestionJob("https://example.com/manual.html")
	require.NoError(t, h.orch.Run(ctx, job))

	// Malformed model output is not a crash: it collapses to zero candidates
	// and the job fails because nothing survived.
	assert.Equal(t, core.JobFailed, job.Status)
	assert.Contains(t, strings.Join(job.Errors, "\n"), core.ErrExtraction.Error())
	assert.Contains(t, strings.Join(job.Errors, "\n"), core.ErrNoAtomsSurvived.Error())

	count, err := h.store.CountAtoms(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestRunAllCandidatesRejected(t *testing.T) {
	bad := goodRecord("Only candidate")
	bad.Keywords = nil

	h := newTestHarness(t,
		&stubFetcher{doc: htmlDoc("service manual text")},
		func(ctx context.Context, text string) ([]ai.ExtractedAtom, error) {
			return []ai.ExtractedAtom{bad}, nil
		})
	defer h.cleanup()

	job := core.NewIngestionJob("https://example.com/manual.html")
	require.NoError(t, h.orch.Run(context.Background(), job))

	assert.Equal(t, core.JobFailed, job.Status)
	assert.Contains(t, strings.Join(job.Errors, "\n"), core.ErrNoAtomsSurvived.Error())
}

func TestRunIsIdempotent(t *testing.T) {
	h := newTestHarness(t,
		&stubFetcher{doc: htmlDoc("service manual text")},
		func(ctx context.Context, text string) ([]ai.ExtractedAtom, error) {
			return []ai.ExtractedAtom{goodRecord("Pump cavitation under low inlet pressure")}, nil
		})
	defer h.cleanup()

	ctx := context.Background()

	first := core.NewIngestionJob("https://example.com/manual.html")
	require.NoError(t, h.orch.Run(ctx, first))
	require.Equal(t, core.JobDone, first.Status)

	atomID := first.Atoms[0].AtomID
	original, err := h.store.GetAtom(ctx, atomID)
	require.NoError(t, err)

	// Redelivery of the same source: same atom id, overwrite not duplicate.
	second := core.NewIngestionJob("https://example.com/manual.html")
	second.Attempts = 2
	require.NoError(t, h.orch.Run(ctx, second))
	require.Equal(t, core.JobDone, second.Status)

	count, err := h.store.CountAtoms(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "re-ingestion must not duplicate atoms")

	reingested, err := h.store.GetAtom(ctx, atomID)
	require.NoError(t, err)
	assert.True(t, reingested.DateCreated.Equal(original.DateCreated),
		"DateCreated survives overwrite")
}

func TestRunTruncatesOversizedDocuments(t *testing.T) {
	var seen string
	h := newTestHarness(t,
		&stubFetcher{doc: htmlDoc(strings.Repeat("a", 20000))},
		func(ctx context.Context, text string) ([]ai.ExtractedAtom, error) {
			seen = text
			return []ai.ExtractedAtom{goodRecord("Pump cavitation under low inlet pressure")}, nil
		})
	defer h.cleanup()

	job := core.NewIngestionJob("https://example.com/manual.html")
	require.NoError(t, h.orch.Run(context.Background(), job))

	assert.Len(t, seen, defaultExtractBudget+len(truncationMarker))
	assert.True(t, strings.HasSuffix(seen, truncationMarker))
	assert.Contains(t, strings.Join(job.Logs, "\n"), "truncated")
}

func TestRunContextCancellation(t *testing.T) {
	h := newTestHarness(t, &stubFetcher{doc: htmlDoc("text")}, nil)
	defer h.cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	job := core.NewIngestionJob("https://example.com/manual.html")
	err := h.orch.Run(ctx, job)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, job.Status.Terminal(), "canceled jobs stay non-terminal for redelivery")
}

func TestNewOrchestratorValidation(t *testing.T) {
	limits, err := NewServiceLimits(LimitsConfig{})
	require.NoError(t, err)
	defer limits.Release()

	provider := mock.NewProvider()
	fetcher := &stubFetcher{}

	_, err = NewOrchestrator(nil, fetcher, provider, nil, limits)
	assert.ErrorIs(t, err, ErrStoreRequired)

	atoms, queue, backend, err := badgerstore.NewMemoryStore()
	require.NoError(t, err)
	defer func() { queue.Close(); atoms.Close(); backend.Close() }()

	_, err = NewOrchestrator(atoms, nil, provider, nil, limits)
	assert.ErrorIs(t, err, ErrFetcherRequired)

	_, err = NewOrchestrator(atoms, fetcher, nil, nil, limits)
	assert.ErrorIs(t, err, ErrProviderRequired)

	_, err = NewOrchestrator(atoms, fetcher, provider, nil, limits, WithSourceTier(9))
	assert.Error(t, err)
}

func TestWorkerPoolProcessesQueue(t *testing.T) {
	atoms, queue, backend, err := badgerstore.NewMemoryStore()
	require.NoError(t, err)
	defer func() { queue.Close(); atoms.Close(); backend.Close() }()

	extractor := mock.NewAtomExtractor()
	extractor.ExtractAtomsFunc = func(ctx context.Context, text string) ([]ai.ExtractedAtom, error) {
		return []ai.ExtractedAtom{goodRecord("Pump cavitation under low inlet pressure")}, nil
	}
	provider := mock.NewProviderWithServices(mock.NewEmbedder(), extractor)

	limits, err := NewServiceLimits(LimitsConfig{})
	require.NoError(t, err)
	defer limits.Release()

	orch, err := NewOrchestrator(atoms, &stubFetcher{doc: htmlDoc("manual")}, provider,
		validate.NewEngine(), limits)
	require.NoError(t, err)

	workers, err := NewWorkerPool(queue, orch, WithWorkers(2))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err = queue.Enqueue(ctx, "https://example.com/manual-a.html")
	require.NoError(t, err)
	_, err = queue.Enqueue(ctx, "https://example.com/manual-b.html")
	require.NoError(t, err)

	require.NoError(t, workers.Start(ctx))

	// Both jobs write the same atom id; wait for the queue to drain.
	require.Eventually(t, func() bool {
		n, err := queue.Len(context.Background())
		return err == nil && n == 0
	}, 10*time.Second, 20*time.Millisecond, "queue should drain")

	cancel()
	workers.Wait()
	workers.Release()

	count, err := atoms.CountAtoms(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSchedulerSweepEnqueues(t *testing.T) {
	atoms, queue, backend, err := badgerstore.NewMemoryStore()
	require.NoError(t, err)
	defer func() { queue.Close(); atoms.Close(); backend.Close() }()

	sched, err := NewScheduler(queue, StaticSources(
		"https://example.com/a.pdf",
		"https://example.com/b.pdf",
	))
	require.NoError(t, err)

	require.NoError(t, sched.EnqueueNow(context.Background(), "https://example.com/c.pdf"))

	// Run performs an immediate sweep before waiting on the ticker.
	ctx, cancel := context.WithCancel(context.Background())
	go sched.Run(ctx)

	require.Eventually(t, func() bool {
		n, err := queue.Len(context.Background())
		return err == nil && n == 3
	}, 5*time.Second, 10*time.Millisecond)
	cancel()

	_, err = NewScheduler(nil, StaticSources())
	assert.ErrorIs(t, err, ErrQueueRequired)
	_, err = NewScheduler(queue, nil)
	assert.ErrorIs(t, err, ErrListerRequired)
}
