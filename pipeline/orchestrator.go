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


package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/veridian/atomforge/ai"
	"github.com/veridian/atomforge/core"
	"github.com/veridian/atomforge/fetch"
	"github.com/veridian/atomforge/storage"
	"github.com/veridian/atomforge/validate"
)

const (
	// defaultExtractBudget caps how much document text is sent to the
	// extraction model in one call.
	defaultExtractBudget = 8000
	// truncationMarker is appended when the budget cuts the document short.
	truncationMarker = "\n[truncated]"

	defaultRetryAttempts = 3
	defaultRetryDelay    = 500 * time.Millisecond
)

// Orchestrator runs a single ingestion job through every pipeline stage.
// It is safe for concurrent use; per-job state lives entirely on the job.
type Orchestrator struct {
	store    storage.AtomRepository
	fetcher  fetch.Fetcher
	provider ai.Provider
	engine   *validate.Engine
	limits   *ServiceLimits

	extractBudget    int
	sourceTier       int
	verifyAfterIndex bool
	retryAttempts    int
	retryDelay       time.Duration
	logger           *slog.Logger
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator) error

// WithExtractBudget caps the characters of document text handed to the
// extraction model.
func WithExtractBudget(chars int) OrchestratorOption {
	return func(o *Orchestrator) error {
		if chars > 0 {
			o.extractBudget = chars
		}
		return nil
	}
}

// WithSourceTier sets the trust tier assigned to atoms from this
// orchestrator's sources (1 = official, 3 = community).
func WithSourceTier(tier int) OrchestratorOption {
	return func(o *Orchestrator) error {
		if tier < core.SourceTierOfficial || tier > core.SourceTierCommunity {
			return fmt.Errorf("source tier out of range: %d", tier)
		}
		o.sourceTier = tier
		return nil
	}
}

// WithStoredVerification enables a read-back integrity check after each
// atom is written.
func WithStoredVerification(enabled bool) OrchestratorOption {
	return func(o *Orchestrator) error {
		o.verifyAfterIndex = enabled
		return nil
	}
}

// WithRetry sets the attempt budget and base delay for embedding and store
// calls during indexing.
func WithRetry(attempts int, baseDelay time.Duration) OrchestratorOption {
	return func(o *Orchestrator) error {
		if attempts <= 0 {
			return ErrInvalidMaxAttempts
		}
		o.retryAttempts = attempts
		if baseDelay > 0 {
			o.retryDelay = baseDelay
		}
		return nil
	}
}

// WithOrchestratorLogger sets the logger.
func WithOrchestratorLogger(logger *slog.Logger) OrchestratorOption {
	return func(o *Orchestrator) error {
		if logger != nil {
			o.logger = logger
		}
		return nil
	}
}

// NewOrchestrator wires the stage handlers to their collaborators.
func NewOrchestrator(store storage.AtomRepository, fetcher fetch.Fetcher, provider ai.Provider,
	engine *validate.Engine, limits *ServiceLimits, opts ...OrchestratorOption) (*Orchestrator, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if fetcher == nil {
		return nil, ErrFetcherRequired
	}
	if provider == nil {
		return nil, ErrProviderRequired
	}
	if engine == nil {
		engine = validate.NewEngine()
	}

	o := &Orchestrator{
		store:            store,
		fetcher:          fetcher,
		provider:         provider,
		engine:           engine,
		limits:           limits,
		extractBudget:    defaultExtractBudget,
		sourceTier:       core.SourceTierCommunity,
		verifyAfterIndex: true,
		retryAttempts:    defaultRetryAttempts,
		retryDelay:       defaultRetryDelay,
		logger:           slog.Default().With("component", "orchestrator"),
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// Run drives the job from Queued to a terminal state, mutating it in place.
// The only error Run returns is context cancellation; every other failure is
// recorded on the job and expressed through its terminal status.
func (o *Orchestrator) Run(ctx context.Context, job *core.IngestionJob) error {
	job.StartedAt = time.Now().UTC()
	logger := o.logger.With("jobID", job.JobID, "url", job.SourceURL)

	finish := func() {
		job.FinishedAt = time.Now().UTC()
		logger.Info("job finished",
			"status", job.Status,
			"atomsIndexed", job.AtomsIndexed,
			"errors", len(job.Errors),
			"duration", job.FinishedAt.Sub(job.StartedAt))
	}

	if err := o.advance(job, EventStart); err != nil {
		return err
	}

	// Discovering
	if strings.TrimSpace(job.SourceURL) == "" {
		job.Errorf("%v: job has no source URL", core.ErrDiscovery)
		if err := o.advance(job, EventSourceMissing); err != nil {
			return err
		}
		finish()
		return nil
	}
	job.Logf("discovered source %s", job.SourceURL)
	if err := o.advance(job, EventSourceResolved); err != nil {
		return err
	}

	// Fetching
	doc, err := o.fetchDocument(ctx, job)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		job.Errorf("%v", err)
		if err := o.advance(job, EventFetchFailed); err != nil {
			return err
		}
		finish()
		return nil
	}
	job.RawText = doc.Text
	job.ContentType = doc.ContentType
	job.Logf("fetched %d chars of %s content", len(doc.Text), doc.ContentType)
	if err := o.advance(job, EventFetched); err != nil {
		return err
	}

	// Extracting. A failed or unparseable extraction yields zero candidates,
	// not a hard stop: the validating stage decides the job's fate.
	records := o.extractCandidates(ctx, job, doc.Text)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err := o.advance(job, EventExtracted); err != nil {
		return err
	}

	// Validating
	survivors := o.validateCandidates(job, records)
	job.Atoms = survivors
	if len(survivors) == 0 {
		job.Errorf("%v: %d candidates, 0 survived validation", core.ErrNoAtomsSurvived, len(records))
		if err := o.advance(job, EventNoSurvivors); err != nil {
			return err
		}
		finish()
		return nil
	}
	if err := o.advance(job, EventAtomsValidated); err != nil {
		return err
	}

	// Indexing
	if err := o.indexAtoms(ctx, job, survivors); err != nil {
		return err
	}
	if err := o.advance(job, EventIndexed); err != nil {
		return err
	}

	finish()
	return nil
}

// advance applies an event via the transition table and logs the edge.
func (o *Orchestrator) advance(job *core.IngestionJob, event Event) error {
	next, err := Next(job.Status, event)
	if err != nil {
		return err
	}
	o.logger.Debug("state transition", "jobID", job.JobID, "from", job.Status, "event", event, "to", next)
	job.Status = next
	return nil
}

func (o *Orchestrator) fetchDocument(ctx context.Context, job *core.IngestionJob) (*fetch.Document, error) {
	var doc *fetch.Document
	err := o.limits.Fetch.Do(ctx, func() error {
		var fetchErr error
		doc, fetchErr = o.fetcher.Fetch(ctx, job.SourceURL)
		return fetchErr
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// extractCandidates calls the extraction model over the (budgeted) document
// text. Extraction errors are recorded on the job and collapse to zero
// candidates.
func (o *Orchestrator) extractCandidates(ctx context.Context, job *core.IngestionJob, text string) []ai.ExtractedAtom {
	input := text
	if len(input) > o.extractBudget {
		input = input[:o.extractBudget] + truncationMarker
		job.Logf("document truncated to %d chars for extraction", o.extractBudget)
	}

	var records []ai.ExtractedAtom
	err := o.limits.Extract.Do(ctx, func() error {
		var extractErr error
		records, extractErr = o.provider.AtomExtractor().ExtractAtoms(ctx, input)
		return extractErr
	})
	if err != nil {
		job.Errorf("%v: %v", core.ErrExtraction, err)
		return nil
	}
	job.Logf("extracted %d candidate atoms", len(records))
	return records
}

// validateCandidates builds full atoms from the extraction records and runs
// each through the validation gate. Rejected atoms are dropped individually.
func (o *Orchestrator) validateCandidates(job *core.IngestionJob, records []ai.ExtractedAtom) []*core.KnowledgeAtom {
	var survivors []*core.KnowledgeAtom
	for i, record := range records {
		atom := o.buildAtom(job, record)
		report := o.engine.Validate(atom)
		if !report.OverallValid {
			job.Errorf("%v: atom %s rejected: %s",
				core.ErrValidation, atom.AtomID, strings.Join(report.Issues(), "; "))
			continue
		}
		for _, issue := range report.Issues() {
			job.Logf("atom %s warning: %s", atom.AtomID, issue)
		}
		atom.Status = core.AtomStatusValidated
		survivors = append(survivors, atom)
		o.logger.Debug("atom validated", "jobID", job.JobID, "index", i, "atomID", atom.AtomID)
	}
	job.Logf("%d of %d candidates survived validation", len(survivors), len(records))
	return survivors
}

// buildAtom maps one extraction record onto a draft knowledge atom. Values
// are normalized, never rejected here; the validation gate owns rejection.
func (o *Orchestrator) buildAtom(job *core.IngestionJob, record ai.ExtractedAtom) *core.KnowledgeAtom {
	now := time.Now().UTC()
	atomType := core.AtomType(strings.ToLower(strings.TrimSpace(record.AtomType)))

	keywords := make([]string, 0, len(record.Keywords))
	for _, kw := range record.Keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			keywords = append(keywords, kw)
		}
	}

	return &core.KnowledgeAtom{
		AtomID:          core.MakeAtomID(atomType, record.Vendor, record.Product, record.Title),
		AtomType:        atomType,
		Title:           strings.TrimSpace(record.Title),
		Summary:         strings.TrimSpace(record.Summary),
		Content:         strings.TrimSpace(record.Content),
		Manufacturer:    core.Slugify(record.Vendor),
		ProductFamily:   core.Slugify(record.Product),
		Keywords:        keywords,
		Difficulty:      core.Difficulty(strings.ToLower(strings.TrimSpace(record.Difficulty))),
		SourceDocument:  job.SourceURL,
		SourceTier:      o.sourceTier,
		ConfidenceScore: validate.ExpectedConfidence(o.sourceTier, 0),
		Status:          core.AtomStatusDraft,
		DateCreated:     now,
		DateModified:    now,
	}
}

// indexAtoms embeds and upserts each surviving atom. A failure drops that
// atom alone; the job fails only on context cancellation.
func (o *Orchestrator) indexAtoms(ctx context.Context, job *core.IngestionJob, atoms []*core.KnowledgeAtom) error {
	for _, atom := range atoms {
		if err := o.indexAtom(ctx, job, atom); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			job.Errorf("%v: atom %s: %v", core.ErrIndexing, atom.AtomID, err)
			continue
		}
		job.AtomsIndexed++
	}
	job.Logf("indexed %d of %d atoms", job.AtomsIndexed, len(atoms))
	return nil
}

func (o *Orchestrator) indexAtom(ctx context.Context, job *core.IngestionJob, atom *core.KnowledgeAtom) error {
	embedErr := RetryWithBackoff(ctx, func() error {
		return o.limits.Embed.Do(ctx, func() error {
			vector, err := o.provider.Embedder().EmbedText(ctx, embeddingText(atom))
			if err != nil {
				return err
			}
			atom.Embedding = vector
			return nil
		})
	}, o.retryAttempts, o.retryDelay)
	if embedErr != nil {
		return fmt.Errorf("embedding: %w", embedErr)
	}

	storeErr := RetryWithBackoff(ctx, func() error {
		return o.limits.Store.Do(ctx, func() error {
			return o.store.UpsertAtoms(ctx, atom)
		})
	}, o.retryAttempts, o.retryDelay)
	if storeErr != nil {
		return fmt.Errorf("upsert: %w", storeErr)
	}

	if o.verifyAfterIndex {
		stored, err := o.store.GetAtom(ctx, atom.AtomID)
		if err != nil {
			return fmt.Errorf("read-back: %w", err)
		}
		if err := validate.VerifyStored(stored); err != nil {
			return err
		}
	}
	return nil
}

// embeddingText is the canonical text embedded for similarity search.
func embeddingText(atom *core.KnowledgeAtom) string {
	return atom.Title + "\n" + atom.Summary + "\n" + atom.Content
}
