package core

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AtomType classifies the kind of knowledge an atom carries.
type AtomType string

const (
	// AtomTypeFault describes a failure mode and its symptoms.
	AtomTypeFault AtomType = "fault"
	// AtomTypeProcedure describes an ordered sequence of steps.
	AtomTypeProcedure AtomType = "procedure"
	// AtomTypeConcept explains a term or mechanism.
	AtomTypeConcept AtomType = "concept"
	// AtomTypePattern describes a recurring design or usage pattern.
	AtomTypePattern AtomType = "pattern"
	// AtomTypeSpecification captures nominal values and tolerances.
	AtomTypeSpecification AtomType = "specification"
)

// AtomTypes lists all valid atom types, in canonical order.
var AtomTypes = []AtomType{
	AtomTypeFault,
	AtomTypeProcedure,
	AtomTypeConcept,
	AtomTypePattern,
	AtomTypeSpecification,
}

// Valid reports whether the atom type is a known enum member.
func (t AtomType) Valid() bool {
	switch t {
	case AtomTypeFault, AtomTypeProcedure, AtomTypeConcept, AtomTypePattern, AtomTypeSpecification:
		return true
	}
	return false
}

// Difficulty grades how much prior knowledge an atom assumes.
type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

// Valid reports whether the difficulty is a known enum member.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyBeginner, DifficultyIntermediate, DifficultyAdvanced:
		return true
	}
	return false
}

// AtomStatus tracks an atom through its lifecycle.
type AtomStatus string

const (
	AtomStatusDraft     AtomStatus = "draft"
	AtomStatusValidated AtomStatus = "validated"
	AtomStatusPublished AtomStatus = "published"
	AtomStatusArchived  AtomStatus = "archived"
)

// Valid reports whether the status is a known enum member.
func (s AtomStatus) Valid() bool {
	switch s {
	case AtomStatusDraft, AtomStatusValidated, AtomStatusPublished, AtomStatusArchived:
		return true
	}
	return false
}

// Source tiers rank the trustworthiness of a document's origin.
// Tier 1 is official manufacturer documentation, tier 3 is community content.
const (
	SourceTierOfficial  = 1
	SourceTierPartner   = 2
	SourceTierCommunity = 3
)

// AtomIDPattern is the required shape of an atom identifier:
// a type prefix, a colon, then a lowercase slug (vendor-product-name).
var AtomIDPattern = regexp.MustCompile(`^[a-z-]+:[a-z0-9-]+$`)

// KnowledgeAtom is a self-contained, citeable unit of knowledge extracted
// from a technical document. The JSON field names are a wire contract shared
// with search and export consumers and must remain stable.
//
// Validation bounds are expressed as validator struct tags and enforced by
// the validation engine, not at construction.
type KnowledgeAtom struct {
	AtomID             string     `json:"atom_id" validate:"required"`
	AtomType           AtomType   `json:"atom_type" validate:"required,oneof=fault procedure concept pattern specification"`
	Title              string     `json:"title" validate:"required,min=4,max=160"`
	Summary            string     `json:"summary" validate:"required,min=50,max=200"`
	Content            string     `json:"content" validate:"required,min=300,max=5000"`
	Manufacturer       string     `json:"manufacturer" validate:"required"`
	ProductFamily      string     `json:"product_family" validate:"required"`
	Keywords           []string   `json:"keywords" validate:"required"`
	Prerequisites      []string   `json:"prerequisites,omitempty"`
	Difficulty         Difficulty `json:"difficulty" validate:"required,oneof=beginner intermediate advanced"`
	SourceDocument     string     `json:"source_document"`
	SourcePages        string     `json:"source_pages,omitempty"`
	SourceTier         int        `json:"source_tier" validate:"omitempty,min=1,max=3"`
	CorroborationCount int        `json:"corroboration_count" validate:"gte=0"`
	ConfidenceScore    float64    `json:"confidence_score" validate:"gte=0,lte=1"`
	Status             AtomStatus `json:"status" validate:"required,oneof=draft validated published archived"`
	Embedding          []float32  `json:"embedding,omitempty"`
	IntegrityHash      string     `json:"integrity_hash,omitempty"`
	DateCreated        time.Time  `json:"date_created"`
	DateModified       time.Time  `json:"date_modified"`
}

// MakeAtomID builds a canonical atom identifier of the form
// "type:vendor-product-title". All parts are slugified.
func MakeAtomID(atomType AtomType, vendor, product, title string) string {
	parts := []string{Slugify(vendor), Slugify(product), Slugify(title)}
	nonEmpty := parts[:0]
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return fmt.Sprintf("%s:%s", atomType, strings.Join(nonEmpty, "-"))
}

// Slugify lowercases text and collapses every run of non-alphanumeric
// characters into a single hyphen.
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	b.Grow(len(s))
	lastHyphen := true // suppress leading hyphen
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// JobStatus is the state of an ingestion job in the pipeline state machine.
type JobStatus string

const (
	JobQueued      JobStatus = "queued"
	JobDiscovering JobStatus = "discovering"
	JobFetching    JobStatus = "fetching"
	JobExtracting  JobStatus = "extracting"
	JobValidating  JobStatus = "validating"
	JobIndexing    JobStatus = "indexing"
	JobDone        JobStatus = "done"
	JobFailed      JobStatus = "failed"
)

// Terminal reports whether the status is a terminal state.
func (s JobStatus) Terminal() bool {
	return s == JobDone || s == JobFailed
}

// ContentType classifies a fetched document.
type ContentType string

const (
	ContentTypePDF     ContentType = "pdf"
	ContentTypeHTML    ContentType = "html"
	ContentTypeText    ContentType = "text"
	ContentTypeUnknown ContentType = "unknown"
)

// IngestionJob is one unit of ingestion work tied to a single source URL.
// A job is owned by exactly one worker while it is being processed.
//
// Logs and Errors are append-only. A job can finish Done with a non-empty
// Errors list: success means at least one atom was indexed, not that every
// candidate survived.
type IngestionJob struct {
	JobID        string           `json:"job_id"`
	SourceURL    string           `json:"source_url"`
	Status       JobStatus        `json:"status"`
	Attempts     int              `json:"attempts"`
	RawText      string           `json:"raw_text,omitempty"`
	ContentType  ContentType      `json:"content_type,omitempty"`
	Atoms        []*KnowledgeAtom `json:"atoms,omitempty"`
	AtomsIndexed int              `json:"atoms_indexed"`
	Logs         []string         `json:"logs"`
	Errors       []string         `json:"errors"`
	EnqueuedAt   time.Time        `json:"enqueued_at"`
	StartedAt    time.Time        `json:"started_at,omitempty"`
	FinishedAt   time.Time        `json:"finished_at,omitempty"`
}

// NewIngestionJob creates a fresh job for the given source URL.
func NewIngestionJob(sourceURL string) *IngestionJob {
	return &IngestionJob{
		JobID:      uuid.NewString(),
		SourceURL:  sourceURL,
		Status:     JobQueued,
		EnqueuedAt: time.Now().UTC(),
	}
}

// Logf appends a formatted entry to the job's log sequence.
func (j *IngestionJob) Logf(format string, args ...any) {
	j.Logs = append(j.Logs, fmt.Sprintf(format, args...))
}

// Errorf appends a formatted entry to the job's error sequence.
func (j *IngestionJob) Errorf(format string, args ...any) {
	j.Errors = append(j.Errors, fmt.Sprintf(format, args...))
}

// StageResult records the outcome of a single validation stage.
type StageResult struct {
	Stage  string   `json:"stage"`
	Passed bool     `json:"passed"`
	Issues []string `json:"issues,omitempty"`
}

// ValidationReport is the full diagnostic produced by one validation pass
// over one atom. Reports are created fresh per pass and never mutated.
type ValidationReport struct {
	AtomID        string        `json:"atom_id"`
	StageResults  []StageResult `json:"stage_results"`
	OverallValid  bool          `json:"overall_valid"`
	IntegrityHash string        `json:"integrity_hash,omitempty"`
}

// Issues flattens every stage's issues into a single list, prefixed with the
// stage name.
func (r *ValidationReport) Issues() []string {
	var out []string
	for _, sr := range r.StageResults {
		for _, issue := range sr.Issues {
			out = append(out, sr.Stage+": "+issue)
		}
	}
	return out
}

// SearchResult pairs an atom with its similarity score for a query.
type SearchResult struct {
	Atom       *KnowledgeAtom `json:"atom"`
	Similarity float32        `json:"similarity"`
}
