package validate

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/veridian/atomforge/core"
)

// Stage names as they appear in validation reports.
const (
	StageStructural = "structural"
	StageReference  = "reference"
	StageConfidence = "confidence"
	StageTemporal   = "temporal"
	StageIntegrity  = "integrity_hash"
)

const (
	defaultConfidenceTolerance = 0.15
	defaultClockSkew           = 5 * time.Minute
	defaultMinCodeExampleLen   = 20
)

// Engine validates knowledge atoms. It is stateless and safe for concurrent
// use; one engine is shared by all workers.
type Engine struct {
	checker             *validator.Validate
	confidenceTolerance float64
	clockSkew           time.Duration
	minCodeExampleLen   int
	now                 func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithConfidenceTolerance sets the allowed gap between the stored and the
// recomputed confidence score before the confidence stage flags the atom.
func WithConfidenceTolerance(tol float64) Option {
	return func(e *Engine) {
		if tol > 0 {
			e.confidenceTolerance = tol
		}
	}
}

// WithClockSkew sets how far in the future a timestamp may lie before the
// temporal stage rejects it.
func WithClockSkew(skew time.Duration) Option {
	return func(e *Engine) {
		if skew > 0 {
			e.clockSkew = skew
		}
	}
}

// WithClock replaces the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine creates a validation engine with default thresholds.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		checker:             validator.New(validator.WithRequiredStructEnabled()),
		confidenceTolerance: defaultConfidenceTolerance,
		clockSkew:           defaultClockSkew,
		minCodeExampleLen:   defaultMinCodeExampleLen,
		now:                 time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Validate runs every stage over the atom and returns the full report.
//
// Side effects on the atom, by design: the computed integrity hash is
// attached, and a confidence mismatch downgrades ConfidenceScore to the
// recomputed value when that value is lower. No other field is touched.
func (e *Engine) Validate(atom *core.KnowledgeAtom) *core.ValidationReport {
	report := &core.ValidationReport{}
	if atom != nil {
		report.AtomID = atom.AtomID
	}

	structural := e.structuralStage(atom)
	reference := e.referenceStage(atom)
	confidence := e.confidenceStage(atom)
	temporal := e.temporalStage(atom)
	integrity, hash := e.integrityStage(atom)

	report.StageResults = []core.StageResult{structural, reference, confidence, temporal, integrity}
	// Stages 3 and 4 flag for review but do not gate.
	report.OverallValid = structural.Passed && reference.Passed
	report.IntegrityHash = hash
	return report
}
