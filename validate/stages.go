package validate

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/veridian/atomforge/core"
)

const (
	minKeywords      = 3
	maxKeywords      = 15
	maxPrerequisites = 10
)

// structuralStage checks required fields, enum membership, length bounds,
// the atom_id pattern, and fenced code examples.
func (e *Engine) structuralStage(atom *core.KnowledgeAtom) core.StageResult {
	result := core.StageResult{Stage: StageStructural, Passed: true}
	fail := func(format string, args ...any) {
		result.Passed = false
		result.Issues = append(result.Issues, fmt.Sprintf(format, args...))
	}

	if atom == nil {
		fail("atom is nil")
		return result
	}

	if err := e.checker.Struct(atom); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fe := range fieldErrs {
				fail("field %s violates %q constraint (value %v)", fe.Field(), fe.Tag(), fe.Value())
			}
		} else {
			fail("structural check: %v", err)
		}
	}

	if atom.AtomID != "" && !core.AtomIDPattern.MatchString(atom.AtomID) {
		fail("atom_id %q does not match pattern %s", atom.AtomID, core.AtomIDPattern.String())
	}

	checkCodeExamples(atom.Content, e.minCodeExampleLen, fail)
	return result
}

// checkCodeExamples verifies that fenced code blocks, when present, are
// balanced and carry a minimum amount of code.
func checkCodeExamples(content string, minLen int, fail func(string, ...any)) {
	fences := strings.Count(content, "```")
	if fences == 0 {
		return
	}
	if fences%2 != 0 {
		fail("unbalanced code fence markers (%d occurrences of ```)", fences)
		return
	}
	rest := content
	for {
		open := strings.Index(rest, "```")
		if open < 0 {
			break
		}
		rest = rest[open+3:]
		// Skip the language tag on the opening fence line.
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			rest = rest[nl+1:]
		}
		closing := strings.Index(rest, "```")
		if closing < 0 {
			break
		}
		block := strings.TrimSpace(rest[:closing])
		if len(block) < minLen {
			fail("code example shorter than %d characters", minLen)
		}
		rest = rest[closing+3:]
	}
}

// referenceStage checks keyword and prerequisite constraints. Prerequisites
// must look like atom ids; whether they resolve to existing atoms is not
// checked.
func (e *Engine) referenceStage(atom *core.KnowledgeAtom) core.StageResult {
	result := core.StageResult{Stage: StageReference, Passed: true}
	fail := func(format string, args ...any) {
		result.Passed = false
		result.Issues = append(result.Issues, fmt.Sprintf(format, args...))
	}

	if atom == nil {
		fail("atom is nil")
		return result
	}

	if n := len(atom.Keywords); n < minKeywords || n > maxKeywords {
		fail("keyword count %d outside [%d,%d]", n, minKeywords, maxKeywords)
	}
	for i, kw := range atom.Keywords {
		if strings.TrimSpace(kw) == "" {
			fail("keyword %d is blank", i)
		}
	}

	if n := len(atom.Prerequisites); n > maxPrerequisites {
		fail("prerequisite count %d exceeds %d", n, maxPrerequisites)
	}
	for _, prereq := range atom.Prerequisites {
		if !core.AtomIDPattern.MatchString(prereq) {
			fail("prerequisite %q does not match pattern %s", prereq, core.AtomIDPattern.String())
		}
	}
	return result
}

// tierBase maps a source tier to its baseline confidence.
var tierBase = map[int]float64{
	core.SourceTierOfficial:  0.90,
	core.SourceTierPartner:   0.75,
	core.SourceTierCommunity: 0.55,
}

// ExpectedConfidence recomputes the confidence score an atom should carry
// given its source tier and corroboration count. Unknown tiers are treated
// as community content.
func ExpectedConfidence(sourceTier, corroborationCount int) float64 {
	base, ok := tierBase[sourceTier]
	if !ok {
		base = tierBase[core.SourceTierCommunity]
	}
	if corroborationCount > 4 {
		corroborationCount = 4
	}
	score := base + 0.05*float64(corroborationCount)
	return math.Min(1.0, math.Max(0.0, score))
}

// confidenceStage compares the stored confidence against the recomputed
// value. A mismatch beyond the tolerance is a warning: the stage reports it
// and downgrades the stored score, but never blocks the atom.
func (e *Engine) confidenceStage(atom *core.KnowledgeAtom) core.StageResult {
	result := core.StageResult{Stage: StageConfidence, Passed: true}
	if atom == nil {
		return result
	}

	expected := ExpectedConfidence(atom.SourceTier, atom.CorroborationCount)
	if math.Abs(expected-atom.ConfidenceScore) > e.confidenceTolerance {
		result.Passed = false
		result.Issues = append(result.Issues,
			fmt.Sprintf("stored confidence %.2f deviates from recomputed %.2f (tolerance %.2f)",
				atom.ConfidenceScore, expected, e.confidenceTolerance))
		if expected < atom.ConfidenceScore {
			atom.ConfidenceScore = expected
		}
	}
	return result
}

// temporalStage rejects inverted timestamps and timestamps in the future
// beyond the clock-skew tolerance. Zero timestamps pass: they are volatile
// fields populated at indexing time.
func (e *Engine) temporalStage(atom *core.KnowledgeAtom) core.StageResult {
	result := core.StageResult{Stage: StageTemporal, Passed: true}
	fail := func(format string, args ...any) {
		result.Passed = false
		result.Issues = append(result.Issues, fmt.Sprintf(format, args...))
	}

	if atom == nil {
		return result
	}

	horizon := e.now().Add(e.clockSkew)
	if !atom.DateCreated.IsZero() && atom.DateCreated.After(horizon) {
		fail("date_created %s is in the future", atom.DateCreated.Format("2006-01-02T15:04:05Z07:00"))
	}
	if !atom.DateModified.IsZero() && atom.DateModified.After(horizon) {
		fail("date_modified %s is in the future", atom.DateModified.Format("2006-01-02T15:04:05Z07:00"))
	}
	if !atom.DateCreated.IsZero() && !atom.DateModified.IsZero() && atom.DateModified.Before(atom.DateCreated) {
		fail("date_modified precedes date_created")
	}
	return result
}

// integrityStage computes the canonical hash over the atom's semantic fields
// and attaches it. The stage cannot fail; it exists so the report documents
// that the hash was produced by this pass.
func (e *Engine) integrityStage(atom *core.KnowledgeAtom) (core.StageResult, string) {
	result := core.StageResult{Stage: StageIntegrity, Passed: true}
	if atom == nil {
		return result, ""
	}
	hash := IntegrityHash(atom)
	atom.IntegrityHash = hash
	return result, hash
}
