package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"simple", "Acme", "acme"},
		{"spaces", "Pump Cavitation", "pump-cavitation"},
		{"punctuation", "X-200 (Rev. B)", "x-200-rev-b"},
		{"collapses runs", "a   --  b", "a-b"},
		{"leading and trailing", "  !hello!  ", "hello"},
		{"digits kept", "model 3000", "model-3000"},
		{"empty", "", ""},
		{"only symbols", "!!!", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Slugify(tt.input))
		})
	}
}

func TestMakeAtomID(t *testing.T) {
	id := MakeAtomID(AtomTypeFault, "Acme", "X-200", "Pump Cavitation")
	assert.Equal(t, "fault:acme-x-200-pump-cavitation", id)
	assert.Regexp(t, AtomIDPattern, id)

	// Empty parts are skipped, not doubled into hyphens.
	id = MakeAtomID(AtomTypeConcept, "", "X200", "Intro")
	assert.Equal(t, "concept:x200-intro", id)
}

func TestEnumValidity(t *testing.T) {
	for _, at := range AtomTypes {
		assert.True(t, at.Valid(), "atom type %s", at)
	}
	assert.False(t, AtomType("recipe").Valid())
	assert.False(t, AtomType("").Valid())

	assert.True(t, DifficultyBeginner.Valid())
	assert.False(t, Difficulty("expert").Valid())

	assert.True(t, AtomStatusDraft.Valid())
	assert.False(t, AtomStatus("deleted").Valid())
}

func TestJobStatusTerminal(t *testing.T) {
	assert.True(t, JobDone.Terminal())
	assert.True(t, JobFailed.Terminal())
	assert.False(t, JobQueued.Terminal())
	assert.False(t, JobIndexing.Terminal())
}

func TestIngestionJobLogAppend(t *testing.T) {
	job := NewIngestionJob("https://example.com/manual.pdf")
	assert.NotEmpty(t, job.JobID)
	assert.Equal(t, JobQueued, job.Status)

	job.Logf("fetched %d bytes", 42)
	job.Logf("second entry")
	job.Errorf("atom %s rejected", "fault:x")

	assert.Equal(t, []string{"fetched 42 bytes", "second entry"}, job.Logs)
	assert.Equal(t, []string{"atom fault:x rejected"}, job.Errors)
}

func TestValidationReportIssues(t *testing.T) {
	report := &ValidationReport{
		StageResults: []StageResult{
			{Stage: "structural", Passed: false, Issues: []string{"content too short"}},
			{Stage: "reference", Passed: true},
			{Stage: "temporal", Passed: false, Issues: []string{"date_modified precedes date_created"}},
		},
	}

	assert.Equal(t, []string{
		"structural: content too short",
		"temporal: date_modified precedes date_created",
	}, report.Issues())

	empty := &ValidationReport{}
	assert.Empty(t, empty.Issues())
}
