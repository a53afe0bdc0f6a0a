package pipeline

import (
	"fmt"

	"github.com/veridian/atomforge/core"
)

// Event is a pipeline occurrence that may advance a job's state.
type Event int

const (
	// EventStart begins processing a queued job.
	EventStart Event = iota + 1
	// EventSourceResolved records that the job has a usable source URL.
	EventSourceResolved
	// EventSourceMissing records that the job has no source URL.
	EventSourceMissing
	// EventFetched records a successful document download.
	EventFetched
	// EventFetchFailed records a download failure.
	EventFetchFailed
	// EventExtracted records extraction completion, with zero or more
	// candidate atoms.
	EventExtracted
	// EventAtomsValidated records that at least one atom survived the gate.
	EventAtomsValidated
	// EventNoSurvivors records that every candidate atom was rejected.
	EventNoSurvivors
	// EventIndexed records that every surviving atom was attempted.
	EventIndexed
)

var eventNames = map[Event]string{
	EventStart:          "start",
	EventSourceResolved: "source_resolved",
	EventSourceMissing:  "source_missing",
	EventFetched:        "fetched",
	EventFetchFailed:    "fetch_failed",
	EventExtracted:      "extracted",
	EventAtomsValidated: "atoms_validated",
	EventNoSurvivors:    "no_survivors",
	EventIndexed:        "indexed",
}

func (e Event) String() string {
	if name, ok := eventNames[e]; ok {
		return name
	}
	return fmt.Sprintf("event(%d)", int(e))
}

// transitions is the complete legal transition table. Anything absent is an
// invalid transition.
var transitions = map[core.JobStatus]map[Event]core.JobStatus{
	core.JobQueued: {
		EventStart: core.JobDiscovering,
	},
	core.JobDiscovering: {
		EventSourceResolved: core.JobFetching,
		EventSourceMissing:  core.JobFailed,
	},
	core.JobFetching: {
		EventFetched:     core.JobExtracting,
		EventFetchFailed: core.JobFailed,
	},
	core.JobExtracting: {
		EventExtracted: core.JobValidating,
	},
	core.JobValidating: {
		EventAtomsValidated: core.JobIndexing,
		EventNoSurvivors:    core.JobFailed,
	},
	core.JobIndexing: {
		EventIndexed: core.JobDone,
	},
}

// Next is the pure transition function of the pipeline state machine.
// It performs no I/O and is independently testable from the stage handlers.
func Next(state core.JobStatus, event Event) (core.JobStatus, error) {
	if next, ok := transitions[state][event]; ok {
		return next, nil
	}
	return state, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, event, state)
}
