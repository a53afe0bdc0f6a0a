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


package core

import "errors"

// Pipeline error taxonomy. Stage handlers wrap these sentinels so callers
// can classify failures with errors.Is without parsing messages.
var (
	// ErrDiscovery indicates a job has no source URL to work from.
	ErrDiscovery = errors.New("discovery failed")

	// ErrFetch indicates the source document could not be downloaded.
	ErrFetch = errors.New("download failed")

	// ErrExtraction indicates the extraction service output could not be
	// parsed. Non-fatal: the job continues with zero candidate atoms.
	ErrExtraction = errors.New("extraction failed")

	// ErrValidation indicates a single atom failed the validation gate.
	// Non-fatal to the job: the atom is dropped.
	ErrValidation = errors.New("validation failed")

	// ErrIndexing indicates embedding or upsert failed for a single atom.
	// Non-fatal to the job: already-indexed atoms are not reverted.
	ErrIndexing = errors.New("indexing failed")

	// ErrIntegrity indicates a post-write hash mismatch. Fatal for the
	// affected atom; surfaced for manual reconciliation, never auto-repaired.
	ErrIntegrity = errors.New("integrity hash mismatch")

	// ErrNoAtomsSurvived indicates no candidate atom passed validation,
	// which fails the whole job.
	ErrNoAtomsSurvived = errors.New("no atoms survived validation")
)
