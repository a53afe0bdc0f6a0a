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


// Package validate implements the multi-stage quality gate for knowledge
// atoms.
//
// The engine is pure and deterministic: validating the same atom twice
// produces the same report. Stages run in a fixed order and every stage runs
// even when an earlier one failed, so a single pass yields a complete
// diagnostic:
//
//  1. structural - required fields, enum membership, length bounds, atom_id
//     pattern, code-fence checks
//  2. reference - keyword and prerequisite constraints (existence of
//     prerequisite atoms is deliberately not checked)
//  3. confidence - recomputes the expected confidence from source tier and
//     corroboration; a mismatch is a warning, not a gate
//  4. temporal - timestamp ordering and clock-skew checks; warning only
//  5. integrity_hash - computes the canonical content hash and attaches it
//     to the atom
//
// An atom is usable (may proceed to indexing) iff stages 1 and 2 pass.
// VerifyStored is the optional post-write audit: it recomputes the hash of
// an atom read back from storage and reports corruption as core.ErrIntegrity.
package validate
