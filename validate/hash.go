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


package validate

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/go-crypt/x/blake2b"
	"github.com/veridian/atomforge/core"
)

// canonicalAtom is the hash input: the atom's semantic fields in a fixed
// order with keywords sorted. Volatile fields (timestamps, confidence,
// status, embedding, corroboration) are excluded so that re-validation and
// confidence updates do not change the hash.
type canonicalAtom struct {
	AtomID         string   `json:"atom_id"`
	AtomType       string   `json:"atom_type"`
	Title          string   `json:"title"`
	Summary        string   `json:"summary"`
	Content        string   `json:"content"`
	Manufacturer   string   `json:"manufacturer"`
	ProductFamily  string   `json:"product_family"`
	Keywords       []string `json:"keywords"`
	Prerequisites  []string `json:"prerequisites"`
	Difficulty     string   `json:"difficulty"`
	SourceDocument string   `json:"source_document"`
	SourcePages    string   `json:"source_pages"`
}

// CanonicalBytes serializes the atom's semantic fields deterministically.
func CanonicalBytes(atom *core.KnowledgeAtom) []byte {
	keywords := slices.Clone(atom.Keywords)
	slices.Sort(keywords)

	c := canonicalAtom{
		AtomID:         atom.AtomID,
		AtomType:       string(atom.AtomType),
		Title:          atom.Title,
		Summary:        atom.Summary,
		Content:        atom.Content,
		Manufacturer:   atom.Manufacturer,
		ProductFamily:  atom.ProductFamily,
		Keywords:       keywords,
		Prerequisites:  slices.Clone(atom.Prerequisites),
		Difficulty:     string(atom.Difficulty),
		SourceDocument: atom.SourceDocument,
		SourcePages:    atom.SourcePages,
	}
	// Marshal of a flat struct with string fields cannot fail.
	data, _ := json.Marshal(c)
	return data
}

// IntegrityHash computes the BLAKE2b checksum over the atom's canonical
// serialization, hex encoded.
func IntegrityHash(atom *core.KnowledgeAtom) string {
	h, _ := blake2b.New(32, nil)
	h.Write(CanonicalBytes(atom))
	return hex.EncodeToString(h.Sum(nil))
}

// VerifyStored recomputes the hash of an atom read back from storage and
// compares it against the hash the atom carries. A mismatch means the stored
// content diverged from what was validated and is reported as
// core.ErrIntegrity. The caller surfaces it; nothing is auto-repaired.
func VerifyStored(stored *core.KnowledgeAtom) error {
	if stored == nil {
		return fmt.Errorf("%w: stored atom is nil", core.ErrIntegrity)
	}
	computed := IntegrityHash(stored)
	if stored.IntegrityHash != computed {
		return fmt.Errorf("%w: atom %s stored hash %s, recomputed %s",
			core.ErrIntegrity, stored.AtomID, stored.IntegrityHash, computed)
	}
	return nil
}
