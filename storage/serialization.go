package storage

import (
	"encoding/json"
	"fmt"

	"github.com/veridian/atomforge/core"
)

// Atoms are stored as JSON. The atom's JSON tags are a wire contract shared
// with search and export consumers, so the stored form and the exported form
// stay identical by construction.

// MarshalAtom serializes a KnowledgeAtom to bytes.
func MarshalAtom(atom *core.KnowledgeAtom) ([]byte, error) {
	data, err := json.Marshal(atom)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerializationFailed, err)
	}
	return data, nil
}

// UnmarshalAtom deserializes a KnowledgeAtom from bytes.
func UnmarshalAtom(data []byte) (*core.KnowledgeAtom, error) {
	var atom core.KnowledgeAtom
	if err := json.Unmarshal(data, &atom); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerializationFailed, err)
	}
	return &atom, nil
}
