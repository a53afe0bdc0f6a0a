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


package badger

import "github.com/veridian/atomforge/storage"

// NewMemoryStore creates an in-memory atom repository and job queue for
// testing. Caller must close the repo, the queue, and the backend when done.
func NewMemoryStore() (storage.AtomRepository, storage.JobQueue, *Backend, error) {
	backend, err := OpenBackend("", true)
	if err != nil {
		return nil, nil, nil, err
	}

	atoms, err := NewAtomRepository(backend)
	if err != nil {
		backend.Close()
		return nil, nil, nil, err
	}

	queue, err := NewJobQueue(backend)
	if err != nil {
		atoms.Close()
		backend.Close()
		return nil, nil, nil, err
	}

	return atoms, queue, backend, nil
}
