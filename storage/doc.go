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


// Package storage provides the storage abstraction layer for atomforge.
//
// Two concerns live behind interfaces here:
//
//   - AtomRepository: the knowledge store holding atoms and their embedding
//     vectors, with idempotent upsert and filtered similarity search.
//   - JobQueue: the durable FIFO of ingestion jobs with lease
//     (visibility-timeout) delivery semantics.
//
// Public constructors in backend packages return these interfaces, not
// concrete types, so alternative backends can be swapped in and tests can
// substitute in-memory implementations.
//
// All implementations must be safe for concurrent use; every method accepts
// a context for cancellation.
package storage
