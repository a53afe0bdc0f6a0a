// Package pipeline drives ingestion jobs from a queued source URL to an
// indexed set of knowledge atoms.
//
// The flow per job is a strict state machine:
//
//	Queued -> Discovering -> Fetching -> Extracting -> Validating
//	                                                      |
//	                          Failed <- (no survivors)    | (>=1 survivor)
//	                                                      v
//	                                                  Indexing -> Done
//
// Transitions are a pure function over a static table (see Next), separate
// from the I/O-performing stage handlers in Orchestrator.
//
// Failures have two granularities. Job-level failures (missing URL, download
// error, zero surviving atoms) end the job in Failed. Atom-level failures
// (validation rejection, embedding or upsert errors) drop the single atom
// and append to the job's error list without failing the job: a job is
// successful when at least one atom reached the store. Done with a non-empty
// error list is therefore a normal outcome.
//
// Parallelism is across jobs only: a WorkerPool runs one job start-to-finish
// per worker, and shared ServiceLimits cap concurrent calls to each external
// service independently of the worker count.
package pipeline
