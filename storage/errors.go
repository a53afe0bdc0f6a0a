package storage

import "errors"

var (
	// ErrNotFound indicates that the requested record was not found.
	ErrNotFound = errors.New("record not found")

	// ErrQueueEmpty indicates a dequeue found no deliverable message.
	ErrQueueEmpty = errors.New("queue is empty")

	// ErrLeaseExpired indicates an ack or extend arrived after the lease
	// deadline; the message may already have been redelivered.
	ErrLeaseExpired = errors.New("lease expired")

	// ErrStorageClosed indicates that the storage backend is closed.
	ErrStorageClosed = errors.New("storage is closed")

	// ErrInvalidQuery indicates invalid query parameters.
	ErrInvalidQuery = errors.New("invalid query parameters")

	// ErrSerializationFailed indicates a serialization/deserialization failure.
	ErrSerializationFailed = errors.New("serialization failed")
)
