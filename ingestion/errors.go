package ingestion

import (
	"errors"
	"fmt"
)

var (
	// ErrBusRequired is returned when an event bus is not provided.
	ErrBusRequired = errors.New("event bus required")

	// ErrLedgerRequired is returned when a job ledger is not provided.
	ErrLedgerRequired = errors.New("job ledger required")

	// ErrBlobStoreRequired is returned when a blob store is not provided.
	ErrBlobStoreRequired = errors.New("blob store required")

	// ErrVectorStoreRequired is returned when a vector store is not provided.
	ErrVectorStoreRequired = errors.New("vector store required")

	// ErrProjectsRequired is returned when a project directory is not provided.
	ErrProjectsRequired = errors.New("project directory required")

	// ErrLimiterRequired is returned when a concurrency limiter is not provided.
	ErrLimiterRequired = errors.New("limiter required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrProjectNotFound is returned when the target project is unknown
	// or expired.
	ErrProjectNotFound = errors.New("project not found")
)

// ValidationError reports a rejected ingestion request. The job was
// never created; nothing entered the pipeline.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid request: %s: %s", e.Field, e.Reason)
}
