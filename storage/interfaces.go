package storage

import (
	"context"
	"time"

	"github.com/quillstore/quill/core"
)

// JobUpdate carries the optional fields of a status transition. Nil
// fields are left untouched on the stored job.
type JobUpdate struct {
	Progress *int
	Result   *core.JobResult
	Error    *string
}

// JobLedger tracks every ingestion job from creation to a terminal
// state. Implementations must be thread-safe and support concurrent
// access; stage handlers for different jobs update the ledger in
// parallel.
type JobLedger interface {
	// CreateJob persists a new job record. The job must pass
	// core.ValidateJob; its status is normally core.JobQueued.
	CreateJob(ctx context.Context, job *core.Job) error

	// GetJob retrieves a job by ID. Returns (nil, nil) when the job does
	// not exist, so callers can distinguish absence from storage failure.
	GetJob(ctx context.Context, id string) (*core.Job, error)

	// UpdateStatus transitions a job to a new status, applying the
	// optional update fields. Backward transitions return
	// core.ErrInvalidTransition. Progress never decreases: a lower
	// value than the stored one is clamped up. Transitioning into
	// core.JobCompleted forces progress to 100 and stamps CompletedAt;
	// core.JobFailed stamps CompletedAt only. Terminal jobs are
	// retained for a limited period and then expire.
	UpdateStatus(ctx context.Context, id string, status core.JobStatus, update *JobUpdate) (*core.Job, error)

	// IncrementProgress adds delta to the job's progress, capped at 100.
	// Used by the per-page stages whose contributions accumulate.
	IncrementProgress(ctx context.Context, id string, delta int) (*core.Job, error)

	// ListJobsByOwner returns an owner's jobs, newest first, up to limit.
	// A limit <= 0 means no limit; an empty status means all statuses.
	ListJobsByOwner(ctx context.Context, ownerID string, limit int, status core.JobStatus) ([]*core.Job, error)

	// ListJobsByProject returns a project's jobs, newest first, up to limit.
	ListJobsByProject(ctx context.Context, projectID string, limit int, status core.JobStatus) ([]*core.Job, error)

	// Close closes the ledger and releases resources.
	Close() error
}

// BlobMeta describes a stored blob without its bytes.
type BlobMeta struct {
	Blob      *core.StoredBlob
	Duplicate bool // true when SaveOrReuse matched an existing hash
}

// BlobStats summarizes the blob store for operational visibility.
type BlobStats struct {
	FileCount    int     // physical data entries, one per saving job
	UniqueHashes int     // distinct content hashes
	TotalRefs    int     // sum of reference counts across all hashes
	TotalBytes   int64   // sum of physical entry sizes
	DedupRatio   float64 // share of saves that matched an existing hash
}

// BlobStore is the content-addressed staging area for uploaded bytes.
// Entries are temporary; every physical entry carries a TTL and
// vanishes without any sweeper process.
//
// Deduplication is bookkeeping only: saving bytes whose hash already
// exists bumps the reference count on the shared metadata record, but
// the bytes are still written physically under the saving job's key.
// The ratio in BlobStats reflects how much dedup a future
// single-physical-copy layout would save.
type BlobStore interface {
	// SaveOrReuse persists data under its content hash. Returns the
	// metadata record, with Duplicate set when the hash already existed.
	SaveOrReuse(ctx context.Context, data []byte, jobID string) (*BlobMeta, error)

	// GetByHash returns the stored bytes for a content hash. Returns
	// ErrNotFound when no live entry exists for the hash.
	GetByHash(ctx context.Context, hash string) ([]byte, error)

	// DeleteByHash decrements the reference count for a hash and
	// removes the physical entries once the count reaches zero.
	DeleteByHash(ctx context.Context, hash string) error

	// Stats reports the current physical and logical contents.
	Stats(ctx context.Context) (*BlobStats, error)

	// Close closes the store and releases resources.
	Close() error
}

// VectorStore persists embedded chunks into per-tenant collections and
// serves similarity search over them. Records inherit the owning
// project's expiry.
type VectorStore interface {
	// UpsertBatch writes a batch of vector records into a collection.
	// Records must already carry their expiry.
	UpsertBatch(ctx context.Context, projectID, collection string, records []*core.VectorRecord) error

	// Search returns the records most similar to the query vector,
	// highest cosine similarity first, up to limit results at or above
	// minScore.
	Search(ctx context.Context, projectID, collection string, query []float32, minScore float32, limit int) ([]*core.VectorMatch, error)

	// DeleteByDocument removes every record a document contributed to a
	// collection. Returns the number of records removed.
	DeleteByDocument(ctx context.Context, projectID, collection, documentID string) (int, error)

	// ListBatch pages through a collection for maintenance jobs. Pass an
	// empty cursor to start; an empty returned cursor means the end.
	ListBatch(ctx context.Context, projectID, collection string, cursor string, limit int) ([]*core.VectorRecord, string, error)

	// Count returns the number of live records in a collection.
	Count(ctx context.Context, projectID, collection string) (int, error)

	// Close closes the store and releases resources.
	Close() error
}

// IndexEnsurer prepares a collection for writes. Implementations must
// be idempotent; the pipeline calls this on every ingestion.
type IndexEnsurer interface {
	EnsureIndex(ctx context.Context, projectID, collection string) error
}

// ProjectDirectory resolves tenant scopes. Expired projects are never
// observable through Resolve.
type ProjectDirectory interface {
	// CreateProject persists a new project. The project must pass
	// core.ValidateProject.
	CreateProject(ctx context.Context, project *core.Project) error

	// Resolve returns a live project by ID. Returns ErrNotFound for
	// unknown or expired projects.
	Resolve(ctx context.Context, id string) (*core.Project, error)

	// SweepExpired removes projects whose lifetime has elapsed as of
	// now, returning how many were removed. Their vector records expire
	// on their own.
	SweepExpired(ctx context.Context, now time.Time) (int, error)

	// Close closes the directory and releases resources.
	Close() error
}
