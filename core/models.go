package core

import (
	"encoding/hex"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ContentHash computes the content address of raw uploaded bytes using
// BLAKE2b-256. Identical bytes always produce identical hashes, which is
// what makes the blob store deduplicating.
func ContentHash(data []byte) string {
	h, _ := blake2b.New(32, nil)
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// JobType identifies the kind of source a job ingests.
type JobType string

const (
	// JobTypePDF ingests an uploaded PDF through the full pipeline.
	JobTypePDF JobType = "pdf_ingest"
	// JobTypeText ingests raw text, skipping the extraction stage.
	JobTypeText JobType = "text_ingest"
)

// JobStatus is the pipeline state machine. Transitions are forward-only,
// except that JobFailed is reachable from any non-terminal state.
type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobExtracting JobStatus = "extracting_text"
	JobChunking   JobStatus = "chunking"
	JobEmbedding  JobStatus = "generating_embeddings"
	JobStoring    JobStatus = "storing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// statusRank orders states for forward-only transition checks.
var statusRank = map[JobStatus]int{
	JobQueued:     0,
	JobExtracting: 1,
	JobChunking:   2,
	JobEmbedding:  3,
	JobStoring:    4,
	JobCompleted:  5,
	JobFailed:     5,
}

// Terminal reports whether the status is a final state.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// Valid reports whether the status is a known state.
func (s JobStatus) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

// CanTransition reports whether a job may move from one status to another.
// Staying in the same state is allowed (progress updates), moving backward
// is not, and nothing leaves a terminal state.
func CanTransition(from, to JobStatus) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	if from.Terminal() {
		return false
	}
	if to == JobFailed {
		return true
	}
	return statusRank[to] >= statusRank[from]
}

// Stage names the pipeline phase a failure originated in.
type Stage string

const (
	StageExtraction Stage = "extraction"
	StageChunking   Stage = "chunking"
	StageEmbedding  Stage = "embedding"
	StageStorage    Stage = "storage"
)

// JobMetadata describes the source a job was created for. For text jobs
// the raw text itself is carried here, since no blob store entry exists.
type JobMetadata struct {
	Filename   string
	SizeBytes  int64
	ChunkSize  int
	Tier       string
	DocumentID string
	Text       string
	User       map[string]string
}

// JobResult accumulates stage counters as the pipeline advances.
type JobResult struct {
	PagesProcessed      int
	TotalPages          int
	ChunksCreated       int
	EmbeddingsGenerated int
	VectorsStored       int
	ProcessingTimeMs    int64
}

// Job is the durable record of one ingestion, tracked from creation to a
// terminal state. It is created by an ingest strategy and mutated only by
// stage handlers through the job ledger.
type Job struct {
	ID          string
	OwnerID     string
	ProjectID   string
	Collection  string
	Type        JobType
	Status      JobStatus
	Progress    int
	Metadata    JobMetadata
	Result      JobResult
	Error       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt time.Time // zero until the job reaches a terminal state
}

// StoredBlob is the bookkeeping record for one content-addressed upload.
// The reference count tracks how many jobs saved identical bytes; the
// physical bytes are still written once per job (see BlobStore docs).
type StoredBlob struct {
	Hash      string
	SizeBytes int64
	RefCount  int
	JobID     string // job that first saved these bytes
	CreatedAt time.Time
	ExpiresAt time.Time
}

// ChunkMeta describes one text chunk's position within its source.
type ChunkMeta struct {
	Index      int
	Size       int
	PageNumber int // 0 for text sources
	TotalPages int // 0 for text sources
	Filename   string
	SourceType string // "pdf" | "text"
	DocumentID string
	User       map[string]string
}

// VectorRecord is one embedded chunk persisted into a tenant collection.
// ExpiresAt always equals the owning project's expiry, so a project and
// its vectors vanish together.
type VectorRecord struct {
	ID        string
	Text      string
	Embedding []float32
	Meta      ChunkMeta
	JobID     string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// VectorMatch is a similarity-search hit.
type VectorMatch struct {
	Record *VectorRecord
	Score  float32
}

// Project is a tenant scope: a named collection namespace with a fixed
// lifetime and a subscription tier.
type Project struct {
	ID        string
	OwnerID   string
	Name      string
	Tier      string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the project's lifetime has elapsed.
func (p *Project) Expired(now time.Time) bool {
	return !p.ExpiresAt.IsZero() && !now.Before(p.ExpiresAt)
}

// Tier carries the numeric limits of one subscription level.
type Tier struct {
	Name                     string
	MaxConcurrentExtractions int
	PDFMaxSizeBytes          int64
	MaxTextBytes             int64
}

// Subscription tiers. Extraction concurrency is the scarce resource; the
// byte limits bound what a single upload may contain.
var (
	TierFree    = Tier{Name: "free", MaxConcurrentExtractions: 1, PDFMaxSizeBytes: 10 << 20, MaxTextBytes: 10 << 20}
	TierStarter = Tier{Name: "starter", MaxConcurrentExtractions: 2, PDFMaxSizeBytes: 25 << 20, MaxTextBytes: 10 << 20}
	TierPro     = Tier{Name: "pro", MaxConcurrentExtractions: 5, PDFMaxSizeBytes: 100 << 20, MaxTextBytes: 10 << 20}
)

// TierByName resolves a tier name case-insensitively.
// Unknown names fall back to the free tier.
func TierByName(name string) Tier {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case TierStarter.Name:
		return TierStarter
	case TierPro.Name:
		return TierPro
	default:
		return TierFree
	}
}
