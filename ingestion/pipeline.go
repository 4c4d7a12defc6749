package ingestion

import (
	"context"
	"errors"
	"log/slog"
	"runtime"

	"github.com/panjf2000/ants/v2"

	"github.com/quillstore/quill/ai"
	"github.com/quillstore/quill/core"
	"github.com/quillstore/quill/events"
	"github.com/quillstore/quill/extract"
	"github.com/quillstore/quill/limiter"
	"github.com/quillstore/quill/storage"
)

// defaultEmbedBatchSize is how many chunks go to the embedder per call.
const defaultEmbedBatchSize = 10

// Pipeline owns the ingestion surface: it validates requests, creates
// jobs, and registers the stage handlers that move every job through
// the event bus to completion.
type Pipeline struct {
	bus      *events.Bus
	ledger   storage.JobLedger
	blobs    storage.BlobStore
	vectors  storage.VectorStore
	projects storage.ProjectDirectory
	ensurer  storage.IndexEnsurer
	limits   *limiter.Limiter
	embedder ai.Embedder

	extractor      extract.Extractor
	ingestPool     *ants.Pool
	embedBatchSize int
	logger         *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size for background ingestion work.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		if p.ingestPool != nil {
			p.ingestPool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.ingestPool = pool
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// WithExtractor replaces the PDF extractor. Tests substitute a stub
// here instead of crafting real PDF fixtures.
func WithExtractor(e extract.Extractor) Option {
	return func(p *Pipeline) error {
		p.extractor = e
		return nil
	}
}

// WithEmbedBatchSize sets how many chunks each embedding call carries.
func WithEmbedBatchSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		p.embedBatchSize = size
		return nil
	}
}

// NewPipeline creates the pipeline and subscribes its stage handlers on
// the bus. The pipeline is ready to accept requests when this returns.
func NewPipeline(
	bus *events.Bus,
	ledger storage.JobLedger,
	blobs storage.BlobStore,
	vectors storage.VectorStore,
	projects storage.ProjectDirectory,
	ensurer storage.IndexEnsurer,
	limits *limiter.Limiter,
	embedder ai.Embedder,
	opts ...Option,
) (*Pipeline, error) {
	if bus == nil {
		return nil, ErrBusRequired
	}
	if ledger == nil {
		return nil, ErrLedgerRequired
	}
	if blobs == nil {
		return nil, ErrBlobStoreRequired
	}
	if vectors == nil {
		return nil, ErrVectorStoreRequired
	}
	if projects == nil {
		return nil, ErrProjectsRequired
	}
	if limits == nil {
		return nil, ErrLimiterRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		bus:            bus,
		ledger:         ledger,
		blobs:          blobs,
		vectors:        vectors,
		projects:       projects,
		ensurer:        ensurer,
		limits:         limits,
		embedder:       embedder,
		extractor:      extract.NewPDFExtractor(),
		ingestPool:     pool,
		embedBatchSize: defaultEmbedBatchSize,
		logger:         slog.Default(),
	}

	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}
	p.logger = p.logger.With("component", "ingestion")

	bus.Subscribe(events.KindSavedToStore, newExtractionHandler(p))
	bus.Subscribe(events.KindPageExtracted, newChunkingHandler(p))
	bus.Subscribe(events.KindTextSubmitted, newChunkingHandler(p))
	bus.Subscribe(events.KindChunked, newEmbeddingHandler(p))
	bus.Subscribe(events.KindEmbeddingsGenerated, newVectorWriteHandler(p))
	bus.SubscribeAsync(events.KindIngestStarted, newAuditListener(p.logger))
	bus.SubscribeAsync(events.KindIngestCompleted, newAuditListener(p.logger))
	bus.SubscribeAsync(events.KindIngestFailed, newAuditListener(p.logger))

	return p, nil
}

// Release releases the worker pool. The pipeline should not be used
// after calling Release.
func (p *Pipeline) Release() {
	if p.ingestPool != nil {
		p.ingestPool.Release()
	}
}

// advance moves a job forward to status, lifting progress to at least
// floor. Later pages arrive after the job has moved past their stage;
// the rejected backward transition is the expected signal to leave the
// status alone.
func (p *Pipeline) advance(ctx context.Context, jobID string, status core.JobStatus, floor int) {
	_, err := p.ledger.UpdateStatus(ctx, jobID, status, &storage.JobUpdate{Progress: &floor})
	if err != nil && !errors.Is(err, core.ErrInvalidTransition) {
		p.logger.Error("failed to advance job", "job_id", jobID, "status", status, "err", err)
	}
}

// bump adds a stage's per-page share to the job's progress.
func (p *Pipeline) bump(ctx context.Context, jobID string, delta int) {
	if delta <= 0 {
		return
	}
	if _, err := p.ledger.IncrementProgress(ctx, jobID, delta); err != nil {
		p.logger.Error("failed to bump progress", "job_id", jobID, "err", err)
	}
}

// failJob moves a job to failed and announces the failure. Safe to call
// from any stage; a job already terminal is left untouched.
func (p *Pipeline) failJob(ctx context.Context, corr events.Correlation, stage core.Stage, cause error) {
	msg := cause.Error()
	_, err := p.ledger.UpdateStatus(ctx, corr.JobID, core.JobFailed, &storage.JobUpdate{Error: &msg})
	if err != nil {
		if errors.Is(err, core.ErrInvalidTransition) {
			return
		}
		p.logger.Error("failed to mark job failed", "job_id", corr.JobID, "err", err)
	}
	p.logger.Warn("job failed", "job_id", corr.JobID, "stage", stage, "err", cause)
	p.bus.Publish(ctx, events.IngestFailed{Corr: corr, Stage: stage, Message: msg})
}

// terminal reports whether the job has already reached a final state,
// which makes any in-flight events for it stale.
func (p *Pipeline) terminal(ctx context.Context, jobID string) bool {
	job, err := p.ledger.GetJob(ctx, jobID)
	if err != nil || job == nil {
		return true
	}
	return job.Status.Terminal()
}
