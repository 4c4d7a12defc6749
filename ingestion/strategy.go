package ingestion

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/quillstore/quill/core"
	"github.com/quillstore/quill/events"
	"github.com/quillstore/quill/storage"
)

// PDFRequest asks the pipeline to ingest an uploaded PDF.
type PDFRequest struct {
	OwnerID    string
	ProjectID  string
	Collection string
	Filename   string
	Data       []byte
	ChunkSize  int
	DocumentID string
	User       map[string]string
}

// TextRequest asks the pipeline to ingest raw text.
type TextRequest struct {
	OwnerID    string
	ProjectID  string
	Collection string
	Text       string
	ChunkSize  int
	DocumentID string
	User       map[string]string
}

// IngestPDF validates the request and hands the upload to a background
// goroutine that stages the bytes in the blob store and starts the
// extraction chain. The returned job is already queued; callers poll
// the ledger for progress.
func (p *Pipeline) IngestPDF(ctx context.Context, req *PDFRequest) (*core.Job, error) {
	if len(req.Data) == 0 {
		return nil, &ValidationError{Field: "data", Reason: "empty upload"}
	}
	if req.Collection == "" {
		return nil, &ValidationError{Field: "collection", Reason: "collection is required"}
	}

	project, tier, err := p.resolveTier(ctx, req.ProjectID)
	if err != nil {
		return nil, err
	}
	if int64(len(req.Data)) > tier.PDFMaxSizeBytes {
		return nil, &ValidationError{
			Field:  "data",
			Reason: fmt.Sprintf("upload of %d bytes exceeds the %s tier limit of %d", len(req.Data), tier.Name, tier.PDFMaxSizeBytes),
		}
	}

	owner := req.OwnerID
	if owner == "" {
		owner = project.OwnerID
	}
	filename := req.Filename
	if filename == "" {
		filename = "document.pdf"
	}
	documentID := req.DocumentID
	if documentID == "" {
		documentID = uuid.NewString()
	}

	job := &core.Job{
		ID:         uuid.NewString(),
		OwnerID:    owner,
		ProjectID:  project.ID,
		Collection: req.Collection,
		Type:       core.JobTypePDF,
		Status:     core.JobQueued,
		Metadata: core.JobMetadata{
			Filename:   filename,
			SizeBytes:  int64(len(req.Data)),
			ChunkSize:  req.ChunkSize,
			Tier:       tier.Name,
			DocumentID: documentID,
			User:       req.User,
		},
	}
	if err := p.ledger.CreateJob(ctx, job); err != nil {
		return nil, err
	}

	corr := events.Correlation{
		JobID:      job.ID,
		OwnerID:    owner,
		ProjectID:  project.ID,
		Collection: req.Collection,
	}
	p.bus.Publish(ctx, events.IngestStarted{
		Corr: corr, Type: core.JobTypePDF, Filename: filename, Tier: tier.Name,
	})

	// The request returns here; the blob save and the extraction chain
	// continue on the pool with a context that survives the caller.
	bgCtx := context.WithoutCancel(ctx)
	data := req.Data
	chunkSize := req.ChunkSize
	tierName := tier.Name
	user := req.User
	submitErr := p.ingestPool.Submit(func() {
		meta, err := p.blobs.SaveOrReuse(bgCtx, data, corr.JobID)
		if err != nil {
			p.failJob(bgCtx, corr, core.StageStorage, err)
			return
		}
		if meta.Duplicate {
			p.logger.Info("upload matched an existing blob",
				"job_id", corr.JobID, "hash", meta.Blob.Hash, "refs", meta.Blob.RefCount)
		}
		p.bus.Publish(bgCtx, events.SavedToStore{
			Corr:       corr,
			Hash:       meta.Blob.Hash,
			Data:       data,
			Filename:   filename,
			ChunkSize:  chunkSize,
			Tier:       tierName,
			DocumentID: documentID,
			User:       user,
		})
	})
	if submitErr != nil {
		p.failJob(ctx, corr, core.StageStorage, submitErr)
	}
	return job, nil
}

// IngestText validates the request and starts the chunking chain in the
// background; text jobs skip the blob store and extraction entirely.
func (p *Pipeline) IngestText(ctx context.Context, req *TextRequest) (*core.Job, error) {
	if len(req.Text) == 0 {
		return nil, &ValidationError{Field: "text", Reason: "empty text"}
	}
	if req.Collection == "" {
		return nil, &ValidationError{Field: "collection", Reason: "collection is required"}
	}

	project, tier, err := p.resolveTier(ctx, req.ProjectID)
	if err != nil {
		return nil, err
	}
	if int64(len(req.Text)) > tier.MaxTextBytes {
		return nil, &ValidationError{
			Field:  "text",
			Reason: fmt.Sprintf("text of %d bytes exceeds the limit of %d", len(req.Text), tier.MaxTextBytes),
		}
	}

	owner := req.OwnerID
	if owner == "" {
		owner = project.OwnerID
	}
	documentID := req.DocumentID
	if documentID == "" {
		documentID = uuid.NewString()
	}

	job := &core.Job{
		ID:         uuid.NewString(),
		OwnerID:    owner,
		ProjectID:  project.ID,
		Collection: req.Collection,
		Type:       core.JobTypeText,
		Status:     core.JobQueued,
		Metadata: core.JobMetadata{
			SizeBytes:  int64(len(req.Text)),
			ChunkSize:  req.ChunkSize,
			Tier:       tier.Name,
			DocumentID: documentID,
			Text:       req.Text,
			User:       req.User,
		},
	}
	if err := p.ledger.CreateJob(ctx, job); err != nil {
		return nil, err
	}

	corr := events.Correlation{
		JobID:      job.ID,
		OwnerID:    owner,
		ProjectID:  project.ID,
		Collection: req.Collection,
	}
	p.bus.Publish(ctx, events.IngestStarted{Corr: corr, Type: core.JobTypeText, Tier: tier.Name})

	bgCtx := context.WithoutCancel(ctx)
	text := req.Text
	submitErr := p.ingestPool.Submit(func() {
		p.bus.Publish(bgCtx, events.TextSubmitted{
			Corr:       corr,
			Text:       text,
			ChunkSize:  req.ChunkSize,
			DocumentID: documentID,
			User:       req.User,
		})
	})
	if submitErr != nil {
		p.failJob(ctx, corr, core.StageChunking, submitErr)
	}
	return job, nil
}

func (p *Pipeline) resolveTier(ctx context.Context, projectID string) (*core.Project, core.Tier, error) {
	if projectID == "" {
		return nil, core.Tier{}, &ValidationError{Field: "project_id", Reason: "project is required"}
	}
	project, err := p.projects.Resolve(ctx, projectID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, core.Tier{}, fmt.Errorf("%w: %s", ErrProjectNotFound, projectID)
		}
		return nil, core.Tier{}, err
	}
	return project, core.TierByName(project.Tier), nil
}
