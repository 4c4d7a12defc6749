package badger

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/quillstore/quill/core"
	"github.com/quillstore/quill/storage"
)

func newTestJob(id string) *core.Job {
	return &core.Job{
		ID:         id,
		OwnerID:    "owner-1",
		ProjectID:  "project-1",
		Collection: "docs",
		Type:       core.JobTypePDF,
		Status:     core.JobQueued,
	}
}

func TestJobLedgerBasics(t *testing.T) {
	stores, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer stores.Close()

	ctx := context.Background()

	if err := stores.Jobs.CreateJob(ctx, newTestJob("job-1")); err != nil {
		t.Fatalf("Failed to create job: %v", err)
	}

	got, err := stores.Jobs.GetJob(ctx, "job-1")
	if err != nil {
		t.Fatalf("Failed to get job: %v", err)
	}
	if got == nil {
		t.Fatal("Expected job, got nil")
	}
	if got.Status != core.JobQueued {
		t.Fatalf("Expected queued, got %s", got.Status)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Fatal("Expected timestamps to be set on create")
	}
}

func TestJobLedgerGetMissing(t *testing.T) {
	stores, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer stores.Close()

	got, err := stores.Jobs.GetJob(context.Background(), "nope")
	if err != nil {
		t.Fatalf("Missing job should not be an error, got: %v", err)
	}
	if got != nil {
		t.Fatalf("Expected nil job, got %+v", got)
	}
}

func TestJobLedgerDuplicateCreate(t *testing.T) {
	stores, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer stores.Close()

	ctx := context.Background()
	if err := stores.Jobs.CreateJob(ctx, newTestJob("job-1")); err != nil {
		t.Fatalf("Failed to create job: %v", err)
	}
	if err := stores.Jobs.CreateJob(ctx, newTestJob("job-1")); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestJobLedgerStatusTransitions(t *testing.T) {
	stores, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer stores.Close()

	ctx := context.Background()
	if err := stores.Jobs.CreateJob(ctx, newTestJob("job-1")); err != nil {
		t.Fatalf("Failed to create job: %v", err)
	}

	progress := 10
	job, err := stores.Jobs.UpdateStatus(ctx, "job-1", core.JobExtracting, &storage.JobUpdate{Progress: &progress})
	if err != nil {
		t.Fatalf("Failed to update status: %v", err)
	}
	if job.Status != core.JobExtracting || job.Progress != 10 {
		t.Fatalf("Unexpected job state: %s %d", job.Status, job.Progress)
	}

	// Backward transition is rejected
	if _, err := stores.Jobs.UpdateStatus(ctx, "job-1", core.JobQueued, nil); !errors.Is(err, core.ErrInvalidTransition) {
		t.Fatalf("Expected ErrInvalidTransition, got %v", err)
	}

	// Progress never decreases
	lower := 5
	job, err = stores.Jobs.UpdateStatus(ctx, "job-1", core.JobChunking, &storage.JobUpdate{Progress: &lower})
	if err != nil {
		t.Fatalf("Failed to update status: %v", err)
	}
	if job.Progress != 10 {
		t.Fatalf("Progress decreased: got %d, want 10", job.Progress)
	}
}

func TestJobLedgerCompletion(t *testing.T) {
	stores, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer stores.Close()

	ctx := context.Background()
	if err := stores.Jobs.CreateJob(ctx, newTestJob("job-1")); err != nil {
		t.Fatalf("Failed to create job: %v", err)
	}

	result := &core.JobResult{PagesProcessed: 3, TotalPages: 3, ChunksCreated: 9, EmbeddingsGenerated: 9, VectorsStored: 9}
	job, err := stores.Jobs.UpdateStatus(ctx, "job-1", core.JobCompleted, &storage.JobUpdate{Result: result})
	if err != nil {
		t.Fatalf("Failed to complete job: %v", err)
	}
	if job.Progress != 100 {
		t.Fatalf("Completed job progress = %d, want 100", job.Progress)
	}
	if job.CompletedAt.IsZero() {
		t.Fatal("Completed job should have CompletedAt set")
	}
	if job.Result.VectorsStored != 9 {
		t.Fatalf("Result not applied: %+v", job.Result)
	}

	// Terminal state is sticky
	if _, err := stores.Jobs.UpdateStatus(ctx, "job-1", core.JobFailed, nil); !errors.Is(err, core.ErrInvalidTransition) {
		t.Fatalf("Expected ErrInvalidTransition out of completed, got %v", err)
	}
}

func TestJobLedgerFailure(t *testing.T) {
	stores, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer stores.Close()

	ctx := context.Background()
	if err := stores.Jobs.CreateJob(ctx, newTestJob("job-1")); err != nil {
		t.Fatalf("Failed to create job: %v", err)
	}
	if _, err := stores.Jobs.UpdateStatus(ctx, "job-1", core.JobChunking, nil); err != nil {
		t.Fatalf("Failed to advance job: %v", err)
	}

	msg := "extraction blew up"
	job, err := stores.Jobs.UpdateStatus(ctx, "job-1", core.JobFailed, &storage.JobUpdate{Error: &msg})
	if err != nil {
		t.Fatalf("Failed to fail job: %v", err)
	}
	if job.Error != msg {
		t.Fatalf("Error message = %q, want %q", job.Error, msg)
	}
	if job.CompletedAt.IsZero() {
		t.Fatal("Failed job should have CompletedAt set")
	}
}

func TestJobLedgerIncrementProgress(t *testing.T) {
	stores, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer stores.Close()

	ctx := context.Background()
	if err := stores.Jobs.CreateJob(ctx, newTestJob("job-1")); err != nil {
		t.Fatalf("Failed to create job: %v", err)
	}

	job, err := stores.Jobs.IncrementProgress(ctx, "job-1", 30)
	if err != nil {
		t.Fatalf("Failed to increment: %v", err)
	}
	if job.Progress != 30 {
		t.Fatalf("Progress = %d, want 30", job.Progress)
	}

	job, err = stores.Jobs.IncrementProgress(ctx, "job-1", 90)
	if err != nil {
		t.Fatalf("Failed to increment: %v", err)
	}
	if job.Progress != 100 {
		t.Fatalf("Progress should cap at 100, got %d", job.Progress)
	}

	if _, err := stores.Jobs.IncrementProgress(ctx, "nope", 1); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func TestJobLedgerListNewestFirst(t *testing.T) {
	stores, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer stores.Close()

	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		job := newTestJob(fmt.Sprintf("job-%d", i))
		job.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		job.UpdatedAt = job.CreatedAt
		if err := stores.Jobs.CreateJob(ctx, job); err != nil {
			t.Fatalf("Failed to create job %d: %v", i, err)
		}
	}

	jobs, err := stores.Jobs.ListJobsByOwner(ctx, "owner-1", 3, "")
	if err != nil {
		t.Fatalf("Failed to list jobs: %v", err)
	}
	if len(jobs) != 3 {
		t.Fatalf("Expected 3 jobs, got %d", len(jobs))
	}
	for i, want := range []string{"job-4", "job-3", "job-2"} {
		if jobs[i].ID != want {
			t.Errorf("jobs[%d].ID = %s, want %s", i, jobs[i].ID, want)
		}
	}

	byProject, err := stores.Jobs.ListJobsByProject(ctx, "project-1", 0, "")
	if err != nil {
		t.Fatalf("Failed to list by project: %v", err)
	}
	if len(byProject) != 5 {
		t.Fatalf("Expected 5 jobs, got %d", len(byProject))
	}

	empty, err := stores.Jobs.ListJobsByOwner(ctx, "nobody", 0, "")
	if err != nil {
		t.Fatalf("Failed to list empty owner: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("Expected no jobs, got %d", len(empty))
	}

	if _, err := stores.Jobs.UpdateStatus(ctx, "job-2", core.JobFailed, nil); err != nil {
		t.Fatalf("Failed to fail job: %v", err)
	}
	failed, err := stores.Jobs.ListJobsByOwner(ctx, "owner-1", 0, core.JobFailed)
	if err != nil {
		t.Fatalf("Failed to list failed jobs: %v", err)
	}
	if len(failed) != 1 || failed[0].ID != "job-2" {
		t.Fatalf("Expected only job-2 failed, got %v", failed)
	}
	queued, err := stores.Jobs.ListJobsByOwner(ctx, "owner-1", 0, core.JobQueued)
	if err != nil {
		t.Fatalf("Failed to list queued jobs: %v", err)
	}
	if len(queued) != 4 {
		t.Fatalf("Expected 4 queued jobs, got %d", len(queued))
	}
}
