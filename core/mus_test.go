package core

import (
	"reflect"
	"testing"
	"time"
)

func TestJobMUS_RoundTrip(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	job := Job{
		ID:         "job-1",
		OwnerID:    "owner-1",
		ProjectID:  "project-1",
		Collection: "docs",
		Type:       JobTypePDF,
		Status:     JobEmbedding,
		Progress:   72,
		Metadata: JobMetadata{
			Filename:   "report.pdf",
			SizeBytes:  1 << 20,
			ChunkSize:  500,
			Tier:       "starter",
			DocumentID: "doc-1",
			User:       map[string]string{"source": "upload", "lang": "en"},
		},
		Result: JobResult{
			PagesProcessed:      3,
			TotalPages:          5,
			ChunksCreated:       12,
			EmbeddingsGenerated: 12,
			ProcessingTimeMs:    840,
		},
		CreatedAt: now,
		UpdatedAt: now.Add(time.Second),
	}

	bs := make([]byte, JobMUS.Size(job))
	n := JobMUS.Marshal(job, bs)
	if n != len(bs) {
		t.Fatalf("Marshal wrote %d bytes, Size predicted %d", n, len(bs))
	}

	got, n, err := JobMUS.Unmarshal(bs)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if n != len(bs) {
		t.Fatalf("Unmarshal consumed %d of %d bytes", n, len(bs))
	}
	if !reflect.DeepEqual(got, job) {
		t.Errorf("round trip mismatch:\ngot  %+v\nwant %+v", got, job)
	}
	if !got.CompletedAt.IsZero() {
		t.Error("zero CompletedAt should survive as zero")
	}
}

func TestVectorRecordMUS_RoundTrip(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	rec := VectorRecord{
		ID:        "vec-1",
		Text:      "chunk text",
		Embedding: []float32{0.1, -0.5, 3.25, 0},
		Meta: ChunkMeta{
			Index:      2,
			Size:       10,
			PageNumber: 4,
			TotalPages: 9,
			Filename:   "report.pdf",
			SourceType: "pdf",
			DocumentID: "doc-1",
		},
		JobID:     "job-1",
		CreatedAt: now,
		ExpiresAt: now.Add(24 * time.Hour),
	}

	bs := make([]byte, VectorRecordMUS.Size(rec))
	VectorRecordMUS.Marshal(rec, bs)

	got, _, err := VectorRecordMUS.Unmarshal(bs)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !reflect.DeepEqual(got, rec) {
		t.Errorf("round trip mismatch:\ngot  %+v\nwant %+v", got, rec)
	}
}

func TestStoredBlobMUS_RoundTrip(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	blob := StoredBlob{
		Hash:      ContentHash([]byte("payload")),
		SizeBytes: 7,
		RefCount:  3,
		JobID:     "job-1",
		CreatedAt: now,
		ExpiresAt: now.Add(24 * time.Hour),
	}

	bs := make([]byte, StoredBlobMUS.Size(blob))
	StoredBlobMUS.Marshal(blob, bs)

	got, _, err := StoredBlobMUS.Unmarshal(bs)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !reflect.DeepEqual(got, blob) {
		t.Errorf("round trip mismatch:\ngot  %+v\nwant %+v", got, blob)
	}
}

func TestProjectMUS_RoundTrip(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	p := Project{
		ID:        "project-1",
		OwnerID:   "owner-1",
		Name:      "research",
		Tier:      "pro",
		CreatedAt: now,
		ExpiresAt: now.Add(30 * 24 * time.Hour),
	}

	bs := make([]byte, ProjectMUS.Size(p))
	ProjectMUS.Marshal(p, bs)

	got, _, err := ProjectMUS.Unmarshal(bs)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !reflect.DeepEqual(got, p) {
		t.Errorf("round trip mismatch:\ngot  %+v\nwant %+v", got, p)
	}
}

func TestJobMUS_Truncated(t *testing.T) {
	job := Job{ID: "job-1", OwnerID: "o", ProjectID: "p", Collection: "c", Type: JobTypeText, Status: JobQueued}
	bs := make([]byte, JobMUS.Size(job))
	JobMUS.Marshal(job, bs)

	if _, _, err := JobMUS.Unmarshal(bs[:len(bs)/2]); err == nil {
		t.Error("Unmarshal of truncated data should fail")
	}
}
