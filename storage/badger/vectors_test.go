package badger

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/quillstore/quill/core"
)

func newTestRecord(id, docID string, embedding []float32) *core.VectorRecord {
	return &core.VectorRecord{
		ID:        id,
		Text:      "chunk " + id,
		Embedding: embedding,
		Meta: core.ChunkMeta{
			DocumentID: docID,
			SourceType: "text",
		},
		JobID:     "job-1",
		CreatedAt: time.Now().UTC(),
		ExpiresAt: time.Now().UTC().Add(time.Hour),
	}
}

func TestVectorStoreUpsertAndCount(t *testing.T) {
	stores, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer stores.Close()

	ctx := context.Background()
	records := []*core.VectorRecord{
		newTestRecord("", "doc-1", []float32{1, 0, 0}),
		newTestRecord("", "doc-1", []float32{0, 1, 0}),
		newTestRecord("", "doc-2", []float32{0, 0, 1}),
	}

	if err := stores.Vectors.UpsertBatch(ctx, "project-1", "docs", records); err != nil {
		t.Fatalf("Failed to upsert: %v", err)
	}
	for _, rec := range records {
		if rec.ID == "" {
			t.Fatal("Upsert should assign IDs")
		}
	}

	count, err := stores.Vectors.Count(ctx, "project-1", "docs")
	if err != nil {
		t.Fatalf("Failed to count: %v", err)
	}
	if count != 3 {
		t.Fatalf("Count = %d, want 3", count)
	}

	// Collections are isolated
	other, err := stores.Vectors.Count(ctx, "project-1", "notes")
	if err != nil {
		t.Fatalf("Failed to count other collection: %v", err)
	}
	if other != 0 {
		t.Fatalf("Other collection count = %d, want 0", other)
	}
}

func TestVectorStoreSearch(t *testing.T) {
	stores, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer stores.Close()

	ctx := context.Background()
	records := []*core.VectorRecord{
		newTestRecord("exact", "doc-1", []float32{1, 0, 0}),
		newTestRecord("close", "doc-1", []float32{0.9, 0.1, 0}),
		newTestRecord("orthogonal", "doc-1", []float32{0, 1, 0}),
	}
	if err := stores.Vectors.UpsertBatch(ctx, "project-1", "docs", records); err != nil {
		t.Fatalf("Failed to upsert: %v", err)
	}

	matches, err := stores.Vectors.Search(ctx, "project-1", "docs", []float32{1, 0, 0}, 0.5, 10)
	if err != nil {
		t.Fatalf("Failed to search: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("Expected 2 matches above 0.5, got %d", len(matches))
	}
	if matches[0].Record.ID != "exact" {
		t.Fatalf("Best match = %s, want exact", matches[0].Record.ID)
	}
	if matches[0].Score < matches[1].Score {
		t.Fatal("Matches should be ordered by score descending")
	}

	limited, err := stores.Vectors.Search(ctx, "project-1", "docs", []float32{1, 0, 0}, -1, 1)
	if err != nil {
		t.Fatalf("Failed limited search: %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("Expected 1 match with limit 1, got %d", len(limited))
	}
}

func TestVectorStoreDeleteByDocument(t *testing.T) {
	stores, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer stores.Close()

	ctx := context.Background()
	records := []*core.VectorRecord{
		newTestRecord("", "doc-1", []float32{1, 0}),
		newTestRecord("", "doc-1", []float32{0, 1}),
		newTestRecord("", "doc-2", []float32{1, 1}),
	}
	if err := stores.Vectors.UpsertBatch(ctx, "project-1", "docs", records); err != nil {
		t.Fatalf("Failed to upsert: %v", err)
	}

	deleted, err := stores.Vectors.DeleteByDocument(ctx, "project-1", "docs", "doc-1")
	if err != nil {
		t.Fatalf("Failed to delete: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("Deleted = %d, want 2", deleted)
	}

	count, err := stores.Vectors.Count(ctx, "project-1", "docs")
	if err != nil {
		t.Fatalf("Failed to count: %v", err)
	}
	if count != 1 {
		t.Fatalf("Count after delete = %d, want 1", count)
	}

	none, err := stores.Vectors.DeleteByDocument(ctx, "project-1", "docs", "doc-1")
	if err != nil {
		t.Fatalf("Repeat delete should not error: %v", err)
	}
	if none != 0 {
		t.Fatalf("Repeat delete removed %d records", none)
	}
}

func TestVectorStoreListBatch(t *testing.T) {
	stores, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer stores.Close()

	ctx := context.Background()
	var records []*core.VectorRecord
	for i := 0; i < 7; i++ {
		records = append(records, newTestRecord(fmt.Sprintf("rec-%d", i), "doc-1", []float32{float32(i)}))
	}
	if err := stores.Vectors.UpsertBatch(ctx, "project-1", "docs", records); err != nil {
		t.Fatalf("Failed to upsert: %v", err)
	}

	seen := make(map[string]bool)
	cursor := ""
	pages := 0
	for {
		batch, next, err := stores.Vectors.ListBatch(ctx, "project-1", "docs", cursor, 3)
		if err != nil {
			t.Fatalf("Failed to list batch: %v", err)
		}
		for _, rec := range batch {
			if seen[rec.ID] {
				t.Fatalf("Record %s returned twice", rec.ID)
			}
			seen[rec.ID] = true
		}
		pages++
		if next == "" {
			break
		}
		cursor = next
	}

	if len(seen) != 7 {
		t.Fatalf("Paged through %d records, want 7", len(seen))
	}
	if pages < 3 {
		t.Fatalf("Expected at least 3 pages, got %d", pages)
	}
}

func TestVectorStoreEnsureIndexIdempotent(t *testing.T) {
	stores, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer stores.Close()

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := stores.Vectors.EnsureIndex(ctx, "project-1", "docs"); err != nil {
			t.Fatalf("EnsureIndex call %d failed: %v", i, err)
		}
	}
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float32
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cosineSimilarity(tt.a, tt.b)
			if diff := got - tt.want; diff > 1e-6 || diff < -1e-6 {
				t.Errorf("cosineSimilarity() = %f, want %f", got, tt.want)
			}
		})
	}
}
