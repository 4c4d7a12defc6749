package reembed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/quillstore/quill/ai/mock"
	"github.com/quillstore/quill/core"
	"github.com/quillstore/quill/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedCollection(t *testing.T, stores *badger.MemoryStores, projectID, collection string, count int) []*core.VectorRecord {
	t.Helper()

	expires := time.Now().UTC().Add(time.Hour)
	records := make([]*core.VectorRecord, count)
	for i := range records {
		records[i] = &core.VectorRecord{
			ID:        fmt.Sprintf("rec-%03d", i),
			Text:      fmt.Sprintf("chunk number %d", i),
			Embedding: []float32{1, 0, 0}, // stale embedding to be replaced
			ExpiresAt: expires,
		}
	}
	err := stores.Vectors.UpsertBatch(context.Background(), projectID, collection, records)
	require.NoError(t, err)
	return records
}

func TestNewReembedder(t *testing.T) {
	stores, err := badger.NewMemoryStores()
	require.NoError(t, err)
	defer stores.Close()

	embedder := mock.NewMockEmbedder()

	t.Run("valid configuration", func(t *testing.T) {
		r, err := NewReembedder(stores.Vectors, embedder, nil, &bytes.Buffer{})
		require.NoError(t, err)
		assert.NotNil(t, r)
	})

	t.Run("nil vector store", func(t *testing.T) {
		_, err := NewReembedder(nil, embedder, nil, &bytes.Buffer{})
		assert.Equal(t, ErrVectorStoreRequired, err)
	})

	t.Run("nil embedder", func(t *testing.T) {
		_, err := NewReembedder(stores.Vectors, nil, nil, &bytes.Buffer{})
		assert.Equal(t, ErrEmbedderRequired, err)
	})
}

func TestReembedderRun(t *testing.T) {
	ctx := context.Background()

	stores, err := badger.NewMemoryStores()
	require.NoError(t, err)
	defer stores.Close()

	embedder := mock.NewMockEmbedder()
	seedCollection(t, stores, "proj-1", "notes", 25)

	var buf bytes.Buffer
	config := &Config{BatchSize: 10, ReportInterval: 10, MaxRetries: 2, RetryDelay: time.Millisecond}
	r, err := NewReembedder(stores.Vectors, embedder, config, &buf)
	require.NoError(t, err)

	err = r.Run(ctx, "proj-1", "notes")
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "Starting reembedding of 25 records")
	assert.Contains(t, output, "Reembedding complete. Processed 25 records")

	// Every record now carries a fresh, normalized embedding.
	records, _, err := stores.Vectors.ListBatch(ctx, "proj-1", "notes", "", 100)
	require.NoError(t, err)
	require.Len(t, records, 25)
	for _, record := range records {
		require.Len(t, record.Embedding, 384)

		var magnitude float64
		for _, val := range record.Embedding {
			magnitude += float64(val) * float64(val)
		}
		assert.InDelta(t, 1.0, math.Sqrt(magnitude), 0.001)
	}
}

func TestReembedderRun_EmptyCollection(t *testing.T) {
	stores, err := badger.NewMemoryStores()
	require.NoError(t, err)
	defer stores.Close()

	var buf bytes.Buffer
	r, err := NewReembedder(stores.Vectors, mock.NewMockEmbedder(), nil, &buf)
	require.NoError(t, err)

	err = r.Run(context.Background(), "proj-1", "empty")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "No records found")
}

func TestReembedderRun_EmbedderFailure(t *testing.T) {
	stores, err := badger.NewMemoryStores()
	require.NoError(t, err)
	defer stores.Close()

	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(_ context.Context, _ []string) ([][]float32, error) {
		return nil, errors.New("model offline")
	}
	seedCollection(t, stores, "proj-1", "notes", 5)

	config := &Config{BatchSize: 10, ReportInterval: 10, MaxRetries: 2, RetryDelay: time.Millisecond}
	r, err := NewReembedder(stores.Vectors, embedder, config, &bytes.Buffer{})
	require.NoError(t, err)

	err = r.Run(context.Background(), "proj-1", "notes")
	require.Error(t, err)
	assert.ErrorContains(t, err, "model offline")
}

func TestCollectionIterator_Batches(t *testing.T) {
	ctx := context.Background()

	stores, err := badger.NewMemoryStores()
	require.NoError(t, err)
	defer stores.Close()

	seedCollection(t, stores, "proj-1", "notes", 23)

	it := NewCollectionIterator(stores.Vectors, 10)

	var batches []int
	total := 0
	err = it.ForEach(ctx, "proj-1", "notes", func(records []*core.VectorRecord) error {
		batches = append(batches, len(records))
		total += len(records)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, 23, total, "every record visited exactly once")
	assert.Equal(t, []int{10, 10, 3}, batches)
}

func TestCollectionIterator_StopsOnError(t *testing.T) {
	ctx := context.Background()

	stores, err := badger.NewMemoryStores()
	require.NoError(t, err)
	defer stores.Close()

	seedCollection(t, stores, "proj-1", "notes", 23)

	it := NewCollectionIterator(stores.Vectors, 10)

	calls := 0
	err = it.ForEach(ctx, "proj-1", "notes", func(_ []*core.VectorRecord) error {
		calls++
		return errors.New("stop here")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls, "iteration stops on first error")
}

func TestCollectionIterator_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stores, err := badger.NewMemoryStores()
	require.NoError(t, err)
	defer stores.Close()

	it := NewCollectionIterator(stores.Vectors, 10)
	err = it.ForEach(ctx, "proj-1", "notes", func(_ []*core.VectorRecord) error {
		t.Fatal("fn should not be called")
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}
