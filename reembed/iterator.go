// Copyright 2025 Quillstore Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package reembed

import (
	"context"

	"github.com/quillstore/quill/core"
	"github.com/quillstore/quill/storage"
)

const (
	// DefaultBatchSize is the default number of records to fetch in each batch
	DefaultBatchSize = 100
)

// CollectionIterator pages over the records of a collection in batches.
type CollectionIterator struct {
	vectors   storage.VectorStore
	batchSize int
}

// NewCollectionIterator creates a new collection iterator.
// batchSize: number of records to fetch in each batch (must be > 0)
func NewCollectionIterator(vectors storage.VectorStore, batchSize int) *CollectionIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &CollectionIterator{
		vectors:   vectors,
		batchSize: batchSize,
	}
}

// ForEach walks the collection, calling fn for each batch of records.
// Iteration stops on first error from fn or when the collection is
// exhausted. Context cancellation is checked between batches.
func (it *CollectionIterator) ForEach(ctx context.Context, projectID, collection string, fn func([]*core.VectorRecord) error) error {
	cursor := ""
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		records, next, err := it.vectors.ListBatch(ctx, projectID, collection, cursor, it.batchSize)
		if err != nil {
			return err
		}

		if len(records) > 0 {
			if err := fn(records); err != nil {
				return err
			}
		}

		if next == "" {
			return nil
		}
		cursor = next
	}
}
