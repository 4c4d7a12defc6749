package badger

import (
	"context"
	"math"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/quillstore/quill/core"
	"github.com/quillstore/quill/storage"
)

// VectorStore implements storage.VectorStore and storage.IndexEnsurer
// for BadgerDB.
//
// Records live under per-collection key prefixes with a native TTL
// equal to the owning project's remaining lifetime, so a project and
// its vectors disappear together. A secondary index keyed by document
// ID supports bulk removal of one document's records.
type VectorStore struct {
	backend *Backend
}

var (
	_ storage.VectorStore  = (*VectorStore)(nil)
	_ storage.IndexEnsurer = (*VectorStore)(nil)
)

// NewVectorStore creates a new VectorStore on the given backend.
func NewVectorStore(backend *Backend) (*VectorStore, error) {
	return &VectorStore{backend: backend}, nil
}

// Close releases store resources. The backend is closed separately.
func (s *VectorStore) Close() error {
	return nil
}

// EnsureIndex marks a collection as prepared. Repeat calls are no-ops.
func (s *VectorStore) EnsureIndex(ctx context.Context, projectID, collection string) error {
	return s.backend.WithTx(func(tx *badger.Txn) error {
		key := makeIndexMarkKey(projectID, collection)
		if _, err := tx.Get(key); err == nil {
			return nil
		} else if err != badger.ErrKeyNotFound {
			return err
		}
		if err := tx.Set(key, []byte(time.Now().UTC().Format(time.RFC3339))); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// UpsertBatch writes a batch of vector records into a collection.
// Records without an ID get one assigned. Entries expire with the
// record's ExpiresAt.
func (s *VectorStore) UpsertBatch(ctx context.Context, projectID, collection string, records []*core.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	return s.backend.WithTx(func(tx *badger.Txn) error {
		for _, rec := range records {
			if rec.ID == "" {
				rec.ID = uuid.NewString()
			}
			ttl := time.Until(rec.ExpiresAt)
			if !rec.ExpiresAt.IsZero() && ttl <= 0 {
				// The project expired mid-flight; writing would create
				// an entry that is already dead.
				continue
			}

			entry := badger.NewEntry(makeVectorKey(projectID, collection, rec.ID), storage.MarshalVectorRecord(rec))
			docEntry := badger.NewEntry(makeVectorDocKey(projectID, collection, rec.Meta.DocumentID, rec.ID), []byte(rec.ID))
			if !rec.ExpiresAt.IsZero() {
				entry = entry.WithTTL(ttl)
				docEntry = docEntry.WithTTL(ttl)
			}
			if err := tx.SetEntry(entry); err != nil {
				return err
			}
			if rec.Meta.DocumentID != "" {
				if err := tx.SetEntry(docEntry); err != nil {
					return err
				}
			}
		}
		return tx.Commit()
	}, true)
}

// Search scans the collection and returns the most similar records,
// highest cosine similarity first.
func (s *VectorStore) Search(ctx context.Context, projectID, collection string, query []float32, minScore float32, limit int) ([]*core.VectorMatch, error) {
	var results []*core.VectorMatch

	err := s.backend.WithTx(func(tx *badger.Txn) error {
		prefix := makeVectorScanPrefix(projectID, collection)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.ValidForPrefix(prefix); iter.Next() {
			var rec *core.VectorRecord
			err := iter.Item().Value(func(val []byte) error {
				var err error
				rec, err = storage.UnmarshalVectorRecord(val)
				return err
			})
			if err != nil {
				return err
			}
			if len(rec.Embedding) == 0 {
				continue
			}

			score := cosineSimilarity(query, rec.Embedding)
			if score >= minScore {
				results = append(results, &core.VectorMatch{Record: rec, Score: score})
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	slices.SortFunc(results, func(a, b *core.VectorMatch) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		return 0
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// DeleteByDocument removes every record a document contributed to a
// collection, returning the number removed.
func (s *VectorStore) DeleteByDocument(ctx context.Context, projectID, collection, documentID string) (int, error) {
	var deleted int
	err := s.backend.updateWithRetry(func(tx *badger.Txn) error {
		deleted = 0
		prefix := makeVectorDocScanPrefix(projectID, collection, documentID)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		iter := tx.NewIterator(opts)

		var recordIDs []string
		var indexKeys [][]byte
		for iter.Rewind(); iter.ValidForPrefix(prefix); iter.Next() {
			indexKeys = append(indexKeys, iter.Item().KeyCopy(nil))
			if err := iter.Item().Value(func(val []byte) error {
				recordIDs = append(recordIDs, string(val))
				return nil
			}); err != nil {
				iter.Close()
				return err
			}
		}
		iter.Close()

		for i, recordID := range recordIDs {
			if err := tx.Delete(makeVectorKey(projectID, collection, recordID)); err != nil {
				return err
			}
			if err := tx.Delete(indexKeys[i]); err != nil {
				return err
			}
			deleted++
		}
		return tx.Commit()
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

// ListBatch pages through a collection in key order. The returned
// cursor is the key to resume from; empty means the end was reached.
func (s *VectorStore) ListBatch(ctx context.Context, projectID, collection string, cursor string, limit int) ([]*core.VectorRecord, string, error) {
	if limit <= 0 {
		limit = 100
	}
	var (
		records []*core.VectorRecord
		next    string
	)
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		prefix := makeVectorScanPrefix(projectID, collection)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		iter := tx.NewIterator(opts)
		defer iter.Close()

		if cursor == "" {
			iter.Rewind()
		} else {
			iter.Seek([]byte(cursor))
		}
		for ; iter.ValidForPrefix(prefix); iter.Next() {
			if len(records) == limit {
				next = string(iter.Item().KeyCopy(nil))
				return nil
			}
			var rec *core.VectorRecord
			err := iter.Item().Value(func(val []byte) error {
				var err error
				rec, err = storage.UnmarshalVectorRecord(val)
				return err
			})
			if err != nil {
				return err
			}
			records = append(records, rec)
		}
		return nil
	}, false)
	if err != nil {
		return nil, "", err
	}
	return records, next, nil
}

// Count returns the number of live records in a collection.
func (s *VectorStore) Count(ctx context.Context, projectID, collection string) (int, error) {
	var count int
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		prefix := makeVectorScanPrefix(projectID, collection)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()
		for iter.Rewind(); iter.ValidForPrefix(prefix); iter.Next() {
			count++
		}
		return nil
	}, false)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// cosineSimilarity computes the cosine of the angle between two
// vectors. Mismatched lengths compare over the shorter one.
func cosineSimilarity(a, b []float32) float32 {
	minLen := len(a)
	if len(b) < minLen {
		minLen = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < minLen; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
