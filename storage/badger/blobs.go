package badger

import (
	"context"
	"runtime"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/panjf2000/ants/v2"

	"github.com/quillstore/quill/core"
	"github.com/quillstore/quill/storage"
)

// blobTTL is the lifetime of every blob entry. The store is a staging
// area, not an archive; extraction happens well within this window.
const blobTTL = 24 * time.Hour

// BlobStore implements storage.BlobStore for BadgerDB.
//
// Layout: one bookkeeping record per content hash under the meta
// prefix, and one physical data entry per saving job under the data
// prefix. Duplicate saves share the bookkeeping record but still write
// their own data entry; the dedup ratio in Stats measures what a
// shared-copy layout would save.
type BlobStore struct {
	backend  *Backend
	hashPool *ants.Pool
}

var _ storage.BlobStore = (*BlobStore)(nil)

// NewBlobStore creates a new BlobStore on the given backend. Content
// hashing runs on a bounded worker pool so large uploads do not stall
// the caller's goroutine siblings.
func NewBlobStore(backend *Backend) (*BlobStore, error) {
	pool, err := ants.NewPool(runtime.NumCPU())
	if err != nil {
		return nil, err
	}
	return &BlobStore{backend: backend, hashPool: pool}, nil
}

// Close releases the hashing pool. The backend is closed separately.
func (s *BlobStore) Close() error {
	s.hashPool.Release()
	return nil
}

// SaveOrReuse persists data under its content hash. A hash match bumps
// the shared reference count and extends its TTL; the physical bytes
// are written either way, keyed by the saving job.
func (s *BlobStore) SaveOrReuse(ctx context.Context, data []byte, jobID string) (*storage.BlobMeta, error) {
	hash, err := s.hash(ctx, data)
	if err != nil {
		return nil, err
	}

	var meta *storage.BlobMeta
	err = s.backend.updateWithRetry(func(tx *badger.Txn) error {
		now := time.Now().UTC()
		blob, err := readStoredBlob(tx, makeBlobMetaKey(hash))
		if err != nil {
			return err
		}

		duplicate := blob != nil
		if duplicate {
			blob.RefCount++
			blob.ExpiresAt = now.Add(blobTTL)
		} else {
			blob = &core.StoredBlob{
				Hash:      hash,
				SizeBytes: int64(len(data)),
				RefCount:  1,
				JobID:     jobID,
				CreatedAt: now,
				ExpiresAt: now.Add(blobTTL),
			}
		}

		metaEntry := badger.NewEntry(makeBlobMetaKey(hash), storage.MarshalStoredBlob(blob)).WithTTL(blobTTL)
		if err := tx.SetEntry(metaEntry); err != nil {
			return err
		}
		dataEntry := badger.NewEntry(makeBlobDataKey(hash, jobID), data).WithTTL(blobTTL)
		if err := tx.SetEntry(dataEntry); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		meta = &storage.BlobMeta{Blob: blob, Duplicate: duplicate}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return meta, nil
}

// hash computes the content hash on the worker pool, honoring context
// cancellation while waiting for a worker.
func (s *BlobStore) hash(ctx context.Context, data []byte) (string, error) {
	result := make(chan string, 1)
	if err := s.hashPool.Submit(func() {
		result <- core.ContentHash(data)
	}); err != nil {
		return "", err
	}
	select {
	case h := <-result:
		return h, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// GetByHash returns the stored bytes for a content hash. Any of the
// physical copies serves; they are identical by construction.
func (s *BlobStore) GetByHash(ctx context.Context, hash string) ([]byte, error) {
	var data []byte
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		prefix := makeBlobDataScanPrefix(hash)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		iter := tx.NewIterator(opts)
		defer iter.Close()

		iter.Rewind()
		if !iter.ValidForPrefix(prefix) {
			return storage.ErrNotFound
		}
		return iter.Item().Value(func(val []byte) error {
			data = append([]byte(nil), val...)
			return nil
		})
	}, false)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// DeleteByHash decrements the reference count and removes the physical
// entries once no references remain.
func (s *BlobStore) DeleteByHash(ctx context.Context, hash string) error {
	return s.backend.updateWithRetry(func(tx *badger.Txn) error {
		blob, err := readStoredBlob(tx, makeBlobMetaKey(hash))
		if err != nil {
			return err
		}
		if blob == nil {
			return storage.ErrNotFound
		}

		blob.RefCount--
		if blob.RefCount > 0 {
			entry := badger.NewEntry(makeBlobMetaKey(hash), storage.MarshalStoredBlob(blob)).WithTTL(time.Until(blob.ExpiresAt))
			if err := tx.SetEntry(entry); err != nil {
				return err
			}
			return tx.Commit()
		}

		if err := tx.Delete(makeBlobMetaKey(hash)); err != nil {
			return err
		}
		prefix := makeBlobDataScanPrefix(hash)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		var dataKeys [][]byte
		for iter.Rewind(); iter.ValidForPrefix(prefix); iter.Next() {
			dataKeys = append(dataKeys, iter.Item().KeyCopy(nil))
		}
		iter.Close()
		for _, key := range dataKeys {
			if err := tx.Delete(key); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
}

// Stats reports physical entries, distinct hashes, total references,
// byte totals, and the share of saves that matched an existing hash.
func (s *BlobStore) Stats(ctx context.Context) (*storage.BlobStats, error) {
	stats := &storage.BlobStats{}

	err := s.backend.WithTx(func(tx *badger.Txn) error {
		metaPrefix := []byte(blobMetaPrefix + ":")
		opts := badger.DefaultIteratorOptions
		opts.Prefix = metaPrefix
		iter := tx.NewIterator(opts)
		for iter.Rewind(); iter.ValidForPrefix(metaPrefix); iter.Next() {
			var blob *core.StoredBlob
			err := iter.Item().Value(func(val []byte) error {
				var err error
				blob, err = storage.UnmarshalStoredBlob(val)
				return err
			})
			if err != nil {
				iter.Close()
				return err
			}
			stats.UniqueHashes++
			stats.TotalRefs += blob.RefCount
		}
		iter.Close()

		dataPrefix := []byte(blobDataPrefix + ":")
		opts = badger.DefaultIteratorOptions
		opts.Prefix = dataPrefix
		iter = tx.NewIterator(opts)
		defer iter.Close()
		for iter.Rewind(); iter.ValidForPrefix(dataPrefix); iter.Next() {
			stats.FileCount++
			stats.TotalBytes += iter.Item().ValueSize()
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	if stats.TotalRefs > 0 {
		stats.DedupRatio = float64(stats.TotalRefs-stats.UniqueHashes) / float64(stats.TotalRefs)
	}
	return stats, nil
}

// readStoredBlob reads a blob bookkeeping record, returning nil when
// the key does not exist.
func readStoredBlob(tx *badger.Txn, key []byte) (*core.StoredBlob, error) {
	item, err := tx.Get(key)
	if err == badger.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var blob *core.StoredBlob
	err = item.Value(func(val []byte) error {
		var err error
		blob, err = storage.UnmarshalStoredBlob(val)
		return err
	})
	return blob, err
}
