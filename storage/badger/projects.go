package badger

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/quillstore/quill/core"
	"github.com/quillstore/quill/storage"
)

// ProjectDirectory implements storage.ProjectDirectory for BadgerDB.
type ProjectDirectory struct {
	backend *Backend
}

var _ storage.ProjectDirectory = (*ProjectDirectory)(nil)

// NewProjectDirectory creates a new ProjectDirectory on the given backend.
func NewProjectDirectory(backend *Backend) (*ProjectDirectory, error) {
	return &ProjectDirectory{backend: backend}, nil
}

// Close releases directory resources. The backend is closed separately.
func (d *ProjectDirectory) Close() error {
	return nil
}

// CreateProject persists a new project.
func (d *ProjectDirectory) CreateProject(ctx context.Context, project *core.Project) error {
	now := time.Now().UTC()
	if project != nil && project.CreatedAt.IsZero() {
		project.CreatedAt = now
	}
	if err := core.ValidateProject(project, now); err != nil {
		return err
	}

	return d.backend.WithTx(func(tx *badger.Txn) error {
		key := makeProjectKey(project.ID)
		if _, err := tx.Get(key); err == nil {
			return storage.ErrDuplicateKey
		} else if err != badger.ErrKeyNotFound {
			return err
		}
		if err := tx.Set(key, storage.MarshalProject(project)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// Resolve returns a live project by ID. Expired projects are reported
// as not found even before a sweep removes them; an expired tenant must
// never be observable.
func (d *ProjectDirectory) Resolve(ctx context.Context, id string) (*core.Project, error) {
	var project *core.Project
	err := d.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeProjectKey(id))
		if err == badger.ErrKeyNotFound {
			return storage.ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			project, err = storage.UnmarshalProject(val)
			return err
		})
	}, false)
	if err != nil {
		return nil, err
	}
	if project.Expired(time.Now().UTC()) {
		return nil, storage.ErrNotFound
	}
	return project, nil
}

// SweepExpired removes projects whose lifetime has elapsed as of now.
// Their vector records carry their own TTL and expire on their own.
func (d *ProjectDirectory) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	var swept int
	err := d.backend.updateWithRetry(func(tx *badger.Txn) error {
		swept = 0
		prefix := []byte(projectPrefix + ":")
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		iter := tx.NewIterator(opts)

		var expired [][]byte
		for iter.Rewind(); iter.ValidForPrefix(prefix); iter.Next() {
			var project *core.Project
			err := iter.Item().Value(func(val []byte) error {
				var err error
				project, err = storage.UnmarshalProject(val)
				return err
			})
			if err != nil {
				iter.Close()
				return err
			}
			if project.Expired(now) {
				expired = append(expired, iter.Item().KeyCopy(nil))
			}
		}
		iter.Close()

		for _, key := range expired {
			if err := tx.Delete(key); err != nil {
				return err
			}
			swept++
		}
		return tx.Commit()
	})
	if err != nil {
		return 0, err
	}
	return swept, nil
}
