package badger

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/quillstore/quill/core"
	"github.com/quillstore/quill/storage"
)

// terminalJobTTL is how long completed and failed jobs stay readable
// before BadgerDB expires them.
const terminalJobTTL = 7 * 24 * time.Hour

// JobLedger implements storage.JobLedger for BadgerDB.
type JobLedger struct {
	backend *Backend
}

var _ storage.JobLedger = (*JobLedger)(nil)

// NewJobLedger creates a new JobLedger on the given backend.
func NewJobLedger(backend *Backend) (*JobLedger, error) {
	return &JobLedger{backend: backend}, nil
}

// Close releases ledger resources. The backend is closed separately.
func (l *JobLedger) Close() error {
	return nil
}

// CreateJob persists a new job record along with its owner and project
// index entries.
func (l *JobLedger) CreateJob(ctx context.Context, job *core.Job) error {
	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	if job.UpdatedAt.IsZero() {
		job.UpdatedAt = job.CreatedAt
	}
	if err := core.ValidateJob(job); err != nil {
		return err
	}

	return l.backend.WithTx(func(tx *badger.Txn) error {
		key := makeJobKey(job.ID)
		if _, err := tx.Get(key); err == nil {
			return storage.ErrDuplicateKey
		} else if err != badger.ErrKeyNotFound {
			return err
		}

		if err := tx.Set(key, storage.MarshalJob(job)); err != nil {
			return err
		}
		if err := tx.Set(makeJobOwnerKey(job.OwnerID, job.CreatedAt, job.ID), []byte(job.ID)); err != nil {
			return err
		}
		if err := tx.Set(makeJobProjectKey(job.ProjectID, job.CreatedAt, job.ID), []byte(job.ID)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// GetJob retrieves a job by ID. Returns (nil, nil) when the job does
// not exist.
func (l *JobLedger) GetJob(ctx context.Context, id string) (*core.Job, error) {
	var job *core.Job
	err := l.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		job, err = readJob(tx, makeJobKey(id))
		return err
	}, false)
	if err != nil {
		return nil, err
	}
	return job, nil
}

// UpdateStatus transitions a job to a new status and applies the
// optional update fields. See storage.JobLedger for the transition and
// progress rules.
func (l *JobLedger) UpdateStatus(ctx context.Context, id string, status core.JobStatus, update *storage.JobUpdate) (*core.Job, error) {
	var updated *core.Job
	err := l.backend.updateWithRetry(func(tx *badger.Txn) error {
		job, err := readJob(tx, makeJobKey(id))
		if err != nil {
			return err
		}
		if job == nil {
			return storage.ErrNotFound
		}
		if !core.CanTransition(job.Status, status) {
			return core.ErrInvalidTransition
		}

		now := time.Now().UTC()
		job.Status = status
		job.UpdatedAt = now
		if update != nil {
			if update.Progress != nil && *update.Progress > job.Progress {
				job.Progress = min(*update.Progress, 100)
			}
			if update.Result != nil {
				job.Result = *update.Result
			}
			if update.Error != nil {
				job.Error = *update.Error
			}
		}
		switch status {
		case core.JobCompleted:
			job.Progress = 100
			job.CompletedAt = now
		case core.JobFailed:
			job.CompletedAt = now
		}

		if err := writeJob(tx, job); err != nil {
			return err
		}
		updated = job
		return tx.Commit()
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// IncrementProgress adds delta to the job's progress, capped at 100.
func (l *JobLedger) IncrementProgress(ctx context.Context, id string, delta int) (*core.Job, error) {
	var updated *core.Job
	err := l.backend.updateWithRetry(func(tx *badger.Txn) error {
		job, err := readJob(tx, makeJobKey(id))
		if err != nil {
			return err
		}
		if job == nil {
			return storage.ErrNotFound
		}
		job.Progress = min(job.Progress+delta, 100)
		job.UpdatedAt = time.Now().UTC()

		if err := writeJob(tx, job); err != nil {
			return err
		}
		updated = job
		return tx.Commit()
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ListJobsByOwner returns an owner's jobs, newest first, optionally
// filtered by status.
func (l *JobLedger) ListJobsByOwner(ctx context.Context, ownerID string, limit int, status core.JobStatus) ([]*core.Job, error) {
	return l.listByIndex(makeJobOwnerScanPrefix(ownerID), limit, status)
}

// ListJobsByProject returns a project's jobs, newest first, optionally
// filtered by status.
func (l *JobLedger) ListJobsByProject(ctx context.Context, projectID string, limit int, status core.JobStatus) ([]*core.Job, error) {
	return l.listByIndex(makeJobProjectScanPrefix(projectID), limit, status)
}

func (l *JobLedger) listByIndex(prefix []byte, limit int, status core.JobStatus) ([]*core.Job, error) {
	var jobs []*core.Job
	err := l.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = prefix
		iter := tx.NewIterator(opts)
		defer iter.Close()

		// Reverse iteration starts past the last key of the prefix.
		seek := append(append([]byte(nil), prefix...), 0xFF)
		for iter.Seek(seek); iter.ValidForPrefix(prefix); iter.Next() {
			if limit > 0 && len(jobs) >= limit {
				break
			}
			var jobID []byte
			if err := iter.Item().Value(func(val []byte) error {
				jobID = append([]byte(nil), val...)
				return nil
			}); err != nil {
				return err
			}

			job, err := readJob(tx, makeJobKey(string(jobID)))
			if err != nil {
				return err
			}
			// Terminal jobs expire before their index entries; skip the
			// dangling references.
			if job == nil {
				continue
			}
			if status != "" && job.Status != status {
				continue
			}
			jobs = append(jobs, job)
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

// readJob reads and deserializes a job, returning nil when the key does
// not exist.
func readJob(tx *badger.Txn, key []byte) (*core.Job, error) {
	item, err := tx.Get(key)
	if err == badger.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var job *core.Job
	err = item.Value(func(val []byte) error {
		var err error
		job, err = storage.UnmarshalJob(val)
		return err
	})
	return job, err
}

// writeJob persists a job; terminal jobs and their index entries get a
// retention TTL so BadgerDB removes them without a sweeper.
func writeJob(tx *badger.Txn, job *core.Job) error {
	value := storage.MarshalJob(job)
	if !job.Status.Terminal() {
		return tx.Set(makeJobKey(job.ID), value)
	}
	entry := badger.NewEntry(makeJobKey(job.ID), value).WithTTL(terminalJobTTL)
	if err := tx.SetEntry(entry); err != nil {
		return err
	}
	ownerEntry := badger.NewEntry(makeJobOwnerKey(job.OwnerID, job.CreatedAt, job.ID), []byte(job.ID)).WithTTL(terminalJobTTL)
	if err := tx.SetEntry(ownerEntry); err != nil {
		return err
	}
	projectEntry := badger.NewEntry(makeJobProjectKey(job.ProjectID, job.CreatedAt, job.ID), []byte(job.ID)).WithTTL(terminalJobTTL)
	return tx.SetEntry(projectEntry)
}
