package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/curtail/internal/interfaces"
	"github.com/ternarybob/curtail/internal/models"
)

// JobStorage implements the JobStore interface for Badger
type JobStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewJobStorage creates a new JobStorage instance
func NewJobStorage(db *BadgerDB, logger arbor.ILogger) interfaces.JobStore {
	return &JobStorage{
		db:     db,
		logger: logger,
	}
}

// Put records a new validation job
func (s *JobStorage) Put(ctx context.Context, job *models.ValidationJob) error {
	if err := s.db.Store().Upsert(job.ID, job); err != nil {
		return fmt.Errorf("failed to store job %s: %w", job.ID, err)
	}
	return nil
}

// Get returns the job by id
func (s *JobStorage) Get(ctx context.Context, id string) (*models.ValidationJob, error) {
	var job models.ValidationJob
	err := s.db.Store().Get(id, &job)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return nil, interfaces.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job %s: %w", id, err)
	}
	return &job, nil
}

// CompareAndSetStatus applies a status transition inside a single badger
// transaction. Terminal states are absorbing: once a job left Pending the
// first terminal verdict wins and later transitions are no-ops.
func (s *JobStorage) CompareAndSetStatus(ctx context.Context, id string, status models.URLSafety) (bool, error) {
	changed := false
	err := s.db.DB().Update(func(txn *badgerdb.Txn) error {
		var job models.ValidationJob
		if err := s.db.Store().TxGet(txn, id, &job); err != nil {
			if errors.Is(err, badgerhold.ErrNotFound) {
				return interfaces.ErrNotFound
			}
			return err
		}

		if job.Status == status {
			return nil // Idempotent re-application
		}
		if job.Status.IsTerminal() {
			s.logger.Debug().
				Str("job_id", id).
				Str("current", string(job.Status)).
				Str("attempted", string(status)).
				Msg("Ignoring transition from terminal status")
			return nil
		}

		now := time.Now().UTC()
		job.Status = status
		job.UpdatedAt = &now
		changed = true
		return s.db.Store().TxUpdate(txn, id, &job)
	})
	if err != nil {
		return false, fmt.Errorf("failed to update job %s status: %w", id, err)
	}
	return changed, nil
}

// Ensure JobStorage implements JobStore interface
var _ interfaces.JobStore = (*JobStorage)(nil)
