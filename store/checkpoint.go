package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"repricer/models"
)

// CheckpointStore persists the last successful run time of each
// (account, job type) pair. Checkpoints never expire and never get deleted;
// they are overwritten after every run.
type CheckpointStore struct {
	kv        KV
	namespace string
}

// NewCheckpointStore creates a checkpoint store under the given key namespace
func NewCheckpointStore(kv KV, namespace string) *CheckpointStore {
	return &CheckpointStore{kv: kv, namespace: namespace}
}

func (s *CheckpointStore) key(account models.Account, jobType string) string {
	return fmt.Sprintf("%s:%s:%s:last-check", s.namespace, account.APIKey, jobType)
}

// LastRun returns the persisted checkpoint for a job, reporting absence when
// no run has ever completed. A corrupt stored value is treated as absent.
func (s *CheckpointStore) LastRun(ctx context.Context, account models.Account, jobType string) (time.Time, bool, error) {
	raw, found, err := s.kv.Get(ctx, s.key(account, jobType))
	if err != nil {
		return time.Time{}, false, err
	}
	if !found {
		return time.Time{}, false, nil
	}

	millis, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return time.Time{}, false, nil
	}
	return time.UnixMilli(millis), true, nil
}

// SetLastRun overwrites the checkpoint with the given run time
func (s *CheckpointStore) SetLastRun(ctx context.Context, account models.Account, jobType string, t time.Time) error {
	value := strconv.FormatInt(t.UnixMilli(), 10)
	return s.kv.Set(ctx, s.key(account, jobType), []byte(value))
}
