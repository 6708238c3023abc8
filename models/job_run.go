package models

import "time"

// Job types driven by the per-account schedulers
const (
	JobTypeListItems  = "list-items"
	JobTypePriceEdits = "price-edits"
)

// Run outcomes recorded in the audit history
const (
	RunOutcomeSuccess = "success"
	RunOutcomeNoOp    = "no-op"
	RunOutcomeAborted = "aborted"
	RunOutcomeError   = "error"
)

// JobRun is one recorded execution of a scheduled job.
// Account holds the masked API key, never the raw credential.
type JobRun struct {
	ID         uint          `gorm:"primaryKey" json:"id"`
	Account    string        `gorm:"index:idx_account_job" json:"account"`
	JobType    string        `gorm:"index:idx_account_job" json:"job_type"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration_ns"`
	Outcome    string        `json:"outcome"`
	ItemCount  int           `json:"item_count"`
	ChunkCount int           `json:"chunk_count"`
	Error      string        `json:"error,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
}
