package scheduler

import (
	"encoding/json"
	"time"

	model "auction-house/internal/models"
)

// Job names. startAuction and endAuction are the pre-armed lifecycle
// transitions; updateStatus is the generic form.
const (
	JobStartAuction = "startAuction"
	JobEndAuction   = "endAuction"
	JobUpdateStatus = "update-auction-status"
)

// DefaultMaxAttempts is how often a failing job is tried before it goes dead.
const DefaultMaxAttempts = 3

// JobStatus is the queue-side lifecycle of a job record.
type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobProcessing JobStatus = "processing"
	JobSucceeded  JobStatus = "succeeded"
	JobCancelled  JobStatus = "cancelled"
	// JobDead means retries are exhausted; the row is retained for
	// inspection but never repaired automatically.
	JobDead JobStatus = "dead"
)

// Job is a durable delayed-job record. It is a trigger, not a source of
// truth: the auction row stays authoritative even if a job fires twice or
// late.
type Job struct {
	ID          int64           `gorm:"primaryKey;autoIncrement"`
	Name        string          `gorm:"size:64;index"`
	AuctionID   string          `gorm:"size:36;index"`
	Payload     json.RawMessage `gorm:"type:json"`
	Status      JobStatus       `gorm:"size:16;index"`
	Attempts    int
	MaxAttempts int
	ScheduledAt time.Time `gorm:"index"`
	LockedBy    *string   `gorm:"size:64"`
	LockedAt    *time.Time
	FinishedAt  *time.Time
	LastError   *string `gorm:"type:text"`
	CreatedAt   time.Time
}

// TableName keeps the queue table clearly separated from domain tables.
func (Job) TableName() string {
	return "scheduled_jobs"
}

// TransitionPayload is the wire contract of a lifecycle transition job.
type TransitionPayload struct {
	AuctionID string              `json:"auctionId"`
	Status    model.AuctionStatus `json:"status"`
}
