package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"auction-house/internal/auctionerrors"
)

// JobStore persists scheduled jobs. Lock is the per-instance claim that keeps
// two workers from running the same job; it cannot keep a job from being
// re-delivered after a crash, which is why handlers must be idempotent.
type JobStore interface {
	Insert(ctx context.Context, name, auctionID string, scheduledAt time.Time, payload any) (int64, error)
	FetchDue(ctx context.Context, limit int, now time.Time) ([]Job, error)
	Lock(ctx context.Context, jobID int64, instance string) (bool, error)
	MarkSucceeded(ctx context.Context, jobID int64) error
	MarkFailed(ctx context.Context, jobID int64, errMsg string, attempts int, retryAt *time.Time) error
	CancelForAuction(ctx context.Context, auctionID string) (int64, error)
	UnlockStale(ctx context.Context, olderThan time.Duration) error
}

// GormJobStore keeps the job table in the same database as the domain rows.
type GormJobStore struct {
	db *gorm.DB
}

// NewGormJobStore migrates the job table on the shared handle.
func NewGormJobStore(db *gorm.DB) (*GormJobStore, error) {
	if err := db.AutoMigrate(&Job{}); err != nil {
		return nil, fmt.Errorf("scheduler: %w - migrate job table: %v", auctionerrors.ErrInfrastructure, err)
	}
	return &GormJobStore{db: db}, nil
}

func (s *GormJobStore) Insert(ctx context.Context, name, auctionID string, scheduledAt time.Time, payload any) (int64, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("scheduler: marshal payload for %s: %w", name, err)
	}

	job := Job{
		Name:        name,
		AuctionID:   auctionID,
		Payload:     raw,
		Status:      JobQueued,
		MaxAttempts: DefaultMaxAttempts,
		ScheduledAt: scheduledAt,
	}
	if err := s.db.WithContext(ctx).Create(&job).Error; err != nil {
		return 0, fmt.Errorf("scheduler: %w - insert job %s: %v", auctionerrors.ErrInfrastructure, name, err)
	}
	return job.ID, nil
}

func (s *GormJobStore) FetchDue(ctx context.Context, limit int, now time.Time) ([]Job, error) {
	var jobs []Job
	err := s.db.WithContext(ctx).
		Where("status = ? AND scheduled_at <= ?", JobQueued, now).
		Order("scheduled_at ASC").
		Limit(limit).
		Find(&jobs).Error
	if err != nil {
		return nil, fmt.Errorf("scheduler: %w - fetch due jobs: %v", auctionerrors.ErrInfrastructure, err)
	}
	return jobs, nil
}

func (s *GormJobStore) Lock(ctx context.Context, jobID int64, instance string) (bool, error) {
	now := time.Now().UTC()
	result := s.db.WithContext(ctx).
		Model(&Job{}).
		Where("id = ? AND status = ?", jobID, JobQueued).
		Updates(map[string]any{
			"status":    JobProcessing,
			"locked_by": instance,
			"locked_at": now,
		})
	if result.Error != nil {
		return false, fmt.Errorf("scheduler: %w - lock job %d: %v", auctionerrors.ErrInfrastructure, jobID, result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (s *GormJobStore) MarkSucceeded(ctx context.Context, jobID int64) error {
	now := time.Now().UTC()
	err := s.db.WithContext(ctx).
		Model(&Job{}).
		Where("id = ?", jobID).
		Updates(map[string]any{
			"status":      JobSucceeded,
			"finished_at": now,
		}).Error
	if err != nil {
		return fmt.Errorf("scheduler: %w - mark job %d succeeded: %v", auctionerrors.ErrInfrastructure, jobID, err)
	}
	return nil
}

func (s *GormJobStore) MarkFailed(ctx context.Context, jobID int64, errMsg string, attempts int, retryAt *time.Time) error {
	updates := map[string]any{
		"attempts":   attempts,
		"last_error": errMsg,
		"locked_by":  nil,
		"locked_at":  nil,
	}
	if retryAt != nil {
		updates["status"] = JobQueued
		updates["scheduled_at"] = *retryAt
	} else {
		updates["status"] = JobDead
		updates["finished_at"] = time.Now().UTC()
	}

	err := s.db.WithContext(ctx).Model(&Job{}).Where("id = ?", jobID).Updates(updates).Error
	if err != nil {
		return fmt.Errorf("scheduler: %w - mark job %d failed: %v", auctionerrors.ErrInfrastructure, jobID, err)
	}
	return nil
}

func (s *GormJobStore) CancelForAuction(ctx context.Context, auctionID string) (int64, error) {
	result := s.db.WithContext(ctx).
		Model(&Job{}).
		Where("auction_id = ? AND status = ?", auctionID, JobQueued).
		Update("status", JobCancelled)
	if result.Error != nil {
		return 0, fmt.Errorf("scheduler: %w - cancel jobs for auction %s: %v", auctionerrors.ErrInfrastructure, auctionID, result.Error)
	}
	return result.RowsAffected, nil
}

func (s *GormJobStore) UnlockStale(ctx context.Context, olderThan time.Duration) error {
	cutoff := time.Now().UTC().Add(-olderThan)
	err := s.db.WithContext(ctx).
		Model(&Job{}).
		Where("status = ? AND locked_at < ?", JobProcessing, cutoff).
		Updates(map[string]any{
			"status":    JobQueued,
			"locked_by": nil,
			"locked_at": nil,
		}).Error
	if err != nil {
		return fmt.Errorf("scheduler: %w - unlock stale jobs: %v", auctionerrors.ErrInfrastructure, err)
	}
	return nil
}

// MemoryJobStore is an in-memory JobStore for tests and local runs.
type MemoryJobStore struct {
	mu     sync.Mutex
	nextID int64
	jobs   map[int64]*Job
}

// NewMemoryJobStore creates an empty in-memory job store.
func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{jobs: make(map[int64]*Job)}
}

func (s *MemoryJobStore) Insert(_ context.Context, name, auctionID string, scheduledAt time.Time, payload any) (int64, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("scheduler: marshal payload for %s: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.jobs[s.nextID] = &Job{
		ID:          s.nextID,
		Name:        name,
		AuctionID:   auctionID,
		Payload:     raw,
		Status:      JobQueued,
		MaxAttempts: DefaultMaxAttempts,
		ScheduledAt: scheduledAt,
		CreatedAt:   time.Now().UTC(),
	}
	return s.nextID, nil
}

func (s *MemoryJobStore) FetchDue(_ context.Context, limit int, now time.Time) ([]Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []Job
	for _, job := range s.jobs {
		if job.Status == JobQueued && !job.ScheduledAt.After(now) {
			due = append(due, *job)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ScheduledAt.Before(due[j].ScheduledAt) })
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (s *MemoryJobStore) Lock(_ context.Context, jobID int64, instance string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok || job.Status != JobQueued {
		return false, nil
	}
	now := time.Now().UTC()
	job.Status = JobProcessing
	job.LockedBy = &instance
	job.LockedAt = &now
	return true, nil
}

func (s *MemoryJobStore) MarkSucceeded(_ context.Context, jobID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if job, ok := s.jobs[jobID]; ok {
		now := time.Now().UTC()
		job.Status = JobSucceeded
		job.FinishedAt = &now
	}
	return nil
}

func (s *MemoryJobStore) MarkFailed(_ context.Context, jobID int64, errMsg string, attempts int, retryAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil
	}
	job.Attempts = attempts
	job.LastError = &errMsg
	job.LockedBy = nil
	job.LockedAt = nil
	if retryAt != nil {
		job.Status = JobQueued
		job.ScheduledAt = *retryAt
	} else {
		now := time.Now().UTC()
		job.Status = JobDead
		job.FinishedAt = &now
	}
	return nil
}

func (s *MemoryJobStore) CancelForAuction(_ context.Context, auctionID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var cancelled int64
	for _, job := range s.jobs {
		if job.AuctionID == auctionID && job.Status == JobQueued {
			job.Status = JobCancelled
			cancelled++
		}
	}
	return cancelled, nil
}

func (s *MemoryJobStore) UnlockStale(_ context.Context, olderThan time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().UTC().Add(-olderThan)
	for _, job := range s.jobs {
		if job.Status == JobProcessing && job.LockedAt != nil && job.LockedAt.Before(cutoff) {
			job.Status = JobQueued
			job.LockedBy = nil
			job.LockedAt = nil
		}
	}
	return nil
}

// Get returns a copy of a job by id. Intended for tests.
func (s *MemoryJobStore) Get(jobID int64) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// All returns copies of every job, ordered by id. Intended for tests.
func (s *MemoryJobStore) All() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobs := make([]Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, *job)
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].ID < jobs[j].ID })
	return jobs
}
