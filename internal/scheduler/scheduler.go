package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"auction-house/utils"
)

const fetchBatchSize = 50

// Handler executes one delivered job. Delivery is at-least-once and possibly
// out of order, so handlers must be idempotent. A returned error triggers the
// retry/backoff path; nil discards the job as done.
type Handler func(ctx context.Context, payload json.RawMessage) error

// Scheduler enqueues delayed jobs and runs the worker loop that fires them.
type Scheduler struct {
	store        JobStore
	instance     string
	handlers     map[string]Handler
	sem          *semaphore.Weighted
	pollInterval time.Duration
	backoffBase  time.Duration
}

// New creates a Scheduler. instance identifies this worker process in job
// locks; workers bounds concurrent handlers.
func New(store JobStore, instance string, workers int64, pollInterval time.Duration) *Scheduler {
	return &Scheduler{
		store:        store,
		instance:     instance,
		handlers:     make(map[string]Handler),
		sem:          semaphore.NewWeighted(workers),
		pollInterval: pollInterval,
		backoffBase:  time.Second,
	}
}

// RegisterHandler binds a job name to its handler. Registration happens at
// startup, before Run.
func (s *Scheduler) RegisterHandler(name string, h Handler) {
	s.handlers[name] = h
}

// Enqueue schedules a job to fire at or after fireAt. A fireAt in the past
// makes the job due immediately.
func (s *Scheduler) Enqueue(ctx context.Context, name, auctionID string, fireAt time.Time, payload any) (int64, error) {
	now := time.Now().UTC()
	if fireAt.Before(now) {
		fireAt = now
	}

	jobID, err := s.store.Insert(ctx, name, auctionID, fireAt, payload)
	if err != nil {
		return 0, err
	}

	utils.Info("job enqueued", map[string]any{
		"job_id":     jobID,
		"job":        name,
		"auction_id": auctionID,
		"fire_at":    fireAt.Format(time.RFC3339),
		"delay_ms":   fireAt.Sub(now).Milliseconds(),
	})
	return jobID, nil
}

// CancelForAuction cancels every still-queued job for an auction. Called
// before re-arming transitions on reschedule, and on cancellation, so stale
// jobs for old times never fire.
func (s *Scheduler) CancelForAuction(ctx context.Context, auctionID string) error {
	cancelled, err := s.store.CancelForAuction(ctx, auctionID)
	if err != nil {
		return err
	}
	if cancelled > 0 {
		utils.Info("pending jobs cancelled", map[string]any{
			"auction_id": auctionID,
			"count":      cancelled,
		})
	}
	return nil
}

// Run polls for due jobs until ctx is cancelled. Each batch is processed to
// completion before the next poll, which keeps retry ordering simple.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.ProcessDue(ctx); err != nil {
				utils.Error("job poll failed", map[string]any{"error": err.Error()})
			}
		}
	}
}

// ProcessDue fetches one batch of due jobs and runs them, waiting for all
// handlers to finish. Returns the number of jobs it claimed.
func (s *Scheduler) ProcessDue(ctx context.Context) (int, error) {
	jobs, err := s.store.FetchDue(ctx, fetchBatchSize, time.Now().UTC())
	if err != nil {
		return 0, err
	}

	var wg sync.WaitGroup
	claimed := 0
	for _, job := range jobs {
		ok, err := s.store.Lock(ctx, job.ID, s.instance)
		if err != nil || !ok {
			continue
		}
		if err := s.sem.Acquire(ctx, 1); err != nil {
			break
		}
		claimed++
		wg.Add(1)

		go func(job Job) {
			defer s.sem.Release(1)
			defer wg.Done()
			s.runJob(ctx, job)
		}(job)
	}
	wg.Wait()
	return claimed, nil
}

func (s *Scheduler) runJob(ctx context.Context, job Job) {
	defer func() {
		if r := recover(); r != nil {
			utils.Error("panic in job handler", map[string]any{
				"job_id": job.ID,
				"job":    job.Name,
				"panic":  fmt.Sprint(r),
			})
			s.markFailed(ctx, job, fmt.Sprintf("panic: %v", r))
		}
	}()

	handler, ok := s.handlers[job.Name]
	if !ok {
		s.markFailed(ctx, job, fmt.Sprintf("no handler registered for %q", job.Name))
		return
	}

	if err := handler(ctx, job.Payload); err != nil {
		s.markFailed(ctx, job, err.Error())
		return
	}

	if err := s.store.MarkSucceeded(ctx, job.ID); err != nil {
		utils.Error("mark job succeeded failed", map[string]any{"job_id": job.ID, "error": err.Error()})
		return
	}
	utils.Info("job completed", map[string]any{
		"job_id":     job.ID,
		"job":        job.Name,
		"auction_id": job.AuctionID,
	})
}

// markFailed re-queues the job with exponential backoff (1s, 2s, 4s, ...)
// until attempts are exhausted, then parks it dead for inspection.
func (s *Scheduler) markFailed(ctx context.Context, job Job, errMsg string) {
	attempts := job.Attempts + 1

	var retryAt *time.Time
	if attempts < job.MaxAttempts {
		at := time.Now().UTC().Add(s.backoffBase << (attempts - 1))
		retryAt = &at
	}

	if err := s.store.MarkFailed(ctx, job.ID, errMsg, attempts, retryAt); err != nil {
		utils.Error("mark job failed errored", map[string]any{"job_id": job.ID, "error": err.Error()})
		return
	}

	fields := map[string]any{
		"job_id":     job.ID,
		"job":        job.Name,
		"auction_id": job.AuctionID,
		"attempts":   attempts,
		"error":      errMsg,
	}
	if retryAt != nil {
		fields["retry_at"] = retryAt.Format(time.RFC3339)
		utils.Warn("job failed, will retry", fields)
	} else {
		utils.Error("job dead after exhausting retries", fields)
	}
}

// UnlockStaleTask returns a func suitable for a cron entry that re-queues
// jobs whose worker died mid-flight.
func (s *Scheduler) UnlockStaleTask(olderThan time.Duration) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.store.UnlockStale(ctx, olderThan); err != nil {
			utils.Error("unlock stale jobs failed", map[string]any{"error": err.Error()})
		}
	}
}
