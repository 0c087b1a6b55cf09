package statemachine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"auction-house/internal/auctionerrors"
	"auction-house/internal/cache"
	model "auction-house/internal/models"
	"auction-house/internal/notify"
	"auction-house/internal/realtime"
	"auction-house/internal/repository"
	"auction-house/internal/scheduler"
	"auction-house/utils"
)

// Enqueuer is the slice of the scheduler the state machine drives.
type Enqueuer interface {
	Enqueue(ctx context.Context, name, auctionID string, fireAt time.Time, payload any) (int64, error)
	CancelForAuction(ctx context.Context, auctionID string) error
}

// CreateAuctionInput carries everything needed to list an auction.
type CreateAuctionInput struct {
	Title           string
	Description     string
	StartingPrice   decimal.Decimal
	MinBidIncrement decimal.Decimal
	ReservePrice    decimal.NullDecimal
	StartTime       time.Time
	EndTime         time.Time
	CreatorID       string
	SellerID        string
	CategoryID      string
}

// StateMachine owns the auction status lifecycle: it validates transitions,
// persists them, and dispatches the per-status side effects. Side effects run
// after the status commit and are best-effort; their failure is logged, never
// rolled back.
type StateMachine struct {
	store       repository.AuctionStore
	jobs        Enqueuer
	notifier    notify.Notifier
	publisher   realtime.Publisher
	invalidator *cache.Invalidator

	// per-status side-effect dispatch table; the key set is exactly the
	// statuses that can be entered via UpdateStatus
	handlers map[model.AuctionStatus]func(ctx context.Context, auction *model.Auction) error
}

// New wires a StateMachine.
func New(store repository.AuctionStore, jobs Enqueuer, notifier notify.Notifier, publisher realtime.Publisher, invalidator *cache.Invalidator) *StateMachine {
	m := &StateMachine{
		store:       store,
		jobs:        jobs,
		notifier:    notifier,
		publisher:   publisher,
		invalidator: invalidator,
	}
	m.handlers = map[model.AuctionStatus]func(context.Context, *model.Auction) error{
		model.StatusScheduled: m.enterScheduled,
		model.StatusActive:    m.enterActive,
		model.StatusEnded:     m.enterEnded,
		model.StatusCancelled: m.enterCancelled,
		model.StatusSold:      m.enterSold,
	}
	return m
}

// Create lists a new auction. The initial status is computed from the clock:
// already inside the bidding window means ACTIVE, a future start means
// SCHEDULED with both transitions pre-armed, anything else stays DRAFT.
func (m *StateMachine) Create(ctx context.Context, input CreateAuctionInput) (*model.Auction, error) {
	if err := validateListing(input); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	status := model.StatusDraft
	switch {
	case !input.StartTime.After(now) && now.Before(input.EndTime):
		status = model.StatusActive
	case input.StartTime.After(now):
		status = model.StatusScheduled
	}

	auction := &model.Auction{
		AuctionID:       utils.GenerateID(),
		Title:           input.Title,
		Description:     input.Description,
		StartingPrice:   input.StartingPrice,
		CurrentPrice:    input.StartingPrice,
		MinBidIncrement: input.MinBidIncrement,
		ReservePrice:    input.ReservePrice,
		StartTime:       input.StartTime.UTC(),
		EndTime:         input.EndTime.UTC(),
		Status:          status,
		CreatorID:       input.CreatorID,
		SellerID:        input.SellerID,
		CategoryID:      input.CategoryID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := m.store.CreateAuction(ctx, auction); err != nil {
		return nil, err
	}

	switch status {
	case model.StatusScheduled:
		m.armTransition(ctx, auction, scheduler.JobStartAuction, model.StatusActive, auction.StartTime)
		m.armTransition(ctx, auction, scheduler.JobEndAuction, model.StatusEnded, auction.EndTime)
	case model.StatusActive:
		m.armTransition(ctx, auction, scheduler.JobEndAuction, model.StatusEnded, auction.EndTime)
	}

	m.invalidator.OnAuctionChanged(ctx, auction)
	m.logAction(ctx, auction.CreatorID, "auction.create",
		fmt.Sprintf("auction %s created with status %s", auction.AuctionID, auction.Status))

	utils.Info("auction created", map[string]any{
		"auction_id": auction.AuctionID,
		"status":     string(auction.Status),
		"start_time": auction.StartTime.Format(time.RFC3339),
		"end_time":   auction.EndTime.Format(time.RFC3339),
	})
	return auction, nil
}

// UpdateStatus moves an auction to newStatus if the lifecycle graph allows
// it, then dispatches the per-status side effects. The status write happens
// under the auction row lock so it cannot clobber a concurrent bid.
func (m *StateMachine) UpdateStatus(ctx context.Context, auctionID string, newStatus model.AuctionStatus) (*model.Auction, error) {
	if !newStatus.Valid() {
		return nil, fmt.Errorf("state: %w - unknown status %q", auctionerrors.ErrValidation, newStatus)
	}

	var updated *model.Auction
	err := m.store.InTransaction(ctx, func(tx repository.AuctionStore) error {
		auction, err := tx.GetAuctionForUpdate(ctx, auctionID)
		if err != nil {
			return err
		}
		if auction.Status == newStatus {
			return fmt.Errorf("state: %w - auction %s is already %s", auctionerrors.ErrStateTransition, auctionID, newStatus)
		}
		if !CanTransition(auction.Status, newStatus) {
			return fmt.Errorf("state: %w - %s cannot move from %s to %s", auctionerrors.ErrStateTransition, auctionID, auction.Status, newStatus)
		}
		if newStatus == model.StatusScheduled {
			if err := schedulePreconditions(auction); err != nil {
				return err
			}
		}

		auction.Status = newStatus
		auction.UpdatedAt = time.Now().UTC()
		if err := tx.SaveAuction(ctx, auction); err != nil {
			return err
		}
		updated = auction
		return nil
	})
	if err != nil {
		return nil, err
	}

	// committed: everything from here on is best-effort
	m.publisher.EmitAuctionUpdate(updated)
	m.invalidator.OnAuctionChanged(ctx, updated)

	if handler := m.handlers[newStatus]; handler != nil {
		if err := handler(ctx, updated); err != nil {
			utils.Error("status side effects failed", map[string]any{
				"auction_id": updated.AuctionID,
				"status":     string(newStatus),
				"error":      err.Error(),
			})
		}
	}

	utils.Info("auction status updated", map[string]any{
		"auction_id": updated.AuctionID,
		"status":     string(updated.Status),
	})
	return updated, nil
}

// Reschedule moves a SCHEDULED auction's window. Jobs armed for the old
// times are cancelled before the new ones are enqueued, so a stale job can
// never fire a premature transition.
func (m *StateMachine) Reschedule(ctx context.Context, auctionID string, newStart, newEnd time.Time) (*model.Auction, error) {
	now := time.Now().UTC()
	if !newStart.Before(newEnd) {
		return nil, fmt.Errorf("state: %w - start time must precede end time", auctionerrors.ErrValidation)
	}
	if !newStart.After(now) {
		return nil, fmt.Errorf("state: %w - new start time must be in the future", auctionerrors.ErrValidation)
	}

	var updated *model.Auction
	err := m.store.InTransaction(ctx, func(tx repository.AuctionStore) error {
		auction, err := tx.GetAuctionForUpdate(ctx, auctionID)
		if err != nil {
			return err
		}
		if auction.Status != model.StatusScheduled {
			return fmt.Errorf("state: %w - only SCHEDULED auctions can be rescheduled, %s is %s", auctionerrors.ErrStateTransition, auctionID, auction.Status)
		}

		auction.StartTime = newStart.UTC()
		auction.EndTime = newEnd.UTC()
		auction.UpdatedAt = now
		if err := tx.SaveAuction(ctx, auction); err != nil {
			return err
		}
		updated = auction
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := m.jobs.CancelForAuction(ctx, auctionID); err != nil {
		utils.Error("cancel stale jobs failed", map[string]any{"auction_id": auctionID, "error": err.Error()})
	}
	m.armTransition(ctx, updated, scheduler.JobStartAuction, model.StatusActive, updated.StartTime)
	m.armTransition(ctx, updated, scheduler.JobEndAuction, model.StatusEnded, updated.EndTime)

	m.publisher.EmitAuctionUpdate(updated)
	m.invalidator.OnAuctionChanged(ctx, updated)
	return updated, nil
}

// HandleTransitionJob is the scheduler handler for every lifecycle job. It is
// idempotent against at-least-once, out-of-order delivery: a job whose
// auction already reached the target status is a no-op, and one whose
// transition became invalid (the auction moved on another way) is dropped.
// Only infrastructure failures are returned, which makes the queue retry.
func (m *StateMachine) HandleTransitionJob(ctx context.Context, payload json.RawMessage) error {
	var job scheduler.TransitionPayload
	if err := json.Unmarshal(payload, &job); err != nil {
		return fmt.Errorf("state: %w - malformed job payload: %v", auctionerrors.ErrValidation, err)
	}
	if job.AuctionID == "" || !job.Status.Valid() {
		return fmt.Errorf("state: %w - job payload missing auction id or status", auctionerrors.ErrValidation)
	}

	auction, err := m.store.GetAuction(ctx, job.AuctionID)
	if err != nil {
		if errors.Is(err, auctionerrors.ErrNotFound) {
			utils.Warn("transition job for unknown auction dropped", map[string]any{
				"auction_id": job.AuctionID,
				"target":     string(job.Status),
			})
			return nil
		}
		return err
	}

	if auction.Status == job.Status {
		if job.Status == model.StatusEnded {
			// a failure between the ENDED commit and its settlement strands
			// the auction here with an unsettled winning bid; redelivery
			// finishes the settlement
			return m.enterEnded(ctx, auction)
		}
		utils.Info("transition job is a no-op, auction already in target status", map[string]any{
			"auction_id": job.AuctionID,
			"status":     string(job.Status),
		})
		return nil
	}

	updated, err := m.UpdateStatus(ctx, job.AuctionID, job.Status)
	switch {
	case err == nil:
		if job.Status == model.StatusEnded {
			// UpdateStatus swallows side-effect failures, but settlement
			// must reach the queue so it retries; once settled this re-run
			// stops at the status re-check
			return m.enterEnded(ctx, updated)
		}
		return nil
	case errors.Is(err, auctionerrors.ErrStateTransition), errors.Is(err, auctionerrors.ErrNotFound):
		// the auction moved on through another path (e.g. manual cancel)
		utils.Warn("transition job dropped, auction moved on", map[string]any{
			"auction_id": job.AuctionID,
			"target":     string(job.Status),
			"error":      err.Error(),
		})
		return nil
	default:
		return err
	}
}

// armTransition enqueues one lifecycle job; failure to enqueue is logged
// loudly but does not fail the caller, since the auction row is already
// authoritative and an operator can re-arm.
func (m *StateMachine) armTransition(ctx context.Context, auction *model.Auction, jobName string, target model.AuctionStatus, fireAt time.Time) {
	payload := scheduler.TransitionPayload{AuctionID: auction.AuctionID, Status: target}
	if _, err := m.jobs.Enqueue(ctx, jobName, auction.AuctionID, fireAt, payload); err != nil {
		utils.Error("enqueue transition job failed", map[string]any{
			"auction_id": auction.AuctionID,
			"job":        jobName,
			"target":     string(target),
			"error":      err.Error(),
		})
	}
}

// enterScheduled re-arms both transitions, covering the DRAFT -> SCHEDULED
// path where no jobs exist yet.
func (m *StateMachine) enterScheduled(ctx context.Context, auction *model.Auction) error {
	if err := m.jobs.CancelForAuction(ctx, auction.AuctionID); err != nil {
		return err
	}
	m.armTransition(ctx, auction, scheduler.JobStartAuction, model.StatusActive, auction.StartTime)
	m.armTransition(ctx, auction, scheduler.JobEndAuction, model.StatusEnded, auction.EndTime)
	return nil
}

// enterActive drops any stale pending jobs and re-arms the end transition.
func (m *StateMachine) enterActive(ctx context.Context, auction *model.Auction) error {
	if err := m.jobs.CancelForAuction(ctx, auction.AuctionID); err != nil {
		return err
	}
	m.armTransition(ctx, auction, scheduler.JobEndAuction, model.StatusEnded, auction.EndTime)
	return nil
}

// enterEnded settles the auction: with at least one bid the highest becomes
// WON, the winner is recorded and the auction moves on to SOLD; with no bids
// it stays ENDED with no winner.
func (m *StateMachine) enterEnded(ctx context.Context, auction *model.Auction) error {
	highest, err := m.store.GetHighestBid(ctx, auction.AuctionID)
	if err != nil {
		if errors.Is(err, auctionerrors.ErrNotFound) {
			utils.Info("auction ended with no bids", map[string]any{"auction_id": auction.AuctionID})
			return nil
		}
		return err
	}

	var settled *model.Auction
	err = m.store.InTransaction(ctx, func(tx repository.AuctionStore) error {
		fresh, err := tx.GetAuctionForUpdate(ctx, auction.AuctionID)
		if err != nil {
			return err
		}
		if fresh.Status != model.StatusEnded {
			// moved on since the commit that got us here
			return nil
		}

		if err := tx.UpdateBidStatus(ctx, highest.BidID, model.BidStatusWon); err != nil {
			return err
		}
		fresh.WinnerID = &highest.BidderID
		fresh.Status = model.StatusSold
		fresh.UpdatedAt = time.Now().UTC()
		if err := tx.SaveAuction(ctx, fresh); err != nil {
			return err
		}
		settled = fresh
		return nil
	})
	if err != nil || settled == nil {
		return err
	}

	m.publisher.EmitAuctionUpdate(settled)
	m.invalidator.OnAuctionChanged(ctx, settled)

	m.createNotification(ctx, notify.Notification{
		Type:      notify.TypeWon,
		Title:     "You won the auction",
		Message:   fmt.Sprintf("Your bid of %s won %q", highest.Amount.StringFixed(2), settled.Title),
		UserID:    highest.BidderID,
		AuctionID: settled.AuctionID,
	})
	m.createNotification(ctx, notify.Notification{
		Type:      notify.TypeSold,
		Title:     "Your auction sold",
		Message:   fmt.Sprintf("%q sold for %s", settled.Title, highest.Amount.StringFixed(2)),
		UserID:    settled.SellerID,
		AuctionID: settled.AuctionID,
	})

	if handler := m.handlers[model.StatusSold]; handler != nil {
		return handler(ctx, settled)
	}
	return nil
}

// enterCancelled drops pending jobs and tells every distinct historical
// bidder, each exactly once.
func (m *StateMachine) enterCancelled(ctx context.Context, auction *model.Auction) error {
	if err := m.jobs.CancelForAuction(ctx, auction.AuctionID); err != nil {
		utils.Error("cancel pending jobs failed", map[string]any{"auction_id": auction.AuctionID, "error": err.Error()})
	}

	bidders, err := m.store.DistinctBidders(ctx, auction.AuctionID)
	if err != nil {
		return err
	}
	for _, bidderID := range bidders {
		m.createNotification(ctx, notify.Notification{
			Type:      notify.TypeCancelled,
			Title:     "Auction cancelled",
			Message:   fmt.Sprintf("%q was cancelled; your bid no longer stands", auction.Title),
			UserID:    bidderID,
			AuctionID: auction.AuctionID,
		})
	}
	return nil
}

// enterSold is the settlement hook; payment flows live outside the core.
func (m *StateMachine) enterSold(ctx context.Context, auction *model.Auction) error {
	m.logAction(ctx, auction.SellerID, "auction.sold",
		fmt.Sprintf("auction %s settled at %s", auction.AuctionID, auction.CurrentPrice.StringFixed(2)))
	return nil
}

func (m *StateMachine) createNotification(ctx context.Context, n notify.Notification) {
	if err := m.notifier.CreateNotification(ctx, n); err != nil {
		utils.Warn("create notification failed", map[string]any{
			"type":       n.Type,
			"user_id":    n.UserID,
			"auction_id": n.AuctionID,
			"error":      err.Error(),
		})
	}
}

func (m *StateMachine) logAction(ctx context.Context, actorID, action, description string) {
	if err := m.notifier.LogAction(ctx, notify.ActionLog{ActorID: actorID, Action: action, Description: description}); err != nil {
		utils.Warn("log action failed", map[string]any{"action": action, "error": err.Error()})
	}
}

func validateListing(input CreateAuctionInput) error {
	if input.Title == "" || input.SellerID == "" || input.CreatorID == "" {
		return fmt.Errorf("state: %w - title, seller and creator are required", auctionerrors.ErrValidation)
	}
	if input.StartingPrice.IsNegative() {
		return fmt.Errorf("state: %w - starting price cannot be negative", auctionerrors.ErrValidation)
	}
	if !input.MinBidIncrement.IsPositive() {
		return fmt.Errorf("state: %w - minimum bid increment must be positive", auctionerrors.ErrValidation)
	}
	if !input.StartTime.Before(input.EndTime) {
		return fmt.Errorf("state: %w - start time must precede end time", auctionerrors.ErrValidation)
	}
	return nil
}

// schedulePreconditions guards the transition into SCHEDULED: the listing
// must be complete and the window entirely in the future.
func schedulePreconditions(auction *model.Auction) error {
	if auction.Title == "" || auction.CategoryID == "" || !auction.MinBidIncrement.IsPositive() {
		return fmt.Errorf("state: %w - listing incomplete, cannot schedule %s", auctionerrors.ErrStateTransition, auction.AuctionID)
	}
	now := time.Now().UTC()
	if !auction.StartTime.After(now) {
		return fmt.Errorf("state: %w - start time must be in the future to schedule %s", auctionerrors.ErrStateTransition, auction.AuctionID)
	}
	if !auction.StartTime.Before(auction.EndTime) {
		return fmt.Errorf("state: %w - start time must precede end time to schedule %s", auctionerrors.ErrStateTransition, auction.AuctionID)
	}
	return nil
}
