package bidengine

import (
	"context"
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
	"auction-house/utils"
)

// Engine accepts bid submissions and resolves the single current winner. The
// snapshot pre-check runs against the cached read path; the authoritative
// re-check runs inside a store transaction holding the auction row lock, so
// two bids can never both commit against the same stale price.
type Engine struct {
	store       repository.AuctionStore
	cache       cache.Cache
	invalidator *cache.Invalidator
	notifier    notify.Notifier
	publisher   realtime.Publisher
}

// NewEngine wires a bid engine.
func NewEngine(store repository.AuctionStore, c cache.Cache, invalidator *cache.Invalidator, notifier notify.Notifier, publisher realtime.Publisher) *Engine {
	return &Engine{
		store:       store,
		cache:       c,
		invalidator: invalidator,
		notifier:    notifier,
		publisher:   publisher,
	}
}

// PlaceBid validates and commits a bid, demoting the previous winner.
func (e *Engine) PlaceBid(ctx context.Context, auctionID, bidderID string, amount decimal.Decimal) (*model.Bid, error) {
	if auctionID == "" || bidderID == "" {
		return nil, fmt.Errorf("engine: %w - missing auction or bidder id", auctionerrors.ErrValidation)
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("engine: %w - non-positive bid amount", auctionerrors.ErrValidation)
	}

	// cheap pre-check against a snapshot; the race window it leaves open is
	// closed by the transactional re-check below
	snapshot, err := e.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if err := checkBid(snapshot, bidderID, amount, time.Now().UTC()); err != nil {
		return nil, err
	}

	var (
		bid        *model.Bid
		updated    *model.Auction
		prevWinner *model.Bid
	)
	err = e.store.InTransaction(ctx, func(tx repository.AuctionStore) error {
		fresh, err := tx.GetAuctionForUpdate(ctx, auctionID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		if !fresh.BiddingOpen(now) {
			// the auction moved on between snapshot and lock; a normal
			// rejection, not a conflict
			return fmt.Errorf("engine: %w - auction %s is no longer open for bids", auctionerrors.ErrValidation, auctionID)
		}
		if amount.LessThan(fresh.MinNextBid()) {
			// passed the snapshot check but a concurrent bid moved the floor
			return fmt.Errorf("engine: %w - price moved to %s, bid of %s no longer clears the minimum of %s",
				auctionerrors.ErrBidConflict, fresh.CurrentPrice.StringFixed(2), amount.StringFixed(2), fresh.MinNextBid().StringFixed(2))
		}

		prev, err := tx.GetWinningBid(ctx, auctionID)
		if err != nil && !errors.Is(err, auctionerrors.ErrNotFound) {
			return err
		}
		if prev != nil {
			if err := tx.UpdateBidStatus(ctx, prev.BidID, model.BidStatusOutbid); err != nil {
				return err
			}
			prevWinner = prev
		}

		bid = &model.Bid{
			BidID:         utils.GenerateID(),
			AuctionID:     auctionID,
			BidderID:      bidderID,
			Amount:        amount,
			Status:        model.BidStatusWinning,
			PreviousPrice: fresh.CurrentPrice,
			CreatedAt:     now,
		}
		if err := tx.CreateBid(ctx, bid); err != nil {
			return err
		}

		fresh.CurrentPrice = amount
		fresh.WinnerID = &bidderID
		fresh.UpdatedAt = now
		if err := tx.SaveAuction(ctx, fresh); err != nil {
			return err
		}
		updated = fresh
		return nil
	})
	if err != nil {
		return nil, err
	}

	// committed: fan-out and eviction are best-effort from here
	e.publisher.EmitNewBid(auctionID, *bid, updated.CurrentPrice)

	outbidUser := ""
	if prevWinner != nil && prevWinner.BidderID != bidderID {
		outbidUser = prevWinner.BidderID
		e.publisher.EmitOutbid(outbidUser, auctionID, amount)
		if err := e.notifier.CreateNotification(ctx, notify.Notification{
			Type:      notify.TypeOutbid,
			Title:     "You have been outbid",
			Message:   fmt.Sprintf("A bid of %s beat yours on %q", amount.StringFixed(2), updated.Title),
			UserID:    outbidUser,
			AuctionID: auctionID,
		}); err != nil {
			utils.Warn("outbid notification failed", map[string]any{
				"auction_id": auctionID,
				"user_id":    outbidUser,
				"error":      err.Error(),
			})
		}
	}

	e.invalidator.OnBidPlaced(ctx, updated, bidderID, outbidUser)

	if err := e.notifier.LogAction(ctx, notify.ActionLog{
		ActorID:     bidderID,
		Action:      "bid.place",
		Description: fmt.Sprintf("bid %s of %s on auction %s", bid.BidID, amount.StringFixed(2), auctionID),
	}); err != nil {
		utils.Warn("log action failed", map[string]any{"action": "bid.place", "error": err.Error()})
	}

	utils.Info("bid accepted", map[string]any{
		"bid_id":     bid.BidID,
		"auction_id": auctionID,
		"bidder_id":  bidderID,
		"amount":     amount.StringFixed(2),
	})
	return bid, nil
}

// checkBid enforces the price floor, self-bid ban and bidding window against
// the given view of the auction.
func checkBid(auction *model.Auction, bidderID string, amount decimal.Decimal, now time.Time) error {
	if bidderID == auction.CreatorID {
		return fmt.Errorf("engine: %w - bidding on your own auction is not allowed", auctionerrors.ErrValidation)
	}
	if !auction.BiddingOpen(now) {
		return fmt.Errorf("engine: %w - auction %s is not open for bids", auctionerrors.ErrValidation, auction.AuctionID)
	}
	if amount.LessThan(auction.MinNextBid()) {
		return fmt.Errorf("engine: %w - bid of %s is below the minimum of %s",
			auctionerrors.ErrValidation, amount.StringFixed(2), auction.MinNextBid().StringFixed(2))
	}
	return nil
}
