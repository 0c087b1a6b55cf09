package bidengine

import (
	"context"
	"fmt"

	"auction-house/internal/auctionerrors"
	"auction-house/internal/cache"
	model "auction-house/internal/models"
)

// Read paths are non-transactional read-through cache lookups with short
// TTLs; every write in this package and in the state machine evicts the keys
// it can enumerate.

const (
	defaultPage  = 1
	defaultLimit = 20
	maxLimit     = 100
)

// GetAuction returns one auction, cached.
func (e *Engine) GetAuction(ctx context.Context, auctionID string) (*model.Auction, error) {
	if auctionID == "" {
		return nil, fmt.Errorf("engine: %w - empty auction id", auctionerrors.ErrValidation)
	}
	return cache.GetOrLoad(ctx, e.cache, cache.AuctionKey(auctionID), cache.DefaultTTL,
		func(ctx context.Context) (*model.Auction, error) {
			return e.store.GetAuction(ctx, auctionID)
		})
}

// GetActiveAuctions returns every currently ACTIVE auction, cached.
func (e *Engine) GetActiveAuctions(ctx context.Context) ([]model.Auction, error) {
	return cache.GetOrLoad(ctx, e.cache, cache.ActiveAuctionsKey(), cache.DefaultTTL,
		func(ctx context.Context) ([]model.Auction, error) {
			return e.store.ListActiveAuctions(ctx)
		})
}

// GetAuctionBids returns all bids for an auction ordered by amount.
func (e *Engine) GetAuctionBids(ctx context.Context, auctionID, sort string) ([]model.Bid, error) {
	if auctionID == "" {
		return nil, fmt.Errorf("engine: %w - empty auction id", auctionerrors.ErrValidation)
	}
	if sort != "asc" {
		sort = "desc"
	}
	return cache.GetOrLoad(ctx, e.cache, cache.AuctionBidsKey(auctionID, sort), cache.DefaultTTL,
		func(ctx context.Context) ([]model.Bid, error) {
			return e.store.GetBidsByAuction(ctx, auctionID, sort)
		})
}

// GetWinningBid returns the auction's current WINNING (or final WON) bid.
func (e *Engine) GetWinningBid(ctx context.Context, auctionID string) (*model.Bid, error) {
	if auctionID == "" {
		return nil, fmt.Errorf("engine: %w - empty auction id", auctionerrors.ErrValidation)
	}
	return cache.GetOrLoad(ctx, e.cache, cache.WinningBidKey(auctionID), cache.DefaultTTL,
		func(ctx context.Context) (*model.Bid, error) {
			return e.store.GetWinningBid(ctx, auctionID)
		})
}

// GetUserBids returns a page of a user's bids, optionally filtered by status.
func (e *Engine) GetUserBids(ctx context.Context, userID, status string, page, limit int) ([]model.Bid, error) {
	if userID == "" {
		return nil, fmt.Errorf("engine: %w - empty user id", auctionerrors.ErrValidation)
	}
	bidStatus := model.BidStatus(status)
	if status != "" && bidStatus != model.BidStatusWinning && bidStatus != model.BidStatusOutbid && bidStatus != model.BidStatusWon {
		return nil, fmt.Errorf("engine: %w - unknown bid status %q", auctionerrors.ErrValidation, status)
	}
	if page < defaultPage {
		page = defaultPage
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	return cache.GetOrLoad(ctx, e.cache, cache.UserBidsKey(userID, status, page, limit), cache.DefaultTTL,
		func(ctx context.Context) ([]model.Bid, error) {
			return e.store.GetUserBids(ctx, userID, bidStatus, page, limit)
		})
}

// GetUserActiveBids returns the user's bids on still-ACTIVE auctions.
func (e *Engine) GetUserActiveBids(ctx context.Context, userID string) ([]model.Bid, error) {
	if userID == "" {
		return nil, fmt.Errorf("engine: %w - empty user id", auctionerrors.ErrValidation)
	}
	return cache.GetOrLoad(ctx, e.cache, cache.UserBidsKey(userID, "active", defaultPage, defaultLimit), cache.DefaultTTL,
		func(ctx context.Context) ([]model.Bid, error) {
			return e.store.GetUserActiveBids(ctx, userID)
		})
}
