package cache

import (
	"context"

	model "auction-house/internal/models"
	"auction-house/utils"
)

// bid list sort orders the read path serves; enumerated here so mutations can
// delete every variant.
var bidListSorts = []string{"asc", "desc"}

// bid statuses the user-bid list can be filtered by; "" is the unfiltered
// variant. First pages are the hot ones; deeper pages age out by TTL.
var userBidFilters = []string{"", string(model.BidStatusWinning), string(model.BidStatusOutbid), string(model.BidStatusWon), "active"}

// Invalidator evicts the cache keys a mutation can enumerate. Eviction runs
// after commit and is best-effort: a failure is logged, never surfaced.
type Invalidator struct {
	cache Cache
}

// NewInvalidator creates an Invalidator on the given cache.
func NewInvalidator(c Cache) *Invalidator {
	return &Invalidator{cache: c}
}

// OnAuctionChanged evicts every key derived from the auction itself.
func (i *Invalidator) OnAuctionChanged(ctx context.Context, auction *model.Auction) {
	keys := []string{
		AuctionKey(auction.AuctionID),
		ActiveAuctionsKey(),
		CategoryAuctionsKey(auction.CategoryID),
		WinningBidKey(auction.AuctionID),
	}
	for _, sort := range bidListSorts {
		keys = append(keys, AuctionBidsKey(auction.AuctionID, sort))
	}
	i.delete(ctx, keys)
}

// OnBidPlaced evicts auction-derived keys plus the per-bidder lists of every
// user the bid touched (the new bidder and the displaced one).
func (i *Invalidator) OnBidPlaced(ctx context.Context, auction *model.Auction, bidderIDs ...string) {
	i.OnAuctionChanged(ctx, auction)

	var keys []string
	for _, bidderID := range bidderIDs {
		if bidderID == "" {
			continue
		}
		for _, filter := range userBidFilters {
			keys = append(keys, UserBidsKey(bidderID, filter, 1, 20))
		}
	}
	i.delete(ctx, keys)
}

func (i *Invalidator) delete(ctx context.Context, keys []string) {
	if len(keys) == 0 {
		return
	}
	if err := i.cache.Delete(ctx, keys...); err != nil {
		utils.Warn("cache invalidation failed", map[string]any{
			"keys":  len(keys),
			"error": err.Error(),
		})
	}
}
