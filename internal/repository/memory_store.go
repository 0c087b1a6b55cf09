package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"auction-house/internal/auctionerrors"
	model "auction-house/internal/models"
)

// MemoryStore is a concurrency-safe in-memory AuctionStore for tests and
// local runs. InTransaction holds the store lock for the whole callback, so
// transactions are fully serialized; that stands in for the database row lock
// the gorm store takes. Writes are not rolled back on error, which is fine
// for the engine because it validates before mutating.
type MemoryStore struct {
	mu   sync.Mutex
	data *memoryData
}

type memoryData struct {
	auctions map[string]model.Auction
	bids     map[string][]model.Bid // key: auctionID, append order = creation order
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: &memoryData{
		auctions: make(map[string]model.Auction),
		bids:     make(map[string][]model.Bid),
	}}
}

func (s *MemoryStore) InTransaction(_ context.Context, fn func(tx AuctionStore) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&memoryView{data: s.data})
}

// The locked wrappers below delegate every operation to an unlocked view so
// the same code path serves both direct calls and transactional ones.

func (s *MemoryStore) CreateAuction(ctx context.Context, auction *model.Auction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&memoryView{data: s.data}).CreateAuction(ctx, auction)
}

func (s *MemoryStore) GetAuction(ctx context.Context, auctionID string) (*model.Auction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&memoryView{data: s.data}).GetAuction(ctx, auctionID)
}

func (s *MemoryStore) GetAuctionForUpdate(ctx context.Context, auctionID string) (*model.Auction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&memoryView{data: s.data}).GetAuctionForUpdate(ctx, auctionID)
}

func (s *MemoryStore) SaveAuction(ctx context.Context, auction *model.Auction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&memoryView{data: s.data}).SaveAuction(ctx, auction)
}

func (s *MemoryStore) ListActiveAuctions(ctx context.Context) ([]model.Auction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&memoryView{data: s.data}).ListActiveAuctions(ctx)
}

func (s *MemoryStore) CreateBid(ctx context.Context, bid *model.Bid) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&memoryView{data: s.data}).CreateBid(ctx, bid)
}

func (s *MemoryStore) GetBidsByAuction(ctx context.Context, auctionID, sortOrder string) ([]model.Bid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&memoryView{data: s.data}).GetBidsByAuction(ctx, auctionID, sortOrder)
}

func (s *MemoryStore) GetUserBids(ctx context.Context, userID string, status model.BidStatus, page, limit int) ([]model.Bid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&memoryView{data: s.data}).GetUserBids(ctx, userID, status, page, limit)
}

func (s *MemoryStore) GetUserActiveBids(ctx context.Context, userID string) ([]model.Bid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&memoryView{data: s.data}).GetUserActiveBids(ctx, userID)
}

func (s *MemoryStore) GetWinningBid(ctx context.Context, auctionID string) (*model.Bid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&memoryView{data: s.data}).GetWinningBid(ctx, auctionID)
}

func (s *MemoryStore) GetHighestBid(ctx context.Context, auctionID string) (*model.Bid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&memoryView{data: s.data}).GetHighestBid(ctx, auctionID)
}

func (s *MemoryStore) UpdateBidStatus(ctx context.Context, bidID string, status model.BidStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&memoryView{data: s.data}).UpdateBidStatus(ctx, bidID, status)
}

func (s *MemoryStore) DistinctBidders(ctx context.Context, auctionID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&memoryView{data: s.data}).DistinctBidders(ctx, auctionID)
}

// memoryView performs the actual operations without locking; MemoryStore
// guarantees exclusive access before handing it out.
type memoryView struct {
	data *memoryData
}

func (v *memoryView) InTransaction(_ context.Context, fn func(tx AuctionStore) error) error {
	// already inside the store lock
	return fn(v)
}

func (v *memoryView) CreateAuction(_ context.Context, auction *model.Auction) error {
	if _, exists := v.data.auctions[auction.AuctionID]; exists {
		return fmt.Errorf("store: %w - auction %s already exists", auctionerrors.ErrValidation, auction.AuctionID)
	}
	v.data.auctions[auction.AuctionID] = *auction
	return nil
}

func (v *memoryView) GetAuction(_ context.Context, auctionID string) (*model.Auction, error) {
	auction, ok := v.data.auctions[auctionID]
	if !ok {
		return nil, fmt.Errorf("store: %w - auction %s", auctionerrors.ErrNotFound, auctionID)
	}
	copied := auction
	return &copied, nil
}

func (v *memoryView) GetAuctionForUpdate(ctx context.Context, auctionID string) (*model.Auction, error) {
	return v.GetAuction(ctx, auctionID)
}

func (v *memoryView) SaveAuction(_ context.Context, auction *model.Auction) error {
	if _, ok := v.data.auctions[auction.AuctionID]; !ok {
		return fmt.Errorf("store: %w - auction %s", auctionerrors.ErrNotFound, auction.AuctionID)
	}
	v.data.auctions[auction.AuctionID] = *auction
	return nil
}

func (v *memoryView) ListActiveAuctions(_ context.Context) ([]model.Auction, error) {
	var auctions []model.Auction
	for _, auction := range v.data.auctions {
		if auction.Status == model.StatusActive {
			auctions = append(auctions, auction)
		}
	}
	sort.Slice(auctions, func(i, j int) bool {
		return auctions[i].EndTime.Before(auctions[j].EndTime)
	})
	return auctions, nil
}

func (v *memoryView) CreateBid(_ context.Context, bid *model.Bid) error {
	if _, ok := v.data.auctions[bid.AuctionID]; !ok {
		return fmt.Errorf("store: %w - auction %s", auctionerrors.ErrNotFound, bid.AuctionID)
	}
	v.data.bids[bid.AuctionID] = append(v.data.bids[bid.AuctionID], *bid)
	return nil
}

func (v *memoryView) GetBidsByAuction(_ context.Context, auctionID, sortOrder string) ([]model.Bid, error) {
	bids := append([]model.Bid(nil), v.data.bids[auctionID]...)
	desc := sortOrder != "asc"
	sort.Slice(bids, func(i, j int) bool {
		cmp := bids[i].Amount.Cmp(bids[j].Amount)
		if cmp == 0 {
			return bids[i].CreatedAt.Before(bids[j].CreatedAt)
		}
		if desc {
			return cmp > 0
		}
		return cmp < 0
	})
	return bids, nil
}

func (v *memoryView) GetUserBids(_ context.Context, userID string, status model.BidStatus, page, limit int) ([]model.Bid, error) {
	var bids []model.Bid
	for _, auctionBids := range v.data.bids {
		for _, bid := range auctionBids {
			if bid.BidderID != userID {
				continue
			}
			if status != "" && bid.Status != status {
				continue
			}
			bids = append(bids, bid)
		}
	}
	sort.Slice(bids, func(i, j int) bool {
		return bids[i].CreatedAt.After(bids[j].CreatedAt)
	})

	start := (page - 1) * limit
	if start >= len(bids) {
		return []model.Bid{}, nil
	}
	end := start + limit
	if end > len(bids) {
		end = len(bids)
	}
	return bids[start:end], nil
}

func (v *memoryView) GetUserActiveBids(_ context.Context, userID string) ([]model.Bid, error) {
	var bids []model.Bid
	for auctionID, auctionBids := range v.data.bids {
		auction, ok := v.data.auctions[auctionID]
		if !ok || auction.Status != model.StatusActive {
			continue
		}
		for _, bid := range auctionBids {
			if bid.BidderID == userID {
				bids = append(bids, bid)
			}
		}
	}
	sort.Slice(bids, func(i, j int) bool {
		return bids[i].CreatedAt.After(bids[j].CreatedAt)
	})
	return bids, nil
}

func (v *memoryView) GetWinningBid(_ context.Context, auctionID string) (*model.Bid, error) {
	for _, bid := range v.data.bids[auctionID] {
		if bid.Status == model.BidStatusWinning || bid.Status == model.BidStatusWon {
			copied := bid
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("store: %w - winning bid for auction %s", auctionerrors.ErrNotFound, auctionID)
}

func (v *memoryView) GetHighestBid(_ context.Context, auctionID string) (*model.Bid, error) {
	bids := v.data.bids[auctionID]
	if len(bids) == 0 {
		return nil, fmt.Errorf("store: %w - bids for auction %s", auctionerrors.ErrNotFound, auctionID)
	}

	highest := bids[0]
	for _, bid := range bids[1:] {
		cmp := bid.Amount.Cmp(highest.Amount)
		if cmp > 0 || (cmp == 0 && bid.CreatedAt.Before(highest.CreatedAt)) {
			highest = bid
		}
	}
	copied := highest
	return &copied, nil
}

func (v *memoryView) UpdateBidStatus(_ context.Context, bidID string, status model.BidStatus) error {
	for auctionID, auctionBids := range v.data.bids {
		for i, bid := range auctionBids {
			if bid.BidID == bidID {
				v.data.bids[auctionID][i].Status = status
				return nil
			}
		}
	}
	return fmt.Errorf("store: %w - bid %s", auctionerrors.ErrNotFound, bidID)
}

func (v *memoryView) DistinctBidders(_ context.Context, auctionID string) ([]string, error) {
	seen := make(map[string]bool)
	var bidders []string
	for _, bid := range v.data.bids[auctionID] {
		if !seen[bid.BidderID] {
			seen[bid.BidderID] = true
			bidders = append(bidders, bid.BidderID)
		}
	}
	return bidders, nil
}
