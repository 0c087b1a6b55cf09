package repository

//go:generate mockgen -source=repository.go -destination=mock_repository.go -package=repository

import (
	"context"

	model "auction-house/internal/models"
)

// AuctionStore is the durable storage interface for auctions and bids.
//
// InTransaction runs fn against a transactional view of the store and commits
// iff fn returns nil. GetAuctionForUpdate takes a row-level lock on the
// auction and is only meaningful inside InTransaction; it is what serializes
// concurrent bidders racing for the same auction across processes.
type AuctionStore interface {
	CreateAuction(ctx context.Context, auction *model.Auction) error
	GetAuction(ctx context.Context, auctionID string) (*model.Auction, error)
	GetAuctionForUpdate(ctx context.Context, auctionID string) (*model.Auction, error)
	SaveAuction(ctx context.Context, auction *model.Auction) error
	ListActiveAuctions(ctx context.Context) ([]model.Auction, error)

	CreateBid(ctx context.Context, bid *model.Bid) error
	GetBidsByAuction(ctx context.Context, auctionID, sort string) ([]model.Bid, error)
	GetUserBids(ctx context.Context, userID string, status model.BidStatus, page, limit int) ([]model.Bid, error)
	GetUserActiveBids(ctx context.Context, userID string) ([]model.Bid, error)
	GetWinningBid(ctx context.Context, auctionID string) (*model.Bid, error)
	GetHighestBid(ctx context.Context, auctionID string) (*model.Bid, error)
	UpdateBidStatus(ctx context.Context, bidID string, status model.BidStatus) error
	DistinctBidders(ctx context.Context, auctionID string) ([]string, error)

	InTransaction(ctx context.Context, fn func(tx AuctionStore) error) error
}
