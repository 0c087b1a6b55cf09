package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"auction-house/internal/auctionerrors"
	model "auction-house/internal/models"
)

// GormStore implements AuctionStore on a relational database. All writes to a
// single auction go through InTransaction + GetAuctionForUpdate, so the
// database row lock, not an application mutex, serializes concurrent bidders.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore connects to the database and migrates the schema.
func NewGormStore(dsn string) (*GormStore, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("store: %w - open database: %v", auctionerrors.ErrInfrastructure, err)
	}

	if err := db.AutoMigrate(&model.Auction{}, &model.Bid{}); err != nil {
		return nil, fmt.Errorf("store: %w - migrate schema: %v", auctionerrors.ErrInfrastructure, err)
	}

	return &GormStore{db: db}, nil
}

// NewGormStoreFromDB wraps an existing handle. Used by the scheduler job
// store so the whole service shares one connection pool.
func NewGormStoreFromDB(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// DB exposes the underlying handle for components that persist their own
// tables against the same database.
func (s *GormStore) DB() *gorm.DB {
	return s.db
}

func (s *GormStore) CreateAuction(ctx context.Context, auction *model.Auction) error {
	if err := s.db.WithContext(ctx).Create(auction).Error; err != nil {
		return fmt.Errorf("store: %w - create auction %s: %v", auctionerrors.ErrInfrastructure, auction.AuctionID, err)
	}
	return nil
}

func (s *GormStore) GetAuction(ctx context.Context, auctionID string) (*model.Auction, error) {
	var auction model.Auction
	err := s.db.WithContext(ctx).First(&auction, "auction_id = ?", auctionID).Error
	if err != nil {
		return nil, wrapLookupErr("get auction "+auctionID, err)
	}
	return &auction, nil
}

func (s *GormStore) GetAuctionForUpdate(ctx context.Context, auctionID string) (*model.Auction, error) {
	var auction model.Auction
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&auction, "auction_id = ?", auctionID).Error
	if err != nil {
		return nil, wrapLookupErr("lock auction "+auctionID, err)
	}
	return &auction, nil
}

func (s *GormStore) SaveAuction(ctx context.Context, auction *model.Auction) error {
	if err := s.db.WithContext(ctx).Save(auction).Error; err != nil {
		return fmt.Errorf("store: %w - save auction %s: %v", auctionerrors.ErrInfrastructure, auction.AuctionID, err)
	}
	return nil
}

func (s *GormStore) ListActiveAuctions(ctx context.Context) ([]model.Auction, error) {
	var auctions []model.Auction
	err := s.db.WithContext(ctx).
		Where("status = ?", model.StatusActive).
		Order("end_time ASC").
		Find(&auctions).Error
	if err != nil {
		return nil, fmt.Errorf("store: %w - list active auctions: %v", auctionerrors.ErrInfrastructure, err)
	}
	return auctions, nil
}

func (s *GormStore) CreateBid(ctx context.Context, bid *model.Bid) error {
	if err := s.db.WithContext(ctx).Create(bid).Error; err != nil {
		return fmt.Errorf("store: %w - create bid %s: %v", auctionerrors.ErrInfrastructure, bid.BidID, err)
	}
	return nil
}

func (s *GormStore) GetBidsByAuction(ctx context.Context, auctionID, sort string) ([]model.Bid, error) {
	order := "amount DESC, created_at ASC"
	if sort == "asc" {
		order = "amount ASC, created_at ASC"
	}

	var bids []model.Bid
	err := s.db.WithContext(ctx).
		Where("auction_id = ?", auctionID).
		Order(order).
		Find(&bids).Error
	if err != nil {
		return nil, fmt.Errorf("store: %w - get bids for auction %s: %v", auctionerrors.ErrInfrastructure, auctionID, err)
	}
	return bids, nil
}

func (s *GormStore) GetUserBids(ctx context.Context, userID string, status model.BidStatus, page, limit int) ([]model.Bid, error) {
	query := s.db.WithContext(ctx).Where("bidder_id = ?", userID)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var bids []model.Bid
	err := query.
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&bids).Error
	if err != nil {
		return nil, fmt.Errorf("store: %w - get bids for user %s: %v", auctionerrors.ErrInfrastructure, userID, err)
	}
	return bids, nil
}

func (s *GormStore) GetUserActiveBids(ctx context.Context, userID string) ([]model.Bid, error) {
	var bids []model.Bid
	err := s.db.WithContext(ctx).
		Joins("JOIN auctions ON auctions.auction_id = bids.auction_id").
		Where("bids.bidder_id = ? AND auctions.status = ?", userID, model.StatusActive).
		Order("bids.created_at DESC").
		Find(&bids).Error
	if err != nil {
		return nil, fmt.Errorf("store: %w - get active bids for user %s: %v", auctionerrors.ErrInfrastructure, userID, err)
	}
	return bids, nil
}

func (s *GormStore) GetWinningBid(ctx context.Context, auctionID string) (*model.Bid, error) {
	var bid model.Bid
	err := s.db.WithContext(ctx).
		Where("auction_id = ? AND status IN ?", auctionID, []model.BidStatus{model.BidStatusWinning, model.BidStatusWon}).
		First(&bid).Error
	if err != nil {
		return nil, wrapLookupErr("get winning bid for auction "+auctionID, err)
	}
	return &bid, nil
}

func (s *GormStore) GetHighestBid(ctx context.Context, auctionID string) (*model.Bid, error) {
	var bid model.Bid
	err := s.db.WithContext(ctx).
		Where("auction_id = ?", auctionID).
		Order("amount DESC, created_at ASC").
		First(&bid).Error
	if err != nil {
		return nil, wrapLookupErr("get highest bid for auction "+auctionID, err)
	}
	return &bid, nil
}

func (s *GormStore) UpdateBidStatus(ctx context.Context, bidID string, status model.BidStatus) error {
	result := s.db.WithContext(ctx).
		Model(&model.Bid{}).
		Where("bid_id = ?", bidID).
		Update("status", status)
	if result.Error != nil {
		return fmt.Errorf("store: %w - update bid %s status: %v", auctionerrors.ErrInfrastructure, bidID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("store: %w - bid %s", auctionerrors.ErrNotFound, bidID)
	}
	return nil
}

func (s *GormStore) DistinctBidders(ctx context.Context, auctionID string) ([]string, error) {
	var bidders []string
	err := s.db.WithContext(ctx).
		Model(&model.Bid{}).
		Distinct("bidder_id").
		Where("auction_id = ?", auctionID).
		Pluck("bidder_id", &bidders).Error
	if err != nil {
		return nil, fmt.Errorf("store: %w - distinct bidders for auction %s: %v", auctionerrors.ErrInfrastructure, auctionID, err)
	}
	return bidders, nil
}

func (s *GormStore) InTransaction(ctx context.Context, fn func(tx AuctionStore) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

func wrapLookupErr(op string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("store: %w - %s", auctionerrors.ErrNotFound, op)
	}
	return fmt.Errorf("store: %w - %s: %v", auctionerrors.ErrInfrastructure, op, err)
}
