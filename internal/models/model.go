package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AuctionStatus is the lifecycle state of an auction listing.
type AuctionStatus string

const (
	StatusDraft     AuctionStatus = "DRAFT"
	StatusScheduled AuctionStatus = "SCHEDULED"
	StatusActive    AuctionStatus = "ACTIVE"
	StatusEnded     AuctionStatus = "ENDED"
	StatusSold      AuctionStatus = "SOLD"
	StatusCancelled AuctionStatus = "CANCELLED"
)

// Valid reports whether s is one of the known auction statuses.
func (s AuctionStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusScheduled, StatusActive, StatusEnded, StatusSold, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed out of s.
func (s AuctionStatus) Terminal() bool {
	return s == StatusSold || s == StatusCancelled
}

// BidStatus tracks a bid's standing against its auction. Exactly one bid per
// auction holds WINNING at any instant; the engine, never the bidder, moves a
// bid between statuses.
type BidStatus string

const (
	BidStatusWinning BidStatus = "WINNING"
	BidStatusOutbid  BidStatus = "OUTBID"
	BidStatusWon     BidStatus = "WON"
)

// Auction represents a timed listing with a monotonically increasing price.
type Auction struct {
	AuctionID       string              `json:"auction_id" gorm:"column:auction_id;primaryKey;size:36"`
	Title           string              `json:"title" gorm:"size:255"`
	Description     string              `json:"description" gorm:"type:text"`
	StartingPrice   decimal.Decimal     `json:"starting_price" gorm:"type:decimal(14,2)"`
	CurrentPrice    decimal.Decimal     `json:"current_price" gorm:"type:decimal(14,2)"`
	MinBidIncrement decimal.Decimal     `json:"min_bid_increment" gorm:"type:decimal(14,2)"`
	ReservePrice    decimal.NullDecimal `json:"reserve_price" gorm:"type:decimal(14,2)"`
	StartTime       time.Time           `json:"start_time"`
	EndTime         time.Time           `json:"end_time"`
	Status          AuctionStatus       `json:"status" gorm:"size:16;index"`
	CreatorID       string              `json:"creator_id" gorm:"size:36"`
	SellerID        string              `json:"seller_id" gorm:"size:36;index"`
	CategoryID      string              `json:"category_id" gorm:"size:36;index"`
	WinnerID        *string             `json:"winner_id" gorm:"size:36"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

// MinNextBid returns the lowest amount the next bid must reach.
func (a *Auction) MinNextBid() decimal.Decimal {
	return a.CurrentPrice.Add(a.MinBidIncrement)
}

// BiddingOpen reports whether a bid submitted at t can be accepted.
func (a *Auction) BiddingOpen(t time.Time) bool {
	return a.Status == StatusActive && !t.Before(a.StartTime) && t.Before(a.EndTime)
}

// Bid represents a user's offer against an auction. PreviousPrice together
// with CreatedAt is the audit snapshot captured when the bid was accepted.
type Bid struct {
	BidID         string          `json:"bid_id" gorm:"column:bid_id;primaryKey;size:36"`
	AuctionID     string          `json:"auction_id" gorm:"size:36;index"`
	BidderID      string          `json:"bidder_id" gorm:"size:36;index"`
	Amount        decimal.Decimal `json:"amount" gorm:"type:decimal(14,2)"`
	Status        BidStatus       `json:"status" gorm:"size:16;index"`
	PreviousPrice decimal.Decimal `json:"previous_price" gorm:"type:decimal(14,2)"`
	CreatedAt     time.Time       `json:"created_at"`
}
