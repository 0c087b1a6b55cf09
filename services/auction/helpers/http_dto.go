package helpers

import (
	"time"

	"github.com/shopspring/decimal"

	model "auction-house/internal/models"
)

// CreateAuctionRequest is the payload for listing a new auction.
type CreateAuctionRequest struct {
	Title           string           `json:"title" binding:"required"`
	Description     string           `json:"description"`
	StartingPrice   decimal.Decimal  `json:"startingPrice"`
	MinBidIncrement decimal.Decimal  `json:"minBidIncrement"`
	ReservePrice    *decimal.Decimal `json:"reservePrice"`
	StartTime       time.Time        `json:"startTime" binding:"required"`
	EndTime         time.Time        `json:"endTime" binding:"required"`
	SellerID        string           `json:"sellerId"`
	CategoryID      string           `json:"categoryId"`
}

// PlaceBidRequest is the payload for placing a bid on an auction.
type PlaceBidRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"required"`
}

// UpdateStatusRequest is the payload for a manual status transition.
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// RescheduleRequest is the payload for moving a scheduled auction's window.
type RescheduleRequest struct {
	StartTime time.Time `json:"startTime" binding:"required"`
	EndTime   time.Time `json:"endTime" binding:"required"`
}

// AuctionResponse is the wire shape of an auction.
type AuctionResponse struct {
	AuctionID       string              `json:"auctionId"`
	Title           string              `json:"title"`
	Description     string              `json:"description,omitempty"`
	Status          model.AuctionStatus `json:"status"`
	StartingPrice   decimal.Decimal     `json:"startingPrice"`
	CurrentPrice    decimal.Decimal     `json:"currentPrice"`
	MinBidIncrement decimal.Decimal     `json:"minBidIncrement"`
	MinNextBid      decimal.Decimal     `json:"minNextBid"`
	StartTime       time.Time           `json:"startTime"`
	EndTime         time.Time           `json:"endTime"`
	SellerID        string              `json:"sellerId"`
	CategoryID      string              `json:"categoryId,omitempty"`
	WinnerID        *string             `json:"winnerId,omitempty"`
}

// BidResponse is the wire shape of a bid.
type BidResponse struct {
	BidID     string          `json:"bidId"`
	AuctionID string          `json:"auctionId"`
	BidderID  string          `json:"bidderId"`
	Amount    decimal.Decimal `json:"amount"`
	Status    model.BidStatus `json:"status"`
	CreatedAt time.Time       `json:"createdAt"`
}

// ToAuctionResponse maps the model to its wire shape.
func ToAuctionResponse(a *model.Auction) AuctionResponse {
	return AuctionResponse{
		AuctionID:       a.AuctionID,
		Title:           a.Title,
		Description:     a.Description,
		Status:          a.Status,
		StartingPrice:   a.StartingPrice,
		CurrentPrice:    a.CurrentPrice,
		MinBidIncrement: a.MinBidIncrement,
		MinNextBid:      a.MinNextBid(),
		StartTime:       a.StartTime,
		EndTime:         a.EndTime,
		SellerID:        a.SellerID,
		CategoryID:      a.CategoryID,
		WinnerID:        a.WinnerID,
	}
}

// ToAuctionResponses maps a slice of auctions.
func ToAuctionResponses(auctions []model.Auction) []AuctionResponse {
	out := make([]AuctionResponse, 0, len(auctions))
	for i := range auctions {
		out = append(out, ToAuctionResponse(&auctions[i]))
	}
	return out
}

// ToBidResponse maps the model to its wire shape.
func ToBidResponse(b *model.Bid) BidResponse {
	return BidResponse{
		BidID:     b.BidID,
		AuctionID: b.AuctionID,
		BidderID:  b.BidderID,
		Amount:    b.Amount,
		Status:    b.Status,
		CreatedAt: b.CreatedAt,
	}
}

// ToBidResponses maps a slice of bids.
func ToBidResponses(bids []model.Bid) []BidResponse {
	out := make([]BidResponse, 0, len(bids))
	for i := range bids {
		out = append(out, ToBidResponse(&bids[i]))
	}
	return out
}
