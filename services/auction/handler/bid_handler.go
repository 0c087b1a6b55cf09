package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	model "auction-house/internal/models"
	"auction-house/services/auction/helpers"
	"auction-house/utils"
)

//go:generate mockgen -source=bid_handler.go -destination=mock_bid_service.go -package=handler

// BidServiceInterface covers bid placement and the cached read paths.
type BidServiceInterface interface {
	PlaceBid(ctx context.Context, auctionID, bidderID string, amount decimal.Decimal) (*model.Bid, error)
	GetAuction(ctx context.Context, auctionID string) (*model.Auction, error)
	GetActiveAuctions(ctx context.Context) ([]model.Auction, error)
	GetAuctionBids(ctx context.Context, auctionID, sort string) ([]model.Bid, error)
	GetWinningBid(ctx context.Context, auctionID string) (*model.Bid, error)
	GetUserBids(ctx context.Context, userID, status string, page, limit int) ([]model.Bid, error)
	GetUserActiveBids(ctx context.Context, userID string) ([]model.Bid, error)
}

// BidHandler exposes bidding and auction read endpoints.
type BidHandler struct {
	service BidServiceInterface
}

func NewBidHandler(service BidServiceInterface) *BidHandler {
	return &BidHandler{service: service}
}

// PlaceBidHandler places a bid for the authenticated user.
func (h *BidHandler) PlaceBidHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	bidderID := c.GetString("userID")

	var req helpers.PlaceBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, err)
		return
	}

	bid, err := h.service.PlaceBid(c.Request.Context(), auctionID, bidderID, req.Amount)
	if err != nil {
		helpers.MapErrorToHTTP(c, err, "place bid")
		return
	}

	helpers.LogSuccess("Place bid", map[string]any{
		"bid_id":     bid.BidID,
		"auction_id": bid.AuctionID,
		"bidder_id":  bid.BidderID,
		"amount":     bid.Amount.String(),
	})
	utils.JSONResponse(c, http.StatusCreated, helpers.ToBidResponse(bid), "bid placed")
}

// GetAuctionHandler returns a single auction.
func (h *BidHandler) GetAuctionHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")

	auction, err := h.service.GetAuction(c.Request.Context(), auctionID)
	if err != nil {
		helpers.MapErrorToHTTP(c, err, "get auction")
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.ToAuctionResponse(auction), "auction retrieved")
}

// GetActiveAuctionsHandler lists auctions currently open for bidding.
func (h *BidHandler) GetActiveAuctionsHandler(c *gin.Context) {
	auctions, err := h.service.GetActiveAuctions(c.Request.Context())
	if err != nil {
		helpers.MapErrorToHTTP(c, err, "list active auctions")
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.ToAuctionResponses(auctions), "active auctions retrieved")
}

// GetAuctionBidsHandler returns the bid history of an auction.
func (h *BidHandler) GetAuctionBidsHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	sort := c.DefaultQuery("sort", "desc")

	bids, err := h.service.GetAuctionBids(c.Request.Context(), auctionID, sort)
	if err != nil {
		helpers.MapErrorToHTTP(c, err, "get auction bids")
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.ToBidResponses(bids), "auction bids retrieved")
}

// GetWinningBidHandler returns the current leading bid of an auction.
func (h *BidHandler) GetWinningBidHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")

	bid, err := h.service.GetWinningBid(c.Request.Context(), auctionID)
	if err != nil {
		helpers.MapErrorToHTTP(c, err, "get winning bid")
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.ToBidResponse(bid), "winning bid retrieved")
}

// GetUserBidsHandler returns the authenticated user's bid history, paginated.
func (h *BidHandler) GetUserBidsHandler(c *gin.Context) {
	userID := c.GetString("userID")
	if userID == "" {
		utils.JSONError(c, http.StatusUnauthorized, errors.New("missing identity"), "authentication required")
		return
	}

	status := c.Query("status")
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	bids, err := h.service.GetUserBids(c.Request.Context(), userID, status, page, limit)
	if err != nil {
		helpers.MapErrorToHTTP(c, err, "get user bids")
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.ToBidResponses(bids), "user bids retrieved")
}

// GetUserActiveBidsHandler returns the user's bids on auctions still running.
func (h *BidHandler) GetUserActiveBidsHandler(c *gin.Context) {
	userID := c.GetString("userID")
	if userID == "" {
		utils.JSONError(c, http.StatusUnauthorized, errors.New("missing identity"), "authentication required")
		return
	}

	bids, err := h.service.GetUserActiveBids(c.Request.Context(), userID)
	if err != nil {
		helpers.MapErrorToHTTP(c, err, "get user active bids")
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.ToBidResponses(bids), "user active bids retrieved")
}
