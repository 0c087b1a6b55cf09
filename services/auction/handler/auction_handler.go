package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	model "auction-house/internal/models"
	"auction-house/internal/statemachine"
	"auction-house/services/auction/helpers"
	"auction-house/utils"
)

//go:generate mockgen -source=auction_handler.go -destination=mock_auction_service.go -package=handler

// AuctionServiceInterface covers lifecycle operations on auctions.
type AuctionServiceInterface interface {
	Create(ctx context.Context, input statemachine.CreateAuctionInput) (*model.Auction, error)
	UpdateStatus(ctx context.Context, auctionID string, target model.AuctionStatus) (*model.Auction, error)
	Reschedule(ctx context.Context, auctionID string, start, end time.Time) (*model.Auction, error)
}

// AuctionHandler exposes auction lifecycle endpoints.
type AuctionHandler struct {
	service AuctionServiceInterface
}

func NewAuctionHandler(service AuctionServiceInterface) *AuctionHandler {
	return &AuctionHandler{service: service}
}

// CreateAuctionHandler lists a new auction for the authenticated seller.
func (h *AuctionHandler) CreateAuctionHandler(c *gin.Context) {
	var req helpers.CreateAuctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, err)
		return
	}

	callerID := c.GetString("userID")
	sellerID := req.SellerID
	if sellerID == "" {
		sellerID = callerID
	}

	var reserve decimal.NullDecimal
	if req.ReservePrice != nil {
		reserve = decimal.NewNullDecimal(*req.ReservePrice)
	}

	auction, err := h.service.Create(c.Request.Context(), statemachine.CreateAuctionInput{
		Title:           req.Title,
		Description:     req.Description,
		StartingPrice:   req.StartingPrice,
		MinBidIncrement: req.MinBidIncrement,
		ReservePrice:    reserve,
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
		CreatorID:       callerID,
		SellerID:        sellerID,
		CategoryID:      req.CategoryID,
	})
	if err != nil {
		helpers.MapErrorToHTTP(c, err, "create auction")
		return
	}

	helpers.LogSuccess("Create auction", map[string]any{
		"auction_id": auction.AuctionID,
		"status":     auction.Status,
		"seller_id":  auction.SellerID,
	})
	utils.JSONResponse(c, http.StatusCreated, helpers.ToAuctionResponse(auction), "auction created")
}

// UpdateStatusHandler applies a manual lifecycle transition.
func (h *AuctionHandler) UpdateStatusHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")

	var req helpers.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, err)
		return
	}

	auction, err := h.service.UpdateStatus(c.Request.Context(), auctionID, model.AuctionStatus(req.Status))
	if err != nil {
		helpers.MapErrorToHTTP(c, err, "update auction status")
		return
	}

	helpers.LogSuccess("Update auction status", map[string]any{
		"auction_id": auction.AuctionID,
		"status":     auction.Status,
	})
	utils.JSONResponse(c, http.StatusOK, helpers.ToAuctionResponse(auction), "auction status updated")
}

// RescheduleHandler moves a scheduled auction to a new time window.
func (h *AuctionHandler) RescheduleHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")

	var req helpers.RescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, err)
		return
	}

	auction, err := h.service.Reschedule(c.Request.Context(), auctionID, req.StartTime, req.EndTime)
	if err != nil {
		helpers.MapErrorToHTTP(c, err, "reschedule auction")
		return
	}

	helpers.LogSuccess("Reschedule auction", map[string]any{
		"auction_id": auction.AuctionID,
		"start_time": auction.StartTime,
		"end_time":   auction.EndTime,
	})
	utils.JSONResponse(c, http.StatusOK, helpers.ToAuctionResponse(auction), "auction rescheduled")
}
