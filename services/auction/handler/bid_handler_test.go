package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"auction-house/internal/auctionerrors"
	model "auction-house/internal/models"
	"auction-house/services/auction/helpers"
)

// identityStub plants a caller identity the way the auth middleware does.
func identityStub(userID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID != "" {
			c.Set("userID", userID)
		}
		c.Next()
	}
}

func performJSON(t *testing.T, router *gin.Engine, method, url string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reqBody []byte
	switch v := body.(type) {
	case nil:
	case string:
		reqBody = []byte(v)
	default:
		var err error
		reqBody, err = json.Marshal(v)
		require.NoError(t, err)
	}

	req := httptest.NewRequest(method, url, bytes.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

// Test PlaceBidHandler
func TestPlaceBidHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockService := NewMockBidServiceInterface(ctrl)
	h := NewBidHandler(mockService)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/auctions/:auction_id/bids", identityStub("user1"), h.PlaceBidHandler)

	now := time.Now().UTC()

	tests := []struct {
		name           string
		requestBody    any
		mockSetup      func()
		expectedStatus int
		validateData   func(t *testing.T, data map[string]any)
	}{
		{
			name:        "success_valid_bid",
			requestBody: helpers.PlaceBidRequest{Amount: decimal.NewFromInt(120)},
			mockSetup: func() {
				mockService.EXPECT().
					PlaceBid(gomock.Any(), "a1", "user1", decimal.NewFromInt(120)).
					Return(&model.Bid{
						BidID:     uuid.NewString(),
						AuctionID: "a1",
						BidderID:  "user1",
						Amount:    decimal.NewFromInt(120),
						Status:    model.BidStatusWinning,
						CreatedAt: now,
					}, nil)
			},
			expectedStatus: http.StatusCreated,
			validateData: func(t *testing.T, data map[string]any) {
				require.Equal(t, "a1", data["auctionId"])
				require.Equal(t, "user1", data["bidderId"])
				require.Equal(t, "120", data["amount"])
				require.Equal(t, string(model.BidStatusWinning), data["status"])
				_, parseErr := uuid.Parse(data["bidId"].(string))
				require.NoError(t, parseErr)
			},
		},
		{
			name:           "invalid_json",
			requestBody:    `{amount: missing quotes}`,
			mockSetup:      func() {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:        "validation_rejection",
			requestBody: helpers.PlaceBidRequest{Amount: decimal.NewFromInt(50)},
			mockSetup: func() {
				mockService.EXPECT().
					PlaceBid(gomock.Any(), "a1", "user1", decimal.NewFromInt(50)).
					Return(nil, fmt.Errorf("engine: %w - bid below minimum", auctionerrors.ErrValidation))
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:        "lost_race_maps_to_conflict",
			requestBody: helpers.PlaceBidRequest{Amount: decimal.NewFromInt(120)},
			mockSetup: func() {
				mockService.EXPECT().
					PlaceBid(gomock.Any(), "a1", "user1", decimal.NewFromInt(120)).
					Return(nil, fmt.Errorf("engine: %w - price moved", auctionerrors.ErrBidConflict))
			},
			expectedStatus: http.StatusConflict,
		},
		{
			name:        "unknown_auction",
			requestBody: helpers.PlaceBidRequest{Amount: decimal.NewFromInt(120)},
			mockSetup: func() {
				mockService.EXPECT().
					PlaceBid(gomock.Any(), "a1", "user1", decimal.NewFromInt(120)).
					Return(nil, fmt.Errorf("store: %w - auction a1", auctionerrors.ErrNotFound))
			},
			expectedStatus: http.StatusNotFound,
		},
		{
			name:        "infrastructure_failure",
			requestBody: helpers.PlaceBidRequest{Amount: decimal.NewFromInt(120)},
			mockSetup: func() {
				mockService.EXPECT().
					PlaceBid(gomock.Any(), "a1", "user1", decimal.NewFromInt(120)).
					Return(nil, fmt.Errorf("store: %w - db gone", auctionerrors.ErrInfrastructure))
			},
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.mockSetup()

			w := performJSON(t, router, http.MethodPost, "/auctions/a1/bids", tc.requestBody)
			require.Equal(t, tc.expectedStatus, w.Code)

			if tc.validateData != nil {
				resp := decodeBody(t, w)
				tc.validateData(t, resp["data"].(map[string]any))
			}
		})
	}
}

// Test GetAuctionHandler
func TestGetAuctionHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockService := NewMockBidServiceInterface(ctrl)
	h := NewBidHandler(mockService)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/auctions/:auction_id", h.GetAuctionHandler)

	now := time.Now().UTC()

	t.Run("found", func(t *testing.T) {
		mockService.EXPECT().GetAuction(gomock.Any(), "a1").Return(&model.Auction{
			AuctionID:       "a1",
			Title:           "Lot 1",
			Status:          model.StatusActive,
			CurrentPrice:    decimal.NewFromInt(150),
			MinBidIncrement: decimal.NewFromInt(10),
			StartTime:       now.Add(-time.Hour),
			EndTime:         now.Add(time.Hour),
			SellerID:        "seller1",
		}, nil)

		w := performJSON(t, router, http.MethodGet, "/auctions/a1", nil)
		require.Equal(t, http.StatusOK, w.Code)

		data := decodeBody(t, w)["data"].(map[string]any)
		require.Equal(t, "a1", data["auctionId"])
		require.Equal(t, string(model.StatusActive), data["status"])
		require.Equal(t, "150", data["currentPrice"])
		require.Equal(t, "160", data["minNextBid"], "response carries the bidding floor")
	})

	t.Run("not_found", func(t *testing.T) {
		mockService.EXPECT().GetAuction(gomock.Any(), "ghost").
			Return(nil, fmt.Errorf("store: %w - auction ghost", auctionerrors.ErrNotFound))

		w := performJSON(t, router, http.MethodGet, "/auctions/ghost", nil)
		require.Equal(t, http.StatusNotFound, w.Code)
	})
}

// Test GetAuctionBidsHandler
func TestGetAuctionBidsHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockService := NewMockBidServiceInterface(ctrl)
	h := NewBidHandler(mockService)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/auctions/:auction_id/bids", h.GetAuctionBidsHandler)

	t.Run("default_sort_is_desc", func(t *testing.T) {
		mockService.EXPECT().GetAuctionBids(gomock.Any(), "a1", "desc").Return([]model.Bid{}, nil)

		w := performJSON(t, router, http.MethodGet, "/auctions/a1/bids", nil)
		require.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("explicit_sort_passed_through", func(t *testing.T) {
		mockService.EXPECT().GetAuctionBids(gomock.Any(), "a1", "asc").Return([]model.Bid{
			{BidID: "b1", AuctionID: "a1", BidderID: "alice", Amount: decimal.NewFromInt(110), Status: model.BidStatusOutbid},
			{BidID: "b2", AuctionID: "a1", BidderID: "bob", Amount: decimal.NewFromInt(120), Status: model.BidStatusWinning},
		}, nil)

		w := performJSON(t, router, http.MethodGet, "/auctions/a1/bids?sort=asc", nil)
		require.Equal(t, http.StatusOK, w.Code)

		data := decodeBody(t, w)["data"].([]any)
		require.Len(t, data, 2)
	})
}

// Test GetUserBidsHandler
func TestGetUserBidsHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockService := NewMockBidServiceInterface(ctrl)
	h := NewBidHandler(mockService)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/users/me/bids", identityStub("user1"), h.GetUserBidsHandler)

	anonRouter := gin.New()
	anonRouter.GET("/users/me/bids", identityStub(""), h.GetUserBidsHandler)

	t.Run("defaults_applied", func(t *testing.T) {
		mockService.EXPECT().GetUserBids(gomock.Any(), "user1", "", 1, 20).Return([]model.Bid{}, nil)

		w := performJSON(t, router, http.MethodGet, "/users/me/bids", nil)
		require.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("filters_and_paging_passed_through", func(t *testing.T) {
		mockService.EXPECT().
			GetUserBids(gomock.Any(), "user1", string(model.BidStatusOutbid), 2, 5).
			Return([]model.Bid{}, nil)

		w := performJSON(t, router, http.MethodGet, "/users/me/bids?status=OUTBID&page=2&limit=5", nil)
		require.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("missing_identity_is_unauthorized", func(t *testing.T) {
		w := performJSON(t, anonRouter, http.MethodGet, "/users/me/bids", nil)
		require.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

// Test GetWinningBidHandler
func TestGetWinningBidHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockService := NewMockBidServiceInterface(ctrl)
	h := NewBidHandler(mockService)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/auctions/:auction_id/winning-bid", h.GetWinningBidHandler)

	t.Run("found", func(t *testing.T) {
		mockService.EXPECT().GetWinningBid(gomock.Any(), "a1").Return(&model.Bid{
			BidID: "b1", AuctionID: "a1", BidderID: "alice",
			Amount: decimal.NewFromInt(200), Status: model.BidStatusWinning,
		}, nil)

		w := performJSON(t, router, http.MethodGet, "/auctions/a1/winning-bid", nil)
		require.Equal(t, http.StatusOK, w.Code)

		data := decodeBody(t, w)["data"].(map[string]any)
		require.Equal(t, "alice", data["bidderId"])
	})

	t.Run("no_bids_yet", func(t *testing.T) {
		mockService.EXPECT().GetWinningBid(gomock.Any(), "a1").
			Return(nil, fmt.Errorf("store: %w - winning bid for auction a1", auctionerrors.ErrNotFound))

		w := performJSON(t, router, http.MethodGet, "/auctions/a1/winning-bid", nil)
		require.Equal(t, http.StatusNotFound, w.Code)
	})
}
