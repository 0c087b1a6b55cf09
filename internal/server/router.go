package server

import (
	"github.com/gin-gonic/gin"

	"auction-house/internal/realtime"
	"auction-house/services/auction/handler"
)

// SetupRouter builds the HTTP surface of the service.
func SetupRouter(jwtSecret string, auctions *handler.AuctionHandler, bids *handler.BidHandler, ws *realtime.WSHandler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLoggerMiddleware)

	auth := IdentityMiddleware(jwtSecret)

	a := router.Group("/auctions")
	{
		a.GET("", bids.GetActiveAuctionsHandler)
		a.POST("", auth, auctions.CreateAuctionHandler)
		a.GET("/:auction_id", bids.GetAuctionHandler)
		a.GET("/:auction_id/bids", bids.GetAuctionBidsHandler)
		a.GET("/:auction_id/winning-bid", bids.GetWinningBidHandler)
		a.POST("/:auction_id/bids", auth, bids.PlaceBidHandler)
	}

	u := router.Group("/users/me", auth)
	{
		u.GET("/bids", bids.GetUserBidsHandler)
		u.GET("/active-bids", bids.GetUserActiveBidsHandler)
	}

	seller := router.Group("/seller-auctions", auth)
	{
		seller.PATCH("/:auction_id/status", auctions.UpdateStatusHandler)
		seller.PATCH("/:auction_id/schedule", auctions.RescheduleHandler)
	}

	admin := router.Group("/admin-auctions", auth, RequireRole("admin"))
	{
		admin.PATCH("/:auction_id/status", auctions.UpdateStatusHandler)
	}

	router.GET("/ws/auctions/:auction_id", OptionalIdentityMiddleware(jwtSecret), ws.JoinAuctionHandler)

	return router
}
