package realtime

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"auction-house/utils"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// origin checks belong to the edge proxy
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Presence is the shared membership counter. In production it lives in redis
// (Bridge); LocalPresence falls back to hub-local counts.
type Presence interface {
	Join(ctx context.Context, auctionID string) (int, error)
	Leave(ctx context.Context, auctionID string) (int, error)
}

// LocalPresence counts participants from the local hub only. Single-instance
// deployments and tests.
type LocalPresence struct {
	Hub *Hub
}

func (p LocalPresence) Join(_ context.Context, auctionID string) (int, error) {
	return p.Hub.Count(AuctionRoom(auctionID)), nil
}

func (p LocalPresence) Leave(_ context.Context, auctionID string) (int, error) {
	return p.Hub.Count(AuctionRoom(auctionID)), nil
}

// WSHandler upgrades connections and joins them to their auction room.
type WSHandler struct {
	hub       *Hub
	presence  Presence
	publisher Publisher
}

// NewWSHandler creates the websocket join handler.
func NewWSHandler(hub *Hub, presence Presence, publisher Publisher) *WSHandler {
	return &WSHandler{hub: hub, presence: presence, publisher: publisher}
}

// JoinAuctionHandler handles GET /ws/auctions/:auction_id. An authenticated
// user also joins their personal room so outbid pushes reach them here.
func (h *WSHandler) JoinAuctionHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	if auctionID == "" {
		utils.JSONError(c, http.StatusBadRequest, errMissingAuctionID, "auction id is required")
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		utils.Warn("websocket upgrade failed", map[string]any{
			"auction_id": auctionID,
			"error":      err.Error(),
		})
		return
	}

	userID := c.GetString("userID")
	rooms := []string{AuctionRoom(auctionID)}
	if userID != "" {
		rooms = append(rooms, UserRoom(userID))
	}

	client := NewClient(utils.GenerateID(), userID, conn, rooms...)
	h.hub.Add(client)

	// shared presence count wins over the hub-local one computed in Add
	if count, err := h.presence.Join(c.Request.Context(), auctionID); err == nil {
		h.publisher.EmitParticipants(auctionID, count)
	}
}

var errMissingAuctionID = errors.New("auction id is required")
