package realtime

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	model "auction-house/internal/models"
	"auction-house/utils"
)

// Hub tracks which local connections belong to which room and fans messages
// out to them. Membership is process-local: in a multi-instance deployment
// the Bridge carries events between instances and the hub only delivers to
// its own sockets.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]bool

	// LeaveHook, when set, runs after a client leaves an auction room so the
	// shared presence counter can be decremented. Set once at wiring time.
	LeaveHook func(auctionID string)
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[*Client]bool)}
}

// Add registers a client in all its rooms and starts its write pump. Joining
// an auction room broadcasts the updated participantsCount.
func (h *Hub) Add(client *Client) {
	h.mu.Lock()
	for _, room := range client.rooms {
		if h.rooms[room] == nil {
			h.rooms[room] = make(map[*Client]bool)
		}
		h.rooms[room][client] = true
	}
	h.mu.Unlock()

	go client.writePump()
	go client.readPump(h)

	for _, auctionID := range client.auctionRooms() {
		h.EmitParticipants(auctionID, h.Count(AuctionRoom(auctionID)))
	}

	utils.Info("realtime client joined", map[string]any{
		"client_id": client.ID,
		"rooms":     client.rooms,
	})
}

// Remove drops a client from its rooms and signals its write pump to stop.
// The remaining members of each auction room get a fresh participantsCount.
func (h *Hub) Remove(client *Client) {
	h.mu.Lock()
	removed := false
	for _, room := range client.rooms {
		if members, ok := h.rooms[room]; ok && members[client] {
			delete(members, client)
			removed = true
			if len(members) == 0 {
				delete(h.rooms, room)
			}
		}
	}
	h.mu.Unlock()

	if !removed {
		return
	}
	client.close()

	for _, auctionID := range client.auctionRooms() {
		h.EmitParticipants(auctionID, h.Count(AuctionRoom(auctionID)))
		if h.LeaveHook != nil {
			h.LeaveHook(auctionID)
		}
	}

	utils.Info("realtime client left", map[string]any{"client_id": client.ID})
}

// Count returns the number of local members in a room.
func (h *Hub) Count(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Broadcast delivers a raw frame to every member of a room. A client whose
// send buffer is full is considered dead and skipped; its read pump will
// clean it up.
func (h *Hub) Broadcast(room string, message []byte) {
	h.mu.RLock()
	members := make([]*Client, 0, len(h.rooms[room]))
	for client := range h.rooms[room] {
		members = append(members, client)
	}
	h.mu.RUnlock()

	for _, client := range members {
		select {
		case <-client.done:
			// already disconnected, skip
		case client.send <- message:
		default:
			utils.Warn("realtime client send buffer full, dropping frame", map[string]any{
				"client_id": client.ID,
				"room":      room,
			})
		}
	}
}

func (h *Hub) emit(eventType EventType, room string, payload any) {
	frame, err := Encode(eventType, room, payload)
	if err != nil {
		utils.Error("encode realtime event failed", map[string]any{
			"event": string(eventType),
			"error": err.Error(),
		})
		return
	}
	h.Broadcast(room, frame)
}

// The hub is also a Publisher for single-instance deployments and tests; in
// production the Bridge wraps it so events reach every instance.

func (h *Hub) EmitNewBid(auctionID string, bid model.Bid, currentPrice decimal.Decimal) {
	h.emit(EventNewBid, AuctionRoom(auctionID), NewBidPayload{
		BidID:        bid.BidID,
		AuctionID:    auctionID,
		BidderID:     bid.BidderID,
		Amount:       bid.Amount,
		CurrentPrice: currentPrice,
		PlacedAt:     bid.CreatedAt,
	})
}

func (h *Hub) EmitAuctionUpdate(auction *model.Auction) {
	h.emit(EventAuctionUpdate, AuctionRoom(auction.AuctionID), AuctionUpdatePayload{
		AuctionID:    auction.AuctionID,
		Status:       auction.Status,
		CurrentPrice: auction.CurrentPrice,
		WinnerID:     auction.WinnerID,
	})
}

func (h *Hub) EmitOutbid(userID, auctionID string, newAmount decimal.Decimal) {
	h.emit(EventOutbid, UserRoom(userID), OutbidPayload{
		AuctionID: auctionID,
		UserID:    userID,
		NewAmount: newAmount,
	})
}

func (h *Hub) EmitTimeRemaining(auctionID string, remaining time.Duration) {
	if remaining < 0 {
		remaining = 0
	}
	h.emit(EventTimeRemaining, AuctionRoom(auctionID), TimeRemainingPayload{
		AuctionID:   auctionID,
		RemainingMS: remaining.Milliseconds(),
	})
}

func (h *Hub) EmitParticipants(auctionID string, count int) {
	h.emit(EventParticipants, AuctionRoom(auctionID), ParticipantsPayload{
		AuctionID: auctionID,
		Count:     count,
	})
}
