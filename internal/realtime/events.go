package realtime

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	model "auction-house/internal/models"
)

// EventType names every realtime event the core emits. The payload structs
// below are the full contract of each event, testable without a live socket.
type EventType string

const (
	EventNewBid        EventType = "newBid"
	EventAuctionUpdate EventType = "auctionUpdate"
	EventParticipants  EventType = "participantsCount"
	EventTimeRemaining EventType = "timeRemaining"
	EventOutbid        EventType = "outbid"
)

// AuctionRoom is the broadcast group for everyone watching one auction.
func AuctionRoom(auctionID string) string {
	return fmt.Sprintf("auction:%s", auctionID)
}

// UserRoom is the direct channel for one user (outbid pushes).
func UserRoom(userID string) string {
	return fmt.Sprintf("user:%s", userID)
}

// Envelope is the wire frame every event travels in.
type Envelope struct {
	Type EventType       `json:"type"`
	Room string          `json:"room"`
	Data json.RawMessage `json:"data"`
}

type NewBidPayload struct {
	BidID        string          `json:"bid_id"`
	AuctionID    string          `json:"auction_id"`
	BidderID     string          `json:"bidder_id"`
	Amount       decimal.Decimal `json:"amount"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	PlacedAt     time.Time       `json:"placed_at"`
}

type AuctionUpdatePayload struct {
	AuctionID    string              `json:"auction_id"`
	Status       model.AuctionStatus `json:"status"`
	CurrentPrice decimal.Decimal     `json:"current_price"`
	WinnerID     *string             `json:"winner_id,omitempty"`
}

type ParticipantsPayload struct {
	AuctionID string `json:"auction_id"`
	Count     int    `json:"count"`
}

type TimeRemainingPayload struct {
	AuctionID   string `json:"auction_id"`
	RemainingMS int64  `json:"remaining_ms"`
}

type OutbidPayload struct {
	AuctionID string          `json:"auction_id"`
	UserID    string          `json:"user_id"`
	NewAmount decimal.Decimal `json:"new_amount"`
}

// Encode wraps a payload in its envelope ready for delivery.
func Encode(eventType EventType, room string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("realtime: marshal %s payload: %w", eventType, err)
	}
	return json.Marshal(Envelope{Type: eventType, Room: room, Data: data})
}

// Publisher is the single outbound surface for realtime events. Delivery is
// fire-and-forget: a disconnected client misses events until it rejoins and
// re-reads state.
type Publisher interface {
	EmitNewBid(auctionID string, bid model.Bid, currentPrice decimal.Decimal)
	EmitAuctionUpdate(auction *model.Auction)
	EmitOutbid(userID, auctionID string, newAmount decimal.Decimal)
	EmitTimeRemaining(auctionID string, remaining time.Duration)
	EmitParticipants(auctionID string, count int)
}
