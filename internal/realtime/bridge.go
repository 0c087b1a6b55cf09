package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"auction-house/internal/auctionerrors"
	model "auction-house/internal/models"
	"auction-house/utils"
)

const (
	channelPrefix  = "rt:"
	presencePrefix = "presence:auction:"
)

// Bridge carries realtime events through redis pub/sub so that every server
// instance delivers to its own local sockets, and keeps the authoritative
// participant counts in redis. The local hub is just a delivery cache of that
// shared state.
type Bridge struct {
	client *redis.Client
	hub    *Hub
}

// NewBridge wraps a redis client and the local hub.
func NewBridge(client *redis.Client, hub *Hub) *Bridge {
	return &Bridge{client: client, hub: hub}
}

// Run subscribes to all room channels and delivers incoming frames to the
// local hub until ctx is cancelled.
func (b *Bridge) Run(ctx context.Context) error {
	pubsub := b.client.PSubscribe(ctx, channelPrefix+"*")
	defer func() { _ = pubsub.Close() }()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return fmt.Errorf("realtime: %w - pubsub channel closed", auctionerrors.ErrInfrastructure)
			}
			room := strings.TrimPrefix(msg.Channel, channelPrefix)
			b.hub.Broadcast(room, []byte(msg.Payload))
		}
	}
}

// Join registers one viewer of an auction in the shared presence counter and
// returns the new count.
func (b *Bridge) Join(ctx context.Context, auctionID string) (int, error) {
	count, err := b.client.Incr(ctx, presencePrefix+auctionID).Result()
	if err != nil {
		return 0, fmt.Errorf("realtime: %w - presence incr for %s: %v", auctionerrors.ErrInfrastructure, auctionID, err)
	}
	return int(count), nil
}

// Leave is the inverse of Join. The counter never goes below zero.
func (b *Bridge) Leave(ctx context.Context, auctionID string) (int, error) {
	count, err := b.client.Decr(ctx, presencePrefix+auctionID).Result()
	if err != nil {
		return 0, fmt.Errorf("realtime: %w - presence decr for %s: %v", auctionerrors.ErrInfrastructure, auctionID, err)
	}
	if count < 0 {
		_ = b.client.Set(ctx, presencePrefix+auctionID, 0, 0).Err()
		count = 0
	}
	return int(count), nil
}

func (b *Bridge) publish(eventType EventType, room string, payload any) {
	frame, err := Encode(eventType, room, payload)
	if err != nil {
		utils.Error("encode realtime event failed", map[string]any{
			"event": string(eventType),
			"error": err.Error(),
		})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := b.client.Publish(ctx, channelPrefix+room, frame).Err(); err != nil {
		utils.Warn("publish realtime event failed", map[string]any{
			"event": string(eventType),
			"room":  room,
			"error": err.Error(),
		})
	}
}

// The bridge is the production Publisher: events go out through redis and
// come back to every instance's hub, this one included.

func (b *Bridge) EmitNewBid(auctionID string, bid model.Bid, currentPrice decimal.Decimal) {
	b.publish(EventNewBid, AuctionRoom(auctionID), NewBidPayload{
		BidID:        bid.BidID,
		AuctionID:    auctionID,
		BidderID:     bid.BidderID,
		Amount:       bid.Amount,
		CurrentPrice: currentPrice,
		PlacedAt:     bid.CreatedAt,
	})
}

func (b *Bridge) EmitAuctionUpdate(auction *model.Auction) {
	b.publish(EventAuctionUpdate, AuctionRoom(auction.AuctionID), AuctionUpdatePayload{
		AuctionID:    auction.AuctionID,
		Status:       auction.Status,
		CurrentPrice: auction.CurrentPrice,
		WinnerID:     auction.WinnerID,
	})
}

func (b *Bridge) EmitOutbid(userID, auctionID string, newAmount decimal.Decimal) {
	b.publish(EventOutbid, UserRoom(userID), OutbidPayload{
		AuctionID: auctionID,
		UserID:    userID,
		NewAmount: newAmount,
	})
}

func (b *Bridge) EmitTimeRemaining(auctionID string, remaining time.Duration) {
	if remaining < 0 {
		remaining = 0
	}
	b.publish(EventTimeRemaining, AuctionRoom(auctionID), TimeRemainingPayload{
		AuctionID:   auctionID,
		RemainingMS: remaining.Milliseconds(),
	})
}

func (b *Bridge) EmitParticipants(auctionID string, count int) {
	b.publish(EventParticipants, AuctionRoom(auctionID), ParticipantsPayload{
		AuctionID: auctionID,
		Count:     count,
	})
}

// DecodeEnvelope parses a raw frame. Used by tests and diagnostic tooling.
func DecodeEnvelope(raw []byte) (Envelope, error) {
	var envelope Envelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return Envelope{}, fmt.Errorf("realtime: decode envelope: %w", err)
	}
	return envelope, nil
}
