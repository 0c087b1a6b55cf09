package realtime

import (
	"context"
	"time"

	"auction-house/internal/repository"
	"auction-house/utils"
)

// Ticker periodically pushes timeRemaining events for every active auction.
// Wired to a cron entry rather than owning its own loop.
type Ticker struct {
	store     repository.AuctionStore
	publisher Publisher
}

// NewTicker creates a Ticker over the given store and publisher.
func NewTicker(store repository.AuctionStore, publisher Publisher) *Ticker {
	return &Ticker{store: store, publisher: publisher}
}

// Tick emits a timeRemaining event per active auction.
func (t *Ticker) Tick(ctx context.Context) {
	auctions, err := t.store.ListActiveAuctions(ctx)
	if err != nil {
		utils.Warn("time remaining tick failed", map[string]any{"error": err.Error()})
		return
	}

	now := time.Now().UTC()
	for _, auction := range auctions {
		t.publisher.EmitTimeRemaining(auction.AuctionID, auction.EndTime.Sub(now))
	}
}

// Task adapts Tick to a cron entry.
func (t *Ticker) Task() func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		t.Tick(ctx)
	}
}
