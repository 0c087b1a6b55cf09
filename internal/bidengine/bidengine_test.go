package bidengine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"auction-house/internal/auctionerrors"
	"auction-house/internal/cache"
	model "auction-house/internal/models"
	"auction-house/internal/notify"
	"auction-house/internal/repository"
)

// fakeNotifier records outbound notifications.
type fakeNotifier struct {
	mu            sync.Mutex
	Notifications []notify.Notification
	Actions       []notify.ActionLog
}

func (f *fakeNotifier) CreateNotification(_ context.Context, n notify.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Notifications = append(f.Notifications, n)
	return nil
}

func (f *fakeNotifier) LogAction(_ context.Context, a notify.ActionLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Actions = append(f.Actions, a)
	return nil
}

// fakePublisher records emitted realtime events.
type fakePublisher struct {
	mu      sync.Mutex
	NewBids []model.Bid
	Outbids []string
}

func (f *fakePublisher) EmitNewBid(_ string, bid model.Bid, _ decimal.Decimal) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.NewBids = append(f.NewBids, bid)
}

func (f *fakePublisher) EmitAuctionUpdate(*model.Auction) {}

func (f *fakePublisher) EmitOutbid(userID, _ string, _ decimal.Decimal) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Outbids = append(f.Outbids, userID)
}

func (f *fakePublisher) EmitTimeRemaining(string, time.Duration) {}
func (f *fakePublisher) EmitParticipants(string, int)            {}

type engineFixture struct {
	engine    *Engine
	store     *repository.MemoryStore
	cache     *cache.MemoryCache
	notifier  *fakeNotifier
	publisher *fakePublisher
}

func newEngineFixture() *engineFixture {
	store := repository.NewMemoryStore()
	memCache := cache.NewMemoryCache()
	notifier := &fakeNotifier{}
	publisher := &fakePublisher{}
	return &engineFixture{
		engine:    NewEngine(store, memCache, cache.NewInvalidator(memCache), notifier, publisher),
		store:     store,
		cache:     memCache,
		notifier:  notifier,
		publisher: publisher,
	}
}

func activeAuction(t *testing.T, store *repository.MemoryStore, price, increment int64) *model.Auction {
	t.Helper()
	now := time.Now().UTC()
	auction := &model.Auction{
		AuctionID:       uuid.NewString(),
		Title:           "Test lot",
		Status:          model.StatusActive,
		StartingPrice:   decimal.NewFromInt(price),
		CurrentPrice:    decimal.NewFromInt(price),
		MinBidIncrement: decimal.NewFromInt(increment),
		StartTime:       now.Add(-time.Hour),
		EndTime:         now.Add(time.Hour),
		CreatorID:       "seller1",
		SellerID:        "seller1",
		CategoryID:      "cat1",
	}
	require.NoError(t, store.CreateAuction(context.Background(), auction))
	return auction
}

func TestEngine_PlaceBid_Validation(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*model.Auction)
		bidder   string
		amount   decimal.Decimal
		wantKind error
	}{
		{
			name:     "empty_bidder",
			bidder:   "",
			amount:   decimal.NewFromInt(120),
			wantKind: auctionerrors.ErrValidation,
		},
		{
			name:     "zero_amount",
			bidder:   "alice",
			amount:   decimal.Zero,
			wantKind: auctionerrors.ErrValidation,
		},
		{
			name:     "negative_amount",
			bidder:   "alice",
			amount:   decimal.NewFromInt(-5),
			wantKind: auctionerrors.ErrValidation,
		},
		{
			name:     "self_bid",
			bidder:   "seller1",
			amount:   decimal.NewFromInt(120),
			wantKind: auctionerrors.ErrValidation,
		},
		{
			name:     "below_minimum_increment",
			bidder:   "alice",
			amount:   decimal.NewFromInt(105),
			wantKind: auctionerrors.ErrValidation,
		},
		{
			name:     "not_yet_started",
			mutate:   func(a *model.Auction) { a.StartTime = time.Now().UTC().Add(time.Minute) },
			bidder:   "alice",
			amount:   decimal.NewFromInt(120),
			wantKind: auctionerrors.ErrValidation,
		},
		{
			name:     "window_over",
			mutate:   func(a *model.Auction) { a.EndTime = time.Now().UTC().Add(-time.Minute) },
			bidder:   "alice",
			amount:   decimal.NewFromInt(120),
			wantKind: auctionerrors.ErrValidation,
		},
		{
			name:     "not_active",
			mutate:   func(a *model.Auction) { a.Status = model.StatusScheduled },
			bidder:   "alice",
			amount:   decimal.NewFromInt(120),
			wantKind: auctionerrors.ErrValidation,
		},
	}

	for _, tc := range tests {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			f := newEngineFixture()
			auction := activeAuction(t, f.store, 100, 10)
			if tc.mutate != nil {
				tc.mutate(auction)
				require.NoError(t, f.store.SaveAuction(context.Background(), auction))
			}

			_, err := f.engine.PlaceBid(context.Background(), auction.AuctionID, tc.bidder, tc.amount)
			require.Error(t, err)
			require.True(t, errors.Is(err, tc.wantKind), "expected %v, got %v", tc.wantKind, err)

			bids, listErr := f.store.GetBidsByAuction(context.Background(), auction.AuctionID, "desc")
			require.NoError(t, listErr)
			require.Empty(t, bids)
		})
	}
}

func TestEngine_PlaceBid_UnknownAuction(t *testing.T) {
	f := newEngineFixture()

	_, err := f.engine.PlaceBid(context.Background(), "ghost", "alice", decimal.NewFromInt(100))
	require.Error(t, err)
	require.True(t, errors.Is(err, auctionerrors.ErrNotFound))
}

func TestEngine_PlaceBid_FirstBid(t *testing.T) {
	f := newEngineFixture()
	auction := activeAuction(t, f.store, 100, 10)

	bid, err := f.engine.PlaceBid(context.Background(), auction.AuctionID, "alice", decimal.NewFromInt(110))
	require.NoError(t, err)

	require.NotEmpty(t, bid.BidID)
	_, parseErr := uuid.Parse(bid.BidID)
	require.NoError(t, parseErr)
	require.Equal(t, model.BidStatusWinning, bid.Status)
	require.True(t, bid.PreviousPrice.Equal(decimal.NewFromInt(100)))
	require.WithinDuration(t, time.Now().UTC(), bid.CreatedAt, 2*time.Second)

	stored, err := f.store.GetAuction(context.Background(), auction.AuctionID)
	require.NoError(t, err)
	require.True(t, stored.CurrentPrice.Equal(decimal.NewFromInt(110)))
	require.NotNil(t, stored.WinnerID)
	require.Equal(t, "alice", *stored.WinnerID)

	require.Len(t, f.publisher.NewBids, 1)
	require.Empty(t, f.publisher.Outbids)
	require.Empty(t, f.notifier.Notifications)
}

func TestEngine_PlaceBid_DemotesPreviousWinner(t *testing.T) {
	f := newEngineFixture()
	auction := activeAuction(t, f.store, 100, 10)

	first, err := f.engine.PlaceBid(context.Background(), auction.AuctionID, "alice", decimal.NewFromInt(110))
	require.NoError(t, err)

	second, err := f.engine.PlaceBid(context.Background(), auction.AuctionID, "bob", decimal.NewFromInt(125))
	require.NoError(t, err)
	require.True(t, second.PreviousPrice.Equal(decimal.NewFromInt(110)))

	bids, err := f.store.GetBidsByAuction(context.Background(), auction.AuctionID, "desc")
	require.NoError(t, err)
	require.Len(t, bids, 2)
	for _, bid := range bids {
		switch bid.BidID {
		case first.BidID:
			require.Equal(t, model.BidStatusOutbid, bid.Status)
		case second.BidID:
			require.Equal(t, model.BidStatusWinning, bid.Status)
		}
	}

	require.Equal(t, []string{"alice"}, f.publisher.Outbids)
	require.Len(t, f.notifier.Notifications, 1)
	require.Equal(t, notify.TypeOutbid, f.notifier.Notifications[0].Type)
	require.Equal(t, "alice", f.notifier.Notifications[0].UserID)
}

func TestEngine_PlaceBid_RaisingOwnBidSkipsOutbid(t *testing.T) {
	f := newEngineFixture()
	auction := activeAuction(t, f.store, 100, 10)

	_, err := f.engine.PlaceBid(context.Background(), auction.AuctionID, "alice", decimal.NewFromInt(110))
	require.NoError(t, err)
	_, err = f.engine.PlaceBid(context.Background(), auction.AuctionID, "alice", decimal.NewFromInt(130))
	require.NoError(t, err)

	require.Empty(t, f.publisher.Outbids)
	require.Empty(t, f.notifier.Notifications)

	winning, err := f.store.GetWinningBid(context.Background(), auction.AuctionID)
	require.NoError(t, err)
	require.True(t, winning.Amount.Equal(decimal.NewFromInt(130)))
}

func TestEngine_PlaceBid_StaleSnapshotConflicts(t *testing.T) {
	f := newEngineFixture()
	auction := activeAuction(t, f.store, 150, 10)

	// a snapshot from before a concurrent bid moved the price
	stale := *auction
	stale.CurrentPrice = decimal.NewFromInt(100)
	require.NoError(t, f.cache.Set(context.Background(), cache.AuctionKey(auction.AuctionID), &stale, cache.DefaultTTL))

	// clears the stale floor of 110 but not the real one of 160
	_, err := f.engine.PlaceBid(context.Background(), auction.AuctionID, "alice", decimal.NewFromInt(120))
	require.Error(t, err)
	require.True(t, errors.Is(err, auctionerrors.ErrBidConflict), "expected bid conflict, got %v", err)

	bids, err := f.store.GetBidsByAuction(context.Background(), auction.AuctionID, "desc")
	require.NoError(t, err)
	require.Empty(t, bids)
}

// Many bidders racing on one auction must leave exactly one WINNING bid and a
// current price equal to the highest accepted amount.
func TestEngine_PlaceBid_ConcurrentBidders(t *testing.T) {
	f := newEngineFixture()
	auction := activeAuction(t, f.store, 100, 1)

	const bidders = 30
	var wg sync.WaitGroup
	accepted := make(chan decimal.Decimal, bidders)

	for i := 0; i < bidders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			amount := decimal.NewFromInt(int64(101 + i*3))
			bid, err := f.engine.PlaceBid(context.Background(), auction.AuctionID, fmt.Sprintf("user%d", i), amount)
			if err != nil {
				// losing the race is the expected normal outcome
				require.True(t, errors.Is(err, auctionerrors.ErrBidConflict) || errors.Is(err, auctionerrors.ErrValidation),
					"unexpected error kind: %v", err)
				return
			}
			accepted <- bid.Amount
		}(i)
	}
	wg.Wait()
	close(accepted)

	highest := decimal.Zero
	count := 0
	for amount := range accepted {
		count++
		if amount.GreaterThan(highest) {
			highest = amount
		}
	}
	require.Greater(t, count, 0, "at least one bid must be accepted")

	stored, err := f.store.GetAuction(context.Background(), auction.AuctionID)
	require.NoError(t, err)
	require.True(t, stored.CurrentPrice.Equal(highest),
		"final price %s must equal highest accepted bid %s", stored.CurrentPrice, highest)

	bids, err := f.store.GetBidsByAuction(context.Background(), auction.AuctionID, "desc")
	require.NoError(t, err)
	require.Len(t, bids, count)

	winningCount := 0
	for _, bid := range bids {
		if bid.Status == model.BidStatusWinning {
			winningCount++
			require.True(t, bid.Amount.Equal(highest))
			require.NotNil(t, stored.WinnerID)
			require.Equal(t, bid.BidderID, *stored.WinnerID)
		}
	}
	require.Equal(t, 1, winningCount, "exactly one bid may hold WINNING")
}

func TestEngine_Reads(t *testing.T) {
	f := newEngineFixture()
	auction := activeAuction(t, f.store, 100, 10)

	_, err := f.engine.PlaceBid(context.Background(), auction.AuctionID, "alice", decimal.NewFromInt(110))
	require.NoError(t, err)
	_, err = f.engine.PlaceBid(context.Background(), auction.AuctionID, "bob", decimal.NewFromInt(120))
	require.NoError(t, err)

	t.Run("active_auctions", func(t *testing.T) {
		auctions, err := f.engine.GetActiveAuctions(context.Background())
		require.NoError(t, err)
		require.Len(t, auctions, 1)
	})

	t.Run("auction_bids_sorted", func(t *testing.T) {
		desc, err := f.engine.GetAuctionBids(context.Background(), auction.AuctionID, "desc")
		require.NoError(t, err)
		require.Len(t, desc, 2)
		require.True(t, desc[0].Amount.GreaterThan(desc[1].Amount))

		asc, err := f.engine.GetAuctionBids(context.Background(), auction.AuctionID, "asc")
		require.NoError(t, err)
		require.True(t, asc[0].Amount.LessThan(asc[1].Amount))
	})

	t.Run("winning_bid", func(t *testing.T) {
		winning, err := f.engine.GetWinningBid(context.Background(), auction.AuctionID)
		require.NoError(t, err)
		require.Equal(t, "bob", winning.BidderID)
		require.Equal(t, model.BidStatusWinning, winning.Status)
	})

	t.Run("user_bids_filtered", func(t *testing.T) {
		outbid, err := f.engine.GetUserBids(context.Background(), "alice", string(model.BidStatusOutbid), 1, 20)
		require.NoError(t, err)
		require.Len(t, outbid, 1)

		_, err = f.engine.GetUserBids(context.Background(), "alice", "BOGUS", 1, 20)
		require.True(t, errors.Is(err, auctionerrors.ErrValidation))
	})

	t.Run("user_active_bids", func(t *testing.T) {
		active, err := f.engine.GetUserActiveBids(context.Background(), "bob")
		require.NoError(t, err)
		require.Len(t, active, 1)
	})
}

// A read served twice hits the cache the second time: mutating the store
// behind the cache's back must not change the cached answer until eviction.
func TestEngine_Reads_CacheBehavior(t *testing.T) {
	f := newEngineFixture()
	auction := activeAuction(t, f.store, 100, 10)

	first, err := f.engine.GetAuction(context.Background(), auction.AuctionID)
	require.NoError(t, err)
	require.True(t, first.CurrentPrice.Equal(decimal.NewFromInt(100)))

	// sneak a store write past the cache
	auction.CurrentPrice = decimal.NewFromInt(999)
	require.NoError(t, f.store.SaveAuction(context.Background(), auction))

	cachedView, err := f.engine.GetAuction(context.Background(), auction.AuctionID)
	require.NoError(t, err)
	require.True(t, cachedView.CurrentPrice.Equal(decimal.NewFromInt(100)), "stale entry must be served until evicted")

	// eviction through the invalidator restores freshness
	cache.NewInvalidator(f.cache).OnAuctionChanged(context.Background(), auction)

	fresh, err := f.engine.GetAuction(context.Background(), auction.AuctionID)
	require.NoError(t, err)
	require.True(t, fresh.CurrentPrice.Equal(decimal.NewFromInt(999)))
}
