package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	model "auction-house/internal/models"
)

func TestMemoryCache_SetGetDelete(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	type payload struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	require.NoError(t, c.Set(ctx, "k1", payload{Name: "auction", Count: 3}, time.Minute))

	var got payload
	ok, err := c.Get(ctx, "k1", &got)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, payload{Name: "auction", Count: 3}, got)

	ok, err = c.Get(ctx, "missing", &got)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, c.Delete(ctx, "k1"))
	ok, err = c.Get(ctx, "k1", &got)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemoryCache_TTLExpiry(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "short", "value", 10*time.Millisecond))

	var got string
	ok, err := c.Get(ctx, "short", &got)
	require.NoError(t, err)
	require.True(t, ok)

	time.Sleep(20 * time.Millisecond)

	ok, err = c.Get(ctx, "short", &got)
	require.NoError(t, err)
	require.False(t, ok, "expired entry must behave like a miss")
}

// failingCache always errors, standing in for a down redis.
type failingCache struct{}

func (failingCache) Get(context.Context, string, any) (bool, error) {
	return false, errors.New("redis down")
}
func (failingCache) Set(context.Context, string, any, time.Duration) error {
	return errors.New("redis down")
}
func (failingCache) Delete(context.Context, ...string) error {
	return errors.New("redis down")
}

func TestGetOrLoad(t *testing.T) {
	ctx := context.Background()

	t.Run("caches_the_first_load", func(t *testing.T) {
		c := NewMemoryCache()
		loads := 0
		load := func(context.Context) (int, error) {
			loads++
			return 42, nil
		}

		for i := 0; i < 3; i++ {
			got, err := GetOrLoad(ctx, c, "answer", time.Minute, load)
			require.NoError(t, err)
			require.Equal(t, 42, got)
		}
		require.Equal(t, 1, loads, "only the first read may hit the loader")
	})

	t.Run("loader_error_is_surfaced_and_not_cached", func(t *testing.T) {
		c := NewMemoryCache()
		boom := errors.New("store broken")
		_, err := GetOrLoad(ctx, c, "bad", time.Minute, func(context.Context) (int, error) {
			return 0, boom
		})
		require.ErrorIs(t, err, boom)
		require.Zero(t, c.Len())
	})

	t.Run("cache_failure_degrades_to_load", func(t *testing.T) {
		got, err := GetOrLoad(ctx, failingCache{}, "k", time.Minute, func(context.Context) (string, error) {
			return "fresh", nil
		})
		require.NoError(t, err)
		require.Equal(t, "fresh", got)
	})
}

func TestInvalidator_OnAuctionChanged(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()
	auction := &model.Auction{AuctionID: "a1", CategoryID: "cat1"}

	keys := []string{
		AuctionKey("a1"),
		ActiveAuctionsKey(),
		CategoryAuctionsKey("cat1"),
		WinningBidKey("a1"),
		AuctionBidsKey("a1", "asc"),
		AuctionBidsKey("a1", "desc"),
	}
	for _, key := range keys {
		require.NoError(t, c.Set(ctx, key, "cached", time.Minute))
	}
	require.NoError(t, c.Set(ctx, AuctionKey("other"), "cached", time.Minute))

	NewInvalidator(c).OnAuctionChanged(ctx, auction)

	var got string
	for _, key := range keys {
		ok, err := c.Get(ctx, key, &got)
		require.NoError(t, err)
		require.False(t, ok, "key %s must be evicted", key)
	}

	ok, err := c.Get(ctx, AuctionKey("other"), &got)
	require.NoError(t, err)
	require.True(t, ok, "unrelated auctions keep their entries")
}

func TestInvalidator_OnBidPlaced_EvictsBidderLists(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()
	auction := &model.Auction{AuctionID: "a1", CategoryID: "cat1"}

	bidderKeys := []string{
		UserBidsKey("alice", "", 1, 20),
		UserBidsKey("alice", string(model.BidStatusWinning), 1, 20),
		UserBidsKey("bob", string(model.BidStatusOutbid), 1, 20),
		UserBidsKey("bob", "active", 1, 20),
	}
	for _, key := range bidderKeys {
		require.NoError(t, c.Set(ctx, key, "cached", time.Minute))
	}
	require.NoError(t, c.Set(ctx, UserBidsKey("carol", "", 1, 20), "cached", time.Minute))

	// empty bidder ids (no displaced winner) must be skipped quietly
	NewInvalidator(c).OnBidPlaced(ctx, auction, "alice", "bob", "")

	var got string
	for _, key := range bidderKeys {
		ok, err := c.Get(ctx, key, &got)
		require.NoError(t, err)
		require.False(t, ok, "key %s must be evicted", key)
	}

	ok, err := c.Get(ctx, UserBidsKey("carol", "", 1, 20), &got)
	require.NoError(t, err)
	require.True(t, ok, "uninvolved users keep their entries")
}
