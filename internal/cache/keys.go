package cache

import "fmt"

// Key families. Every mutating operation deletes the exact keys it can
// enumerate; list keys are deleted outright rather than patched in place.

func ActiveAuctionsKey() string {
	return "auctions:active"
}

func CategoryAuctionsKey(categoryID string) string {
	return fmt.Sprintf("auctions:category:%s", categoryID)
}

func AuctionKey(auctionID string) string {
	return fmt.Sprintf("auction:%s", auctionID)
}

func AuctionBidsKey(auctionID, sort string) string {
	return fmt.Sprintf("bids:auction:%s:%s", auctionID, sort)
}

func UserBidsKey(userID, status string, page, limit int) string {
	return fmt.Sprintf("bids:user:%s:%s:%d:%d", userID, status, page, limit)
}

func WinningBidKey(auctionID string) string {
	return fmt.Sprintf("bid:winning:%s", auctionID)
}
