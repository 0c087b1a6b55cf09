package utils

import (
	"github.com/google/uuid"
)

// GenerateID returns a new unique identifier. Auctions, bids and realtime
// clients all draw their ids from here.
func GenerateID() string {
	return uuid.New().String()
}
