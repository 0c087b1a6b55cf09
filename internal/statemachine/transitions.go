package statemachine

import (
	model "auction-house/internal/models"
)

// allowedTransitions is the whole lifecycle graph. SOLD and CANCELLED are
// terminal; nothing ever moves back to DRAFT or SCHEDULED.
var allowedTransitions = map[model.AuctionStatus][]model.AuctionStatus{
	model.StatusDraft:     {model.StatusScheduled, model.StatusCancelled},
	model.StatusScheduled: {model.StatusActive, model.StatusCancelled},
	model.StatusActive:    {model.StatusEnded, model.StatusCancelled},
	model.StatusEnded:     {model.StatusSold, model.StatusCancelled},
}

// CanTransition reports whether from -> to is a legal lifecycle step.
// A self transition is not.
func CanTransition(from, to model.AuctionStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
