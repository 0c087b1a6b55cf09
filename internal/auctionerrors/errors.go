package auctionerrors

import "errors"

// Caller errors: surfaced as 4xx, never retried.
var (
	ErrValidation      = errors.New("invalid request")
	ErrNotFound        = errors.New("not found")
	ErrStateTransition = errors.New("illegal status transition")
	ErrBidConflict     = errors.New("bid lost a concurrent update")
)

// ErrInfrastructure covers store/queue/cache unavailability. HTTP callers see
// a 5xx; a scheduled-job handler returning it triggers the queue's retry.
var ErrInfrastructure = errors.New("infrastructure unavailable")
