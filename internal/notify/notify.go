package notify

import "context"

// Notification kinds the core emits. The notification collaborator owns
// rendering and delivery; the core only states what happened to whom.
const (
	TypeOutbid    = "OUTBID"
	TypeWon       = "AUCTION_WON"
	TypeSold      = "AUCTION_SOLD"
	TypeCancelled = "AUCTION_CANCELLED"
)

// Notification is the payload handed to the notification collaborator.
type Notification struct {
	Type      string `json:"type"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	UserID    string `json:"user_id"`
	AuctionID string `json:"auction_id"`
}

// ActionLog records who did what, for the audit collaborator.
type ActionLog struct {
	ActorID     string `json:"actor_id"`
	Action      string `json:"action"`
	Description string `json:"description"`
}

// Notifier is the outbound side-effect surface. Calls are best-effort: the
// caller logs a failure and moves on, it never rolls back a committed write.
type Notifier interface {
	CreateNotification(ctx context.Context, n Notification) error
	LogAction(ctx context.Context, a ActionLog) error
}

// Noop discards everything. Used in tests and when no broker is configured.
type Noop struct{}

func (Noop) CreateNotification(context.Context, Notification) error { return nil }
func (Noop) LogAction(context.Context, ActionLog) error             { return nil }
