package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"auction-house/internal/auctionerrors"
)

const (
	auditSubject        = "audit.actions"
	notificationSubject = "notifications.%s" // per-user
)

// NATSNotifier publishes notifications and audit actions as JSON messages for
// the external collaborators to consume.
type NATSNotifier struct {
	conn *nats.Conn
}

// NewNATSNotifier connects to the broker.
func NewNATSNotifier(url string) (*NATSNotifier, error) {
	conn, err := nats.Connect(url,
		nats.Timeout(5*time.Second),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("notify: %w - connect to nats at %s: %v", auctionerrors.ErrInfrastructure, url, err)
	}
	return &NATSNotifier{conn: conn}, nil
}

func (n *NATSNotifier) CreateNotification(_ context.Context, notification Notification) error {
	return n.publish(fmt.Sprintf(notificationSubject, notification.UserID), notification)
}

func (n *NATSNotifier) LogAction(_ context.Context, action ActionLog) error {
	return n.publish(auditSubject, action)
}

func (n *NATSNotifier) publish(subject string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("notify: marshal for %s: %w", subject, err)
	}
	if err := n.conn.Publish(subject, raw); err != nil {
		return fmt.Errorf("notify: %w - publish to %s: %v", auctionerrors.ErrInfrastructure, subject, err)
	}
	return nil
}

// Close drains the connection so queued messages flush before shutdown.
func (n *NATSNotifier) Close() {
	_ = n.conn.Drain()
}
