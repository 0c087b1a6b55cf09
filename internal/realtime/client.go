package realtime

import (
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"auction-house/utils"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBufferSize = 256
)

// Client is one realtime connection and the rooms it belongs to. A nil conn
// is allowed in tests; frames then accumulate in the send buffer.
type Client struct {
	ID     string
	UserID string

	rooms     []string
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// NewClient creates a client joined to the given rooms.
func NewClient(id, userID string, conn *websocket.Conn, rooms ...string) *Client {
	return &Client{
		ID:     id,
		UserID: userID,
		rooms:  rooms,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		done:   make(chan struct{}),
	}
}

// Send exposes the outbound frame channel. Intended for tests.
func (c *Client) Send() <-chan []byte {
	return c.send
}

func (c *Client) auctionRooms() []string {
	var ids []string
	for _, room := range c.rooms {
		if id, ok := strings.CutPrefix(room, "auction:"); ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// close signals the write pump to stop. The send channel stays open so a
// broadcast racing the disconnect queues a frame nobody reads instead of
// panicking.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}

// writePump moves frames from the send buffer onto the socket and keeps the
// connection alive with pings.
func (c *Client) writePump() {
	if c.conn == nil {
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				utils.Debug("realtime write failed", map[string]any{
					"client_id": c.ID,
					"error":     err.Error(),
				})
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards inbound frames (clients only listen) and removes the
// client from the hub when the connection drops.
func (c *Client) readPump(hub *Hub) {
	if c.conn == nil {
		return
	}

	defer hub.Remove(c)

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
