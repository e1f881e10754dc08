package websocket

import (
	"context"
	"encoding/json"
	"time"

	ws "github.com/coder/websocket"
)

const (
	sendBufferSize = 16
	pingInterval   = 30 * time.Second
	maxFrameBytes  = 4 << 10
)

// Client is one authenticated connection of a family member.
type Client struct {
	hub      *Hub
	conn     *ws.Conn
	send     chan []byte
	familyID int64
	userID   int64
	now      func() time.Time
}

func NewClient(hub *Hub, conn *ws.Conn, familyID, userID int64) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		send:     make(chan []byte, sendBufferSize),
		familyID: familyID,
		userID:   userID,
		now:      time.Now,
	}
}

// inbound is a frame sent by an app. Only "ping" is answered; apps use the
// pong's server time to line their local day up with due dates.
type inbound struct {
	Type string `json:"type"`
}

// Run registers the client and serves it until the connection or ctx ends.
func (c *Client) Run(ctx context.Context) {
	c.hub.Register(c)
	defer c.hub.Unregister(c)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.conn.SetReadLimit(maxFrameBytes)
	c.enqueue(c.hello())

	go c.writePump(ctx)
	c.readPump(ctx)
}

func (c *Client) hello() Message {
	return NewMessage("session", "connected", c.userID, map[string]any{
		"server_time": c.now().UTC().Format(time.RFC3339),
	})
}

func (c *Client) readPump(ctx context.Context) {
	for {
		typ, data, err := c.conn.Read(ctx)
		if err != nil {
			return
		}
		if typ != ws.MessageText {
			continue
		}
		if reply, ok := c.reply(data); ok {
			c.enqueue(reply)
		}
	}
}

// reply answers an inbound frame. Malformed or unknown frames get no answer.
func (c *Client) reply(data []byte) (Message, bool) {
	var in inbound
	if err := json.Unmarshal(data, &in); err != nil {
		return Message{}, false
	}
	switch in.Type {
	case "ping":
		return Message{Type: "pong", Extra: map[string]any{
			"server_time": c.now().UTC().Format(time.RFC3339),
		}}, true
	}
	return Message{}, false
}

// enqueue queues msg for this client only, dropping it when the buffer is full.
func (c *Client) enqueue(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if _, ok := c.hub.families[c.familyID][c]; !ok {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.Write(ctx, ws.MessageText, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.Ping(ctx); err != nil {
				return
			}
		case <-ctx.Done():
			c.conn.Close(ws.StatusGoingAway, "server shutting down")
			return
		}
	}
}
