package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
)

// Message is a real-time change event pushed to a family's clients.
type Message struct {
	Type   string         `json:"type"`
	Entity string         `json:"entity"`
	Action string         `json:"action"`
	ID     int64          `json:"id,omitempty"`
	Extra  map[string]any `json:"extra,omitempty"`
}

// NewMessage creates a Message with the Type field derived from entity and action.
func NewMessage(entity, action string, id int64, extra map[string]any) Message {
	return Message{
		Type:   fmt.Sprintf("%s_%s", entity, action),
		Entity: entity,
		Action: action,
		ID:     id,
		Extra:  extra,
	}
}

// Hub tracks connected clients per family. Messages never cross families.
type Hub struct {
	mu       sync.RWMutex
	families map[int64]map[*Client]struct{}
	logger   *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		families: make(map[int64]map[*Client]struct{}),
		logger:   logger.With("component", "websocket"),
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	clients, ok := h.families[c.familyID]
	if !ok {
		clients = make(map[*Client]struct{})
		h.families[c.familyID] = clients
	}
	clients[c] = struct{}{}
}

// Unregister removes a client and closes its send channel. It is safe to
// call more than once.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	clients, ok := h.families[c.familyID]
	if !ok {
		return
	}
	if _, ok := clients[c]; !ok {
		return
	}
	delete(clients, c)
	close(c.send)
	if len(clients) == 0 {
		delete(h.families, c.familyID)
	}
}

// Broadcast sends msg to every client of the family.
func (h *Hub) Broadcast(familyID int64, msg Message) {
	h.send(familyID, 0, msg)
}

// SendToUser sends msg only to the given user's connections.
func (h *Hub) SendToUser(familyID, userID int64, msg Message) {
	h.send(familyID, userID, msg)
}

func (h *Hub) send(familyID, userID int64, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal broadcast", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.families[familyID] {
		if userID != 0 && c.userID != userID {
			continue
		}
		select {
		case c.send <- data:
		default:
			// slow client, drop
		}
	}
}

// ClientCount returns the number of connected clients across all families.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, clients := range h.families {
		n += len(clients)
	}
	return n
}
