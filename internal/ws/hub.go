package ws

import (
	"sync"

	"sodmax/internal/logger"
)

// Hub tracks connected clients per user and fans notifications out to them
type Hub struct {
	mu      sync.RWMutex
	clients map[int64]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[int64]map[*Client]struct{})}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.clients[c.UserID]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[c.UserID] = set
	}
	set[c] = struct{}{}
}

func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.clients[c.UserID]
	if !ok {
		return
	}
	if _, ok := set[c]; ok {
		delete(set, c)
		close(c.Send)
	}
	if len(set) == 0 {
		delete(h.clients, c.UserID)
	}
}

// SendToUser queues msg for every connection of userID. Slow clients drop the message.
func (h *Hub) SendToUser(userID int64, msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients[userID] {
		select {
		case c.Send <- msg:
		default:
			logger.Warn("ws send buffer full, dropping message", "user_id", userID)
		}
	}
}

// Connected returns how many connections userID has open
func (h *Hub) Connected(userID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// CloseUser drops every connection of userID (logout, reset)
func (h *Hub) CloseUser(userID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients[userID] {
		close(c.Send)
	}
	delete(h.clients, userID)
}
