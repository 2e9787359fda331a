package websocket

import (
	"encoding/json"
	"sync"
	"time"
)

// CapitalUpdate is pushed to every connected admin after a ledger entry commits.
type CapitalUpdate struct {
	TransactionID int64     `json:"transaction_id"`
	Type          string    `json:"type"`
	Amount        string    `json:"amount"`
	Balance       string    `json:"balance"`
	PostedAt      time.Time `json:"posted_at"`
}

type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]string
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[*Client]string),
	}
}

func (h *Hub) Register(adminID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client] = adminID
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, client)
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// BroadcastCapital never blocks; clients with a full buffer miss the update.
func (h *Hub) BroadcastCapital(update CapitalUpdate) {
	payload, _ := json.Marshal(update)
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		select {
		case client.send <- payload:
		default:
		}
	}
}
