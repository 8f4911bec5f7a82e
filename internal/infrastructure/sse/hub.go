package sse

import (
	"sync"
	"time"

	"github.com/caseflow/caseflow/internal/application/dispatcher"
)

// RenderEvent is one rendered outcome pushed to connected renderers.
type RenderEvent struct {
	ChannelID string             `json:"channelId"`
	ActorID   string             `json:"actorId"`
	Outcome   dispatcher.Outcome `json:"outcome"`
}

// Client is one connected renderer stream.
type Client struct {
	ClientID    string
	ConnectedAt time.Time
	Events      chan *RenderEvent
	closeOnce   sync.Once
}

func NewClient(clientID string) *Client {
	return &Client{
		ClientID:    clientID,
		ConnectedAt: time.Now().UTC(),
		Events:      make(chan *RenderEvent, 100),
	}
}

// Close closes the client's event channel.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.Events) })
}

// Hub fans rendered outcomes out to connected renderer clients. Sends
// never block the dispatcher: a client with a full buffer misses the
// event.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string]*Client)}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ClientID] = client
}

func (h *Hub) Unregister(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[clientID]; ok {
		c.Close()
		delete(h.clients, clientID)
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast delivers ev to every connected renderer and reports how many
// accepted it.
func (h *Hub) Broadcast(ev *RenderEvent) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	sent := 0
	for _, c := range h.clients {
		select {
		case c.Events <- ev:
			sent++
		default:
		}
	}
	return sent
}

// Stop closes every connected client.
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		c.Close()
		delete(h.clients, id)
	}
}
