// Package notify fans snapshot-change signals out to the subscribers of
// each user, typically SSE connections.
package notify

import (
	"sync"
	"time"
)

// Event tells a subscriber that the user's snapshot changed. It carries no
// data; subscribers reload and recompute.
type Event struct {
	Reason string    `json:"reason"`
	At     time.Time `json:"at"`
}

const bufferSize = 8

// Hub is a per-user broadcast hub. The zero value is not usable; use NewHub.
type Hub struct {
	mu      sync.Mutex
	clients map[string]map[chan Event]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string]map[chan Event]struct{})}
}

// Subscribe registers a client for userID. Returns the channel and an
// unsubscribe func that closes it; calling the func twice is safe.
func (h *Hub) Subscribe(userID string) (<-chan Event, func()) {
	ch := make(chan Event, bufferSize)

	h.mu.Lock()
	set, ok := h.clients[userID]
	if !ok {
		set = make(map[chan Event]struct{})
		h.clients[userID] = set
	}
	set[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(set, ch)
			if len(set) == 0 {
				delete(h.clients, userID)
			}
			close(ch)
		})
	}
}

// Publish delivers ev to every subscriber of userID and returns how many
// received it. Slow clients whose buffer is full miss the event; the next
// one still triggers a full reload.
func (h *Hub) Publish(userID string, ev Event) int {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	delivered := 0
	for ch := range h.clients[userID] {
		select {
		case ch <- ev:
			delivered++
		default:
		}
	}
	return delivered
}

// ClientCount returns the number of connected clients across all users.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, set := range h.clients {
		n += len(set)
	}
	return n
}
