// Package events fans session state events out to live subscribers.
package events

import (
	"log/slog"
	"sync"

	"leaf_backend/internal/feature/detection/domain/entity"
	"leaf_backend/internal/feature/detection/usecase"
)

// subscriberBuffer is the per-subscriber queue length. Slow subscribers drop events.
const subscriberBuffer = 16

// Hub delivers events published for a session to every subscriber of that session.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*subscriber]struct{}
}

type subscriber struct {
	ch chan entity.Event
}

var _ usecase.EventPublisher = (*Hub)(nil)

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[string]map[*subscriber]struct{})}
}

// Subscribe registers a subscriber for the session. The returned cancel func
// unregisters it and closes the channel; it is safe to call more than once.
func (h *Hub) Subscribe(sessionID string) (<-chan entity.Event, func()) {
	sub := &subscriber{ch: make(chan entity.Event, subscriberBuffer)}

	h.mu.Lock()
	set, ok := h.clients[sessionID]
	if !ok {
		set = make(map[*subscriber]struct{})
		h.clients[sessionID] = set
	}
	set[sub] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if set, ok := h.clients[sessionID]; ok {
				delete(set, sub)
				if len(set) == 0 {
					delete(h.clients, sessionID)
				}
			}
			close(sub.ch)
		})
	}
	return sub.ch, cancel
}

// Publish sends ev to the session's subscribers without blocking.
func (h *Hub) Publish(sessionID string, ev entity.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.clients[sessionID] {
		select {
		case sub.ch <- ev:
		default:
			slog.Warn("dropping session event for slow subscriber", "session_id", sessionID, "type", ev.Type)
		}
	}
}

// SubscriberCount returns the number of subscribers across all sessions.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.clients {
		n += len(set)
	}
	return n
}
