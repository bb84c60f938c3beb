package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"leaf_backend/internal/feature/detection/domain/entity"
	"leaf_backend/internal/feature/detection/usecase"
)

// SessionMemory is an in-process session store used when Redis is not configured.
// Sessions are stored as JSON copies so callers never share state.
type SessionMemory struct {
	mu    sync.Mutex
	items map[string]memoryItem
	ttl   time.Duration
	now   func() time.Time
}

type memoryItem struct {
	data      []byte
	expiresAt time.Time
}

var _ usecase.SessionRepository = (*SessionMemory)(nil)

// NewSessionMemory creates a new SessionMemory instance.
func NewSessionMemory(ttl time.Duration) *SessionMemory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &SessionMemory{
		items: make(map[string]memoryItem),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Find retrieves a session by its ID.
func (m *SessionMemory) Find(_ context.Context, id string) (*entity.SessionState, error) {
	m.mu.Lock()
	item, ok := m.items[id]
	if ok && !m.now().Before(item.expiresAt) {
		delete(m.items, id)
		ok = false
	}
	m.mu.Unlock()

	if !ok {
		return nil, usecase.ErrSessionNotFound
	}

	var s entity.SessionState
	if err := json.Unmarshal(item.data, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &s, nil
}

// Save persists the session and refreshes its TTL.
// Expired entries are swept on write.
func (m *SessionMemory) Save(_ context.Context, s *entity.SessionState) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for id, item := range m.items {
		if !now.Before(item.expiresAt) {
			delete(m.items, id)
		}
	}
	m.items[s.ID] = memoryItem{data: data, expiresAt: now.Add(m.ttl)}
	return nil
}

// Delete removes the session.
func (m *SessionMemory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, id)
	return nil
}
