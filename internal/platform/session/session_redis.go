package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"leaf_backend/internal/feature/detection/domain/entity"
	"leaf_backend/internal/feature/detection/usecase"
)

// DefaultTTL is the idle lifetime of a session when none is configured.
const DefaultTTL = 2 * time.Hour

// SessionRedis implements usecase.SessionRepository using Redis.
// Every Save refreshes the TTL, so sessions expire after ttl of inactivity.
type SessionRedis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var _ usecase.SessionRepository = (*SessionRedis)(nil)

// NewSessionRedis creates a new SessionRedis instance.
func NewSessionRedis(client *redis.Client, prefix string, ttl time.Duration) *SessionRedis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &SessionRedis{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

// sessionKey returns the Redis key for a session.
func (r *SessionRedis) sessionKey(id string) string {
	return fmt.Sprintf("%s:%s", r.prefix, id)
}

// Find retrieves a session by its ID.
func (r *SessionRedis) Find(ctx context.Context, id string) (*entity.SessionState, error) {
	data, err := r.client.Get(ctx, r.sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, usecase.ErrSessionNotFound
		}
		return nil, err
	}

	var s entity.SessionState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	return &s, nil
}

// Save persists the session, overwriting any previous state.
func (r *SessionRedis) Save(ctx context.Context, s *entity.SessionState) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	return r.client.Set(ctx, r.sessionKey(s.ID), data, r.ttl).Err()
}

// Delete removes the session. Deleting a missing session is not an error.
func (r *SessionRedis) Delete(ctx context.Context, id string) error {
	return r.client.Del(ctx, r.sessionKey(id)).Err()
}
