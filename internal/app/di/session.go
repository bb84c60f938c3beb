package di

import (
	"time"

	"github.com/redis/go-redis/v9"

	"leaf_backend/internal/feature/detection/usecase"
	"leaf_backend/internal/platform/session"
)

// NewSessionRepository creates a SessionRepository implementation.
// If Redis is available, it returns a Redis-backed implementation.
// Otherwise, it falls back to an in-process store.
func NewSessionRepository(rdb *redis.Client, ttl time.Duration) usecase.SessionRepository {
	if rdb != nil {
		return session.NewSessionRedis(rdb, "session", ttl)
	}
	return session.NewSessionMemory(ttl)
}
