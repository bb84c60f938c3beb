// Package cache provides caching decorators for usecase interfaces.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"leaf_backend/internal/feature/detection/usecase"
)

const (
	// DefaultAdviceTTL is how long generated advice is reused.
	DefaultAdviceTTL = 24 * time.Hour
	defaultNamespace = "advice"
)

// CachingAdviceGenerator decorates an AdviceGenerator with Redis caching.
// Prompts are deterministic per label, so the cache is effectively per label.
type CachingAdviceGenerator struct {
	inner     usecase.AdviceGenerator
	rdb       *redis.Client
	ttl       time.Duration
	namespace string
}

var _ usecase.AdviceGenerator = (*CachingAdviceGenerator)(nil)

// NewCachingAdviceGenerator decorates an AdviceGenerator with Redis caching.
// If ttl is 0, it defaults to 24 hours. If namespace is empty, it uses "advice".
// A nil rdb disables caching.
func NewCachingAdviceGenerator(rdb *redis.Client, ttl time.Duration, inner usecase.AdviceGenerator, namespace string) *CachingAdviceGenerator {
	if ttl <= 0 {
		ttl = DefaultAdviceTTL
	}
	if namespace == "" {
		namespace = defaultNamespace
	}
	return &CachingAdviceGenerator{
		inner:     inner,
		rdb:       rdb,
		ttl:       ttl,
		namespace: namespace,
	}
}

// Generate returns cached advice for the prompt, falling back to the inner generator.
func (c *CachingAdviceGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	// Bypass cache if Redis is not configured
	if c.rdb == nil {
		return c.inner.Generate(ctx, prompt)
	}

	key := c.cacheKey(prompt)

	// 1) Check cache
	text, err := c.rdb.Get(ctx, key).Result()
	switch {
	case err == nil && text != "":
		return text, nil
	case err != nil && !errors.Is(err, redis.Nil):
		slog.Warn("advice cache read failed", "key", key, "error", err)
	}

	// 2) Fallback to generator
	text, err = c.inner.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}

	// 3) Store in cache (best effort)
	if err := c.rdb.Set(ctx, key, text, c.ttl).Err(); err != nil {
		slog.Warn("advice cache write failed", "key", key, "error", err)
	}

	return text, nil
}

// cacheKey generates a cache key for a prompt.
func (c *CachingAdviceGenerator) cacheKey(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return fmt.Sprintf("%s:%s", c.namespace, hex.EncodeToString(sum[:]))
}
