package di

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"leaf_backend/internal/app/config"
	"leaf_backend/internal/feature/detection/adapters/gemini"
	"leaf_backend/internal/feature/detection/usecase"
	"leaf_backend/internal/platform/cache"
	infrahttp "leaf_backend/internal/platform/http"
	"leaf_backend/internal/shared/ratelimiter"
)

// NewAdviceGenerator creates a rate limited Gemini advisor wrapped in the Redis cache.
// It returns nil when advice is disabled.
func NewAdviceGenerator(ctx context.Context, cfg config.Config, rdb *redis.Client) (usecase.AdviceGenerator, error) {
	if !cfg.GeminiEnabled {
		return nil, nil
	}
	httpClient := infrahttp.NewHTTPClient(cfg.GeminiTimeout)
	limiter := ratelimiter.NewRateLimiter(cfg.GeminiRateLimit, time.Minute)
	advisor, err := gemini.NewGeminiAdvisor(ctx, httpClient, cfg.GeminiModel, limiter)
	if err != nil {
		return nil, err
	}
	return cache.NewCachingAdviceGenerator(rdb, cfg.AdviceCacheTTL, advisor, "advice"), nil
}
