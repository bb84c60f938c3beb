package ratelimiter

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// Limiter は、API呼び出しなどの操作の頻度を制限するインターフェースです。
type Limiter interface {
	Wait(ctx context.Context) error
}

// RateLimiterは、interval あたり limit 回までの呼び出しを許可します。複数のgoroutineから安全に使えます。
// トークンバケットは golang.org/x/time/rate に任せます。
type RateLimiter struct {
	limiter *rate.Limiter
	limit   int
}

var _ Limiter = (*RateLimiter)(nil)

// NewRateLimiterは新しいRateLimiterのインスタンスを生成します。
// limit が0以下の場合は1として扱います。
func NewRateLimiter(limit int, interval time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = 1
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Every(interval/time.Duration(limit)), limit),
		limit:   limit,
	}
}

// Waitは呼び出し枠が空くまで待機します。
// 待機中に ctx がキャンセルされた場合、または期限内に枠が空かない場合はエラーを返します。
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if !rl.limiter.Allow() {
		slog.Warn("rate limit reached, waiting", "limit", rl.limit)
		return rl.limiter.Wait(ctx)
	}
	return nil
}
