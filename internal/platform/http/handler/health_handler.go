// Package handler はプラットフォームレベルのエンドポイント用HTTPハンドラーを提供します。
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// checkTimeout は各依存チェックの最大時間です。
const checkTimeout = 2 * time.Second

// Check は依存先（モデル・Redis・DBなど）の準備状態を確認する関数です。
type Check func(ctx context.Context) error

// NewHealth はサービスヘルスチェック用の /healthz エンドポイントを返します。
// checks のいずれかが失敗した場合、GETでは503と失敗理由を返します。
func NewHealth(checks map[string]Check) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 明示的にキャッシュを防止
		c.Header("Cache-Control", "no-store")

		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusNoContent)
			return
		}

		results := make(map[string]string, len(checks))
		status, code := "ok", http.StatusOK
		for name, check := range checks {
			ctx, cancel := context.WithTimeout(c.Request.Context(), checkTimeout)
			err := check(ctx)
			cancel()
			if err != nil {
				results[name] = err.Error()
				status, code = "degraded", http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}

		if c.Request.Method == http.MethodHead {
			c.Status(code)
			return
		}
		c.JSON(code, gin.H{"status": status, "checks": results})
	}
}
