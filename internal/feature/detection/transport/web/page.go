// Package web はdetectionフィーチャーの単一ページのフロントエンドを提供します。
package web

import (
	"embed"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"

	"leaf_backend/internal/feature/detection/domain/entity"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Templates はページのテンプレートを返します。
func Templates() (*template.Template, error) {
	return template.ParseFS(templatesFS, "templates/*.html")
}

// PageHandler はプロファイルに応じたページを描画します。
type PageHandler struct {
	profile       entity.Profile
	adviceEnabled bool
}

// NewPageHandler はPageHandlerの新しいインスタンスを生成します。
func NewPageHandler(profile entity.Profile, adviceEnabled bool) *PageHandler {
	return &PageHandler{profile: profile, adviceEnabled: adviceEnabled}
}

// Index はトップページを返します。
//
// エンドポイント: GET /
func (h *PageHandler) Index(c *gin.Context) {
	th := h.profile.EffectiveThresholds()
	c.Header("Cache-Control", "no-store")
	c.HTML(http.StatusOK, "index.html", gin.H{
		"Title":          h.profile.Title,
		"Profile":        h.profile.Name,
		"CaptureEnabled": h.profile.CaptureEnabled,
		"ShowDetections": h.profile.ShowDetections,
		"AdviceEnabled":  h.adviceEnabled,
		"Confidence":     entity.FormatConfidence(th.Confidence),
		"IoU":            th.IoU,
	})
}
