package router

import (
	"html/template"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"leaf_backend/internal/feature/detection/transport/handler"
	"leaf_backend/internal/feature/detection/transport/web"
)

// Deps はルーターに登録するハンドラー群です。
type Deps struct {
	Detection *handler.DetectionHandler
	Events    *handler.EventsHandler
	Page      *web.PageHandler
	Templates *template.Template
	Health    gin.HandlerFunc
	Metrics   http.Handler
	// Session は匿名セッションを解決するミドルウェア（jwtmw.SessionRequired）
	Session gin.HandlerFunc
	// CORSOrigins が空でなければ別オリジンのクライアントを許可する
	CORSOrigins []string
}

func NewRouter(d Deps) *gin.Engine {
	r := gin.Default()
	r.SetHTMLTemplate(d.Templates)
	if len(d.CORSOrigins) > 0 {
		cc := cors.DefaultConfig()
		cc.AllowOrigins = d.CORSOrigins
		cc.AllowCredentials = true
		cc.AllowHeaders = append(cc.AllowHeaders, "Authorization")
		cc.ExposeHeaders = []string{"X-Session-Token", "Content-Disposition"}
		r.Use(cors.New(cc))
	}

	// セッション不要
	// 導通確認用
	r.GET("/healthz", d.Health)
	r.HEAD("/healthz", d.Health)
	r.OPTIONS("/healthz", d.Health)
	r.GET("/metrics", gin.WrapH(d.Metrics))

	// セッション必須のルート
	// Cookie が無ければ新しい匿名セッションを発行する
	s := r.Group("/")
	s.Use(d.Session)
	{
		s.GET("/", d.Page.Index)

		v1 := s.Group("/v1")
		v1.GET("/session", d.Detection.GetSession)
		v1.POST("/session/image", d.Detection.UploadImage)
		v1.POST("/session/camera", d.Detection.EnableCamera)
		v1.DELETE("/session/camera", d.Detection.DisableCamera)
		v1.POST("/session/capture", d.Detection.CaptureImage)
		v1.POST("/session/detect", d.Detection.Detect)
		v1.GET("/session/result/image", d.Detection.ResultImage)
		v1.GET("/session/result/download", d.Detection.DownloadResult)
		v1.GET("/session/result/advice", d.Detection.GetAdvice)
		v1.POST("/session/reset", d.Detection.ResetSession)
		v1.GET("/session/events", d.Events.Stream)
		v1.GET("/history", d.Detection.GetHistory)
	}

	return r
}
