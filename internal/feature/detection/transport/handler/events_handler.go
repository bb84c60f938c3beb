package handler

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"leaf_backend/internal/feature/detection/domain/entity"
	jwtmw "leaf_backend/internal/platform/jwt"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	readLimit  = 512
)

// EventSubscriber はセッションの状態遷移イベントを購読します。
type EventSubscriber interface {
	Subscribe(sessionID string) (<-chan entity.Event, func())
}

// EventsHandler はセッションイベントをWebSocketで配信します。
type EventsHandler struct {
	uc       DetectionUsecase
	events   EventSubscriber
	upgrader websocket.Upgrader
}

// NewEventsHandler はEventsHandlerの新しいインスタンスを生成します。
// allowedOrigins は同一オリジンに加えてWebSocket接続を許可するオリジンです（CORS設定と同じ値）。
func NewEventsHandler(uc DetectionUsecase, events EventSubscriber, allowedOrigins []string) *EventsHandler {
	return &EventsHandler{
		uc:     uc,
		events: events,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

// originChecker はOriginヘッダーが無い、同一オリジン、または許可リストに含まれる場合に接続を許可します。
func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	wildcard := false
	for _, o := range allowed {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "*" {
			wildcard = true
		}
		set[strings.ToLower(o)] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if wildcard {
			return true
		}
		if _, ok := set[strings.ToLower(strings.TrimRight(origin, "/"))]; ok {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return strings.EqualFold(u.Host, r.Host)
	}
}

// Stream はWebSocketに昇格し、接続中のセッションのイベントを送信します。
// 接続直後に現在の状態を "snapshot" イベントとして送ります。
//
// エンドポイント: GET /v1/session/events
func (h *EventsHandler) Stream(c *gin.Context) {
	sessionID := jwtmw.SessionID(c)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Warn("WebSocketへの昇格に失敗", "error", err, "remote_addr", c.ClientIP())
		return
	}
	defer func() { _ = conn.Close() }()

	events, cancel := h.events.Subscribe(sessionID)
	defer cancel()

	slog.Info("イベント購読を開始", "session_id", sessionID)

	if view, err := h.uc.View(c.Request.Context(), sessionID); err == nil {
		snapshot := entity.NewEvent(entity.EventSnapshot, view.Session)
		if err := writeEvent(conn, snapshot); err != nil {
			return
		}
	}

	// 読み取りループはクライアントの切断とpongの検知のみに使う
	done := make(chan struct{})
	conn.SetReadLimit(readLimit)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			slog.Info("イベント購読を終了", "session_id", sessionID)
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := writeEvent(conn, ev); err != nil {
				slog.Warn("イベントの送信に失敗", "error", err, "session_id", sessionID)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func writeEvent(conn *websocket.Conn, ev entity.Event) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(toSessionEvent(ev))
}
