// Package handler はdetectionフィーチャーのHTTPハンドラーを提供します。
package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"leaf_backend/internal/api"
	"leaf_backend/internal/feature/detection/domain/entity"
	"leaf_backend/internal/feature/detection/usecase"
	jwtmw "leaf_backend/internal/platform/jwt"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
	// multipartOverhead はファイル以外のmultipart部分（境界・ヘッダー）に許す余裕です。
	multipartOverhead = 1 << 20
)

// DetectionUsecase は入力取得・推論・表示・リセットのユースケースインターフェースを定義します。
// Goの慣例に従い、インターフェースは利用者（handler）側で定義します。
type DetectionUsecase interface {
	Profile() entity.Profile
	View(ctx context.Context, sessionID string) (*usecase.SessionView, error)
	Upload(ctx context.Context, sessionID string, data []byte) (*usecase.SessionView, error)
	EnableCamera(ctx context.Context, sessionID string) (*usecase.SessionView, error)
	DisableCamera(ctx context.Context, sessionID string) (*usecase.SessionView, error)
	Capture(ctx context.Context, sessionID string, frame []byte) (*usecase.SessionView, error)
	Detect(ctx context.Context, sessionID string) (*usecase.DetectOutcome, error)
	ResultImage(ctx context.Context, sessionID string) ([]byte, string, error)
	Reset(ctx context.Context, sessionID string) (*usecase.SessionView, error)
	History(ctx context.Context, sessionID string, limit int) ([]entity.DetectionRecord, error)
}

// AdviceUsecase は手当ての助言のユースケースインターフェースを定義します。
type AdviceUsecase interface {
	Advise(ctx context.Context, sessionID string) (*entity.Advice, error)
}

// DetectionHandler は検出パイプラインのHTTPリクエストを処理します。
type DetectionHandler struct {
	uc       DetectionUsecase
	advice   AdviceUsecase
	maxBytes int64
}

// NewDetectionHandler はDetectionHandlerの新しいインスタンスを生成します。
// maxBytes はアップロード画像の最大サイズです。
func NewDetectionHandler(uc DetectionUsecase, advice AdviceUsecase, maxBytes int64) *DetectionHandler {
	if maxBytes <= 0 {
		maxBytes = usecase.MaxImageSize
	}
	return &DetectionHandler{uc: uc, advice: advice, maxBytes: maxBytes}
}

// GetSession は現在のセッション状態を返します。
//
// エンドポイント: GET /v1/session
func (h *DetectionHandler) GetSession(c *gin.Context) {
	view, err := h.uc.View(c.Request.Context(), jwtmw.SessionID(c))
	if err != nil {
		h.writeError(c, err, "セッションの取得に失敗しました")
		return
	}
	c.JSON(http.StatusOK, toSessionResponse(view))
}

// UploadImage は画像をアップロードして現在の画像を置き換えます。
//
// エンドポイント: POST /v1/session/image
// Content-Type: multipart/form-data
// フィールド: image（JPEG/PNG、既定で最大10MB）
func (h *DetectionHandler) UploadImage(c *gin.Context) {
	if !h.limitBody(c) {
		return
	}
	file, err := c.FormFile("image")
	if isBodyTooLarge(err) {
		h.writeError(c, fmt.Errorf("%w: %w", usecase.ErrImageTooLarge, err), "")
		return
	}
	if err != nil {
		slog.Warn("画像ファイルの取得に失敗", "error", err, "remote_addr", c.ClientIP())
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "画像ファイルが必要です"})
		return
	}

	data, err := h.readFile(file)
	if err != nil {
		h.writeError(c, err, "画像の読み込みに失敗しました")
		return
	}

	view, err := h.uc.Upload(c.Request.Context(), jwtmw.SessionID(c), data)
	if err != nil {
		h.writeError(c, err, "画像の保存に失敗しました")
		return
	}
	c.JSON(http.StatusOK, toSessionResponse(view))
}

// EnableCamera はカメラモードを有効にします。
//
// エンドポイント: POST /v1/session/camera
func (h *DetectionHandler) EnableCamera(c *gin.Context) {
	view, err := h.uc.EnableCamera(c.Request.Context(), jwtmw.SessionID(c))
	if err != nil {
		h.writeError(c, err, "カメラの有効化に失敗しました")
		return
	}
	c.JSON(http.StatusOK, toSessionResponse(view))
}

// DisableCamera はカメラモードを無効にします（撮影のキャンセル）。
//
// エンドポイント: DELETE /v1/session/camera
func (h *DetectionHandler) DisableCamera(c *gin.Context) {
	view, err := h.uc.DisableCamera(c.Request.Context(), jwtmw.SessionID(c))
	if err != nil {
		h.writeError(c, err, "カメラの無効化に失敗しました")
		return
	}
	c.JSON(http.StatusOK, toSessionResponse(view))
}

// CaptureImage はカメラのフレームで現在の画像を置き換えます。
// frame フィールドが無い場合はサーバー側のカメラデバイスから取得します。
//
// エンドポイント: POST /v1/session/capture
// Content-Type: multipart/form-data（任意）
// フィールド: frame（JPEG/PNG）
func (h *DetectionHandler) CaptureImage(c *gin.Context) {
	if !h.limitBody(c) {
		return
	}
	var frame []byte
	if file, err := c.FormFile("frame"); err == nil {
		frame, err = h.readFile(file)
		if err != nil {
			h.writeError(c, err, "フレームの読み込みに失敗しました")
			return
		}
	} else if isBodyTooLarge(err) {
		h.writeError(c, fmt.Errorf("%w: %w", usecase.ErrImageTooLarge, err), "")
		return
	} else if !errors.Is(err, http.ErrMissingFile) && !errors.Is(err, http.ErrNotMultipart) {
		slog.Warn("フレームの取得に失敗", "error", err, "remote_addr", c.ClientIP())
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "フレームの形式が不正です"})
		return
	}

	view, err := h.uc.Capture(c.Request.Context(), jwtmw.SessionID(c), frame)
	if err != nil {
		h.writeError(c, err, "撮影に失敗しました")
		return
	}
	c.JSON(http.StatusOK, toSessionResponse(view))
}

// Detect は現在の画像に対して推論を実行します。
//
// エンドポイント: POST /v1/session/detect
func (h *DetectionHandler) Detect(c *gin.Context) {
	out, err := h.uc.Detect(c.Request.Context(), jwtmw.SessionID(c))
	if err != nil {
		h.writeError(c, err, "検出に失敗しました")
		return
	}

	view := &usecase.SessionView{
		Session:      out.Session,
		State:        out.Session.State(),
		Presentation: out.Presentation,
		Profile:      h.uc.Profile(),
	}
	c.JSON(http.StatusOK, api.DetectResponse{
		Session:  toSessionResponse(view),
		ResultId: out.Result.ID,
		Count:    len(out.Result.Detections),
		Result:   toResultView(out.Presentation, out.Result.ID),
	})
}

// ResultImage は描画済み画像をインラインで返します。
//
// エンドポイント: GET /v1/session/result/image
func (h *DetectionHandler) ResultImage(c *gin.Context) {
	data, _, err := h.uc.ResultImage(c.Request.Context(), jwtmw.SessionID(c))
	if err != nil {
		h.writeError(c, err, "結果画像の取得に失敗しました")
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/jpeg", data)
}

// DownloadResult は描画済み画像を添付ファイルとして返します。
//
// エンドポイント: GET /v1/session/result/download
func (h *DetectionHandler) DownloadResult(c *gin.Context) {
	data, name, err := h.uc.ResultImage(c.Request.Context(), jwtmw.SessionID(c))
	if err != nil {
		h.writeError(c, err, "結果画像の取得に失敗しました")
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, "image/jpeg", data)
}

// GetAdvice は直近の結果のうち最も信頼度の高いクラスについて手当ての助言を返します。
//
// エンドポイント: GET /v1/session/result/advice
func (h *DetectionHandler) GetAdvice(c *gin.Context) {
	advice, err := h.advice.Advise(c.Request.Context(), jwtmw.SessionID(c))
	if err != nil {
		h.writeError(c, err, "助言の生成に失敗しました")
		return
	}
	c.JSON(http.StatusOK, api.AdviceResponse{Label: advice.Label, Advice: advice.Text})
}

// ResetSession はセッションを初期状態に戻します。
//
// エンドポイント: POST /v1/session/reset
func (h *DetectionHandler) ResetSession(c *gin.Context) {
	view, err := h.uc.Reset(c.Request.Context(), jwtmw.SessionID(c))
	if err != nil {
		h.writeError(c, err, "リセットに失敗しました")
		return
	}
	c.JSON(http.StatusOK, toSessionResponse(view))
}

// GetHistory はセッションの推論履歴を新しい順に返します。
//
// エンドポイント: GET /v1/history?limit=20
func (h *DetectionHandler) GetHistory(c *gin.Context) {
	var params api.GetHistoryParams
	if err := c.ShouldBindQuery(&params); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "limit は1〜100の整数で指定してください"})
		return
	}
	limit := defaultHistoryLimit
	if params.Limit != nil {
		limit = *params.Limit
	}
	if limit < 1 || limit > maxHistoryLimit {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "limit は1〜100の整数で指定してください"})
		return
	}

	records, err := h.uc.History(c.Request.Context(), jwtmw.SessionID(c), limit)
	if err != nil {
		h.writeError(c, err, "履歴の取得に失敗しました")
		return
	}

	items := make([]api.HistoryItem, 0, len(records))
	for _, r := range records {
		items = append(items, toHistoryItem(r))
	}
	c.JSON(http.StatusOK, api.HistoryResponse{Items: items})
}

// readFile はアップロードされたファイルを最大サイズまで読み込みます。
// limitBody はmultipartの解析前にリクエストボディの大きさを制限します。
// Content-Length が上限を超える場合はボディを読まずに413を返し、falseを返します。
func (h *DetectionHandler) limitBody(c *gin.Context) bool {
	limit := h.maxBytes + multipartOverhead
	if c.Request.ContentLength > limit {
		h.writeError(c, fmt.Errorf("%w: request body %d bytes", usecase.ErrImageTooLarge, c.Request.ContentLength), "")
		return false
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
	return true
}

func isBodyTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}

func (h *DetectionHandler) readFile(file *multipart.FileHeader) ([]byte, error) {
	if file.Size > h.maxBytes {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", usecase.ErrImageTooLarge, file.Size, h.maxBytes)
	}

	f, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open upload: %w", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			slog.Warn("画像ファイルのクローズに失敗", "error", err)
		}
	}()

	data, err := io.ReadAll(io.LimitReader(f, h.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(data)) > h.maxBytes {
		return nil, fmt.Errorf("%w: exceeds %d bytes", usecase.ErrImageTooLarge, h.maxBytes)
	}
	return data, nil
}

// writeError はユースケースのエラーをHTTPステータスに変換して返します。
func (h *DetectionHandler) writeError(c *gin.Context, err error, fallback string) {
	status, msg := http.StatusInternalServerError, fallback
	switch {
	case errors.Is(err, usecase.ErrImageTooLarge):
		status, msg = http.StatusRequestEntityTooLarge, "画像サイズが上限を超えています（最大"+strconv.FormatInt(h.maxBytes>>20, 10)+"MB）"
	case errors.Is(err, usecase.ErrEmptyImage):
		status, msg = http.StatusBadRequest, "画像ファイルが空です"
	case errors.Is(err, usecase.ErrUnsupportedFormat):
		status, msg = http.StatusBadRequest, "JPEGまたはPNG画像のみ対応しています"
	case errors.Is(err, usecase.ErrInvalidImage):
		status, msg = http.StatusBadRequest, "画像を読み込めませんでした"
	case errors.Is(err, usecase.ErrNoFrame):
		status, msg = http.StatusBadRequest, "フレームが必要です"
	case errors.Is(err, usecase.ErrNoImage):
		status, msg = http.StatusConflict, "画像が選択されていません"
	case errors.Is(err, usecase.ErrCameraDisabled):
		status, msg = http.StatusConflict, "カメラが有効になっていません"
	case errors.Is(err, usecase.ErrCameraUnavailable):
		status, msg = http.StatusConflict, "このプロファイルではカメラを利用できません"
	case errors.Is(err, usecase.ErrNoResult), errors.Is(err, usecase.ErrSessionNotFound):
		status, msg = http.StatusNotFound, "検出結果がありません"
	case errors.Is(err, usecase.ErrAdviceUnavailable):
		status, msg = http.StatusServiceUnavailable, "助言機能は無効です"
	case errors.Is(err, usecase.ErrInference), errors.Is(err, usecase.ErrAdviceFailed):
		status = http.StatusBadGateway
	}

	if status >= http.StatusInternalServerError {
		slog.Error(fallback, "error", err, "session_id", jwtmw.SessionID(c))
	} else {
		slog.Warn(msg, "error", err, "session_id", jwtmw.SessionID(c), "remote_addr", c.ClientIP())
	}
	c.JSON(status, api.ErrorResponse{Error: msg})
}
