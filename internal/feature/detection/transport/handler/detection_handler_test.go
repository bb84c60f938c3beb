package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leaf_backend/internal/api"
	"leaf_backend/internal/feature/detection/domain/entity"
	"leaf_backend/internal/feature/detection/transport/handler"
	"leaf_backend/internal/feature/detection/usecase"
	jwtmw "leaf_backend/internal/platform/jwt"
)

const testSessionID = "3b241101-e2bb-4255-8caf-4136c566a962"

// mockDetectionUsecase はDetectionUsecaseインターフェースのモック実装です。
type mockDetectionUsecase struct {
	profile           entity.Profile
	ViewFunc          func(ctx context.Context, sessionID string) (*usecase.SessionView, error)
	UploadFunc        func(ctx context.Context, sessionID string, data []byte) (*usecase.SessionView, error)
	EnableCameraFunc  func(ctx context.Context, sessionID string) (*usecase.SessionView, error)
	DisableCameraFunc func(ctx context.Context, sessionID string) (*usecase.SessionView, error)
	CaptureFunc       func(ctx context.Context, sessionID string, frame []byte) (*usecase.SessionView, error)
	DetectFunc        func(ctx context.Context, sessionID string) (*usecase.DetectOutcome, error)
	ResultImageFunc   func(ctx context.Context, sessionID string) ([]byte, string, error)
	ResetFunc         func(ctx context.Context, sessionID string) (*usecase.SessionView, error)
	HistoryFunc       func(ctx context.Context, sessionID string, limit int) ([]entity.DetectionRecord, error)
}

func (m *mockDetectionUsecase) Profile() entity.Profile { return m.profile }

func (m *mockDetectionUsecase) View(ctx context.Context, sessionID string) (*usecase.SessionView, error) {
	return m.ViewFunc(ctx, sessionID)
}

func (m *mockDetectionUsecase) Upload(ctx context.Context, sessionID string, data []byte) (*usecase.SessionView, error) {
	return m.UploadFunc(ctx, sessionID, data)
}

func (m *mockDetectionUsecase) EnableCamera(ctx context.Context, sessionID string) (*usecase.SessionView, error) {
	return m.EnableCameraFunc(ctx, sessionID)
}

func (m *mockDetectionUsecase) DisableCamera(ctx context.Context, sessionID string) (*usecase.SessionView, error) {
	return m.DisableCameraFunc(ctx, sessionID)
}

func (m *mockDetectionUsecase) Capture(ctx context.Context, sessionID string, frame []byte) (*usecase.SessionView, error) {
	return m.CaptureFunc(ctx, sessionID, frame)
}

func (m *mockDetectionUsecase) Detect(ctx context.Context, sessionID string) (*usecase.DetectOutcome, error) {
	return m.DetectFunc(ctx, sessionID)
}

func (m *mockDetectionUsecase) ResultImage(ctx context.Context, sessionID string) ([]byte, string, error) {
	return m.ResultImageFunc(ctx, sessionID)
}

func (m *mockDetectionUsecase) Reset(ctx context.Context, sessionID string) (*usecase.SessionView, error) {
	return m.ResetFunc(ctx, sessionID)
}

func (m *mockDetectionUsecase) History(ctx context.Context, sessionID string, limit int) ([]entity.DetectionRecord, error) {
	return m.HistoryFunc(ctx, sessionID, limit)
}

// mockAdviceUsecase はAdviceUsecaseインターフェースのモック実装です。
type mockAdviceUsecase struct {
	AdviseFunc func(ctx context.Context, sessionID string) (*entity.Advice, error)
}

func (m *mockAdviceUsecase) Advise(ctx context.Context, sessionID string) (*entity.Advice, error) {
	return m.AdviseFunc(ctx, sessionID)
}

func leafProfile(t *testing.T) entity.Profile {
	t.Helper()
	p, ok := entity.LookupProfile("leaf")
	require.True(t, ok)
	return p
}

func idleView(p entity.Profile) *usecase.SessionView {
	s := entity.NewSessionState(testSessionID, time.Now())
	return &usecase.SessionView{Session: s, State: s.State(), Profile: p}
}

// newRouter はセッションIDを注入した上でハンドラーを登録したテスト用ルーターを返します。
func newRouter(method, path string, h gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Handle(method, path, func(c *gin.Context) {
		c.Set(jwtmw.ContextSessionID, testSessionID)
		c.Next()
	}, h)
	return r
}

// createMultipartRequest はテスト用のマルチパートリクエストを生成するヘルパー関数です。
func createMultipartRequest(t *testing.T, path, fieldName, fileName string, content []byte) *http.Request {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile(fieldName, fileName)
	require.NoError(t, err)
	_, err = io.Copy(part, bytes.NewReader(content))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func decodeError(t *testing.T, body []byte) string {
	t.Helper()
	var resp api.ErrorResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	return resp.Error
}

func TestDetectionHandler_GetSession(t *testing.T) {
	gin.SetMode(gin.TestMode)
	p := leafProfile(t)
	uc := &mockDetectionUsecase{
		profile: p,
		ViewFunc: func(ctx context.Context, sessionID string) (*usecase.SessionView, error) {
			assert.Equal(t, testSessionID, sessionID)
			return idleView(p), nil
		},
	}
	h := handler.NewDetectionHandler(uc, nil, 0)
	r := newRouter(http.MethodGet, "/v1/session", h.GetSession)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/session", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp api.SessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, testSessionID, resp.SessionId.String())
	assert.Equal(t, api.Idle, resp.State)
	assert.Equal(t, "leaf", resp.Profile)
	assert.False(t, resp.CaptureEnabled)
	assert.Nil(t, resp.Image)
	assert.Nil(t, resp.Result)
}

func TestDetectionHandler_UploadImage(t *testing.T) {
	gin.SetMode(gin.TestMode)
	p := leafProfile(t)

	tests := []struct {
		name           string
		maxBytes       int64
		setupRequest   func(t *testing.T) *http.Request
		uploadErr      error
		expectedStatus int
		expectedError  string
		expectUpload   bool
	}{
		{
			name: "success: image stored",
			setupRequest: func(t *testing.T) *http.Request {
				return createMultipartRequest(t, "/v1/session/image", "image", "leaf.jpg", []byte("fake-image"))
			},
			expectedStatus: http.StatusOK,
			expectUpload:   true,
		},
		{
			name: "error: no image field",
			setupRequest: func(t *testing.T) *http.Request {
				return createMultipartRequest(t, "/v1/session/image", "other", "leaf.jpg", []byte("fake-image"))
			},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "画像ファイルが必要です",
		},
		{
			name:     "error: file too large",
			maxBytes: 4,
			setupRequest: func(t *testing.T) *http.Request {
				return createMultipartRequest(t, "/v1/session/image", "image", "leaf.jpg", []byte("fake-image"))
			},
			expectedStatus: http.StatusRequestEntityTooLarge,
		},
		{
			name:     "error: body over limit rejected before parsing",
			maxBytes: 16,
			setupRequest: func(t *testing.T) *http.Request {
				return createMultipartRequest(t, "/v1/session/image", "image", "leaf.jpg", bytes.Repeat([]byte{0xff}, 2<<20))
			},
			expectedStatus: http.StatusRequestEntityTooLarge,
		},
		{
			name:     "error: chunked body over limit",
			maxBytes: 16,
			setupRequest: func(t *testing.T) *http.Request {
				req := createMultipartRequest(t, "/v1/session/image", "image", "leaf.jpg", bytes.Repeat([]byte{0xff}, 2<<20))
				req.ContentLength = -1
				return req
			},
			expectedStatus: http.StatusRequestEntityTooLarge,
		},
		{
			name: "error: unsupported format",
			setupRequest: func(t *testing.T) *http.Request {
				return createMultipartRequest(t, "/v1/session/image", "image", "leaf.gif", []byte("GIF89a"))
			},
			uploadErr:      usecase.ErrUnsupportedFormat,
			expectedStatus: http.StatusBadRequest,
			expectedError:  "JPEGまたはPNG画像のみ対応しています",
			expectUpload:   true,
		},
		{
			name: "error: store failure",
			setupRequest: func(t *testing.T) *http.Request {
				return createMultipartRequest(t, "/v1/session/image", "image", "leaf.jpg", []byte("fake-image"))
			},
			uploadErr:      errors.New("redis down"),
			expectedStatus: http.StatusInternalServerError,
			expectedError:  "画像の保存に失敗しました",
			expectUpload:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			uc := &mockDetectionUsecase{
				profile: p,
				UploadFunc: func(ctx context.Context, sessionID string, data []byte) (*usecase.SessionView, error) {
					called = true
					assert.Equal(t, testSessionID, sessionID)
					if tt.uploadErr != nil {
						return nil, tt.uploadErr
					}
					v := idleView(p)
					v.Session.Image = &entity.CurrentImage{Format: "jpeg", Source: entity.SourceUpload, Width: 4, Height: 3}
					v.State = v.Session.State()
					return v, nil
				},
			}
			h := handler.NewDetectionHandler(uc, nil, tt.maxBytes)
			r := newRouter(http.MethodPost, "/v1/session/image", h.UploadImage)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, tt.setupRequest(t))

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, tt.expectUpload, called)
			if tt.expectedError != "" {
				assert.Equal(t, tt.expectedError, decodeError(t, w.Body.Bytes()))
			}
			if tt.expectedStatus == http.StatusOK {
				var resp api.SessionResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				assert.Equal(t, api.ImageSelected, resp.State)
				require.NotNil(t, resp.Image)
				assert.Equal(t, api.Upload, resp.Image.Source)
			}
		})
	}
}

func TestDetectionHandler_Camera(t *testing.T) {
	gin.SetMode(gin.TestMode)
	p := leafProfile(t)
	uc := &mockDetectionUsecase{
		profile: p,
		EnableCameraFunc: func(ctx context.Context, sessionID string) (*usecase.SessionView, error) {
			return nil, usecase.ErrCameraUnavailable
		},
		DisableCameraFunc: func(ctx context.Context, sessionID string) (*usecase.SessionView, error) {
			return idleView(p), nil
		},
	}
	h := handler.NewDetectionHandler(uc, nil, 0)
	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set(jwtmw.ContextSessionID, testSessionID) })
	r.POST("/v1/session/camera", h.EnableCamera)
	r.DELETE("/v1/session/camera", h.DisableCamera)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/session/camera", nil))
	assert.Equal(t, http.StatusConflict, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/v1/session/camera", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDetectionHandler_CaptureImage(t *testing.T) {
	gin.SetMode(gin.TestMode)
	p, _ := entity.LookupProfile("leaf-camera")

	tests := []struct {
		name           string
		req            func(t *testing.T) *http.Request
		captureErr     error
		expectedFrame  []byte
		expectedStatus int
	}{
		{
			name: "success: posted frame",
			req: func(t *testing.T) *http.Request {
				return createMultipartRequest(t, "/v1/session/capture", "frame", "frame.jpg", []byte("frame-bytes"))
			},
			expectedFrame:  []byte("frame-bytes"),
			expectedStatus: http.StatusOK,
		},
		{
			name: "success: no body falls back to device",
			req: func(t *testing.T) *http.Request {
				return httptest.NewRequest(http.MethodPost, "/v1/session/capture", nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "error: camera disabled",
			req: func(t *testing.T) *http.Request {
				return httptest.NewRequest(http.MethodPost, "/v1/session/capture", nil)
			},
			captureErr:     usecase.ErrCameraDisabled,
			expectedStatus: http.StatusConflict,
		},
		{
			name: "error: no frame and no device",
			req: func(t *testing.T) *http.Request {
				return httptest.NewRequest(http.MethodPost, "/v1/session/capture", nil)
			},
			captureErr:     usecase.ErrNoFrame,
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc := &mockDetectionUsecase{
				profile: p,
				CaptureFunc: func(ctx context.Context, sessionID string, frame []byte) (*usecase.SessionView, error) {
					assert.Equal(t, tt.expectedFrame, frame)
					if tt.captureErr != nil {
						return nil, tt.captureErr
					}
					return idleView(p), nil
				},
			}
			h := handler.NewDetectionHandler(uc, nil, 0)
			r := newRouter(http.MethodPost, "/v1/session/capture", h.CaptureImage)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, tt.req(t))

			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}
}

func TestDetectionHandler_Detect(t *testing.T) {
	gin.SetMode(gin.TestMode)
	p := leafProfile(t)

	result := &entity.DetectionResult{
		ID: "r1",
		Detections: []entity.Detection{
			{Label: "Leaf Rust", Confidence: 0.875, Box: entity.Box{X1: 1, Y1: 2, X2: 30, Y2: 40}},
		},
		AnnotatedPath: "/tmp/r1.jpg",
	}

	tests := []struct {
		name           string
		detectFunc     func(ctx context.Context, sessionID string) (*usecase.DetectOutcome, error)
		expectedStatus int
		check          func(t *testing.T, body []byte)
	}{
		{
			name: "success: detections presented",
			detectFunc: func(ctx context.Context, sessionID string) (*usecase.DetectOutcome, error) {
				s := entity.NewSessionState(sessionID, time.Now())
				s.Image = &entity.CurrentImage{Format: "png", Source: entity.SourceUpload}
				s.Result = result
				return &usecase.DetectOutcome{Session: s, Result: result, Presentation: entity.Present(result, p)}, nil
			},
			expectedStatus: http.StatusOK,
			check: func(t *testing.T, body []byte) {
				var resp api.DetectResponse
				require.NoError(t, json.Unmarshal(body, &resp))
				assert.Equal(t, "r1", resp.ResultId)
				assert.Equal(t, 1, resp.Count)
				assert.Equal(t, api.ResultShown, resp.Session.State)
				assert.True(t, resp.Result.DownloadAvailable)
				require.NotNil(t, resp.Result.ImageUrl)
				assert.Equal(t, "/v1/session/result/image?r=r1", *resp.Result.ImageUrl)
				require.NotNil(t, resp.Result.Detections)
				items := *resp.Result.Detections
				require.Len(t, items, 1)
				assert.Equal(t, "87.50%", items[0].Confidence)
				assert.Equal(t, api.BoundingBox{X1: 1, Y1: 2, X2: 30, Y2: 40}, items[0].Box)
				assert.Nil(t, resp.Result.Notice)
			},
		},
		{
			name: "success: no detection notice",
			detectFunc: func(ctx context.Context, sessionID string) (*usecase.DetectOutcome, error) {
				s := entity.NewSessionState(sessionID, time.Now())
				s.Image = &entity.CurrentImage{Format: "png", Source: entity.SourceUpload}
				empty := &entity.DetectionResult{ID: "r2"}
				return &usecase.DetectOutcome{Session: s, Result: empty, Presentation: entity.Present(empty, p)}, nil
			},
			expectedStatus: http.StatusOK,
			check: func(t *testing.T, body []byte) {
				var resp api.DetectResponse
				require.NoError(t, json.Unmarshal(body, &resp))
				assert.Equal(t, 0, resp.Count)
				require.NotNil(t, resp.Result.Notice)
				assert.Equal(t, entity.NoDetectionNotice, *resp.Result.Notice)
				assert.False(t, resp.Result.DownloadAvailable)
				assert.Nil(t, resp.Result.DownloadUrl)
				assert.Equal(t, api.ImageSelected, resp.Session.State)
			},
		},
		{
			name: "error: no image",
			detectFunc: func(ctx context.Context, sessionID string) (*usecase.DetectOutcome, error) {
				return nil, usecase.ErrNoImage
			},
			expectedStatus: http.StatusConflict,
			check: func(t *testing.T, body []byte) {
				assert.Equal(t, "画像が選択されていません", decodeError(t, body))
			},
		},
		{
			name: "error: model failure",
			detectFunc: func(ctx context.Context, sessionID string) (*usecase.DetectOutcome, error) {
				return nil, errors.Join(usecase.ErrInference, errors.New("forward failed"))
			},
			expectedStatus: http.StatusBadGateway,
			check: func(t *testing.T, body []byte) {
				assert.Equal(t, "検出に失敗しました", decodeError(t, body))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc := &mockDetectionUsecase{profile: p, DetectFunc: tt.detectFunc}
			h := handler.NewDetectionHandler(uc, nil, 0)
			r := newRouter(http.MethodPost, "/v1/session/detect", h.Detect)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/session/detect", nil))

			assert.Equal(t, tt.expectedStatus, w.Code)
			tt.check(t, w.Body.Bytes())
		})
	}
}

func TestDetectionHandler_DownloadResult(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("success: attachment", func(t *testing.T) {
		uc := &mockDetectionUsecase{
			ResultImageFunc: func(ctx context.Context, sessionID string) ([]byte, string, error) {
				return []byte("jpeg-bytes"), "banana_disease_result.jpg", nil
			},
		}
		h := handler.NewDetectionHandler(uc, nil, 0)
		r := newRouter(http.MethodGet, "/v1/session/result/download", h.DownloadResult)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/session/result/download", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "image/jpeg", w.Header().Get("Content-Type"))
		assert.Equal(t, `attachment; filename="banana_disease_result.jpg"`, w.Header().Get("Content-Disposition"))
		assert.Equal(t, "jpeg-bytes", w.Body.String())
	})

	t.Run("error: no result", func(t *testing.T) {
		uc := &mockDetectionUsecase{
			ResultImageFunc: func(ctx context.Context, sessionID string) ([]byte, string, error) {
				return nil, "", usecase.ErrNoResult
			},
		}
		h := handler.NewDetectionHandler(uc, nil, 0)
		r := newRouter(http.MethodGet, "/v1/session/result/download", h.DownloadResult)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/session/result/download", nil))

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Empty(t, w.Header().Get("Content-Disposition"))
	})
}

func TestDetectionHandler_ResultImage(t *testing.T) {
	gin.SetMode(gin.TestMode)
	uc := &mockDetectionUsecase{
		ResultImageFunc: func(ctx context.Context, sessionID string) ([]byte, string, error) {
			return []byte("jpeg-bytes"), "detection_result.jpg", nil
		},
	}
	h := handler.NewDetectionHandler(uc, nil, 0)
	r := newRouter(http.MethodGet, "/v1/session/result/image", h.ResultImage)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/session/result/image?r=abc", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/jpeg", w.Header().Get("Content-Type"))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	assert.Empty(t, w.Header().Get("Content-Disposition"))
}

func TestDetectionHandler_GetAdvice(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name           string
		adviseFunc     func(ctx context.Context, sessionID string) (*entity.Advice, error)
		expectedStatus int
	}{
		{
			name: "success",
			adviseFunc: func(ctx context.Context, sessionID string) (*entity.Advice, error) {
				return &entity.Advice{Label: "Leaf Rust", Text: "- prune"}, nil
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "error: disabled",
			adviseFunc: func(ctx context.Context, sessionID string) (*entity.Advice, error) {
				return nil, usecase.ErrAdviceUnavailable
			},
			expectedStatus: http.StatusServiceUnavailable,
		},
		{
			name: "error: no result",
			adviseFunc: func(ctx context.Context, sessionID string) (*entity.Advice, error) {
				return nil, usecase.ErrNoResult
			},
			expectedStatus: http.StatusNotFound,
		},
		{
			name: "error: upstream failure",
			adviseFunc: func(ctx context.Context, sessionID string) (*entity.Advice, error) {
				return nil, errors.Join(usecase.ErrAdviceFailed, errors.New("quota"))
			},
			expectedStatus: http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := handler.NewDetectionHandler(&mockDetectionUsecase{}, &mockAdviceUsecase{AdviseFunc: tt.adviseFunc}, 0)
			r := newRouter(http.MethodGet, "/v1/session/result/advice", h.GetAdvice)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/session/result/advice", nil))

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedStatus == http.StatusOK {
				assert.JSONEq(t, `{"label":"Leaf Rust","advice":"- prune"}`, w.Body.String())
			}
		})
	}
}

func TestDetectionHandler_ResetSession(t *testing.T) {
	gin.SetMode(gin.TestMode)
	p := leafProfile(t)
	uc := &mockDetectionUsecase{
		profile: p,
		ResetFunc: func(ctx context.Context, sessionID string) (*usecase.SessionView, error) {
			v := idleView(p)
			v.Session.ResetCounter = 3
			return v, nil
		},
	}
	h := handler.NewDetectionHandler(uc, nil, 0)
	r := newRouter(http.MethodPost, "/v1/session/reset", h.ResetSession)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/session/reset", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp api.SessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(3), resp.ResetCounter)
	assert.Equal(t, api.Idle, resp.State)
	assert.False(t, resp.CameraEnabled)
}

func TestDetectionHandler_GetHistory(t *testing.T) {
	gin.SetMode(gin.TestMode)
	created := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name           string
		query          string
		expectedLimit  int
		expectedStatus int
	}{
		{name: "default limit", query: "", expectedLimit: 20, expectedStatus: http.StatusOK},
		{name: "explicit limit", query: "?limit=5", expectedLimit: 5, expectedStatus: http.StatusOK},
		{name: "error: zero", query: "?limit=0", expectedStatus: http.StatusBadRequest},
		{name: "error: too large", query: "?limit=101", expectedStatus: http.StatusBadRequest},
		{name: "error: not a number", query: "?limit=abc", expectedStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotLimit := 0
			uc := &mockDetectionUsecase{
				HistoryFunc: func(ctx context.Context, sessionID string, limit int) ([]entity.DetectionRecord, error) {
					gotLimit = limit
					return []entity.DetectionRecord{{
						ID: "r1", SessionID: sessionID, Profile: "leaf", Model: "m", Source: entity.SourceCapture,
						Count: 1, TopLabel: "Healthy", TopConfidence: 0.5,
						Detections: []entity.Detection{{Label: "Healthy", Confidence: 0.5}},
						Width:      10, Height: 10, CreatedAt: created,
					}}, nil
				},
			}
			h := handler.NewDetectionHandler(uc, nil, 0)
			r := newRouter(http.MethodGet, "/v1/history", h.GetHistory)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/history"+tt.query, nil))

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedStatus != http.StatusOK {
				assert.Equal(t, 0, gotLimit)
				return
			}
			assert.Equal(t, tt.expectedLimit, gotLimit)
			var resp api.HistoryResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			require.Len(t, resp.Items, 1)
			item := resp.Items[0]
			assert.Equal(t, "r1", item.Id)
			assert.Equal(t, api.Capture, item.Source)
			require.NotNil(t, item.TopConfidence)
			assert.Equal(t, "50.00%", *item.TopConfidence)
			assert.True(t, created.Equal(item.CreatedAt))
		})
	}
}
