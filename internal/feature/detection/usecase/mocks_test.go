package usecase_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"leaf_backend/internal/feature/detection/domain/entity"
	"leaf_backend/internal/feature/detection/usecase"
)

// memorySessions はSessionRepositoryのテスト用実装です。
type memorySessions struct {
	mu      sync.Mutex
	items   map[string]*entity.SessionState
	SaveErr error
}

func newMemorySessions() *memorySessions {
	return &memorySessions{items: make(map[string]*entity.SessionState)}
}

func (m *memorySessions) Find(ctx context.Context, id string) (*entity.SessionState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.items[id]
	if !ok {
		return nil, usecase.ErrSessionNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memorySessions) Save(ctx context.Context, s *entity.SessionState) error {
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.items[s.ID] = &cp
	return nil
}

func (m *memorySessions) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, id)
	return nil
}

// mockModel はModelインターフェースのモック実装です。
type mockModel struct {
	PredictFunc  func(ctx context.Context, img image.Image, th entity.Thresholds) ([]entity.Detection, error)
	PredictCalls int
	LastBounds   image.Rectangle
	LastTh       entity.Thresholds
	labels       entity.LabelSet
}

func newMockModel(labels ...string) *mockModel {
	if len(labels) == 0 {
		labels = []string{"Healthy", "Leaf Rust", "Powdery Mildew"}
	}
	return &mockModel{labels: entity.NewLabelSet(labels)}
}

func (m *mockModel) Name() string            { return "mock-model" }
func (m *mockModel) Labels() entity.LabelSet { return m.labels }
func (m *mockModel) Close() error            { return nil }

func (m *mockModel) Predict(ctx context.Context, img image.Image, th entity.Thresholds) ([]entity.Detection, error) {
	m.PredictCalls++
	m.LastBounds = img.Bounds()
	m.LastTh = th
	if m.PredictFunc != nil {
		return m.PredictFunc(ctx, img, th)
	}
	return nil, errors.New("PredictFunc is not implemented")
}

// mockAnnotator はAnnotatorインターフェースのモック実装です。
type mockAnnotator struct {
	Calls int
	Err   error
}

func (m *mockAnnotator) Annotate(img image.Image, dets []entity.Detection) ([]byte, error) {
	m.Calls++
	if m.Err != nil {
		return nil, m.Err
	}
	return []byte("annotated"), nil
}

// memoryResults はResultStoreのテスト用実装です。
type memoryResults struct {
	mu      sync.Mutex
	files   map[string][]byte
	Removed []string
	SaveErr error
}

func newMemoryResults() *memoryResults {
	return &memoryResults{files: make(map[string][]byte)}
}

func (m *memoryResults) Save(ctx context.Context, sessionID, resultID string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return "", m.SaveErr
	}
	path := sessionID + "/" + resultID + ".jpg"
	m.files[path] = data
	return path, nil
}

func (m *memoryResults) Open(ctx context.Context, path string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[path]
	if !ok {
		return nil, errors.New("not found")
	}
	return data, nil
}

func (m *memoryResults) Remove(ctx context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, path)
	m.Removed = append(m.Removed, path)
	return nil
}

// mockHistory はHistoryRepositoryのモック実装です。
type mockHistory struct {
	Records []*entity.DetectionRecord
}

func (m *mockHistory) Create(ctx context.Context, rec *entity.DetectionRecord) error {
	m.Records = append(m.Records, rec)
	return nil
}

func (m *mockHistory) ListBySession(ctx context.Context, sessionID string, limit int) ([]entity.DetectionRecord, error) {
	var out []entity.DetectionRecord
	for i := len(m.Records) - 1; i >= 0 && len(out) < limit; i-- {
		if m.Records[i].SessionID == sessionID {
			out = append(out, *m.Records[i])
		}
	}
	return out, nil
}

// recordingEvents は発行されたイベントを記録します。
type recordingEvents struct {
	Events []entity.Event
}

func (r *recordingEvents) Publish(sessionID string, ev entity.Event) {
	r.Events = append(r.Events, ev)
}

func (r *recordingEvents) Types() []string {
	out := make([]string, 0, len(r.Events))
	for _, ev := range r.Events {
		out = append(out, ev.Type)
	}
	return out
}

// mockRecorder はRecorderのモック実装です。
type mockRecorder struct {
	Outcomes     []string
	Acquisitions []string
	Resets       int
}

func (m *mockRecorder) ObserveInference(profile, outcome string, elapsed time.Duration) {
	m.Outcomes = append(m.Outcomes, outcome)
}
func (m *mockRecorder) IncAcquisition(source string) { m.Acquisitions = append(m.Acquisitions, source) }
func (m *mockRecorder) IncReset()                    { m.Resets++ }

// mockCamera はCameraのモック実装です。
type mockCamera struct {
	SnapshotFunc func(ctx context.Context) ([]byte, error)
	Calls        int
}

func (m *mockCamera) Snapshot(ctx context.Context) ([]byte, error) {
	m.Calls++
	return m.SnapshotFunc(ctx)
}

// pngImage は指定サイズの単色PNGを生成するヘルパー関数です。
func pngImage(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{G: 0x80, A: 0xff})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return buf.Bytes()
}
