package onnx

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"gocv.io/x/gocv"

	"leaf_backend/internal/feature/detection/domain/entity"
	"leaf_backend/internal/feature/detection/usecase"
)

// classOffset はクラスごとにNMSを行うためにボックスをずらす量です。
const classOffset = 7680

// YOLOModel はONNX形式のYOLO検出モデルです。
type YOLOModel struct {
	mu        sync.Mutex // gocv.Net は並行利用できないため Forward を直列化する
	net       gocv.Net
	labels    entity.LabelSet
	inputSize int
	name      string
}

// YOLOModelがModelを実装していることをコンパイル時に検証します。
var _ usecase.Model = (*YOLOModel)(nil)

// Load はモデルファイルとラベルを読み込みます。ファイルが無い・壊れている場合はエラーを返します。
func Load(cfg Config) (*YOLOModel, error) {
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("model file not found: %s: %w", cfg.ModelPath, err)
	}

	labels, err := LoadLabels(cfg)
	if err != nil {
		return nil, err
	}

	net := gocv.ReadNetFromONNX(cfg.ModelPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load network from %s", cfg.ModelPath)
	}
	if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
		_ = net.Close()
		return nil, fmt.Errorf("failed to set preferable backend: %w", err)
	}
	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		_ = net.Close()
		return nil, fmt.Errorf("failed to set preferable target: %w", err)
	}

	size := cfg.InputSize
	if size <= 0 {
		size = 640
	}

	slog.Info("detection model loaded", "path", cfg.ModelPath, "classes", labels.Len(), "input_size", size)
	return &YOLOModel{
		net:       net,
		labels:    labels,
		inputSize: size,
		name:      filepath.Base(cfg.ModelPath),
	}, nil
}

// LoadLabels は MODEL_LABELS の直接指定、無ければラベルファイルからラベルセットを読み込みます。
func LoadLabels(cfg Config) (entity.LabelSet, error) {
	if len(cfg.Labels) > 0 {
		ls := entity.NewLabelSet(cfg.Labels)
		if ls.Len() == 0 {
			return entity.LabelSet{}, fmt.Errorf("label set is empty")
		}
		return ls, nil
	}
	f, err := os.Open(cfg.LabelsPath)
	if err != nil {
		return entity.LabelSet{}, fmt.Errorf("failed to open labels file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return entity.ParseLabels(f)
}

// Name はモデルファイル名を返します。
func (m *YOLOModel) Name() string { return m.name }

// Labels はモデルのラベルセットを返します。
func (m *YOLOModel) Labels() entity.LabelSet { return m.labels }

// Close はネットワークを解放します。
func (m *YOLOModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.net.Close()
}

// Predict は画像をレターボックスしてモデルに入力し、NMS後の検出を返します。
func (m *YOLOModel) Predict(ctx context.Context, img image.Image, th entity.Thresholds) ([]entity.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("failed to convert image: %w", err)
	}
	defer func() { _ = mat.Close() }()
	if mat.Empty() {
		return nil, fmt.Errorf("converted image is empty")
	}

	height, width := mat.Rows(), mat.Cols()
	maxDim := max(height, width)

	// 右下をゼロ埋めした正方形にコピーし、縦横比を保ったまま入力サイズへ縮小する
	square := gocv.NewMatWithSize(maxDim, maxDim, gocv.MatTypeCV8UC3)
	defer func() { _ = square.Close() }()
	roi := square.Region(image.Rect(0, 0, width, height))
	mat.CopyTo(&roi)
	_ = roi.Close()

	scale := float32(maxDim) / float32(m.inputSize)

	blob := gocv.BlobFromImage(square, 1.0/255.0, image.Pt(m.inputSize, m.inputSize), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer func() { _ = blob.Close() }()

	m.mu.Lock()
	m.net.SetInput(blob, "")
	output := m.net.Forward("")
	m.mu.Unlock()
	defer func() { _ = output.Close() }()

	return m.decode(&output, scale, width, height, th)
}

// decode は [1, 4+nc, N] 形式の出力を検出に変換します。
func (m *YOLOModel) decode(out *gocv.Mat, scale float32, width, height int, th entity.Thresholds) ([]entity.Detection, error) {
	dims := out.Size()
	if len(dims) != 3 || dims[1] < 5 {
		return nil, fmt.Errorf("unexpected output shape %v", dims)
	}
	numClasses := dims[1] - 4
	if numClasses != m.labels.Len() {
		return nil, fmt.Errorf("model outputs %d classes but label set has %d", numClasses, m.labels.Len())
	}
	candidates := dims[2]

	var (
		boxes     []image.Rectangle
		nmsBoxes  []image.Rectangle
		scores    []float32
		classIDs  []int
		threshold = float32(th.Confidence)
	)
	for i := 0; i < candidates; i++ {
		classID, best := 0, float32(0)
		for c := 0; c < numClasses; c++ {
			if s := out.GetFloatAt3(0, 4+c, i); s > best {
				best, classID = s, c
			}
		}
		if best < threshold {
			continue
		}

		cx := out.GetFloatAt3(0, 0, i)
		cy := out.GetFloatAt3(0, 1, i)
		w := out.GetFloatAt3(0, 2, i)
		h := out.GetFloatAt3(0, 3, i)

		box := image.Rect(
			int((cx-w/2)*scale),
			int((cy-h/2)*scale),
			int((cx+w/2)*scale),
			int((cy+h/2)*scale),
		)
		offset := image.Pt(classID*classOffset, classID*classOffset)
		boxes = append(boxes, box)
		nmsBoxes = append(nmsBoxes, box.Add(offset))
		scores = append(scores, best)
		classIDs = append(classIDs, classID)
	}

	if len(boxes) == 0 {
		return []entity.Detection{}, nil
	}

	indices := gocv.NMSBoxes(nmsBoxes, scores, threshold, float32(th.IoU))
	dets := make([]entity.Detection, 0, len(indices))
	for _, idx := range indices {
		label, _ := m.labels.Name(classIDs[idx])
		r := boxes[idx]
		dets = append(dets, entity.Detection{
			Label:      label,
			ClassID:    classIDs[idx],
			Confidence: float64(scores[idx]),
			Box:        entity.Box{X1: r.Min.X, Y1: r.Min.Y, X2: r.Max.X, Y2: r.Max.Y}.Clamp(width, height),
		})
	}
	entity.SortByConfidence(dets)
	return dets, nil
}
