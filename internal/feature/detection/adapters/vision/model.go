// Package vision はGoogle Cloud Vision APIの物体検出（OBJECT_LOCALIZATION）を検出モデルとして提供します。
package vision

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"log/slog"

	gvision "cloud.google.com/go/vision/v2/apiv1"
	visionpb "cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/disintegration/imaging"
	"github.com/googleapis/gax-go/v2"

	"leaf_backend/internal/feature/detection/domain/entity"
	"leaf_backend/internal/feature/detection/usecase"
)

// ModelName はこのバックエンドの識別名です。
const ModelName = "cloud-vision-object-localization"

// maxResults はVision APIに要求する最大検出数です。
const maxResults = 50

// batchAnnotator はVision APIクライアントのうち本パッケージが使う部分です。
type batchAnnotator interface {
	BatchAnnotateImages(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest, opts ...gax.CallOption) (*visionpb.BatchAnnotateImagesResponse, error)
	Close() error
}

// VisionModel はGoogle Cloud Vision APIを使用して物体を検出します。
type VisionModel struct {
	client batchAnnotator
	labels entity.LabelSet
}

// VisionModelがModelを実装していることをコンパイル時に検証します。
var _ usecase.Model = (*VisionModel)(nil)

// NewVisionModel はADCを使用してVisionModelの新しいインスタンスを生成します。
// labels に含まれない物体名は検出結果から除外されます。
func NewVisionModel(ctx context.Context, labels entity.LabelSet) (*VisionModel, error) {
	if labels.Len() == 0 {
		return nil, fmt.Errorf("label set is empty")
	}
	client, err := gvision.NewImageAnnotatorClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create vision client: %w", err)
	}
	return &VisionModel{client: client, labels: labels}, nil
}

// Name はモデルの識別名を返します。
func (v *VisionModel) Name() string { return ModelName }

// Labels はラベルセットを返します。
func (v *VisionModel) Labels() entity.LabelSet { return v.labels }

// Close はVision APIクライアントを解放します。
func (v *VisionModel) Close() error {
	return v.client.Close()
}

// Predict は画像から物体を検出し、しきい値とラベルセットで絞り込んだ結果を返します。
func (v *VisionModel) Predict(ctx context.Context, img image.Image, th entity.Thresholds) ([]entity.Detection, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{
			{
				Image: &visionpb.Image{Content: buf.Bytes()},
				Features: []*visionpb.Feature{
					{Type: visionpb.Feature_OBJECT_LOCALIZATION, MaxResults: maxResults},
				},
			},
		},
	}

	resp, err := v.client.BatchAnnotateImages(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("vision API request failed: %w", err)
	}

	if len(resp.Responses) == 0 {
		return []entity.Detection{}, nil
	}

	if resp.Responses[0].Error != nil {
		return nil, fmt.Errorf("vision API error: %s", resp.Responses[0].Error.Message)
	}

	b := img.Bounds()
	dets := toDetections(resp.Responses[0].LocalizedObjectAnnotations, v.labels, th, b.Dx(), b.Dy())
	return entity.SuppressOverlaps(dets, th.IoU), nil
}

// toDetections は正規化座標の注釈をピクセル座標の検出に変換します。
func toDetections(annotations []*visionpb.LocalizedObjectAnnotation, labels entity.LabelSet, th entity.Thresholds, width, height int) []entity.Detection {
	dets := make([]entity.Detection, 0, len(annotations))
	for _, a := range annotations {
		score := float64(a.GetScore())
		if score < th.Confidence {
			continue
		}
		id, name, ok := labels.Lookup(a.GetName())
		if !ok {
			slog.Debug("ignoring object outside label set", "name", a.GetName(), "score", score)
			continue
		}
		box, ok := boxFromPoly(a.GetBoundingPoly(), width, height)
		if !ok {
			continue
		}
		dets = append(dets, entity.Detection{
			Label:      name,
			ClassID:    id,
			Confidence: score,
			Box:        box,
		})
	}
	return dets
}

func boxFromPoly(poly *visionpb.BoundingPoly, width, height int) (entity.Box, bool) {
	vs := poly.GetNormalizedVertices()
	if len(vs) == 0 {
		return entity.Box{}, false
	}
	minX, minY := vs[0].GetX(), vs[0].GetY()
	maxX, maxY := minX, minY
	for _, p := range vs[1:] {
		minX, maxX = min(minX, p.GetX()), max(maxX, p.GetX())
		minY, maxY = min(minY, p.GetY()), max(maxY, p.GetY())
	}
	box := entity.Box{
		X1: int(minX * float32(width)),
		Y1: int(minY * float32(height)),
		X2: int(maxX * float32(width)),
		Y2: int(maxY * float32(height)),
	}.Clamp(width, height)
	return box, box.Area() > 0
}
