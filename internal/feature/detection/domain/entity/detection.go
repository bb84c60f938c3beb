// Package entity はdetectionフィーチャーのドメインモデルを定義します。
package entity

import (
	"fmt"
	"sort"
	"time"
)

// Box は画像座標系でのバウンディングボックス（左上 X1,Y1 / 右下 X2,Y2）です。
type Box struct {
	X1 int
	Y1 int
	X2 int
	Y2 int
}

// Width はボックスの幅を返します。
func (b Box) Width() int { return max(0, b.X2-b.X1) }

// Height はボックスの高さを返します。
func (b Box) Height() int { return max(0, b.Y2-b.Y1) }

// Area はボックスの面積を返します。
func (b Box) Area() int { return b.Width() * b.Height() }

// IoU は2つのボックスの Intersection-over-Union を返します。
func (b Box) IoU(o Box) float64 {
	ix1, iy1 := max(b.X1, o.X1), max(b.Y1, o.Y1)
	ix2, iy2 := min(b.X2, o.X2), min(b.Y2, o.Y2)
	inter := max(0, ix2-ix1) * max(0, iy2-iy1)
	union := b.Area() + o.Area() - inter
	if union <= 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// Clamp はボックスを幅w・高さhの画像内に収めます。
func (b Box) Clamp(w, h int) Box {
	return Box{
		X1: min(max(b.X1, 0), w),
		Y1: min(max(b.Y1, 0), h),
		X2: min(max(b.X2, 0), w),
		Y2: min(max(b.Y2, 0), h),
	}
}

// Detection はモデルが出力した1件の検出結果です。
type Detection struct {
	Label      string  // クラス名（モデルのラベルセットに含まれる）
	ClassID    int     // ラベルセット内のインデックス
	Confidence float64 // 信頼度（0.0 ~ 1.0）
	Box        Box
}

// Thresholds は推論時の信頼度・IoUしきい値です。
type Thresholds struct {
	Confidence float64
	IoU        float64
}

// DefaultThresholds はプロファイルで上書きされない場合に使うしきい値です。
var DefaultThresholds = Thresholds{Confidence: 0.25, IoU: 0.7}

// Validate はしきい値が [0,1] の範囲にあるか検証します。
func (t Thresholds) Validate() error {
	if t.Confidence < 0 || t.Confidence > 1 {
		return fmt.Errorf("confidence threshold %v out of range [0,1]", t.Confidence)
	}
	if t.IoU < 0 || t.IoU > 1 {
		return fmt.Errorf("iou threshold %v out of range [0,1]", t.IoU)
	}
	return nil
}

// Admits は検出がしきい値とラベルセットの契約を満たすかを返します。
func (t Thresholds) Admits(d Detection, labels LabelSet) bool {
	if d.Confidence < t.Confidence || d.Confidence > 1 {
		return false
	}
	return labels.Contains(d.Label)
}

// DetectionResult は1回の推論で得られた結果です。生成後は変更しません。
type DetectionResult struct {
	ID            string
	Detections    []Detection // 信頼度の降順
	AnnotatedPath string      // 描画済み画像の保存先
	Width         int
	Height        int
	Thresholds    Thresholds
	Model         string
	Source        ImageSource
	CreatedAt     time.Time
}

// Empty は検出が0件かどうかを返します。
func (r *DetectionResult) Empty() bool {
	return r == nil || len(r.Detections) == 0
}

// Top は最も信頼度の高い検出を返します。
func (r *DetectionResult) Top() (Detection, bool) {
	if r.Empty() {
		return Detection{}, false
	}
	return r.Detections[0], true
}

// SortByConfidence は検出を信頼度の降順に並べ替えます（同値は元の順序を保持）。
func SortByConfidence(dets []Detection) {
	sort.SliceStable(dets, func(i, j int) bool {
		return dets[i].Confidence > dets[j].Confidence
	})
}

// SuppressOverlaps はクラスごとの貪欲NMSを行い、残った検出を信頼度の降順で返します。
func SuppressOverlaps(dets []Detection, iou float64) []Detection {
	sorted := make([]Detection, len(dets))
	copy(sorted, dets)
	SortByConfidence(sorted)

	kept := make([]Detection, 0, len(sorted))
	for _, d := range sorted {
		suppressed := false
		for _, k := range kept {
			if k.ClassID == d.ClassID && k.Box.IoU(d.Box) > iou {
				suppressed = true
				break
			}
		}
		if !suppressed {
			kept = append(kept, d)
		}
	}
	return kept
}
