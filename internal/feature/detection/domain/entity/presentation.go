package entity

import "fmt"

// NoDetectionNotice は検出0件時に表示する通知です。
const NoDetectionNotice = "No detection"

// PresentedDetection は表示用に整形した検出です。
type PresentedDetection struct {
	Label      string
	Confidence string  // 例: "87.50%"
	Score      float64 // 元の信頼度
	Box        Box
}

// Presentation は結果表示の内容です。
type Presentation struct {
	Notice            string
	Items             []PresentedDetection
	ImageAvailable    bool
	DownloadAvailable bool
	DownloadName      string
}

// FormatConfidence は信頼度をパーセント文字列（小数2桁）に整形します。
func FormatConfidence(c float64) string {
	return fmt.Sprintf("%.2f%%", c*100)
}

// Present は検出結果をプロファイルに従って表示内容に変換します。
// 検出が0件なら通知のみを返し、ダウンロードは提供しません。
func Present(r *DetectionResult, p Profile) Presentation {
	if r.Empty() {
		return Presentation{Notice: NoDetectionNotice}
	}
	out := Presentation{
		ImageAvailable:    r.AnnotatedPath != "",
		DownloadAvailable: r.AnnotatedPath != "",
		DownloadName:      p.DownloadName,
	}
	if p.ShowDetections {
		out.Items = make([]PresentedDetection, 0, len(r.Detections))
		for _, d := range r.Detections {
			out.Items = append(out.Items, PresentedDetection{
				Label:      d.Label,
				Confidence: FormatConfidence(d.Confidence),
				Score:      d.Confidence,
				Box:        d.Box,
			})
		}
	}
	return out
}
