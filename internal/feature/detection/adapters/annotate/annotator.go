// Package annotate は検出結果（ボックスとラベル）を画像に描画します。
package annotate

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"leaf_backend/internal/feature/detection/domain/entity"
	"leaf_backend/internal/feature/detection/usecase"
)

const (
	defaultQuality   = 90
	defaultThickness = 3
	labelPadding     = 3
	labelFont        = gocv.FontHersheySimplex
	labelScale       = 0.5
	labelThickness   = 1
)

// palette はクラスIDごとの描画色です。
var palette = []color.RGBA{
	{R: 0x38, G: 0x8e, B: 0x3c, A: 0xff},
	{R: 0xe5, G: 0x39, B: 0x35, A: 0xff},
	{R: 0x1e, G: 0x88, B: 0xe5, A: 0xff},
	{R: 0xfb, G: 0x8c, B: 0x00, A: 0xff},
	{R: 0x8e, G: 0x24, B: 0xaa, A: 0xff},
	{R: 0x00, G: 0xac, B: 0xc1, A: 0xff},
	{R: 0xfd, G: 0xd8, B: 0x35, A: 0xff},
	{R: 0x6d, G: 0x4c, B: 0x41, A: 0xff},
}

// BoxAnnotator は検出ボックスとラベルを OpenCV で描画し、JPEGとしてエンコードします。
type BoxAnnotator struct {
	Quality   int
	Thickness int
}

// BoxAnnotatorがAnnotatorを実装していることをコンパイル時に検証します。
var _ usecase.Annotator = (*BoxAnnotator)(nil)

// NewBoxAnnotator はBoxAnnotatorの新しいインスタンスを生成します。
func NewBoxAnnotator() *BoxAnnotator {
	return &BoxAnnotator{
		Quality:   defaultQuality,
		Thickness: defaultThickness,
	}
}

// Annotate は画像に検出を描画します。元の画像は変更しません。
func (a *BoxAnnotator) Annotate(img image.Image, dets []entity.Detection) ([]byte, error) {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("failed to convert image: %w", err)
	}
	defer mat.Close()

	// 信頼度の低い順に描画し、高いものを上に重ねる
	for i := len(dets) - 1; i >= 0; i-- {
		d := dets[i]
		c := colorFor(d.ClassID)
		if err := a.drawBox(&mat, d.Box, c); err != nil {
			return nil, err
		}
		if err := drawLabel(&mat, d, c); err != nil {
			return nil, err
		}
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, mat, []int{int(gocv.IMWriteJpegQuality), a.Quality})
	if err != nil {
		return nil, fmt.Errorf("failed to encode annotated image: %w", err)
	}
	defer buf.Close()
	out := make([]byte, len(buf.GetBytes()))
	copy(out, buf.GetBytes())
	return out, nil
}

func colorFor(classID int) color.RGBA {
	if classID < 0 {
		classID = -classID
	}
	return palette[classID%len(palette)]
}

func bounds(mat *gocv.Mat) image.Rectangle {
	return image.Rect(0, 0, mat.Cols(), mat.Rows())
}

func (a *BoxAnnotator) drawBox(mat *gocv.Mat, box entity.Box, c color.RGBA) error {
	r := image.Rect(box.X1, box.Y1, box.X2, box.Y2).Intersect(bounds(mat))
	if r.Empty() {
		return nil
	}
	// 太い線が画像外にはみ出さないよう、線の中心を内側に寄せる
	t := max(1, a.Thickness)
	inset := t / 2
	inner := image.Rect(r.Min.X+inset, r.Min.Y+inset, r.Max.X-1-inset, r.Max.Y-1-inset)
	if inner.Dx() < 0 || inner.Dy() < 0 {
		inner = r
	}
	if err := gocv.Rectangle(mat, inner, c, t); err != nil {
		return fmt.Errorf("failed to draw rectangle: %w", err)
	}
	return nil
}

func drawLabel(mat *gocv.Mat, d entity.Detection, c color.RGBA) error {
	text := fmt.Sprintf("%s %.2f", d.Label, d.Confidence)
	size, baseline := gocv.GetTextSizeWithBaseline(text, labelFont, labelScale, labelThickness)
	height := size.Y + baseline + labelPadding*2
	width := size.X + labelPadding*2

	// ボックスの上に置けない場合はボックス内側の上端に置く
	top := d.Box.Y1 - height
	if top < 0 {
		top = d.Box.Y1
	}
	bg := image.Rect(d.Box.X1, top, d.Box.X1+width, top+height).Intersect(bounds(mat))
	if bg.Empty() {
		return nil
	}
	if err := gocv.Rectangle(mat, bg, c, -1); err != nil {
		return fmt.Errorf("failed to draw label background: %w", err)
	}
	origin := image.Pt(bg.Min.X+labelPadding, bg.Min.Y+labelPadding+size.Y)
	if err := gocv.PutText(mat, text, origin, labelFont, labelScale, color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}, labelThickness); err != nil {
		return fmt.Errorf("failed to draw label: %w", err)
	}
	return nil
}
