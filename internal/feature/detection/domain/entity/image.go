package entity

import "time"

// ImageSource は画像の取得経路です。
type ImageSource string

const (
	SourceUpload  ImageSource = "upload"
	SourceCapture ImageSource = "capture"
)

// CurrentImage はセッションで検出対象として選択されている唯一の画像です。
type CurrentImage struct {
	Data       []byte      // 向き補正済みのJPEGバイト列
	Format     string      // 元のエンコード形式（jpeg / png）
	Source     ImageSource // upload / capture
	Width      int
	Height     int
	AcquiredAt time.Time
}
