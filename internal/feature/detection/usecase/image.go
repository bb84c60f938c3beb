package usecase

import (
	"bytes"
	"fmt"
	"image"
	"time"

	"github.com/disintegration/imaging"

	"leaf_backend/internal/feature/detection/domain/entity"
)

const (
	// MaxImageSize は画像アップロードの既定の最大サイズ（10MB）です。
	MaxImageSize = 10 * 1024 * 1024
	// storedJPEGQuality はセッションに保持する正規化画像のJPEG品質です。
	storedJPEGQuality = 95
)

// supportedFormats は受け付けるエンコード形式です。
var supportedFormats = map[string]bool{"jpeg": true, "png": true}

// normalizeImage は画像バイト列を検証・デコードし、EXIFの向きを補正したJPEGとして返します。
func normalizeImage(data []byte, maxBytes int, source entity.ImageSource, now time.Time) (*entity.CurrentImage, error) {
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}
	if maxBytes > 0 && len(data) > maxBytes {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrImageTooLarge, len(data), maxBytes)
	}

	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if !supportedFormats[format] {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	bounds := img.Bounds()
	if bounds.Empty() {
		return nil, fmt.Errorf("%w: zero-sized image", ErrInvalidImage)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(storedJPEGQuality)); err != nil {
		return nil, fmt.Errorf("failed to encode normalized image: %w", err)
	}

	return &entity.CurrentImage{
		Data:       buf.Bytes(),
		Format:     format,
		Source:     source,
		Width:      bounds.Dx(),
		Height:     bounds.Dy(),
		AcquiredAt: now,
	}, nil
}

// decodeCurrentImage はセッションに保持したJPEGをデコードします。
func decodeCurrentImage(ci *entity.CurrentImage) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(ci.Data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode stored image: %w", err)
	}
	return img, nil
}
