// Package usecase はdetectionフィーチャーのビジネスロジックを実装します。
package usecase

import "errors"

var (
	// ErrSessionNotFound はセッションストアに該当セッションが無い場合に返されます。
	ErrSessionNotFound = errors.New("session not found")

	// ErrNoImage は画像が未選択のまま検出を要求した場合に返されます。モデルは呼び出されません。
	ErrNoImage = errors.New("no image selected")

	// ErrNoResult は表示・ダウンロードできる検出結果が無い場合に返されます。
	ErrNoResult = errors.New("no detection result")

	// ErrCameraUnavailable はプロファイルがカメラ撮影を提供しない場合に返されます。
	ErrCameraUnavailable = errors.New("camera capture is not available")

	// ErrCameraDisabled はカメラモードが無効なまま撮影した場合に返されます。
	ErrCameraDisabled = errors.New("camera mode is not enabled")

	// ErrNoFrame は撮影フレームが送信されず、カメラデバイスも設定されていない場合に返されます。
	ErrNoFrame = errors.New("no frame supplied and no camera device configured")

	// ErrEmptyImage は空の画像データが渡された場合に返されます。
	ErrEmptyImage = errors.New("image data is empty")

	// ErrImageTooLarge は画像サイズが上限を超える場合に返されます。
	ErrImageTooLarge = errors.New("image size exceeds maximum")

	// ErrUnsupportedFormat はJPEG/PNG以外の画像が渡された場合に返されます。
	ErrUnsupportedFormat = errors.New("unsupported image format")

	// ErrInvalidImage は画像としてデコードできない場合に返されます。
	ErrInvalidImage = errors.New("image could not be decoded")

	// ErrInference はモデル推論が失敗した場合に返されます。
	ErrInference = errors.New("inference failed")

	// ErrAdviceUnavailable は助言生成が構成されていない場合に返されます。
	ErrAdviceUnavailable = errors.New("advice generation is not configured")

	// ErrAdviceFailed は外部の助言生成サービスが失敗した場合に返されます。
	ErrAdviceFailed = errors.New("advice generation failed")
)
