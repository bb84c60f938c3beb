// Package devicecam はサーバーに接続されたカメラデバイスから静止画を取得します。
package devicecam

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"gocv.io/x/gocv"

	"leaf_backend/internal/feature/detection/usecase"
)

// warmupFrames は露出が安定するまで読み捨てるフレーム数です。
const warmupFrames = 3

// ErrEmptyFrame はデバイスが空のフレームを返したことを表します。
var ErrEmptyFrame = errors.New("captured frame is empty")

// DeviceCamera は撮影のたびにデバイスを開き、1フレームをJPEGで返します。
type DeviceCamera struct {
	mu     sync.Mutex // 1つのデバイスを同時に開かない
	device string
	width  int
	height int
}

// DeviceCameraがCameraを実装していることをコンパイル時に検証します。
var _ usecase.Camera = (*DeviceCamera)(nil)

// NewDeviceCamera はDeviceCameraを生成します。device はデバイス番号（"0"）またはURL/パスです。
func NewDeviceCamera(device string, width, height int) *DeviceCamera {
	return &DeviceCamera{device: device, width: width, height: height}
}

// Snapshot は1フレームを取得してJPEGにエンコードします。
func (c *DeviceCamera) Snapshot(ctx context.Context) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	capture, err := gocv.OpenVideoCapture(c.device)
	if err != nil {
		return nil, fmt.Errorf("failed to open camera %s: %w", c.device, err)
	}
	defer func() { _ = capture.Close() }()

	if c.width > 0 && c.height > 0 {
		capture.Set(gocv.VideoCaptureFrameWidth, float64(c.width))
		capture.Set(gocv.VideoCaptureFrameHeight, float64(c.height))
	}

	mat := gocv.NewMat()
	defer func() { _ = mat.Close() }()
	for i := 0; i <= warmupFrames; i++ {
		if ok := capture.Read(&mat); !ok {
			return nil, fmt.Errorf("failed to read frame from camera %s", c.device)
		}
	}
	if mat.Empty() {
		return nil, ErrEmptyFrame
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, mat)
	if err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	defer buf.Close()

	frame := make([]byte, len(buf.GetBytes()))
	copy(frame, buf.GetBytes())
	return frame, nil
}
