package entity

import "time"

// State はセッションの状態機械の状態です。
type State string

const (
	StateIdle          State = "idle"
	StateImageSelected State = "image_selected"
	StateDetecting     State = "detecting"
	StateResultShown   State = "result_shown"
)

// SessionState はユーザーセッション単位の状態です。各パイプライン操作へ明示的に渡されます。
type SessionState struct {
	ID            string
	CameraEnabled bool
	ResetCounter  uint64 // リセットのたびに単調増加
	Image         *CurrentImage
	Result        *DetectionResult // 直近の検出結果（検出0件の場合は保持しない）
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewSessionState は初期状態（Idle）のセッションを生成します。
func NewSessionState(id string, now time.Time) *SessionState {
	return &SessionState{ID: id, CreatedAt: now, UpdatedAt: now}
}

// State は保持している値から現在の状態を導出します。
// Detecting は推論中のみの一時状態のため、ここでは返しません。
func (s *SessionState) State() State {
	switch {
	case s.Image == nil:
		return StateIdle
	case s.Result != nil:
		return StateResultShown
	default:
		return StateImageSelected
	}
}

// SelectImage は新しい画像で現在の画像を置き換え、古い結果を破棄します。
func (s *SessionState) SelectImage(img *CurrentImage, now time.Time) {
	s.Image = img
	s.Result = nil
	s.UpdatedAt = now
}

// Reset は画像・結果・カメラモードを消去し、リセットカウンタを進めます。
func (s *SessionState) Reset(now time.Time) {
	s.Image = nil
	s.Result = nil
	s.CameraEnabled = false
	s.ResetCounter++
	s.UpdatedAt = now
}

// Event はセッションの状態遷移通知です。
type Event struct {
	Type         string `json:"type"`
	State        State  `json:"state"`
	ResetCounter uint64 `json:"reset_counter"`
	ResultID     string `json:"result_id,omitempty"`
}

// イベント種別
const (
	EventImageSelected = "image_selected"
	EventCameraChanged = "camera_changed"
	EventDetecting     = "detecting"
	EventResultShown   = "result_shown"
	EventNoDetection   = "no_detection"
	EventDetectFailed  = "detect_failed"
	EventReset         = "reset"
	EventSnapshot      = "snapshot" // 購読開始時の現在状態
)

// NewEvent はセッションの現在値からイベントを組み立てます。
func NewEvent(typ string, s *SessionState) Event {
	ev := Event{Type: typ, State: s.State(), ResetCounter: s.ResetCounter}
	if s.Result != nil {
		ev.ResultID = s.Result.ID
	}
	return ev
}
