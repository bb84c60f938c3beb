package usecase

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"leaf_backend/internal/feature/detection/domain/entity"
)

// SessionRepository はセッション状態の保存先を抽象化します。
// Goの慣例に従い、インターフェースは利用者（usecase）側で定義します。
type SessionRepository interface {
	// Find はセッションを取得します。存在しない場合は ErrSessionNotFound を返します。
	Find(ctx context.Context, id string) (*entity.SessionState, error)
	// Save はセッションを保存（上書き）します。
	Save(ctx context.Context, s *entity.SessionState) error
	// Delete はセッションを削除します。
	Delete(ctx context.Context, id string) error
}

// Annotator は検出結果を画像に描画し、JPEGとして返します。
type Annotator interface {
	Annotate(img image.Image, dets []entity.Detection) ([]byte, error)
}

// ResultStore は描画済み画像の一時保存先です。
type ResultStore interface {
	Save(ctx context.Context, sessionID, resultID string, data []byte) (string, error)
	Open(ctx context.Context, path string) ([]byte, error)
	Remove(ctx context.Context, path string) error
}

// HistoryRepository は推論履歴の永続化層です。
type HistoryRepository interface {
	Create(ctx context.Context, rec *entity.DetectionRecord) error
	ListBySession(ctx context.Context, sessionID string, limit int) ([]entity.DetectionRecord, error)
}

// EventPublisher はセッションの状態遷移を購読者へ通知します。
type EventPublisher interface {
	Publish(sessionID string, ev entity.Event)
}

// Camera はサーバー側のカメラデバイスから1フレームを取得します。
type Camera interface {
	Snapshot(ctx context.Context) ([]byte, error)
}

// Recorder は推論・入力操作のメトリクスを記録します。
type Recorder interface {
	ObserveInference(profile, outcome string, elapsed time.Duration)
	IncAcquisition(source string)
	IncReset()
}

// 推論結果の分類（メトリクスのラベル値）
const (
	OutcomeDetected    = "detected"
	OutcomeNoDetection = "no_detection"
	OutcomeError       = "error"
)

// Deps はdetectionUsecaseの依存関係です。Events・Recorder・Camera・History は省略可能です。
type Deps struct {
	Sessions      SessionRepository
	Model         Model
	Annotator     Annotator
	Results       ResultStore
	History       HistoryRepository
	Events        EventPublisher
	Recorder      Recorder
	Camera        Camera
	Profile       entity.Profile
	MaxImageBytes int
	Now           func() time.Time
}

// SessionView はセッションの表示用スナップショットです。
type SessionView struct {
	Session      *entity.SessionState
	State        entity.State
	Presentation entity.Presentation
	Profile      entity.Profile
}

// DetectOutcome は検出操作の結果です。
type DetectOutcome struct {
	Session      *entity.SessionState
	Result       *entity.DetectionResult // 検出0件でも返す（AnnotatedPath は空）
	Presentation entity.Presentation
}

// detectionUsecase は 入力取得 → 推論 → 表示 → リセット のパイプラインを提供します。
type detectionUsecase struct {
	d     Deps
	locks *sessionLocks
}

// NewDetectionUsecase はdetectionUsecaseの新しいインスタンスを生成します。
func NewDetectionUsecase(d Deps) *detectionUsecase {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.MaxImageBytes <= 0 {
		d.MaxImageBytes = MaxImageSize
	}
	return &detectionUsecase{d: d, locks: newSessionLocks()}
}

// Profile は有効なプロファイルを返します。
func (u *detectionUsecase) Profile() entity.Profile {
	return u.d.Profile
}

// View はセッションの現在の状態と表示内容を返します。未作成のセッションは初期状態として扱います。
func (u *detectionUsecase) View(ctx context.Context, sessionID string) (*SessionView, error) {
	unlock := u.locks.Lock(sessionID)
	defer unlock()

	s, err := u.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return u.view(s), nil
}

// Upload はアップロード画像で現在の画像を置き換えます。
func (u *detectionUsecase) Upload(ctx context.Context, sessionID string, data []byte) (*SessionView, error) {
	return u.acquire(ctx, sessionID, data, entity.SourceUpload)
}

// EnableCamera はカメラモードを有効にします。
func (u *detectionUsecase) EnableCamera(ctx context.Context, sessionID string) (*SessionView, error) {
	if !u.d.Profile.CaptureEnabled {
		return nil, ErrCameraUnavailable
	}
	return u.setCamera(ctx, sessionID, true)
}

// DisableCamera はカメラモードを無効にします（撮影のキャンセル）。現在の画像は変更しません。
func (u *detectionUsecase) DisableCamera(ctx context.Context, sessionID string) (*SessionView, error) {
	return u.setCamera(ctx, sessionID, false)
}

// Capture はカメラから1フレームを取得し、現在の画像を置き換えます。
// frame が空の場合はサーバー側カメラデバイスから取得します。
// 1回の有効化につき1フレームまでで、撮影に成功するとカメラモードは無効になります。
func (u *detectionUsecase) Capture(ctx context.Context, sessionID string, frame []byte) (*SessionView, error) {
	if !u.d.Profile.CaptureEnabled {
		return nil, ErrCameraUnavailable
	}
	unlock := u.locks.Lock(sessionID)
	defer unlock()

	s, err := u.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !s.CameraEnabled {
		return nil, ErrCameraDisabled
	}

	if len(frame) == 0 {
		if u.d.Camera == nil {
			return nil, ErrNoFrame
		}
		frame, err = u.d.Camera.Snapshot(ctx)
		if err != nil {
			return nil, fmt.Errorf("camera snapshot failed: %w", err)
		}
	}

	return u.selectImage(ctx, s, frame, entity.SourceCapture)
}

// Detect は現在の画像に対して推論を行い、結果をセッションに保持します。
// 画像が未選択の場合は ErrNoImage を返し、モデルは呼び出しません。
func (u *detectionUsecase) Detect(ctx context.Context, sessionID string) (*DetectOutcome, error) {
	unlock := u.locks.Lock(sessionID)
	defer unlock()

	s, err := u.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s.Image == nil {
		return nil, ErrNoImage
	}

	u.publish(s.ID, entity.Event{Type: entity.EventDetecting, State: entity.StateDetecting, ResetCounter: s.ResetCounter})

	img, err := decodeCurrentImage(s.Image)
	if err != nil {
		u.publish(s.ID, entity.NewEvent(entity.EventDetectFailed, s))
		return nil, err
	}

	th := u.d.Profile.EffectiveThresholds()
	start := u.d.Now()
	raw, err := u.d.Model.Predict(ctx, img, th)
	elapsed := u.d.Now().Sub(start)
	if err != nil {
		u.observe(OutcomeError, elapsed)
		u.publish(s.ID, entity.NewEvent(entity.EventDetectFailed, s))
		return nil, fmt.Errorf("%w: %w", ErrInference, err)
	}

	dets := u.admit(raw, th)
	result := &entity.DetectionResult{
		ID:         uuid.NewString(),
		Detections: dets,
		Width:      s.Image.Width,
		Height:     s.Image.Height,
		Thresholds: th,
		Model:      u.d.Model.Name(),
		Source:     s.Image.Source,
		CreatedAt:  u.d.Now(),
	}

	fail := func(err error) (*DetectOutcome, error) {
		u.observe(OutcomeError, elapsed)
		u.publish(s.ID, entity.NewEvent(entity.EventDetectFailed, s))
		return nil, err
	}

	if !result.Empty() {
		annotated, err := u.d.Annotator.Annotate(img, dets)
		if err != nil {
			return fail(fmt.Errorf("failed to annotate result: %w", err))
		}
		path, err := u.d.Results.Save(ctx, s.ID, result.ID, annotated)
		if err != nil {
			return fail(fmt.Errorf("failed to save annotated image: %w", err))
		}
		result.AnnotatedPath = path
	}

	previous := s.Result
	s.Result = nil
	if !result.Empty() {
		s.Result = result
	}
	s.UpdatedAt = u.d.Now()
	if err := u.d.Sessions.Save(ctx, s); err != nil {
		// 保存されなかった新しい結果の画像は残さない
		u.discardResult(ctx, s)
		s.Result = previous
		return fail(fmt.Errorf("failed to save session: %w", err))
	}
	u.discardResult(ctx, &entity.SessionState{Result: previous})

	u.record(ctx, s.ID, result)

	if result.Empty() {
		u.observe(OutcomeNoDetection, elapsed)
		u.publish(s.ID, entity.NewEvent(entity.EventNoDetection, s))
	} else {
		u.observe(OutcomeDetected, elapsed)
		u.publish(s.ID, entity.NewEvent(entity.EventResultShown, s))
	}

	slog.Info("detection finished",
		"session_id", s.ID,
		"result_id", result.ID,
		"detections", len(result.Detections),
		"elapsed", elapsed,
	)

	return &DetectOutcome{
		Session:      s,
		Result:       result,
		Presentation: entity.Present(result, u.d.Profile),
	}, nil
}

// ResultImage は描画済み画像とダウンロード名を返します。結果が無い場合は ErrNoResult を返します。
func (u *detectionUsecase) ResultImage(ctx context.Context, sessionID string) ([]byte, string, error) {
	unlock := u.locks.Lock(sessionID)
	defer unlock()

	s, err := u.load(ctx, sessionID)
	if err != nil {
		return nil, "", err
	}
	if s.Result.Empty() || s.Result.AnnotatedPath == "" {
		return nil, "", ErrNoResult
	}
	data, err := u.d.Results.Open(ctx, s.Result.AnnotatedPath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open annotated image: %w", err)
	}
	return data, u.d.Profile.DownloadName, nil
}

// Reset は画像とカメラモードを消去し、リセットカウンタを進めます。
func (u *detectionUsecase) Reset(ctx context.Context, sessionID string) (*SessionView, error) {
	unlock := u.locks.Lock(sessionID)
	defer unlock()

	s, err := u.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	u.discardResult(ctx, s)
	s.Reset(u.d.Now())
	if err := u.d.Sessions.Save(ctx, s); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	if u.d.Recorder != nil {
		u.d.Recorder.IncReset()
	}
	u.publish(s.ID, entity.NewEvent(entity.EventReset, s))
	return u.view(s), nil
}

// History はセッションの推論履歴を新しい順に返します。
func (u *detectionUsecase) History(ctx context.Context, sessionID string, limit int) ([]entity.DetectionRecord, error) {
	if u.d.History == nil {
		return []entity.DetectionRecord{}, nil
	}
	return u.d.History.ListBySession(ctx, sessionID, limit)
}

func (u *detectionUsecase) acquire(ctx context.Context, sessionID string, data []byte, source entity.ImageSource) (*SessionView, error) {
	unlock := u.locks.Lock(sessionID)
	defer unlock()

	s, err := u.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return u.selectImage(ctx, s, data, source)
}

// selectImage は呼び出し側でロックを保持している前提です。
func (u *detectionUsecase) selectImage(ctx context.Context, s *entity.SessionState, data []byte, source entity.ImageSource) (*SessionView, error) {
	img, err := normalizeImage(data, u.d.MaxImageBytes, source, u.d.Now())
	if err != nil {
		return nil, err
	}

	u.discardResult(ctx, s)
	s.SelectImage(img, u.d.Now())
	if source == entity.SourceCapture {
		s.CameraEnabled = false
	}
	if err := u.d.Sessions.Save(ctx, s); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	if u.d.Recorder != nil {
		u.d.Recorder.IncAcquisition(string(source))
	}
	u.publish(s.ID, entity.NewEvent(entity.EventImageSelected, s))

	slog.Info("image selected",
		"session_id", s.ID,
		"source", source,
		"format", img.Format,
		"width", img.Width,
		"height", img.Height,
	)
	return u.view(s), nil
}

func (u *detectionUsecase) setCamera(ctx context.Context, sessionID string, enabled bool) (*SessionView, error) {
	unlock := u.locks.Lock(sessionID)
	defer unlock()

	s, err := u.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s.CameraEnabled != enabled {
		s.CameraEnabled = enabled
		s.UpdatedAt = u.d.Now()
		if err := u.d.Sessions.Save(ctx, s); err != nil {
			return nil, fmt.Errorf("failed to save session: %w", err)
		}
		u.publish(s.ID, entity.NewEvent(entity.EventCameraChanged, s))
	}
	return u.view(s), nil
}

// load はセッションを取得し、存在しなければ初期状態のセッションを返します（保存はしません）。
func (u *detectionUsecase) load(ctx context.Context, sessionID string) (*entity.SessionState, error) {
	s, err := u.d.Sessions.Find(ctx, sessionID)
	if err == nil {
		return s, nil
	}
	if errors.Is(err, ErrSessionNotFound) {
		return entity.NewSessionState(sessionID, u.d.Now()), nil
	}
	return nil, fmt.Errorf("failed to load session %s: %w", sessionID, err)
}

// admit はしきい値・ラベルセットの契約を満たさない検出を除外し、信頼度の降順に並べます。
func (u *detectionUsecase) admit(raw []entity.Detection, th entity.Thresholds) []entity.Detection {
	labels := u.d.Model.Labels()
	out := make([]entity.Detection, 0, len(raw))
	for _, d := range raw {
		if !th.Admits(d, labels) {
			slog.Warn("dropping detection outside model contract",
				"label", d.Label,
				"confidence", d.Confidence,
			)
			continue
		}
		out = append(out, d)
	}
	entity.SortByConfidence(out)
	return out
}

// discardResult は保持している描画済み画像を削除します（ベストエフォート）。
func (u *detectionUsecase) discardResult(ctx context.Context, s *entity.SessionState) {
	if s.Result == nil || s.Result.AnnotatedPath == "" {
		return
	}
	if err := u.d.Results.Remove(ctx, s.Result.AnnotatedPath); err != nil {
		slog.Warn("failed to remove annotated image", "path", s.Result.AnnotatedPath, "error", err)
	}
}

func (u *detectionUsecase) record(ctx context.Context, sessionID string, r *entity.DetectionResult) {
	if u.d.History == nil {
		return
	}
	rec := entity.NewDetectionRecord(sessionID, u.d.Profile.Name, r)
	if err := u.d.History.Create(ctx, rec); err != nil {
		slog.Warn("failed to record detection history", "session_id", sessionID, "error", err)
	}
}

func (u *detectionUsecase) observe(outcome string, elapsed time.Duration) {
	if u.d.Recorder != nil {
		u.d.Recorder.ObserveInference(u.d.Profile.Name, outcome, elapsed)
	}
}

func (u *detectionUsecase) publish(sessionID string, ev entity.Event) {
	if u.d.Events != nil {
		u.d.Events.Publish(sessionID, ev)
	}
}

func (u *detectionUsecase) view(s *entity.SessionState) *SessionView {
	v := &SessionView{
		Session: s,
		State:   s.State(),
		Profile: u.d.Profile,
	}
	if s.Result != nil {
		v.Presentation = entity.Present(s.Result, u.d.Profile)
	}
	return v
}
