// Package adapters はdetectionフィーチャーの永続化アダプタを提供します。
package adapters

import (
	"context"
	"time"

	"gorm.io/gorm"

	"leaf_backend/internal/feature/detection/domain/entity"
	"leaf_backend/internal/feature/detection/usecase"
)

// MaxHistoryLimit は履歴取得1回あたりの上限件数です。
const MaxHistoryLimit = 100

type historyGorm struct {
	db *gorm.DB
}

var _ usecase.HistoryRepository = (*historyGorm)(nil)

func NewHistoryRepository(db *gorm.DB) *historyGorm {
	return &historyGorm{db: db}
}

// DetectionRecordModel は detection_records テーブルの行です。
type DetectionRecordModel struct {
	ID            string `gorm:"primaryKey;size:36"`
	SessionID     string `gorm:"size:36;not null;index:idx_detection_session_created,priority:1"`
	Profile       string `gorm:"size:32;not null"`
	Model         string `gorm:"size:128;not null"`
	Source        string `gorm:"size:16;not null"`
	Count         int    `gorm:"not null;default:0"`
	TopLabel      string `gorm:"size:128"`
	TopConfidence float64
	Detections    []detectionJSON `gorm:"serializer:json"`
	Width         int             `gorm:"not null"`
	Height        int             `gorm:"not null"`
	CreatedAt     time.Time       `gorm:"not null;index:idx_detection_session_created,priority:2"`
}

func (DetectionRecordModel) TableName() string {
	return "detection_records"
}

type detectionJSON struct {
	Label      string  `json:"label"`
	ClassID    int     `json:"class_id"`
	Confidence float64 `json:"confidence"`
	X1         int     `json:"x1"`
	Y1         int     `json:"y1"`
	X2         int     `json:"x2"`
	Y2         int     `json:"y2"`
}

func toModel(e *entity.DetectionRecord) DetectionRecordModel {
	dets := make([]detectionJSON, 0, len(e.Detections))
	for _, d := range e.Detections {
		dets = append(dets, detectionJSON{
			Label:      d.Label,
			ClassID:    d.ClassID,
			Confidence: d.Confidence,
			X1:         d.Box.X1,
			Y1:         d.Box.Y1,
			X2:         d.Box.X2,
			Y2:         d.Box.Y2,
		})
	}
	return DetectionRecordModel{
		ID:            e.ID,
		SessionID:     e.SessionID,
		Profile:       e.Profile,
		Model:         e.Model,
		Source:        string(e.Source),
		Count:         e.Count,
		TopLabel:      e.TopLabel,
		TopConfidence: e.TopConfidence,
		Detections:    dets,
		Width:         e.Width,
		Height:        e.Height,
		CreatedAt:     e.CreatedAt,
	}
}

func toEntity(m DetectionRecordModel) entity.DetectionRecord {
	dets := make([]entity.Detection, 0, len(m.Detections))
	for _, d := range m.Detections {
		dets = append(dets, entity.Detection{
			Label:      d.Label,
			ClassID:    d.ClassID,
			Confidence: d.Confidence,
			Box:        entity.Box{X1: d.X1, Y1: d.Y1, X2: d.X2, Y2: d.Y2},
		})
	}
	return entity.DetectionRecord{
		ID:            m.ID,
		SessionID:     m.SessionID,
		Profile:       m.Profile,
		Model:         m.Model,
		Source:        entity.ImageSource(m.Source),
		Count:         m.Count,
		TopLabel:      m.TopLabel,
		TopConfidence: m.TopConfidence,
		Detections:    dets,
		Width:         m.Width,
		Height:        m.Height,
		CreatedAt:     m.CreatedAt,
	}
}

func (r *historyGorm) Create(ctx context.Context, rec *entity.DetectionRecord) error {
	m := toModel(rec)
	return r.db.WithContext(ctx).Create(&m).Error
}

// ListBySession はセッションの履歴を新しい順に返します。limit は 1..MaxHistoryLimit に丸めます。
func (r *historyGorm) ListBySession(ctx context.Context, sessionID string, limit int) ([]entity.DetectionRecord, error) {
	if limit <= 0 || limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	var rows []DetectionRecordModel
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]entity.DetectionRecord, 0, len(rows))
	for _, m := range rows {
		out = append(out, toEntity(m))
	}
	return out, nil
}
