package entity

import "time"

// DetectionRecord は1回の推論の履歴です。
type DetectionRecord struct {
	ID            string
	SessionID     string
	Profile       string
	Model         string
	Source        ImageSource
	Count         int
	TopLabel      string
	TopConfidence float64
	Detections    []Detection
	Width         int
	Height        int
	CreatedAt     time.Time
}

// NewDetectionRecord は検出結果から履歴レコードを生成します。
func NewDetectionRecord(sessionID, profile string, r *DetectionResult) *DetectionRecord {
	rec := &DetectionRecord{
		ID:         r.ID,
		SessionID:  sessionID,
		Profile:    profile,
		Model:      r.Model,
		Source:     r.Source,
		Count:      len(r.Detections),
		Detections: r.Detections,
		Width:      r.Width,
		Height:     r.Height,
		CreatedAt:  r.CreatedAt,
	}
	if top, ok := r.Top(); ok {
		rec.TopLabel = top.Label
		rec.TopConfidence = top.Confidence
	}
	return rec
}
