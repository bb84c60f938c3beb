package handler

import (
	"github.com/google/uuid"

	"leaf_backend/internal/api"
	"leaf_backend/internal/feature/detection/domain/entity"
	"leaf_backend/internal/feature/detection/usecase"
)

const (
	resultImagePath    = "/v1/session/result/image"
	resultDownloadPath = "/v1/session/result/download"
)

func toSessionResponse(v *usecase.SessionView) api.SessionResponse {
	s := v.Session
	id, err := uuid.Parse(s.ID)
	if err != nil {
		id = uuid.Nil
	}
	out := api.SessionResponse{
		SessionId:      id,
		State:          api.SessionState(v.State),
		Profile:        v.Profile.Name,
		CameraEnabled:  s.CameraEnabled,
		CaptureEnabled: v.Profile.CaptureEnabled,
		ResetCounter:   int64(s.ResetCounter),
	}
	if s.Image != nil {
		out.Image = &api.ImageInfo{
			Width:  s.Image.Width,
			Height: s.Image.Height,
			Format: s.Image.Format,
			Source: api.ImageSource(s.Image.Source),
		}
	}
	if s.Result != nil {
		rv := toResultView(v.Presentation, s.Result.ID)
		out.Result = &rv
	}
	return out
}

// toResultView は表示内容をレスポンスに変換します。画像URLには結果IDを付けてキャッシュを避けます。
func toResultView(p entity.Presentation, resultID string) api.ResultView {
	out := api.ResultView{DownloadAvailable: p.DownloadAvailable}
	if p.Notice != "" {
		notice := p.Notice
		out.Notice = &notice
	}
	if p.ImageAvailable {
		u := resultImagePath + "?r=" + resultID
		out.ImageUrl = &u
	}
	if p.DownloadAvailable {
		u, name := resultDownloadPath, p.DownloadName
		out.DownloadUrl = &u
		out.DownloadName = &name
	}
	if p.Items != nil {
		items := make([]api.DetectionItem, 0, len(p.Items))
		for _, it := range p.Items {
			items = append(items, api.DetectionItem{
				Label:      it.Label,
				Confidence: it.Confidence,
				Score:      it.Score,
				Box:        toBoundingBox(it.Box),
			})
		}
		out.Detections = &items
	}
	return out
}

func toBoundingBox(b entity.Box) api.BoundingBox {
	return api.BoundingBox{X1: b.X1, Y1: b.Y1, X2: b.X2, Y2: b.Y2}
}

func toHistoryItem(r entity.DetectionRecord) api.HistoryItem {
	dets := make([]api.DetectionItem, 0, len(r.Detections))
	for _, d := range r.Detections {
		dets = append(dets, api.DetectionItem{
			Label:      d.Label,
			Confidence: entity.FormatConfidence(d.Confidence),
			Score:      d.Confidence,
			Box:        toBoundingBox(d.Box),
		})
	}
	item := api.HistoryItem{
		Id:         r.ID,
		Profile:    r.Profile,
		Model:      r.Model,
		Source:     api.ImageSource(r.Source),
		Count:      r.Count,
		Width:      r.Width,
		Height:     r.Height,
		CreatedAt:  r.CreatedAt,
		Detections: dets,
	}
	if r.TopLabel != "" {
		label, conf := r.TopLabel, entity.FormatConfidence(r.TopConfidence)
		item.TopLabel = &label
		item.TopConfidence = &conf
	}
	return item
}

func toSessionEvent(ev entity.Event) api.SessionEvent {
	out := api.SessionEvent{
		Type:         ev.Type,
		State:        api.SessionState(ev.State),
		ResetCounter: int64(ev.ResetCounter),
	}
	if ev.ResultID != "" {
		id := ev.ResultID
		out.ResultId = &id
	}
	return out
}
