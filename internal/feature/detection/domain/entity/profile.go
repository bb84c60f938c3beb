package entity

import "sort"

// Profile はフロントエンドのバリエーションごとの振る舞いです。
type Profile struct {
	Name           string
	Title          string
	CaptureEnabled bool        // カメラ撮影を提供するか
	Thresholds     *Thresholds // nil の場合はモデル既定値
	ShowDetections bool        // ラベルと信頼度の一覧を表示するか
	DownloadName   string
}

// EffectiveThresholds は推論に使うしきい値を返します。
func (p Profile) EffectiveThresholds() Thresholds {
	if p.Thresholds == nil {
		return DefaultThresholds
	}
	return *p.Thresholds
}

// WithThresholds はしきい値を差し替えたプロファイルのコピーを返します。
func (p Profile) WithThresholds(t Thresholds) Profile {
	p.Thresholds = &t
	return p
}

const (
	DefaultDownloadName = "detection_result.jpg"
	DefaultProfileName  = "leaf"
)

var profiles = map[string]Profile{
	"leaf": {
		Name:           "leaf",
		Title:          "Leaf Disease Detection",
		ShowDetections: true,
		DownloadName:   DefaultDownloadName,
	},
	"leaf-camera": {
		Name:           "leaf-camera",
		Title:          "Leaf Disease Detection",
		CaptureEnabled: true,
		Thresholds:     &Thresholds{Confidence: 0.1, IoU: 0.3},
		ShowDetections: true,
		DownloadName:   DefaultDownloadName,
	},
	"banana": {
		Name:           "banana",
		Title:          "Banana Leaf Disease Detection",
		CaptureEnabled: true,
		Thresholds:     &Thresholds{Confidence: 0.1, IoU: 0.3},
		DownloadName:   "banana_disease_result.jpg",
	},
}

// LookupProfile は組み込みプロファイルを名前で取得します。
func LookupProfile(name string) (Profile, bool) {
	p, ok := profiles[name]
	return p, ok
}

// ProfileNames は組み込みプロファイル名を昇順で返します。
func ProfileNames() []string {
	names := make([]string, 0, len(profiles))
	for n := range profiles {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
