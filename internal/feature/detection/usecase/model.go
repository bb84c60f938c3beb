package usecase

import (
	"context"
	"image"
	"sync"

	"leaf_backend/internal/feature/detection/domain/entity"
)

// Model は事前学習済み検出モデルへのアクセスを抽象化します。
// Predict は再入可能であることを前提とします。
type Model interface {
	// Name はモデルの識別名を返します。
	Name() string
	// Labels はモデルの固定ラベルセットを返します。
	Labels() entity.LabelSet
	// Predict は画像から検出を行い、しきい値を満たす検出を返します。
	Predict(ctx context.Context, img image.Image, th entity.Thresholds) ([]entity.Detection, error)
	// Close はモデルが保持するリソースを解放します。
	Close() error
}

// ModelLoader はモデルを読み込む関数です。
type ModelLoader func() (Model, error)

// CachedModel はModelLoaderをプロセス内で高々1回だけ呼び出し、結果（エラー含む）を保持します。
type CachedModel struct {
	once  sync.Once
	load  ModelLoader
	model Model
	err   error
}

// NewCachedModel はCachedModelを生成します。この時点では読み込みません。
func NewCachedModel(load ModelLoader) *CachedModel {
	return &CachedModel{load: load}
}

// Get はモデルを返します。初回呼び出し時のみ読み込みを行います。
func (c *CachedModel) Get() (Model, error) {
	c.once.Do(func() {
		c.model, c.err = c.load()
	})
	return c.model, c.err
}
