// Package onnx はgocv（OpenCV DNN）でONNX形式のYOLO検出モデルを実行します。
package onnx

import (
	"os"
	"strconv"
	"strings"
)

// Config はONNXモデルの読み込み設定です。
type Config struct {
	ModelPath  string   // モデルファイル（.onnx）のパス
	LabelsPath string   // 1行1クラスのラベルファイル（Labels が空の場合に使用）
	Labels     []string // ラベルの直接指定（MODEL_LABELS をカンマ区切り）
	InputSize  int      // 入力解像度（正方形）
}

// LoadConfig は環境変数からONNXモデル設定を読み込みます。
func LoadConfig() Config {
	cfg := Config{
		ModelPath:  getEnv("MODEL_PATH", "best.onnx"),
		LabelsPath: getEnv("MODEL_LABELS_PATH", "labels.txt"),
		InputSize:  640,
	}
	if raw := os.Getenv("MODEL_LABELS"); raw != "" {
		cfg.Labels = strings.Split(raw, ",")
	}
	if v, err := strconv.Atoi(os.Getenv("MODEL_INPUT_SIZE")); err == nil && v > 0 {
		cfg.InputSize = v
	}
	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
