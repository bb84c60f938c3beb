// Package gemini はGoogle Gemini APIを使用した手当ての助言生成クライアントを提供します。
package gemini

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"leaf_backend/internal/feature/detection/usecase"
)

const (
	// DefaultModel はGemini APIのデフォルトモデルです。
	DefaultModel = "gemini-2.5-flash"
)

// limiter は外部APIの呼び出し頻度を制限します。
type limiter interface {
	Wait(ctx context.Context) error
}

// GeminiAdvisor はGoogle Gemini APIを使用して助言を生成します。
type GeminiAdvisor struct {
	client  *genai.Client
	model   string
	limiter limiter
}

// GeminiAdvisorがAdviceGeneratorを実装していることをコンパイル時に検証します。
var _ usecase.AdviceGenerator = (*GeminiAdvisor)(nil)

// NewGeminiAdvisor はADCを使用してGeminiAdvisorの新しいインスタンスを生成します。
// 環境変数 GOOGLE_GENAI_USE_VERTEXAI, GOOGLE_CLOUD_PROJECT, GOOGLE_CLOUD_LOCATION
// または GEMINI_API_KEY が必要です。model が空の場合は DefaultModel を使用します。
func NewGeminiAdvisor(ctx context.Context, httpClient *http.Client, model string, l limiter) (*GeminiAdvisor, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{HTTPClient: httpClient})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	if model == "" {
		model = DefaultModel
	}
	return &GeminiAdvisor{client: client, model: model, limiter: l}, nil
}

// Generate はプロンプトを使用して助言テキストを生成します。
func (g *GeminiAdvisor) Generate(ctx context.Context, prompt string) (string, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limiter wait failed: %w", err)
		}
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("gemini API request failed: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("gemini API returned empty response")
	}
	return text, nil
}
