package usecase

import (
	"context"
	"fmt"

	"leaf_backend/internal/feature/detection/domain/entity"
)

// AdvicePromptTemplate は手当ての助言を求めるプロンプトテンプレートです。
const AdvicePromptTemplate = "A plant leaf was classified as %q by an image detector. " +
	"In at most five short bullet points, explain what this means and how a grower should treat or prevent it."

// AdviceGenerator はプロンプトから助言テキストを生成するインターフェースです。
type AdviceGenerator interface {
	// Generate はプロンプトから助言テキストを生成します。
	Generate(ctx context.Context, prompt string) (string, error)
}

// adviceUsecase は直近の検出結果に対する手当ての助言を提供します。
type adviceUsecase struct {
	sessions  SessionRepository
	generator AdviceGenerator
}

// NewAdviceUsecase はadviceUsecaseの新しいインスタンスを生成します。generator が nil の場合は無効です。
func NewAdviceUsecase(sessions SessionRepository, generator AdviceGenerator) *adviceUsecase {
	return &adviceUsecase{sessions: sessions, generator: generator}
}

// Advise はセッションの直近結果のうち最も信頼度の高いクラスについて助言を生成します。
func (u *adviceUsecase) Advise(ctx context.Context, sessionID string) (*entity.Advice, error) {
	if u.generator == nil {
		return nil, ErrAdviceUnavailable
	}
	s, err := u.sessions.Find(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	top, ok := s.Result.Top()
	if !ok {
		return nil, ErrNoResult
	}

	prompt := fmt.Sprintf(AdvicePromptTemplate, top.Label)
	text, err := u.generator.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w for %q: %w", ErrAdviceFailed, top.Label, err)
	}
	return &entity.Advice{Label: top.Label, Text: text}, nil
}
