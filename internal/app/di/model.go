// Package di provides dependency injection factories for creating application components.
package di

import (
	"context"
	"fmt"

	"leaf_backend/internal/app/config"
	"leaf_backend/internal/feature/detection/adapters/onnx"
	"leaf_backend/internal/feature/detection/adapters/vision"
	"leaf_backend/internal/feature/detection/usecase"
)

// NewModelLoader returns the loader for the configured backend.
// Wrap it in usecase.CachedModel so the artifact is loaded once per process.
func NewModelLoader(ctx context.Context, backend string) usecase.ModelLoader {
	return func() (usecase.Model, error) {
		mcfg := onnx.LoadConfig()
		switch backend {
		case config.BackendVision:
			labels, err := onnx.LoadLabels(mcfg)
			if err != nil {
				return nil, err
			}
			m, err := vision.NewVisionModel(ctx, labels)
			if err != nil {
				return nil, err
			}
			return m, nil
		case config.BackendONNX:
			m, err := onnx.Load(mcfg)
			if err != nil {
				return nil, err
			}
			return m, nil
		default:
			return nil, fmt.Errorf("unknown model backend %q", backend)
		}
	}
}
