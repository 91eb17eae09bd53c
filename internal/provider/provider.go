package provider

import (
	"context"

	"github.com/promptlab/promptlab/internal/domain"
)

// Adapter is a thin HTTP client for one provider variant. Implementations
// respect the deadline carried by ctx and surface non-2xx responses as
// errors embedding the status code and body, so failures stay classifiable
// downstream.
type Adapter interface {
	Name() domain.Provider
	Generate(ctx context.Context, prompt string, cfg domain.ModelConfig) (*Result, error)
}

type Result struct {
	Text  string
	Usage *domain.TokenUsage
}
