package domain

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

const (
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 1000
	DefaultTopP        = 1.0
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ModelConfig is a validated, immutable description of a single generation
// target. Construct via NewModelConfig; out-of-range values are rejected,
// never clamped.
type ModelConfig struct {
	Provider         Provider `json:"provider" validate:"required,oneof=openai anthropic huggingface"`
	ModelName        string   `json:"model_name" validate:"required"`
	Temperature      float64  `json:"temperature" validate:"gte=0,lte=2"`
	MaxTokens        int      `json:"max_tokens" validate:"gte=1,lte=4000"`
	TopP             float64  `json:"top_p" validate:"gte=0,lte=1"`
	FrequencyPenalty float64  `json:"frequency_penalty" validate:"gte=-2,lte=2"`
	PresencePenalty  float64  `json:"presence_penalty" validate:"gte=-2,lte=2"`
}

// ModelConfigParams carries caller input before defaulting. Pointer fields
// distinguish "absent" from an explicit zero.
type ModelConfigParams struct {
	Provider         Provider `json:"provider"`
	ModelName        string   `json:"model_name"`
	Temperature      *float64 `json:"temperature,omitempty"`
	MaxTokens        *int     `json:"max_tokens,omitempty"`
	TopP             *float64 `json:"top_p,omitempty"`
	FrequencyPenalty *float64 `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64 `json:"presence_penalty,omitempty"`
}

func NewModelConfig(p ModelConfigParams) (ModelConfig, error) {
	cfg := ModelConfig{
		Provider:    p.Provider,
		ModelName:   p.ModelName,
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
		TopP:        DefaultTopP,
	}
	if p.Temperature != nil {
		cfg.Temperature = *p.Temperature
	}
	if p.MaxTokens != nil {
		cfg.MaxTokens = *p.MaxTokens
	}
	if p.TopP != nil {
		cfg.TopP = *p.TopP
	}
	if p.FrequencyPenalty != nil {
		cfg.FrequencyPenalty = *p.FrequencyPenalty
	}
	if p.PresencePenalty != nil {
		cfg.PresencePenalty = *p.PresencePenalty
	}
	if err := cfg.Validate(); err != nil {
		return ModelConfig{}, err
	}
	return cfg, nil
}

func (c ModelConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidModelConfig, err)
	}
	return nil
}
