package domain

import "errors"

var (
	ErrInvalidModelConfig    = errors.New("invalid model configuration")
	ErrProviderNotConfigured = errors.New("provider not configured")
	ErrExperimentNotFound    = errors.New("experiment not found")
	ErrTemplateNotFound      = errors.New("template not found")
	ErrABTestNotFound        = errors.New("ab test not found")
	ErrMissingVariable       = errors.New("missing template variable")
	ErrRateLimitExceeded     = errors.New("rate limit exceeded")
	ErrInvalidRequest        = errors.New("invalid request")
)
