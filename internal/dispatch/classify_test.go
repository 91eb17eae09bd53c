package dispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/promptlab/promptlab/internal/domain"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected domain.ErrorKind
	}{
		{
			name:     "rate limit message",
			err:      errors.New("Rate limit exceeded for model gpt-4"),
			expected: domain.ErrorKindQuota,
		},
		{
			name:     "status 429",
			err:      errors.New("openai error: status=429 body=too many requests"),
			expected: domain.ErrorKindQuota,
		},
		{
			name:     "insufficient quota",
			err:      errors.New("insufficient_quota: check your plan and billing details"),
			expected: domain.ErrorKindQuota,
		},
		{
			name:     "uppercase quota",
			err:      errors.New("monthly QUOTA reached"),
			expected: domain.ErrorKindQuota,
		},
		{
			name:     "invalid api key",
			err:      errors.New("Invalid API key provided"),
			expected: domain.ErrorKindAuth,
		},
		{
			name:     "status 401",
			err:      errors.New("anthropic error: status=401 body=invalid x-api-key"),
			expected: domain.ErrorKindAuth,
		},
		{
			name:     "authentication failed",
			err:      errors.New("authentication failed for request"),
			expected: domain.ErrorKindAuth,
		},
		{
			name:     "unauthorized",
			err:      errors.New("request was Unauthorized"),
			expected: domain.ErrorKindAuth,
		},
		{
			name:     "connection refused",
			err:      errors.New("do request: dial tcp: connection refused"),
			expected: domain.ErrorKindOther,
		},
		{
			name:     "malformed response",
			err:      errors.New("decode response: unexpected EOF"),
			expected: domain.ErrorKindOther,
		},
		{
			name:     "nil error",
			err:      nil,
			expected: domain.ErrorKindOther,
		},
		{
			name:     "context canceled",
			err:      context.Canceled,
			expected: domain.ErrorKindOther,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.expected {
				t.Errorf("Classify(%v) = %s, expected %s", tt.err, got, tt.expected)
			}
		})
	}
}

func TestClassifyQuotaPrecedence(t *testing.T) {
	// Both keyword families present: quota wins.
	err := errors.New("401 unauthorized: rate limit reached for this key")
	if got := Classify(err); got != domain.ErrorKindQuota {
		t.Errorf("expected quota precedence, got %s", got)
	}
}

func TestClassifyDeadlineMessage(t *testing.T) {
	// The classifier is purely keyword-driven, and the standard deadline
	// message carries "exceeded". Caller cancellation is shortcut in the
	// dispatcher before classification ever runs.
	if got := Classify(context.DeadlineExceeded); got != domain.ErrorKindQuota {
		t.Errorf("expected quota for deadline message, got %s", got)
	}
}
