// Package hub adapts hosted open-model inference endpoints that follow the
// Hugging Face style text-generation API. The hub does not report token
// usage, so counts are word-count estimates.
package hub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/promptlab/promptlab/internal/domain"
	"github.com/promptlab/promptlab/internal/httputil"
	"github.com/promptlab/promptlab/internal/provider"
	"github.com/promptlab/promptlab/internal/scoring"
)

const defaultBaseURL = "https://api-inference.huggingface.co"

type Adapter struct {
	token   string
	baseURL string
	client  *http.Client
}

func New(token, baseURL string) *Adapter {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Adapter{
		token:   token,
		baseURL: baseURL,
		client:  httputil.DefaultClient(),
	}
}

func (a *Adapter) Name() domain.Provider {
	return domain.ProviderHuggingFace
}

func (a *Adapter) Generate(ctx context.Context, prompt string, cfg domain.ModelConfig) (*provider.Result, error) {
	req := inferenceRequest{
		Inputs: prompt,
		Parameters: inferenceParameters{
			MaxNewTokens: cfg.MaxTokens,
			Temperature:  cfg.Temperature,
			TopP:         cfg.TopP,
		},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/models/"+cfg.ModelName, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if a.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+a.token)
	}

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("hub error: status=%d body=%s", resp.StatusCode, string(bodyBytes))
	}

	var outputs []generatedOutput
	if err := json.NewDecoder(resp.Body).Decode(&outputs); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if len(outputs) == 0 {
		return nil, fmt.Errorf("hub error: empty output")
	}

	// Some models echo the prompt ahead of the completion.
	text := strings.TrimPrefix(outputs[0].GeneratedText, prompt)
	text = strings.TrimSpace(text)

	promptTokens := scoring.EstimateTokens(prompt)
	completionTokens := scoring.EstimateTokens(text)

	return &provider.Result{
		Text: text,
		Usage: &domain.TokenUsage{
			PromptTokens:     promptTokens,
			CompletionTokens: completionTokens,
			TotalTokens:      promptTokens + completionTokens,
			Estimated:        true,
		},
	}, nil
}

type inferenceRequest struct {
	Inputs     string              `json:"inputs"`
	Parameters inferenceParameters `json:"parameters"`
}

type inferenceParameters struct {
	MaxNewTokens int     `json:"max_new_tokens"`
	Temperature  float64 `json:"temperature"`
	TopP         float64 `json:"top_p"`
}

type generatedOutput struct {
	GeneratedText string `json:"generated_text"`
}
