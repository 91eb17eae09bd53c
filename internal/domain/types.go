package domain

import "time"

type Provider string

const (
	ProviderOpenAI      Provider = "openai"
	ProviderAnthropic   Provider = "anthropic"
	ProviderHuggingFace Provider = "huggingface"
)

func (p Provider) Valid() bool {
	switch p {
	case ProviderOpenAI, ProviderAnthropic, ProviderHuggingFace:
		return true
	}
	return false
}

func Providers() []Provider {
	return []Provider{ProviderOpenAI, ProviderAnthropic, ProviderHuggingFace}
}

type RunStatus string

const (
	StatusSucceeded RunStatus = "succeeded"
	StatusFallback  RunStatus = "fallback"
	StatusFailed    RunStatus = "failed"
)

type ErrorKind string

const (
	ErrorKindQuota ErrorKind = "quota"
	ErrorKindAuth  ErrorKind = "auth"
	ErrorKindOther ErrorKind = "other"
)

type TokenUsage struct {
	PromptTokens     int  `json:"prompt_tokens"`
	CompletionTokens int  `json:"completion_tokens"`
	TotalTokens      int  `json:"total_tokens"`
	Estimated        bool `json:"estimated,omitempty"`
}

type Outcome struct {
	Status    RunStatus   `json:"status"`
	Text      string      `json:"text,omitempty"`
	Usage     *TokenUsage `json:"token_usage,omitempty"`
	ErrorKind ErrorKind   `json:"error_kind,omitempty"`
	Error     string      `json:"error,omitempty"`
}

func (o Outcome) Success() bool {
	return o.Status == StatusSucceeded || o.Status == StatusFallback
}

func (o Outcome) Fallback() bool {
	return o.Status == StatusFallback
}

type MetricsSnapshot struct {
	ResponseLength   int      `json:"response_length"`
	TokenCount       int      `json:"token_count"`
	LatencyMs        float64  `json:"latency_ms"`
	CostEstimate     float64  `json:"cost_estimate"`
	SentimentScore   *float64 `json:"sentiment_score,omitempty"`
	ReadabilityScore *float64 `json:"readability_score,omitempty"`
	CoherenceScore   *float64 `json:"coherence_score,omitempty"`
}

type RunResult struct {
	ID        string          `json:"id"`
	Prompt    string          `json:"prompt"`
	Config    ModelConfig     `json:"model_config"`
	RunNumber int             `json:"run_number"`
	Outcome   Outcome         `json:"outcome"`
	Metrics   MetricsSnapshot `json:"metrics"`
	CreatedAt time.Time       `json:"created_at"`
}

type MetricStats struct {
	Avg float64 `json:"avg"`
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

type AggregateSummary struct {
	Metrics        map[string]MetricStats `json:"metrics,omitempty"`
	TotalResponses int                    `json:"total_responses"`
	SuccessRate    float64                `json:"success_rate"`
}

type Experiment struct {
	ID         string           `json:"id"`
	Prompt     string           `json:"prompt"`
	TemplateID string           `json:"template_id,omitempty"`
	Results    []RunResult      `json:"results"`
	Summary    AggregateSummary `json:"summary"`
	DurationMs int64            `json:"duration_ms"`
	Rating     *int             `json:"rating,omitempty"`
	Notes      string           `json:"notes,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
}

type PromptTemplate struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Template    string    `json:"template"`
	Category    string    `json:"category"`
	Variables   []string  `json:"variables,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

const (
	CategoryGeneral   = "general"
	CategoryCreative  = "creative"
	CategoryTechnical = "technical"
	CategoryAnalysis  = "analysis"
	CategoryCoding    = "coding"
)

func ValidCategory(c string) bool {
	switch c {
	case CategoryGeneral, CategoryCreative, CategoryTechnical, CategoryAnalysis, CategoryCoding:
		return true
	}
	return false
}

type SuccessMetric string

const (
	MetricLatency        SuccessMetric = "latency_ms"
	MetricResponseLength SuccessMetric = "response_length"
	MetricCost           SuccessMetric = "cost_estimate"
	MetricUserRating     SuccessMetric = "user_rating"
)

func (m SuccessMetric) Valid() bool {
	switch m {
	case MetricLatency, MetricResponseLength, MetricCost, MetricUserRating:
		return true
	}
	return false
}

const (
	ABTestCreated   = "created"
	ABTestRunning   = "running"
	ABTestCompleted = "completed"
)

type ABTest struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	VariantA     ModelConfig       `json:"variant_a"`
	VariantB     ModelConfig       `json:"variant_b"`
	TrafficSplit float64           `json:"traffic_split"`
	Metric       SuccessMetric     `json:"success_metric"`
	Status       string            `json:"status"`
	Winner       string            `json:"winner,omitempty"`
	SummaryA     *AggregateSummary `json:"summary_a,omitempty"`
	SummaryB     *AggregateSummary `json:"summary_b,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	CompletedAt  *time.Time        `json:"completed_at,omitempty"`
}
