package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/promptlab/promptlab/internal/secrets"
)

type Config struct {
	Addr        string
	LogLevel    string
	DemoMode    bool
	CORSOrigins []string

	DatabaseURL string
	RedisURL    string

	OpenAIAPIKey     string
	OpenAIBaseURL    string
	AnthropicAPIKey  string
	AnthropicBaseURL string
	HFAPIToken       string
	HFBaseURL        string

	Workers            int
	DispatchTimeout    time.Duration
	RateLimitPerMinute int

	OTLPEndpoint       string
	AWSRegion          string
	SNSTopicARN        string
	SQSQueueURL        string
	ProviderSecretName string

	ShutdownTimeout time.Duration
}

func Load() (*Config, error) {
	cfg := &Config{
		Addr:               getEnv("ADDR", ":8080"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		DemoMode:           getEnv("DEMO_MODE", "false") == "true",
		CORSOrigins:        getListEnv("CORS_ORIGINS", "http://localhost:3000"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		RedisURL:           getEnv("REDIS_URL", ""),
		OpenAIAPIKey:       getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:      getEnv("OPENAI_BASE_URL", ""),
		AnthropicAPIKey:    getEnv("ANTHROPIC_API_KEY", ""),
		AnthropicBaseURL:   getEnv("ANTHROPIC_BASE_URL", ""),
		HFAPIToken:         getEnv("HF_API_TOKEN", ""),
		HFBaseURL:          getEnv("HF_BASE_URL", ""),
		Workers:            getIntEnv("WORKERS", 4),
		DispatchTimeout:    getDurationEnv("DISPATCH_TIMEOUT", 30*time.Second),
		RateLimitPerMinute: getIntEnv("RATE_LIMIT_PER_MINUTE", 10),
		OTLPEndpoint:       getEnv("OTLP_ENDPOINT", ""),
		AWSRegion:          getEnv("AWS_REGION", ""),
		SNSTopicARN:        getEnv("SNS_TOPIC_ARN", ""),
		SQSQueueURL:        getEnv("SQS_QUEUE_URL", ""),
		ProviderSecretName: getEnv("PROVIDER_SECRET_NAME", ""),
		ShutdownTimeout:    getDurationEnv("SHUTDOWN_TIMEOUT", 10*time.Second),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}
	if c.RateLimitPerMinute < 0 {
		return fmt.Errorf("rate limit must not be negative, got %d", c.RateLimitPerMinute)
	}
	if c.ProviderSecretName != "" && c.AWSRegion == "" {
		return fmt.Errorf("PROVIDER_SECRET_NAME requires AWS_REGION")
	}
	return nil
}

// Level maps the configured log level onto slog.
func (c *Config) Level() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// HydrateProviderKeys fills provider credentials that the environment
// left empty from the named secret. Environment values win.
func (c *Config) HydrateProviderKeys(ctx context.Context, store secrets.Store) error {
	if c.ProviderSecretName == "" {
		return nil
	}

	creds, err := secrets.LoadProviderCredentials(ctx, store, c.ProviderSecretName)
	if err != nil {
		return err
	}

	if c.OpenAIAPIKey == "" {
		c.OpenAIAPIKey = creds.OpenAIAPIKey
	}
	if c.AnthropicAPIKey == "" {
		c.AnthropicAPIKey = creds.AnthropicAPIKey
	}
	if c.HFAPIToken == "" {
		c.HFAPIToken = creds.HFAPIToken
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}

func getListEnv(key, defaultValue string) []string {
	value := getEnv(key, defaultValue)
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
