package dispatch

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/promptlab/promptlab/internal/domain"
	"github.com/promptlab/promptlab/internal/scoring"
)

const (
	minSimulatedDelay = 500 * time.Millisecond
	maxSimulatedDelay = 2 * time.Second
)

var openAITemplates = []string{
	"This is a mock completion from %s. No live call was made; configure an API key to see real model output. The response still flows through the normal metrics pipeline.",
	"Simulated %s output. The service produced this text locally, with timing and token estimates shaped like a real chat completion so configurations stay comparable.",
	"%s (mock): canned completion text standing in for a live response. Lengths, cost estimates, and scores are computed exactly as they would be for real output.",
}

var anthropicTemplates = []string{
	"This is a locally generated stand-in for a %s reply. No request reached the provider; the text exists so downstream scoring has something realistic to chew on.",
	"Mock %s message. Generated without network access, but sized and scored like a genuine response so experiment summaries remain meaningful.",
	"%s (simulated): placeholder assistant text. Token usage is estimated from word counts and the cost estimate uses the same rate table as live traffic.",
}

var hubTemplates = []string{
	"Mock generation from hub model %s. The hosted endpoint was not called; this local text keeps the experiment pipeline exercised end to end.",
	"Simulated completion for %s. Open-model endpoints often cold-start slowly, so the mock also simulates a short delay before returning.",
	"%s (offline mock): stand-in generation produced without the inference API. Metrics for this response are estimates, flagged as such in token usage.",
}

// Generator produces deterministic-shape mock results when no real call is
// made (demo mode) or a call failed recoverably. Content selection and the
// simulated delay draw from an injected random source so tests can pin both.
type Generator struct {
	scorer *scoring.Engine
	sleep  func(time.Duration)

	mu  sync.Mutex
	rng *rand.Rand
}

// NewGenerator builds the mock generator. rng may be nil for a time-seeded
// source; sleep may be nil for time.Sleep.
func NewGenerator(scorer *scoring.Engine, rng *rand.Rand, sleep func(time.Duration)) *Generator {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if sleep == nil {
		sleep = time.Sleep
	}
	return &Generator{
		scorer: scorer,
		sleep:  sleep,
		rng:    rng,
	}
}

// Generate returns a fallback outcome and its metrics. elapsed is the real
// time already spent before degrading; the simulated delay is added on top
// of it, never substituted for it. cause is the classified failure being
// recovered from; an empty cause means demo mode and skips the degradation
// notice. Generate never fails.
func (g *Generator) Generate(prompt string, cfg domain.ModelConfig, elapsed time.Duration, cause domain.ErrorKind) (domain.Outcome, domain.MetricsSnapshot) {
	g.mu.Lock()
	templates := templatesFor(cfg.Provider)
	text := fmt.Sprintf(templates[g.rng.Intn(len(templates))], cfg.ModelName)
	delay := minSimulatedDelay + time.Duration(g.rng.Float64()*float64(maxSimulatedDelay-minSimulatedDelay))
	g.mu.Unlock()

	if looksLikeQuestion(prompt) {
		text += "\n\n" + questionNote(prompt)
	}
	if cause != "" {
		text = degradationNotice(cause) + "\n\n" + text
	}

	g.sleep(delay)
	latency := elapsed + delay

	promptTokens := scoring.EstimateTokens(prompt)
	completionTokens := scoring.EstimateTokens(text)
	usage := &domain.TokenUsage{
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalTokens:      promptTokens + completionTokens,
		Estimated:        true,
	}

	outcome := domain.Outcome{
		Status: domain.StatusFallback,
		Text:   text,
		Usage:  usage,
	}
	return outcome, g.scorer.Compute(text, cfg.ModelName, latency, usage)
}

func templatesFor(p domain.Provider) []string {
	switch p {
	case domain.ProviderAnthropic:
		return anthropicTemplates
	case domain.ProviderHuggingFace:
		return hubTemplates
	default:
		return openAITemplates
	}
}

func looksLikeQuestion(prompt string) bool {
	return strings.Contains(prompt, "?") ||
		strings.Contains(strings.ToLower(prompt), "question")
}

func questionNote(prompt string) string {
	runes := []rune(prompt)
	excerpt := string(runes)
	if len(runes) > 100 {
		excerpt = string(runes[:100]) + "..."
	}
	return fmt.Sprintf("Note: this is a mock response to your question: %q", excerpt)
}

func degradationNotice(kind domain.ErrorKind) string {
	switch kind {
	case domain.ErrorKindQuota:
		return "[provider quota exhausted; serving locally generated fallback]"
	case domain.ErrorKindAuth:
		return "[provider authentication failed; serving locally generated fallback]"
	default:
		return "[provider unavailable; serving locally generated fallback]"
	}
}
