// Package scoring computes per-response quality metrics: basic counts plus
// lexicon sentiment, Flesch reading ease, and a sentence-length coherence
// heuristic. The scores exist to compare configurations side by side; they
// are not calibrated measures of quality.
package scoring

import (
	"math"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/promptlab/promptlab/internal/cost"
	"github.com/promptlab/promptlab/internal/domain"
)

type Engine struct {
	costs *cost.Calculator
}

func NewEngine(costs *cost.Calculator) *Engine {
	return &Engine{costs: costs}
}

// Compute builds the full snapshot for a response. Token count prefers
// provider-reported usage over the whitespace heuristic. A panic in the
// advanced metrics downgrades to the minimal snapshot instead of
// propagating; a response must never fail because scoring did.
func (e *Engine) Compute(text, model string, latency time.Duration, usage *domain.TokenUsage) (snap domain.MetricsSnapshot) {
	snap = e.Minimal(text, latency)
	defer func() {
		if r := recover(); r != nil {
			snap = e.Minimal(text, latency)
		}
	}()

	if usage != nil && usage.TotalTokens > 0 {
		snap.TokenCount = usage.TotalTokens
	}
	snap.CostEstimate = e.costs.Estimate(model, snap.TokenCount)

	sentiment := Sentiment(text)
	readability := Readability(text)
	coherence := Coherence(text)
	snap.SentimentScore = &sentiment
	snap.ReadabilityScore = &readability
	snap.CoherenceScore = &coherence
	return snap
}

// Minimal is the degraded snapshot: counts and latency only, no cost, no
// advanced scores.
func (e *Engine) Minimal(text string, latency time.Duration) domain.MetricsSnapshot {
	return domain.MetricsSnapshot{
		ResponseLength: utf8.RuneCountInString(text),
		TokenCount:     len(strings.Fields(text)),
		LatencyMs:      latency.Seconds() * 1000,
	}
}

// EstimateTokens approximates a token count from whitespace words. Used
// where the provider reports no usage.
func EstimateTokens(text string) int {
	return int(float64(len(strings.Fields(text))) * 1.3)
}

var positiveWords = map[string]struct{}{
	"good": {}, "great": {}, "excellent": {}, "amazing": {}, "wonderful": {}, "fantastic": {},
}

var negativeWords = map[string]struct{}{
	"bad": {}, "terrible": {}, "awful": {}, "horrible": {}, "poor": {}, "disappointing": {},
}

// Sentiment scores text in [-1, 1] by counting lexicon hits over lowercased
// whitespace words: (positive - negative) / (positive + negative), zero when
// neither appears.
func Sentiment(text string) float64 {
	var pos, neg int
	for _, word := range strings.Fields(strings.ToLower(text)) {
		if _, ok := positiveWords[word]; ok {
			pos++
		}
		if _, ok := negativeWords[word]; ok {
			neg++
		}
	}
	if pos+neg == 0 {
		return 0
	}
	return float64(pos-neg) / float64(pos+neg)
}

var sentenceSplit = regexp.MustCompile(`[.!?]+`)

// Readability scores text in [0, 1] using Flesch reading ease scaled down by
// 100. Sentence count includes the empty fragment after a trailing
// terminator, which keeps short-text scores stable.
func Readability(text string) float64 {
	sentences := len(sentenceSplit.Split(text, -1))
	words := strings.Fields(text)
	if sentences == 0 || len(words) == 0 {
		return 0
	}

	var syllables int
	for _, word := range words {
		syllables += countSyllables(word)
	}

	score := 206.835 -
		1.015*(float64(len(words))/float64(sentences)) -
		84.6*(float64(syllables)/float64(len(words)))
	return math.Max(0, math.Min(100, score)) / 100
}

func countSyllables(word string) int {
	word = strings.ToLower(word)
	count := 0
	prevVowel := false
	for _, r := range word {
		isVowel := strings.ContainsRune("aeiouy", r)
		if isVowel && !prevVowel {
			count++
		}
		prevVowel = isVowel
	}
	if strings.HasSuffix(word, "e") {
		count--
	}
	if count < 1 {
		count = 1
	}
	return count
}

// Coherence scores sentence-length consistency in (0, 1]. Texts with fewer
// than two non-empty sentences are trivially coherent.
func Coherence(text string) float64 {
	var lengths []float64
	for _, segment := range strings.Split(text, ".") {
		if trimmed := strings.TrimSpace(segment); trimmed != "" {
			lengths = append(lengths, float64(len(strings.Fields(trimmed))))
		}
	}
	if len(lengths) < 2 {
		return 1.0
	}

	var sum float64
	for _, l := range lengths {
		sum += l
	}
	mean := sum / float64(len(lengths))

	var variance float64
	for _, l := range lengths {
		variance += (l - mean) * (l - mean)
	}
	variance /= float64(len(lengths))

	return 1 / (1 + variance/math.Max(mean, 1))
}
