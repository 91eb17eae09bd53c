package cost

import "sort"

// Per-1K-token rates in USD. Estimation only, not billing: lookup is by
// exact model name and anything unknown falls back to DefaultRate.
const DefaultRate = 0.001

var defaultRates = map[string]float64{
	"gpt-4":           0.03,
	"gpt-4-turbo":     0.01,
	"gpt-4o":          0.005,
	"gpt-4o-mini":     0.00015,
	"gpt-3.5-turbo":   0.002,
	"claude-3-opus":   0.015,
	"claude-3-sonnet": 0.003,
	"claude-3-haiku":  0.00025,
	"claude-3-5-sonnet": 0.003,
}

type Calculator struct {
	rates map[string]float64
}

func NewCalculator() *Calculator {
	rates := make(map[string]float64, len(defaultRates))
	for model, rate := range defaultRates {
		rates[model] = rate
	}
	return &Calculator{rates: rates}
}

func (c *Calculator) Rate(model string) float64 {
	if rate, ok := c.rates[model]; ok {
		return rate
	}
	return DefaultRate
}

// Estimate returns the cost in USD for the given token count.
func (c *Calculator) Estimate(model string, tokens int) float64 {
	return float64(tokens) / 1000 * c.Rate(model)
}

func (c *Calculator) SetRate(model string, per1K float64) {
	c.rates[model] = per1K
}

func (c *Calculator) Models() []string {
	models := make([]string, 0, len(c.rates))
	for model := range c.rates {
		models = append(models, model)
	}
	sort.Strings(models)
	return models
}
