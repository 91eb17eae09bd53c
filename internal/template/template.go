// Package template renders prompt templates with {{variable}}
// placeholders and carries the seeded defaults served on first start.
package template

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/promptlab/promptlab/internal/domain"
)

// varPattern matches {{variable}} placeholders.
var varPattern = regexp.MustCompile(`\{\{(\w+)\}\}`)

// Render replaces every {{variable}} placeholder in the template body
// with its value from vars. Unknown extra vars are ignored; a
// placeholder without a value fails with ErrMissingVariable naming
// every missing variable.
func Render(body string, vars map[string]string) (string, error) {
	var missing []string

	result := varPattern.ReplaceAllStringFunc(body, func(match string) string {
		name := match[2 : len(match)-2]
		if value, ok := vars[name]; ok {
			return value
		}
		missing = append(missing, name)
		return match
	})

	if len(missing) > 0 {
		return "", fmt.Errorf("%w: %s", domain.ErrMissingVariable, strings.Join(missing, ", "))
	}
	return result, nil
}

// Variables lists the distinct placeholder names in the template body,
// in first-appearance order.
func Variables(body string) []string {
	seen := make(map[string]bool)
	var names []string
	for _, match := range varPattern.FindAllStringSubmatch(body, -1) {
		name := match[1]
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}

// Validate checks a template before it is stored: non-empty name and
// body, a known category, and declared variables consistent with the
// placeholders actually present in the body.
func Validate(t domain.PromptTemplate) error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("%w: template name must not be empty", domain.ErrInvalidRequest)
	}
	if strings.TrimSpace(t.Template) == "" {
		return fmt.Errorf("%w: template body must not be empty", domain.ErrInvalidRequest)
	}
	if !domain.ValidCategory(t.Category) {
		return fmt.Errorf("%w: unknown category %q", domain.ErrInvalidRequest, t.Category)
	}

	declared := make(map[string]bool, len(t.Variables))
	for _, name := range t.Variables {
		declared[name] = true
	}
	for _, name := range Variables(t.Template) {
		if !declared[name] {
			return fmt.Errorf("%w: variable %q used but not declared", domain.ErrInvalidRequest, name)
		}
	}
	return nil
}

// Defaults returns the templates seeded into an empty store, one per
// category.
func Defaults() []domain.PromptTemplate {
	now := time.Now().UTC()
	defaults := []domain.PromptTemplate{
		{
			Name:        "Explain a concept",
			Description: "Plain-language explanation aimed at a given audience",
			Template:    "Explain {{concept}} to {{audience}} in simple terms.",
			Category:    domain.CategoryGeneral,
			Variables:   []string{"concept", "audience"},
		},
		{
			Name:        "Short story",
			Description: "A short story from a theme and a setting",
			Template:    "Write a short story about {{theme}} set in {{setting}}.",
			Category:    domain.CategoryCreative,
			Variables:   []string{"theme", "setting"},
		},
		{
			Name:        "Step-by-step guide",
			Description: "Numbered instructions for a technical task",
			Template:    "Provide step-by-step instructions for {{task}} using {{tool}}.",
			Category:    domain.CategoryTechnical,
			Variables:   []string{"task", "tool"},
		},
		{
			Name:        "Pros and cons",
			Description: "Balanced analysis of a decision",
			Template:    "Analyze the advantages and disadvantages of {{subject}}. Consider {{criteria}}.",
			Category:    domain.CategoryAnalysis,
			Variables:   []string{"subject", "criteria"},
		},
		{
			Name:        "Code review",
			Description: "Review a snippet for correctness and style",
			Template:    "Review the following {{language}} code and suggest improvements:\n\n{{code}}",
			Category:    domain.CategoryCoding,
			Variables:   []string{"language", "code"},
		},
	}
	for i := range defaults {
		defaults[i].ID = uuid.NewString()
		defaults[i].CreatedAt = now
	}
	return defaults
}
