package template

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/promptlab/promptlab/internal/domain"
)

func TestRender(t *testing.T) {
	tests := []struct {
		name string
		body string
		vars map[string]string
		want string
	}{
		{
			name: "single variable",
			body: "Explain {{concept}} simply.",
			vars: map[string]string{"concept": "recursion"},
			want: "Explain recursion simply.",
		},
		{
			name: "repeated variable",
			body: "{{name}} meets {{name}}",
			vars: map[string]string{"name": "Alice"},
			want: "Alice meets Alice",
		},
		{
			name: "multiple variables",
			body: "Explain {{concept}} to {{audience}}.",
			vars: map[string]string{"concept": "DNS", "audience": "a beginner"},
			want: "Explain DNS to a beginner.",
		},
		{
			name: "no placeholders",
			body: "static prompt",
			vars: nil,
			want: "static prompt",
		},
		{
			name: "extra vars ignored",
			body: "Hello {{name}}",
			vars: map[string]string{"name": "Bob", "unused": "x"},
			want: "Hello Bob",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Render(tt.body, tt.vars)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestRenderMissingVariable(t *testing.T) {
	_, err := Render("Explain {{concept}} to {{audience}}.", map[string]string{"concept": "DNS"})
	if !errors.Is(err, domain.ErrMissingVariable) {
		t.Fatalf("expected ErrMissingVariable, got %v", err)
	}
	if !strings.Contains(err.Error(), "audience") {
		t.Errorf("error must name the missing variable, got %q", err.Error())
	}
}

func TestVariables(t *testing.T) {
	got := Variables("{{a}} then {{b}} then {{a}} again")
	want := []string{"a", "b"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}

	if got := Variables("no placeholders"); got != nil {
		t.Errorf("expected nil for plain text, got %v", got)
	}
}

func TestValidate(t *testing.T) {
	valid := domain.PromptTemplate{
		Name:      "Explain",
		Template:  "Explain {{concept}}.",
		Category:  domain.CategoryGeneral,
		Variables: []string{"concept"},
	}

	tests := []struct {
		name    string
		mutate  func(t *domain.PromptTemplate)
		wantErr bool
	}{
		{name: "valid", mutate: func(*domain.PromptTemplate) {}, wantErr: false},
		{name: "empty name", mutate: func(pt *domain.PromptTemplate) { pt.Name = "  " }, wantErr: true},
		{name: "empty body", mutate: func(pt *domain.PromptTemplate) { pt.Template = "" }, wantErr: true},
		{name: "unknown category", mutate: func(pt *domain.PromptTemplate) { pt.Category = "poetry" }, wantErr: true},
		{name: "undeclared variable", mutate: func(pt *domain.PromptTemplate) { pt.Variables = nil }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pt := valid
			tt.mutate(&pt)
			err := Validate(pt)
			if tt.wantErr && err == nil {
				t.Error("expected an error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestDefaultsCoverEveryCategory(t *testing.T) {
	defaults := Defaults()
	if len(defaults) != 5 {
		t.Fatalf("expected 5 default templates, got %d", len(defaults))
	}

	categories := make(map[string]bool)
	for _, pt := range defaults {
		if err := Validate(pt); err != nil {
			t.Errorf("default %q invalid: %v", pt.Name, err)
		}
		if pt.ID == "" || pt.CreatedAt.IsZero() {
			t.Errorf("default %q missing metadata", pt.Name)
		}
		categories[pt.Category] = true
	}
	if len(categories) != 5 {
		t.Errorf("defaults must span all categories, got %v", categories)
	}
}
