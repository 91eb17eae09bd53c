// Package export flattens experiment runs into tabular records and writes
// them as CSV or JSON. The same records back both the analytics export
// endpoint and the batch CLI artifacts.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/promptlab/promptlab/internal/domain"
)

type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// ParseFormat normalizes a user-supplied format name. Unknown formats are
// rejected rather than defaulted.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv", "":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: unsupported export format %q", domain.ErrInvalidRequest, s)
	}
}

func (f Format) ContentType() string {
	if f == FormatJSON {
		return "application/json"
	}
	return "text/csv"
}

// Filename builds the download name for an export taken at the given time.
func Filename(f Format, now time.Time) string {
	return fmt.Sprintf("experiments_%s.%s", now.Format("20060102_150405"), f)
}

// Record is one experiment run with its configuration and metrics pulled up
// into flat columns.
type Record struct {
	ID               string   `json:"id"`
	ExperimentID     string   `json:"experiment_id"`
	Prompt           string   `json:"prompt"`
	TemplateID       string   `json:"template_id,omitempty"`
	Provider         string   `json:"model_provider"`
	ModelName        string   `json:"model_name"`
	RunNumber        int      `json:"run_number"`
	Status           string   `json:"status"`
	Response         string   `json:"response"`
	ErrorKind        string   `json:"error_kind,omitempty"`
	ErrorMessage     string   `json:"error_message,omitempty"`
	UserRating       *int     `json:"user_rating"`
	Notes            string   `json:"notes,omitempty"`
	CreatedAt        string   `json:"created_at"`
	Temperature      float64  `json:"config_temperature"`
	MaxTokens        int      `json:"config_max_tokens"`
	TopP             float64  `json:"config_top_p"`
	FrequencyPenalty float64  `json:"config_frequency_penalty"`
	PresencePenalty  float64  `json:"config_presence_penalty"`
	ResponseLength   int      `json:"metric_response_length"`
	TokenCount       int      `json:"metric_token_count"`
	LatencyMs        float64  `json:"metric_latency_ms"`
	CostEstimate     float64  `json:"metric_cost_estimate"`
	SentimentScore   *float64 `json:"metric_sentiment_score"`
	ReadabilityScore *float64 `json:"metric_readability_score"`
	CoherenceScore   *float64 `json:"metric_coherence_score"`
}

// Flatten expands each experiment into one record per run. Experiment-level
// fields (prompt, rating, notes) repeat on every row so each record stands
// alone in a spreadsheet.
func Flatten(experiments []*domain.Experiment) []Record {
	var records []Record
	for _, exp := range experiments {
		for _, res := range exp.Results {
			records = append(records, Record{
				ID:               res.ID,
				ExperimentID:     exp.ID,
				Prompt:           exp.Prompt,
				TemplateID:       exp.TemplateID,
				Provider:         string(res.Config.Provider),
				ModelName:        res.Config.ModelName,
				RunNumber:        res.RunNumber,
				Status:           string(res.Outcome.Status),
				Response:         res.Outcome.Text,
				ErrorKind:        string(res.Outcome.ErrorKind),
				ErrorMessage:     res.Outcome.Error,
				UserRating:       exp.Rating,
				Notes:            exp.Notes,
				CreatedAt:        res.CreatedAt.UTC().Format(time.RFC3339),
				Temperature:      res.Config.Temperature,
				MaxTokens:        res.Config.MaxTokens,
				TopP:             res.Config.TopP,
				FrequencyPenalty: res.Config.FrequencyPenalty,
				PresencePenalty:  res.Config.PresencePenalty,
				ResponseLength:   res.Metrics.ResponseLength,
				TokenCount:       res.Metrics.TokenCount,
				LatencyMs:        res.Metrics.LatencyMs,
				CostEstimate:     res.Metrics.CostEstimate,
				SentimentScore:   res.Metrics.SentimentScore,
				ReadabilityScore: res.Metrics.ReadabilityScore,
				CoherenceScore:   res.Metrics.CoherenceScore,
			})
		}
	}
	return records
}

var csvHeader = []string{
	"id", "experiment_id", "prompt", "template_id",
	"model_provider", "model_name", "run_number", "status",
	"response", "error_kind", "error_message",
	"user_rating", "notes", "created_at",
	"config_temperature", "config_max_tokens", "config_top_p",
	"config_frequency_penalty", "config_presence_penalty",
	"metric_response_length", "metric_token_count", "metric_latency_ms",
	"metric_cost_estimate", "metric_sentiment_score",
	"metric_readability_score", "metric_coherence_score",
}

// WriteCSV writes the header row followed by one row per record.
func WriteCSV(w io.Writer, records []Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range records {
		row := []string{
			r.ID, r.ExperimentID, r.Prompt, r.TemplateID,
			r.Provider, r.ModelName, fmt.Sprintf("%d", r.RunNumber), r.Status,
			r.Response, r.ErrorKind, r.ErrorMessage,
			intPtrField(r.UserRating), r.Notes, r.CreatedAt,
			fmt.Sprintf("%g", r.Temperature), fmt.Sprintf("%d", r.MaxTokens), fmt.Sprintf("%g", r.TopP),
			fmt.Sprintf("%g", r.FrequencyPenalty), fmt.Sprintf("%g", r.PresencePenalty),
			fmt.Sprintf("%d", r.ResponseLength), fmt.Sprintf("%d", r.TokenCount), fmt.Sprintf("%g", r.LatencyMs),
			fmt.Sprintf("%.6f", r.CostEstimate), floatPtrField(r.SentimentScore),
			floatPtrField(r.ReadabilityScore), floatPtrField(r.CoherenceScore),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSON writes the records as an indented JSON array. An empty batch
// still produces a valid document.
func WriteJSON(w io.Writer, records []Record) error {
	if records == nil {
		records = []Record{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

// Write picks the encoder for the format.
func Write(w io.Writer, f Format, records []Record) error {
	if f == FormatJSON {
		return WriteJSON(w, records)
	}
	return WriteCSV(w, records)
}

func intPtrField(v *int) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%d", *v)
}

func floatPtrField(v *float64) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%.4f", *v)
}
