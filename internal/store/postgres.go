package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/lib/pq"

	"github.com/promptlab/promptlab/internal/domain"
)

type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Open connects to Postgres and verifies the connection.
func Open(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS experiments (
		id          TEXT PRIMARY KEY,
		prompt      TEXT NOT NULL,
		template_id TEXT,
		summary     JSONB NOT NULL,
		duration_ms BIGINT NOT NULL,
		user_rating INTEGER,
		notes       TEXT,
		created_at  TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS runs (
		id                TEXT PRIMARY KEY,
		experiment_id     TEXT NOT NULL REFERENCES experiments(id) ON DELETE CASCADE,
		position          INTEGER NOT NULL,
		provider          TEXT NOT NULL,
		model_name        TEXT NOT NULL,
		run_number        INTEGER NOT NULL,
		status            TEXT NOT NULL,
		response          TEXT,
		error_kind        TEXT,
		error_message     TEXT,
		config            JSONB NOT NULL,
		token_usage       JSONB,
		response_length   INTEGER NOT NULL,
		token_count       INTEGER NOT NULL,
		latency_ms        DOUBLE PRECISION NOT NULL,
		cost_estimate     DOUBLE PRECISION NOT NULL,
		sentiment_score   DOUBLE PRECISION,
		readability_score DOUBLE PRECISION,
		coherence_score   DOUBLE PRECISION,
		created_at        TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS templates (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL,
		description TEXT,
		template    TEXT NOT NULL,
		category    TEXT NOT NULL,
		variables   TEXT[],
		created_at  TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS ab_tests (
		id             TEXT PRIMARY KEY,
		name           TEXT NOT NULL,
		variant_a      JSONB NOT NULL,
		variant_b      JSONB NOT NULL,
		traffic_split  DOUBLE PRECISION NOT NULL,
		success_metric TEXT NOT NULL,
		status         TEXT NOT NULL,
		winner         TEXT,
		summary_a      JSONB,
		summary_b      JSONB,
		created_at     TIMESTAMPTZ NOT NULL,
		completed_at   TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_runs_experiment ON runs (experiment_id, position)`,
	`CREATE INDEX IF NOT EXISTS idx_runs_provider ON runs (provider)`,
	`CREATE INDEX IF NOT EXISTS idx_experiments_created ON experiments (created_at DESC)`,
}

// InitSchema creates the tables on first start. Statements are
// idempotent, so repeated starts are safe.
func (p *Postgres) InitSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func (p *Postgres) SaveExperiment(ctx context.Context, exp *domain.Experiment) error {
	summary, err := json.Marshal(exp.Summary)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO experiments (id, prompt, template_id, summary, duration_ms, user_rating, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err = tx.ExecContext(ctx, query,
		exp.ID,
		exp.Prompt,
		sql.NullString{String: exp.TemplateID, Valid: exp.TemplateID != ""},
		summary,
		exp.DurationMs,
		ratingValue(exp.Rating),
		sql.NullString{String: exp.Notes, Valid: exp.Notes != ""},
		exp.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert experiment: %w", err)
	}

	for position, res := range exp.Results {
		if err := insertRun(ctx, tx, exp.ID, position, res); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit experiment: %w", err)
	}

	return nil
}

func insertRun(ctx context.Context, tx *sql.Tx, experimentID string, position int, res domain.RunResult) error {
	config, err := json.Marshal(res.Config)
	if err != nil {
		return fmt.Errorf("marshal run config: %w", err)
	}

	var usage []byte
	if res.Outcome.Usage != nil {
		usage, err = json.Marshal(res.Outcome.Usage)
		if err != nil {
			return fmt.Errorf("marshal token usage: %w", err)
		}
	}

	query := `
		INSERT INTO runs (id, experiment_id, position, provider, model_name, run_number, status,
		                  response, error_kind, error_message, config, token_usage,
		                  response_length, token_count, latency_ms, cost_estimate,
		                  sentiment_score, readability_score, coherence_score, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`

	_, err = tx.ExecContext(ctx, query,
		res.ID,
		experimentID,
		position,
		string(res.Config.Provider),
		res.Config.ModelName,
		res.RunNumber,
		string(res.Outcome.Status),
		sql.NullString{String: res.Outcome.Text, Valid: res.Outcome.Text != ""},
		sql.NullString{String: string(res.Outcome.ErrorKind), Valid: res.Outcome.ErrorKind != ""},
		sql.NullString{String: res.Outcome.Error, Valid: res.Outcome.Error != ""},
		config,
		usage,
		res.Metrics.ResponseLength,
		res.Metrics.TokenCount,
		res.Metrics.LatencyMs,
		res.Metrics.CostEstimate,
		nullFloat(res.Metrics.SentimentScore),
		nullFloat(res.Metrics.ReadabilityScore),
		nullFloat(res.Metrics.CoherenceScore),
		res.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	return nil
}

func (p *Postgres) GetExperiment(ctx context.Context, id string) (*domain.Experiment, error) {
	query := `
		SELECT id, prompt, template_id, summary, duration_ms, user_rating, notes, created_at
		FROM experiments
		WHERE id = $1
	`

	var (
		exp        domain.Experiment
		templateID sql.NullString
		summary    []byte
		rating     sql.NullInt64
		notes      sql.NullString
	)

	err := p.db.QueryRowContext(ctx, query, id).Scan(
		&exp.ID,
		&exp.Prompt,
		&templateID,
		&summary,
		&exp.DurationMs,
		&rating,
		&notes,
		&exp.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, domain.ErrExperimentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query experiment: %w", err)
	}

	if err := json.Unmarshal(summary, &exp.Summary); err != nil {
		return nil, fmt.Errorf("unmarshal summary: %w", err)
	}
	exp.TemplateID = templateID.String
	exp.Notes = notes.String
	if rating.Valid {
		r := int(rating.Int64)
		exp.Rating = &r
	}

	runs, err := p.queryRuns(ctx, []string{exp.ID})
	if err != nil {
		return nil, err
	}
	exp.Results = runs[exp.ID]
	for i := range exp.Results {
		exp.Results[i].Prompt = exp.Prompt
	}

	return &exp, nil
}

func (p *Postgres) ListExperiments(ctx context.Context, filter ExperimentFilter) ([]*domain.Experiment, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	query := `
		SELECT e.id, e.prompt, e.template_id, e.summary, e.duration_ms, e.user_rating, e.notes, e.created_at
		FROM experiments e
	`
	var args []any
	if filter.Provider != "" {
		query += ` WHERE EXISTS (SELECT 1 FROM runs r WHERE r.experiment_id = e.id AND r.provider = $1)`
		args = append(args, string(filter.Provider))
	}
	query += fmt.Sprintf(" ORDER BY e.created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, filter.Offset)

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query experiments: %w", err)
	}
	defer rows.Close()

	var experiments []*domain.Experiment
	var ids []string
	for rows.Next() {
		var (
			exp        domain.Experiment
			templateID sql.NullString
			summary    []byte
			rating     sql.NullInt64
			notes      sql.NullString
		)

		err := rows.Scan(
			&exp.ID,
			&exp.Prompt,
			&templateID,
			&summary,
			&exp.DurationMs,
			&rating,
			&notes,
			&exp.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan experiment: %w", err)
		}

		if err := json.Unmarshal(summary, &exp.Summary); err != nil {
			return nil, fmt.Errorf("unmarshal summary: %w", err)
		}
		exp.TemplateID = templateID.String
		exp.Notes = notes.String
		if rating.Valid {
			r := int(rating.Int64)
			exp.Rating = &r
		}

		experiments = append(experiments, &exp)
		ids = append(ids, exp.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate experiments: %w", err)
	}

	if len(ids) == 0 {
		return experiments, nil
	}

	runs, err := p.queryRuns(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, exp := range experiments {
		exp.Results = runs[exp.ID]
		for i := range exp.Results {
			exp.Results[i].Prompt = exp.Prompt
		}
	}

	return experiments, nil
}

func (p *Postgres) queryRuns(ctx context.Context, experimentIDs []string) (map[string][]domain.RunResult, error) {
	query := `
		SELECT id, experiment_id, run_number, status, response, error_kind, error_message,
		       config, token_usage, response_length, token_count, latency_ms, cost_estimate,
		       sentiment_score, readability_score, coherence_score, created_at
		FROM runs
		WHERE experiment_id = ANY($1)
		ORDER BY experiment_id, position
	`

	rows, err := p.db.QueryContext(ctx, query, pq.Array(experimentIDs))
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := make(map[string][]domain.RunResult)
	for rows.Next() {
		var (
			res          domain.RunResult
			experimentID string
			status       string
			response     sql.NullString
			errorKind    sql.NullString
			errorMessage sql.NullString
			config       []byte
			usage        []byte
			sentiment    sql.NullFloat64
			readability  sql.NullFloat64
			coherence    sql.NullFloat64
		)

		err := rows.Scan(
			&res.ID,
			&experimentID,
			&res.RunNumber,
			&status,
			&response,
			&errorKind,
			&errorMessage,
			&config,
			&usage,
			&res.Metrics.ResponseLength,
			&res.Metrics.TokenCount,
			&res.Metrics.LatencyMs,
			&res.Metrics.CostEstimate,
			&sentiment,
			&readability,
			&coherence,
			&res.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}

		if err := json.Unmarshal(config, &res.Config); err != nil {
			return nil, fmt.Errorf("unmarshal run config: %w", err)
		}
		if len(usage) > 0 {
			res.Outcome.Usage = &domain.TokenUsage{}
			if err := json.Unmarshal(usage, res.Outcome.Usage); err != nil {
				return nil, fmt.Errorf("unmarshal token usage: %w", err)
			}
		}

		res.Outcome.Status = domain.RunStatus(status)
		res.Outcome.Text = response.String
		res.Outcome.ErrorKind = domain.ErrorKind(errorKind.String)
		res.Outcome.Error = errorMessage.String
		res.Metrics.SentimentScore = nullFloatPtr(sentiment)
		res.Metrics.ReadabilityScore = nullFloatPtr(readability)
		res.Metrics.CoherenceScore = nullFloatPtr(coherence)

		runs[experimentID] = append(runs[experimentID], res)
	}

	return runs, rows.Err()
}

func (p *Postgres) UpdateRating(ctx context.Context, id string, rating int, notes string) error {
	query := `
		UPDATE experiments
		SET user_rating = $2, notes = COALESCE(NULLIF($3, ''), notes)
		WHERE id = $1
	`

	result, err := p.db.ExecContext(ctx, query, id, rating, notes)
	if err != nil {
		return fmt.Errorf("update rating: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrExperimentNotFound
	}

	return nil
}

func (p *Postgres) SaveTemplate(ctx context.Context, t *domain.PromptTemplate) error {
	query := `
		INSERT INTO templates (id, name, description, template, category, variables, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE
		SET name = $2, description = $3, template = $4, category = $5, variables = $6
	`

	_, err := p.db.ExecContext(ctx, query,
		t.ID,
		t.Name,
		sql.NullString{String: t.Description, Valid: t.Description != ""},
		t.Template,
		t.Category,
		pq.Array(t.Variables),
		t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert template: %w", err)
	}

	return nil
}

func (p *Postgres) GetTemplate(ctx context.Context, id string) (*domain.PromptTemplate, error) {
	query := `
		SELECT id, name, description, template, category, variables, created_at
		FROM templates
		WHERE id = $1
	`

	var (
		t           domain.PromptTemplate
		description sql.NullString
		variables   pq.StringArray
	)

	err := p.db.QueryRowContext(ctx, query, id).Scan(
		&t.ID,
		&t.Name,
		&description,
		&t.Template,
		&t.Category,
		&variables,
		&t.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, domain.ErrTemplateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query template: %w", err)
	}

	t.Description = description.String
	t.Variables = []string(variables)

	return &t, nil
}

func (p *Postgres) ListTemplates(ctx context.Context, category string) ([]*domain.PromptTemplate, error) {
	query := `
		SELECT id, name, description, template, category, variables, created_at
		FROM templates
	`
	var args []any
	if category != "" {
		query += ` WHERE category = $1`
		args = append(args, category)
	}
	query += ` ORDER BY name`

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query templates: %w", err)
	}
	defer rows.Close()

	var templates []*domain.PromptTemplate
	for rows.Next() {
		var (
			t           domain.PromptTemplate
			description sql.NullString
			variables   pq.StringArray
		)

		err := rows.Scan(
			&t.ID,
			&t.Name,
			&description,
			&t.Template,
			&t.Category,
			&variables,
			&t.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}

		t.Description = description.String
		t.Variables = []string(variables)
		templates = append(templates, &t)
	}

	return templates, rows.Err()
}

func (p *Postgres) DeleteTemplate(ctx context.Context, id string) error {
	result, err := p.db.ExecContext(ctx, `DELETE FROM templates WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete template: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrTemplateNotFound
	}

	return nil
}

func (p *Postgres) SaveABTest(ctx context.Context, test *domain.ABTest) error {
	variantA, variantB, summaryA, summaryB, err := marshalABTest(test)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO ab_tests (id, name, variant_a, variant_b, traffic_split, success_metric,
		                      status, winner, summary_a, summary_b, created_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err = p.db.ExecContext(ctx, query,
		test.ID,
		test.Name,
		variantA,
		variantB,
		test.TrafficSplit,
		string(test.Metric),
		test.Status,
		sql.NullString{String: test.Winner, Valid: test.Winner != ""},
		summaryA,
		summaryB,
		test.CreatedAt,
		nullTime(test.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("insert ab test: %w", err)
	}

	return nil
}

func (p *Postgres) UpdateABTest(ctx context.Context, test *domain.ABTest) error {
	variantA, variantB, summaryA, summaryB, err := marshalABTest(test)
	if err != nil {
		return err
	}

	query := `
		UPDATE ab_tests
		SET name = $2, variant_a = $3, variant_b = $4, traffic_split = $5, success_metric = $6,
		    status = $7, winner = $8, summary_a = $9, summary_b = $10, completed_at = $11
		WHERE id = $1
	`

	result, err := p.db.ExecContext(ctx, query,
		test.ID,
		test.Name,
		variantA,
		variantB,
		test.TrafficSplit,
		string(test.Metric),
		test.Status,
		sql.NullString{String: test.Winner, Valid: test.Winner != ""},
		summaryA,
		summaryB,
		nullTime(test.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("update ab test: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrABTestNotFound
	}

	return nil
}

func (p *Postgres) GetABTest(ctx context.Context, id string) (*domain.ABTest, error) {
	query := `
		SELECT id, name, variant_a, variant_b, traffic_split, success_metric,
		       status, winner, summary_a, summary_b, created_at, completed_at
		FROM ab_tests
		WHERE id = $1
	`

	var (
		test               domain.ABTest
		metric             string
		winner             sql.NullString
		variantA, variantB []byte
		summaryA, summaryB []byte
		completedAt        sql.NullTime
	)

	err := p.db.QueryRowContext(ctx, query, id).Scan(
		&test.ID,
		&test.Name,
		&variantA,
		&variantB,
		&test.TrafficSplit,
		&metric,
		&test.Status,
		&winner,
		&summaryA,
		&summaryB,
		&test.CreatedAt,
		&completedAt,
	)

	if err == sql.ErrNoRows {
		return nil, domain.ErrABTestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query ab test: %w", err)
	}

	if err := json.Unmarshal(variantA, &test.VariantA); err != nil {
		return nil, fmt.Errorf("unmarshal variant a: %w", err)
	}
	if err := json.Unmarshal(variantB, &test.VariantB); err != nil {
		return nil, fmt.Errorf("unmarshal variant b: %w", err)
	}
	if len(summaryA) > 0 {
		test.SummaryA = &domain.AggregateSummary{}
		if err := json.Unmarshal(summaryA, test.SummaryA); err != nil {
			return nil, fmt.Errorf("unmarshal summary a: %w", err)
		}
	}
	if len(summaryB) > 0 {
		test.SummaryB = &domain.AggregateSummary{}
		if err := json.Unmarshal(summaryB, test.SummaryB); err != nil {
			return nil, fmt.Errorf("unmarshal summary b: %w", err)
		}
	}

	test.Metric = domain.SuccessMetric(metric)
	test.Winner = winner.String
	if completedAt.Valid {
		ts := completedAt.Time
		test.CompletedAt = &ts
	}

	return &test, nil
}

func (p *Postgres) Stats(ctx context.Context) (*DashboardStats, error) {
	stats := &DashboardStats{ProviderCounts: make(map[string]int)}

	err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM experiments`).Scan(&stats.TotalExperiments)
	if err != nil {
		return nil, fmt.Errorf("count experiments: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, `SELECT provider, COUNT(*) FROM runs GROUP BY provider`)
	if err != nil {
		return nil, fmt.Errorf("count runs by provider: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var provider string
		var count int
		if err := rows.Scan(&provider, &count); err != nil {
			return nil, fmt.Errorf("scan provider count: %w", err)
		}
		stats.ProviderCounts[provider] = count
		stats.TotalRuns += count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate provider counts: %w", err)
	}

	var avgRating float64
	err = p.db.QueryRowContext(ctx, `
		SELECT COALESCE(AVG(user_rating), 0)
		FROM experiments
		WHERE user_rating IS NOT NULL
	`).Scan(&avgRating)
	if err != nil {
		return nil, fmt.Errorf("query average rating: %w", err)
	}
	stats.AverageRating = math.Round(avgRating*100) / 100

	weekAgo := time.Now().UTC().Add(-7 * 24 * time.Hour)
	err = p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM experiments WHERE created_at >= $1`, weekAgo).
		Scan(&stats.RecentActivity)
	if err != nil {
		return nil, fmt.Errorf("count recent experiments: %w", err)
	}

	err = p.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(cost_estimate), 0) FROM runs`).
		Scan(&stats.TotalCostUSD)
	if err != nil {
		return nil, fmt.Errorf("query total cost: %w", err)
	}

	topRows, err := p.db.QueryContext(ctx, `
		SELECT id, prompt, user_rating
		FROM experiments
		WHERE user_rating IS NOT NULL
		ORDER BY user_rating DESC, created_at DESC
		LIMIT 5
	`)
	if err != nil {
		return nil, fmt.Errorf("query top rated: %w", err)
	}
	defer topRows.Close()

	for topRows.Next() {
		var rated RatedExperiment
		if err := topRows.Scan(&rated.ID, &rated.Prompt, &rated.Rating); err != nil {
			return nil, fmt.Errorf("scan top rated: %w", err)
		}
		stats.TopRated = append(stats.TopRated, rated)
	}

	return stats, topRows.Err()
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func marshalABTest(test *domain.ABTest) (variantA, variantB, summaryA, summaryB []byte, err error) {
	variantA, err = json.Marshal(test.VariantA)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal variant a: %w", err)
	}
	variantB, err = json.Marshal(test.VariantB)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal variant b: %w", err)
	}
	if test.SummaryA != nil {
		summaryA, err = json.Marshal(test.SummaryA)
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("marshal summary a: %w", err)
		}
	}
	if test.SummaryB != nil {
		summaryB, err = json.Marshal(test.SummaryB)
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("marshal summary b: %w", err)
		}
	}
	return variantA, variantB, summaryA, summaryB, nil
}

func ratingValue(r *int) sql.NullInt64 {
	if r == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*r), Valid: true}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullFloatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
