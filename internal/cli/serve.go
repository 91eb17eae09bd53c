package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/promptlab/promptlab/internal/abtest"
	"github.com/promptlab/promptlab/internal/api"
	"github.com/promptlab/promptlab/internal/cache"
	"github.com/promptlab/promptlab/internal/config"
	"github.com/promptlab/promptlab/internal/cost"
	"github.com/promptlab/promptlab/internal/dispatch"
	"github.com/promptlab/promptlab/internal/domain"
	"github.com/promptlab/promptlab/internal/experiment"
	"github.com/promptlab/promptlab/internal/notify"
	"github.com/promptlab/promptlab/internal/provider"
	"github.com/promptlab/promptlab/internal/provider/anthropic"
	"github.com/promptlab/promptlab/internal/provider/hub"
	"github.com/promptlab/promptlab/internal/provider/openai"
	"github.com/promptlab/promptlab/internal/queue"
	"github.com/promptlab/promptlab/internal/ratelimit"
	"github.com/promptlab/promptlab/internal/scoring"
	"github.com/promptlab/promptlab/internal/secrets"
	"github.com/promptlab/promptlab/internal/store"
	"github.com/promptlab/promptlab/internal/telemetry"
	"github.com/promptlab/promptlab/internal/template"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Starts the promptlab HTTP API. Configuration comes from the
environment: provider credentials, DATABASE_URL for the postgres store,
REDIS_URL for the shared rate limiter, and DEMO_MODE to run without any
credentials at all.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	setupLogger(cfg.Level())

	slog.Info("starting promptlab", "addr", cfg.Addr, "version", api.Version, "demo_mode", cfg.DemoMode)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.OTLPEndpoint != "" {
		shutdownTracing, err := telemetry.Init(ctx, "promptlab", cfg.OTLPEndpoint)
		if err != nil {
			return fmt.Errorf("init tracing: %w", err)
		}
		defer func() {
			if err := shutdownTracing(context.Background()); err != nil {
				slog.Warn("tracing shutdown failed", "error", err)
			}
		}()
		slog.Info("tracing enabled", "endpoint", cfg.OTLPEndpoint)
	}

	if cfg.ProviderSecretName != "" {
		secretStore, err := secrets.NewAWS(ctx, cfg.AWSRegion)
		if err != nil {
			return fmt.Errorf("init secrets manager: %w", err)
		}
		if err := cfg.HydrateProviderKeys(ctx, secretStore); err != nil {
			return fmt.Errorf("load provider credentials: %w", err)
		}
		slog.Info("provider credentials loaded", "secret", cfg.ProviderSecretName)
	}

	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	seedTemplates(ctx, st)

	dispatcher := buildDispatcher(ctx, cfg)
	runner := experiment.NewRunner(dispatcher, cfg.Workers)
	abRunner := abtest.NewRunner(dispatcher, st, cfg.Workers, time.Now().UnixNano())

	publisher, err := buildPublisher(ctx, cfg, st)
	if err != nil {
		return err
	}

	checkers := []api.HealthChecker{api.NewStoreHealthChecker(st)}

	var limiter ratelimit.Limiter
	if cfg.RedisURL != "" {
		redisLimiter, err := ratelimit.NewRedis(cfg.RedisURL, cfg.RateLimitPerMinute)
		if err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		defer redisLimiter.Close()
		limiter = redisLimiter
		checkers = append(checkers, api.NewRedisHealthChecker(redisLimiter))
		slog.Info("using redis rate limiter", "per_minute", cfg.RateLimitPerMinute)
	} else {
		memLimiter := ratelimit.NewInMemory(cfg.RateLimitPerMinute)
		go memLimiter.PurgeLoop(ctx, time.Minute, 10*time.Minute)
		limiter = memLimiter
		slog.Info("using in-memory rate limiter", "per_minute", cfg.RateLimitPerMinute)
	}

	var statsCache cache.Cache
	if cfg.RedisURL != "" {
		redisCache, err := cache.NewRedis(cfg.RedisURL)
		if err != nil {
			slog.Warn("redis stats cache unavailable, using in-memory", "error", err)
		} else {
			defer redisCache.Close()
			statsCache = redisCache
			slog.Info("using redis stats cache")
		}
	}
	if statsCache == nil {
		memCache := cache.NewInMemory()
		go memCache.PurgeLoop(ctx, time.Minute)
		statsCache = memCache
		slog.Info("using in-memory stats cache")
	}

	handler := api.NewHandler(api.HandlerConfig{
		Store:       st,
		Runner:      runner,
		ABRunner:    abRunner,
		Dispatcher:  dispatcher,
		Limiter:     limiter,
		Publisher:   publisher,
		Checkers:    checkers,
		CORSOrigins: cfg.CORSOrigins,
		StatsCache:  statsCache,
		StatsTTL:    cache.DefaultTTL,
	})

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-quit:
	}

	slog.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("server stopped")
	return nil
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, func(), error) {
	if cfg.DatabaseURL == "" {
		slog.Info("using in-memory store")
		return store.NewMemory(), func() {}, nil
	}

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	pg := store.NewPostgres(db)
	if err := pg.InitSchema(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("init schema: %w", err)
	}
	slog.Info("using postgres store")
	return pg, func() { db.Close() }, nil
}

// seedTemplates loads the default prompt templates into an empty store.
// A store that already holds templates is left alone.
func seedTemplates(ctx context.Context, st store.Store) {
	existing, err := st.ListTemplates(ctx, "")
	if err != nil {
		slog.Warn("template seed check failed", "error", err)
		return
	}
	if len(existing) > 0 {
		return
	}

	defaults := template.Defaults()
	for i := range defaults {
		if err := st.SaveTemplate(ctx, &defaults[i]); err != nil {
			slog.Warn("failed to seed template", "name", defaults[i].Name, "error", err)
		}
	}
	slog.Info("seeded default templates", "count", len(defaults))
}

// buildDispatcher assembles the provider adapters, the mock generator,
// and the degradation notifier into a dispatcher. A boot with no
// credentials still works: every run degrades to the mock generator.
func buildDispatcher(ctx context.Context, cfg *config.Config) *dispatch.Dispatcher {
	adapters := make(map[domain.Provider]provider.Adapter)

	if cfg.OpenAIAPIKey != "" {
		adapters[domain.ProviderOpenAI] = openai.New(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL)
		slog.Info("registered provider", "provider", "openai")
	}
	if cfg.AnthropicAPIKey != "" {
		adapters[domain.ProviderAnthropic] = anthropic.New(cfg.AnthropicAPIKey, cfg.AnthropicBaseURL)
		slog.Info("registered provider", "provider", "anthropic")
	}
	if cfg.HFAPIToken != "" {
		adapters[domain.ProviderHuggingFace] = hub.New(cfg.HFAPIToken, cfg.HFBaseURL)
		slog.Info("registered provider", "provider", "huggingface")
	}
	if len(adapters) == 0 && !cfg.DemoMode {
		slog.Warn("no provider credentials configured, every run will use the mock generator")
	}

	scorer := scoring.NewEngine(cost.NewCalculator())

	sinks := []notify.Sink{notify.LogSink{}}
	if cfg.SNSTopicARN != "" && cfg.AWSRegion != "" {
		snsSink, err := notify.NewSNSSink(ctx, cfg.AWSRegion, cfg.SNSTopicARN)
		if err != nil {
			slog.Warn("sns sink unavailable, degradation alerts stay log-only", "error", err)
		} else {
			sinks = append(sinks, snsSink)
			slog.Info("sns notifications enabled", "topic", cfg.SNSTopicARN)
		}
	}

	return dispatch.New(dispatch.Config{
		Adapters: adapters,
		Fallback: dispatch.NewGenerator(scorer, nil, nil),
		Scorer:   scorer,
		Notifier: notify.NewManager(notify.DefaultDedupWindow, sinks...),
		DemoMode: cfg.DemoMode,
		Timeout:  cfg.DispatchTimeout,
	})
}

// buildPublisher picks the archival path for finished experiments and
// starts the worker that drains it into the store. The response already
// carries the full experiment, so archival can run behind the request.
func buildPublisher(ctx context.Context, cfg *config.Config, st store.Store) (queue.Publisher, error) {
	var q queue.Queue
	if cfg.SQSQueueURL != "" {
		sqsQueue, err := queue.NewSQS(ctx, cfg.AWSRegion, cfg.SQSQueueURL)
		if err != nil {
			return nil, fmt.Errorf("init sqs queue: %w", err)
		}
		q = sqsQueue
		slog.Info("using sqs archive queue", "url", cfg.SQSQueueURL)
	} else {
		q = queue.NewInMemory(queue.DefaultCapacity)
		slog.Info("using in-memory archive queue")
	}

	worker := queue.NewWorker(q, st, 10)
	go worker.Run(ctx)
	return queue.NewPublisher(q), nil
}

func setupLogger(level slog.Level) {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))
}
