package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/p-n-ai/pai-path/internal/ai"
	"github.com/p-n-ai/pai-path/internal/curriculum"
	"github.com/p-n-ai/pai-path/internal/evaluator"
	"github.com/p-n-ai/pai-path/internal/help"
	"github.com/p-n-ai/pai-path/internal/httpapi"
	"github.com/p-n-ai/pai-path/internal/learning"
	"github.com/p-n-ai/pai-path/internal/platform/cache"
	"github.com/p-n-ai/pai-path/internal/platform/config"
	"github.com/p-n-ai/pai-path/internal/platform/database"
	"github.com/p-n-ai/pai-path/internal/resource"
	"github.com/p-n-ai/pai-path/migrations"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(newLogger(os.Stdout, cfg.Log))

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	// Graceful shutdown on SIGTERM/SIGINT.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		slog.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      a.handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 3 * time.Minute, // curriculum generation runs long
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", srv.Addr, "store", cfg.Store.Mode, "providers", a.providers)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}

// newLogger builds the process logger. Unknown levels fall back to info.
func newLogger(w io.Writer, cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// app is the wired service graph.
type app struct {
	handler   http.Handler
	providers []string
	closers   []func()
}

// Close releases connections in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{}
	checks := map[string]httpapi.HealthCheck{}

	store, events, err := a.openStore(ctx, cfg, checks)
	if err != nil {
		a.Close()
		return nil, err
	}

	var c *cache.Cache
	if cfg.Cache.URL != "" {
		c, err = cache.New(ctx, cfg.Cache.URL, cfg.Cache.Prefix)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect cache: %w", err)
		}
		a.closers = append(a.closers, func() {
			if err := c.Close(); err != nil {
				slog.Warn("failed to close cache", "error", err)
			}
		})
		checks["cache"] = c.HealthCheck
	}

	router, err := newRouter(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	if cfg.AI.DailyTokenBudget > 0 {
		if c != nil {
			router.SetBudget(ai.NewRedisBudget(c.Client, cfg.AI.DailyTokenBudget))
		} else {
			router.SetBudget(ai.NewInMemoryBudget(cfg.AI.DailyTokenBudget))
		}
	}
	a.providers = router.Providers()

	gen, err := newCurriculumChain(cfg, router)
	if err != nil {
		a.Close()
		return nil, err
	}

	eval, err := evaluator.New(evaluator.Config{AI: router, Timeout: cfg.AITimeout()})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create evaluator: %w", err)
	}

	var rc resource.Cache
	if c != nil {
		rc = resource.NewRedisCache(c, time.Duration(cfg.Resources.CacheTTLHours)*time.Hour)
	}
	resources := resource.NewAggregator(rc, resource.DefaultSources(cfg.Resources.YouTubeAPIKey, cfg.Resources.GitHubToken)...)

	svc := learning.NewService(learning.ServiceConfig{
		Store:               store,
		Generator:           gen,
		Evaluator:           eval,
		Resources:           resources,
		Events:              events,
		ResourceConcurrency: cfg.Resources.Concurrency,
	})

	srv := httpapi.New(httpapi.Config{
		Service: svc,
		Help:    help.New(help.Config{AI: router, Tasks: svc}),
		Checks:  checks,
	})
	a.handler = srv.Handler()
	return a, nil
}

// openStore returns the configured store. Postgres mode connects, optionally
// migrates, and logs events to the database.
func (a *app) openStore(ctx context.Context, cfg *config.Config, checks map[string]httpapi.HealthCheck) (learning.Store, learning.EventLogger, error) {
	if cfg.Store.Mode != config.StorePostgres {
		slog.Warn("using in-memory store; learning paths are lost on restart")
		return learning.NewMemoryStore(), learning.NopEventLogger{}, nil
	}

	if cfg.Database.AutoMigrate {
		if err := migrateUp(cfg.Database.URL); err != nil {
			return nil, nil, err
		}
	}

	db, err := database.New(ctx, database.Options{
		URL:      cfg.Database.URL,
		MaxConns: cfg.Database.MaxConns,
		MinConns: cfg.Database.MinConns,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	a.closers = append(a.closers, db.Close)
	checks["database"] = db.HealthCheck

	store, err := learning.NewPostgresStore(db.Pool)
	if err != nil {
		return nil, nil, err
	}
	return store, learning.NewPostgresEventLogger(db.Pool), nil
}

func migrateUp(url string) error {
	m, err := database.NewMigrator(migrations.FS, url)
	if err != nil {
		return err
	}
	defer func() {
		if err := m.Close(); err != nil {
			slog.Warn("failed to close migrator", "error", err)
		}
	}()
	if err := m.Up(); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}

// newRouter registers every configured provider. Anthropic is preferred for
// grading when available, and the OpenAI-compatible gateway for curricula.
func newRouter(cfg *config.Config) (*ai.Router, error) {
	router := ai.NewRouter()

	if key := cfg.AI.OpenAI.APIKey; key != "" {
		var opts []ai.OpenAIOption
		if cfg.AI.OpenAI.BaseURL != "" {
			opts = append(opts, ai.WithBaseURL(cfg.AI.OpenAI.BaseURL))
		}
		if cfg.AI.OpenAI.Model != "" {
			opts = append(opts, ai.WithDefaultModel(cfg.AI.OpenAI.Model))
		}
		router.Register("openai", ai.NewOpenAIProvider(key, opts...))
		router.Prefer(ai.TaskCurriculum, "openai")
	}

	if key := cfg.AI.Anthropic.APIKey; key != "" {
		var opts []ai.AnthropicOption
		if cfg.AI.Anthropic.Model != "" {
			opts = append(opts, ai.WithAnthropicModel(cfg.AI.Anthropic.Model))
		}
		p, err := ai.NewAnthropicProvider(key, opts...)
		if err != nil {
			return nil, fmt.Errorf("create anthropic provider: %w", err)
		}
		router.Register("anthropic", p)
		router.Prefer(ai.TaskGrading, "anthropic")
	}

	if key := cfg.AI.DeepSeek.APIKey; key != "" {
		router.Register("deepseek", ai.NewDeepSeekProvider(key))
	}

	if cfg.AI.Ollama.Enabled {
		var opts []ai.OpenAIOption
		if cfg.AI.Ollama.Model != "" {
			opts = append(opts, ai.WithDefaultModel(cfg.AI.Ollama.Model))
		}
		router.Register("ollama", ai.NewOllamaProvider(cfg.AI.Ollama.URL, opts...))
	}

	if !router.HasProvider() {
		return nil, fmt.Errorf("no AI provider configured")
	}
	return router, nil
}

// newCurriculumChain tries authored templates before asking the model.
func newCurriculumChain(cfg *config.Config, router *ai.Router) (curriculum.Chain, error) {
	gen, err := curriculum.NewAIGenerator(curriculum.AIGeneratorConfig{AI: router})
	if err != nil {
		return nil, fmt.Errorf("create curriculum generator: %w", err)
	}

	chain := curriculum.Chain{}
	if cfg.CurriculumPath != "" {
		loader, err := curriculum.NewLoader(cfg.CurriculumPath)
		if err != nil {
			return nil, fmt.Errorf("load curriculum templates: %w", err)
		}
		chain = append(chain, loader)
	}
	return append(chain, gen), nil
}
