package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/easydom/hellosure/db"
	"github.com/easydom/hellosure/internal/chat"
	"github.com/easydom/hellosure/internal/config"
	"github.com/easydom/hellosure/internal/log"
	"github.com/easydom/hellosure/internal/observability"
	"github.com/easydom/hellosure/internal/search"
)

// Setup creates and initializes the application. On failure everything
// already initialized is released before returning.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, retErr error) {
	a := &App{Config: cfg, Logger: logger}

	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	// Tracing first: the span processor must be registered before
	// genkit.Init creates its tracer.
	a.otelShutdown = observability.Setup(ctx, cfg, logger)

	pool, err := providePool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Pool = pool

	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	if g == nil {
		return nil, errors.New("initializing genkit with the googleai plugin")
	}
	a.Genkit = g

	embedder, err := search.NewEmbedder(googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel), logger)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	store, err := search.New(pool, embedder, logger.With("component", "search"))
	if err != nil {
		return nil, fmt.Errorf("creating document store: %w", err)
	}
	a.Store = store

	orch, err := chat.New(chat.Config{
		Completer:   chat.NewGenkitCompleter(g, cfg.ModelName, logger.With("component", "completer")),
		Retriever:   store,
		Events:      chat.SimulatedEvents{},
		Logger:      logger.With("component", "chat"),
		Tools:       chat.DefineTools(g),
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		MaxTurns:    cfg.MaxTurns,
		TopK:        cfg.TopK,
		Candidates:  cfg.Candidates,
	})
	if err != nil {
		return nil, fmt.Errorf("creating orchestrator: %w", err)
	}
	a.Orchestrator = orch

	return a, nil
}

// providePool runs migrations and opens the PostgreSQL connection pool.
func providePool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresURL())
	if err != nil {
		return nil, fmt.Errorf("parsing connection config: %w", err)
	}
	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, nil
}
