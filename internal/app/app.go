// Package app assembles the assistant from its components: tracing,
// database pool, Genkit, document store, and the conversation orchestrator.
// Commands call Setup once and Close on the way out.
package app

import (
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/easydom/hellosure/internal/chat"
	"github.com/easydom/hellosure/internal/config"
	"github.com/easydom/hellosure/internal/log"
	"github.com/easydom/hellosure/internal/search"
)

// App is the assembled application container.
type App struct {
	Config *config.Config
	Logger log.Logger

	Genkit       *genkit.Genkit
	Pool         *pgxpool.Pool
	Store        *search.Store
	Orchestrator *chat.Orchestrator

	otelShutdown func()
}

// Close releases resources in reverse initialization order. Safe to call
// on a partially initialized App.
func (a *App) Close() error {
	if a.Pool != nil {
		a.Pool.Close()
		a.Logger.Debug("database pool closed")
	}
	if a.otelShutdown != nil {
		a.otelShutdown()
	}
	return nil
}
