// Package factory constructs the configured store and AI pool from config.
package factory

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/diaria/diaria-assistant/internal/ai"
	"github.com/diaria/diaria-assistant/internal/config"
	storepkg "github.com/diaria/diaria-assistant/internal/store"
	storepg "github.com/diaria/diaria-assistant/internal/store/postgres"
	storelite "github.com/diaria/diaria-assistant/internal/store/sqlite"
)

// NewStore returns the store.Store selected by cfg.DBDriver. Schema
// bootstrap runs async with a configurable timeout so startup is not
// blocked; the health checker catches a store that never comes up.
func NewStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (storepkg.Store, error) {
	switch cfg.DBDriver {
	case "postgres":
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("ASSISTANT_POSTGRES_DSN is required when DB_DRIVER=postgres")
		}
		db, err := storepg.Open(cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		go bootstrap(ctx, cfg, log, func(bctx context.Context) error {
			return storepg.Bootstrap(bctx, db)
		})
		return storepg.NewWithDB(db), nil

	case "sqlite":
		db, err := storelite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		go bootstrap(ctx, cfg, log, func(bctx context.Context) error {
			return storelite.Bootstrap(bctx, db)
		})
		return storelite.NewWithDB(db), nil

	default:
		return nil, fmt.Errorf("unknown DB_DRIVER: %s", cfg.DBDriver)
	}
}

func bootstrap(ctx context.Context, cfg *config.Config, log zerolog.Logger, run func(context.Context) error) {
	timeout := time.Duration(cfg.BootstrapTimeoutSeconds) * time.Second
	bctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := run(bctx); err != nil {
		log.Warn().Err(err).Str("driver", cfg.DBDriver).Msg("store bootstrap failed")
		return
	}
	log.Debug().Str("driver", cfg.DBDriver).Msg("store bootstrap completed")
}

// NewAIPool builds the provider failover pool from whichever API keys are
// configured. Groq goes first when present; an empty pool is valid and
// degrades the AI-backed flows.
func NewAIPool(cfg *config.Config, log zerolog.Logger) *ai.Pool {
	var providers []ai.Provider
	if cfg.GroqAPIKey != "" {
		providers = append(providers, ai.NewGroqProvider(cfg.GroqAPIKey, cfg.GroqModel, ""))
	}
	if cfg.GeminiAPIKey != "" {
		providers = append(providers, ai.NewGeminiProvider(cfg.GeminiAPIKey, cfg.GeminiModel, ""))
	}
	if len(providers) == 0 {
		log.Warn().Msg("no AI provider keys configured, AI-backed flows disabled")
	}
	return ai.NewPool(log, providers...)
}
