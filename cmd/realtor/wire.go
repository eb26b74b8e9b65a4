package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ISL270/multi-agent-ai-realtor/internal/app"
	"github.com/ISL270/multi-agent-ai-realtor/internal/booking"
	"github.com/ISL270/multi-agent-ai-realtor/internal/calendar"
	"github.com/ISL270/multi-agent-ai-realtor/internal/config"
	"github.com/ISL270/multi-agent-ai-realtor/internal/finder"
	"github.com/ISL270/multi-agent-ai-realtor/internal/listing"
	"github.com/ISL270/multi-agent-ai-realtor/internal/llm"
	"github.com/ISL270/multi-agent-ai-realtor/internal/localstore"
	"github.com/ISL270/multi-agent-ai-realtor/internal/store"
	"github.com/ISL270/multi-agent-ai-realtor/internal/supervisor"
	"github.com/ISL270/multi-agent-ai-realtor/internal/turn"
	"github.com/ISL270/multi-agent-ai-realtor/internal/ui"
)

// backend is what both storage implementations provide.
type backend interface {
	finder.Querier
	calendar.EventStore
	app.SessionStore
	SeedProperties(ctx context.Context, props []listing.Property) (int, error)
}

func openBackend(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (backend, func(), error) {
	switch cfg.Backend {
	case config.BackendPostgres:
		s, err := store.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			s.Close()
			return nil, nil, err
		}
		logger.Info("database connected", "backend", cfg.Backend)
		return s, s.Close, nil
	case config.BackendSQLite:
		s, err := localstore.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("database opened", "backend", cfg.Backend, "path", cfg.SQLitePath)
		return s, func() { s.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
}

// buildService wires the turn loop over be. sessions overrides where
// session snapshots live; nil keeps them in be.
func buildService(cfg *config.Config, be backend, sessions app.SessionStore, pub turn.Publisher, logger *slog.Logger) (*app.Service, error) {
	if cfg.LLM.APIKey == "" {
		return nil, fmt.Errorf("no API key for %s: set llm.api_key or %s", cfg.LLM.Provider, config.APIKeyEnvVar(cfg.LLM.Provider))
	}
	provider, err := llm.NewProvider(llm.Config{
		Provider:  cfg.LLM.Provider,
		Model:     cfg.LLM.Model,
		APIKey:    cfg.LLM.APIKey,
		BaseURL:   cfg.LLM.BaseURL,
		MaxTokens: cfg.LLM.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("create llm provider: %w", err)
	}
	logger.Info("llm provider ready", "provider", provider.Name(), "model", cfg.LLM.Model)

	cal, err := calendar.New(be, cfg.Calendar, logger)
	if err != nil {
		return nil, fmt.Errorf("create calendar: %w", err)
	}

	loop := turn.New(
		supervisor.New(logger),
		finder.New(provider, be, logger),
		booking.New(provider, cal, logger),
		pub,
		cfg.Turn.MaxDelegations,
		logger,
	)

	if sessions == nil {
		sessions = be
	}
	return app.New(loop, sessions, ui.JSONRenderer{}, logger), nil
}
