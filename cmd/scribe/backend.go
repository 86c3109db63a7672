package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/MikeSquared-Agency/scribe/internal/anthropic"
	"github.com/MikeSquared-Agency/scribe/internal/api"
	"github.com/MikeSquared-Agency/scribe/internal/ingest"
	"github.com/MikeSquared-Agency/scribe/internal/parser"
	"github.com/MikeSquared-Agency/scribe/internal/processor"
	"github.com/MikeSquared-Agency/scribe/internal/sqlitestore"
	"github.com/MikeSquared-Agency/scribe/internal/store"
	"github.com/MikeSquared-Agency/scribe/internal/tagging"
	"github.com/MikeSquared-Agency/scribe/internal/watch"
)

// storage is what both database backends provide.
type storage interface {
	ingest.Storage
	api.Store
	processor.TagStore
}

type backend struct {
	storage
	name  string
	close func()
}

// openBackend connects to Postgres when DATABASE_URL is set and falls back
// to the local SQLite file otherwise.
func openBackend(ctx context.Context) (*backend, error) {
	if cfg.DatabaseURL != "" {
		db, err := store.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate database: %w", err)
		}
		slog.Info("database connected", "backend", "postgres")
		return &backend{storage: db, name: "postgres", close: db.Close}, nil
	}

	path := watch.ExpandHome(cfg.SQLitePath)
	db, err := sqlitestore.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	slog.Info("database opened", "backend", "sqlite", "path", path)
	return &backend{storage: db, name: "sqlite", close: func() { _ = db.Close() }}, nil
}

// newTagger returns the rule tagger, enriched by the LLM tagger when an
// Anthropic key is configured.
func newTagger(logger *slog.Logger) tagging.Tagger {
	var llm tagging.Tagger
	if cfg.AnthropicAPIKey != "" {
		client := anthropic.NewClient(cfg.AnthropicAPIKey, cfg.TagModel)
		llm = tagging.NewLLMTagger(client, logger)
		logger.Info("llm tagging enabled", "model", client.Model())
	}
	return tagging.NewPipeline(llm, logger)
}

func newOrchestrator(b *backend, logger *slog.Logger) *ingest.Orchestrator {
	return ingest.New(parser.Default(), b, logger)
}
