package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/MikeSquared-Agency/scribe/internal/api"
	"github.com/MikeSquared-Agency/scribe/internal/hermes"
	"github.com/MikeSquared-Agency/scribe/internal/ingest"
	"github.com/MikeSquared-Agency/scribe/internal/processor"
	"github.com/MikeSquared-Agency/scribe/internal/watch"
)

var serveNoWatch bool

func init() {
	serveCmd.Flags().BoolVar(&serveNoWatch, "no-watch", false, "do not poll SCRIBE_WATCH_DIRS")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, NATS handler and directory poller",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

// runServe blocks until ctx ends or a component fails.
func runServe(ctx context.Context) error {
	logger := slog.Default()
	logger.Info("scribe starting", "port", cfg.Port)

	db, err := openBackend(ctx)
	if err != nil {
		return err
	}
	defer db.close()

	orch := newOrchestrator(db, logger)
	defaults := ingest.Options{EnableIncremental: cfg.Incremental, SourceType: ingest.SourceAPI}

	// NATS is optional; without it scribe still serves HTTP and polls.
	var pub processor.Publisher
	var busStatus api.Bus
	var bus *hermes.Client
	if cfg.NatsURL != "" {
		bus, err = hermes.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, logger)
		if err != nil {
			return fmt.Errorf("connect to NATS: %w", err)
		}
		defer bus.Close()
		pub = bus
		busStatus = bus
		logger.Info("NATS connected", "url", cfg.NatsURL)
	} else {
		logger.Warn("NATS_URL not set, running without messaging")
	}

	proc := processor.New(orch, newTagger(logger), db, pub, defaults, logger)

	if bus != nil {
		if err := bus.Subscribe(hermes.SubjectIngestRequested, proc.HandleIngestRequest); err != nil {
			return fmt.Errorf("subscribe to ingest requests: %w", err)
		}
	}

	srv := api.NewServer(cfg.Port, api.Deps{
		Processor: proc,
		Store:     db,
		Bus:       busStatus,
		Parsers:   orch.Registry().Names(),
		Backend:   db.name,
		APIToken:  cfg.APIToken,
		Logger:    logger,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if !serveNoWatch {
		poller := watch.NewPoller(watch.Config{
			Roots:    cfg.WatchDirs,
			Interval: cfg.PollInterval,
			Workers:  cfg.Workers,
			Options:  ingest.Options{EnableIncremental: cfg.Incremental, SourceType: ingest.SourceWatch},
			Configs:  db,
		}, proc, logger)
		g.Go(func() error { return poller.Run(gctx) })
	}

	if bus != nil {
		if err := bus.Publish(hermes.SubjectRegistered, hermes.Registration{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Port:      cfg.Port,
			Parsers:   orch.Registry().Names(),
			Backend:   db.name,
		}); err != nil {
			logger.Warn("failed to publish registration", "error", err)
		}
	}

	logger.Info("scribe ready", "port", cfg.Port, "backend", db.name)

	err = g.Wait()
	logger.Info("shutting down")
	if bus != nil {
		if derr := bus.Drain(); derr != nil {
			logger.Warn("nats drain failed", "error", derr)
		}
	}
	if err != nil {
		return err
	}
	logger.Info("scribe stopped")
	return nil
}
