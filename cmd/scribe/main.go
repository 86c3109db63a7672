package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/scribe/internal/config"
)

var cfg config.Config

var rootCmd = &cobra.Command{
	Use:   "scribe",
	Short: "Incremental ingestion of coding-agent session logs",
	Long: `scribe reads the JSON-lines session logs written by Claude Code, Codex CLI and
OpenClaw gateway sessions, and keeps a conversation store in step with them,
parsing only the appended tail of a log whenever it can.

Configuration comes from the environment. DATABASE_URL selects Postgres;
without it scribe uses a local SQLite file at SCRIBE_SQLITE_PATH.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		var w io.Writer = os.Stderr
		if cmd.Name() == "serve" {
			w = os.Stdout
		}
		setupLogging(cfg.LogLevel, w)
	},
}

func main() {
	cfg = config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setupLogging(level string, w io.Writer) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
