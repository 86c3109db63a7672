package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/scribe/internal/ingest"
	"github.com/MikeSquared-Agency/scribe/internal/processor"
	"github.com/MikeSquared-Agency/scribe/internal/watch"
)

var ingestFlags struct {
	full      bool
	noDedup   bool
	noTag     bool
	workers   int
	project   string
	developer string
	jsonOut   bool
}

func init() {
	f := ingestCmd.Flags()
	f.BoolVar(&ingestFlags.full, "full", false, "always parse files from the start")
	f.BoolVar(&ingestFlags.noDedup, "no-dedup", false, "store content even if another path already holds it")
	f.BoolVar(&ingestFlags.noTag, "no-tag", false, "skip tagging of parsed conversations")
	f.IntVar(&ingestFlags.workers, "workers", 0, "files ingested in parallel (default SCRIBE_WORKERS)")
	f.StringVar(&ingestFlags.project, "project", "", "project name recorded on new conversations")
	f.StringVar(&ingestFlags.developer, "developer", "", "developer username recorded on new conversations")
	f.BoolVar(&ingestFlags.jsonOut, "json", false, "print one JSON outcome per file")
	rootCmd.AddCommand(ingestCmd)
}

var ingestCmd = &cobra.Command{
	Use:   "ingest [path...]",
	Short: "Ingest log files or directories once",
	Long: `Ingest the given files, or every .jsonl file below the given directories.
With no arguments the SCRIBE_WATCH_DIRS roots are used.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		logger := slog.Default()

		roots := args
		if len(roots) == 0 {
			roots = cfg.WatchDirs
		}
		paths := watch.Discover(roots, logger)
		if len(paths) == 0 {
			fmt.Println("No session logs found")
			return nil
		}

		db, err := openBackend(ctx)
		if err != nil {
			return err
		}
		defer db.close()

		opts := ingest.Options{
			EnableIncremental: cfg.Incremental && !ingestFlags.full,
			SourceType:        ingest.SourceCLI,
			ProjectName:       ingestFlags.project,
			DeveloperUsername: ingestFlags.developer,
		}
		if ingestFlags.noDedup {
			opts.DedupPolicy = ingest.DedupOff
		}

		proc := newCLIProcessor(db, logger)

		workers := ingestFlags.workers
		if workers <= 0 {
			workers = cfg.Workers
		}
		sum, outcomes, err := watch.RunBatch(ctx, proc, paths, workers, opts)

		if ingestFlags.jsonOut {
			enc := json.NewEncoder(os.Stdout)
			for _, out := range outcomes {
				if out.Status != "" {
					enc.Encode(out)
				}
			}
		} else {
			printOutcomes(outcomes)
			fmt.Printf("\n%d files: %d ingested, %d duplicate, %d skipped, %d failed, %d messages added\n",
				sum.Total, sum.Succeeded, sum.Duplicates, sum.Skipped, sum.Failed, sum.MessagesAdded)
		}

		if err != nil {
			return err
		}
		if sum.Failed > 0 {
			return fmt.Errorf("%d of %d files failed", sum.Failed, sum.Total)
		}
		return nil
	},
}

func newCLIProcessor(db *backend, logger *slog.Logger) *processor.Processor {
	orch := newOrchestrator(db, logger)
	if ingestFlags.noTag {
		return processor.New(orch, nil, nil, nil, ingest.Options{}, logger)
	}
	return processor.New(orch, newTagger(logger), db, nil, ingest.Options{}, logger)
}

func printOutcomes(outcomes []ingest.Outcome) {
	for _, out := range outcomes {
		if out.Status == "" {
			continue
		}
		detail := out.Detail
		switch {
		case out.Status == ingest.StatusFailed:
			detail = fmt.Sprintf("%s at %s: %s", out.ErrorKind, out.Stage, out.Error)
		case out.Incremental:
			detail = fmt.Sprintf("+%d messages", out.MessagesAdded)
		case out.FullParseReason != "" && out.Status == ingest.StatusSuccess:
			detail = fmt.Sprintf("%d messages (%s)", out.MessagesAdded, out.FullParseReason)
		}
		fmt.Printf("%-9s %-13s %s  %s\n", out.Status, out.ParserName, out.FilePath, detail)
	}
}
