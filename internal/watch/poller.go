package watch

import (
	"context"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/MikeSquared-Agency/scribe/internal/ingest"
	"github.com/MikeSquared-Agency/scribe/internal/model"
)

// ConfigSource supplies stored watch configs.
type ConfigSource interface {
	ListWatchConfigs(ctx context.Context, activeOnly bool) ([]model.WatchConfig, error)
}

type Config struct {
	Roots    []string
	Interval time.Duration
	Workers  int
	Options  ingest.Options
	// Configs, when set, adds the directories of active stored configs to
	// Roots on every scan.
	Configs ConfigSource
}

type stamp struct {
	size    int64
	modTime int64
}

// Poller rescans its roots on every tick and ingests files whose size or
// modification time changed since they were last ingested without failure.
// Vanished files are forgotten; the orchestrator keeps their stored state.
type Poller struct {
	cfg    Config
	proc   Processor
	logger *slog.Logger
	seen   map[string]stamp
}

func NewPoller(cfg Config, proc Processor, logger *slog.Logger) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.Options.SourceType == "" {
		cfg.Options.SourceType = ingest.SourceWatch
	}
	return &Poller{cfg: cfg, proc: proc, logger: logger, seen: make(map[string]stamp)}
}

// Run scans immediately and then once per interval until ctx ends.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("poller started", "roots", p.cfg.Roots, "interval", p.cfg.Interval)

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		p.Scan(ctx)
		select {
		case <-ctx.Done():
			p.logger.Info("poller stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// discover lists every file under the static roots and the active stored
// configs. A file under a stored config is ingested with that config's
// options, even if a static root also covers it.
func (p *Poller) discover(ctx context.Context) ([]string, map[string]ingest.Options) {
	opts := make(map[string]ingest.Options)

	if p.cfg.Configs != nil {
		configs, err := p.cfg.Configs.ListWatchConfigs(ctx, true)
		if err != nil {
			p.logger.Warn("failed to load watch configs", "error", err)
		}
		for _, c := range configs {
			o := p.cfg.Options
			o.EnableIncremental = c.EnableIncremental
			o.ProjectName = c.ProjectName
			o.DeveloperUsername = c.DeveloperUsername
			o.SourceConfigID = c.ID
			for _, path := range Discover([]string{ExpandHome(c.Directory)}, p.logger) {
				if _, ok := opts[path]; !ok {
					opts[path] = o
				}
			}
		}
	}
	for _, path := range Discover(p.cfg.Roots, p.logger) {
		if _, ok := opts[path]; !ok {
			opts[path] = p.cfg.Options
		}
	}

	files := make([]string, 0, len(opts))
	for path := range opts {
		files = append(files, path)
	}
	sort.Strings(files)
	return files, opts
}

// Scan runs a single pass and returns what it ingested.
func (p *Poller) Scan(ctx context.Context) Summary {
	files, opts := p.discover(ctx)

	present := make(map[string]bool, len(files))
	var changed []string
	var stamps []stamp
	for _, path := range files {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		present[path] = true
		st := stamp{size: info.Size(), modTime: info.ModTime().UnixNano()}
		if prev, ok := p.seen[path]; ok && prev == st {
			continue
		}
		changed = append(changed, path)
		stamps = append(stamps, st)
	}
	for path := range p.seen {
		if !present[path] {
			delete(p.seen, path)
		}
	}
	if len(changed) == 0 {
		return Summary{}
	}

	sum, outcomes, err := RunBatchWith(ctx, p.proc, changed, p.cfg.Workers, func(path string) ingest.Options {
		return opts[path]
	})
	for i, out := range outcomes {
		if out.Status != "" && out.Status != ingest.StatusFailed {
			p.seen[changed[i]] = stamps[i]
		}
	}
	if err != nil {
		p.logger.Debug("scan interrupted", "error", err)
	}
	p.logger.Info("scan complete",
		"changed", len(changed),
		"succeeded", sum.Succeeded,
		"duplicates", sum.Duplicates,
		"skipped", sum.Skipped,
		"failed", sum.Failed,
		"messages_added", sum.MessagesAdded,
	)
	return sum
}
