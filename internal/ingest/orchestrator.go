// Package ingest drives a single log file from disk into storage, choosing
// between skipping it, parsing only its new tail, or parsing it in full.
package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/scribe/internal/errkind"
	"github.com/MikeSquared-Agency/scribe/internal/incremental"
	"github.com/MikeSquared-Agency/scribe/internal/model"
	"github.com/MikeSquared-Agency/scribe/internal/parser"
)

// DedupPolicy controls what happens when a full parse produces content that
// is already stored under some conversation.
type DedupPolicy string

const (
	// DedupSkip reports the existing conversation and writes nothing.
	DedupSkip DedupPolicy = "skip"
	// DedupOff always writes.
	DedupOff DedupPolicy = "off"
)

const (
	SourceCLI   = "cli"
	SourceWatch = "watch"
	SourceAPI   = "api"
	SourceNATS  = "nats"
)

type Options struct {
	EnableIncremental bool
	SourceType        string
	DedupPolicy       DedupPolicy
	ProjectName       string
	DeveloperUsername string
	// SourceConfigID names the stored watch config that found the file.
	SourceConfigID uuid.UUID
}

func (o Options) dedup() DedupPolicy {
	if o.DedupPolicy == "" {
		return DedupSkip
	}
	return o.DedupPolicy
}

func (o Options) source() string {
	if o.SourceType == "" {
		return SourceCLI
	}
	return o.SourceType
}

// Orchestrator is safe for concurrent use. Calls for the same path are
// serialized; calls for different paths run in parallel.
type Orchestrator struct {
	registry *parser.Registry
	storage  Storage
	locks    *pathLocks
	dups     *duplicatePaths
	logger   *slog.Logger
	now      func() time.Time
	detect   func(path string, prevOffset, prevSize int64, prevHash string) (incremental.ChangeType, error)
}

func New(registry *parser.Registry, storage Storage, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		registry: registry,
		storage:  storage,
		locks:    newPathLocks(),
		dups:     newDuplicatePaths(),
		logger:   logger,
		now:      time.Now,
		detect:   incremental.DetectChange,
	}
}

func (o *Orchestrator) Registry() *parser.Registry {
	return o.registry
}

// Ingest brings the stored conversation for path up to date with the file.
// Relative paths are resolved against the working directory so every
// spelling of a file shares one state row and one lock.
// It never returns an error or panics; every failure is reported in the
// Outcome along with the stage it happened in.
func (o *Orchestrator) Ingest(ctx context.Context, path string, opts Options) (out Outcome) {
	start := o.now()
	out.FilePath = filepath.Clean(path)

	defer func() {
		if r := recover(); r != nil {
			stage := out.Stage
			if stage == "" {
				stage = StageParse
			}
			out.fail(stage, errkind.Wrap(fmt.Errorf("panic: %v", r), errkind.KindInternal, false))
		}
		if out.Status != StatusFailed {
			out.Stage = ""
		}
		out.Duration = o.now().Sub(start)
		o.finish(ctx, out, opts, start)
	}()

	abs, err := filepath.Abs(path)
	if err != nil {
		out.fail(StageLoad, errkind.IO(fmt.Errorf("resolve path: %w", err)))
		return out
	}
	out.FilePath = abs

	out.Stage = StageLock
	unlock, err := o.locks.lock(ctx, out.FilePath)
	if err != nil {
		out.fail(StageLock, errkind.Wrap(fmt.Errorf("wait for path lock: %w", err), errkind.KindInternal, true))
		return out
	}
	defer unlock()

	o.run(ctx, out.FilePath, opts, &out)
	return out
}

func (o *Orchestrator) run(ctx context.Context, path string, opts Options, out *Outcome) {
	out.Stage = StageLoad
	state, err := o.storage.LoadState(ctx, path)
	if err != nil {
		out.fail(StageLoad, errkind.Persistence(fmt.Errorf("load state: %w", err)))
		return
	}

	if state == nil {
		if id, ok := o.dups.lookup(path, opts); ok {
			out.Status = StatusDuplicate
			out.ConversationID = id
			out.Detail = "unchanged since found to duplicate another file"
			return
		}
		p, ok := o.selectParser(path, out)
		if !ok {
			return
		}
		o.fullParse(ctx, path, p, nil, ReasonNewFile, opts, out)
		return
	}

	out.Stage = StageDetect
	change, err := o.detect(path, state.LastProcessedOffset, state.FileSizeBytes, state.PartialHash)
	if err != nil {
		out.fail(StageDetect, err)
		return
	}
	out.ChangeType = change

	switch change {
	case incremental.ChangeUnchanged:
		if opts.EnableIncremental {
			out.ConversationID = state.ConversationID
			out.skip("unchanged since last ingest")
			return
		}
	case incremental.ChangeDeleted:
		if !incremental.Exists(path) {
			out.ConversationID = state.ConversationID
			out.skip("file deleted")
			return
		}
	case incremental.ChangeAppend:
		if opts.EnableIncremental {
			p, ok := o.resumeParser(state, path, out)
			if !ok {
				return
			}
			if !o.incrementalParse(ctx, path, p, state, out) {
				return
			}
			o.fullParse(ctx, path, p, state, ReasonIncrementalUnsupported, opts, out)
			return
		}
	}

	p, ok := o.selectParser(path, out)
	if !ok {
		return
	}
	o.fullParse(ctx, path, p, state, reasonFor(change), opts, out)
}

func (o *Orchestrator) selectParser(path string, out *Outcome) (parser.Parser, bool) {
	out.Stage = StageSelect
	p, ok := o.registry.Select(path)
	if ok {
		return p, true
	}
	if !incremental.Exists(path) {
		out.fail(StageSelect, errkind.IO(fmt.Errorf("%s: %w", path, fs.ErrNotExist)))
		return nil, false
	}
	out.skip("no parser recognises this file")
	return nil, false
}

// resumeParser prefers the parser that produced the stored state so an
// appended tail is read with the same dialect as the head.
func (o *Orchestrator) resumeParser(state *model.RawLogState, path string, out *Outcome) (parser.Parser, bool) {
	if state.ParserName != "" {
		if p, ok := o.registry.Lookup(state.ParserName); ok {
			return p, true
		}
	}
	return o.selectParser(path, out)
}

// incrementalParse appends the new tail of path to the stored conversation.
// It returns true when the parser cannot resume and a full parse is needed.
func (o *Orchestrator) incrementalParse(ctx context.Context, path string, p parser.Parser, state *model.RawLogState, out *Outcome) bool {
	out.Stage = StageParse
	out.ParserName = p.Name()

	parseStart := o.now()
	res, err := parser.ParseIncremental(p, path, state.LastProcessedOffset, state.LastProcessedLine)
	out.ParseDuration = o.now().Sub(parseStart)
	if err != nil {
		if errkind.Is(err, errkind.KindUnsupported) {
			return true
		}
		out.fail(StageParse, err)
		return false
	}
	out.BytesRead = res.LastProcessedOffset - state.LastProcessedOffset

	next := *state
	next.ParserName = p.Name()
	next.LastProcessedOffset = res.LastProcessedOffset
	next.LastProcessedLine = res.LastProcessedLine
	next.FileSizeBytes = res.FileSizeBytes
	next.PartialHash = res.PartialHash
	if res.LastMessageTimestamp != nil {
		next.LastMessageTimestamp = res.LastMessageTimestamp
	}

	if !o.beforePersist(ctx, out) {
		return false
	}
	persistStart := o.now()
	err = o.storage.InTx(ctx, func(tx StorageTx) error {
		if len(res.NewMessages) > 0 {
			req := AppendMessagesRequest{
				ConversationID: state.ConversationID,
				Messages:       res.NewMessages,
				Files:          model.TouchedFiles(res.NewMessages),
			}
			if err := tx.AppendMessages(ctx, req); err != nil {
				return fmt.Errorf("append messages: %w", err)
			}
		}
		if err := tx.SaveState(ctx, next); err != nil {
			return fmt.Errorf("save state: %w", err)
		}
		return nil
	})
	out.PersistDuration = o.now().Sub(persistStart)
	if err != nil {
		out.fail(StagePersist, errkind.Persistence(err))
		return false
	}

	out.Status = StatusSuccess
	out.Incremental = true
	out.ConversationID = state.ConversationID
	out.MessagesAdded = len(res.NewMessages)
	if res.Deferred {
		out.Detail = "trailing record not yet complete"
	}
	return false
}

// fullParse parses path from the start. With no prior state it creates a
// conversation; otherwise it replaces the content of the existing one.
func (o *Orchestrator) fullParse(ctx context.Context, path string, p parser.Parser, state *model.RawLogState, reason FullParseReason, opts Options, out *Outcome) {
	out.Stage = StageParse
	out.ParserName = p.Name()
	out.FullParseReason = reason

	parseStart := o.now()
	res, err := p.Parse(path)
	out.ParseDuration = o.now().Sub(parseStart)
	if err != nil {
		out.fail(StageParse, err)
		return
	}
	conv := res.Conversation
	out.BytesRead = res.ProcessedOffset

	if state == nil && len(conv.Messages) == 0 {
		out.skip("no messages yet")
		return
	}

	size, hash := res.FileSizeBytes, res.PartialHash
	if hash == "" {
		size, hash, err = incremental.Snapshot(path, res.ProcessedOffset)
		if err != nil {
			out.fail(StageParse, err)
			return
		}
	}

	if opts.dedup() == DedupSkip && res.ProcessedOffset > 0 {
		out.Stage = StageDedup
		dup, err := o.storage.FindDuplicate(ctx, hash)
		if err != nil {
			out.fail(StageDedup, errkind.Persistence(fmt.Errorf("find duplicate: %w", err)))
			return
		}
		if dup != nil {
			out.Status = StatusDuplicate
			out.ConversationID = *dup
			if state == nil {
				o.dups.remember(path, size, *dup)
			}
			return
		}
	}

	next := model.RawLogState{
		FilePath:             path,
		ParserName:           p.Name(),
		LastProcessedOffset:  res.ProcessedOffset,
		LastProcessedLine:    res.ProcessedLine,
		FileSizeBytes:        size,
		PartialHash:          hash,
		LastMessageTimestamp: conv.EndTime,
	}

	if !o.beforePersist(ctx, out) {
		return
	}
	persistStart := o.now()
	var id uuid.UUID
	err = o.storage.InTx(ctx, func(tx StorageTx) error {
		if state == nil || state.ConversationID == uuid.Nil {
			created, err := tx.CreateConversation(ctx, CreateConversationRequest{
				Conversation:      conv,
				FilePath:          path,
				ParserName:        p.Name(),
				SourceType:        opts.source(),
				ProjectName:       opts.ProjectName,
				DeveloperUsername: opts.DeveloperUsername,
			})
			if err != nil {
				return fmt.Errorf("create conversation: %w", err)
			}
			id = created
		} else {
			id = state.ConversationID
			err := tx.ReplaceConversationContent(ctx, ReplaceConversationRequest{
				ConversationID: id,
				Conversation:   conv,
				Reason:         reason,
				ChangeType:     out.ChangeType,
			})
			if err != nil {
				return fmt.Errorf("replace conversation: %w", err)
			}
		}
		next.ConversationID = id
		if err := tx.SaveState(ctx, next); err != nil {
			return fmt.Errorf("save state: %w", err)
		}
		return nil
	})
	out.PersistDuration = o.now().Sub(persistStart)
	if err != nil {
		out.fail(StagePersist, errkind.Persistence(err))
		return
	}

	out.Status = StatusSuccess
	out.ConversationID = id
	out.MessagesAdded = len(conv.Messages)
	out.Conversation = conv
}

// beforePersist abandons the ingest if the caller gave up while parsing.
func (o *Orchestrator) beforePersist(ctx context.Context, out *Outcome) bool {
	out.Stage = StagePersist
	if err := ctx.Err(); err != nil {
		out.fail(StagePersist, errkind.Wrap(fmt.Errorf("abandoned before persist: %w", err), errkind.KindInternal, true))
		return false
	}
	return true
}

func (o *Orchestrator) finish(ctx context.Context, out Outcome, opts Options, start time.Time) {
	if out.Status == StatusFailed {
		o.logger.Error("ingest failed",
			"path", out.FilePath,
			"stage", out.Stage,
			"error_kind", out.ErrorKind,
			"retryable", out.Retryable,
			"error", out.Err,
		)
	} else {
		o.logger.Info("ingest complete",
			"path", out.FilePath,
			"status", out.Status,
			"parser", out.ParserName,
			"change_type", out.ChangeType,
			"incremental", out.Incremental,
			"full_parse_reason", out.FullParseReason,
			"messages_added", out.MessagesAdded,
			"bytes_read", out.BytesRead,
			"duration_ms", out.Duration.Milliseconds(),
		)
	}

	job := out.Job(opts.source(), start)
	if opts.SourceConfigID != uuid.Nil {
		id := opts.SourceConfigID
		job.SourceConfigID = &id
	}
	if err := o.storage.RecordJob(context.WithoutCancel(ctx), job); err != nil {
		o.logger.Warn("failed to record ingestion job", "path", out.FilePath, "error", err)
	}
}
