// Package processor runs the ingest pipeline around the orchestrator:
// ingest a file, tag freshly parsed conversations, persist the tags and
// announce the outcome on NATS.
package processor

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/scribe/internal/hermes"
	"github.com/MikeSquared-Agency/scribe/internal/ingest"
	"github.com/MikeSquared-Agency/scribe/internal/model"
	"github.com/MikeSquared-Agency/scribe/internal/tagging"
)

type Ingester interface {
	Ingest(ctx context.Context, path string, opts ingest.Options) ingest.Outcome
}

type TagStore interface {
	SaveTags(ctx context.Context, conversationID uuid.UUID, tags []model.Tag) error
}

type Publisher interface {
	Publish(subject string, data any) error
}

// Processor is safe for concurrent use. Tagger, tag store and publisher are
// optional; a nil one turns its step off.
type Processor struct {
	ingester  Ingester
	tagger    tagging.Tagger
	tags      TagStore
	publisher Publisher
	defaults  ingest.Options
	logger    *slog.Logger
}

func New(ing Ingester, tagger tagging.Tagger, tags TagStore, pub Publisher, defaults ingest.Options, logger *slog.Logger) *Processor {
	return &Processor{
		ingester:  ing,
		tagger:    tagger,
		tags:      tags,
		publisher: pub,
		defaults:  defaults,
		logger:    logger,
	}
}

// Defaults returns the options used for requests that do not override them.
func (p *Processor) Defaults() ingest.Options {
	return p.defaults
}

// Process ingests path and runs the follow-up steps. Tagging and publishing
// failures are logged; they never change the ingest outcome.
func (p *Processor) Process(ctx context.Context, path string, opts ingest.Options) ingest.Outcome {
	out := p.ingester.Ingest(ctx, path, opts)

	var tagged []model.Tag
	if out.Status == ingest.StatusSuccess && out.Conversation != nil && p.tagger != nil {
		tagged = p.tag(ctx, out)
	}

	if p.publisher != nil {
		if err := p.publisher.Publish(hermes.SubjectIngestCompleted, Event(out, tagged)); err != nil {
			p.logger.Error("failed to publish ingest event", "path", out.FilePath, "error", err)
		}
	}
	return out
}

func (p *Processor) tag(ctx context.Context, out ingest.Outcome) []model.Tag {
	set, err := p.tagger.Tag(ctx, out.Conversation)
	if err != nil {
		p.logger.Error("tagging failed", "path", out.FilePath, "conversation_id", out.ConversationID, "error", err)
		return nil
	}
	tags := set.Tags()
	if p.tags == nil {
		return tags
	}
	if err := p.tags.SaveTags(ctx, out.ConversationID, tags); err != nil {
		p.logger.Error("failed to save tags", "conversation_id", out.ConversationID, "error", err)
		return nil
	}
	p.logger.Info("conversation tagged",
		"conversation_id", out.ConversationID,
		"intent", set.Intent,
		"tags", len(tags),
	)
	return tags
}

// HandleIngestRequest is the NATS handler for swarm.scribe.ingest.requested.
func (p *Processor) HandleIngestRequest(subject string, data []byte) {
	req, err := hermes.ParseIngestRequest(data)
	if err != nil {
		p.logger.Error("failed to parse ingest request", "subject", subject, "error", err)
		return
	}
	p.Process(context.Background(), req.FilePath, p.RequestOptions(req))
}

// RequestOptions overlays the fields set in req on the defaults.
func (p *Processor) RequestOptions(req hermes.IngestRequest) ingest.Options {
	opts := p.defaults
	opts.SourceType = ingest.SourceNATS
	if req.SourceType != "" {
		opts.SourceType = req.SourceType
	}
	if req.EnableIncremental != nil {
		opts.EnableIncremental = *req.EnableIncremental
	}
	if req.ProjectName != "" {
		opts.ProjectName = req.ProjectName
	}
	if req.DeveloperUsername != "" {
		opts.DeveloperUsername = req.DeveloperUsername
	}
	return opts
}

// Event builds the completion payload for out.
func Event(out ingest.Outcome, tags []model.Tag) hermes.IngestEvent {
	evt := hermes.IngestEvent{
		FilePath:        out.FilePath,
		Status:          string(out.Status),
		Incremental:     out.Incremental,
		ChangeType:      string(out.ChangeType),
		FullParseReason: string(out.FullParseReason),
		ParserName:      out.ParserName,
		MessagesAdded:   out.MessagesAdded,
		Stage:           string(out.Stage),
		ErrorKind:       string(out.ErrorKind),
		Error:           out.Error,
		Retryable:       out.Retryable,
		DurationMs:      out.Duration.Milliseconds(),
		Timestamp:       time.Now().UTC(),
	}
	if out.ConversationID != uuid.Nil {
		evt.ConversationID = out.ConversationID.String()
	}
	for _, t := range tags {
		evt.Tags = append(evt.Tags, t.Type+":"+t.Value)
	}
	return evt
}
