// Package tagging enriches a parsed conversation with intent, outcome,
// sentiment and activity tags.
package tagging

import (
	"context"
	"log/slog"

	"github.com/MikeSquared-Agency/scribe/internal/model"
)

type Tagger interface {
	Tag(ctx context.Context, conv *model.ParsedConversation) (model.TagSet, error)
}

// Pipeline runs the rule tagger and, when configured, an LLM tagger whose
// answers fill in what the rules cannot infer. An LLM failure degrades to
// the rule tags.
type Pipeline struct {
	rules  *RuleTagger
	llm    Tagger
	logger *slog.Logger
}

func NewPipeline(llm Tagger, logger *slog.Logger) *Pipeline {
	return &Pipeline{rules: NewRuleTagger(), llm: llm, logger: logger}
}

func (p *Pipeline) Tag(ctx context.Context, conv *model.ParsedConversation) (model.TagSet, error) {
	tags, err := p.rules.Tag(ctx, conv)
	if err != nil {
		return tags, err
	}
	if p.llm == nil || len(conv.Messages) == 0 {
		return tags, nil
	}

	enriched, err := p.llm.Tag(ctx, conv)
	if err != nil {
		p.logger.Warn("llm tagging failed, keeping rule tags",
			"session_id", conv.SessionID,
			"error", err,
		)
		return tags, nil
	}
	return enriched.Merge(tags), nil
}
