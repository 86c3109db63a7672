package tagging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/MikeSquared-Agency/scribe/internal/anthropic"
	"github.com/MikeSquared-Agency/scribe/internal/model"
)

const (
	maxTranscriptChars = 60000
	maxMessageChars    = 2000
	maxResponseTokens  = 1024
	llmConfidence      = 0.8
)

// Completer is the part of the Anthropic client the tagger needs.
type Completer interface {
	Complete(ctx context.Context, system string, messages []anthropic.Message, maxTokens int) (string, error)
}

type LLMTagger struct {
	llm    Completer
	logger *slog.Logger
}

func NewLLMTagger(llm Completer, logger *slog.Logger) *LLMTagger {
	return &LLMTagger{llm: llm, logger: logger}
}

type llmResponse struct {
	Intent         string   `json:"intent"`
	Outcome        string   `json:"outcome"`
	Sentiment      string   `json:"sentiment"`
	SentimentScore float64  `json:"sentiment_score"`
	Features       []string `json:"features"`
	Problems       []string `json:"problems"`
}

func (t *LLMTagger) Tag(ctx context.Context, conv *model.ParsedConversation) (model.TagSet, error) {
	transcript := Transcript(conv.Messages, maxTranscriptChars)
	prompt := fmt.Sprintf(userPrompt, conv.AgentType, conv.WorkingDirectory, transcript)

	t.logger.Debug("tagging conversation",
		"session_id", conv.SessionID,
		"messages", len(conv.Messages),
		"transcript_len", len(transcript),
	)

	raw, err := t.llm.Complete(ctx, systemPrompt, []anthropic.Message{{Role: "user", Content: prompt}}, maxResponseTokens)
	if err != nil {
		return model.TagSet{}, fmt.Errorf("llm tagging: %w", err)
	}

	var resp llmResponse
	if err := json.Unmarshal([]byte(stripFence(raw)), &resp); err != nil {
		t.logger.Error("failed to parse tagging response",
			"error", err,
			"raw", raw,
		)
		return model.TagSet{}, fmt.Errorf("parse tagging response: %w", err)
	}

	return model.TagSet{
		Intent:         normalize(resp.Intent),
		Outcome:        normalize(resp.Outcome),
		Sentiment:      normalize(resp.Sentiment),
		SentimentScore: clamp(resp.SentimentScore),
		Features:       resp.Features,
		Problems:       resp.Problems,
		Confidence:     llmConfidence,
	}, nil
}

// Transcript renders messages as "role: content" lines, trimming long
// messages and keeping the most recent ones when over limit.
func Transcript(msgs []model.ParsedMessage, limit int) string {
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		content := strings.TrimSpace(m.Content)
		if len(content) > maxMessageChars {
			content = content[:maxMessageChars] + " ..."
		}
		if content == "" && len(m.ToolCalls) > 0 {
			names := make([]string, len(m.ToolCalls))
			for i, c := range m.ToolCalls {
				names[i] = c.ToolName
			}
			content = "[tools: " + strings.Join(names, ", ") + "]"
		}
		lines = append(lines, m.Role+": "+content)
	}

	total := 0
	start := len(lines)
	for start > 0 && total+len(lines[start-1])+1 <= limit {
		start--
		total += len(lines[start]) + 1
	}
	return strings.Join(lines[start:], "\n")
}

// stripFence removes a markdown code fence some models wrap JSON in.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "unknown" {
		return ""
	}
	return s
}

func clamp(f float64) float64 {
	switch {
	case f < -1:
		return -1
	case f > 1:
		return 1
	}
	return f
}
