package parser

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fastjson"

	"github.com/MikeSquared-Agency/scribe/internal/model"
)

const AgentCodex = "codex"

const codexSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["type", "payload"],
  "properties": {
    "timestamp": {"type": "string", "format": "date-time"},
    "type": {"enum": ["session_meta", "response_item", "event_msg", "turn_context", "compacted"]},
    "payload": {"type": "object"}
  }
}`

var codexDialect = dialect{
	name:   AgentCodex,
	schema: compileSchema(codexSchema),
	marker: func(v *fastjson.Value) bool {
		return v.Exists("payload") &&
			stringIn(v, "type", "session_meta", "response_item", "event_msg", "turn_context", "compacted")
	},
}

type codexRecord struct {
	Timestamp string          `json:"timestamp"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
}

type codexSessionMeta struct {
	ID         string `json:"id"`
	CWD        string `json:"cwd"`
	CLIVersion string `json:"cli_version"`
	Git        *struct {
		Branch string `json:"branch"`
	} `json:"git"`
}

type codexTurnContext struct {
	CWD string `json:"cwd"`
}

type codexItem struct {
	Type      string          `json:"type"`
	Role      string          `json:"role"`
	Content   []codexContent  `json:"content"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
	CallID    string          `json:"call_id"`
}

type codexContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Codex parses Codex CLI rollout files: a typed envelope per line with the
// record body under payload.
type Codex struct{}

func NewCodex() *Codex { return &Codex{} }

func (p *Codex) Name() string { return AgentCodex }

func (p *Codex) Probe(path string) model.ProbeResult {
	return codexDialect.probe(path)
}

func (p *Codex) Parse(path string) (*model.ParseResult, error) {
	dec := &codexDecoder{}
	res, err := scanJSONL(path, 0, 0, dec)
	if err != nil {
		return nil, err
	}
	return fullResult(p.Name(), buildConversation(AgentCodex, dec.meta, res.messages), res), nil
}

func (p *Codex) ParseIncremental(path string, lastOffset int64, lastLine int) (*model.IncrementalParseResult, error) {
	res, err := scanJSONL(path, lastOffset, lastLine, &codexDecoder{})
	if err != nil {
		return nil, err
	}
	return incrementalResult(res), nil
}

type codexDecoder struct {
	meta sessionMeta
}

// Codex injects these as user turns; they are context, not conversation.
var codexInjectedPrefixes = []string{"<environment_context>", "<user_instructions>"}

func (d *codexDecoder) decode(line []byte) (*model.ParsedMessage, error) {
	var rec codexRecord
	if err := json.Unmarshal(line, &rec); err != nil {
		return nil, err
	}
	ts, _ := time.Parse(time.RFC3339Nano, rec.Timestamp)

	switch rec.Type {
	case "session_meta":
		var meta codexSessionMeta
		if err := json.Unmarshal(rec.Payload, &meta); err != nil {
			return nil, fmt.Errorf("session_meta payload: %w", err)
		}
		branch := ""
		if meta.Git != nil {
			branch = meta.Git.Branch
		}
		d.meta.observe(meta.CLIVersion, meta.ID, meta.CWD, branch)
		return nil, nil

	case "turn_context":
		var tc codexTurnContext
		if err := json.Unmarshal(rec.Payload, &tc); err != nil {
			return nil, fmt.Errorf("turn_context payload: %w", err)
		}
		d.meta.observe("", "", tc.CWD, "")
		return nil, nil

	case "response_item":
		var item codexItem
		if err := json.Unmarshal(rec.Payload, &item); err != nil {
			return nil, fmt.Errorf("response_item payload: %w", err)
		}
		return d.responseItem(item, ts), nil
	}
	return nil, nil
}

func (d *codexDecoder) responseItem(item codexItem, ts time.Time) *model.ParsedMessage {
	switch item.Type {
	case "message":
		if item.Role != "user" && item.Role != "assistant" {
			return nil
		}
		var texts []string
		for _, c := range item.Content {
			switch c.Type {
			case "input_text", "output_text", "text":
				if c.Text != "" {
					texts = append(texts, c.Text)
				}
			}
		}
		text := strings.Join(texts, "\n")
		if text == "" {
			return nil
		}
		if item.Role == "user" {
			trimmed := strings.TrimSpace(text)
			for _, prefix := range codexInjectedPrefixes {
				if strings.HasPrefix(trimmed, prefix) {
					return nil
				}
			}
		}
		return &model.ParsedMessage{Role: item.Role, Content: text, Timestamp: ts}

	case "function_call", "custom_tool_call":
		call := newToolCall(item.CallID, item.Name, item.Arguments)
		return &model.ParsedMessage{
			Role:      "assistant",
			Timestamp: ts,
			ToolCalls: []model.ToolCall{call},
		}
	}
	return nil
}
