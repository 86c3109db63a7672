package parser

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/valyala/fastjson"

	"github.com/MikeSquared-Agency/scribe/internal/model"
)

const AgentClaudeCode = "claude-code"

const claudeCodeSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["type", "sessionId"],
  "properties": {
    "type": {"type": "string"},
    "sessionId": {"type": "string", "minLength": 1},
    "uuid": {"type": "string"},
    "timestamp": {"type": "string", "format": "date-time"},
    "message": {
      "type": "object",
      "required": ["role"],
      "properties": {"role": {"enum": ["user", "assistant"]}}
    }
  }
}`

var claudeCodeDialect = dialect{
	name:   AgentClaudeCode,
	schema: compileSchema(claudeCodeSchema),
	marker: func(v *fastjson.Value) bool {
		return v.Exists("sessionId") &&
			stringIn(v, "type", "user", "assistant", "summary", "system", "progress", "file-history-snapshot")
	},
}

// ccRecord is a single line from a Claude Code JSONL transcript.
type ccRecord struct {
	Type       string     `json:"type"`
	UUID       string     `json:"uuid"`
	ParentUUID *string    `json:"parentUuid"`
	SessionID  string     `json:"sessionId"`
	Version    string     `json:"version"`
	CWD        string     `json:"cwd"`
	GitBranch  string     `json:"gitBranch"`
	Timestamp  string     `json:"timestamp"`
	IsMeta     bool       `json:"isMeta"`
	Message    *ccMessage `json:"message"`
}

type ccMessage struct {
	Role    string          `json:"role"`
	Model   string          `json:"model"`
	Content json.RawMessage `json:"content"`
}

type ccContentBlock struct {
	Type  string          `json:"type"`
	Text  string          `json:"text,omitempty"`
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`
}

// ClaudeCode parses Claude Code project transcripts. Messages are kept in
// file order, which is also the order they were appended.
type ClaudeCode struct{}

func NewClaudeCode() *ClaudeCode { return &ClaudeCode{} }

func (p *ClaudeCode) Name() string { return AgentClaudeCode }

func (p *ClaudeCode) Probe(path string) model.ProbeResult {
	return claudeCodeDialect.probe(path)
}

func (p *ClaudeCode) Parse(path string) (*model.ParseResult, error) {
	dec := &claudeDecoder{}
	res, err := scanJSONL(path, 0, 0, dec)
	if err != nil {
		return nil, err
	}
	return fullResult(p.Name(), buildConversation(AgentClaudeCode, dec.meta, res.messages), res), nil
}

func (p *ClaudeCode) ParseIncremental(path string, lastOffset int64, lastLine int) (*model.IncrementalParseResult, error) {
	res, err := scanJSONL(path, lastOffset, lastLine, &claudeDecoder{})
	if err != nil {
		return nil, err
	}
	return incrementalResult(res), nil
}

type claudeDecoder struct {
	meta sessionMeta
}

func (d *claudeDecoder) decode(line []byte) (*model.ParsedMessage, error) {
	var rec ccRecord
	if err := json.Unmarshal(line, &rec); err != nil {
		return nil, err
	}
	d.meta.observe(rec.Version, rec.SessionID, rec.CWD, rec.GitBranch)

	if rec.Type != "user" && rec.Type != "assistant" {
		return nil, nil
	}
	if rec.Message == nil || rec.IsMeta {
		return nil, nil
	}

	text, calls, isToolResult := extractCCContent(rec.Message.Content)
	if isToolResult || (text == "" && len(calls) == 0) {
		return nil, nil
	}

	role := rec.Message.Role
	if role == "" {
		role = rec.Type
	}
	ts, _ := time.Parse(time.RFC3339Nano, rec.Timestamp)
	msg := &model.ParsedMessage{
		Role:      role,
		Content:   text,
		Timestamp: ts,
		Model:     rec.Message.Model,
		ToolCalls: calls,
	}
	for _, c := range calls {
		msg.CodeChanges = append(msg.CodeChanges, codeChangesFor(c)...)
	}
	return msg, nil
}

// extractCCContent pulls text and tool calls out of a message body, which is
// either a plain string or an array of content blocks. A user message made of
// tool_result blocks is reported so the caller can drop it.
func extractCCContent(raw json.RawMessage) (string, []model.ToolCall, bool) {
	if len(raw) == 0 {
		return "", nil, false
	}

	var plain string
	if err := json.Unmarshal(raw, &plain); err == nil {
		return plain, nil, false
	}

	var blocks []ccContentBlock
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return "", nil, false
	}

	var texts []string
	var calls []model.ToolCall
	for _, b := range blocks {
		switch b.Type {
		case "tool_result":
			return "", nil, true
		case "text":
			if b.Text != "" {
				texts = append(texts, b.Text)
			}
		case "tool_use":
			calls = append(calls, newToolCall(b.ID, b.Name, b.Input))
		}
	}
	return strings.Join(texts, "\n"), calls, false
}
