package parser

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/valyala/fastjson"

	"github.com/MikeSquared-Agency/scribe/internal/model"
)

const AgentGateway = "openclaw-gateway"

const gatewaySchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["type", "id"],
  "properties": {
    "type": {"type": "string"},
    "id": {"type": "string", "minLength": 1},
    "parentId": {"type": ["string", "null"]},
    "timestamp": {"type": "string", "format": "date-time"}
  }
}`

var gatewayDialect = dialect{
	name:   AgentGateway,
	schema: compileSchema(gatewaySchema),
	marker: func(v *fastjson.Value) bool {
		if v.Exists("sessionId") || v.Exists("payload") || !v.Exists("id") {
			return false
		}
		return stringIn(v, "type", "session", "message", "model_change", "thinking_level_change", "custom")
	},
}

// gwRecord is a single line from a gateway session JSONL file.
type gwRecord struct {
	Type      string          `json:"type"`
	ID        string          `json:"id"`
	ParentID  *string         `json:"parentId"`
	Timestamp string          `json:"timestamp"`
	Version   json.RawMessage `json:"version"`
	CWD       string          `json:"cwd"`
	ModelID   string          `json:"modelId"`
	Message   *gwMessage      `json:"message"`
}

type gwMessage struct {
	Role    string          `json:"role"`
	Model   string          `json:"model"`
	Content json.RawMessage `json:"content"`
}

type gwContentBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// Gateway parses OpenClaw gateway session files. Records are not written in
// conversation order, so messages are sorted by timestamp once the whole
// file is read. That makes resuming from an offset unsafe and Gateway
// deliberately does not implement IncrementalParser.
type Gateway struct{}

func NewGateway() *Gateway { return &Gateway{} }

func (p *Gateway) Name() string { return AgentGateway }

func (p *Gateway) Probe(path string) model.ProbeResult {
	return gatewayDialect.probe(path)
}

func (p *Gateway) Parse(path string) (*model.ParseResult, error) {
	dec := &gatewayDecoder{}
	res, err := scanJSONL(path, 0, 0, dec)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(res.messages, func(i, j int) bool {
		return res.messages[i].Timestamp.Before(res.messages[j].Timestamp)
	})
	return fullResult(p.Name(), buildConversation(AgentGateway, dec.meta, res.messages), res), nil
}

type gatewayDecoder struct {
	meta sessionMeta
}

func (d *gatewayDecoder) decode(line []byte) (*model.ParsedMessage, error) {
	var rec gwRecord
	if err := json.Unmarshal(line, &rec); err != nil {
		return nil, err
	}

	switch rec.Type {
	case "session":
		d.meta.observe(strings.Trim(string(rec.Version), `"`), rec.ID, rec.CWD, "")
		return nil, nil
	case "model_change":
		if rec.ModelID != "" {
			d.meta.model = rec.ModelID
		}
		return nil, nil
	case "message":
	default:
		return nil, nil
	}

	if rec.Message == nil {
		return nil, nil
	}
	if rec.Message.Role != "user" && rec.Message.Role != "assistant" {
		return nil, nil
	}

	text, calls := extractGatewayContent(rec.Message.Content)
	if text == "" && len(calls) == 0 {
		return nil, nil
	}

	ts, _ := time.Parse(time.RFC3339Nano, rec.Timestamp)
	msg := &model.ParsedMessage{
		Role:      rec.Message.Role,
		Content:   text,
		Timestamp: ts,
		ToolCalls: calls,
	}
	if rec.Message.Role == "assistant" {
		msg.Model = rec.Message.Model
		if msg.Model == "" {
			msg.Model = d.meta.model
		}
	}
	return msg, nil
}

func extractGatewayContent(raw json.RawMessage) (string, []model.ToolCall) {
	if len(raw) == 0 {
		return "", nil
	}

	var plain string
	if err := json.Unmarshal(raw, &plain); err == nil {
		return plain, nil
	}

	var blocks []gwContentBlock
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return "", nil
	}

	var texts []string
	var calls []model.ToolCall
	for _, b := range blocks {
		switch b.Type {
		case "text":
			if b.Text != "" {
				texts = append(texts, b.Text)
			}
		case "toolCall":
			calls = append(calls, newToolCall(b.ID, b.Name, b.Arguments))
		}
	}
	return strings.Join(texts, "\n"), calls
}
