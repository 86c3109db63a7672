package parser

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/gowebpki/jcs"
	"github.com/valyala/fastjson"

	"github.com/MikeSquared-Agency/scribe/internal/model"
)

// canonicalParams returns the RFC 8785 form of raw, or raw unchanged when
// it is not valid JSON.
func canonicalParams(raw []byte) json.RawMessage {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	out, err := jcs.Transform(raw)
	if err != nil {
		quoted, _ := json.Marshal(string(raw))
		return quoted
	}
	return out
}

// canonicalArguments handles tool arguments that arrive either as a JSON
// object or as a string holding encoded JSON.
func canonicalArguments(raw json.RawMessage) json.RawMessage {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return canonicalParams([]byte(s))
		}
	}
	return canonicalParams(raw)
}

var pathKeys = []string{"file_path", "notebook_path", "path"}

// toolFilePath peeks at the parameters for the file the tool operates on.
func toolFilePath(params []byte) string {
	if len(params) == 0 {
		return ""
	}
	var p fastjson.Parser
	v, err := p.ParseBytes(params)
	if err != nil || v.Type() != fastjson.TypeObject {
		return ""
	}
	for _, k := range pathKeys {
		if s := v.GetStringBytes(k); len(s) > 0 {
			return string(s)
		}
	}
	return ""
}

func newToolCall(id, name string, params json.RawMessage) model.ToolCall {
	canonical := canonicalArguments(params)
	return model.ToolCall{
		ID:         id,
		ToolName:   name,
		Parameters: canonical,
		FilePath:   toolFilePath(canonical),
	}
}

type editInput struct {
	FilePath  string `json:"file_path"`
	Content   string `json:"content"`
	OldString string `json:"old_string"`
	NewString string `json:"new_string"`
	Edits     []struct {
		OldString string `json:"old_string"`
		NewString string `json:"new_string"`
	} `json:"edits"`
}

// codeChangesFor derives file edits from Claude Code's editing tools.
func codeChangesFor(call model.ToolCall) []model.CodeChange {
	switch call.ToolName {
	case "Write", "Edit", "MultiEdit":
	default:
		return nil
	}
	var in editInput
	if err := json.Unmarshal(call.Parameters, &in); err != nil || in.FilePath == "" {
		return nil
	}

	switch call.ToolName {
	case "Write":
		return []model.CodeChange{{
			FilePath:   in.FilePath,
			ChangeType: model.ChangeCreate,
			NewContent: in.Content,
			LinesAdded: countLines(in.Content),
		}}
	case "Edit":
		return []model.CodeChange{editChange(in.FilePath, in.OldString, in.NewString)}
	default:
		changes := make([]model.CodeChange, 0, len(in.Edits))
		for _, e := range in.Edits {
			changes = append(changes, editChange(in.FilePath, e.OldString, e.NewString))
		}
		return changes
	}
}

func editChange(path, oldContent, newContent string) model.CodeChange {
	return model.CodeChange{
		FilePath:     path,
		ChangeType:   model.ChangeEdit,
		OldContent:   oldContent,
		NewContent:   newContent,
		LinesAdded:   countLines(newContent),
		LinesDeleted: countLines(oldContent),
	}
}

func countLines(s string) int {
	if s == "" {
		return 0
	}
	n := strings.Count(s, "\n")
	if !strings.HasSuffix(s, "\n") {
		n++
	}
	return n
}
