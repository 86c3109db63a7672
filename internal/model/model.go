// Package model holds the canonical conversation types every log dialect is
// normalized into, plus the per-file ingestion state.
package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ToolCall is a single tool invocation requested by the agent.
// Parameters are kept in canonical JSON form so equal calls compare equal.
type ToolCall struct {
	ID         string          `json:"id,omitempty"`
	ToolName   string          `json:"tool_name"`
	Parameters json.RawMessage `json:"parameters,omitempty"`
	FilePath   string          `json:"file_path,omitempty"`
}

// CodeChange is a file edit derived from a tool call.
type CodeChange struct {
	FilePath     string `json:"file_path"`
	ChangeType   string `json:"change_type"`
	OldContent   string `json:"old_content,omitempty"`
	NewContent   string `json:"new_content,omitempty"`
	LinesAdded   int    `json:"lines_added"`
	LinesDeleted int    `json:"lines_deleted"`
}

const (
	ChangeCreate = "create"
	ChangeEdit   = "edit"
)

type ParsedMessage struct {
	Role        string              `json:"role"`
	Content     string              `json:"content"`
	Timestamp   time.Time           `json:"timestamp"`
	Model       string              `json:"model,omitempty"`
	ToolCalls   []ToolCall          `json:"tool_calls,omitempty"`
	CodeChanges []CodeChange        `json:"code_changes,omitempty"`
	Entities    map[string][]string `json:"entities,omitempty"`
}

type ParsedConversation struct {
	AgentType        string          `json:"agent_type"`
	AgentVersion     string          `json:"agent_version,omitempty"`
	SessionID        string          `json:"session_id,omitempty"`
	WorkingDirectory string          `json:"working_directory,omitempty"`
	GitBranch        string          `json:"git_branch,omitempty"`
	StartTime        time.Time       `json:"start_time"`
	EndTime          *time.Time      `json:"end_time,omitempty"`
	Messages         []ParsedMessage `json:"messages"`
	FilesTouched     []string        `json:"files_touched,omitempty"`
}

// CodeChanges returns every code change across all messages, in message order.
func (c *ParsedConversation) CodeChanges() []CodeChange {
	var out []CodeChange
	for _, m := range c.Messages {
		out = append(out, m.CodeChanges...)
	}
	return out
}

// ParseResult is the output of a full parse. ProcessedOffset and ProcessedLine
// mark the end of the last complete record; a trailing partial record is not
// included.
// ParseResult describes a full parse. FileSizeBytes is the end of file the
// parser observed and PartialHash covers the first ProcessedOffset bytes; a
// parser that leaves PartialHash empty gets both filled in from the file.
type ParseResult struct {
	Conversation    *ParsedConversation `json:"conversation"`
	ParserName      string              `json:"parser_name"`
	ParseMethod     string              `json:"parse_method"`
	ProcessedOffset int64               `json:"processed_offset"`
	ProcessedLine   int                 `json:"processed_line"`
	FileSizeBytes   int64               `json:"file_size_bytes"`
	PartialHash     string              `json:"partial_hash,omitempty"`
	Deferred        bool                `json:"deferred"`
	Warnings        []string            `json:"warnings,omitempty"`
}

const (
	ParseMethodFull        = "full"
	ParseMethodIncremental = "incremental"
)

// RawLogState is the persisted resume point for one log file.
// PartialHash covers exactly the first LastProcessedOffset bytes; an empty
// PartialHash means no hash was recorded.
type RawLogState struct {
	FilePath             string     `json:"file_path"`
	ConversationID       uuid.UUID  `json:"conversation_id"`
	ParserName           string     `json:"parser_name,omitempty"`
	LastProcessedOffset  int64      `json:"last_processed_offset"`
	LastProcessedLine    int        `json:"last_processed_line"`
	FileSizeBytes        int64      `json:"file_size_bytes"`
	PartialHash          string     `json:"partial_hash,omitempty"`
	LastMessageTimestamp *time.Time `json:"last_message_timestamp,omitempty"`
}

type IncrementalParseResult struct {
	NewMessages          []ParsedMessage `json:"new_messages"`
	LastProcessedOffset  int64           `json:"last_processed_offset"`
	LastProcessedLine    int             `json:"last_processed_line"`
	FileSizeBytes        int64           `json:"file_size_bytes"`
	PartialHash          string          `json:"partial_hash"`
	LastMessageTimestamp *time.Time      `json:"last_message_timestamp,omitempty"`
	Deferred             bool            `json:"deferred"`
}

type ProbeResult struct {
	CanParse   bool     `json:"can_parse"`
	Confidence float64  `json:"confidence"`
	Reasons    []string `json:"reasons,omitempty"`
}

// LastTimestamp returns the latest non-zero message timestamp, or nil.
func LastTimestamp(msgs []ParsedMessage) *time.Time {
	var last *time.Time
	for i := range msgs {
		ts := msgs[i].Timestamp
		if ts.IsZero() {
			continue
		}
		if last == nil || ts.After(*last) {
			t := ts
			last = &t
		}
	}
	return last
}

// FilesTouched lists every file named by a tool call or code change, in
// first-seen order.
func FilesTouched(msgs []ParsedMessage) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(p string) {
		if p != "" && !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	for _, m := range msgs {
		for _, c := range m.ToolCalls {
			add(c.FilePath)
		}
		for _, c := range m.CodeChanges {
			add(c.FilePath)
		}
	}
	return out
}

// FileTouch summarizes what a batch of messages did to one file.
type FileTouch struct {
	FilePath     string    `json:"file_path"`
	ChangeType   string    `json:"change_type,omitempty"`
	LinesAdded   int       `json:"lines_added"`
	LinesDeleted int       `json:"lines_deleted"`
	Timestamp    time.Time `json:"timestamp"`
}

// TouchedFiles aggregates FilesTouched into one entry per path. The change
// type is the latest code change seen for the path; files only read by a
// tool have none.
func TouchedFiles(msgs []ParsedMessage) []FileTouch {
	index := make(map[string]int)
	var out []FileTouch
	entry := func(path string, ts time.Time) *FileTouch {
		i, ok := index[path]
		if !ok {
			i = len(out)
			index[path] = i
			out = append(out, FileTouch{FilePath: path, Timestamp: ts})
		}
		return &out[i]
	}
	for _, m := range msgs {
		for _, c := range m.ToolCalls {
			if c.FilePath != "" {
				entry(c.FilePath, m.Timestamp)
			}
		}
		for _, c := range m.CodeChanges {
			if c.FilePath == "" {
				continue
			}
			f := entry(c.FilePath, m.Timestamp)
			f.ChangeType = c.ChangeType
			f.LinesAdded += c.LinesAdded
			f.LinesDeleted += c.LinesDeleted
		}
	}
	return out
}
