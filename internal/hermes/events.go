package hermes

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	// SubjectIngestRequested carries IngestRequest payloads from other agents.
	SubjectIngestRequested = "swarm.scribe.ingest.requested"
	// SubjectIngestCompleted carries an IngestEvent for every finished ingest.
	SubjectIngestCompleted = "swarm.scribe.ingest.completed"
	SubjectRegistered      = "swarm.agent.scribe.registered"
)

// IngestRequest asks scribe to ingest one log file. EnableIncremental is a
// pointer so an omitted field falls back to the service default.
type IngestRequest struct {
	FilePath          string `json:"file_path"`
	SourceType        string `json:"source_type,omitempty"`
	EnableIncremental *bool  `json:"enable_incremental,omitempty"`
	ProjectName       string `json:"project_name,omitempty"`
	DeveloperUsername string `json:"developer_username,omitempty"`
}

// ParseIngestRequest decodes and validates a request payload.
func ParseIngestRequest(data []byte) (IngestRequest, error) {
	var req IngestRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return req, fmt.Errorf("decode ingest request: %w", err)
	}
	if req.FilePath == "" {
		return req, fmt.Errorf("ingest request missing file_path")
	}
	return req, nil
}

type IngestEvent struct {
	FilePath        string    `json:"file_path"`
	Status          string    `json:"status"`
	ConversationID  string    `json:"conversation_id,omitempty"`
	Incremental     bool      `json:"incremental"`
	ChangeType      string    `json:"change_type,omitempty"`
	FullParseReason string    `json:"full_parse_reason,omitempty"`
	ParserName      string    `json:"parser_name,omitempty"`
	MessagesAdded   int       `json:"messages_added"`
	Stage           string    `json:"stage,omitempty"`
	ErrorKind       string    `json:"error_kind,omitempty"`
	Error           string    `json:"error,omitempty"`
	Retryable       bool      `json:"retryable,omitempty"`
	DurationMs      int64     `json:"duration_ms"`
	Tags            []string  `json:"tags,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

type Registration struct {
	Timestamp string   `json:"timestamp"`
	Port      int      `json:"port"`
	Parsers   []string `json:"parsers"`
	Backend   string   `json:"backend"`
}
