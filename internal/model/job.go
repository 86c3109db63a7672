package model

import (
	"time"

	"github.com/google/uuid"
)

// IngestionJob is one row of the ingestion job log.
type IngestionJob struct {
	ID               uuid.UUID  `json:"id"`
	SourceType       string     `json:"source_type"`
	FilePath         string     `json:"file_path"`
	ConversationID   *uuid.UUID `json:"conversation_id,omitempty"`
	Status           string     `json:"status"`
	ErrorMessage     string     `json:"error_message,omitempty"`
	ProcessingTimeMs int64      `json:"processing_time_ms"`
	Incremental      bool       `json:"incremental"`
	MessagesAdded    int        `json:"messages_added"`
	ChangeType       string     `json:"change_type,omitempty"`
	ParserName       string     `json:"parser_name,omitempty"`
	SourceConfigID   *uuid.UUID `json:"source_config_id,omitempty"`
	StartedAt        time.Time  `json:"started_at"`
	CompletedAt      time.Time  `json:"completed_at"`
}

// JobFilter narrows a job-log listing. Zero values match everything.
type JobFilter struct {
	Status         string
	SourceType     string
	FilePath       string
	SourceConfigID *uuid.UUID
	Limit          int
}
