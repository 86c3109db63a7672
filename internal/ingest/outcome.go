package ingest

import (
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/scribe/internal/errkind"
	"github.com/MikeSquared-Agency/scribe/internal/incremental"
	"github.com/MikeSquared-Agency/scribe/internal/model"
)

type Status string

const (
	StatusSuccess   Status = "success"
	StatusDuplicate Status = "duplicate"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
)

// Stage names the step an ingest failed in.
type Stage string

const (
	StageLock    Stage = "lock"
	StageLoad    Stage = "load_state"
	StageDetect  Stage = "detect"
	StageSelect  Stage = "select_parser"
	StageParse   Stage = "parse"
	StageDedup   Stage = "dedup"
	StagePersist Stage = "persist"
)

// FullParseReason says why the whole file was parsed instead of its tail.
type FullParseReason string

const (
	ReasonNewFile                FullParseReason = "new_file"
	ReasonTruncate               FullParseReason = "truncate"
	ReasonRewrite                FullParseReason = "rewrite"
	ReasonDeleted                FullParseReason = "deleted"
	ReasonIncrementalUnsupported FullParseReason = "incremental_unsupported"
	ReasonIncrementalDisabled    FullParseReason = "incremental_disabled"
)

func reasonFor(c incremental.ChangeType) FullParseReason {
	switch c {
	case incremental.ChangeTruncate:
		return ReasonTruncate
	case incremental.ChangeRewrite:
		return ReasonRewrite
	case incremental.ChangeDeleted:
		return ReasonDeleted
	}
	return ReasonIncrementalDisabled
}

// Outcome is the result of one Ingest call. Failures are reported here, never
// returned as an error.
type Outcome struct {
	Status          Status                 `json:"status"`
	FilePath        string                 `json:"file_path"`
	ConversationID  uuid.UUID              `json:"conversation_id"`
	Incremental     bool                   `json:"incremental"`
	ChangeType      incremental.ChangeType `json:"change_type,omitempty"`
	FullParseReason FullParseReason        `json:"full_parse_reason,omitempty"`
	ParserName      string                 `json:"parser_name,omitempty"`
	MessagesAdded   int                    `json:"messages_added"`
	Detail          string                 `json:"detail,omitempty"`

	Stage     Stage        `json:"stage,omitempty"`
	ErrorKind errkind.Kind `json:"error_kind,omitempty"`
	Error     string       `json:"error,omitempty"`
	Retryable bool         `json:"retryable,omitempty"`

	Duration        time.Duration `json:"duration_ns"`
	ParseDuration   time.Duration `json:"parse_duration_ns"`
	PersistDuration time.Duration `json:"persist_duration_ns"`
	BytesRead       int64         `json:"bytes_read"`

	// Conversation is set after a successful full parse so callers can tag it.
	Conversation *model.ParsedConversation `json:"-"`
	Err          error                     `json:"-"`
}

func (o *Outcome) fail(stage Stage, err error) Outcome {
	o.Status = StatusFailed
	o.Stage = stage
	o.Err = err
	o.Error = err.Error()
	o.ErrorKind = errkind.KindOf(err)
	if o.ErrorKind == "" {
		o.ErrorKind = errkind.KindInternal
	}
	o.Retryable = errkind.RetryableOf(err)
	return *o
}

func (o *Outcome) skip(detail string) Outcome {
	o.Status = StatusSkipped
	o.Detail = detail
	return *o
}

// Job converts the outcome into a job-log row.
func (o Outcome) Job(sourceType string, startedAt time.Time) model.IngestionJob {
	job := model.IngestionJob{
		ID:               uuid.New(),
		SourceType:       sourceType,
		FilePath:         o.FilePath,
		Status:           string(o.Status),
		ErrorMessage:     o.Error,
		ProcessingTimeMs: o.Duration.Milliseconds(),
		Incremental:      o.Incremental,
		MessagesAdded:    o.MessagesAdded,
		ChangeType:       string(o.ChangeType),
		ParserName:       o.ParserName,
		StartedAt:        startedAt,
		CompletedAt:      startedAt.Add(o.Duration),
	}
	if o.ConversationID != uuid.Nil {
		id := o.ConversationID
		job.ConversationID = &id
	}
	if job.ErrorMessage == "" && o.Status == StatusSkipped {
		job.ErrorMessage = o.Detail
	}
	return job
}
