package ingest

import (
	"context"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/scribe/internal/incremental"
	"github.com/MikeSquared-Agency/scribe/internal/model"
)

// Storage is the persistence collaborator the orchestrator writes through.
// Writes for a single ingest happen inside one InTx call so a failure never
// leaves state advanced past the messages it describes.
type Storage interface {
	// LoadState returns nil, nil when the path has never been ingested.
	LoadState(ctx context.Context, path string) (*model.RawLogState, error)
	// FindDuplicate returns the conversation whose consumed content has the
	// given fingerprint, or nil.
	FindDuplicate(ctx context.Context, fingerprint string) (*uuid.UUID, error)
	InTx(ctx context.Context, fn func(tx StorageTx) error) error
	RecordJob(ctx context.Context, job model.IngestionJob) error
}

type StorageTx interface {
	SaveState(ctx context.Context, state model.RawLogState) error
	CreateConversation(ctx context.Context, req CreateConversationRequest) (uuid.UUID, error)
	AppendMessages(ctx context.Context, req AppendMessagesRequest) error
	ReplaceConversationContent(ctx context.Context, req ReplaceConversationRequest) error
}

type CreateConversationRequest struct {
	Conversation      *model.ParsedConversation
	FilePath          string
	ParserName        string
	SourceType        string
	ProjectName       string
	DeveloperUsername string
}

type AppendMessagesRequest struct {
	ConversationID uuid.UUID
	Messages       []model.ParsedMessage
	// Files aggregates the files touched by the new messages only.
	Files []model.FileTouch
}

// ReplaceConversationRequest swaps the stored content of an existing
// conversation after the file was truncated or rewritten. Reason lets the
// store decide between replacing in place and archiving.
type ReplaceConversationRequest struct {
	ConversationID uuid.UUID
	Conversation   *model.ParsedConversation
	Reason         FullParseReason
	ChangeType     incremental.ChangeType
}
