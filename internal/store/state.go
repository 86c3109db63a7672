package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/scribe/internal/model"
)

// LoadState returns the stored resume point for path, or nil if the path has
// never been ingested.
func (s *Store) LoadState(ctx context.Context, path string) (*model.RawLogState, error) {
	st := model.RawLogState{FilePath: path}
	err := s.pool.QueryRow(ctx, `
		SELECT conversation_id, parser_name, last_processed_offset, last_processed_line,
		       file_size_bytes, partial_hash, last_message_timestamp
		FROM raw_logs WHERE file_path = $1`, path,
	).Scan(&st.ConversationID, &st.ParserName, &st.LastProcessedOffset, &st.LastProcessedLine,
		&st.FileSizeBytes, &st.PartialHash, &st.LastMessageTimestamp)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query raw log state: %w", err)
	}
	return &st, nil
}

// FindDuplicate returns the conversation of any tracked file whose consumed
// prefix hashes to fingerprint.
func (s *Store) FindDuplicate(ctx context.Context, fingerprint string) (*uuid.UUID, error) {
	var id uuid.UUID
	err := s.pool.QueryRow(ctx, `
		SELECT conversation_id FROM raw_logs
		WHERE partial_hash = $1 AND last_processed_offset > 0
		ORDER BY created_at LIMIT 1`, fingerprint,
	).Scan(&id)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query duplicate: %w", err)
	}
	return &id, nil
}

func saveState(ctx context.Context, q querier, st model.RawLogState) error {
	_, err := q.Exec(ctx, `
		INSERT INTO raw_logs (file_path, conversation_id, parser_name, last_processed_offset,
			last_processed_line, file_size_bytes, partial_hash, last_message_timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (file_path) DO UPDATE SET
			conversation_id = EXCLUDED.conversation_id,
			parser_name = EXCLUDED.parser_name,
			last_processed_offset = EXCLUDED.last_processed_offset,
			last_processed_line = EXCLUDED.last_processed_line,
			file_size_bytes = EXCLUDED.file_size_bytes,
			partial_hash = EXCLUDED.partial_hash,
			last_message_timestamp = EXCLUDED.last_message_timestamp,
			updated_at = now()`,
		st.FilePath, st.ConversationID, st.ParserName, st.LastProcessedOffset,
		st.LastProcessedLine, st.FileSizeBytes, st.PartialHash, st.LastMessageTimestamp,
	)
	if err != nil {
		return fmt.Errorf("upsert raw log state: %w", err)
	}
	return nil
}
