package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/scribe/internal/ingest"
	"github.com/MikeSquared-Agency/scribe/internal/model"
)

type storeTx struct {
	tx *sql.Tx
}

func (t *storeTx) SaveState(ctx context.Context, st model.RawLogState) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO raw_logs (file_path, conversation_id, parser_name, last_processed_offset,
			last_processed_line, file_size_bytes, partial_hash, last_message_timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (file_path) DO UPDATE SET
			conversation_id = excluded.conversation_id,
			parser_name = excluded.parser_name,
			last_processed_offset = excluded.last_processed_offset,
			last_processed_line = excluded.last_processed_line,
			file_size_bytes = excluded.file_size_bytes,
			partial_hash = excluded.partial_hash,
			last_message_timestamp = excluded.last_message_timestamp,
			updated_at = CURRENT_TIMESTAMP`,
		st.FilePath, st.ConversationID, st.ParserName, st.LastProcessedOffset,
		st.LastProcessedLine, st.FileSizeBytes, st.PartialHash, nullTimePtr(st.LastMessageTimestamp),
	)
	if err != nil {
		return fmt.Errorf("upsert raw log state: %w", err)
	}
	return nil
}

func (t *storeTx) CreateConversation(ctx context.Context, req ingest.CreateConversationRequest) (uuid.UUID, error) {
	conv := req.Conversation
	id := uuid.New()
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO conversations (id, agent_type, agent_version, session_id, working_directory, git_branch,
			project_name, developer_username, source_type, parser_name, start_time, end_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, conv.AgentType, conv.AgentVersion, conv.SessionID, conv.WorkingDirectory, conv.GitBranch,
		req.ProjectName, req.DeveloperUsername, req.SourceType, req.ParserName,
		nullTime(conv.StartTime), nullTimePtr(conv.EndTime),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert conversation: %w", err)
	}
	if err := t.writeEpoch(ctx, id, 0, "initial", conv); err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

func (t *storeTx) AppendMessages(ctx context.Context, req ingest.AppendMessagesRequest) error {
	var epochID uuid.UUID
	err := t.tx.QueryRowContext(ctx,
		`SELECT id FROM epochs WHERE conversation_id = ? ORDER BY sequence DESC LIMIT 1`, req.ConversationID,
	).Scan(&epochID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("conversation %s has no epoch", req.ConversationID)
	}
	if err != nil {
		return fmt.Errorf("query latest epoch: %w", err)
	}

	var next int
	err = t.tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(sequence), -1) + 1 FROM messages WHERE epoch_id = ?`, epochID,
	).Scan(&next)
	if err != nil {
		return fmt.Errorf("query next message sequence: %w", err)
	}

	if err := t.insertMessages(ctx, req.ConversationID, epochID, next, req.Messages); err != nil {
		return err
	}
	if err := t.upsertFiles(ctx, req.ConversationID, epochID, req.Files); err != nil {
		return err
	}
	return t.refreshCounts(ctx, req.ConversationID)
}

func (t *storeTx) ReplaceConversationContent(ctx context.Context, req ingest.ReplaceConversationRequest) error {
	conv := req.Conversation
	res, err := t.tx.ExecContext(ctx, `
		UPDATE conversations SET agent_type = ?, agent_version = ?, session_id = ?, working_directory = ?,
			git_branch = ?, start_time = ?, end_time = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		conv.AgentType, conv.AgentVersion, conv.SessionID, conv.WorkingDirectory,
		conv.GitBranch, nullTime(conv.StartTime), nullTimePtr(conv.EndTime), req.ConversationID,
	)
	if err != nil {
		return fmt.Errorf("update conversation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("conversation %s not found", req.ConversationID)
	}

	var next int
	err = t.tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(sequence), -1) + 1 FROM epochs WHERE conversation_id = ?`, req.ConversationID,
	).Scan(&next)
	if err != nil {
		return fmt.Errorf("query next epoch sequence: %w", err)
	}
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM epochs WHERE conversation_id = ?`, req.ConversationID); err != nil {
		return fmt.Errorf("delete epochs: %w", err)
	}
	return t.writeEpoch(ctx, req.ConversationID, next, string(req.Reason), conv)
}

func (t *storeTx) writeEpoch(ctx context.Context, convID uuid.UUID, seq int, reason string, conv *model.ParsedConversation) error {
	epochID := uuid.New()
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO epochs (id, conversation_id, sequence, reason, start_time, end_time)
		VALUES (?, ?, ?, ?, ?, ?)`,
		epochID, convID, seq, reason, nullTime(conv.StartTime), nullTimePtr(conv.EndTime),
	)
	if err != nil {
		return fmt.Errorf("insert epoch: %w", err)
	}
	if err := t.insertMessages(ctx, convID, epochID, 0, conv.Messages); err != nil {
		return err
	}
	if err := t.upsertFiles(ctx, convID, epochID, model.TouchedFiles(conv.Messages)); err != nil {
		return err
	}
	return t.refreshCounts(ctx, convID)
}

func (t *storeTx) insertMessages(ctx context.Context, convID, epochID uuid.UUID, first int, msgs []model.ParsedMessage) error {
	if len(msgs) == 0 {
		return nil
	}
	stmt, err := t.tx.PrepareContext(ctx, `
		INSERT INTO messages (id, epoch_id, conversation_id, sequence, role, content, timestamp,
			model, tool_calls, code_changes, entities)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare message insert: %w", err)
	}
	defer stmt.Close()

	for i, m := range msgs {
		cols, err := m.EncodeColumns()
		if err != nil {
			return err
		}
		_, err = stmt.ExecContext(ctx,
			uuid.New(), epochID, convID, first+i, m.Role, m.Content, nullTime(m.Timestamp),
			m.Model, string(cols.ToolCalls), string(cols.CodeChanges), string(cols.Entities),
		)
		if err != nil {
			return fmt.Errorf("insert message %d: %w", first+i, err)
		}
	}
	return nil
}

func (t *storeTx) upsertFiles(ctx context.Context, convID, epochID uuid.UUID, files []model.FileTouch) error {
	for _, f := range files {
		_, err := t.tx.ExecContext(ctx, `
			INSERT INTO files_touched (id, conversation_id, epoch_id, file_path, change_type,
				lines_added, lines_deleted, timestamp)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (conversation_id, file_path) DO UPDATE SET
				change_type = CASE WHEN excluded.change_type = '' THEN files_touched.change_type
				                   ELSE excluded.change_type END,
				lines_added = files_touched.lines_added + excluded.lines_added,
				lines_deleted = files_touched.lines_deleted + excluded.lines_deleted`,
			uuid.New(), convID, epochID, f.FilePath, f.ChangeType,
			f.LinesAdded, f.LinesDeleted, nullTime(f.Timestamp),
		)
		if err != nil {
			return fmt.Errorf("upsert file %s: %w", f.FilePath, err)
		}
	}
	return nil
}

func (t *storeTx) refreshCounts(ctx context.Context, convID uuid.UUID) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE conversations SET
			message_count = (SELECT COUNT(*) FROM messages WHERE conversation_id = ?1),
			epoch_count = (SELECT COUNT(*) FROM epochs WHERE conversation_id = ?1),
			files_count = (SELECT COUNT(*) FROM files_touched WHERE conversation_id = ?1),
			end_time = COALESCE((SELECT MAX(timestamp) FROM messages WHERE conversation_id = ?1), end_time),
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?1`, convID,
	)
	if err != nil {
		return fmt.Errorf("refresh conversation counts: %w", err)
	}
	return nil
}

// Messages returns the stored messages of a conversation in order.
func (s *Store) Messages(ctx context.Context, convID uuid.UUID) ([]model.ParsedMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.role, m.content, m.timestamp, m.model, m.tool_calls, m.code_changes, m.entities
		FROM messages m JOIN epochs e ON e.id = m.epoch_id
		WHERE m.conversation_id = ?
		ORDER BY e.sequence, m.sequence`, convID,
	)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var out []model.ParsedMessage
	for rows.Next() {
		var m model.ParsedMessage
		var ts sql.NullTime
		var calls, changes, entities string
		if err := rows.Scan(&m.Role, &m.Content, &ts, &m.Model, &calls, &changes, &entities); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if ts.Valid {
			m.Timestamp = ts.Time
		}
		cols := model.MessageColumns{ToolCalls: []byte(calls), CodeChanges: []byte(changes), Entities: []byte(entities)}
		if err := m.DecodeColumns(cols); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ConversationCounts reports the denormalized counters of a conversation.
func (s *Store) ConversationCounts(ctx context.Context, convID uuid.UUID) (messages, epochs, files int, err error) {
	err = s.db.QueryRowContext(ctx,
		`SELECT message_count, epoch_count, files_count FROM conversations WHERE id = ?`, convID,
	).Scan(&messages, &epochs, &files)
	if err != nil {
		err = fmt.Errorf("query conversation counts: %w", err)
	}
	return messages, epochs, files, err
}
