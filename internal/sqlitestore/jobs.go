package sqlitestore

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/scribe/internal/model"
)

const defaultJobLimit = 50

func (s *Store) RecordJob(ctx context.Context, job model.IngestionJob) error {
	var convID uuid.NullUUID
	if job.ConversationID != nil {
		convID = uuid.NullUUID{UUID: *job.ConversationID, Valid: true}
	}
	var configID uuid.NullUUID
	if job.SourceConfigID != nil {
		configID = uuid.NullUUID{UUID: *job.SourceConfigID, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ingestion_jobs (id, source_type, file_path, conversation_id, status, error_message,
			processing_time_ms, incremental, messages_added, change_type, parser_name, source_config_id,
			started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.SourceType, job.FilePath, convID, job.Status, job.ErrorMessage,
		job.ProcessingTimeMs, job.Incremental, job.MessagesAdded, job.ChangeType, job.ParserName,
		configID, job.StartedAt.UTC(), job.CompletedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert ingestion job: %w", err)
	}
	return nil
}

// ListJobs returns the most recent jobs matching f, newest first.
func (s *Store) ListJobs(ctx context.Context, f model.JobFilter) ([]model.IngestionJob, error) {
	var where []string
	var args []any
	add := func(col, val string) {
		if val == "" {
			return
		}
		where = append(where, col+" = ?")
		args = append(args, val)
	}
	add("status", f.Status)
	add("source_type", f.SourceType)
	add("file_path", f.FilePath)
	if f.SourceConfigID != nil {
		where = append(where, "source_config_id = ?")
		args = append(args, *f.SourceConfigID)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = defaultJobLimit
	}

	query := `SELECT id, source_type, file_path, conversation_id, status, error_message, processing_time_ms,
		incremental, messages_added, change_type, parser_name, source_config_id, started_at, completed_at
		FROM ingestion_jobs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY started_at DESC, rowid DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query ingestion jobs: %w", err)
	}
	defer rows.Close()

	var jobs []model.IngestionJob
	for rows.Next() {
		var j model.IngestionJob
		var convID, configID uuid.NullUUID
		if err := rows.Scan(&j.ID, &j.SourceType, &j.FilePath, &convID, &j.Status, &j.ErrorMessage,
			&j.ProcessingTimeMs, &j.Incremental, &j.MessagesAdded, &j.ChangeType, &j.ParserName,
			&configID, &j.StartedAt, &j.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan ingestion job: %w", err)
		}
		if convID.Valid {
			id := convID.UUID
			j.ConversationID = &id
		}
		if configID.Valid {
			id := configID.UUID
			j.SourceConfigID = &id
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}
