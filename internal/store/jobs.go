package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/MikeSquared-Agency/scribe/internal/model"
)

const defaultJobLimit = 50

func (s *Store) RecordJob(ctx context.Context, job model.IngestionJob) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO ingestion_jobs (id, source_type, file_path, conversation_id, status, error_message,
			processing_time_ms, incremental, messages_added, change_type, parser_name, source_config_id,
			started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		job.ID, job.SourceType, job.FilePath, job.ConversationID, job.Status, job.ErrorMessage,
		job.ProcessingTimeMs, job.Incremental, job.MessagesAdded, job.ChangeType, job.ParserName,
		job.SourceConfigID, job.StartedAt, job.CompletedAt,
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
		args = append(args, val)
		where = append(where, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	add("status", f.Status)
	add("source_type", f.SourceType)
	add("file_path", f.FilePath)
	if f.SourceConfigID != nil {
		args = append(args, *f.SourceConfigID)
		where = append(where, fmt.Sprintf("source_config_id = $%d", len(args)))
	}

	limit := f.Limit
	if limit <= 0 {
		limit = defaultJobLimit
	}
	args = append(args, limit)

	query := `SELECT id, source_type, file_path, conversation_id, status, error_message, processing_time_ms,
		incremental, messages_added, change_type, parser_name, source_config_id, started_at, completed_at
		FROM ingestion_jobs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY started_at DESC LIMIT $%d", len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query ingestion jobs: %w", err)
	}
	defer rows.Close()

	var jobs []model.IngestionJob
	for rows.Next() {
		var j model.IngestionJob
		if err := rows.Scan(&j.ID, &j.SourceType, &j.FilePath, &j.ConversationID, &j.Status, &j.ErrorMessage,
			&j.ProcessingTimeMs, &j.Incremental, &j.MessagesAdded, &j.ChangeType, &j.ParserName,
			&j.SourceConfigID, &j.StartedAt, &j.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan ingestion job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}
