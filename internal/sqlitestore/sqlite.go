// Package sqlitestore is the single-file embedded backend used when no
// Postgres database is configured.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/MikeSquared-Agency/scribe/internal/ingest"
	"github.com/MikeSquared-Agency/scribe/internal/model"
)

type Store struct {
	db *sql.DB
}

var _ ingest.Storage = (*Store)(nil)

// Open creates the database file and its parent directory if needed.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection keeps the pragmas in effect and serializes writers.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS conversations (
		id                 TEXT PRIMARY KEY,
		agent_type         TEXT NOT NULL,
		agent_version      TEXT NOT NULL DEFAULT '',
		session_id         TEXT NOT NULL DEFAULT '',
		working_directory  TEXT NOT NULL DEFAULT '',
		git_branch         TEXT NOT NULL DEFAULT '',
		project_name       TEXT NOT NULL DEFAULT '',
		developer_username TEXT NOT NULL DEFAULT '',
		source_type        TEXT NOT NULL DEFAULT '',
		parser_name        TEXT NOT NULL DEFAULT '',
		start_time         DATETIME,
		end_time           DATETIME,
		message_count      INTEGER NOT NULL DEFAULT 0,
		epoch_count        INTEGER NOT NULL DEFAULT 0,
		files_count        INTEGER NOT NULL DEFAULT 0,
		created_at         DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at         DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS epochs (
		id              TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
		sequence        INTEGER NOT NULL,
		reason          TEXT NOT NULL DEFAULT '',
		start_time      DATETIME,
		end_time        DATETIME,
		created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (conversation_id, sequence)
	);

	CREATE TABLE IF NOT EXISTS messages (
		id              TEXT PRIMARY KEY,
		epoch_id        TEXT NOT NULL REFERENCES epochs(id) ON DELETE CASCADE,
		conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
		sequence        INTEGER NOT NULL,
		role            TEXT NOT NULL,
		content         TEXT NOT NULL,
		timestamp       DATETIME,
		model           TEXT NOT NULL DEFAULT '',
		tool_calls      TEXT NOT NULL DEFAULT '[]',
		code_changes    TEXT NOT NULL DEFAULT '[]',
		entities        TEXT NOT NULL DEFAULT '{}',
		UNIQUE (epoch_id, sequence)
	);

	CREATE TABLE IF NOT EXISTS files_touched (
		id              TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
		epoch_id        TEXT NOT NULL REFERENCES epochs(id) ON DELETE CASCADE,
		file_path       TEXT NOT NULL,
		change_type     TEXT NOT NULL DEFAULT '',
		lines_added     INTEGER NOT NULL DEFAULT 0,
		lines_deleted   INTEGER NOT NULL DEFAULT 0,
		timestamp       DATETIME,
		UNIQUE (conversation_id, file_path)
	);

	CREATE TABLE IF NOT EXISTS raw_logs (
		file_path              TEXT PRIMARY KEY,
		conversation_id        TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
		parser_name            TEXT NOT NULL DEFAULT '',
		last_processed_offset  INTEGER NOT NULL DEFAULT 0,
		last_processed_line    INTEGER NOT NULL DEFAULT 0,
		file_size_bytes        INTEGER NOT NULL DEFAULT 0,
		partial_hash           TEXT NOT NULL DEFAULT '',
		last_message_timestamp DATETIME,
		created_at             DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at             DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS ingestion_jobs (
		id                 TEXT PRIMARY KEY,
		source_type        TEXT NOT NULL,
		file_path          TEXT NOT NULL,
		conversation_id    TEXT,
		status             TEXT NOT NULL,
		error_message      TEXT NOT NULL DEFAULT '',
		processing_time_ms INTEGER NOT NULL DEFAULT 0,
		incremental        INTEGER NOT NULL DEFAULT 0,
		messages_added     INTEGER NOT NULL DEFAULT 0,
		change_type        TEXT NOT NULL DEFAULT '',
		parser_name        TEXT NOT NULL DEFAULT '',
		source_config_id   TEXT,
		started_at         DATETIME NOT NULL,
		completed_at       DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS watch_configs (
		id                 TEXT PRIMARY KEY,
		directory          TEXT NOT NULL UNIQUE,
		project_name       TEXT NOT NULL DEFAULT '',
		developer_username TEXT NOT NULL DEFAULT '',
		enable_incremental INTEGER NOT NULL DEFAULT 1,
		is_active          INTEGER NOT NULL DEFAULT 0,
		last_started_at    DATETIME,
		last_stopped_at    DATETIME,
		created_at         DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS conversation_tags (
		id              TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
		tag_type        TEXT NOT NULL,
		tag_value       TEXT NOT NULL,
		confidence      REAL
	);

	CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, sequence);
	CREATE INDEX IF NOT EXISTS idx_raw_logs_partial_hash ON raw_logs(partial_hash);
	CREATE INDEX IF NOT EXISTS idx_ingestion_jobs_status ON ingestion_jobs(status, started_at);
	CREATE INDEX IF NOT EXISTS idx_tags_conversation ON conversation_tags(conversation_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// InTx runs fn in a single transaction, committing only if fn succeeds.
func (s *Store) InTx(ctx context.Context, fn func(tx ingest.StorageTx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&storeTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *Store) LoadState(ctx context.Context, path string) (*model.RawLogState, error) {
	st := model.RawLogState{FilePath: path}
	var last sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT conversation_id, parser_name, last_processed_offset, last_processed_line,
		       file_size_bytes, partial_hash, last_message_timestamp
		FROM raw_logs WHERE file_path = ?`, path,
	).Scan(&st.ConversationID, &st.ParserName, &st.LastProcessedOffset, &st.LastProcessedLine,
		&st.FileSizeBytes, &st.PartialHash, &last)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query raw log state: %w", err)
	}
	st.LastMessageTimestamp = timePtr(last)
	return &st, nil
}

func (s *Store) FindDuplicate(ctx context.Context, fingerprint string) (*uuid.UUID, error) {
	var id uuid.UUID
	err := s.db.QueryRowContext(ctx, `
		SELECT conversation_id FROM raw_logs
		WHERE partial_hash = ? AND last_processed_offset > 0
		ORDER BY created_at LIMIT 1`, fingerprint,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query duplicate: %w", err)
	}
	return &id, nil
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}

func nullTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return nullTime(*t)
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
