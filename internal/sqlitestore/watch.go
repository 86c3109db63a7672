package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/scribe/internal/model"
)

const watchColumns = `id, directory, project_name, developer_username, enable_incremental, is_active,
	last_started_at, last_stopped_at, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWatchConfig(row rowScanner) (model.WatchConfig, error) {
	var c model.WatchConfig
	var started, stopped sql.NullTime
	err := row.Scan(&c.ID, &c.Directory, &c.ProjectName, &c.DeveloperUsername, &c.EnableIncremental,
		&c.Active, &started, &stopped, &c.CreatedAt)
	c.LastStartedAt = timePtr(started)
	c.LastStoppedAt = timePtr(stopped)
	return c, err
}

// CreateWatchConfig stores a new, inactive watch config for c.Directory.
func (s *Store) CreateWatchConfig(ctx context.Context, c model.WatchConfig) (model.WatchConfig, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.WatchConfig{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM watch_configs WHERE directory = ?`, c.Directory).Scan(&exists)
	if err != nil {
		return model.WatchConfig{}, fmt.Errorf("query watch config: %w", err)
	}
	if exists > 0 {
		return model.WatchConfig{}, model.ErrWatchConfigExists
	}

	id := uuid.New()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO watch_configs (id, directory, project_name, developer_username, enable_incremental, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		id, c.Directory, c.ProjectName, c.DeveloperUsername, c.EnableIncremental, time.Now().UTC(),
	)
	if err != nil {
		return model.WatchConfig{}, fmt.Errorf("insert watch config: %w", err)
	}
	created, err := scanWatchConfig(tx.QueryRowContext(ctx,
		`SELECT `+watchColumns+` FROM watch_configs WHERE id = ?`, id))
	if err != nil {
		return model.WatchConfig{}, fmt.Errorf("query watch config: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return model.WatchConfig{}, fmt.Errorf("commit: %w", err)
	}
	return created, nil
}

func (s *Store) GetWatchConfig(ctx context.Context, id uuid.UUID) (*model.WatchConfig, error) {
	c, err := scanWatchConfig(s.db.QueryRowContext(ctx,
		`SELECT `+watchColumns+` FROM watch_configs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query watch config: %w", err)
	}
	return &c, nil
}

// ListWatchConfigs returns configs ordered by creation, optionally only the
// active ones.
func (s *Store) ListWatchConfigs(ctx context.Context, activeOnly bool) ([]model.WatchConfig, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+watchColumns+` FROM watch_configs
		WHERE ? = 0 OR is_active = 1
		ORDER BY created_at, directory`, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("query watch configs: %w", err)
	}
	defer rows.Close()

	var out []model.WatchConfig
	for rows.Next() {
		c, err := scanWatchConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("scan watch config: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SetWatchConfigActive starts or stops a config and stamps the transition.
// It returns nil when id does not exist.
func (s *Store) SetWatchConfigActive(ctx context.Context, id uuid.UUID, active bool) (*model.WatchConfig, error) {
	now := time.Now().UTC()
	column := "last_stopped_at"
	if active {
		column = "last_started_at"
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE watch_configs SET is_active = ?, `+column+` = ? WHERE id = ?`, active, now, id)
	if err != nil {
		return nil, fmt.Errorf("update watch config: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil
	}
	return s.GetWatchConfig(ctx, id)
}

// DeleteWatchConfig removes an inactive config.
func (s *Store) DeleteWatchConfig(ctx context.Context, id uuid.UUID) error {
	var active bool
	err := s.db.QueryRowContext(ctx, `SELECT is_active FROM watch_configs WHERE id = ?`, id).Scan(&active)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ErrWatchConfigNotFound
	}
	if err != nil {
		return fmt.Errorf("query watch config: %w", err)
	}
	if active {
		return model.ErrWatchConfigActive
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM watch_configs WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete watch config: %w", err)
	}
	return nil
}
