package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/MikeSquared-Agency/scribe/internal/model"
)

const watchColumns = `id, directory, project_name, developer_username, enable_incremental, is_active,
	last_started_at, last_stopped_at, created_at`

func scanWatchConfig(row pgx.Row) (model.WatchConfig, error) {
	var c model.WatchConfig
	err := row.Scan(&c.ID, &c.Directory, &c.ProjectName, &c.DeveloperUsername, &c.EnableIncremental,
		&c.Active, &c.LastStartedAt, &c.LastStoppedAt, &c.CreatedAt)
	return c, err
}

// CreateWatchConfig stores a new, inactive watch config for c.Directory.
func (s *Store) CreateWatchConfig(ctx context.Context, c model.WatchConfig) (model.WatchConfig, error) {
	c.ID = uuid.New()
	c.Active = false
	created, err := scanWatchConfig(s.pool.QueryRow(ctx, `
		INSERT INTO watch_configs (id, directory, project_name, developer_username, enable_incremental)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+watchColumns,
		c.ID, c.Directory, c.ProjectName, c.DeveloperUsername, c.EnableIncremental,
	))
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return model.WatchConfig{}, model.ErrWatchConfigExists
	}
	if err != nil {
		return model.WatchConfig{}, fmt.Errorf("insert watch config: %w", err)
	}
	return created, nil
}

func (s *Store) GetWatchConfig(ctx context.Context, id uuid.UUID) (*model.WatchConfig, error) {
	c, err := scanWatchConfig(s.pool.QueryRow(ctx,
		`SELECT `+watchColumns+` FROM watch_configs WHERE id = $1`, id))
	if isNoRows(err) {
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
	rows, err := s.pool.Query(ctx, `
		SELECT `+watchColumns+` FROM watch_configs
		WHERE NOT $1 OR is_active
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
	c, err := scanWatchConfig(s.pool.QueryRow(ctx, `
		UPDATE watch_configs SET
			is_active = $2,
			last_started_at = CASE WHEN $2 THEN $3 ELSE last_started_at END,
			last_stopped_at = CASE WHEN $2 THEN last_stopped_at ELSE $3 END
		WHERE id = $1
		RETURNING `+watchColumns, id, active, now))
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("update watch config: %w", err)
	}
	return &c, nil
}

// DeleteWatchConfig removes an inactive config.
func (s *Store) DeleteWatchConfig(ctx context.Context, id uuid.UUID) error {
	var active bool
	err := s.pool.QueryRow(ctx, `SELECT is_active FROM watch_configs WHERE id = $1`, id).Scan(&active)
	if isNoRows(err) {
		return model.ErrWatchConfigNotFound
	}
	if err != nil {
		return fmt.Errorf("query watch config: %w", err)
	}
	if active {
		return model.ErrWatchConfigActive
	}
	if _, err := s.pool.Exec(ctx, `DELETE FROM watch_configs WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete watch config: %w", err)
	}
	return nil
}
