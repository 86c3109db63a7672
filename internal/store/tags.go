package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/scribe/internal/model"
)

// SaveTags replaces every tag of the conversation with tags.
func (s *Store) SaveTags(ctx context.Context, convID uuid.UUID, tags []model.Tag) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM conversation_tags WHERE conversation_id = $1`, convID); err != nil {
		return fmt.Errorf("delete tags: %w", err)
	}
	for _, tag := range tags {
		_, err := tx.Exec(ctx, `
			INSERT INTO conversation_tags (id, conversation_id, tag_type, tag_value, confidence)
			VALUES ($1, $2, $3, $4, $5)`,
			uuid.New(), convID, tag.Type, tag.Value, tag.Confidence,
		)
		if err != nil {
			return fmt.Errorf("insert tag %s=%s: %w", tag.Type, tag.Value, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *Store) Tags(ctx context.Context, convID uuid.UUID) ([]model.Tag, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT tag_type, tag_value, COALESCE(confidence, 0) FROM conversation_tags
		WHERE conversation_id = $1 ORDER BY tag_type, tag_value`, convID,
	)
	if err != nil {
		return nil, fmt.Errorf("query tags: %w", err)
	}
	defer rows.Close()

	var tags []model.Tag
	for rows.Next() {
		var t model.Tag
		if err := rows.Scan(&t.Type, &t.Value, &t.Confidence); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}
