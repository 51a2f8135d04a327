// internal/adapter/storage/history_store.go

package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"orcast/internal/domain/overlay"
)

// HistoryStore implements storage for committed layer summaries
type HistoryStore struct {
	db *pgxpool.Pool
}

// NewHistoryStore creates a new history store
func NewHistoryStore(db *pgxpool.Pool) *HistoryStore {
	return &HistoryStore{
		db: db,
	}
}

// EnsureSchema creates the render history table when missing
func (s *HistoryStore) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS render_history (
			generation    BIGINT NOT NULL,
			source        TEXT NOT NULL,
			status        TEXT NOT NULL,
			error         TEXT NOT NULL DEFAULT '',
			query         JSONB NOT NULL,
			filter        JSONB NOT NULL,
			overlay_count INTEGER NOT NULL,
			rendered_at   TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS render_history_rendered_at_idx ON render_history (rendered_at DESC)
	`

	if _, err := s.db.Exec(ctx, query); err != nil {
		return fmt.Errorf("error creating render history table: %w", err)
	}
	return nil
}

// Record saves a committed layer summary
func (s *HistoryStore) Record(ctx context.Context, rec overlay.RenderRecord) error {
	queryJSON, err := json.Marshal(rec.Query)
	if err != nil {
		return fmt.Errorf("error marshaling query: %w", err)
	}

	filterJSON, err := json.Marshal(rec.Filter)
	if err != nil {
		return fmt.Errorf("error marshaling filter: %w", err)
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO render_history (
			generation, source, status, error, query, filter, overlay_count, rendered_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		int64(rec.Generation),
		string(rec.Source),
		string(rec.Status),
		rec.Error,
		queryJSON,
		filterJSON,
		rec.OverlayCount,
		rec.RenderedAt,
	)
	if err != nil {
		return fmt.Errorf("error executing query: %w", err)
	}

	return nil
}

// Recent returns up to limit records, newest first
func (s *HistoryStore) Recent(ctx context.Context, limit int) ([]overlay.RenderRecord, error) {
	rows, err := s.db.Query(ctx, `
		SELECT generation, source, status, error, query, filter, overlay_count, rendered_at
		FROM render_history
		ORDER BY rendered_at DESC, generation DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying render history: %w", err)
	}
	defer rows.Close()

	records := make([]overlay.RenderRecord, 0, max(limit, 0))
	for rows.Next() {
		var rec overlay.RenderRecord
		var generation int64
		var source, status string
		var queryJSON, filterJSON []byte

		if err := rows.Scan(
			&generation,
			&source,
			&status,
			&rec.Error,
			&queryJSON,
			&filterJSON,
			&rec.OverlayCount,
			&rec.RenderedAt,
		); err != nil {
			return nil, fmt.Errorf("error scanning render record: %w", err)
		}

		rec.Generation = uint64(generation)
		rec.Source = overlay.Source(source)
		rec.Status = overlay.Status(status)

		if err := json.Unmarshal(queryJSON, &rec.Query); err != nil {
			return nil, fmt.Errorf("error unmarshaling query: %w", err)
		}
		if err := json.Unmarshal(filterJSON, &rec.Filter); err != nil {
			return nil, fmt.Errorf("error unmarshaling filter: %w", err)
		}

		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating render history: %w", err)
	}

	return records, nil
}
