package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// MarkerRepository persists one-shot idempotency markers, keeping
// terminal sweeps exactly-once across restarts.
type MarkerRepository struct {
	db *sqlx.DB
}

func NewMarkerRepository(db *sqlx.DB) *MarkerRepository {
	return &MarkerRepository{db: db}
}

func (r *MarkerRepository) Seen(ctx context.Context, key string) (bool, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM monitor_markers WHERE marker_key = $1`, key)
	if err != nil {
		return false, fmt.Errorf("select marker key=%s: %w", key, err)
	}
	return count > 0, nil
}

func (r *MarkerRepository) Mark(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO monitor_markers (marker_key, marked_at)
VALUES ($1, NOW())
ON CONFLICT (marker_key) DO NOTHING`, key)
	if err != nil {
		return fmt.Errorf("insert marker key=%s: %w", key, err)
	}
	return nil
}
