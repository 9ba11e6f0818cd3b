package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// DedupRepository persists notification suppression records, so a
// restart inside the dedup window does not re-notify.
type DedupRepository struct {
	db *sqlx.DB
}

func NewDedupRepository(db *sqlx.DB) *DedupRepository {
	return &DedupRepository{db: db}
}

func (r *DedupRepository) Seen(ctx context.Context, key string, since time.Time) (bool, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
SELECT COUNT(*)
FROM notification_dedups
WHERE dedup_key = $1 AND notified_at >= $2`, key, since.UTC())
	if err != nil {
		return false, fmt.Errorf("select dedup key=%s: %w", key, err)
	}
	return count > 0, nil
}

func (r *DedupRepository) Record(ctx context.Context, key string, value int, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO notification_dedups (dedup_key, value, notified_at)
VALUES ($1, $2, $3)
ON CONFLICT (dedup_key)
DO UPDATE SET value = EXCLUDED.value, notified_at = EXCLUDED.notified_at`,
		key, value, at.UTC())
	if err != nil {
		return fmt.Errorf("upsert dedup key=%s: %w", key, err)
	}
	return nil
}

func (r *DedupRepository) PruneBefore(ctx context.Context, cutoff time.Time) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM notification_dedups WHERE notified_at < $1`, cutoff.UTC())
	if err != nil {
		return fmt.Errorf("prune dedup records: %w", err)
	}
	return nil
}
