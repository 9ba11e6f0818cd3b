package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/riskibarqy/fpl-pulse/internal/usecase"
)

// ChangeLogRepository is the append-only audit trail of every observed
// change, dispatched or suppressed.
type ChangeLogRepository struct {
	db *sqlx.DB
}

func NewChangeLogRepository(db *sqlx.DB) *ChangeLogRepository {
	return &ChangeLogRepository{db: db}
}

func (r *ChangeLogRepository) Append(ctx context.Context, entry usecase.ChangeLogEntry) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO change_log (kind, category, player_id, fixture_id, old_value, new_value, points, suppressed, body, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		entry.Kind,
		entry.Category,
		entry.PlayerID,
		entry.FixtureID,
		entry.OldValue,
		entry.NewValue,
		entry.Points,
		entry.Suppressed,
		entry.Body,
		entry.OccurredAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("append change log kind=%s player_id=%d: %w", entry.Kind, entry.PlayerID, err)
	}
	return nil
}
