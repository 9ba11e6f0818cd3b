package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/riskibarqy/fpl-pulse/internal/domain/player"
	"github.com/riskibarqy/fpl-pulse/internal/domain/snapshot"
)

// SnapshotRepository is the durable snapshot backend. Surviving
// restarts is what keeps a redeploy from replaying a whole gameweek of
// notifications.
type SnapshotRepository struct {
	db *sqlx.DB
}

func NewSnapshotRepository(db *sqlx.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

type snapshotModel struct {
	PlayerID int64  `db:"player_id"`
	Category string `db:"category"`
	Position string `db:"position"`
	Value    int    `db:"value"`
}

type rankingModel struct {
	PlayerID int64 `db:"player_id"`
	Bonus    int   `db:"bonus"`
}

func (r *SnapshotRepository) Get(ctx context.Context, playerID int64, category string) (snapshot.State, bool, error) {
	var row snapshotModel
	err := r.db.GetContext(ctx, &row, `
SELECT player_id, category, position, value
FROM player_stat_snapshots
WHERE player_id = $1 AND category = $2`, playerID, category)
	if err != nil {
		if isNotFound(err) {
			return snapshot.State{}, false, nil
		}
		return snapshot.State{}, false, fmt.Errorf("select snapshot player_id=%d category=%s: %w", playerID, category, err)
	}

	return snapshot.State{
		PlayerID: row.PlayerID,
		Category: row.Category,
		Position: player.Position(row.Position),
		Value:    row.Value,
	}, true, nil
}

func (r *SnapshotRepository) Put(ctx context.Context, state snapshot.State) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO player_stat_snapshots (player_id, category, position, value, updated_at)
VALUES ($1, $2, $3, $4, NOW())
ON CONFLICT (player_id, category)
DO UPDATE SET position = EXCLUDED.position, value = EXCLUDED.value, updated_at = NOW()`,
		state.PlayerID, state.Category, string(state.Position), state.Value)
	if err != nil {
		return fmt.Errorf("upsert snapshot player_id=%d category=%s: %w", state.PlayerID, state.Category, err)
	}
	return nil
}

func (r *SnapshotRepository) CountPlayers(ctx context.Context) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(DISTINCT player_id) FROM player_stat_snapshots`)
	if err != nil {
		return 0, fmt.Errorf("count snapshot players: %w", err)
	}
	return count, nil
}

func (r *SnapshotRepository) CountByCategory(ctx context.Context, category string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM player_stat_snapshots WHERE category = $1`, category)
	if err != nil {
		return 0, fmt.Errorf("count snapshots category=%s: %w", category, err)
	}
	return count, nil
}

func (r *SnapshotRepository) BulkReinit(ctx context.Context, states []snapshot.State) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx bulk reinit snapshots: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `TRUNCATE player_stat_snapshots`); err != nil {
		return fmt.Errorf("truncate snapshots: %w", err)
	}

	stmt, err := tx.PreparexContext(ctx, `
INSERT INTO player_stat_snapshots (player_id, category, position, value, updated_at)
VALUES ($1, $2, $3, $4, NOW())`)
	if err != nil {
		return fmt.Errorf("prepare reseed insert: %w", err)
	}
	defer func() {
		_ = stmt.Close()
	}()

	for _, state := range states {
		if _, err := stmt.ExecContext(ctx, state.PlayerID, state.Category, string(state.Position), state.Value); err != nil {
			return fmt.Errorf("reseed snapshot player_id=%d category=%s: %w", state.PlayerID, state.Category, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit bulk reinit tx: %w", err)
	}
	return nil
}

func (r *SnapshotRepository) GetRanking(ctx context.Context, fixtureID int64) (map[int64]int, bool, error) {
	rows := make([]rankingModel, 0, 8)
	err := r.db.SelectContext(ctx, &rows, `
SELECT player_id, bonus
FROM fixture_bonus_rankings
WHERE fixture_id = $1`, fixtureID)
	if err != nil {
		return nil, false, fmt.Errorf("select ranking fixture_id=%d: %w", fixtureID, err)
	}
	if len(rows) == 0 {
		// An empty cached ranking and no ranking at all diff the same
		// way, so absence of rows means not found.
		return nil, false, nil
	}

	out := make(map[int64]int, len(rows))
	for _, row := range rows {
		out[row.PlayerID] = row.Bonus
	}
	return out, true, nil
}

func (r *SnapshotRepository) PutRanking(ctx context.Context, fixtureID int64, bonusByPlayer map[int64]int) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx put ranking: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM fixture_bonus_rankings WHERE fixture_id = $1`, fixtureID); err != nil {
		return fmt.Errorf("clear ranking fixture_id=%d: %w", fixtureID, err)
	}
	for playerID, bonus := range bonusByPlayer {
		_, err := tx.ExecContext(ctx, `
INSERT INTO fixture_bonus_rankings (fixture_id, player_id, bonus, updated_at)
VALUES ($1, $2, $3, NOW())`, fixtureID, playerID, bonus)
		if err != nil {
			return fmt.Errorf("insert ranking fixture_id=%d player_id=%d: %w", fixtureID, playerID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit put ranking tx: %w", err)
	}
	return nil
}
