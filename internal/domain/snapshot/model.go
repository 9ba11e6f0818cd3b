package snapshot

import (
	"context"

	"github.com/riskibarqy/fpl-pulse/internal/domain/player"
)

// MinHealthyPlayers is the integrity floor: fewer tracked player rows
// than this means the baseline is corrupt and diffing must not run.
const MinHealthyPlayers = 100

// State is the last-observed value for one (player, category) pair.
// Mutated only after the diff engine has finished comparing, never
// speculatively.
type State struct {
	PlayerID int64
	Category string
	Position player.Position
	Value    int
}

// Store is the snapshot boundary: per-player last-observed values plus
// the per-fixture bonus ranking cache.
type Store interface {
	Get(ctx context.Context, playerID int64, category string) (State, bool, error)
	Put(ctx context.Context, state State) error
	CountPlayers(ctx context.Context) (int, error)
	CountByCategory(ctx context.Context, category string) (int, error)
	// BulkReinit drops every row and reseeds from the given baseline.
	BulkReinit(ctx context.Context, states []State) error

	GetRanking(ctx context.Context, fixtureID int64) (map[int64]int, bool, error)
	PutRanking(ctx context.Context, fixtureID int64, bonusByPlayer map[int64]int) error
}

// Healthy reports whether the store passes the integrity check: enough
// player rows overall and a non-empty bonus stat family.
func Healthy(playerCount, bpsRows int) bool {
	return playerCount >= MinHealthyPlayers && bpsRows > 0
}
