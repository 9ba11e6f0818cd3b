package usecase

import (
	"context"

	"github.com/riskibarqy/fpl-pulse/internal/domain/fixture"
	"github.com/riskibarqy/fpl-pulse/internal/domain/player"
)

// ExternalBootstrap is the provider's full snapshot document.
type ExternalBootstrap struct {
	Players         []player.Player
	TeamNameByID    map[int64]string
	CurrentGameweek int
}

// ExternalLiveStat is one player's current in-gameweek stat line as the
// provider reports it. Values is keyed by the tracked stat names.
type ExternalLiveStat struct {
	PlayerID  int64
	FixtureID int64
	Minutes   int
	BPS       int
	Bonus     int
	Values    map[string]int
}

// ExternalManager is one entry in the tracked mini-league standings.
type ExternalManager struct {
	EntryID int64
	Name    string
}

// ExternalPick is one slot of a manager's gameweek squad.
type ExternalPick struct {
	PlayerID   int64
	SquadOrder int
	Multiplier int
}

// SourceFetcher is the upstream data provider boundary. Implementations
// must bound every call with the request context; the monitor never
// retries at this layer.
type SourceFetcher interface {
	FetchBootstrap(ctx context.Context) (ExternalBootstrap, error)
	FetchFixtures(ctx context.Context, gameweek int) ([]fixture.Fixture, error)
	FetchLive(ctx context.Context, gameweek int) ([]ExternalLiveStat, error)
	FetchLeagueStandings(ctx context.Context, leagueID int64) ([]ExternalManager, error)
	FetchManagerPicks(ctx context.Context, entryID int64, gameweek int) ([]ExternalPick, error)
}
