package event

import (
	"fmt"
	"time"

	"github.com/riskibarqy/fpl-pulse/internal/domain/player"
)

type Kind string

const (
	KindLiveStat       Kind = "live_stat"
	KindBonusChange    Kind = "bonus_change"
	KindFinalBonus     Kind = "final_bonus"
	KindPriceRise      Kind = "price_rise"
	KindPriceFall      Kind = "price_fall"
	KindStatusChange   Kind = "status_change"
	KindFixtureKickoff Kind = "fixture_kickoff"
	KindStateChange    Kind = "state_change"
)

// Event is the immutable output of the diff and bonus engines.
type Event struct {
	Kind       Kind
	Category   string
	PlayerID   int64
	PlayerName string
	Position   player.Position
	FixtureID  int64
	OldValue   int
	NewValue   int
	Points     int
	Minutes    int
	Ownership  float64
	// GameweekPoints is the player's recomputed running total, carried
	// for message context lines.
	GameweekPoints int
	Detail         string
	OccurredAt     time.Time
}

// FixtureScoped reports whether dedup keys on the fixture rather than
// the player.
func (e Event) FixtureScoped() bool {
	return e.Kind == KindFinalBonus || e.Kind == KindFixtureKickoff
}

// Deduplicated reports whether the event participates in the rolling
// suppression window. State transitions carry no fixture or player of
// their own and are already edge-detected upstream; a shared dedup key
// would swallow every distinct transition after the first.
func (e Event) Deduplicated() bool {
	return e.Kind != KindStateChange
}

// DedupKey is the suppression key: (fixture, kind) for fixture-scoped
// terminal events, (player, kind, new value) otherwise.
func (e Event) DedupKey() string {
	if e.FixtureScoped() {
		return fmt.Sprintf("fixture:%d:%s", e.FixtureID, e.Kind)
	}
	return fmt.Sprintf("player:%d:%s:%s:%d", e.PlayerID, e.Kind, e.Category, e.NewValue)
}
