package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/riskibarqy/fpl-pulse/internal/domain/event"
	"github.com/riskibarqy/fpl-pulse/internal/domain/fixture"
	"github.com/riskibarqy/fpl-pulse/internal/domain/player"
	"github.com/riskibarqy/fpl-pulse/internal/domain/snapshot"
	"github.com/riskibarqy/fpl-pulse/internal/domain/stat"
	"github.com/riskibarqy/fpl-pulse/internal/platform/logging"
)

// bonusEligibleMinutes gates ranking: players under the hour carry no
// projected bonus.
const bonusEligibleMinutes = 60

// BPSEntry is one player's raw performance score within a fixture.
type BPSEntry struct {
	Player         player.Player
	FixtureID      int64
	Minutes        int
	BPS            int
	ProviderBonus  int
	GameweekPoints int
}

// MarkerRepository persists one-shot idempotency markers.
type MarkerRepository interface {
	Seen(ctx context.Context, key string) (bool, error)
	Mark(ctx context.Context, key string) error
}

// BonusEngine projects live bonus points from BPS rankings and runs the
// terminal final-bonus sweep per finished fixture.
type BonusEngine struct {
	store   snapshot.Store
	markers MarkerRepository
	logger  *logging.Logger
	now     func() time.Time
}

func NewBonusEngine(store snapshot.Store, markers MarkerRepository, logger *logging.Logger) *BonusEngine {
	if logger == nil {
		logger = logging.Default()
	}
	return &BonusEngine{
		store:   store,
		markers: markers,
		logger:  logger,
		now:     time.Now,
	}
}

// ComputeBonuses ranks eligible entries descending by BPS and maps
// ranks to bonus values under the tie-break policy:
//   - a lone leader takes rank 1; two tied leaders both take rank 1;
//     three or more tied leaders give rank 1 to the first two and rank 3
//     to the rest
//   - every player tied at rank 2 takes the rank-2 bonus, and every
//     player tied at rank 3 takes the rank-3 bonus, regardless of count
//
// The result covers every eligible player, including zero awards, so a
// rank shift that drops someone out of the bonus diffs cleanly.
func ComputeBonuses(entries []BPSEntry) map[int64]int {
	eligible := make([]BPSEntry, 0, len(entries))
	for _, entry := range entries {
		if entry.Minutes >= bonusEligibleMinutes && entry.BPS > 0 {
			eligible = append(eligible, entry)
		}
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		if eligible[i].BPS != eligible[j].BPS {
			return eligible[i].BPS > eligible[j].BPS
		}
		return eligible[i].Player.ID < eligible[j].Player.ID
	})

	out := make(map[int64]int, len(eligible))
	assigned := 0
	for start := 0; start < len(eligible); {
		end := start
		for end < len(eligible) && eligible[end].BPS == eligible[start].BPS {
			end++
		}
		group := eligible[start:end]
		rank := assigned + 1

		if rank == 1 && len(group) >= 3 {
			for i, entry := range group {
				if i < 2 {
					out[entry.Player.ID] = stat.BonusForRank(1)
				} else {
					out[entry.Player.ID] = stat.BonusForRank(3)
				}
			}
		} else {
			bonus := stat.BonusForRank(rank)
			for _, entry := range group {
				out[entry.Player.ID] = bonus
			}
		}

		assigned += len(group)
		start = end
	}

	return out
}

// DiffFixture recomputes the fixture's projected bonuses from scratch,
// emits an event for every player whose bonus changed against the
// cached ranking, and replaces the cache wholesale.
func (e *BonusEngine) DiffFixture(ctx context.Context, fixtureID int64, entries []BPSEntry) ([]event.Event, error) {
	current := ComputeBonuses(entries)

	previous, found, err := e.store.GetRanking(ctx, fixtureID)
	if err != nil {
		return nil, fmt.Errorf("get ranking fixture=%d: %w", fixtureID, err)
	}
	if !found {
		previous = map[int64]int{}
	}

	entryByPlayer := make(map[int64]BPSEntry, len(entries))
	for _, entry := range entries {
		entryByPlayer[entry.Player.ID] = entry
	}

	out := make([]event.Event, 0, 4)
	for playerID := range union(previous, current) {
		oldBonus := previous[playerID]
		newBonus := current[playerID]
		if oldBonus == newBonus {
			continue
		}

		entry := entryByPlayer[playerID]
		out = append(out, event.Event{
			Kind:           event.KindBonusChange,
			Category:       stat.StatBonus,
			PlayerID:       playerID,
			PlayerName:     entry.Player.WebName,
			Position:       entry.Player.Position,
			FixtureID:      fixtureID,
			OldValue:       oldBonus,
			NewValue:       newBonus,
			Points:         newBonus - oldBonus,
			Minutes:        entry.Minutes,
			Ownership:      entry.Player.Ownership,
			GameweekPoints: entry.GameweekPoints,
			OccurredAt:     e.now(),
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].PlayerID < out[j].PlayerID })

	if err := e.store.PutRanking(ctx, fixtureID, current); err != nil {
		return nil, fmt.Errorf("put ranking fixture=%d: %w", fixtureID, err)
	}

	return out, nil
}

// Reseed silently replaces every fixture's cached ranking with the
// current computation. Runs when the snapshot baseline is rebuilt, so
// the next diff starts from live reality instead of emitting an award
// event for every current bonus holder.
func (e *BonusEngine) Reseed(ctx context.Context, entriesByFixture map[int64][]BPSEntry) error {
	for fixtureID, entries := range entriesByFixture {
		if err := e.store.PutRanking(ctx, fixtureID, ComputeBonuses(entries)); err != nil {
			return fmt.Errorf("reseed ranking fixture=%d: %w", fixtureID, err)
		}
	}
	return nil
}

// FinalSweep emits one consolidated final-bonus event per finished
// fixture, using the provider's finalized values. An idempotency marker
// guarantees each fixture is swept exactly once.
func (e *BonusEngine) FinalSweep(ctx context.Context, fixtures []fixture.Fixture, entriesByFixture map[int64][]BPSEntry) ([]event.Event, error) {
	out := make([]event.Event, 0, 2)

	for _, f := range fixtures {
		if !f.Finished && !f.FinishedProvisional {
			continue
		}

		markerKey := fmt.Sprintf("final_bonus:%d", f.ID)
		seen, err := e.markers.Seen(ctx, markerKey)
		if err != nil {
			return nil, fmt.Errorf("check final bonus marker fixture=%d: %w", f.ID, err)
		}
		if seen {
			continue
		}

		recipients := make([]BPSEntry, 0, 4)
		for _, entry := range entriesByFixture[f.ID] {
			if entry.ProviderBonus > 0 {
				recipients = append(recipients, entry)
			}
		}
		if len(recipients) == 0 {
			// Provider has not finalized bonus yet; retry next sweep.
			continue
		}

		sort.SliceStable(recipients, func(i, j int) bool {
			if recipients[i].ProviderBonus != recipients[j].ProviderBonus {
				return recipients[i].ProviderBonus > recipients[j].ProviderBonus
			}
			return recipients[i].Player.ID < recipients[j].Player.ID
		})

		lines := make([]string, 0, len(recipients))
		for _, entry := range recipients {
			lines = append(lines, fmt.Sprintf("%s +%d", entry.Player.WebName, entry.ProviderBonus))
		}

		out = append(out, event.Event{
			Kind:       event.KindFinalBonus,
			Category:   stat.StatBonus,
			FixtureID:  f.ID,
			Detail:     f.Header() + ": " + strings.Join(lines, ", "),
			OccurredAt: e.now(),
		})

		if err := e.markers.Mark(ctx, markerKey); err != nil {
			return nil, fmt.Errorf("mark final bonus fixture=%d: %w", f.ID, err)
		}

		e.logger.InfoContext(ctx, "final bonus swept",
			"fixture_id", f.ID,
			"recipients", len(recipients),
		)
	}

	return out, nil
}

func union(a, b map[int64]int) map[int64]struct{} {
	out := make(map[int64]struct{}, len(a)+len(b))
	for k := range a {
		out[k] = struct{}{}
	}
	for k := range b {
		out[k] = struct{}{}
	}
	return out
}
