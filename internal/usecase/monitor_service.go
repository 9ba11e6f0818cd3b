package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/riskibarqy/fpl-pulse/internal/config"
	"github.com/riskibarqy/fpl-pulse/internal/domain/event"
	"github.com/riskibarqy/fpl-pulse/internal/domain/fixture"
	"github.com/riskibarqy/fpl-pulse/internal/domain/player"
	"github.com/riskibarqy/fpl-pulse/internal/domain/snapshot"
	"github.com/riskibarqy/fpl-pulse/internal/domain/stat"
	"github.com/riskibarqy/fpl-pulse/internal/platform/logging"
)

// Monitor is the single cooperative loop: one cycle fetches, classifies
// the game state, runs whatever categories are due, publishes, and
// sleeps until the next deadline. Nothing here is safe for concurrent
// use; there is exactly one loop.
type Monitor struct {
	fetcher   SourceFetcher
	detector  *GameStateDetector
	scheduler *Scheduler
	diff      *DiffEngine
	bonus     *BonusEngine
	notifier  *Notifier
	ownership *OwnershipTracker
	store     snapshot.Store
	logger    *logging.Logger

	cycleBackoff time.Duration
	now          func() time.Time
}

func NewMonitor(
	fetcher SourceFetcher,
	detector *GameStateDetector,
	scheduler *Scheduler,
	diff *DiffEngine,
	bonus *BonusEngine,
	notifier *Notifier,
	ownership *OwnershipTracker,
	store snapshot.Store,
	cycleBackoff time.Duration,
	logger *logging.Logger,
) (*Monitor, error) {
	if fetcher == nil || detector == nil || scheduler == nil || diff == nil ||
		bonus == nil || notifier == nil || ownership == nil || store == nil {
		return nil, fmt.Errorf("%w: monitor dependencies are required", ErrInvalidInput)
	}
	if cycleBackoff <= 0 {
		return nil, fmt.Errorf("%w: cycle backoff must be > 0", ErrInvalidInput)
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Monitor{
		fetcher:      fetcher,
		detector:     detector,
		scheduler:    scheduler,
		diff:         diff,
		bonus:        bonus,
		notifier:     notifier,
		ownership:    ownership,
		store:        store,
		logger:       logger,
		cycleBackoff: cycleBackoff,
		now:          time.Now,
	}, nil
}

// Run drives cycles until the context is cancelled. A failed or
// panicking cycle is logged and retried after the backoff; the loop
// itself never dies.
func (m *Monitor) Run(ctx context.Context) error {
	for {
		sleep, err := m.safeCycle(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			m.logger.ErrorContext(ctx, "cycle failed", "error", err)
			sleep = m.cycleBackoff
		}

		m.logger.DebugContext(ctx, "sleeping", "duration", sleep.String())

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (m *Monitor) safeCycle(ctx context.Context) (sleep time.Duration, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cycle panic: %v", r)
		}
	}()
	return m.Cycle(ctx)
}

// Cycle runs one pass and returns how long the loop should sleep. Any
// fetch error aborts the cycle without advancing category clocks, so
// the failed work is retried next tick.
func (m *Monitor) Cycle(ctx context.Context) (time.Duration, error) {
	bootstrap, err := m.fetcher.FetchBootstrap(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch bootstrap: %w", err)
	}
	fixtures, err := m.fetcher.FetchFixtures(ctx, bootstrap.CurrentGameweek)
	if err != nil {
		return 0, fmt.Errorf("fetch fixtures gameweek=%d: %w", bootstrap.CurrentGameweek, err)
	}

	now := m.now()
	state, edge := m.detector.Observe(fixtures, now)

	events := make([]event.Event, 0, 32)
	if edge != nil {
		m.scheduler.HandleTransition(*edge)
		m.logger.InfoContext(ctx, "game state changed",
			"from", string(edge.From),
			"to", string(edge.To),
		)
		events = append(events, event.Event{
			Kind:       event.KindStateChange,
			Detail:     fmt.Sprintf("Monitoring state: %s -> %s", edge.From, edge.To),
			OccurredAt: now,
		})
	}

	events = append(events, m.kickoffNotices(fixtures, now)...)

	m.ownership.MaybeRefresh(ctx, bootstrap.CurrentGameweek)
	players := m.applyOwnership(bootstrap.Players)

	due := m.scheduler.Due(now, state)
	if len(due) > 0 {
		dueEvents, cycleErr := m.runCategories(ctx, due, bootstrap.CurrentGameweek, players, fixtures)
		if cycleErr != nil {
			return 0, cycleErr
		}
		events = append(events, dueEvents...)
	}

	if len(events) > 0 {
		headers := make(map[int64]string, len(fixtures))
		for _, f := range fixtures {
			headers[f.ID] = f.Header()
		}
		if err := m.notifier.Publish(ctx, events, headers); err != nil {
			return 0, fmt.Errorf("publish events: %w", err)
		}
	}

	now = m.now()
	nextKickoff, hasKickoff := fixture.NextKickoff(fixtures, now)
	return m.scheduler.Sleep(now, state, nextKickoff, hasKickoff), nil
}

func (m *Monitor) runCategories(
	ctx context.Context,
	due []string,
	gameweek int,
	players []player.Player,
	fixtures []fixture.Fixture,
) ([]event.Event, error) {
	var (
		live       []ExternalLiveStat
		liveLoaded bool
	)
	loadLive := func() ([]ExternalLiveStat, error) {
		if liveLoaded {
			return live, nil
		}
		rows, err := m.fetcher.FetchLive(ctx, gameweek)
		if err != nil {
			return nil, fmt.Errorf("fetch live gameweek=%d: %w", gameweek, err)
		}
		live = rows
		liveLoaded = true
		return live, nil
	}

	events := make([]event.Event, 0, 32)

	for _, name := range due {
		switch name {
		case config.CategoryLivePerformance:
			rows, err := loadLive()
			if err != nil {
				return nil, err
			}
			if err := m.ensureIntegrity(ctx, players, rows); err != nil {
				return nil, err
			}

			liveEvents, err := m.diff.Diff(ctx, m.observations(players, rows))
			if err != nil {
				return nil, fmt.Errorf("diff live performance: %w", err)
			}
			events = append(events, liveEvents...)

			for fixtureID, entries := range m.bpsEntriesByFixture(players, rows) {
				bonusEvents, err := m.bonus.DiffFixture(ctx, fixtureID, entries)
				if err != nil {
					return nil, fmt.Errorf("diff bonus fixture=%d: %w", fixtureID, err)
				}
				events = append(events, bonusEvents...)
			}

		case config.CategoryStatusChanges:
			statusEvents, err := m.diff.DiffStatuses(ctx, players)
			if err != nil {
				return nil, fmt.Errorf("diff statuses: %w", err)
			}
			events = append(events, statusEvents...)

		case config.CategoryPriceChanges:
			priceEvents, err := m.diff.DiffPrices(ctx, players)
			if err != nil {
				return nil, fmt.Errorf("diff prices: %w", err)
			}
			if len(priceEvents) > 0 {
				m.scheduler.MarkPriceChangeSeen()
			}
			events = append(events, priceEvents...)

		case config.CategoryFinalBonus:
			rows, err := loadLive()
			if err != nil {
				return nil, err
			}
			finalEvents, err := m.bonus.FinalSweep(ctx, fixtures, m.bpsEntriesByFixture(players, rows))
			if err != nil {
				return nil, fmt.Errorf("final bonus sweep: %w", err)
			}
			events = append(events, finalEvents...)

		default:
			m.logger.WarnContext(ctx, "unknown due category", "category", name)
			continue
		}

		m.scheduler.MarkRun(name, m.now())
	}

	return events, nil
}

// ensureIntegrity reseeds the snapshot from the current live baseline
// when the store looks truncated or empty. Reseeding silences the
// cycle's diffs instead of flooding stale deltas.
func (m *Monitor) ensureIntegrity(ctx context.Context, players []player.Player, live []ExternalLiveStat) error {
	playerCount, err := m.store.CountPlayers(ctx)
	if err != nil {
		return fmt.Errorf("count snapshot players: %w", err)
	}
	bpsRows, err := m.store.CountByCategory(ctx, stat.StatBPS)
	if err != nil {
		return fmt.Errorf("count bps snapshots: %w", err)
	}
	if snapshot.Healthy(playerCount, bpsRows) {
		return nil
	}

	m.logger.WarnContext(ctx, "snapshot integrity check failed, reseeding",
		"player_count", playerCount,
		"bps_rows", bpsRows,
	)
	if err := m.store.BulkReinit(ctx, m.diff.Baseline(players, live)); err != nil {
		return fmt.Errorf("%w: bulk reinit: %w", ErrSnapshotIntegrity, err)
	}
	// The ranking cache sits behind the same integrity boundary: left
	// stale or empty it would flood a bonus event per current holder on
	// the very next diff.
	if err := m.bonus.Reseed(ctx, m.bpsEntriesByFixture(players, live)); err != nil {
		return fmt.Errorf("%w: %w", ErrSnapshotIntegrity, err)
	}
	return nil
}

func (m *Monitor) kickoffNotices(fixtures []fixture.Fixture, now time.Time) []event.Event {
	out := make([]event.Event, 0, 2)
	for _, f := range fixtures {
		if !f.UpcomingWithin(now, m.scheduler.preKickoffLead) {
			continue
		}
		out = append(out, event.Event{
			Kind:      event.KindFixtureKickoff,
			FixtureID: f.ID,
			Detail: fmt.Sprintf("Kickoff soon: %s at %s",
				f.Header(),
				f.KickoffAt.UTC().Format("15:04 MST"),
			),
			OccurredAt: now,
		})
	}
	return out
}

func (m *Monitor) applyOwnership(players []player.Player) []player.Player {
	shares := m.ownership.Shares()
	if len(shares) == 0 {
		return players
	}

	out := make([]player.Player, len(players))
	copy(out, players)
	for i := range out {
		if share, ok := shares[out[i].ID]; ok {
			out[i].Ownership = share
		}
	}
	return out
}

func (m *Monitor) observations(players []player.Player, live []ExternalLiveStat) []Observation {
	byID := playersByID(players)

	out := make([]Observation, 0, len(live))
	for _, row := range live {
		p, ok := byID[row.PlayerID]
		if !ok {
			continue
		}
		out = append(out, Observation{
			Player:         p,
			FixtureID:      row.FixtureID,
			Minutes:        row.Minutes,
			Values:         row.Values,
			GameweekPoints: m.gameweekPoints(p, row),
		})
	}
	return out
}

func (m *Monitor) bpsEntriesByFixture(players []player.Player, live []ExternalLiveStat) map[int64][]BPSEntry {
	byID := playersByID(players)

	out := make(map[int64][]BPSEntry, 8)
	for _, row := range live {
		p, ok := byID[row.PlayerID]
		if !ok || row.FixtureID == 0 {
			continue
		}
		out[row.FixtureID] = append(out[row.FixtureID], BPSEntry{
			Player:         p,
			FixtureID:      row.FixtureID,
			Minutes:        row.Minutes,
			BPS:            row.BPS,
			ProviderBonus:  row.Bonus,
			GameweekPoints: m.gameweekPoints(p, row),
		})
	}
	return out
}

func (m *Monitor) gameweekPoints(p player.Player, row ExternalLiveStat) int {
	line := stat.Line{
		Minutes:               row.Minutes,
		GoalsScored:           row.Values[stat.StatGoals],
		Assists:               row.Values[stat.StatAssists],
		CleanSheets:           row.Values[stat.StatCleanSheets],
		GoalsConceded:         row.Values[stat.StatGoalsConceded],
		OwnGoals:              row.Values[stat.StatOwnGoals],
		PenaltiesSaved:        row.Values[stat.StatPenaltiesSaved],
		PenaltiesMissed:       row.Values[stat.StatPenaltiesMissed],
		YellowCards:           row.Values[stat.StatYellowCards],
		RedCards:              row.Values[stat.StatRedCards],
		Saves:                 row.Values[stat.StatSaves],
		Bonus:                 row.Bonus,
		DefensiveContribution: row.Values[stat.StatDefensiveContribution],
	}
	total, err := stat.GameweekPoints(p.Position, line)
	if err != nil {
		return 0
	}
	return total
}

func playersByID(players []player.Player) map[int64]player.Player {
	out := make(map[int64]player.Player, len(players))
	for _, p := range players {
		out[p.ID] = p
	}
	return out
}
