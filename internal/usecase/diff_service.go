package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/riskibarqy/fpl-pulse/internal/domain/event"
	"github.com/riskibarqy/fpl-pulse/internal/domain/player"
	"github.com/riskibarqy/fpl-pulse/internal/domain/snapshot"
	"github.com/riskibarqy/fpl-pulse/internal/domain/stat"
	"github.com/riskibarqy/fpl-pulse/internal/platform/logging"
)

// Observation is one player's fresh values for a diff pass.
type Observation struct {
	Player         player.Player
	FixtureID      int64
	Minutes        int
	Values         map[string]int
	GameweekPoints int
}

// DiffEngine compares fresh stat values against the snapshot store and
// emits significant changes as events. The snapshot is updated after
// every comparison, emitted or suppressed, so a stale delta is never
// re-evaluated.
type DiffEngine struct {
	store  snapshot.Store
	logger *logging.Logger
	now    func() time.Time
}

func NewDiffEngine(store snapshot.Store, logger *logging.Logger) *DiffEngine {
	if logger == nil {
		logger = logging.Default()
	}
	return &DiffEngine{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// Diff runs every tracked live-performance rule over the observations.
// First observations seed the snapshot silently. Unknown positions are
// skipped and logged, never fatal.
func (e *DiffEngine) Diff(ctx context.Context, observations []Observation) ([]event.Event, error) {
	rules := stat.Rules()
	out := make([]event.Event, 0, 16)

	for _, obs := range observations {
		for _, rule := range rules {
			value := obs.Values[rule.Name]

			state, found, err := e.store.Get(ctx, obs.Player.ID, rule.Name)
			if err != nil {
				return nil, fmt.Errorf("get snapshot player=%d category=%s: %w", obs.Player.ID, rule.Name, err)
			}
			if !found {
				if err := e.put(ctx, obs.Player, rule.Name, value); err != nil {
					return nil, err
				}
				continue
			}
			if state.Value == value {
				continue
			}

			delta, emit, err := rule.Delta(obs.Player.Position, state.Value, value, obs.Minutes)
			if err != nil {
				if errors.Is(err, stat.ErrUnknownPosition) || errors.Is(err, stat.ErrUnknownStat) {
					e.logger.WarnContext(ctx, "skipping undiffable stat",
						"player_id", obs.Player.ID,
						"category", rule.Name,
						"position", obs.Player.Position,
						"error", err,
					)
					continue
				}
				return nil, err
			}

			if err := e.put(ctx, obs.Player, rule.Name, value); err != nil {
				return nil, err
			}
			if !emit {
				continue
			}

			out = append(out, event.Event{
				Kind:           event.KindLiveStat,
				Category:       rule.Name,
				PlayerID:       obs.Player.ID,
				PlayerName:     obs.Player.WebName,
				Position:       obs.Player.Position,
				FixtureID:      obs.FixtureID,
				OldValue:       state.Value,
				NewValue:       value,
				Points:         delta,
				Minutes:        obs.Minutes,
				Ownership:      obs.Player.Ownership,
				GameweekPoints: obs.GameweekPoints,
				OccurredAt:     e.now(),
			})
		}
	}

	return out, nil
}

// DiffPrices compares current valuations against the price snapshot.
// Any raw movement is significant.
func (e *DiffEngine) DiffPrices(ctx context.Context, players []player.Player) ([]event.Event, error) {
	out := make([]event.Event, 0, 8)

	for _, p := range players {
		state, found, err := e.store.Get(ctx, p.ID, stat.StatPrice)
		if err != nil {
			return nil, fmt.Errorf("get price snapshot player=%d: %w", p.ID, err)
		}
		if !found {
			if err := e.put(ctx, p, stat.StatPrice, p.Price); err != nil {
				return nil, err
			}
			continue
		}
		if state.Value == p.Price {
			continue
		}
		if err := e.put(ctx, p, stat.StatPrice, p.Price); err != nil {
			return nil, err
		}

		kind := event.KindPriceRise
		if p.Price < state.Value {
			kind = event.KindPriceFall
		}
		out = append(out, event.Event{
			Kind:       kind,
			Category:   stat.StatPrice,
			PlayerID:   p.ID,
			PlayerName: p.WebName,
			Position:   p.Position,
			OldValue:   state.Value,
			NewValue:   p.Price,
			Ownership:  p.Ownership,
			OccurredAt: e.now(),
		})
	}

	return out, nil
}

// DiffStatuses compares availability flags against the status snapshot.
func (e *DiffEngine) DiffStatuses(ctx context.Context, players []player.Player) ([]event.Event, error) {
	out := make([]event.Event, 0, 8)

	for _, p := range players {
		code := statusCode(p.Status)
		state, found, err := e.store.Get(ctx, p.ID, stat.StatStatus)
		if err != nil {
			return nil, fmt.Errorf("get status snapshot player=%d: %w", p.ID, err)
		}
		if !found {
			if err := e.put(ctx, p, stat.StatStatus, code); err != nil {
				return nil, err
			}
			continue
		}
		if state.Value == code {
			continue
		}
		if err := e.put(ctx, p, stat.StatStatus, code); err != nil {
			return nil, err
		}

		out = append(out, event.Event{
			Kind:       event.KindStatusChange,
			Category:   stat.StatStatus,
			PlayerID:   p.ID,
			PlayerName: p.WebName,
			Position:   p.Position,
			OldValue:   state.Value,
			NewValue:   code,
			Ownership:  p.Ownership,
			Detail:     statusDetail(statusFromCode(state.Value), p.Status, p.News),
			OccurredAt: e.now(),
		})
	}

	return out, nil
}

// Baseline converts observations plus roster data into a full snapshot
// reseed, used when the integrity check fails.
func (e *DiffEngine) Baseline(players []player.Player, live []ExternalLiveStat) []snapshot.State {
	rules := stat.Rules()
	out := make([]snapshot.State, 0, len(players)*(len(rules)+2))

	liveByPlayer := make(map[int64]ExternalLiveStat, len(live))
	for _, row := range live {
		liveByPlayer[row.PlayerID] = row
	}

	for _, p := range players {
		row := liveByPlayer[p.ID]
		for _, rule := range rules {
			out = append(out, snapshot.State{
				PlayerID: p.ID,
				Category: rule.Name,
				Position: p.Position,
				Value:    row.Values[rule.Name],
			})
		}
		out = append(out,
			snapshot.State{PlayerID: p.ID, Category: stat.StatBPS, Position: p.Position, Value: row.BPS},
			snapshot.State{PlayerID: p.ID, Category: stat.StatPrice, Position: p.Position, Value: p.Price},
			snapshot.State{PlayerID: p.ID, Category: stat.StatStatus, Position: p.Position, Value: statusCode(p.Status)},
		)
	}

	return out
}

func (e *DiffEngine) put(ctx context.Context, p player.Player, category string, value int) error {
	err := e.store.Put(ctx, snapshot.State{
		PlayerID: p.ID,
		Category: category,
		Position: p.Position,
		Value:    value,
	})
	if err != nil {
		return fmt.Errorf("put snapshot player=%d category=%s: %w", p.ID, category, err)
	}
	return nil
}

var statusOrder = []player.Status{
	player.StatusAvailable,
	player.StatusDoubtful,
	player.StatusInjured,
	player.StatusOnLoan,
	player.StatusSuspended,
	player.StatusUnavailable,
}

// statusCode packs an availability flag into the snapshot's integer
// value space.
func statusCode(status player.Status) int {
	for i, candidate := range statusOrder {
		if candidate == status {
			return i
		}
	}
	return -1
}

func statusFromCode(code int) player.Status {
	if code < 0 || code >= len(statusOrder) {
		return player.Status("?")
	}
	return statusOrder[code]
}

func statusDetail(from, to player.Status, news string) string {
	detail := from.Describe() + " -> " + to.Describe()
	if news != "" {
		detail += " (" + news + ")"
	}
	return detail
}
