package usecase_test

import (
	"context"
	"testing"

	"github.com/riskibarqy/fpl-pulse/internal/domain/event"
	"github.com/riskibarqy/fpl-pulse/internal/domain/player"
	"github.com/riskibarqy/fpl-pulse/internal/domain/stat"
	"github.com/riskibarqy/fpl-pulse/internal/infrastructure/repository/memory"
	"github.com/riskibarqy/fpl-pulse/internal/usecase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func keeper(id int64) player.Player {
	return player.Player{ID: id, WebName: "Keeper", Position: player.PositionGoalkeeper, Status: player.StatusAvailable}
}

func defender(id int64) player.Player {
	return player.Player{ID: id, WebName: "Defender", Position: player.PositionDefender, Status: player.StatusAvailable}
}

func observe(p player.Player, values map[string]int, minutes int) usecase.Observation {
	return usecase.Observation{Player: p, FixtureID: 7, Minutes: minutes, Values: values}
}

func TestDiffEngine_SeedsSilently(t *testing.T) {
	engine := usecase.NewDiffEngine(memory.NewSnapshotStore(), nil)

	events, err := engine.Diff(context.Background(), []usecase.Observation{
		observe(keeper(1), map[string]int{stat.StatSaves: 5}, 45),
	})
	require.NoError(t, err)
	assert.Empty(t, events, "first observation seeds the snapshot without emitting")
}

func TestDiffEngine_SaveThresholds(t *testing.T) {
	tests := []struct {
		name       string
		before     int
		after      int
		wantPoints int
		wantEmit   bool
	}{
		{name: "crossing a multiple of three emits", before: 5, after: 8, wantPoints: 1, wantEmit: true},
		{name: "movement inside a bucket is silent", before: 6, after: 8, wantEmit: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := usecase.NewDiffEngine(memory.NewSnapshotStore(), nil)
			ctx := context.Background()

			_, err := engine.Diff(ctx, []usecase.Observation{
				observe(keeper(1), map[string]int{stat.StatSaves: tt.before}, 45),
			})
			require.NoError(t, err)

			events, err := engine.Diff(ctx, []usecase.Observation{
				observe(keeper(1), map[string]int{stat.StatSaves: tt.after}, 60),
			})
			require.NoError(t, err)

			if !tt.wantEmit {
				assert.Empty(t, events)
				return
			}
			require.Len(t, events, 1)
			assert.Equal(t, event.KindLiveStat, events[0].Kind)
			assert.Equal(t, stat.StatSaves, events[0].Category)
			assert.Equal(t, tt.before, events[0].OldValue)
			assert.Equal(t, tt.after, events[0].NewValue)
			assert.Equal(t, tt.wantPoints, events[0].Points)
		})
	}
}

func TestDiffEngine_GoalsConcededThresholds(t *testing.T) {
	tests := []struct {
		name       string
		before     int
		after      int
		wantPoints int
		wantEmit   bool
	}{
		{name: "second goal conceded costs a point", before: 1, after: 2, wantPoints: -1, wantEmit: true},
		{name: "third goal conceded is silent", before: 2, after: 3, wantEmit: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := usecase.NewDiffEngine(memory.NewSnapshotStore(), nil)
			ctx := context.Background()

			_, err := engine.Diff(ctx, []usecase.Observation{
				observe(defender(2), map[string]int{stat.StatGoalsConceded: tt.before}, 45),
			})
			require.NoError(t, err)

			events, err := engine.Diff(ctx, []usecase.Observation{
				observe(defender(2), map[string]int{stat.StatGoalsConceded: tt.after}, 60),
			})
			require.NoError(t, err)

			if !tt.wantEmit {
				assert.Empty(t, events)
				return
			}
			require.Len(t, events, 1)
			assert.Equal(t, tt.wantPoints, events[0].Points)
		})
	}
}

func TestDiffEngine_StaleDeltaNotReplayed(t *testing.T) {
	engine := usecase.NewDiffEngine(memory.NewSnapshotStore(), nil)
	ctx := context.Background()

	_, err := engine.Diff(ctx, []usecase.Observation{
		observe(keeper(1), map[string]int{stat.StatGoals: 0}, 10),
	})
	require.NoError(t, err)

	events, err := engine.Diff(ctx, []usecase.Observation{
		observe(keeper(1), map[string]int{stat.StatGoals: 1}, 20),
	})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, 10, events[0].Points)

	// The snapshot advanced, so the same value diffs to nothing.
	events, err = engine.Diff(ctx, []usecase.Observation{
		observe(keeper(1), map[string]int{stat.StatGoals: 1}, 25),
	})
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestDiffEngine_CleanSheetGatedByMinutes(t *testing.T) {
	engine := usecase.NewDiffEngine(memory.NewSnapshotStore(), nil)
	ctx := context.Background()

	_, err := engine.Diff(ctx, []usecase.Observation{
		observe(defender(3), map[string]int{stat.StatCleanSheets: 0}, 30),
	})
	require.NoError(t, err)

	events, err := engine.Diff(ctx, []usecase.Observation{
		observe(defender(3), map[string]int{stat.StatCleanSheets: 1}, 59),
	})
	require.NoError(t, err)
	assert.Empty(t, events, "clean sheet below the hour never emits")
}

func TestDiffEngine_DiffPrices(t *testing.T) {
	engine := usecase.NewDiffEngine(memory.NewSnapshotStore(), nil)
	ctx := context.Background()

	players := []player.Player{{ID: 9, WebName: "Striker", Position: player.PositionForward, Price: 85}}

	events, err := engine.DiffPrices(ctx, players)
	require.NoError(t, err)
	assert.Empty(t, events, "first price observation seeds")

	players[0].Price = 86
	events, err = engine.DiffPrices(ctx, players)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, event.KindPriceRise, events[0].Kind)
	assert.Equal(t, 85, events[0].OldValue)
	assert.Equal(t, 86, events[0].NewValue)

	players[0].Price = 84
	events, err = engine.DiffPrices(ctx, players)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, event.KindPriceFall, events[0].Kind)
}

func TestDiffEngine_DiffStatuses(t *testing.T) {
	engine := usecase.NewDiffEngine(memory.NewSnapshotStore(), nil)
	ctx := context.Background()

	players := []player.Player{{ID: 4, WebName: "Winger", Position: player.PositionMidfielder, Status: player.StatusAvailable}}

	events, err := engine.DiffStatuses(ctx, players)
	require.NoError(t, err)
	assert.Empty(t, events)

	players[0].Status = player.StatusInjured
	players[0].News = "Knock - expected back 21 Mar"
	events, err = engine.DiffStatuses(ctx, players)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, event.KindStatusChange, events[0].Kind)
	assert.Equal(t, "available -> injured (Knock - expected back 21 Mar)", events[0].Detail)
}

func TestDiffEngine_Baseline(t *testing.T) {
	engine := usecase.NewDiffEngine(memory.NewSnapshotStore(), nil)

	states := engine.Baseline(
		[]player.Player{keeper(1)},
		[]usecase.ExternalLiveStat{{PlayerID: 1, BPS: 24, Values: map[string]int{stat.StatSaves: 4}}},
	)

	byCategory := make(map[string]int, len(states))
	for _, state := range states {
		require.EqualValues(t, 1, state.PlayerID)
		byCategory[state.Category] = state.Value
	}
	assert.Equal(t, 4, byCategory[stat.StatSaves])
	assert.Equal(t, 24, byCategory[stat.StatBPS])
	assert.Contains(t, byCategory, stat.StatPrice)
	assert.Contains(t, byCategory, stat.StatStatus)
}
