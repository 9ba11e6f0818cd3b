package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/riskibarqy/fpl-pulse/internal/domain/event"
	"github.com/riskibarqy/fpl-pulse/internal/domain/fixture"
	"github.com/riskibarqy/fpl-pulse/internal/domain/player"
	"github.com/riskibarqy/fpl-pulse/internal/infrastructure/repository/memory"
	"github.com/riskibarqy/fpl-pulse/internal/usecase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bpsEntry(playerID int64, bps int) usecase.BPSEntry {
	return usecase.BPSEntry{
		Player:    player.Player{ID: playerID, WebName: "P", Position: player.PositionMidfielder},
		FixtureID: 7,
		Minutes:   90,
		BPS:       bps,
	}
}

func TestComputeBonuses_TieBreaks(t *testing.T) {
	tests := []struct {
		name string
		bps  []int
		want map[int64]int
	}{
		{
			name: "no ties",
			bps:  []int{40, 35, 30, 20},
			want: map[int64]int{1: 3, 2: 2, 3: 1, 4: 0},
		},
		{
			name: "two-way tie for first",
			bps:  []int{40, 40, 35},
			want: map[int64]int{1: 3, 2: 3, 3: 1},
		},
		{
			name: "two-way tie for second",
			bps:  []int{40, 35, 35},
			want: map[int64]int{1: 3, 2: 2, 3: 2},
		},
		{
			name: "three-way tie for first splits the podium",
			bps:  []int{40, 40, 40, 35},
			want: map[int64]int{1: 3, 2: 3, 3: 1, 4: 0},
		},
		{
			name: "tie for third pays everyone",
			bps:  []int{40, 35, 30, 30, 30},
			want: map[int64]int{1: 3, 2: 2, 3: 1, 4: 1, 5: 1},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries := make([]usecase.BPSEntry, 0, len(tt.bps))
			for i, bps := range tt.bps {
				entries = append(entries, bpsEntry(int64(i+1), bps))
			}
			assert.Equal(t, tt.want, usecase.ComputeBonuses(entries))
		})
	}
}

func TestComputeBonuses_Eligibility(t *testing.T) {
	short := bpsEntry(1, 50)
	short.Minutes = 45
	zero := bpsEntry(2, 0)
	played := bpsEntry(3, 30)

	got := usecase.ComputeBonuses([]usecase.BPSEntry{short, zero, played})
	assert.Equal(t, map[int64]int{3: 3}, got,
		"players under the hour or without BPS never rank")
}

func TestBonusEngine_DiffFixture(t *testing.T) {
	engine := usecase.NewBonusEngine(memory.NewSnapshotStore(), memory.NewMarkerRepository(), nil)
	ctx := context.Background()

	entries := []usecase.BPSEntry{bpsEntry(1, 40), bpsEntry(2, 35), bpsEntry(3, 30)}
	events, err := engine.DiffFixture(ctx, 7, entries)
	require.NoError(t, err)
	require.Len(t, events, 3, "first ranking emits every new award")

	// Same ranking again is silent.
	events, err = engine.DiffFixture(ctx, 7, entries)
	require.NoError(t, err)
	assert.Empty(t, events)

	// Player 3 overtakes player 2: both move, player 1 does not.
	entries[2].BPS = 38
	events, err = engine.DiffFixture(ctx, 7, entries)
	require.NoError(t, err)
	require.Len(t, events, 2)
	for _, e := range events {
		assert.Equal(t, event.KindBonusChange, e.Kind)
		assert.NotEqualValues(t, 1, e.PlayerID)
	}
}

func TestBonusEngine_ReseedIsSilent(t *testing.T) {
	engine := usecase.NewBonusEngine(memory.NewSnapshotStore(), memory.NewMarkerRepository(), nil)
	ctx := context.Background()

	entries := map[int64][]usecase.BPSEntry{
		7: {bpsEntry(1, 40), bpsEntry(2, 35)},
	}
	require.NoError(t, engine.Reseed(ctx, entries))

	// The seeded ranking absorbs the current holders: the next diff of
	// the same standings produces nothing.
	events, err := engine.DiffFixture(ctx, 7, entries[7])
	require.NoError(t, err)
	assert.Empty(t, events, "reseed absorbs current awards without events")

	// Only movement after the reseed notifies.
	entries[7][1].BPS = 45
	events, err = engine.DiffFixture(ctx, 7, entries[7])
	require.NoError(t, err)
	require.Len(t, events, 2)
}

func TestBonusEngine_FinalSweep(t *testing.T) {
	markers := memory.NewMarkerRepository()
	engine := usecase.NewBonusEngine(memory.NewSnapshotStore(), markers, nil)
	ctx := context.Background()

	finished := fixture.Fixture{
		ID: 7, HomeTeamName: "Arsenal", AwayTeamName: "Spurs",
		Started: true, Finished: true, KickoffAt: time.Now().Add(-3 * time.Hour),
	}

	withBonus := bpsEntry(1, 40)
	withBonus.ProviderBonus = 3
	runnerUp := bpsEntry(2, 35)
	runnerUp.ProviderBonus = 2
	unrewarded := bpsEntry(3, 10)

	entriesByFixture := map[int64][]usecase.BPSEntry{7: {runnerUp, withBonus, unrewarded}}

	events, err := engine.FinalSweep(ctx, []fixture.Fixture{finished}, entriesByFixture)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, event.KindFinalBonus, events[0].Kind)
	assert.EqualValues(t, 7, events[0].FixtureID)
	assert.Equal(t, "Arsenal vs Spurs: P +3, P +2", events[0].Detail)

	// Second sweep is a no-op.
	events, err = engine.FinalSweep(ctx, []fixture.Fixture{finished}, entriesByFixture)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestBonusEngine_FinalSweepWaitsForProviderBonus(t *testing.T) {
	engine := usecase.NewBonusEngine(memory.NewSnapshotStore(), memory.NewMarkerRepository(), nil)
	ctx := context.Background()

	finished := fixture.Fixture{ID: 7, Started: true, FinishedProvisional: true}
	pending := map[int64][]usecase.BPSEntry{7: {bpsEntry(1, 40)}}

	events, err := engine.FinalSweep(ctx, []fixture.Fixture{finished}, pending)
	require.NoError(t, err)
	assert.Empty(t, events, "no finalized bonus yet")

	// Provider finalizes later; the fixture was not marked, so the sweep
	// still fires.
	confirmed := bpsEntry(1, 40)
	confirmed.ProviderBonus = 3
	events, err = engine.FinalSweep(ctx, []fixture.Fixture{finished}, map[int64][]usecase.BPSEntry{7: {confirmed}})
	require.NoError(t, err)
	require.Len(t, events, 1)
}

func TestBonusEngine_FinalSweepSkipsLiveFixtures(t *testing.T) {
	engine := usecase.NewBonusEngine(memory.NewSnapshotStore(), memory.NewMarkerRepository(), nil)

	live := fixture.Fixture{ID: 8, Started: true}
	events, err := engine.FinalSweep(context.Background(), []fixture.Fixture{live}, nil)
	require.NoError(t, err)
	assert.Empty(t, events)
}
