package stat

import (
	"errors"
	"testing"

	"github.com/riskibarqy/fpl-pulse/internal/domain/player"
)

func TestRuleDelta(t *testing.T) {
	tests := []struct {
		name      string
		rule      string
		pos       player.Position
		oldValue  int
		newValue  int
		minutes   int
		wantEmit  bool
		wantDelta int
	}{
		{
			name:      "goalkeeper goal",
			rule:      StatGoals,
			pos:       player.PositionGoalkeeper,
			oldValue:  0,
			newValue:  1,
			minutes:   75,
			wantEmit:  true,
			wantDelta: 10,
		},
		{
			name:      "defender goal",
			rule:      StatGoals,
			pos:       player.PositionDefender,
			oldValue:  0,
			newValue:  1,
			minutes:   75,
			wantEmit:  true,
			wantDelta: 6,
		},
		{
			name:      "midfielder brace",
			rule:      StatGoals,
			pos:       player.PositionMidfielder,
			oldValue:  1,
			newValue:  3,
			minutes:   88,
			wantEmit:  true,
			wantDelta: 10,
		},
		{
			name:      "forward goal",
			rule:      StatGoals,
			pos:       player.PositionForward,
			oldValue:  0,
			newValue:  1,
			minutes:   12,
			wantEmit:  true,
			wantDelta: 4,
		},
		{
			name:     "unchanged value never emits",
			rule:     StatGoals,
			pos:      player.PositionForward,
			oldValue: 2,
			newValue: 2,
			minutes:  90,
			wantEmit: false,
		},
		{
			name:      "saves crossing a boundary",
			rule:      StatSaves,
			pos:       player.PositionGoalkeeper,
			oldValue:  5,
			newValue:  8,
			minutes:   90,
			wantEmit:  true,
			wantDelta: 1,
		},
		{
			name:     "saves inside a boundary",
			rule:     StatSaves,
			pos:      player.PositionGoalkeeper,
			oldValue: 6,
			newValue: 8,
			minutes:  90,
			wantEmit: false,
		},
		{
			name:      "conceded crossing a boundary",
			rule:      StatGoalsConceded,
			pos:       player.PositionDefender,
			oldValue:  1,
			newValue:  2,
			minutes:   90,
			wantEmit:  true,
			wantDelta: -1,
		},
		{
			name:     "conceded inside a boundary",
			rule:     StatGoalsConceded,
			pos:      player.PositionDefender,
			oldValue: 2,
			newValue: 3,
			minutes:  90,
			wantEmit: false,
		},
		{
			name:     "conceded ignored for forwards",
			rule:     StatGoalsConceded,
			pos:      player.PositionForward,
			oldValue: 0,
			newValue: 4,
			minutes:  90,
			wantEmit: false,
		},
		{
			name:      "clean sheet past the hour",
			rule:      StatCleanSheets,
			pos:       player.PositionDefender,
			oldValue:  0,
			newValue:  1,
			minutes:   61,
			wantEmit:  true,
			wantDelta: 4,
		},
		{
			name:     "clean sheet before the hour",
			rule:     StatCleanSheets,
			pos:      player.PositionDefender,
			oldValue: 0,
			newValue: 1,
			minutes:  59,
			wantEmit: false,
		},
		{
			name:     "forward clean sheet is worthless but still emits",
			rule:     StatCleanSheets,
			pos:      player.PositionForward,
			oldValue: 0,
			newValue: 1,
			minutes:  90,
			wantEmit: true,
		},
		{
			name:      "defender reaches defensive contribution",
			rule:      StatDefensiveContribution,
			pos:       player.PositionDefender,
			oldValue:  9,
			newValue:  10,
			minutes:   90,
			wantEmit:  true,
			wantDelta: 2,
		},
		{
			name:     "midfielder below the higher bar",
			rule:     StatDefensiveContribution,
			pos:      player.PositionMidfielder,
			oldValue: 9,
			newValue: 11,
			minutes:  90,
			wantEmit: false,
		},
		{
			name:      "midfielder reaches the higher bar",
			rule:      StatDefensiveContribution,
			pos:       player.PositionMidfielder,
			oldValue:  11,
			newValue:  12,
			minutes:   90,
			wantEmit:  true,
			wantDelta: 2,
		},
		{
			name:      "penalty save",
			rule:      StatPenaltiesSaved,
			pos:       player.PositionGoalkeeper,
			oldValue:  0,
			newValue:  1,
			minutes:   90,
			wantEmit:  true,
			wantDelta: 5,
		},
		{
			name:      "red card",
			rule:      StatRedCards,
			pos:       player.PositionMidfielder,
			oldValue:  0,
			newValue:  1,
			minutes:   55,
			wantEmit:  true,
			wantDelta: -3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule, ok := RuleByName(tt.rule)
			if !ok {
				t.Fatalf("rule %q not registered", tt.rule)
			}

			delta, emit, err := rule.Delta(tt.pos, tt.oldValue, tt.newValue, tt.minutes)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if emit != tt.wantEmit {
				t.Fatalf("emit = %t, want %t", emit, tt.wantEmit)
			}
			if emit && delta != tt.wantDelta {
				t.Fatalf("delta = %d, want %d", delta, tt.wantDelta)
			}
		})
	}
}

func TestRuleDeltaUnknownPosition(t *testing.T) {
	rule, _ := RuleByName(StatGoals)
	_, _, err := rule.Delta(player.Position("WB"), 0, 1, 90)
	if !errors.Is(err, ErrUnknownPosition) {
		t.Fatalf("expected ErrUnknownPosition, got %v", err)
	}
}

func TestBonusForRank(t *testing.T) {
	for rank, want := range map[int]int{1: 3, 2: 2, 3: 1, 4: 0, 9: 0} {
		if got := BonusForRank(rank); got != want {
			t.Fatalf("BonusForRank(%d) = %d, want %d", rank, got, want)
		}
	}
}

func TestGameweekPoints(t *testing.T) {
	tests := []struct {
		name string
		pos  player.Position
		line Line
		want int
	}{
		{
			name: "goalkeeper shutout with saves",
			pos:  player.PositionGoalkeeper,
			line: Line{Minutes: 90, CleanSheets: 1, Saves: 7},
			want: 2 + 4 + 2,
		},
		{
			name: "defender goal and clean sheet",
			pos:  player.PositionDefender,
			line: Line{Minutes: 90, GoalsScored: 1, CleanSheets: 1, DefensiveContribution: 10},
			want: 2 + 6 + 4 + 2,
		},
		{
			name: "sub appearance only",
			pos:  player.PositionForward,
			line: Line{Minutes: 20},
			want: 1,
		},
		{
			name: "midfielder with bonus and card",
			pos:  player.PositionMidfielder,
			line: Line{Minutes: 90, GoalsScored: 1, YellowCards: 1, Bonus: 3},
			want: 2 + 5 - 1 + 3,
		},
		{
			name: "clean sheet denied below the hour",
			pos:  player.PositionDefender,
			line: Line{Minutes: 45, CleanSheets: 1},
			want: 1,
		},
		{
			name: "keeper shipping four",
			pos:  player.PositionGoalkeeper,
			line: Line{Minutes: 90, GoalsConceded: 4, Saves: 3},
			want: 2 - 2 + 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := GameweekPoints(tt.pos, tt.line)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("GameweekPoints = %d, want %d", got, tt.want)
			}
		})
	}
}
