package stat

import (
	"errors"
	"fmt"

	"github.com/riskibarqy/fpl-pulse/internal/domain/player"
)

var (
	ErrUnknownStat     = errors.New("unknown stat category")
	ErrUnknownPosition = errors.New("unknown position class")
)

// Kind selects how a rule turns raw value changes into point deltas.
type Kind string

const (
	// KindDirect emits on any raw change: delta = (new-old) * multiplier.
	KindDirect Kind = "direct"
	// KindThreshold emits only when floor(value/divisor) changes.
	KindThreshold Kind = "threshold"
	// KindDerived emits when a flat position-thresholded award flips.
	KindDerived Kind = "derived"
	// KindMinutesGated is direct scoring suppressed below a minutes floor.
	KindMinutesGated Kind = "minutes_gated"
)

// Rule is the tagged per-stat configuration; each variant only reads
// the fields it needs.
type Rule struct {
	Name string
	Kind Kind

	// direct / minutes-gated
	PointsByPosition map[player.Position]int
	MinMinutes       int

	// threshold
	Divisor   int
	Sign      int
	Positions map[player.Position]struct{}

	// derived
	ThresholdByPosition map[player.Position]int
	Award               int
}

const (
	StatGoals                 = "goals_scored"
	StatAssists               = "assists"
	StatCleanSheets           = "clean_sheets"
	StatGoalsConceded         = "goals_conceded"
	StatOwnGoals              = "own_goals"
	StatPenaltiesSaved        = "penalties_saved"
	StatPenaltiesMissed       = "penalties_missed"
	StatYellowCards           = "yellow_cards"
	StatRedCards              = "red_cards"
	StatSaves                 = "saves"
	StatDefensiveContribution = "defensive_contribution"
	StatBPS                   = "bps"
	StatBonus                 = "bonus"
	StatMinutes               = "minutes"
	StatPrice                 = "now_cost"
	StatStatus                = "status"
)

func allPositions(points ...int) map[player.Position]int {
	if len(points) == 1 {
		v := points[0]
		return map[player.Position]int{
			player.PositionGoalkeeper: v,
			player.PositionDefender:   v,
			player.PositionMidfielder: v,
			player.PositionForward:    v,
		}
	}
	return map[player.Position]int{
		player.PositionGoalkeeper: points[0],
		player.PositionDefender:   points[1],
		player.PositionMidfielder: points[2],
		player.PositionForward:    points[3],
	}
}

var rules = []Rule{
	{
		Name:             StatGoals,
		Kind:             KindDirect,
		PointsByPosition: allPositions(10, 6, 5, 4),
	},
	{
		Name:             StatAssists,
		Kind:             KindDirect,
		PointsByPosition: allPositions(3),
	},
	{
		Name:             StatCleanSheets,
		Kind:             KindMinutesGated,
		PointsByPosition: allPositions(4, 4, 1, 0),
		MinMinutes:       60,
	},
	{
		Name:    StatGoalsConceded,
		Kind:    KindThreshold,
		Divisor: 2,
		Sign:    -1,
		Positions: map[player.Position]struct{}{
			player.PositionGoalkeeper: {},
			player.PositionDefender:   {},
		},
	},
	{
		Name:             StatOwnGoals,
		Kind:             KindDirect,
		PointsByPosition: allPositions(-2),
	},
	{
		Name: StatPenaltiesSaved,
		Kind: KindDirect,
		PointsByPosition: map[player.Position]int{
			player.PositionGoalkeeper: 5,
			player.PositionDefender:   0,
			player.PositionMidfielder: 0,
			player.PositionForward:    0,
		},
	},
	{
		Name:             StatPenaltiesMissed,
		Kind:             KindDirect,
		PointsByPosition: allPositions(-2),
	},
	{
		Name:             StatYellowCards,
		Kind:             KindDirect,
		PointsByPosition: allPositions(-1),
	},
	{
		Name:             StatRedCards,
		Kind:             KindDirect,
		PointsByPosition: allPositions(-3),
	},
	{
		Name:    StatSaves,
		Kind:    KindThreshold,
		Divisor: 3,
		Sign:    1,
		Positions: map[player.Position]struct{}{
			player.PositionGoalkeeper: {},
		},
	},
	{
		Name: StatDefensiveContribution,
		Kind: KindDerived,
		ThresholdByPosition: map[player.Position]int{
			player.PositionDefender:   10,
			player.PositionMidfielder: 12,
			player.PositionForward:    12,
		},
		Award: 2,
	},
}

// Rules returns the tracked live-performance rule set in evaluation order.
func Rules() []Rule {
	out := make([]Rule, len(rules))
	copy(out, rules)
	return out
}

func RuleByName(name string) (Rule, bool) {
	for _, r := range rules {
		if r.Name == name {
			return r, true
		}
	}
	return Rule{}, false
}

// Points evaluates the rule for an absolute stat value.
func (r Rule) Points(pos player.Position, value int) (int, error) {
	if _, ok := player.AllPositions[pos]; !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownPosition, pos)
	}

	switch r.Kind {
	case KindDirect, KindMinutesGated:
		mult, ok := r.PointsByPosition[pos]
		if !ok {
			return 0, fmt.Errorf("%w: %s has no multiplier for %s", ErrUnknownStat, r.Name, pos)
		}
		return value * mult, nil
	case KindThreshold:
		if _, ok := r.Positions[pos]; !ok {
			return 0, nil
		}
		if r.Divisor <= 0 {
			return 0, fmt.Errorf("%w: %s has no divisor", ErrUnknownStat, r.Name)
		}
		return r.Sign * (value / r.Divisor), nil
	case KindDerived:
		threshold, ok := r.ThresholdByPosition[pos]
		if !ok {
			return 0, nil
		}
		if value >= threshold {
			return r.Award, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("%w: %s has kind %q", ErrUnknownStat, r.Name, r.Kind)
	}
}

// Delta reports the point change between two observed values and
// whether the change is significant enough to emit. Threshold and
// derived rules suppress raw movement that does not change points;
// minutes-gated rules suppress entirely below the minutes floor.
func (r Rule) Delta(pos player.Position, oldValue, newValue, minutes int) (int, bool, error) {
	if oldValue == newValue {
		return 0, false, nil
	}
	if r.Kind == KindMinutesGated && minutes < r.MinMinutes {
		return 0, false, nil
	}

	oldPoints, err := r.Points(pos, oldValue)
	if err != nil {
		return 0, false, err
	}
	newPoints, err := r.Points(pos, newValue)
	if err != nil {
		return 0, false, err
	}

	switch r.Kind {
	case KindDirect, KindMinutesGated:
		return newPoints - oldPoints, true, nil
	case KindThreshold, KindDerived:
		if newPoints == oldPoints {
			return 0, false, nil
		}
		return newPoints - oldPoints, true, nil
	default:
		return 0, false, fmt.Errorf("%w: %s has kind %q", ErrUnknownStat, r.Name, r.Kind)
	}
}

// BonusForRank maps a BPS rank to bonus points.
func BonusForRank(rank int) int {
	switch rank {
	case 1:
		return 3
	case 2:
		return 2
	case 3:
		return 1
	default:
		return 0
	}
}

// Line is one player's accumulated gameweek stat line.
type Line struct {
	Minutes               int
	GoalsScored           int
	Assists               int
	CleanSheets           int
	GoalsConceded         int
	OwnGoals              int
	PenaltiesSaved        int
	PenaltiesMissed       int
	YellowCards           int
	RedCards              int
	Saves                 int
	Bonus                 int
	DefensiveContribution int
}

// GameweekPoints recomputes a full gameweek total from a stat line,
// including appearance points the diff rules never track.
func GameweekPoints(pos player.Position, line Line) (int, error) {
	if _, ok := player.AllPositions[pos]; !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownPosition, pos)
	}

	total := 0
	switch {
	case line.Minutes >= 60:
		total += 2
	case line.Minutes > 0:
		total++
	}

	valueByName := map[string]int{
		StatGoals:                 line.GoalsScored,
		StatAssists:               line.Assists,
		StatCleanSheets:           line.CleanSheets,
		StatGoalsConceded:         line.GoalsConceded,
		StatOwnGoals:              line.OwnGoals,
		StatPenaltiesSaved:        line.PenaltiesSaved,
		StatPenaltiesMissed:       line.PenaltiesMissed,
		StatYellowCards:           line.YellowCards,
		StatRedCards:              line.RedCards,
		StatSaves:                 line.Saves,
		StatDefensiveContribution: line.DefensiveContribution,
	}

	for _, rule := range rules {
		value := valueByName[rule.Name]
		if rule.Kind == KindMinutesGated && line.Minutes < rule.MinMinutes {
			continue
		}
		points, err := rule.Points(pos, value)
		if err != nil {
			return 0, err
		}
		total += points
	}

	return total + line.Bonus, nil
}
