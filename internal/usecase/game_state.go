package usecase

import (
	"fmt"
	"time"

	"github.com/riskibarqy/fpl-pulse/internal/domain/fixture"
)

type GameState string

const (
	GameStateIdle        GameState = "idle"
	GameStateUpcoming    GameState = "upcoming"
	GameStateLive        GameState = "live"
	GameStatePriceWindow GameState = "price_window"
)

func ParseGameState(raw string) (GameState, error) {
	switch GameState(raw) {
	case GameStateIdle, GameStateUpcoming, GameStateLive, GameStatePriceWindow:
		return GameState(raw), nil
	default:
		return "", fmt.Errorf("%w: unknown game state %q", ErrInvalidInput, raw)
	}
}

// Transition is one observed state edge.
type Transition struct {
	From GameState
	To   GameState
}

// GameStateDetector classifies the world from fixtures plus the wall
// clock. Classification itself is pure; the only mutable state is the
// previous value used for edge detection.
type GameStateDetector struct {
	lookahead   time.Duration
	windowStart int // minutes past midnight, UTC
	windowEnd   int

	previous    GameState
	initialized bool
}

func NewGameStateDetector(lookahead time.Duration, windowStart, windowEnd string) (*GameStateDetector, error) {
	if lookahead <= 0 {
		return nil, fmt.Errorf("%w: lookahead must be > 0", ErrInvalidInput)
	}
	start, err := parseMinuteOfDay(windowStart)
	if err != nil {
		return nil, err
	}
	end, err := parseMinuteOfDay(windowEnd)
	if err != nil {
		return nil, err
	}
	if start == end {
		return nil, fmt.Errorf("%w: price window must not be empty", ErrInvalidInput)
	}

	return &GameStateDetector{
		lookahead:   lookahead,
		windowStart: start,
		windowEnd:   end,
	}, nil
}

// Classify evaluates states in priority order: live beats upcoming
// beats price-window beats idle.
func (d *GameStateDetector) Classify(fixtures []fixture.Fixture, now time.Time) GameState {
	for _, f := range fixtures {
		if f.Live() {
			return GameStateLive
		}
	}
	for _, f := range fixtures {
		if f.UpcomingWithin(now, d.lookahead) {
			return GameStateUpcoming
		}
	}
	if d.inPriceWindow(now) {
		return GameStatePriceWindow
	}
	return GameStateIdle
}

// Observe classifies and reports at most one transition edge. The
// first observation seeds the previous state without an edge.
func (d *GameStateDetector) Observe(fixtures []fixture.Fixture, now time.Time) (GameState, *Transition) {
	current := d.Classify(fixtures, now)
	if !d.initialized {
		d.initialized = true
		d.previous = current
		return current, nil
	}
	if current == d.previous {
		return current, nil
	}

	edge := &Transition{From: d.previous, To: current}
	d.previous = current
	return current, edge
}

func (d *GameStateDetector) inPriceWindow(now time.Time) bool {
	minute := now.UTC().Hour()*60 + now.UTC().Minute()
	if d.windowStart < d.windowEnd {
		return minute >= d.windowStart && minute < d.windowEnd
	}
	// Window wraps midnight.
	return minute >= d.windowStart || minute < d.windowEnd
}

func parseMinuteOfDay(raw string) (int, error) {
	parsed, err := time.Parse("15:04", raw)
	if err != nil {
		return 0, fmt.Errorf("%w: parse clock bound %q: %v", ErrInvalidInput, raw, err)
	}
	return parsed.Hour()*60 + parsed.Minute(), nil
}
