package usecase

import (
	"fmt"
	"time"

	"github.com/riskibarqy/fpl-pulse/internal/config"
)

type scheduledCategory struct {
	name             string
	interval         time.Duration
	states           map[GameState]struct{}
	fixtureDependent bool
}

// Scheduler tracks per-category last-run timestamps and decides which
// categories are due for the current game state, plus how long the
// loop may sleep. Touched only from the monitor loop.
type Scheduler struct {
	categories []scheduledCategory
	lastRun    map[string]time.Time

	// priceLatched suppresses the price category for the remainder of
	// the current window once the daily change has been seen.
	priceLatched bool

	sleepFloor     time.Duration
	sleepCeiling   time.Duration
	preKickoffLead time.Duration
}

func NewScheduler(categories []config.CategoryConfig, sleepFloor, sleepCeiling, preKickoffLead time.Duration) (*Scheduler, error) {
	if len(categories) == 0 {
		return nil, fmt.Errorf("%w: no monitoring categories", ErrInvalidInput)
	}
	if sleepFloor <= 0 || sleepCeiling < sleepFloor {
		return nil, fmt.Errorf("%w: sleep bounds must satisfy 0 < floor <= ceiling", ErrInvalidInput)
	}

	out := make([]scheduledCategory, 0, len(categories))
	for _, category := range categories {
		states := make(map[GameState]struct{}, len(category.States))
		for _, raw := range category.States {
			state, err := ParseGameState(raw)
			if err != nil {
				return nil, fmt.Errorf("category %q: %w", category.Name, err)
			}
			states[state] = struct{}{}
		}
		out = append(out, scheduledCategory{
			name:             category.Name,
			interval:         category.Interval,
			states:           states,
			fixtureDependent: category.FixtureDependent,
		})
	}

	return &Scheduler{
		categories:     out,
		lastRun:        make(map[string]time.Time, len(out)),
		sleepFloor:     sleepFloor,
		sleepCeiling:   sleepCeiling,
		preKickoffLead: preKickoffLead,
	}, nil
}

// Due returns the categories eligible to run right now, in table order.
func (s *Scheduler) Due(now time.Time, state GameState) []string {
	out := make([]string, 0, len(s.categories))
	for _, category := range s.categories {
		if !s.eligible(category, state) {
			continue
		}
		last, ran := s.lastRun[category.name]
		if ran && now.Sub(last) < category.interval {
			continue
		}
		out = append(out, category.name)
	}
	return out
}

// MarkRun advances the category clock. Never called after a failed
// fetch, so a failure is retried on the next tick.
func (s *Scheduler) MarkRun(name string, now time.Time) {
	s.lastRun[name] = now
}

// MarkPriceChangeSeen disables price polling until the window closes.
func (s *Scheduler) MarkPriceChangeSeen() {
	s.priceLatched = true
}

func (s *Scheduler) PriceLatched() bool {
	return s.priceLatched
}

// HandleTransition resets the price latch whenever the price window is
// left.
func (s *Scheduler) HandleTransition(edge Transition) {
	if edge.From == GameStatePriceWindow && edge.To != GameStatePriceWindow {
		s.priceLatched = false
	}
}

// Sleep computes the loop's sleep: the minimum of each state-eligible
// category's remaining time-to-due and the time until the next kickoff
// minus the lead, clamped between floor and ceiling.
func (s *Scheduler) Sleep(now time.Time, state GameState, nextKickoff time.Time, hasKickoff bool) time.Duration {
	sleep := s.sleepCeiling

	for _, category := range s.categories {
		if !s.eligible(category, state) {
			continue
		}
		remaining := category.interval
		if last, ran := s.lastRun[category.name]; ran {
			remaining = category.interval - now.Sub(last)
		}
		if remaining < sleep {
			sleep = remaining
		}
	}

	if hasKickoff {
		untilKickoff := nextKickoff.Sub(now) - s.preKickoffLead
		if untilKickoff < sleep {
			sleep = untilKickoff
		}
	}

	if sleep < s.sleepFloor {
		return s.sleepFloor
	}
	if sleep > s.sleepCeiling {
		return s.sleepCeiling
	}
	return sleep
}

func (s *Scheduler) eligible(category scheduledCategory, state GameState) bool {
	if _, ok := category.states[state]; !ok {
		return false
	}
	if category.fixtureDependent && state != GameStateLive && state != GameStateUpcoming {
		return false
	}
	if category.name == config.CategoryPriceChanges && s.priceLatched {
		return false
	}
	return true
}
