package fixture

import (
	"strings"
	"time"
)

// Fixture is the provider's per-match record, the source of truth for
// game-state classification and minute-gated scoring rules.
type Fixture struct {
	ID                  int64
	Gameweek            int
	HomeTeamID          int64
	AwayTeamID          int64
	HomeTeamName        string
	AwayTeamName        string
	KickoffAt           time.Time
	Started             bool
	Finished            bool
	FinishedProvisional bool
	Minutes             int
}

func (f Fixture) Live() bool {
	return f.Started && !f.Finished
}

// UpcomingWithin reports whether kickoff falls inside the lookahead
// window measured from now.
func (f Fixture) UpcomingWithin(now time.Time, lookahead time.Duration) bool {
	if f.Started || f.KickoffAt.IsZero() {
		return false
	}
	until := f.KickoffAt.Sub(now)
	return until >= 0 && until <= lookahead
}

func (f Fixture) Header() string {
	home := strings.TrimSpace(f.HomeTeamName)
	away := strings.TrimSpace(f.AwayTeamName)
	if home == "" {
		home = "Home"
	}
	if away == "" {
		away = "Away"
	}
	return home + " vs " + away
}

// NextKickoff returns the earliest kickoff strictly after now.
func NextKickoff(fixtures []Fixture, now time.Time) (time.Time, bool) {
	var next time.Time
	found := false
	for _, f := range fixtures {
		if f.Started || f.KickoffAt.IsZero() || !f.KickoffAt.After(now) {
			continue
		}
		if !found || f.KickoffAt.Before(next) {
			next = f.KickoffAt
			found = true
		}
	}
	return next, found
}
