package fplapi

import (
	"strconv"
	"strings"
	"time"
)

type bootstrapEnvelope struct {
	Events   []bootstrapEvent   `json:"events"`
	Teams    []bootstrapTeam    `json:"teams"`
	Elements []bootstrapElement `json:"elements"`
}

type bootstrapEvent struct {
	ID        int  `json:"id"`
	IsCurrent bool `json:"is_current"`
	IsNext    bool `json:"is_next"`
	Finished  bool `json:"finished"`
}

type bootstrapTeam struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	ShortName string `json:"short_name"`
}

type bootstrapElement struct {
	ID                int64  `json:"id"`
	WebName           string `json:"web_name"`
	Team              int64  `json:"team"`
	ElementType       int    `json:"element_type"`
	NowCost           int    `json:"now_cost"`
	Status            string `json:"status"`
	News              string `json:"news"`
	SelectedByPercent string `json:"selected_by_percent"`
}

// selectedBy parses the provider's stringly-typed ownership percentage.
func (e bootstrapElement) selectedBy() float64 {
	value, err := strconv.ParseFloat(strings.TrimSpace(e.SelectedByPercent), 64)
	if err != nil {
		return 0
	}
	return value
}

type fixtureItem struct {
	ID                  int64   `json:"id"`
	Event               int     `json:"event"`
	TeamH               int64   `json:"team_h"`
	TeamA               int64   `json:"team_a"`
	KickoffTime         *string `json:"kickoff_time"`
	Started             bool    `json:"started"`
	Finished            bool    `json:"finished"`
	FinishedProvisional bool    `json:"finished_provisional"`
	Minutes             int     `json:"minutes"`
}

func (f fixtureItem) kickoff() time.Time {
	if f.KickoffTime == nil {
		return time.Time{}
	}
	parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(*f.KickoffTime))
	if err != nil {
		return time.Time{}
	}
	return parsed.UTC()
}

type liveEnvelope struct {
	Elements []liveElement `json:"elements"`
}

type liveElement struct {
	ID      int64         `json:"id"`
	Stats   liveStats     `json:"stats"`
	Explain []liveExplain `json:"explain"`
}

type liveStats struct {
	Minutes               int `json:"minutes"`
	GoalsScored           int `json:"goals_scored"`
	Assists               int `json:"assists"`
	CleanSheets           int `json:"clean_sheets"`
	GoalsConceded         int `json:"goals_conceded"`
	OwnGoals              int `json:"own_goals"`
	PenaltiesSaved        int `json:"penalties_saved"`
	PenaltiesMissed       int `json:"penalties_missed"`
	YellowCards           int `json:"yellow_cards"`
	RedCards              int `json:"red_cards"`
	Saves                 int `json:"saves"`
	Bonus                 int `json:"bonus"`
	BPS                   int `json:"bps"`
	DefensiveContribution int `json:"defensive_contribution"`
}

type liveExplain struct {
	Fixture int64 `json:"fixture"`
}

func (e liveElement) fixtureID() int64 {
	if len(e.Explain) == 0 {
		return 0
	}
	return e.Explain[0].Fixture
}

type standingsEnvelope struct {
	Standings standingsPage `json:"standings"`
}

type standingsPage struct {
	HasNext bool            `json:"has_next"`
	Page    int             `json:"page"`
	Results []standingEntry `json:"results"`
}

type standingEntry struct {
	Entry     int64  `json:"entry"`
	EntryName string `json:"entry_name"`
}

type picksEnvelope struct {
	Picks []pickItem `json:"picks"`
}

type pickItem struct {
	Element    int64 `json:"element"`
	Position   int   `json:"position"`
	Multiplier int   `json:"multiplier"`
}
