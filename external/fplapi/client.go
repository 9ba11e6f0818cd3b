package fplapi

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
	"github.com/riskibarqy/fpl-pulse/internal/domain/fixture"
	"github.com/riskibarqy/fpl-pulse/internal/domain/player"
	"github.com/riskibarqy/fpl-pulse/internal/domain/stat"
	"github.com/riskibarqy/fpl-pulse/internal/platform/logging"
	"github.com/riskibarqy/fpl-pulse/internal/platform/resilience"
	"github.com/riskibarqy/fpl-pulse/internal/usecase"
)

const (
	defaultBaseURL   = "https://fantasy.premierleague.com/api"
	maxStandingsPage = 10
)

var errFPLTransient = crerr.New("fpl transient failure")

type ClientConfig struct {
	HTTPClient     *http.Client
	BaseURL        string
	Timeout        time.Duration
	MaxRetries     int
	Logger         *logging.Logger
	CircuitBreaker resilience.CircuitBreakerConfig
}

// Client talks to the official fantasy game API. All endpoints are
// unauthenticated GETs returning JSON.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	maxRetries     int
	logger         *logging.Logger
	breaker        *resilience.CircuitBreaker
	circuitEnabled bool
	flight         resilience.SingleFlight
}

func NewClient(cfg ClientConfig) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if httpClient.Timeout <= 0 {
		httpClient.Timeout = 20 * time.Second
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	breakerCfg := resilience.NormalizeCircuitBreakerConfig(cfg.CircuitBreaker)

	return &Client{
		httpClient:     httpClient,
		baseURL:        baseURL,
		maxRetries:     maxInt(cfg.MaxRetries, 0),
		logger:         logger,
		breaker:        resilience.NewCircuitBreaker(breakerCfg.FailureThreshold, breakerCfg.OpenTimeout, breakerCfg.HalfOpenMaxReq),
		circuitEnabled: breakerCfg.Enabled,
	}
}

func (c *Client) FetchBootstrap(ctx context.Context) (usecase.ExternalBootstrap, error) {
	var envelope bootstrapEnvelope
	if err := c.doJSON(ctx, "/bootstrap-static/", &envelope); err != nil {
		return usecase.ExternalBootstrap{}, fmt.Errorf("fetch bootstrap: %w", err)
	}

	teamNameByID := make(map[int64]string, len(envelope.Teams))
	for _, team := range envelope.Teams {
		teamNameByID[team.ID] = strings.TrimSpace(team.Name)
	}

	players := make([]player.Player, 0, len(envelope.Elements))
	for _, element := range envelope.Elements {
		position, ok := player.PositionFromElementType(element.ElementType)
		if !ok {
			c.logger.WarnContext(ctx, "skipping element with unknown type",
				"element_id", element.ID,
				"element_type", element.ElementType,
			)
			continue
		}
		players = append(players, player.Player{
			ID:        element.ID,
			WebName:   strings.TrimSpace(element.WebName),
			TeamID:    element.Team,
			Position:  position,
			Price:     element.NowCost,
			Status:    player.Status(element.Status),
			News:      strings.TrimSpace(element.News),
			Ownership: element.selectedBy(),
		})
	}

	return usecase.ExternalBootstrap{
		Players:         players,
		TeamNameByID:    teamNameByID,
		CurrentGameweek: currentGameweek(envelope.Events),
	}, nil
}

func (c *Client) FetchFixtures(ctx context.Context, gameweek int) ([]fixture.Fixture, error) {
	if gameweek <= 0 {
		return nil, fmt.Errorf("gameweek must be greater than zero")
	}

	var items []fixtureItem
	path := fmt.Sprintf("/fixtures/?event=%d", gameweek)
	if err := c.doJSON(ctx, path, &items); err != nil {
		return nil, fmt.Errorf("fetch fixtures gameweek=%d: %w", gameweek, err)
	}

	out := make([]fixture.Fixture, 0, len(items))
	for _, item := range items {
		out = append(out, fixture.Fixture{
			ID:                  item.ID,
			Gameweek:            item.Event,
			HomeTeamID:          item.TeamH,
			AwayTeamID:          item.TeamA,
			KickoffAt:           item.kickoff(),
			Started:             item.Started,
			Finished:            item.Finished,
			FinishedProvisional: item.FinishedProvisional,
			Minutes:             item.Minutes,
		})
	}
	return out, nil
}

func (c *Client) FetchLive(ctx context.Context, gameweek int) ([]usecase.ExternalLiveStat, error) {
	if gameweek <= 0 {
		return nil, fmt.Errorf("gameweek must be greater than zero")
	}

	var envelope liveEnvelope
	path := fmt.Sprintf("/event/%d/live/", gameweek)
	if err := c.doJSON(ctx, path, &envelope); err != nil {
		return nil, fmt.Errorf("fetch live gameweek=%d: %w", gameweek, err)
	}

	out := make([]usecase.ExternalLiveStat, 0, len(envelope.Elements))
	for _, element := range envelope.Elements {
		out = append(out, usecase.ExternalLiveStat{
			PlayerID:  element.ID,
			FixtureID: element.fixtureID(),
			Minutes:   element.Stats.Minutes,
			BPS:       element.Stats.BPS,
			Bonus:     element.Stats.Bonus,
			Values: map[string]int{
				stat.StatGoals:                 element.Stats.GoalsScored,
				stat.StatAssists:               element.Stats.Assists,
				stat.StatCleanSheets:           element.Stats.CleanSheets,
				stat.StatGoalsConceded:         element.Stats.GoalsConceded,
				stat.StatOwnGoals:              element.Stats.OwnGoals,
				stat.StatPenaltiesSaved:        element.Stats.PenaltiesSaved,
				stat.StatPenaltiesMissed:       element.Stats.PenaltiesMissed,
				stat.StatYellowCards:           element.Stats.YellowCards,
				stat.StatRedCards:              element.Stats.RedCards,
				stat.StatSaves:                 element.Stats.Saves,
				stat.StatDefensiveContribution: element.Stats.DefensiveContribution,
			},
		})
	}
	return out, nil
}

func (c *Client) FetchLeagueStandings(ctx context.Context, leagueID int64) ([]usecase.ExternalManager, error) {
	if leagueID <= 0 {
		return nil, fmt.Errorf("league id must be greater than zero")
	}

	out := make([]usecase.ExternalManager, 0, 64)
	for page := 1; page <= maxStandingsPage; page++ {
		var envelope standingsEnvelope
		path := fmt.Sprintf("/leagues-classic/%d/standings/?page_standings=%d", leagueID, page)
		if err := c.doJSON(ctx, path, &envelope); err != nil {
			return nil, fmt.Errorf("fetch standings league=%d page=%d: %w", leagueID, page, err)
		}

		for _, entry := range envelope.Standings.Results {
			out = append(out, usecase.ExternalManager{
				EntryID: entry.Entry,
				Name:    strings.TrimSpace(entry.EntryName),
			})
		}
		if !envelope.Standings.HasNext {
			break
		}
	}
	return out, nil
}

func (c *Client) FetchManagerPicks(ctx context.Context, entryID int64, gameweek int) ([]usecase.ExternalPick, error) {
	if entryID <= 0 || gameweek <= 0 {
		return nil, fmt.Errorf("entry id and gameweek must be greater than zero")
	}

	var envelope picksEnvelope
	path := fmt.Sprintf("/entry/%d/event/%d/picks/", entryID, gameweek)
	if err := c.doJSON(ctx, path, &envelope); err != nil {
		return nil, fmt.Errorf("fetch picks entry=%d gameweek=%d: %w", entryID, gameweek, err)
	}

	out := make([]usecase.ExternalPick, 0, len(envelope.Picks))
	for _, pick := range envelope.Picks {
		out = append(out, usecase.ExternalPick{
			PlayerID:   pick.Element,
			SquadOrder: pick.Position,
			Multiplier: pick.Multiplier,
		})
	}
	return out, nil
}

func (c *Client) doJSON(ctx context.Context, path string, target any) error {
	if c.circuitEnabled {
		if err := c.breaker.Allow(); err != nil {
			c.logger.WarnContext(ctx, "fpl circuit breaker rejected request", "state", c.breaker.State())
			return fmt.Errorf("%w: game data provider is temporarily unavailable", usecase.ErrDependencyUnavailable)
		}
	}

	fullURL := c.baseURL + path
	out, err := c.flight.Do(path, func() (any, error) {
		raw, reqErr := c.executeRequest(ctx, fullURL)
		if c.circuitEnabled {
			if reqErr != nil && isCircuitFailure(reqErr) {
				c.breaker.RecordFailure()
			} else {
				c.breaker.RecordSuccess()
			}
		}
		return raw, reqErr
	})
	if err != nil {
		return err
	}

	raw, ok := out.([]byte)
	if !ok {
		return fmt.Errorf("unexpected response payload type %T", out)
	}
	if err := sonic.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("decode provider payload: %w", err)
	}
	return nil
}

func (c *Client) executeRequest(ctx context.Context, fullURL string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("%w: send request: %v", errFPLTransient, err)
		} else {
			raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 12<<20))
			_ = resp.Body.Close()
			if readErr != nil {
				lastErr = fmt.Errorf("%w: read response body: %v", errFPLTransient, readErr)
			} else if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				return raw, nil
			} else if isRetryableStatus(resp.StatusCode) {
				lastErr = fmt.Errorf("%w: provider status=%d body=%s", errFPLTransient, resp.StatusCode, abbreviateBody(raw))
			} else {
				return nil, fmt.Errorf("provider status=%d body=%s", resp.StatusCode, abbreviateBody(raw))
			}
		}

		if attempt == c.maxRetries {
			break
		}
		backoff := time.Duration(attempt+1) * time.Second
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("provider request failed")
	}
	c.logger.WarnContext(ctx, "fpl request failed", "url", fullURL, "error", lastErr)
	return nil, lastErr
}

func currentGameweek(events []bootstrapEvent) int {
	for _, event := range events {
		if event.IsCurrent {
			return event.ID
		}
	}
	// Between seasons or preseason the provider only flags is_next.
	for _, event := range events {
		if event.IsNext {
			return event.ID
		}
	}
	return 0
}

func isCircuitFailure(err error) bool {
	return stderrors.Is(err, errFPLTransient) || stderrors.Is(err, context.DeadlineExceeded)
}

func isRetryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

func abbreviateBody(raw []byte) string {
	const limit = 256
	body := strings.TrimSpace(string(raw))
	if len(body) > limit {
		return body[:limit] + "..."
	}
	return body
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
