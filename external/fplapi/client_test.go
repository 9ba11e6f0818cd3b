package fplapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/riskibarqy/fpl-pulse/internal/domain/player"
	"github.com/riskibarqy/fpl-pulse/internal/domain/stat"
	"github.com/riskibarqy/fpl-pulse/internal/platform/resilience"
	"github.com/riskibarqy/fpl-pulse/internal/usecase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(ClientConfig{
		BaseURL: server.URL,
		Timeout: 2 * time.Second,
	})
}

func TestFetchBootstrap(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bootstrap-static/", r.URL.Path)
		_, _ = w.Write([]byte(`{
			"events": [{"id": 27, "is_current": false}, {"id": 28, "is_current": true}],
			"teams": [{"id": 1, "name": "Arsenal", "short_name": "ARS"}],
			"elements": [
				{"id": 100, "web_name": "Saka", "team": 1, "element_type": 3, "now_cost": 102,
				 "status": "a", "news": "", "selected_by_percent": "45.2"},
				{"id": 101, "web_name": "Mystery", "team": 1, "element_type": 9, "now_cost": 40,
				 "status": "a", "news": "", "selected_by_percent": "0.1"}
			]
		}`))
	})

	bootstrap, err := client.FetchBootstrap(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 28, bootstrap.CurrentGameweek)
	assert.Equal(t, "Arsenal", bootstrap.TeamNameByID[1])
	require.Len(t, bootstrap.Players, 1, "unknown element types are dropped")

	saka := bootstrap.Players[0]
	assert.EqualValues(t, 100, saka.ID)
	assert.Equal(t, player.PositionMidfielder, saka.Position)
	assert.Equal(t, 102, saka.Price)
	assert.Equal(t, player.StatusAvailable, saka.Status)
	assert.InDelta(t, 45.2, saka.Ownership, 0.001)
}

func TestFetchFixtures(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/fixtures/", r.URL.Path)
		assert.Equal(t, "28", r.URL.Query().Get("event"))
		_, _ = w.Write([]byte(`[
			{"id": 7, "event": 28, "team_h": 1, "team_a": 2,
			 "kickoff_time": "2026-03-07T15:00:00Z", "started": true,
			 "finished": false, "finished_provisional": false, "minutes": 37},
			{"id": 8, "event": 28, "team_h": 3, "team_a": 4, "kickoff_time": null,
			 "started": false, "finished": false, "finished_provisional": false, "minutes": 0}
		]`))
	})

	fixtures, err := client.FetchFixtures(context.Background(), 28)
	require.NoError(t, err)
	require.Len(t, fixtures, 2)

	assert.True(t, fixtures[0].Live())
	assert.Equal(t, time.Date(2026, time.March, 7, 15, 0, 0, 0, time.UTC), fixtures[0].KickoffAt)
	assert.True(t, fixtures[1].KickoffAt.IsZero(), "unscheduled kickoff maps to zero time")
}

func TestFetchLive(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/event/28/live/", r.URL.Path)
		_, _ = w.Write([]byte(`{
			"elements": [
				{"id": 100,
				 "stats": {"minutes": 61, "goals_scored": 1, "assists": 0, "saves": 4,
				           "bps": 32, "bonus": 0, "defensive_contribution": 3},
				 "explain": [{"fixture": 7}]}
			]
		}`))
	})

	live, err := client.FetchLive(context.Background(), 28)
	require.NoError(t, err)
	require.Len(t, live, 1)

	row := live[0]
	assert.EqualValues(t, 100, row.PlayerID)
	assert.EqualValues(t, 7, row.FixtureID)
	assert.Equal(t, 61, row.Minutes)
	assert.Equal(t, 32, row.BPS)
	assert.Equal(t, 1, row.Values[stat.StatGoals])
	assert.Equal(t, 4, row.Values[stat.StatSaves])
	assert.Equal(t, 3, row.Values[stat.StatDefensiveContribution])
}

func TestFetchLeagueStandings_Paging(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("page_standings") {
		case "1":
			_, _ = w.Write([]byte(`{"standings": {"has_next": true, "page": 1,
				"results": [{"entry": 100, "entry_name": "Team A"}]}}`))
		case "2":
			_, _ = w.Write([]byte(`{"standings": {"has_next": false, "page": 2,
				"results": [{"entry": 200, "entry_name": "Team B"}]}}`))
		default:
			t.Errorf("unexpected page %q", r.URL.Query().Get("page_standings"))
		}
	})

	managers, err := client.FetchLeagueStandings(context.Background(), 42)
	require.NoError(t, err)
	require.Len(t, managers, 2)
	assert.EqualValues(t, 100, managers[0].EntryID)
	assert.Equal(t, "Team B", managers[1].Name)
}

func TestFetchManagerPicks(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/entry/100/event/28/picks/", r.URL.Path)
		_, _ = w.Write([]byte(`{"picks": [
			{"element": 1, "position": 1, "multiplier": 1},
			{"element": 2, "position": 12, "multiplier": 0}
		]}`))
	})

	picks, err := client.FetchManagerPicks(context.Background(), 100, 28)
	require.NoError(t, err)
	require.Len(t, picks, 2)
	assert.EqualValues(t, 1, picks[0].PlayerID)
	assert.Equal(t, 0, picks[1].Multiplier)
}

func TestRetryOnServerError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	t.Cleanup(server.Close)

	client := NewClient(ClientConfig{BaseURL: server.URL, Timeout: 2 * time.Second, MaxRetries: 1})
	_, err := client.FetchFixtures(context.Background(), 28)
	require.NoError(t, err)
	assert.EqualValues(t, 2, calls.Load())
}

func TestNonRetryableStatusFailsFast(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(server.Close)

	client := NewClient(ClientConfig{BaseURL: server.URL, Timeout: 2 * time.Second, MaxRetries: 3})
	_, err := client.FetchFixtures(context.Background(), 28)
	require.Error(t, err)
	assert.EqualValues(t, 1, calls.Load(), "client errors are not retried")
}

func TestCircuitBreakerRejectsWhenOpen(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(server.Close)

	client := NewClient(ClientConfig{
		BaseURL: server.URL,
		Timeout: 2 * time.Second,
		CircuitBreaker: resilience.CircuitBreakerConfig{
			Enabled:          true,
			FailureThreshold: 1,
			OpenTimeout:      time.Minute,
			HalfOpenMaxReq:   1,
		},
	})

	_, err := client.FetchFixtures(context.Background(), 28)
	require.Error(t, err)

	_, err = client.FetchFixtures(context.Background(), 28)
	assert.ErrorIs(t, err, usecase.ErrDependencyUnavailable)
}
