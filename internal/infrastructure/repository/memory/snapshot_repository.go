package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/riskibarqy/fpl-pulse/internal/domain/snapshot"
)

type snapshotKey struct {
	playerID int64
	category string
}

// SnapshotStore is the in-memory snapshot backend, used when no
// database is configured and throughout the test suite.
type SnapshotStore struct {
	mu       sync.RWMutex
	states   map[snapshotKey]snapshot.State
	rankings map[int64]map[int64]int
}

func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{
		states:   make(map[snapshotKey]snapshot.State),
		rankings: make(map[int64]map[int64]int),
	}
}

func (s *SnapshotStore) Get(_ context.Context, playerID int64, category string) (snapshot.State, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.states[snapshotKey{playerID: playerID, category: category}]
	return state, ok, nil
}

func (s *SnapshotStore) Put(_ context.Context, state snapshot.State) error {
	if state.PlayerID == 0 || state.Category == "" {
		return fmt.Errorf("snapshot state requires player id and category")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.states[snapshotKey{playerID: state.PlayerID, category: state.Category}] = state
	return nil
}

func (s *SnapshotStore) CountPlayers(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[int64]struct{}, len(s.states))
	for key := range s.states {
		seen[key.playerID] = struct{}{}
	}
	return len(seen), nil
}

func (s *SnapshotStore) CountByCategory(_ context.Context, category string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for key := range s.states {
		if key.category == category {
			count++
		}
	}
	return count, nil
}

func (s *SnapshotStore) BulkReinit(_ context.Context, states []snapshot.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.states = make(map[snapshotKey]snapshot.State, len(states))
	for _, state := range states {
		s.states[snapshotKey{playerID: state.PlayerID, category: state.Category}] = state
	}
	return nil
}

func (s *SnapshotStore) GetRanking(_ context.Context, fixtureID int64) (map[int64]int, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ranking, ok := s.rankings[fixtureID]
	if !ok {
		return nil, false, nil
	}
	out := make(map[int64]int, len(ranking))
	for playerID, bonus := range ranking {
		out[playerID] = bonus
	}
	return out, true, nil
}

func (s *SnapshotStore) PutRanking(_ context.Context, fixtureID int64, bonusByPlayer map[int64]int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := make(map[int64]int, len(bonusByPlayer))
	for playerID, bonus := range bonusByPlayer {
		stored[playerID] = bonus
	}
	s.rankings[fixtureID] = stored
	return nil
}
