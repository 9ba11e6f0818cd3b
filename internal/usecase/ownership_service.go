package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/riskibarqy/fpl-pulse/internal/platform/cache"
	"github.com/riskibarqy/fpl-pulse/internal/platform/logging"
)

// Picks are frozen once a gameweek's deadline passes, so cached entries
// keyed by (manager, gameweek) stay valid for hours.
const picksCacheTTL = 6 * time.Hour

// OwnershipTracker computes per-player ownership shares across the
// tracked mini-league by fanning picks requests over a worker pool.
// A refresh failure keeps the previous shares; ownership context is
// decoration, never a reason to stall the monitor.
type OwnershipTracker struct {
	fetcher  SourceFetcher
	logger   *logging.Logger
	leagueID int64
	workers  int
	interval time.Duration
	picks    *cache.Store
	now      func() time.Time

	mu          sync.RWMutex
	shares      map[int64]float64
	lastRefresh time.Time
}

func NewOwnershipTracker(fetcher SourceFetcher, leagueID int64, workers int, interval time.Duration, logger *logging.Logger) (*OwnershipTracker, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("%w: fetcher is required", ErrInvalidInput)
	}
	if workers < 1 || interval <= 0 {
		return nil, fmt.Errorf("%w: workers and interval must be positive", ErrInvalidInput)
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &OwnershipTracker{
		fetcher:  fetcher,
		logger:   logger,
		leagueID: leagueID,
		workers:  workers,
		interval: interval,
		picks:    cache.NewStore(picksCacheTTL),
		now:      time.Now,
		shares:   map[int64]float64{},
	}, nil
}

// Shares returns the latest ownership percentages keyed by player id.
// Empty until the first successful refresh, or always when no league is
// configured.
func (t *OwnershipTracker) Shares() map[int64]float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[int64]float64, len(t.shares))
	for id, share := range t.shares {
		out[id] = share
	}
	return out
}

// MaybeRefresh recomputes shares when the refresh interval has elapsed.
// Without a configured league it is a no-op.
func (t *OwnershipTracker) MaybeRefresh(ctx context.Context, gameweek int) {
	if t.leagueID == 0 {
		return
	}

	t.mu.RLock()
	stale := t.lastRefresh.IsZero() || t.now().Sub(t.lastRefresh) >= t.interval
	t.mu.RUnlock()
	if !stale {
		return
	}

	shares, err := t.refresh(ctx, gameweek)
	if err != nil {
		t.logger.WarnContext(ctx, "ownership refresh failed, keeping previous shares",
			"league_id", t.leagueID,
			"error", err,
		)
		return
	}

	t.mu.Lock()
	t.shares = shares
	t.lastRefresh = t.now()
	t.mu.Unlock()

	t.logger.InfoContext(ctx, "ownership refreshed",
		"league_id", t.leagueID,
		"players", len(shares),
	)
}

func (t *OwnershipTracker) refresh(ctx context.Context, gameweek int) (map[int64]float64, error) {
	managers, err := t.fetcher.FetchLeagueStandings(ctx, t.leagueID)
	if err != nil {
		return nil, fmt.Errorf("fetch league standings: %w", err)
	}
	if len(managers) == 0 {
		return map[int64]float64{}, nil
	}

	pool, err := ants.NewPool(t.workers)
	if err != nil {
		return nil, fmt.Errorf("create picks worker pool: %w", err)
	}
	defer pool.Release()

	var (
		mu      sync.Mutex
		counts  = make(map[int64]int, 256)
		fetched int
		wg      sync.WaitGroup
	)

	for _, manager := range managers {
		manager := manager
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()

			picks, pickErr := t.managerPicks(ctx, manager.EntryID, gameweek)
			if pickErr != nil {
				t.logger.WarnContext(ctx, "skipping manager picks",
					"entry_id", manager.EntryID,
					"error", pickErr,
				)
				return
			}

			mu.Lock()
			fetched++
			for _, pick := range picks {
				counts[pick.PlayerID]++
			}
			mu.Unlock()
		})
		if submitErr != nil {
			wg.Done()
			return nil, fmt.Errorf("submit picks task entry=%d: %w", manager.EntryID, submitErr)
		}
	}
	wg.Wait()

	if fetched == 0 {
		return nil, fmt.Errorf("%w: no manager picks could be fetched", ErrDependencyUnavailable)
	}

	out := make(map[int64]float64, len(counts))
	for playerID, count := range counts {
		out[playerID] = float64(count) / float64(fetched) * 100
	}
	return out, nil
}

func (t *OwnershipTracker) managerPicks(ctx context.Context, entryID int64, gameweek int) ([]ExternalPick, error) {
	key := fmt.Sprintf("picks:%d:%d", entryID, gameweek)
	value, err := t.picks.GetOrLoad(ctx, key, func(ctx context.Context) (any, error) {
		return t.fetcher.FetchManagerPicks(ctx, entryID, gameweek)
	})
	if err != nil {
		return nil, err
	}
	picks, ok := value.([]ExternalPick)
	if !ok {
		return nil, fmt.Errorf("unexpected picks cache entry for %s", key)
	}
	return picks, nil
}
