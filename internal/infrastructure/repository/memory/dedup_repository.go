package memory

import (
	"context"
	"sync"
	"time"
)

type dedupRecord struct {
	value int
	at    time.Time
}

// DedupRepository keeps notification suppression records in process
// memory. Records survive only as long as the process; a restart
// re-notifies, which the downstream audit log makes visible.
type DedupRepository struct {
	mu      sync.RWMutex
	records map[string]dedupRecord
}

func NewDedupRepository() *DedupRepository {
	return &DedupRepository{records: make(map[string]dedupRecord)}
}

func (r *DedupRepository) Seen(_ context.Context, key string, since time.Time) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.records[key]
	return ok && !record.at.Before(since), nil
}

func (r *DedupRepository) Record(_ context.Context, key string, value int, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.records[key] = dedupRecord{value: value, at: at}
	return nil
}

func (r *DedupRepository) PruneBefore(_ context.Context, cutoff time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key, record := range r.records {
		if record.at.Before(cutoff) {
			delete(r.records, key)
		}
	}
	return nil
}
