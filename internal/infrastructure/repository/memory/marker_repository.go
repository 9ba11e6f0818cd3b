package memory

import (
	"context"
	"sync"
)

// MarkerRepository keeps one-shot idempotency markers in process memory.
type MarkerRepository struct {
	mu     sync.RWMutex
	marked map[string]struct{}
}

func NewMarkerRepository() *MarkerRepository {
	return &MarkerRepository{marked: make(map[string]struct{})}
}

func (r *MarkerRepository) Seen(_ context.Context, key string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.marked[key]
	return ok, nil
}

func (r *MarkerRepository) Mark(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.marked[key] = struct{}{}
	return nil
}
