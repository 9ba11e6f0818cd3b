package memory

import (
	"context"
	"sync"

	"github.com/riskibarqy/fpl-pulse/internal/usecase"
)

// ChangeLogRepository appends audit entries to an in-process slice.
type ChangeLogRepository struct {
	mu      sync.RWMutex
	entries []usecase.ChangeLogEntry
}

func NewChangeLogRepository() *ChangeLogRepository {
	return &ChangeLogRepository{}
}

func (r *ChangeLogRepository) Append(_ context.Context, entry usecase.ChangeLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = append(r.entries, entry)
	return nil
}

// Entries returns a copy of everything appended so far.
func (r *ChangeLogRepository) Entries() []usecase.ChangeLogEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]usecase.ChangeLogEntry, len(r.entries))
	copy(out, r.entries)
	return out
}
