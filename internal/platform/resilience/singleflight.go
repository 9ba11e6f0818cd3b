package resilience

import "sync"

// inflight is one pending load; waiters block on done.
type inflight struct {
	done chan struct{}
	val  any
	err  error
}

// SingleFlight collapses concurrent loads of the same key into a single
// upstream call. The picks fan-out hits the cache from pool workers and
// the feed client keys by endpoint path; only the first caller runs fn,
// the rest wait for its result.
type SingleFlight struct {
	mu      sync.Mutex
	pending map[string]*inflight
}

func (g *SingleFlight) Do(key string, fn func() (any, error)) (any, error) {
	g.mu.Lock()
	if g.pending == nil {
		g.pending = make(map[string]*inflight)
	}
	if f, ok := g.pending[key]; ok {
		g.mu.Unlock()
		<-f.done
		return f.val, f.err
	}
	f := &inflight{done: make(chan struct{})}
	g.pending[key] = f
	g.mu.Unlock()

	f.val, f.err = fn()

	g.mu.Lock()
	delete(g.pending, key)
	g.mu.Unlock()
	close(f.done)

	return f.val, f.err
}
