package resilience

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by Allow while the breaker is cooling down
// or its probe budget is spent.
var ErrCircuitOpen = errors.New("circuit breaker is open")

type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerProbing
)

func (s breakerState) String() string {
	switch s {
	case breakerOpen:
		return "open"
	case breakerProbing:
		return "probing"
	default:
		return "closed"
	}
}

// CircuitBreaker trips after a run of consecutive upstream failures and
// rejects requests for a cooldown period. Once the cooldown elapses a
// bounded number of probes may pass: the first success closes the
// breaker, any failure re-opens it. The monitor loop is effectively the
// only caller per endpoint, so the accounting stays small.
type CircuitBreaker struct {
	mu sync.Mutex

	threshold   int
	cooldown    time.Duration
	probeBudget int

	state    breakerState
	failures int
	openedAt time.Time
	probes   int
	now      func() time.Time
}

func NewCircuitBreaker(failureThreshold int, openTimeout time.Duration, halfOpenMaxReq int) *CircuitBreaker {
	if failureThreshold < 1 {
		failureThreshold = 1
	}
	if openTimeout <= 0 {
		openTimeout = 15 * time.Second
	}
	if halfOpenMaxReq < 1 {
		halfOpenMaxReq = 1
	}

	return &CircuitBreaker{
		threshold:   failureThreshold,
		cooldown:    openTimeout,
		probeBudget: halfOpenMaxReq,
		now:         time.Now,
	}
}

// Allow reports whether a request may proceed right now. A nil return
// must be followed by exactly one RecordSuccess or RecordFailure.
func (b *CircuitBreaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case breakerOpen:
		if b.now().Sub(b.openedAt) < b.cooldown {
			return ErrCircuitOpen
		}
		b.state = breakerProbing
		b.probes = 0
		fallthrough
	case breakerProbing:
		if b.probes >= b.probeBudget {
			return ErrCircuitOpen
		}
		b.probes++
	}

	return nil
}

func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == breakerProbing {
		b.state = breakerClosed
	}
	b.failures = 0
}

func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case breakerProbing:
		b.trip()
	case breakerClosed:
		b.failures++
		if b.failures >= b.threshold {
			b.trip()
		}
	case breakerOpen:
		// Stragglers admitted before the trip extend the cooldown.
		b.openedAt = b.now()
	}
}

// State names the current state for log lines.
func (b *CircuitBreaker) State() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == breakerOpen && b.now().Sub(b.openedAt) >= b.cooldown {
		return breakerProbing.String()
	}
	return b.state.String()
}

func (b *CircuitBreaker) trip() {
	b.state = breakerOpen
	b.failures = 0
	b.probes = 0
	b.openedAt = b.now()
}
