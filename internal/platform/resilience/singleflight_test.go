package resilience

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestSingleFlightCollapsesConcurrentLoads(t *testing.T) {
	var (
		g       SingleFlight
		calls   atomic.Int64
		release = make(chan struct{})
		started = make(chan struct{})
	)

	go func() {
		_, _ = g.Do("bootstrap", func() (any, error) {
			calls.Add(1)
			close(started)
			<-release
			return 42, nil
		})
	}()
	<-started

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			value, err := g.Do("bootstrap", func() (any, error) {
				calls.Add(1)
				return 0, nil
			})
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if value != 42 {
				t.Errorf("expected shared result 42, got %v", value)
			}
		}()
	}

	close(release)
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Fatalf("expected a single upstream call, got %d", got)
	}
}

func TestSingleFlightDistinctKeysRunIndependently(t *testing.T) {
	var g SingleFlight

	a, err := g.Do("fixtures", func() (any, error) { return "a", nil })
	if err != nil || a != "a" {
		t.Fatalf("got (%v, %v)", a, err)
	}
	b, err := g.Do("live", func() (any, error) { return "b", nil })
	if err != nil || b != "b" {
		t.Fatalf("got (%v, %v)", b, err)
	}
}
