package usecase_test

import (
	"testing"
	"time"

	"github.com/riskibarqy/fpl-pulse/internal/config"
	"github.com/riskibarqy/fpl-pulse/internal/usecase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCategories() []config.CategoryConfig {
	return []config.CategoryConfig{
		{
			Name:             config.CategoryLivePerformance,
			Interval:         60 * time.Second,
			States:           []string{"live", "upcoming"},
			FixtureDependent: true,
		},
		{
			Name:     config.CategoryStatusChanges,
			Interval: time.Hour,
			States:   []string{"idle", "upcoming", "live", "price_window"},
		},
		{
			Name:     config.CategoryPriceChanges,
			Interval: 5 * time.Minute,
			States:   []string{"price_window"},
		},
		{
			Name:     config.CategoryFinalBonus,
			Interval: time.Hour,
			States:   []string{"idle", "upcoming", "price_window"},
		},
	}
}

func newScheduler(t *testing.T) *usecase.Scheduler {
	t.Helper()
	scheduler, err := usecase.NewScheduler(testCategories(), 60*time.Second, time.Hour, 2*time.Minute)
	require.NoError(t, err)
	return scheduler
}

func TestScheduler_DueAtExactInterval(t *testing.T) {
	scheduler := newScheduler(t)
	start := time.Date(2026, time.March, 7, 2, 0, 0, 0, time.UTC)

	assert.Contains(t, scheduler.Due(start, usecase.GameStatePriceWindow), config.CategoryPriceChanges,
		"never-run category is due immediately")
	scheduler.MarkRun(config.CategoryPriceChanges, start)

	assert.NotContains(t, scheduler.Due(start.Add(299*time.Second), usecase.GameStatePriceWindow),
		config.CategoryPriceChanges, "not due one second before the interval")
	assert.Contains(t, scheduler.Due(start.Add(300*time.Second), usecase.GameStatePriceWindow),
		config.CategoryPriceChanges, "due exactly at the interval")
}

func TestScheduler_StateGating(t *testing.T) {
	scheduler := newScheduler(t)
	now := time.Date(2026, time.March, 7, 12, 0, 0, 0, time.UTC)

	due := scheduler.Due(now, usecase.GameStateLive)
	assert.Contains(t, due, config.CategoryLivePerformance)
	assert.Contains(t, due, config.CategoryStatusChanges)
	assert.NotContains(t, due, config.CategoryPriceChanges)
	assert.NotContains(t, due, config.CategoryFinalBonus, "final sweep waits for the live state to end")

	due = scheduler.Due(now, usecase.GameStateIdle)
	assert.NotContains(t, due, config.CategoryLivePerformance)
	assert.Contains(t, due, config.CategoryFinalBonus)
}

func TestScheduler_PriceLatch(t *testing.T) {
	scheduler := newScheduler(t)
	now := time.Date(2026, time.March, 7, 2, 0, 0, 0, time.UTC)

	scheduler.MarkPriceChangeSeen()
	assert.True(t, scheduler.PriceLatched())
	assert.NotContains(t, scheduler.Due(now, usecase.GameStatePriceWindow), config.CategoryPriceChanges,
		"latched price category stays quiet inside the window")

	// Transitions inside or into the window keep the latch.
	scheduler.HandleTransition(usecase.Transition{From: usecase.GameStateIdle, To: usecase.GameStatePriceWindow})
	assert.True(t, scheduler.PriceLatched())

	// Leaving the window rearms the latch for the next day.
	scheduler.HandleTransition(usecase.Transition{From: usecase.GameStatePriceWindow, To: usecase.GameStateIdle})
	assert.False(t, scheduler.PriceLatched())
	assert.Contains(t, scheduler.Due(now.Add(24*time.Hour), usecase.GameStatePriceWindow), config.CategoryPriceChanges)
}

func TestScheduler_Sleep(t *testing.T) {
	scheduler := newScheduler(t)
	now := time.Date(2026, time.March, 7, 12, 0, 0, 0, time.UTC)

	t.Run("floor clamps short deadlines", func(t *testing.T) {
		scheduler.MarkRun(config.CategoryLivePerformance, now.Add(-50*time.Second))
		sleep := scheduler.Sleep(now, usecase.GameStateLive, time.Time{}, false)
		assert.Equal(t, 60*time.Second, sleep)
	})

	t.Run("ceiling clamps idle stretches", func(t *testing.T) {
		idle := newScheduler(t)
		idle.MarkRun(config.CategoryStatusChanges, now)
		idle.MarkRun(config.CategoryFinalBonus, now)
		sleep := idle.Sleep(now, usecase.GameStateIdle, time.Time{}, false)
		assert.Equal(t, time.Hour, sleep)
	})

	t.Run("kickoff minus lead bounds the sleep", func(t *testing.T) {
		idle := newScheduler(t)
		idle.MarkRun(config.CategoryStatusChanges, now)
		idle.MarkRun(config.CategoryFinalBonus, now)
		kickoff := now.Add(10 * time.Minute)
		sleep := idle.Sleep(now, usecase.GameStateIdle, kickoff, true)
		assert.Equal(t, 8*time.Minute, sleep)
	})
}

func TestNewScheduler_Invalid(t *testing.T) {
	_, err := usecase.NewScheduler(nil, time.Second, time.Minute, time.Minute)
	assert.ErrorIs(t, err, usecase.ErrInvalidInput)

	categories := testCategories()
	categories[0].States = []string{"halftime"}
	_, err = usecase.NewScheduler(categories, time.Second, time.Minute, time.Minute)
	assert.ErrorIs(t, err, usecase.ErrInvalidInput)

	_, err = usecase.NewScheduler(testCategories(), time.Minute, time.Second, time.Minute)
	assert.ErrorIs(t, err, usecase.ErrInvalidInput)
}
