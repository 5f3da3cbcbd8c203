package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntervalTrigger(t *testing.T) {
	trigger := IntervalTrigger(time.Minute)
	now := time.Date(2024, 1, 1, 10, 15, 30, 0, time.UTC)

	assert.Equal(t, now.Add(time.Minute), trigger.Next(now))
}

func TestCronTriggerHourly(t *testing.T) {
	trigger, err := NewCronTrigger("0 * * * *")
	require.NoError(t, err)

	now := time.Date(2024, 1, 1, 10, 15, 30, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC), trigger.Next(now))
}

func TestCronTriggerDailyAtHour(t *testing.T) {
	trigger, err := NewCronTrigger("0 3 * * *")
	require.NoError(t, err)

	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 1, 2, 3, 0, 0, 0, time.UTC), trigger.Next(now))
}

func TestCronTriggerInvalid(t *testing.T) {
	_, err := NewCronTrigger("not a cron spec")
	assert.Error(t, err)
}

func TestSchedulerRunsJob(t *testing.T) {
	s := New()

	var runs atomic.Int32

	require.NoError(t, s.AddJob("tick", IntervalTrigger(10*time.Millisecond), func(context.Context) error {
		runs.Add(1)
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)

	assert.Eventually(t, func() bool {
		return runs.Load() >= 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	s.Stop()
}

func TestSchedulerJobErrorDoesNotStopSchedule(t *testing.T) {
	s := New()

	var runs atomic.Int32

	require.NoError(t, s.AddJob("flaky", IntervalTrigger(10*time.Millisecond), func(context.Context) error {
		runs.Add(1)
		return errors.New("boom")
	}))

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)

	assert.Eventually(t, func() bool {
		return runs.Load() >= 3
	}, time.Second, 5*time.Millisecond)

	cancel()
	s.Stop()
}

func TestAddJobAfterStart(t *testing.T) {
	s := New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.Start(ctx)

	err := s.AddJob("late", IntervalTrigger(time.Minute), func(context.Context) error { return nil })
	assert.Error(t, err)

	cancel()
	s.Stop()
}
