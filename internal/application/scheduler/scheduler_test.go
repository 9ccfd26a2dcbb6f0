package scheduler_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sgmartin/ltdbot/internal/application/scheduler"
)

func TestRunNow_RetriesWhileLocked(t *testing.T) {
	var calls int32
	job := func(context.Context) (int, error) {
		if atomic.AddInt32(&calls, 1) < 3 {
			return 0, errors.New("database is locked")
		}
		return 7, nil
	}

	s := scheduler.New("test", job, scheduler.Config{
		Interval:     time.Hour,
		MaxAttempts:  5,
		RetryBackoff: time.Millisecond,
	})

	n, err := s.RunNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestRunNow_GivesUpAfterMaxAttempts(t *testing.T) {
	var calls int32
	job := func(context.Context) (int, error) {
		atomic.AddInt32(&calls, 1)
		return 0, errors.New("database is locked")
	}

	s := scheduler.New("test", job, scheduler.Config{
		Interval:     time.Hour,
		MaxAttempts:  3,
		RetryBackoff: time.Millisecond,
	})

	_, err := s.RunNow(context.Background())
	require.Error(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestRunNow_NonBusyErrorNotRetried(t *testing.T) {
	var calls int32
	job := func(context.Context) (int, error) {
		atomic.AddInt32(&calls, 1)
		return 0, errors.New("catalogue unreachable")
	}

	s := scheduler.New("test", job, scheduler.Config{
		Interval:     time.Hour,
		MaxAttempts:  5,
		RetryBackoff: time.Millisecond,
	})

	_, err := s.RunNow(context.Background())
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "only busy errors retry")
}

func TestStartStop_Idempotent(t *testing.T) {
	var calls int32
	job := func(context.Context) (int, error) {
		atomic.AddInt32(&calls, 1)
		return 0, nil
	}

	s := scheduler.New("test", job, scheduler.Config{Interval: time.Hour})

	ctx := context.Background()
	s.Start(ctx)
	s.Start(ctx) // second start is a no-op

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&calls) == 1
	}, time.Second, 5*time.Millisecond, "exactly one immediate run")

	s.Stop(time.Second)
	s.Stop(time.Second) // second stop is a no-op

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestStop_CancelsRunningJob(t *testing.T) {
	started := make(chan struct{})
	job := func(ctx context.Context) (int, error) {
		close(started)
		<-ctx.Done()
		return 0, ctx.Err()
	}

	s := scheduler.New("test", job, scheduler.Config{Interval: time.Hour})
	s.Start(context.Background())

	<-started
	done := make(chan struct{})
	go func() {
		s.Stop(time.Second)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not join the running job")
	}
}
