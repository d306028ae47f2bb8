package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIntervalSchedulerRunsImmediately(t *testing.T) {
	t.Parallel()

	s := NewIntervalScheduler(time.Hour)
	ran := make(chan struct{})
	require.NoError(t, s.Start(context.Background(), func(time.Time) {
		select {
		case ran <- struct{}{}:
		default:
		}
	}))

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("first cycle did not run")
	}
	require.NoError(t, s.Stop(context.Background()))
}

func TestIntervalSchedulerStopWaitsForRunningCycle(t *testing.T) {
	t.Parallel()

	s := NewIntervalScheduler(time.Hour)
	release := make(chan struct{})
	var finished atomic.Bool
	require.NoError(t, s.Start(context.Background(), func(time.Time) {
		<-release
		finished.Store(true)
	}))

	go func() {
		time.Sleep(50 * time.Millisecond)
		close(release)
	}()

	require.NoError(t, s.Stop(context.Background()))
	require.True(t, finished.Load(), "Stop returns only after the in-flight cycle ends")

	// a second Stop is a no-op
	require.NoError(t, s.Stop(context.Background()))
}

func TestIntervalSchedulerStopHonoursContext(t *testing.T) {
	t.Parallel()

	s := NewIntervalScheduler(time.Hour)
	block := make(chan struct{})
	t.Cleanup(func() { close(block) })
	require.NoError(t, s.Start(context.Background(), func(time.Time) {
		<-block // a cycle that outlives the caller's patience
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, s.Stop(ctx), context.DeadlineExceeded)
}

func TestIntervalSchedulerStopBeforeStart(t *testing.T) {
	t.Parallel()

	s := NewIntervalScheduler(time.Hour)
	require.NoError(t, s.Stop(context.Background()))
}
