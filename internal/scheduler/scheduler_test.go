package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pentedigital/extrashifty/internal/clock"
)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	require.True(t, cond(), "condition not met within %s", timeout)
}

func TestScheduler_RunsOnStartup(t *testing.T) {
	var runs atomic.Int32
	task := &Task{
		Name:         "startup_task",
		Interval:     time.Hour,
		RunOnStartup: true,
		Handler: func(ctx context.Context) error {
			runs.Add(1)
			return nil
		},
	}
	s := New([]*Task{task}, clock.Real{}, nil)
	s.Start(context.Background())
	defer s.Stop()

	waitFor(t, time.Second, func() bool { return runs.Load() == 1 })
	_, ran := task.LastRun()
	assert.True(t, ran)
}

func TestScheduler_RunsOnInterval(t *testing.T) {
	var runs atomic.Int32
	task := &Task{
		Name:     "interval_task",
		Interval: 10 * time.Millisecond,
		Handler: func(ctx context.Context) error {
			runs.Add(1)
			return nil
		},
	}
	s := New([]*Task{task}, clock.Real{}, nil)
	s.Start(context.Background())
	defer s.Stop()

	waitFor(t, time.Second, func() bool { return runs.Load() >= 3 })
}

func TestScheduler_SkipsOverlappingTick(t *testing.T) {
	var concurrent, maxConcurrent, runs atomic.Int32
	release := make(chan struct{})
	task := &Task{
		Name:     "slow_task",
		Interval: 5 * time.Millisecond,
		Handler: func(ctx context.Context) error {
			n := concurrent.Add(1)
			defer concurrent.Add(-1)
			for {
				if m := maxConcurrent.Load(); n > m {
					if maxConcurrent.CompareAndSwap(m, n) {
						break
					}
					continue
				}
				break
			}
			runs.Add(1)
			<-release
			return nil
		},
	}
	s := New([]*Task{task}, clock.Real{}, nil)
	s.Start(context.Background())

	waitFor(t, time.Second, func() bool { return runs.Load() >= 1 })
	time.Sleep(50 * time.Millisecond) // several ticks would have fired if not skipped
	close(release)
	s.Stop()

	assert.Equal(t, int32(1), maxConcurrent.Load())
}

func TestScheduler_HandlerErrorDoesNotStopLoop(t *testing.T) {
	var runs atomic.Int32
	task := &Task{
		Name:     "failing_task",
		Interval: 10 * time.Millisecond,
		Handler: func(ctx context.Context) error {
			runs.Add(1)
			return errors.New("boom")
		},
	}
	s := New([]*Task{task}, clock.Real{}, nil)
	s.Start(context.Background())
	defer s.Stop()

	waitFor(t, time.Second, func() bool { return runs.Load() >= 3 })
	_, ran := task.LastRun()
	assert.False(t, ran, "lastRun should never be set by a failing handler")
}

func TestScheduler_PanicIsRecovered(t *testing.T) {
	var runs atomic.Int32
	task := &Task{
		Name:     "panicking_task",
		Interval: 10 * time.Millisecond,
		Handler: func(ctx context.Context) error {
			runs.Add(1)
			panic("kaboom")
		},
	}
	s := New([]*Task{task}, clock.Real{}, nil)
	s.Start(context.Background())
	defer s.Stop()

	waitFor(t, time.Second, func() bool { return runs.Load() >= 2 })
}

func TestScheduler_StopTerminatesAllLoops(t *testing.T) {
	var runs atomic.Int32
	task := &Task{
		Name:     "stoppable_task",
		Interval: 5 * time.Millisecond,
		Handler: func(ctx context.Context) error {
			runs.Add(1)
			return nil
		},
	}
	s := New([]*Task{task}, clock.Real{}, nil)
	s.Start(context.Background())
	waitFor(t, time.Second, func() bool { return runs.Load() >= 1 })

	s.Stop()
	afterStop := runs.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, afterStop, runs.Load())
}
