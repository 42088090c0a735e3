package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/arloliu/go-synack/logger"
	"github.com/arloliu/go-synack/runner"
	"github.com/stretchr/testify/require"
)

const (
	tick    = 5 * time.Millisecond
	waitFor = 2 * time.Second
)

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	s := New(ctx, logger.NewNopMockLogger())
	t.Cleanup(func() {
		s.Stop()
		s.Wait()
		cancel()
	})

	return s
}

func TestScheduler_EveryErrors(t *testing.T) {
	require := require.New(t)
	s := newTestScheduler(t)

	require.ErrorIs(s.Every("a", 0, func() bool { return true }, false), ErrInvalidInterval)
	require.ErrorIs(s.Every("a", tick, nil, false), ErrNilTaskFunc)

	require.NoError(s.Every("a", time.Hour, func() bool { return true }, false))
	require.ErrorIs(s.Every("a", time.Hour, func() bool { return true }, false), ErrTaskExists)

	_, err := s.Stats("missing")
	require.ErrorIs(err, ErrTaskNotFound)
	_, err = s.Trigger("missing")
	require.ErrorIs(err, ErrTaskNotFound)
	require.ErrorIs(s.Pause("missing"), ErrTaskNotFound)
	require.ErrorIs(s.Resume("missing"), ErrTaskNotFound)
	require.ErrorIs(s.StopTask("missing"), ErrTaskNotFound)
}

func TestScheduler_TicksUntilFalse(t *testing.T) {
	require := require.New(t)
	s := newTestScheduler(t)

	var calls atomic.Int32
	require.NoError(s.Every("count", tick, func() bool {
		return calls.Add(1) < 3
	}, false))

	require.Eventually(func() bool { return s.TaskCount() == 0 }, waitFor, tick)
	require.Equal(int32(3), calls.Load())

	_, err := s.Stats("count")
	require.ErrorIs(err, ErrTaskNotFound)

	// the name is free again
	require.NoError(s.Every("count", time.Hour, func() bool { return true }, false))
}

func TestScheduler_RunNow(t *testing.T) {
	require := require.New(t)
	s := newTestScheduler(t)

	var calls atomic.Int32
	require.NoError(s.Every("once", time.Hour, func() bool {
		calls.Add(1)
		return false
	}, true))
	require.Equal(int32(1), calls.Load())
	require.Zero(s.TaskCount())

	require.NoError(s.Every("keep", time.Hour, func() bool {
		calls.Add(1)
		return true
	}, true))
	require.Equal(int32(2), calls.Load())
	require.Equal(1, s.TaskCount())

	st, err := s.Stats("keep")
	require.NoError(err)
	require.EqualValues(1, st.Ticks)
}

func TestScheduler_NoOverlap(t *testing.T) {
	require := require.New(t)
	s := newTestScheduler(t)

	started := make(chan struct{}, 1)
	release := make(chan struct{})
	var running, maxRunning atomic.Int32

	require.NoError(s.Every("slow", tick, func() bool {
		n := running.Add(1)
		if n > maxRunning.Load() {
			maxRunning.Store(n)
		}
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		running.Add(-1)

		return true
	}, false))

	select {
	case <-started:
	case <-time.After(waitFor):
		require.FailNow("task never started")
	}

	ran, err := s.Trigger("slow")
	require.NoError(err)
	require.False(ran, "trigger while a tick is in flight must be skipped")

	st, err := s.Stats("slow")
	require.NoError(err)
	require.GreaterOrEqual(st.Skipped, uint64(1))

	close(release)
	require.Eventually(func() bool {
		st, _ := s.Stats("slow")
		return st.Ticks >= 3
	}, waitFor, tick)
	require.Equal(int32(1), maxRunning.Load())
}

func TestScheduler_PauseResume(t *testing.T) {
	require := require.New(t)
	s := newTestScheduler(t)

	var calls atomic.Int32
	require.NoError(s.Every("p", tick, func() bool {
		calls.Add(1)
		return true
	}, false))
	require.Eventually(func() bool { return calls.Load() > 0 }, waitFor, tick)

	require.NoError(s.Pause("p"))
	time.Sleep(2 * tick) // let an in-flight tick finish
	paused := calls.Load()
	time.Sleep(10 * tick)
	require.Equal(paused, calls.Load())

	st, err := s.Stats("p")
	require.NoError(err)
	require.True(st.Paused)
	require.Positive(st.Skipped)

	ran, err := s.Trigger("p")
	require.NoError(err)
	require.False(ran)

	require.NoError(s.Resume("p"))
	require.Eventually(func() bool { return calls.Load() > paused }, waitFor, tick)
}

func TestScheduler_StopAndParentCancel(t *testing.T) {
	require := require.New(t)

	ctx, cancel := context.WithCancel(context.Background())
	s := New(ctx, logger.NewNopMockLogger())

	require.NoError(s.Every("a", tick, func() bool { return true }, false))
	require.NoError(s.Every("b", tick, func() bool { return true }, false))
	require.Equal(2, s.TaskCount())

	require.NoError(s.StopTask("a"))
	require.Eventually(func() bool { return s.TaskCount() == 1 }, waitFor, tick)

	cancel()
	s.Wait()
	require.Zero(s.TaskCount())

	// the parent context is gone, so no new task can start
	require.ErrorIs(s.Every("c", tick, func() bool { return true }, false), ErrStopped)
}

func TestScheduler_StopWaitReuse(t *testing.T) {
	require := require.New(t)
	s := newTestScheduler(t)

	require.NoError(s.Every("a", tick, func() bool { return true }, false))
	s.Stop()
	s.Wait()
	require.Zero(s.TaskCount())

	var calls atomic.Int32
	require.NoError(s.Every("a", tick, func() bool { calls.Add(1); return true }, false))
	require.Eventually(func() bool { return calls.Load() > 0 }, waitFor, tick)
}

func TestScheduler_PanicIsRecovered(t *testing.T) {
	require := require.New(t)
	s := newTestScheduler(t)

	var calls atomic.Int32
	require.NoError(s.Every("boom", tick, func() bool {
		if calls.Add(1) == 1 {
			panic("boom")
		}
		return true
	}, false))

	require.Eventually(func() bool { return calls.Load() >= 3 }, waitFor, tick)
	require.Equal(1, s.TaskCount())
}

func TestScheduler_AutoRunRunner(t *testing.T) {
	require := require.New(t)
	s := newTestScheduler(t)

	r, err := runner.New(runner.WithSeed(7), runner.WithLogger(logger.NewNopMockLogger()))
	require.NoError(err)

	const maxEvents = 25
	require.NoError(s.Every("auto-run", tick, func() bool {
		r.RunRandom()
		return r.Len() < maxEvents
	}, false))

	require.Eventually(func() bool { return s.TaskCount() == 0 }, waitFor, tick)
	require.Equal(maxEvents, r.Len())

	stats := r.Stats()
	require.Equal(maxEvents, stats.Total)
	require.Equal(stats.Total, stats.Pass+stats.Fail)
}

// Run with -race: task startup must not race Wait recreating the context.
func TestScheduler_EveryDuringWait(t *testing.T) {
	s := New(context.Background(), logger.NewNopMockLogger())

	for i := range 200 {
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			err := s.Every(fmt.Sprintf("task-%d", i), time.Millisecond, func() bool { return false }, false)
			if err != nil && !errors.Is(err, ErrStopped) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			s.Stop()
			s.Wait()
		}()
		wg.Wait()
	}

	s.Stop()
	s.Wait()
	require.Zero(t, s.TaskCount())
}
