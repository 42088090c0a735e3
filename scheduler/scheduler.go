// Package scheduler runs periodic test drivers, such as the auto-run mode that submits one
// randomized event per tick.
//
// Each task owns one goroutine and one ticker. A tick calls the task function synchronously,
// so two ticks of the same task never overlap. Manual triggers share the same in-flight
// guard: a trigger that arrives while a tick is running is skipped, not queued.
//
// Example Usage:
//
//	sched := scheduler.New(ctx, logger)
//
//	// one randomized event per second
//	sched.Every("auto-run", time.Second, func() bool {
//	    r.RunRandom()
//	    return true // return false to end the task
//	}, false)
//
//	// ... later
//	sched.Stop()
//	sched.Wait()
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/arloliu/go-synack/logger"
)

var (
	// ErrInvalidInterval indicates a non-positive tick interval.
	ErrInvalidInterval = errors.New("invalid interval, should be greater than 0")

	// ErrTaskExists indicates that a task with the same name is already scheduled.
	ErrTaskExists = errors.New("task already exists")

	// ErrTaskNotFound indicates that no task with the given name is scheduled.
	ErrTaskNotFound = errors.New("task not found")

	// ErrStopped indicates that the scheduler was stopped and does not accept new tasks.
	ErrStopped = errors.New("scheduler already stopped")

	// ErrNilTaskFunc indicates that a nil task function was provided.
	ErrNilTaskFunc = errors.New("task function is nil")
)

// TaskFunc is called on every tick. It should return true to keep the task scheduled, or
// false to end it.
type TaskFunc func() bool

// TaskStats are the counters of one task.
type TaskStats struct {
	// Ticks is the number of completed calls of the task function.
	Ticks uint64
	// Skipped is the number of ticks or triggers dropped because a call was in flight
	// or the task was paused.
	Skipped uint64
	// Paused reports whether the task is currently paused.
	Paused bool
}

type task struct {
	name     string
	interval time.Duration
	fn       TaskFunc
	ticker   *time.Ticker
	stop     chan struct{}
	stopOnce sync.Once
	inFlight atomic.Bool
	paused   atomic.Bool
	ticks    atomic.Uint64
	skipped  atomic.Uint64
}

func (t *task) halt() {
	t.stopOnce.Do(func() {
		t.ticker.Stop()
		close(t.stop)
	})
}

// Scheduler manages the lifecycle of periodic tasks.
//
// The Scheduler uses a context.Context to manage its goroutines. Cancelling the parent
// context or calling Stop ends every task; Wait blocks until all of them have returned.
type Scheduler struct {
	pctx   context.Context
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger logger.Logger
	count  atomic.Int32
	tasks  *xsync.MapOf[string, *task]
	mu     sync.RWMutex // protect ctx and cancel
	taskMu sync.RWMutex // protect task startup during Wait()
}

// New creates a Scheduler with ctx as its parent context.
func New(ctx context.Context, l logger.Logger) *Scheduler {
	if l == nil {
		l = logger.GetLogger()
	}

	s := &Scheduler{
		pctx:   ctx,
		logger: l.With("component", "scheduler"),
		tasks:  xsync.NewMapOf[string, *task](),
	}
	s.ctx, s.cancel = context.WithCancel(ctx)

	return s
}

func (s *Scheduler) getContext() context.Context {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.ctx
}

// Every schedules fn under name, called once per interval.
// If runNow is true, fn is called once on the caller's goroutine before Every returns; if that
// call returns false the task is not scheduled.
func (s *Scheduler) Every(name string, interval time.Duration, fn TaskFunc, runNow bool) error {
	s.logger.Debug("schedule task", "name", name, "interval", interval, "runNow", runNow)

	if interval <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidInterval, interval)
	}
	if fn == nil {
		return ErrNilTaskFunc
	}

	ctx := s.getContext()
	select {
	case <-ctx.Done():
		return ErrStopped
	default:
	}

	t := &task{
		name:     name,
		interval: interval,
		fn:       fn,
		ticker:   time.NewTicker(interval),
		stop:     make(chan struct{}),
	}

	if _, loaded := s.tasks.LoadOrStore(name, t); loaded {
		t.ticker.Stop()
		return fmt.Errorf("%w: %s", ErrTaskExists, name)
	}

	if runNow {
		if ran, keep := s.run(t); ran && !keep {
			s.removeTask(t)
			s.logger.Debug("task terminated by runNow", "name", name)

			return nil
		}
	}

	return s.start(t)
}

// start launches the goroutine of t unless the scheduler was stopped in the meantime.
func (s *Scheduler) start(t *task) error {
	s.taskMu.RLock()
	defer s.taskMu.RUnlock()

	ctx := s.getContext()
	select {
	case <-ctx.Done():
		s.removeTask(t)
		return ErrStopped
	default:
	}

	s.wg.Add(1)
	s.count.Add(1)

	go s.loop(ctx, t)

	return nil
}

// Trigger calls the task function of name immediately on the caller's goroutine.
// It returns false without calling it when a tick is in flight or the task is paused.
func (s *Scheduler) Trigger(name string) (bool, error) {
	t, ok := s.tasks.Load(name)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrTaskNotFound, name)
	}

	ran, keep := s.run(t)
	if ran && !keep {
		s.removeTask(t)
	}

	return ran, nil
}

// Pause suspends ticks of name until Resume. Ticks that fire while paused are skipped.
func (s *Scheduler) Pause(name string) error {
	t, ok := s.tasks.Load(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, name)
	}
	t.paused.Store(true)
	s.logger.Debug("task paused", "name", name)

	return nil
}

// Resume resumes ticks of a paused task.
func (s *Scheduler) Resume(name string) error {
	t, ok := s.tasks.Load(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, name)
	}
	t.paused.Store(false)
	s.logger.Debug("task resumed", "name", name)

	return nil
}

// StopTask ends the task with the given name.
func (s *Scheduler) StopTask(name string) error {
	t, ok := s.tasks.Load(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, name)
	}
	s.removeTask(t)

	return nil
}

// Stats returns the counters of the task with the given name.
func (s *Scheduler) Stats(name string) (TaskStats, error) {
	t, ok := s.tasks.Load(name)
	if !ok {
		return TaskStats{}, fmt.Errorf("%w: %s", ErrTaskNotFound, name)
	}

	return TaskStats{
		Ticks:   t.ticks.Load(),
		Skipped: t.skipped.Load(),
		Paused:  t.paused.Load(),
	}, nil
}

// Stop signals every task to end.
func (s *Scheduler) Stop() {
	s.tasks.Range(func(_ string, t *task) bool {
		t.halt()
		return true
	})

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()
}

// Wait waits for all task goroutines to return, then makes the scheduler reusable.
func (s *Scheduler) Wait() {
	s.taskMu.Lock()
	defer s.taskMu.Unlock()

	s.wg.Wait()

	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(s.pctx)
	s.mu.Unlock()
}

// TaskCount returns the number of running task goroutines.
func (s *Scheduler) TaskCount() int {
	return int(s.count.Load())
}

func (s *Scheduler) removeTask(t *task) {
	s.compareAndDelete(t)
	t.halt()
}

// compareAndDelete removes t from the registry only if it is still the task registered under its name.
func (s *Scheduler) compareAndDelete(t *task) {
	s.tasks.Compute(t.name, func(old *task, loaded bool) (*task, bool) {
		if loaded && old == t {
			return nil, true
		}
		return old, !loaded
	})
}

func (s *Scheduler) loop(ctx context.Context, t *task) {
	defer func() {
		s.compareAndDelete(t)
		t.halt()
		s.count.Add(-1)
		s.wg.Done()
		s.logger.Debug("task terminated", "name", t.name, "task_count", s.TaskCount())
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.stop:
			return
		case <-t.ticker.C:
			if t.paused.Load() {
				t.skipped.Add(1)
				continue
			}
			if ran, keep := s.run(t); ran && !keep {
				return
			}
		}
	}
}

// run calls the task function unless a call is already in flight.
// ran reports whether fn was called, keep is its result.
func (s *Scheduler) run(t *task) (ran bool, keep bool) {
	if t.paused.Load() || !t.inFlight.CompareAndSwap(false, true) {
		t.skipped.Add(1)
		s.logger.Warn("tick skipped", "name", t.name, "paused", t.paused.Load())

		return false, true
	}
	defer t.inFlight.Store(false)

	keep = s.callWithRecover(t)
	t.ticks.Add(1)

	return true, keep
}

// callWithRecover calls the task function with panic protection. A panicking task keeps
// its schedule.
func (s *Scheduler) callWithRecover(t *task) (keep bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic in task", "name", t.name, "panic", r)
			keep = true
		}
	}()

	return t.fn()
}
