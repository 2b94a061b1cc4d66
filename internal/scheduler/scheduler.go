// Package scheduler implements the single-process background task runner
// (spec §4.J): each task runs on its own interval, optionally once at
// startup, and never overlaps itself — generalizing the teacher's
// per-package Timer (internal/escrow/timer.go et al.) into one shared
// runner the whole job table in SPEC_FULL.md registers against.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pentedigital/extrashifty/internal/clock"
)

// Handler is the work a Task performs on each tick.
type Handler func(ctx context.Context) error

// Task describes one scheduled job: a name, an interval, whether it also
// runs immediately on Scheduler.Start, and the handler itself.
type Task struct {
	Name         string
	Interval     time.Duration
	RunOnStartup bool
	Handler      Handler

	running atomic.Bool
	lastRun atomic.Value // time.Time
}

// Scheduler runs a fixed set of Tasks concurrently, each on its own
// ticker. A task that is still running when its next tick fires is
// skipped for that tick rather than queued or run overlapping itself.
// Handler panics and errors are logged; neither stops the loop.
type Scheduler struct {
	tasks  []*Task
	clock  clock.Clock
	logger *slog.Logger

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// New builds a Scheduler over tasks. Task names must be unique; this is
// the caller's responsibility, the same as wiring any other fixed job
// table.
func New(tasks []*Task, clk clock.Clock, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{tasks: tasks, clock: clk, logger: logger}
}

// Start launches every task's loop in its own goroutine. Returns
// immediately; call Stop (or cancel the passed context) to shut down.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for _, t := range s.tasks {
		t := t
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.runLoop(ctx, t)
		}()
	}
}

// Stop cancels every task's loop and blocks until each has exited.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) runLoop(ctx context.Context, t *Task) {
	if t.RunOnStartup {
		s.runOnce(ctx, t)
	}

	ticker := time.NewTicker(t.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx, t)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, t *Task) {
	if !t.running.CompareAndSwap(false, true) {
		s.logger.Warn("scheduler: skipping tick, task still running", "task", t.Name)
		return
	}
	defer t.running.Store(false)

	start := s.clock.Now()
	done := observeJob(t.Name)
	defer done()

	defer func() {
		if r := recover(); r != nil {
			jobPanicsTotal.WithLabelValues(t.Name).Inc()
			s.logger.Error("scheduler: task panicked", "task", t.Name, "panic", fmt.Sprint(r))
		}
	}()

	s.logger.Info("scheduler: task starting", "task", t.Name)
	if err := t.Handler(ctx); err != nil {
		jobErrorsTotal.WithLabelValues(t.Name).Inc()
		s.logger.Error("scheduler: task failed", "task", t.Name, "error", err)
		return
	}
	t.lastRun.Store(start)
	s.logger.Info("scheduler: task completed", "task", t.Name, "elapsed", s.clock.Now().Sub(start))
}

// LastRun returns the start time of t's most recent successful run, and
// whether it has run at least once.
func (t *Task) LastRun() (time.Time, bool) {
	v := t.lastRun.Load()
	if v == nil {
		return time.Time{}, false
	}
	return v.(time.Time), true
}
