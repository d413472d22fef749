// Package scheduler runs background jobs on cron schedules. Expressions use
// the standard five-field format plus descriptors like "@hourly" and
// "@every 10m".
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/voicegate/internal/logging"
	"github.com/dmitrijs2005/voicegate/internal/server/metrics"
	"github.com/robfig/cron/v3"
)

type task struct {
	name    string
	fn      func(ctx context.Context) error
	lastRun time.Time
}

type Scheduler struct {
	cron   *cron.Cron
	logger logging.Logger

	mu    sync.Mutex
	tasks map[string]*task
}

func New(logger logging.Logger) *Scheduler {
	c := cron.New(cron.WithParser(cron.NewParser(
		cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
	)))
	return &Scheduler{
		cron:   c,
		logger: logger.With("component", "scheduler"),
		tasks:  make(map[string]*task),
	}
}

// Register schedules fn under the given name. A panicking or failing run is
// logged and counted; the schedule keeps firing.
func (s *Scheduler) Register(name, schedule string, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[name]; ok {
		return fmt.Errorf("task %q already registered", name)
	}

	t := &task{name: name, fn: fn}
	if _, err := s.cron.AddFunc(schedule, func() { s.run(t) }); err != nil {
		return fmt.Errorf("error scheduling task %q (%q): %v", name, schedule, err)
	}
	s.tasks[name] = t
	return nil
}

func (s *Scheduler) run(t *task) {
	ctx := context.Background()
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			metrics.RecordSchedulerTask(t.name, "panic", time.Since(start))
			s.logger.Error(ctx, "task panicked", "task", t.name, "panic", r)
		}
	}()

	err := t.fn(ctx)
	duration := time.Since(start)

	s.mu.Lock()
	t.lastRun = start
	s.mu.Unlock()

	if err != nil {
		metrics.RecordSchedulerTask(t.name, "error", duration)
		s.logger.Error(ctx, "task failed", "task", t.name, "error", err)
		return
	}
	metrics.RecordSchedulerTask(t.name, "ok", duration)
	s.logger.Info(ctx, "task finished", "task", t.name, "duration", duration)
}

// Start begins firing schedules in a background goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for running tasks to finish, bounded by ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	stopped := s.cron.Stop()
	select {
	case <-stopped.Done():
	case <-ctx.Done():
		s.logger.Warn(ctx, "shutdown deadline reached with tasks still running")
	}
}

// LastRun reports when the named task last started, or zero if it never ran.
func (s *Scheduler) LastRun(name string) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tasks[name]; ok {
		return t.lastRun
	}
	return time.Time{}
}
