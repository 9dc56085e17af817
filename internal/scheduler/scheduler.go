// Package scheduler runs the periodic maintenance tasks (throttle reset,
// profile verification) on cron schedules with a seconds field, e.g.
// "0 0 3 * * *" for daily at 3am.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/venicegeo/pz-idam/internal/logging"
)

// Task is one unit of scheduled work.
type Task func(ctx context.Context) error

// Scheduler runs named tasks on cron schedules. A task still running when
// its next tick arrives is skipped for that tick.
type Scheduler struct {
	cron    *cron.Cron
	mu      sync.Mutex
	entries map[string]cron.EntryID
	running bool
}

// New creates an idle scheduler.
func New() *Scheduler {
	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.Recover(cronLogger{}), cron.SkipIfStillRunning(cronLogger{})),
		),
		entries: make(map[string]cron.EntryID),
	}
}

// Add registers task under name. An empty schedule disables the task. The
// task receives ctx on every run.
func (s *Scheduler) Add(ctx context.Context, name, schedule string, task Task) error {
	if schedule == "" {
		logging.Infof("Schedule for %s not configured, skipping", name)
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[name]; exists {
		return fmt.Errorf("task %s already scheduled", name)
	}

	id, err := s.cron.AddFunc(schedule, func() {
		s.run(ctx, name, task)
	})
	if err != nil {
		return fmt.Errorf("invalid cron schedule %q for %s: %w", schedule, name, err)
	}
	s.entries[name] = id

	logging.Infow("scheduled task", "task", name, "schedule", schedule)
	return nil
}

func (s *Scheduler) run(ctx context.Context, name string, task Task) {
	start := time.Now()
	logging.Infof("Starting scheduled %s", name)

	if err := task(ctx); err != nil {
		logging.Errorf("Scheduled %s failed: %v", name, err)
		return
	}
	logging.Infof("Scheduled %s completed in %s", name, time.Since(start).Round(time.Millisecond))
}

// Start begins running scheduled tasks. The scheduler stops when ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.cron.Start()
	s.running = true

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
}

// Stop stops the scheduler and waits for running tasks to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	s.running = false
	logging.Infof("Scheduler stopped")
}

// IsRunning reports whether the scheduler has been started and not stopped.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns the next time the named task fires.
func (s *Scheduler) NextRun(name string) (time.Time, bool) {
	s.mu.Lock()
	id, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}

	entry := s.cron.Entry(id)
	if !entry.Valid() || entry.Next.IsZero() {
		return time.Time{}, false
	}
	return entry.Next, true
}

// cronLogger routes the cron library's own messages to the zap logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	logging.Debugw("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	logging.Errorw("cron: "+msg, append(keysAndValues, "error", err)...)
}
