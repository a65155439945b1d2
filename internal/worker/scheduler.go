// Package worker runs periodic maintenance in the background.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrShutdownTimeout is returned when tasks don't stop within timeout.
var ErrShutdownTimeout = errors.New("scheduler shutdown timed out")

// Task is a unit of periodic work.
type Task struct {
	Name     string
	Interval time.Duration
	// RunOnStart runs the task once immediately instead of waiting a full interval.
	RunOnStart bool
	Run        func(ctx context.Context) error
}

// Scheduler runs each task on its own ticker until stopped.
type Scheduler struct {
	tasks  []Task
	logger *slog.Logger

	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	mu      sync.Mutex
	started bool
}

// NewScheduler creates a scheduler. Tasks with a non-positive interval are
// dropped so a zero config value disables them.
func NewScheduler(logger *slog.Logger, tasks ...Task) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
	for _, t := range tasks {
		if t.Interval <= 0 || t.Run == nil {
			logger.Debug("maintenance task disabled", "task", t.Name)
			continue
		}
		s.tasks = append(s.tasks, t)
	}
	return s
}

// Tasks returns the names of the scheduled tasks.
func (s *Scheduler) Tasks() []string {
	names := make([]string, len(s.tasks))
	for i, t := range s.tasks {
		names[i] = t.Name
	}
	return names
}

// Start launches one goroutine per task. Calling Start twice is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true

	s.logger.Info("starting maintenance scheduler", "tasks", len(s.tasks))
	for _, t := range s.tasks {
		s.wg.Add(1)
		go s.loop(t)
	}
}

// Stop cancels all tasks and waits for them to return.
func (s *Scheduler) Stop(timeout time.Duration) error {
	s.logger.Info("stopping maintenance scheduler")
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("maintenance scheduler stopped gracefully")
		return nil
	case <-time.After(timeout):
		return ErrShutdownTimeout
	}
}

func (s *Scheduler) loop(t Task) {
	defer s.wg.Done()

	logger := s.logger.With("task", t.Name)
	logger.Debug("task started", "interval", t.Interval)

	if t.RunOnStart {
		s.runOnce(logger, t)
	}

	ticker := time.NewTicker(t.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			logger.Debug("task stopping")
			return
		case <-ticker.C:
			s.runOnce(logger, t)
		}
	}
}

func (s *Scheduler) runOnce(logger *slog.Logger, t Task) {
	if s.ctx.Err() != nil {
		return
	}
	start := time.Now()
	if err := t.Run(s.ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		logger.Error("maintenance task failed", "error", err, "duration", time.Since(start))
		return
	}
	logger.Debug("maintenance task completed", "duration", time.Since(start))
}

// SessionSweeper removes expired export sessions.
type SessionSweeper interface {
	CleanupExpiredSessions(ctx context.Context) bool
}

// EventCleaner removes notifications past their retention.
type EventCleaner interface {
	CleanupOldEvents(ctx context.Context) error
}

// SessionSweepTask periodically removes an expired export session.
func SessionSweepTask(sweeper SessionSweeper, interval time.Duration) Task {
	return Task{
		Name:       "session-sweep",
		Interval:   interval,
		RunOnStart: true,
		Run: func(ctx context.Context) error {
			sweeper.CleanupExpiredSessions(ctx)
			return nil
		},
	}
}

// EventCleanupTask periodically applies notification retention.
func EventCleanupTask(cleaner EventCleaner, interval time.Duration) Task {
	return Task{
		Name:     "event-cleanup",
		Interval: interval,
		Run:      cleaner.CleanupOldEvents,
	}
}
