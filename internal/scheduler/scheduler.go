// Package scheduler runs recurring tasks on their own interval. A lease lock
// keyed by task name keeps concurrent instances from running the same task at
// the same time; tasks must still be idempotent because leases can expire.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"adspace-booking/internal/lock"

	"go.uber.org/zap"
)

type Task struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

type Scheduler struct {
	locker lock.Locker
	log    *zap.Logger
	tasks  []Task
	wg     sync.WaitGroup
}

func New(locker lock.Locker, log *zap.Logger) *Scheduler {
	return &Scheduler{
		locker: locker,
		log:    log.With(zap.String("component", "scheduler")),
	}
}

func (s *Scheduler) Register(task Task) {
	s.tasks = append(s.tasks, task)
}

// Start launches one goroutine per task. Each runs once immediately and then on
// every tick until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	for _, task := range s.tasks {
		s.wg.Add(1)
		go s.loop(ctx, task)
	}
	s.log.Info("Scheduler started", zap.Int("tasks", len(s.tasks)))
}

// Wait blocks until every task loop has returned.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, task Task) {
	defer s.wg.Done()

	ticker := time.NewTicker(task.Interval)
	defer ticker.Stop()

	s.RunOnce(ctx, task)
	for {
		select {
		case <-ctx.Done():
			s.log.Info("Task stopped", zap.String("task", task.Name))
			return
		case <-ticker.C:
			s.RunOnce(ctx, task)
		}
	}
}

// RunOnce runs task under its lease. It reports whether the task ran.
func (s *Scheduler) RunOnce(ctx context.Context, task Task) bool {
	ttl := task.Interval
	if ttl <= 0 {
		ttl = time.Minute
	}

	lease, err := s.locker.Acquire(ctx, lock.TaskKey(task.Name), ttl)
	if errors.Is(err, lock.ErrNotAcquired) {
		s.log.Debug("Task held by another instance", zap.String("task", task.Name))
		return false
	}
	if err != nil {
		s.log.Error("Failed to acquire task lease", zap.String("task", task.Name), zap.Error(err))
		return false
	}
	defer func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			s.log.Warn("Failed to release task lease", zap.String("task", task.Name), zap.Error(err))
		}
	}()

	start := time.Now()
	if err := task.Run(ctx); err != nil {
		s.log.Error("Task failed", zap.String("task", task.Name), zap.Error(err))
		return true
	}
	s.log.Debug("Task finished", zap.String("task", task.Name), zap.Duration("took", time.Since(start)))
	return true
}
