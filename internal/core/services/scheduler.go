package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/custodia-labs/sweep/internal/core/domain"
	"github.com/custodia-labs/sweep/internal/core/ports/driven"
	"github.com/custodia-labs/sweep/internal/core/ports/driving"
	"github.com/custodia-labs/sweep/internal/metrics"
)

// Ensure Scheduler implements the interface.
var _ driving.Scheduler = (*Scheduler)(nil)

// DefaultTick is how often the scheduler looks for due tasks.
const DefaultTick = 15 * time.Second

// historyKeep is the number of results retained per task.
const historyKeep = 100

// StateSweeper removes expired OAuth states.
type StateSweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// Scheduler manages background task execution.
// It is a pure core service with no external control API.
type Scheduler struct {
	config       domain.SchedulerConfig
	store        driven.SchedulerStore
	integrations driving.IntegrationService
	states       StateSweeper
	logger       *zap.Logger
	tick         time.Duration
	now          func() time.Time

	mu       sync.Mutex
	running  bool
	inFlight map[string]bool
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewScheduler creates a scheduler with configuration.
func NewScheduler(
	config domain.SchedulerConfig,
	store driven.SchedulerStore,
	integrations driving.IntegrationService,
	states StateSweeper,
	logger *zap.Logger,
) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		config:       config,
		store:        store,
		integrations: integrations,
		states:       states,
		logger:       logger.Named("scheduler"),
		tick:         DefaultTick,
		now:          time.Now,
		inFlight:     make(map[string]bool),
	}
}

// Start begins the scheduler loop. This method blocks until Stop is called
// or ctx ends.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.stopCh = make(chan struct{})
	stopCh := s.stopCh
	s.mu.Unlock()

	if !s.config.Enabled {
		s.logger.Info("scheduler disabled")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stopCh:
			return nil
		}
	}

	if err := s.initialiseTasks(ctx); err != nil {
		s.logger.Error("failed to initialise tasks", zap.Error(err))
	}

	return s.run(ctx, stopCh)
}

// Stop gracefully shuts down the scheduler and waits for running tasks.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

// initialiseTasks ensures every built-in task exists in the store.
func (s *Scheduler) initialiseTasks(ctx context.Context) error {
	for _, id := range []string{domain.TaskIDWebhookRenewal, domain.TaskIDTokenRefresh, domain.TaskIDStateSweep} {
		cfg := s.config.GetTaskConfig(id)
		if cfg.Interval <= 0 {
			cfg.Enabled = false
		}
		if err := s.ensureTask(ctx, id, domain.TaskNames[id], cfg); err != nil {
			return fmt.Errorf("task %s: %w", id, err)
		}
	}
	return nil
}

// ensureTask creates or updates a task in the store.
func (s *Scheduler) ensureTask(ctx context.Context, id, name string, cfg domain.TaskConfig) error {
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return err
	}

	if task == nil {
		// New tasks run on the first check.
		task = &domain.ScheduledTask{
			ID:       id,
			Name:     name,
			Interval: cfg.Interval,
			Window:   cfg.Window,
			Enabled:  cfg.Enabled,
		}
	} else {
		if task.Interval != cfg.Interval {
			task.Interval = cfg.Interval
			task.NextRun = s.now().Add(cfg.Interval)
		}
		task.Window = cfg.Window
		task.Enabled = cfg.Enabled
	}

	return s.store.SaveTask(ctx, task)
}

// run is the main scheduler loop.
func (s *Scheduler) run(ctx context.Context, stopCh <-chan struct{}) error {
	s.checkAndRunDueTasks(ctx)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stopCh:
			return nil
		case <-ticker.C:
			s.checkAndRunDueTasks(ctx)
		}
	}
}

// checkAndRunDueTasks finds and executes tasks that are due.
func (s *Scheduler) checkAndRunDueTasks(ctx context.Context) {
	tasks, err := s.store.ListTasks(ctx)
	if err != nil {
		s.logger.Error("failed to list tasks", zap.Error(err))
		return
	}

	now := s.now()
	for i := range tasks {
		task := tasks[i]
		if !task.Enabled {
			continue
		}
		if task.NextRun.IsZero() || !task.NextRun.After(now) {
			s.runTask(ctx, &task)
		}
	}
}

// runTask executes a single task unless a previous run is still going.
func (s *Scheduler) runTask(ctx context.Context, task *domain.ScheduledTask) {
	s.mu.Lock()
	if s.inFlight[task.ID] {
		s.mu.Unlock()
		return
	}
	s.inFlight[task.ID] = true
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.inFlight, task.ID)
			s.mu.Unlock()
		}()

		result := &domain.TaskResult{
			TaskID:    task.ID,
			StartedAt: s.now(),
		}

		var err error
		switch task.ID {
		case domain.TaskIDWebhookRenewal:
			result.ItemsProcessed, err = s.integrations.RenewWebhooks(ctx, task.Window)
		case domain.TaskIDTokenRefresh:
			result.ItemsProcessed, err = s.integrations.RefreshExpiring(ctx, task.Window)
		case domain.TaskIDStateSweep:
			result.ItemsProcessed, err = s.states.Sweep(ctx)
		default:
			s.logger.Warn("unknown task", zap.String("task", task.ID))
			return
		}
		metrics.RecordTaskRun(task.ID, err)

		result.EndedAt = s.now()
		if err != nil {
			result.Error = err.Error()
			task.LastError = err.Error()
			s.logger.Warn("task failed", zap.String("task", task.ID), zap.Error(err))
		} else {
			result.Success = true
			task.LastError = ""
			task.LastSuccess = result.EndedAt
			s.logger.Debug("task completed",
				zap.String("task", task.ID),
				zap.Int("items", result.ItemsProcessed))
		}

		task.LastRun = result.StartedAt
		task.NextRun = result.EndedAt.Add(task.Interval)

		if saveErr := s.store.SaveTask(ctx, task); saveErr != nil {
			s.logger.Error("failed to save task", zap.String("task", task.ID), zap.Error(saveErr))
		}
		if recordErr := s.store.RecordResult(ctx, result); recordErr != nil {
			s.logger.Error("failed to record result", zap.String("task", task.ID), zap.Error(recordErr))
		}
		if pruneErr := s.store.PruneHistory(ctx, historyKeep); pruneErr != nil {
			s.logger.Error("failed to prune history", zap.Error(pruneErr))
		}
	}()
}
