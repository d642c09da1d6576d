package driven

import (
	"context"

	"github.com/custodia-labs/sweep/internal/core/domain"
)

// SchedulerStore keeps the state of the maintenance tasks (webhook renewal,
// token refresh, state sweep) so a restart resumes their schedule instead
// of running everything at once.
type SchedulerStore interface {
	// GetTask returns nil and no error for a task never saved.
	GetTask(ctx context.Context, taskID string) (*domain.ScheduledTask, error)

	// ListTasks returns every task ordered by ID.
	ListTasks(ctx context.Context) ([]domain.ScheduledTask, error)

	// SaveTask upserts by ID, including the task's look-ahead window.
	SaveTask(ctx context.Context, task *domain.ScheduledTask) error

	// RecordResult appends one run to the task's history.
	RecordResult(ctx context.Context, result *domain.TaskResult) error

	// GetTaskHistory returns up to limit runs, newest first.
	GetTaskHistory(ctx context.Context, taskID string, limit int) ([]domain.TaskResult, error)

	// PruneHistory keeps the newest keep runs of each task.
	PruneHistory(ctx context.Context, keep int) error
}
