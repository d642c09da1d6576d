package domain

import "time"

// ScheduledTask represents a recurring background task.
type ScheduledTask struct {
	// ID is the unique identifier for the task.
	ID string

	// Name is a human-readable name for the task.
	Name string

	// Interval defines how often the task should run.
	Interval time.Duration

	// Window is how far ahead the task looks for expiring tokens or webhooks.
	Window time.Duration

	// LastRun is when the task last ran.
	LastRun time.Time

	// NextRun is when the task should run next.
	NextRun time.Time

	// LastError contains the last error message, if any.
	LastError string

	// LastSuccess is when the task last completed successfully.
	LastSuccess time.Time

	// Enabled indicates whether the task is active.
	Enabled bool
}

// TaskResult represents the outcome of a task execution.
type TaskResult struct {
	TaskID    string
	StartedAt time.Time
	EndedAt   time.Time
	Success   bool
	Error     string

	// ItemsProcessed counts integrations refreshed, webhooks renewed
	// or states swept.
	ItemsProcessed int
}

// SchedulerConfig holds scheduler configuration.
type SchedulerConfig struct {
	// Enabled is the master switch for the scheduler.
	Enabled bool

	// TaskConfigs holds per-task configuration.
	TaskConfigs map[string]TaskConfig
}

// TaskConfig holds configuration for a single task.
type TaskConfig struct {
	Enabled  bool
	Interval time.Duration
	Window   time.Duration
}

// GetTaskConfig returns the configuration for a specific task.
// Returns a zero TaskConfig if the task is not configured.
func (c *SchedulerConfig) GetTaskConfig(taskID string) TaskConfig {
	if c.TaskConfigs == nil {
		return TaskConfig{}
	}
	return c.TaskConfigs[taskID]
}

// DefaultSchedulerConfig returns sensible defaults for the scheduler.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Enabled: true,
		TaskConfigs: map[string]TaskConfig{
			TaskIDWebhookRenewal: {
				Enabled:  true,
				Interval: time.Hour,
				Window:   24 * time.Hour,
			},
			TaskIDTokenRefresh: {
				Enabled:  true,
				Interval: 5 * time.Minute,
				Window:   10 * time.Minute,
			},
			TaskIDStateSweep: {
				Enabled:  true,
				Interval: time.Minute,
			},
		},
	}
}

// Task IDs for built-in tasks.
const (
	TaskIDWebhookRenewal = "webhook-renewal"
	TaskIDTokenRefresh   = "token-refresh"
	TaskIDStateSweep     = "state-sweep"
)

// TaskNames maps task IDs to display names.
var TaskNames = map[string]string{
	TaskIDWebhookRenewal: "Webhook Renewal",
	TaskIDTokenRefresh:   "Token Refresh",
	TaskIDStateSweep:     "OAuth State Sweep",
}
