package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/agenthost/agenthost/internal/types"
)

// Manager exposes the user-facing schedule CRUD surface from spec §4.3,
// layered over Store so each mutation is atomic against the schedule file
// and recorded in the append-only operation log.
type Manager struct {
	store *Store
}

// NewManager wraps a Store with the create/update/delete/enable/disable/
// reset operations.
func NewManager(store *Store) *Manager {
	return &Manager{store: store}
}

// Create validates and persists a new ScheduledTask.
func (m *Manager) Create(ctx context.Context, task *types.ScheduledTask) error {
	if !types.ValidScheduledTaskID(string(task.TaskID)) {
		return types.ErrInvalidTaskID
	}
	if _, err := m.store.Get(ctx, task.UserID, task.TaskID); err == nil {
		return types.ErrDuplicateTaskID
	} else if err != types.ErrNotFound {
		return err
	}
	if err := validateRecurrence(task); err != nil {
		return err
	}
	task.CreatedAt = time.Now()

	if err := m.store.Put(ctx, task); err != nil {
		return err
	}
	return m.store.AppendLog(ctx, task.UserID, types.ScheduleOperationLogEntry{
		Op: types.OpCreate, TaskID: task.TaskID, At: task.CreatedAt,
	})
}

// Update replaces an existing ScheduledTask's mutable fields.
func (m *Manager) Update(ctx context.Context, task *types.ScheduledTask) error {
	existing, err := m.store.Get(ctx, task.UserID, task.TaskID)
	if err != nil {
		return err
	}
	if err := validateRecurrence(task); err != nil {
		return err
	}
	task.CreatedAt = existing.CreatedAt
	task.RunCount = existing.RunCount
	task.LastRun = existing.LastRun

	if err := m.store.Put(ctx, task); err != nil {
		return err
	}
	return m.store.AppendLog(ctx, task.UserID, types.ScheduleOperationLogEntry{
		Op: types.OpUpdate, TaskID: task.TaskID, At: time.Now(),
	})
}

// Delete removes a ScheduledTask, recording a full snapshot in the log.
func (m *Manager) Delete(ctx context.Context, userID types.UserID, taskID types.ScheduledTaskID) error {
	task, err := m.store.Get(ctx, userID, taskID)
	if err != nil {
		return err
	}
	if err := m.store.Delete(ctx, userID, taskID); err != nil {
		return err
	}
	return m.store.AppendLog(ctx, userID, types.ScheduleOperationLogEntry{
		Op: types.OpDelete, TaskID: taskID, At: time.Now(), Snapshot: task,
	})
}

// Enable re-enables a task without resetting its run count.
func (m *Manager) Enable(ctx context.Context, userID types.UserID, taskID types.ScheduledTaskID) error {
	return m.setEnabled(ctx, userID, taskID, true, types.OpEnable)
}

// Disable pauses a task.
func (m *Manager) Disable(ctx context.Context, userID types.UserID, taskID types.ScheduledTaskID) error {
	return m.setEnabled(ctx, userID, taskID, false, types.OpDisable)
}

func (m *Manager) setEnabled(ctx context.Context, userID types.UserID, taskID types.ScheduledTaskID, enabled bool, op types.ScheduleOpType) error {
	task, err := m.store.Get(ctx, userID, taskID)
	if err != nil {
		return err
	}
	task.Enabled = enabled
	if err := m.store.Put(ctx, task); err != nil {
		return err
	}
	return m.store.AppendLog(ctx, userID, types.ScheduleOperationLogEntry{Op: op, TaskID: taskID, At: time.Now()})
}

// Reset clears run_count and re-enables a task that hit max_runs. A task
// that never hit max_runs is left unchanged: the original bot's schedule
// manager treats reset as idempotent in that case rather than discarding
// run history that hasn't been capped yet.
func (m *Manager) Reset(ctx context.Context, userID types.UserID, taskID types.ScheduledTaskID) error {
	task, err := m.store.Get(ctx, userID, taskID)
	if err != nil {
		return err
	}
	if task.MaxRuns == nil || task.RunCount < *task.MaxRuns {
		return nil
	}
	task.RunCount = 0
	task.LastRun = nil
	task.Enabled = true
	if err := m.store.Put(ctx, task); err != nil {
		return err
	}
	return m.store.AppendLog(ctx, userID, types.ScheduleOperationLogEntry{Op: types.OpUpdate, TaskID: taskID, At: time.Now()})
}

// Get and List pass through to Store, so callers only need one handle.
func (m *Manager) Get(ctx context.Context, userID types.UserID, taskID types.ScheduledTaskID) (*types.ScheduledTask, error) {
	return m.store.Get(ctx, userID, taskID)
}

func (m *Manager) List(ctx context.Context, userID types.UserID) ([]*types.ScheduledTask, error) {
	return m.store.List(ctx, userID)
}

func validateRecurrence(task *types.ScheduledTask) error {
	if task.Hour < 0 || task.Hour > 23 || task.Minute < 0 || task.Minute > 59 {
		return fmt.Errorf("hour/minute out of range")
	}
	switch task.ScheduleType {
	case types.ScheduleWeekly:
		for _, d := range task.Weekdays {
			if d < 0 || d > 6 {
				return fmt.Errorf("weekday %d out of range", d)
			}
		}
	case types.ScheduleMonthly:
		if task.MonthDay < 1 || task.MonthDay > 31 {
			return fmt.Errorf("month_day out of range")
		}
	case types.ScheduleInterval:
		if task.IntervalSeconds <= 0 {
			return fmt.Errorf("interval_seconds must be > 0")
		}
	case types.ScheduleOnce:
		if _, err := time.Parse("2006-01-02", task.RunDate); err != nil {
			return fmt.Errorf("run_date must be an ISO date: %w", err)
		}
	case types.ScheduleDaily:
	default:
		return fmt.Errorf("unknown schedule_type %q", task.ScheduleType)
	}
	return nil
}
