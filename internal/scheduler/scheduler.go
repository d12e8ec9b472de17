package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	cronlib "github.com/robfig/cron/v3"

	"github.com/agenthost/agenthost/internal/eventbus"
	"github.com/agenthost/agenthost/internal/types"
)

// cronParser accepts standard 5-field cron expressions (minute, hour, dom,
// month, dow), used only to compute a forward-looking next_run estimate for
// daily/weekly/monthly tasks; it never decides whether a task is due.
var cronParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow,
)

// DelegateFunc submits a fired schedule to the Task Manager as a delegated
// task, matching taskmanager.Manager.Delegate's signature.
type DelegateFunc func(ctx context.Context, userID types.UserID, description, prompt string) (types.SubAgentTaskID, error)

// Config bounds the Scheduler's tick loop.
type Config struct {
	TickInterval    time.Duration
	DefaultTimezone string
}

// DefaultConfig ticks once a minute, matching the firing rules' minute
// resolution.
func DefaultConfig() Config {
	return Config{TickInterval: time.Minute, DefaultTimezone: "UTC"}
}

// Scheduler evaluates ScheduledTasks against wall-clock time in each user's
// timezone and fires due ones, grounded on the teacher's
// internal/scheduler/scheduler.go plus zkoranges-go-claw's
// tick-and-query-due-schedules loop, generalized from raw cron strings to
// the typed daily/weekly/monthly/interval/once recurrence of spec §4.3.
type Scheduler struct {
	cfg      Config
	store    *Store
	users    types.UserStore
	bus      *eventbus.Bus
	delegate DelegateFunc
	logger   *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New wires a Scheduler.
func New(cfg Config, store *Store, users types.UserStore, bus *eventbus.Bus, delegate DelegateFunc, logger *slog.Logger) *Scheduler {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Minute
	}
	if cfg.DefaultTimezone == "" {
		cfg.DefaultTimezone = "UTC"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{cfg: cfg, store: store, users: users, bus: bus, delegate: delegate, logger: logger}
}

// Start begins the tick loop in a background goroutine.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.loop(ctx)
	s.logger.Info("scheduler started", "tick_interval", s.cfg.TickInterval)
}

// Stop cancels the tick loop and waits for it to exit.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	s.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick evaluates every user's ScheduledTasks once, firing those that are
// due. Exported so tests and callers with their own timers can drive it
// directly instead of waiting on the wall clock.
func (s *Scheduler) Tick(ctx context.Context) {
	tasks, err := s.store.ListAll(ctx)
	if err != nil {
		s.logger.Error("scheduler: failed to list scheduled tasks", "error", err)
		return
	}

	// Spec §5: firings at the same tick are ordered by (user_id, task_id).
	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].UserID != tasks[j].UserID {
			return tasks[i].UserID < tasks[j].UserID
		}
		return tasks[i].TaskID < tasks[j].TaskID
	})

	now := time.Now().UTC()
	for _, task := range tasks {
		loc := s.locationFor(ctx, task.UserID)
		if !s.due(task, now.In(loc)) {
			continue
		}
		s.fire(ctx, task, now, loc)
	}
}

func (s *Scheduler) locationFor(ctx context.Context, userID types.UserID) *time.Location {
	tz := s.cfg.DefaultTimezone
	if s.users != nil {
		if user, err := s.users.Get(ctx, userID); err == nil && user.Timezone != "" {
			tz = user.Timezone
		}
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC
	}
	return loc
}

// due reports whether task should fire at localNow, per spec §4.3's firing
// rules table. It is deliberately level-triggered rather than
// Next()-based: after a pause, the current wall clock simply no longer
// matches the fixed hour:minute, so missed fires are never executed
// retroactively, satisfying the "no catch-up" policy without special-casing
// downtime.
func (s *Scheduler) due(task *types.ScheduledTask, localNow time.Time) bool {
	if !task.Enabled {
		return false
	}
	if task.MaxRuns != nil && task.RunCount >= *task.MaxRuns {
		return false
	}
	if alreadyFiredThisMinute(task, localNow) {
		return false
	}

	switch task.ScheduleType {
	case types.ScheduleDaily:
		return dailyMatch(task, localNow)
	case types.ScheduleWeekly:
		return dailyMatch(task, localNow) && weekdayIn(task.Weekdays, localNow.Weekday())
	case types.ScheduleMonthly:
		return dailyMatch(task, localNow) && localNow.Day() == task.MonthDay
	case types.ScheduleInterval:
		return dueInterval(task, localNow)
	case types.ScheduleOnce:
		return task.RunCount == 0 && dailyMatch(task, localNow) && localNow.Format("2006-01-02") == task.RunDate
	default:
		return false
	}
}

func dailyMatch(task *types.ScheduledTask, localNow time.Time) bool {
	return localNow.Hour() == task.Hour && localNow.Minute() == task.Minute
}

func weekdayIn(weekdays []int, day time.Weekday) bool {
	for _, w := range weekdays {
		if w == int(day) {
			return true
		}
	}
	return false
}

func dueInterval(task *types.ScheduledTask, localNow time.Time) bool {
	if task.LastRun == nil {
		if task.FirstFireAt == nil {
			return true
		}
		return !task.FirstFireAt.After(localNow)
	}
	next := task.LastRun.Add(time.Duration(task.IntervalSeconds) * time.Second)
	return !next.After(localNow)
}

func alreadyFiredThisMinute(task *types.ScheduledTask, localNow time.Time) bool {
	if task.LastRun == nil {
		return false
	}
	last := task.LastRun.In(localNow.Location())
	return last.Truncate(time.Minute).Equal(localNow.Truncate(time.Minute))
}

// fire runs the per-fire procedure: submit to the Task Manager, advance
// run bookkeeping, append the operation log, and publish schedule_executed.
func (s *Scheduler) fire(ctx context.Context, task *types.ScheduledTask, now time.Time, loc *time.Location) {
	subTaskID, err := s.delegate(ctx, task.UserID, "scheduled: "+task.Name, task.Prompt)
	if err != nil {
		s.logger.Error("scheduler: delegate failed for fire",
			"user_id", task.UserID, "task_id", task.TaskID, "error", err)
		return
	}

	task.RunCount++
	task.LastRun = &now
	if task.ScheduleType == types.ScheduleOnce {
		task.Enabled = false
	} else if task.MaxRuns != nil && task.RunCount >= *task.MaxRuns {
		task.Enabled = false
	}

	nextRun := s.nextRun(task, now, loc)

	if err := s.store.Put(ctx, task); err != nil {
		s.logger.Error("scheduler: failed to persist fired task",
			"user_id", task.UserID, "task_id", task.TaskID, "error", err)
		return
	}

	logErr := s.store.AppendLog(ctx, task.UserID, types.ScheduleOperationLogEntry{
		Op:             types.OpExecute,
		TaskID:         task.TaskID,
		At:             now,
		SubAgentTaskID: subTaskID,
		RunCount:       task.RunCount,
		NextRun:        nextRun,
	})
	if logErr != nil {
		s.logger.Error("scheduler: failed to append operation log",
			"user_id", task.UserID, "task_id", task.TaskID, "error", logErr)
	}

	if s.bus != nil {
		s.bus.BroadcastScheduleExecuted(task.UserID, task.TaskID, task.RunCount, nextRun)
	}

	s.logger.Info("scheduler: fired task",
		"user_id", task.UserID, "task_id", task.TaskID, "sub_agent_task_id", subTaskID, "run_count", task.RunCount)
}

// nextRun computes a forward-looking estimate for the schedule_executed
// event payload. For daily/weekly/monthly it is computed via
// cron.Schedule.Next, whose day-of-month matching naturally skips months
// that lack the configured day. It returns nil for a "once" task, which
// never fires again, and does not itself gate whether the task is due.
func (s *Scheduler) nextRun(task *types.ScheduledTask, now time.Time, loc *time.Location) *time.Time {
	switch task.ScheduleType {
	case types.ScheduleDaily, types.ScheduleWeekly, types.ScheduleMonthly:
		expr, ok := cronExprFor(task)
		if !ok {
			return nil
		}
		schedule, err := cronParser.Parse(expr)
		if err != nil {
			s.logger.Error("scheduler: invalid derived cron expression",
				"task_id", task.TaskID, "expr", expr, "error", err)
			return nil
		}
		next := schedule.Next(now.In(loc)).UTC()
		return &next
	case types.ScheduleInterval:
		next := now.Add(time.Duration(task.IntervalSeconds) * time.Second)
		return &next
	default:
		return nil
	}
}

// cronExprFor builds a standard 5-field cron expression from a ScheduledTask's
// hour/minute/weekdays/month_day fields.
func cronExprFor(task *types.ScheduledTask) (string, bool) {
	switch task.ScheduleType {
	case types.ScheduleDaily:
		return fmt.Sprintf("%d %d * * *", task.Minute, task.Hour), true
	case types.ScheduleWeekly:
		days := make([]string, len(task.Weekdays))
		for i, d := range task.Weekdays {
			days[i] = fmt.Sprintf("%d", d)
		}
		return fmt.Sprintf("%d %d * * %s", task.Minute, task.Hour, strings.Join(days, ",")), true
	case types.ScheduleMonthly:
		return fmt.Sprintf("%d %d %d * *", task.Minute, task.Hour, task.MonthDay), true
	default:
		return "", false
	}
}
