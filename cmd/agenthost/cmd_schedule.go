package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/agenthost/agenthost/internal/scheduler"
	"github.com/agenthost/agenthost/internal/types"
)

func init() {
	rootCmd.AddCommand(scheduleCmd)
	scheduleCmd.AddCommand(scheduleAddCmd, scheduleListCmd, scheduleRemoveCmd, scheduleEnableCmd, scheduleDisableCmd)

	scheduleAddCmd.Flags().String("task-id", "", "task ID, [A-Za-z0-9_]{1,32} (required)")
	scheduleAddCmd.Flags().String("name", "", "human-readable task name (required)")
	scheduleAddCmd.Flags().String("prompt", "", "prompt to delegate when the task fires (required)")
	scheduleAddCmd.Flags().String("type", "daily", "daily, weekly, monthly, interval, or once")
	scheduleAddCmd.Flags().Int("hour", 0, "hour of day, 0-23 (daily/weekly/monthly)")
	scheduleAddCmd.Flags().Int("minute", 0, "minute of hour, 0-59 (daily/weekly/monthly)")
	scheduleAddCmd.Flags().IntSlice("weekdays", nil, "weekdays, 0=Sunday..6=Saturday (weekly)")
	scheduleAddCmd.Flags().Int("month-day", 0, "day of month, 1-31 (monthly)")
	scheduleAddCmd.Flags().Int("interval-seconds", 0, "fire every N seconds (interval)")
	scheduleAddCmd.Flags().String("run-date", "", "ISO date YYYY-MM-DD (once)")
	_ = scheduleAddCmd.MarkFlagRequired("task-id")
	_ = scheduleAddCmd.MarkFlagRequired("name")
	_ = scheduleAddCmd.MarkFlagRequired("prompt")
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Manage recurring and one-shot scheduled prompts",
}

var scheduleAddCmd = &cobra.Command{
	Use:   "add <user-id>",
	Short: "Create a scheduled task for a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := parseUserID(args[0])
		if err != nil {
			return err
		}
		taskID, _ := cmd.Flags().GetString("task-id")
		name, _ := cmd.Flags().GetString("name")
		prompt, _ := cmd.Flags().GetString("prompt")
		schedType, _ := cmd.Flags().GetString("type")
		hour, _ := cmd.Flags().GetInt("hour")
		minute, _ := cmd.Flags().GetInt("minute")
		weekdays, _ := cmd.Flags().GetIntSlice("weekdays")
		monthDay, _ := cmd.Flags().GetInt("month-day")
		intervalSecs, _ := cmd.Flags().GetInt("interval-seconds")
		runDate, _ := cmd.Flags().GetString("run-date")

		cfg := loadConfig()
		store := scheduler.NewStore(cfg.DataDir)
		mgr := scheduler.NewManager(store)

		task := &types.ScheduledTask{
			TaskID:          types.ScheduledTaskID(taskID),
			UserID:          userID,
			Name:            name,
			ScheduleType:    types.ScheduleType(schedType),
			Hour:            hour,
			Minute:          minute,
			Weekdays:        weekdays,
			MonthDay:        monthDay,
			IntervalSeconds: intervalSecs,
			RunDate:         runDate,
			Prompt:          prompt,
			Enabled:         true,
		}
		if err := mgr.Create(context.Background(), task); err != nil {
			return fmt.Errorf("create scheduled task: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Scheduled task %q created for user %d.\n", taskID, userID)
		return nil
	},
}

var scheduleListCmd = &cobra.Command{
	Use:   "list <user-id>",
	Short: "List a user's scheduled tasks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := parseUserID(args[0])
		if err != nil {
			return err
		}
		cfg := loadConfig()
		store := scheduler.NewStore(cfg.DataDir)

		tasks, err := store.List(context.Background(), userID)
		if err != nil {
			return fmt.Errorf("list scheduled tasks: %w", err)
		}
		if len(tasks) == 0 {
			fmt.Println("No scheduled tasks found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TASK_ID\tNAME\tTYPE\tENABLED\tRUN_COUNT")
		for _, t := range tasks {
			fmt.Fprintf(w, "%s\t%s\t%s\t%v\t%d\n", t.TaskID, t.Name, t.ScheduleType, t.Enabled, t.RunCount)
		}
		return w.Flush()
	},
}

var scheduleRemoveCmd = &cobra.Command{
	Use:   "remove <user-id> <task-id>",
	Short: "Remove a scheduled task",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := parseUserID(args[0])
		if err != nil {
			return err
		}
		cfg := loadConfig()
		mgr := scheduler.NewManager(scheduler.NewStore(cfg.DataDir))
		if err := mgr.Delete(context.Background(), userID, types.ScheduledTaskID(args[1])); err != nil {
			return fmt.Errorf("remove scheduled task: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Scheduled task %q removed.\n", args[1])
		return nil
	},
}

var scheduleEnableCmd = &cobra.Command{
	Use:   "enable <user-id> <task-id>",
	Short: "Enable a scheduled task",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := parseUserID(args[0])
		if err != nil {
			return err
		}
		cfg := loadConfig()
		mgr := scheduler.NewManager(scheduler.NewStore(cfg.DataDir))
		if err := mgr.Enable(context.Background(), userID, types.ScheduledTaskID(args[1])); err != nil {
			return fmt.Errorf("enable scheduled task: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Scheduled task %q enabled.\n", args[1])
		return nil
	},
}

var scheduleDisableCmd = &cobra.Command{
	Use:   "disable <user-id> <task-id>",
	Short: "Disable a scheduled task",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := parseUserID(args[0])
		if err != nil {
			return err
		}
		cfg := loadConfig()
		mgr := scheduler.NewManager(scheduler.NewStore(cfg.DataDir))
		if err := mgr.Disable(context.Background(), userID, types.ScheduledTaskID(args[1])); err != nil {
			return fmt.Errorf("disable scheduled task: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Scheduled task %q disabled.\n", args[1])
		return nil
	},
}
