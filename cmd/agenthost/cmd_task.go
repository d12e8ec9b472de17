package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/agenthost/agenthost/internal/taskmanager"
	"github.com/agenthost/agenthost/internal/types"
)

func init() {
	rootCmd.AddCommand(taskCmd)
	taskCmd.AddCommand(taskListCmd, taskCancelCmd)
}

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Inspect sub-agent tasks delegated on a user's behalf",
}

var taskListCmd = &cobra.Command{
	Use:   "list <user-id>",
	Short: "List sub-agent tasks for a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := parseUserID(args[0])
		if err != nil {
			return err
		}
		cfg := loadConfig()
		store := taskmanager.NewTaskStore(cfg.DataDir)

		tasks, err := store.List(context.Background(), userID)
		if err != nil {
			return fmt.Errorf("list tasks: %w", err)
		}
		if len(tasks) == 0 {
			fmt.Println("No sub-agent tasks found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TASK_ID\tSTATUS\tRETRIES\tDESCRIPTION")
		for _, t := range tasks {
			fmt.Fprintf(w, "%s\t%s\t%d/%d\t%s\n", t.TaskID, t.Status, t.RetryCount, t.MaxRetries, t.Description)
		}
		return w.Flush()
	},
}

var taskCancelCmd = &cobra.Command{
	Use:   "cancel <user-id> <task-id>",
	Short: "Cancel a running sub-agent task",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := parseUserID(args[0])
		if err != nil {
			return err
		}
		cfg := loadConfig()
		store := taskmanager.NewTaskStore(cfg.DataDir)
		task, err := store.Get(context.Background(), userID, types.SubAgentTaskID(args[1]))
		if err != nil {
			return fmt.Errorf("find task: %w", err)
		}
		task.Status = types.TaskCancelled
		if err := store.Put(context.Background(), task); err != nil {
			return fmt.Errorf("cancel task: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Task %s cancelled.\n", task.TaskID)
		return nil
	},
}

func parseUserID(s string) (types.UserID, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid user ID: %s", s)
	}
	return types.UserID(id), nil
}
