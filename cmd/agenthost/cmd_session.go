package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/agenthost/agenthost/internal/session"
	"github.com/agenthost/agenthost/internal/types"
)

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionListCmd, sessionClearCmd)
}

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage user sessions",
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every user's active session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		users := session.NewUserStore(cfg.DataDir, cfg.DefaultQuotaBytes, cfg.DefaultTimezone)
		pointers := session.NewPointerStore(cfg.DataDir)

		ctx := context.Background()
		list, err := users.List(ctx)
		if err != nil {
			return fmt.Errorf("list users: %w", err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "USER_ID\tSESSION\tSTATUS\tTURNS\tLAST_ACTIVITY")
		found := false
		for _, u := range list {
			sess, err := pointers.Get(ctx, u.ID)
			if err != nil || sess == nil {
				continue
			}
			found = true
			fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\n",
				u.ID, sess.ID, sess.Status, sess.Turns,
				sess.LastActivity.Format("2006-01-02 15:04:05"),
			)
		}
		if !found {
			fmt.Println("No active sessions found.")
			return nil
		}
		return w.Flush()
	},
}

var sessionClearCmd = &cobra.Command{
	Use:   "clear <user-id|all>",
	Short: "Clear a user's active session pointer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		users := session.NewUserStore(cfg.DataDir, cfg.DefaultQuotaBytes, cfg.DefaultTimezone)
		pointers := session.NewPointerStore(cfg.DataDir)
		ctx := context.Background()

		if args[0] == "all" {
			list, err := users.List(ctx)
			if err != nil {
				return fmt.Errorf("list users: %w", err)
			}
			for _, u := range list {
				if err := pointers.Delete(ctx, u.ID); err != nil {
					return fmt.Errorf("clear session for user %d: %w", u.ID, err)
				}
			}
			fmt.Println("All sessions cleared.")
			return nil
		}

		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid user ID: %s", args[0])
		}
		if err := pointers.Delete(ctx, types.UserID(id)); err != nil {
			return fmt.Errorf("clear session: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Session for user %d cleared.\n", id)
		return nil
	},
}
