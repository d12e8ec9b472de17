package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/agenthost/agenthost/internal/memory"
	"github.com/agenthost/agenthost/internal/types"
)

func init() {
	rootCmd.AddCommand(memoryCmd)
	memoryCmd.AddCommand(memoryListCmd, memoryDeleteCmd)
}

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Inspect a user's durable memory store",
}

var memoryListCmd = &cobra.Command{
	Use:   "list <user-id>",
	Short: "List a user's memories",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := parseUserID(args[0])
		if err != nil {
			return err
		}
		cfg := loadConfig()
		store := memory.New(cfg.DataDir)

		memories, err := store.List(context.Background(), userID)
		if err != nil {
			return fmt.Errorf("list memories: %w", err)
		}
		if len(memories) == 0 {
			fmt.Println("No memories found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tCATEGORY\tCONFIDENCE\tCONTENT")
		for _, m := range memories {
			fmt.Fprintf(w, "%s\t%s\t%.2f\t%s\n", m.ID, m.Category, m.Confidence, m.Content)
		}
		return w.Flush()
	},
}

var memoryDeleteCmd = &cobra.Command{
	Use:   "delete <user-id> <memory-id>",
	Short: "Delete a memory",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := parseUserID(args[0])
		if err != nil {
			return err
		}
		cfg := loadConfig()
		store := memory.New(cfg.DataDir)
		if err := store.Delete(context.Background(), userID, types.MemoryID(args[1])); err != nil {
			return fmt.Errorf("delete memory: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Memory %s deleted.\n", args[1])
		return nil
	},
}
