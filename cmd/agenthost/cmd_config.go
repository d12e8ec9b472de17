package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agenthost/agenthost/internal/config"
)

var configSection string

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configListCmd, configGetCmd, configSetCmd)
	configListCmd.Flags().StringVar(&configSection, "section", "", "only list keys under this dot-path section (e.g. llm, telegram, scheduler)")
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and edit the host's session/quota/scheduler/LLM settings",
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configuration values, optionally scoped to one section",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		values, err := config.ListValues(cfg, true)
		if err != nil {
			return fmt.Errorf("list config: %w", err)
		}

		prefix := ""
		if configSection != "" {
			prefix = configSection + "."
		}

		keys := make([]string, 0, len(values))
		for k := range values {
			if prefix != "" && !strings.HasPrefix(k, prefix) {
				continue
			}
			keys = append(keys, k)
		}
		sort.Strings(keys)

		if len(keys) == 0 && configSection != "" {
			return fmt.Errorf("no config keys under section %q", configSection)
		}
		for _, k := range keys {
			fmt.Fprintf(os.Stdout, "%s = %v\n", k, values[k])
		}
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get one dot-path configuration value (e.g. max_sub_agents, llm.model)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		val, err := config.GetValue(cfgPath, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, val)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set one dot-path configuration value; takes effect on next restart",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.SetValue(cfgPath, args[0], args[1]); err != nil {
			return err
		}
		display := args[1]
		if config.IsSecretKey(args[0]) {
			display = "***"
		}
		fmt.Fprintf(os.Stdout, "Set %s = %s\n", args[0], display)
		return nil
	},
}
