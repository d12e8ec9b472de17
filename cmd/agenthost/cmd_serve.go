package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/agenthost/agenthost/internal/chatadapter"
	"github.com/agenthost/agenthost/internal/chatadapter/telegram"
	"github.com/agenthost/agenthost/internal/host"
	"github.com/agenthost/agenthost/internal/types"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the agenthost daemon",
	RunE:  runServe,
}

func writePIDFile(dataDir string) (string, error) {
	pidPath := filepath.Join(dataDir, "agenthost.pid")
	pid := os.Getpid()
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(pid)+"\n"), 0644); err != nil {
		return "", fmt.Errorf("write PID file: %w", err)
	}
	return pidPath, nil
}

// silentAdapter discards outbound chat effects. Used when no transport is
// configured, so the daemon can still run task/schedule delegation and
// CLI commands without a place to deliver proactive messages.
type silentAdapter struct{ logger *slog.Logger }

func (a *silentAdapter) Send(ctx context.Context, userID types.UserID, body string) error {
	a.logger.Info("no chat transport configured, dropping outbound message", "user_id", userID)
	return nil
}
func (a *silentAdapter) SendFiles(ctx context.Context, userID types.UserID, paths []string) error {
	return nil
}
func (a *silentAdapter) React(ctx context.Context, userID types.UserID, messageRef, emoji string) error {
	return nil
}
func (a *silentAdapter) SetTyping(ctx context.Context, userID types.UserID) error { return nil }
func (a *silentAdapter) NotifyMenuCommandSet(ctx context.Context, userID types.UserID, commands []string) error {
	return nil
}

var _ types.ChatAdapter = (*silentAdapter)(nil)

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)
	logger := slog.Default()

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	pidPath, err := writePIDFile(cfg.DataDir)
	if err != nil {
		return err
	}
	defer os.Remove(pidPath)

	var h *host.Host
	var tgAdapter *telegram.Adapter

	var backend types.ChatAdapter = &silentAdapter{logger: logger}
	if cfg.Telegram.Token != "" {
		tgAdapter, err = telegram.New(cfg.Telegram.Token, func(ctx context.Context, userID types.UserID, text string) (string, error) {
			return h.ProcessMessage(ctx, userID, text)
		}, logger)
		if err != nil {
			return fmt.Errorf("create telegram adapter: %w", err)
		}
		backend = tgAdapter
	} else {
		logger.Warn("telegram adapter disabled (no token)")
	}

	queued := chatadapter.New(backend, logger)
	defer queued.Stop()

	h, err = host.New(*cfg, host.Deps{Adapter: queued}, logger)
	if err != nil {
		return fmt.Errorf("wire host: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h.Start(ctx)
	defer h.Stop()

	logger.Info("agenthost started",
		"data_dir", cfg.DataDir,
		"log_level", cfg.LogLevel,
		"max_sub_agents", cfg.MaxSubAgents,
		"max_tool_rounds", cfg.MaxToolRounds,
		"llm_model", cfg.LLM.Model,
		"pid_file", pidPath,
	)

	if tgAdapter != nil {
		go tgAdapter.Start(ctx)
		logger.Info("telegram adapter started")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for {
		sig := <-sigChan
		if sig == syscall.SIGHUP {
			logger.Info("received SIGHUP, restarting")
			execPath, err := os.Executable()
			if err != nil {
				logger.Error("failed to get executable path", "error", err)
				continue
			}
			os.Remove(pidPath)
			if err := syscall.Exec(execPath, os.Args, os.Environ()); err != nil {
				logger.Error("failed to re-exec", "error", err)
				if _, writeErr := writePIDFile(cfg.DataDir); writeErr != nil {
					logger.Error("failed to re-write PID file", "error", writeErr)
				}
				continue
			}
		}
		logger.Info("shutting down", "signal", sig)
		return nil
	}
}
