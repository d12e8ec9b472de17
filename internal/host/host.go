// Package host assembles every substrate component into a single owning
// value: the AgentHost. Nothing here is a global or a singleton; every
// component is a field wired at construction, the way cmd/gopherclaw's
// serve command builds its dependencies inline, but as a reusable
// constructor instead of inline main() code.
package host

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"time"

	"github.com/agenthost/agenthost/internal/config"
	"github.com/agenthost/agenthost/internal/eventbus"
	"github.com/agenthost/agenthost/internal/filetracker"
	"github.com/agenthost/agenthost/internal/llmbackend"
	"github.com/agenthost/agenthost/internal/memory"
	"github.com/agenthost/agenthost/internal/quota"
	"github.com/agenthost/agenthost/internal/scheduler"
	"github.com/agenthost/agenthost/internal/session"
	"github.com/agenthost/agenthost/internal/taskmanager"
	"github.com/agenthost/agenthost/internal/toolcall"
	"github.com/agenthost/agenthost/internal/turn"
	"github.com/agenthost/agenthost/internal/types"
	"github.com/agenthost/agenthost/pkg/llm"
	"github.com/agenthost/agenthost/pkg/llm/openai"
)

// defaultSystemPrompt is the built-in persona sent as the leading system
// message of every turn when no custom prompt is configured.
const defaultSystemPrompt = `You are Agent Host, a personal AI assistant that runs as a self-hosted service.

You have access to tools for sending messages and files back to the user, delegating longer-running work to a background sub-agent, scheduling recurring or one-shot prompts, and recording durable facts about the user. Use them proactively when they would help; don't guess when a tool can get the real answer.`

// Host owns every substrate component for one running instance: users,
// sessions, memory, quota, sub-agent tasks, schedules, the event bus, the
// tool-call registry, and the chat adapter. CLI commands and inbound
// transports (e.g. Telegram) all operate through this one value.
type Host struct {
	cfg    config.Config
	logger *slog.Logger

	bus *eventbus.Bus

	Users     *session.UserStore
	Sessions  *session.Manager
	Quota     *quota.FileGate
	Memory    *memory.Store
	Tasks     *taskmanager.Manager
	taskStore *taskmanager.TaskStore

	scheduleStore *scheduler.Store
	Schedules     *scheduler.Manager
	sched         *scheduler.Scheduler

	Tools *toolcall.Registry
	LLM   types.LLMBackend
	Turn  *turn.Processor

	adapter types.ChatAdapter
	chatlog *session.ChatLogStore

	llmProvider llm.Provider
}

// Deps carries the collaborators a Host cannot construct for itself: the
// chat transport and, in tests, a stand-in LLM provider.
type Deps struct {
	Adapter types.ChatAdapter
	// Provider overrides the default OpenAI-compatible provider built from
	// cfg.LLM. Tests supply a stub here instead of hitting the network.
	Provider llm.Provider
}

// New wires every substrate component from cfg. adapter is expected to
// already be wrapped in chatadapter.New for per-user FIFO ordering; Host
// does not wrap it itself, since a caller may want to compose additional
// decorators (metrics, rate limiting) before handing it in.
func New(cfg config.Config, deps Deps, logger *slog.Logger) (*Host, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Adapter == nil {
		return nil, fmt.Errorf("host: a chat adapter is required")
	}

	root := cfg.DataDir

	users := session.NewUserStore(root, cfg.DefaultQuotaBytes, cfg.DefaultTimezone)
	pointers := session.NewPointerStore(root)
	chatlog := session.NewChatLogStore(root)
	summaries := session.NewSummaryStore(root)
	memoryStore := memory.New(root)
	quotaGate := quota.New(root, cfg.DefaultQuotaBytes, users)
	taskStore := taskmanager.NewTaskStore(root)
	schedStore := scheduler.NewStore(root)

	bus := eventbus.New(
		time.Duration(cfg.EventBusPingIntervalSecs)*time.Second,
		cfg.EventBusMissedLimit,
	)

	provider := deps.Provider
	if provider == nil {
		provider = openai.New(&llm.Config{
			BaseURL:     cfg.LLM.BaseURL,
			APIKey:      cfg.LLM.APIKey,
			Model:       cfg.LLM.Model,
			MaxTokens:   cfg.LLM.MaxTokens,
			Temperature: cfg.LLM.Temperature,
		})
	}
	backend := llmbackend.New(provider)

	sessionCfg := session.Config{
		SessionTimeout:        time.Duration(cfg.SessionTimeoutSeconds) * time.Second,
		ContextStaleThreshold: time.Duration(cfg.ContextStaleThresholdSecs) * time.Second,
		RecoverContextChars:   cfg.RecoverContextChars,
		RecoverContextLogs:    cfg.RecoverContextLogs,
	}
	sessions := session.NewManager(sessionCfg, pointers, chatlog, summaries, backend, bus)

	h := &Host{
		cfg:           cfg,
		logger:        logger,
		bus:           bus,
		Users:         users,
		Sessions:      sessions,
		Quota:         quotaGate,
		Memory:        memoryStore,
		taskStore:     taskStore,
		scheduleStore: schedStore,
		LLM:           backend,
		adapter:       deps.Adapter,
		chatlog:       chatlog,
		llmProvider:   provider,
	}

	taskCfg := taskmanager.Config{
		MaxSubAgents:           cfg.MaxSubAgents,
		MaxRetries:             cfg.MaxRetries,
		FileTrackerInlineLimit: cfg.FileTrackerInlineThreshold,
	}
	if taskCfg.FileTrackerInlineLimit <= 0 {
		taskCfg.FileTrackerInlineLimit = filetracker.InlineThreshold
	}
	h.Tasks = taskmanager.New(taskCfg, root, taskStore, bus, deps.Adapter, quotaGate, h.executeSubAgentTask, taskmanager.NewLLMReviewer(backend))

	h.Schedules = scheduler.NewManager(schedStore)
	h.sched = scheduler.New(scheduler.Config{
		TickInterval:    time.Duration(cfg.SchedulerTickIntervalSecs) * time.Second,
		DefaultTimezone: cfg.DefaultTimezone,
	}, schedStore, users, bus, h.Tasks.Delegate, logger)

	h.Tools = buildToolRegistry(h)
	h.Turn = turn.New(sessions, chatlog, h.Tools, backend, cfg.MaxToolRounds, defaultSystemPrompt)

	return h, nil
}

// ProcessMessage runs the agentic turn loop for one inbound chat message
// and returns the model's final reply without delivering it anywhere.
// Its signature matches telegram.InboundHandler, so it can be wired
// directly as a transport's inbound callback; the transport itself
// decides how the reply gets back to the user.
func (h *Host) ProcessMessage(ctx context.Context, userID types.UserID, text string) (string, error) {
	if _, err := h.Users.GetOrCreate(ctx, userID); err != nil {
		return "", fmt.Errorf("resolve user: %w", err)
	}
	if err := h.Turn.RecordUserMessage(ctx, userID, text); err != nil {
		return "", fmt.Errorf("record user message: %w", err)
	}
	reply, err := h.Turn.Process(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("process turn: %w", err)
	}
	return reply, nil
}

// HandleMessage is ProcessMessage plus delivery through the host's own
// chat adapter, for callers (CLI chat, tests) with no transport-specific
// reply path of their own.
func (h *Host) HandleMessage(ctx context.Context, userID types.UserID, text string) error {
	reply, err := h.ProcessMessage(ctx, userID, text)
	if err != nil {
		return err
	}
	if reply == "" {
		return nil
	}
	return h.adapter.Send(ctx, userID, reply)
}

// Start begins the background loops (event bus heartbeat, scheduler tick).
// Both run in their own goroutines and stop when ctx is cancelled; Start
// itself returns immediately.
func (h *Host) Start(ctx context.Context) {
	go h.bus.Run(ctx)
	h.sched.Start(ctx)
}

// Stop halts the scheduler. The event bus stops when the context passed to
// Start is cancelled; in-flight sub-agent tasks are cancelled by neither.
func (h *Host) Stop() {
	h.sched.Stop()
}

// executeSubAgentTask backs taskmanager.ExecuteFunc: a delegated task's
// prompt is handed straight to the opaque LLM backend, exactly the way
// spec §6 describes the Sub-Agent Task Manager's view of the model
// collaborator.
func (h *Host) executeSubAgentTask(ctx context.Context, userID types.UserID, prompt string) (string, error) {
	result, err := h.LLM.Invoke(ctx, "", []llm.Message{{Role: "user", Content: prompt}}, nil)
	if err != nil {
		return "", err
	}
	return result.Text, nil
}

// dataDirFor returns the on-disk root for a user's files, matching
// internal/quota.FileGate's own layout so file-producing components agree
// on where a user's WorkingDirectory lives.
func (h *Host) dataDirFor(userID types.UserID) string {
	return filepath.Join(h.cfg.DataDir, "users", strconv.FormatInt(int64(userID), 10), "data")
}

// ListFiles returns every path tracked under userID's WorkingDirectory
// without running a diff, backing a read-only file listing (e.g. a
// dashboard) that shouldn't trigger delivery as a side effect.
func (h *Host) ListFiles(userID types.UserID) ([]string, error) {
	tracker := filetracker.New(h.dataDirFor(userID))
	return tracker.Manifest()
}
