package taskmanager

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/agenthost/agenthost/internal/eventbus"
	"github.com/agenthost/agenthost/internal/filetracker"
	"github.com/agenthost/agenthost/internal/types"
)

// Config bounds the Task Manager's admission and retry policy.
type Config struct {
	MaxSubAgents           int
	MaxRetries             int
	FileTrackerInlineLimit int
}

// DefaultConfig returns spec §4.2's stated defaults: 10 concurrent tasks,
// 10 max retries.
func DefaultConfig() Config {
	return Config{MaxSubAgents: 10, MaxRetries: 10, FileTrackerInlineLimit: filetracker.InlineThreshold}
}

// Manager executes delegated tasks under a global concurrency cap, with an
// optional review-and-retry loop, grounded on the teacher's semaphore-
// backed admission queue generalized from per-session lanes to one global
// FIFO gate (spec §4.2, §9).
type Manager struct {
	cfg     Config
	root    string
	store   *TaskStore
	bus     *eventbus.Bus
	adapter types.ChatAdapter
	quota   types.QuotaGate
	execute ExecuteFunc
	review  ReviewAgent

	sem *semaphore.Weighted

	mu      sync.Mutex
	cancels map[types.SubAgentTaskID]context.CancelFunc
}

// New wires a Task Manager. adapter, quota, and review may be nil; review
// being nil means delegate_and_review tasks fall back to unconditional
// accept, and quota being nil skips the quota check entirely (tests that
// don't care about quota enforcement).
func New(cfg Config, root string, store *TaskStore, bus *eventbus.Bus, adapter types.ChatAdapter, quota types.QuotaGate, execute ExecuteFunc, review ReviewAgent) *Manager {
	if cfg.MaxSubAgents <= 0 {
		cfg.MaxSubAgents = 10
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 10
	}
	return &Manager{
		cfg:     cfg,
		root:    root,
		store:   store,
		bus:     bus,
		adapter: adapter,
		quota:   quota,
		execute: execute,
		review:  review,
		sem:     semaphore.NewWeighted(int64(cfg.MaxSubAgents)),
		cancels: make(map[types.SubAgentTaskID]context.CancelFunc),
	}
}

// Delegate enqueues a simple task and returns immediately with its id.
func (m *Manager) Delegate(ctx context.Context, userID types.UserID, description, prompt string) (types.SubAgentTaskID, error) {
	return m.delegate(ctx, userID, description, prompt, "")
}

// DelegateAndReview enqueues a task subject to the automated review loop.
func (m *Manager) DelegateAndReview(ctx context.Context, userID types.UserID, description, prompt, reviewCriteria string) (types.SubAgentTaskID, error) {
	return m.delegate(ctx, userID, description, prompt, reviewCriteria)
}

func (m *Manager) delegate(ctx context.Context, userID types.UserID, description, prompt, reviewCriteria string) (types.SubAgentTaskID, error) {
	task := &types.SubAgentTask{
		TaskID:         types.NewSubAgentTaskID(),
		UserID:         userID,
		Description:    description,
		Prompt:         prompt,
		Status:         types.TaskPending,
		CreatedAt:      time.Now(),
		MaxRetries:     m.cfg.MaxRetries,
		ReviewCriteria: reviewCriteria,
	}
	if err := m.store.Put(ctx, task); err != nil {
		return "", fmt.Errorf("persist new task: %w", err)
	}
	if m.bus != nil {
		m.bus.BroadcastTaskCreated(userID, task.TaskID, description, task.CreatedAt)
	}

	go m.run(task)
	return task.TaskID, nil
}

// Cancel transitions a running task to cancelled, best-effort: it signals
// the in-flight execution to abort but does not wait for it.
func (m *Manager) Cancel(ctx context.Context, userID types.UserID, taskID types.SubAgentTaskID) error {
	m.mu.Lock()
	cancel, ok := m.cancels[taskID]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("task %s not running: %w", taskID, types.ErrNotFound)
	}
	cancel()
	return nil
}

// Get returns a task's current state.
func (m *Manager) Get(ctx context.Context, userID types.UserID, taskID types.SubAgentTaskID) (*types.SubAgentTask, error) {
	return m.store.Get(ctx, userID, taskID)
}

// List returns every task known for a user.
func (m *Manager) List(ctx context.Context, userID types.UserID) ([]*types.SubAgentTask, error) {
	return m.store.List(ctx, userID)
}

func (m *Manager) run(task *types.SubAgentTask) {
	ctx, cancel := context.WithCancel(context.Background())
	m.mu.Lock()
	m.cancels[task.TaskID] = cancel
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		delete(m.cancels, task.TaskID)
		m.mu.Unlock()
		cancel()
	}()

	if err := m.sem.Acquire(ctx, 1); err != nil {
		task.Status = types.TaskCancelled
		m.store.Put(ctx, task)
		m.publishTerminal(task)
		return
	}
	defer m.sem.Release(1)

	if ctx.Err() != nil {
		task.Status = types.TaskCancelled
		m.store.Put(ctx, task)
		m.publishTerminal(task)
		return
	}

	if denied, reason := m.checkQuota(ctx, task.UserID, 0); denied {
		task.Status = types.TaskFailed
		task.Error = fmt.Sprintf("quota denied: %s", reason)
		m.store.Put(ctx, task)
		m.publishTerminal(task)
		return
	}

	now := time.Now()
	task.Status = types.TaskRunning
	task.StartedAt = &now
	m.store.Put(ctx, task)
	if m.bus != nil {
		m.bus.BroadcastTaskUpdate(task.UserID, task.TaskID, task.Status, "", nil)
	}

	workDir := filepath.Join(m.root, types.UserDir(task.UserID), "data")
	tracker := filetracker.New(workDir)
	tracker.Start()

	m.executeWithReview(ctx, task)
	tracker.Cleanup()

	// Spec §4.2's failure semantics discard the result and drop produced
	// files silently on cancellation (B4: cancelling a task suppresses file
	// delivery); a cancelled or failed task never even has its diff
	// computed, so FilesProduced stays nil rather than recording paths
	// that were never actually handed off.
	var changed []string
	if task.Status == types.TaskCompleted {
		changed, _ = tracker.Diff()
		if len(changed) > 0 {
			if denied, reason := m.checkQuota(ctx, task.UserID, producedBytes(workDir, changed)); denied {
				rollback(workDir, changed)
				changed = nil
				task.Error = fmt.Sprintf("quota denied, produced files discarded: %s", reason)
			}
		}
		task.FilesProduced = changed
	}

	completedAt := time.Now()
	task.CompletedAt = &completedAt
	if err := m.store.Put(ctx, task); err != nil {
		return
	}

	if task.Status == types.TaskCompleted && m.adapter != nil && len(changed) > 0 {
		filetracker.Deliver(ctx, m.adapter, task.UserID, workDir, changed, m.cfg.FileTrackerInlineLimit)
	}
	m.publishTerminal(task)
}

// checkQuota consults the QuotaGate, if one is configured, for whether
// additionalBytes more would keep userID under quota (spec §5: "any write
// that enlarges a user's working directory consults the QuotaGate before
// proceeding"). A nil gate or a gate error never blocks execution; a
// gate error is treated as permissive since the check itself failing is
// not the same as the check actually denying the write.
func (m *Manager) checkQuota(ctx context.Context, userID types.UserID, additionalBytes int64) (denied bool, reason string) {
	if m.quota == nil {
		return false, ""
	}
	ok, reason, err := m.quota.Check(ctx, userID, additionalBytes)
	if err != nil || ok {
		return false, ""
	}
	return true, reason
}

// producedBytes sums the on-disk size of each produced file, relative to
// workDir, for the quota check performed once a task's execution has
// finished writing.
func producedBytes(workDir string, paths []string) int64 {
	var total int64
	for _, p := range paths {
		info, err := os.Stat(filepath.Join(workDir, p))
		if err != nil {
			continue
		}
		total += info.Size()
	}
	return total
}

// rollback deletes files produced by a task whose total size pushed the
// user over quota, per spec §5's "partial writes are rolled back where
// possible."
func rollback(workDir string, paths []string) {
	for _, p := range paths {
		os.Remove(filepath.Join(workDir, p))
	}
}

func (m *Manager) publishTerminal(task *types.SubAgentTask) {
	if m.bus == nil {
		return
	}
	m.bus.BroadcastTaskUpdate(task.UserID, task.TaskID, task.Status, task.Result, task.CompletedAt)
}

// executeWithReview runs the review-and-retry loop (or a single attempt
// when ReviewCriteria is empty) and leaves task in a terminal status.
func (m *Manager) executeWithReview(ctx context.Context, task *types.SubAgentTask) {
	for {
		if ctx.Err() != nil {
			task.Status = types.TaskCancelled
			return
		}

		prompt := renderPromptWithHistory(task)
		result, err := m.execute(ctx, task.UserID, prompt)
		if err != nil {
			if ctx.Err() != nil {
				task.Status = types.TaskCancelled
				return
			}
			task.Status = types.TaskFailed
			task.Error = err.Error()
			return
		}
		task.Result = result

		if task.ReviewCriteria == "" || m.review == nil {
			task.Status = types.TaskCompleted
			return
		}

		verdict, err := m.review.Review(ctx, result, task.ReviewCriteria, time.Now().Format("2006-01-02"))
		if err != nil {
			task.Status = types.TaskFailed
			task.Error = fmt.Errorf("review: %w", err).Error()
			return
		}

		if verdict.Accepted() {
			task.Status = types.TaskCompleted
			return
		}

		if task.RetryCount >= task.MaxRetries {
			task.Status = types.TaskCompleted
			task.MaxRetriesReached = true
			return
		}

		task.RetryHistory = append(task.RetryHistory, types.RetryEntry{
			Feedback:          verdict.Feedback,
			Suggestions:       verdict.Suggestions,
			MissingDimensions: verdict.MissingDimensions,
			ResultSummary:     summarize(result),
			At:                time.Now(),
		})
		task.RetryCount++
	}
}

func summarize(result string) string {
	const maxLen = 500
	if len(result) <= maxLen {
		return result
	}
	return result[:maxLen] + "..."
}

func renderPromptWithHistory(task *types.SubAgentTask) string {
	if len(task.RetryHistory) == 0 {
		return task.Prompt
	}
	prompt := task.Prompt + "\n\nPrevious attempts were rejected:\n"
	for i, entry := range task.RetryHistory {
		prompt += fmt.Sprintf("Attempt %d feedback: %s\n", i+1, entry.Feedback)
		if len(entry.Suggestions) > 0 {
			prompt += fmt.Sprintf("Suggestions: %v\n", entry.Suggestions)
		}
		if len(entry.MissingDimensions) > 0 {
			prompt += fmt.Sprintf("Missing: %v\n", entry.MissingDimensions)
		}
	}
	return prompt
}
