// internal/types/interfaces.go
package types

import (
	"context"
	"time"

	"github.com/agenthost/agenthost/pkg/llm"
)

// UserStore persists User records.
type UserStore interface {
	Get(ctx context.Context, id UserID) (*User, error)
	GetOrCreate(ctx context.Context, id UserID) (*User, error)
	List(ctx context.Context) ([]*User, error)
	Update(ctx context.Context, user *User) error
}

// SessionStore persists the active/expiring/archived Session for a user.
type SessionStore interface {
	Get(ctx context.Context, userID UserID) (*Session, error)
	Put(ctx context.Context, session *Session) error
	Delete(ctx context.Context, userID UserID) error
}

// ChatLogStore appends and reads a user's turn-by-turn conversation log,
// one log per session.
type ChatLogStore interface {
	Append(ctx context.Context, userID UserID, sessionID SessionID, turn ChatTurn) error
	Tail(ctx context.Context, userID UserID, sessionID SessionID, limit int) ([]ChatTurn, error)
	TailChars(ctx context.Context, userID UserID, sessionID SessionID, maxChars int) ([]ChatTurn, error)
	Truncate(ctx context.Context, userID UserID, sessionID SessionID) (ref string, err error)
}

// ChatSummaryStore persists compressed representations of closed sessions.
type ChatSummaryStore interface {
	Add(ctx context.Context, summary *ChatSummary) error
	Latest(ctx context.Context, userID UserID) (*ChatSummary, error)
	List(ctx context.Context, userID UserID) ([]*ChatSummary, error)
}

// MemoryStore persists structured facts about users with a supersede chain.
type MemoryStore interface {
	Add(ctx context.Context, m *Memory) error
	Get(ctx context.Context, userID UserID, id MemoryID) (*Memory, error)
	List(ctx context.Context, userID UserID) ([]*Memory, error)
	Update(ctx context.Context, m *Memory) error
}

// ScheduleStore persists ScheduledTasks and their operation log, per user.
type ScheduleStore interface {
	Get(ctx context.Context, userID UserID, taskID ScheduledTaskID) (*ScheduledTask, error)
	List(ctx context.Context, userID UserID) ([]*ScheduledTask, error)
	ListAll(ctx context.Context) ([]*ScheduledTask, error)
	Put(ctx context.Context, task *ScheduledTask) error
	Delete(ctx context.Context, userID UserID, taskID ScheduledTaskID) error
	AppendLog(ctx context.Context, userID UserID, entry ScheduleOperationLogEntry) error
}

// SubAgentTaskStore persists delegated task state.
type SubAgentTaskStore interface {
	Get(ctx context.Context, userID UserID, taskID SubAgentTaskID) (*SubAgentTask, error)
	List(ctx context.Context, userID UserID) ([]*SubAgentTask, error)
	Put(ctx context.Context, task *SubAgentTask) error
}

// ArtifactStore persists File Tracker snapshots and per-user file metadata.
type ArtifactStore interface {
	SaveSnapshot(ctx context.Context, userID UserID, files map[string]FileStat) error
	LoadSnapshot(ctx context.Context, userID UserID) (map[string]FileStat, error)
}

// QuotaGate is the external collaborator that authorizes spend against a
// user's quota before an operation proceeds.
type QuotaGate interface {
	// Check reports whether writing additionalBytes more would keep the
	// user under quota. If not ok, reason explains the denial.
	Check(ctx context.Context, userID UserID, additionalBytes int64) (ok bool, reason string, err error)
	// Report returns the user's current usage and quota, in bytes.
	Report(ctx context.Context, userID UserID) (used int64, quota int64, err error)
}

// LLMBackend is the opaque remote model collaborator from spec §6. messages
// and tools carry the full round-based prompt (chat history plus available
// tool-call schemas) rather than a flat string, so a turn loop's tool-call
// intents survive the trip through the backend's error-classification
// layer; sessionRemoteID threads the provider's own notion of server-side
// conversation state (empty for a stateless provider) and a returned
// RemoteID is persisted back onto the Session by the caller.
type LLMBackend interface {
	Invoke(ctx context.Context, sessionRemoteID string, messages []llm.Message, tools []llm.Tool) (LLMResult, error)
	Summarize(ctx context.Context, text string) (string, error)
}

// LLMResult is the outcome of one LLMBackend.Invoke call.
type LLMResult struct {
	Text         string
	RemoteID     string
	ToolCalls    []llm.ToolCall
	InputTokens  int64
	OutputTokens int64
	Cost         float64
}

// ChatAdapter is the external collaborator that renders and delivers
// messages to a user over some transport (Telegram, etc).
type ChatAdapter interface {
	Send(ctx context.Context, userID UserID, body string) error
	SendFiles(ctx context.Context, userID UserID, paths []string) error
	React(ctx context.Context, userID UserID, messageRef, emoji string) error
	SetTyping(ctx context.Context, userID UserID) error
	NotifyMenuCommandSet(ctx context.Context, userID UserID, commands []string) error
}

// Clock abstracts wall-clock time and sleeping. The scheduler and the
// session manager do not take a Clock; they read the time package directly.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}
