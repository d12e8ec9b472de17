package session

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/agenthost/agenthost/internal/eventbus"
	"github.com/agenthost/agenthost/internal/types"
)

// ExpireReason names why a Session is being retired, per spec §4.1.
type ExpireReason string

const (
	ExpireTimeout       ExpireReason = "timeout"
	ExpireRemoteUnknown ExpireReason = "remote_unknown"
	ExpireManualNew     ExpireReason = "manual_new"
	ExpireCompact       ExpireReason = "compact"
)

// Config bounds Manager's timeouts and context-recovery budgets.
type Config struct {
	SessionTimeout        time.Duration
	ContextStaleThreshold time.Duration
	RecoverContextChars   int
	RecoverContextLogs    int
}

// DefaultConfig returns the spec's stated defaults: 60 minute session
// timeout, 10 minute stale threshold, 8000 character context recovery
// window, 3 most recent summaries.
func DefaultConfig() Config {
	return Config{
		SessionTimeout:        60 * time.Minute,
		ContextStaleThreshold: 10 * time.Minute,
		RecoverContextChars:   8000,
		RecoverContextLogs:    3,
	}
}

// Manager owns the Session lifecycle for every user: at most one active
// Session, its ChatLog, and the ChatSummary chain left behind on expiry.
type Manager struct {
	cfg       Config
	pointers  *PointerStore
	chatlog   *ChatLogStore
	summaries *SummaryStore
	llm       types.LLMBackend
	bus       *eventbus.Bus

	expiryGroup singleflight.Group
}

// NewManager wires the Session lifecycle.
func NewManager(cfg Config, pointers *PointerStore, chatlog *ChatLogStore, summaries *SummaryStore, llm types.LLMBackend, bus *eventbus.Bus) *Manager {
	return &Manager{
		cfg:       cfg,
		pointers:  pointers,
		chatlog:   chatlog,
		summaries: summaries,
		llm:       llm,
		bus:       bus,
	}
}

// OpenOrResume returns the user's active Session, creating one if none
// exists or the existing one has timed out.
func (m *Manager) OpenOrResume(ctx context.Context, userID types.UserID) (*types.Session, error) {
	existing, err := m.pointers.Get(ctx, userID)
	if err != nil && err != types.ErrNotFound {
		return nil, fmt.Errorf("load session pointer: %w", err)
	}

	if existing != nil && existing.Status == types.SessionActive {
		if time.Since(existing.LastActivity) < m.cfg.SessionTimeout {
			return existing, nil
		}
		if _, err := m.Expire(ctx, userID, ExpireTimeout); err != nil {
			return nil, fmt.Errorf("expire stale session: %w", err)
		}
	}

	now := time.Now()
	sess := &types.Session{
		ID:           types.NewSessionID(),
		UserID:       userID,
		CreatedAt:    now,
		LastActivity: now,
		Status:       types.SessionActive,
	}
	if err := m.pointers.Put(ctx, sess); err != nil {
		return nil, fmt.Errorf("persist new session: %w", err)
	}
	return sess, nil
}

// RecordTurn appends a turn to the session's ChatLog and updates its
// rolling counters.
func (m *Manager) RecordTurn(ctx context.Context, sess *types.Session, role, body string, inputTokens, outputTokens int64, cost float64) error {
	turn := types.ChatTurn{
		Role:         role,
		Body:         body,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		Cost:         cost,
	}
	if err := m.chatlog.Append(ctx, sess.UserID, sess.ID, turn); err != nil {
		return fmt.Errorf("append chat turn: %w", err)
	}

	sess.LastActivity = time.Now()
	sess.MessageCount++
	if role == "assistant" {
		sess.Turns++
	}
	sess.InputTokens += inputTokens
	sess.OutputTokens += outputTokens
	sess.Cost += cost

	if err := m.pointers.Put(ctx, sess); err != nil {
		return fmt.Errorf("persist session after turn: %w", err)
	}
	return nil
}

// Expire retires the user's active session: it synthesizes a ChatSummary,
// marks the session archived, and nulls the pointer. Only one expiry is
// in flight per user; concurrent callers observe the same result.
func (m *Manager) Expire(ctx context.Context, userID types.UserID, reason ExpireReason) (*types.ChatSummary, error) {
	key := fmt.Sprintf("%d", int64(userID))
	v, err, _ := m.expiryGroup.Do(key, func() (any, error) {
		return m.doExpire(ctx, userID, reason)
	})
	if err != nil {
		return nil, err
	}
	return v.(*types.ChatSummary), nil
}

func (m *Manager) doExpire(ctx context.Context, userID types.UserID, reason ExpireReason) (*types.ChatSummary, error) {
	sess, err := m.pointers.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load session for expiry: %w", err)
	}
	if sess.Status == types.SessionArchived {
		latest, err := m.summaries.Latest(ctx, userID)
		if err != nil && err != types.ErrNotFound {
			return nil, err
		}
		return latest, nil
	}

	turns, err := m.chatlog.Tail(ctx, userID, sess.ID, 0)
	if err != nil {
		return nil, fmt.Errorf("read chat log for summary: %w", err)
	}

	summary := m.summarize(ctx, turns)
	summary.ID = types.NewChatSummaryID()
	summary.UserID = userID
	summary.RangeStart = sess.CreatedAt
	summary.RangeEnd = time.Now()
	summary.CreatedAt = time.Now()

	ref, err := m.chatlog.Truncate(ctx, userID, sess.ID)
	if err != nil {
		return nil, fmt.Errorf("archive chat log: %w", err)
	}
	summary.OriginalLogRef = ref

	if err := m.summaries.Add(ctx, summary); err != nil {
		return nil, fmt.Errorf("persist summary: %w", err)
	}

	sess.Status = types.SessionArchived
	if err := m.pointers.Put(ctx, sess); err != nil {
		return nil, fmt.Errorf("mark session archived: %w", err)
	}
	if err := m.pointers.Delete(ctx, userID); err != nil {
		return nil, fmt.Errorf("null session pointer: %w", err)
	}

	return summary, nil
}

// summarize calls the LLM backend to compress turns into a ChatSummary. On
// backend failure it falls back to a deterministic first-N-and-last-N
// summary with aggregate stats, so expiry always completes.
func (m *Manager) summarize(ctx context.Context, turns []types.ChatTurn) *types.ChatSummary {
	text := renderTurns(turns)
	if m.llm != nil {
		if summaryText, err := m.llm.Summarize(ctx, text); err == nil {
			return &types.ChatSummary{SummaryText: summaryText}
		}
	}
	return &types.ChatSummary{SummaryText: fallbackSummary(turns), Fallback: true}
}

func renderTurns(turns []types.ChatTurn) string {
	var out string
	for _, t := range turns {
		out += fmt.Sprintf("[%s] %s: %s\n", t.Timestamp.Format(time.RFC3339), t.Role, t.Body)
	}
	return out
}

// fallbackSummary keeps the first and last few turns plus aggregate stats,
// used when the LLM backend cannot be reached to produce a real summary.
func fallbackSummary(turns []types.ChatTurn) string {
	const edge = 3
	if len(turns) <= 2*edge {
		return fmt.Sprintf("%d turns (fallback, no LLM summary available):\n%s", len(turns), renderTurns(turns))
	}

	var inTok, outTok int64
	var cost float64
	for _, t := range turns {
		inTok += t.InputTokens
		outTok += t.OutputTokens
		cost += t.Cost
	}

	head := renderTurns(turns[:edge])
	tail := renderTurns(turns[len(turns)-edge:])
	return fmt.Sprintf(
		"%d turns, %d input tokens, %d output tokens, cost %.4f (fallback summary).\nFirst %d turns:\n%s...\nLast %d turns:\n%s",
		len(turns), inTok, outTok, cost, edge, head, edge, tail,
	)
}

// RecoveredContext is the context block recover_context returns per spec §4.1.
type RecoveredContext struct {
	LogExcerpt string
	Summaries  []*types.ChatSummary
}

// RecoverContext returns a context block containing the trailing whole
// turns of the current session's ChatLog whose bodies total at most
// RecoverContextChars characters (the most recent turn is always included,
// even when longer), plus the RecoverContextLogs most recent ChatSummaries.
// Turns are not cut mid-body, so the excerpt is not exactly the last
// RecoverContextChars characters of the log.
func (m *Manager) RecoverContext(ctx context.Context, userID types.UserID) (*RecoveredContext, error) {
	sess, err := m.pointers.Get(ctx, userID)
	var excerpt string
	if err == nil {
		turns, terr := m.chatlog.TailChars(ctx, userID, sess.ID, m.cfg.RecoverContextChars)
		if terr != nil {
			return nil, fmt.Errorf("tail chat log: %w", terr)
		}
		excerpt = renderTurns(turns)
	} else if err != types.ErrNotFound {
		return nil, fmt.Errorf("load session pointer: %w", err)
	}

	recent, err := m.summaries.Recent(ctx, userID, m.cfg.RecoverContextLogs)
	if err != nil {
		return nil, fmt.Errorf("load recent summaries: %w", err)
	}

	return &RecoveredContext{LogExcerpt: excerpt, Summaries: recent}, nil
}

// ShouldRecover reports whether the turn loop (internal/turn) should call
// RecoverContext before its next LLM call: the session is stale beyond
// ContextStaleThreshold since last activity.
func (m *Manager) ShouldRecover(sess *types.Session) bool {
	return time.Since(sess.LastActivity) > m.cfg.ContextStaleThreshold
}
