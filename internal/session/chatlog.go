package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/agenthost/agenthost/internal/store"
	"github.com/agenthost/agenthost/internal/types"
)

// ChatLogStore is a JSONL-backed append-only chat log, one file per
// session, following the teacher's per-session event log layout.
type ChatLogStore struct {
	root  string
	locks *store.KeyedMutex[types.UserID]
}

// NewChatLogStore returns a ChatLogStore rooted at the persistence root.
func NewChatLogStore(root string) *ChatLogStore {
	return &ChatLogStore{root: root, locks: store.NewKeyedMutex[types.UserID]()}
}

func (c *ChatLogStore) logPath(userID types.UserID, sessionID types.SessionID) string {
	return filepath.Join(c.root, types.UserDir(userID), "data", "chat_logs", string(sessionID)+".jsonl")
}

// Append writes turn to the log file for (userID, sessionID).
func (c *ChatLogStore) Append(ctx context.Context, userID types.UserID, sessionID types.SessionID, turn types.ChatTurn) error {
	lock := c.locks.For(userID)
	lock.Lock()
	defer lock.Unlock()

	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now()
	}
	return store.AppendJSONL(c.logPath(userID, sessionID), turn)
}

// Tail returns the last limit turns for (userID, sessionID). limit <= 0
// returns the entire log.
func (c *ChatLogStore) Tail(ctx context.Context, userID types.UserID, sessionID types.SessionID, limit int) ([]types.ChatTurn, error) {
	lock := c.locks.For(userID)
	lock.Lock()
	defer lock.Unlock()

	var turns []types.ChatTurn
	err := store.ReadJSONLInto(c.logPath(userID, sessionID), func(line []byte) error {
		var t types.ChatTurn
		if err := json.Unmarshal(line, &t); err != nil {
			return err
		}
		turns = append(turns, t)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	return turns, nil
}

// TailChars returns the trailing turns whose combined Body length is at
// most maxChars, always including at least the most recent turn.
func (c *ChatLogStore) TailChars(ctx context.Context, userID types.UserID, sessionID types.SessionID, maxChars int) ([]types.ChatTurn, error) {
	all, err := c.Tail(ctx, userID, sessionID, 0)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, nil
	}

	var total int
	start := len(all)
	for start > 0 {
		next := start - 1
		total += len(all[next].Body)
		if total > maxChars && start != len(all) {
			break
		}
		start = next
	}
	return all[start:], nil
}

// Truncate archives the current log file (renaming it out of the way) and
// returns a reference string the ChatSummary can point back to.
func (c *ChatLogStore) Truncate(ctx context.Context, userID types.UserID, sessionID types.SessionID) (string, error) {
	lock := c.locks.For(userID)
	lock.Lock()
	defer lock.Unlock()

	src := c.logPath(userID, sessionID)
	if _, err := os.Stat(src); err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("stat chat log: %w", err)
	}
	archived := src + ".archived"
	if err := os.Rename(src, archived); err != nil {
		return "", fmt.Errorf("archive chat log: %w", err)
	}
	return archived, nil
}

var _ types.ChatLogStore = (*ChatLogStore)(nil)
