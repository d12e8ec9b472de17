package session

import (
	"context"
	"path/filepath"
	"sort"

	"github.com/agenthost/agenthost/internal/store"
	"github.com/agenthost/agenthost/internal/types"
)

// SummaryStore persists ChatSummary documents one file per summary under
// data/chat_summaries/, matching the teacher's per-item artifact layout.
type SummaryStore struct {
	root  string
	locks *store.KeyedMutex[types.UserID]
}

// NewSummaryStore returns a SummaryStore rooted at the persistence root.
func NewSummaryStore(root string) *SummaryStore {
	return &SummaryStore{root: root, locks: store.NewKeyedMutex[types.UserID]()}
}

func (s *SummaryStore) dir(userID types.UserID) string {
	return filepath.Join(s.root, types.UserDir(userID), "data", "chat_summaries")
}

func (s *SummaryStore) path(userID types.UserID, id types.ChatSummaryID) string {
	return filepath.Join(s.dir(userID), string(id)+".json")
}

// Add persists a new summary.
func (s *SummaryStore) Add(ctx context.Context, summary *types.ChatSummary) error {
	if summary.ID == "" {
		summary.ID = types.NewChatSummaryID()
	}
	lock := s.locks.For(summary.UserID)
	lock.Lock()
	defer lock.Unlock()
	return store.WriteJSONAtomic(s.path(summary.UserID, summary.ID), summary)
}

// List returns every summary for a user, oldest first.
func (s *SummaryStore) List(ctx context.Context, userID types.UserID) ([]*types.ChatSummary, error) {
	lock := s.locks.For(userID)
	lock.Lock()
	defer lock.Unlock()

	entries, err := filepath.Glob(filepath.Join(s.dir(userID), "*.json"))
	if err != nil {
		return nil, err
	}
	summaries := make([]*types.ChatSummary, 0, len(entries))
	for _, path := range entries {
		var summary types.ChatSummary
		if _, err := store.ReadJSON(path, &summary); err != nil {
			return nil, err
		}
		summaries = append(summaries, &summary)
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].CreatedAt.Before(summaries[j].CreatedAt)
	})
	return summaries, nil
}

// Latest returns the most recently created summary for a user.
func (s *SummaryStore) Latest(ctx context.Context, userID types.UserID) (*types.ChatSummary, error) {
	all, err := s.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, types.ErrNotFound
	}
	return all[len(all)-1], nil
}

// Recent returns the n most recent summaries, most-recent-first.
func (s *SummaryStore) Recent(ctx context.Context, userID types.UserID, n int) ([]*types.ChatSummary, error) {
	all, err := s.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	if n <= 0 || n > len(all) {
		n = len(all)
	}
	out := make([]*types.ChatSummary, n)
	for i := 0; i < n; i++ {
		out[i] = all[len(all)-1-i]
	}
	return out, nil
}

var _ types.ChatSummaryStore = (*SummaryStore)(nil)
