// Package session implements the Session & Conversation Lifecycle
// component: at most one active Session per user, an append-only ChatLog,
// and the expiry/recovery machinery around them.
package session

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/agenthost/agenthost/internal/store"
	"github.com/agenthost/agenthost/internal/types"
)

// UserStore is a JSON-file-backed store for the shared users.json file at
// the persistence root, following the teacher's array-on-disk /
// map-in-memory session index pattern.
type UserStore struct {
	root string
	mu   sync.Mutex

	defaultQuotaBytes int64
	defaultTimezone   string
}

// NewUserStore returns a UserStore rooted at the persistence root.
func NewUserStore(root string, defaultQuotaBytes int64, defaultTimezone string) *UserStore {
	if defaultTimezone == "" {
		defaultTimezone = "UTC"
	}
	return &UserStore{root: root, defaultQuotaBytes: defaultQuotaBytes, defaultTimezone: defaultTimezone}
}

func (s *UserStore) path() string {
	return filepath.Join(s.root, "users.json")
}

func (s *UserStore) load() (map[types.UserID]*types.User, error) {
	var list []*types.User
	if _, err := store.ReadJSON(s.path(), &list); err != nil {
		return nil, err
	}
	index := make(map[types.UserID]*types.User, len(list))
	for _, u := range list {
		index[u.ID] = u
	}
	return index, nil
}

func (s *UserStore) save(index map[types.UserID]*types.User) error {
	list := make([]*types.User, 0, len(index))
	for _, u := range index {
		list = append(list, u)
	}
	return store.WriteJSONAtomic(s.path(), list)
}

// Get returns a user, failing with types.ErrNotFound if absent.
func (s *UserStore) Get(ctx context.Context, id types.UserID) (*types.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	index, err := s.load()
	if err != nil {
		return nil, err
	}
	u, ok := index[id]
	if !ok {
		return nil, types.ErrNotFound
	}
	return u, nil
}

// GetOrCreate returns a user, creating one with default quota/timezone on
// first contact.
func (s *UserStore) GetOrCreate(ctx context.Context, id types.UserID) (*types.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	index, err := s.load()
	if err != nil {
		return nil, err
	}
	if u, ok := index[id]; ok {
		return u, nil
	}

	u := &types.User{
		ID:         id,
		QuotaBytes: s.defaultQuotaBytes,
		Enabled:    true,
		Timezone:   s.defaultTimezone,
		CreatedAt:  time.Now(),
	}
	index[id] = u
	if err := s.save(index); err != nil {
		return nil, fmt.Errorf("create user %d: %w", int64(id), err)
	}
	return u, nil
}

// List returns every known user.
func (s *UserStore) List(ctx context.Context) ([]*types.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	index, err := s.load()
	if err != nil {
		return nil, err
	}
	out := make([]*types.User, 0, len(index))
	for _, u := range index {
		out = append(out, u)
	}
	return out, nil
}

// Update persists changes to an existing user.
func (s *UserStore) Update(ctx context.Context, user *types.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	index, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := index[user.ID]; !ok {
		return types.ErrNotFound
	}
	index[user.ID] = user
	return s.save(index)
}

var _ types.UserStore = (*UserStore)(nil)
