package session

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/agenthost/agenthost/internal/store"
	"github.com/agenthost/agenthost/internal/types"
)

// PointerStore is a JSON-file-backed store for the shared sessions.json
// file: at most one active Session per user.
type PointerStore struct {
	root string
	mu   sync.Mutex
}

// NewPointerStore returns a PointerStore rooted at the persistence root.
func NewPointerStore(root string) *PointerStore {
	return &PointerStore{root: root}
}

func (s *PointerStore) path() string {
	return filepath.Join(s.root, "sessions.json")
}

func (s *PointerStore) load() (map[types.UserID]*types.Session, error) {
	var list []*types.Session
	if _, err := store.ReadJSON(s.path(), &list); err != nil {
		return nil, err
	}
	index := make(map[types.UserID]*types.Session, len(list))
	for _, sess := range list {
		index[sess.UserID] = sess
	}
	return index, nil
}

func (s *PointerStore) save(index map[types.UserID]*types.Session) error {
	list := make([]*types.Session, 0, len(index))
	for _, sess := range index {
		list = append(list, sess)
	}
	return store.WriteJSONAtomic(s.path(), list)
}

// Get returns the current session pointer for userID, or types.ErrNotFound
// if the user has none.
func (s *PointerStore) Get(ctx context.Context, userID types.UserID) (*types.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	index, err := s.load()
	if err != nil {
		return nil, err
	}
	sess, ok := index[userID]
	if !ok {
		return nil, types.ErrNotFound
	}
	return sess, nil
}

// Put sets or replaces the session pointer for its user.
func (s *PointerStore) Put(ctx context.Context, sess *types.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	index, err := s.load()
	if err != nil {
		return err
	}
	index[sess.UserID] = sess
	return s.save(index)
}

// Delete nulls the session pointer for userID.
func (s *PointerStore) Delete(ctx context.Context, userID types.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	index, err := s.load()
	if err != nil {
		return err
	}
	delete(index, userID)
	return s.save(index)
}

var _ types.SessionStore = (*PointerStore)(nil)
