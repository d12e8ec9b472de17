package filetracker

import (
	"context"
	"path/filepath"

	"github.com/agenthost/agenthost/internal/store"
	"github.com/agenthost/agenthost/internal/types"
)

// SnapshotStore persists File Tracker baselines to a single JSON file per
// user, following the teacher's per-file JSON-plus-mutex artifact pattern.
type SnapshotStore struct {
	root  string
	locks *store.KeyedMutex[types.UserID]
}

// NewSnapshotStore returns a SnapshotStore rooted at the persistence root.
func NewSnapshotStore(root string) *SnapshotStore {
	return &SnapshotStore{root: root, locks: store.NewKeyedMutex[types.UserID]()}
}

func (s *SnapshotStore) path(userID types.UserID) string {
	return filepath.Join(s.root, types.UserDir(userID), "data", "filetracker_snapshot.json")
}

// SaveSnapshot writes the baseline for userID atomically.
func (s *SnapshotStore) SaveSnapshot(ctx context.Context, userID types.UserID, files map[string]types.FileStat) error {
	lock := s.locks.For(userID)
	lock.Lock()
	defer lock.Unlock()
	return store.WriteJSONAtomic(s.path(userID), files)
}

// LoadSnapshot reads the baseline for userID, returning an empty map when
// none has been recorded yet.
func (s *SnapshotStore) LoadSnapshot(ctx context.Context, userID types.UserID) (map[string]types.FileStat, error) {
	lock := s.locks.For(userID)
	lock.Lock()
	defer lock.Unlock()

	files := make(map[string]types.FileStat)
	if _, err := store.ReadJSON(s.path(userID), &files); err != nil {
		return nil, err
	}
	return files, nil
}

var _ types.ArtifactStore = (*SnapshotStore)(nil)
