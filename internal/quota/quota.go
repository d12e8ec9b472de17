// Package quota implements the QuotaGate collaborator from spec §6: a soft
// check that a user's working directory has room for a proposed write.
package quota

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/agenthost/agenthost/internal/types"
)

// FileGate computes usage by walking a user's working directory on demand
// and compares it against a per-user quota recorded at User creation time.
// One mutex per user serializes Check calls for that user; writers and
// Report do not take it, so a write can land while usage is being computed.
type FileGate struct {
	root       string
	defaultCap int64
	users      types.UserStore

	mu    sync.Mutex
	locks map[types.UserID]*sync.Mutex
}

// New returns a FileGate rooted at the persistence root, consulting users
// for each User's QuotaBytes ceiling.
func New(root string, defaultQuotaBytes int64, users types.UserStore) *FileGate {
	return &FileGate{
		root:       root,
		defaultCap: defaultQuotaBytes,
		users:      users,
		locks:      make(map[types.UserID]*sync.Mutex),
	}
}

func (g *FileGate) lockFor(id types.UserID) *sync.Mutex {
	g.mu.Lock()
	defer g.mu.Unlock()
	if l, ok := g.locks[id]; ok {
		return l
	}
	l := &sync.Mutex{}
	g.locks[id] = l
	return l
}

func (g *FileGate) dataDir(id types.UserID) string {
	return filepath.Join(g.root, types.UserDir(id), "data")
}

// usage walks the user's data directory and sums file sizes. A directory
// that does not exist yet reports zero usage.
func (g *FileGate) usage(id types.UserID) (int64, error) {
	var total int64
	err := filepath.Walk(g.dataDir(id), func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("walk data dir for user %d: %w", int64(id), err)
	}
	return total, nil
}

func (g *FileGate) quotaFor(ctx context.Context, id types.UserID) (int64, error) {
	user, err := g.users.GetOrCreate(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("resolve user %d: %w", int64(id), err)
	}
	if user.QuotaBytes > 0 {
		return user.QuotaBytes, nil
	}
	return g.defaultCap, nil
}

// Check reports whether writing additionalBytes more would keep the user
// at or under their quota ceiling.
func (g *FileGate) Check(ctx context.Context, userID types.UserID, additionalBytes int64) (bool, string, error) {
	lock := g.lockFor(userID)
	lock.Lock()
	defer lock.Unlock()

	used, err := g.usage(userID)
	if err != nil {
		return false, "", err
	}
	quota, err := g.quotaFor(ctx, userID)
	if err != nil {
		return false, "", err
	}
	if used+additionalBytes > quota {
		return false, fmt.Sprintf("would use %d of %d byte quota", used+additionalBytes, quota), nil
	}
	return true, "", nil
}

// Report returns the user's current usage and quota, in bytes.
func (g *FileGate) Report(ctx context.Context, userID types.UserID) (int64, int64, error) {
	used, err := g.usage(userID)
	if err != nil {
		return 0, 0, err
	}
	quota, err := g.quotaFor(ctx, userID)
	if err != nil {
		return 0, 0, err
	}
	return used, quota, nil
}

var _ types.QuotaGate = (*FileGate)(nil)
