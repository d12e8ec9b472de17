// Package filetracker implements the File Tracker component: it snapshots
// a user's working directory before a task runs, diffs it afterward to find
// what changed, and delivers the result through a ChatAdapter.
package filetracker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/agenthost/agenthost/internal/types"
)

var excludeDirs = map[string]bool{
	"temp": true, "tmp": true, "working": true, "cache": true, "drafts": true,
	"__pycache__": true, ".git": true, "node_modules": true, ".venv": true, ".cache": true,
}

var excludeExts = map[string]bool{
	".tmp": true, ".log": true, ".pyc": true, ".pyo": true, ".swp": true, ".swo": true,
}

var excludeSuffixPatterns = []string{
	"_draft", "_temp", "_tmp", "_wip",
}

func isExcludedName(name string) bool {
	if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "~") {
		return true
	}
	ext := filepath.Ext(name)
	if excludeExts[ext] {
		return true
	}
	base := strings.TrimSuffix(name, ext)
	for _, suffix := range excludeSuffixPatterns {
		if strings.HasSuffix(base, suffix) {
			return true
		}
	}
	if strings.Contains(base, "_step") || strings.HasSuffix(base, "_intermediate") {
		return true
	}
	return false
}

// Tracker snapshots and diffs a single working directory root.
type Tracker struct {
	root      string
	startedAt time.Time
	baseline  map[string]types.FileStat
}

// New returns a Tracker rooted at root. root must already exist.
func New(root string) *Tracker {
	return &Tracker{root: root}
}

// resolvedPath returns rel joined onto root (not symlink-resolved), or
// types.ErrPathEscape when rel resolves to a location outside root.
func (t *Tracker) resolvedPath(rel string) (string, error) {
	full := filepath.Join(t.root, rel)
	resolvedRoot, err := filepath.EvalSymlinks(t.root)
	if err != nil {
		return "", fmt.Errorf("resolve root: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(full)
	if err != nil {
		// File may not exist yet during a walk callback error path.
		resolved = full
	}
	if !strings.HasPrefix(resolved, resolvedRoot+string(filepath.Separator)) && resolved != resolvedRoot {
		return "", types.ErrPathEscape
	}
	return full, nil
}

func (t *Tracker) snapshot() (map[string]types.FileStat, error) {
	snapshot := make(map[string]types.FileStat)
	err := filepath.Walk(t.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		rel, err := filepath.Rel(t.root, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		if info.IsDir() {
			if excludeDirs[info.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if isExcludedName(info.Name()) {
			return nil
		}
		if info.Mode()&os.ModeSymlink != 0 {
			if _, err := t.resolvedPath(rel); err != nil {
				return nil
			}
		}
		snapshot[rel] = types.FileStat{ModTime: info.ModTime(), Size: info.Size()}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", t.root, err)
	}
	return snapshot, nil
}

// Start records a baseline snapshot of root.
func (t *Tracker) Start() error {
	snap, err := t.snapshot()
	if err != nil {
		return err
	}
	t.baseline = snap
	t.startedAt = time.Now()
	return nil
}

// Diff rescans root and returns every path new or changed relative to the
// baseline recorded by Start. Calling Diff repeatedly with no intervening
// mutation returns the same result (idempotent).
func (t *Tracker) Diff() ([]string, error) {
	current, err := t.snapshot()
	if err != nil {
		return nil, err
	}
	var changed []string
	for rel, stat := range current {
		base, ok := t.baseline[rel]
		if !ok || !base.ModTime.Equal(stat.ModTime) || base.Size != stat.Size {
			changed = append(changed, rel)
		}
	}
	return changed, nil
}

// Cleanup removes the contents of the temp subdirectory under root, if any.
func (t *Tracker) Cleanup() error {
	tempDir := filepath.Join(t.root, "temp")
	entries, err := os.ReadDir(tempDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read temp dir: %w", err)
	}
	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(tempDir, entry.Name())); err != nil {
			return fmt.Errorf("remove %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// Manifest lists tracked paths under root without running a diff, for
// read-only inspection (e.g. a dashboard file listing).
func (t *Tracker) Manifest() ([]string, error) {
	snap, err := t.snapshot()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(snap))
	for rel := range snap {
		out = append(out, rel)
	}
	return out, nil
}

// SaveSnapshot persists the current baseline via s, for restart durability.
func (t *Tracker) SaveSnapshot(ctx context.Context, s types.ArtifactStore, userID types.UserID) error {
	return s.SaveSnapshot(ctx, userID, t.baseline)
}

// LoadSnapshot restores the baseline from s.
func (t *Tracker) LoadSnapshot(ctx context.Context, s types.ArtifactStore, userID types.UserID) error {
	snap, err := s.LoadSnapshot(ctx, userID)
	if err != nil {
		return err
	}
	t.baseline = snap
	return nil
}
