package taskmanager

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/agenthost/agenthost/internal/store"
	"github.com/agenthost/agenthost/internal/types"
)

// TaskStore persists SubAgentTask documents one file per task, split
// across running_tasks/ and completed_tasks/ per spec §6, with
// completed_tasks/ as the authoritative history.
type TaskStore struct {
	root  string
	locks *store.KeyedMutex[types.UserID]
}

// NewTaskStore returns a TaskStore rooted at the persistence root.
func NewTaskStore(root string) *TaskStore {
	return &TaskStore{root: root, locks: store.NewKeyedMutex[types.UserID]()}
}

func (s *TaskStore) runningPath(userID types.UserID, id types.SubAgentTaskID) string {
	return filepath.Join(s.root, types.UserDir(userID), "data", "running_tasks", string(id)+".json")
}

func (s *TaskStore) completedPath(userID types.UserID, id types.SubAgentTaskID) string {
	return filepath.Join(s.root, types.UserDir(userID), "data", "completed_tasks", string(id)+".json")
}

func isTerminal(status types.SubAgentTaskStatus) bool {
	switch status {
	case types.TaskCompleted, types.TaskFailed, types.TaskCancelled:
		return true
	default:
		return false
	}
}

// Put persists task under running_tasks/ while it is pending or running,
// and moves it to completed_tasks/ once it reaches a terminal status.
func (s *TaskStore) Put(ctx context.Context, task *types.SubAgentTask) error {
	lock := s.locks.For(task.UserID)
	lock.Lock()
	defer lock.Unlock()

	if isTerminal(task.Status) {
		if err := store.WriteJSONAtomic(s.completedPath(task.UserID, task.TaskID), task); err != nil {
			return err
		}
		return removeIfExists(s.runningPath(task.UserID, task.TaskID))
	}
	return store.WriteJSONAtomic(s.runningPath(task.UserID, task.TaskID), task)
}

// Get looks up a task, checking running_tasks/ first, then the
// authoritative completed_tasks/ history.
func (s *TaskStore) Get(ctx context.Context, userID types.UserID, taskID types.SubAgentTaskID) (*types.SubAgentTask, error) {
	lock := s.locks.For(userID)
	lock.Lock()
	defer lock.Unlock()

	var task types.SubAgentTask
	if ok, err := store.ReadJSON(s.runningPath(userID, taskID), &task); err != nil {
		return nil, err
	} else if ok {
		return &task, nil
	}
	if ok, err := store.ReadJSON(s.completedPath(userID, taskID), &task); err != nil {
		return nil, err
	} else if ok {
		return &task, nil
	}
	return nil, types.ErrNotFound
}

// List returns every task for a user, running first then completed, newest
// created first within each group.
func (s *TaskStore) List(ctx context.Context, userID types.UserID) ([]*types.SubAgentTask, error) {
	lock := s.locks.For(userID)
	lock.Lock()
	defer lock.Unlock()

	running, err := s.listDir(filepath.Join(s.root, types.UserDir(userID), "data", "running_tasks"))
	if err != nil {
		return nil, err
	}
	completed, err := s.listDir(filepath.Join(s.root, types.UserDir(userID), "data", "completed_tasks"))
	if err != nil {
		return nil, err
	}

	sort.Slice(running, func(i, j int) bool { return running[i].CreatedAt.After(running[j].CreatedAt) })
	sort.Slice(completed, func(i, j int) bool { return completed[i].CreatedAt.After(completed[j].CreatedAt) })

	return append(running, completed...), nil
}

func (s *TaskStore) listDir(dir string) ([]*types.SubAgentTask, error) {
	entries, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, err
	}
	tasks := make([]*types.SubAgentTask, 0, len(entries))
	for _, path := range entries {
		var task types.SubAgentTask
		if _, err := store.ReadJSON(path, &task); err != nil {
			return nil, err
		}
		tasks = append(tasks, &task)
	}
	return tasks, nil
}

func removeIfExists(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

var _ types.SubAgentTaskStore = (*TaskStore)(nil)
