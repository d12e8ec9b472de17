// Package scheduler implements the typed recurrence engine: it evaluates
// each user's ScheduledTasks against wall-clock time in their timezone and
// submits due fires to the Sub-Agent Task Manager.
package scheduler

import (
	"context"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/agenthost/agenthost/internal/store"
	"github.com/agenthost/agenthost/internal/types"
)

// Store persists ScheduledTasks one JSON document per user plus an
// append-only operation log, grounded on the teacher's per-user JSON file
// plus JSONL append-log layout used elsewhere in the tree (chat logs,
// memories).
type Store struct {
	root  string
	locks *store.KeyedMutex[types.UserID]
}

// NewStore returns a Store rooted at the persistence root.
func NewStore(root string) *Store {
	return &Store{root: root, locks: store.NewKeyedMutex[types.UserID]()}
}

func (s *Store) tasksPath(userID types.UserID) string {
	return filepath.Join(s.root, types.UserDir(userID), "data", "schedules", "tasks.json")
}

func (s *Store) logPath(userID types.UserID) string {
	return filepath.Join(s.root, types.UserDir(userID), "data", "schedules", "operation_log.jsonl")
}

func (s *Store) loadAll(userID types.UserID) (map[types.ScheduledTaskID]*types.ScheduledTask, error) {
	tasks := make(map[types.ScheduledTaskID]*types.ScheduledTask)
	var list []*types.ScheduledTask
	ok, err := store.ReadJSON(s.tasksPath(userID), &list)
	if err != nil {
		return nil, err
	}
	if !ok {
		return tasks, nil
	}
	for _, t := range list {
		tasks[t.TaskID] = t
	}
	return tasks, nil
}

func (s *Store) saveAll(userID types.UserID, tasks map[types.ScheduledTaskID]*types.ScheduledTask) error {
	list := make([]*types.ScheduledTask, 0, len(tasks))
	for _, t := range tasks {
		list = append(list, t)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].TaskID < list[j].TaskID })
	return store.WriteJSONAtomic(s.tasksPath(userID), list)
}

// Get returns one user's ScheduledTask.
func (s *Store) Get(ctx context.Context, userID types.UserID, taskID types.ScheduledTaskID) (*types.ScheduledTask, error) {
	lock := s.locks.For(userID)
	lock.Lock()
	defer lock.Unlock()

	tasks, err := s.loadAll(userID)
	if err != nil {
		return nil, err
	}
	task, ok := tasks[taskID]
	if !ok {
		return nil, types.ErrNotFound
	}
	return task, nil
}

// List returns a user's ScheduledTasks, ordered by task_id for stable
// listing and to match the tick loop's tie-breaking order.
func (s *Store) List(ctx context.Context, userID types.UserID) ([]*types.ScheduledTask, error) {
	lock := s.locks.For(userID)
	lock.Lock()
	defer lock.Unlock()

	tasks, err := s.loadAll(userID)
	if err != nil {
		return nil, err
	}
	list := make([]*types.ScheduledTask, 0, len(tasks))
	for _, t := range tasks {
		list = append(list, t)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].TaskID < list[j].TaskID })
	return list, nil
}

// userDirs lists every user directory under root, used by ListAll.
func (s *Store) userDirs() ([]types.UserID, error) {
	entries, err := filepath.Glob(filepath.Join(s.root, "users", "*"))
	if err != nil {
		return nil, err
	}
	ids := make([]types.UserID, 0, len(entries))
	for _, e := range entries {
		id, err := strconv.ParseInt(filepath.Base(e), 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, types.UserID(id))
	}
	return ids, nil
}

// ListAll returns every ScheduledTask across every user, used by the tick
// loop to find due fires without knowing the set of users up front.
func (s *Store) ListAll(ctx context.Context) ([]*types.ScheduledTask, error) {
	ids, err := s.userDirs()
	if err != nil {
		return nil, err
	}
	var all []*types.ScheduledTask
	for _, id := range ids {
		tasks, err := s.List(ctx, id)
		if err != nil {
			return nil, err
		}
		all = append(all, tasks...)
	}
	return all, nil
}

// Put creates or replaces a ScheduledTask.
func (s *Store) Put(ctx context.Context, task *types.ScheduledTask) error {
	lock := s.locks.For(task.UserID)
	lock.Lock()
	defer lock.Unlock()

	tasks, err := s.loadAll(task.UserID)
	if err != nil {
		return err
	}
	tasks[task.TaskID] = task
	return s.saveAll(task.UserID, tasks)
}

// Delete removes a ScheduledTask.
func (s *Store) Delete(ctx context.Context, userID types.UserID, taskID types.ScheduledTaskID) error {
	lock := s.locks.For(userID)
	lock.Lock()
	defer lock.Unlock()

	tasks, err := s.loadAll(userID)
	if err != nil {
		return err
	}
	if _, ok := tasks[taskID]; !ok {
		return types.ErrNotFound
	}
	delete(tasks, taskID)
	return s.saveAll(userID, tasks)
}

// AppendLog appends one entry to the user's append-only operation log.
func (s *Store) AppendLog(ctx context.Context, userID types.UserID, entry types.ScheduleOperationLogEntry) error {
	lock := s.locks.For(userID)
	lock.Lock()
	defer lock.Unlock()
	return store.AppendJSONL(s.logPath(userID), entry)
}

var _ types.ScheduleStore = (*Store)(nil)
