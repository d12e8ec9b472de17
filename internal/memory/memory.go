// Package memory implements the Memory Store component: persistent
// structured facts about a user, kept newest-first with a supersede chain.
package memory

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/agenthost/agenthost/internal/store"
	"github.com/agenthost/agenthost/internal/types"
)

// Store is a JSON-file-backed Memory Store, one file per user at
// data/memories.json, matching the teacher's one-mutex-per-file discipline.
type Store struct {
	root  string
	locks *store.KeyedMutex[types.UserID]
}

// New returns a Store rooted at the persistence root.
func New(root string) *Store {
	return &Store{root: root, locks: store.NewKeyedMutex[types.UserID]()}
}

func (s *Store) path(userID types.UserID) string {
	return filepath.Join(s.root, types.UserDir(userID), "data", "memories.json")
}

func (s *Store) load(userID types.UserID) ([]*types.Memory, error) {
	var memories []*types.Memory
	_, err := store.ReadJSON(s.path(userID), &memories)
	if err != nil {
		return nil, err
	}
	return memories, nil
}

func (s *Store) save(userID types.UserID, memories []*types.Memory) error {
	return store.WriteJSONAtomic(s.path(userID), memories)
}

// Add appends m to the front of the user's memory list (newest-first),
// filling in Visibility from the category default when unset.
func (s *Store) Add(ctx context.Context, m *types.Memory) error {
	if !types.ValidCategories[m.Category] {
		return fmt.Errorf("memory: unknown category %q", m.Category)
	}
	if m.Visibility == "" {
		m.Visibility = types.DefaultVisibility(m.Category)
	}
	if m.ID == "" {
		m.ID = types.NewMemoryID()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	if m.ValidFrom.IsZero() {
		m.ValidFrom = m.CreatedAt
	}

	lock := s.locks.For(m.UserID)
	lock.Lock()
	defer lock.Unlock()

	memories, err := s.load(m.UserID)
	if err != nil {
		return err
	}
	memories = append([]*types.Memory{m}, memories...)
	return s.save(m.UserID, memories)
}

// AddWithSupersede saves m and atomically marks supersedesID's Memory as
// superseded, closing its validity window.
func (s *Store) AddWithSupersede(ctx context.Context, m *types.Memory, supersedesID types.MemoryID) error {
	if !types.ValidCategories[m.Category] {
		return fmt.Errorf("memory: unknown category %q", m.Category)
	}
	if m.Visibility == "" {
		m.Visibility = types.DefaultVisibility(m.Category)
	}
	if m.ID == "" {
		m.ID = types.NewMemoryID()
	}
	now := time.Now()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	if m.ValidFrom.IsZero() {
		m.ValidFrom = m.CreatedAt
	}
	m.SupersedesID = &supersedesID

	lock := s.locks.For(m.UserID)
	lock.Lock()
	defer lock.Unlock()

	memories, err := s.load(m.UserID)
	if err != nil {
		return err
	}

	found := false
	for _, existing := range memories {
		if existing.ID == supersedesID {
			if existing.SupersededByID != nil {
				return types.ErrSuperseded
			}
			existing.SupersededByID = &m.ID
			existing.ValidUntil = &now
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("memory: supersede target %s: %w", supersedesID, types.ErrNotFound)
	}

	memories = append([]*types.Memory{m}, memories...)
	return s.save(m.UserID, memories)
}

// Get returns a single memory by id.
func (s *Store) Get(ctx context.Context, userID types.UserID, id types.MemoryID) (*types.Memory, error) {
	lock := s.locks.For(userID)
	lock.Lock()
	defer lock.Unlock()

	memories, err := s.load(userID)
	if err != nil {
		return nil, err
	}
	for _, m := range memories {
		if m.ID == id {
			return m, nil
		}
	}
	return nil, types.ErrNotFound
}

// List returns every memory for a user in on-disk (newest-first) order,
// including superseded entries.
func (s *Store) List(ctx context.Context, userID types.UserID) ([]*types.Memory, error) {
	lock := s.locks.For(userID)
	lock.Lock()
	defer lock.Unlock()
	return s.load(userID)
}

// SearchOptions narrows a Search call.
type SearchOptions struct {
	Query             string
	Category          types.MemoryCategory
	Limit             int
	IncludeSuperseded bool
}

// Search returns memories matching Query as a substring of Content or a tag,
// optionally filtered by category, most-recent-first. Superseded entries are
// excluded unless explicitly requested.
func (s *Store) Search(ctx context.Context, userID types.UserID, opts SearchOptions) ([]*types.Memory, error) {
	memories, err := s.List(ctx, userID)
	if err != nil {
		return nil, err
	}

	var out []*types.Memory
	q := strings.ToLower(opts.Query)
	for _, m := range memories {
		if !opts.IncludeSuperseded && !m.Current() {
			continue
		}
		if opts.Category != "" && m.Category != opts.Category {
			continue
		}
		if q != "" && !matches(m, q) {
			continue
		}
		out = append(out, m)
		if opts.Limit > 0 && len(out) >= opts.Limit {
			break
		}
	}
	return out, nil
}

func matches(m *types.Memory, q string) bool {
	if strings.Contains(strings.ToLower(m.Content), q) {
		return true
	}
	for _, tag := range m.Tags {
		if strings.Contains(strings.ToLower(tag), q) {
			return true
		}
	}
	return false
}

// ListTimeline returns the full supersede chain for a category (or every
// category when empty), ordered by CreatedAt ascending, including
// superseded entries.
func (s *Store) ListTimeline(ctx context.Context, userID types.UserID, category types.MemoryCategory) ([]*types.Memory, error) {
	memories, err := s.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	var out []*types.Memory
	for _, m := range memories {
		if category != "" && m.Category != category {
			continue
		}
		out = append(out, m)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// UpdateFields is the set of mutable Memory fields for Update.
type UpdateFields struct {
	Content       *string
	Visibility    *types.MemoryVisibility
	UserConfirmed *bool
}

// Update applies fields to a memory in place.
func (s *Store) Update(ctx context.Context, userID types.UserID, id types.MemoryID, fields UpdateFields) (*types.Memory, error) {
	lock := s.locks.For(userID)
	lock.Lock()
	defer lock.Unlock()

	memories, err := s.load(userID)
	if err != nil {
		return nil, err
	}
	for _, m := range memories {
		if m.ID != id {
			continue
		}
		if fields.Content != nil {
			m.Content = *fields.Content
		}
		if fields.Visibility != nil {
			m.Visibility = *fields.Visibility
		}
		if fields.UserConfirmed != nil {
			m.UserConfirmed = *fields.UserConfirmed
		}
		if err := s.save(userID, memories); err != nil {
			return nil, err
		}
		return m, nil
	}
	return nil, types.ErrNotFound
}

// Delete removes a memory outright.
func (s *Store) Delete(ctx context.Context, userID types.UserID, id types.MemoryID) error {
	lock := s.locks.For(userID)
	lock.Lock()
	defer lock.Unlock()

	memories, err := s.load(userID)
	if err != nil {
		return err
	}
	for i, m := range memories {
		if m.ID == id {
			memories = append(memories[:i], memories[i+1:]...)
			return s.save(userID, memories)
		}
	}
	return types.ErrNotFound
}

// Stats reports counts by category, visibility, and source type.
type Stats struct {
	ByCategory   map[types.MemoryCategory]int
	ByVisibility map[types.MemoryVisibility]int
	BySource     map[types.MemorySourceType]int
	Total        int
}

// Stats computes aggregate counts over a user's live (non-superseded)
// memories. BySource is a supplemented breakdown from original_source/'s
// analyzer, exposing a field the distilled data model kept but never
// surfaced an operation for.
func (s *Store) Stats(ctx context.Context, userID types.UserID) (Stats, error) {
	memories, err := s.List(ctx, userID)
	if err != nil {
		return Stats{}, err
	}
	stats := Stats{
		ByCategory:   make(map[types.MemoryCategory]int),
		ByVisibility: make(map[types.MemoryVisibility]int),
		BySource:     make(map[types.MemorySourceType]int),
	}
	for _, m := range memories {
		if !m.Current() {
			continue
		}
		stats.ByCategory[m.Category]++
		stats.ByVisibility[m.Visibility]++
		stats.BySource[m.SourceType]++
		stats.Total++
	}
	return stats, nil
}

var _ types.MemoryStore = (*storeAdapter)(nil)

// storeAdapter narrows Store to the minimal types.MemoryStore interface
// used by other components that only need Add/Get/List/Update.
type storeAdapter struct{ *Store }

func (a *storeAdapter) Update(ctx context.Context, m *types.Memory) error {
	_, err := a.Store.Update(ctx, m.UserID, m.ID, UpdateFields{
		Content:       &m.Content,
		Visibility:    &m.Visibility,
		UserConfirmed: &m.UserConfirmed,
	})
	return err
}

// AsMemoryStore adapts s to the shared types.MemoryStore interface.
func AsMemoryStore(s *Store) types.MemoryStore { return &storeAdapter{s} }
