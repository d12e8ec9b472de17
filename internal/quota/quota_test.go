package quota

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/agenthost/agenthost/internal/types"
)

type fakeUsers struct {
	users map[types.UserID]*types.User
}

func newFakeUsers() *fakeUsers { return &fakeUsers{users: make(map[types.UserID]*types.User)} }

func (f *fakeUsers) Get(_ context.Context, id types.UserID) (*types.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, types.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsers) GetOrCreate(_ context.Context, id types.UserID) (*types.User, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	u := &types.User{ID: id, Enabled: true}
	f.users[id] = u
	return u, nil
}

func (f *fakeUsers) List(_ context.Context) ([]*types.User, error) {
	var out []*types.User
	for _, u := range f.users {
		out = append(out, u)
	}
	return out, nil
}

func (f *fakeUsers) Update(_ context.Context, u *types.User) error {
	f.users[u.ID] = u
	return nil
}

func TestFileGateCheckWithinQuota(t *testing.T) {
	root := t.TempDir()
	users := newFakeUsers()
	gate := New(root, 1024, users)
	ctx := context.Background()

	ok, reason, err := gate.Check(ctx, types.UserID(1), 100)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !ok {
		t.Fatalf("expected ok, got denied: %s", reason)
	}
}

func TestFileGateCheckOverQuota(t *testing.T) {
	root := t.TempDir()
	users := newFakeUsers()
	gate := New(root, 10, users)
	ctx := context.Background()

	dataDir := filepath.Join(root, types.UserDir(1), "data")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dataDir, "f.txt"), []byte("0123456789"), 0o644); err != nil {
		t.Fatal(err)
	}

	ok, reason, err := gate.Check(ctx, types.UserID(1), 5)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if ok {
		t.Fatal("expected denial when over quota")
	}
	if reason == "" {
		t.Error("expected a denial reason")
	}
}

func TestFileGateReport(t *testing.T) {
	root := t.TempDir()
	users := newFakeUsers()
	gate := New(root, 500, users)
	ctx := context.Background()

	used, quota, err := gate.Report(ctx, types.UserID(2))
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if used != 0 {
		t.Errorf("expected 0 used for empty dir, got %d", used)
	}
	if quota != 500 {
		t.Errorf("expected default quota 500, got %d", quota)
	}
}
