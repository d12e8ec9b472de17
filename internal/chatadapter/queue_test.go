package chatadapter

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/agenthost/agenthost/internal/types"
)

type recordingBackend struct {
	mu   sync.Mutex
	sent []string
}

func (b *recordingBackend) record(s string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, s)
}

func (b *recordingBackend) snapshot() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.sent))
	copy(out, b.sent)
	return out
}

func (b *recordingBackend) Send(ctx context.Context, userID types.UserID, body string) error {
	b.record("send:" + body)
	return nil
}
func (b *recordingBackend) SendFiles(ctx context.Context, userID types.UserID, paths []string) error {
	b.record("files")
	return nil
}
func (b *recordingBackend) React(ctx context.Context, userID types.UserID, messageRef, emoji string) error {
	b.record("react")
	return nil
}
func (b *recordingBackend) SetTyping(ctx context.Context, userID types.UserID) error {
	b.record("typing")
	return nil
}
func (b *recordingBackend) NotifyMenuCommandSet(ctx context.Context, userID types.UserID, commands []string) error {
	b.record("menu")
	return nil
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestQueuedAdapterPreservesOrderPerUser(t *testing.T) {
	backend := &recordingBackend{}
	q := New(backend, nil)
	defer q.Stop()

	uid := types.UserID(1)
	q.Send(context.Background(), uid, "one")
	q.Send(context.Background(), uid, "two")
	q.Send(context.Background(), uid, "three")

	waitUntil(t, func() bool { return len(backend.snapshot()) == 3 })

	got := backend.snapshot()
	want := []string{"send:one", "send:two", "send:three"}
	for i, w := range want {
		if got[i] != w {
			t.Errorf("index %d: expected %q, got %q", i, w, got[i])
		}
	}
}

func TestQueuedAdapterSeparatesLanesPerUser(t *testing.T) {
	backend := &recordingBackend{}
	q := New(backend, nil)
	defer q.Stop()

	q.Send(context.Background(), types.UserID(1), "a")
	q.Send(context.Background(), types.UserID(2), "b")

	waitUntil(t, func() bool { return len(backend.snapshot()) == 2 })
}
