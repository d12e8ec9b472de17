package session

import (
	"context"
	"testing"

	"github.com/agenthost/agenthost/internal/types"
)

func TestChatLogAppendAndTail(t *testing.T) {
	c := NewChatLogStore(t.TempDir())
	ctx := context.Background()
	uid, sid := types.UserID(1), types.NewSessionID()

	for i := 0; i < 5; i++ {
		if err := c.Append(ctx, uid, sid, types.ChatTurn{Role: "user", Body: "msg"}); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	tail, err := c.Tail(ctx, uid, sid, 2)
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if len(tail) != 2 {
		t.Errorf("expected 2 turns, got %d", len(tail))
	}
}

func TestChatLogTailCharsAlwaysIncludesLatest(t *testing.T) {
	c := NewChatLogStore(t.TempDir())
	ctx := context.Background()
	uid, sid := types.UserID(1), types.NewSessionID()

	c.Append(ctx, uid, sid, types.ChatTurn{Role: "user", Body: "this is a very long message that exceeds the tiny budget"})

	turns, err := c.TailChars(ctx, uid, sid, 5)
	if err != nil {
		t.Fatalf("TailChars: %v", err)
	}
	if len(turns) != 1 {
		t.Fatalf("expected at least the latest turn, got %d", len(turns))
	}
}

func TestChatLogTruncateArchivesFile(t *testing.T) {
	c := NewChatLogStore(t.TempDir())
	ctx := context.Background()
	uid, sid := types.UserID(1), types.NewSessionID()
	c.Append(ctx, uid, sid, types.ChatTurn{Role: "user", Body: "hi"})

	ref, err := c.Truncate(ctx, uid, sid)
	if err != nil {
		t.Fatalf("Truncate: %v", err)
	}
	if ref == "" {
		t.Error("expected a non-empty archive reference")
	}

	tail, err := c.Tail(ctx, uid, sid, 0)
	if err != nil {
		t.Fatalf("Tail after truncate: %v", err)
	}
	if len(tail) != 0 {
		t.Errorf("expected empty log after truncate, got %d turns", len(tail))
	}
}
