package session

import (
	"context"
	"testing"
	"time"

	"github.com/agenthost/agenthost/internal/types"
)

func TestSummaryStoreLatestAndRecent(t *testing.T) {
	s := NewSummaryStore(t.TempDir())
	ctx := context.Background()
	uid := types.UserID(1)

	base := time.Now()
	for i := 0; i < 4; i++ {
		summary := &types.ChatSummary{
			UserID:      uid,
			SummaryText: "s",
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		}
		if err := s.Add(ctx, summary); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	latest, err := s.Latest(ctx, uid)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if !latest.CreatedAt.Equal(base.Add(3 * time.Minute)) {
		t.Errorf("expected the most recent summary, got created_at %v", latest.CreatedAt)
	}

	recent, err := s.Recent(ctx, uid, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(recent))
	}
	if !recent[0].CreatedAt.Equal(base.Add(3 * time.Minute)) {
		t.Error("expected recent[0] to be the newest")
	}
}

func TestSummaryStoreLatestEmpty(t *testing.T) {
	s := NewSummaryStore(t.TempDir())
	if _, err := s.Latest(context.Background(), types.UserID(1)); err != types.ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
