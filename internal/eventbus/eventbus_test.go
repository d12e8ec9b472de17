package eventbus

import (
	"context"
	"testing"
	"time"

	"github.com/agenthost/agenthost/internal/types"
)

func TestPublishDeliversToAllSubscribers(t *testing.T) {
	b := New(time.Hour, 2)
	uid := types.UserID(1)
	a := b.Subscribe(uid)
	c := b.Subscribe(uid)

	b.BroadcastStorageUpdate(uid, 10, 100)

	select {
	case ev := <-a.Events():
		if ev.Type != EventStorageUpdate {
			t.Errorf("expected storage_update, got %s", ev.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event on subscriber a")
	}
	select {
	case ev := <-c.Events():
		if ev.Type != EventStorageUpdate {
			t.Errorf("expected storage_update, got %s", ev.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event on subscriber c")
	}
}

func TestPublishDoesNotCrossUsers(t *testing.T) {
	b := New(time.Hour, 2)
	a := b.Subscribe(types.UserID(1))
	other := b.Subscribe(types.UserID(2))

	b.BroadcastStorageUpdate(types.UserID(1), 1, 2)

	select {
	case <-a.Events():
	case <-time.After(time.Second):
		t.Fatal("expected event for user 1")
	}
	select {
	case ev := <-other.Events():
		t.Fatalf("did not expect event for user 2, got %v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublishOrderingPerUser(t *testing.T) {
	b := New(time.Hour, 2)
	uid := types.UserID(1)
	sub := b.Subscribe(uid)

	for i := 0; i < 5; i++ {
		b.BroadcastStorageUpdate(uid, int64(i), 100)
	}

	for i := 0; i < 5; i++ {
		ev := <-sub.Events()
		if got := ev.Payload["used_bytes"]; got != int64(i) {
			t.Errorf("event %d: expected used_bytes %d, got %v", i, i, got)
		}
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New(time.Hour, 2)
	uid := types.UserID(1)
	sub := b.Subscribe(uid)
	b.Unsubscribe(sub)

	if got := b.SubscriberCount(uid); got != 0 {
		t.Errorf("expected 0 subscribers after unsubscribe, got %d", got)
	}
}

func TestSlowSubscriberIsDroppedNotBlocking(t *testing.T) {
	b := New(time.Hour, 2)
	uid := types.UserID(1)
	sub := b.Subscribe(uid)

	for i := 0; i < sinkBuffer+5; i++ {
		b.BroadcastStorageUpdate(uid, int64(i), 100)
	}

	if got := b.SubscriberCount(uid); got != 0 {
		t.Errorf("expected slow subscriber to be dropped, got count %d", got)
	}
	_ = sub
}

func TestRunPingsAndDropsUnresponsiveSubscriber(t *testing.T) {
	b := New(20*time.Millisecond, 2)
	uid := types.UserID(1)
	sub := b.Subscribe(uid)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx)

	// Drain pings but never Pong back.
	deadline := time.After(500 * time.Millisecond)
	for {
		select {
		case <-sub.Events():
		case <-deadline:
			if b.SubscriberCount(uid) != 0 {
				t.Fatal("expected unresponsive subscriber to be dropped")
			}
			return
		}
	}
}
