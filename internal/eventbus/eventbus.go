// Package eventbus implements the Event Bus component: per-user fan-out of
// lifecycle events to zero or more concurrent subscribers, with a
// ping/pong liveness check that drops unresponsive sinks.
package eventbus

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agenthost/agenthost/internal/types"
)

// EventType names a lifecycle event published on the bus.
type EventType string

const (
	EventTaskCreated      EventType = "task_created"
	EventTaskUpdate       EventType = "task_update"
	EventScheduleExecuted EventType = "schedule_executed"
	EventStorageUpdate    EventType = "storage_update"
	EventPing             EventType = "ping"
	EventPong             EventType = "pong"
)

// Event is one message delivered to a user's subscribers.
type Event struct {
	ID      types.EventID
	UserID  types.UserID
	Type    EventType
	At      time.Time
	Payload map[string]any
}

// sinkBuffer is the per-subscriber channel capacity. A subscriber slower
// than this is considered unresponsive and dropped on the next publish.
const sinkBuffer = 32

// Subscription is a handle returned by Subscribe. Callers read events from
// Events() and call Pong() whenever they observe an EventPing to keep the
// liveness check satisfied.
type Subscription struct {
	id       types.SubscriberID
	userID   types.UserID
	ch       chan *Event
	lastPong atomic.Int64
}

// ID returns the subscriber's identity.
func (s *Subscription) ID() types.SubscriberID { return s.id }

// Events returns the channel of delivered events.
func (s *Subscription) Events() <-chan *Event { return s.ch }

// Pong records that the subscriber is alive.
func (s *Subscription) Pong() { s.lastPong.Store(time.Now().UnixNano()) }

// Bus is a per-user pub/sub fan-out with liveness-checked subscribers.
type Bus struct {
	mu           sync.RWMutex
	subs         map[types.UserID][]*Subscription
	pingInterval time.Duration
	missedLimit  int
}

// New returns a Bus that pings subscribers every pingInterval and drops one
// after missing missedLimit consecutive pongs. A zero pingInterval defaults
// to 30s and missedLimit defaults to 2, matching spec §4.5.
func New(pingInterval time.Duration, missedLimit int) *Bus {
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	if missedLimit <= 0 {
		missedLimit = 2
	}
	return &Bus{
		subs:         make(map[types.UserID][]*Subscription),
		pingInterval: pingInterval,
		missedLimit:  missedLimit,
	}
}

// Subscribe registers a new sink for userID.
func (b *Bus) Subscribe(userID types.UserID) *Subscription {
	sub := &Subscription{
		id:     types.NewSubscriberID(),
		userID: userID,
		ch:     make(chan *Event, sinkBuffer),
	}
	sub.lastPong.Store(time.Now().UnixNano())

	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[userID] = append(b.subs[userID], sub)
	return sub
}

// Unsubscribe removes and closes sub.
func (b *Bus) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeLocked(sub)
}

func (b *Bus) removeLocked(sub *Subscription) {
	list := b.subs[sub.userID]
	for i, s := range list {
		if s.id == sub.id {
			b.subs[sub.userID] = append(list[:i], list[i+1:]...)
			close(s.ch)
			return
		}
	}
}

// SubscriberCount reports how many live subscribers a user currently has.
func (b *Bus) SubscriberCount(userID types.UserID) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[userID])
}

// Publish delivers event to every current subscriber for its user,
// best-effort: a subscriber whose channel is full is dropped, and delivery
// continues to the rest.
func (b *Bus) Publish(event *Event) {
	if event.ID == "" {
		event.ID = types.NewEventID()
	}
	if event.At.IsZero() {
		event.At = time.Now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	list := b.subs[event.UserID]
	var dead []*Subscription
	for _, sub := range list {
		select {
		case sub.ch <- event:
		default:
			dead = append(dead, sub)
		}
	}
	for _, sub := range dead {
		b.removeLocked(sub)
	}
}

// BroadcastTaskCreated is a convenience wrapper for the task_created event.
func (b *Bus) BroadcastTaskCreated(userID types.UserID, taskID types.SubAgentTaskID, description string, createdAt time.Time) {
	b.Publish(&Event{
		UserID: userID,
		Type:   EventTaskCreated,
		Payload: map[string]any{
			"task_id":     taskID,
			"description": description,
			"created_at":  createdAt,
		},
	})
}

// BroadcastTaskUpdate is a convenience wrapper for the task_update event.
func (b *Bus) BroadcastTaskUpdate(userID types.UserID, taskID types.SubAgentTaskID, status types.SubAgentTaskStatus, result string, completedAt *time.Time) {
	b.Publish(&Event{
		UserID: userID,
		Type:   EventTaskUpdate,
		Payload: map[string]any{
			"task_id":      taskID,
			"status":       status,
			"result":       result,
			"completed_at": completedAt,
		},
	})
}

// BroadcastScheduleExecuted is a convenience wrapper for schedule_executed.
func (b *Bus) BroadcastScheduleExecuted(userID types.UserID, taskID types.ScheduledTaskID, runCount int, nextRun *time.Time) {
	b.Publish(&Event{
		UserID: userID,
		Type:   EventScheduleExecuted,
		Payload: map[string]any{
			"task_id":   taskID,
			"run_count": runCount,
			"next_run":  nextRun,
		},
	})
}

// BroadcastStorageUpdate is a convenience wrapper for storage_update.
func (b *Bus) BroadcastStorageUpdate(userID types.UserID, usedBytes, quotaBytes int64) {
	b.Publish(&Event{
		UserID: userID,
		Type:   EventStorageUpdate,
		Payload: map[string]any{
			"used_bytes":  usedBytes,
			"quota_bytes": quotaBytes,
		},
	})
}

// Run starts the ping/liveness loop and blocks until ctx is cancelled.
func (b *Bus) Run(ctx context.Context) {
	ticker := time.NewTicker(b.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.tick()
		}
	}
}

func (b *Bus) tick() {
	now := time.Now()
	deadline := now.Add(-time.Duration(b.missedLimit) * b.pingInterval)

	b.mu.Lock()
	var dead []*Subscription
	for _, list := range b.subs {
		for _, sub := range list {
			select {
			case sub.ch <- &Event{UserID: sub.userID, Type: EventPing, At: now}:
			default:
				dead = append(dead, sub)
				continue
			}
			if time.Unix(0, sub.lastPong.Load()).Before(deadline) {
				dead = append(dead, sub)
			}
		}
	}
	for _, sub := range dead {
		b.removeLocked(sub)
	}
	b.mu.Unlock()
}
