// Package chatadapter provides the per-user FIFO ordering guarantee spec §5
// requires of chat-adapter effects, wrapping a concrete backend
// (e.g. internal/chatadapter/telegram) that talks to the actual transport.
package chatadapter

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/agenthost/agenthost/internal/types"
)

// job is one queued chat-adapter effect, replayed in submission order.
type job func() error

const laneBuffer = 128

// QueuedAdapter serializes every outbound effect for a user through a
// per-user lane, so that a task's send_message → send_file → react
// sequence reaches the transport in the order it was issued even when
// multiple tasks are delivering to the same user concurrently. Grounded on
// the teacher's internal/gateway.Queue per-session-lane pattern, adapted
// from a semaphore-bounded run queue to an unbounded-concurrency,
// strictly-ordered effect queue (chat delivery has no admission cap; only
// ordering matters here).
type QueuedAdapter struct {
	backend types.ChatAdapter
	logger  *slog.Logger

	mu    sync.Mutex
	lanes map[types.UserID]chan job

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New wraps backend with per-user FIFO ordering.
func New(backend types.ChatAdapter, logger *slog.Logger) *QueuedAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &QueuedAdapter{
		backend: backend,
		logger:  logger,
		lanes:   make(map[types.UserID]chan job),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Stop cancels every lane and waits for in-flight sends to finish.
func (q *QueuedAdapter) Stop() {
	q.cancel()
	q.wg.Wait()
}

func (q *QueuedAdapter) lane(userID types.UserID) chan job {
	q.mu.Lock()
	defer q.mu.Unlock()
	lane, ok := q.lanes[userID]
	if !ok {
		lane = make(chan job, laneBuffer)
		q.lanes[userID] = lane
		q.wg.Add(1)
		go q.drain(userID, lane)
	}
	return lane
}

func (q *QueuedAdapter) drain(userID types.UserID, lane chan job) {
	defer q.wg.Done()
	for {
		select {
		case j, ok := <-lane:
			if !ok {
				return
			}
			if err := j(); err != nil {
				// Spec §6: adapter failures are logged and do not fail the
				// originating task.
				q.logger.Error("chatadapter: delivery failed", "user_id", userID, "error", err)
			}
		case <-q.ctx.Done():
			return
		}
	}
}

func (q *QueuedAdapter) enqueue(userID types.UserID, j job) error {
	select {
	case q.lane(userID) <- j:
		return nil
	default:
		return fmt.Errorf("chatadapter: lane full for user %d", int64(userID))
	}
}

// Send queues a text message for the user's lane.
func (q *QueuedAdapter) Send(ctx context.Context, userID types.UserID, body string) error {
	return q.enqueue(userID, func() error { return q.backend.Send(ctx, userID, body) })
}

// SendFiles queues a file delivery for the user's lane.
func (q *QueuedAdapter) SendFiles(ctx context.Context, userID types.UserID, paths []string) error {
	return q.enqueue(userID, func() error { return q.backend.SendFiles(ctx, userID, paths) })
}

// React queues a reaction for the user's lane.
func (q *QueuedAdapter) React(ctx context.Context, userID types.UserID, messageRef, emoji string) error {
	return q.enqueue(userID, func() error { return q.backend.React(ctx, userID, messageRef, emoji) })
}

// SetTyping queues a typing indicator for the user's lane.
func (q *QueuedAdapter) SetTyping(ctx context.Context, userID types.UserID) error {
	return q.enqueue(userID, func() error { return q.backend.SetTyping(ctx, userID) })
}

// NotifyMenuCommandSet queues a menu command update for the user's lane.
func (q *QueuedAdapter) NotifyMenuCommandSet(ctx context.Context, userID types.UserID, commands []string) error {
	return q.enqueue(userID, func() error { return q.backend.NotifyMenuCommandSet(ctx, userID, commands) })
}

var _ types.ChatAdapter = (*QueuedAdapter)(nil)
