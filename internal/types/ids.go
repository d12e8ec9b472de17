// internal/types/ids.go
package types

import (
	"fmt"
	"regexp"

	"github.com/google/uuid"
)

// UserID identifies a tenant. Opaque from the caller's perspective but
// represented as an integer per the data model.
type UserID int64

// SessionID identifies a conversational scope for one user.
type SessionID string

// ChatSummaryID identifies an archived conversation summary.
type ChatSummaryID string

// MemoryID identifies a single structured fact about a user.
type MemoryID string

// ScheduledTaskID is user-chosen and must match taskIDPattern, unique per user.
type ScheduledTaskID string

// SubAgentTaskID identifies a delegated unit of work.
type SubAgentTaskID string

// ArtifactID identifies a file captured by the File Tracker.
type ArtifactID string

// EventID identifies a single lifecycle event published on the Event Bus.
type EventID string

// SubscriberID identifies one Event Bus subscriber connection.
type SubscriberID string

var taskIDPattern = regexp.MustCompile(`^[A-Za-z0-9_]{1,32}$`)

// ValidScheduledTaskID reports whether id matches the required
// `[A-Za-z0-9_]{1,32}` shape.
func ValidScheduledTaskID(id string) bool {
	return taskIDPattern.MatchString(id)
}

// NewSessionID returns a fresh, globally unique session id.
func NewSessionID() SessionID { return SessionID(uuid.New().String()) }

// NewChatSummaryID returns a fresh chat summary id.
func NewChatSummaryID() ChatSummaryID { return ChatSummaryID(uuid.New().String()) }

// NewMemoryID returns a fresh memory id.
func NewMemoryID() MemoryID { return MemoryID(uuid.New().String()) }

// NewSubAgentTaskID returns a fresh sub-agent task id.
func NewSubAgentTaskID() SubAgentTaskID { return SubAgentTaskID(uuid.New().String()) }

// NewArtifactID returns a fresh artifact id.
func NewArtifactID() ArtifactID { return ArtifactID(uuid.New().String()) }

// NewEventID returns a fresh event id.
func NewEventID() EventID { return EventID(uuid.New().String()) }

// NewSubscriberID returns a fresh subscriber id.
func NewSubscriberID() SubscriberID { return SubscriberID(uuid.New().String()) }

// UserDir returns the canonical path segment for a user under the
// persistence root: "users/<id>".
func UserDir(id UserID) string {
	return fmt.Sprintf("users/%d", int64(id))
}
