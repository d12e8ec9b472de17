// internal/types/models.go
package types

import "time"

// User is a tenant of the host. Created lazily on first authenticated
// contact and never destroyed.
type User struct {
	ID          UserID    `json:"id"`
	DisplayName string    `json:"display_name"`
	QuotaBytes  int64     `json:"quota_bytes"`
	Enabled     bool      `json:"enabled"`
	Timezone    string    `json:"timezone"` // IANA tz name, e.g. "Asia/Shanghai"
	CreatedAt   time.Time `json:"created_at"`
}

// SessionStatus is the lifecycle state of a Session.
type SessionStatus string

const (
	SessionActive   SessionStatus = "active"
	SessionExpiring SessionStatus = "expiring"
	SessionArchived SessionStatus = "archived"
)

// Session is a bounded conversational scope between a user and the LLM
// backend, with a server-issued remote id and local accounting.
type Session struct {
	ID           SessionID     `json:"id"`
	UserID       UserID        `json:"user_id"`
	CreatedAt    time.Time     `json:"created_at"`
	LastActivity time.Time     `json:"last_activity"`
	MessageCount int           `json:"message_count"`
	Turns        int           `json:"turns"`
	InputTokens  int64         `json:"input_tokens"`
	OutputTokens int64         `json:"output_tokens"`
	Cost         float64       `json:"cost"`
	RemoteID     string        `json:"remote_id,omitempty"`
	Status       SessionStatus `json:"status"`
}

// ChatTurn is a single line of an append-only ChatLog.
type ChatTurn struct {
	Role         string    `json:"role"`
	Timestamp    time.Time `json:"timestamp"`
	Body         string    `json:"body"`
	InputTokens  int64     `json:"input_tokens,omitempty"`
	OutputTokens int64     `json:"output_tokens,omitempty"`
	Cost         float64   `json:"cost,omitempty"`
}

// ChatSummary is a compressed representation of a closed Session used to
// bootstrap future context.
type ChatSummary struct {
	ID             ChatSummaryID `json:"id"`
	UserID         UserID        `json:"user_id"`
	SummaryText    string        `json:"summary_text"`
	OriginalLogRef string        `json:"original_log_ref"`
	RangeStart     time.Time     `json:"range_start"`
	RangeEnd       time.Time     `json:"range_end"`
	CreatedAt      time.Time     `json:"created_at"`
	Fallback       bool          `json:"fallback,omitempty"`
}

// MemoryCategory classifies a stored fact.
type MemoryCategory string

const (
	CategoryPersonal      MemoryCategory = "personal"
	CategoryCareer        MemoryCategory = "career"
	CategoryInterests     MemoryCategory = "interests"
	CategoryPreferences   MemoryCategory = "preferences"
	CategoryGoals         MemoryCategory = "goals"
	CategoryRelationships MemoryCategory = "relationships"
	CategoryEmotions      MemoryCategory = "emotions"
	CategoryHealth        MemoryCategory = "health"
	CategoryFinance       MemoryCategory = "finance"
	CategorySchedule      MemoryCategory = "schedule"
	CategoryContext       MemoryCategory = "context"
	CategoryFamily        MemoryCategory = "family"
	CategoryEducation     MemoryCategory = "education"
)

// ValidCategories lists every recognized MemoryCategory.
var ValidCategories = map[MemoryCategory]bool{
	CategoryPersonal: true, CategoryCareer: true, CategoryInterests: true,
	CategoryPreferences: true, CategoryGoals: true, CategoryRelationships: true,
	CategoryEmotions: true, CategoryHealth: true, CategoryFinance: true,
	CategorySchedule: true, CategoryContext: true, CategoryFamily: true,
	CategoryEducation: true,
}

// MemoryVisibility controls whether a fact may surface outside the owning user.
type MemoryVisibility string

const (
	VisibilityPublic  MemoryVisibility = "public"
	VisibilityPrivate MemoryVisibility = "private"
)

// DefaultVisibility is the fixed lookup table from spec §4.6: career,
// interests, goals, and education default public; everything else private.
func DefaultVisibility(cat MemoryCategory) MemoryVisibility {
	switch cat {
	case CategoryCareer, CategoryInterests, CategoryGoals, CategoryEducation:
		return VisibilityPublic
	default:
		return VisibilityPrivate
	}
}

// MemorySourceType records how a Memory was captured.
type MemorySourceType string

const (
	SourceExplicit MemorySourceType = "explicit"
	SourceInferred MemorySourceType = "inferred"
)

// Memory is a structured fact about a user, with category, visibility,
// confidence, and a supersede chain capturing how the fact evolves.
type Memory struct {
	ID             MemoryID         `json:"id"`
	UserID         UserID           `json:"user_id"`
	Content        string           `json:"content"`
	Category       MemoryCategory   `json:"category"`
	Visibility     MemoryVisibility `json:"visibility"`
	SourceType     MemorySourceType `json:"source_type"`
	Confidence     float64          `json:"confidence"`
	Tags           []string         `json:"tags,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	ValidFrom      time.Time        `json:"valid_from"`
	ValidUntil     *time.Time       `json:"valid_until,omitempty"`
	SupersedesID   *MemoryID        `json:"supersedes_id,omitempty"`
	SupersededByID *MemoryID        `json:"superseded_by_id,omitempty"`
	UserConfirmed  bool             `json:"user_confirmed"`
}

// Current reports whether this Memory is the live end of its supersede chain.
func (m *Memory) Current() bool {
	return m.SupersededByID == nil && m.ValidUntil == nil
}

// ScheduleType is the recurrence family of a ScheduledTask.
type ScheduleType string

const (
	ScheduleDaily    ScheduleType = "daily"
	ScheduleWeekly   ScheduleType = "weekly"
	ScheduleMonthly  ScheduleType = "monthly"
	ScheduleInterval ScheduleType = "interval"
	ScheduleOnce     ScheduleType = "once"
)

// ScheduledTask fires according to its recurrence rule and is submitted to
// the Sub-Agent Task Manager as a delegated task.
type ScheduledTask struct {
	TaskID          ScheduledTaskID `json:"task_id"`
	UserID          UserID          `json:"user_id"`
	Name            string          `json:"name"`
	ScheduleType    ScheduleType    `json:"schedule_type"`
	Hour            int             `json:"hour"`
	Minute          int             `json:"minute"`
	Weekdays        []int           `json:"weekdays,omitempty"`
	MonthDay        int             `json:"month_day,omitempty"`
	IntervalSeconds int             `json:"interval_seconds,omitempty"`
	RunDate         string          `json:"run_date,omitempty"` // ISO date, YYYY-MM-DD
	FirstFireAt     *time.Time      `json:"first_fire_at,omitempty"`
	Enabled         bool            `json:"enabled"`
	MaxRuns         *int            `json:"max_runs,omitempty"`
	RunCount        int             `json:"run_count"`
	LastRun         *time.Time      `json:"last_run,omitempty"`
	Prompt          string          `json:"prompt"`
	CreatedAt       time.Time       `json:"created_at"`
}

// ScheduleOpType tags a ScheduleOperationLog entry.
type ScheduleOpType string

const (
	OpCreate  ScheduleOpType = "create"
	OpUpdate  ScheduleOpType = "update"
	OpDelete  ScheduleOpType = "delete"
	OpEnable  ScheduleOpType = "enable"
	OpDisable ScheduleOpType = "disable"
	OpExecute ScheduleOpType = "execute"
)

// ScheduleOperationLogEntry is one append-only record of a mutation to a
// user's ScheduledTasks.
type ScheduleOperationLogEntry struct {
	Op             ScheduleOpType  `json:"op"`
	TaskID         ScheduledTaskID `json:"task_id"`
	At             time.Time       `json:"at"`
	Snapshot       *ScheduledTask  `json:"snapshot,omitempty"`          // full snapshot on delete
	SubAgentTaskID SubAgentTaskID  `json:"sub_agent_task_id,omitempty"` // on execute
	RunCount       int             `json:"run_count,omitempty"`         // on execute
	NextRun        *time.Time      `json:"next_run,omitempty"`          // on execute
}

// SubAgentTaskStatus is the lifecycle state of a delegated task.
type SubAgentTaskStatus string

const (
	TaskPending   SubAgentTaskStatus = "pending"
	TaskRunning   SubAgentTaskStatus = "running"
	TaskCompleted SubAgentTaskStatus = "completed"
	TaskFailed    SubAgentTaskStatus = "failed"
	TaskCancelled SubAgentTaskStatus = "cancelled"
)

// RetryEntry records one rejected attempt of a review-gated task.
type RetryEntry struct {
	Feedback          string    `json:"feedback"`
	Suggestions       []string  `json:"suggestions,omitempty"`
	MissingDimensions []string  `json:"missing_dimensions,omitempty"`
	ResultSummary     string    `json:"result_summary"`
	At                time.Time `json:"at"`
}

// SubAgentTask is a single delegated unit of work executed under the
// concurrency cap, optionally gated by a review loop.
type SubAgentTask struct {
	TaskID            SubAgentTaskID     `json:"task_id"`
	UserID            UserID             `json:"user_id"`
	Description       string             `json:"description"`
	Prompt            string             `json:"prompt"`
	Status            SubAgentTaskStatus `json:"status"`
	CreatedAt         time.Time          `json:"created_at"`
	StartedAt         *time.Time         `json:"started_at,omitempty"`
	CompletedAt       *time.Time         `json:"completed_at,omitempty"`
	RetryCount        int                `json:"retry_count"`
	MaxRetries        int                `json:"max_retries"`
	ReviewCriteria    string             `json:"review_criteria,omitempty"`
	RetryHistory      []RetryEntry       `json:"retry_history,omitempty"`
	FilesProduced     []string           `json:"files_produced,omitempty"`
	Result            string             `json:"result,omitempty"`
	Error             string             `json:"error,omitempty"`
	MaxRetriesReached bool               `json:"max_retries_reached,omitempty"`
}

// FileStat is the (mtime, size) pair the File Tracker snapshots per path.
type FileStat struct {
	ModTime time.Time `json:"mtime"`
	Size    int64     `json:"size"`
}
