// internal/types/errors.go
package types

import "errors"

var (
	// ErrNotFound is returned by store lookups that find nothing.
	ErrNotFound = errors.New("not found")

	// ErrQuotaDenied names a refused QuotaGate check. QuotaGate.Check
	// reports a denial as ok=false with a reason rather than this error,
	// and the Task Manager records it in SubAgentTask.Error.
	ErrQuotaDenied = errors.New("quota denied")

	// ErrInvalidTaskID is returned when a ScheduledTaskID fails ValidScheduledTaskID.
	ErrInvalidTaskID = errors.New("invalid task id")

	// ErrDuplicateTaskID is returned when a ScheduledTaskID already exists for a user.
	ErrDuplicateTaskID = errors.New("duplicate task id")

	// ErrPathEscape is returned when a requested path resolves outside a
	// user's working directory root.
	ErrPathEscape = errors.New("path escapes working directory")

	// ErrSuperseded is returned when an operation targets a Memory that is
	// no longer the live end of its supersede chain.
	ErrSuperseded = errors.New("memory superseded")

	// ErrAdmissionCapped names the Sub-Agent Task Manager being at its
	// global concurrency cap. The Task Manager does not return it: work
	// over the cap waits in its FIFO admission queue.
	ErrAdmissionCapped = errors.New("sub-agent admission capped")

	// ErrMaxRetriesReached names a review-gated task that exhausted its
	// retry budget without an accepted result. The Task Manager does not
	// return it: such a task completes with SubAgentTask.MaxRetriesReached set.
	ErrMaxRetriesReached = errors.New("max retries reached")

	// ErrSessionArchived names an operation on a Session that has already
	// been archived. No operation in this module returns it.
	ErrSessionArchived = errors.New("session archived")

	// ErrDisabled names an operation on a disabled User or ScheduledTask.
	// No operation in this module returns it.
	ErrDisabled = errors.New("disabled")
)

// LLMErrorClass tags the taxonomy of remote LLM backend failures from spec §7.
type LLMErrorClass string

const (
	LLMErrorTransport     LLMErrorClass = "transport"
	LLMErrorRateLimit     LLMErrorClass = "rate_limit"
	LLMErrorRemoteUnknown LLMErrorClass = "remote_unknown"
	LLMErrorInvalidReq    LLMErrorClass = "invalid_request"
)

// LLMError wraps a backend failure with its taxonomy class.
type LLMError struct {
	Class LLMErrorClass
	Err   error
}

func (e *LLMError) Error() string {
	return string(e.Class) + ": " + e.Err.Error()
}

func (e *LLMError) Unwrap() error { return e.Err }
