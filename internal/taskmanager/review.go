// Package taskmanager implements the Sub-Agent Task Manager component:
// concurrency-capped execution of delegated tasks with an optional
// automated review-and-retry loop.
package taskmanager

import (
	"context"

	"github.com/agenthost/agenthost/internal/types"
)

// ReviewOutcome tags a ReviewVerdict as accept or reject, following Design
// Notes' tagged-variant pattern instead of an untyped accept/reject bool.
type ReviewOutcome int

const (
	ReviewAccept ReviewOutcome = iota
	ReviewReject
)

// ReviewVerdict is the Review Agent's judgment of one task attempt. Score
// is a supplemented field (from original_source/bot/agent/review.py) that
// no code in this module sets or reads; it never drives the accept/reject
// decision.
type ReviewVerdict struct {
	Outcome           ReviewOutcome
	Feedback          string
	Suggestions       []string
	MissingDimensions []string
	Score             float64
}

// Accepted reports whether the verdict is an accept.
func (v ReviewVerdict) Accepted() bool { return v.Outcome == ReviewAccept }

// ReviewAgent evaluates a task's result against review criteria.
type ReviewAgent interface {
	Review(ctx context.Context, result, criteria, currentDate string) (ReviewVerdict, error)
}

// ExecuteFunc runs one attempt of a delegated task's prompt and returns its
// textual result. It is the Task Manager's view of the opaque LLM backend
// from spec §6: everything about how the prompt is turned into a result is
// out of scope for this component.
type ExecuteFunc func(ctx context.Context, userID types.UserID, prompt string) (string, error)
