package taskmanager

import (
	"context"
	"fmt"
	"strings"

	"github.com/agenthost/agenthost/internal/types"
	"github.com/agenthost/agenthost/pkg/llm"
)

const reviewMaxResultChars = 8000

const reviewPromptTemplate = `You are a task quality reviewer. Today is %s. Evaluate whether the result below meets the stated quality criteria.

## Quality criteria
%s

## Result to evaluate
%s

Respond in exactly this format:
VERDICT: PASS or REJECT
FEEDBACK: a short explanation. If REJECT, list what is missing and how to fix it.`

// LLMReviewer implements ReviewAgent over an opaque types.LLMBackend,
// grounded on original_source/bot/agent/review.py's VERDICT/FEEDBACK text
// protocol and its fail-open behavior: an unclear or failing reviewer must
// never turn into an infinite retry loop, so both default to accept.
type LLMReviewer struct {
	backend types.LLMBackend
}

// NewLLMReviewer wraps backend as a ReviewAgent.
func NewLLMReviewer(backend types.LLMBackend) *LLMReviewer {
	return &LLMReviewer{backend: backend}
}

// Review implements ReviewAgent.
func (r *LLMReviewer) Review(ctx context.Context, result, criteria, currentDate string) (ReviewVerdict, error) {
	text := result
	if len(text) > reviewMaxResultChars {
		text = text[:reviewMaxResultChars] + "\n\n...[truncated]"
	}
	prompt := fmt.Sprintf(reviewPromptTemplate, currentDate, criteria, text)

	res, err := r.backend.Invoke(ctx, "", []llm.Message{{Role: "user", Content: prompt}}, nil)
	if err != nil {
		return ReviewVerdict{
			Outcome:  ReviewAccept,
			Feedback: fmt.Sprintf("review backend error, defaulting to accept: %v", err),
		}, nil
	}
	return parseVerdict(res.Text), nil
}

func parseVerdict(text string) ReviewVerdict {
	upper := strings.ToUpper(text)
	feedback := extractFeedback(text)

	switch {
	case strings.Contains(upper, "VERDICT: PASS") || strings.Contains(upper, "VERDICT:PASS"):
		return ReviewVerdict{Outcome: ReviewAccept, Feedback: feedback}
	case strings.Contains(upper, "VERDICT: REJECT") || strings.Contains(upper, "VERDICT:REJECT"):
		if feedback == "" {
			feedback = "result did not meet the stated quality criteria"
		}
		return ReviewVerdict{Outcome: ReviewReject, Feedback: feedback}
	default:
		return ReviewVerdict{Outcome: ReviewAccept, Feedback: "unclear review response, defaulting to accept"}
	}
}

func extractFeedback(text string) string {
	const marker = "FEEDBACK:"
	idx := strings.Index(text, marker)
	if idx == -1 {
		return ""
	}
	return strings.TrimSpace(text[idx+len(marker):])
}

var _ ReviewAgent = (*LLMReviewer)(nil)
