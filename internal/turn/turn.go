// Package turn implements the agentic per-message loop: given one inbound
// chat message, resolve the user's active Session, replay recent context,
// call the LLM backend, and drive its tool calls to completion.
//
// Grounded on internal/runtime/runtime.go's ProcessRun, generalized from
// the teacher's event-sourced Session (types.Event/types.EventStore, a
// gateway.Run carrying an OnComplete callback) to this substrate's
// ChatLog-based Session model (types.ChatTurn appended through
// session.Manager.RecordTurn) and internal/toolcall.Registry in place of
// the teacher's own Registry.
package turn

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/agenthost/agenthost/internal/session"
	"github.com/agenthost/agenthost/internal/toolcall"
	"github.com/agenthost/agenthost/internal/types"
	"github.com/agenthost/agenthost/pkg/llm"
)

// resultTruncateChars bounds how much of a tool's result is folded back
// into the prompt as a "tool" turn. The teacher spills anything past its
// threshold to a dedicated artifact store; this substrate's ArtifactStore
// contract is scoped to file-tracker snapshots, not arbitrary tool output,
// so oversized results are truncated in place instead.
const resultTruncateChars = 4000

// contextTurns bounds how many recent ChatTurns are replayed into the
// prompt on every round.
const contextTurns = 40

// Processor drives one user message through the round-based tool loop.
type Processor struct {
	sessions  *session.Manager
	chatlog   *session.ChatLogStore
	tools     *toolcall.Registry
	backend   types.LLMBackend
	maxRounds int
	systemMsg string
}

// New wires a Processor. systemPrompt is sent as the leading system
// message on every round; maxRounds bounds how many LLM round-trips a
// single message may take before the loop gives up (spec §6's
// max_tool_rounds). The LLM call goes through backend rather than a raw
// llm.Provider so a remote_unknown classification (spec §7) can trigger
// the session expire-and-retry sequence spec §4.1 and §8 Scenario 5
// describe.
func New(sessions *session.Manager, chatlog *session.ChatLogStore, tools *toolcall.Registry, backend types.LLMBackend, maxRounds int, systemPrompt string) *Processor {
	if maxRounds <= 0 {
		maxRounds = 10
	}
	return &Processor{
		sessions:  sessions,
		chatlog:   chatlog,
		tools:     tools,
		backend:   backend,
		maxRounds: maxRounds,
		systemMsg: systemPrompt,
	}
}

// Process resolves userID's active Session and runs the tool loop over its
// recent ChatLog until the model returns plain text or the round budget is
// exhausted. It does not append the inbound message; RecordUserMessage does.
func (p *Processor) Process(ctx context.Context, userID types.UserID) (string, error) {
	sess, err := p.sessions.OpenOrResume(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("open session: %w", err)
	}

	var recovered *session.RecoveredContext
	if p.sessions.ShouldRecover(sess) {
		recovered, err = p.sessions.RecoverContext(ctx, userID)
		if err != nil {
			return "", fmt.Errorf("recover context: %w", err)
		}
	}

	llmTools := asLLMTools(p.tools.All())

	for round := 0; round < p.maxRounds; round++ {
		messages, err := p.buildMessages(ctx, sess, recovered)
		if err != nil {
			return "", fmt.Errorf("build prompt: %w", err)
		}

		result, err := p.backend.Invoke(ctx, sess.RemoteID, messages, llmTools)
		if err != nil {
			var llmErr *types.LLMError
			if errors.As(err, &llmErr) && llmErr.Class == types.LLMErrorRemoteUnknown {
				if _, expireErr := p.sessions.Expire(ctx, userID, session.ExpireRemoteUnknown); expireErr != nil {
					return "", fmt.Errorf("expire after remote_unknown: %w", expireErr)
				}
				sess, err = p.sessions.OpenOrResume(ctx, userID)
				if err != nil {
					return "", fmt.Errorf("reopen session after remote_unknown: %w", err)
				}
				recovered = nil
				continue
			}
			return "", fmt.Errorf("llm call: %w", err)
		}
		sess.RemoteID = result.RemoteID

		if len(result.ToolCalls) > 0 {
			for _, tc := range result.ToolCalls {
				toolResult, execErr := p.tools.Dispatch(ctx, userID, toolcall.Call{
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				})
				if execErr != nil {
					toolResult = fmt.Sprintf("error: %v", execErr)
				}
				if len(toolResult) > resultTruncateChars {
					toolResult = toolResult[:resultTruncateChars] + "\n[truncated]"
				}
				body, _ := json.Marshal(map[string]string{"tool": tc.Function.Name, "result": toolResult})
				if err := p.sessions.RecordTurn(ctx, sess, "tool", string(body), 0, 0, 0); err != nil {
					return "", fmt.Errorf("record tool turn: %w", err)
				}
			}
			continue
		}

		if err := p.sessions.RecordTurn(ctx, sess, "assistant", result.Text, result.InputTokens, result.OutputTokens, result.Cost); err != nil {
			return "", fmt.Errorf("record assistant turn: %w", err)
		}
		return result.Text, nil
	}

	return "", fmt.Errorf("turn: max tool rounds (%d) exceeded", p.maxRounds)
}

// RecordUserMessage appends the inbound text as a user turn before the
// loop begins, kept separate from Process so callers that need the
// Session (e.g. to check quota before running the loop) can do so between
// the two calls.
func (p *Processor) RecordUserMessage(ctx context.Context, userID types.UserID, text string) error {
	sess, err := p.sessions.OpenOrResume(ctx, userID)
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	return p.sessions.RecordTurn(ctx, sess, "user", text, 0, 0, 0)
}

func (p *Processor) buildMessages(ctx context.Context, sess *types.Session, recovered *session.RecoveredContext) ([]llm.Message, error) {
	var messages []llm.Message
	if p.systemMsg != "" {
		messages = append(messages, llm.Message{Role: "system", Content: p.systemMsg})
	}
	if recovered != nil {
		messages = append(messages, llm.Message{Role: "system", Content: renderRecovered(recovered)})
	}

	turns, err := p.chatlog.Tail(ctx, sess.UserID, sess.ID, contextTurns)
	if err != nil {
		return nil, err
	}
	for _, t := range turns {
		role := t.Role
		if role == "tool" {
			role = "assistant"
		}
		messages = append(messages, llm.Message{Role: role, Content: t.Body})
	}
	return messages, nil
}

func renderRecovered(r *session.RecoveredContext) string {
	out := "Recovered context after a gap in activity.\n"
	for _, s := range r.Summaries {
		out += "Prior summary: " + s.SummaryText + "\n"
	}
	if r.LogExcerpt != "" {
		out += "Recent log:\n" + r.LogExcerpt
	}
	return out
}

func asLLMTools(tools []toolcall.Tool) []llm.Tool {
	out := make([]llm.Tool, 0, len(tools))
	for _, t := range tools {
		out = append(out, llm.Tool{
			Type: "function",
			Function: llm.Function{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Schema(),
			},
		})
	}
	return out
}
