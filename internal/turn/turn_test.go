package turn

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/agenthost/agenthost/internal/eventbus"
	"github.com/agenthost/agenthost/internal/session"
	"github.com/agenthost/agenthost/internal/toolcall"
	"github.com/agenthost/agenthost/internal/types"
	"github.com/agenthost/agenthost/pkg/llm"
)

// fakeBackend implements types.LLMBackend directly, one step below
// llmbackend.Backend, so tests can control classified errors (remote_unknown
// in particular) without standing up an HTTP server.
type fakeBackend struct {
	results []types.LLMResult
	errs    []error
	calls   int
}

func (b *fakeBackend) Invoke(ctx context.Context, sessionRemoteID string, messages []llm.Message, tools []llm.Tool) (types.LLMResult, error) {
	i := b.calls
	b.calls++
	if i < len(b.errs) && b.errs[i] != nil {
		return types.LLMResult{}, b.errs[i]
	}
	return b.results[i], nil
}

func (b *fakeBackend) Summarize(ctx context.Context, text string) (string, error) {
	return "summary: " + text, nil
}

type echoTool struct{}

func (echoTool) Name() string        { return "echo" }
func (echoTool) Description() string { return "echoes its input back" }
func (echoTool) Schema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"text":{"type":"string"}},"required":["text"]}`)
}
func (echoTool) Execute(ctx context.Context, userID types.UserID, args json.RawMessage) (string, error) {
	var payload struct {
		Text string `json:"text"`
	}
	json.Unmarshal(args, &payload)
	return "echo: " + payload.Text, nil
}

func newTestProcessor(t *testing.T, backend types.LLMBackend, maxRounds int) (*Processor, *session.Manager) {
	t.Helper()
	root := t.TempDir()
	pointers := session.NewPointerStore(root)
	chatlog := session.NewChatLogStore(root)
	summaries := session.NewSummaryStore(root)
	sessions := session.NewManager(session.DefaultConfig(), pointers, chatlog, summaries, backend, eventbus.New(0, 0))

	reg := toolcall.NewRegistry()
	reg.Register(echoTool{})

	return New(sessions, chatlog, reg, backend, maxRounds, "you are a test assistant"), sessions
}

func TestProcessReturnsPlainTextReply(t *testing.T) {
	backend := &fakeBackend{results: []types.LLMResult{{Text: "hi there"}}}
	proc, _ := newTestProcessor(t, backend, 5)

	userID := types.UserID(1)
	if err := proc.RecordUserMessage(context.Background(), userID, "hello"); err != nil {
		t.Fatalf("RecordUserMessage: %v", err)
	}
	reply, err := proc.Process(context.Background(), userID)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if reply != "hi there" {
		t.Errorf("expected %q, got %q", "hi there", reply)
	}
}

func TestProcessRunsToolCallThenReturnsText(t *testing.T) {
	backend := &fakeBackend{results: []types.LLMResult{
		{ToolCalls: []llm.ToolCall{{
			ID:       "call1",
			Function: llm.FunctionCall{Name: "echo", Arguments: json.RawMessage(`{"text":"ping"}`)},
		}}},
		{Text: "done"},
	}}
	proc, _ := newTestProcessor(t, backend, 5)

	userID := types.UserID(2)
	proc.RecordUserMessage(context.Background(), userID, "run the tool")
	reply, err := proc.Process(context.Background(), userID)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if reply != "done" {
		t.Errorf("expected %q, got %q", "done", reply)
	}
	if backend.calls != 2 {
		t.Errorf("expected 2 LLM round-trips, got %d", backend.calls)
	}
}

func TestProcessErrorsAfterMaxRounds(t *testing.T) {
	toolCallResult := types.LLMResult{ToolCalls: []llm.ToolCall{{
		ID:       "call1",
		Function: llm.FunctionCall{Name: "echo", Arguments: json.RawMessage(`{"text":"loop"}`)},
	}}}
	backend := &fakeBackend{results: []types.LLMResult{toolCallResult, toolCallResult, toolCallResult}}
	proc, _ := newTestProcessor(t, backend, 3)

	userID := types.UserID(3)
	proc.RecordUserMessage(context.Background(), userID, "loop forever")
	if _, err := proc.Process(context.Background(), userID); err == nil {
		t.Fatal("expected an error once max rounds is exceeded")
	}
}

func TestProcessUnknownToolIsReportedAsErrorResult(t *testing.T) {
	backend := &fakeBackend{results: []types.LLMResult{
		{ToolCalls: []llm.ToolCall{{
			ID:       "call1",
			Function: llm.FunctionCall{Name: "does_not_exist", Arguments: json.RawMessage(`{}`)},
		}}},
		{Text: "recovered"},
	}}
	proc, _ := newTestProcessor(t, backend, 5)

	userID := types.UserID(4)
	proc.RecordUserMessage(context.Background(), userID, "call a bad tool")
	reply, err := proc.Process(context.Background(), userID)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if reply != "recovered" {
		t.Errorf("expected the loop to continue past the failed dispatch, got %q", reply)
	}
}

// TestProcessExpiresAndRetriesOnRemoteUnknown is spec §8 Scenario 5: the LLM
// backend reports remote_unknown, the active session is expired (a summary
// is written), a new session is opened, and the same round is retried
// against it.
func TestProcessExpiresAndRetriesOnRemoteUnknown(t *testing.T) {
	backend := &fakeBackend{
		errs: []error{&types.LLMError{Class: types.LLMErrorRemoteUnknown, Err: fmt.Errorf("session gone")}},
		results: []types.LLMResult{
			{}, // unused slot, consumed by the error on call 0
			{Text: "recovered after expiry", RemoteID: "new-remote-id"},
		},
	}
	proc, sessions := newTestProcessor(t, backend, 5)

	userID := types.UserID(5)
	before, err := sessions.OpenOrResume(context.Background(), userID)
	if err != nil {
		t.Fatalf("OpenOrResume: %v", err)
	}
	proc.RecordUserMessage(context.Background(), userID, "hello")

	reply, err := proc.Process(context.Background(), userID)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if reply != "recovered after expiry" {
		t.Errorf("expected the retried reply, got %q", reply)
	}
	if backend.calls != 2 {
		t.Errorf("expected an initial call plus a retry, got %d calls", backend.calls)
	}

	after, err := sessions.OpenOrResume(context.Background(), userID)
	if err != nil {
		t.Fatalf("OpenOrResume after retry: %v", err)
	}
	if after.ID == before.ID {
		t.Error("expected a fresh session after remote_unknown expiry")
	}
	if after.RemoteID != "new-remote-id" {
		t.Errorf("expected the new session to carry the backend's remote id, got %q", after.RemoteID)
	}
}
