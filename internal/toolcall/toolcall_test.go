package toolcall

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/agenthost/agenthost/internal/types"
)

type echoTool struct {
	calls int
}

func (e *echoTool) Name() string        { return "echo" }
func (e *echoTool) Description() string { return "echoes its message argument" }
func (e *echoTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {"message": {"type": "string", "minLength": 1}},
		"required": ["message"],
		"additionalProperties": false
	}`)
}

func (e *echoTool) Execute(ctx context.Context, userID types.UserID, args json.RawMessage) (string, error) {
	e.calls++
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(args, &payload); err != nil {
		return "", err
	}
	return payload.Message, nil
}

func TestDispatchValidatesAndExecutes(t *testing.T) {
	r := NewRegistry()
	tool := &echoTool{}
	r.Register(tool)

	out, err := r.Dispatch(context.Background(), types.UserID(1), Call{
		Name:      "echo",
		Arguments: json.RawMessage(`{"message": "hi"}`),
	})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if out != "hi" {
		t.Errorf("expected echoed message, got %q", out)
	}
	if tool.calls != 1 {
		t.Errorf("expected Execute to run once, got %d", tool.calls)
	}
}

func TestDispatchRejectsInvalidArguments(t *testing.T) {
	r := NewRegistry()
	tool := &echoTool{}
	r.Register(tool)

	_, err := r.Dispatch(context.Background(), types.UserID(1), Call{
		Name:      "echo",
		Arguments: json.RawMessage(`{}`),
	})
	if err == nil {
		t.Fatal("expected a validation error for a missing required field")
	}
	if tool.calls != 0 {
		t.Errorf("expected Execute not to run when validation fails, got %d calls", tool.calls)
	}
}

func TestDispatchRejectsAdditionalProperties(t *testing.T) {
	r := NewRegistry()
	tool := &echoTool{}
	r.Register(tool)

	_, err := r.Dispatch(context.Background(), types.UserID(1), Call{
		Name:      "echo",
		Arguments: json.RawMessage(`{"message": "hi", "extra": true}`),
	})
	if err == nil {
		t.Fatal("expected a validation error for an unexpected property")
	}
}

func TestDispatchUnknownTool(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Dispatch(context.Background(), types.UserID(1), Call{Name: "nope"}); err == nil {
		t.Fatal("expected an error for an unregistered tool name")
	}
}

func TestAllReturnsRegisteredTools(t *testing.T) {
	r := NewRegistry()
	r.Register(&echoTool{})
	if len(r.All()) != 1 {
		t.Errorf("expected 1 registered tool, got %d", len(r.All()))
	}
}
