package llmbackend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/agenthost/agenthost/internal/types"
	"github.com/agenthost/agenthost/pkg/llm"
	"github.com/agenthost/agenthost/pkg/llm/openai"
)

func newTestBackend(t *testing.T, handler http.HandlerFunc) *Backend {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client := openai.New(&llm.Config{BaseURL: server.URL, APIKey: "key", Model: "gpt-4"})
	return New(client)
}

func TestInvokeReturnsResultOnSuccess(t *testing.T) {
	backend := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "hello there"}},
			},
			"usage": map[string]any{"prompt_tokens": 3, "completion_tokens": 2, "total_tokens": 5},
		})
	})

	result, err := backend.Invoke(context.Background(), "session-1", []llm.Message{{Role: "user", Content: "hi"}}, nil)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if result.Text != "hello there" {
		t.Errorf("expected text %q, got %q", "hello there", result.Text)
	}
	if result.RemoteID != "session-1" {
		t.Errorf("expected remote id to pass through, got %q", result.RemoteID)
	}
	if result.InputTokens != 3 || result.OutputTokens != 2 {
		t.Errorf("unexpected token counts: %+v", result)
	}
}

func TestInvokeClassifiesRateLimit(t *testing.T) {
	backend := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"rate limited"}`))
	})

	_, err := backend.Invoke(context.Background(), "s", []llm.Message{{Role: "user", Content: "hi"}}, nil)
	assertClass(t, err, types.LLMErrorRateLimit)
}

func TestInvokeClassifiesServerErrorAsRemoteUnknown(t *testing.T) {
	backend := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"boom"}`))
	})

	_, err := backend.Invoke(context.Background(), "s", []llm.Message{{Role: "user", Content: "hi"}}, nil)
	assertClass(t, err, types.LLMErrorRemoteUnknown)
}

func TestInvokeClassifiesBadRequestAsInvalidRequest(t *testing.T) {
	backend := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"malformed"}`))
	})

	_, err := backend.Invoke(context.Background(), "s", []llm.Message{{Role: "user", Content: "hi"}}, nil)
	assertClass(t, err, types.LLMErrorInvalidReq)
}

func TestSummarizeSendsSystemPrompt(t *testing.T) {
	var gotMessages []map[string]any
	backend := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		msgs, _ := body["messages"].([]any)
		for _, m := range msgs {
			gotMessages = append(gotMessages, m.(map[string]any))
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]any{"role": "assistant", "content": "summary"}}},
			"usage":   map[string]any{"prompt_tokens": 1, "completion_tokens": 1, "total_tokens": 2},
		})
	})

	summary, err := backend.Summarize(context.Background(), "long conversation text")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if summary != "summary" {
		t.Errorf("expected %q, got %q", "summary", summary)
	}
	if len(gotMessages) != 2 || gotMessages[0]["role"] != "system" {
		t.Fatalf("expected a leading system message, got %+v", gotMessages)
	}
}

func assertClass(t *testing.T, err error, want types.LLMErrorClass) {
	t.Helper()
	if err == nil {
		t.Fatal("expected an error")
	}
	var llmErr *types.LLMError
	if !errorsAs(err, &llmErr) {
		t.Fatalf("expected a *types.LLMError, got %T: %v", err, err)
	}
	if llmErr.Class != want {
		t.Errorf("expected class %q, got %q", want, llmErr.Class)
	}
}

func errorsAs(err error, target **types.LLMError) bool {
	if e, ok := err.(*types.LLMError); ok {
		*target = e
		return true
	}
	return false
}

var _ types.LLMBackend = (*Backend)(nil)
