// Package llmbackend adapts a pkg/llm.Provider (OpenAI-compatible chat
// completions) to the host's opaque types.LLMBackend contract, classifying
// provider failures into the LLMErrorClass taxonomy so the rest of the host
// never has to know about HTTP status codes or transport errors.
package llmbackend

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/agenthost/agenthost/internal/types"
	"github.com/agenthost/agenthost/pkg/llm"
	"github.com/agenthost/agenthost/pkg/llm/openai"
)

const summarizePrompt = "Summarize the following conversation concisely, preserving names, decisions, and open questions."

// Backend implements types.LLMBackend over any pkg/llm.Provider.
type Backend struct {
	provider llm.Provider
}

// New wraps provider as a types.LLMBackend.
func New(provider llm.Provider) *Backend {
	return &Backend{provider: provider}
}

// Invoke implements types.LLMBackend. sessionRemoteID is passed through
// unchanged in the result since this provider is stateless per-call; a
// provider that maintains server-side conversation state would populate it
// from the response instead.
func (b *Backend) Invoke(ctx context.Context, sessionRemoteID string, messages []llm.Message, tools []llm.Tool) (types.LLMResult, error) {
	resp, err := b.provider.Complete(ctx, messages, tools)
	if err != nil {
		return types.LLMResult{}, classify(err)
	}
	return types.LLMResult{
		Text:         resp.Content,
		RemoteID:     sessionRemoteID,
		ToolCalls:    resp.ToolCalls,
		InputTokens:  int64(resp.Usage.InputTokens),
		OutputTokens: int64(resp.Usage.OutputTokens),
	}, nil
}

// Summarize implements types.LLMBackend.
func (b *Backend) Summarize(ctx context.Context, text string) (string, error) {
	messages := []llm.Message{
		{Role: "system", Content: summarizePrompt},
		{Role: "user", Content: text},
	}
	resp, err := b.provider.Complete(ctx, messages, nil)
	if err != nil {
		return "", classify(err)
	}
	return resp.Content, nil
}

func classify(err error) *types.LLMError {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusTooManyRequests:
			return &types.LLMError{Class: types.LLMErrorRateLimit, Err: err}
		case apiErr.StatusCode >= 500:
			return &types.LLMError{Class: types.LLMErrorRemoteUnknown, Err: err}
		case apiErr.StatusCode >= 400:
			return &types.LLMError{Class: types.LLMErrorInvalidReq, Err: err}
		}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return &types.LLMError{Class: types.LLMErrorTransport, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &types.LLMError{Class: types.LLMErrorTransport, Err: err}
	}
	return &types.LLMError{Class: types.LLMErrorRemoteUnknown, Err: err}
}

var _ types.LLMBackend = (*Backend)(nil)
