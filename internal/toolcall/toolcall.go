// Package toolcall implements the tagged-variant tool-call dispatcher: the
// agent's MCP-style tools (send_message, delegate_task, schedule_create, ...)
// each declare a JSON Schema for their arguments, and the dispatcher
// validates before executing, per Design Notes item 1.
package toolcall

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/agenthost/agenthost/internal/types"
)

// Call is one tool-call intent surfaced by the LLM backend during an
// invocation, matching the `tool_calls` field of spec §6's LLM backend
// contract.
type Call struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Tool is one variant of the tagged tool-call union. Each tool owns its
// argument schema and its own execution against the components it needs.
type Tool interface {
	Name() string
	Description() string
	Schema() json.RawMessage
	Execute(ctx context.Context, userID types.UserID, args json.RawMessage) (string, error)
}

// Registry holds compiled variants and dispatches calls by name, grounded
// on the teacher's internal/runtime.Registry lookup-by-name shape,
// generalized to compile and enforce each variant's own JSON Schema.
type Registry struct {
	tools    map[string]Tool
	compiled map[string]*jsonschema.Schema
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool), compiled: make(map[string]*jsonschema.Schema)}
}

// Register compiles a tool's schema and adds it to the registry. It panics
// on an invalid schema, since tool schemas are static and a bad one is a
// programming error caught at wiring time, not runtime.
func (r *Registry) Register(t Tool) {
	schema, err := compile(t.Name(), t.Schema())
	if err != nil {
		panic(fmt.Sprintf("toolcall: register %s: %v", t.Name(), err))
	}
	r.tools[t.Name()] = t
	r.compiled[t.Name()] = schema
}

func compile(name string, schemaJSON json.RawMessage) (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(string(schemaJSON)))
	if err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	resource := name + ".json"
	if err := c.AddResource(resource, doc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	return c.Compile(resource)
}

// All returns every registered tool, e.g. for advertising to the LLM backend.
func (r *Registry) All() []Tool {
	out := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	return out
}

// Dispatch validates call.Arguments against the named tool's schema, then
// executes it. An unknown tool name or a schema violation is returned as
// an error without ever reaching Execute.
func (r *Registry) Dispatch(ctx context.Context, userID types.UserID, call Call) (string, error) {
	tool, ok := r.tools[call.Name]
	if !ok {
		return "", fmt.Errorf("toolcall: unknown tool %q", call.Name)
	}
	schema := r.compiled[call.Name]

	args := call.Arguments
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	parsed, err := jsonschema.UnmarshalJSON(strings.NewReader(string(args)))
	if err != nil {
		return "", fmt.Errorf("toolcall: %s: invalid argument JSON: %w", call.Name, err)
	}
	if err := schema.Validate(parsed); err != nil {
		return "", fmt.Errorf("toolcall: %s: argument validation failed: %w", call.Name, err)
	}

	return tool.Execute(ctx, userID, args)
}
