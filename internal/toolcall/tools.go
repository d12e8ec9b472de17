package toolcall

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/agenthost/agenthost/internal/memory"
	"github.com/agenthost/agenthost/internal/scheduler"
	"github.com/agenthost/agenthost/internal/taskmanager"
	"github.com/agenthost/agenthost/internal/types"
)

// SendMessageTool delivers a text message to the user's chat front-end.
type SendMessageTool struct {
	Adapter types.ChatAdapter
}

func (t *SendMessageTool) Name() string        { return "send_message" }
func (t *SendMessageTool) Description() string { return "Send a text message to the user." }
func (t *SendMessageTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {"body": {"type": "string", "minLength": 1}},
		"required": ["body"],
		"additionalProperties": false
	}`)
}

func (t *SendMessageTool) Execute(ctx context.Context, userID types.UserID, args json.RawMessage) (string, error) {
	var payload struct {
		Body string `json:"body"`
	}
	if err := json.Unmarshal(args, &payload); err != nil {
		return "", err
	}
	if err := t.Adapter.Send(ctx, userID, payload.Body); err != nil {
		return "", err
	}
	return "sent", nil
}

// SendFileTool delivers one or more files to the user's chat front-end.
type SendFileTool struct {
	Adapter types.ChatAdapter
}

func (t *SendFileTool) Name() string        { return "send_file" }
func (t *SendFileTool) Description() string { return "Send one or more files to the user." }
func (t *SendFileTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"paths": {"type": "array", "items": {"type": "string"}, "minItems": 1}
		},
		"required": ["paths"],
		"additionalProperties": false
	}`)
}

func (t *SendFileTool) Execute(ctx context.Context, userID types.UserID, args json.RawMessage) (string, error) {
	var payload struct {
		Paths []string `json:"paths"`
	}
	if err := json.Unmarshal(args, &payload); err != nil {
		return "", err
	}
	if err := t.Adapter.SendFiles(ctx, userID, payload.Paths); err != nil {
		return "", err
	}
	return "sent", nil
}

// DelegateTaskTool submits a new sub-agent task, optionally under review.
type DelegateTaskTool struct {
	Manager *taskmanager.Manager
}

func (t *DelegateTaskTool) Name() string { return "delegate_task" }
func (t *DelegateTaskTool) Description() string {
	return "Delegate a task to a background sub-agent, optionally with an automated review loop."
}
func (t *DelegateTaskTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"description": {"type": "string", "minLength": 1},
			"prompt": {"type": "string", "minLength": 1},
			"review_criteria": {"type": "string"}
		},
		"required": ["description", "prompt"],
		"additionalProperties": false
	}`)
}

func (t *DelegateTaskTool) Execute(ctx context.Context, userID types.UserID, args json.RawMessage) (string, error) {
	var payload struct {
		Description    string `json:"description"`
		Prompt         string `json:"prompt"`
		ReviewCriteria string `json:"review_criteria"`
	}
	if err := json.Unmarshal(args, &payload); err != nil {
		return "", err
	}
	var (
		taskID types.SubAgentTaskID
		err    error
	)
	if payload.ReviewCriteria != "" {
		taskID, err = t.Manager.DelegateAndReview(ctx, userID, payload.Description, payload.Prompt, payload.ReviewCriteria)
	} else {
		taskID, err = t.Manager.Delegate(ctx, userID, payload.Description, payload.Prompt)
	}
	if err != nil {
		return "", err
	}
	return string(taskID), nil
}

// CancelTaskTool cancels a running sub-agent task.
type CancelTaskTool struct {
	Manager *taskmanager.Manager
}

func (t *CancelTaskTool) Name() string        { return "cancel_task" }
func (t *CancelTaskTool) Description() string { return "Cancel a running sub-agent task." }
func (t *CancelTaskTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {"task_id": {"type": "string", "minLength": 1}},
		"required": ["task_id"],
		"additionalProperties": false
	}`)
}

func (t *CancelTaskTool) Execute(ctx context.Context, userID types.UserID, args json.RawMessage) (string, error) {
	var payload struct {
		TaskID string `json:"task_id"`
	}
	if err := json.Unmarshal(args, &payload); err != nil {
		return "", err
	}
	if err := t.Manager.Cancel(ctx, userID, types.SubAgentTaskID(payload.TaskID)); err != nil {
		return "", err
	}
	return "cancelled", nil
}

// ScheduleCreateTool creates a new recurring or one-shot prompt.
type ScheduleCreateTool struct {
	Manager *scheduler.Manager
}

func (t *ScheduleCreateTool) Name() string { return "schedule_create" }
func (t *ScheduleCreateTool) Description() string {
	return "Create a scheduled task that delegates a prompt on a recurring or one-shot basis."
}
func (t *ScheduleCreateTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"task_id": {"type": "string", "pattern": "^[A-Za-z0-9_]{1,32}$"},
			"name": {"type": "string", "minLength": 1},
			"schedule_type": {"type": "string", "enum": ["daily", "weekly", "monthly", "interval", "once"]},
			"hour": {"type": "integer", "minimum": 0, "maximum": 23},
			"minute": {"type": "integer", "minimum": 0, "maximum": 59},
			"weekdays": {"type": "array", "items": {"type": "integer", "minimum": 0, "maximum": 6}},
			"month_day": {"type": "integer", "minimum": 1, "maximum": 31},
			"interval_seconds": {"type": "integer", "minimum": 1},
			"run_date": {"type": "string"},
			"prompt": {"type": "string", "minLength": 1}
		},
		"required": ["task_id", "name", "schedule_type", "prompt"],
		"additionalProperties": false
	}`)
}

func (t *ScheduleCreateTool) Execute(ctx context.Context, userID types.UserID, args json.RawMessage) (string, error) {
	var payload struct {
		TaskID          string `json:"task_id"`
		Name            string `json:"name"`
		ScheduleType    string `json:"schedule_type"`
		Hour            int    `json:"hour"`
		Minute          int    `json:"minute"`
		Weekdays        []int  `json:"weekdays"`
		MonthDay        int    `json:"month_day"`
		IntervalSeconds int    `json:"interval_seconds"`
		RunDate         string `json:"run_date"`
		Prompt          string `json:"prompt"`
	}
	if err := json.Unmarshal(args, &payload); err != nil {
		return "", err
	}
	task := &types.ScheduledTask{
		TaskID:          types.ScheduledTaskID(payload.TaskID),
		UserID:          userID,
		Name:            payload.Name,
		ScheduleType:    types.ScheduleType(payload.ScheduleType),
		Hour:            payload.Hour,
		Minute:          payload.Minute,
		Weekdays:        payload.Weekdays,
		MonthDay:        payload.MonthDay,
		IntervalSeconds: payload.IntervalSeconds,
		RunDate:         payload.RunDate,
		Enabled:         true,
		Prompt:          payload.Prompt,
	}
	if err := t.Manager.Create(ctx, task); err != nil {
		return "", err
	}
	return fmt.Sprintf("scheduled %s", task.TaskID), nil
}

// MemoryAddTool records a structured fact about the user.
type MemoryAddTool struct {
	Store *memory.Store
}

func (t *MemoryAddTool) Name() string        { return "memory_add" }
func (t *MemoryAddTool) Description() string { return "Record a structured fact about the user." }
func (t *MemoryAddTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"content": {"type": "string", "minLength": 1},
			"category": {"type": "string"},
			"confidence": {"type": "number", "minimum": 0, "maximum": 1},
			"tags": {"type": "array", "items": {"type": "string"}}
		},
		"required": ["content", "category"],
		"additionalProperties": false
	}`)
}

func (t *MemoryAddTool) Execute(ctx context.Context, userID types.UserID, args json.RawMessage) (string, error) {
	var payload struct {
		Content    string   `json:"content"`
		Category   string   `json:"category"`
		Confidence float64  `json:"confidence"`
		Tags       []string `json:"tags"`
	}
	if err := json.Unmarshal(args, &payload); err != nil {
		return "", err
	}
	m := &types.Memory{
		ID:         types.NewMemoryID(),
		UserID:     userID,
		Content:    payload.Content,
		Category:   types.MemoryCategory(payload.Category),
		SourceType: types.SourceInferred,
		Confidence: payload.Confidence,
		Tags:       payload.Tags,
		CreatedAt:  time.Now(),
		ValidFrom:  time.Now(),
	}
	if err := t.Store.Add(ctx, m); err != nil {
		return "", err
	}
	return string(m.ID), nil
}
