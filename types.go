// Package subconscious is the Go client for the Subconscious API. It creates
// runs that execute an instruction with optional tool use, synchronously,
// polled, or streamed, and carries the structured-output grammars built by
// the grammar subpackage.
package subconscious

import (
	"encoding/json"
	"fmt"
)

// Engine identifies a hosted reasoning engine.
type Engine string

const (
	EngineTIMEdge     Engine = "tim-edge"
	EngineTIMGPT      Engine = "tim-gpt"
	EngineTIMGPTHeavy Engine = "tim-gpt-heavy"
)

// RunStatus is the lifecycle state of a run.
type RunStatus string

const (
	StatusQueued    RunStatus = "queued"
	StatusRunning   RunStatus = "running"
	StatusSucceeded RunStatus = "succeeded"
	StatusFailed    RunStatus = "failed"
	StatusCanceled  RunStatus = "canceled"
	StatusTimedOut  RunStatus = "timed_out"
)

// Terminal reports whether the status is final.
func (s RunStatus) Terminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusCanceled, StatusTimedOut:
		return true
	}
	return false
}

// ReasoningNode is one node of a run's reasoning tree.
type ReasoningNode struct {
	Title      string          `json:"title"`
	Thought    string          `json:"thought"`
	Tooluse    []any           `json:"tooluse,omitempty"`
	Subtask    []ReasoningNode `json:"subtask,omitempty"`
	Conclusion string          `json:"conclusion"`
}

// RunResult is the result of a completed run. Reasoning is kept raw because
// its shape depends on the reasoning format the run was created with; use
// ReasoningTree to decode the default tree shape.
type RunResult struct {
	Answer    string          `json:"answer"`
	Reasoning json.RawMessage `json:"reasoning,omitempty"`
}

// ReasoningTree decodes the raw reasoning into the default tree shape.
func (r *RunResult) ReasoningTree() (*ReasoningNode, error) {
	if len(r.Reasoning) == 0 {
		return nil, nil
	}
	var node ReasoningNode
	if err := json.Unmarshal(r.Reasoning, &node); err != nil {
		return nil, fmt.Errorf("decoding reasoning tree: %w", err)
	}
	return &node, nil
}

// ModelUsage is token usage for one model.
type ModelUsage struct {
	Engine       string `json:"engine"`
	InputTokens  int    `json:"inputTokens"`
	OutputTokens int    `json:"outputTokens"`
	TotalTokens  int    `json:"totalTokens"`
}

// PlatformToolUsage is call volume for one platform tool.
type PlatformToolUsage struct {
	ToolID string `json:"toolId"`
	Calls  int    `json:"calls"`
}

// Usage aggregates usage statistics for a run.
type Usage struct {
	Models        []ModelUsage        `json:"models,omitempty"`
	PlatformTools []PlatformToolUsage `json:"platformTools,omitempty"`
}

// Run represents an agent run.
type Run struct {
	RunID  string     `json:"runId"`
	Status RunStatus  `json:"status,omitempty"`
	Result *RunResult `json:"result,omitempty"`
	Usage  *Usage     `json:"usage,omitempty"`
}

// UnmarshalJSON accepts both runId and run_id keys for the run identifier.
func (r *Run) UnmarshalJSON(data []byte) error {
	type runAlias Run
	aux := struct {
		runAlias
		RunIDSnake string `json:"run_id"`
	}{}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*r = Run(aux.runAlias)
	if r.RunID == "" {
		r.RunID = aux.RunIDSnake
	}
	return nil
}

// Tool is a tool declaration attached to a run: a PlatformTool, FunctionTool,
// MCPTool, or a RawTool for shapes this SDK does not model.
type Tool interface {
	isTool()
}

// PlatformTool is a platform-hosted tool.
type PlatformTool struct {
	Type    string         `json:"type"`
	ID      string         `json:"id"`
	Options map[string]any `json:"options,omitempty"`
}

func (PlatformTool) isTool() {}

// MarshalJSON fills in the default type when unset.
func (t PlatformTool) MarshalJSON() ([]byte, error) {
	type alias PlatformTool
	if t.Type == "" {
		t.Type = "platform"
	}
	return json.Marshal(alias(t))
}

// FunctionTool is a custom function tool executed over HTTP by the platform.
type FunctionTool struct {
	Type        string         `json:"type"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
	URL         string         `json:"url,omitempty"`
	Method      string         `json:"method,omitempty"`
	Timeout     int            `json:"timeout,omitempty"`
}

func (FunctionTool) isTool() {}

// MarshalJSON fills in the default type when unset.
func (t FunctionTool) MarshalJSON() ([]byte, error) {
	type alias FunctionTool
	if t.Type == "" {
		t.Type = "function"
	}
	return json.Marshal(alias(t))
}

// MCPTool is a Model Context Protocol server attached to a run.
type MCPTool struct {
	Type  string   `json:"type"`
	URL   string   `json:"url"`
	Allow []string `json:"allow,omitempty"`
}

func (MCPTool) isTool() {}

// MarshalJSON fills in the default type when unset.
func (t MCPTool) MarshalJSON() ([]byte, error) {
	type alias MCPTool
	if t.Type == "" {
		t.Type = "mcp"
	}
	return json.Marshal(alias(t))
}

// RawTool passes an arbitrary tool object through untouched.
type RawTool map[string]any

func (RawTool) isTool() {}

// RunInput is the input configuration for a run.
type RunInput struct {
	Instructions string `json:"instructions" validate:"required"`
	Tools        []Tool `json:"tools"`
	// AnswerFormat is the JSON Schema for the answer output. Use
	// SchemaFromStruct to generate one from a Go struct.
	AnswerFormat OutputSchema `json:"answerFormat,omitempty"`
	// ReasoningFormat is the JSON Schema for the reasoning output.
	ReasoningFormat OutputSchema `json:"reasoningFormat,omitempty"`
}

// RunOptions are options for creating a run.
type RunOptions struct {
	AwaitCompletion bool
}

// RunParams are the parameters for creating a run.
type RunParams struct {
	Engine  Engine      `json:"engine" validate:"required,oneof=tim-edge tim-gpt tim-gpt-heavy"`
	Input   RunInput    `json:"input"`
	Options *RunOptions `json:"-"`
}

// PollOptions configure Wait.
type PollOptions struct {
	// IntervalMS is the delay between polls. Defaults to 1000.
	IntervalMS int
	// MaxAttempts bounds the number of polls. Zero means unbounded.
	MaxAttempts int
}

// StreamEvent is one event of a streaming run: a DeltaEvent, DoneEvent, or
// ErrorEvent.
type StreamEvent interface {
	streamEvent()
}

// DeltaEvent carries a text delta as it is generated.
type DeltaEvent struct {
	RunID   string
	Content string
}

func (DeltaEvent) streamEvent() {}

// DoneEvent signals that the stream completed successfully.
type DoneEvent struct {
	RunID string
}

func (DoneEvent) streamEvent() {}

// ErrorEvent signals that the stream encountered an error.
type ErrorEvent struct {
	RunID   string
	Message string
	Code    string
}

func (ErrorEvent) streamEvent() {}
