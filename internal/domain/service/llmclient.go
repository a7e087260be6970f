package service

import "context"

// ToolDef is the JSON-schema tool definition handed to the model ahead
// of every turn, built from the tool executor's public surface.
type ToolDef struct {
	Name        string
	Description string
	Parameters  map[string]interface{}
}

// LLMToolCall is one tool_use block the model emitted in a turn.
type LLMToolCall struct {
	ID    string
	Name  string
	Input map[string]interface{}
}

// LLMMessage is one turn of the conversation sent to/received from the
// model. Role is "system", "user", "assistant", or "tool". ToolCalls is
// only populated on assistant messages; ToolCallID/Content pairs a
// tool-role message with the call it answers.
type LLMMessage struct {
	Role       string
	Content    string
	ToolCalls  []LLMToolCall
	ToolCallID string
}

// LLMRequest is one model turn: the running conversation, the tool
// catalog, and the per-classification budget.
type LLMRequest struct {
	Model     string
	Messages  []LLMMessage
	Tools     []ToolDef
	MaxTokens int
}

// LLMResponse is the model's reply to one turn: free text plus any
// tool_use blocks it emitted. StopReason distinguishes "the model is
// done" from "the model wants a tool dispatched".
type LLMResponse struct {
	Content    string
	ToolCalls  []LLMToolCall
	StopReason string // "end_turn", "tool_use", "max_tokens"
}

// LLMClient is the capability the AI Orchestrator's model loop depends
// on. Concrete implementations live under internal/infrastructure/llm.
type LLMClient interface {
	Generate(ctx context.Context, req *LLMRequest) (*LLMResponse, error)
}
