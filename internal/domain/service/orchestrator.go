package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/robin-raq/collabboard/internal/domain/board"
)

const (
	simpleMaxTokens  = 512
	complexMaxTokens = 2048
	simpleMaxTurns   = 3
	complexMaxTurns  = 8
	complexLenChars  = 120
)

var complexPatternRe = regexp.MustCompile(`(?i)grid|layout|arrange|template|retrospective|swot|journey|kanban|columns?|rows?|multiple|chart|diagram|visuali[sz]e|map|board|pros\s*&?\s*cons|matrix|timeline|roadmap|workflow|connect|arrow`)

// BoardContextBuilder renders the human-readable board snapshot the
// model loop seeds every turn with.
type BoardContextBuilder func() string

// Orchestrator is the AI command pipeline: the shared decision tree
// between the cache, the model loop, and the deterministic fallback
// parser.
type Orchestrator struct {
	cache    *CommandCache
	fallback *FallbackParser
	exec     ToolExecutor
	client   LLMClient
	breaker  breaker
	model    string
	buildCtx BoardContextBuilder
}

// breaker is the subset of llm.CircuitBreaker the orchestrator needs,
// kept as a small interface here so the domain layer doesn't import
// the infrastructure llm package.
type breaker interface {
	Allow() bool
	RecordSuccess()
	RecordFailure()
}

// noopBreaker always allows calls through; used when no breaker is wired.
type noopBreaker struct{}

func (noopBreaker) Allow() bool    { return true }
func (noopBreaker) RecordSuccess() {}
func (noopBreaker) RecordFailure() {}

// NewOrchestrator builds an Orchestrator. client may be nil, meaning
// "no external model configured" (decision tree branch 2). breaker may
// be nil, meaning no circuit-breaking (every call attempted).
func NewOrchestrator(cache *CommandCache, exec ToolExecutor, client LLMClient, model string, buildCtx BoardContextBuilder, cb breaker) *Orchestrator {
	if cb == nil {
		cb = noopBreaker{}
	}
	return &Orchestrator{
		cache:    cache,
		fallback: NewFallbackParser(exec),
		exec:     exec,
		client:   client,
		breaker:  cb,
		model:    model,
		buildCtx: buildCtx,
	}
}

// Run executes the full decision tree for one natural-language
// command, emitting every StreamEvent to emit. Run never returns an
// error for a client-visible failure; all failures are surfaced as an
// EventError through emit, matching the HTTP/WS callers' expectation
// that emit is the only channel of truth.
func (o *Orchestrator) Run(ctx context.Context, command string, emit func(board.StreamEvent)) {
	if ctx.Err() != nil {
		emit(board.Err("aborted"))
		return
	}

	// 1. Cache hit: replay without touching the model.
	if recipe := o.cache.Match(command); recipe != nil {
		message, actions, err := Replay(recipe, command, o.exec.Execute)
		if err != nil {
			emit(board.Err(err.Error()))
			return
		}
		for _, a := range actions {
			emit(board.ToolResultEvent(a))
		}
		emit(board.Done(message, actions, true))
		return
	}

	// 2. No external model configured: deterministic fallback only.
	if o.client == nil {
		message, actions := o.fallback.Parse(command)
		for _, a := range actions {
			emit(board.ToolResultEvent(a))
		}
		emit(board.Done(message, actions, false))
		return
	}

	// 3. External model available: run the model loop; fall back to the
	// local parser on any exception (breaker trip, non-retryable
	// error, timeout).
	message, actions, err := o.runModelLoop(ctx, command, emit)
	if err != nil {
		// The request context being dead means a client abort or the
		// wall-clock timeout, and the loop already emitted its error
		// event; dispatching the fallback parser now would keep
		// mutating the document after the abort. A per-call model
		// timeout with a live request context is an ordinary failure
		// and still falls back.
		if ctx.Err() != nil {
			return
		}
		message, actions = o.fallback.Parse(command)
		for _, a := range actions {
			emit(board.ToolResultEvent(a))
		}
		emit(board.Done(message, actions, false))
		return
	}

	o.cache.Learn(command, actions, message)
	emit(board.Done(message, actions, false))
}

// classify buckets a command into the simple/complex budget pair.
func classify(command string) (maxTokens, maxTurns int) {
	if complexPatternRe.MatchString(command) || len([]rune(command)) > complexLenChars {
		return complexMaxTokens, complexMaxTurns
	}
	return simpleMaxTokens, simpleMaxTurns
}

func toolCatalog() []ToolDef {
	return []ToolDef{
		{
			Name:        "createObject",
			Description: "Create a new board object (sticky, rect, circle, text, frame, or line) at a position.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"type":   map[string]interface{}{"type": "string"},
					"x":      map[string]interface{}{"type": "number"},
					"y":      map[string]interface{}{"type": "number"},
					"text":   map[string]interface{}{"type": "string"},
					"fill":   map[string]interface{}{"type": "string"},
				},
				"required": []string{"type", "x", "y"},
			},
		},
		{
			Name:        "updateObject",
			Description: "Update text, fill, width, height, or fontSize on an existing object by id.",
			Parameters: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{"id": map[string]interface{}{"type": "string"}},
				"required":   []string{"id"},
			},
		},
		{
			Name:        "moveObject",
			Description: "Move an existing object to a new position by id.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"id": map[string]interface{}{"type": "string"},
					"x":  map[string]interface{}{"type": "number"},
					"y":  map[string]interface{}{"type": "number"},
				},
				"required": []string{"id", "x", "y"},
			},
		},
		{
			Name:        "getBoardState",
			Description: "Render a human-readable snapshot of the current board.",
			Parameters:  map[string]interface{}{"type": "object", "properties": map[string]interface{}{}},
		},
	}
}

func systemPreamble(boardContext string) string {
	return "You are a collaborative whiteboard assistant. You can call createObject, " +
		"updateObject, moveObject, and getBoardState to carry out the user's request. " +
		"Place new objects away from existing ones using the placement hint below.\n\n" + boardContext
}

// runModelLoop drives the model conversation: per-turn send,
// dispatch any tool_use blocks through the executor, stop on end-of-turn or
// exhausted turn budget.
func (o *Orchestrator) runModelLoop(ctx context.Context, command string, emit func(board.StreamEvent)) (string, []board.ToolAction, error) {
	maxTokens, maxTurns := classify(command)

	messages := []LLMMessage{
		{Role: "system", Content: systemPreamble(o.buildCtx())},
		{Role: "user", Content: command},
	}
	tools := toolCatalog()

	var actions []board.ToolAction

	for turn := 0; turn < maxTurns; turn++ {
		if ctx.Err() != nil {
			emit(board.Err("aborted"))
			return "", actions, ctx.Err()
		}
		if !o.breaker.Allow() {
			return "", actions, fmt.Errorf("orchestrator: model circuit open")
		}

		req := &LLMRequest{Model: o.model, Messages: messages, Tools: tools, MaxTokens: maxTokens}
		resp, err := callLLMWithRetry(ctx, o.client, req, defaultRetryConfig())
		if err != nil {
			o.breaker.RecordFailure()
			// The retry wrapper bails out mid-backoff when the request
			// context dies; surface that as the aborted event here so
			// the client always sees a terminal event.
			if ctx.Err() != nil {
				emit(board.Err("aborted"))
			}
			return "", actions, err
		}
		o.breaker.RecordSuccess()

		if len(resp.ToolCalls) == 0 || resp.StopReason == "end_turn" {
			return resp.Content, actions, nil
		}

		assistantMsg := LLMMessage{Role: "assistant", Content: resp.Content, ToolCalls: resp.ToolCalls}
		messages = append(messages, assistantMsg)

		for _, call := range resp.ToolCalls {
			if ctx.Err() != nil {
				emit(board.Err("aborted"))
				return "", actions, ctx.Err()
			}
			action, execErr := o.exec.Execute(call.Name, call.Input)
			if execErr != nil {
				action = board.ToolAction{ToolName: call.Name, Input: call.Input, Result: fmt.Sprintf(`{"success":false,"error":%q}`, execErr.Error())}
			}
			actions = append(actions, action)
			emit(board.ToolResultEvent(action))
			messages = append(messages, LLMMessage{Role: "tool", Content: action.Result, ToolCallID: call.ID})
		}
	}

	return genericExhaustedMessage(command), actions, nil
}

func genericExhaustedMessage(command string) string {
	return "I made several changes but didn't finish everything for: " + strings.TrimSpace(command)
}
