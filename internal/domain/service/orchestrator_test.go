package service

import (
	"context"
	"testing"

	"github.com/robin-raq/collabboard/internal/domain/board"
)

type fakeExecutor struct {
	calls int
}

func (f *fakeExecutor) Execute(toolName string, input map[string]interface{}) (board.ToolAction, error) {
	f.calls++
	return board.ToolAction{ToolName: toolName, Input: input, Result: `{"success":true,"id":"obj-1"}`}, nil
}

type scriptedLLM struct {
	responses []*LLMResponse
	calls     int
}

func (s *scriptedLLM) Generate(_ context.Context, _ *LLMRequest) (*LLMResponse, error) {
	if s.calls >= len(s.responses) {
		return &LLMResponse{StopReason: "end_turn", Content: "done"}, nil
	}
	r := s.responses[s.calls]
	s.calls++
	return r, nil
}

func collect(events *[]board.StreamEvent) func(board.StreamEvent) {
	return func(e board.StreamEvent) { *events = append(*events, e) }
}

func TestOrchestrator_CacheHit_SkipsModel(t *testing.T) {
	cache := NewCommandCache()
	exec := &fakeExecutor{}
	cache.Learn("create a yellow sticky note", []board.ToolAction{
		{ToolName: "createObject", Input: map[string]interface{}{"type": "sticky", "fill": "#FFD700"}},
	}, "Created a yellow sticky")

	llm := &scriptedLLM{}
	orch := NewOrchestrator(cache, exec, llm, "test-model", func() string { return "empty board" }, nil)

	var events []board.StreamEvent
	orch.Run(context.Background(), "create a yellow sticky note", collect(&events))

	if llm.calls != 0 {
		t.Fatalf("expected no model calls on cache hit, got %d", llm.calls)
	}
	if len(events) == 0 || events[len(events)-1].Type != board.EventDone {
		t.Fatalf("expected a final done event, got %v", events)
	}
	if !events[len(events)-1].Cached {
		t.Fatal("expected the done event to report cached=true")
	}
}

func TestOrchestrator_NoModelConfigured_UsesFallback(t *testing.T) {
	cache := NewCommandCache()
	exec := &fakeExecutor{}
	orch := NewOrchestrator(cache, exec, nil, "", func() string { return "empty board" }, nil)

	var events []board.StreamEvent
	orch.Run(context.Background(), "create a sticky note", collect(&events))

	if exec.calls == 0 {
		t.Fatal("expected the fallback parser to dispatch at least one tool call")
	}
	last := events[len(events)-1]
	if last.Type != board.EventDone || last.Cached {
		t.Fatalf("expected a non-cached done event, got %v", last)
	}
}

func TestOrchestrator_ModelLoop_LearnsOnSuccess(t *testing.T) {
	cache := NewCommandCache()
	exec := &fakeExecutor{}
	llm := &scriptedLLM{
		responses: []*LLMResponse{
			{
				StopReason: "tool_use",
				ToolCalls:  []LLMToolCall{{ID: "call-1", Name: "createObject", Input: map[string]interface{}{"type": "sticky", "x": 10.0, "y": 10.0}}},
			},
		},
	}
	orch := NewOrchestrator(cache, exec, llm, "test-model", func() string { return "empty board" }, nil)

	var events []board.StreamEvent
	orch.Run(context.Background(), "draw a rectangle workflow diagram", collect(&events))

	if exec.calls != 1 {
		t.Fatalf("expected exactly 1 tool dispatch, got %d", exec.calls)
	}
	if cache.Size() != 1 {
		t.Fatalf("expected the model-loop success to be learned, cache size=%d", cache.Size())
	}
}

func TestOrchestrator_Cancellation_EmitsAbortedAndStops(t *testing.T) {
	cache := NewCommandCache()
	exec := &fakeExecutor{}
	llm := &scriptedLLM{}
	orch := NewOrchestrator(cache, exec, llm, "test-model", func() string { return "empty board" }, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var events []board.StreamEvent
	orch.Run(ctx, "create a sticky note", collect(&events))

	if len(events) != 1 || events[0].Type != board.EventError || events[0].Error != "aborted" {
		t.Fatalf("expected exactly one aborted error event, got %v", events)
	}
	if llm.calls != 0 || exec.calls != 0 {
		t.Fatalf("expected no side effects after cancellation, llm.calls=%d exec.calls=%d", llm.calls, exec.calls)
	}
}

func TestOrchestrator_ModelFailure_FallsBackToParser(t *testing.T) {
	cache := NewCommandCache()
	exec := &fakeExecutor{}
	orch := NewOrchestrator(cache, exec, failingLLM{}, "test-model", func() string { return "empty board" }, nil)

	var events []board.StreamEvent
	orch.Run(context.Background(), "create a sticky note", collect(&events))

	last := events[len(events)-1]
	if last.Type != board.EventDone {
		t.Fatalf("expected fallback to still emit a done event, got %v", events)
	}
	if exec.calls == 0 {
		t.Fatal("expected the fallback parser to run after the model failed")
	}
}

type failingLLM struct{}

func (failingLLM) Generate(_ context.Context, _ *LLMRequest) (*LLMResponse, error) {
	return nil, errUnauthorized
}

var errUnauthorized = fmtError("unauthorized: invalid api key")

type fmtError string

func (e fmtError) Error() string { return string(e) }

// cancellingLLM cancels the request context while "generating", then
// hands back tool calls the orchestrator must no longer dispatch.
type cancellingLLM struct {
	cancel context.CancelFunc
}

func (c *cancellingLLM) Generate(_ context.Context, _ *LLMRequest) (*LLMResponse, error) {
	c.cancel()
	return &LLMResponse{
		StopReason: "tool_use",
		ToolCalls: []LLMToolCall{
			{ID: "t1", Name: "createObject", Input: map[string]interface{}{"type": "sticky", "x": 0.0, "y": 0.0}},
		},
	}, nil
}

func TestOrchestrator_CancellationMidLoop_SkipsFallback(t *testing.T) {
	cache := NewCommandCache()
	exec := &fakeExecutor{}

	ctx, cancel := context.WithCancel(context.Background())
	llm := &cancellingLLM{cancel: cancel}
	orch := NewOrchestrator(cache, exec, llm, "test-model", func() string { return "empty board" }, nil)

	var events []board.StreamEvent
	orch.Run(ctx, "create a sticky note", collect(&events))

	last := events[len(events)-1]
	if last.Type != board.EventError || last.Error != "aborted" {
		t.Fatalf("expected the run to end on the aborted error event, got %v", events)
	}
	for _, ev := range events {
		if ev.Type == board.EventDone {
			t.Fatalf("done event emitted after cancellation: %v", events)
		}
	}
	if exec.calls != 0 {
		t.Fatalf("tool calls dispatched after cancellation: %d", exec.calls)
	}
}
