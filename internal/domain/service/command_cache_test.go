package service

import (
	"strconv"
	"testing"

	"github.com/robin-raq/collabboard/internal/domain/board"
)

func TestCommandCache_GenericNeverLearned(t *testing.T) {
	c := NewCommandCache()
	c.Learn("do something weird", []board.ToolAction{{ToolName: "createObject"}}, "done")
	if c.Size() != 0 {
		t.Fatalf("expected generic intent to be rejected, size=%d", c.Size())
	}
}

func TestCommandCache_LearnAndMatch(t *testing.T) {
	c := NewCommandCache()
	actions := []board.ToolAction{
		{ToolName: "createObject", Input: map[string]interface{}{"type": "sticky", "fill": "#FFD700"}},
	}
	c.Learn("create a yellow sticky note", actions, "Created a yellow sticky")

	if c.Size() != 1 {
		t.Fatalf("expected 1 learned recipe, got %d", c.Size())
	}

	recipe := c.Match("create a yellow sticky note")
	if recipe == nil {
		t.Fatal("expected a cache hit")
	}
	if recipe.IntentKey != string(IntentCreateSticky) {
		t.Fatalf("unexpected intent key: %s", recipe.IntentKey)
	}
	if recipe.HitCount != 1 {
		t.Fatalf("expected hit count 1, got %d", recipe.HitCount)
	}
}

func TestCommandCache_FirstLearnedWins(t *testing.T) {
	c := NewCommandCache()
	c.Learn("create a yellow sticky note", []board.ToolAction{{ToolName: "createObject"}}, "first")
	c.Learn("create a blue sticky note", []board.ToolAction{{ToolName: "createObject"}, {ToolName: "moveObject"}}, "second")

	recipe := c.Match("create another sticky")
	if recipe == nil {
		t.Fatal("expected a match")
	}
	if len(recipe.ActionTemplates) != 1 {
		t.Fatalf("expected the first-learned recipe (1 action) to win, got %d actions", len(recipe.ActionTemplates))
	}
}

func TestCommandCache_RejectsEmptyOrOversizedActions(t *testing.T) {
	c := NewCommandCache()
	c.Learn("create a sticky note", nil, "nothing happened")
	if c.Size() != 0 {
		t.Fatal("empty actions should not be learned")
	}

	many := make([]board.ToolAction, 21)
	for i := range many {
		many[i] = board.ToolAction{ToolName: "createObject"}
	}
	c.Learn("create a sticky note", many, "too many")
	if c.Size() != 0 {
		t.Fatal("actions over the 20-cap should not be learned")
	}
}

func TestCommandCache_LRUEviction(t *testing.T) {
	c := NewCommandCache()
	for i := 0; i < commandCacheCapacity; i++ {
		cmd := gridCommand(i)
		c.Learn(cmd, []board.ToolAction{{ToolName: "createObject"}}, "ok")
	}
	if c.Size() != commandCacheCapacity {
		t.Fatalf("expected cache to fill to capacity, got %d", c.Size())
	}

	// One more distinct intent should evict something rather than grow past capacity.
	c.Learn("arrange these objects neatly", []board.ToolAction{{ToolName: "moveObject"}}, "ok")
	if c.Size() != commandCacheCapacity {
		t.Fatalf("expected capacity to stay bounded at %d, got %d", commandCacheCapacity, c.Size())
	}
}

func gridCommand(n int) string {
	// Each iteration derives a distinct create_grid_{C}x{R} intent key.
	cols, rows := n+2, n+3
	return "make a " + strconv.Itoa(cols) + "x" + strconv.Itoa(rows) + " grid of stickies"
}

func TestReplay_SubstitutesParamsFromNewCommand(t *testing.T) {
	c := NewCommandCache()
	c.Learn("Create a yellow sticky that says Hello",
		[]board.ToolAction{{
			ToolName: "createObject",
			Input:    map[string]interface{}{"type": "sticky", "fill": "#FFD700", "text": "Hello", "x": 100.0, "y": 100.0},
		}},
		"Created a yellow sticky 'Hello'.")

	recipe := c.Match("Create a blue sticky that says World")
	if recipe == nil {
		t.Fatal("expected the similar command to hit the same intent")
	}

	var dispatched []map[string]interface{}
	execute := func(toolName string, input map[string]interface{}) (board.ToolAction, error) {
		dispatched = append(dispatched, input)
		return board.ToolAction{ToolName: toolName, Input: input, Result: `{"success":true}`}, nil
	}

	_, actions, err := Replay(recipe, "Create a blue sticky that says World", execute)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if len(actions) != 1 || len(dispatched) != 1 {
		t.Fatalf("expected 1 replayed action, got %d", len(actions))
	}
	if dispatched[0]["fill"] != "#87CEEB" {
		t.Fatalf("fill = %v, want the new command's blue", dispatched[0]["fill"])
	}
	if dispatched[0]["text"] != "World" {
		t.Fatalf("text = %v, want the new command's text", dispatched[0]["text"])
	}
}

func TestReplay_LeavesPlaceholderWhenParamAbsent(t *testing.T) {
	c := NewCommandCache()
	c.Learn("Create a yellow sticky that says Hello",
		[]board.ToolAction{{
			ToolName: "createObject",
			Input:    map[string]interface{}{"type": "sticky", "fill": "#FFD700", "text": "Hello"},
		}},
		"Created a yellow sticky 'Hello'.")

	// The new command carries no text param at all.
	recipe := c.Match("Create a green sticky")
	if recipe == nil {
		t.Fatal("expected an intent match")
	}

	var dispatched []map[string]interface{}
	execute := func(toolName string, input map[string]interface{}) (board.ToolAction, error) {
		dispatched = append(dispatched, input)
		return board.ToolAction{ToolName: toolName, Input: input, Result: `{"success":true}`}, nil
	}

	if _, _, err := Replay(recipe, "Create a green sticky", execute); err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if len(dispatched) != 1 {
		t.Fatalf("expected 1 replayed action, got %d", len(dispatched))
	}
	if dispatched[0]["text"] != "${text}" {
		t.Fatalf("text = %v, want the placeholder left verbatim", dispatched[0]["text"])
	}
	if dispatched[0]["fill"] != "#98FB98" {
		t.Fatalf("fill = %v, want green substituted", dispatched[0]["fill"])
	}
}
