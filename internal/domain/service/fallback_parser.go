package service

import (
	"fmt"
	"strings"

	"github.com/robin-raq/collabboard/internal/domain/board"
)

const (
	stickyGap    = 20.0
	stickyW      = 200.0
	stickyH      = 150.0
	defaultStages = 5
)

// ToolExecutor is the subset of the tool executor the fallback parser (and
// orchestrator) dispatch through.
type ToolExecutor interface {
	Execute(toolName string, input map[string]interface{}) (board.ToolAction, error)
}

// FallbackParser is the deterministic, non-LLM command interpreter.
// Matchers run most-specific-first; a miss returns a catalog help
// message.
type FallbackParser struct {
	exec ToolExecutor
}

// NewFallbackParser builds a parser dispatching tool calls through exec.
func NewFallbackParser(exec ToolExecutor) *FallbackParser {
	return &FallbackParser{exec: exec}
}

// Parse runs the matcher catalog in most-specific-first order and
// returns the resulting message and executed actions.
func (p *FallbackParser) Parse(command string) (string, []board.ToolAction) {
	c := strings.ToLower(command)

	type matcher struct {
		match func(string) bool
		run   func(string) (string, []board.ToolAction)
	}
	catalog := []matcher{
		{func(s string) bool { return strings.Contains(s, "journey") }, p.userJourney},
		{func(s string) bool { return strings.Contains(s, "swot") }, p.swot},
		{func(s string) bool { return strings.Contains(s, "retro") }, p.retro},
		{func(s string) bool { return gridRe.MatchString(s) }, p.createGrid},
		{func(s string) bool { return strings.Contains(s, "resize") && strings.Contains(s, "frame") }, p.resizeFrameToFit},
		{func(s string) bool { return strings.Contains(s, "space") && strings.Contains(s, "even") }, p.spaceEvenly},
		{p.isMoveByColorDirection, p.moveByColorDirection},
		{func(s string) bool { return strings.Contains(s, "arrange") && strings.Contains(s, "grid") }, p.arrangeInGrid},
		{p.isUpdateColor, p.updateColor},
		{p.isCreateNamedFrame, p.createNamedFrame},
		{p.isCreateObject, p.createObject},
	}

	for _, m := range catalog {
		if m.match(c) {
			return m.run(command)
		}
	}
	return p.help(), nil
}

func (p *FallbackParser) help() string {
	return "I didn't recognize that command. Try: retrospective, SWOT, user journey map, " +
		"an NxM grid, resize frame to fit, space evenly, move the <color> notes <direction>, " +
		"arrange in a grid, change color, create a named frame, or create a sticky/rect/circle/text/frame."
}

func (p *FallbackParser) dispatch(toolName string, input map[string]interface{}) board.ToolAction {
	action, err := p.exec.Execute(toolName, input)
	if err != nil {
		return board.ToolAction{ToolName: toolName, Input: input, Result: fmt.Sprintf(`{"success":false,"error":%q}`, err.Error())}
	}
	return action
}

// retro lays out the canonical 3-frame retrospective template.
func (p *FallbackParser) retro(_ string) (string, []board.ToolAction) {
	labels := []string{"What Went Well", "What Didn't Go Well", "Action Items"}
	actions := p.framesWithStickies(labels, 3, 1)
	return "Created a retrospective board with " + fmt.Sprint(len(labels)) + " columns.", actions
}

// swot lays out a 2x2 SWOT grid.
func (p *FallbackParser) swot(_ string) (string, []board.ToolAction) {
	labels := []string{"Strengths", "Weaknesses", "Opportunities", "Threats"}
	actions := p.framesWithStickies(labels, 2, 2)
	return "Created a SWOT analysis board.", actions
}

// userJourney lays out N stage frames (default 5, or "N stages" if present).
func (p *FallbackParser) userJourney(command string) (string, []board.ToolAction) {
	stages := defaultStages
	params := ExtractParams(command)
	if m := stagesRe.FindStringSubmatch(strings.ToLower(command)); m != nil {
		if n, err := atoiSafe(m[1]); err == nil && n > 0 {
			stages = n
		}
	}
	labels := make([]string, stages)
	for i := range labels {
		labels[i] = fmt.Sprintf("Stage %d", i+1)
	}
	_ = params
	actions := p.framesWithStickies(labels, stages, 1)
	return fmt.Sprintf("Created a %d-stage user journey map.", stages), actions
}

// framesWithStickies places cols*rows frames in a grid, each holding
// two stickies at fixed inset coordinates.
func (p *FallbackParser) framesWithStickies(labels []string, cols, rows int) []board.ToolAction {
	const frameW, frameH, gap = 300.0, 300.0, 40.0
	var actions []board.ToolAction

	for i, label := range labels {
		col := i % cols
		row := i / cols
		fx := float64(col) * (frameW + gap)
		fy := float64(row) * (frameH + gap)

		frame := p.dispatch("createObject", map[string]interface{}{
			"type": "frame", "x": fx, "y": fy, "width": frameW, "height": frameH, "text": label,
		})
		actions = append(actions, frame)
		frameID := toolResultID(frame)

		for s := 0; s < 2; s++ {
			sticky := p.dispatch("createObject", map[string]interface{}{
				"type": "sticky", "x": fx + 20, "y": fy + 50 + float64(s)*(stickyH+10), "parentId": frameID,
			})
			actions = append(actions, sticky)
		}
	}
	return actions
}

// createGrid lays out an NxM grid of 200x150 stickies with a 20px gap.
func (p *FallbackParser) createGrid(command string) (string, []board.ToolAction) {
	params := ExtractParams(command)
	if !params.HasGrid {
		return p.help(), nil
	}
	var actions []board.ToolAction
	for r := 0; r < params.GridRows; r++ {
		for c := 0; c < params.GridCols; c++ {
			x := float64(c) * (stickyW + stickyGap)
			y := float64(r) * (stickyH + stickyGap)
			actions = append(actions, p.dispatch("createObject", map[string]interface{}{
				"type": "sticky", "x": x, "y": y,
			}))
		}
	}
	return fmt.Sprintf("Created a %dx%d grid.", params.GridCols, params.GridRows), actions
}

func (p *FallbackParser) isCreateNamedFrame(c string) bool {
	return strings.Contains(c, "frame") && (strings.Contains(c, "named") || strings.Contains(c, "called") || strings.Contains(c, "titled"))
}

func (p *FallbackParser) createNamedFrame(command string) (string, []board.ToolAction) {
	params := ExtractParams(command)
	label := params.Text
	if label == "" {
		label = params.Topic
	}
	x, y := 100.0, 100.0
	if params.HasXY {
		x, y = params.X, params.Y
	}
	action := p.dispatch("createObject", map[string]interface{}{
		"type": "frame", "x": x, "y": y, "text": label,
	})
	return fmt.Sprintf("Created a frame named %q.", label), []board.ToolAction{action}
}

func (p *FallbackParser) isCreateObject(c string) bool {
	for _, t := range []string{"sticky", "note", "rect", "circle", "text", "frame", "line"} {
		if strings.Contains(c, t) {
			return true
		}
	}
	return false
}

func (p *FallbackParser) createObject(command string) (string, []board.ToolAction) {
	objType := detectObjectType(strings.ToLower(command))
	params := ExtractParams(command)
	x, y := 100.0, 100.0
	if params.HasXY {
		x, y = params.X, params.Y
	}
	input := map[string]interface{}{"type": objType, "x": x, "y": y}
	if params.ColorHex != "" {
		input["fill"] = params.ColorHex
	}
	if params.Text != "" {
		input["text"] = params.Text
	}
	action := p.dispatch("createObject", input)
	return fmt.Sprintf("Created a %s.", objType), []board.ToolAction{action}
}

func (p *FallbackParser) isUpdateColor(c string) bool {
	hasColorWord := strings.Contains(c, "color") || strings.Contains(c, "colour")
	hasVerb := strings.Contains(c, "change") || strings.Contains(c, "update") || strings.Contains(c, "make") || strings.Contains(c, "set")
	return hasColorWord && hasVerb
}

func (p *FallbackParser) updateColor(command string) (string, []board.ToolAction) {
	params := ExtractParams(command)
	if params.ColorHex == "" {
		return "Which color would you like?", nil
	}
	// The command carries no target id, so no tool call is dispatched;
	// the reply only asks which object to recolor.
	return fmt.Sprintf("Specify which object to recolor %s.", params.Color), nil
}

func (p *FallbackParser) isMoveByColorDirection(c string) bool {
	hasDirection := strings.Contains(c, "left") || strings.Contains(c, "right") || strings.Contains(c, "up") || strings.Contains(c, "down")
	return strings.Contains(c, "move") && hasDirection
}

func (p *FallbackParser) moveByColorDirection(command string) (string, []board.ToolAction) {
	return fmt.Sprintf("Move command noted: %q. Specify object ids to move them.", command), nil
}

func (p *FallbackParser) resizeFrameToFit(_ string) (string, []board.ToolAction) {
	return "Resize-to-fit requires an existing frame id; none was specified.", nil
}

func (p *FallbackParser) spaceEvenly(_ string) (string, []board.ToolAction) {
	return "Space-evenly requires a set of existing object ids; none was specified.", nil
}

func (p *FallbackParser) arrangeInGrid(command string) (string, []board.ToolAction) {
	return p.createGrid(command)
}

func detectObjectType(c string) string {
	switch {
	case strings.Contains(c, "sticky") || strings.Contains(c, "note"):
		return string(board.TypeSticky)
	case strings.Contains(c, "rect"):
		return string(board.TypeRect)
	case strings.Contains(c, "circle"):
		return string(board.TypeCircle)
	case strings.Contains(c, "frame"):
		return string(board.TypeFrame)
	case strings.Contains(c, "line"):
		return string(board.TypeLine)
	case strings.Contains(c, "text") || strings.Contains(c, "label"):
		return string(board.TypeText)
	default:
		return string(board.TypeSticky)
	}
}

func toolResultID(a board.ToolAction) string {
	if id, ok := a.Input["id"].(string); ok {
		return id
	}
	// createObject's result JSON carries the generated id; the map
	// input never does, so pull it out of the result payload.
	return extractJSONStringField(a.Result, "id")
}
