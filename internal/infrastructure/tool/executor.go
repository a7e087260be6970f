// Package tool implements the board tool executor: the four pure
// mutation primitives (createObject/updateObject/moveObject/
// getBoardState) that sit between the orchestrator/fallback parser and
// the room's document, including the collision-avoidance and
// auto-parenting placement rules.
package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/robin-raq/collabboard/internal/domain/board"
	"github.com/robin-raq/collabboard/internal/domain/service"
)

const (
	collisionPadding   = 20.0
	scanXMax           = 1100.0
	maxRowAttempts     = 20
	maxContextObjects  = 30
	idRandSuffixChars  = 6
	idRandAlphabet     = "abcdefghijklmnopqrstuvwxyz0123456789"
	contextPlacementGap = 30.0
)

// Executor dispatches the four board tools against one document.
// The surface is deliberately fixed rather than a generic tool
// registry; this domain has no notion of per-tool permission tiers.
type Executor struct {
	doc board.Document

	mu   sync.Mutex
	rand *rand.Rand
}

// New builds an Executor bound to doc. seed fixes the sequence of
// random ID suffixes; the timestamp part of each ID still varies.
// Production callers pass time.Now().UnixNano().
func New(doc board.Document, seed int64) *Executor {
	return &Executor{doc: doc, rand: rand.New(rand.NewSource(seed))}
}

// Execute dispatches toolName against input, matching the
// service.ToolExecutor contract the fallback parser and orchestrator
// depend on.
func (e *Executor) Execute(toolName string, input map[string]interface{}) (board.ToolAction, error) {
	var resultJSON string
	switch toolName {
	case "createObject":
		resultJSON = e.createObject(input)
	case "updateObject":
		resultJSON = e.updateObject(input)
	case "moveObject":
		resultJSON = e.moveObject(input)
	case "getBoardState":
		resultJSON = e.getBoardStateResult()
	default:
		resultJSON = errorResult(fmt.Sprintf("unknown tool %q", toolName))
	}
	return board.ToolAction{ToolName: toolName, Input: input, Result: resultJSON}, nil
}

func errorResult(msg string) string {
	b, _ := json.Marshal(map[string]interface{}{"success": false, "error": msg})
	return string(b)
}

// Per-tool typed inputs. The loose map a model emits is parsed into
// one of these at the Execute boundary; everything past the parse
// works on concrete fields, never on interface{}.
type createObjectInput struct {
	Type               board.ObjectType
	X, Y               float64
	Width, Height      float64
	Fill               string
	Text               string
	FontSize           float64
	HasFontSize        bool
	ParentID           string
	FromID, ToID       string
	SkipCollisionCheck bool
}

func parseCreateObjectInput(m map[string]interface{}) (createObjectInput, error) {
	typeStr, _ := m["type"].(string)
	objType := board.ObjectType(typeStr)
	defaults, ok := board.Defaults[objType]
	if !ok {
		return createObjectInput{}, fmt.Errorf("unknown object type %q", typeStr)
	}

	in := createObjectInput{
		Type:     objType,
		X:        floatField(m, "x", 100),
		Y:        floatField(m, "y", 100),
		Width:    floatField(m, "width", defaults.Width),
		Height:   floatField(m, "height", defaults.Height),
		Fill:     stringField(m, "fill", defaults.Fill),
		Text:     stringField(m, "text", ""),
		ParentID: stringField(m, "parentId", ""),
		FromID:   stringField(m, "fromId", ""),
		ToID:     stringField(m, "toId", ""),
	}
	if v, ok := m["fontSize"]; ok {
		in.FontSize, in.HasFontSize = toFloat(v), true
	}
	in.SkipCollisionCheck, _ = m["skipCollisionCheck"].(bool)
	return in, nil
}

type updateObjectInput struct {
	ID       string
	Text     *string
	Fill     *string
	Width    *float64
	Height   *float64
	FontSize *float64
}

func parseUpdateObjectInput(m map[string]interface{}) (updateObjectInput, error) {
	in := updateObjectInput{}
	in.ID, _ = m["id"].(string)
	if in.ID == "" {
		return in, fmt.Errorf("id is required")
	}
	if v, ok := m["text"]; ok {
		s := fmt.Sprint(v)
		in.Text = &s
	}
	if v, ok := m["fill"]; ok {
		s := fmt.Sprint(v)
		in.Fill = &s
	}
	if v, ok := m["width"]; ok {
		f := toFloat(v)
		in.Width = &f
	}
	if v, ok := m["height"]; ok {
		f := toFloat(v)
		in.Height = &f
	}
	if v, ok := m["fontSize"]; ok {
		f := toFloat(v)
		in.FontSize = &f
	}
	return in, nil
}

type moveObjectInput struct {
	ID   string
	X, Y float64
}

func parseMoveObjectInput(m map[string]interface{}) (moveObjectInput, error) {
	in := moveObjectInput{}
	in.ID, _ = m["id"].(string)
	if in.ID == "" {
		return in, fmt.Errorf("id is required")
	}
	xv, xok := m["x"]
	yv, yok := m["y"]
	if !xok || !yok {
		return in, fmt.Errorf("x and y are required")
	}
	in.X, in.Y = toFloat(xv), toFloat(yv)
	return in, nil
}

func (e *Executor) createObject(input map[string]interface{}) string {
	in, err := parseCreateObjectInput(input)
	if err != nil {
		return errorResult(err.Error())
	}

	existing := e.doc.Objects()

	// The hub enforces the same cap pre-apply on the wire path; this
	// keeps tool-driven creates from pushing a board past it too.
	if !service.CanAddObject(len(existing)) {
		return errorResult("board is at the object limit")
	}

	x, y := in.X, in.Y
	if !in.SkipCollisionCheck && in.Type != board.TypeLine {
		x, y = avoidCollisions(existing, x, y, in.Width, in.Height)
	}

	parentID := in.ParentID
	if parentID == "" && in.Type != board.TypeFrame {
		parentID = findAutoParent(existing, x, y, in.Width, in.Height)
	}

	obj := &board.Object{
		ID:       generateID(e.nextRand()),
		Type:     in.Type,
		X:        x,
		Y:        y,
		Width:    in.Width,
		Height:   in.Height,
		Fill:     in.Fill,
		Rotation: 0,
		Text:     in.Text,
		ParentID: parentID,
		FromID:   in.FromID,
		ToID:     in.ToID,
	}
	if in.HasFontSize {
		obj.FontSize = in.FontSize
	}

	if err := obj.Validate(existing); err != nil {
		return errorResult(err.Error())
	}
	if _, err := e.doc.PutObject(context.Background(), obj, board.OriginLocal); err != nil {
		return errorResult(err.Error())
	}

	result := map[string]interface{}{
		"success": true,
		"id":      obj.ID,
		"type":    string(obj.Type),
		"text":    obj.Text,
		"x":       obj.X,
		"y":       obj.Y,
		"width":   obj.Width,
		"height":  obj.Height,
	}
	if obj.ParentID != "" {
		result["parentId"] = obj.ParentID
	}
	b, _ := json.Marshal(result)
	return string(b)
}

func (e *Executor) updateObject(input map[string]interface{}) string {
	in, err := parseUpdateObjectInput(input)
	if err != nil {
		return errorResult(err.Error())
	}
	existing := e.doc.Objects()
	obj, ok := existing[in.ID]
	if !ok {
		return errorResult(fmt.Sprintf("object %q not found", in.ID))
	}
	updated := *obj
	var changed []string

	if in.Text != nil {
		updated.Text = *in.Text
		changed = append(changed, "text")
	}
	if in.Fill != nil {
		updated.Fill = *in.Fill
		changed = append(changed, "fill")
	}
	if in.Width != nil {
		updated.Width = *in.Width
		changed = append(changed, "width")
	}
	if in.Height != nil {
		updated.Height = *in.Height
		changed = append(changed, "height")
	}
	if in.FontSize != nil {
		updated.FontSize = *in.FontSize
		changed = append(changed, "fontSize")
	}
	if len(changed) == 0 {
		return errorResult("no updatable fields supplied")
	}

	if err := updated.Validate(existing); err != nil {
		return errorResult(err.Error())
	}
	if _, err := e.doc.PutObject(context.Background(), &updated, board.OriginLocal); err != nil {
		return errorResult(err.Error())
	}

	b, _ := json.Marshal(map[string]interface{}{"success": true, "id": in.ID, "updated": changed})
	return string(b)
}

func (e *Executor) moveObject(input map[string]interface{}) string {
	in, err := parseMoveObjectInput(input)
	if err != nil {
		return errorResult(err.Error())
	}
	existing := e.doc.Objects()
	obj, ok := existing[in.ID]
	if !ok {
		return errorResult(fmt.Sprintf("object %q not found", in.ID))
	}
	updated := *obj
	updated.X = in.X
	updated.Y = in.Y

	if err := updated.Validate(existing); err != nil {
		return errorResult(err.Error())
	}
	if _, err := e.doc.PutObject(context.Background(), &updated, board.OriginLocal); err != nil {
		return errorResult(err.Error())
	}

	b, _ := json.Marshal(map[string]interface{}{"success": true, "id": in.ID, "x": updated.X, "y": updated.Y})
	return string(b)
}

func (e *Executor) getBoardStateResult() string {
	return BuildBoardContext(e.doc.Objects())
}

// avoidCollisions implements the createObject collision-avoidance
// algorithm: try the requested rect, then scan
// rightward in (w+P) steps up to x_max, wrapping rows, falling back to
// stacking below everything after 20 row attempts.
func avoidCollisions(existing map[string]*board.Object, x, y, w, h float64) (float64, float64) {
	const p = collisionPadding
	if !overlapsAny(existing, x, y, w, h, p) {
		return x, y
	}

	for row := 0; row < maxRowAttempts; row++ {
		ry := y + float64(row)*(h+p)
		for rx := x; rx <= scanXMax; rx += w + p {
			if !overlapsAny(existing, rx, ry, w, h, p) {
				return rx, ry
			}
		}
	}

	maxBottom := y
	for _, o := range existing {
		if bottom := o.Y + o.Height; bottom > maxBottom {
			maxBottom = bottom
		}
	}
	return x, maxBottom + p
}

func overlapsAny(existing map[string]*board.Object, x, y, w, h, padding float64) bool {
	px, py := x-padding, y-padding
	pw, ph := w+2*padding, h+2*padding
	for _, o := range existing {
		if board.Overlaps(px, py, pw, ph, o.X, o.Y, o.Width, o.Height) {
			return true
		}
	}
	return false
}

// findAutoParent returns the id of the first frame whose rect strictly
// contains the candidate rect, or "" if none does.
func findAutoParent(existing map[string]*board.Object, x, y, w, h float64) string {
	ids := sortedIDs(existing)
	for _, id := range ids {
		o := existing[id]
		if o.Type != board.TypeFrame {
			continue
		}
		if board.Contains(o.X, o.Y, o.Width, o.Height, x, y, w, h) {
			return o.ID
		}
	}
	return ""
}

// sortedIDs gives map iteration a stable order so auto-parenting and
// context rendering are deterministic across calls.
func sortedIDs(m map[string]*board.Object) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (e *Executor) nextRand() *rand.Rand {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rand
}

// generateID builds a timestamp+random opaque id. Collisions are
// practically impossible, so there is no retry logic.
func generateID(r *rand.Rand) string {
	var sb strings.Builder
	sb.WriteString(strconv.FormatInt(time.Now().UnixNano(), 36))
	sb.WriteByte('-')
	for i := 0; i < idRandSuffixChars; i++ {
		sb.WriteByte(idRandAlphabet[r.Intn(len(idRandAlphabet))])
	}
	return sb.String()
}

func floatField(m map[string]interface{}, key string, def float64) float64 {
	if v, ok := m[key]; ok {
		return toFloat(v)
	}
	return def
}

func stringField(m map[string]interface{}, key, def string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

func toFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case json.Number:
		f, _ := n.Float64()
		return f
	case string:
		f, _ := strconv.ParseFloat(n, 64)
		return f
	default:
		return 0
	}
}
